package main

import (
	"github.com/spf13/cobra"
)

func (c *cli) editCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Admit and settle image edits",
	}

	var ip string
	admit := &cobra.Command{
		Use:   "admit <embed-id>",
		Short: "Check rate limit and quota for one edit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := c.app.AdmitEdit(cmd.Context(), args[0], ip)
			if err != nil {
				return err
			}
			return printJSON(cmd, d)
		},
	}
	admit.Flags().StringVar(&ip, "ip", "127.0.0.1", "caller address used for rate limiting")

	var failed bool
	complete := &cobra.Command{
		Use:   "complete <embed-id>",
		Short: "Record the outcome of an admitted edit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			used, err := c.app.CompleteEdit(cmd.Context(), args[0], !failed, map[string]any{"source": "tryonctl"})
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]int64{"used": used})
		},
	}
	complete.Flags().BoolVar(&failed, "failed", false, "record a failed edit; nothing is billed")

	cmd.AddCommand(admit, complete)
	return cmd
}
