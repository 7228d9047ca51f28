package main

import (
	"github.com/spf13/cobra"

	"github.com/tryon/tryon/internal/plan"
)

func (c *cli) planCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Inspect the plan catalog and assign plans",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the plan catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd, plan.All())
		},
	}

	get := &cobra.Command{
		Use:   "get <client-id>",
		Short: "Show the plan a client is on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.app.Quota.ClientPlan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, p)
		},
	}

	set := &cobra.Command{
		Use:   "set <client-id> <plan-id>",
		Short: "Assign a plan to a client",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Quota.SetClientPlan(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			p, err := plan.Get(args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, p)
		},
	}

	cmd.AddCommand(list, get, set)
	return cmd
}
