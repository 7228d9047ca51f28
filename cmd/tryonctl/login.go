package main

import (
	"time"

	"github.com/spf13/cobra"
)

func (c *cli) loginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Issue and redeem single-use login tokens",
	}

	var ttl time.Duration
	issue := &cobra.Command{
		Use:   "issue <client-id>",
		Short: "Issue a login token for a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.app.Registry.GetClientByID(cmd.Context(), args[0]); err != nil {
				return err
			}
			token, err := c.app.Login.Create(cmd.Context(), args[0], ttl)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"token": token})
		},
	}
	issue.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default LOGIN_TOKEN_TTL)")

	consume := &cobra.Command{
		Use:   "consume <token>",
		Short: "Redeem a login token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID, err := c.app.Login.Consume(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"clientId": clientID})
		},
	}

	cmd.AddCommand(issue, consume)
	return cmd
}
