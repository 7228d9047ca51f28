package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tryon/tryon/internal/model"
)

func (c *cli) clientCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Create and look up clients",
	}

	var name, email string
	create := &cobra.Command{
		Use:   "create <id>",
		Short: "Create a client, or update name and email of an existing one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.app.Registry.CreateClient(cmd.Context(), args[0], name, email)
			if err != nil {
				return err
			}
			return printJSON(cmd, client)
		},
	}
	create.Flags().StringVar(&name, "name", "", "display name")
	create.Flags().StringVar(&email, "email", "", "contact email (required, unique)")
	_ = create.MarkFlagRequired("email")

	var by string
	get := &cobra.Command{
		Use:   "get <value>",
		Short: "Look up a client by id, token or email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				client *model.Client
				err    error
			)
			switch by {
			case "id":
				client, err = c.app.Registry.GetClientByID(cmd.Context(), args[0])
			case "token":
				client, err = c.app.Registry.GetClientByToken(cmd.Context(), args[0])
			case "email":
				client, err = c.app.Registry.GetClientByEmail(cmd.Context(), args[0])
			default:
				return fmt.Errorf("unknown lookup %q (want id, token or email)", by)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, client)
		},
	}
	get.Flags().StringVar(&by, "by", "id", "lookup key: id, token or email")

	cmd.AddCommand(create, get)
	return cmd
}
