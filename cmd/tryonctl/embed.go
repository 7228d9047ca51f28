package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tryon/tryon/internal/model"
)

func (c *cli) embedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Manage embed configurations",
	}

	set := &cobra.Command{
		Use:   "set <file|->",
		Short: "Replace an embed config from a JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			var embed model.Embed
			if err := json.NewDecoder(r).Decode(&embed); err != nil {
				return fmt.Errorf("decode embed: %w", err)
			}
			if err := c.app.Registry.SetEmbedConfig(cmd.Context(), &embed); err != nil {
				return err
			}
			return printJSON(cmd, &embed)
		},
	}

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show an embed config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			embed, err := c.app.Registry.GetEmbedConfig(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, embed)
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an embed config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deleted, err := c.app.Registry.DeleteEmbedConfig(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]bool{"deleted": deleted})
		},
	}

	var clientID string
	list := &cobra.Command{
		Use:   "list",
		Short: "List embeds, optionally for one client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				embeds []*model.Embed
				err    error
			)
			if clientID != "" {
				embeds, err = c.app.Registry.ListEmbedsForClient(cmd.Context(), clientID)
			} else {
				embeds, err = c.app.Registry.ListEmbeds(cmd.Context())
			}
			if err != nil {
				return err
			}
			if embeds == nil {
				embeds = []*model.Embed{}
			}
			return printJSON(cmd, embeds)
		},
	}
	list.Flags().StringVar(&clientID, "client", "", "only embeds owned by this client")

	cmd.AddCommand(set, get, del, list)
	return cmd
}
