package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tryon/tryon/internal/app"
	"github.com/tryon/tryon/internal/config"
)

// cli carries the services shared by every subcommand. When app is set
// before execution it is used as is and left open.
type cli struct {
	app   *app.App
	owned bool
}

func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := app.NewLogger(cfg, os.Stderr)
	return app.New(ctx, cfg, logger), nil
}

// close drains and releases an app opened by the root command.
func (c *cli) close() error {
	if !c.owned {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.app.Close(ctx)
}

func newRootCommand(a *app.App) (*cobra.Command, *cli) {
	c := &cli{app: a}

	cmd := &cobra.Command{
		Use:   "tryonctl",
		Short: "Manage try-on clients, embeds, plans and usage",
		Long: `tryonctl reads the same environment as the API server (REDIS_URL,
KV_REST_URL, DATABASE_URL, ...) and operates directly on the storage chain.
All output is JSON on stdout; logs go to stderr.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.app != nil {
				return nil
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			c.app, c.owned = a, true
			return nil
		},
	}

	cmd.AddCommand(
		c.clientCommand(),
		c.embedCommand(),
		c.planCommand(),
		c.quotaCommand(),
		c.editCommand(),
		c.loginCommand(),
		c.usageCommand(),
		c.statusCommand(),
	)
	return cmd, c
}

// printJSON writes v as indented JSON to the command's stdout.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
