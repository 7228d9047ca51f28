package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type backendStatus struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (c *cli) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Ping every storage backend in priority order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backends := c.app.Store.Backends()
			results := make([]backendStatus, len(backends))

			g, ctx := errgroup.WithContext(cmd.Context())
			for i, b := range backends {
				i, b := i, b
				g.Go(func() error {
					results[i] = backendStatus{Name: b.Name(), OK: true}
					if err := b.Ping(ctx); err != nil {
						results[i].OK = false
						results[i].Error = err.Error()
					}
					return nil
				})
			}
			_ = g.Wait()

			return printJSON(cmd, map[string]any{
				"store":    c.app.Store.Name(),
				"backends": results,
			})
		},
	}
}
