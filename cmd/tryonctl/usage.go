package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/tryon/tryon/internal/model"
)

func (c *cli) usageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Read usage events and daily meters",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list <embed-id>",
		Short: "List recent usage events for an embed, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := c.app.Usage.List(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if events == nil {
				events = []*model.UsageEvent{}
			}
			return printJSON(cmd, events)
		},
	}
	list.Flags().IntVar(&limit, "limit", 50, "maximum events to return")

	var date string
	daily := &cobra.Command{
		Use:   "daily <embed-id>",
		Short: "Show the daily generation meter for an embed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day := time.Now().UTC()
			if date != "" {
				var err error
				if day, err = time.Parse(time.DateOnly, date); err != nil {
					return err
				}
			}
			n, err := c.app.Usage.DailyCount(cmd.Context(), args[0], day)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"date": day.Format(time.DateOnly), "count": n})
		},
	}
	daily.Flags().StringVar(&date, "date", "", "UTC day as YYYY-MM-DD (default today)")

	cmd.AddCommand(list, daily)
	return cmd
}
