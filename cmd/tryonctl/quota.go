package main

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tryon/tryon/internal/quota"
)

type quotaView struct {
	quota.Decision
	Month     string `json:"month"`
	Remaining int64  `json:"remaining"`
}

func (c *cli) quotaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Inspect and adjust monthly generation quotas",
	}

	show := &cobra.Command{
		Use:   "show <client-id>",
		Short: "Show this month's usage, bonus and limit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := c.app.Quota.Check(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, quotaView{Decision: d, Month: quota.Month(time.Now()), Remaining: d.Remaining()})
		},
	}

	bonus := &cobra.Command{
		Use:   "bonus <client-id> <n>",
		Short: "Grant bonus generations for the current month",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return err
			}
			total, err := c.app.Quota.IncrMonthlyBonus(cmd.Context(), args[0], n)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]int64{"bonus": total})
		},
	}

	cmd.AddCommand(show, bonus)
	return cmd
}
