package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dg-agenda/internal/model"
	"dg-agenda/internal/reconcile"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status ID STATUS",
		Short: "Set the status of an appointment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := model.ParseStatus(args[1])
			if err != nil {
				return err
			}
			c, err := a.mount(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer c.Close()
			if _, err := c.UpdateStatus(cmd.Context(), args[0], s); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s is now %s\n", args[0], s.Label())
			return nil
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	var vf viewFlags
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count appointments per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := a.view(&vf)
			if err != nil {
				return err
			}
			c, err := a.mount(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer c.Close()

			stats := reconcile.Stats(v.Visible(c.Snapshot().Items))
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			for _, s := range model.Statuses {
				fmt.Fprintf(tw, "%s\t%d\n", s.Label(), stats[s])
			}
			fmt.Fprintf(tw, "Total\t%d\n", stats[""])
			return tw.Flush()
		},
	}
	vf.register(cmd, false)
	return cmd
}
