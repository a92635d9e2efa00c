package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dg-agenda/internal/model"
	"dg-agenda/internal/reconcile"
)

type viewFlags struct {
	filter   string
	status   string
	query    string
	page     int
	pageSize int
}

func (f *viewFlags) register(cmd *cobra.Command, paged bool) {
	cmd.Flags().StringVarP(&f.filter, "filter", "f", "all", "all, today, week, upcoming or past")
	cmd.Flags().StringVar(&f.status, "status", "", "Only this status (code or label)")
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "Search interlocutor, purpose and location")
	if paged {
		cmd.Flags().IntVar(&f.page, "page", 1, "Page number")
		cmd.Flags().IntVar(&f.pageSize, "page-size", 0, "Rows per page (default from AGENDA_PAGE_SIZE)")
	}
}

func (a *app) view(f *viewFlags) (*reconcile.View, error) {
	filter, err := reconcile.ParseFilter(f.filter)
	if err != nil {
		return nil, err
	}
	v := &reconcile.View{
		Filter:   filter,
		Query:    f.query,
		Page:     f.page,
		PageSize: f.pageSize,
		Loc:      a.location(),
		Now:      a.now,
	}
	if v.PageSize <= 0 {
		v.PageSize = a.cfg.PageSize
	}
	if f.status != "" {
		if v.Status, err = model.ParseStatus(f.status); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func render(w io.Writer, snap reconcile.Snapshot, v *reconcile.View) {
	if snap.Banner != "" {
		fmt.Fprintf(w, "! %s\n", snap.Banner)
	}
	p := v.Apply(snap.Items)
	if p.Total == 0 {
		fmt.Fprintln(w, "No appointments")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTIME\tINTERLOCUTOR\tPURPOSE\tLOCATION\tSTATUS\tCOMMENTS")
	for _, a := range p.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.Date, a.Time, clip(a.Interlocutor, 32), clip(a.Purpose, 32), clip(a.Location, 20), a.Status.Label(), clip(a.Comments, 32))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "page %d/%d, %d appointment(s)\n", p.Page, p.Pages, p.Total)
}

func clip(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}

func newListCmd(a *app) *cobra.Command {
	var vf viewFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List appointments",
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
			render(a.out, c.Snapshot(), v)
			return nil
		},
	}
	vf.register(cmd, true)
	return cmd
}

// newWatchCmd keeps the screen live: the list is re-rendered whenever the
// controller reports a change, until interrupted.
func newWatchCmd(a *app) *cobra.Command {
	var vf viewFlags
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show the list and follow changes live",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := a.view(&vf)
			if err != nil {
				return err
			}
			c, err := a.mount(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer c.Close()
			return watch(cmd.Context(), a.out, c, v)
		},
	}
	vf.register(cmd, true)
	return cmd
}

func watch(ctx context.Context, w io.Writer, c *reconcile.Controller, v *reconcile.View) error {
	render(w, c.Snapshot(), v)
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-c.Changes():
			if !ok {
				return nil
			}
			fmt.Fprintln(w, "---")
			render(w, c.Snapshot(), v)
		}
	}
}
