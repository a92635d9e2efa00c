package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"dg-agenda/internal/importer"
	"dg-agenda/internal/model"
	"dg-agenda/internal/report"
)

type fieldFlags struct {
	date, time, duration, interlocutor, purpose, location, status, comments string
}

func (f *fieldFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.date, "date", "", "Date, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.time, "time", "", "Time, HH:MM")
	cmd.Flags().StringVar(&f.duration, "duration", "", "Duration, free text")
	cmd.Flags().StringVar(&f.interlocutor, "interlocutor", "", "Who the director meets")
	cmd.Flags().StringVar(&f.purpose, "purpose", "", "Purpose of the meeting")
	cmd.Flags().StringVar(&f.location, "location", "", "Location")
	cmd.Flags().StringVar(&f.status, "status", "", "Status code or label")
	cmd.Flags().StringVar(&f.comments, "comments", "", "Comments or preparation notes")
}

// apply overwrites the fields whose flag was given on the command line.
func (f *fieldFlags) apply(cmd *cobra.Command, dst *model.Fields) error {
	set := func(name string, to *string, v string) {
		if cmd.Flags().Changed(name) {
			*to = strings.TrimSpace(v)
		}
	}
	set("date", &dst.Date, f.date)
	set("time", &dst.Time, f.time)
	set("duration", &dst.Duration, f.duration)
	set("interlocutor", &dst.Interlocutor, f.interlocutor)
	set("purpose", &dst.Purpose, f.purpose)
	set("location", &dst.Location, f.location)
	set("comments", &dst.Comments, f.comments)
	if cmd.Flags().Changed("status") {
		s, err := model.ParseStatus(f.status)
		if err != nil {
			return err
		}
		dst.Status = s
	}
	return dst.Validate()
}

func newAddCmd(a *app) *cobra.Command {
	var ff fieldFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an appointment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := model.Fields{Status: model.StatusToValidate}
			if err := ff.apply(cmd, &f); err != nil {
				return err
			}
			c, err := a.mount(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer c.Close()
			created, err := c.Create(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "created %s\n", created.ID)
			return nil
		},
	}
	ff.register(cmd)
	for _, name := range []string{"date", "time", "interlocutor", "purpose", "location"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newEditCmd(a *app) *cobra.Command {
	var ff fieldFlags
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change fields of an appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.repository()
			if err != nil {
				return err
			}
			cur, err := repo.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			f := cur.Fields
			if err := ff.apply(cmd, &f); err != nil {
				return err
			}
			c, err := a.mount(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer c.Close()
			if _, err := c.Update(cmd.Context(), cur.ID, f); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "updated %s\n", cur.ID)
			return nil
		},
	}
	ff.register(cmd)
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an appointment permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				fmt.Fprintf(a.errOut, "delete %s? [y/N] ", args[0])
				line, _ := bufio.NewReader(a.in).ReadString('\n')
				if ans := strings.ToLower(strings.TrimSpace(line)); ans != "y" && ans != "yes" {
					fmt.Fprintln(a.out, "cancelled")
					return nil
				}
			}
			c, err := a.mount(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "deleted %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var (
		vf       viewFlags
		format   string
		selected []string
		bucket   bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the filtered list, or selected appointments, as xlsx or pdf",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			v, err := a.view(&vf)
			if err != nil {
				return err
			}
			c, err := a.mount(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer c.Close()

			items := c.Snapshot().Items
			opts := report.Options{GeneratedAt: a.now().In(a.location())}
			if len(selected) > 0 {
				v.Select(selected...)
				items = v.Selected(items)
				opts.Selection = true
			} else {
				items = v.Visible(items)
			}
			if len(items) == 0 {
				return fmt.Errorf("nothing to export")
			}

			data, err := report.Render(kind, items, opts)
			if err != nil {
				return err
			}
			var sink report.Sink = report.FileSink{Dir: a.cfg.ReportDir}
			if bucket {
				if sink, err = report.NewBucketSink(report.BucketConfig{
					Endpoint:  a.cfg.S3Endpoint,
					AccessKey: a.cfg.S3AccessKey,
					SecretKey: a.cfg.S3SecretKey,
					Region:    a.cfg.S3Region,
					UseSSL:    a.cfg.S3UseSSL,
					Bucket:    a.cfg.ReportBucket,
				}); err != nil {
					return err
				}
			}
			where, err := sink.Put(cmd.Context(), report.FileName(kind, opts), data)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "exported %d appointment(s) to %s\n", len(items), where)
			return nil
		},
	}
	vf.register(cmd, false)
	cmd.Flags().StringVar(&format, "format", "xlsx", "xlsx or pdf")
	cmd.Flags().StringSliceVar(&selected, "select", nil, "Export only these ids")
	cmd.Flags().BoolVar(&bucket, "bucket", false, "Upload to AGENDA_REPORT_BUCKET instead of AGENDA_REPORT_DIR")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Create appointments from a YAML file, skipping ones already present",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fh, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer fh.Close()
			rows, err := importer.Decode(fh)
			if err != nil {
				return err
			}
			repo, err := a.repository()
			if err != nil {
				return err
			}
			res, err := importer.New(repo, a.cfg.ImportInterval, a.log).Import(cmd.Context(), rows)
			fmt.Fprintf(a.out, "imported %d, duplicates %d, failed %d\n", res.Imported, res.Duplicates, len(res.Failures))
			for _, f := range res.Failures {
				fmt.Fprintf(a.out, "  %v\n", f)
			}
			return err
		},
	}
}
