// Package importer loads appointments in bulk from a YAML file.
//
// Rows are validated, rows already present (same date, time and interlocutor)
// are skipped, and the rest are created one at a time at a bounded rate.
package importer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"dg-agenda/internal/model"
)

// Row is one entry of the import file. Status may be a code or a label.
type Row struct {
	Date         string `yaml:"date"`
	Time         string `yaml:"time"`
	Duration     string `yaml:"duration"`
	Interlocutor string `yaml:"interlocutor"`
	Purpose      string `yaml:"purpose"`
	Location     string `yaml:"location"`
	Status       string `yaml:"status"`
	Comments     string `yaml:"comments"`
}

// Fields converts r. The status defaults to "to validate".
func (r Row) Fields() (model.Fields, error) {
	f := model.Fields{
		Date:         strings.TrimSpace(r.Date),
		Time:         strings.TrimSpace(r.Time),
		Duration:     strings.TrimSpace(r.Duration),
		Interlocutor: strings.TrimSpace(r.Interlocutor),
		Purpose:      strings.TrimSpace(r.Purpose),
		Location:     strings.TrimSpace(r.Location),
		Status:       model.StatusToValidate,
		Comments:     strings.TrimSpace(r.Comments),
	}
	if r.Status != "" {
		s, err := model.ParseStatus(r.Status)
		if err != nil {
			return f, err
		}
		f.Status = s
	}
	return f, f.Validate()
}

// Decode reads a YAML sequence of rows.
func Decode(r io.Reader) ([]Row, error) {
	var rows []Row
	if err := yaml.NewDecoder(r).Decode(&rows); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("import: decode: %w", err)
	}
	return rows, nil
}

// Repository is the part of appointments.Repository the importer uses.
type Repository interface {
	List(ctx context.Context) ([]model.Appointment, error)
	Create(ctx context.Context, f model.Fields) (*model.Appointment, error)
}

type RowError struct {
	Index int // zero-based position in the file
	Row   Row
	Err   error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d (%s %s %s): %v", e.Index+1, e.Row.Date, e.Row.Time, e.Row.Interlocutor, e.Err)
}

type Result struct {
	Imported   int
	Duplicates int
	Failures   []RowError
}

type Importer struct {
	repo    Repository
	limiter *rate.Limiter
	log     zerolog.Logger
}

// New paces creations to one per interval; interval <= 0 disables pacing.
func New(repo Repository, interval time.Duration, log zerolog.Logger) *Importer {
	lim := rate.NewLimiter(rate.Inf, 1)
	if interval > 0 {
		lim = rate.NewLimiter(rate.Every(interval), 1)
	}
	return &Importer{repo: repo, limiter: lim, log: log.With().Str("component", "importer").Logger()}
}

type key struct{ date, time, who string }

func keyOf(f model.Fields) key {
	return key{f.Date, f.Time, strings.ToLower(f.Interlocutor)}
}

// Import creates every new, valid row. A failed row does not stop the rest;
// only a failure to read the current list or a cancelled ctx aborts the run.
func (im *Importer) Import(ctx context.Context, rows []Row) (Result, error) {
	var res Result
	existing, err := im.repo.List(ctx)
	if err != nil {
		return res, fmt.Errorf("import: %w", err)
	}
	seen := make(map[key]bool, len(existing)+len(rows))
	for _, a := range existing {
		seen[keyOf(a.Fields)] = true
	}

	for i, row := range rows {
		f, err := row.Fields()
		if err != nil {
			res.Failures = append(res.Failures, RowError{Index: i, Row: row, Err: err})
			continue
		}
		k := keyOf(f)
		if seen[k] {
			res.Duplicates++
			im.log.Debug().Str("date", f.Date).Str("time", f.Time).Msg("duplicate skipped")
			continue
		}
		if err := im.limiter.Wait(ctx); err != nil {
			return res, fmt.Errorf("import: %w", err)
		}
		a, err := im.repo.Create(ctx, f)
		if err != nil {
			if ctx.Err() != nil {
				return res, fmt.Errorf("import: %w", ctx.Err())
			}
			im.log.Warn().Err(err).Int("row", i+1).Msg("create failed")
			res.Failures = append(res.Failures, RowError{Index: i, Row: row, Err: err})
			continue
		}
		seen[k] = true
		res.Imported++
		im.log.Info().Str("id", a.ID).Str("date", f.Date).Str("time", f.Time).Msg("imported")
	}
	return res, nil
}
