// Package report renders appointment lists as spreadsheets and PDF documents
// under the office letterhead. Rendering happens in memory; a Sink stores
// the result only once rendering has succeeded.
package report

import (
	"fmt"
	"time"

	"dg-agenda/internal/model"
)

// Letterhead lines printed at the top of every report.
const (
	Organization = "FDCUIC"
	FullName     = "Fonds de Développement des Cultures Urbaines et des Industries Créatives"
	Title        = "Gestion des rendez-vous du DG"
)

// Format is also the file extension.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat accepts "xlsx" or "pdf".
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatXLSX, FormatPDF:
		return f, nil
	}
	return "", fmt.Errorf("report: unknown format %q", s)
}

type Options struct {
	// GeneratedAt is printed on the report and used in the file name.
	GeneratedAt time.Time
	// Selection marks an export of hand-picked rows.
	Selection bool
}

func (o Options) at() time.Time {
	if o.GeneratedAt.IsZero() {
		return time.Now()
	}
	return o.GeneratedAt
}

// FileName is Rendez-vous_DG_<yyyy-mm-dd>.<format>, prefixed for selections.
func FileName(k Format, o Options) string {
	name := fmt.Sprintf("Rendez-vous_DG_%s.%s", o.at().Format("2006-01-02"), k)
	if o.Selection {
		name = "selection-" + name
	}
	return name
}

// Render produces the report in format k.
func Render(k Format, items []model.Appointment, o Options) ([]byte, error) {
	switch k {
	case FormatXLSX:
		return Spreadsheet(items, o)
	case FormatPDF:
		return PDF(items, o)
	}
	return nil, fmt.Errorf("report: unknown format %q", k)
}

var months = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// generated formats "Généré le 06 novembre 2025 à 10:00".
func generated(t time.Time) string {
	return fmt.Sprintf("Généré le %02d %s %d à %s", t.Day(), months[t.Month()-1], t.Year(), t.Format("15:04"))
}

// row is the seven report columns of a.
func row(a model.Appointment) []string {
	return []string{a.Date, a.Time, a.Interlocutor, a.Purpose, a.Location, a.Status.Label(), a.Comments}
}
