package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"dg-agenda/internal/model"
)

var (
	pdfHeaders = []string{"Date", "Heure", "Interlocuteur", "Motif / Objet", "Lieu", "Statut", "Commentaires"}
	// the last column takes what is left of the printable width
	pdfWidths = []float64{25, 20, 40, 60, 35, 30, 0}
)

const (
	pdfMargin = 15.0
	pdfLine   = 5.0
	pdfPad    = 1.5
)

// PDF renders items as a landscape A4 PDF with the letterhead on the
// first page and a "generated at, page i/n" footer on every page.
func PDF(items []model.Appointment, o Options) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	// core fonts are cp1252
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, pageH := pdf.GetPageSize()

	widths := append([]float64(nil), pdfWidths...)
	used := 0.0
	for _, w := range widths {
		used += w
	}
	widths[len(widths)-1] = pageW - 2*pdfMargin - used

	stamp := generated(o.at())
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.AliasNbPages("{nb}")
	pdf.SetFooterFunc(func() {
		pdf.SetY(pageH - 10)
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("%s - Page %d/{nb}", stamp, pdf.PageNo())), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 8, Organization, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, tr("Fonds de Développement des Cultures Urbaines"), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 5, tr("et des Industries Créatives"), "", 1, "C", false, 0, "")
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, tr(Title), "", 1, "C", false, 0, "")
	pdf.SetLineWidth(0.5)
	y := pdf.GetY() + 2
	pdf.Line(pdfMargin, y, pageW-pdfMargin, y)
	pdf.SetY(y + 5)

	header := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(0, 71, 187)
		pdf.SetTextColor(255, 255, 255)
		x := pdfMargin
		for i, h := range pdfHeaders {
			pdf.SetX(x)
			pdf.CellFormat(widths[i], 7, tr(h), "1", 0, "C", true, 0, "")
			x += widths[i]
		}
		pdf.Ln(7)
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(0, 0, 0)
	}
	header()

	bottom := pageH - pdfMargin - 5
	for n, a := range items {
		cells := row(a)
		lines := make([][][]byte, len(cells))
		height := 0.0
		for i, c := range cells {
			lines[i] = pdf.SplitLines([]byte(tr(c)), widths[i]-2*pdfPad)
			height = max(height, float64(max(len(lines[i]), 1))*pdfLine+2*pdfPad)
		}
		if pdf.GetY()+height > bottom {
			pdf.AddPage()
			header()
		}

		y := pdf.GetY()
		x := pdfMargin
		fill := n%2 == 1
		if fill {
			pdf.SetFillColor(245, 245, 245)
		}
		for i := range cells {
			style := "D"
			if fill {
				style = "FD"
			}
			pdf.Rect(x, y, widths[i], height, style)
			for k, l := range lines[i] {
				pdf.SetXY(x+pdfPad, y+pdfPad+float64(k)*pdfLine)
				pdf.CellFormat(widths[i]-2*pdfPad, pdfLine, string(l), "", 0, "L", false, 0, "")
			}
			x += widths[i]
		}
		pdf.SetXY(pdfMargin, y+height)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: %w", err)
	}
	return buf.Bytes(), nil
}
