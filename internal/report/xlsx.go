package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"dg-agenda/internal/model"
)

const sheet = "Rendez-vous"

var xlsxHeaders = []string{
	"Date", "Heure", "Interlocuteur", "Motif / Objet du rendez-vous", "Lieu", "Statut", "Commentaires / Préparation",
}

var xlsxWidths = []float64{12, 10, 25, 40, 20, 15, 35}

// first table row; rows above hold the letterhead
const xlsxHeaderRow = 7

// Spreadsheet renders items as a single-sheet workbook.
func Spreadsheet(items []model.Appointment, o Options) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}

	set := func(col, r int, v any) error {
		cell, err := excelize.CoordinatesToCellName(col, r)
		if err != nil {
			return err
		}
		return f.SetCellValue(sheet, cell, v)
	}
	merge := func(r int) error {
		from, _ := excelize.CoordinatesToCellName(1, r)
		to, _ := excelize.CoordinatesToCellName(len(xlsxHeaders), r)
		return f.MergeCell(sheet, from, to)
	}

	head := map[int]string{1: Organization, 2: FullName, 3: Title, 5: generated(o.at())}
	for r, text := range head {
		if err := set(1, r, text); err != nil {
			return nil, fmt.Errorf("xlsx: %w", err)
		}
		if err := merge(r); err != nil {
			return nil, fmt.Errorf("xlsx: %w", err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}
	for i, h := range xlsxHeaders {
		if err := set(i+1, xlsxHeaderRow, h); err != nil {
			return nil, fmt.Errorf("xlsx: %w", err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(xlsxHeaders), xlsxHeaderRow)
	if err := f.SetCellStyle(sheet, "A1", "A1", bold); err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}
	if err := f.SetCellStyle(sheet, fmt.Sprintf("A%d", xlsxHeaderRow), last, bold); err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}

	for i, a := range items {
		for j, v := range row(a) {
			if err := set(j+1, xlsxHeaderRow+1+i, v); err != nil {
				return nil, fmt.Errorf("xlsx: %w", err)
			}
		}
	}

	for i, w := range xlsxWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return nil, fmt.Errorf("xlsx: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
