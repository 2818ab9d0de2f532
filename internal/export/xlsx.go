package export

import (
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// SheetName is the name of the single worksheet in an XLSX export
const SheetName = "Responses"

// MaxColumnWidth caps column widths, in characters
const MaxColumnWidth = 50

const noDataText = "No data"

// writeXLSX renders the table as a single-sheet workbook with native cell
// values and columns sized to their longest value
func writeXLSX(t table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	if len(t.header) == 0 {
		if err := f.SetCellValue(SheetName, "A1", noDataText); err != nil {
			return nil, fmt.Errorf("failed to write placeholder: %w", err)
		}
		return workbookBytes(f)
	}

	header := make([]any, len(t.header))
	for i, h := range t.header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range t.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to address row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	for i, width := range columnWidths(t) {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("failed to name column %d: %w", i+1, err)
		}
		if err := f.SetColWidth(SheetName, col, col, float64(width)); err != nil {
			return nil, fmt.Errorf("failed to size column %s: %w", col, err)
		}
	}

	return workbookBytes(f)
}

// columnWidths sizes each column to its longest header or cell, counted in
// characters, plus two, capped at MaxColumnWidth
func columnWidths(t table) []int {
	widths := make([]int, len(t.header))
	for i, h := range t.header {
		longest := utf8.RuneCountInString(h)
		for _, row := range t.rows {
			if n := utf8.RuneCountInString(cellText(row[i])); n > longest {
				longest = n
			}
		}
		widths[i] = min(longest+2, MaxColumnWidth)
	}
	return widths
}

func workbookBytes(f *excelize.File) ([]byte, error) {
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
