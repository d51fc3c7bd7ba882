package parser

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
)

// extractXLSX renders the first sheet of the workbook only.
func extractXLSX(data []byte) (string, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return "", err
	}
	if len(f.Sheets) == 0 {
		return "", nil
	}

	first := f.Sheets[0]
	rows := make([][]string, 0, len(first.Rows))
	for _, row := range first.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			cells[i] = cell.String()
		}
		rows = append(rows, cells)
	}
	return renderTable(rows), nil
}

// extractXLSM reads the first sheet of macro-enabled and template
// workbooks, which excelize opens directly.
func extractXLSM(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return "", fmt.Errorf("sheet %s: %w", sheets[0], err)
	}
	return renderTable(rows), nil
}

// renderTable lays rows out as right-aligned columns, first row as header.
// Fully blank rows are dropped.
func renderTable(rows [][]string) string {
	var kept [][]string
	cols := 0
	for _, row := range rows {
		blank := true
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				blank = false
				break
			}
		}
		if blank {
			continue
		}
		kept = append(kept, row)
		cols = max(cols, len(row))
	}
	if len(kept) == 0 {
		return ""
	}

	widths := make([]int, cols)
	for _, row := range kept {
		for i, cell := range row {
			widths[i] = max(widths[i], utf8.RuneCountInString(strings.TrimSpace(cell)))
		}
	}

	lines := make([]string, len(kept))
	for r, row := range kept {
		var b strings.Builder
		for i := 0; i < cols; i++ {
			cell := ""
			if i < len(row) {
				cell = strings.TrimSpace(row[i])
			}
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)))
			b.WriteString(cell)
		}
		lines[r] = strings.TrimRight(b.String(), " ")
	}
	return strings.Join(lines, "\n")
}
