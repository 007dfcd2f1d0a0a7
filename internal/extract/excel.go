package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractExcel turns a workbook into note text: one line per non-empty row with the
// filled cells joined by " | ". When more than one sheet has content, each sheet
// starts with a "# <sheet name>" heading.
func extractExcel(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	type section struct {
		name  string
		lines []string
	}
	var sections []section
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		var lines []string
		for _, row := range rows {
			if line := rowText(row); line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			sections = append(sections, section{name: sheet, lines: lines})
		}
	}

	parts := make([]string, len(sections))
	for i, s := range sections {
		body := strings.Join(s.lines, "\n")
		if len(sections) > 1 {
			body = "# " + s.name + "\n" + body
		}
		parts[i] = body
	}
	return strings.Join(parts, "\n\n"), nil
}

func rowText(row []string) string {
	cells := make([]string, 0, len(row))
	for _, c := range row {
		if c = strings.TrimSpace(c); c != "" {
			cells = append(cells, c)
		}
	}
	return strings.Join(cells, " | ")
}
