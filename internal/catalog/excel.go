package catalog

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/concierge/internal/models"
)

// ParseXLSX reads the first sheet of an Excel workbook. The header row must contain
// "question" and "answer" columns (case-insensitive); fully blank rows are skipped.
// Entry indexes in errors count data rows from zero.
func ParseXLSX(path string) ([]models.FAQEntry, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &FormatError{Source: path, Index: -1, Reason: "workbook has no sheets"}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, &FormatError{Source: path, Index: -1, Reason: "sheet is empty"}
	}

	qCol, aCol := -1, -1
	for i, h := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "question":
			qCol = i
		case "answer":
			aCol = i
		}
	}
	if qCol < 0 || aCol < 0 {
		return nil, &FormatError{Source: path, Index: -1, Reason: `header row must name "question" and "answer" columns`}
	}

	entries := make([]models.FAQEntry, 0, len(rows)-1)
	for i, row := range rows[1:] {
		q, a := cell(row, qCol), cell(row, aCol)
		if strings.TrimSpace(q) == "" && strings.TrimSpace(a) == "" {
			continue
		}
		if strings.TrimSpace(q) == "" {
			return nil, &FormatError{Source: path, Index: i, Reason: `"question" is empty`}
		}
		if strings.TrimSpace(a) == "" {
			return nil, &FormatError{Source: path, Index: i, Reason: `"answer" is empty`}
		}
		entries = append(entries, models.FAQEntry{Question: q, Answer: a})
	}
	return entries, nil
}

// cell returns row[i], or "" when the row is shorter (excelize trims trailing empty cells).
func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
