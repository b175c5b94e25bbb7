package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const utf8BOM = "\ufeff"

// ParseCSV reads a CSV document whose first row is the header.
func ParseCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return fromRows(rows)
}

// ParseCSVString is ParseCSV over an in-memory document.
func ParseCSVString(text string) (*Table, error) {
	return ParseCSV(strings.NewReader(text))
}

// CSV renders the table as CSV text with a header row.
func (t *Table) CSV() string {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	_ = writer.Write(t.Columns)
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i := range t.Columns {
			record[i] = ""
			if i < len(row) {
				record[i] = formatCell(row[i])
			}
		}
		_ = writer.Write(record)
	}
	writer.Flush()
	return buf.String()
}

// fromRows builds a table from a header row followed by text rows.
func fromRows(rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("dataset has no header row")
	}
	if err := checkEncoding(rows); err != nil {
		return nil, err
	}
	header := make([]string, len(rows[0]))
	for i, name := range rows[0] {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		header[i] = strings.TrimSpace(name)
	}

	table := &Table{Columns: header, Rows: make([][]any, 0, len(rows)-1)}
	for _, raw := range rows[1:] {
		if isBlankRow(raw) {
			continue
		}
		row := make([]any, len(header))
		for i := range header {
			if i < len(raw) {
				row[i] = ParseCell(raw[i])
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// checkEncoding rejects cells that are not UTF-8 text, such as a Latin-1 export.
func checkEncoding(rows [][]string) error {
	for line, row := range rows {
		for column, cell := range row {
			if !utf8.ValidString(cell) {
				return fmt.Errorf("dataset is not valid UTF-8 (row %d, column %d); re-encode it as UTF-8", line+1, column+1)
			}
		}
	}
	return nil
}

func isBlankRow(raw []string) bool {
	for _, cell := range raw {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
