// Package dataset loads tabular sales data and computes the deterministic
// metrics the reader stage reports.
package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Table is an ordered set of columns and rows. Cell values are JSON
// compatible: float64 for numeric cells, string otherwise, nil for blanks.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of a column, or -1.
func (t *Table) Index(column string) int {
	if t == nil {
		return -1
	}
	for i, name := range t.Columns {
		if name == column {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the column exists.
func (t *Table) HasColumn(column string) bool {
	return t.Index(column) >= 0
}

// Value returns the cell at row/column, or nil.
func (t *Table) Value(row int, column string) any {
	idx := t.Index(column)
	if idx < 0 || row < 0 || row >= t.Len() || idx >= len(t.Rows[row]) {
		return nil
	}
	return t.Rows[row][idx]
}

// Float returns the numeric value of a cell.
func (t *Table) Float(row int, column string) (float64, bool) {
	return toFloat(t.Value(row, column))
}

// Label returns the cell rendered as a grouping key.
func (t *Table) Label(row int, column string) string {
	return formatCell(t.Value(row, column))
}

// Records returns one ordered map per row, keyed by column name in column order.
func (t *Table) Records() []*orderedmap.OrderedMap[string, any] {
	if t == nil {
		return nil
	}
	out := make([]*orderedmap.OrderedMap[string, any], 0, len(t.Rows))
	for _, row := range t.Rows {
		record := orderedmap.New[string, any]()
		for i, column := range t.Columns {
			if i < len(row) {
				record.Set(column, row[i])
			} else {
				record.Set(column, nil)
			}
		}
		out = append(out, record)
	}
	return out
}

// Head returns a table with at most n rows sharing this table's columns.
func (t *Table) Head(n int) *Table {
	if n > t.Len() {
		n = t.Len()
	}
	return &Table{Columns: t.Columns, Rows: t.Rows[:n]}
}

// ParseCell converts a raw text cell into a number when it parses as one.
func ParseCell(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}
	return raw
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func formatCell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
