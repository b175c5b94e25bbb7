package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// FromRecordsJSON decodes a JSON array of objects. Columns follow the order
// in which field names are first seen across the records.
func FromRecordsJSON(raw []byte) (*Table, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("records must be a list")
	}
	var objects []*orderedmap.OrderedMap[string, any]
	if err := json.Unmarshal(trimmed, &objects); err != nil {
		return nil, fmt.Errorf("records must be a list of objects: %w", err)
	}

	table := &Table{}
	index := map[string]int{}
	rows := make([]map[string]any, 0, len(objects))
	for _, object := range objects {
		if object == nil {
			continue
		}
		row := make(map[string]any, object.Len())
		for pair := object.Oldest(); pair != nil; pair = pair.Next() {
			if _, ok := index[pair.Key]; !ok {
				index[pair.Key] = len(table.Columns)
				table.Columns = append(table.Columns, pair.Key)
			}
			row[pair.Key] = pair.Value
		}
		rows = append(rows, row)
	}
	table.Rows = alignRows(table.Columns, rows)
	return table, nil
}

func alignRows(columns []string, rows []map[string]any) [][]any {
	out := make([][]any, 0, len(rows))
	for _, record := range rows {
		row := make([]any, len(columns))
		for i, column := range columns {
			row[i] = record[column]
		}
		out = append(out, row)
	}
	return out
}
