package extract

import (
	"fmt"
	"strings"
)

// SheetField names the column added to workbook rows to record their sheet.
const SheetField = "_sheet"

type Field struct {
	Key   string
	Value string
}

// Row is an ordered mapping from column name to value.
type Row []Field

func (r Row) Keys() []string {
	keys := make([]string, len(r))
	for i, f := range r {
		keys[i] = f.Key
	}
	return keys
}

func (r Row) Get(key string) (string, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

func rowFromCells(headers, cells []string) Row {
	row := make(Row, len(headers))
	for i, h := range headers {
		var v string
		if i < len(cells) {
			v = strings.TrimSpace(cells[i])
		}
		row[i] = Field{Key: h, Value: v}
	}
	return row
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// normalizeHeaders trims names, names empty columns by position and suffixes
// duplicates so every key in a row is unique.
func normalizeHeaders(cells []string) []string {
	headers := make([]string, len(cells))
	seen := make(map[string]int, len(cells))
	for i, c := range cells {
		name := strings.TrimSpace(strings.TrimPrefix(c, "\ufeff"))
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		headers[i] = name
	}
	return headers
}
