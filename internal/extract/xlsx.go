package extract

import (
	"bytes"

	"github.com/xuri/excelize/v2"
)

// sheet is one worksheet read as a grid of cell text.
type sheet struct {
	name  string
	cells [][]string
}

// extractWorkbook reads every sheet with its first row as the header and
// concatenates the rows, tagging each with the sheet it came from.
func extractWorkbook(data []byte) (rows []Row, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, failure("xlsx", r)
		}
	}()

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, failure("xlsx", err)
	}
	defer f.Close()

	var sheets []sheet
	for _, name := range f.GetSheetList() {
		cells, err := f.GetRows(name)
		if err != nil {
			return nil, failure("xlsx", err)
		}
		sheets = append(sheets, sheet{name: name, cells: cells})
	}

	return sheetRows(sheets), nil
}

func sheetRows(sheets []sheet) []Row {
	var rows []Row
	for _, s := range sheets {
		var headers []string
		for _, record := range s.cells {
			if blank(record) {
				continue
			}
			if headers == nil {
				headers = normalizeHeaders(record)
				continue
			}
			row := rowFromCells(headers, record)
			rows = append(rows, append(row, Field{Key: SheetField, Value: s.name}))
		}
	}
	return rows
}
