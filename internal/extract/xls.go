package extract

import (
	"bytes"

	"github.com/extrame/xls"
)

// zipMagic opens every OOXML package. Workbooks saved as .xlsx and renamed to
// .xls carry it and are read as xlsx.
var zipMagic = []byte("PK\x03\x04")

// extractLegacyWorkbook reads a BIFF (.xls) workbook into the same rows
// extractWorkbook produces.
func extractLegacyWorkbook(data []byte) (rows []Row, err error) {
	if bytes.HasPrefix(data, zipMagic) {
		return extractWorkbook(data)
	}

	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, failure("xls", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, failure("xls", err)
	}

	var sheets []sheet
	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}

		s := sheet{name: ws.Name}
		for r := 0; r <= int(ws.MaxRow); r++ {
			row := ws.Row(r)
			if row == nil {
				continue
			}
			last := row.LastCol()
			if last <= 0 {
				continue
			}
			cells := make([]string, last)
			for c := row.FirstCol(); c < last; c++ {
				cells[c] = row.Col(c)
			}
			s.cells = append(s.cells, cells)
		}
		sheets = append(sheets, s)
	}

	return sheetRows(sheets), nil
}
