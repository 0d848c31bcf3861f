package disposals

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

var historyHeader = []interface{}{
	"Data",
	"Ecoponto",
	"Categoria",
	"Material",
	"Quantidade",
	"Unidade",
	"Pontos",
	"Status",
}

// HistoryWorkbook renders records as a single-sheet xlsx file.
// Timestamps are shown in loc; nil means UTC.
func HistoryWorkbook(records []Record, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetRow(sheet, "A1", &historyHeader); err != nil {
		return nil, fmt.Errorf("history header: %w", err)
	}

	row := 2
	for _, r := range records {
		var qty interface{}
		switch {
		case r.Count != nil:
			qty = *r.Count
		case r.Mass != nil:
			qty = *r.Mass
		default:
			qty = ""
		}
		excelRow := []interface{}{
			r.CreatedAt.In(loc).Format("02/01/2006 15:04"),
			r.SiteID,
			r.Category,
			r.MaterialID,
			qty,
			r.Unit().Label(),
			r.PointsAwarded,
			string(r.Status),
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, fmt.Errorf("history cell: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &excelRow); err != nil {
			return nil, fmt.Errorf("history row %d: %w", row, err)
		}
		row++
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("history write: %w", err)
	}
	return buf.Bytes(), nil
}
