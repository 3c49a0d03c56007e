package render

import (
	"bytes"
	"fmt"

	"github.com/CK6170/dataplot-go/plot"
	"github.com/xuri/excelize/v2"
)

// Sheet names used by Workbook.
const (
	DataSheet  = "Data"
	StatsSheet = "Stats"
)

// Workbook exports t as an .xlsx file with a data sheet and a per-column
// statistics sheet. Gaps in line tables are left as empty cells.
func Workbook(t plot.Table) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", DataSheet); err != nil {
		return nil, err
	}
	if err := writeRows(f, DataSheet, t.Header, t.Rows); err != nil {
		return nil, err
	}
	if len(t.Header) > 0 {
		if err := f.AutoFilter(DataSheet, fmt.Sprintf("A1:%s%d", column(len(t.Header)), len(t.Rows)+1), nil); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(StatsSheet); err != nil {
		return nil, err
	}
	stats := make([][]any, 0, len(t.Stats))
	for _, s := range t.Stats {
		if s.Count == 0 {
			stats = append(stats, []any{s.Column, 0})
			continue
		}
		stats = append(stats, []any{s.Column, s.Count, s.Min, s.Max, s.Mean})
	}
	if err := writeRows(f, StatsSheet, []string{"column", "count", "min", "max", "mean"}, stats); err != nil {
		return nil, err
	}
	if t.Title != "" {
		if err := f.SetDocProps(&excelize.DocProperties{Title: t.Title, Creator: "dataplot"}); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

func writeRows(f *excelize.File, sheet string, header []string, rows [][]any) error {
	head := make([]any, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return err
		}
	}
	return nil
}

// column returns the spreadsheet letter for a 1-based column number.
func column(n int) string {
	name, err := excelize.ColumnNumberToName(n)
	if err != nil {
		return "A"
	}
	return name
}
