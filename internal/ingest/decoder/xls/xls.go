// Package xls registers the legacy BIFF spreadsheet decoder. Blank import it
// to make .xls files parseable.
package xls

import (
	"bytes"
	"fmt"

	extxls "github.com/extrame/xls"

	"tabload/internal/ingest/decoder"
)

func init() {
	decoder.Register("xls", dec{})
}

type dec struct{}

// Decode reads the first worksheet of an .xls workbook into a grid.
func (dec) Decode(data []byte) ([][]string, error) {
	wb, err := extxls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	if wb.NumSheets() == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("workbook has no readable sheet")
	}

	var grid [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol())
		// Cells before FirstCol are absent in the file; keep positions
		// aligned by filling them as empty.
		for j := 0; j < row.FirstCol(); j++ {
			cells = append(cells, "")
		}
		for j := row.FirstCol(); j < row.LastCol(); j++ {
			cells = append(cells, row.Col(j))
		}
		grid = append(grid, cells)
	}
	return grid, nil
}
