// Package xlsx registers the OOXML spreadsheet decoder. Blank import it to
// make .xlsx files parseable.
package xlsx

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"tabload/internal/ingest/decoder"
)

func init() {
	decoder.Register("xlsx", dec{})
}

type dec struct{}

// Decode reads the first sheet of an .xlsx workbook into a grid. Rows come
// back as excelize produces them, with trailing empty cells trimmed; the
// parser pads them against the header.
func (dec) Decode(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}
