// Package htmltab registers the HTML table decoder. Blank import it to make
// .html/.htm files parseable: the first <table> element becomes the grid.
package htmltab

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"tabload/internal/ingest/decoder"
)

func init() {
	decoder.Register("html", dec{})
}

type dec struct{}

// Decode extracts the first <table> of an HTML document into a grid. Header
// cells (th) and data cells (td) are treated alike; the first row is the
// header by position, matching the other grid decoders.
func (dec) Decode(data []byte) ([][]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("document has no <table>")
	}

	var grid [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})
		if len(cells) > 0 {
			grid = append(grid, cells)
		}
	})
	return grid, nil
}
