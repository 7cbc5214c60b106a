// Package all links every optional decoder into the importing binary.
package all

import (
	_ "tabload/internal/ingest/decoder/htmltab"
	_ "tabload/internal/ingest/decoder/xls"
	_ "tabload/internal/ingest/decoder/xlsx"
)
