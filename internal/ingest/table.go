package ingest

// PreviewRows is the default number of rows shown to a user before load.
const PreviewRows = 10

// Table is the in-memory result of parsing one file. Cells are raw text as
// read from the source; coercion to the load representation happens later in
// CoerceForLoad so the preview can show values as they appeared.
type Table struct {
	// File is the source filename the table was parsed from.
	File string

	// OriginalColumns holds the column names exactly as found in the file
	// (or positional defaults when no header row was present).
	OriginalColumns []string

	// Rows holds every data row. Each row has len(OriginalColumns) cells.
	Rows [][]string

	// Bytes is the size of the raw input, used by callers to decide
	// whether to surface a large-file progress signal.
	Bytes int
}

// RowCount reports the number of data rows (the header is never counted).
func (t *Table) RowCount() int { return len(t.Rows) }

// Preview returns at most n leading rows. The returned slice aliases the
// table's backing rows; callers must not mutate it.
func (t *Table) Preview(n int) [][]string {
	if n < 0 {
		n = 0
	}
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return t.Rows[:n]
}
