package ingest

import (
	"database/sql"
	"fmt"

	"tabload/internal/warehouse"
)

// nullTokens are the cell spellings mapped to SQL NULL instead of loaded as
// literal text. These are the textual forms "missing value" markers take
// once a dataframe-style source is stringified, plus the empty field itself.
var nullTokens = map[string]struct{}{
	"":     {},
	"<NA>": {},
	"nan":  {},
	"NaN":  {},
	"None": {},
}

// CoerceForLoad converts a parsed table into the relation handed to a
// warehouse writer: every cell becomes its text form, empty-like tokens
// become NULL, and columns take the resolved identifiers.
//
// Errors:
//   - ErrEmptyTable when the table parsed to zero rows; the caller reports
//     "nothing to load" and must not attempt a write.
//   - A plain error when finalColumns does not match the table width, which
//     indicates a caller bug (ResolveColumns always preserves the count).
func CoerceForLoad(t *Table, finalColumns []string) (*warehouse.Relation, error) {
	if len(finalColumns) != len(t.OriginalColumns) {
		return nil, fmt.Errorf("%s: resolved %d columns for %d-column table",
			t.File, len(finalColumns), len(t.OriginalColumns))
	}
	if t.RowCount() == 0 {
		return nil, fmt.Errorf("%s: %w", t.File, ErrEmptyTable)
	}

	rows := make([][]sql.NullString, len(t.Rows))
	for i, src := range t.Rows {
		row := make([]sql.NullString, len(finalColumns))
		for j := range finalColumns {
			var v string
			if j < len(src) {
				v = src[j]
			}
			if _, isNull := nullTokens[v]; isNull {
				row[j] = warehouse.Null()
			} else {
				row[j] = warehouse.Text(v)
			}
		}
		rows[i] = row
	}

	cols := make([]string, len(finalColumns))
	copy(cols, finalColumns)

	return &warehouse.Relation{Columns: cols, Rows: rows}, nil
}
