// Package warehouse defines the load-side boundary of the pipeline: the
// Relation handed to a destination and the Writer interface each backend
// implements. Backends register themselves with the factory from init(), so
// binaries choose their destinations by blank import (warehouse/all for
// everything), mirroring how parsers pick up optional decoders.
package warehouse

import "database/sql"

// Relation is the tabular result ready for warehouse load: rows of
// text-or-null cells under resolved column identifiers. All destination
// columns are text; typing beyond NULL-ness is the destination's concern.
type Relation struct {
	Columns []string
	Rows    [][]sql.NullString
}

// RowCount reports the number of data rows.
func (r *Relation) RowCount() int { return len(r.Rows) }

// ColumnCount reports the number of columns.
func (r *Relation) ColumnCount() int { return len(r.Columns) }

// Text builds a valid (non-null) cell.
func Text(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

// Null builds a null cell.
func Null() sql.NullString {
	return sql.NullString{}
}
