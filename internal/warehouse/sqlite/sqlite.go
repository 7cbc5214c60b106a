// Package sqlite implements warehouse.Writer for SQLite via modernc.org
// (pure Go, no cgo). SQLite has no database/schema levels, so only the table
// part of the target is used.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"tabload/internal/warehouse"
)

type writer struct {
	db *sql.DB
}

func init() {
	warehouse.Register("sqlite", New)
}

// New opens (or creates) the SQLite database at cfg.DSN.
func New(ctx context.Context, cfg warehouse.Config) (warehouse.Writer, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &writer{db: db}, nil
}

func (w *writer) Close() { _ = w.db.Close() }

func (w *writer) EnsureTable(ctx context.Context, target warehouse.Target, columns []string, overwrite bool) error {
	name := sqlIdent(target.Table)

	if overwrite {
		if _, err := w.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
			return fmt.Errorf("drop table %s: %w", target.Table, err)
		}
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(name)
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c))
		b.WriteString(" TEXT")
	}
	b.WriteString(")")

	if _, err := w.db.ExecContext(ctx, b.String()); err != nil {
		return fmt.Errorf("create table %s: %w", target.Table, err)
	}
	return nil
}

func (w *writer) WriteRows(ctx context.Context, target warehouse.Target, rel *warehouse.Relation, continueOnError bool) (int64, error) {
	if rel.RowCount() == 0 {
		return 0, nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSQL(target.Table, rel.Columns))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var written int64
	for _, src := range rel.Rows {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		args := make([]any, len(src))
		for j, cell := range src {
			args[j] = cell
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			if continueOnError {
				continue
			}
			return 0, fmt.Errorf("insert into %s: %w", target.Table, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return written, nil
}

func insertSQL(table string, columns []string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c))
	}
	b.WriteString(") VALUES (")
	b.WriteString(strings.TrimRight(strings.Repeat("?,", len(columns)), ","))
	b.WriteString(")")
	return b.String()
}

func sqlIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
