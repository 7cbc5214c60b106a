// Package duckdb implements warehouse.Writer for DuckDB, useful as a local
// analytical destination. Only the schema and table parts of the target
// apply; the Database part is ignored.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"tabload/internal/warehouse"
)

type writer struct {
	db *sql.DB
}

func init() {
	warehouse.Register("duckdb", New)
}

// New opens (or creates) the DuckDB database at cfg.DSN. An empty DSN means
// an in-memory database.
func New(ctx context.Context, cfg warehouse.Config) (warehouse.Writer, error) {
	db, err := sql.Open("duckdb", cfg.DSN)
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
	name := tableName(target)

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
		b.WriteString(quoteIdent(c))
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

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tableName(target))
	b.WriteString(" (")
	for i, c := range rel.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(c))
	}
	b.WriteString(") VALUES (")
	b.WriteString(strings.TrimRight(strings.Repeat("?,", len(rel.Columns)), ","))
	b.WriteString(")")

	stmt, err := tx.PrepareContext(ctx, b.String())
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
			if cell.Valid {
				args[j] = cell.String
			}
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

func tableName(target warehouse.Target) string {
	if target.Schema != "" {
		return quoteIdent(target.Schema) + "." + quoteIdent(target.Table)
	}
	return quoteIdent(target.Table)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
