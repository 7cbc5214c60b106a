// Package postgres implements warehouse.Writer for Postgres.
//
// Loads go through COPY for speed; when the caller asks to continue past bad
// rows, the backend falls back to per-row INSERTs so one rejected row cannot
// sink the whole load.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tabload/internal/warehouse"
)

type writer struct {
	pool *pgxpool.Pool
}

func init() {
	warehouse.Register("postgres", New)
}

// New creates a Postgres-backed writer from cfg.DSN.
func New(ctx context.Context, cfg warehouse.Config) (warehouse.Writer, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &writer{pool: pool}, nil
}

func (w *writer) Close() { w.pool.Close() }

func (w *writer) EnsureTable(ctx context.Context, target warehouse.Target, columns []string, overwrite bool) error {
	name := tableName(target)

	if overwrite {
		if _, err := w.pool.Exec(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
			return fmt.Errorf("drop table %s: %w", target, err)
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
		b.WriteString(pgIdent(c))
		b.WriteString(" TEXT")
	}
	b.WriteString(")")

	if _, err := w.pool.Exec(ctx, b.String()); err != nil {
		return fmt.Errorf("create table %s: %w", target, err)
	}
	return nil
}

func (w *writer) WriteRows(ctx context.Context, target warehouse.Target, rel *warehouse.Relation, continueOnError bool) (int64, error) {
	if rel.RowCount() == 0 {
		return 0, nil
	}

	if continueOnError {
		return w.writeRowByRow(ctx, target, rel)
	}

	rows := make([][]any, len(rel.Rows))
	for i, src := range rel.Rows {
		row := make([]any, len(src))
		for j, cell := range src {
			if cell.Valid {
				row[j] = cell.String
			}
		}
		rows[i] = row
	}

	n, err := w.pool.CopyFrom(ctx, identifier(target), rel.Columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", target, err)
	}
	return n, nil
}

// writeRowByRow trades COPY throughput for per-row error isolation.
func (w *writer) writeRowByRow(ctx context.Context, target warehouse.Target, rel *warehouse.Relation) (int64, error) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tableName(target))
	b.WriteString(" (")
	for i, c := range rel.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
	b.WriteString(") VALUES (")
	for i := range rel.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", i+1)
	}
	b.WriteString(")")
	stmt := b.String()

	var written int64
	for _, src := range rel.Rows {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		args := make([]any, len(src))
		for j, cell := range src {
			if cell.Valid {
				args[j] = cell.String
			}
		}
		if _, err := w.pool.Exec(ctx, stmt, args...); err != nil {
			continue
		}
		written++
	}
	return written, nil
}

// identifier builds the pgx COPY target. Postgres cannot COPY across
// databases, so only schema and table participate.
func identifier(target warehouse.Target) pgx.Identifier {
	if target.Schema != "" {
		return pgx.Identifier{target.Schema, target.Table}
	}
	return pgx.Identifier{target.Table}
}

func tableName(target warehouse.Target) string {
	if target.Schema != "" {
		return pgIdent(target.Schema) + "." + pgIdent(target.Table)
	}
	return pgIdent(target.Table)
}

// pgIdent quotes an identifier for direct SQL interpolation.
func pgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
