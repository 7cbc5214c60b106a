// Package mssql implements warehouse.Writer for SQL Server.
//
// Loads use the driver's bulk-copy protocol; continue-on-error falls back to
// per-row INSERTs, matching the Postgres backend's behavior.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mssqldb "github.com/microsoft/go-mssqldb"

	"tabload/internal/warehouse"
)

type writer struct {
	db *sql.DB
}

func init() {
	warehouse.Register("mssql", New)
}

// New opens a SQL Server connection from cfg.DSN (sqlserver:// URL or ADO
// string, whatever the driver accepts).
func New(ctx context.Context, cfg warehouse.Config) (warehouse.Writer, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
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
			return fmt.Errorf("drop table %s: %w", target, err)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (", objectID(target), name)
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mssqlIdent(c))
		b.WriteString(" NVARCHAR(MAX) NULL")
	}
	b.WriteString(")")

	if _, err := w.db.ExecContext(ctx, b.String()); err != nil {
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

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, mssqldb.CopyIn(bulkName(target), mssqldb.BulkOptions{}, rel.Columns...))
	if err != nil {
		return 0, fmt.Errorf("prepare bulk copy into %s: %w", target, err)
	}
	defer stmt.Close()

	for _, src := range rel.Rows {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, rowArgs(src)...); err != nil {
			return 0, fmt.Errorf("bulk copy into %s: %w", target, err)
		}
	}

	// The final empty Exec flushes the bulk batch and reports the count.
	res, err := stmt.ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("flush bulk copy into %s: %w", target, err)
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

func (w *writer) writeRowByRow(ctx context.Context, target warehouse.Target, rel *warehouse.Relation) (int64, error) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tableName(target))
	b.WriteString(" (")
	for i, c := range rel.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mssqlIdent(c))
	}
	b.WriteString(") VALUES (")
	for i := range rel.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "@p%d", i+1)
	}
	b.WriteString(")")
	stmt := b.String()

	var written int64
	for _, src := range rel.Rows {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if _, err := w.db.ExecContext(ctx, stmt, rowArgs(src)...); err != nil {
			continue
		}
		written++
	}
	return written, nil
}

func rowArgs(src []sql.NullString) []any {
	args := make([]any, len(src))
	for j, cell := range src {
		if cell.Valid {
			args[j] = cell.String
		}
	}
	return args
}

func tableName(target warehouse.Target) string {
	parts := make([]string, 0, 3)
	if target.Database != "" {
		parts = append(parts, mssqlIdent(target.Database))
	}
	if target.Schema != "" {
		parts = append(parts, mssqlIdent(target.Schema))
	} else if target.Database != "" {
		parts = append(parts, mssqlIdent("dbo"))
	}
	parts = append(parts, mssqlIdent(target.Table))
	return strings.Join(parts, ".")
}

// bulkName is the unbracketed form the bulk-copy prepare expects.
func bulkName(target warehouse.Target) string {
	parts := make([]string, 0, 3)
	if target.Database != "" {
		parts = append(parts, target.Database)
	}
	if target.Schema != "" {
		parts = append(parts, target.Schema)
	}
	parts = append(parts, target.Table)
	return strings.Join(parts, ".")
}

// objectID is the unquoted dotted name for OBJECT_ID lookups.
func objectID(target warehouse.Target) string {
	return bulkName(target)
}

func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}
