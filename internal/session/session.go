// Package session exposes the destination context a driver shows the user:
// who they are connected as and which databases/schemas they can target.
// It is a leaf collaborator of the drivers; the pipeline never touches it.
package session

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Context is the current destination context.
type Context struct {
	Database  string `json:"database"`
	Schema    string `json:"schema"`
	Role      string `json:"role"`
	Warehouse string `json:"warehouse"`
}

// Provider reports the current context and enumerates selectable targets.
type Provider interface {
	Current(ctx context.Context) (Context, error)
	ListDatabases(ctx context.Context) ([]string, error)
	ListSchemas(ctx context.Context, database string) ([]string, error)
}

// Static is a fixed-context provider for configurations without a queryable
// catalog (SQLite/DuckDB files, tests).
type Static struct {
	Ctx       Context
	Databases []string
	Schemas   map[string][]string
}

func (s *Static) Current(context.Context) (Context, error) { return s.Ctx, nil }

func (s *Static) ListDatabases(context.Context) ([]string, error) {
	return s.Databases, nil
}

func (s *Static) ListSchemas(_ context.Context, database string) ([]string, error) {
	return s.Schemas[database], nil
}

// Postgres queries the catalog of a Postgres destination.
type Postgres struct {
	Pool *pgxpool.Pool
}

// NewPostgres connects a catalog provider to dsn.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("session pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("session ping: %w", err)
	}
	return &Postgres{Pool: pool}, nil
}

// Close releases the underlying pool.
func (p *Postgres) Close() { p.Pool.Close() }

func (p *Postgres) Current(ctx context.Context) (Context, error) {
	var out Context
	err := p.Pool.QueryRow(ctx,
		"SELECT current_database(), current_schema(), current_user",
	).Scan(&out.Database, &out.Schema, &out.Role)
	if err != nil {
		return Context{}, fmt.Errorf("current session: %w", err)
	}
	return out, nil
}

func (p *Postgres) ListDatabases(ctx context.Context) ([]string, error) {
	rows, err := p.Pool.Query(ctx,
		"SELECT datname FROM pg_database WHERE NOT datistemplate ORDER BY datname",
	)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (p *Postgres) ListSchemas(ctx context.Context, database string) ([]string, error) {
	// Postgres catalogs are per-database; the database argument is
	// display-only here and schemas come from the connected catalog.
	_ = database

	rows, err := p.Pool.Query(ctx,
		`SELECT schema_name FROM information_schema.schemata
		 WHERE schema_name NOT IN ('pg_catalog', 'information_schema')
		 ORDER BY schema_name`,
	)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
