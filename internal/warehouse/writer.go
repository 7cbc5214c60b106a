package warehouse

import (
	"context"
	"fmt"
	"sync"
)

// Config selects and configures a warehouse backend.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is
//     backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// WritePolicy controls how a relation replaces or extends the destination
// table. It models the original load behavior: overwrite the table and keep
// going past individual bad rows.
type WritePolicy struct {
	// Overwrite drops and recreates the destination table before loading.
	// When false the table is created only if missing and rows append.
	Overwrite bool

	// ContinueOnError skips rows the destination rejects instead of
	// failing the load. The returned row count reflects rows actually
	// written.
	ContinueOnError bool
}

// Target names the destination table. Database and Schema are optional;
// backends apply as much qualification as the destination supports (SQLite
// and DuckDB ignore Database, for example).
type Target struct {
	Database string
	Schema   string
	Table    string
}

// String renders the fully qualified display form, e.g. "DB.SCHEMA.TABLE".
func (t Target) String() string {
	switch {
	case t.Database != "" && t.Schema != "":
		return t.Database + "." + t.Schema + "." + t.Table
	case t.Schema != "":
		return t.Schema + "." + t.Table
	default:
		return t.Table
	}
}

// Writer is the backend-agnostic destination for one load. Implementations
// must treat every column as text and accept NULL cells.
//
// IMPORTANT: This interface is intentionally minimal. Each backend
// implements the semantics in its own idiomatic way (Postgres COPY, MSSQL
// bulk copy, plain transactional inserts for SQLite/DuckDB).
type Writer interface {
	// Close releases backend resources. Call once at the end of a batch.
	Close()

	// EnsureTable creates the destination table with text columns. With
	// overwrite set, an existing table is dropped first.
	EnsureTable(ctx context.Context, target Target, columns []string, overwrite bool) error

	// WriteRows loads the relation into the (already ensured) table and
	// returns the number of rows written. With continueOnError set,
	// rejected rows are skipped rather than failing the load.
	WriteRows(ctx context.Context, target Target, rel *Relation, continueOnError bool) (int64, error)
}

type factory func(ctx context.Context, cfg Config) (Writer, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register installs a backend factory under a kind (e.g. "postgres").
//
// Edge cases:
//   - kind must be non-empty and f non-nil.
//   - Registering the same kind twice panics, to fail fast on ambiguous
//     backend selection.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("warehouse: Register called with empty kind")
	}
	if f == nil {
		panic("warehouse: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("warehouse: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Writer using the registered backend factory.
//
// Errors:
//   - If cfg.Kind is empty or not registered.
//   - Whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Writer, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("warehouse: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("warehouse: unsupported kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
