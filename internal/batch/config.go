// Package batch drives the ingestion pipeline over a set of files: per-file
// configuration, strictly sequential processing, one terminal status per
// file, and a batch-level summary. The pipeline functions themselves stay
// stateless; everything stateful (per-file settings, memoized parses) lives
// here, owned by the calling shell.
package batch

import (
	"path/filepath"
	"strings"
	"sync"

	"tabload/internal/ingest"
)

// IngestionConfig holds the user-editable settings for one file in a batch.
// It is created on first sight of a file, mutated as the user edits table or
// column names, and discarded when the file leaves the batch.
type IngestionConfig struct {
	// TableName is the cleaned destination table name.
	TableName string

	// Kind is the detected file kind.
	Kind ingest.Kind

	// Format applies to CSV/TXT only; nil means defaults.
	Format *ingest.FormatOptions

	// ColumnOverrides, when non-nil, are the user's replacement column
	// names. They are applied only when their count matches the parsed
	// column count; see ingest.ResolveColumns.
	ColumnOverrides []string
}

// ConfigStore maps filenames to their IngestionConfig and memoizes the
// parsed table per file, so repeated previews don't reparse. It is owned by
// the calling shell and passed into batch runs; the store is safe for
// concurrent use, though batch processing itself is strictly sequential.
type ConfigStore struct {
	mu      sync.Mutex
	configs map[string]*IngestionConfig
	tables  map[string]*ingest.Table
}

// NewConfigStore returns an empty store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{
		configs: make(map[string]*IngestionConfig),
		tables:  make(map[string]*ingest.Table),
	}
}

// Ensure returns the config for filename, creating it with defaults on
// first sight: table name cleaned from the filename stem, kind from the
// extension. ok is false when the extension is unrecognized; no config is
// created in that case.
func (s *ConfigStore) Ensure(filename string) (*IngestionConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg, exists := s.configs[filename]; exists {
		return cfg, true
	}

	kind, ok := ingest.DetectKind(filename)
	if !ok {
		return nil, false
	}

	cfg := &IngestionConfig{
		TableName: DefaultTableName(filename),
		Kind:      kind,
	}
	if kind == ingest.KindCSV || kind == ingest.KindTXT {
		cfg.Format = ingest.DefaultFormatOptions()
	}
	s.configs[filename] = cfg
	return cfg, true
}

// SetTableName updates the destination table, cleaning the input first so
// the stored name is always load-safe.
func (s *ConfigStore) SetTableName(filename, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg, ok := s.configs[filename]; ok {
		cfg.TableName = ingest.CleanTableName(name)
	}
}

// SetOverrides replaces the column overrides for filename.
func (s *ConfigStore) SetOverrides(filename string, overrides []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg, ok := s.configs[filename]; ok {
		cfg.ColumnOverrides = overrides
	}
}

// SetFormat replaces the format options for filename and invalidates the
// memoized parse, since the same bytes now decode differently.
func (s *ConfigStore) SetFormat(filename string, opts *ingest.FormatOptions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg, ok := s.configs[filename]; ok {
		cfg.Format = opts
		delete(s.tables, filename)
	}
}

// Table returns the parsed table for filename, parsing at most once per
// (filename, format) pair.
func (s *ConfigStore) Table(filename string, data []byte) (*ingest.Table, error) {
	s.mu.Lock()
	if t, ok := s.tables[filename]; ok {
		s.mu.Unlock()
		return t, nil
	}
	cfg := s.configs[filename]
	s.mu.Unlock()

	if cfg == nil {
		if _, ok := s.Ensure(filename); !ok {
			return nil, &ingest.UnsupportedKindError{File: filename}
		}
		return s.Table(filename, data)
	}

	t, err := ingest.Parse(data, filename, cfg.Kind, cfg.Format)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.tables[filename] = t
	s.mu.Unlock()
	return t, nil
}

// Remove drops all state for a file that left the batch.
func (s *ConfigStore) Remove(filename string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.configs, filename)
	delete(s.tables, filename)
}

// DefaultTableName derives the destination table from a filename stem,
// e.g. "sales report.csv" -> "SALES_REPORT".
func DefaultTableName(filename string) string {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return ingest.CleanTableName(stem)
}
