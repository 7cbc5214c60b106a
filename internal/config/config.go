// Package config loads driver configuration from the environment. The
// pipeline itself takes everything as arguments; only the shells (CLI
// defaults, HTTP server) read configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Delimiters users may pick for CSV/TXT input.
var Delimiters = []string{",", ";", "|", "\t"}

// Config is the full driver configuration.
type Config struct {
	// ListenAddr is the HTTP server bind address.
	ListenAddr string

	// Warehouse selects and configures the load destination.
	WarehouseKind string
	WarehouseDSN  string

	// Database and Schema qualify destination tables. Both optional.
	Database string
	Schema   string

	// SessionDSN, when set, lets the server list databases/schemas for
	// target selection. Falls back to WarehouseDSN when empty.
	SessionDSN string

	// CSV parsing defaults applied to files without explicit options.
	CSVDelimiter string
	CSVHasHeader bool
	CSVQuote     string
	CSVTrimSpace bool

	// PreviewRows bounds how many rows previews return.
	PreviewRows int

	// MetricsBackend is "datadog" or "none".
	MetricsBackend string

	// JobName tags metrics.
	JobName string
}

// Load reads configuration from TABLOAD_* environment variables, applying
// defaults for unset values, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:     getenv("TABLOAD_LISTEN_ADDR", ":8080"),
		WarehouseKind:  getenv("TABLOAD_WAREHOUSE_KIND", "sqlite"),
		WarehouseDSN:   getenv("TABLOAD_WAREHOUSE_DSN", "file:tabload.db"),
		Database:       os.Getenv("TABLOAD_DATABASE"),
		Schema:         os.Getenv("TABLOAD_SCHEMA"),
		SessionDSN:     os.Getenv("TABLOAD_SESSION_DSN"),
		CSVDelimiter:   getenv("TABLOAD_CSV_DELIMITER", ","),
		CSVHasHeader:   getbool("TABLOAD_CSV_HAS_HEADER", true),
		CSVQuote:       getenv("TABLOAD_CSV_QUOTE", `"`),
		CSVTrimSpace:   getbool("TABLOAD_CSV_TRIM_SPACE", true),
		PreviewRows:    getint("TABLOAD_PREVIEW_ROWS", 10),
		MetricsBackend: getenv("TABLOAD_METRICS_BACKEND", "none"),
		JobName:        getenv("TABLOAD_JOB_NAME", "tabload"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field consistency. It does not verify DSNs; backend
// factories do that on connect.
func (c *Config) Validate() error {
	if c.WarehouseKind == "" {
		return fmt.Errorf("warehouse kind must be set")
	}
	if !contains(Delimiters, c.CSVDelimiter) {
		return fmt.Errorf("csv delimiter %q not in %q", c.CSVDelimiter, Delimiters)
	}
	if n := len([]rune(c.CSVQuote)); n > 1 {
		return fmt.Errorf("csv quote must be a single character, got %q", c.CSVQuote)
	}
	if c.PreviewRows < 1 {
		return fmt.Errorf("preview rows must be >= 1, got %d", c.PreviewRows)
	}
	switch c.MetricsBackend {
	case "datadog", "none":
	default:
		return fmt.Errorf("unknown metrics backend %q", c.MetricsBackend)
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getbool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getint(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
