package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"tabload/internal/batch"
	"tabload/internal/config"
	"tabload/internal/ingest"
	"tabload/internal/metrics"
	"tabload/internal/metrics/datadog"
	"tabload/internal/warehouse"

	// register all file decoders and warehouse backends.
	// flags pick which to use but the binary supports all of them.
	_ "tabload/internal/ingest/decoder/all"
	_ "tabload/internal/warehouse/all"
)

// main is the entry point for the loader binary. It parses per-run options,
// optionally initializes a metrics backend, and runs one batch over the
// files named on the command line.
func main() {
	var (
		warehouseKind     string
		dsn               string
		database          string
		schema            string
		tableName         string
		delimiter         string
		noHeader          bool
		quote             string
		overridesFlg      string
		overwrite         bool
		continueOnError   bool
		metricsBackendFlg string
	)

	flag.StringVar(&warehouseKind, "warehouse", "sqlite", "destination backend (postgres, sqlite, mssql, duckdb)")
	flag.StringVar(&dsn, "dsn", "file:tabload.db", "destination DSN")
	flag.StringVar(&database, "database", "", "destination database (optional)")
	flag.StringVar(&schema, "schema", "", "destination schema (optional)")
	flag.StringVar(&tableName, "table", "", "destination table (default: derived from each filename)")
	flag.StringVar(&delimiter, "delimiter", ",", `CSV delimiter: , ; | or \t`)
	flag.BoolVar(&noHeader, "no-header", false, "treat the first row as data, not column names")
	flag.StringVar(&quote, "quote", `"`, "CSV quote character")
	flag.StringVar(&overridesFlg, "columns", "", "comma-separated replacement column names (single file only)")
	flag.BoolVar(&overwrite, "overwrite", false, "replace the destination table instead of appending")
	flag.BoolVar(&continueOnError, "continue-on-error", false, "skip bad rows instead of failing the file")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (datadog, none)")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fatalf("usage: tabload [flags] file...\nsupported extensions: %s",
			strings.Join(ingest.SupportedExtensions(), ", "))
	}

	if delimiter == `\t` {
		delimiter = "\t"
	}
	if !containsString(config.Delimiters, delimiter) {
		fatalf("delimiter %q must be one of , ; | or tab", delimiter)
	}
	if len([]rune(quote)) != 1 {
		fatalf("quote must be a single character, got %q", quote)
	}
	if tableName != "" && len(files) > 1 {
		fatalf("-table applies to a single file; got %d files", len(files))
	}
	if overridesFlg != "" && len(files) > 1 {
		fatalf("-columns applies to a single file; got %d files", len(files))
	}

	// Decide metrics backend: flag → env → default.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "datadog":
		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName: "tabload",
			Tags:    datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS")),
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			metrics.SetBackend(b)
			// Close() stops the periodic flush loop and performs a final
			// Flush(); the clean shutdown path for this backend.
			defer func() {
				if err := b.Close(); err != nil {
					log.Printf("metrics: datadog close/flush error: %v", err)
				}
			}()
		}

	case "", "none":
		// metrics disabled; nop backend remains

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	opts := &ingest.FormatOptions{
		Delimiter: []rune(delimiter)[0],
		HasHeader: !noHeader,
		Quote:     []rune(quote)[0],
		TrimSpace: true,
	}

	store := batch.NewConfigStore()
	var bfiles []batch.File
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			fatalf("read %s: %v", path, err)
		}
		bfiles = append(bfiles, batch.File{Name: path, Data: data})

		if cfg, ok := store.Ensure(path); ok {
			if cfg.Kind == ingest.KindCSV || cfg.Kind == ingest.KindTXT {
				store.SetFormat(path, opts)
			}
			if tableName != "" {
				store.SetTableName(path, tableName)
			}
			if overridesFlg != "" {
				store.SetOverrides(path, splitCSV(overridesFlg))
			}
		}
	}

	if notice := ingest.ExcelSupportNotice(); notice != "" && *verbose {
		log.Printf("%s", notice)
	}

	ctx := context.Background()
	start := time.Now()

	runner := batch.NewDefaultRunner()
	sum, err := runner.Run(ctx, batch.Batch{
		Files:    bfiles,
		Configs:  store,
		Database: database,
		Schema:   schema,
		Warehouse: warehouse.Config{
			Kind: warehouseKind,
			DSN:  dsn,
		},
		Policy: warehouse.WritePolicy{
			Overwrite:       overwrite,
			ContinueOnError: continueOnError,
		},
		Progress: func(done, total int, res batch.FileResult) {
			if *verbose {
				log.Printf("[%d/%d] %s: %s", done, total, res.File, res.Status)
			}
		},
		Notice: func(file, msg string) {
			log.Printf("%s: %s", file, msg)
		},
	})
	if err != nil {
		log.Fatalf("%v", err)
	}

	for _, res := range sum.Results {
		switch res.Status {
		case batch.StatusLoaded:
			log.Printf("%s: loaded %d rows into %s (%s)",
				res.File, res.Rows, res.Table, res.Duration.Truncate(time.Millisecond))
		case batch.StatusSkippedEmpty:
			log.Printf("%s: skipped: %s", res.File, res.Reason)
		case batch.StatusFailed:
			log.Printf("%s: failed: %s", res.File, res.Reason)
		}
	}
	log.Printf("%s", sum.Message())

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
	if err := report(sum); err != nil {
		log.Printf("report: %v", err)
	}
	if batchFailed(sum) {
		os.Exit(1)
	}
}

// batchFailed reports whether the run should exit nonzero: nothing loaded
// and at least one file actually failed. A batch of only empty files is a
// clean no-op.
func batchFailed(sum *batch.Summary) bool {
	return sum.Loaded == 0 && sum.Failed > 0
}

// report writes the machine-readable summary to stdout so the binary can be
// scripted; human-readable progress goes to stderr via log.
func report(sum *batch.Summary) error {
	type result struct {
		File   string `json:"file"`
		Table  string `json:"table,omitempty"`
		Status string `json:"status"`
		Rows   int64  `json:"rows"`
		Reason string `json:"reason,omitempty"`
	}
	out := struct {
		RunID   string   `json:"run_id"`
		Message string   `json:"message"`
		Results []result `json:"results"`
	}{RunID: sum.RunID, Message: sum.Message()}

	for _, res := range sum.Results {
		out.Results = append(out.Results, result{
			File:   res.File,
			Table:  res.Table,
			Status: string(res.Status),
			Rows:   res.Rows,
			Reason: res.Reason,
		})
	}
	return json.NewEncoder(os.Stdout).Encode(out)
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
