// Package ingest implements the file-ingestion pipeline: identifier
// cleaning, file-type detection, parsing into an in-memory table, column
// resolution, and coercion to a warehouse-loadable relation.
//
// Everything in this package is deterministic and side-effect free. Drivers
// (CLI, HTTP server, batch runner) own all I/O, state, and progress
// reporting; the functions here are pure over their inputs so they can be
// tested in isolation and reused by any shell.
package ingest

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	// FallbackColumn is returned by CleanColumnName for inputs that clean
	// down to nothing.
	FallbackColumn = "UNNAMED_COLUMN"

	// FallbackTable is returned by CleanTableName for inputs that clean
	// down to nothing.
	FallbackTable = "UNNAMED_TABLE"
)

var (
	spaceOrHyphenRuns = regexp.MustCompile(`[\s-]+`)
	nonIdentChars     = regexp.MustCompile(`[^A-Z0-9_]`)
)

// columnPunct is stripped (not substituted) from column names.
const columnPunct = "()[]{}.?/\\'\":;,!@#$%^&*`~"

// CleanColumnName converts an arbitrary string into a warehouse-safe column
// identifier. The function is total: every input, including the empty string
// and strings of only punctuation, yields a non-empty result. It is also
// idempotent, so cleaning an already-clean name is a no-op.
func CleanColumnName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ToUpper(name)
	name = spaceOrHyphenRuns.ReplaceAllString(name, "_")
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(columnPunct, r) {
			return -1
		}
		return r
	}, name)

	return finishIdent(name, FallbackColumn)
}

// CleanTableName converts an arbitrary string into a warehouse-safe table
// identifier. Unlike CleanColumnName, every rune outside [A-Z0-9_] is
// replaced by an underscore rather than stripped, so "sales-report.csv"
// becomes SALES_REPORT_CSV. Total and idempotent, like the column form.
func CleanTableName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ToUpper(name)
	name = nonIdentChars.ReplaceAllString(name, "_")

	return finishIdent(name, FallbackTable)
}

func finishIdent(name, fallback string) string {
	if name != "" && unicode.IsDigit([]rune(name)[0]) {
		name = "_" + name
	}
	if name == "" {
		return fallback
	}
	return name
}
