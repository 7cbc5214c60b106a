package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tabload/internal/ingest"
	"tabload/internal/metrics"
	"tabload/internal/warehouse"
)

// LargeFileBytes is the size above which a progress notice is emitted
// before parsing. Large files still follow the same code path.
const LargeFileBytes = 50 << 20

// Status is the terminal outcome of one file in a batch.
type Status string

const (
	StatusLoaded       Status = "loaded"
	StatusSkippedEmpty Status = "skipped_empty"
	StatusFailed       Status = "failed"
)

// FileResult is the terminal status of one file. Err is non-nil only for
// StatusFailed and always carries the filename and underlying cause.
type FileResult struct {
	File     string
	Table    string
	Status   Status
	Rows     int64
	Reason   string
	Err      error
	Duration time.Duration
}

// Summary aggregates a finished batch.
type Summary struct {
	RunID   string
	Loaded  int
	Skipped int
	Failed  int
	Results []FileResult
}

// Message renders the batch-level outcome line shown to the user.
func (s *Summary) Message() string {
	total := len(s.Results)
	switch {
	case total > 0 && s.Loaded == total:
		return fmt.Sprintf("All %d files uploaded successfully", total)
	case s.Loaded > 0:
		return fmt.Sprintf("%d/%d files uploaded successfully", s.Loaded, total)
	default:
		return "No files were uploaded successfully"
	}
}

// File is one uploaded file: name plus its raw bytes, immutable once
// received.
type File struct {
	Name string
	Data []byte
}

// Batch describes one run: the files, their caller-owned configs, the
// destination, and optional progress hooks.
type Batch struct {
	Files   []File
	Configs *ConfigStore

	// Database and Schema qualify every destination table.
	Database string
	Schema   string

	Warehouse warehouse.Config
	Policy    warehouse.WritePolicy

	// Progress, when set, is called after each file completes. done is
	// the number of finished files. This is also the caller's natural
	// cancellation point: the runner checks ctx between files.
	Progress func(done, total int, res FileResult)

	// Notice, when set, receives informational per-file signals such as
	// the large-file notice.
	Notice func(file, msg string)
}

// Runner executes batches. NewWriter is a seam so tests can substitute an
// in-memory destination for the registered backends.
type Runner struct {
	NewWriter func(ctx context.Context, cfg warehouse.Config) (warehouse.Writer, error)
}

// NewDefaultRunner wires the runner to the warehouse backend registry.
func NewDefaultRunner() *Runner {
	return &Runner{NewWriter: warehouse.New}
}

// Run processes every file in the batch strictly in sequence and returns
// the summary. Per-file parse and load failures never abort the batch; each
// file gets exactly one terminal status. The returned error is non-nil only
// for batch-level problems (writer construction, cancellation between
// files).
func (r *Runner) Run(ctx context.Context, b Batch) (*Summary, error) {
	if b.Configs == nil {
		b.Configs = NewConfigStore()
	}

	w, err := r.NewWriter(ctx, b.Warehouse)
	if err != nil {
		return nil, fmt.Errorf("warehouse writer: %w", err)
	}
	defer w.Close()

	sum := &Summary{RunID: uuid.NewString()}

	for i, f := range b.Files {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		res := r.processFile(ctx, w, b, f)
		sum.Results = append(sum.Results, res)

		switch res.Status {
		case StatusLoaded:
			sum.Loaded++
		case StatusSkippedEmpty:
			sum.Skipped++
		case StatusFailed:
			sum.Failed++
		}

		metrics.IncCounter("load_files_total", 1, metrics.Labels{"status": string(res.Status)})
		if b.Progress != nil {
			b.Progress(i+1, len(b.Files), res)
		}
	}

	metrics.IncCounter("load_batches_total", 1, nil)
	return sum, nil
}

func (r *Runner) processFile(ctx context.Context, w warehouse.Writer, b Batch, f File) FileResult {
	start := time.Now()

	fail := func(err error, reason string) FileResult {
		return FileResult{
			File:     f.Name,
			Status:   StatusFailed,
			Reason:   reason,
			Err:      err,
			Duration: time.Since(start),
		}
	}

	cfg, ok := b.Configs.Ensure(f.Name)
	if !ok {
		err := &ingest.UnsupportedKindError{File: f.Name}
		return fail(err, err.Error())
	}

	if len(f.Data) > LargeFileBytes && b.Notice != nil {
		b.Notice(f.Name, fmt.Sprintf("processing %.1fMB file", float64(len(f.Data))/1024/1024))
	}

	table, err := b.Configs.Table(f.Name, f.Data)
	if err != nil {
		return fail(err, err.Error())
	}

	final := ingest.ResolveColumns(table.OriginalColumns, cfg.ColumnOverrides)

	rel, err := ingest.CoerceForLoad(table, final)
	if err != nil {
		if errors.Is(err, ingest.ErrEmptyTable) {
			return FileResult{
				File:     f.Name,
				Table:    cfg.TableName,
				Status:   StatusSkippedEmpty,
				Reason:   "file has no data rows",
				Duration: time.Since(start),
			}
		}
		return fail(err, err.Error())
	}

	target := warehouse.Target{
		Database: b.Database,
		Schema:   b.Schema,
		Table:    cfg.TableName,
	}

	if err := w.EnsureTable(ctx, target, rel.Columns, b.Policy.Overwrite); err != nil {
		err = fmt.Errorf("%s: load into %s: %w", f.Name, target, err)
		return fail(err, err.Error())
	}

	rows, err := w.WriteRows(ctx, target, rel, b.Policy.ContinueOnError)
	if err != nil {
		err = fmt.Errorf("%s: load into %s: %w", f.Name, target, err)
		return fail(err, err.Error())
	}

	elapsed := time.Since(start)
	metrics.IncCounter("load_rows_total", float64(rows), metrics.Labels{"kind": string(cfg.Kind)})
	metrics.ObserveHistogram("load_duration_seconds", elapsed.Seconds(), metrics.Labels{"kind": string(cfg.Kind)})

	return FileResult{
		File:     f.Name,
		Table:    cfg.TableName,
		Status:   StatusLoaded,
		Rows:     rows,
		Duration: elapsed,
	}
}
