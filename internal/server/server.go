// Package server exposes the ingestion pipeline over HTTP: a preview
// endpoint for inspecting parsed files, a load endpoint running whole
// batches, and a session endpoint for target selection.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tabload/internal/batch"
	"tabload/internal/config"
	"tabload/internal/ingest"
	"tabload/internal/session"
	"tabload/internal/warehouse"
)

// maxUploadBytes caps a whole multipart request body.
const maxUploadBytes = 512 << 20

// Server handles HTTP requests. Session may be nil when no catalog is
// configured; /api/session then reports the configured static target.
type Server struct {
	Log     *slog.Logger
	Cfg     *config.Config
	Runner  *batch.Runner
	Session session.Provider
}

// New builds a server with the default batch runner.
func New(log *slog.Logger, cfg *config.Config, sess session.Provider) *Server {
	return &Server{
		Log:     log,
		Cfg:     cfg,
		Runner:  batch.NewDefaultRunner(),
		Session: sess,
	}
}

// Router builds the chi router for the server.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))

	r.Get("/healthz", s.handleHealth)
	r.Get("/api/session", s.handleSession)
	r.Post("/api/preview", s.handlePreview)
	r.Post("/api/load", s.handleLoad)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sessionResponse struct {
	Context   session.Context     `json:"context"`
	Databases []string            `json:"databases,omitempty"`
	Schemas   map[string][]string `json:"schemas,omitempty"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.Session == nil {
		writeJSON(w, http.StatusOK, sessionResponse{
			Context: session.Context{
				Database: s.Cfg.Database,
				Schema:   s.Cfg.Schema,
			},
		})
		return
	}

	ctx := r.Context()
	cur, err := s.Session.Current(ctx)
	if err != nil {
		s.error(w, http.StatusBadGateway, err)
		return
	}

	resp := sessionResponse{Context: cur}
	dbs, err := s.Session.ListDatabases(ctx)
	if err != nil {
		s.error(w, http.StatusBadGateway, err)
		return
	}
	resp.Databases = dbs

	resp.Schemas = make(map[string][]string, len(dbs))
	for _, db := range dbs {
		schemas, err := s.Session.ListSchemas(ctx, db)
		if err != nil {
			s.error(w, http.StatusBadGateway, err)
			return
		}
		resp.Schemas[db] = schemas
	}

	writeJSON(w, http.StatusOK, resp)
}

type previewResponse struct {
	File            string     `json:"file"`
	Kind            string     `json:"kind"`
	Table           string     `json:"table"`
	OriginalColumns []string   `json:"original_columns"`
	Columns         []string   `json:"columns"`
	RowCount        int        `json:"row_count"`
	Rows            [][]string `json:"rows"`
}

// handlePreview parses one uploaded file and returns its header, cleaned
// columns, and the first rows. Empty files preview fine; emptiness only
// matters at load time.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.error(w, http.StatusBadRequest, err)
		return
	}

	name, data, err := readUpload(r, "file")
	if err != nil {
		s.error(w, http.StatusBadRequest, err)
		return
	}

	kind, ok := ingest.DetectKind(name)
	if !ok {
		s.error(w, http.StatusUnsupportedMediaType, &ingest.UnsupportedKindError{File: name})
		return
	}

	opts, err := formatFromForm(r, s.Cfg)
	if err != nil {
		s.error(w, http.StatusBadRequest, err)
		return
	}

	table, err := ingest.Parse(data, name, kind, opts)
	if err != nil {
		s.error(w, statusForParseError(err), err)
		return
	}

	overrides := r.Form["column"]
	final := ingest.ResolveColumns(table.OriginalColumns, overrides)

	tableName := r.FormValue("table")
	if tableName == "" {
		tableName = batch.DefaultTableName(name)
	} else {
		tableName = ingest.CleanTableName(tableName)
	}

	writeJSON(w, http.StatusOK, previewResponse{
		File:            name,
		Kind:            string(kind),
		Table:           tableName,
		OriginalColumns: table.OriginalColumns,
		Columns:         final,
		RowCount:        table.RowCount(),
		Rows:            table.Preview(s.Cfg.PreviewRows),
	})
}

// fileConfig is the per-file configuration a load request may carry in its
// "config" form field, keyed by filename.
type fileConfig struct {
	Table   string   `json:"table,omitempty"`
	Columns []string `json:"columns,omitempty"`
}

type fileResultJSON struct {
	File       string `json:"file"`
	Table      string `json:"table,omitempty"`
	Status     string `json:"status"`
	Rows       int64  `json:"rows"`
	Reason     string `json:"reason,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type loadResponse struct {
	RunID   string           `json:"run_id"`
	Message string           `json:"message"`
	Loaded  int              `json:"loaded"`
	Skipped int              `json:"skipped"`
	Failed  int              `json:"failed"`
	Results []fileResultJSON `json:"results"`
}

// handleLoad runs a full batch over the uploaded files. Per-file failures
// never fail the request; each file reports its own terminal status.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.error(w, http.StatusBadRequest, err)
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		s.error(w, http.StatusBadRequest, errors.New("no files in request"))
		return
	}

	opts, err := formatFromForm(r, s.Cfg)
	if err != nil {
		s.error(w, http.StatusBadRequest, err)
		return
	}

	perFile := map[string]fileConfig{}
	if raw := r.FormValue("config"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &perFile); err != nil {
			s.error(w, http.StatusBadRequest, err)
			return
		}
	}

	store := batch.NewConfigStore()
	var files []batch.File
	for _, hdr := range r.MultipartForm.File["files"] {
		f, err := hdr.Open()
		if err != nil {
			s.error(w, http.StatusBadRequest, err)
			return
		}
		data, err := readAll(f, hdr.Size)
		f.Close()
		if err != nil {
			s.error(w, http.StatusBadRequest, err)
			return
		}

		files = append(files, batch.File{Name: hdr.Filename, Data: data})

		if cfg, ok := store.Ensure(hdr.Filename); ok {
			if cfg.Kind == ingest.KindCSV || cfg.Kind == ingest.KindTXT {
				store.SetFormat(hdr.Filename, opts)
			}
			if fc, ok := perFile[hdr.Filename]; ok {
				if fc.Table != "" {
					store.SetTableName(hdr.Filename, fc.Table)
				}
				if fc.Columns != nil {
					store.SetOverrides(hdr.Filename, fc.Columns)
				}
			}
		}
	}

	database := formDefault(r, "database", s.Cfg.Database)
	schema := formDefault(r, "schema", s.Cfg.Schema)

	sum, err := s.Runner.Run(r.Context(), batch.Batch{
		Files:    files,
		Configs:  store,
		Database: database,
		Schema:   schema,
		Warehouse: warehouse.Config{
			Kind: s.Cfg.WarehouseKind,
			DSN:  s.Cfg.WarehouseDSN,
		},
		Policy: warehouse.WritePolicy{
			Overwrite:       formBool(r, "overwrite", false),
			ContinueOnError: formBool(r, "continue_on_error", false),
		},
		Notice: func(file, msg string) {
			s.Log.Info("load notice", "file", file, "msg", msg)
		},
	})
	if err != nil {
		s.error(w, http.StatusInternalServerError, err)
		return
	}

	resp := loadResponse{
		RunID:   sum.RunID,
		Message: sum.Message(),
		Loaded:  sum.Loaded,
		Skipped: sum.Skipped,
		Failed:  sum.Failed,
	}
	for _, res := range sum.Results {
		jr := fileResultJSON{
			File:       res.File,
			Table:      res.Table,
			Status:     string(res.Status),
			Rows:       res.Rows,
			Reason:     res.Reason,
			DurationMS: res.Duration.Milliseconds(),
		}
		resp.Results = append(resp.Results, jr)

		s.Log.Info("file result",
			"run_id", sum.RunID,
			"file", res.File,
			"status", res.Status,
			"rows", res.Rows,
		)
	}

	writeJSON(w, http.StatusOK, resp)
}

// formatFromForm builds parse options from request form values, falling
// back to the configured defaults for anything unset.
func formatFromForm(r *http.Request, cfg *config.Config) (*ingest.FormatOptions, error) {
	opts := &ingest.FormatOptions{
		Delimiter: firstRune(cfg.CSVDelimiter, ','),
		HasHeader: cfg.CSVHasHeader,
		Quote:     firstRune(cfg.CSVQuote, '"'),
		TrimSpace: cfg.CSVTrimSpace,
	}

	if v := r.FormValue("delimiter"); v != "" {
		if !containsString(config.Delimiters, v) {
			return nil, errors.New("delimiter must be one of , ; | or tab")
		}
		opts.Delimiter = firstRune(v, ',')
	}
	if v := r.FormValue("has_header"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.New("has_header must be a boolean")
		}
		opts.HasHeader = b
	}
	if v := r.FormValue("quote"); v != "" {
		runes := []rune(v)
		if len(runes) != 1 {
			return nil, errors.New("quote must be a single character")
		}
		opts.Quote = runes[0]
	}
	if v := r.FormValue("trim_space"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.New("trim_space must be a boolean")
		}
		opts.TrimSpace = b
	}

	return opts, nil
}

// statusForParseError maps the parse error taxonomy onto HTTP statuses.
func statusForParseError(err error) int {
	var unsupported *ingest.UnsupportedKindError
	var unavailable *ingest.DecoderUnavailableError
	switch {
	case errors.As(err, &unsupported):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &unavailable):
		return http.StatusNotImplemented
	default:
		return http.StatusUnprocessableEntity
	}
}

func (s *Server) error(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		s.Log.Error("request failed", "status", status, "err", err)
	} else {
		s.Log.Info("request rejected", "status", status, "err", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// readUpload pulls a single uploaded file out of the multipart form.
func readUpload(r *http.Request, field string) (string, []byte, error) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return "", nil, errors.New("missing " + field + " upload")
	}
	defer f.Close()

	data, err := readAll(f, hdr.Size)
	if err != nil {
		return "", nil, err
	}
	return hdr.Filename, data, nil
}

func readAll(f io.Reader, size int64) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, size))
	if _, err := io.Copy(buf, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formDefault(r *http.Request, key, def string) string {
	if v := r.FormValue(key); v != "" {
		return v
	}
	return def
}

func formBool(r *http.Request, key string, def bool) bool {
	v := r.FormValue(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func firstRune(s string, def rune) rune {
	for _, r := range s {
		return r
	}
	return def
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
