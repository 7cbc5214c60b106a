package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"tabload/internal/batch"
	"tabload/internal/config"
	"tabload/internal/session"
	"tabload/internal/warehouse"
)

// memWriter collects loads in memory so handler tests never touch a real
// destination.
type memWriter struct {
	written map[string]*warehouse.Relation
}

func (m *memWriter) Close() {}

func (m *memWriter) EnsureTable(context.Context, warehouse.Target, []string, bool) error {
	return nil
}

func (m *memWriter) WriteRows(_ context.Context, target warehouse.Target, rel *warehouse.Relation, _ bool) (int64, error) {
	m.written[target.Table] = rel
	return int64(rel.RowCount()), nil
}

// newTestServer wires a server to an in-memory writer and returns both.
func newTestServer(t *testing.T) (*httptest.Server, *memWriter) {
	t.Helper()

	cfg := &config.Config{
		WarehouseKind:  "mem",
		CSVDelimiter:   ",",
		CSVHasHeader:   true,
		CSVQuote:       `"`,
		CSVTrimSpace:   true,
		PreviewRows:    10,
		MetricsBackend: "none",
	}
	w := &memWriter{written: map[string]*warehouse.Relation{}}
	s := &Server{
		Log: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Cfg: cfg,
		Runner: &batch.Runner{
			NewWriter: func(context.Context, warehouse.Config) (warehouse.Writer, error) {
				return w, nil
			},
		},
		Session: &session.Static{
			Ctx:       session.Context{Database: "DEV", Schema: "PUBLIC"},
			Databases: []string{"DEV"},
			Schemas:   map[string][]string{"DEV": {"PUBLIC", "STAGING"}},
		},
	}

	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return ts, w
}

// multipartBody builds a multipart request body with the given files (field
// name -> filename -> content) and plain fields.
func multipartBody(t *testing.T, files map[string]map[string]string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, uploads := range files {
		for name, content := range uploads {
			part, err := mw.CreateFormFile(field, name)
			if err != nil {
				t.Fatalf("create part: %v", err)
			}
			if _, err := part.Write([]byte(content)); err != nil {
				t.Fatalf("write part: %v", err)
			}
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func postMultipart(t *testing.T, url string, body *bytes.Buffer, contentType string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, contentType, body)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestSessionEndpoint(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/session")
	if err != nil {
		t.Fatalf("GET /api/session: %v", err)
	}
	defer resp.Body.Close()

	var got sessionResponse
	decodeInto(t, resp, &got)
	if got.Context.Database != "DEV" || got.Context.Schema != "PUBLIC" {
		t.Fatalf("context = %+v", got.Context)
	}
	if len(got.Schemas["DEV"]) != 2 {
		t.Fatalf("schemas = %v", got.Schemas)
	}
}

func TestPreview(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t)
	body, ct := multipartBody(t,
		map[string]map[string]string{"file": {"sales report.csv": "first name,2nd Name!\nAnn,30\nBo,41\n"}},
		nil,
	)
	resp := postMultipart(t, ts.URL+"/api/preview", body, ct)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var got previewResponse
	decodeInto(t, resp, &got)

	if got.Table != "SALES_REPORT" {
		t.Errorf("table = %q", got.Table)
	}
	if got.Columns[0] != "FIRST_NAME" || got.Columns[1] != "_2ND_NAME" {
		t.Errorf("columns = %v", got.Columns)
	}
	if got.OriginalColumns[0] != "first name" {
		t.Errorf("original columns = %v", got.OriginalColumns)
	}
	if got.RowCount != 2 || len(got.Rows) != 2 {
		t.Errorf("rows = %d/%d", got.RowCount, len(got.Rows))
	}
}

func TestPreviewOptions(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t)
	body, ct := multipartBody(t,
		map[string]map[string]string{"file": {"raw.txt": "Ann;30\nBo;41\n"}},
		map[string]string{"delimiter": ";", "has_header": "false"},
	)
	resp := postMultipart(t, ts.URL+"/api/preview", body, ct)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var got previewResponse
	decodeInto(t, resp, &got)
	if got.Columns[0] != "COLUMN_1" || got.Columns[1] != "COLUMN_2" {
		t.Errorf("columns = %v", got.Columns)
	}
	if got.RowCount != 2 {
		t.Errorf("row count = %d", got.RowCount)
	}
}

func TestPreviewRejectsUnknownExtension(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t)
	body, ct := multipartBody(t,
		map[string]map[string]string{"file": {"photo.png": "not a table"}},
		nil,
	)
	resp := postMultipart(t, ts.URL+"/api/preview", body, ct)
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want 415", resp.StatusCode)
	}
}

func TestPreviewRejectsBadDelimiter(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t)
	body, ct := multipartBody(t,
		map[string]map[string]string{"file": {"a.csv": "a,b\n"}},
		map[string]string{"delimiter": "##"},
	)
	resp := postMultipart(t, ts.URL+"/api/preview", body, ct)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestLoadBatch(t *testing.T) {
	t.Parallel()

	ts, w := newTestServer(t)
	body, ct := multipartBody(t,
		map[string]map[string]string{"files": {
			"people.csv": "Name,Age\nAnn,30\nBo,41\n",
			"empty.csv":  "Name\n",
		}},
		map[string]string{"config": `{"people.csv": {"table": "staff"}}`},
	)
	resp := postMultipart(t, ts.URL+"/api/load", body, ct)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var got loadResponse
	decodeInto(t, resp, &got)

	if got.Loaded != 1 || got.Skipped != 1 || got.Failed != 0 {
		t.Fatalf("summary = %+v", got)
	}
	if got.RunID == "" || got.Message == "" {
		t.Fatalf("missing run metadata: %+v", got)
	}

	rel := w.written["STAFF"]
	if rel == nil {
		t.Fatalf("config table rename not applied; written = %v", w.written)
	}
	if rel.RowCount() != 2 {
		t.Fatalf("written rows = %d, want 2", rel.RowCount())
	}
}

func TestLoadRequiresFiles(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t)
	body, ct := multipartBody(t, nil, map[string]string{"overwrite": "true"})
	resp := postMultipart(t, ts.URL+"/api/load", body, ct)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
