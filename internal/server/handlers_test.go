package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/generation"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/rag"
	"github.com/hyperjump/kotae/internal/registry"
	"github.com/hyperjump/kotae/internal/segment"
	"github.com/hyperjump/kotae/internal/vectorstore"
)

func newTestRouter(t *testing.T, gen *generation.MockGenerator) http.Handler {
	t.Helper()
	seg, err := segment.NewSegmenter(1000, 200, nil)
	if err != nil {
		t.Fatal(err)
	}
	reg, err := registry.NewSQLiteRegistry(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { reg.Close() })

	svc := rag.NewService(seg, embedding.NewMockEmbedder(32), gen, vectorstore.NewMemoryStore(32), reg)
	srv := NewServer(svc, &config.ServerConfig{Host: "localhost", Port: 0}, zap.NewNop())
	return srv.Router()
}

func doJSON(t *testing.T, router http.Handler, method, path, tenantKey string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if tenantKey != "" {
		req.Header.Set("X-Tenant-ID", tenantKey)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, &generation.MockGenerator{})
	rec := doJSON(t, router, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestIngestAndQueryRoundTrip(t *testing.T) {
	gen := &generation.MockGenerator{Answer: "Shipping takes five days."}
	router := newTestRouter(t, gen)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/documents", "acme", map[string]string{
		"filename": "shipping.txt",
		"text":     "Standard shipping takes five business days within the EU.",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("ingest status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var ingest models.IngestResult
	if err := json.Unmarshal(rec.Body.Bytes(), &ingest); err != nil {
		t.Fatal(err)
	}
	if ingest.TotalChunks == 0 {
		t.Error("expected at least one chunk")
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/query", "acme", map[string]any{
		"question": "How long does shipping take?",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("query status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var result models.QueryResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Answer != "Shipping takes five days." {
		t.Errorf("answer = %q", result.Answer)
	}
	if len(result.Sources) == 0 {
		t.Error("expected sources")
	}
}

func TestMissingTenantHeader(t *testing.T) {
	router := newTestRouter(t, &generation.MockGenerator{})
	rec := doJSON(t, router, http.MethodPost, "/api/v1/query", "", map[string]string{
		"question": "Anything?",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "error") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestInvalidTenantHeader(t *testing.T) {
	router := newTestRouter(t, &generation.MockGenerator{})
	rec := doJSON(t, router, http.MethodPost, "/api/v1/query", "bad tenant!", map[string]string{
		"question": "Anything?",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestQueryInvalidBody(t *testing.T) {
	router := newTestRouter(t, &generation.MockGenerator{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader("{not json"))
	req.Header.Set("X-Tenant-ID", "acme")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUploadFilesMultipart(t *testing.T) {
	router := newTestRouter(t, &generation.MockGenerator{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", "notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte("Some notes about the project roadmap.")); err != nil {
		t.Fatal(err)
	}
	part, err = mw.CreateFormFile("files", "empty.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte("  ")); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload-files", &buf)
	req.Header.Set("X-Tenant-ID", "acme")
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var result models.IngestResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.FilesProcessed != 1 || result.FilesFailed != 1 {
		t.Errorf("processed=%d failed=%d, want 1/1", result.FilesProcessed, result.FilesFailed)
	}
}

func TestUploadFilesEmptyForm(t *testing.T) {
	router := newTestRouter(t, &generation.MockGenerator{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload-files", &buf)
	req.Header.Set("X-Tenant-ID", "acme")
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestStatsAndDelete(t *testing.T) {
	router := newTestRouter(t, &generation.MockGenerator{})

	rec := doJSON(t, router, http.MethodPost, "/api/v1/documents", "acme", map[string]string{
		"filename": "a.txt",
		"text":     "Content of the first file.",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("ingest status = %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/tenant/stats", "acme", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
	var stats models.StatsResult
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.VectorCount == 0 || len(stats.Documents) != 1 {
		t.Errorf("stats = %+v", stats)
	}

	rec = doJSON(t, router, http.MethodDelete, "/api/v1/documents?filename=a.txt", "acme", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodDelete, "/api/v1/tenant", "acme", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete tenant status = %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/tenant/stats", "acme", nil)
	var after models.StatsResult
	if err := json.Unmarshal(rec.Body.Bytes(), &after); err != nil {
		t.Fatal(err)
	}
	if after.VectorCount != 0 {
		t.Errorf("vector count after wipe = %d", after.VectorCount)
	}
}

func TestDeleteDocumentMissingFilename(t *testing.T) {
	router := newTestRouter(t, &generation.MockGenerator{})
	rec := doJSON(t, router, http.MethodDelete, "/api/v1/documents", "acme", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
