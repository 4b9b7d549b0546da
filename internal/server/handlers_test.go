package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/tokkyo/internal/cache"
	"github.com/hyperjump/tokkyo/internal/config"
	"github.com/hyperjump/tokkyo/internal/embedding"
	"github.com/hyperjump/tokkyo/internal/indexer"
	"github.com/hyperjump/tokkyo/internal/language"
	"github.com/hyperjump/tokkyo/internal/models"
	"github.com/hyperjump/tokkyo/internal/search"
	"github.com/hyperjump/tokkyo/internal/store"
	"github.com/hyperjump/tokkyo/internal/vector"
)

const testDims = 64

func kptr(n int) *int { return &n }

func newTestServer(t *testing.T) (*Server, *indexer.Indexer) {
	t.Helper()

	st := store.NewMemoryStore()
	idx, err := vector.NewMemoryIndex(testDims)
	if err != nil {
		t.Fatalf("NewMemoryIndex: %v", err)
	}
	embedder := embedding.NewMockEmbedder(testDims)
	detector := &language.StaticDetector{Default: "en"}
	logger := zap.NewNop()

	stats := cache.NewStatsCache(st, idx, 1, 16, cache.WithLogger(logger))
	t.Cleanup(stats.Close)

	ing := indexer.NewIndexer(st, idx, embedder, detector,
		indexer.WithLogger(logger), indexer.WithCache(stats))
	engine := search.NewEngine(st, idx, embedder, detector, &config.SearchConfig{
		DefaultTopK:      5,
		DefaultThreshold: 0.0,
		MaxTopK:          100,
	}, search.WithLogger(logger))

	srv := NewServer(engine, ing, st, stats, &config.ServerConfig{Host: "localhost", Port: 0}, logger)
	return srv, ing
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleAddDocuments(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	body := addDocumentsRequest{Documents: []*models.DocumentInput{
		{Text: "A solar panel with improved photovoltaic efficiency"},
		{Text: ""},
	}}
	rec := doJSON(t, router, http.MethodPost, "/api/v1/documents", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp addDocumentsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(resp.Results))
	}
	if !resp.Results[0].OK() {
		t.Errorf("first item failed: %s", resp.Results[0].Error)
	}
	if resp.Results[1].OK() {
		t.Error("empty text should have failed")
	}
}

func TestHandleAddDocumentsBareArray(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	body := `[{"text": "a centrifugal pump impeller with curved vanes"}]`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp addDocumentsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 1 || !resp.Results[0].OK() {
		t.Fatalf("unexpected results: %+v", resp.Results)
	}
}

func TestHandleAddDocumentsBadRequest(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"documents": [`},
		{"empty list", `{"documents": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestHandleSearch(t *testing.T) {
	srv, ing := newTestServer(t)
	router := srv.Router()

	results := ing.AddDocuments(context.Background(), []*models.DocumentInput{
		{Text: "wind turbine blade design for offshore installation"},
		{Text: "battery anode material with lithium coating"},
	})
	for _, r := range results {
		if !r.OK() {
			t.Fatalf("seed document failed: %s", r.Error)
		}
	}

	rec := doJSON(t, router, http.MethodPost, "/api/v1/search", models.SearchQuery{
		Text: "wind turbine blade design for offshore installation",
		TopK: kptr(1),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp models.SearchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 1 {
		t.Fatalf("total = %d, want 1", resp.Total)
	}
	if resp.Results[0].Similarity < 0.99 {
		t.Errorf("similarity = %f, want near 1", resp.Results[0].Similarity)
	}
	if resp.Results[0].Explanation == "" {
		t.Error("expected an explanation string")
	}
}

func TestHandleSearchBadRequest(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	badThreshold := 1.5
	tests := []struct {
		name  string
		query models.SearchQuery
	}{
		{"empty text", models.SearchQuery{Text: ""}},
		{"negative k", models.SearchQuery{Text: "query", TopK: kptr(-1)}},
		{"explicit zero k", models.SearchQuery{Text: "query", TopK: kptr(0)}},
		{"threshold out of range", models.SearchQuery{Text: "query", Threshold: &badThreshold}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/v1/search", tt.query)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestHandleGetAndDeleteDocument(t *testing.T) {
	srv, ing := newTestServer(t)
	router := srv.Router()

	results := ing.AddDocuments(context.Background(), []*models.DocumentInput{
		{Text: "heat exchanger with corrugated fins"},
	})
	if !results[0].OK() {
		t.Fatalf("seed document failed: %s", results[0].Error)
	}
	id := results[0].ID

	rec := doJSON(t, router, http.MethodGet, "/api/v1/documents/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", rec.Code, http.StatusOK)
	}
	var doc models.Document
	if err := json.NewDecoder(rec.Body).Decode(&doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if doc.ID != id {
		t.Errorf("document id = %q, want %q", doc.ID, id)
	}

	rec = doJSON(t, router, http.MethodDelete, "/api/v1/documents/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/documents/"+id, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	rec = doJSON(t, router, http.MethodDelete, "/api/v1/documents/"+id, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("double delete status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleStats(t *testing.T) {
	srv, ing := newTestServer(t)
	router := srv.Router()

	var inputs []*models.DocumentInput
	for i := 0; i < 3; i++ {
		inputs = append(inputs, &models.DocumentInput{
			Text: fmt.Sprintf("patent abstract number %d about cooling systems", i),
		})
	}
	for _, r := range ing.AddDocuments(context.Background(), inputs) {
		if !r.OK() {
			t.Fatalf("seed document failed: %s", r.Error)
		}
	}
	srv.stats.Wait()

	rec := doJSON(t, router, http.MethodGet, "/api/v1/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var stats cache.Stats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalDocuments != 3 {
		t.Errorf("total documents = %d, want 3", stats.TotalDocuments)
	}
	if stats.IndexSize != 3 {
		t.Errorf("index size = %d, want 3", stats.IndexSize)
	}
	if stats.Languages["en"] != 3 {
		t.Errorf("en count = %d, want 3", stats.Languages["en"])
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Router(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
