package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/quillchat/quill/internal/rag"
	"github.com/quillchat/quill/internal/retrieval"
)

// ---------------------------------------------------------------------------
// Fake document library
// ---------------------------------------------------------------------------

type fakeLibrary struct {
	ingestN      int
	ingestErr    error
	searchItems  []retrieval.ContextItem
	searchErr    error
	lastTopK     int
	deleteN      int
	clearCalled  bool
	sources      []string
	stats        rag.Stats
	lastIngested string
}

func (f *fakeLibrary) Ingest(_ context.Context, name, _ string) (int, error) {
	f.lastIngested = name
	return f.ingestN, f.ingestErr
}

func (f *fakeLibrary) Search(_ context.Context, _ string, topK int) ([]retrieval.ContextItem, error) {
	f.lastTopK = topK
	return f.searchItems, f.searchErr
}

func (f *fakeLibrary) DeleteSource(_ context.Context, _ string) (int, error) {
	return f.deleteN, nil
}

func (f *fakeLibrary) Clear(_ context.Context) error {
	f.clearCalled = true
	return nil
}

func (f *fakeLibrary) SourceNames(_ context.Context) ([]string, error) {
	return f.sources, nil
}

func (f *fakeLibrary) Stats(_ context.Context) (rag.Stats, error) {
	return f.stats, nil
}

// ---------------------------------------------------------------------------
// /api/documents handlers
// ---------------------------------------------------------------------------

func TestHandleDocumentIngest(t *testing.T) {
	t.Parallel()

	lib := &fakeLibrary{ingestN: 4}
	s := newTestServer(Deps{Gatherer: &fakeGatherer{}, Streamer: &fakeStreamer{}, Library: lib})

	req := httptest.NewRequest(http.MethodPost, "/api/documents/ingest",
		strings.NewReader(`{"name":"notes.txt","content":"hello world"}`))
	w := httptest.NewRecorder()
	s.handleDocumentIngest(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ingestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ChunksCreated != 4 || resp.SourceName != "notes.txt" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if lib.lastIngested != "notes.txt" {
		t.Errorf("library received name %q", lib.lastIngested)
	}
}

func TestHandleDocumentIngest_MissingName(t *testing.T) {
	t.Parallel()

	s := newTestServer(Deps{Gatherer: &fakeGatherer{}, Streamer: &fakeStreamer{}, Library: &fakeLibrary{}})

	req := httptest.NewRequest(http.MethodPost, "/api/documents/ingest",
		strings.NewReader(`{"content":"orphan"}`))
	w := httptest.NewRecorder()
	s.handleDocumentIngest(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleDocumentIngest_LibraryFailure(t *testing.T) {
	t.Parallel()

	lib := &fakeLibrary{ingestErr: errors.New("qdrant down")}
	s := newTestServer(Deps{Gatherer: &fakeGatherer{}, Streamer: &fakeStreamer{}, Library: lib})

	req := httptest.NewRequest(http.MethodPost, "/api/documents/ingest",
		strings.NewReader(`{"name":"notes.txt","content":"x"}`))
	w := httptest.NewRecorder()
	s.handleDocumentIngest(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestHandleDocumentSearch(t *testing.T) {
	t.Parallel()

	lib := &fakeLibrary{searchItems: []retrieval.ContextItem{
		{ID: "c1", Title: "notes.txt", Content: "hit", Similarity: 0.912, Type: retrieval.TypeFile},
	}}
	s := newTestServer(Deps{Gatherer: &fakeGatherer{}, Streamer: &fakeStreamer{}, Library: lib})

	req := httptest.NewRequest(http.MethodGet, "/api/documents/search?q=hello&top_k=3", nil)
	w := httptest.NewRecorder()
	s.handleDocumentSearch(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if lib.lastTopK != 3 {
		t.Errorf("top_k = %d, want 3", lib.lastTopK)
	}
	var items []retrieval.ContextItem
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(items) != 1 || items[0].Title != "notes.txt" {
		t.Errorf("unexpected items: %+v", items)
	}
}

func TestHandleDocumentSearch_Validation(t *testing.T) {
	t.Parallel()

	s := newTestServer(Deps{Gatherer: &fakeGatherer{}, Streamer: &fakeStreamer{}, Library: &fakeLibrary{}})

	cases := []struct {
		name string
		url  string
	}{
		{"missing query", "/api/documents/search"},
		{"top_k too small", "/api/documents/search?q=x&top_k=0"},
		{"top_k too large", "/api/documents/search?q=x&top_k=21"},
		{"top_k not a number", "/api/documents/search?q=x&top_k=lots"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.url, nil)
			w := httptest.NewRecorder()
			s.handleDocumentSearch(w, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestHandleDocumentSearch_EmptyResultIsJSONArray(t *testing.T) {
	t.Parallel()

	s := newTestServer(Deps{Gatherer: &fakeGatherer{}, Streamer: &fakeStreamer{}, Library: &fakeLibrary{}})

	req := httptest.NewRequest(http.MethodGet, "/api/documents/search?q=nothing", nil)
	w := httptest.NewRecorder()
	s.handleDocumentSearch(w, req)

	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("empty result must encode as [], got %s", got)
	}
}

func TestHandleDocumentDelete(t *testing.T) {
	t.Parallel()

	lib := &fakeLibrary{deleteN: 7}
	s := newTestServer(Deps{Gatherer: &fakeGatherer{}, Streamer: &fakeStreamer{}, Library: lib})

	req := httptest.NewRequest(http.MethodDelete, "/api/documents/notes.txt", nil)
	req.SetPathValue("source", "notes.txt")
	w := httptest.NewRecorder()
	s.handleDocumentDelete(w, req)

	var resp deleteSourceResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Deleted || resp.ChunksDeleted != 7 || resp.Source != "notes.txt" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHandleDocumentClear(t *testing.T) {
	t.Parallel()

	lib := &fakeLibrary{}
	s := newTestServer(Deps{Gatherer: &fakeGatherer{}, Streamer: &fakeStreamer{}, Library: lib})

	req := httptest.NewRequest(http.MethodDelete, "/api/documents", nil)
	w := httptest.NewRecorder()
	s.handleDocumentClear(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if !lib.clearCalled {
		t.Error("Clear was not invoked")
	}
}

func TestHandleDocumentStatsAndSources(t *testing.T) {
	t.Parallel()

	lib := &fakeLibrary{stats: rag.Stats{TotalChunks: 9, TotalDocuments: 2}, sources: []string{"a.txt", "b.txt"}}
	s := newTestServer(Deps{Gatherer: &fakeGatherer{}, Streamer: &fakeStreamer{}, Library: lib})

	w := httptest.NewRecorder()
	s.handleDocumentStats(w, httptest.NewRequest(http.MethodGet, "/api/documents/stats", nil))
	if !strings.Contains(w.Body.String(), `"total_chunks":9`) {
		t.Errorf("stats body: %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	s.handleDocumentSources(w, httptest.NewRequest(http.MethodGet, "/api/documents/sources", nil))
	if !strings.Contains(w.Body.String(), `"sources":["a.txt","b.txt"]`) {
		t.Errorf("sources body: %s", w.Body.String())
	}
}

func TestDocumentEndpoints_LibraryNotConfigured(t *testing.T) {
	t.Parallel()

	s := newTestServer(Deps{Gatherer: &fakeGatherer{}, Streamer: &fakeStreamer{}})

	req := httptest.NewRequest(http.MethodGet, "/api/documents/stats", nil)
	w := httptest.NewRecorder()
	s.handleDocumentStats(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "not configured") {
		t.Errorf("body: %s", w.Body.String())
	}
}
