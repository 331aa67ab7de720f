package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/quillchat/quill/internal/logging"
	"github.com/quillchat/quill/internal/retrieval"
)

// requireLibrary returns the document library or writes a 503 when the
// document index is not configured.
func (s *Server) requireLibrary(w http.ResponseWriter) (documentLibrary, bool) {
	if s.deps.Library == nil {
		writeError(w, http.StatusServiceUnavailable, "document index is not configured")
		return nil, false
	}
	return s.deps.Library, true
}

// handleDocumentIngest handles POST /api/documents/ingest.
func (s *Server) handleDocumentIngest(w http.ResponseWriter, r *http.Request) {
	lib, ok := s.requireLibrary(w)
	if !ok {
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	n, err := lib.Ingest(r.Context(), req.Name, req.Content)
	if err != nil {
		logging.FromContext(r.Context()).Error("documents: ingest failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "ingestion failed")
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{ChunksCreated: n, SourceName: req.Name})
}

// handleDocumentSearch handles GET /api/documents/search?q=&top_k=.
func (s *Server) handleDocumentSearch(w http.ResponseWriter, r *http.Request) {
	lib, ok := s.requireLibrary(w)
	if !ok {
		return
	}

	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	topK := 5
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 20 {
			writeError(w, http.StatusBadRequest, "top_k must be an integer between 1 and 20")
			return
		}
		topK = v
	}

	items, err := lib.Search(r.Context(), q, topK)
	if err != nil {
		logging.FromContext(r.Context()).Error("documents: search failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if items == nil {
		items = []retrieval.ContextItem{}
	}

	writeJSON(w, http.StatusOK, items)
}

// handleDocumentStats handles GET /api/documents/stats.
func (s *Server) handleDocumentStats(w http.ResponseWriter, r *http.Request) {
	lib, ok := s.requireLibrary(w)
	if !ok {
		return
	}

	stats, err := lib.Stats(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("documents: stats failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "stats failed")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleDocumentSources handles GET /api/documents/sources.
func (s *Server) handleDocumentSources(w http.ResponseWriter, r *http.Request) {
	lib, ok := s.requireLibrary(w)
	if !ok {
		return
	}

	names, err := lib.SourceNames(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("documents: sources failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "listing sources failed")
		return
	}
	if names == nil {
		names = []string{}
	}

	writeJSON(w, http.StatusOK, sourcesResponse{Sources: names})
}

// handleDocumentDelete handles DELETE /api/documents/{source}.
func (s *Server) handleDocumentDelete(w http.ResponseWriter, r *http.Request) {
	lib, ok := s.requireLibrary(w)
	if !ok {
		return
	}

	source := r.PathValue("source")
	n, err := lib.DeleteSource(r.Context(), source)
	if err != nil {
		logging.FromContext(r.Context()).Error("documents: delete failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "deletion failed")
		return
	}

	writeJSON(w, http.StatusOK, deleteSourceResponse{Deleted: true, ChunksDeleted: n, Source: source})
}

// handleDocumentClear handles DELETE /api/documents.
func (s *Server) handleDocumentClear(w http.ResponseWriter, r *http.Request) {
	lib, ok := s.requireLibrary(w)
	if !ok {
		return
	}

	if err := lib.Clear(r.Context()); err != nil {
		logging.FromContext(r.Context()).Error("documents: clear failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "clearing documents failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
