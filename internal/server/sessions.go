package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/quillchat/quill/internal/logging"
	"github.com/quillchat/quill/internal/store"
)

// requireSessions returns the session store or writes a 503 when persistence
// is disabled.
func (s *Server) requireSessions(w http.ResponseWriter) (store.SessionStore, bool) {
	if s.deps.Sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "session persistence is disabled")
		return nil, false
	}
	return s.deps.Sessions, true
}

// handleSessionList handles GET /api/chats.
func (s *Server) handleSessionList(w http.ResponseWriter, r *http.Request) {
	sessions, ok := s.requireSessions(w)
	if !ok {
		return
	}

	list, err := sessions.List(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("chats: list failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "listing sessions failed")
		return
	}
	if list == nil {
		list = []store.Summary{}
	}

	writeJSON(w, http.StatusOK, list)
}

// handleSessionCreate handles POST /api/chats. An empty body creates a
// session with defaults.
func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	sessions, ok := s.requireSessions(w)
	if !ok {
		return
	}

	var req sessionWriteRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	title := ""
	if req.Title != nil {
		title = *req.Title
	}

	sess, err := sessions.Create(r.Context(), req.ID, title, req.Messages)
	if err != nil {
		logging.FromContext(r.Context()).Error("chats: create failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "creating session failed")
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

// handleSessionGet handles GET /api/chats/{id}.
func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	sessions, ok := s.requireSessions(w)
	if !ok {
		return
	}

	id := r.PathValue("id")
	sess, err := sessions.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("chats: get failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "loading session failed")
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// handleSessionUpdate handles PUT /api/chats/{id}.
func (s *Server) handleSessionUpdate(w http.ResponseWriter, r *http.Request) {
	sessions, ok := s.requireSessions(w)
	if !ok {
		return
	}

	var req sessionWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := r.PathValue("id")
	sess, err := sessions.Update(r.Context(), id, req.Title, req.Messages)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("chats: update failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "updating session failed")
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// handleSessionDelete handles DELETE /api/chats/{id}.
func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	sessions, ok := s.requireSessions(w)
	if !ok {
		return
	}

	id := r.PathValue("id")
	err := sessions.Delete(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("chats: delete failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "deleting session failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
