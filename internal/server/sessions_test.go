package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/quillchat/quill/internal/store"
)

// ---------------------------------------------------------------------------
// Fake session store
// ---------------------------------------------------------------------------

type fakeSessionStore struct {
	sessions map[string]*store.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*store.Session)}
}

func (f *fakeSessionStore) Create(_ context.Context, id, title string, messages []store.Message) (*store.Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if title == "" {
		title = "New Chat"
	}
	sess := &store.Session{ID: id, Title: title, Preview: "No messages yet", Messages: messages}
	f.sessions[id] = sess
	return sess, nil
}

func (f *fakeSessionStore) Get(_ context.Context, id string) (*store.Session, error) {
	sess, ok := f.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return sess, nil
}

func (f *fakeSessionStore) List(_ context.Context) ([]store.Summary, error) {
	var out []store.Summary
	for _, sess := range f.sessions {
		out = append(out, store.Summary{ID: sess.ID, Title: sess.Title, Preview: sess.Preview})
	}
	return out, nil
}

func (f *fakeSessionStore) Update(_ context.Context, id string, title *string, messages []store.Message) (*store.Session, error) {
	sess, ok := f.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if title != nil {
		sess.Title = *title
	}
	if messages != nil {
		sess.Messages = messages
	}
	return sess, nil
}

func (f *fakeSessionStore) Delete(_ context.Context, id string) error {
	if _, ok := f.sessions[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessionStore) Close() error { return nil }

func newSessionTestServer(sessions store.SessionStore) *Server {
	return newTestServer(Deps{Gatherer: &fakeGatherer{}, Streamer: &fakeStreamer{}, Sessions: sessions})
}

// ---------------------------------------------------------------------------
// /api/chats handlers
// ---------------------------------------------------------------------------

func TestHandleSessionCreate_EmptyBody(t *testing.T) {
	t.Parallel()

	s := newSessionTestServer(newFakeSessionStore())

	req := httptest.NewRequest(http.MethodPost, "/api/chats", nil)
	w := httptest.NewRecorder()
	s.handleSessionCreate(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var sess store.Session
	if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if sess.ID == "" || sess.Title != "New Chat" {
		t.Errorf("unexpected session: %+v", sess)
	}
}

func TestHandleSessionCreate_WithTitleAndMessages(t *testing.T) {
	t.Parallel()

	s := newSessionTestServer(newFakeSessionStore())

	body := `{"title":"Trip planning","messages":[{"role":"user","content":"where to?"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/chats", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.handleSessionCreate(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var sess store.Session
	if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if sess.Title != "Trip planning" || len(sess.Messages) != 1 {
		t.Errorf("unexpected session: %+v", sess)
	}
}

func TestHandleSessionGet_NotFound(t *testing.T) {
	t.Parallel()

	s := newSessionTestServer(newFakeSessionStore())

	req := httptest.NewRequest(http.MethodGet, "/api/chats/ghost", nil)
	req.SetPathValue("id", "ghost")
	w := httptest.NewRecorder()
	s.handleSessionGet(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandleSessionUpdate_Rename(t *testing.T) {
	t.Parallel()

	fs := newFakeSessionStore()
	fs.sessions["s1"] = &store.Session{ID: "s1", Title: "New Chat"}
	s := newSessionTestServer(fs)

	req := httptest.NewRequest(http.MethodPut, "/api/chats/s1", strings.NewReader(`{"title":"Renamed"}`))
	req.SetPathValue("id", "s1")
	w := httptest.NewRecorder()
	s.handleSessionUpdate(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if fs.sessions["s1"].Title != "Renamed" {
		t.Errorf("title = %q", fs.sessions["s1"].Title)
	}
}

func TestHandleSessionUpdate_NotFound(t *testing.T) {
	t.Parallel()

	s := newSessionTestServer(newFakeSessionStore())

	req := httptest.NewRequest(http.MethodPut, "/api/chats/ghost", strings.NewReader(`{"title":"x"}`))
	req.SetPathValue("id", "ghost")
	w := httptest.NewRecorder()
	s.handleSessionUpdate(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandleSessionDelete(t *testing.T) {
	t.Parallel()

	fs := newFakeSessionStore()
	fs.sessions["s1"] = &store.Session{ID: "s1"}
	s := newSessionTestServer(fs)

	req := httptest.NewRequest(http.MethodDelete, "/api/chats/s1", nil)
	req.SetPathValue("id", "s1")
	w := httptest.NewRecorder()
	s.handleSessionDelete(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}

	// Deleting again reports not found.
	req = httptest.NewRequest(http.MethodDelete, "/api/chats/s1", nil)
	req.SetPathValue("id", "s1")
	w = httptest.NewRecorder()
	s.handleSessionDelete(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", w.Code)
	}
}

func TestHandleSessionList_EmptyIsJSONArray(t *testing.T) {
	t.Parallel()

	s := newSessionTestServer(newFakeSessionStore())

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	w := httptest.NewRecorder()
	s.handleSessionList(w, req)

	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("empty list must encode as [], got %s", got)
	}
}

func TestSessionEndpoints_PersistenceDisabled(t *testing.T) {
	t.Parallel()

	s := newTestServer(Deps{Gatherer: &fakeGatherer{}, Streamer: &fakeStreamer{}})

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	w := httptest.NewRecorder()
	s.handleSessionList(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}
