// Package store provides a SQLite-backed chat session store. Sessions and
// their messages are persisted across server restarts so a client can resume
// any conversation.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/quillchat/quill/internal/retrieval"
)

// ErrNotFound is returned when a session lookup misses.
var ErrNotFound = errors.New("store: session not found")

// defaultTitle is the placeholder a fresh session carries until it is renamed
// or its title is derived from the first user message.
const defaultTitle = "New Chat"

// defaultPreview is the placeholder a fresh session carries until it has
// messages.
const defaultPreview = "No messages yet"

const (
	previewMaxLen = 50
	titleMaxLen   = 30
)

// Message is a single persisted turn in a chat session.
type Message struct {
	// ID uniquely identifies the message.
	ID string `json:"id"`
	// Role is one of "user", "assistant", or "system".
	Role string `json:"role"`
	// Content is the message text.
	Content string `json:"content"`
	// Reasoning is the model's reasoning trace, if any.
	Reasoning string `json:"reasoning,omitempty"`
	// Sources holds the context items shown alongside an assistant message.
	Sources []retrieval.ContextItem `json:"sources,omitempty"`
	// Timestamp is a Unix timestamp in milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// Session is a chat session with its message history.
type Session struct {
	// ID uniquely identifies the session.
	ID string `json:"id"`
	// Title is the display title.
	Title string `json:"title"`
	// Preview is a short extract of the latest message.
	Preview string `json:"preview"`
	// CreatedAt and UpdatedAt are Unix timestamps in milliseconds.
	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
	// Messages is the ordered message history.
	Messages []Message `json:"messages"`
}

// Summary is the list-view projection of a session, without messages.
type Summary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Preview   string `json:"preview"`
	UpdatedAt int64  `json:"updated_at"`
}

// SessionStore persists chat sessions. Implementations must be safe for
// concurrent use.
type SessionStore interface {
	// Create inserts a new session. An empty id or title selects defaults.
	Create(ctx context.Context, id, title string, messages []Message) (*Session, error)
	// Get returns a session with its messages, or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)
	// List returns all session summaries, most recently updated first.
	List(ctx context.Context) ([]Summary, error)
	// Update renames a session and/or replaces its message history.
	// Nil arguments leave the corresponding field untouched.
	Update(ctx context.Context, id string, title *string, messages []Message) (*Session, error)
	// Delete removes a session and its messages, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a SessionStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the session database. It
// resolves to ~/.quill/sessions.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".quill")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "sessions.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
PRAGMA foreign_keys = ON;
CREATE TABLE IF NOT EXISTS chat_sessions (
    id          TEXT PRIMARY KEY,
    title       TEXT NOT NULL,
    preview     TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL,  -- Unix timestamp (milliseconds)
    updated_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
    id          TEXT PRIMARY KEY,
    session_id  TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
    role        TEXT NOT NULL CHECK(role IN ('user','assistant','system')),
    content     TEXT NOT NULL DEFAULT '',
    reasoning   TEXT,
    sources     TEXT,              -- JSON-encoded context items
    timestamp   INTEGER NOT NULL   -- Unix timestamp (milliseconds)
);
CREATE INDEX IF NOT EXISTS idx_messages_session_timestamp
    ON messages (session_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_sessions_updated
    ON chat_sessions (updated_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// nowMillis returns the current time as a Unix millisecond timestamp.
func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// Create inserts a new session. An empty id selects a fresh UUID; an empty
// title selects the default placeholder.
func (s *SQLiteStore) Create(ctx context.Context, id, title string, messages []Message) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if title == "" {
		title = defaultTitle
	}
	now := nowMillis()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: create: %w", err)
	}
	defer tx.Rollback()

	const q = `INSERT INTO chat_sessions (id, title, preview, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, q, id, title, defaultPreview, now, now); err != nil {
		return nil, fmt.Errorf("store: create session: %w", err)
	}

	if err := insertMessages(ctx, tx, id, messages); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: create commit: %w", err)
	}
	return s.Get(ctx, id)
}

// Get returns a session with its messages, ordered by timestamp, or
// ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Session, error) {
	const q = `SELECT id, title, preview, created_at, updated_at FROM chat_sessions WHERE id = ?`
	var sess Session
	err := s.db.QueryRowContext(ctx, q, id).Scan(&sess.ID, &sess.Title, &sess.Preview, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get: %w", err)
	}

	msgs, err := s.sessionMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.Messages = msgs
	return &sess, nil
}

// sessionMessages loads a session's messages ordered by timestamp, then
// insertion order.
func (s *SQLiteStore) sessionMessages(ctx context.Context, sessionID string) ([]Message, error) {
	const q = `
SELECT id, role, content, COALESCE(reasoning, ''), sources, timestamp
FROM   messages
WHERE  session_id = ?
ORDER  BY timestamp ASC, rowid ASC`

	rows, err := s.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var sources sql.NullString
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.Reasoning, &sources, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("store: messages scan: %w", err)
		}
		if sources.Valid && sources.String != "" {
			if err := json.Unmarshal([]byte(sources.String), &m.Sources); err != nil {
				return nil, fmt.Errorf("store: decode sources for message %s: %w", m.ID, err)
			}
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: messages rows: %w", err)
	}
	return msgs, nil
}

// List returns all session summaries, most recently updated first.
func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	const q = `SELECT id, title, preview, updated_at FROM chat_sessions ORDER BY updated_at DESC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sm Summary
		if err := rows.Scan(&sm.ID, &sm.Title, &sm.Preview, &sm.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: list scan: %w", err)
		}
		out = append(out, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list rows: %w", err)
	}
	return out, nil
}

// Update renames a session and/or replaces its message history. Replacing
// messages refreshes the preview from the last message and, when the title is
// still the default placeholder, derives a title from the first user message.
func (s *SQLiteStore) Update(ctx context.Context, id string, title *string, messages []Message) (*Session, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	newTitle := current.Title
	if title != nil {
		newTitle = *title
	}
	newPreview := current.Preview

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: update: %w", err)
	}
	defer tx.Rollback()

	if messages != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, id); err != nil {
			return nil, fmt.Errorf("store: update clear messages: %w", err)
		}
		if err := insertMessages(ctx, tx, id, messages); err != nil {
			return nil, err
		}

		if len(messages) > 0 {
			newPreview = truncate(messages[len(messages)-1].Content, previewMaxLen)
			if newTitle == defaultTitle {
				for _, m := range messages {
					if m.Role == "user" {
						newTitle = truncate(m.Content, titleMaxLen)
						break
					}
				}
			}
		}
	}

	const q = `UPDATE chat_sessions SET title = ?, preview = ?, updated_at = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, q, newTitle, newPreview, nowMillis(), id); err != nil {
		return nil, fmt.Errorf("store: update session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: update commit: %w", err)
	}
	return s.Get(ctx, id)
}

// Delete removes a session and (via cascade) its messages.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

// insertMessages persists a batch of messages within a transaction. Messages
// without an ID or timestamp are assigned fresh ones.
func insertMessages(ctx context.Context, tx *sql.Tx, sessionID string, messages []Message) error {
	const q = `INSERT INTO messages (id, session_id, role, content, reasoning, sources, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`
	for _, m := range messages {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.Timestamp == 0 {
			m.Timestamp = nowMillis()
		}
		var reasoning any
		if m.Reasoning != "" {
			reasoning = m.Reasoning
		}
		var sources any
		if len(m.Sources) > 0 {
			data, err := json.Marshal(m.Sources)
			if err != nil {
				return fmt.Errorf("store: encode sources: %w", err)
			}
			sources = string(data)
		}
		if _, err := tx.ExecContext(ctx, q, m.ID, sessionID, m.Role, m.Content, reasoning, sources, m.Timestamp); err != nil {
			return fmt.Errorf("store: insert message: %w", err)
		}
	}
	return nil
}

// truncate shortens s to max characters, appending an ellipsis when cut.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
