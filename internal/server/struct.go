package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/quillchat/quill/internal/llm"
	"github.com/quillchat/quill/internal/rag"
	"github.com/quillchat/quill/internal/retrieval"
	"github.com/quillchat/quill/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// CORSOrigins is the allow-list for cross-origin requests. Empty disables CORS.
	CORSOrigins []string
	// MetricsRegistry receives all Prometheus metric registrations. If nil,
	// prometheus.DefaultRegisterer is used. Tests inject a fresh registry.
	MetricsRegistry prometheus.Registerer
}

// contextGatherer is the interface handleCompletions calls to collect
// grounding context. *retrieval.Aggregator satisfies it; tests inject a fake.
type contextGatherer interface {
	Gather(ctx context.Context, query string, useRAG, useWeb bool) []retrieval.ContextItem
}

// completionStreamer is the interface handleCompletions calls to stream the
// model response. *llm.Client satisfies it; tests inject a fake.
type completionStreamer interface {
	StreamCompletion(ctx context.Context, messages []llm.Message, opts llm.Options) <-chan llm.Event
}

// documentLibrary is the interface the document handlers call.
// *rag.Library satisfies it; tests inject a fake.
type documentLibrary interface {
	Ingest(ctx context.Context, name, content string) (int, error)
	Search(ctx context.Context, query string, topK int) ([]retrieval.ContextItem, error)
	DeleteSource(ctx context.Context, name string) (int, error)
	Clear(ctx context.Context) error
	SourceNames(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (rag.Stats, error)
}

// Deps bundles the collaborators the server exposes over HTTP. Library and
// Sessions may be nil, which disables the corresponding endpoint groups.
type Deps struct {
	// Gatherer collects grounding context for completion requests.
	Gatherer contextGatherer
	// Streamer streams model responses.
	Streamer completionStreamer
	// Library is the document index surface. Nil returns 503 on /api/documents.
	Library documentLibrary
	// Sessions persists chat sessions. Nil returns 503 on /api/chats.
	Sessions store.SessionStore
}

// Server is the HTTP server exposing the completion, document, and session APIs.
type Server struct {
	// deps holds the injected collaborators.
	deps Deps
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds this instance's Prometheus metrics.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// completionMessage is one conversation turn in a completion request.
type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// completionRequest is the JSON body for POST /api/completions.
type completionRequest struct {
	// Messages is the ordered conversation; the last user message determines
	// the retrieval query.
	Messages []completionMessage `json:"messages"`
	// CustomInstructions is appended verbatim to the system prompt.
	CustomInstructions string `json:"custom_instructions"`
	// Model overrides the default model identifier.
	Model string `json:"model"`
	// UseRAG and UseWebSearch toggle the retrieval oracles. Both default to true.
	UseRAG       *bool `json:"use_rag"`
	UseWebSearch *bool `json:"use_web_search"`
}

// ingestRequest is the JSON body for POST /api/documents/ingest.
type ingestRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ingestResponse is the JSON response for POST /api/documents/ingest.
type ingestResponse struct {
	ChunksCreated int    `json:"chunks_created"`
	SourceName    string `json:"source_name"`
}

// deleteSourceResponse is the JSON response for DELETE /api/documents/{source}.
type deleteSourceResponse struct {
	Deleted       bool   `json:"deleted"`
	ChunksDeleted int    `json:"chunks_deleted"`
	Source        string `json:"source"`
}

// sourcesResponse is the JSON response for GET /api/documents/sources.
type sourcesResponse struct {
	Sources []string `json:"sources"`
}

// sessionWriteRequest is the JSON body for POST /api/chats and PUT /api/chats/{id}.
type sessionWriteRequest struct {
	// ID optionally pins the new session's identifier (create only).
	ID string `json:"id"`
	// Title sets or renames the session title. Nil on update leaves it untouched.
	Title *string `json:"title"`
	// Messages replaces the session history when present.
	Messages []store.Message `json:"messages"`
}
