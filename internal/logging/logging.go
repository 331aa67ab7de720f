// Package logging provides quill's structured logger, built on [log/slog].
// A logger is constructed once at process startup via [New] and travels with
// each request through context values ([WithLogger] / [FromContext]), so the
// request-ID attributes attached by the server middleware follow every log
// line emitted underneath a handler.
//
// Environment variables:
//
//	LOG_LEVEL  = debug | info | warn | error  (default: info)
//	LOG_FORMAT = json | text                  (default: json)
//	DEBUG      = true forces debug level regardless of LOG_LEVEL
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// contextKey is an unexported type for context keys in this package.
type contextKey struct{}

// levelNames maps LOG_LEVEL values to slog levels. Unknown values fall back
// to info rather than erroring — logging config must never stop startup.
var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// New constructs the process logger from environment variables, writing to
// stderr. JSON output is the default; LOG_FORMAT=text is for local
// development where JSON lines are hard on the eyes.
func New() *slog.Logger {
	return newWithWriter(os.Stderr)
}

// NewNop returns a logger that discards everything. Tests use it to keep
// handler and middleware output silent.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// newWithWriter builds the env-configured logger against w.
func newWithWriter(w io.Writer) *slog.Logger {
	level, ok := levelNames[strings.ToLower(os.Getenv("LOG_LEVEL"))]
	if !ok {
		level = slog.LevelInfo
	}
	if strings.EqualFold(os.Getenv("DEBUG"), "true") {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the [*slog.Logger] stored in ctx, or [slog.Default]
// when none is present so callers never need to nil-check.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
