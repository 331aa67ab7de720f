package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/quillchat/quill/internal/logging"
)

// probeTimeout bounds each dependency probe. Probes run concurrently, so a
// readiness check costs at most one timeout even with every dependency down.
const probeTimeout = 5 * time.Second

// Pinger is implemented by any dependency that can report its own
// reachability: the Qdrant store behind the document index and the
// completion provider. Implementations must be safe for concurrent use.
type Pinger interface {
	// Ping returns nil when the dependency is reachable, a descriptive
	// error otherwise.
	Ping(ctx context.Context) error

	// Name labels the dependency in readiness responses (e.g. "qdrant",
	// "openrouter").
	Name() string
}

// MultiPinger folds several Pingers into one, reporting the first failure.
// Used where a single combined probe is wanted (e.g. CLI preflight checks).
type MultiPinger struct {
	// pingers is the ordered list of dependency probes to run.
	pingers []Pinger
}

// NewMultiPinger constructs a MultiPinger from the provided Pingers.
func NewMultiPinger(pingers ...Pinger) *MultiPinger {
	return &MultiPinger{pingers: pingers}
}

// Ping runs the probes in order and returns the first failure, attributed to
// the dependency that failed, or nil when all succeed.
func (m *MultiPinger) Ping(ctx context.Context) error {
	for _, p := range m.pingers {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%s: %w", p.Name(), err)
		}
	}
	return nil
}

// Name returns a combined label for logging purposes.
func (m *MultiPinger) Name() string { return "multi" }

// readyCheck is one dependency's result within a readiness response.
type readyCheck struct {
	// Name is the dependency label.
	Name string `json:"name"`
	// OK is true when the probe succeeded.
	OK bool `json:"ok"`
	// DurationMS is how long the probe took, in milliseconds.
	DurationMS int64 `json:"duration_ms"`
	// Error is the failure reason when OK is false. Empty on success.
	Error string `json:"error,omitempty"`
}

// readyResponse is the JSON body returned by GET /api/ready.
type readyResponse struct {
	// Ready is true only when every dependency probe succeeded.
	Ready bool `json:"ready"`
	// Checks holds the per-dependency results in registration order.
	Checks []readyCheck `json:"checks"`
}

// handleReady handles GET /api/ready. All registered dependency probes run
// concurrently, each under its own timeout; the response is 200 when every
// dependency answered and 503 otherwise. With no pingers registered the
// endpoint reports ready — /api/health alone covers liveness-only setups.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	checks := make([]readyCheck, len(s.pingers))

	var wg sync.WaitGroup
	for i, p := range s.pingers {
		wg.Add(1)
		go func(i int, p Pinger) {
			defer wg.Done()

			probeCtx, cancel := context.WithTimeout(r.Context(), probeTimeout)
			defer cancel()

			start := time.Now()
			err := p.Ping(probeCtx)

			checks[i] = readyCheck{
				Name:       p.Name(),
				OK:         err == nil,
				DurationMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				checks[i].Error = err.Error()
				log.Warn("readiness probe failed",
					slog.String("dependency", p.Name()),
					slog.Any("error", err),
				)
			}
		}(i, p)
	}
	wg.Wait()

	ready := true
	for _, c := range checks {
		if !c.OK {
			ready = false
			break
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, readyResponse{Ready: ready, Checks: checks})
}
