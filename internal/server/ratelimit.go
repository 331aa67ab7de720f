package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/quillchat/quill/internal/logging"
)

// Per-IP token bucket defaults. Completions hold an SSE stream open for the
// whole response, so clients issue few requests; 10 rps with a burst of 20
// accommodates a chat UI polling documents and sessions around a stream.
const (
	defaultRateLimit = 10
	defaultRateBurst = 20
)

// visitorIdleTTL is how long an IP may stay silent before its bucket is
// dropped. Longer than any healthy completion stream, so a client that was
// mid-stream does not come back to a fresh (full) bucket.
const visitorIdleTTL = 10 * time.Minute

// sweepInterval is how often stale visitor buckets are collected.
const sweepInterval = 2 * time.Minute

// visitor is the per-IP throttling state.
type visitor struct {
	// bucket is this IP's token bucket.
	bucket *rate.Limiter
	// seen is the last request time, used for idle collection.
	seen time.Time
}

// rateLimiter enforces a per-IP token-bucket limit across the protected
// routes. Visitor state is collected in the background once idle.
type rateLimiter struct {
	// mu protects visitors.
	mu sync.Mutex
	// visitors maps remote IP to its throttling state.
	visitors map[string]*visitor
	// rps and burst are the bucket parameters applied to every IP.
	rps   rate.Limit
	burst int
	// log is the fallback logger for events outside a request context.
	log *slog.Logger
}

// newRateLimiter constructs a rateLimiter and starts its background sweep.
// The returned stop function ends the sweep goroutine.
func newRateLimiter(rps float64, burst int, log *slog.Logger) (*rateLimiter, func()) {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		log:      log,
	}

	stopCh := make(chan struct{})
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				rl.sweep()
			}
		}
	}()

	return rl, func() { close(stopCh) }
}

// allow reports whether the given IP may proceed, creating its bucket on
// first sight.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{bucket: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[ip] = v
	}
	v.seen = time.Now()
	bucket := v.bucket
	rl.mu.Unlock()

	return bucket.Allow()
}

// sweep drops visitors idle longer than visitorIdleTTL.
func (rl *rateLimiter) sweep() {
	cutoff := time.Now().Add(-visitorIdleTTL)
	dropped := 0

	rl.mu.Lock()
	for ip, v := range rl.visitors {
		if v.seen.Before(cutoff) {
			delete(rl.visitors, ip)
			dropped++
		}
	}
	remaining := len(rl.visitors)
	rl.mu.Unlock()

	if dropped > 0 {
		rl.log.Debug("rate limiter: idle visitors dropped",
			slog.Int("dropped", dropped),
			slog.Int("remaining", remaining),
		)
	}
}

// size reports the number of tracked visitors. Used by tests.
func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// middleware wraps next with the per-IP limit. Rejected requests get the
// server's JSON error body, a 429 status, and a Retry-After hint derived
// from the refill rate.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	retryAfter := "1"
	if rl.rps > 0 && rl.rps < 1 {
		retryAfter = strconv.Itoa(int(1/float64(rl.rps)) + 1)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.allow(ip) {
			logging.FromContext(r.Context()).Warn("rate limit exceeded",
				slog.String("ip", ip),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", retryAfter)
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the remote IP from the request, stripping the port.
// X-Forwarded-For is deliberately ignored: quill binds to localhost and
// fronts no trusted proxy by default.
func clientIP(r *http.Request) string {
	addr := r.RemoteAddr
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i]
		}
	}
	return addr
}
