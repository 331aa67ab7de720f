package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/quillchat/quill/internal/logging"
)

// MaxContextItems is the hard cap on the merged context list. Everything
// beyond the top entries dilutes the prompt more than it grounds it.
const MaxContextItems = 5

// defaultOracleTimeout bounds each oracle call so one slow dependency cannot
// stall the whole completion request.
const defaultOracleTimeout = 10 * time.Second

// DocumentSearcher is the document-index oracle consumed by the aggregator.
// Implementations must be safe to call from multiple goroutines.
type DocumentSearcher interface {
	// Search returns the top-k most relevant indexed chunks for the query.
	// An empty index yields an empty result, not an error.
	Search(ctx context.Context, query string, topK int) ([]ContextItem, error)
}

// WebSearcher is the web-search oracle consumed by the aggregator.
// Implementations must be safe to call from multiple goroutines.
type WebSearcher interface {
	// Search returns up to maxResults ranked web snippets for the query.
	// A missing credential yields an empty result, not an error.
	Search(ctx context.Context, query string, maxResults int) ([]ContextItem, error)
}

// oracleResult is the settled outcome of one oracle call. Failures are
// normalized to an empty item list by the aggregator — degradation is an
// explicit policy here, not an accident of error handling.
type oracleResult struct {
	// source labels the oracle for logging ("rag" or "web").
	source string
	// items holds the retrieved context on success.
	items []ContextItem
	// err holds the failure on error; items is ignored when set.
	err error
}

// Config holds the aggregator's tuning knobs.
type Config struct {
	// PerSourceK is the number of results requested from each oracle.
	// Defaults to 3 if zero.
	PerSourceK int
	// OracleTimeout bounds each oracle call. Defaults to 10s if zero.
	OracleTimeout time.Duration
}

// Aggregator gathers grounding context for a query from the document index
// and web search concurrently, merging both into a bounded, relevance-sorted
// list. Either oracle may be nil, which disables that source.
type Aggregator struct {
	// docs is the document-index oracle. Nil disables RAG.
	docs DocumentSearcher
	// web is the web-search oracle. Nil disables web search.
	web WebSearcher
	// cfg holds the resolved configuration.
	cfg Config
}

// New constructs an Aggregator over the given oracles.
func New(docs DocumentSearcher, web WebSearcher, cfg Config) *Aggregator {
	if cfg.PerSourceK <= 0 {
		cfg.PerSourceK = 3
	}
	if cfg.OracleTimeout <= 0 {
		cfg.OracleTimeout = defaultOracleTimeout
	}
	return &Aggregator{docs: docs, web: web, cfg: cfg}
}

// Gather fans the query out to both oracles, waits for both to settle, and
// returns the merged context sorted by similarity descending (stable on
// ties) and truncated to MaxContextItems.
//
// This is a fan-out/fan-in join, not a race: results are merged only after
// every enabled oracle has completed or failed. A failure in one oracle is
// logged and treated as zero results from that source — partial failure
// never aborts the request. An empty query skips retrieval entirely.
func (a *Aggregator) Gather(ctx context.Context, query string, useRAG, useWeb bool) []ContextItem {
	if query == "" {
		return nil
	}

	log := logging.FromContext(ctx)

	var wg sync.WaitGroup
	// Fixed slots keep merge order deterministic (documents before web)
	// regardless of which oracle settles first.
	settled := make([]oracleResult, 2)

	if useRAG && a.docs != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			octx, cancel := context.WithTimeout(ctx, a.cfg.OracleTimeout)
			defer cancel()
			items, err := a.docs.Search(octx, query, a.cfg.PerSourceK)
			settled[0] = oracleResult{source: "rag", items: items, err: err}
		}()
	}

	if useWeb && a.web != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			octx, cancel := context.WithTimeout(ctx, a.cfg.OracleTimeout)
			defer cancel()
			items, err := a.web.Search(octx, query, a.cfg.PerSourceK)
			settled[1] = oracleResult{source: "web", items: items, err: err}
		}()
	}

	wg.Wait()

	var merged []ContextItem
	for _, res := range settled {
		if res.source == "" {
			continue // oracle disabled for this request
		}
		if res.err != nil {
			log.Warn("retrieval: oracle failed, degrading to empty result",
				slog.String("source", res.source),
				slog.Any("error", res.err),
			)
			continue
		}
		log.Debug("retrieval: oracle settled",
			slog.String("source", res.source),
			slog.Int("items", len(res.items)),
		)
		merged = append(merged, res.items...)
	}

	// Stable keeps discovery order on equal scores.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Similarity > merged[j].Similarity
	})

	if len(merged) > MaxContextItems {
		merged = merged[:MaxContextItems]
	}
	return merged
}
