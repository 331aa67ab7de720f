// Package retrieval defines the shared context-item model and the aggregator
// that fans a user query out to the document and web oracles, merges their
// results, and bounds the final context window.
package retrieval

// ItemType identifies the origin of a context item.
type ItemType string

const (
	// TypeFile marks an item retrieved from the local document index.
	TypeFile ItemType = "file"
	// TypeWeb marks an item retrieved from live web search.
	TypeWeb ItemType = "web"
)

// ContextItem is a single retrieved snippet with a relevance score.
// Items are immutable once produced; the aggregator orders them by
// Similarity descending with ties kept in discovery order.
type ContextItem struct {
	// ID uniquely identifies the item within its source.
	ID string `json:"id"`
	// Title is the human-readable source title (document name or page title).
	Title string `json:"title"`
	// Content is the snippet text used for grounding.
	Content string `json:"content"`
	// Similarity is the relevance score in [0,1]. For web results the score
	// is synthetic (rank-derived), not a true probability.
	Similarity float64 `json:"similarity"`
	// Type is the item origin: file or web.
	Type ItemType `json:"type"`
	// URL is set for web items only.
	URL string `json:"url,omitempty"`
}
