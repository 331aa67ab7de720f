// Package rag implements the document retrieval oracle: vector storage,
// embedding, and the high-level library that chunks, indexes, and searches
// user documents. Concrete backends (Qdrant, etc.) satisfy the interfaces
// here so the server layer never depends on a specific store.
package rag

import (
	"context"
)

// Chunk is one bounded slice of a source document prepared for embedding.
type Chunk struct {
	// ID uniquely identifies this chunk. IDs carry a random suffix so
	// repeated ingests of the same source never collide.
	ID string

	// Source is the document name this chunk was cut from.
	Source string

	// Content is the chunk text.
	Content string

	// Index is the zero-based position of this chunk within its source.
	Index int

	// Total is the number of chunks the source was cut into.
	Total int
}

// ScoredChunk is a chunk returned from a similarity search.
type ScoredChunk struct {
	Chunk

	// Similarity is the cosine similarity to the query in [0,1].
	Similarity float64
}

// Stats summarises the contents of the document index.
type Stats struct {
	// TotalChunks is the number of indexed chunks across all sources.
	TotalChunks int `json:"total_chunks"`
	// TotalDocuments is the number of distinct sources.
	TotalDocuments int `json:"total_documents"`
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is the interface for persisting and searching chunk embeddings.
// Implementations must be safe to call from multiple goroutines; a query
// concurrent with an ingest must not fail, though it may or may not observe
// the new chunks.
type VectorStore interface {
	// Upsert stores a batch of chunks with their pre-computed embeddings.
	// embeddings[i] is the vector for chunks[i].
	Upsert(ctx context.Context, chunks []Chunk, embeddings [][]float32) error

	// Search returns the top-k chunks most similar to the query embedding,
	// ordered by similarity descending. Fewer than k are returned when
	// fewer are indexed.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]ScoredChunk, error)

	// DeleteBySource removes every chunk belonging to the named source and
	// returns the number removed. Other sources are untouched.
	DeleteBySource(ctx context.Context, source string) (int, error)

	// Clear removes all chunks from the store.
	Clear(ctx context.Context) error

	// Sources returns the distinct source names currently indexed, sorted.
	Sources(ctx context.Context) ([]string, error)

	// Count returns the total number of indexed chunks.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}
