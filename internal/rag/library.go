package rag

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/quillchat/quill/internal/chunk"
	"github.com/quillchat/quill/internal/logging"
	"github.com/quillchat/quill/internal/retrieval"
)

// LibraryConfig holds the settings for constructing a Library.
type LibraryConfig struct {
	// ChunkSize is the target chunk size in characters. Defaults to
	// chunk.DefaultSize if zero.
	ChunkSize int
	// ChunkOverlap is the overlap between consecutive chunks in characters.
	// Defaults to chunk.DefaultOverlap if negative or unset (-1 selects the
	// default; 0 is honoured as no overlap).
	ChunkOverlap int
}

// Library is the document retrieval oracle. It combines the chunker, an
// Embedder, and a VectorStore into the add/query/delete/list/stats surface
// the server exposes. It is stateless over its dependencies and safe for
// concurrent use.
type Library struct {
	// embedder converts chunk and query text to dense vectors.
	embedder Embedder

	// store persists and searches the embedded chunks.
	store VectorStore

	// chunkSize and chunkOverlap parameterise the splitter.
	chunkSize    int
	chunkOverlap int
}

// NewLibrary constructs a Library from the given Embedder and VectorStore.
func NewLibrary(embedder Embedder, store VectorStore, cfg *LibraryConfig) (*Library, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if cfg == nil {
		cfg = &LibraryConfig{ChunkOverlap: -1}
	}
	size := cfg.ChunkSize
	if size <= 0 {
		size = chunk.DefaultSize
	}
	overlap := cfg.ChunkOverlap
	if overlap < 0 {
		overlap = chunk.DefaultOverlap
	}

	return &Library{
		embedder:     embedder,
		store:        store,
		chunkSize:    size,
		chunkOverlap: overlap,
	}, nil
}

// Ingest chunks, embeds, and indexes a document under the given source name.
// Returns the number of chunks created. Ingesting the same name twice adds a
// second copy — chunk IDs carry a random suffix precisely so repeated
// ingests never collide; callers that want replace semantics delete first.
func (l *Library) Ingest(ctx context.Context, name, content string) (int, error) {
	pieces := chunk.Split(content, l.chunkSize, l.chunkOverlap)
	if len(pieces) == 0 || (len(pieces) == 1 && strings.TrimSpace(pieces[0]) == "") {
		return 0, nil
	}

	embeddings, err := l.embedder.Embed(ctx, pieces)
	if err != nil {
		return 0, fmt.Errorf("rag: embedding %q failed: %w", name, err)
	}

	chunks := make([]Chunk, 0, len(pieces))
	for i, text := range pieces {
		chunks = append(chunks, Chunk{
			ID:      chunkID(name, i),
			Source:  name,
			Content: text,
			Index:   i,
			Total:   len(pieces),
		})
	}

	if err := l.store.Upsert(ctx, chunks, embeddings); err != nil {
		return 0, fmt.Errorf("rag: indexing %q failed: %w", name, err)
	}

	logging.FromContext(ctx).Info("rag: document ingested",
		slog.String("source", name),
		slog.Int("chunks", len(chunks)),
	)
	return len(chunks), nil
}

// Search embeds the query and returns the top-k most similar chunks as
// context items. Similarity scores are rounded to 3 decimals. An empty index
// returns an empty result, never an error.
func (l *Library) Search(ctx context.Context, query string, topK int) ([]retrieval.ContextItem, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = retrieval.MaxContextItems
	}

	total, err := l.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("rag: count failed: %w", err)
	}
	if total == 0 {
		return nil, nil
	}
	if topK > total {
		topK = total
	}

	embeddings, err := l.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}

	scored, err := l.store.Search(ctx, embeddings[0], topK)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}

	items := make([]retrieval.ContextItem, 0, len(scored))
	for _, sc := range scored {
		items = append(items, retrieval.ContextItem{
			ID:         sc.ID,
			Title:      sc.Source,
			Content:    sc.Content,
			Similarity: round3(sc.Similarity),
			Type:       retrieval.TypeFile,
		})
	}
	return items, nil
}

// DeleteSource removes every chunk belonging to the named source and returns
// the number removed.
func (l *Library) DeleteSource(ctx context.Context, name string) (int, error) {
	n, err := l.store.DeleteBySource(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("rag: delete source %q failed: %w", name, err)
	}
	if n > 0 {
		logging.FromContext(ctx).Info("rag: source deleted",
			slog.String("source", name),
			slog.Int("chunks", n),
		)
	}
	return n, nil
}

// Clear removes all documents from the index.
func (l *Library) Clear(ctx context.Context) error {
	if err := l.store.Clear(ctx); err != nil {
		return fmt.Errorf("rag: clear failed: %w", err)
	}
	logging.FromContext(ctx).Info("rag: index cleared")
	return nil
}

// SourceNames returns the distinct source names currently indexed, sorted.
func (l *Library) SourceNames(ctx context.Context) ([]string, error) {
	names, err := l.store.Sources(ctx)
	if err != nil {
		return nil, fmt.Errorf("rag: list sources failed: %w", err)
	}
	return names, nil
}

// Stats reports the total chunk and document counts.
func (l *Library) Stats(ctx context.Context) (Stats, error) {
	count, err := l.store.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("rag: count failed: %w", err)
	}
	names, err := l.store.Sources(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("rag: list sources failed: %w", err)
	}
	return Stats{TotalChunks: count, TotalDocuments: len(names)}, nil
}

// chunkID builds a globally unique chunk identifier from the source name,
// chunk index, and a random suffix.
func chunkID(source string, index int) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%d_%s", source, index, suffix)
}

// round3 rounds a similarity score to 3 decimal places.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
