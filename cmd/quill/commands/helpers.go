package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/quillchat/quill/internal/embedder"
	"github.com/quillchat/quill/internal/rag"
	"github.com/quillchat/quill/internal/websearch"
)

// getEnvOrDefault returns the env var value, or def when unset or empty.
func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the env var parsed as an int, or def when unset or invalid.
func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// buildLibrary wires the embedder and Qdrant store into a document library.
// When QDRANT_HOST is unset the document index is disabled: the library and
// store come back nil so callers degrade gracefully. The returned close
// function releases the Qdrant connection and is always safe to call.
func buildLibrary(ctx context.Context, log *slog.Logger) (*rag.Library, *rag.QdrantStore, func(), error) {
	if os.Getenv("QDRANT_HOST") == "" {
		log.Info("document index disabled", slog.String("reason", "QDRANT_HOST not set"))
		return nil, nil, func() {}, nil
	}

	if err := embedder.ValidateForRAG(log); err != nil {
		return nil, nil, nil, err
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	backend := embedder.Backend()
	vectorSize := uint64(embedder.DefaultDimensions(backend)) //nolint:gosec // dimensions are bounded

	qdrantStore, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
		Port:       getEnvInt("QDRANT_PORT", 6334),
		Collection: getEnvOrDefault("QDRANT_COLLECTION", "quill-documents"),
		VectorSize: vectorSize,
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	library, err := rag.NewLibrary(emb, qdrantStore, nil)
	if err != nil {
		_ = qdrantStore.Close()
		return nil, nil, nil, fmt.Errorf("failed to create document library: %w", err)
	}

	log.Info("document index ready",
		slog.String("backend", backend),
		slog.String("collection", getEnvOrDefault("QDRANT_COLLECTION", "quill-documents")),
	)
	return library, qdrantStore, func() { _ = qdrantStore.Close() }, nil
}

// buildWebSearch constructs the Tavily client. A missing TAVILY_API_KEY is
// not an error: the client degrades to empty results.
func buildWebSearch(log *slog.Logger) *websearch.TavilyClient {
	client := websearch.NewTavilyClient(&websearch.TavilyConfig{
		APIKey: os.Getenv("TAVILY_API_KEY"),
	})
	if !client.Enabled() {
		log.Info("web search disabled", slog.String("reason", "TAVILY_API_KEY not set"))
	}
	return client
}
