package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/quillchat/quill/internal/logging"
)

// defaultOllamaTimeout bounds each embed call. Local Ollama instances can be
// slow on first use while the model loads into memory, so this is generous.
const defaultOllamaTimeout = 60 * time.Second

// maxOllamaErrorBody caps how much of an error response is read for the
// failure message.
const maxOllamaErrorBody = 4 << 10

// OllamaEmbedder implements rag.Embedder against a local Ollama instance.
// Selected with EMBEDDING_PROVIDER=ollama; no credential is needed since
// Ollama serves on localhost. Safe for concurrent use.
type OllamaEmbedder struct {
	// endpoint is the fully resolved embed URL, e.g.
	// "http://localhost:11434/api/embed".
	endpoint string
	// model is the embedding model name, e.g. "nomic-embed-text".
	model string
	// client carries the per-call timeout.
	client *http.Client
}

// OllamaConfig holds the settings for constructing an OllamaEmbedder. Zero
// values fall back to the local-instance defaults the factory documents.
type OllamaConfig struct {
	// Host is the Ollama server base URL. Trailing slashes are tolerated.
	Host string
	// Model is the embedding model name.
	Model string
	// Timeout bounds each embed call. Defaults to 60s if zero.
	Timeout time.Duration
}

// NewOllamaEmbedder constructs an OllamaEmbedder from the given config.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	host := strings.TrimRight(cfg.Host, "/")
	if host == "" {
		host = "http://localhost:11434"
	}
	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultOllamaTimeout
	}

	return &OllamaEmbedder{
		endpoint: host + "/api/embed",
		model:    model,
		client:   &http.Client{Timeout: timeout},
	}
}

// ollamaEmbedRequest is the /api/embed request body.
type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// ollamaEmbedResponse is the /api/embed response body. Error is populated by
// Ollama on failure responses.
type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed converts a batch of texts into embeddings. The returned slice is
// parallel to the input; an empty batch short-circuits without a request.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("embedder: ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("embedder: ollama: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedder: ollama: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedder: ollama: %s", e.failureMessage(resp))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("embedder: ollama: decode response: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder: ollama: expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}

	logging.FromContext(ctx).Debug("embedder: batch embedded",
		slog.String("backend", "ollama"),
		slog.String("model", e.model),
		slog.Int("texts", len(texts)),
	)
	return result.Embeddings, nil
}

// failureMessage extracts the Ollama error field from a failure response,
// falling back to the HTTP status.
func (e *OllamaEmbedder) failureMessage(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxOllamaErrorBody))
	if err == nil {
		var body ollamaEmbedResponse
		if json.Unmarshal(raw, &body) == nil && body.Error != "" {
			return body.Error
		}
	}
	return fmt.Sprintf("HTTP %d", resp.StatusCode)
}
