package server

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// pinger is any dependency exposing a Ping probe. *rag.QdrantStore satisfies it.
type pinger interface {
	Ping(ctx context.Context) error
}

// VectorStorePinger probes the vector store backing the document index.
// It satisfies the Pinger interface and is used by GET /api/ready.
type VectorStorePinger struct {
	// store is the probed vector store.
	store pinger
	// name identifies the backend in readiness responses (e.g. "qdrant").
	name string
}

// NewVectorStorePinger constructs a VectorStorePinger for the given store.
func NewVectorStorePinger(store pinger, name string) *VectorStorePinger {
	return &VectorStorePinger{store: store, name: name}
}

// Name returns the dependency label used in readiness responses.
func (p *VectorStorePinger) Name() string { return p.name }

// Ping delegates to the store's own health check.
func (p *VectorStorePinger) Ping(ctx context.Context) error {
	if err := p.store.Ping(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// ProviderPinger probes the completion provider by listing its models. No
// tokens are consumed. It satisfies the Pinger interface and is used by
// GET /api/ready.
type ProviderPinger struct {
	// baseURL is the provider API base (e.g. "https://openrouter.ai/api/v1").
	baseURL string
	// apiKey is the provider Bearer token.
	apiKey string
	// client is the probe HTTP client.
	client *http.Client
}

// NewProviderPinger constructs a ProviderPinger for the given API base.
func NewProviderPinger(baseURL, apiKey string) *ProviderPinger {
	return &ProviderPinger{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: probeTimeout},
	}
}

// Name returns the dependency label used in readiness responses.
func (p *ProviderPinger) Name() string { return "openrouter" }

// Ping issues a GET /models request and accepts any 2xx response.
func (p *ProviderPinger) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
