// Package websearch implements the live web search oracle backed by the
// Tavily search API. It talks to Tavily via plain HTTP — no SDK required.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/quillchat/quill/internal/retrieval"
)

// defaultBaseURL is the Tavily search endpoint base.
const defaultBaseURL = "https://api.tavily.com"

// rankDecay is how much synthetic similarity drops per rank position. Tavily
// does not return comparable similarity scores, so results are assigned
// 0.9 − 0.05×rank to slot them among document chunks.
const (
	topRankSimilarity = 0.9
	rankDecay         = 0.05
)

// TavilyClient implements retrieval.WebSearcher using the Tavily search API.
// It is safe for concurrent use. A client with no API key is valid: every
// search returns empty results, which lets the feature degrade silently when
// the credential is absent.
type TavilyClient struct {
	// apiKey is the Tavily API key. Empty disables the oracle.
	apiKey string
	// baseURL is the API base URL (overridable for tests).
	baseURL string
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// TavilyConfig holds the settings for constructing a TavilyClient.
type TavilyConfig struct {
	// APIKey is the Tavily API key. Empty disables web search.
	APIKey string
	// BaseURL overrides the Tavily API base URL (for proxies and tests).
	BaseURL string
}

// NewTavilyClient constructs a TavilyClient from the given config.
func NewTavilyClient(cfg *TavilyConfig) *TavilyClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &TavilyClient{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled reports whether the client holds a credential.
func (c *TavilyClient) Enabled() bool {
	return c.apiKey != ""
}

// tavilySearchRequest is the JSON body sent to the Tavily search endpoint.
type tavilySearchRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

// tavilySearchResponse is the JSON body returned from the Tavily search endpoint.
type tavilySearchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search returns up to maxResults web snippets for the query as context items.
// Results keep Tavily's rank order and are assigned synthetic similarity
// scores descending from 0.9. A missing API key returns empty results, not an
// error.
func (c *TavilyClient) Search(ctx context.Context, query string, maxResults int) ([]retrieval.ContextItem, error) {
	if !c.Enabled() {
		return nil, nil
	}
	if maxResults <= 0 {
		maxResults = 3
	}

	body := tavilySearchRequest{
		APIKey:      c.apiKey,
		Query:       query,
		MaxResults:  maxResults,
		SearchDepth: "basic",
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("tavily: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("tavily: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tavily: HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var result tavilySearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("tavily: decode response: %w", err)
	}

	items := make([]retrieval.ContextItem, 0, len(result.Results))
	for i, r := range result.Results {
		items = append(items, retrieval.ContextItem{
			ID:         fmt.Sprintf("web_%d", i),
			Title:      r.Title,
			Content:    r.Content,
			Similarity: topRankSimilarity - rankDecay*float64(i),
			Type:       retrieval.TypeWeb,
			URL:        r.URL,
		})
	}

	return items, nil
}
