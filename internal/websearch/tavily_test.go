package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTavily_NoKeyReturnsEmpty(t *testing.T) {
	t.Parallel()

	c := NewTavilyClient(&TavilyConfig{})
	if c.Enabled() {
		t.Error("client without key must report disabled")
	}

	items, err := c.Search(context.Background(), "anything", 3)
	if err != nil {
		t.Fatalf("Search must not error without a key: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %v", items)
	}
}

func TestTavily_MapsResultsWithSyntheticScores(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req tavilySearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.APIKey != "tvly-test" || req.Query != "raft consensus" {
			t.Errorf("unexpected request: %+v", req)
		}
		if req.MaxResults != 3 || req.SearchDepth != "basic" {
			t.Errorf("unexpected search params: %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{
				{"title": "Raft paper", "url": "https://raft.github.io", "content": "In search of an understandable consensus algorithm"},
				{"title": "Raft on Wikipedia", "url": "https://en.wikipedia.org/wiki/Raft", "content": "Raft is a consensus algorithm"},
			},
		})
	}))
	defer srv.Close()

	c := NewTavilyClient(&TavilyConfig{APIKey: "tvly-test", BaseURL: srv.URL})

	items, err := c.Search(context.Background(), "raft consensus", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.ID != "web_0" || first.Type != "web" {
		t.Errorf("unexpected first item identity: %+v", first)
	}
	if first.Similarity != 0.9 {
		t.Errorf("rank 0 similarity = %v, want 0.9", first.Similarity)
	}
	if first.URL != "https://raft.github.io" {
		t.Errorf("rank 0 url = %q", first.URL)
	}

	second := items[1]
	if second.ID != "web_1" {
		t.Errorf("rank 1 id = %q", second.ID)
	}
	if second.Similarity != 0.85 {
		t.Errorf("rank 1 similarity = %v, want 0.85", second.Similarity)
	}
}

func TestTavily_UpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewTavilyClient(&TavilyConfig{APIKey: "tvly-test", BaseURL: srv.URL})

	if _, err := c.Search(context.Background(), "q", 3); err == nil {
		t.Fatal("expected error on upstream failure")
	}
}

func TestTavily_DefaultsMaxResults(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req tavilySearchRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.MaxResults != 3 {
			t.Errorf("max_results = %d, want default 3", req.MaxResults)
		}
		json.NewEncoder(w).Encode(map[string]any{"results": []map[string]string{}})
	}))
	defer srv.Close()

	c := NewTavilyClient(&TavilyConfig{APIKey: "k", BaseURL: srv.URL})
	if _, err := c.Search(context.Background(), "q", 0); err != nil {
		t.Fatalf("Search: %v", err)
	}
}
