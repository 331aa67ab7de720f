// Package llm streams chat completions from an OpenRouter-compatible
// provider. It parses the upstream SSE delta frames and republishes them as a
// normalized event sequence with exactly one terminal event per request.
package llm

import (
	"net"
	"net/http"
	"time"
)

// defaultBaseURL is the OpenRouter API base.
const defaultBaseURL = "https://openrouter.ai/api/v1"

// defaultTemperature matches the provider default used for chat completions.
const defaultTemperature = 0.8

// Message is one turn of the conversation sent upstream.
type Message struct {
	// Role is one of "user", "assistant", or "system".
	Role string `json:"role"`
	// Content is the message text.
	Content string `json:"content"`
}

// EventType discriminates the stream event union.
type EventType string

const (
	// EventContent carries a fragment of the assistant's visible answer.
	EventContent EventType = "content"
	// EventReasoning carries a fragment of the model's reasoning trace.
	EventReasoning EventType = "reasoning"
	// EventError carries a human-readable failure message. Terminal.
	EventError EventType = "error"
	// EventDone marks normal stream completion. Terminal.
	EventDone EventType = "done"
)

// Event is one normalized unit of the completion stream.
type Event struct {
	// Type discriminates the union.
	Type EventType
	// Text holds the fragment for content and reasoning events.
	Text string
	// Message holds the failure description for error events.
	Message string
}

// Options tunes a single streaming request.
type Options struct {
	// Model overrides the client's default model for this request.
	Model string
	// CustomHeaders are added to the upstream request (attribution headers
	// like HTTP-Referer are set by the client itself).
	CustomHeaders map[string]string
}

// Client streams chat completions from the provider. It is safe for
// concurrent use; each StreamCompletion call owns its own connection.
type Client struct {
	// apiKey is the provider Bearer token.
	apiKey string
	// baseURL is the API base URL.
	baseURL string
	// defaultModel is used when a request does not name a model.
	defaultModel string
	// referer and title are OpenRouter attribution headers.
	referer string
	title   string
	// httpClient carries connect/TLS timeouts at the transport level. No
	// overall request timeout is set — streams are long-lived and bounded
	// by the caller's context instead.
	httpClient *http.Client
}

// Config holds the settings for constructing a Client.
type Config struct {
	// APIKey is the provider Bearer token.
	APIKey string
	// BaseURL overrides the API base URL (for proxies and tests).
	BaseURL string
	// DefaultModel is the model identifier used when a request omits one.
	DefaultModel string
	// Referer is the HTTP-Referer attribution header value.
	Referer string
	// Title is the X-Title attribution header value.
	Title string
}

// NewClient constructs a streaming completion client.
func NewClient(cfg *Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	referer := cfg.Referer
	if referer == "" {
		referer = "https://quill.chat"
	}
	title := cfg.Title
	if title == "" {
		title = "Quill"
	}

	// Connect and TLS handshake are bounded; response read is not, since a
	// healthy stream can stay open for minutes.
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		defaultModel: cfg.DefaultModel,
		referer:      referer,
		title:        title,
		httpClient:   &http.Client{Transport: transport},
	}
}

// DefaultModel returns the model used when a request does not name one.
func (c *Client) DefaultModel() string {
	return c.defaultModel
}
