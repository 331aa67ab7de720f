package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/quillchat/quill/internal/logging"
)

// maxLineSize bounds a single SSE line. Delta frames are small; anything
// beyond this is a misbehaving upstream.
const maxLineSize = 1 << 20

// completionRequest is the JSON body sent to the chat completions endpoint.
type completionRequest struct {
	Model            string            `json:"model"`
	Messages         []Message         `json:"messages"`
	Stream           bool              `json:"stream"`
	Temperature      float64           `json:"temperature"`
	Provider         map[string]string `json:"provider,omitempty"`
	IncludeReasoning bool              `json:"include_reasoning"`
}

// deltaFrame is one parsed upstream SSE data frame.
type deltaFrame struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			Reasoning string `json:"reasoning"`
		} `json:"delta"`
	} `json:"choices"`
}

// StreamCompletion opens a streaming completion and returns the normalized
// event channel. The channel is unbuffered, so a slow consumer suspends
// production rather than buffering unboundedly, and it is closed after
// exactly one terminal event (done or error). Cancelling ctx closes the
// upstream connection promptly.
func (c *Client) StreamCompletion(ctx context.Context, messages []Message, opts Options) <-chan Event {
	events := make(chan Event)
	go c.stream(ctx, messages, opts, events)
	return events
}

func (c *Client) stream(ctx context.Context, messages []Message, opts Options, events chan<- Event) {
	defer close(events)

	log := logging.FromContext(ctx)

	model := opts.Model
	if model == "" {
		model = c.defaultModel
	}

	body := completionRequest{
		Model:            model,
		Messages:         messages,
		Stream:           true,
		Temperature:      defaultTemperature,
		Provider:         map[string]string{"sort": "throughput"},
		IncludeReasoning: true,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		emit(ctx, events, Event{Type: EventError, Message: fmt.Sprintf("failed to encode request: %v", err)})
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		emit(ctx, events, Event{Type: EventError, Message: fmt.Sprintf("failed to create request: %v", err)})
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", c.referer)
	req.Header.Set("X-Title", c.title)
	for k, v := range opts.CustomHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("llm: request failed", slog.Any("error", err))
		emit(ctx, events, Event{Type: EventError, Message: classifyTransportError(err)})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := extractErrorMessage(resp.Body)
		log.Error("llm: upstream error",
			slog.Int("status", resp.StatusCode),
			slog.String("message", msg),
		)
		emit(ctx, events, Event{Type: EventError, Message: msg})
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") || line == "data: [DONE]" {
			continue
		}

		var frame deltaFrame
		if err := json.Unmarshal([]byte(line[len("data: "):]), &frame); err != nil {
			// Forward error recovery: a malformed frame is skipped, never fatal.
			log.Warn("llm: skipping malformed stream frame", slog.Any("error", err))
			continue
		}
		if len(frame.Choices) == 0 {
			continue
		}

		delta := frame.Choices[0].Delta
		if delta.Content != "" {
			if !emit(ctx, events, Event{Type: EventContent, Text: delta.Content}) {
				return
			}
		}
		if delta.Reasoning != "" {
			if !emit(ctx, events, Event{Type: EventReasoning, Text: delta.Reasoning}) {
				return
			}
		}
	}

	if err := scanner.Err(); err != nil {
		log.Error("llm: stream read failed", slog.Any("error", err))
		emit(ctx, events, Event{Type: EventError, Message: classifyTransportError(err)})
		return
	}

	emit(ctx, events, Event{Type: EventDone})
}

// emit sends an event unless the context is done. Returns false when the
// consumer is gone and the stream should stop producing.
func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// extractErrorMessage pulls a human-readable message out of an upstream error
// body. It tries the nested error.message shape first, then a top-level
// message, then falls back to the raw body.
func extractErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 8192))
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		return "API Request Failed"
	}

	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return string(bytes.TrimSpace(raw))
	}

	if len(envelope.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
		// error is present but not an object with a message — stringify it.
		var asString string
		if err := json.Unmarshal(envelope.Error, &asString); err == nil && asString != "" {
			return asString
		}
		return string(bytes.TrimSpace(envelope.Error))
	}

	if envelope.Message != "" {
		return envelope.Message
	}

	return string(bytes.TrimSpace(raw))
}

// classifyTransportError maps a transport failure onto a fixed human-readable
// message per failure class.
func classifyTransportError(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Request timed out. Please try again."
	}
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return "Request timed out. Please try again."
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "Failed to connect to the model provider. Check your connection."
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return "Connection to the model provider was interrupted."
	}
	return err.Error()
}
