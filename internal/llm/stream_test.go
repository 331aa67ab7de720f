package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// sseUpstream is a mock chat-completions endpoint that emits the given lines.
func sseUpstream(t *testing.T, status int, lines ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(status)
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n", line)
			flusher.Flush()
		}
	}))
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var got []Event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-deadline:
			t.Fatalf("timed out waiting for stream to close; got %v", got)
		}
	}
}

func testClient(baseURL string) *Client {
	return NewClient(&Config{APIKey: "test-key", BaseURL: baseURL, DefaultModel: "test/model"})
}

func TestStreamCompletion_ContentThenDone(t *testing.T) {
	srv := sseUpstream(t, http.StatusOK,
		`data: {"choices":[{"delta":{"content":"Hi"}}]}`,
		`data: [DONE]`,
	)
	defer srv.Close()

	events := collect(t, testClient(srv.URL).StreamCompletion(context.Background(), []Message{{Role: "user", Content: "hello"}}, Options{}))

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %v", events)
	}
	if events[0].Type != EventContent || events[0].Text != "Hi" {
		t.Errorf("first event = %+v, want content %q", events[0], "Hi")
	}
	if events[1].Type != EventDone {
		t.Errorf("last event = %+v, want done", events[1])
	}
}

func TestStreamCompletion_NonOKYieldsSingleError(t *testing.T) {
	srv := sseUpstream(t, http.StatusPaymentRequired,
		`{"error":{"message":"insufficient credits"}}`,
	)
	defer srv.Close()

	events := collect(t, testClient(srv.URL).StreamCompletion(context.Background(), nil, Options{}))

	if len(events) != 1 {
		t.Fatalf("expected exactly 1 event, got %v", events)
	}
	if events[0].Type != EventError || events[0].Message != "insufficient credits" {
		t.Errorf("event = %+v, want extracted error message", events[0])
	}
}

func TestStreamCompletion_ReasoningAndContentInterleave(t *testing.T) {
	srv := sseUpstream(t, http.StatusOK,
		`data: {"choices":[{"delta":{"reasoning":"thinking..."}}]}`,
		`data: {"choices":[{"delta":{"content":"The","reasoning":"still thinking"}}]}`,
		`data: {"choices":[{"delta":{"content":" answer"}}]}`,
		`data: [DONE]`,
	)
	defer srv.Close()

	events := collect(t, testClient(srv.URL).StreamCompletion(context.Background(), nil, Options{}))

	want := []Event{
		{Type: EventReasoning, Text: "thinking..."},
		{Type: EventContent, Text: "The"},
		{Type: EventReasoning, Text: "still thinking"},
		{Type: EventContent, Text: " answer"},
		{Type: EventDone},
	}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), events)
	}
	for i, w := range want {
		if events[i] != w {
			t.Errorf("event %d = %+v, want %+v", i, events[i], w)
		}
	}
}

func TestStreamCompletion_MalformedFrameSkipped(t *testing.T) {
	srv := sseUpstream(t, http.StatusOK,
		`data: {this is not json`,
		`data: {"choices":[{"delta":{"content":"ok"}}]}`,
		`data: [DONE]`,
	)
	defer srv.Close()

	events := collect(t, testClient(srv.URL).StreamCompletion(context.Background(), nil, Options{}))

	if len(events) != 2 {
		t.Fatalf("expected malformed frame to be skipped, got %v", events)
	}
	if events[0].Type != EventContent || events[0].Text != "ok" {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Type != EventDone {
		t.Errorf("last event = %+v, want done", events[1])
	}
}

func TestStreamCompletion_EmptyDeltasProduceNoEvents(t *testing.T) {
	srv := sseUpstream(t, http.StatusOK,
		`data: {"choices":[{"delta":{}}]}`,
		`: keep-alive comment`,
		``,
		`data: [DONE]`,
	)
	defer srv.Close()

	events := collect(t, testClient(srv.URL).StreamCompletion(context.Background(), nil, Options{}))

	if len(events) != 1 || events[0].Type != EventDone {
		t.Fatalf("expected only done, got %v", events)
	}
}

func TestStreamCompletion_ConnectFailure(t *testing.T) {
	// Point at a closed port.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	events := collect(t, testClient(srv.URL).StreamCompletion(context.Background(), nil, Options{}))

	if len(events) != 1 || events[0].Type != EventError {
		t.Fatalf("expected single error event, got %v", events)
	}
	if events[0].Message != "Failed to connect to the model provider. Check your connection." {
		t.Errorf("message = %q", events[0].Message)
	}
}

func TestStreamCompletion_CancelClosesStream(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n")
		w.(http.Flusher).Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	events := testClient(srv.URL).StreamCompletion(ctx, nil, Options{})

	first := <-events
	if first.Type != EventContent {
		t.Fatalf("first event = %+v", first)
	}
	cancel()

	// The channel must close promptly after cancellation.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream did not close after cancel")
		}
	}
}

func TestExtractErrorMessage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		want string
	}{
		{"nested error object", `{"error":{"message":"model not found"}}`, "model not found"},
		{"error as string", `{"error":"rate limited"}`, "rate limited"},
		{"top-level message", `{"message":"bad request"}`, "bad request"},
		{"plain text body", `upstream exploded`, "upstream exploded"},
		{"empty body", ``, "API Request Failed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := extractErrorMessage(strings.NewReader(tc.body)); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}
