package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// sseStream writes named Server-Sent Events with JSON payloads and flushes
// after every event so tokens reach the client as they arrive.
type sseStream struct {
	// w is the underlying response writer.
	w http.ResponseWriter
	// flusher flushes buffered data to the client after each write.
	flusher http.Flusher
}

// newSSEStream prepares the response for event streaming and returns the
// stream writer. Returns an error when the writer cannot stream.
func newSSEStream(w http.ResponseWriter) (*sseStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	return &sseStream{w: w, flusher: flusher}, nil
}

// sendJSON emits one named event whose data line is the JSON encoding of
// payload, then flushes.
func (s *sseStream) sendJSON(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sse: encode %s payload: %w", event, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
