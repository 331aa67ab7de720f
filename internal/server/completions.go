package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/quillchat/quill/internal/llm"
	"github.com/quillchat/quill/internal/logging"
	"github.com/quillchat/quill/internal/prompt"
)

// handleCompletions handles POST /api/completions. It gathers retrieval
// context, emits a sources event, and relays the model's stream as named SSE
// events (content, reasoning, error, done). Exactly one terminal event is
// sent per request.
func (s *Server) handleCompletions(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req completionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages is required")
		return
	}

	useRAG := req.UseRAG == nil || *req.UseRAG
	useWeb := req.UseWebSearch == nil || *req.UseWebSearch

	// The last user message determines the retrieval query.
	query := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			query = req.Messages[i].Content
			break
		}
	}

	items := s.deps.Gatherer.Gather(r.Context(), query, useRAG, useWeb)
	s.metrics.contextItemsPerRequest.Observe(float64(len(items)))

	stream, err := newSSEStream(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.metrics.completionActiveStreams.Inc()
	defer s.metrics.completionActiveStreams.Dec()
	start := time.Now()

	if len(items) > 0 {
		if err := stream.sendJSON("sources", items); err != nil {
			log.Warn("completions: client gone before sources", slog.Any("error", err))
			return
		}
	}

	systemPrompt := prompt.Build(items, req.CustomInstructions)
	messages := make([]llm.Message, 0, len(req.Messages)+1)
	messages = append(messages, llm.Message{Role: "system", Content: systemPrompt})
	for _, m := range req.Messages {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}

	outcome := "ok"
	for ev := range s.deps.Streamer.StreamCompletion(r.Context(), messages, llm.Options{Model: req.Model}) {
		var sendErr error
		switch ev.Type {
		case llm.EventContent:
			sendErr = stream.sendJSON("content", map[string]string{"text": ev.Text})
		case llm.EventReasoning:
			sendErr = stream.sendJSON("reasoning", map[string]string{"text": ev.Text})
		case llm.EventError:
			outcome = "error"
			sendErr = stream.sendJSON("error", map[string]string{"message": ev.Message})
		case llm.EventDone:
			sendErr = stream.sendJSON("done", map[string]string{"status": "completed"})
		}
		if sendErr != nil {
			// Client disconnected; the request context cancellation shuts
			// down the upstream stream.
			log.Debug("completions: write failed, client likely gone", slog.Any("error", sendErr))
			outcome = "error"
			break
		}
	}

	s.metrics.completionRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.completionDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}
