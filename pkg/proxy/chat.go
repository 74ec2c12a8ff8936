package proxy

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"cliproxy/pkg/backend"
	"cliproxy/pkg/ledger"
	"cliproxy/pkg/metrics"
	"cliproxy/pkg/router"
)

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "messages must not be empty")
		return
	}

	b, err := s.selector.Select(req.Model)
	if err != nil {
		s.logger.Warn("backend selection failed", "model", req.Model, "err", err.Error())
		s.writeBackendError(w, err)
		return
	}

	prompt := buildPrompt(req.Messages, req.Tools)
	inv := backend.Invocation{Prompt: prompt, Model: req.Model}
	toolsEnabled := len(req.Tools) > 0
	id := newCompletionID()

	s.logger.Info("chat completion request",
		"backend", b.Name(),
		"model", req.Model,
		"stream", strconv.FormatBool(req.Stream),
		"tools", strconv.Itoa(len(req.Tools)))

	if req.Stream {
		s.streamCompletion(w, r, b, inv, id, req.Model, toolsEnabled)
		return
	}
	s.completeAggregate(w, r, b, inv, id, req.Model, toolsEnabled)
}

func (s *Server) completeAggregate(w http.ResponseWriter, r *http.Request, b backend.Backend, inv backend.Invocation, id, model string, toolsEnabled bool) {
	start := time.Now()
	result, err := b.RunAggregate(r.Context(), inv)
	if err != nil {
		s.recordRequest(b.Name(), model, start, nil, err)
		s.logger.Error("backend run failed", "backend", b.Name(), "err", err.Error())
		s.writeBackendError(w, err)
		return
	}
	s.recordRequest(b.Name(), model, start, &result.Usage, nil)

	resp := buildChatResponse(id, model, result, toolsEnabled)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) streamCompletion(w http.ResponseWriter, r *http.Request, b backend.Backend, inv backend.Invocation, id, model string, toolsEnabled bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", errNoFlusher.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	start := time.Now()
	stream := newChunkStream(w, flusher, id, model, b.Name(), toolsEnabled)
	err := b.RunStreaming(r.Context(), inv, stream.onEvent)
	if err != nil {
		// Headers are already on the wire; the failure is reported through
		// the finish reason instead of a status code.
		s.recordRequest(b.Name(), model, start, stream.Usage(), err)
		s.logger.Error("backend stream failed", "backend", b.Name(), "err", err.Error())
		stream.finish("error")
		return
	}
	s.recordRequest(b.Name(), model, start, stream.Usage(), nil)
	stream.finish(stream.finishReason())
}

// recordRequest feeds the in-memory metrics window and the persistent usage
// ledger, when either is configured.
func (s *Server) recordRequest(backendName, model string, start time.Time, usage *backend.UsageEvent, runErr error) {
	latency := time.Since(start)
	status := "ok"
	errText := ""
	if runErr != nil {
		status = "error"
		errText = runErr.Error()
	}
	tokensIn, tokensOut := 0, 0
	if usage != nil {
		tokensIn = usage.InputTokens
		tokensOut = usage.OutputTokens
	}

	if s.metrics != nil {
		s.metrics.Record(metrics.RequestMetric{
			Timestamp: time.Now(),
			Backend:   backendName,
			Model:     model,
			Latency:   latency,
			Status:    status,
			Error:     errText,
			TokensIn:  tokensIn,
			TokensOut: tokensOut,
		})
	}
	if s.ledger != nil {
		entry := ledger.Entry{
			Backend:          backendName,
			Model:            model,
			Status:           status,
			LatencyMs:        latency.Milliseconds(),
			PromptTokens:     tokensIn,
			CompletionTokens: tokensOut,
			Error:            errText,
		}
		if err := s.ledger.Record(entry); err != nil {
			s.logger.Warn("ledger record failed", "err", err.Error())
		}
	}
}

// writeBackendError maps run failures onto the OpenAI error envelope.
func (s *Server) writeBackendError(w http.ResponseWriter, err error) {
	var notFound *router.NotFoundError
	if errors.As(err, &notFound) {
		writeError(w, http.StatusNotFound, "model_not_found", err.Error())
		return
	}
	var execErr *backend.ExecError
	var protoErr *backend.ProtocolError
	if errors.As(err, &execErr) || errors.As(err, &protoErr) {
		writeError(w, http.StatusInternalServerError, "backend_error", err.Error())
		return
	}
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: ErrorDetail{
		Message: err.Error(),
		Type:    "internal_error",
		Code:    "500",
	}})
}
