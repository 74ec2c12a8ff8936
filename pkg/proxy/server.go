package proxy

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os/exec"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"cliproxy/pkg/ledger"
	"cliproxy/pkg/metrics"
	"cliproxy/pkg/router"
)

var errNoFlusher = errors.New("response writer does not support flushing")

// Config controls proxy behavior.
type Config struct {
	Version     string
	APIKeys     []string
	LogRequests bool
	// RateLimit is a per-client request rate spec like "60/m". Empty
	// disables limiting.
	RateLimit string
}

// Server serves the OpenAI-compatible HTTP surface in front of the CLI
// backends. Metrics and ledger are optional; a nil collector or store
// disables that concern.
type Server struct {
	cfg      Config
	selector *router.Selector
	logger   *Logger
	metrics  *metrics.Collector
	ledger   *ledger.Store
	limiter  *limiterStore
}

func NewServer(cfg Config, selector *router.Selector, logger *Logger, collector *metrics.Collector, store *ledger.Store) *Server {
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	limiter, err := newLimiterStore(cfg.RateLimit)
	if err != nil {
		logger.Warn("invalid rate limit spec, limiting disabled", "spec", cfg.RateLimit, "err", err.Error())
	}
	return &Server{
		cfg:      cfg,
		selector: selector,
		logger:   logger,
		metrics:  collector,
		ledger:   store,
		limiter:  limiter,
	}
}

// Handler returns the routed HTTP handler with the full middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(s.recoverer)
	if s.cfg.LogRequests {
		r.Use(s.requestLogger)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Use(s.rateLimit)
		r.Get("/models", s.handleModels)
		r.Post("/chat/completions", s.handleChatCompletions)
	})

	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "CLI Proxy",
		"version":     s.cfg.Version,
		"description": "OpenAI-compatible API proxy for Codex and OpenCode CLIs",
		"endpoints": map[string]string{
			"health":           "/health",
			"metrics":          "/metrics",
			"models":           "/v1/models",
			"chat_completions": "/v1/chat/completions",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "healthy",
		Version:  s.cfg.Version,
		Backends: CheckBackends(s.selector),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeError(w, http.StatusNotFound, "not_found_error", "metrics collection is disabled")
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.Stats())
}

// handleModels lists the synthetic local-model aliases of the registered
// backends. Clients route by these IDs or by a provider-prefixed model name.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	aliases := s.selector.Aliases()
	models := make([]Model, 0, len(aliases))
	for _, alias := range aliases {
		models = append(models, Model{
			ID:      alias,
			Object:  "model",
			Created: 1700000000,
			OwnedBy: "cli-proxy",
		})
	}
	writeJSON(w, http.StatusOK, ModelsResponse{Object: "list", Data: models})
}

// CheckBackends probes every registered backend binary through PATH lookup.
// Used by the health endpoint and by startup validation.
func CheckBackends(selector *router.Selector) map[string]BackendHealth {
	out := make(map[string]BackendHealth)
	for _, b := range selector.Backends() {
		_, err := exec.LookPath(b.Executable())
		out[b.Name()] = BackendHealth{
			Path:      b.Executable(),
			Available: err == nil,
			Model:     b.DefaultModel(),
		}
	}
	return out
}

func readJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, 20*1024*1024))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return errors.New("empty body")
	}
	return json.Unmarshal(body, out)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	_ = enc.Encode(body)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{
		Message: message,
		Type:    errType,
	}})
}

func writeSSE(w io.Writer, flusher http.Flusher, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\n\n")); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
