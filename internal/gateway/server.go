// Package gateway exposes the reliability layer over HTTP with an
// OpenAI-compatible surface. Callers POST a normal chat completion body; the
// gateway runs it through retries, fallbacks, breaker and budget, and
// answers with whichever model won.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/surecall-ai/surecall/internal/core/domain"
	"github.com/surecall-ai/surecall/internal/core/policy"
	"github.com/surecall-ai/surecall/internal/reliability/budget"
	"github.com/surecall-ai/surecall/internal/reliability/executor"
	"github.com/surecall-ai/surecall/internal/reliability/metrics"
)

// Upstream performs one chat completion against one endpoint.
type Upstream interface {
	Complete(ctx context.Context, modelID string, payload map[string]any) (*domain.Response, error)
}

// UpstreamFunc adapts a closure to Upstream.
type UpstreamFunc func(ctx context.Context, modelID string, payload map[string]any) (*domain.Response, error)

func (f UpstreamFunc) Complete(ctx context.Context, modelID string, payload map[string]any) (*domain.Response, error) {
	return f(ctx, modelID, payload)
}

// Config wires a Server.
type Config struct {
	Port      int
	Executor  *executor.Executor
	Resolver  *policy.Resolver
	Gate      *budget.Gate
	Upstreams map[string]Upstream
	// Ready reports backing-store health for /health. Nil means always ready.
	Ready func(ctx context.Context) error
}

// Server provides the HTTP endpoints of the gateway.
type Server struct {
	exec      *executor.Executor
	resolver  *policy.Resolver
	gate      *budget.Gate
	upstreams map[string]Upstream
	ready     func(ctx context.Context) error
	server    *http.Server
	log       *slog.Logger
}

// NewServer creates a new gateway server.
func NewServer(cfg Config) *Server {
	mux := http.NewServeMux()
	s := &Server{
		exec:      cfg.Executor,
		resolver:  cfg.Resolver,
		gate:      cfg.Gate,
		upstreams: cfg.Upstreams,
		ready:     cfg.Ready,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Port),
			Handler: mux,
		},
		log: slog.Default().With("component", "gateway"),
	}

	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("/v1/usage", s.handleUsage)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request_error", "use POST")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "failed to read request body")
		return
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "request body is not valid JSON")
		return
	}
	model, _ := payload["model"].(string)
	if model == "" {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "model is required")
		return
	}

	caller := callerIdentity(r)
	tenant := r.Header.Get("X-Tenant")
	pol := s.resolver.Resolve(tenant)

	// The invoker routes each candidate model to its own endpoint. An
	// unknown model errors as terminal, so the chain moves on to the next
	// candidate instead of retrying a model nobody serves.
	invoker := executor.InvokerFunc(func(ctx context.Context, modelID string) (*domain.Response, error) {
		up, ok := s.upstreams[modelID]
		if !ok {
			return nil, fmt.Errorf("no endpoint configured for model %q", modelID)
		}
		return up.Complete(ctx, modelID, payload)
	})

	res, led, err := s.exec.Execute(r.Context(), executor.Request{
		Invoker: invoker,
		Model:   model,
		Caller:  caller,
		Tenant:  tenant,
		Policy:  pol,
	})
	metrics.RecordOutcome(caller, err)

	if err != nil {
		s.log.Warn("chat completion failed",
			"caller", caller, "tenant", tenant, "model", model,
			"attempts", len(led.Attempts), "error", err)
		status, errType := mapError(err)
		writeError(w, status, errType, err.Error())
		return
	}

	metrics.SpendUSD.WithLabelValues(caller, res.Model).Add(res.Response.CostUSD)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Surecall-Model", res.Model)
	w.Header().Set("X-Surecall-Attempts", fmt.Sprintf("%d", len(led.Attempts)))
	w.Header().Set("X-Surecall-Execution", led.ExecutionID)
	w.WriteHeader(http.StatusOK)
	if len(res.Response.Raw) > 0 {
		_, _ = w.Write(res.Response.Raw)
		return
	}
	// Upstreams without a raw payload (simulated backends) still answer in
	// the familiar shape.
	_ = json.NewEncoder(w).Encode(map[string]any{
		"model": res.Model,
		"choices": []map[string]any{
			{
				"message":       map[string]any{"role": "assistant", "content": res.Response.Content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     res.Response.Usage.InputTokens,
			"completion_tokens": res.Response.Usage.OutputTokens,
		},
	})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	caller := r.URL.Query().Get("caller")
	if caller == "" {
		caller = callerIdentity(r)
	}
	tenant := r.URL.Query().Get("tenant")
	if tenant == "" {
		tenant = r.Header.Get("X-Tenant")
	}

	u, err := s.gate.Usage(r.Context(), caller, tenant)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"caller": caller,
		"tenant": tenant,
		"usage":  u,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// callerIdentity names the caller for budgets, breakers and metrics. The
// gateway sits behind the org's own auth, so a header is trusted as-is.
func callerIdentity(r *http.Request) string {
	if caller := r.Header.Get("X-Caller"); caller != "" {
		return caller
	}
	return "anonymous"
}

// mapError picks the HTTP status for a failed execution: budget blocks read
// as rate limiting, deadline as gateway timeout, everything else as a bad
// upstream.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, budget.ErrExceeded):
		return http.StatusTooManyRequests, "budget_exceeded"
	case errors.Is(err, executor.ErrTimeout):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, executor.ErrExhausted):
		return http.StatusBadGateway, "upstream_exhausted"
	default:
		return http.StatusBadGateway, "internal_error"
	}
}

func writeError(w http.ResponseWriter, status int, errType, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
