// Package sim provides a synthetic model backend for demos, local runs and
// wiring tests, standing in where a real endpoint would be.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/surecall-ai/surecall/internal/core/domain"
)

// Config shapes the synthetic behavior.
type Config struct {
	// FailFirst makes the first N calls fail with ErrorMessage.
	FailFirst int
	// ErrorMessage for injected failures. The default reads as a retryable
	// upstream error.
	ErrorMessage string
	// Latency simulated per call, honoring context cancellation.
	Latency time.Duration

	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
}

// Model is a fake endpoint. One instance keeps one call counter, so a chain
// of models wanting independent behavior needs one Model each.
type Model struct {
	cfg Config

	mu    sync.Mutex
	calls int
}

func New(cfg Config) *Model {
	if cfg.ErrorMessage == "" {
		cfg.ErrorMessage = "503 service unavailable (simulated)"
	}
	if cfg.InputTokens == 0 {
		cfg.InputTokens = 120
	}
	if cfg.OutputTokens == 0 {
		cfg.OutputTokens = 80
	}
	return &Model{cfg: cfg}
}

// Calls reports how many invocations the model has served.
func (m *Model) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Invoke simulates one provider call.
func (m *Model) Invoke(ctx context.Context, modelID string) (*domain.Response, error) {
	m.mu.Lock()
	m.calls++
	n := m.calls
	m.mu.Unlock()

	if m.cfg.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.cfg.Latency):
		}
	}

	if n <= m.cfg.FailFirst {
		return nil, fmt.Errorf("%s", m.cfg.ErrorMessage)
	}

	return &domain.Response{
		Model:   modelID,
		Content: fmt.Sprintf("simulated response from %s (call %d)", modelID, n),
		Usage: domain.TokenUsage{
			InputTokens:  m.cfg.InputTokens,
			OutputTokens: m.cfg.OutputTokens,
		},
		CostUSD: m.cfg.CostUSD,
	}, nil
}
