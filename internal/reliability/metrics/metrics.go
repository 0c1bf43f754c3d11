package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/surecall-ai/surecall/internal/reliability/budget"
	"github.com/surecall-ai/surecall/internal/reliability/executor"
	"github.com/surecall-ai/surecall/internal/reliability/ledger"
)

var (
	// ExecutionsTotal tracks finished executions per caller and outcome
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surecall_executions_total",
			Help: "Total number of executions by outcome",
		},
		[]string{"caller", "outcome"},
	)

	// AttemptsTotal tracks provider attempts per model and outcome
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surecall_attempts_total",
			Help: "Total number of provider attempts",
		},
		[]string{"model", "outcome"},
	)

	// AttemptLatency tracks provider call latency per model
	AttemptLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "surecall_attempt_latency_seconds",
			Help:    "Provider attempt latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"model"},
	)

	// RetriesTotal tracks retries per model, not counting first attempts
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surecall_retries_total",
			Help: "Total number of retry attempts",
		},
		[]string{"model"},
	)

	// ShortCircuitsTotal tracks models skipped on an open circuit breaker
	ShortCircuitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surecall_breaker_short_circuits_total",
			Help: "Total number of calls skipped on an open circuit",
		},
		[]string{"model"},
	)

	// BudgetBlocksTotal tracks executions blocked by a budget ceiling
	BudgetBlocksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surecall_budget_blocks_total",
			Help: "Total number of executions blocked by budget",
		},
		[]string{"scope"},
	)

	// SpendUSD tracks accumulated provider spend per caller and model
	SpendUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surecall_spend_usd_total",
			Help: "Accumulated provider spend in USD",
		},
		[]string{"caller", "model"},
	)

	// TokensTotal tracks token throughput per model and direction
	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surecall_tokens_total",
			Help: "Total tokens by direction",
		},
		[]string{"model", "direction"},
	)
)

// Observer feeds attempt lifecycle events into the collectors. Plug it into
// the executor via its Events hook.
type Observer struct{}

func (Observer) AttemptStarted(_ executor.Execution, modelID string, attemptIndex int) {
	if attemptIndex > 0 {
		RetriesTotal.WithLabelValues(modelID).Inc()
	}
}

func (Observer) AttemptCompleted(_ executor.Execution, att ledger.Attempt) {
	if att.ShortCircuited {
		ShortCircuitsTotal.WithLabelValues(att.ModelID).Inc()
		return
	}
	outcome := "success"
	if att.Failed() {
		outcome = "failure"
	}
	AttemptsTotal.WithLabelValues(att.ModelID, outcome).Inc()
	AttemptLatency.WithLabelValues(att.ModelID).Observe(float64(att.DurationMillis) / 1000)
	if att.InputTokens != nil {
		TokensTotal.WithLabelValues(att.ModelID, "input").Add(float64(*att.InputTokens))
	}
	if att.OutputTokens != nil {
		TokensTotal.WithLabelValues(att.ModelID, "output").Add(float64(*att.OutputTokens))
	}
}

// RecordOutcome classifies an execution's final error for ExecutionsTotal
// and counts budget blocks by scope.
func RecordOutcome(caller string, err error) {
	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, budget.ErrExceeded):
		outcome = "budget_blocked"
		var ex *budget.ExceededError
		if errors.As(err, &ex) {
			BudgetBlocksTotal.WithLabelValues(string(ex.Scope)).Inc()
		}
	case errors.Is(err, executor.ErrTimeout):
		outcome = "timeout"
	case errors.Is(err, executor.ErrExhausted):
		outcome = "exhausted"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		outcome = "canceled"
	default:
		outcome = "error"
	}
	ExecutionsTotal.WithLabelValues(caller, outcome).Inc()
}
