// Package reliability provides a resilient execution layer for LLM calls.
//
// This package wraps provider calls with:
//   - Automatic retries (constant/exponential backoff with jitter)
//   - Ordered fallback across models
//   - Per-(caller, model, tenant) circuit breaking
//   - Spend and token budget gating
//   - Total deadline enforcement across all retries and fallbacks
//
// # Quick Start
//
//	import "github.com/surecall-ai/surecall/internal/reliability"
//
//	// Setup (store is a counter.Store, Redis in production)
//	exec := reliability.NewExecutor(reliability.Config{
//	    Breaker: reliability.NewBreaker(store),
//	    Budget:  reliability.NewGate(store),
//	})
//
//	// Execute a call through the layer
//	res, led, err := exec.Execute(ctx, reliability.Request{
//	    Invoker: invoker,            // performs one provider call
//	    Model:   "gpt-4o",
//	    Caller:  "checkout-service",
//	    Policy:  resolver.Resolve(tenantID),
//	})
//
// Every execution returns an attempt ledger, success or not. Terminal errors
// are matched with errors.Is against ErrTimeout, ErrExhausted and
// ErrBudgetExceeded.
//
// # Package Structure
//
// The package is organized into sub-packages for maintainability:
//
//   - executor/ - The fallback/retry state machine and its hooks
//   - retry/    - Backoff math and error classification
//   - ledger/   - Append-only attempt history per execution
//   - breaker/  - Counter-store-backed circuit breaking
//   - budget/   - Spend and token ceilings over date-bucketed counters
//   - metrics/  - Prometheus collectors and the executor observer
//
// Most types are re-exported at the root level for convenience.
package reliability

import (
	"github.com/surecall-ai/surecall/internal/infra/counter"
	"github.com/surecall-ai/surecall/internal/reliability/breaker"
	"github.com/surecall-ai/surecall/internal/reliability/budget"
	"github.com/surecall-ai/surecall/internal/reliability/executor"
	"github.com/surecall-ai/surecall/internal/reliability/ledger"
)

// =============================================================================
// Re-exported types from executor package
// =============================================================================

// Executor runs requests through retries, fallbacks, breaker and budget.
type Executor = executor.Executor

// Config wires an Executor.
type Config = executor.Config

// Request is one call through the reliability layer.
type Request = executor.Request

// Result is a successful outcome.
type Result = executor.Result

// Invoker performs one provider call for one model.
type Invoker = executor.Invoker

// InvokerFunc adapts a closure to Invoker.
type InvokerFunc = executor.InvokerFunc

// Execution identifies one call travelling through the layer.
type Execution = executor.Execution

// Observer receives attempt lifecycle notifications.
type Observer = executor.Observer

// Sleeper is the backoff waiting seam.
type Sleeper = executor.Sleeper

// TimerSleeper waits on a timer, honoring context cancellation.
type TimerSleeper = executor.TimerSleeper

// TotalTimeoutError reports an execution abandoned at its overall deadline.
type TotalTimeoutError = executor.TotalTimeoutError

// ExhaustedError reports that every candidate model failed or was skipped.
type ExhaustedError = executor.ExhaustedError

// Terminal error sentinels for errors.Is.
var (
	ErrTimeout        = executor.ErrTimeout
	ErrExhausted      = executor.ErrExhausted
	ErrBudgetExceeded = budget.ErrExceeded
)

// NewExecutor creates an Executor.
func NewExecutor(cfg Config) *Executor {
	return executor.New(cfg)
}

// CombineObservers fans notifications out to every observer in order.
var CombineObservers = executor.CombineObservers

// =============================================================================
// Re-exported types from ledger package
// =============================================================================

// Ledger is the ordered attempt history of one execution.
type Ledger = ledger.Ledger

// Attempt is one try of one model within one execution.
type Attempt = ledger.Attempt

// =============================================================================
// Re-exported types from breaker package
// =============================================================================

// Breaker evaluates and mutates circuit state on the counter store.
type Breaker = breaker.Breaker

// BreakerKey identifies one circuit.
type BreakerKey = breaker.Key

// BreakerSnapshot is the observable circuit state for ops surfaces.
type BreakerSnapshot = breaker.Snapshot

// Circuit state constants
const (
	StateClosed   = breaker.StateClosed
	StateOpen     = breaker.StateOpen
	StateHalfOpen = breaker.StateHalfOpen
)

// NewBreaker creates a circuit breaker backed by a counter store.
func NewBreaker(store counter.Store) *Breaker {
	return breaker.New(store)
}

// =============================================================================
// Re-exported types from budget package
// =============================================================================

// Gate checks and records budget usage.
type Gate = budget.Gate

// BudgetUsage is the current counter snapshot for a caller.
type BudgetUsage = budget.Usage

// BudgetExceededError reports which ceiling blocked a call.
type BudgetExceededError = budget.ExceededError

// NewGate creates a budget gate backed by a counter store.
func NewGate(store counter.Store) *Gate {
	return budget.New(store)
}
