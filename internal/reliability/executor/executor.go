// Package executor drives the model-fallback and retry loop around an
// injected Invoker, consulting the circuit breaker before each model and the
// budget gate before the whole execution, under an optional total deadline.
// First success wins; every try lands in the ledger.
package executor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/surecall-ai/surecall/internal/core/domain"
	"github.com/surecall-ai/surecall/internal/core/policy"
	"github.com/surecall-ai/surecall/internal/reliability/breaker"
	"github.com/surecall-ai/surecall/internal/reliability/budget"
	"github.com/surecall-ai/surecall/internal/reliability/ledger"
	"github.com/surecall-ai/surecall/internal/reliability/retry"
)

// Invoker performs one provider call for one model. Per-call timeouts are
// the invoker's own responsibility; the executor never interrupts a call
// mid-flight.
type Invoker interface {
	Invoke(ctx context.Context, modelID string) (*domain.Response, error)
}

// InvokerFunc adapts a closure to Invoker.
type InvokerFunc func(ctx context.Context, modelID string) (*domain.Response, error)

func (f InvokerFunc) Invoke(ctx context.Context, modelID string) (*domain.Response, error) {
	return f(ctx, modelID)
}

// Request is one call through the reliability layer.
type Request struct {
	// Invoker performs the provider call for whichever model is tried.
	Invoker Invoker
	// Model is the primary candidate; Policy.Fallbacks follow it in order.
	Model  string
	Caller string
	Tenant string
	// Policy must be fully resolved; the executor never consults config.
	Policy policy.Policy
}

// Result is a successful outcome.
type Result struct {
	Response *domain.Response
	// Model is the candidate that produced the response. It differs from
	// the request's primary when a fallback won.
	Model string
}

// Config wires an Executor. Breaker and Budget may be nil to run without
// those components regardless of policy; Sleeper, Events and Clock default
// to TimerSleeper, NopObserver and time.Now.
type Config struct {
	Breaker *breaker.Breaker
	Budget  *budget.Gate
	Sleeper Sleeper
	Events  Observer
	Clock   func() time.Time
}

// Executor runs requests. It is safe for concurrent use: all per-execution
// state lives on the stack and in the execution's own ledger, and the
// counter store behind breaker and budget handles its own concurrency.
type Executor struct {
	breaker *breaker.Breaker
	budget  *budget.Gate
	sleeper Sleeper
	events  Observer
	now     func() time.Time
	log     *slog.Logger
}

func New(cfg Config) *Executor {
	e := &Executor{
		breaker: cfg.Breaker,
		budget:  cfg.Budget,
		sleeper: cfg.Sleeper,
		events:  cfg.Events,
		now:     cfg.Clock,
		log:     slog.Default().With("component", "executor"),
	}
	if e.sleeper == nil {
		e.sleeper = TimerSleeper{}
	}
	if e.events == nil {
		e.events = NopObserver{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Execute tries the request's model chain until one response comes back.
// The returned ledger is never nil, even on failure, and holds one entry per
// attempt including breaker short-circuits. The error is one of:
// *budget.ExceededError, *TotalTimeoutError, *ExhaustedError, or the
// caller's own context error.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, *ledger.Ledger, error) {
	start := e.now()
	led := ledger.New(req.Caller, req.Tenant, start)

	if req.Invoker == nil {
		return nil, led, errors.New("execute: request needs an invoker")
	}
	if req.Model == "" {
		return nil, led, errors.New("execute: request needs a primary model")
	}

	pol := req.Policy
	exec := Execution{ID: led.ExecutionID, Caller: req.Caller, Tenant: req.Tenant}

	// Budget admission runs once, before any attempt. A blocked execution
	// returns with an empty ledger: no provider call was ever in flight.
	if e.budget != nil && pol.Budget != nil {
		if err := e.budget.Check(ctx, pol.Budget, req.Caller, req.Tenant); err != nil {
			e.log.Warn("execution blocked by budget",
				"caller", req.Caller, "tenant", req.Tenant, "error", err)
			return nil, led, err
		}
		if err := e.budget.CheckTokens(ctx, pol.Budget, req.Caller, req.Tenant); err != nil {
			e.log.Warn("execution blocked by token budget",
				"caller", req.Caller, "tenant", req.Tenant, "error", err)
			return nil, led, err
		}
	}

	var deadline time.Time
	if pol.TotalTimeout > 0 {
		deadline = start.Add(pol.TotalTimeout)
	}

	models := candidates(req.Model, pol.Fallbacks)
	var lastErr error

	for _, model := range models {
		key := breaker.Key{Caller: req.Caller, Model: model, Tenant: req.Tenant}

		// An open breaker costs a ledger entry, never a retry.
		if e.breaker != nil && pol.Breaker != nil && e.breaker.Open(ctx, pol.Breaker, key) {
			att := ledger.ShortCircuit(model)
			led.Append(att)
			e.events.AttemptCompleted(exec, att)
			continue
		}

		retriesRemaining := pol.Retry.MaxRetries
		attemptIndex := 0

		for {
			// The deadline is cooperative: checked here and at the
			// retry decision, never preemptive. A slow call runs out
			// its own per-call timeout first.
			if !deadline.IsZero() && e.now().After(deadline) {
				return nil, led, e.timeoutError(pol.TotalTimeout, start)
			}
			if err := ctx.Err(); err != nil {
				return nil, led, err
			}

			att := ledger.Started(model, e.now())
			e.events.AttemptStarted(exec, model, attemptIndex)

			resp, err := req.Invoker.Invoke(ctx, model)
			att.Finish(e.now())

			if err == nil && resp == nil {
				err = errors.New("invoker returned no response")
			}

			if err == nil {
				att.FillUsage(resp.Usage)
				led.Append(att)
				e.events.AttemptCompleted(exec, att)

				if e.breaker != nil && pol.Breaker != nil {
					e.breaker.RecordSuccess(ctx, pol.Breaker, key)
				}
				if e.budget != nil && pol.Budget != nil {
					e.budget.RecordSpend(ctx, req.Caller, req.Tenant, resp.CostUSD)
					e.budget.RecordTokens(ctx, req.Caller, req.Tenant, resp.Usage.Total())
				}

				e.log.Debug("execution succeeded",
					"caller", req.Caller, "model", model,
					"attempts", len(led.Attempts), "duration", e.now().Sub(start))
				return &Result{Response: resp, Model: model}, led, nil
			}

			att.ErrorKind = retry.Kind(err)
			att.ErrorMessage = err.Error()
			led.Append(att)
			e.events.AttemptCompleted(exec, att)

			if e.breaker != nil && pol.Breaker != nil {
				e.breaker.RecordFailure(ctx, pol.Breaker, key)
			}
			lastErr = err

			if !retry.Retryable(err, pol.Retry.RetryableErrors, pol.Retry.RetryablePatterns) {
				e.log.Debug("terminal error for model, trying next",
					"caller", req.Caller, "model", model, "error", err)
				break
			}
			if retriesRemaining <= 0 {
				e.log.Debug("retries exhausted for model, trying next",
					"caller", req.Caller, "model", model, "error", err)
				break
			}
			if !deadline.IsZero() && e.now().After(deadline) {
				return nil, led, e.timeoutError(pol.TotalTimeout, start)
			}

			delay := retry.Delay(retry.Strategy(pol.Retry.Strategy),
				pol.Retry.Base, pol.Retry.MaxDelay, attemptIndex, nil)
			e.log.Debug("retrying model",
				"caller", req.Caller, "model", model,
				"attempt", attemptIndex, "delay", delay, "error", err)
			if err := e.sleeper.Sleep(ctx, delay); err != nil {
				return nil, led, err
			}
			retriesRemaining--
			attemptIndex++
		}
	}

	err := &ExhaustedError{Models: models, LastErr: lastErr}
	e.log.Warn("all models exhausted",
		"caller", req.Caller, "tenant", req.Tenant,
		"models", models, "error", lastErr)
	return nil, led, err
}

func (e *Executor) timeoutError(timeout time.Duration, start time.Time) *TotalTimeoutError {
	return &TotalTimeoutError{Timeout: timeout, Elapsed: e.now().Sub(start)}
}

// candidates builds the try order: primary first, then fallbacks, blanks and
// duplicates dropped.
func candidates(primary string, fallbacks []string) []string {
	models := make([]string, 0, len(fallbacks)+1)
	seen := make(map[string]bool, len(fallbacks)+1)
	for _, m := range append([]string{primary}, fallbacks...) {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		models = append(models, m)
	}
	return models
}
