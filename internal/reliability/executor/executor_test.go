package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/surecall-ai/surecall/internal/core/domain"
	"github.com/surecall-ai/surecall/internal/core/policy"
	"github.com/surecall-ai/surecall/internal/infra/counter"
	"github.com/surecall-ai/surecall/internal/reliability/breaker"
	"github.com/surecall-ai/surecall/internal/reliability/budget"
	"github.com/surecall-ai/surecall/internal/reliability/ledger"
)

// step scripts one invoker outcome. latency advances the rig clock before
// the outcome is returned, standing in for time spent inside the call.
type step struct {
	resp    *domain.Response
	err     error
	latency time.Duration
}

type scriptedInvoker struct {
	steps   []step
	calls   []string
	advance func(time.Duration)
}

func (s *scriptedInvoker) Invoke(ctx context.Context, modelID string) (*domain.Response, error) {
	s.calls = append(s.calls, modelID)
	if len(s.steps) == 0 {
		return nil, errors.New("script exhausted")
	}
	st := s.steps[0]
	s.steps = s.steps[1:]
	if st.latency > 0 {
		s.advance(st.latency)
	}
	return st.resp, st.err
}

// recordingSleeper never sleeps; it logs the delay and advances the rig
// clock by it, so backoff consumes fake time instantly.
type recordingSleeper struct {
	slept   []time.Duration
	advance func(time.Duration)
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.slept = append(s.slept, d)
	s.advance(d)
	return ctx.Err()
}

type recordingObserver struct {
	started   []string
	completed []ledger.Attempt
}

func (o *recordingObserver) AttemptStarted(exec Execution, modelID string, attemptIndex int) {
	o.started = append(o.started, fmt.Sprintf("%s#%d", modelID, attemptIndex))
}

func (o *recordingObserver) AttemptCompleted(exec Execution, att ledger.Attempt) {
	o.completed = append(o.completed, att)
}

// rig wires an executor, breaker, budget gate and invoker onto one shared
// fake clock backed by a memory counter store.
type rig struct {
	clk     time.Time
	store   *counter.MemoryStore
	brk     *breaker.Breaker
	gate    *budget.Gate
	sleeper *recordingSleeper
	events  *recordingObserver
	inv     *scriptedInvoker
	exec    *Executor
}

func newRig() *rig {
	r := &rig{clk: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	now := func() time.Time { return r.clk }
	advance := func(d time.Duration) { r.clk = r.clk.Add(d) }

	r.store = counter.NewMemoryStoreWithClock(now)
	r.brk = breaker.NewWithClock(r.store, now)
	r.gate = budget.NewWithClock(r.store, now)
	r.sleeper = &recordingSleeper{advance: advance}
	r.events = &recordingObserver{}
	r.inv = &scriptedInvoker{advance: advance}
	r.exec = New(Config{
		Breaker: r.brk,
		Budget:  r.gate,
		Sleeper: r.sleeper,
		Events:  r.events,
		Clock:   now,
	})
	return r
}

func (r *rig) request(model string, pol policy.Policy) Request {
	return Request{Invoker: r.inv, Model: model, Caller: "svc", Policy: pol}
}

func basePolicy() policy.Policy {
	return policy.Policy{
		Retry: policy.RetryPolicy{
			MaxRetries: 3,
			Strategy:   "exponential",
			Base:       time.Second,
			MaxDelay:   30 * time.Second,
		},
	}
}

func okResp(model string, cost float64) *domain.Response {
	return &domain.Response{
		Model:   model,
		Content: "hello",
		Usage:   domain.TokenUsage{InputTokens: 100, OutputTokens: 50},
		CostUSD: cost,
	}
}

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

func TestExecute_PrimarySucceeds(t *testing.T) {
	r := newRig()
	r.inv.steps = []step{{resp: okResp("gpt-4o", 0.01)}}

	res, led, err := r.exec.Execute(context.Background(), r.request("gpt-4o", basePolicy()))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Model != "gpt-4o" {
		t.Errorf("Result.Model = %q, want %q", res.Model, "gpt-4o")
	}
	if res.Response.Content != "hello" {
		t.Errorf("Response.Content = %q, want %q", res.Response.Content, "hello")
	}
	if len(led.Attempts) != 1 {
		t.Fatalf("len(Attempts) = %d, want 1", len(led.Attempts))
	}
	if !led.Attempts[0].Succeeded() {
		t.Errorf("attempt not marked successful: %+v", led.Attempts[0])
	}
	if got := led.TotalTokens(); got != 150 {
		t.Errorf("TotalTokens() = %d, want 150", got)
	}
	if len(r.sleeper.slept) != 0 {
		t.Errorf("slept %d times, want 0", len(r.sleeper.slept))
	}
}

func TestExecute_RetriesThenSucceeds(t *testing.T) {
	r := newRig()
	flaky := errors.New("429 too many requests")
	r.inv.steps = []step{
		{err: flaky},
		{err: flaky},
		{resp: okResp("gpt-4o", 0.01)},
	}

	res, led, err := r.exec.Execute(context.Background(), r.request("gpt-4o", basePolicy()))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Model != "gpt-4o" {
		t.Errorf("Result.Model = %q, want %q", res.Model, "gpt-4o")
	}
	if got := len(led.Attempts); got != 3 {
		t.Fatalf("len(Attempts) = %d, want 3", got)
	}
	if got := led.FailureCount(); got != 2 {
		t.Errorf("FailureCount() = %d, want 2", got)
	}
	for i, a := range led.Attempts {
		if a.ModelID != "gpt-4o" {
			t.Errorf("attempt %d model = %q, want gpt-4o", i, a.ModelID)
		}
	}
	if got := len(r.sleeper.slept); got != 2 {
		t.Fatalf("slept %d times, want 2", got)
	}
	// Exponential base delays 1s and 2s, with additive jitter up to half
	// the base on top.
	for i, want := range []time.Duration{time.Second, 2 * time.Second} {
		got := r.sleeper.slept[i]
		if got < want || got > want+want/2 {
			t.Errorf("delay %d = %v, want in [%v, %v]", i, got, want, want+want/2)
		}
	}
}

func TestExecute_NonRetryableFallsBack(t *testing.T) {
	r := newRig()
	r.inv.steps = []step{
		{err: errors.New("invalid api key")},
		{resp: okResp("claude-sonnet", 0.02)},
	}
	pol := basePolicy()
	pol.Fallbacks = []string{"claude-sonnet"}

	res, led, err := r.exec.Execute(context.Background(), r.request("gpt-4o", pol))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Model != "claude-sonnet" {
		t.Errorf("Result.Model = %q, want %q", res.Model, "claude-sonnet")
	}
	if got := []string{"gpt-4o", "claude-sonnet"}; len(r.inv.calls) != 2 || r.inv.calls[0] != got[0] || r.inv.calls[1] != got[1] {
		t.Errorf("invoker calls = %v, want %v", r.inv.calls, got)
	}
	if len(r.sleeper.slept) != 0 {
		t.Errorf("slept %d times, want 0 for a terminal error", len(r.sleeper.slept))
	}
	if led.Attempts[0].ErrorKind == "" {
		t.Errorf("failed attempt missing error kind: %+v", led.Attempts[0])
	}
}

func TestExecute_RetriesExhaustedFallsBack(t *testing.T) {
	r := newRig()
	flaky := errors.New("model overloaded")
	r.inv.steps = []step{
		{err: flaky},
		{err: flaky},
		{resp: okResp("claude-sonnet", 0.02)},
	}
	pol := basePolicy()
	pol.Retry.MaxRetries = 1
	pol.Fallbacks = []string{"claude-sonnet"}

	res, led, err := r.exec.Execute(context.Background(), r.request("gpt-4o", pol))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Model != "claude-sonnet" {
		t.Errorf("Result.Model = %q, want %q", res.Model, "claude-sonnet")
	}
	if got := len(led.Attempts); got != 3 {
		t.Fatalf("len(Attempts) = %d, want 3 (two on primary, one on fallback)", got)
	}
	if led.Attempts[0].ModelID != "gpt-4o" || led.Attempts[1].ModelID != "gpt-4o" || led.Attempts[2].ModelID != "claude-sonnet" {
		t.Errorf("attempt models = %v", []string{led.Attempts[0].ModelID, led.Attempts[1].ModelID, led.Attempts[2].ModelID})
	}
	if got := len(r.sleeper.slept); got != 1 {
		t.Errorf("slept %d times, want 1 (no backoff between models)", got)
	}
}

func TestExecute_AllModelsExhausted(t *testing.T) {
	r := newRig()
	last := errors.New("invalid request: prompt too long")
	r.inv.steps = []step{
		{err: errors.New("invalid api key")},
		{err: last},
	}
	pol := basePolicy()
	pol.Fallbacks = []string{"claude-sonnet"}

	res, led, err := r.exec.Execute(context.Background(), r.request("gpt-4o", pol))
	if res != nil {
		t.Fatalf("Result = %+v, want nil", res)
	}
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("errors.Is(err, ErrExhausted) = false for %v", err)
	}
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("error %v is not *ExhaustedError", err)
	}
	if len(ex.Models) != 2 || ex.Models[0] != "gpt-4o" || ex.Models[1] != "claude-sonnet" {
		t.Errorf("ExhaustedError.Models = %v, want [gpt-4o claude-sonnet]", ex.Models)
	}
	if !errors.Is(err, last) {
		t.Errorf("ExhaustedError should unwrap to the last model error")
	}
	if got := led.FailureCount(); got != 2 {
		t.Errorf("FailureCount() = %d, want 2", got)
	}
}

func TestExecute_BreakerShortCircuits(t *testing.T) {
	r := newRig()
	pol := basePolicy()
	pol.Breaker = &policy.BreakerPolicy{Threshold: 1, Within: time.Minute, Cooldown: time.Minute}
	pol.Fallbacks = []string{"claude-sonnet"}

	// Trip the primary's circuit before the execution.
	key := breaker.Key{Caller: "svc", Model: "gpt-4o"}
	r.brk.RecordFailure(context.Background(), pol.Breaker, key)

	r.inv.steps = []step{{resp: okResp("claude-sonnet", 0.02)}}

	res, led, err := r.exec.Execute(context.Background(), r.request("gpt-4o", pol))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Model != "claude-sonnet" {
		t.Errorf("Result.Model = %q, want %q", res.Model, "claude-sonnet")
	}
	if len(r.inv.calls) != 1 || r.inv.calls[0] != "claude-sonnet" {
		t.Fatalf("invoker calls = %v, want only the fallback", r.inv.calls)
	}
	if got := len(led.Attempts); got != 2 {
		t.Fatalf("len(Attempts) = %d, want 2", got)
	}
	first := led.Attempts[0]
	if !first.ShortCircuited || first.ModelID != "gpt-4o" || first.ErrorKind != "circuit_open" {
		t.Errorf("first attempt = %+v, want short-circuit record for gpt-4o", first)
	}
	if !first.StartedAt.IsZero() || first.DurationMillis != 0 {
		t.Errorf("short-circuit attempt carries timing: %+v", first)
	}
}

func TestExecute_AllCircuitsOpen(t *testing.T) {
	r := newRig()
	pol := basePolicy()
	pol.Breaker = &policy.BreakerPolicy{Threshold: 1, Within: time.Minute, Cooldown: time.Minute}
	pol.Fallbacks = []string{"claude-sonnet"}

	for _, model := range []string{"gpt-4o", "claude-sonnet"} {
		r.brk.RecordFailure(context.Background(), pol.Breaker, breaker.Key{Caller: "svc", Model: model})
	}

	res, led, err := r.exec.Execute(context.Background(), r.request("gpt-4o", pol))
	if res != nil {
		t.Fatalf("Result = %+v, want nil", res)
	}
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("error %v is not *ExhaustedError", err)
	}
	if ex.LastErr != nil {
		t.Errorf("LastErr = %v, want nil when every model was skipped", ex.LastErr)
	}
	if got := led.ShortCircuitCount(); got != 2 {
		t.Errorf("ShortCircuitCount() = %d, want 2", got)
	}
	if len(r.inv.calls) != 0 {
		t.Errorf("invoker called %d times, want 0", len(r.inv.calls))
	}
}

func TestExecute_HardBudgetBlocks(t *testing.T) {
	r := newRig()
	pol := basePolicy()
	pol.Budget = &policy.BudgetPolicy{
		Enforcement:    policy.EnforcementHard,
		CallerDailyUSD: f64(10),
	}
	r.gate.RecordSpend(context.Background(), "svc", "", 10)

	res, led, err := r.exec.Execute(context.Background(), r.request("gpt-4o", pol))
	if res != nil {
		t.Fatalf("Result = %+v, want nil", res)
	}
	if !errors.Is(err, budget.ErrExceeded) {
		t.Fatalf("errors.Is(err, budget.ErrExceeded) = false for %v", err)
	}
	var ex *budget.ExceededError
	if !errors.As(err, &ex) || ex.Scope != budget.ScopeCallerDaily {
		t.Errorf("error = %v, want caller_daily violation", err)
	}
	if len(led.Attempts) != 0 {
		t.Errorf("len(Attempts) = %d, want 0 for a blocked execution", len(led.Attempts))
	}
	if len(r.inv.calls) != 0 {
		t.Errorf("invoker called %d times, want 0", len(r.inv.calls))
	}
}

func TestExecute_TokenBudgetBlocks(t *testing.T) {
	r := newRig()
	pol := basePolicy()
	pol.Budget = &policy.BudgetPolicy{
		Enforcement:       policy.EnforcementHard,
		GlobalDailyTokens: i64(1000),
	}
	r.gate.RecordTokens(context.Background(), "svc", "", 1000)

	_, _, err := r.exec.Execute(context.Background(), r.request("gpt-4o", pol))
	var ex *budget.ExceededError
	if !errors.As(err, &ex) || ex.Scope != budget.ScopeGlobalDailyTokens {
		t.Fatalf("error = %v, want global_daily_tokens violation", err)
	}
	if len(r.inv.calls) != 0 {
		t.Errorf("invoker called %d times, want 0", len(r.inv.calls))
	}
}

func TestExecute_SoftBudgetRecordsSpend(t *testing.T) {
	r := newRig()
	pol := basePolicy()
	pol.Budget = &policy.BudgetPolicy{
		Enforcement:    policy.EnforcementSoft,
		CallerDailyUSD: f64(10),
	}
	// Already over the ceiling; soft enforcement still admits.
	r.gate.RecordSpend(context.Background(), "svc", "", 50)
	r.inv.steps = []step{{resp: okResp("gpt-4o", 0.25)}}

	res, _, err := r.exec.Execute(context.Background(), r.request("gpt-4o", pol))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res == nil {
		t.Fatal("Result = nil, want success")
	}

	u, err := r.gate.Usage(context.Background(), "svc", "")
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if u.CallerDailyUSD != 50.25 {
		t.Errorf("CallerDailyUSD = %g, want 50.25", u.CallerDailyUSD)
	}
	if u.GlobalDailyTokens != 150 {
		t.Errorf("GlobalDailyTokens = %d, want 150", u.GlobalDailyTokens)
	}
}

func TestExecute_TimeoutDuringBackoff(t *testing.T) {
	r := newRig()
	pol := basePolicy()
	pol.Retry = policy.RetryPolicy{MaxRetries: 5, Strategy: "constant", Base: 6 * time.Second}
	pol.TotalTimeout = 10 * time.Second

	flaky := errors.New("503 service unavailable")
	r.inv.steps = []step{{err: flaky}, {err: flaky}, {err: flaky}}

	res, led, err := r.exec.Execute(context.Background(), r.request("gpt-4o", pol))
	if res != nil {
		t.Fatalf("Result = %+v, want nil", res)
	}
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("errors.Is(err, ErrTimeout) = false for %v", err)
	}
	var te *TotalTimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("error %v is not *TotalTimeoutError", err)
	}
	if te.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", te.Timeout)
	}
	if te.Elapsed < te.Timeout {
		t.Errorf("Elapsed = %v, want >= %v", te.Elapsed, te.Timeout)
	}
	// Two 6s+jitter sleeps cross the 10s deadline before the third try,
	// well under the five retries allowed.
	if got := len(led.Attempts); got != 2 {
		t.Errorf("len(Attempts) = %d, want 2", got)
	}
}

func TestExecute_TimeoutAtRetryDecision(t *testing.T) {
	r := newRig()
	pol := basePolicy()
	pol.TotalTimeout = 5 * time.Second

	// The call itself consumes the whole deadline; the retry decision must
	// notice before sleeping.
	r.inv.steps = []step{{err: errors.New("request timeout"), latency: 6 * time.Second}}

	_, led, err := r.exec.Execute(context.Background(), r.request("gpt-4o", pol))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("errors.Is(err, ErrTimeout) = false for %v", err)
	}
	if got := len(led.Attempts); got != 1 {
		t.Errorf("len(Attempts) = %d, want 1", got)
	}
	if len(r.sleeper.slept) != 0 {
		t.Errorf("slept %d times, want 0 once the deadline passed", len(r.sleeper.slept))
	}
}

func TestExecute_ContextCanceled(t *testing.T) {
	r := newRig()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, led, err := r.exec.Execute(ctx, r.request("gpt-4o", basePolicy()))
	if res != nil {
		t.Fatalf("Result = %+v, want nil", res)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if len(led.Attempts) != 0 {
		t.Errorf("len(Attempts) = %d, want 0", len(led.Attempts))
	}
	if len(r.inv.calls) != 0 {
		t.Errorf("invoker called %d times, want 0", len(r.inv.calls))
	}
}

func TestExecute_DuplicateCandidatesDropped(t *testing.T) {
	r := newRig()
	pol := basePolicy()
	pol.Retry.MaxRetries = 0
	pol.Fallbacks = []string{"gpt-4o", "", "claude-sonnet", "claude-sonnet"}

	bad := errors.New("invalid request")
	r.inv.steps = []step{{err: bad}, {err: bad}}

	_, _, err := r.exec.Execute(context.Background(), r.request("gpt-4o", pol))
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("error %v is not *ExhaustedError", err)
	}
	if len(ex.Models) != 2 || ex.Models[0] != "gpt-4o" || ex.Models[1] != "claude-sonnet" {
		t.Errorf("ExhaustedError.Models = %v, want [gpt-4o claude-sonnet]", ex.Models)
	}
	if len(r.inv.calls) != 2 {
		t.Errorf("invoker calls = %v, want one per distinct model", r.inv.calls)
	}
}

func TestExecute_EmitsEvents(t *testing.T) {
	r := newRig()
	pol := basePolicy()
	pol.Breaker = &policy.BreakerPolicy{Threshold: 1, Within: time.Minute, Cooldown: time.Minute}
	pol.Fallbacks = []string{"claude-sonnet"}

	r.brk.RecordFailure(context.Background(), pol.Breaker, breaker.Key{Caller: "svc", Model: "gpt-4o"})
	r.inv.steps = []step{
		{err: errors.New("overloaded")},
		{resp: okResp("claude-sonnet", 0.02)},
	}

	_, led, err := r.exec.Execute(context.Background(), r.request("gpt-4o", pol))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	// Short-circuits complete without starting; real attempts do both.
	want := []string{"claude-sonnet#0", "claude-sonnet#1"}
	if len(r.events.started) != 2 || r.events.started[0] != want[0] || r.events.started[1] != want[1] {
		t.Errorf("started events = %v, want %v", r.events.started, want)
	}
	if got := len(r.events.completed); got != len(led.Attempts) {
		t.Errorf("completed events = %d, want %d (one per ledger entry)", got, len(led.Attempts))
	}
}

func TestExecute_RequestValidation(t *testing.T) {
	r := newRig()

	if _, led, err := r.exec.Execute(context.Background(), Request{Model: "gpt-4o"}); err == nil {
		t.Error("Execute() without invoker: error = nil, want error")
	} else if led == nil {
		t.Error("Execute() without invoker: ledger = nil, want non-nil")
	}

	if _, _, err := r.exec.Execute(context.Background(), Request{Invoker: r.inv}); err == nil {
		t.Error("Execute() without model: error = nil, want error")
	}
}

func TestExecute_NilResponseIsFailure(t *testing.T) {
	r := newRig()
	r.inv.steps = []step{
		{resp: nil, err: nil},
		{resp: okResp("claude-sonnet", 0.02)},
	}
	pol := basePolicy()
	pol.Fallbacks = []string{"claude-sonnet"}

	res, led, err := r.exec.Execute(context.Background(), r.request("gpt-4o", pol))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Model != "claude-sonnet" {
		t.Errorf("Result.Model = %q, want fallback after a nil response", res.Model)
	}
	if !led.Attempts[0].Failed() {
		t.Errorf("nil response attempt not marked failed: %+v", led.Attempts[0])
	}
}

func TestExecute_WithoutBreakerAndBudget(t *testing.T) {
	// An executor wired without breaker or gate must still honor policies
	// that mention them, by skipping those stages.
	clk := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sleeper := &recordingSleeper{advance: func(d time.Duration) { clk = clk.Add(d) }}
	inv := &scriptedInvoker{steps: []step{{resp: okResp("gpt-4o", 0.01)}}}
	exec := New(Config{Sleeper: sleeper, Clock: func() time.Time { return clk }})

	pol := basePolicy()
	pol.Breaker = &policy.BreakerPolicy{Threshold: 1, Within: time.Minute, Cooldown: time.Minute}
	pol.Budget = &policy.BudgetPolicy{Enforcement: policy.EnforcementHard, GlobalDailyUSD: f64(0)}

	res, _, err := exec.Execute(context.Background(), Request{Invoker: inv, Model: "gpt-4o", Caller: "svc", Policy: pol})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Model != "gpt-4o" {
		t.Errorf("Result.Model = %q, want %q", res.Model, "gpt-4o")
	}
}

func TestExecute_TenantScopesBreaker(t *testing.T) {
	r := newRig()
	pol := basePolicy()
	pol.Retry.MaxRetries = 0
	pol.Breaker = &policy.BreakerPolicy{Threshold: 1, Within: time.Minute, Cooldown: time.Minute}

	// Trip the circuit for tenant acme only.
	r.brk.RecordFailure(context.Background(), pol.Breaker,
		breaker.Key{Caller: "svc", Model: "gpt-4o", Tenant: "acme"})

	r.inv.steps = []step{{resp: okResp("gpt-4o", 0.01)}}
	req := r.request("gpt-4o", pol)
	req.Tenant = "globex"

	res, _, err := r.exec.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute() for tenant globex error = %v", err)
	}
	if res == nil || len(r.inv.calls) != 1 {
		t.Fatalf("tenant globex should not see acme's open circuit")
	}

	req.Tenant = "acme"
	_, led, err := r.exec.Execute(context.Background(), req)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("tenant acme error = %v, want exhausted via short-circuit", err)
	}
	if got := led.ShortCircuitCount(); got != 1 {
		t.Errorf("ShortCircuitCount() = %d, want 1", got)
	}
}
