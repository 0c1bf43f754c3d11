package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/surecall-ai/surecall/internal/core/policy"
	"github.com/surecall-ai/surecall/internal/infra/counter"
)

func testGate() (*Gate, *time.Time) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := counter.NewMemoryStoreWithClock(clock)
	return NewWithClock(store, clock), &now
}

func floatPtr(v float64) *float64 { return &v }
func int64Ptr(v int64) *int64     { return &v }

func TestGate_HardBlocksAtLimit(t *testing.T) {
	g, _ := testGate()
	ctx := context.Background()
	pol := &policy.BudgetPolicy{
		Enforcement:    policy.EnforcementHard,
		GlobalDailyUSD: floatPtr(10.0),
	}

	g.RecordSpend(ctx, "summarizer", "", 9.5)
	if err := g.Check(ctx, pol, "summarizer", ""); err != nil {
		t.Fatalf("below the ceiling should pass: %v", err)
	}

	// The call that reaches the ceiling exactly is not failed retroactively;
	// the next one is blocked.
	g.RecordSpend(ctx, "summarizer", "", 0.5)
	err := g.Check(ctx, pol, "summarizer", "")
	if err == nil {
		t.Fatal("spend at the ceiling should block the next call")
	}
	if !errors.Is(err, ErrExceeded) {
		t.Errorf("errors.Is(err, ErrExceeded) = false for %v", err)
	}
	var exceeded *ExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected *ExceededError, got %T", err)
	}
	if exceeded.Scope != ScopeGlobalDaily {
		t.Errorf("Scope = %q, want global_daily", exceeded.Scope)
	}
	if exceeded.Current != 10.0 || exceeded.Limit != 10.0 {
		t.Errorf("Current/Limit = %g/%g, want 10/10", exceeded.Current, exceeded.Limit)
	}
}

func TestGate_CheckOrder(t *testing.T) {
	g, _ := testGate()
	ctx := context.Background()

	// Wider scopes are checked first, so a tripped global-monthly ceiling
	// wins over a tripped caller-daily one.
	pol := &policy.BudgetPolicy{
		Enforcement:      policy.EnforcementHard,
		GlobalDailyUSD:   floatPtr(100.0),
		GlobalMonthlyUSD: floatPtr(5.0),
		CallerDailyUSD:   floatPtr(1.0),
	}

	g.RecordSpend(ctx, "summarizer", "", 5.0)

	var exceeded *ExceededError
	err := g.Check(ctx, pol, "summarizer", "")
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected *ExceededError, got %v", err)
	}
	if exceeded.Scope != ScopeGlobalMonthly {
		t.Errorf("Scope = %q, want global_monthly checked before caller_daily", exceeded.Scope)
	}
}

func TestGate_SoftAndNoneNeverBlock(t *testing.T) {
	for _, mode := range []policy.Enforcement{policy.EnforcementSoft, policy.EnforcementNone} {
		g, _ := testGate()
		ctx := context.Background()
		pol := &policy.BudgetPolicy{
			Enforcement:    mode,
			GlobalDailyUSD: floatPtr(1.0),
		}

		g.RecordSpend(ctx, "summarizer", "", 50.0)

		if err := g.Check(ctx, pol, "summarizer", ""); err != nil {
			t.Errorf("%s enforcement blocked: %v", mode, err)
		}
		if err := g.CheckTokens(ctx, pol, "summarizer", ""); err != nil {
			t.Errorf("%s enforcement blocked tokens: %v", mode, err)
		}

		// Usage still accumulated.
		u, err := g.Usage(ctx, "summarizer", "")
		if err != nil {
			t.Fatalf("Usage failed: %v", err)
		}
		if u.GlobalDailyUSD != 50.0 {
			t.Errorf("GlobalDailyUSD = %g, want 50 under %s", u.GlobalDailyUSD, mode)
		}
	}
}

func TestGate_NilPolicyPasses(t *testing.T) {
	g, _ := testGate()
	ctx := context.Background()

	if err := g.Check(ctx, nil, "summarizer", ""); err != nil {
		t.Errorf("nil policy should pass: %v", err)
	}
	if err := g.CheckTokens(ctx, nil, "summarizer", ""); err != nil {
		t.Errorf("nil policy should pass tokens: %v", err)
	}
}

func TestGate_RecordIgnoresNonPositive(t *testing.T) {
	g, _ := testGate()
	ctx := context.Background()

	g.RecordSpend(ctx, "summarizer", "", 0)
	g.RecordSpend(ctx, "summarizer", "", -3.5)
	g.RecordTokens(ctx, "summarizer", "", 0)
	g.RecordTokens(ctx, "summarizer", "", -100)

	u, err := g.Usage(ctx, "summarizer", "")
	if err != nil {
		t.Fatalf("Usage failed: %v", err)
	}
	if u.GlobalDailyUSD != 0 || u.GlobalDailyTokens != 0 {
		t.Errorf("non-positive records should be no-ops: %+v", u)
	}
}

func TestGate_TokenCeiling(t *testing.T) {
	g, _ := testGate()
	ctx := context.Background()
	pol := &policy.BudgetPolicy{
		Enforcement:       policy.EnforcementHard,
		GlobalDailyTokens: int64Ptr(1000),
	}

	g.RecordTokens(ctx, "summarizer", "", 999)
	if err := g.CheckTokens(ctx, pol, "summarizer", ""); err != nil {
		t.Fatalf("below the token ceiling should pass: %v", err)
	}

	g.RecordTokens(ctx, "summarizer", "", 1)
	err := g.CheckTokens(ctx, pol, "summarizer", "")
	var exceeded *ExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected *ExceededError, got %v", err)
	}
	if exceeded.Scope != ScopeGlobalDailyTokens {
		t.Errorf("Scope = %q, want global_daily_tokens", exceeded.Scope)
	}
}

func TestGate_BucketsRotate(t *testing.T) {
	g, now := testGate()
	ctx := context.Background()
	pol := &policy.BudgetPolicy{
		Enforcement:    policy.EnforcementHard,
		GlobalDailyUSD: floatPtr(10.0),
	}

	g.RecordSpend(ctx, "summarizer", "", 10.0)
	if err := g.Check(ctx, pol, "summarizer", ""); err == nil {
		t.Fatal("should be blocked today")
	}

	// Midnight passes; the daily bucket key changes and the ceiling clears
	// without any reset logic.
	*now = now.Add(24 * time.Hour)
	if err := g.Check(ctx, pol, "summarizer", ""); err != nil {
		t.Errorf("new day should start a fresh daily bucket: %v", err)
	}

	u, _ := g.Usage(ctx, "summarizer", "")
	if u.GlobalDailyUSD != 0 {
		t.Errorf("GlobalDailyUSD = %g, want 0 in the new day", u.GlobalDailyUSD)
	}
	if u.GlobalMonthlyUSD != 10.0 {
		t.Errorf("GlobalMonthlyUSD = %g, want 10 carried through the month", u.GlobalMonthlyUSD)
	}
}

func TestGate_TenantIsolation(t *testing.T) {
	g, _ := testGate()
	ctx := context.Background()
	pol := &policy.BudgetPolicy{
		Enforcement:    policy.EnforcementHard,
		GlobalDailyUSD: floatPtr(5.0),
	}

	g.RecordSpend(ctx, "summarizer", "acme", 5.0)

	if err := g.Check(ctx, pol, "summarizer", "acme"); err == nil {
		t.Error("acme should be blocked")
	}
	if err := g.Check(ctx, pol, "summarizer", "globex"); err != nil {
		t.Errorf("globex must not share acme's counters: %v", err)
	}
	if err := g.Check(ctx, pol, "summarizer", ""); err != nil {
		t.Errorf("the untenanted scope must not share acme's counters: %v", err)
	}
}
