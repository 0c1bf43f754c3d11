// Package budget gates calls against spend and token ceilings and records
// usage into the shared counter store. Counters are keyed by UTC date
// buckets, so days and months rotate naturally and TTLs sweep out old
// buckets; there is no reset job.
package budget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/surecall-ai/surecall/internal/core/policy"
	"github.com/surecall-ai/surecall/internal/infra/counter"
)

// ErrExceeded is the sentinel every budget violation matches via errors.Is.
var ErrExceeded = errors.New("budget exceeded")

// Scope names the ceiling that blocked a call.
type Scope string

const (
	ScopeGlobalDaily         Scope = "global_daily"
	ScopeGlobalMonthly       Scope = "global_monthly"
	ScopeCallerDaily         Scope = "caller_daily"
	ScopeCallerMonthly       Scope = "caller_monthly"
	ScopeGlobalDailyTokens   Scope = "global_daily_tokens"
	ScopeGlobalMonthlyTokens Scope = "global_monthly_tokens"
)

// ExceededError reports which ceiling blocked a call and where usage stood.
type ExceededError struct {
	Scope   Scope
	Limit   float64
	Current float64
	Caller  string
	Tenant  string
}

func (e *ExceededError) Error() string {
	msg := fmt.Sprintf("budget exceeded: %s limit %g reached (current %g) for caller %q",
		e.Scope, e.Limit, e.Current, e.Caller)
	if e.Tenant != "" {
		msg += fmt.Sprintf(" tenant %q", e.Tenant)
	}
	return msg
}

func (e *ExceededError) Is(target error) bool { return target == ErrExceeded }

// Bucket TTLs only garbage-collect: rotation comes from the date in the key.
const (
	dailyTTL   = 48 * time.Hour
	monthlyTTL = 35 * 24 * time.Hour
)

// Gate checks and records budget usage. Stateless apart from the store and
// clock; safe for concurrent use.
type Gate struct {
	store counter.Store
	now   func() time.Time
	log   *slog.Logger
}

func New(store counter.Store) *Gate {
	return NewWithClock(store, time.Now)
}

// NewWithClock builds a Gate on an injected clock so tests can cross bucket
// boundaries.
func NewWithClock(store counter.Store, now func() time.Time) *Gate {
	return &Gate{
		store: store,
		now:   now,
		log:   slog.Default().With("component", "budget"),
	}
}

func (g *Gate) dayBucket() string   { return g.now().UTC().Format("2006-01-02") }
func (g *Gate) monthBucket() string { return g.now().UTC().Format("2006-01") }

// Tenant-scoped keys keep each tenant's budget isolated; without a tenant
// the keys are truly global.
func withTenant(key, tenant string) string {
	if tenant != "" {
		return key + ":" + tenant
	}
	return key
}

func globalCostKey(bucket, tenant string) string {
	return withTenant(fmt.Sprintf("budget:cost:global:%s", bucket), tenant)
}

func callerCostKey(caller, bucket, tenant string) string {
	return withTenant(fmt.Sprintf("budget:cost:caller:%s:%s", caller, bucket), tenant)
}

func globalTokensKey(bucket, tenant string) string {
	return withTenant(fmt.Sprintf("budget:tokens:global:%s", bucket), tenant)
}

// Check blocks the call when a hard cost ceiling is already met. Ceilings
// are evaluated in a fixed order, widest first, short-circuiting on the
// first violation: global-daily, global-monthly, caller-daily,
// caller-monthly. The comparison is current >= limit: the call that reaches
// a ceiling exactly still runs, the next one is blocked. Soft and none
// enforcement never block. Counter-store read errors admit the call.
func (g *Gate) Check(ctx context.Context, pol *policy.BudgetPolicy, caller, tenant string) error {
	if pol == nil || pol.Enforcement != policy.EnforcementHard {
		return nil
	}
	day, month := g.dayBucket(), g.monthBucket()
	checks := []struct {
		scope Scope
		limit *float64
		key   string
	}{
		{ScopeGlobalDaily, pol.GlobalDailyUSD, globalCostKey(day, tenant)},
		{ScopeGlobalMonthly, pol.GlobalMonthlyUSD, globalCostKey(month, tenant)},
		{ScopeCallerDaily, pol.CallerDailyUSD, callerCostKey(caller, day, tenant)},
		{ScopeCallerMonthly, pol.CallerMonthlyUSD, callerCostKey(caller, month, tenant)},
	}
	for _, c := range checks {
		if c.limit == nil {
			continue
		}
		current, err := g.store.GetFloat(ctx, c.key)
		if err != nil {
			g.log.Warn("budget read failed", "scope", string(c.scope), "caller", caller, "error", err)
			continue
		}
		if current >= *c.limit {
			return &ExceededError{Scope: c.scope, Limit: *c.limit, Current: current, Caller: caller, Tenant: tenant}
		}
	}
	return nil
}

// CheckTokens is the token-side admission check: global-daily then
// global-monthly. Token ceilings are global-only, a coarser safety net than
// the cost ceilings.
func (g *Gate) CheckTokens(ctx context.Context, pol *policy.BudgetPolicy, caller, tenant string) error {
	if pol == nil || pol.Enforcement != policy.EnforcementHard {
		return nil
	}
	day, month := g.dayBucket(), g.monthBucket()
	checks := []struct {
		scope Scope
		limit *int64
		key   string
	}{
		{ScopeGlobalDailyTokens, pol.GlobalDailyTokens, globalTokensKey(day, tenant)},
		{ScopeGlobalMonthlyTokens, pol.GlobalMonthlyTokens, globalTokensKey(month, tenant)},
	}
	for _, c := range checks {
		if c.limit == nil {
			continue
		}
		current, err := g.store.GetInt(ctx, c.key)
		if err != nil {
			g.log.Warn("token budget read failed", "scope", string(c.scope), "caller", caller, "error", err)
			continue
		}
		if current >= *c.limit {
			return &ExceededError{
				Scope:   c.scope,
				Limit:   float64(*c.limit),
				Current: float64(current),
				Caller:  caller,
				Tenant:  tenant,
			}
		}
	}
	return nil
}

// RecordSpend accumulates cost after a successful attempt, whatever the
// enforcement mode, so soft and none still produce visible usage. No-op for
// non-positive amounts. Failed increments are logged and dropped; a record
// never fails the execution it belongs to.
func (g *Gate) RecordSpend(ctx context.Context, caller, tenant string, amount float64) {
	if amount <= 0 {
		return
	}
	day, month := g.dayBucket(), g.monthBucket()
	incrs := []struct {
		key string
		ttl time.Duration
	}{
		{globalCostKey(day, tenant), dailyTTL},
		{globalCostKey(month, tenant), monthlyTTL},
		{callerCostKey(caller, day, tenant), dailyTTL},
		{callerCostKey(caller, month, tenant), monthlyTTL},
	}
	for _, in := range incrs {
		if _, err := g.store.IncrByFloat(ctx, in.key, amount, in.ttl); err != nil {
			g.log.Warn("spend record failed", "key", in.key, "error", err)
		}
	}
}

// RecordTokens accumulates token usage after a successful attempt. No-op for
// non-positive counts. Tokens are metered globally per tenant; per-caller
// attribution rides on the ledger and metrics.
func (g *Gate) RecordTokens(ctx context.Context, caller, tenant string, tokens int64) {
	if tokens <= 0 {
		return
	}
	day, month := g.dayBucket(), g.monthBucket()
	incrs := []struct {
		key string
		ttl time.Duration
	}{
		{globalTokensKey(day, tenant), dailyTTL},
		{globalTokensKey(month, tenant), monthlyTTL},
	}
	for _, in := range incrs {
		if _, err := g.store.IncrBy(ctx, in.key, tokens, in.ttl); err != nil {
			g.log.Warn("token record failed", "key", in.key, "error", err)
		}
	}
}

// Usage is the current counter snapshot for ops surfaces.
type Usage struct {
	Day                 string  `json:"day"`
	Month               string  `json:"month"`
	GlobalDailyUSD      float64 `json:"global_daily_usd"`
	GlobalMonthlyUSD    float64 `json:"global_monthly_usd"`
	CallerDailyUSD      float64 `json:"caller_daily_usd"`
	CallerMonthlyUSD    float64 `json:"caller_monthly_usd"`
	GlobalDailyTokens   int64   `json:"global_daily_tokens"`
	GlobalMonthlyTokens int64   `json:"global_monthly_tokens"`
}

// Usage reads the live buckets for a caller.
func (g *Gate) Usage(ctx context.Context, caller, tenant string) (Usage, error) {
	day, month := g.dayBucket(), g.monthBucket()
	u := Usage{Day: day, Month: month}

	var err error
	if u.GlobalDailyUSD, err = g.store.GetFloat(ctx, globalCostKey(day, tenant)); err != nil {
		return u, fmt.Errorf("global daily read failed: %w", err)
	}
	if u.GlobalMonthlyUSD, err = g.store.GetFloat(ctx, globalCostKey(month, tenant)); err != nil {
		return u, fmt.Errorf("global monthly read failed: %w", err)
	}
	if u.CallerDailyUSD, err = g.store.GetFloat(ctx, callerCostKey(caller, day, tenant)); err != nil {
		return u, fmt.Errorf("caller daily read failed: %w", err)
	}
	if u.CallerMonthlyUSD, err = g.store.GetFloat(ctx, callerCostKey(caller, month, tenant)); err != nil {
		return u, fmt.Errorf("caller monthly read failed: %w", err)
	}
	if u.GlobalDailyTokens, err = g.store.GetInt(ctx, globalTokensKey(day, tenant)); err != nil {
		return u, fmt.Errorf("daily tokens read failed: %w", err)
	}
	if u.GlobalMonthlyTokens, err = g.store.GetInt(ctx, globalTokensKey(month, tenant)); err != nil {
		return u, fmt.Errorf("monthly tokens read failed: %w", err)
	}
	return u, nil
}

// StorageKeys returns the live bucket keys for a caller, for ops tooling
// that resets budgets.
func (g *Gate) StorageKeys(caller, tenant string) []string {
	day, month := g.dayBucket(), g.monthBucket()
	return []string{
		globalCostKey(day, tenant),
		globalCostKey(month, tenant),
		callerCostKey(caller, day, tenant),
		callerCostKey(caller, month, tenant),
		globalTokensKey(day, tenant),
		globalTokensKey(month, tenant),
	}
}
