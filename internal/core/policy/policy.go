// Package policy defines the resolved per-execution policies (retry, circuit
// breaker, budget, deadline) and the tenant-then-global override chain that
// produces them.
package policy

import "time"

// Enforcement controls what a budget ceiling violation does.
type Enforcement string

const (
	// EnforcementNone ignores ceilings entirely.
	EnforcementNone Enforcement = "none"
	// EnforcementSoft records usage but never blocks.
	EnforcementSoft Enforcement = "soft"
	// EnforcementHard blocks calls once a ceiling is reached.
	EnforcementHard Enforcement = "hard"
)

// RetryPolicy configures the per-model retry loop.
type RetryPolicy struct {
	MaxRetries int
	Strategy   string
	Base       time.Duration
	MaxDelay   time.Duration
	// RetryableErrors are extra errors.Is targets treated as retryable.
	// Only settable in code; config supplies patterns instead.
	RetryableErrors []error
	// RetryablePatterns are extra lowercased message substrings treated
	// as retryable, on top of the built-in defaults.
	RetryablePatterns []string
}

// BreakerPolicy configures circuit breaking for each (caller, model, tenant)
// key. The breaker is opt-in: a nil *BreakerPolicy disables it.
type BreakerPolicy struct {
	// Threshold is the failure count within Within that opens the breaker.
	Threshold int
	Within    time.Duration
	// Cooldown is how long an open breaker waits before admitting a probe.
	Cooldown time.Duration
}

// BudgetPolicy carries optional spend and token ceilings. Nil ceilings are
// unlimited. Token ceilings are global-only, a coarser safety net than the
// cost ceilings.
type BudgetPolicy struct {
	Enforcement         Enforcement
	GlobalDailyUSD      *float64
	GlobalMonthlyUSD    *float64
	CallerDailyUSD      *float64
	CallerMonthlyUSD    *float64
	GlobalDailyTokens   *int64
	GlobalMonthlyTokens *int64
}

// Policy is the fully resolved configuration for one execution. It is built
// once per call and passed by value; nothing mutates it afterwards.
type Policy struct {
	// Fallbacks are tried in order after the primary model.
	Fallbacks    []string
	Retry        RetryPolicy
	Breaker      *BreakerPolicy
	Budget       *BudgetPolicy
	TotalTimeout time.Duration
}

// Default returns the built-in policy: three retries with exponential
// backoff, no breaker, no budget, no overall deadline.
func Default() Policy {
	return Policy{
		Retry: RetryPolicy{
			MaxRetries: 3,
			Strategy:   "exponential",
			Base:       time.Second,
			MaxDelay:   30 * time.Second,
		},
	}
}

// Breaker defaults applied when an override block enables the breaker but
// leaves fields unset.
const (
	defaultBreakerThreshold = 5
	defaultBreakerWithin    = 60 * time.Second
	defaultBreakerCooldown  = 30 * time.Second
)
