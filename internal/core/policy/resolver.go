package policy

import "time"

// Overrides is one layer of the override chain: every field is optional and
// a nil field defers to the next layer. The same struct is populated from
// YAML config and from tenant rows in the policy store.
type Overrides struct {
	Fallbacks    []string          `yaml:"fallbacks,omitempty" json:"fallbacks,omitempty"`
	Retry        *RetryOverrides   `yaml:"retry,omitempty" json:"retry,omitempty"`
	Breaker      *BreakerOverrides `yaml:"breaker,omitempty" json:"breaker,omitempty"`
	Budget       *BudgetOverrides  `yaml:"budget,omitempty" json:"budget,omitempty"`
	TotalTimeout *time.Duration    `yaml:"total_timeout,omitempty" json:"total_timeout,omitempty"`
}

type RetryOverrides struct {
	MaxRetries        *int           `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	Strategy          *string        `yaml:"strategy,omitempty" json:"strategy,omitempty"`
	Base              *time.Duration `yaml:"base,omitempty" json:"base,omitempty"`
	MaxDelay          *time.Duration `yaml:"max_delay,omitempty" json:"max_delay,omitempty"`
	RetryablePatterns []string       `yaml:"retryable_patterns,omitempty" json:"retryable_patterns,omitempty"`
}

type BreakerOverrides struct {
	Threshold *int           `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Within    *time.Duration `yaml:"within,omitempty" json:"within,omitempty"`
	Cooldown  *time.Duration `yaml:"cooldown,omitempty" json:"cooldown,omitempty"`
}

type BudgetOverrides struct {
	Enforcement         *string  `yaml:"enforcement,omitempty" json:"enforcement,omitempty"`
	GlobalDailyUSD      *float64 `yaml:"global_daily_usd,omitempty" json:"global_daily_usd,omitempty"`
	GlobalMonthlyUSD    *float64 `yaml:"global_monthly_usd,omitempty" json:"global_monthly_usd,omitempty"`
	CallerDailyUSD      *float64 `yaml:"caller_daily_usd,omitempty" json:"caller_daily_usd,omitempty"`
	CallerMonthlyUSD    *float64 `yaml:"caller_monthly_usd,omitempty" json:"caller_monthly_usd,omitempty"`
	GlobalDailyTokens   *int64   `yaml:"global_daily_tokens,omitempty" json:"global_daily_tokens,omitempty"`
	GlobalMonthlyTokens *int64   `yaml:"global_monthly_tokens,omitempty" json:"global_monthly_tokens,omitempty"`
}

// Resolver resolves policies through the override chain
// tenant -> global -> built-in default. It holds immutable snapshots; swap
// the whole Resolver to pick up config changes.
type Resolver struct {
	global  Overrides
	tenants map[string]Overrides
}

func NewResolver(global Overrides, tenants map[string]Overrides) *Resolver {
	if tenants == nil {
		tenants = map[string]Overrides{}
	}
	return &Resolver{global: global, tenants: tenants}
}

// Tenants returns the tenant IDs with explicit overrides.
func (r *Resolver) Tenants() []string {
	ids := make([]string, 0, len(r.tenants))
	for id := range r.tenants {
		ids = append(ids, id)
	}
	return ids
}

// Resolve builds the effective policy for a tenant. It is a pure function of
// the resolver's snapshots: each field takes the first present value walking
// tenant overrides, then global overrides, then the built-in default.
func (r *Resolver) Resolve(tenantID string) Policy {
	sources := make([]Overrides, 0, 2)
	if tenantID != "" {
		if ov, ok := r.tenants[tenantID]; ok {
			sources = append(sources, ov)
		}
	}
	sources = append(sources, r.global)

	merged := mergeOverrides(sources)
	return merged.apply(Default())
}

// mergeOverrides collapses the chain into one Overrides, first present value
// per leaf field.
func mergeOverrides(sources []Overrides) Overrides {
	var out Overrides
	for _, src := range sources {
		if out.Fallbacks == nil && src.Fallbacks != nil {
			out.Fallbacks = src.Fallbacks
		}
		if out.TotalTimeout == nil && src.TotalTimeout != nil {
			out.TotalTimeout = src.TotalTimeout
		}
		if src.Retry != nil {
			if out.Retry == nil {
				out.Retry = &RetryOverrides{}
			}
			mergeRetry(out.Retry, src.Retry)
		}
		if src.Breaker != nil {
			if out.Breaker == nil {
				out.Breaker = &BreakerOverrides{}
			}
			mergeBreaker(out.Breaker, src.Breaker)
		}
		if src.Budget != nil {
			if out.Budget == nil {
				out.Budget = &BudgetOverrides{}
			}
			mergeBudget(out.Budget, src.Budget)
		}
	}
	return out
}

func mergeRetry(dst, src *RetryOverrides) {
	if dst.MaxRetries == nil {
		dst.MaxRetries = src.MaxRetries
	}
	if dst.Strategy == nil {
		dst.Strategy = src.Strategy
	}
	if dst.Base == nil {
		dst.Base = src.Base
	}
	if dst.MaxDelay == nil {
		dst.MaxDelay = src.MaxDelay
	}
	if dst.RetryablePatterns == nil {
		dst.RetryablePatterns = src.RetryablePatterns
	}
}

func mergeBreaker(dst, src *BreakerOverrides) {
	if dst.Threshold == nil {
		dst.Threshold = src.Threshold
	}
	if dst.Within == nil {
		dst.Within = src.Within
	}
	if dst.Cooldown == nil {
		dst.Cooldown = src.Cooldown
	}
}

func mergeBudget(dst, src *BudgetOverrides) {
	if dst.Enforcement == nil {
		dst.Enforcement = src.Enforcement
	}
	if dst.GlobalDailyUSD == nil {
		dst.GlobalDailyUSD = src.GlobalDailyUSD
	}
	if dst.GlobalMonthlyUSD == nil {
		dst.GlobalMonthlyUSD = src.GlobalMonthlyUSD
	}
	if dst.CallerDailyUSD == nil {
		dst.CallerDailyUSD = src.CallerDailyUSD
	}
	if dst.CallerMonthlyUSD == nil {
		dst.CallerMonthlyUSD = src.CallerMonthlyUSD
	}
	if dst.GlobalDailyTokens == nil {
		dst.GlobalDailyTokens = src.GlobalDailyTokens
	}
	if dst.GlobalMonthlyTokens == nil {
		dst.GlobalMonthlyTokens = src.GlobalMonthlyTokens
	}
}

// apply materializes the merged overrides onto the base policy. Presence of
// a breaker or budget block is what enables that component.
func (o Overrides) apply(base Policy) Policy {
	pol := base
	if o.Fallbacks != nil {
		pol.Fallbacks = append([]string(nil), o.Fallbacks...)
	}
	if o.TotalTimeout != nil {
		pol.TotalTimeout = *o.TotalTimeout
	}
	if o.Retry != nil {
		if o.Retry.MaxRetries != nil {
			pol.Retry.MaxRetries = *o.Retry.MaxRetries
		}
		if o.Retry.Strategy != nil {
			pol.Retry.Strategy = *o.Retry.Strategy
		}
		if o.Retry.Base != nil {
			pol.Retry.Base = *o.Retry.Base
		}
		if o.Retry.MaxDelay != nil {
			pol.Retry.MaxDelay = *o.Retry.MaxDelay
		}
		if o.Retry.RetryablePatterns != nil {
			pol.Retry.RetryablePatterns = append([]string(nil), o.Retry.RetryablePatterns...)
		}
	}
	if o.Breaker != nil {
		br := BreakerPolicy{
			Threshold: defaultBreakerThreshold,
			Within:    defaultBreakerWithin,
			Cooldown:  defaultBreakerCooldown,
		}
		if o.Breaker.Threshold != nil {
			br.Threshold = *o.Breaker.Threshold
		}
		if o.Breaker.Within != nil {
			br.Within = *o.Breaker.Within
		}
		if o.Breaker.Cooldown != nil {
			br.Cooldown = *o.Breaker.Cooldown
		}
		pol.Breaker = &br
	}
	if o.Budget != nil {
		bp := BudgetPolicy{Enforcement: EnforcementSoft}
		if o.Budget.Enforcement != nil {
			bp.Enforcement = Enforcement(*o.Budget.Enforcement)
		}
		bp.GlobalDailyUSD = o.Budget.GlobalDailyUSD
		bp.GlobalMonthlyUSD = o.Budget.GlobalMonthlyUSD
		bp.CallerDailyUSD = o.Budget.CallerDailyUSD
		bp.CallerMonthlyUSD = o.Budget.CallerMonthlyUSD
		bp.GlobalDailyTokens = o.Budget.GlobalDailyTokens
		bp.GlobalMonthlyTokens = o.Budget.GlobalMonthlyTokens
		pol.Budget = &bp
	}
	return pol
}
