// Package retry computes backoff delays and classifies failures as retryable
// or terminal. Both halves are pure; the executor owns the loop that uses
// them.
package retry

import (
	"math"
	"math/rand"
	"time"
)

// Strategy selects how the retry delay grows across attempts.
type Strategy string

const (
	StrategyConstant    Strategy = "constant"
	StrategyExponential Strategy = "exponential"
)

// BaseDelay computes the non-jittered delay component for an attempt.
// constant yields base every time; exponential yields base * 2^attempt capped
// at maxDelay. Unknown strategies behave as constant rather than failing.
func BaseDelay(strategy Strategy, base, maxDelay time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	switch strategy {
	case StrategyExponential:
		delay := float64(base) * math.Pow(2, float64(attempt))
		if maxDelay > 0 && delay > float64(maxDelay) {
			delay = float64(maxDelay)
		}
		return time.Duration(delay)
	default:
		return base
	}
}

// Delay is BaseDelay plus uniform jitter drawn from [0, 0.5*delay). Jitter is
// strictly additive; a caller never sleeps less than the base component.
// Pass a seeded rng for deterministic output; nil uses the shared source.
func Delay(strategy Strategy, base, maxDelay time.Duration, attempt int, rng *rand.Rand) time.Duration {
	delay := BaseDelay(strategy, base, maxDelay, attempt)
	if delay <= 0 {
		return 0
	}
	var f float64
	if rng != nil {
		f = rng.Float64()
	} else {
		f = rand.Float64()
	}
	return delay + time.Duration(f*0.5*float64(delay))
}
