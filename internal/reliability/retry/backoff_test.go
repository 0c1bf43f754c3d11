package retry

import (
	"math/rand"
	"testing"
	"time"
)

func TestBaseDelay_Constant(t *testing.T) {
	for attempt := 0; attempt < 6; attempt++ {
		got := BaseDelay(StrategyConstant, 2*time.Second, time.Minute, attempt)
		if got != 2*time.Second {
			t.Errorf("BaseDelay(constant, attempt=%d) = %v, want 2s", attempt, got)
		}
	}
}

func TestBaseDelay_ExponentialMonotonic(t *testing.T) {
	base := 500 * time.Millisecond
	maxDelay := 30 * time.Second

	prev := time.Duration(0)
	for attempt := 0; attempt < 12; attempt++ {
		got := BaseDelay(StrategyExponential, base, maxDelay, attempt)
		if got < prev {
			t.Errorf("delay decreased at attempt %d: %v < %v", attempt, got, prev)
		}
		if got > maxDelay {
			t.Errorf("delay exceeded cap at attempt %d: %v", attempt, got)
		}
		prev = got
	}
}

func TestBaseDelay_ExponentialValues(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{5, 30 * time.Second}, // capped from 32s
	}
	for _, tt := range tests {
		got := BaseDelay(StrategyExponential, time.Second, 30*time.Second, tt.attempt)
		if got != tt.want {
			t.Errorf("BaseDelay(exponential, attempt=%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBaseDelay_UnknownStrategyActsConstant(t *testing.T) {
	got := BaseDelay(Strategy("fibonacci"), time.Second, time.Minute, 4)
	if got != time.Second {
		t.Errorf("unknown strategy = %v, want constant 1s", got)
	}
}

func TestDelay_JitterBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	base := time.Second

	for attempt := 0; attempt < 8; attempt++ {
		baseDelay := BaseDelay(StrategyExponential, base, 30*time.Second, attempt)
		for i := 0; i < 200; i++ {
			got := Delay(StrategyExponential, base, 30*time.Second, attempt, rng)
			if got < baseDelay {
				t.Fatalf("jitter went below base: %v < %v (attempt %d)", got, baseDelay, attempt)
			}
			if got > baseDelay+baseDelay/2 {
				t.Fatalf("jitter went above 1.5x base: %v > %v (attempt %d)", got, baseDelay+baseDelay/2, attempt)
			}
		}
	}
}

func TestDelay_Deterministic(t *testing.T) {
	a := Delay(StrategyExponential, time.Second, time.Minute, 3, rand.New(rand.NewSource(7)))
	b := Delay(StrategyExponential, time.Second, time.Minute, 3, rand.New(rand.NewSource(7)))
	if a != b {
		t.Errorf("same seed produced different delays: %v vs %v", a, b)
	}
}

func TestDelay_ZeroBase(t *testing.T) {
	if got := Delay(StrategyConstant, 0, time.Minute, 0, nil); got != 0 {
		t.Errorf("zero base delay = %v, want 0", got)
	}
}
