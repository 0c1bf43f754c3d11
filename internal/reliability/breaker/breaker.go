// Package breaker implements per-(caller, model, tenant) circuit breaking on
// top of the shared counter store. The store is the source of truth; a
// Breaker is a stateless accessor that recomputes state on every check, so
// any number of processes can share one circuit.
package breaker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/surecall-ai/surecall/internal/core/policy"
	"github.com/surecall-ai/surecall/internal/infra/counter"
)

// State of one circuit. Closed is represented by the absence of a state key.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Key identifies one circuit.
type Key struct {
	Caller string
	Model  string
	Tenant string
}

func (k Key) prefix() string {
	if k.Tenant != "" {
		return fmt.Sprintf("breaker:%s:%s:%s", k.Tenant, k.Caller, k.Model)
	}
	return fmt.Sprintf("breaker:%s:%s", k.Caller, k.Model)
}

func failuresKey(k Key) string { return k.prefix() + ":failures" }
func stateKey(k Key) string    { return k.prefix() + ":state" }
func openedAtKey(k Key) string { return k.prefix() + ":opened_at" }

// StorageKeys returns every counter-store key backing a circuit, for ops
// tooling that resets circuits wholesale.
func StorageKeys(k Key) []string {
	return []string{failuresKey(k), stateKey(k), openedAtKey(k)}
}

// Breaker evaluates and mutates circuit state. All methods take the policy
// per call; a nil policy disables the breaker entirely.
type Breaker struct {
	store counter.Store
	now   func() time.Time
	log   *slog.Logger
}

func New(store counter.Store) *Breaker {
	return NewWithClock(store, time.Now)
}

// NewWithClock builds a Breaker on an injected clock so tests can drive
// windows and cooldowns.
func NewWithClock(store counter.Store, now func() time.Time) *Breaker {
	return &Breaker{
		store: store,
		now:   now,
		log:   slog.Default().With("component", "breaker"),
	}
}

// Open reports whether calls for key must be short-circuited. An open
// circuit whose cooldown has elapsed flips to half-open here, at read time,
// and admits the caller as the probe. Counter-store errors fail open:
// availability wins over protection.
func (b *Breaker) Open(ctx context.Context, pol *policy.BreakerPolicy, key Key) bool {
	if pol == nil {
		return false
	}
	state, ok, err := b.store.Get(ctx, stateKey(key))
	if err != nil {
		b.log.Warn("breaker state read failed", "caller", key.Caller, "model", key.Model, "error", err)
		return false
	}
	if !ok {
		return false
	}

	switch State(state) {
	case StateOpen:
		openedAt, err := b.store.GetInt(ctx, openedAtKey(key))
		if err != nil {
			b.log.Warn("breaker opened_at read failed", "caller", key.Caller, "model", key.Model, "error", err)
			return false
		}
		if b.now().Sub(time.Unix(openedAt, 0)) >= pol.Cooldown {
			if err := b.store.Set(ctx, stateKey(key), string(StateHalfOpen), stateTTL(pol)); err != nil {
				b.log.Warn("breaker half-open transition failed", "caller", key.Caller, "model", key.Model, "error", err)
			}
			b.log.Info("circuit breaker half-open", "caller", key.Caller, "model", key.Model, "tenant", key.Tenant)
			return false
		}
		return true
	case StateHalfOpen:
		return false
	default:
		return false
	}
}

// RecordFailure counts a provider failure. In the closed state the count is
// windowed by the failures key TTL, so the window starts at the first
// failure and the count evaporates when it elapses. A half-open probe
// failure reopens the circuit with a fresh opened_at.
func (b *Breaker) RecordFailure(ctx context.Context, pol *policy.BreakerPolicy, key Key) {
	if pol == nil {
		return
	}
	state, _, err := b.store.Get(ctx, stateKey(key))
	if err != nil {
		b.log.Warn("breaker state read failed", "caller", key.Caller, "model", key.Model, "error", err)
		return
	}
	switch State(state) {
	case StateHalfOpen:
		b.open(ctx, pol, key)
		b.log.Warn("circuit breaker reopened after failed probe",
			"caller", key.Caller, "model", key.Model, "tenant", key.Tenant)
		return
	case StateOpen:
		// Concurrent calls admitted just before the circuit opened may
		// still report failures; they change nothing.
		return
	}

	count, err := b.store.IncrBy(ctx, failuresKey(key), 1, pol.Within)
	if err != nil {
		b.log.Warn("breaker failure count failed", "caller", key.Caller, "model", key.Model, "error", err)
		return
	}
	if count >= int64(pol.Threshold) {
		b.open(ctx, pol, key)
		b.log.Warn("circuit breaker opened",
			"caller", key.Caller, "model", key.Model, "tenant", key.Tenant,
			"failures", count, "window", pol.Within)
	}
}

// RecordSuccess closes the circuit when a half-open probe comes back clean.
// Successes in the closed state leave the windowed count alone; the TTL is
// what forgives old failures.
func (b *Breaker) RecordSuccess(ctx context.Context, pol *policy.BreakerPolicy, key Key) {
	if pol == nil {
		return
	}
	state, ok, err := b.store.Get(ctx, stateKey(key))
	if err != nil {
		b.log.Warn("breaker state read failed", "caller", key.Caller, "model", key.Model, "error", err)
		return
	}
	if !ok {
		return
	}
	if State(state) == StateHalfOpen {
		if err := b.store.Delete(ctx, stateKey(key), openedAtKey(key), failuresKey(key)); err != nil {
			b.log.Warn("breaker close failed", "caller", key.Caller, "model", key.Model, "error", err)
			return
		}
		b.log.Info("circuit breaker closed", "caller", key.Caller, "model", key.Model, "tenant", key.Tenant)
	}
}

func (b *Breaker) open(ctx context.Context, pol *policy.BreakerPolicy, key Key) {
	ttl := stateTTL(pol)
	if err := b.store.Set(ctx, stateKey(key), string(StateOpen), ttl); err != nil {
		b.log.Warn("breaker open failed", "caller", key.Caller, "model", key.Model, "error", err)
		return
	}
	if err := b.store.Set(ctx, openedAtKey(key), fmt.Sprintf("%d", b.now().Unix()), ttl); err != nil {
		b.log.Warn("breaker opened_at stamp failed", "caller", key.Caller, "model", key.Model, "error", err)
	}
}

// stateTTL keeps state keys alive well past the cooldown so the lazy
// half-open transition can always happen, while still garbage-collecting
// circuits nobody checks again.
func stateTTL(pol *policy.BreakerPolicy) time.Duration {
	ttl := 24 * time.Hour
	if pol.Cooldown*2 > ttl {
		ttl = pol.Cooldown * 2
	}
	return ttl
}

// Snapshot is the observable circuit state for ops surfaces.
type Snapshot struct {
	State    State     `json:"state"`
	Failures int64     `json:"failures"`
	OpenedAt time.Time `json:"opened_at,omitempty"`
}

// Snapshot reads the circuit without mutating it. An open circuit past its
// cooldown is reported half-open, matching what the next admission check
// will do.
func (b *Breaker) Snapshot(ctx context.Context, pol *policy.BreakerPolicy, key Key) (Snapshot, error) {
	snap := Snapshot{State: StateClosed}

	failures, err := b.store.GetInt(ctx, failuresKey(key))
	if err != nil {
		return snap, fmt.Errorf("failures read failed: %w", err)
	}
	snap.Failures = failures

	state, ok, err := b.store.Get(ctx, stateKey(key))
	if err != nil {
		return snap, fmt.Errorf("state read failed: %w", err)
	}
	if !ok {
		return snap, nil
	}
	snap.State = State(state)

	if snap.State == StateOpen {
		openedAt, err := b.store.GetInt(ctx, openedAtKey(key))
		if err != nil {
			return snap, fmt.Errorf("opened_at read failed: %w", err)
		}
		snap.OpenedAt = time.Unix(openedAt, 0).UTC()
		if pol != nil && b.now().Sub(snap.OpenedAt) >= pol.Cooldown {
			snap.State = StateHalfOpen
		}
	}
	return snap, nil
}
