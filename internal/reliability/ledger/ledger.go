// Package ledger keeps the append-only attempt history of one execution.
// A ledger belongs to exactly one execution and is never shared across
// goroutines, so it carries no locking. Callers that want to keep the
// history persist a JSON copy.
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/surecall-ai/surecall/internal/core/domain"
)

// Attempt is one try of one model within one execution. Token counts stay
// nil until the provider reports them, so failed attempts carry no usage.
// Short-circuited attempts have zero timing because no call happened.
type Attempt struct {
	ModelID             string    `json:"model_id"`
	StartedAt           time.Time `json:"started_at"`
	CompletedAt         time.Time `json:"completed_at"`
	DurationMillis      int64     `json:"duration_millis"`
	InputTokens         *int64    `json:"input_tokens,omitempty"`
	OutputTokens        *int64    `json:"output_tokens,omitempty"`
	CachedTokens        *int64    `json:"cached_tokens,omitempty"`
	CacheCreationTokens *int64    `json:"cache_creation_tokens,omitempty"`
	ErrorKind           string    `json:"error_kind,omitempty"`
	ErrorMessage        string    `json:"error_message,omitempty"`
	ShortCircuited      bool      `json:"short_circuited,omitempty"`
}

// Started builds an attempt at the moment the invoker is about to be called.
func Started(modelID string, at time.Time) Attempt {
	return Attempt{ModelID: modelID, StartedAt: at}
}

// ShortCircuit builds the informational record for a model skipped because
// its breaker was open.
func ShortCircuit(modelID string) Attempt {
	return Attempt{
		ModelID:        modelID,
		ShortCircuited: true,
		ErrorKind:      "circuit_open",
		ErrorMessage:   fmt.Sprintf("circuit breaker open for model %s", modelID),
	}
}

// Finish stamps the completion time and derives the duration.
func (a *Attempt) Finish(at time.Time) {
	a.CompletedAt = at
	a.DurationMillis = at.Sub(a.StartedAt).Milliseconds()
}

// FillUsage records the provider's token report.
func (a *Attempt) FillUsage(u domain.TokenUsage) {
	a.InputTokens = &u.InputTokens
	a.OutputTokens = &u.OutputTokens
	a.CachedTokens = &u.CachedTokens
	a.CacheCreationTokens = &u.CacheCreationTokens
}

// Succeeded reports whether this attempt returned a response.
func (a Attempt) Succeeded() bool {
	return !a.ShortCircuited && a.ErrorKind == "" && a.ErrorMessage == ""
}

// Failed reports whether this attempt reached the provider and failed.
// Short-circuited attempts never reached it and count separately.
func (a Attempt) Failed() bool {
	return !a.ShortCircuited && (a.ErrorKind != "" || a.ErrorMessage != "")
}

// Ledger is the ordered attempt history of one execution.
type Ledger struct {
	ExecutionID string    `json:"execution_id"`
	Caller      string    `json:"caller"`
	Tenant      string    `json:"tenant,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	Attempts    []Attempt `json:"attempts"`
}

// New opens a ledger for a fresh execution.
func New(caller, tenant string, startedAt time.Time) *Ledger {
	return &Ledger{
		ExecutionID: uuid.New().String(),
		Caller:      caller,
		Tenant:      tenant,
		StartedAt:   startedAt,
		Attempts:    make([]Attempt, 0, 4),
	}
}

// Append adds a finalized attempt. Attempts are recorded by value and must
// not be modified afterwards.
func (l *Ledger) Append(a Attempt) {
	l.Attempts = append(l.Attempts, a)
}

// Successful returns the first attempt that produced a response, or nil.
func (l *Ledger) Successful() *Attempt {
	for i := range l.Attempts {
		if l.Attempts[i].Succeeded() {
			return &l.Attempts[i]
		}
	}
	return nil
}

// LastFailure returns the most recent failed attempt, or nil.
func (l *Ledger) LastFailure() *Attempt {
	for i := len(l.Attempts) - 1; i >= 0; i-- {
		if l.Attempts[i].Failed() {
			return &l.Attempts[i]
		}
	}
	return nil
}

// FailureCount counts attempts that reached the provider and failed.
func (l *Ledger) FailureCount() int {
	n := 0
	for i := range l.Attempts {
		if l.Attempts[i].Failed() {
			n++
		}
	}
	return n
}

// ShortCircuitCount counts models skipped on an open breaker.
func (l *Ledger) ShortCircuitCount() int {
	n := 0
	for i := range l.Attempts {
		if l.Attempts[i].ShortCircuited {
			n++
		}
	}
	return n
}

// TotalUsage sums the token reports across all attempts.
func (l *Ledger) TotalUsage() domain.TokenUsage {
	var u domain.TokenUsage
	for i := range l.Attempts {
		a := &l.Attempts[i]
		if a.InputTokens != nil {
			u.InputTokens += *a.InputTokens
		}
		if a.OutputTokens != nil {
			u.OutputTokens += *a.OutputTokens
		}
		if a.CachedTokens != nil {
			u.CachedTokens += *a.CachedTokens
		}
		if a.CacheCreationTokens != nil {
			u.CacheCreationTokens += *a.CacheCreationTokens
		}
	}
	return u
}

// TotalTokens is the input+output sum across all attempts.
func (l *Ledger) TotalTokens() int64 {
	return l.TotalUsage().Total()
}

// TotalDuration sums the wall time spent inside provider calls.
func (l *Ledger) TotalDuration() time.Duration {
	var ms int64
	for i := range l.Attempts {
		ms += l.Attempts[i].DurationMillis
	}
	return time.Duration(ms) * time.Millisecond
}
