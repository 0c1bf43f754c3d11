package executor

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrTimeout matches any *TotalTimeoutError via errors.Is.
	ErrTimeout = errors.New("total timeout exceeded")
	// ErrExhausted matches any *ExhaustedError via errors.Is.
	ErrExhausted = errors.New("all models exhausted")
)

// TotalTimeoutError reports that the execution's overall deadline passed
// before any model produced a response. It abandons all remaining retries
// and fallbacks.
type TotalTimeoutError struct {
	Timeout time.Duration
	Elapsed time.Duration
}

func (e *TotalTimeoutError) Error() string {
	return fmt.Sprintf("total timeout %s exceeded after %s", e.Timeout, e.Elapsed)
}

func (e *TotalTimeoutError) Is(target error) bool { return target == ErrTimeout }

// ExhaustedError reports that every candidate model definitively failed or
// was short-circuited. LastErr is the terminal error of the final attempted
// model; it is nil when every model was skipped on an open breaker.
type ExhaustedError struct {
	Models  []string
	LastErr error
}

func (e *ExhaustedError) Error() string {
	tried := strings.Join(e.Models, ", ")
	if e.LastErr == nil {
		return fmt.Sprintf("all models exhausted (tried %s): every circuit open", tried)
	}
	return fmt.Sprintf("all models exhausted (tried %s): %v", tried, e.LastErr)
}

func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

func (e *ExhaustedError) Unwrap() error { return e.LastErr }
