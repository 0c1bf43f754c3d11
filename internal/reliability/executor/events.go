package executor

import "github.com/surecall-ai/surecall/internal/reliability/ledger"

// Execution identifies one call travelling through the reliability layer.
type Execution struct {
	ID     string
	Caller string
	Tenant string
}

// Observer receives attempt lifecycle notifications. It is a hook point for
// observability pipelines; implementations must be fast and must not block,
// they run inline on the execution path.
type Observer interface {
	AttemptStarted(exec Execution, modelID string, attemptIndex int)
	AttemptCompleted(exec Execution, attempt ledger.Attempt)
}

// NopObserver discards all notifications.
type NopObserver struct{}

func (NopObserver) AttemptStarted(Execution, string, int)      {}
func (NopObserver) AttemptCompleted(Execution, ledger.Attempt) {}

type multiObserver []Observer

func (m multiObserver) AttemptStarted(exec Execution, modelID string, attemptIndex int) {
	for _, o := range m {
		o.AttemptStarted(exec, modelID, attemptIndex)
	}
}

func (m multiObserver) AttemptCompleted(exec Execution, attempt ledger.Attempt) {
	for _, o := range m {
		o.AttemptCompleted(exec, attempt)
	}
}

// CombineObservers fans notifications out to every observer in order.
func CombineObservers(obs ...Observer) Observer {
	flat := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			flat = append(flat, o)
		}
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return flat
}
