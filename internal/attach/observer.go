package attach

// Observer receives session events for metrics. Implementations must be
// safe for concurrent use; pumps report from their own goroutines.
type Observer interface {
	SessionFinished(outcome string)
	BytesTransferred(stream Stream, n int)
	PumpExited(pump string, state PumpState)
}

// Session outcomes reported to Observer.SessionFinished.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

type nopObserver struct{}

func (nopObserver) SessionFinished(string)       {}
func (nopObserver) BytesTransferred(Stream, int) {}
func (nopObserver) PumpExited(string, PumpState) {}
