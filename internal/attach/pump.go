package attach

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

// PumpState is the lifecycle of a single pump.
type PumpState int32

const (
	PumpRunning PumpState = iota
	PumpStopped
	PumpFailed
)

// String returns the string representation of the state
func (s PumpState) String() string {
	switch s {
	case PumpRunning:
		return "running"
	case PumpStopped:
		return "stopped"
	case PumpFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// pump is the shared bookkeeping of the input and output pumps. The state
// is written only by the pump goroutine; the supervisor reads it and waits
// on done.
type pump struct {
	name   string
	state  atomic.Int32
	done   chan struct{}
	err    error
	logger *zap.Logger
}

func newPump(name string, logger *zap.Logger) *pump {
	return &pump{
		name:   name,
		done:   make(chan struct{}),
		logger: logger.With(zap.String("pump", name)),
	}
}

// State returns the current lifecycle state.
func (p *pump) State() PumpState {
	return PumpState(p.state.Load())
}

// Done is closed once the pump has stopped or failed.
func (p *pump) Done() <-chan struct{} {
	return p.done
}

// Err is the error the pump surfaces to the supervisor. Only valid after
// Done is closed; nil means the pump ended without affecting the session.
func (p *pump) Err() error {
	return p.err
}

// start runs loop on its own goroutine. A panic inside loop is logged
// and turned into a failed pump rather than taking the process down.
func (p *pump) start(loop func() (PumpState, error), onExit func(PumpState)) {
	go func() {
		state, err := PumpFailed, error(nil)
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("pump panicked", zap.String("panic", fmt.Sprint(r)))
				state, err = PumpFailed, nil
			}
			p.err = err
			p.state.Store(int32(state))
			if onExit != nil {
				onExit(state)
			}
			close(p.done)
		}()
		state, err = loop()
	}()
}
