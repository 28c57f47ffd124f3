package attach

import (
	"context"
	"errors"
	"io"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/orchard/internal/shared/id"
)

// DefaultPollInterval is how often the supervisor checks the caller's
// KeepRunning predicate.
const DefaultPollInterval = time.Second

// State is the lifecycle of a Session. Transitions are strictly linear.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateDraining
	StateTerminated
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Options configures a Session.
type Options struct {
	// ID correlates log lines of one session. Generated when empty.
	ID string

	// Stdin receives local input. Required when Interactive is set.
	Stdin Channel
	// Stdout is the primary channel; the session drains when it closes.
	Stdout Channel
	// Stderr is optional and never holds the session open.
	Stderr Channel

	// Local streams. Default to os.Stdin, os.Stdout and os.Stderr.
	Input     *os.File
	Output    io.Writer
	ErrOutput io.Writer

	// Interactive forwards local input to Stdin.
	Interactive bool
	// Raw puts the local terminal into raw mode for the session. A raw
	// session that is not interactive still reads local input, watching
	// for Ctrl-C, because the terminal no longer turns it into SIGINT.
	Raw bool

	// KeepRunning is polled every PollInterval; returning false ends the
	// session.
	KeepRunning  func() bool
	PollInterval time.Duration

	Logger   *zap.Logger
	Observer Observer
}

// Session supervises one attach invocation.
type Session struct {
	opts     Options
	logger   *zap.Logger
	observer Observer
	terminal *Terminal
	state    atomic.Int32
}

// NewSession creates a session in the CREATED state.
func NewSession(opts Options) *Session {
	if opts.ID == "" {
		opts.ID = string(id.NewAttachID())
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.ErrOutput == nil {
		opts.ErrOutput = os.Stderr
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}

	logger := opts.Logger.With(zap.String("session", opts.ID))
	return &Session{
		opts:     opts,
		logger:   logger,
		observer: opts.Observer,
		terminal: NewTerminal(opts.Input, opts.Output, logger),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.opts.ID
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// readsInput reports whether the session needs an input pump.
func (s *Session) readsInput() bool {
	return s.opts.Interactive || s.opts.Raw
}

// Run attaches the local terminal to the session's channels and blocks
// until the session is over. The terminal is restored before Run returns
// on every path.
//
// Run returns nil when stdout closes, KeepRunning returns false or the
// user interrupts a pass-through session; ctx.Err() when ctx is
// cancelled; and an error when the terminal cannot be set up or local
// input cannot be forwarded.
func (s *Session) Run(ctx context.Context) (err error) {
	if !s.state.CompareAndSwap(int32(StateCreated), int32(StateRunning)) {
		return ErrAlreadyRun
	}
	if s.opts.Stdout == nil {
		s.state.Store(int32(StateTerminated))
		return ErrNoStdout
	}
	if s.opts.Interactive && s.opts.Stdin == nil {
		s.state.Store(int32(StateTerminated))
		return ErrNoStdin
	}

	s.logger.Debug("attach session starting",
		zap.Bool("interactive", s.opts.Interactive),
		zap.Bool("raw", s.opts.Raw),
		zap.Bool("stderr", s.opts.Stderr != nil),
	)

	outcome := OutcomeCompleted
	defer func() {
		if rerr := s.terminal.Release(); rerr != nil {
			if err == nil {
				err = rerr
			} else {
				s.logger.Warn("failed to restore terminal", zap.Error(rerr))
			}
		}
		if err != nil && outcome == OutcomeCompleted {
			outcome = OutcomeFailed
		}
		s.state.Store(int32(StateTerminated))
		s.observer.SessionFinished(outcome)
		s.logger.Debug("attach session terminated", zap.String("outcome", outcome), zap.Error(err))
	}()

	if err := s.terminal.Acquire(); err != nil {
		return err
	}
	if s.opts.Raw {
		if err := s.terminal.EnterRawMode(); err != nil {
			return err
		}
	}

	stop := make(chan struct{})
	var input *inputPump
	if s.readsInput() {
		if err := s.prepareInput(); err != nil {
			return err
		}
		input = s.startInput(stop)
	}

	stdout := s.startOutput(StreamStdout, s.opts.Stdout, s.opts.Output)
	if s.opts.Stderr != nil {
		s.startOutput(StreamStderr, s.opts.Stderr, s.opts.ErrOutput)
	}

	outcome, err = s.supervise(ctx, stdout, input)

	s.state.Store(int32(StateDraining))
	close(stop)
	if input != nil {
		// The input pump never blocks longer than one poll unless it is
		// stuck in Send; in that case it is left behind.
		select {
		case <-input.Done():
		case <-time.After(2 * inputPollTimeout):
			s.logger.Debug("input pump still busy, abandoning it")
		}
	}
	return err
}

// supervise waits for the first reason to stop.
func (s *Session) supervise(ctx context.Context, stdout *outputPump, input *inputPump) (string, error) {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	var inputDone <-chan struct{}
	if input != nil {
		inputDone = input.Done()
	}

	for {
		select {
		case <-stdout.Done():
			s.logger.Debug("stdout finished", zap.Stringer("state", stdout.State()))
			return OutcomeCompleted, nil

		case <-inputDone:
			inputDone = nil
			switch err := input.Err(); {
			case errors.Is(err, ErrCancellationRequested):
				return OutcomeCancelled, nil
			case err != nil:
				return OutcomeFailed, err
			}
			// Local input ended or the remote stopped reading it; output
			// keeps flowing until stdout closes.

		case <-ticker.C:
			if s.opts.KeepRunning != nil && !s.opts.KeepRunning() {
				s.logger.Debug("keep-running check returned false")
				return OutcomeCancelled, nil
			}

		case <-ctx.Done():
			return OutcomeCancelled, ctx.Err()
		}
	}
}

// prepareInput makes local input non-blocking for polling and keeps the
// local outputs blocking so pump writes never come back short.
func (s *Session) prepareInput() error {
	if err := s.terminal.SetNonBlocking(s.opts.Input, true); err != nil {
		return err
	}
	for _, w := range []io.Writer{s.opts.Output, s.opts.ErrOutput} {
		if f, ok := w.(*os.File); ok {
			if err := s.terminal.SetNonBlocking(f, false); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Session) startInput(stop <-chan struct{}) *inputPump {
	ip := &inputPump{
		pump:        newPump(StreamStdin.String(), s.logger),
		fd:          s.terminal.InputFD(),
		channel:     s.opts.Stdin,
		passThrough: !s.opts.Interactive,
		stop:        stop,
		observer:    s.observer,
	}
	ip.start(ip.loop, s.pumpExited(ip.pump))
	return ip
}

func (s *Session) startOutput(stream Stream, channel Channel, output io.Writer) *outputPump {
	op := &outputPump{
		pump:     newPump(stream.String(), s.logger),
		stream:   stream,
		channel:  channel,
		output:   output,
		observer: s.observer,
	}
	op.start(op.loop, s.pumpExited(op.pump))
	return op
}

func (s *Session) pumpExited(p *pump) func(PumpState) {
	return func(state PumpState) {
		p.logger.Debug("pump exited", zap.Stringer("state", state))
		s.observer.PumpExited(p.name, state)
	}
}

// Run is a convenience for NewSession(opts).Run(ctx).
func Run(ctx context.Context, opts Options) error {
	return NewSession(opts).Run(ctx)
}
