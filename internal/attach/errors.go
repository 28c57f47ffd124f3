package attach

import (
	"errors"
	"fmt"
)

var (
	// ErrBrokenChannel is returned by Channel.Send when the remote end has
	// reset. It only ends the pump that hit it.
	ErrBrokenChannel = errors.New("attach: broken channel")

	// ErrCancellationRequested is raised by the input pump when the user
	// types the interrupt byte in a non-interactive raw session.
	ErrCancellationRequested = errors.New("attach: cancellation requested")

	// ErrNoStdout is returned when a session is started without a stdout channel.
	ErrNoStdout = errors.New("attach: stdout channel is required")

	// ErrNoStdin is returned when an interactive session has no stdin channel.
	ErrNoStdin = errors.New("attach: interactive session requires a stdin channel")

	// ErrAlreadyRun is returned when Run is called twice on one session.
	ErrAlreadyRun = errors.New("attach: session already run")
)

// TerminalError reports a failure to snapshot, change or restore the
// local terminal.
type TerminalError struct {
	Op  string
	Err error
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("terminal %s: %v", e.Op, e.Err)
}

func (e *TerminalError) Unwrap() error {
	return e.Err
}
