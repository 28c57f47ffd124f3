package attach

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Terminal owns the local terminal for the lifetime of one session. It
// captures the input terminal's attributes once, may switch it into raw
// mode and toggle non-blocking I/O on local streams, and puts everything
// back exactly once in Release.
type Terminal struct {
	// input keeps the file, and with it fd, open
	input  *os.File
	output io.Writer
	logger *zap.Logger
	// fd is the input descriptor, or -1 when there is none
	fd int

	mu       sync.Mutex
	acquired bool
	snapshot *term.State
	// blocking modes found on descriptors before SetNonBlocking touched them
	modes map[int]bool

	release sync.Once
	err     error
}

// NewTerminal creates a controller for the given input and output streams.
func NewTerminal(input *os.File, output io.Writer, logger *zap.Logger) *Terminal {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Terminal{
		input:  input,
		output: output,
		logger: logger,
		fd:     -1,
		modes:  make(map[int]bool),
	}
	if input != nil {
		fd, err := descriptor(input)
		if err != nil {
			logger.Debug("input has no descriptor", zap.Error(err))
		} else {
			t.fd = fd
		}
	}
	return t
}

// descriptor returns the file's descriptor without changing its blocking
// mode, which (*os.File).Fd does for files in the runtime poller.
func descriptor(f *os.File) (int, error) {
	conn, err := f.SyscallConn()
	if err != nil {
		return -1, err
	}
	fd := -1
	if err := conn.Control(func(raw uintptr) { fd = int(raw) }); err != nil {
		return -1, err
	}
	return fd, nil
}

// InputFD returns the input descriptor, or -1 when there is none.
func (t *Terminal) InputFD() int {
	return t.fd
}

// IsTerminal reports whether the input stream is a terminal device.
func (t *Terminal) IsTerminal() bool {
	return t.fd >= 0 && term.IsTerminal(t.fd)
}

// Acquire captures the input terminal's attributes. When the input is not
// a terminal nothing is captured and restoring becomes a no-op.
func (t *Terminal) Acquire() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.acquired {
		return nil
	}
	t.acquired = true

	if !t.IsTerminal() {
		t.logger.Debug("input is not a terminal, no snapshot taken")
		return nil
	}

	state, err := term.GetState(t.fd)
	if err != nil {
		return &TerminalError{Op: "snapshot", Err: err}
	}
	t.snapshot = state
	return nil
}

// EnterRawMode disables line buffering, echo and signal characters on the
// input terminal. It does nothing when the input is not a terminal.
func (t *Terminal) EnterRawMode() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snapshot == nil {
		t.logger.Debug("raw mode requested without a terminal, ignoring")
		return nil
	}
	if _, err := term.MakeRaw(t.fd); err != nil {
		return &TerminalError{Op: "raw mode", Err: err}
	}
	return nil
}

// SetNonBlocking switches non-blocking I/O on or off for a local stream.
// The first mode seen on each descriptor is put back by Release.
func (t *Terminal) SetNonBlocking(stream *os.File, enabled bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	fd, err := descriptor(stream)
	if err != nil {
		return &TerminalError{Op: "get descriptor", Err: err}
	}
	if _, seen := t.modes[fd]; !seen {
		flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
		if err != nil {
			return &TerminalError{Op: "get file flags", Err: err}
		}
		t.modes[fd] = flags&unix.O_NONBLOCK != 0
	}
	if err := unix.SetNonblock(fd, enabled); err != nil {
		return &TerminalError{Op: "set file flags", Err: err}
	}
	return nil
}

// Release restores the blocking modes and terminal attributes captured
// earlier and flushes the output stream. Only the first call has any
// effect; later calls return the first call's result.
func (t *Terminal) Release() error {
	t.release.Do(func() {
		t.mu.Lock()
		defer t.mu.Unlock()

		for fd, nonblocking := range t.modes {
			if err := unix.SetNonblock(fd, nonblocking); err != nil {
				t.logger.Warn("failed to restore blocking mode", zap.Int("fd", fd), zap.Error(err))
			}
		}

		if t.snapshot != nil {
			if err := term.Restore(t.fd, t.snapshot); err != nil {
				t.err = &TerminalError{Op: "restore", Err: err}
			}
		}

		if err := flush(t.output); err != nil {
			t.logger.Debug("failed to flush output", zap.Error(err))
		}
	})
	return t.err
}

type flusher interface {
	Flush() error
}

// flush pushes buffered output to its destination. Writes to an *os.File
// are unbuffered and need nothing.
func flush(w io.Writer) error {
	if f, ok := w.(flusher); ok {
		return f.Flush()
	}
	return nil
}
