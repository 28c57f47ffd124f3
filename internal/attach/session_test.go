package attach

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	zapobserver "go.uber.org/zap/zaptest/observer"
	"golang.org/x/term"
)

const sessionTimeout = 5 * time.Second

func runSession(t *testing.T, s *Session) error {
	t.Helper()
	return runSessionContext(context.Background(), t, s)
}

func runSessionContext(ctx context.Context, t *testing.T, s *Session) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		return err
	case <-time.After(sessionTimeout):
		t.Fatal("session did not finish")
		return nil
	}
}

func TestSessionValidation(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{
			name:    "missing stdout",
			opts:    Options{},
			wantErr: ErrNoStdout,
		},
		{
			name:    "interactive without stdin",
			opts:    Options{Stdout: newFakeChannel(), Interactive: true},
			wantErr: ErrNoStdin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession(tt.opts)
			assert.ErrorIs(t, s.Run(context.Background()), tt.wantErr)
			assert.Equal(t, StateTerminated, s.State())
		})
	}
}

func TestSessionRunsOnce(t *testing.T) {
	r, _ := newInputPipe(t)
	stdout := newFakeChannel()
	stdout.finish()

	s := NewSession(Options{Stdout: stdout, Input: r, Output: &syncBuffer{}})
	assert.Equal(t, StateCreated, s.State())
	assert.True(t, strings.HasPrefix(s.ID(), "att_"))

	require.NoError(t, runSession(t, s))
	assert.Equal(t, StateTerminated, s.State())
	assert.ErrorIs(t, s.Run(context.Background()), ErrAlreadyRun)
}

func TestSessionReplayOnly(t *testing.T) {
	r, w := newInputPipe(t)
	_, err := w.Write([]byte("x"))
	require.NoError(t, err)

	stdout := newFakeChannel()
	stdout.emit("line one\n", "", "line two\n")
	stdout.finish()

	out := &syncBuffer{}
	observer := newRecordingObserver()
	s := NewSession(Options{
		ID:       "att_test",
		Stdout:   stdout,
		Input:    r,
		Output:   out,
		Observer: observer,
	})

	require.NoError(t, runSession(t, s))
	assert.Equal(t, "line one\nline two\n", out.String())
	assert.Equal(t, []string{OutcomeCompleted}, observer.Outcomes())
	assert.Equal(t, len("line one\nline two\n"), observer.Bytes(StreamStdout))

	// local input is left untouched
	_, started := observer.Pump("stdin")
	assert.False(t, started)
	buf := make([]byte, 1)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "x", string(buf[:n]))
}

func TestSessionPassThroughInterrupt(t *testing.T) {
	r, w := newInputPipe(t)
	stdout := newFakeChannel()
	defer stdout.finish()

	observer := newRecordingObserver()
	s := NewSession(Options{
		Stdout:   stdout,
		Input:    r,
		Output:   &syncBuffer{},
		Raw:      true,
		Observer: observer,
	})

	_, err := w.Write([]byte{'a', 'b', interruptByte, 'c'})
	require.NoError(t, err)

	require.NoError(t, runSession(t, s))
	assert.Equal(t, []string{OutcomeCancelled}, observer.Outcomes())
	assert.Equal(t, 0, observer.Bytes(StreamStdin))
}

func TestSessionPassThroughEndOfInput(t *testing.T) {
	r, w := newInputPipe(t)
	stdout := newFakeChannel()
	out := &syncBuffer{}
	observer := newRecordingObserver()

	s := NewSession(Options{
		Stdout:   stdout,
		Input:    r,
		Output:   out,
		Raw:      true,
		Observer: observer,
	})
	require.NoError(t, w.Close())

	go func() {
		assert.Eventually(t, func() bool {
			state, ok := observer.Pump("stdin")
			return ok && state == PumpStopped
		}, time.Second, 5*time.Millisecond)
		stdout.emit("still here\n")
		stdout.finish()
	}()

	require.NoError(t, runSession(t, s))
	assert.Equal(t, "still here\n", out.String())
	assert.Equal(t, []string{OutcomeCompleted}, observer.Outcomes())
}

func TestSessionInteractiveEndOfInput(t *testing.T) {
	r, w := newInputPipe(t)
	stdio := newFakeChannel()
	stdio.onClose = func() {
		stdio.emit("file\n")
		stdio.finish()
	}

	out := &syncBuffer{}
	observer := newRecordingObserver()
	s := NewSession(Options{
		Stdin:       stdio,
		Stdout:      stdio,
		Input:       r,
		Output:      out,
		Interactive: true,
		Observer:    observer,
	})

	_, err := w.Write([]byte("ls\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, runSession(t, s))
	assert.Equal(t, "ls\n", stdio.Sent())
	assert.Equal(t, 1, stdio.Closes())
	assert.Equal(t, "file\n", out.String())
	assert.Equal(t, 3, observer.Bytes(StreamStdin))
	assert.Equal(t, []string{OutcomeCompleted}, observer.Outcomes())
}

func TestSessionBrokenStdin(t *testing.T) {
	r, w := newInputPipe(t)
	stdio := newFakeChannel()
	stdio.sendErr = ErrBrokenChannel

	observer := newRecordingObserver()
	s := NewSession(Options{
		Stdin:       stdio,
		Stdout:      stdio,
		Input:       r,
		Output:      &syncBuffer{},
		Interactive: true,
		Observer:    observer,
	})

	_, err := w.Write([]byte("a"))
	require.NoError(t, err)

	go func() {
		assert.Eventually(t, func() bool {
			state, ok := observer.Pump("stdin")
			return ok && state == PumpStopped
		}, time.Second, 5*time.Millisecond)
		stdio.finish()
	}()

	require.NoError(t, runSession(t, s))
	assert.Equal(t, 0, stdio.Closes())
	assert.Equal(t, []string{OutcomeCompleted}, observer.Outcomes())
}

func TestSessionStdinFailure(t *testing.T) {
	r, w := newInputPipe(t)
	boom := errors.New("boom")
	stdio := newFakeChannel()
	stdio.sendErr = boom
	defer stdio.finish()

	observer := newRecordingObserver()
	s := NewSession(Options{
		Stdin:       stdio,
		Stdout:      stdio,
		Input:       r,
		Output:      &syncBuffer{},
		Interactive: true,
		Observer:    observer,
	})

	_, err := w.Write([]byte("a"))
	require.NoError(t, err)

	err = runSession(t, s)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "send input")
	assert.Equal(t, []string{OutcomeFailed}, observer.Outcomes())
}

func TestSessionKeepRunning(t *testing.T) {
	r, _ := newInputPipe(t)
	stdout := newFakeChannel()
	defer stdout.finish()

	var keep atomic.Bool
	keep.Store(true)
	interval := 20 * time.Millisecond

	observer := newRecordingObserver()
	s := NewSession(Options{
		Stdout:       stdout,
		Input:        r,
		Output:       &syncBuffer{},
		KeepRunning:  keep.Load,
		PollInterval: interval,
		Observer:     observer,
	})

	go func() {
		time.Sleep(3 * interval)
		keep.Store(false)
	}()

	start := time.Now()
	require.NoError(t, runSession(t, s))
	assert.GreaterOrEqual(t, time.Since(start), 3*interval)
	assert.Less(t, time.Since(start), 4*interval+2*inputPollTimeout)
	assert.Equal(t, []string{OutcomeCancelled}, observer.Outcomes())
}

func TestSessionContextCancel(t *testing.T) {
	r, _ := newInputPipe(t)
	stdout := newFakeChannel()
	defer stdout.finish()

	observer := newRecordingObserver()
	s := NewSession(Options{
		Stdout:   stdout,
		Input:    r,
		Output:   &syncBuffer{},
		Observer: observer,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, runSessionContext(ctx, t, s), context.DeadlineExceeded)
	assert.Equal(t, []string{OutcomeCancelled}, observer.Outcomes())
}

func TestSessionSeparatesStderr(t *testing.T) {
	r, _ := newInputPipe(t)
	stdout := newFakeChannel()
	stderr := newFakeChannel()
	stderr.emit("warning\n")
	stderr.finish()

	out, errOut := &syncBuffer{}, &syncBuffer{}
	s := NewSession(Options{
		Stdout:    stdout,
		Stderr:    stderr,
		Input:     r,
		Output:    out,
		ErrOutput: errOut,
	})

	go func() {
		assert.Eventually(t, func() bool {
			return errOut.String() != ""
		}, time.Second, 5*time.Millisecond)
		stdout.emit("result\n")
		stdout.finish()
	}()

	require.NoError(t, runSession(t, s))
	assert.Equal(t, "result\n", out.String())
	assert.Equal(t, "warning\n", errOut.String())
}

func TestSessionStderrDoesNotHoldSession(t *testing.T) {
	r, _ := newInputPipe(t)
	stdout := newFakeChannel()
	stdout.finish()
	stderr := newFakeChannel()
	defer stderr.finish()

	s := NewSession(Options{
		Stdout:    stdout,
		Stderr:    stderr,
		Input:     r,
		Output:    &syncBuffer{},
		ErrOutput: &syncBuffer{},
	})
	require.NoError(t, runSession(t, s))
}

func TestSessionOutputPanic(t *testing.T) {
	r, _ := newInputPipe(t)
	stdout := newFakeChannel()
	stdout.emit("boom")

	observer := newRecordingObserver()
	s := NewSession(Options{
		Stdout:   stdout,
		Input:    r,
		Output:   panicWriter{},
		Observer: observer,
	})

	require.NoError(t, runSession(t, s))
	state, ok := observer.Pump("stdout")
	require.True(t, ok)
	assert.Equal(t, PumpFailed, state)
}

func TestSessionRestoresTerminal(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name        string
		interactive bool
		end         func(t *testing.T, ptmx *os.File, stdout *fakeChannel)
		wantErr     error
		outcome     string
	}{
		{
			name: "stdout closes",
			end: func(t *testing.T, _ *os.File, stdout *fakeChannel) {
				stdout.finish()
			},
			outcome: OutcomeCompleted,
		},
		{
			name: "interrupted",
			end: func(t *testing.T, ptmx *os.File, _ *fakeChannel) {
				// Ctrl-C arrives as a plain byte in raw mode
				_, err := ptmx.Write([]byte{interruptByte})
				require.NoError(t, err)
			},
			outcome: OutcomeCancelled,
		},
		{
			name:        "input cannot be sent",
			interactive: true,
			end: func(t *testing.T, ptmx *os.File, _ *fakeChannel) {
				_, err := ptmx.Write([]byte("a"))
				require.NoError(t, err)
			},
			wantErr: boom,
			outcome: OutcomeFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ptmx, tty, err := pty.Open()
			require.NoError(t, err)
			defer ptmx.Close()
			defer tty.Close()

			fd, err := descriptor(tty)
			require.NoError(t, err)
			before, err := term.GetState(fd)
			require.NoError(t, err)

			stdin := newFakeChannel()
			stdin.sendErr = boom
			stdout := newFakeChannel()
			defer stdout.finish()

			observer := newRecordingObserver()
			s := NewSession(Options{
				Stdin:       stdin,
				Stdout:      stdout,
				Input:       tty,
				Output:      &syncBuffer{},
				Interactive: tt.interactive,
				Raw:         true,
				Observer:    observer,
			})

			done := make(chan error, 1)
			go func() { done <- s.Run(context.Background()) }()

			require.Eventually(t, func() bool {
				during, err := term.GetState(fd)
				return err == nil && !assert.ObjectsAreEqual(before, during)
			}, time.Second, 5*time.Millisecond, "terminal never entered raw mode")

			tt.end(t, ptmx, stdout)

			select {
			case err := <-done:
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.NoError(t, err)
				}
			case <-time.After(sessionTimeout):
				t.Fatal("session did not finish")
			}

			after, err := term.GetState(fd)
			require.NoError(t, err)
			assert.Equal(t, before, after)
			assert.Equal(t, []string{tt.outcome}, observer.Outcomes())
		})
	}
}

func TestSessionRestoreFailureKeepsFirstError(t *testing.T) {
	ptmx, tty, err := pty.Open()
	require.NoError(t, err)
	defer ptmx.Close()

	fd, err := descriptor(tty)
	require.NoError(t, err)
	before, err := term.GetState(fd)
	require.NoError(t, err)

	stdout := newFakeChannel()
	defer stdout.finish()

	core, logs := zapobserver.New(zap.DebugLevel)
	s := NewSession(Options{
		Stdin:       newFakeChannel(),
		Stdout:      stdout,
		Input:       tty,
		Output:      &syncBuffer{},
		Interactive: true,
		Raw:         true,
		Logger:      zap.New(core),
	})

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		during, err := term.GetState(fd)
		return err == nil && !assert.ObjectsAreEqual(before, during)
	}, time.Second, 5*time.Millisecond, "terminal never entered raw mode")

	// input and restore both fail once the descriptor is gone
	require.NoError(t, tty.Close())

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read input")
		var terminalErr *TerminalError
		assert.False(t, errors.As(err, &terminalErr), "restore failure replaced the input error")
	case <-time.After(sessionTimeout):
		t.Fatal("session did not finish")
	}

	assert.Equal(t, 1, logs.FilterMessage("failed to restore terminal").Len())
}

func TestSessionRestoresInputMode(t *testing.T) {
	for _, initial := range []bool{false, true} {
		t.Run(fmt.Sprintf("nonblocking=%t", initial), func(t *testing.T) {
			r, _ := newInputPipe(t)
			setNonblocking(t, r, initial)

			stdout := newFakeChannel()
			defer stdout.finish()

			s := NewSession(Options{
				Stdout: stdout,
				Input:  r,
				Output: &syncBuffer{},
				Raw:    true,
			})

			done := make(chan error, 1)
			go func() { done <- s.Run(context.Background()) }()

			assert.Eventually(t, func() bool {
				return nonblocking(t, r)
			}, time.Second, 5*time.Millisecond, "input never became non-blocking")

			stdout.finish()
			select {
			case err := <-done:
				require.NoError(t, err)
			case <-time.After(sessionTimeout):
				t.Fatal("session did not finish")
			}

			assert.Equal(t, initial, nonblocking(t, r))
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "created", StateCreated.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "draining", StateDraining.String())
	assert.Equal(t, "terminated", StateTerminated.String())
	assert.Equal(t, "unknown", State(42).String())
}
