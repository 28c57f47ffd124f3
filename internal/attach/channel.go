package attach

import (
	"context"
	"strings"
)

// Channel is one remote byte stream. Recv returns io.EOF once the remote
// end has half-closed. Send returns ErrBrokenChannel when the remote end
// has reset. SendClose signals that no more input follows and must be
// called at most once.
type Channel interface {
	Recv() ([]byte, error)
	Send(p []byte) error
	SendClose() error
}

// Opener opens channels against a remote container.
type Opener interface {
	OpenChannel(ctx context.Context, containerID string, selector Selector) (Channel, error)
}

// Stream names the I/O role a channel carries.
type Stream int

const (
	StreamStdin Stream = iota
	StreamStdout
	StreamStderr
)

// String returns the string representation of the stream
func (s Stream) String() string {
	switch s {
	case StreamStdin:
		return "stdin"
	case StreamStdout:
		return "stdout"
	case StreamStderr:
		return "stderr"
	default:
		return "unknown"
	}
}

// Mode selects whether a channel replays buffered output, follows live
// output, or both.
type Mode int

const (
	ModeLive Mode = iota
	ModeReplayThenLive
	ModeReplayOnly
)

// String returns the string representation of the mode
func (m Mode) String() string {
	switch m {
	case ModeLive:
		return "live"
	case ModeReplayThenLive:
		return "replay-then-live"
	case ModeReplayOnly:
		return "replay-only"
	default:
		return "unknown"
	}
}

// Replay reports whether buffered output is sent first.
func (m Mode) Replay() bool {
	return m == ModeReplayThenLive || m == ModeReplayOnly
}

// Live reports whether the channel follows output as it is produced.
func (m Mode) Live() bool {
	return m == ModeLive || m == ModeReplayThenLive
}

// ModeFor derives the channel mode from the logs/stream pair used by the
// remote attach endpoint.
func ModeFor(logs, stream bool) Mode {
	switch {
	case logs && stream:
		return ModeReplayThenLive
	case logs:
		return ModeReplayOnly
	default:
		return ModeLive
	}
}

// Selector picks the roles and mode of a channel. One remote connection
// may carry several roles (stdin and stdout share the stdio socket).
type Selector struct {
	Stdin  bool
	Stdout bool
	Stderr bool
	Mode   Mode
}

// String renders the selector for logs, e.g. "stdin+stdout/live".
func (s Selector) String() string {
	var roles []string
	if s.Stdin {
		roles = append(roles, StreamStdin.String())
	}
	if s.Stdout {
		roles = append(roles, StreamStdout.String())
	}
	if s.Stderr {
		roles = append(roles, StreamStderr.String())
	}
	if len(roles) == 0 {
		roles = append(roles, "none")
	}
	return strings.Join(roles, "+") + "/" + s.Mode.String()
}
