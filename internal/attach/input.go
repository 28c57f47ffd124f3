package attach

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// interruptByte is Ctrl-C as delivered by a terminal in raw mode.
const interruptByte = 0x03

// inputPollTimeout bounds each readiness wait so the pump notices stop
// requests even when the user types nothing.
const inputPollTimeout = 100 * time.Millisecond

// inputPump forwards local input to the stdin channel. In pass-through
// mode nothing is forwarded; the pump only watches for the interrupt byte
// and end of input.
type inputPump struct {
	*pump
	fd          int
	channel     Channel
	passThrough bool
	stop        <-chan struct{}
	observer    Observer
}

func (ip *inputPump) loop() (PumpState, error) {
	fds := []unix.PollFd{{Fd: int32(ip.fd), Events: unix.POLLIN}}
	buf := make([]byte, 1)

	for {
		select {
		case <-ip.stop:
			return PumpStopped, nil
		default:
		}

		ready, err := unix.Poll(fds, int(inputPollTimeout/time.Millisecond))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return PumpFailed, fmt.Errorf("poll input: %w", err)
		}
		if ready == 0 || fds[0].Revents == 0 {
			continue
		}

		n, err := unix.Read(ip.fd, buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			return PumpFailed, fmt.Errorf("read input: %w", err)
		}

		if n == 0 {
			return ip.closeInput()
		}

		if ip.passThrough {
			if buf[0] == interruptByte {
				ip.logger.Debug("interrupt received")
				return PumpStopped, ErrCancellationRequested
			}
			continue
		}

		if err := ip.channel.Send(buf[:n]); err != nil {
			if errors.Is(err, ErrBrokenChannel) {
				ip.logger.Debug("stdin channel closed by remote", zap.Error(err))
				return PumpStopped, nil
			}
			return PumpFailed, fmt.Errorf("send input: %w", err)
		}
		ip.observer.BytesTransferred(StreamStdin, n)
	}
}

// closeInput half-closes the stdin channel after local end of input.
func (ip *inputPump) closeInput() (PumpState, error) {
	ip.logger.Debug("end of local input")
	if ip.channel == nil {
		return PumpStopped, nil
	}
	if err := ip.channel.SendClose(); err != nil {
		if errors.Is(err, ErrBrokenChannel) {
			return PumpStopped, nil
		}
		return PumpFailed, fmt.Errorf("close input: %w", err)
	}
	return PumpStopped, nil
}
