package attach

import (
	"errors"
	"io"

	"go.uber.org/zap"
)

// outputPump copies one channel to one local stream in receive order.
// Failures end the pump but never the session: the remote end dropping
// the connection is how sessions normally finish.
type outputPump struct {
	*pump
	stream   Stream
	channel  Channel
	output   io.Writer
	observer Observer
}

func (op *outputPump) loop() (PumpState, error) {
	for {
		chunk, err := op.channel.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return PumpStopped, nil
			}
			op.logger.Debug("receive failed", zap.Error(err))
			return PumpFailed, nil
		}
		if len(chunk) == 0 {
			continue
		}

		if _, err := op.output.Write(chunk); err != nil {
			op.logger.Debug("write failed", zap.Error(err))
			return PumpFailed, nil
		}
		if err := flush(op.output); err != nil {
			op.logger.Debug("flush failed", zap.Error(err))
			return PumpFailed, nil
		}
		op.observer.BytesTransferred(op.stream, len(chunk))
	}
}
