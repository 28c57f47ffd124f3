package docker

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/orchard/internal/attach"
)

// AttachOptions selects what an attachment carries.
type AttachOptions struct {
	// Interactive forwards local input to the container.
	Interactive bool
	// Logs replays output produced before the attach.
	Logs bool
	// Stream follows output as it is produced.
	Stream bool
}

// Mode is the channel mode the options select.
func (o AttachOptions) Mode() attach.Mode {
	return attach.ModeFor(o.Logs, o.Stream)
}

// Attachment is an open pair of attach channels: stdio carries stdin and
// stdout, stderr is separate so the two outputs never interleave.
type Attachment struct {
	Stdio  attach.Channel
	Stderr attach.Channel
	Mode   attach.Mode
}

// Close closes the channels that hold a connection.
func (a *Attachment) Close() error {
	var errs []error
	for _, ch := range []attach.Channel{a.Stdio, a.Stderr} {
		if closer, ok := ch.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
	}
	return errors.Join(errs...)
}

// AttachChannels opens the stdio and stderr channels of a container.
func (c *Client) AttachChannels(ctx context.Context, id string, opts AttachOptions) (*Attachment, error) {
	mode := opts.Mode()

	stdio, err := c.opener.Open(ctx, id, attach.Selector{
		Stdin:  opts.Interactive,
		Stdout: true,
		Mode:   mode,
	})
	if err != nil {
		return nil, err
	}

	stderr, err := c.opener.Open(ctx, id, attach.Selector{
		Stderr: true,
		Mode:   mode,
	})
	if err != nil {
		if closeErr := stdio.Close(); closeErr != nil {
			c.logger.Debug("failed to close stdio channel", zap.Error(closeErr))
		}
		return nil, err
	}

	return &Attachment{Stdio: stdio, Stderr: stderr, Mode: mode}, nil
}
