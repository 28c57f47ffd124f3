package cli

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/orchard/internal/attach"
	"github.com/GriffinCanCode/orchard/internal/docker"
)

func newCmdAttach(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "attach CONTAINER",
		Short: "Attach to a running container",
		Args:  cobra.ExactArgs(1),
		RunE: a.dockerRun(func(ctx context.Context, d Docker, args []string) error {
			info, err := d.InspectContainer(ctx, args[0])
			if err != nil {
				return err
			}
			return a.attachContainer(ctx, d, args[0], docker.AttachOptions{
				Interactive: info.Config.OpenStdin,
				Stream:      true,
			}, info.Config.Tty, nil)
		}),
	}
}

func newCmdLogs(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logs CONTAINER",
		Short: "Fetch the logs of a container",
		Args:  cobra.ExactArgs(1),
		RunE: a.dockerRun(func(ctx context.Context, d Docker, args []string) error {
			return a.attachContainer(ctx, d, args[0], docker.AttachOptions{Logs: true}, false, nil)
		}),
	}
}

// attachContainer opens the container's channels, calls started once they
// are open, and runs an attach session until the container's output ends.
func (a *App) attachContainer(ctx context.Context, d Docker, id string, opts docker.AttachOptions, raw bool, started func(context.Context) error) error {
	att, err := d.AttachChannels(ctx, id, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := att.Close(); err != nil {
			a.Logger.Debug("failed to close attach channels", zap.Error(err))
		}
	}()

	if started != nil {
		if err := started(ctx); err != nil {
			return err
		}
	}

	sessionOpts := attach.Options{
		Stdout:       att.Stdio,
		Stderr:       att.Stderr,
		Input:        a.In,
		Output:       a.Out,
		ErrOutput:    a.Err,
		Interactive:  opts.Interactive,
		Raw:          raw,
		PollInterval: a.Config.Attach.PollInterval,
		Logger:       a.Logger.With(zap.String("container", shortID(id))),
		Observer:     a.observer(),
	}
	if opts.Interactive {
		sessionOpts.Stdin = att.Stdio
	}

	session := attach.NewSession(sessionOpts)
	a.Logger.Debug("attaching",
		zap.String("session", session.ID()),
		zap.Stringer("mode", att.Mode),
		zap.Bool("interactive", opts.Interactive),
		zap.Bool("raw", raw),
	)
	return session.Run(ctx)
}
