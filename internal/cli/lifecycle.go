package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/orchard/internal/docker"
)

func newCmdKill(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "kill CONTAINER [CONTAINER...]",
		Short: "Kill a running container",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.dockerRun(func(ctx context.Context, d Docker, args []string) error {
			return a.eachContainer(ctx, args, "Killed", d.Kill)
		}),
	}
}

func newCmdRm(a *App) *cobra.Command {
	var volumes bool
	cmd := &cobra.Command{
		Use:   "rm [options] CONTAINER [CONTAINER...]",
		Short: "Remove one or more containers",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.dockerRun(func(ctx context.Context, d Docker, args []string) error {
			return a.eachContainer(ctx, args, "Removed", func(ctx context.Context, id string) error {
				return d.RemoveContainer(ctx, id, volumes)
			})
		}),
	}
	cmd.Flags().BoolVarP(&volumes, "volumes", "v", false, "Remove the volumes associated to the container")
	return cmd
}

func newCmdStart(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "start CONTAINER [CONTAINER...]",
		Short: "Start a stopped container",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.dockerRun(func(ctx context.Context, d Docker, args []string) error {
			return a.eachContainer(ctx, args, "Started", func(ctx context.Context, id string) error {
				return d.Start(ctx, id, nil)
			})
		}),
	}
}

func newCmdStop(a *App) *cobra.Command {
	var timeout int
	cmd := &cobra.Command{
		Use:   "stop [options] CONTAINER [CONTAINER...]",
		Short: "Stop a running container",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.dockerRun(func(ctx context.Context, d Docker, args []string) error {
			return a.eachContainer(ctx, args, "Stopped", func(ctx context.Context, id string) error {
				return d.Stop(ctx, id, timeout)
			})
		}),
	}
	cmd.Flags().IntVarP(&timeout, "time", "t", docker.DefaultStopTimeout, "Number of seconds to wait for the container to stop before killing it")
	return cmd
}

func newCmdRestart(a *App) *cobra.Command {
	var timeout int
	cmd := &cobra.Command{
		Use:   "restart [options] CONTAINER [CONTAINER...]",
		Short: "Restart a running container",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.dockerRun(func(ctx context.Context, d Docker, args []string) error {
			return a.eachContainer(ctx, args, "Restarted", func(ctx context.Context, id string) error {
				return d.Restart(ctx, id, timeout)
			})
		}),
	}
	cmd.Flags().IntVarP(&timeout, "time", "t", docker.DefaultStopTimeout,
		"Number of seconds to try to stop for before killing the container. Once killed it will then be restarted")
	return cmd
}
