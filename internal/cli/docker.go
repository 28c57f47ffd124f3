package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/orchard/internal/api"
	"github.com/GriffinCanCode/orchard/internal/docker"
)

// NewCmdDocker implements the docker command group.
func NewCmdDocker(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docker",
		Short: "Run commands against the Orchard public Docker cloud",
		Long: "Run commands against the Orchard public Docker cloud.\n\n" +
			"Commands run against the app given with -a, or your default app.",
	}

	cmd.AddCommand(
		newCmdAttach(a),
		newCmdCp(a),
		newCmdDiff(a),
		newCmdExport(a),
		newCmdInspect(a),
		newCmdKill(a),
		newCmdLogs(a),
		newCmdPs(a),
		newCmdReplace(a),
		newCmdRestart(a),
		newCmdRm(a),
		newCmdRun(a),
		newCmdStart(a),
		newCmdStop(a),
		newCmdTop(a),
		newCmdVersion(a),
	)
	return cmd
}

// dockerRun connects to the selected app's Docker host before running fn.
// Docker API failures are shown as the daemon's explanation.
func (a *App) dockerRun(fn func(ctx context.Context, d Docker, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := a.NewDocker(ctx, a.appName)
		if err != nil {
			return err
		}

		err = fn(ctx, d, args)
		var statusErr *api.StatusError
		if errors.As(err, &statusErr) {
			a.Logger.Debug("Docker API error", zap.Error(err))
			return &UserError{Msg: docker.Explanation(err)}
		}
		return err
	}
}

// eachContainer applies op to every id, reporting "<done> <id>" or the
// daemon's explanation for each. It fails if any op did.
func (a *App) eachContainer(ctx context.Context, ids []string, done string, op func(ctx context.Context, id string) error) error {
	failed := false
	for _, id := range ids {
		if err := op(ctx, id); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			a.Logger.Debug("Docker API error", zap.String("container", id), zap.Error(err))
			fmt.Fprintln(a.Err, docker.Explanation(err))
			failed = true
			continue
		}
		fmt.Fprintf(a.Err, "%s %s\n", done, id)
	}
	if failed {
		return errReported
	}
	return nil
}

func shortID(id string) string {
	return truncate(id, 10)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
