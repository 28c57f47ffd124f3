package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/orchard/internal/api"
	"github.com/GriffinCanCode/orchard/internal/infrastructure/config"
	"github.com/GriffinCanCode/orchard/internal/infrastructure/monitoring"
)

// RecommendedCommandName is the name of the binary.
const RecommendedCommandName = "orchard"

// NewRootCmd builds the orchard command tree.
func NewRootCmd(a *App) *cobra.Command {
	root := &cobra.Command{
		Use:           RecommendedCommandName,
		Short:         "Command-line interface to Orchard",
		Long:          "Command-line interface to Orchard: manage apps and run Docker containers on Orchard hosts.",
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setupLogging(topLevelName(cmd))
		},
	}
	root.SetVersionTemplate("{{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVarP(&a.appName, "app", "a", "", "Specify the Orchard app to run against (required for 'docker')")
	flags.BoolVar(&a.verbose, "verbose", false, "Show more output")

	root.AddCommand(
		NewCmdApps(a),
		NewCmdHosts(a),
		NewCmdLogin(a),
		NewCmdLogout(a),
		NewCmdDocker(a),
	)

	root.SetIn(a.In)
	root.SetOut(a.Out)
	root.SetErr(a.Err)
	return root
}

// topLevelName is the command directly under the root, which names the
// debug log file.
func topLevelName(cmd *cobra.Command) string {
	for cmd.HasParent() && cmd.Parent().HasParent() {
		cmd = cmd.Parent()
	}
	return cmd.Name()
}

// Execute runs the command line args and returns the process exit code.
func (a *App) Execute(ctx context.Context, args []string) int {
	root := NewRootCmd(a)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if a.Logger == nil {
		if setupErr := a.setupLogging(""); setupErr != nil {
			fmt.Fprintln(a.Err, err)
			return 1
		}
	}
	return a.handleError(err)
}

// handleError reports err the way the user should see it and returns the
// exit code.
func (a *App) handleError(err error) int {
	if err == nil {
		return 0
	}

	var (
		userErr   *UserError
		statusErr *api.StatusError
	)
	switch {
	case errors.Is(err, errReported):
	case errors.Is(err, context.Canceled):
		a.Logger.Error("\nAborting.")
	case errors.As(err, &userErr):
		a.Logger.Error(userErr.Msg)
	case errors.As(err, &statusErr):
		a.Logger.Debug("HTTP error", zap.Error(err))
		detail := ""
		if statusErr.Body != nil {
			detail = statusErr.Detail()
		}
		if detail != "" {
			a.Logger.Error("API error: " + detail)
			a.Logger.Error(fmt.Sprintf("See %s for more detail", a.logFileName()))
		} else {
			a.Logger.Error(fmt.Sprintf("There was an API error - see %s", a.logFileName()))
		}
	default:
		a.Logger.Error(err.Error())
	}
	return 1
}

func (a *App) logFileName() string {
	if a.LogFile == "" {
		return "the debug log"
	}
	return a.LogFile
}

// Main is the entry point of the orchard binary.
func Main(args []string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// A second interrupt kills the process, even inside a blocking prompt.
	go func() {
		<-ctx.Done()
		stop()
	}()

	a := NewApp(cfg)
	a.Metrics = monitoring.NewMetrics()
	defer a.Close()

	return a.Execute(ctx, args)
}
