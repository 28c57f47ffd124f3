package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/orchard/internal/api"
	"github.com/GriffinCanCode/orchard/internal/attach"
	"github.com/GriffinCanCode/orchard/internal/auth"
	"github.com/GriffinCanCode/orchard/internal/docker"
	"github.com/GriffinCanCode/orchard/internal/infrastructure/config"
	"github.com/GriffinCanCode/orchard/internal/infrastructure/logging"
	"github.com/GriffinCanCode/orchard/internal/infrastructure/monitoring"
)

// Version is the orchard client version.
var Version = "2.0.1"

// Docker is the part of the Docker API the commands use.
type Docker interface {
	Containers(ctx context.Context, all bool) ([]docker.Container, error)
	CreateContainer(ctx context.Context, opts docker.CreateOptions) (*docker.Created, error)
	ReplaceContainer(ctx context.Context, id string, opts docker.CreateOptions) (*docker.Created, error)
	InspectContainer(ctx context.Context, id string) (*docker.ContainerInfo, error)
	InspectContainerRaw(ctx context.Context, id string) (map[string]any, error)
	InspectImage(ctx context.Context, name string) (map[string]any, error)
	Start(ctx context.Context, id string, binds []string) error
	Stop(ctx context.Context, id string, timeout int) error
	Restart(ctx context.Context, id string, timeout int) error
	Kill(ctx context.Context, id string) error
	RemoveContainer(ctx context.Context, id string, volumes bool) error
	Diff(ctx context.Context, id string) ([]docker.Change, error)
	Top(ctx context.Context, id string) (*docker.Top, error)
	Export(ctx context.Context, id string) (io.ReadCloser, error)
	Copy(ctx context.Context, id, resource string) (io.ReadCloser, error)
	Version(ctx context.Context) (*docker.Version, error)
	AttachChannels(ctx context.Context, id string, opts docker.AttachOptions) (*docker.Attachment, error)
}

var _ Docker = (*docker.Client)(nil)

// App holds what every command shares: configuration, logging, the local
// streams and the API clients.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *monitoring.Metrics

	In  *os.File
	Out io.Writer
	Err io.Writer

	// LogFile is the debug log named in API error messages.
	LogFile string

	// NewDocker connects to the Docker host of an app; "" selects the
	// customer's default app.
	NewDocker func(ctx context.Context, app string) (Docker, error)

	// Now is the clock used for relative dates.
	Now func() time.Time

	appName  string
	verbose  bool
	orchard  *api.Orchard
	closeLog func()
}

// NewApp creates an App on the process streams.
func NewApp(cfg *config.Config) *App {
	a := &App{
		Config: cfg,
		In:     os.Stdin,
		Out:    os.Stdout,
		Err:    os.Stderr,
		Now:    time.Now,
	}
	a.NewDocker = a.connectDocker
	return a
}

// setupLogging builds the console and debug file logger for command,
// unless a logger was supplied.
func (a *App) setupLogging(command string) error {
	if a.Logger != nil {
		return nil
	}

	file := ""
	if command != "" {
		file = logging.FileFor(a.Config.LogDir(), command, a.Now())
	}
	cfg := logging.CLIConfig(a.verbose, file)
	if !a.verbose && a.Config.Logging.Level != "" {
		cfg.Level = a.Config.Logging.Level
	}
	if a.Config.Logging.Development {
		cfg.Development = true
		cfg.Plain = false
	}

	logger, err := logging.New(cfg)
	if err != nil {
		logger, err = logging.New(logging.CLIConfig(a.verbose, ""))
		if err != nil {
			return err
		}
	}
	a.Logger = logger.Logger
	a.LogFile = logger.FilePath
	a.closeLog = logger.Close
	return nil
}

// Close flushes the logger and writes the metrics file.
func (a *App) Close() {
	if a.Metrics != nil && a.Config.Metrics.File != "" {
		if err := a.Metrics.WriteTextfile(a.Config.Metrics.File); err != nil && a.Logger != nil {
			a.Logger.Debug("failed to write metrics", zap.Error(err))
		}
	}
	if a.closeLog != nil {
		a.closeLog()
	}
}

func (a *App) userAgent() string {
	return "orchard/" + Version
}

func (a *App) newOrchard() (*api.Orchard, error) {
	client, err := api.NewOrchard(api.Options{
		BaseURL:   a.Config.API.URL,
		UserAgent: a.userAgent(),
		Timeout:   a.Config.API.Timeout,
		RetryMax:  a.Config.API.RetryMax,
		RateLimit: a.Config.API.RateLimit,
		Logger:    a.Logger,
		Metrics:   a.Metrics,
	})
	if err != nil {
		return nil, err
	}
	if a.Config.Docker.HostTemplate != "" {
		client.DockerHost = a.Config.Docker.HostTemplate
	}
	return client, nil
}

func (a *App) authenticator(client *api.Orchard) (*auth.Authenticator, error) {
	return auth.New(auth.Options{
		TokenDir: a.Config.TokenDir(),
		Client:   client,
		Input:    a.In,
		Output:   a.Err,
		Logger:   a.Logger,
	})
}

// Orchard returns the signed-in Orchard client, prompting for credentials
// on first use if no valid token is stored.
func (a *App) Orchard(ctx context.Context) (*api.Orchard, error) {
	if a.orchard != nil {
		return a.orchard, nil
	}

	client, err := a.newOrchard()
	if err != nil {
		return nil, err
	}
	authenticator, err := a.authenticator(client)
	if err != nil {
		return nil, err
	}
	if err := authenticator.Authenticate(ctx); err != nil {
		return nil, err
	}

	a.orchard = client
	return client, nil
}

func (a *App) connectDocker(ctx context.Context, app string) (Docker, error) {
	client, err := a.Orchard(ctx)
	if err != nil {
		return nil, err
	}

	if app == "" {
		customer, err := client.CustomerData(ctx)
		if err != nil {
			return nil, err
		}
		app = "default_" + customer.Username
	}

	return docker.NewClient(docker.Options{
		BaseURL:    client.DockerURL(app),
		APIVersion: a.Config.Docker.APIVersion,
		Token:      client.Token(),
		UserAgent:  a.userAgent(),
		Timeout:    a.Config.API.Timeout,
		RetryMax:   a.Config.API.RetryMax,
		RateLimit:  a.Config.API.RateLimit,
		Logger:     a.Logger,
		Metrics:    a.Metrics,
	})
}

// observer reports attach sessions to the metrics, if collected.
func (a *App) observer() attach.Observer {
	if a.Metrics == nil {
		return nil
	}
	return a.Metrics
}

// UserError is a problem the user can fix; only its message is shown.
type UserError struct {
	Msg string
}

func (e *UserError) Error() string {
	return e.Msg
}

// errReported means the failure was already explained to the user.
var errReported = errors.New("error already reported")
