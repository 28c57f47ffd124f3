package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/orchard/internal/api"
	"github.com/GriffinCanCode/orchard/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/orchard/internal/transport"
)

// DefaultAPIVersion is the remote API version Orchard hosts speak.
const DefaultAPIVersion = "1.5"

// DefaultStopTimeout is how long stop and restart wait before killing.
const DefaultStopTimeout = 10

// Options configures a Client.
type Options struct {
	// BaseURL is the app's Docker host.
	BaseURL    string
	APIVersion string
	Token      string
	UserAgent  string
	Timeout    time.Duration
	RetryMax   int
	RateLimit  float64

	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

// Client talks to the Docker remote API of one Orchard host.
type Client struct {
	api    *api.Client
	opener *transport.Opener
	logger *zap.Logger
}

// NewClient creates a client for the Docker host at opts.BaseURL.
func NewClient(opts Options) (*Client, error) {
	if opts.APIVersion == "" {
		opts.APIVersion = DefaultAPIVersion
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	base := strings.TrimSuffix(opts.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid docker url %q: %w", opts.BaseURL, err)
	}

	client, err := api.NewClient(api.Options{
		BaseURL:   base + "/v" + opts.APIVersion,
		Token:     opts.Token,
		UserAgent: opts.UserAgent,
		Timeout:   opts.Timeout,
		RetryMax:  opts.RetryMax,
		RateLimit: opts.RateLimit,
		Name:      "docker-" + u.Host,
		Logger:    opts.Logger,
		Metrics:   opts.Metrics,
	})
	if err != nil {
		return nil, err
	}

	opts.Logger.Debug("connecting to Docker API", zap.String("url", client.BaseURL()))

	return &Client{
		api: client,
		opener: &transport.Opener{
			BaseURL:    base,
			APIVersion: opts.APIVersion,
			Token:      opts.Token,
			UserAgent:  opts.UserAgent,
			Logger:     opts.Logger,
		},
		logger: opts.Logger,
	}, nil
}

// BaseURL returns the versioned API root.
func (c *Client) BaseURL() string {
	return c.api.BaseURL()
}

// Opener returns the websocket opener for attach channels.
func (c *Client) Opener() *transport.Opener {
	return c.opener
}

// Containers lists the containers, only running ones unless all is set.
func (c *Client) Containers(ctx context.Context, all bool) ([]Container, error) {
	var containers []Container
	err := c.api.JSON(ctx, http.MethodGet, "/containers/json", &containers, func(req *resty.Request) {
		req.SetQueryParams(map[string]string{
			"all":       boolParam(all),
			"limit":     "-1",
			"size":      "0",
			"trunc_cmd": "1",
		})
	})
	if err != nil {
		return nil, err
	}
	return containers, nil
}

// CreateContainer creates a container from opts.
func (c *Client) CreateContainer(ctx context.Context, opts CreateOptions) (*Created, error) {
	return c.create(ctx, "/containers/create", opts)
}

// ReplaceContainer creates a container that takes over from id once it
// starts.
func (c *Client) ReplaceContainer(ctx context.Context, id string, opts CreateOptions) (*Created, error) {
	return c.create(ctx, "/containers/create?replaceContainer="+url.QueryEscape(id), opts)
}

func (c *Client) create(ctx context.Context, path string, opts CreateOptions) (*Created, error) {
	var created Created
	err := c.api.JSON(ctx, http.MethodPost, path, &created, func(req *resty.Request) {
		req.SetBody(opts.Config())
	})
	if err != nil {
		return nil, err
	}
	for _, warning := range created.Warnings {
		c.logger.Warn(warning, zap.String("container", created.ID))
	}
	return &created, nil
}

// InspectContainer returns the typed inspect view of a container.
func (c *Client) InspectContainer(ctx context.Context, id string) (*ContainerInfo, error) {
	var info ContainerInfo
	if err := c.api.JSON(ctx, http.MethodGet, containerPath(id, "json"), &info, nil); err != nil {
		return nil, err
	}
	return &info, nil
}

// InspectContainerRaw returns every field the daemon reports for a
// container.
func (c *Client) InspectContainerRaw(ctx context.Context, id string) (map[string]any, error) {
	var info map[string]any
	if err := c.api.JSON(ctx, http.MethodGet, containerPath(id, "json"), &info, nil); err != nil {
		return nil, err
	}
	return info, nil
}

// InspectImage returns every field the daemon reports for an image.
func (c *Client) InspectImage(ctx context.Context, name string) (map[string]any, error) {
	var info map[string]any
	if err := c.api.JSON(ctx, http.MethodGet, "/images/"+url.PathEscape(name)+"/json", &info, nil); err != nil {
		return nil, err
	}
	return info, nil
}

// Start starts a container. Binds are "host:container" pairs.
func (c *Client) Start(ctx context.Context, id string, binds []string) error {
	body := map[string]any{"LxcConf": nil}
	if len(binds) > 0 {
		body["Binds"] = binds
	}
	_, err := c.api.Do(ctx, http.MethodPost, containerPath(id, "start"), func(req *resty.Request) {
		req.SetBody(body)
	})
	return err
}

// Stop stops a container, killing it after timeout seconds.
func (c *Client) Stop(ctx context.Context, id string, timeout int) error {
	return c.post(ctx, containerPath(id, "stop"), map[string]string{"t": strconv.Itoa(timeout)})
}

// Restart stops a container, killing it after timeout seconds, and starts
// it again.
func (c *Client) Restart(ctx context.Context, id string, timeout int) error {
	return c.post(ctx, containerPath(id, "restart"), map[string]string{"t": strconv.Itoa(timeout)})
}

// Kill kills a running container.
func (c *Client) Kill(ctx context.Context, id string) error {
	return c.post(ctx, containerPath(id, "kill"), nil)
}

// RemoveContainer removes a container, and its volumes if volumes is set.
func (c *Client) RemoveContainer(ctx context.Context, id string, volumes bool) error {
	_, err := c.api.Do(ctx, http.MethodDelete, containerPath(id, ""), func(req *resty.Request) {
		req.SetQueryParam("v", boolParam(volumes))
	})
	return err
}

// Diff lists the filesystem changes inside a container.
func (c *Client) Diff(ctx context.Context, id string) ([]Change, error) {
	var changes []Change
	if err := c.api.JSON(ctx, http.MethodGet, containerPath(id, "changes"), &changes, nil); err != nil {
		return nil, err
	}
	return changes, nil
}

// Top lists the processes of a container.
func (c *Client) Top(ctx context.Context, id string) (*Top, error) {
	var top Top
	if err := c.api.JSON(ctx, http.MethodGet, containerPath(id, "top"), &top, nil); err != nil {
		return nil, err
	}
	return &top, nil
}

// Export streams the container filesystem as a tar archive. The caller
// must close the stream.
func (c *Client) Export(ctx context.Context, id string) (io.ReadCloser, error) {
	return c.api.Stream(ctx, http.MethodGet, containerPath(id, "export"), nil)
}

// Copy streams a file or directory out of a container as a tar archive.
// The caller must close the stream.
func (c *Client) Copy(ctx context.Context, id, resource string) (io.ReadCloser, error) {
	return c.api.Stream(ctx, http.MethodPost, containerPath(id, "copy"), func(req *resty.Request) {
		req.SetBody(map[string]string{"Resource": resource})
	})
}

// Version describes the daemon.
func (c *Client) Version(ctx context.Context) (*Version, error) {
	var version Version
	if err := c.api.JSON(ctx, http.MethodGet, "/version", &version, nil); err != nil {
		return nil, err
	}
	return &version, nil
}

func (c *Client) post(ctx context.Context, path string, query map[string]string) error {
	_, err := c.api.Do(ctx, http.MethodPost, path, func(req *resty.Request) {
		if query != nil {
			req.SetQueryParams(query)
		}
	})
	return err
}

func containerPath(id, action string) string {
	path := "/containers/" + url.PathEscape(id)
	if action != "" {
		path += "/" + action
	}
	return path
}

func boolParam(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Explanation is the message the daemon gave for a failed request, or the
// error text when it gave none.
func Explanation(err error) string {
	var statusErr *api.StatusError
	if errors.As(err, &statusErr) {
		if detail := statusErr.Detail(); detail != "" {
			return detail
		}
	}
	return err.Error()
}
