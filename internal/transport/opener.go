package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/orchard/internal/attach"
)

// Opener opens attach channels against one Docker host.
type Opener struct {
	// BaseURL is the Docker host, e.g. https://myapp.orchardup.net.
	BaseURL string
	// APIVersion is the Docker remote API version in the path, e.g. 1.5.
	APIVersion string
	// Token authenticates the connection. Never part of the URL.
	Token     string
	UserAgent string

	Dialer *websocket.Dialer
	Logger *zap.Logger
}

var _ attach.Opener = (*Opener)(nil)

// AttachURL builds the websocket URL of a container's attach endpoint:
//
//	ws(s)://host/v<version>/containers/<id>/attach/ws?logs=&stderr=&stdin=&stdout=&stream=
func (o *Opener) AttachURL(containerID string, selector attach.Selector) (string, error) {
	u, err := url.Parse(o.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse docker url: %w", err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported docker url scheme %q", u.Scheme)
	}

	path := strings.TrimSuffix(u.Path, "/")
	if o.APIVersion != "" {
		path += "/v" + o.APIVersion
	}
	u.Path = path + "/containers/" + containerID + "/attach/ws"
	u.RawPath = ""

	q := url.Values{}
	q.Set("stdin", flag(selector.Stdin))
	q.Set("stdout", flag(selector.Stdout))
	q.Set("stderr", flag(selector.Stderr))
	q.Set("logs", flag(selector.Mode.Replay()))
	q.Set("stream", flag(selector.Mode.Live()))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Header returns the handshake headers.
func (o *Opener) Header() http.Header {
	header := http.Header{}
	if o.Token != "" {
		header.Set("Authorization", "Token "+o.Token)
	}
	if o.UserAgent != "" {
		header.Set("User-Agent", o.UserAgent)
	}
	return header
}

// Open dials the attach endpoint and returns the concrete channel so the
// caller can close the connection when done.
func (o *Opener) Open(ctx context.Context, containerID string, selector attach.Selector) (*Channel, error) {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	target, err := o.AttachURL(containerID, selector)
	if err != nil {
		return nil, err
	}

	logger = logger.With(zap.String("container", containerID), zap.Stringer("selector", selector))
	logger.Debug("opening websocket connection", zap.String("url", target))

	ch, err := Dial(ctx, o.Dialer, target, o.Header(), logger)
	if err != nil {
		return nil, fmt.Errorf("attach to %s: %w", containerID, err)
	}

	logger.Debug("websocket connection opened")
	return ch, nil
}

// OpenChannel implements attach.Opener.
func (o *Opener) OpenChannel(ctx context.Context, containerID string, selector attach.Selector) (attach.Channel, error) {
	ch, err := o.Open(ctx, containerID, selector)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
