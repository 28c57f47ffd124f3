package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/orchard/internal/attach"
)

const (
	// DefaultHandshakeTimeout bounds the websocket upgrade.
	DefaultHandshakeTimeout = 30 * time.Second

	closeWriteTimeout = 5 * time.Second
)

// DefaultDialer is used when an Opener has no dialer of its own.
var DefaultDialer = &websocket.Dialer{
	Proxy:            http.ProxyFromEnvironment,
	HandshakeTimeout: DefaultHandshakeTimeout,
}

// Channel is an attach channel over one websocket connection. Recv must
// only be called from one goroutine; Send and SendClose are serialized.
type Channel struct {
	conn   *websocket.Conn
	logger *zap.Logger

	writeMu   sync.Mutex
	closeSent bool
	closeOnce sync.Once
}

var _ attach.Channel = (*Channel)(nil)

// NewChannel wraps an established connection.
func NewChannel(conn *websocket.Conn, logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{conn: conn, logger: logger}
}

// Dial opens a websocket connection to url and wraps it in a Channel.
func Dial(ctx context.Context, dialer *websocket.Dialer, url string, header http.Header, logger *zap.Logger) (*Channel, error) {
	if dialer == nil {
		dialer = DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed with %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return NewChannel(conn, logger), nil
}

// Recv returns the next non-empty message. A normal close from the peer,
// or the connection ending after our own close frame, reads as io.EOF.
func (c *Channel) Recv() ([]byte, error) {
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if isEndOfStream(err) {
				return nil, io.EOF
			}
			return nil, err
		}
		if kind != websocket.BinaryMessage && kind != websocket.TextMessage {
			continue
		}
		if len(data) == 0 {
			continue
		}
		return data, nil
	}
}

// Send writes p as one binary message.
func (c *Channel) Send(p []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closeSent {
		return fmt.Errorf("%w: close already sent", attach.ErrBrokenChannel)
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		if isBroken(err) {
			return fmt.Errorf("%w: %v", attach.ErrBrokenChannel, err)
		}
		return err
	}
	return nil
}

// SendClose sends a normal closure frame. The peer may keep sending until
// it answers with its own close.
func (c *Channel) SendClose() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closeSent {
		return nil
	}
	c.closeSent = true

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout)); err != nil {
		if isBroken(err) {
			return fmt.Errorf("%w: %v", attach.ErrBrokenChannel, err)
		}
		return err
	}
	c.logger.Debug("sent close frame")
	return nil
}

// Close tears down the underlying connection. Safe to call repeatedly.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

func isEndOfStream(err error) bool {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed)
}

func isBroken(err error) bool {
	if errors.Is(err, websocket.ErrCloseSent) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, net.ErrClosed) {
		return true
	}
	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr)
}
