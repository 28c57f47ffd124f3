// Package testutil provides a fake Orchard remote for tests: a gin engine
// served by httptest, with helpers for websocket endpoints.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func init() {
	gin.SetMode(gin.TestMode)
}

// Remote is a fake Orchard API or Docker host.
type Remote struct {
	*httptest.Server
	Engine *gin.Engine
}

// NewRemote starts a server whose routes are registered by routes. The
// server is closed when the test ends.
func NewRemote(t testing.TB, routes func(r *gin.Engine)) *Remote {
	t.Helper()

	engine := gin.New()
	engine.Use(gin.Recovery())
	if routes != nil {
		routes(engine)
	}

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	return &Remote{Server: srv, Engine: engine}
}

// WebSocketURL returns the server URL with a ws scheme.
func (r *Remote) WebSocketURL(path string) string {
	return "ws" + strings.TrimPrefix(r.URL, "http") + path
}

// WebSocket upgrades the request and hands the connection to fn. The
// connection is closed once fn returns.
func WebSocket(fn func(c *gin.Context, conn *websocket.Conn)) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		fn(c, conn)
	}
}

// CloseNormally sends a normal closure frame to the peer.
func CloseNormally(conn *websocket.Conn) error {
	return conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Echo copies every message back to the peer until it closes, then
// closes normally.
func Echo(c *gin.Context, conn *websocket.Conn) {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			_ = CloseNormally(conn)
			return
		}
		if err := conn.WriteMessage(kind, data); err != nil {
			return
		}
	}
}
