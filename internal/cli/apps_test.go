package cli

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/orchard/internal/api"
	"github.com/GriffinCanCode/orchard/internal/auth"
	"github.com/GriffinCanCode/orchard/internal/docker"
	"github.com/GriffinCanCode/orchard/internal/testutil"
)

// orchardRemote is a fake Orchard API for user ben with password hunter2.
type orchardRemote struct {
	*testutil.Remote

	mu   sync.Mutex
	apps map[string]api.App
}

func newOrchardRemote(t *testing.T) *orchardRemote {
	t.Helper()
	o := &orchardRemote{apps: map[string]api.App{}}

	o.Remote = testutil.NewRemote(t, func(r *gin.Engine) {
		r.POST("/v2/signin", func(c *gin.Context) {
			if c.PostForm("username") != "ben" || c.PostForm("password") != "hunter2" {
				c.JSON(http.StatusBadRequest, gin.H{"non_field_errors": []string{"Unable to login with provided credentials."}})
				return
			}
			c.JSON(http.StatusOK, gin.H{"token": "t0k"})
		})

		authed := r.Group("/v2", func(c *gin.Context) {
			if c.GetHeader("Authorization") != "Token t0k" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid token."})
			}
		})
		authed.GET("/customers/me", func(c *gin.Context) {
			c.JSON(http.StatusOK, api.Customer{ID: 7, Username: "ben", Email: "ben@example.com"})
		})
		authed.GET("/apps", func(c *gin.Context) {
			o.mu.Lock()
			defer o.mu.Unlock()
			apps := []api.App{}
			for _, app := range o.apps {
				apps = append(apps, app)
			}
			sort.Slice(apps, func(i, j int) bool { return apps[i].Name < apps[j].Name })
			c.JSON(http.StatusOK, apps)
		})
		authed.GET("/apps/:name", func(c *gin.Context) {
			o.mu.Lock()
			defer o.mu.Unlock()
			app, ok := o.apps[c.Param("name")]
			if !ok {
				c.JSON(http.StatusNotFound, gin.H{"detail": "Not found"})
				return
			}
			c.JSON(http.StatusOK, app)
		})
		authed.POST("/apps", func(c *gin.Context) {
			name := c.PostForm("name")
			o.mu.Lock()
			defer o.mu.Unlock()
			if _, ok := o.apps[name]; ok {
				c.JSON(http.StatusBadRequest, gin.H{"name": []string{"App with this name already exists."}})
				return
			}
			app := api.App{ID: len(o.apps) + 1, Name: name, URL: o.URL + "/v2/apps/" + name}
			o.apps[name] = app
			c.JSON(http.StatusCreated, app)
		})
		authed.DELETE("/apps/:name", func(c *gin.Context) {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.apps, c.Param("name"))
			c.Status(http.StatusNoContent)
		})
		authed.GET("/hosts", func(c *gin.Context) {
			c.JSON(http.StatusOK, []api.Host{{ID: 1, Name: "default_ben", Size: 512, IPv4Address: "10.0.0.4"}})
		})
		authed.GET("/broken", func(c *gin.Context) {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Database unavailable"})
		})

		r.GET("/docker/:app/v1.5/version", func(c *gin.Context) {
			if c.GetHeader("Authorization") != "Token t0k" {
				c.Status(http.StatusUnauthorized)
				return
			}
			c.JSON(http.StatusOK, docker.Version{Version: "0.6.3-" + c.Param("app"), GitCommit: "b0a49a3", GoVersion: "go1.1.2"})
		})
	})
	return o
}

func (o *orchardRemote) addApp(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.apps[name] = api.App{ID: len(o.apps) + 1, Name: name}
}

func (o *orchardRemote) hasApp(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.apps[name]
	return ok
}

// useOrchard points the fixture at remote, with a token already stored
// when token is not empty.
func (f *fixture) useOrchard(t *testing.T, remote *orchardRemote, token string) {
	t.Helper()
	cfg := f.app.Config
	cfg.API.URL = remote.URL + "/v2"
	cfg.API.RetryMax = 0
	cfg.Docker.HostTemplate = remote.URL + "/docker/%s"
	f.app.NewDocker = f.app.connectDocker

	if token != "" {
		require.NoError(t, os.MkdirAll(cfg.TokenDir(), 0o700))
		path := filepath.Join(cfg.TokenDir(), auth.TokenFileName(cfg.API.URL))
		require.NoError(t, os.WriteFile(path, []byte(token), 0o600))
	}
}

func (f *fixture) storedToken(t *testing.T) string {
	t.Helper()
	cfg := f.app.Config
	data, err := os.ReadFile(filepath.Join(cfg.TokenDir(), auth.TokenFileName(cfg.API.URL)))
	if os.IsNotExist(err) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

func TestAppsList(t *testing.T) {
	remote := newOrchardRemote(t)
	remote.addApp("web")
	remote.addApp("db")
	f := newFixture(t)
	f.useOrchard(t, remote, "t0k")

	assert.Equal(t, 0, f.run("apps"))
	assert.Equal(t, "db\nweb\n", f.out.String())

	f.out = &syncBuffer{}
	f.app.Out = f.out
	assert.Equal(t, 0, f.run("apps", "ls"))
	assert.Equal(t, "db\nweb\n", f.out.String())
}

func TestAppsListEmpty(t *testing.T) {
	remote := newOrchardRemote(t)
	f := newFixture(t)
	f.useOrchard(t, remote, "t0k")

	assert.Equal(t, 0, f.run("apps", "ls"))
	assert.Empty(t, f.out.String())
	assert.Equal(t, []string{`You don't have any apps yet. Run "orchard apps create" to create one.`}, f.messages(zapcore.ErrorLevel))
}

func TestAppsCreate(t *testing.T) {
	remote := newOrchardRemote(t)
	f := newFixture(t)
	f.useOrchard(t, remote, "t0k")

	assert.Equal(t, 0, f.run("apps", "create", "web"))
	assert.True(t, remote.hasApp("web"))
	assert.Equal(t, []string{"Created web"}, f.messages(zapcore.InfoLevel))

	assert.Equal(t, 1, f.run("apps", "create", "web"))
	assert.Equal(t, []string{"App with this name already exists."}, f.messages(zapcore.ErrorLevel))
}

func TestAppsRemove(t *testing.T) {
	remote := newOrchardRemote(t)
	remote.addApp("web")
	remote.addApp("db")
	f := newFixture(t)
	f.useOrchard(t, remote, "t0k")

	assert.Equal(t, 0, f.run("apps", "rm", "web", "db"))
	assert.False(t, remote.hasApp("web"))
	assert.False(t, remote.hasApp("db"))
	assert.Equal(t, []string{"Deleted web", "Deleted db"}, f.messages(zapcore.InfoLevel))

	assert.Equal(t, 1, f.run("apps", "rm", "web"))
	assert.Equal(t, []string{"No such app: web"}, f.messages(zapcore.ErrorLevel))
}

func TestHostsList(t *testing.T) {
	remote := newOrchardRemote(t)
	f := newFixture(t)
	f.useOrchard(t, remote, "t0k")

	assert.Equal(t, 0, f.run("hosts"))
	out := f.out.String()
	assert.Contains(t, out, "IP Address")
	assert.Contains(t, out, "default_ben")
	assert.Contains(t, out, "512M")
	assert.Contains(t, out, "10.0.0.4")
}

func TestLoginPromptsAndStoresToken(t *testing.T) {
	remote := newOrchardRemote(t)
	f := newFixture(t)
	f.useOrchard(t, remote, "")
	f.input(t, "ben\nwrong\nben\nhunter2\n")

	assert.Equal(t, 0, f.run("login"))
	assert.Equal(t, "t0k", f.storedToken(t))
	assert.Equal(t, "Orchard username: Password: Username: Password: ", f.err.String())
	assert.Equal(t, []string{"Sorry, that doesn't look right. Try again?"}, f.messages(zapcore.ErrorLevel))
	assert.Equal(t, []string{"Logged in as ben"}, f.messages(zapcore.InfoLevel))
}

func TestLoginInputEnds(t *testing.T) {
	remote := newOrchardRemote(t)
	f := newFixture(t)
	f.useOrchard(t, remote, "")

	assert.Equal(t, 1, f.run("login"))
	assert.Empty(t, f.storedToken(t))
	require.Len(t, f.messages(zapcore.ErrorLevel), 1)
}

func TestLogout(t *testing.T) {
	remote := newOrchardRemote(t)
	f := newFixture(t)
	f.useOrchard(t, remote, "t0k")

	assert.Equal(t, 0, f.run("logout"))
	assert.Empty(t, f.storedToken(t))
	assert.Equal(t, []string{"Logged out"}, f.messages(zapcore.InfoLevel))
}

func TestExpiredTokenLogsInAgain(t *testing.T) {
	remote := newOrchardRemote(t)
	remote.addApp("web")
	f := newFixture(t)
	f.useOrchard(t, remote, "stale")
	f.input(t, "ben\nhunter2\n")

	assert.Equal(t, 0, f.run("apps"))
	assert.Equal(t, "web\n", f.out.String())
	assert.Equal(t, "t0k", f.storedToken(t))
}

func TestAPIErrorIsExplained(t *testing.T) {
	remote := newOrchardRemote(t)
	f := newFixture(t)
	f.useOrchard(t, remote, "t0k")
	f.app.LogFile = "/tmp/orchard-apps.log"

	client, err := f.app.Orchard(context.Background())
	require.NoError(t, err)
	_, err = client.Do(context.Background(), http.MethodGet, "/broken", nil)
	require.Error(t, err)

	assert.Equal(t, 1, f.app.handleError(err))
	assert.Equal(t, []string{
		"API error: Database unavailable",
		"See /tmp/orchard-apps.log for more detail",
	}, f.messages(zapcore.ErrorLevel))
}

func TestDockerUsesDefaultApp(t *testing.T) {
	remote := newOrchardRemote(t)
	f := newFixture(t)
	f.useOrchard(t, remote, "t0k")

	assert.Equal(t, 0, f.run("docker", "version"))
	assert.Equal(t, "Client version: 0.6.4\n"+
		"Server version: 0.6.3-default_ben\n"+
		"Git commit: b0a49a3\n"+
		"Go version: go1.1.2\n", f.out.String())
}

func TestDockerUsesSelectedApp(t *testing.T) {
	remote := newOrchardRemote(t)
	f := newFixture(t)
	f.useOrchard(t, remote, "t0k")

	assert.Equal(t, 0, f.run("--app", "web", "docker", "version"))
	assert.Contains(t, f.out.String(), "Server version: 0.6.3-web\n")
}
