package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"
)

const (
	// DefaultURL is the production Orchard API.
	DefaultURL = "https://api.orchardup.com/v2"

	// DefaultDockerHost is formatted with an app name to find its Docker
	// host.
	DefaultDockerHost = "https://%s.orchardup.net"
)

// Customer is the signed-in account.
type Customer struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// App is an Orchard app, the unit a Docker host is provisioned for.
type App struct {
	ID   int    `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

// Host is a provisioned Docker host.
type Host struct {
	ID          int    `json:"id"`
	URL         string `json:"url"`
	Name        string `json:"name"`
	Size        int    `json:"size"`
	IPv4Address string `json:"ipv4_address"`
}

// Orchard is the Orchard REST API.
type Orchard struct {
	*Client

	// DockerHost is the Docker host URL template for an app.
	DockerHost string
}

// NewOrchard creates an Orchard API client.
func NewOrchard(opts Options) (*Orchard, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultURL
	}
	if opts.Name == "" {
		opts.Name = "orchard-api"
	}
	client, err := NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &Orchard{Client: client, DockerHost: DefaultDockerHost}, nil
}

// DockerURL returns the Docker API endpoint provisioned for app.
func (o *Orchard) DockerURL(app string) string {
	return fmt.Sprintf(o.DockerHost, app)
}

// SignIn exchanges credentials for an API token and starts using it. The
// request is never logged.
func (o *Orchard) SignIn(ctx context.Context, username, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	err := o.JSON(Quiet(ctx), http.MethodPost, "/signin", &out, func(req *resty.Request) {
		req.SetFormData(map[string]string{
			"username": username,
			"password": password,
		})
	})
	if err != nil {
		if IsBadRequest(err) {
			return "", ErrAuthenticationFailed
		}
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("sign in response carried no token")
	}

	o.SetToken(out.Token)
	return out.Token, nil
}

// CustomerData returns the account the token belongs to.
func (o *Orchard) CustomerData(ctx context.Context) (*Customer, error) {
	var customer Customer
	if err := o.JSON(ctx, http.MethodGet, "/customers/me", &customer, nil); err != nil {
		return nil, err
	}
	return &customer, nil
}

// Apps returns the apps collection.
func (o *Orchard) Apps() *Apps {
	return &Apps{client: o.Client, path: "/apps"}
}

// Hosts returns the hosts collection.
func (o *Orchard) Hosts() *Hosts {
	return &Hosts{client: o.Client, path: "/hosts"}
}

// Apps is the collection of the customer's apps.
type Apps struct {
	client *Client
	path   string
}

// List fetches every app.
func (a *Apps) List(ctx context.Context) ([]App, error) {
	var apps []App
	if err := a.client.JSON(ctx, http.MethodGet, a.path, &apps, nil); err != nil {
		return nil, err
	}
	return apps, nil
}

// Get fetches one app by name.
func (a *Apps) Get(ctx context.Context, name string) (*App, error) {
	var app App
	if err := a.client.JSON(ctx, http.MethodGet, a.path+"/"+url.PathEscape(name), &app, nil); err != nil {
		return nil, err
	}
	return &app, nil
}

// Create adds an app. Validation failures come back as a 400 StatusError
// whose FieldErrors("name") explain the problem.
func (a *Apps) Create(ctx context.Context, name string) (*App, error) {
	var app App
	err := a.client.JSON(ctx, http.MethodPost, a.path, &app, func(req *resty.Request) {
		req.SetFormData(map[string]string{"name": name})
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// Delete removes an app through its resource URL.
func (a *Apps) Delete(ctx context.Context, app *App) error {
	target := app.URL
	if target == "" {
		target = a.path + "/" + url.PathEscape(app.Name)
	}
	if _, err := a.client.Do(ctx, http.MethodDelete, target, nil); err != nil {
		return fmt.Errorf("delete app %s: %w", app.Name, err)
	}
	return nil
}

// Hosts is the collection of the customer's Docker hosts.
type Hosts struct {
	client *Client
	path   string
}

// List fetches every host.
func (h *Hosts) List(ctx context.Context) ([]Host, error) {
	var hosts []Host
	if err := h.client.JSON(ctx, http.MethodGet, h.path, &hosts, nil); err != nil {
		return nil, err
	}
	return hosts, nil
}

// Get fetches one host by name.
func (h *Hosts) Get(ctx context.Context, name string) (*Host, error) {
	var host Host
	if err := h.client.JSON(ctx, http.MethodGet, h.path+"/"+url.PathEscape(name), &host, nil); err != nil {
		return nil, err
	}
	return &host, nil
}
