package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/orchard/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/orchard/internal/infrastructure/resilience"
)

// maxErrorBody caps how much of an unparsed error response is read.
const maxErrorBody = 64 << 10

// Options configures a Client.
type Options struct {
	BaseURL   string
	Token     string
	UserAgent string
	Timeout   time.Duration
	RetryMax  int
	RateLimit float64 // requests per second, 0 for unlimited

	// Name identifies the client in logs and its circuit breaker.
	Name string

	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

// Client is the REST core shared by the Orchard and Docker APIs: resty on
// a retrying transport, with rate limiting, a circuit breaker, token auth
// and curl-style debug logging.
type Client struct {
	Resty   *resty.Client
	Limiter *rate.Limiter
	Breaker *resilience.Breaker

	base    *url.URL
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.RWMutex
	token string
}

// NewClient creates a client for the API rooted at opts.BaseURL.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API url %q: %w", opts.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid API url %q: scheme and host required", opts.BaseURL)
	}

	if opts.Name == "" {
		opts.Name = base.Host
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("api", opts.Name))

	// Retries happen below resty so every attempt shares one request log.
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			logger.Debug("retrying request",
				zap.String("method", req.Method),
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt),
			)
		}
	}

	// Streams must outlive any fixed timeout; Do applies one per request.
	restyClient := resty.NewWithClient(retryClient.StandardClient()).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)
	if opts.UserAgent != "" {
		restyClient.SetHeader("User-Agent", opts.UserAgent)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	breaker := resilience.New(opts.Name, resilience.Settings{
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsFailure: isServiceFailure,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Debug("circuit breaker state changed",
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})

	c := &Client{
		Resty:   restyClient,
		Limiter: limiter,
		Breaker: breaker,
		base:    base,
		timeout: opts.Timeout,
		logger:  logger,
		token:   opts.Token,
	}

	restyClient.SetPreRequestHook(c.logRequest)
	restyClient.OnAfterResponse(c.logResponse)
	if opts.Metrics != nil {
		monitoring.Instrument(restyClient, opts.Metrics)
	}

	return c, nil
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Token returns the API token, empty before sign-in.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken sets the token sent with every request.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// BuildURL resolves a path against the API root. Absolute URLs, such as
// the url field of a resource, are returned unchanged.
func (c *Client) BuildURL(pathOrURL string) string {
	if strings.Contains(pathOrURL, "://") {
		return pathOrURL
	}
	pathOrURL = strings.TrimSuffix(pathOrURL, "/")

	u := *c.base
	u.Path = c.base.Path + pathOrURL
	u.RawPath = ""
	if i := strings.IndexByte(pathOrURL, '?'); i >= 0 {
		u.Path = c.base.Path + pathOrURL[:i]
		u.RawQuery = pathOrURL[i+1:]
	}
	return u.String()
}

// Request creates a new request once the rate limiter allows it.
func (c *Client) Request(ctx context.Context) (*resty.Request, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	req := c.Resty.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", uuid.NewString())
	if token := c.Token(); token != "" {
		req.SetHeader("Authorization", "Token "+token)
	}
	return req, nil
}

// Do sends a request through the circuit breaker and reads the whole
// response. build customizes the request before it is sent and may be
// nil. A response with an error status is returned together with a
// *StatusError.
func (c *Client) Do(ctx context.Context, method, pathOrURL string, build func(*resty.Request)) (*resty.Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.do(ctx, method, pathOrURL, build)
}

func (c *Client) do(ctx context.Context, method, pathOrURL string, build func(*resty.Request)) (*resty.Response, error) {
	req, err := c.Request(ctx)
	if err != nil {
		return nil, err
	}
	if build != nil {
		build(req)
	}

	var resp *resty.Response
	err = c.Breaker.Execute(func() error {
		var err error
		resp, err = req.Execute(method, c.BuildURL(pathOrURL))
		if err != nil {
			return err
		}
		if resp.StatusCode() >= 400 {
			return NewStatusError(resp.StatusCode(), errorBody(resp))
		}
		return nil
	})
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s unavailable: %w", c.base.Host, err)
	}
	return resp, err
}

// JSON sends a request and decodes a JSON response body into out.
func (c *Client) JSON(ctx context.Context, method, pathOrURL string, out any, build func(*resty.Request)) error {
	resp, err := c.Do(ctx, method, pathOrURL, build)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, pathOrURL, err)
	}
	return nil
}

// Stream sends a request and returns the unread response body. The caller
// must close it. Streams have no deadline beyond ctx.
func (c *Client) Stream(ctx context.Context, method, pathOrURL string, build func(*resty.Request)) (io.ReadCloser, error) {
	resp, err := c.do(ctx, method, pathOrURL, func(req *resty.Request) {
		req.SetDoNotParseResponse(true)
		if build != nil {
			build(req)
		}
	})
	if err != nil {
		return nil, err
	}
	return resp.RawBody(), nil
}

// errorBody returns the body of an error response, draining and closing
// it if resty left it unread.
func errorBody(resp *resty.Response) []byte {
	if body := resp.Body(); len(body) > 0 {
		return body
	}
	raw := resp.RawBody()
	if raw == nil {
		return nil
	}
	defer raw.Close()
	body, _ := io.ReadAll(io.LimitReader(raw, maxErrorBody))
	return body
}

// isServiceFailure counts transport errors and 5xx responses against the
// circuit breaker; client errors are the caller's problem.
func isServiceFailure(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Kind() == KindServer
	}
	return !errors.Is(err, context.Canceled)
}

type quietKey struct{}

// Quiet marks requests made with ctx as not to be logged, for requests
// that carry credentials.
func Quiet(ctx context.Context) context.Context {
	return context.WithValue(ctx, quietKey{}, true)
}

func isQuiet(ctx context.Context) bool {
	quiet, _ := ctx.Value(quietKey{}).(bool)
	return quiet
}

func (c *Client) logRequest(_ *resty.Client, req *http.Request) error {
	if isQuiet(req.Context()) || !c.logger.Core().Enabled(zap.DebugLevel) {
		return nil
	}
	c.logger.Debug(CurlCommand(req))
	return nil
}

func (c *Client) logResponse(_ *resty.Client, resp *resty.Response) error {
	if isQuiet(resp.Request.Context()) {
		return nil
	}
	c.logger.Debug(fmt.Sprintf("%d %s", resp.StatusCode(), resp.Body()))
	return nil
}

// CurlCommand renders a request as an equivalent curl invocation. The
// token is redacted.
func CurlCommand(req *http.Request) string {
	cmd := []string{"curl", "--verbose", "-X", strings.ToUpper(req.Method)}

	if req.GetBody != nil {
		if body, err := req.GetBody(); err == nil {
			data, _ := io.ReadAll(body)
			body.Close()
			if len(data) > 0 {
				cmd = append(cmd, "-d", shellQuote(string(data)))
			}
		}
	}

	names := make([]string, 0, len(req.Header))
	for name := range req.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, value := range req.Header[name] {
			if name == "Authorization" {
				value = redact(value)
			}
			cmd = append(cmd, "-H", shellQuote(name+": "+value))
		}
	}

	cmd = append(cmd, shellQuote(req.URL.String()))
	return strings.Join(cmd, " ")
}

func redact(value string) string {
	scheme, _, found := strings.Cut(value, " ")
	if !found {
		return "<redacted>"
	}
	return scheme + " <redacted>"
}

// shellQuote quotes s for a POSIX shell unless it is made only of safe
// characters.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("@%_-+=:,./", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	var b bytes.Buffer
	b.WriteByte('\'')
	b.WriteString(strings.ReplaceAll(s, "'", `'"'"'`))
	b.WriteByte('\'')
	return b.String()
}
