package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/getmockd/mockserver-go/pkg/auth"
	"github.com/getmockd/mockserver-go/pkg/callback"
	"github.com/getmockd/mockserver-go/pkg/config"
	"github.com/getmockd/mockserver-go/pkg/expectation"
	"github.com/getmockd/mockserver-go/pkg/lifecycle"
	"github.com/getmockd/mockserver-go/pkg/logging"
	"github.com/getmockd/mockserver-go/pkg/metrics"
)

// Control-plane paths, relative to the context path.
const (
	PathExpectation = "/mockserver/expectation"
	PathReset       = "/mockserver/reset"
	PathRetrieve    = "/mockserver/retrieve"
)

const poolStopTimeout = 5 * time.Second

// Client talks to one server. It owns the callback registry, the lifecycle
// bus and the worker pool used by its callback channels.
type Client struct {
	host        string
	port        int
	contextPath string
	secure      bool

	cfg        *config.Config
	log        *slog.Logger
	httpClient *http.Client
	metrics    *metrics.Metrics
	registry   *callback.Registry
	bus        *lifecycle.Bus
	auth       *auth.Authenticator
	pool       *callback.Pool

	stopOnce sync.Once
}

// Option configures a Client.
type Option func(*Client)

// WithContextPath sets the server context path.
func WithContextPath(path string) Option {
	return func(c *Client) { c.contextPath = callback.NormalizeContextPath(path) }
}

// WithSecure makes the client use https and wss.
func WithSecure(secure bool) Option {
	return func(c *Client) { c.secure = secure }
}

// WithConfig sets the configuration. Nil keeps the defaults.
func WithConfig(cfg *config.Config) Option {
	return func(c *Client) {
		if cfg != nil {
			c.cfg = cfg
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithHTTPClient sets the HTTP client for control-plane requests and
// callback channel upgrades.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithRegistry shares a callback registry.
func WithRegistry(r *callback.Registry) Option {
	return func(c *Client) {
		if r != nil {
			c.registry = r
		}
	}
}

// WithBus shares a lifecycle bus.
func WithBus(b *lifecycle.Bus) Option {
	return func(c *Client) {
		if b != nil {
			c.bus = b
		}
	}
}

// New creates a client for the server at host:port.
func New(host string, port int, opts ...Option) *Client {
	c := &Client{
		host:       host,
		port:       port,
		cfg:        config.DefaultConfig(),
		log:        logging.Nop(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		registry:   callback.NewRegistry(),
		bus:        lifecycle.NewBus(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.Component(c.log, "client")
	c.auth = auth.New(c.cfg.ControlPlaneJWTSecret)
	c.pool = callback.NewPool(c.cfg.CallbackWorkerCount)
	return c
}

// RemoteAddress returns the server's host:port.
func (c *Client) RemoteAddress() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// ContextPath returns the normalized context path.
func (c *Client) ContextPath() string {
	return c.contextPath
}

// IsSecure reports whether the client uses TLS.
func (c *Client) IsSecure() bool {
	return c.secure
}

// Registry returns the client's callback registry.
func (c *Client) Registry() *callback.Registry {
	return c.registry
}

// Bus returns the client's lifecycle bus.
func (c *Client) Bus() *lifecycle.Bus {
	return c.bus
}

func (c *Client) baseURL() string {
	scheme := "http"
	if c.secure {
		scheme = "https"
	}
	return scheme + "://" + c.RemoteAddress() + c.contextPath
}

// ExpectationOption adjusts an expectation created by When.
type ExpectationOption func(*expectation.Expectation)

// Times limits how often the expectation matches.
func Times(t *expectation.Times) ExpectationOption {
	return func(e *expectation.Expectation) { e.WithTimes(t) }
}

// Priority sets the expectation priority.
func Priority(p int) ExpectationOption {
	return func(e *expectation.Expectation) { e.WithPriority(p) }
}

// TimeToLive limits how long the server keeps the expectation active.
func TimeToLive(ttl *expectation.TimeToLive) ExpectationOption {
	return func(e *expectation.Expectation) { e.WithTimeToLive(ttl) }
}

// When starts an expectation for req. Nothing is sent until an action is
// set on the returned chain.
func (c *Client) When(req *expectation.HTTPRequest, opts ...ExpectationOption) *ForwardChain {
	exp := expectation.New(req)
	for _, opt := range opts {
		opt(exp)
	}
	return &ForwardChain{client: c, exp: exp}
}

// Upsert creates or replaces expectations on the server and returns them as
// the server stored them.
func (c *Client) Upsert(ctx context.Context, exps ...*expectation.Expectation) ([]*expectation.Expectation, error) {
	for _, e := range exps {
		if err := e.Validate(); err != nil {
			return nil, err
		}
	}

	resp, err := c.put(ctx, PathExpectation, exps)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert expectations: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upsert response: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return exps, nil
	}
	stored, err := expectation.ParseJSON(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode upsert response: %w", err)
	}
	return stored, nil
}

// Retrieve returns the active expectations matching req, or all of them
// when req is nil.
func (c *Client) Retrieve(ctx context.Context, req *expectation.HTTPRequest) ([]*expectation.Expectation, error) {
	path := PathRetrieve + "?" + url.Values{"type": {"active_expectations"}}.Encode()
	var body any
	if req != nil {
		body = req
	}
	resp, err := c.do(ctx, http.MethodPut, path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve expectations: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read retrieve response: %w", err)
	}
	return expectation.ParseJSON(data)
}

// Reset clears the server and tears down every callback channel of this
// client. Local channels are torn down even when the server call fails.
func (c *Client) Reset(ctx context.Context) error {
	defer c.bus.Publish(lifecycle.EventReset)

	resp, err := c.put(ctx, PathReset, nil)
	if err != nil {
		return fmt.Errorf("failed to reset: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}
	return nil
}

// Stop tears down every callback channel and the worker pool. The client
// can still send control-plane requests afterwards but can no longer
// register callbacks.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		c.bus.Publish(lifecycle.EventStop)
		if err := c.pool.Stop(poolStopTimeout); err != nil {
			c.log.Warn("callback workers still running after stop", "error", err)
		}
	})
}

func (c *Client) put(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPut, path, body)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
		r = &buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL()+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.auth.SetBearer(req, "client"); err != nil {
		return nil, err
	}
	return c.httpClient.Do(req)
}

// errorResponse is the server's error body.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var errResp errorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
		return fmt.Errorf("%s: %s", errResp.Error, errResp.Message)
	}
	if msg := bytes.TrimSpace(body); len(msg) > 0 {
		return fmt.Errorf("request failed: status %d: %s", resp.StatusCode, msg)
	}
	return fmt.Errorf("request failed: status %d", resp.StatusCode)
}
