package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/getmockd/mockserver-go/internal/id"
	"github.com/getmockd/mockserver-go/internal/storage"
	"github.com/getmockd/mockserver-go/pkg/auth"
	"github.com/getmockd/mockserver-go/pkg/callback"
	"github.com/getmockd/mockserver-go/pkg/config"
	"github.com/getmockd/mockserver-go/pkg/expectation"
	"github.com/getmockd/mockserver-go/pkg/logging"
	"github.com/getmockd/mockserver-go/pkg/metrics"
	"github.com/getmockd/mockserver-go/pkg/template"
)

const (
	handshakeTimeout = 10 * time.Second
	shutdownTimeout  = 5 * time.Second
)

// TemplateEngine renders template actions. Servers use a MUSTACHE
// template.Engine unless configured otherwise; with a nil engine template
// actions answer 501.
type TemplateEngine interface {
	RenderResponse(ctx context.Context, tmpl *expectation.HTTPTemplate, req *expectation.HTTPRequest) (*expectation.HTTPResponse, error)
	RenderForward(ctx context.Context, tmpl *expectation.HTTPTemplate, req *expectation.HTTPRequest) (*expectation.HTTPRequest, error)
}

// Server serves the control plane, the callback endpoint and matched
// traffic.
type Server struct {
	cfg         *config.Config
	contextPath string
	log         *slog.Logger

	store      storage.ExpectationStore
	channels   *Channels
	resolver   *callback.ClassResolver
	templates  TemplateEngine
	auth       *auth.Authenticator
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
	httpClient *http.Client
	upgrader   websocket.Upgrader

	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithContextPath serves every route under path.
func WithContextPath(path string) Option {
	return func(s *Server) { s.contextPath = callback.NormalizeContextPath(path) }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithStore replaces the in-memory expectation store.
func WithStore(store storage.ExpectationStore) Option {
	return func(s *Server) {
		if store != nil {
			s.store = store
		}
	}
}

// WithClassResolver sets the resolver for class callback actions.
func WithClassResolver(r *callback.ClassResolver) Option {
	return func(s *Server) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithTemplateEngine sets the engine for template actions.
func WithTemplateEngine(t TemplateEngine) Option {
	return func(s *Server) { s.templates = t }
}

// WithMetrics records channel and invocation metrics in m and, when
// gatherer is non-nil, exposes it on GET /metrics.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// WithHTTPClient sets the client used to forward requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Server) {
		if hc != nil {
			s.httpClient = hc
		}
	}
}

// New creates a server. A nil cfg uses the defaults.
func New(cfg *config.Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Server{
		cfg:        cfg,
		log:        logging.Nop(),
		store:      storage.NewInMemoryExpectationStore(),
		resolver:   callback.NewClassResolver(),
		templates:  template.New(),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		upgrader: websocket.Upgrader{
			HandshakeTimeout: handshakeTimeout,
			// Callback clients are not browsers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.Component(s.log, "server")
	s.auth = auth.New(cfg.ControlPlaneJWTSecret)
	s.channels = NewChannels(s.log, s.metrics)
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	p := s.contextPath

	control := func(h http.HandlerFunc) http.Handler { return s.auth.Middleware(h) }
	mux.Handle("PUT "+p+"/mockserver/expectation", control(s.handleUpsert))
	mux.Handle("PUT "+p+"/mockserver/reset", control(s.handleReset))
	mux.Handle("PUT "+p+"/mockserver/retrieve", control(s.handleRetrieve))
	mux.Handle("GET "+p+"/mockserver/retrieve", control(s.handleRetrieve))
	mux.HandleFunc("GET "+p+callback.WebSocketPath, s.handleCallbackWebSocket)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc(p+"/", s.handleRequest)
	return mux
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Store returns the expectation store.
func (s *Server) Store() storage.ExpectationStore {
	return s.store
}

// Channels returns the open callback channels.
func (s *Server) Channels() *Channels {
	return s.channels
}

// ClassResolver returns the resolver for class callback actions.
func (s *Server) ClassResolver() *callback.ClassResolver {
	return s.resolver
}

// Upsert validates and stores expectations. Expectations without an id
// are given one; an existing id is replaced.
func (s *Server) Upsert(exps ...*expectation.Expectation) error {
	for _, e := range exps {
		if e == nil {
			return storage.ErrNilExpectation
		}
		if err := e.Validate(); err != nil {
			return err
		}
		if e.ID == "" {
			e.ID = id.Correlation()
		}
	}
	for _, e := range exps {
		if err := s.store.Upsert(e); err != nil {
			return err
		}
	}
	return nil
}

// Reset clears expectations, closes every callback channel and restarts
// template sequences.
func (s *Server) Reset() {
	s.store.Clear()
	s.channels.CloseAll()
	if r, ok := s.templates.(interface{ Reset() }); ok {
		r.Reset()
	}
}

// ListenAndServe listens on addr and serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx ends, then closes callback channels and
// shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("listening", "address", ln.Addr().String(), "contextPath", s.contextPath)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.channels.CloseAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
