package callback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/getmockd/mockserver-go/pkg/expectation"
	"github.com/getmockd/mockserver-go/pkg/logging"
	"github.com/getmockd/mockserver-go/pkg/metrics"
)

// Invocation kinds, as reported to metrics.
const (
	KindResponse        = "response"
	KindForward         = "forward"
	KindForwardResponse = "forward_response"
)

// DefaultReadLimit bounds a single message read from the server. Invocation
// messages carry whole requests and responses, bodies included.
const DefaultReadLimit = 64 << 20

// handshakeGrace keeps the handshake alive slightly past the registration
// timeout so the waiter on the future times out first.
const handshakeGrace = 250 * time.Millisecond

// Channel is the client end of one callback channel. One channel exists per
// correlation id and lives until Stop.
type Channel struct {
	clientID string
	registry *Registry
	pool     *Pool

	log               *slog.Logger
	metrics           *metrics.Metrics
	httpClient        *http.Client
	invocationTimeout time.Duration
	handshakeTimeout  time.Duration
	readLimit         int64

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	conn    *websocket.Conn
	future  *Future
	onStop  []func()
	stopped atomic.Bool

	connected atomic.Bool
	stopOnce  sync.Once
}

// ChannelOption configures a Channel.
type ChannelOption func(*Channel)

// WithChannelLogger sets the logger.
func WithChannelLogger(log *slog.Logger) ChannelOption {
	return func(c *Channel) {
		if log != nil {
			c.log = log
		}
	}
}

// WithChannelMetrics sets the metrics sink.
func WithChannelMetrics(m *metrics.Metrics) ChannelOption {
	return func(c *Channel) { c.metrics = m }
}

// WithChannelHTTPClient sets the client used for the upgrade request.
func WithChannelHTTPClient(hc *http.Client) ChannelOption {
	return func(c *Channel) { c.httpClient = hc }
}

// WithInvocationTimeout bounds each callback invocation.
func WithInvocationTimeout(d time.Duration) ChannelOption {
	return func(c *Channel) { c.invocationTimeout = d }
}

// WithHandshakeTimeout bounds the registration handshake, including the wait
// for a free worker. Zero leaves it bounded only by Stop.
func WithHandshakeTimeout(d time.Duration) ChannelOption {
	return func(c *Channel) { c.handshakeTimeout = d }
}

// WithReadLimit sets the largest message accepted from the server.
func WithReadLimit(n int64) ChannelOption {
	return func(c *Channel) {
		if n > 0 {
			c.readLimit = n
		}
	}
}

// NewChannel creates an unconnected channel for clientID. Work is scheduled
// on pool; invocations resolve their handlers through registry.
func NewChannel(clientID string, registry *Registry, pool *Pool, opts ...ChannelOption) *Channel {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Channel{
		clientID: clientID,
		registry: registry,
		pool:     pool,
		log:       logging.Nop(),
		readLimit: DefaultReadLimit,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("clientId", clientID)
	return c
}

// ClientID returns the correlation id the channel registers under.
func (c *Channel) ClientID() string {
	return c.clientID
}

// IsConnected reports whether the handshake completed and the connection is
// still open.
func (c *Channel) IsConnected() bool {
	return c.connected.Load()
}

// Stopped reports whether Stop has been called.
func (c *Channel) Stopped() bool {
	return c.stopped.Load()
}

// OnStop adds a hook run once by Stop. On an already stopped channel the
// hook runs immediately.
func (c *Channel) OnStop(fn func()) {
	c.mu.Lock()
	if !c.stopped.Load() {
		c.onStop = append(c.onStop, fn)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	fn()
}

// RegisterExpectationCallback starts the registration handshake for the
// channel's client id and returns its pending outcome. The primary handler
// must already be in the registry; secondary only decides whether the
// server is told to expect an after-forward step. The handshake runs in the
// background; cancelling ctx abandons it.
func (c *Channel) RegisterExpectationCallback(ctx context.Context, primary any, secondary ForwardResponseCallback, target Target) *Future {
	f := newFuture()
	if primary == nil {
		f.fail(ErrNoCallback)
		return f
	}

	c.mu.Lock()
	if c.stopped.Load() {
		c.mu.Unlock()
		f.fail(ErrChannelStopped)
		return f
	}
	c.future = f
	c.mu.Unlock()

	hctx, cancel := c.handshakeContext(ctx)
	go func() {
		err := c.pool.Go(hctx, func(ctx context.Context) {
			defer cancel()
			c.handshake(ctx, f, secondary != nil, target)
		})
		if err != nil {
			cancel()
			f.fail(c.failure(hctx, "schedule", err))
		}
	}()
	return f
}

// handshakeContext derives the context one handshake runs under: cancelled
// by Stop, by the caller's ctx and by the handshake timeout.
func (c *Channel) handshakeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	var (
		hctx   context.Context
		cancel context.CancelFunc
	)
	if c.handshakeTimeout > 0 {
		hctx, cancel = context.WithTimeout(c.ctx, c.handshakeTimeout+handshakeGrace)
	} else {
		hctx, cancel = context.WithCancel(c.ctx)
	}
	if ctx == nil {
		return hctx, cancel
	}
	stop := context.AfterFunc(ctx, cancel)
	return hctx, func() {
		stop()
		cancel()
	}
}

func (c *Channel) handshake(ctx context.Context, f *Future, responseCallback bool, target Target) {
	headers := http.Header{}
	headers.Set(HeaderClientRegistrationID, c.clientID)
	if target.Token != "" {
		headers.Set("Authorization", "Bearer "+target.Token)
	}

	// The upgrade request outlives the handshake, so it gets its own context
	// that follows ctx only until registration completes.
	dialCtx, dialCancel := context.WithCancel(c.ctx)
	release := context.AfterFunc(ctx, dialCancel)
	registered := false
	defer func() {
		if !registered {
			dialCancel()
		}
	}()

	conn, resp, err := websocket.Dial(dialCtx, target.URL(), &websocket.DialOptions{
		HTTPClient: c.httpClient,
		HTTPHeader: headers,
	})
	if err != nil {
		f.fail(c.dialError(ctx, resp, err))
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return
	}

	c.mu.Lock()
	if c.stopped.Load() {
		c.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "client stopped")
		f.fail(ErrChannelStopped)
		return
	}
	c.conn = conn
	c.mu.Unlock()
	conn.SetReadLimit(c.readLimit)
	c.metrics.ChannelOpened(metrics.SideClient)

	if err := c.send(ctx, NewRegistrationMessage(c.clientID, responseCallback, target)); err != nil {
		f.fail(c.failure(ctx, "send registration", err))
		c.closeConn(websocket.StatusInternalError, "registration failed")
		return
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		f.fail(c.failure(ctx, "read registration reply", err))
		c.closeConn(websocket.StatusInternalError, "registration failed")
		return
	}

	reply, err := DecodeMessage(data)
	if err != nil {
		f.fail(&TransportError{Op: "decode registration reply", Err: err})
		c.closeConn(websocket.StatusUnsupportedData, "invalid registration reply")
		return
	}

	switch reply.Type {
	case MessageTypeRegistrationAck:
		if reply.ClientID != c.clientID {
			f.fail(&TransportError{
				Op:  "registration",
				Err: fmt.Errorf("acknowledged client id %q, expected %q", reply.ClientID, c.clientID),
			})
			c.closeConn(websocket.StatusPolicyViolation, "client id mismatch")
			return
		}
		if !release() {
			f.fail(c.failure(ctx, "registration", ctx.Err()))
			c.closeConn(websocket.StatusNormalClosure, "registration abandoned")
			return
		}
		registered = true
		c.connected.Store(true)
		if !f.succeed(c.clientID) {
			// Stop won the race.
			c.closeConn(websocket.StatusNormalClosure, "client stopped")
			return
		}
		c.log.Debug("callback channel registered", "address", target.Address)
		go c.readPump(conn)
	case MessageTypeError:
		f.fail(&RejectionError{Message: reply.Error})
		c.closeConn(websocket.StatusNormalClosure, "registration rejected")
	default:
		f.fail(&TransportError{Op: "registration", Err: fmt.Errorf("unexpected reply type %q", reply.Type)})
		c.closeConn(websocket.StatusUnsupportedData, "unexpected registration reply")
	}
}

// dialError classifies a failed upgrade. A 4xx refusal is the server
// rejecting the registration; its body, or failing that its status, is the
// rejection message.
func (c *Channel) dialError(ctx context.Context, resp *http.Response, err error) error {
	if cause := c.abandoned(ctx); cause != nil {
		return cause
	}
	if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
		msg := ""
		if resp.Body != nil {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			msg = strings.TrimSpace(string(body))
		}
		if msg == "" {
			msg = "callback registration refused: " + resp.Status
		}
		return &RejectionError{Message: msg, StatusCode: resp.StatusCode}
	}
	return &TransportError{Op: "dial", Err: err}
}

func (c *Channel) failure(ctx context.Context, op string, err error) error {
	if cause := c.abandoned(ctx); cause != nil {
		return cause
	}
	return &TransportError{Op: op, Err: err}
}

// abandoned reports why a handshake was given up on, or nil when it failed
// on its own.
func (c *Channel) abandoned(ctx context.Context) error {
	switch {
	case c.stopped.Load():
		return ErrChannelStopped
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ErrRegistrationTimeout
	}
	return nil
}

// readPump serves invocations until the connection closes.
func (c *Channel) readPump(conn *websocket.Conn) {
	defer func() {
		c.connected.Store(false)
		c.closeConn(websocket.StatusNormalClosure, "")
	}()

	for {
		_, data, err := conn.Read(c.ctx)
		if err != nil {
			if !c.stopped.Load() && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				c.log.Warn("callback channel closed", "error", err)
			}
			return
		}

		msg, err := DecodeMessage(data)
		if err != nil {
			c.log.Warn("invalid callback message", "error", err)
			continue
		}

		err = c.pool.Go(c.ctx, func(ctx context.Context) {
			c.handleInvocation(ctx, msg)
		})
		if err != nil {
			return
		}
	}
}

func (c *Channel) handleInvocation(ctx context.Context, msg *Message) {
	if c.invocationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.invocationTimeout)
		defer cancel()
	}

	var (
		kind  string
		reply *Message
		err   error
	)
	switch msg.Type {
	case MessageTypeResponseRequest:
		kind = KindResponse
		reply, err = c.invokeResponse(ctx, msg)
	case MessageTypeForwardRequest:
		kind = KindForward
		reply, err = c.invokeForward(ctx, msg)
	case MessageTypeForwardResponseRequest:
		kind = KindForwardResponse
		reply, err = c.invokeForwardResponse(ctx, msg)
	default:
		c.log.Debug("ignoring callback message", "type", msg.Type)
		return
	}
	c.metrics.ObserveInvocation(kind, err)

	if err != nil {
		c.log.Warn("callback invocation failed", "kind", kind, "error", err)
		reply = NewErrorMessage(msg.ID, err.Error())
	}
	reply.ID = msg.ID
	reply.ClientID = c.clientID
	if err := c.send(ctx, reply); err != nil && !c.stopped.Load() {
		c.log.Error("failed to send callback reply", "kind", kind, "error", err)
	}
}

func (c *Channel) entry() (Entry, error) {
	e, ok := c.registry.Resolve(c.clientID)
	if !ok {
		return Entry{}, ErrUnknownClient
	}
	return e, nil
}

func (c *Channel) invokeResponse(ctx context.Context, msg *Message) (reply *Message, err error) {
	e, err := c.entry()
	if err != nil {
		return nil, err
	}
	cb, ok := e.Primary.(ResponseCallback)
	if !ok {
		return nil, ErrUnsupportedCallback
	}
	defer recoverInto(&err)
	resp, err := cb.Respond(ctx, requestOrEmpty(msg.Request))
	if err != nil {
		return nil, err
	}
	return &Message{Type: MessageTypeResponse, Response: resp}, nil
}

func (c *Channel) invokeForward(ctx context.Context, msg *Message) (reply *Message, err error) {
	e, err := c.entry()
	if err != nil {
		return nil, err
	}
	cb, ok := e.Primary.(ForwardCallback)
	if !ok {
		return nil, ErrUnsupportedCallback
	}
	defer recoverInto(&err)
	req, err := cb.Forward(ctx, requestOrEmpty(msg.Request))
	if err != nil {
		return nil, err
	}
	return &Message{Type: MessageTypeRequest, Request: req}, nil
}

func (c *Channel) invokeForwardResponse(ctx context.Context, msg *Message) (reply *Message, err error) {
	e, err := c.entry()
	if err != nil {
		return nil, err
	}
	if e.Secondary == nil {
		return nil, ErrNoResponseCallback
	}
	defer recoverInto(&err)
	resp, err := e.Secondary.AfterForward(ctx, requestOrEmpty(msg.Request), msg.Response)
	if err != nil {
		return nil, err
	}
	return &Message{Type: MessageTypeResponse, Response: resp}, nil
}

func requestOrEmpty(req *expectation.HTTPRequest) *expectation.HTTPRequest {
	if req == nil {
		return expectation.Request()
	}
	return req
}

func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("callback panicked: %v", r)
	}
}

// send writes a message on the current connection.
func (c *Channel) send(ctx context.Context, msg *Message) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return errors.New("not connected")
	}

	data, err := msg.Encode()
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// closeConn closes and forgets the current connection, if any.
func (c *Channel) closeConn(code websocket.StatusCode, reason string) {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return
	}
	_ = conn.Close(code, reason)
	c.metrics.ChannelClosed(metrics.SideClient)
}

// Stop tears the channel down: the in-flight handshake fails with
// ErrChannelStopped, the connection closes, the registry entry is removed
// and the on-stop hooks run. Stop is idempotent and safe to call
// concurrently.
func (c *Channel) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped.Store(true)
		f := c.future
		hooks := c.onStop
		c.onStop = nil
		c.mu.Unlock()

		c.cancel()
		c.connected.Store(false)
		c.closeConn(websocket.StatusNormalClosure, "client stopped")
		if f != nil {
			f.fail(ErrChannelStopped)
		}
		c.registry.Unregister(c.clientID)

		for _, hook := range hooks {
			hook()
		}
		c.log.Debug("callback channel stopped")
	})
}
