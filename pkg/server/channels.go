package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/getmockd/mockserver-go/internal/id"
	"github.com/getmockd/mockserver-go/pkg/callback"
	"github.com/getmockd/mockserver-go/pkg/expectation"
	"github.com/getmockd/mockserver-go/pkg/logging"
	"github.com/getmockd/mockserver-go/pkg/metrics"
)

const writeTimeout = 10 * time.Second

var (
	// ErrNoChannel is returned when no callback channel is registered for a
	// client id.
	ErrNoChannel = errors.New("no callback channel registered for client id")
	// ErrDuplicateChannel is returned when a client id is already registered.
	ErrDuplicateChannel = errors.New("client id already registered")
	// ErrChannelClosed is returned for invocations interrupted by the
	// channel closing.
	ErrChannelClosed = errors.New("callback channel closed")
	// ErrInvocationTimeout is returned when a callback did not reply in time.
	ErrInvocationTimeout = errors.New("callback invocation timed out")
)

// CallbackError is an error reported by the client-side callback.
type CallbackError struct {
	ClientID string
	Message  string
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("callback %s failed: %s", e.ClientID, e.Message)
}

// clientChannel is the server end of one callback channel.
type clientChannel struct {
	clientID         string
	responseCallback bool
	conn             *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan *callback.Message

	closed    chan struct{}
	closeOnce sync.Once
}

func newClientChannel(clientID string, responseCallback bool, conn *websocket.Conn) *clientChannel {
	return &clientChannel{
		clientID:         clientID,
		responseCallback: responseCallback,
		conn:             conn,
		pending:          make(map[string]chan *callback.Message),
		closed:           make(chan struct{}),
	}
}

func (c *clientChannel) send(msg *callback.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(msg)
}

// invoke sends msg under a fresh invocation id and waits for the reply.
func (c *clientChannel) invoke(ctx context.Context, msg *callback.Message) (*callback.Message, error) {
	msg.ID = id.Invocation()
	msg.ClientID = c.clientID

	reply := make(chan *callback.Message, 1)
	c.mu.Lock()
	c.pending[msg.ID] = reply
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, msg.ID)
		c.mu.Unlock()
	}()

	if err := c.send(msg); err != nil {
		return nil, fmt.Errorf("failed to send invocation: %w", err)
	}

	select {
	case r := <-reply:
		if r.Type == callback.MessageTypeError {
			return nil, &CallbackError{ClientID: c.clientID, Message: r.Error}
		}
		return r, nil
	case <-c.closed:
		return nil, ErrChannelClosed
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrInvocationTimeout
		}
		return nil, ctx.Err()
	}
}

// readLoop delivers replies to waiting invocations until the connection
// fails.
func (c *clientChannel) readLoop(log *slog.Logger) {
	defer c.close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("callback channel read failed", "error", err)
			}
			return
		}
		msg, err := callback.DecodeMessage(data)
		if err != nil {
			log.Warn("invalid callback reply", "error", err)
			continue
		}
		c.mu.Lock()
		waiter, ok := c.pending[msg.ID]
		c.mu.Unlock()
		if !ok {
			log.Debug("reply for unknown invocation", "id", msg.ID)
			continue
		}
		select {
		case waiter <- msg:
		default:
		}
	}
}

func (c *clientChannel) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
}

// Channels tracks the open callback channels by client id and invokes
// them.
type Channels struct {
	mu      sync.RWMutex
	byID    map[string]*clientChannel
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewChannels creates an empty channel set.
func NewChannels(log *slog.Logger, m *metrics.Metrics) *Channels {
	if log == nil {
		log = logging.Nop()
	}
	return &Channels{byID: make(map[string]*clientChannel), log: log, metrics: m}
}

func (cs *Channels) add(ch *clientChannel) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if _, exists := cs.byID[ch.clientID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateChannel, ch.clientID)
	}
	cs.byID[ch.clientID] = ch
	cs.metrics.ChannelOpened(metrics.SideServer)
	return nil
}

func (cs *Channels) remove(ch *clientChannel) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.byID[ch.clientID] == ch {
		delete(cs.byID, ch.clientID)
		cs.metrics.ChannelClosed(metrics.SideServer)
	}
}

func (cs *Channels) get(clientID string) (*clientChannel, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	ch, ok := cs.byID[clientID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoChannel, clientID)
	}
	return ch, nil
}

// Has reports whether clientID has an open channel.
func (cs *Channels) Has(clientID string) bool {
	_, err := cs.get(clientID)
	return err == nil
}

// Len returns the number of open channels.
func (cs *Channels) Len() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.byID)
}

// CloseAll closes every open channel.
func (cs *Channels) CloseAll() {
	cs.mu.RLock()
	all := make([]*clientChannel, 0, len(cs.byID))
	for _, ch := range cs.byID {
		all = append(all, ch)
	}
	cs.mu.RUnlock()

	for _, ch := range all {
		ch.close()
		cs.remove(ch)
	}
}

// InvokeResponse asks clientID's ResponseCallback for the response to req.
func (cs *Channels) InvokeResponse(ctx context.Context, clientID string, req *expectation.HTTPRequest) (*expectation.HTTPResponse, error) {
	reply, err := cs.invoke(ctx, clientID, callback.KindResponse, &callback.Message{
		Type:    callback.MessageTypeResponseRequest,
		Request: req,
	})
	if err != nil {
		return nil, err
	}
	return reply.Response, nil
}

// InvokeForward asks clientID's ForwardCallback for the request to forward.
func (cs *Channels) InvokeForward(ctx context.Context, clientID string, req *expectation.HTTPRequest) (*expectation.HTTPRequest, error) {
	reply, err := cs.invoke(ctx, clientID, callback.KindForward, &callback.Message{
		Type:    callback.MessageTypeForwardRequest,
		Request: req,
	})
	if err != nil {
		return nil, err
	}
	if reply.Request == nil {
		return nil, &CallbackError{ClientID: clientID, Message: "no request returned"}
	}
	return reply.Request, nil
}

// InvokeForwardResponse asks clientID's ForwardResponseCallback for the
// final response of a forward.
func (cs *Channels) InvokeForwardResponse(ctx context.Context, clientID string, req *expectation.HTTPRequest, resp *expectation.HTTPResponse) (*expectation.HTTPResponse, error) {
	reply, err := cs.invoke(ctx, clientID, callback.KindForwardResponse, &callback.Message{
		Type:     callback.MessageTypeForwardResponseRequest,
		Request:  req,
		Response: resp,
	})
	if err != nil {
		return nil, err
	}
	return reply.Response, nil
}

func (cs *Channels) invoke(ctx context.Context, clientID, kind string, msg *callback.Message) (*callback.Message, error) {
	ch, err := cs.get(clientID)
	if err != nil {
		return nil, err
	}
	reply, err := ch.invoke(ctx, msg)
	cs.metrics.ObserveInvocation(kind, err)
	if err != nil {
		cs.log.Warn("callback invocation failed", "clientId", clientID, "kind", kind, "error", err)
	}
	return reply, err
}
