package callback

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/mockserver-go/pkg/expectation"
	"github.com/getmockd/mockserver-go/pkg/negatable"
)

// testServer is a minimal callback endpoint whose reply to the handshake is
// decided per test.
type testServer struct {
	*httptest.Server
	headers       chan string
	registrations chan *Message
	conns         chan *websocket.Conn
	release       chan struct{}
}

func newTestServer(t *testing.T, reply func(reg *Message) *Message) *testServer {
	t.Helper()
	ts := &testServer{
		headers:       make(chan string, 8),
		registrations: make(chan *Message, 8),
		conns:         make(chan *websocket.Conn, 8),
		release:       make(chan struct{}),
	}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, WebSocketPath) {
			http.NotFound(w, r)
			return
		}
		ts.headers <- r.Header.Get(HeaderClientRegistrationID)

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.CloseNow() }()

		ctx := context.Background()
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		reg, err := DecodeMessage(data)
		if err != nil {
			return
		}
		ts.registrations <- reg

		if msg := reply(reg); msg != nil {
			if err := writeMessage(ctx, conn, msg); err != nil {
				return
			}
			if msg.Type == MessageTypeRegistrationAck {
				ts.conns <- conn
				<-ts.release
				return
			}
		}
		// Keep reading so close frames are answered.
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}))
	t.Cleanup(ts.Close)
	t.Cleanup(func() { close(ts.release) })
	return ts
}

func (ts *testServer) target() Target {
	return Target{Address: strings.TrimPrefix(ts.URL, "http://")}
}

func writeMessage(ctx context.Context, conn *websocket.Conn, msg *Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func readMessage(ctx context.Context, conn *websocket.Conn) (*Message, error) {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	return DecodeMessage(data)
}

func ack(reg *Message) *Message { return NewAckMessage(reg.ClientID) }

func newTestChannel(t *testing.T, clientID string) (*Channel, *Registry) {
	t.Helper()
	registry := NewRegistry()
	pool := NewPool(4)
	ch := NewChannel(clientID, registry, pool, WithInvocationTimeout(time.Second))
	t.Cleanup(func() {
		ch.Stop()
		_ = pool.Stop(time.Second)
	})
	return ch, registry
}

var echo = ResponseFunc(func(_ context.Context, req *expectation.HTTPRequest) (*expectation.HTTPResponse, error) {
	return expectation.Response(201).WithBody("echo " + req.PathValue()), nil
})

func TestChannel_HandshakeAck(t *testing.T) {
	ts := newTestServer(t, ack)
	ch, registry := newTestChannel(t, "c1")
	registry.Register("c1", echo, nil)

	target := ts.target()
	target.ContextPath = "/ctx"
	f := ch.RegisterExpectationCallback(context.Background(), echo, nil, target)

	id, err := f.Wait(context.Background(), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "c1", id)
	assert.True(t, ch.IsConnected())

	assert.Equal(t, "c1", <-ts.headers)
	reg := <-ts.registrations
	assert.Equal(t, MessageTypeRegistration, reg.Type)
	assert.Equal(t, "c1", reg.ClientID)
	assert.False(t, reg.ResponseCallback)
	assert.Equal(t, target.Address, reg.RemoteAddress)
	assert.Equal(t, "/ctx", reg.ContextPath)
}

func TestChannel_RejectionMessageIsVerbatim(t *testing.T) {
	ts := newTestServer(t, func(*Message) *Message {
		return NewErrorMessage("", "Client registration for c1 rejected: quota exceeded")
	})
	ch, registry := newTestChannel(t, "c1")
	registry.Register("c1", echo, nil)

	_, err := ch.RegisterExpectationCallback(context.Background(), echo, nil, ts.target()).
		Wait(context.Background(), 5*time.Second)

	var re *RejectionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "Client registration for c1 rejected: quota exceeded", re.Message)
	assert.False(t, ch.IsConnected())
}

func TestChannel_UpgradeRefusedIsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid control plane token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	ch, registry := newTestChannel(t, "c1")
	registry.Register("c1", echo, nil)

	_, err := ch.RegisterExpectationCallback(context.Background(), echo, nil,
		Target{Address: strings.TrimPrefix(srv.URL, "http://")}).
		Wait(context.Background(), 5*time.Second)

	var re *RejectionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "invalid control plane token", re.Message)
	assert.Equal(t, http.StatusUnauthorized, re.StatusCode)
}

func TestChannel_ConnectionRefusedIsTransport(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ch, registry := newTestChannel(t, "c1")
	registry.Register("c1", echo, nil)

	_, err = ch.RegisterExpectationCallback(context.Background(), echo, nil, Target{Address: addr}).
		Wait(context.Background(), 5*time.Second)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "dial", te.Op)
	assert.NotErrorIs(t, err, ErrRegistrationTimeout)
}

func TestChannel_MismatchedAckIsTransport(t *testing.T) {
	ts := newTestServer(t, func(*Message) *Message { return NewAckMessage("someone-else") })
	ch, registry := newTestChannel(t, "c1")
	registry.Register("c1", echo, nil)

	_, err := ch.RegisterExpectationCallback(context.Background(), echo, nil, ts.target()).
		Wait(context.Background(), 5*time.Second)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.False(t, ch.IsConnected())
}

func TestChannel_SilentServerTimesOutThenStops(t *testing.T) {
	ts := newTestServer(t, func(*Message) *Message { return nil })
	ch, registry := newTestChannel(t, "c1")
	registry.Register("c1", echo, nil)

	var hooks sync.WaitGroup
	hooks.Add(1)
	ch.OnStop(hooks.Done)

	f := ch.RegisterExpectationCallback(context.Background(), echo, nil, ts.target())
	timeout := 100 * time.Millisecond
	start := time.Now()
	_, err := f.Wait(context.Background(), timeout)
	require.ErrorIs(t, err, ErrRegistrationTimeout)
	assert.GreaterOrEqual(t, time.Since(start), timeout)

	ch.Stop()
	hooks.Wait()

	select {
	case <-f.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("handshake future not failed by Stop")
	}
	_, err = f.Result()
	assert.ErrorIs(t, err, ErrChannelStopped)

	_, ok := registry.Resolve("c1")
	assert.False(t, ok, "registry entry should be removed")
	assert.NotPanics(t, ch.Stop)
}

func TestChannel_HandshakeTimeoutFreesWorker(t *testing.T) {
	silent := newTestServer(t, func(*Message) *Message { return nil })
	acking := newTestServer(t, ack)

	registry := NewRegistry()
	pool := NewPool(1)
	t.Cleanup(func() { _ = pool.Stop(time.Second) })

	stuck := NewChannel("c1", registry, pool, WithHandshakeTimeout(100*time.Millisecond))
	t.Cleanup(stuck.Stop)
	queued := NewChannel("c2", registry, pool, WithHandshakeTimeout(5*time.Second))
	t.Cleanup(queued.Stop)
	registry.Register("c1", echo, nil)
	registry.Register("c2", echo, nil)

	first := stuck.RegisterExpectationCallback(context.Background(), echo, nil, silent.target())
	<-silent.registrations
	second := queued.RegisterExpectationCallback(context.Background(), echo, nil, acking.target())

	select {
	case <-first.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("handshake against a silent server never gave up")
	}
	_, err := first.Result()
	assert.ErrorIs(t, err, ErrRegistrationTimeout)

	id, err := second.Wait(context.Background(), 5*time.Second)
	require.NoError(t, err, "queued handshake should get the freed worker")
	assert.Equal(t, "c2", id)
}

func TestChannel_StopConcurrent(t *testing.T) {
	ts := newTestServer(t, ack)
	ch, registry := newTestChannel(t, "c1")
	registry.Register("c1", echo, nil)

	var calls sync.WaitGroup
	calls.Add(1)
	ran := 0
	ch.OnStop(func() {
		ran++
		calls.Done()
	})

	_, err := ch.RegisterExpectationCallback(context.Background(), echo, nil, ts.target()).
		Wait(context.Background(), 5*time.Second)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch.Stop()
		}()
	}
	wg.Wait()
	calls.Wait()

	assert.Equal(t, 1, ran)
	assert.True(t, ch.Stopped())
	assert.False(t, ch.IsConnected())
}

func TestChannel_RegisterAfterStop(t *testing.T) {
	ch, _ := newTestChannel(t, "c1")
	ch.Stop()

	_, err := ch.RegisterExpectationCallback(context.Background(), echo, nil, Target{Address: "localhost:1"}).
		Wait(context.Background(), time.Second)
	assert.ErrorIs(t, err, ErrChannelStopped)

	hookRan := false
	ch.OnStop(func() { hookRan = true })
	assert.True(t, hookRan, "hook on stopped channel runs immediately")
}

func TestChannel_RegisterWithoutCallback(t *testing.T) {
	ch, _ := newTestChannel(t, "c1")
	_, err := ch.RegisterExpectationCallback(context.Background(), nil, nil, Target{}).
		Wait(context.Background(), time.Second)
	assert.ErrorIs(t, err, ErrNoCallback)
}

// connect registers primary and secondary for c1 and returns the server
// side of the acknowledged channel.
func connect(t *testing.T, primary any, secondary ForwardResponseCallback) *websocket.Conn {
	t.Helper()
	ts := newTestServer(t, ack)
	ch, registry := newTestChannel(t, "c1")
	registry.Register("c1", primary, secondary)

	_, err := ch.RegisterExpectationCallback(context.Background(), primary, secondary, ts.target()).
		Wait(context.Background(), 5*time.Second)
	require.NoError(t, err)

	reg := <-ts.registrations
	assert.Equal(t, secondary != nil, reg.ResponseCallback)

	select {
	case conn := <-ts.conns:
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("server never saw the channel")
		return nil
	}
}

func invoke(t *testing.T, conn *websocket.Conn, msg *Message) *Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, writeMessage(ctx, conn, msg))
	reply, err := readMessage(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, reply.ID)
	return reply
}

func TestChannel_InvokeResponse(t *testing.T) {
	conn := connect(t, echo, nil)

	reply := invoke(t, conn, &Message{
		Type:    MessageTypeResponseRequest,
		ID:      "inv-1",
		Request: expectation.Request().WithPath(negatable.New("/some/path")),
	})

	assert.Equal(t, MessageTypeResponse, reply.Type)
	require.NotNil(t, reply.Response)
	assert.Equal(t, 201, reply.Response.StatusCode)
	assert.Equal(t, "echo /some/path", reply.Response.Body)
}

func TestChannel_InvokeWithLargeBody(t *testing.T) {
	size := ResponseFunc(func(_ context.Context, req *expectation.HTTPRequest) (*expectation.HTTPResponse, error) {
		return expectation.Response(200).WithBody(strconv.Itoa(len(req.Body))), nil
	})
	conn := connect(t, size, nil)

	body := strings.Repeat("x", 256<<10)
	reply := invoke(t, conn, &Message{
		Type:    MessageTypeResponseRequest,
		ID:      "inv-big",
		Request: expectation.Request().WithPath(negatable.New("/upload")).WithBody(body),
	})
	require.NotNil(t, reply.Response)
	assert.Equal(t, strconv.Itoa(len(body)), reply.Response.Body)

	reply = invoke(t, conn, &Message{
		Type:    MessageTypeResponseRequest,
		ID:      "inv-after",
		Request: expectation.Request().WithBody("small"),
	})
	require.NotNil(t, reply.Response)
	assert.Equal(t, "5", reply.Response.Body)
}

func TestChannel_InvokeForwardAndAfterForward(t *testing.T) {
	forward := ForwardFunc(func(_ context.Context, req *expectation.HTTPRequest) (*expectation.HTTPRequest, error) {
		return req.WithHeader(negatable.New("x-forwarded-by"), negatable.New("callback")), nil
	})
	after := ForwardResponseFunc(func(_ context.Context, _ *expectation.HTTPRequest, resp *expectation.HTTPResponse) (*expectation.HTTPResponse, error) {
		return resp.WithHeader("x-after", "yes"), nil
	})
	conn := connect(t, forward, after)

	reply := invoke(t, conn, &Message{
		Type:    MessageTypeForwardRequest,
		ID:      "inv-1",
		Request: expectation.Request().WithPath(negatable.New("/p")),
	})
	assert.Equal(t, MessageTypeRequest, reply.Type)
	require.NotNil(t, reply.Request)
	assert.Equal(t, "callback", reply.Request.Headers.First("X-Forwarded-By"))

	reply = invoke(t, conn, &Message{
		Type:     MessageTypeForwardResponseRequest,
		ID:       "inv-2",
		Request:  reply.Request,
		Response: expectation.Response(200),
	})
	assert.Equal(t, MessageTypeResponse, reply.Type)
	require.NotNil(t, reply.Response)
	assert.Equal(t, "yes", reply.Response.Headers.First("x-after"))
}

func TestChannel_AfterForwardWithoutSecondaryIsError(t *testing.T) {
	forward := ForwardFunc(func(_ context.Context, req *expectation.HTTPRequest) (*expectation.HTTPRequest, error) {
		return req, nil
	})
	conn := connect(t, forward, nil)

	reply := invoke(t, conn, &Message{
		Type:     MessageTypeForwardResponseRequest,
		ID:       "inv-1",
		Response: expectation.Response(200),
	})
	assert.Equal(t, MessageTypeError, reply.Type)
	assert.Equal(t, ErrNoResponseCallback.Error(), reply.Error)
}

func TestChannel_InvocationFailures(t *testing.T) {
	boom := ResponseFunc(func(context.Context, *expectation.HTTPRequest) (*expectation.HTTPResponse, error) {
		return nil, errors.New("boom")
	})
	conn := connect(t, boom, nil)

	reply := invoke(t, conn, &Message{Type: MessageTypeResponseRequest, ID: "inv-1"})
	assert.Equal(t, MessageTypeError, reply.Type)
	assert.Equal(t, "boom", reply.Error)

	reply = invoke(t, conn, &Message{Type: MessageTypeForwardRequest, ID: "inv-2"})
	assert.Equal(t, MessageTypeError, reply.Type)
	assert.Equal(t, ErrUnsupportedCallback.Error(), reply.Error)
}

func TestChannel_PanickingCallback(t *testing.T) {
	panicky := ResponseFunc(func(context.Context, *expectation.HTTPRequest) (*expectation.HTTPResponse, error) {
		panic("kaboom")
	})
	conn := connect(t, panicky, nil)

	reply := invoke(t, conn, &Message{Type: MessageTypeResponseRequest, ID: "inv-1"})
	assert.Equal(t, MessageTypeError, reply.Type)
	assert.Contains(t, reply.Error, "kaboom")
}
