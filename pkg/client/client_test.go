package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/mockserver-go/pkg/auth"
	"github.com/getmockd/mockserver-go/pkg/callback"
	"github.com/getmockd/mockserver-go/pkg/config"
	"github.com/getmockd/mockserver-go/pkg/expectation"
	"github.com/getmockd/mockserver-go/pkg/lifecycle"
	"github.com/getmockd/mockserver-go/pkg/negatable"
)

// recorded is one control-plane request seen by a fakeControlPlane.
type recorded struct {
	Method string
	Path   string
	Query  url.Values
	Auth   string
	Body   []byte
}

type fakeControlPlane struct {
	*httptest.Server
	mu       sync.Mutex
	requests []recorded
}

// newFakeControlPlane answers every request with handler after recording it.
func newFakeControlPlane(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, body []byte)) *fakeControlPlane {
	t.Helper()
	f := &fakeControlPlane{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.requests = append(f.requests, recorded{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Auth:   r.Header.Get("Authorization"),
			Body:   body,
		})
		f.mu.Unlock()
		handler(w, r, body)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeControlPlane) seen() []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recorded(nil), f.requests...)
}

func clientFor(t *testing.T, serverURL string, opts ...Option) *Client {
	t.Helper()
	u, err := url.Parse(serverURL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	c := New(host, port, opts...)
	t.Cleanup(c.Stop)
	return c
}

func TestNewDefaults(t *testing.T) {
	c := New("localhost", 1080)
	defer c.Stop()

	assert.Equal(t, "localhost:1080", c.RemoteAddress())
	assert.Equal(t, "", c.ContextPath())
	assert.False(t, c.IsSecure())
	assert.NotNil(t, c.Registry())
	assert.NotNil(t, c.Bus())
	assert.Equal(t, "http://localhost:1080", c.baseURL())
}

func TestNewOptions(t *testing.T) {
	c := New("::1", 8443, WithContextPath("/mock/"), WithSecure(true))
	defer c.Stop()

	assert.Equal(t, "[::1]:8443", c.RemoteAddress())
	assert.Equal(t, "/mock", c.ContextPath())
	assert.True(t, c.IsSecure())
	assert.Equal(t, "https://[::1]:8443/mock", c.baseURL())
}

func TestUpsert(t *testing.T) {
	fake := newFakeControlPlane(t, func(w http.ResponseWriter, _ *http.Request, body []byte) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)
	})
	c := clientFor(t, fake.URL, WithContextPath("ctx"))

	exp := expectation.New(expectation.Request().WithPath(negatable.New("/a"))).
		ThenRespond(expectation.Response(200))
	stored, err := c.Upsert(context.Background(), exp)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, exp.ID, stored[0].ID)
	assert.Equal(t, expectation.ActionResponse, stored[0].ActionType())

	reqs := fake.seen()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPut, reqs[0].Method)
	assert.Equal(t, "/ctx"+PathExpectation, reqs[0].Path)
	assert.Empty(t, reqs[0].Auth)
}

func TestUpsertRejectsInvalidLocally(t *testing.T) {
	fake := newFakeControlPlane(t, func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		w.WriteHeader(http.StatusCreated)
	})
	c := clientFor(t, fake.URL)

	_, err := c.Upsert(context.Background(), expectation.New(expectation.Request()))
	require.ErrorIs(t, err, expectation.ErrNoAction)
	assert.Empty(t, fake.seen())
}

func TestUpsertServerError(t *testing.T) {
	fake := newFakeControlPlane(t, func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_expectation", "message": "bad path"})
	})
	c := clientFor(t, fake.URL)

	_, err := c.Upsert(context.Background(), expectation.New(expectation.Request()).
		ThenRespond(expectation.Response(200)))
	require.Error(t, err)
	assert.Equal(t, "invalid_expectation: bad path", err.Error())
}

func TestRetrieve(t *testing.T) {
	fake := newFakeControlPlane(t, func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		_, _ = io.WriteString(w, `[{"id":"e1","httpRequest":{"path":"/a"},"httpResponse":{"statusCode":200}}]`)
	})
	c := clientFor(t, fake.URL)

	exps, err := c.Retrieve(context.Background(), expectation.Request().WithPath(negatable.New("/a")))
	require.NoError(t, err)
	require.Len(t, exps, 1)
	assert.Equal(t, "e1", exps[0].ID)

	reqs := fake.seen()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPut, reqs[0].Method)
	assert.Equal(t, PathRetrieve, reqs[0].Path)
	assert.Equal(t, "active_expectations", reqs[0].Query.Get("type"))
	assert.JSONEq(t, `{"path":"/a"}`, string(reqs[0].Body))
}

func TestResetPublishesEvenOnFailure(t *testing.T) {
	fake := newFakeControlPlane(t, func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c := clientFor(t, fake.URL)

	var resets atomic.Int32
	c.Bus().Subscribe(func(lifecycle.EventType) { resets.Add(1) }, lifecycle.EventReset)

	err := c.Reset(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Equal(t, int32(1), resets.Load())
	assert.Equal(t, PathReset, fake.seen()[0].Path)
}

func TestStopPublishesOnce(t *testing.T) {
	c := New("localhost", 1080)
	var stops atomic.Int32
	c.Bus().Subscribe(func(lifecycle.EventType) { stops.Add(1) }, lifecycle.EventStop)

	c.Stop()
	c.Stop()
	assert.Equal(t, int32(1), stops.Load())
}

func TestControlPlaneBearerToken(t *testing.T) {
	fake := newFakeControlPlane(t, func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		w.WriteHeader(http.StatusOK)
	})
	cfg := config.DefaultConfig()
	cfg.ControlPlaneJWTSecret = "s3cret"
	c := clientFor(t, fake.URL, WithConfig(cfg))

	require.NoError(t, c.Reset(context.Background()))

	header := fake.seen()[0].Auth
	require.NotEmpty(t, header)
	subject, err := auth.New("s3cret").Verify(header[len("Bearer "):])
	require.NoError(t, err)
	assert.Equal(t, "client", subject)
}

func TestWhenOptions(t *testing.T) {
	c := New("localhost", 1080)
	defer c.Stop()

	chain := c.When(expectation.Request(), Times(expectation.Exactly(3)), Priority(7),
		TimeToLive(expectation.ExpiresIn(time.Minute)))
	exp := chain.Expectation()
	assert.Equal(t, 7, exp.Priority)
	assert.Equal(t, 3, exp.Times.RemainingTimes)
	assert.Equal(t, time.Minute, exp.TimeToLive.Duration())
	assert.Nil(t, exp.Action())
}

func TestDelegationErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		kind    FailureKind
		message string
	}{
		{"timeout", callback.ErrRegistrationTimeout, FailureTimeout, MessageRegistrationFailed},
		{"rejection", &callback.RejectionError{Message: "not today"}, FailureRejected, "not today"},
		{"transport", &callback.TransportError{Op: "dial", Err: errors.New("refused")}, FailureTransport, MessageRegistrationFailed},
		{"stopped", callback.ErrChannelStopped, FailureTransport, MessageRegistrationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			derr := classify("id-1", tt.err)
			assert.Equal(t, tt.kind, derr.Kind)
			assert.Equal(t, tt.message, derr.Error())
			assert.Equal(t, "id-1", derr.ClientID)
			assert.ErrorIs(t, derr, ErrDelegation)
			assert.ErrorIs(t, derr, tt.err)
		})
	}
}
