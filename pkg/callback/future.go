package callback

import (
	"context"
	"sync"
	"time"
)

// Future is the pending outcome of a registration handshake. It resolves
// exactly once.
type Future struct {
	done     chan struct{}
	once     sync.Once
	clientID string
	err      error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(clientID string, err error) bool {
	resolved := false
	f.once.Do(func() {
		f.clientID = clientID
		f.err = err
		resolved = true
		close(f.done)
	})
	return resolved
}

func (f *Future) succeed(clientID string) bool { return f.resolve(clientID, nil) }

func (f *Future) fail(err error) bool { return f.resolve("", err) }

// Done is closed once the outcome is known.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result returns the outcome. It must only be called after Done is closed;
// before that it reports ErrRegistrationTimeout.
func (f *Future) Result() (string, error) {
	select {
	case <-f.done:
		return f.clientID, f.err
	default:
		return "", ErrRegistrationTimeout
	}
}

// Wait blocks until the outcome is known, timeout elapses or ctx ends. A
// timeout is reported as ErrRegistrationTimeout and never before timeout
// has elapsed. A non-positive timeout waits without limit.
func (f *Future) Wait(ctx context.Context, timeout time.Duration) (string, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case <-f.done:
		return f.clientID, f.err
	case <-expired:
		return "", ErrRegistrationTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
