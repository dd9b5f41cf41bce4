package callback

import (
	"errors"
	"fmt"
)

// Errors reported by channels, futures, pools and resolvers.
var (
	// ErrRegistrationTimeout is returned by Future.Wait when no outcome
	// arrived within the allowed wait.
	ErrRegistrationTimeout = errors.New("callback registration timed out")
	// ErrChannelStopped is reported for work the channel abandoned on Stop.
	ErrChannelStopped = errors.New("callback channel stopped")
	// ErrNoCallback is reported when a channel is asked to register nothing.
	ErrNoCallback = errors.New("no callback supplied")
	// ErrUnknownClient is reported when a correlation id has no registration.
	ErrUnknownClient = errors.New("no callback registered for client id")
	// ErrNoResponseCallback is reported for an after-forward invocation when
	// no ForwardResponseCallback was registered.
	ErrNoResponseCallback = errors.New("no response callback registered")
	// ErrUnsupportedCallback is reported when the registered handler cannot
	// serve the requested invocation kind.
	ErrUnsupportedCallback = errors.New("registered callback does not support this invocation")
	// ErrPoolClosed is returned by Pool.Go after Stop.
	ErrPoolClosed = errors.New("callback worker pool closed")
	// ErrStopTimeout is returned by Pool.Stop when workers outlive the timeout.
	ErrStopTimeout = errors.New("callback worker pool stop timed out")
	// ErrUnknownClass is returned by ClassResolver for unregistered names.
	ErrUnknownClass = errors.New("callback class not registered")
)

// RejectionError is the server explicitly refusing a registration. Message
// is the server's text, unmodified.
type RejectionError struct {
	Message    string
	StatusCode int
}

func (e *RejectionError) Error() string {
	return e.Message
}

// TransportError is any other channel failure: refused or reset
// connections, malformed replies, write failures.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("callback channel %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
