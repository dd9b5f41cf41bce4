package client

import "errors"

// ErrDelegation matches every *DelegationError with errors.Is.
var ErrDelegation = errors.New("callback delegation failed")

// MessageRegistrationFailed is the message of timeout and transport
// delegation failures.
const MessageRegistrationFailed = "Unable to retrieve client registration id"

// FailureKind classifies a delegation failure.
type FailureKind int

const (
	// FailureTimeout means no outcome arrived within MaxFutureTimeout.
	FailureTimeout FailureKind = iota + 1
	// FailureRejected means the server refused the registration.
	FailureRejected
	// FailureTransport covers every other channel failure.
	FailureTransport
)

func (k FailureKind) String() string {
	switch k {
	case FailureTimeout:
		return "timeout"
	case FailureRejected:
		return "rejected"
	case FailureTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// DelegationError is returned by the callback action setters when a
// callback could not be registered. Rejections carry the server's message
// verbatim; timeouts and transport failures carry
// MessageRegistrationFailed and keep the cause reachable through Unwrap.
type DelegationError struct {
	Kind     FailureKind
	ClientID string
	Message  string
	Err      error
}

func (e *DelegationError) Error() string {
	return e.Message
}

func (e *DelegationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrDelegation.
func (e *DelegationError) Is(target error) bool {
	return target == ErrDelegation
}
