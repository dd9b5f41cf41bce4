package callback

import (
	"context"

	"github.com/getmockd/mockserver-go/pkg/expectation"
)

// ResponseCallback computes the response for a matched request.
type ResponseCallback interface {
	Respond(ctx context.Context, req *expectation.HTTPRequest) (*expectation.HTTPResponse, error)
}

// ForwardCallback computes the request to forward for a matched request.
type ForwardCallback interface {
	Forward(ctx context.Context, req *expectation.HTTPRequest) (*expectation.HTTPRequest, error)
}

// ForwardResponseCallback computes the final response once the request
// returned by a ForwardCallback has been forwarded.
type ForwardResponseCallback interface {
	AfterForward(ctx context.Context, req *expectation.HTTPRequest, resp *expectation.HTTPResponse) (*expectation.HTTPResponse, error)
}

// ResponseFunc adapts a function to ResponseCallback.
type ResponseFunc func(ctx context.Context, req *expectation.HTTPRequest) (*expectation.HTTPResponse, error)

// Respond calls f.
func (f ResponseFunc) Respond(ctx context.Context, req *expectation.HTTPRequest) (*expectation.HTTPResponse, error) {
	return f(ctx, req)
}

// ForwardFunc adapts a function to ForwardCallback.
type ForwardFunc func(ctx context.Context, req *expectation.HTTPRequest) (*expectation.HTTPRequest, error)

// Forward calls f.
func (f ForwardFunc) Forward(ctx context.Context, req *expectation.HTTPRequest) (*expectation.HTTPRequest, error) {
	return f(ctx, req)
}

// ForwardResponseFunc adapts a function to ForwardResponseCallback.
type ForwardResponseFunc func(ctx context.Context, req *expectation.HTTPRequest, resp *expectation.HTTPResponse) (*expectation.HTTPResponse, error)

// AfterForward calls f.
func (f ForwardResponseFunc) AfterForward(ctx context.Context, req *expectation.HTTPRequest, resp *expectation.HTTPResponse) (*expectation.HTTPResponse, error) {
	return f(ctx, req, resp)
}
