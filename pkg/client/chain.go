package client

import (
	"context"

	"github.com/getmockd/mockserver-go/pkg/callback"
	"github.com/getmockd/mockserver-go/pkg/expectation"
)

// ForwardChain completes an expectation started by Client.When. Every
// setter replaces the expectation's action and then persists it; the last
// setter called wins.
type ForwardChain struct {
	client *Client
	exp    *expectation.Expectation
}

// Expectation returns the expectation being built.
func (f *ForwardChain) Expectation() *expectation.Expectation {
	return f.exp
}

func (f *ForwardChain) upsert(ctx context.Context) error {
	_, err := f.client.Upsert(ctx, f.exp)
	return err
}

// Respond returns a literal response.
func (f *ForwardChain) Respond(ctx context.Context, resp *expectation.HTTPResponse) error {
	f.exp.ThenRespond(resp)
	return f.upsert(ctx)
}

// RespondTemplate renders the response from a template.
func (f *ForwardChain) RespondTemplate(ctx context.Context, tmpl *expectation.HTTPTemplate) error {
	f.exp.ThenRespond(tmpl)
	return f.upsert(ctx)
}

// RespondClassCallback computes the response with a callback registered on
// the server under a class name.
func (f *ForwardChain) RespondClassCallback(ctx context.Context, cb *expectation.HTTPClassCallback) error {
	f.exp.ThenRespond(cb)
	return f.upsert(ctx)
}

// RespondCallback computes the response with cb, running in this process.
func (f *ForwardChain) RespondCallback(ctx context.Context, cb callback.ResponseCallback) error {
	return f.RespondCallbackWithDelay(ctx, cb, nil)
}

// RespondCallbackWithDelay is RespondCallback with a response delay.
func (f *ForwardChain) RespondCallbackWithDelay(ctx context.Context, cb callback.ResponseCallback, delay *expectation.Delay) error {
	var primary any
	if cb != nil {
		primary = cb
	}
	clientID, err := f.client.registerCallback(ctx, primary, nil)
	if err != nil {
		return err
	}
	f.exp.ThenRespond(&expectation.HTTPObjectCallback{ClientID: clientID, Delay: delay})
	return f.upsert(ctx)
}

// Forward forwards the request to another host.
func (f *ForwardChain) Forward(ctx context.Context, fwd *expectation.HTTPForward) error {
	f.exp.ThenForward(fwd)
	return f.upsert(ctx)
}

// ForwardTemplate renders the forwarded request from a template.
func (f *ForwardChain) ForwardTemplate(ctx context.Context, tmpl *expectation.HTTPTemplate) error {
	f.exp.ThenForward(tmpl)
	return f.upsert(ctx)
}

// ForwardClassCallback computes the forwarded request with a callback
// registered on the server under a class name.
func (f *ForwardChain) ForwardClassCallback(ctx context.Context, cb *expectation.HTTPClassCallback) error {
	f.exp.ThenForward(cb)
	return f.upsert(ctx)
}

// ForwardOverride forwards the request with parts of it overridden.
func (f *ForwardChain) ForwardOverride(ctx context.Context, o *expectation.HTTPOverrideForwardedRequest) error {
	f.exp.ThenForward(o)
	return f.upsert(ctx)
}

// ForwardCallback computes the forwarded request with cb, running in this
// process.
func (f *ForwardChain) ForwardCallback(ctx context.Context, cb callback.ForwardCallback) error {
	return f.ForwardCallbackWithResponseAndDelay(ctx, cb, nil, nil)
}

// ForwardCallbackWithResponse is ForwardCallback followed by after, which
// computes the final response from the forwarded request and its response.
func (f *ForwardChain) ForwardCallbackWithResponse(ctx context.Context, cb callback.ForwardCallback, after callback.ForwardResponseCallback) error {
	return f.ForwardCallbackWithResponseAndDelay(ctx, cb, after, nil)
}

// ForwardCallbackWithDelay is ForwardCallback with a delay.
func (f *ForwardChain) ForwardCallbackWithDelay(ctx context.Context, cb callback.ForwardCallback, delay *expectation.Delay) error {
	return f.ForwardCallbackWithResponseAndDelay(ctx, cb, nil, delay)
}

// ForwardCallbackWithResponseAndDelay registers cb and, when non-nil,
// after, then forwards through them.
func (f *ForwardChain) ForwardCallbackWithResponseAndDelay(ctx context.Context, cb callback.ForwardCallback, after callback.ForwardResponseCallback, delay *expectation.Delay) error {
	var primary any
	if cb != nil {
		primary = cb
	}
	clientID, err := f.client.registerCallback(ctx, primary, after)
	if err != nil {
		return err
	}
	f.exp.ThenForward(&expectation.HTTPObjectCallback{
		ClientID:         clientID,
		ResponseCallback: after != nil,
		Delay:            delay,
	})
	return f.upsert(ctx)
}

// Error misbehaves at the connection level.
func (f *ForwardChain) Error(ctx context.Context, e *expectation.HTTPError) error {
	f.exp.ThenError(e)
	return f.upsert(ctx)
}
