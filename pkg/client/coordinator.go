package client

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/getmockd/mockserver-go/internal/id"
	"github.com/getmockd/mockserver-go/pkg/callback"
	"github.com/getmockd/mockserver-go/pkg/lifecycle"
	"github.com/getmockd/mockserver-go/pkg/metrics"
)

// registerCallback registers primary (and secondary, for forwards) under a
// fresh correlation id and waits for the server to acknowledge it. The
// returned id is what the expectation's object callback action refers to.
//
// The registry entry is written before the handshake starts, so an
// invocation arriving right after the ack always resolves. The channel
// stays subscribed to STOP and RESET whatever the outcome; a timed-out
// handshake is torn down by the next Stop or Reset.
func (c *Client) registerCallback(ctx context.Context, primary any, secondary callback.ForwardResponseCallback) (string, error) {
	start := time.Now()
	clientID := id.Correlation()
	log := c.log.With("clientId", clientID)

	c.registry.Register(clientID, primary, secondary)

	ch := callback.NewChannel(clientID, c.registry, c.pool,
		callback.WithChannelLogger(c.log),
		callback.WithChannelMetrics(c.metrics),
		callback.WithChannelHTTPClient(c.httpClient),
		callback.WithInvocationTimeout(c.cfg.InvocationTimeoutDuration()),
		callback.WithHandshakeTimeout(c.cfg.MaxFutureTimeoutDuration()),
	)

	token, err := c.auth.Sign(clientID)
	if err != nil {
		ch.Stop()
		return "", c.delegationFailed(log, clientID, start, err)
	}

	future := ch.RegisterExpectationCallback(ctx, primary, secondary, callback.Target{
		Address:     c.RemoteAddress(),
		ContextPath: c.contextPath,
		Secure:      c.secure,
		Token:       token,
	})

	unsubscribe := c.bus.Subscribe(func(lifecycle.EventType) { ch.Stop() },
		lifecycle.EventStop, lifecycle.EventReset)
	ch.OnStop(unsubscribe)

	registered, err := future.Wait(ctx, c.cfg.MaxFutureTimeoutDuration())
	if err != nil {
		// A rejected or broken handshake leaves nothing to keep; a timed out
		// one stays tracked until the client stops.
		if !errors.Is(err, callback.ErrRegistrationTimeout) {
			ch.Stop()
		}
		return "", c.delegationFailed(log, clientID, start, err)
	}

	c.metrics.ObserveRegistration(metrics.OutcomeOK, time.Since(start))
	log.Debug("callback registered", "address", c.RemoteAddress())
	return registered, nil
}

// delegationFailed classifies err, records it and returns the error the
// caller sees.
func (c *Client) delegationFailed(log *slog.Logger, clientID string, start time.Time, err error) error {
	derr := classify(clientID, err)

	outcome := metrics.OutcomeTransport
	switch derr.Kind {
	case FailureTimeout:
		outcome = metrics.OutcomeTimeout
	case FailureRejected:
		outcome = metrics.OutcomeRejected
	}
	c.metrics.ObserveRegistration(outcome, time.Since(start))
	log.Warn("callback registration failed", "kind", derr.Kind.String(), "error", err)
	return derr
}

func classify(clientID string, err error) *DelegationError {
	var rejection *callback.RejectionError
	switch {
	case errors.Is(err, callback.ErrRegistrationTimeout):
		return &DelegationError{Kind: FailureTimeout, ClientID: clientID, Message: MessageRegistrationFailed, Err: err}
	case errors.As(err, &rejection):
		return &DelegationError{Kind: FailureRejected, ClientID: clientID, Message: rejection.Message, Err: err}
	default:
		return &DelegationError{Kind: FailureTransport, ClientID: clientID, Message: MessageRegistrationFailed, Err: err}
	}
}
