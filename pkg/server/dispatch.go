package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/getmockd/mockserver-go/pkg/expectation"
	"github.com/getmockd/mockserver-go/pkg/httputil"
	"github.com/getmockd/mockserver-go/pkg/negatable"
	"github.com/getmockd/mockserver-go/pkg/template"
)

// handleRequest matches r against the active expectations and performs the
// action of the selected one. Unmatched requests get an empty 404.
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	body, err := httputil.ReadBody(r)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid_body", err.Error())
		return
	}
	path := strings.TrimPrefix(r.URL.Path, s.contextPath)
	if path == "" {
		path = "/"
	}
	req := fromHTTPRequest(r, path, body)

	exp := s.store.Match(req)
	if exp == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	ctx := r.Context()
	if action := exp.Action(); action != nil {
		if err := sleep(ctx, action.ActionDelay().Duration()); err != nil {
			return
		}
	}

	if err := s.perform(ctx, w, exp, req); err != nil {
		s.log.Warn("action failed", "expectation", exp.ID, "action", string(exp.ActionType()), "error", err)
		writeActionError(w, err)
	}
}

// errNotImplemented marks actions the server cannot perform.
var errNotImplemented = errors.New("action not supported by this server")

func (s *Server) perform(ctx context.Context, w http.ResponseWriter, exp *expectation.Expectation, req *expectation.HTTPRequest) error {
	switch a := exp.Action().(type) {
	case *expectation.HTTPResponse:
		writeResponse(w, a)
		return nil

	case *expectation.HTTPTemplate:
		if s.templates == nil {
			return fmt.Errorf("%w: %s", errNotImplemented, exp.ActionType())
		}
		if exp.ActionType() == expectation.ActionForwardTemplate {
			fwd, err := s.templates.RenderForward(ctx, a, req)
			if err != nil {
				return err
			}
			return s.forwardAndWrite(ctx, w, fwd, nil)
		}
		resp, err := s.templates.RenderResponse(ctx, a, req)
		if err != nil {
			return err
		}
		writeResponse(w, resp)
		return nil

	case *expectation.HTTPClassCallback:
		if exp.ActionType() == expectation.ActionForwardClassCallback {
			cb, err := s.resolver.ResolveForward(a.CallbackClass)
			if err != nil {
				return err
			}
			fwd, err := cb.Forward(ctx, req)
			if err != nil {
				return err
			}
			return s.forwardAndWrite(ctx, w, fwd, nil)
		}
		cb, err := s.resolver.ResolveResponse(a.CallbackClass)
		if err != nil {
			return err
		}
		resp, err := cb.Respond(ctx, req)
		if err != nil {
			return err
		}
		writeResponse(w, resp)
		return nil

	case *expectation.HTTPObjectCallback:
		ictx, cancel := context.WithTimeout(ctx, s.cfg.InvocationTimeoutDuration())
		defer cancel()
		if exp.ActionType() == expectation.ActionForwardObjectCallback {
			return s.forwardObjectCallback(ictx, w, a, req)
		}
		resp, err := s.channels.InvokeResponse(ictx, a.ClientID, req)
		if err != nil {
			return err
		}
		writeResponse(w, resp)
		return nil

	case *expectation.HTTPForward:
		fwd := overrideRequest(req, nil)
		host := a.Host
		if a.Port > 0 {
			host = fmt.Sprintf("%s:%d", a.Host, a.Port)
		}
		fwd.Headers = replaceKeys(fwd.Headers, expectation.Request().
			WithHeader(negatable.New("Host"), negatable.New(host)).Headers)
		secure := strings.EqualFold(a.Scheme, "https")
		fwd.Secure = &secure
		return s.forwardAndWrite(ctx, w, fwd, nil)

	case *expectation.HTTPOverrideForwardedRequest:
		return s.forwardAndWrite(ctx, w, overrideRequest(req, a.RequestOverride), a.ResponseOverride)

	case *expectation.HTTPError:
		return s.misbehave(w, a)

	default:
		return fmt.Errorf("%w: %s", errNotImplemented, exp.ActionType())
	}
}

func (s *Server) forwardObjectCallback(ctx context.Context, w http.ResponseWriter, a *expectation.HTTPObjectCallback, req *expectation.HTTPRequest) error {
	fwd, err := s.channels.InvokeForward(ctx, a.ClientID, req)
	if err != nil {
		return err
	}
	resp, err := s.forward(ctx, fwd)
	if err != nil {
		return err
	}
	if a.ResponseCallback {
		resp, err = s.channels.InvokeForwardResponse(ctx, a.ClientID, fwd, resp)
		if err != nil {
			return err
		}
	}
	writeResponse(w, resp)
	return nil
}

func (s *Server) forwardAndWrite(ctx context.Context, w http.ResponseWriter, req *expectation.HTTPRequest, override *expectation.HTTPResponse) error {
	resp, err := s.forward(ctx, req)
	if err != nil {
		return err
	}
	writeResponse(w, overrideResponse(resp, override))
	return nil
}

// forward sends req upstream and captures the response.
func (s *Server) forward(ctx context.Context, req *expectation.HTTPRequest) (*expectation.HTTPResponse, error) {
	out, err := toOutbound(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(out)
	if err != nil {
		return nil, &forwardError{err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	return fromHTTPResponse(resp)
}

// misbehave writes raw bytes and/or drops the connection.
func (s *Server) misbehave(w http.ResponseWriter, a *expectation.HTTPError) error {
	hj, ok := w.(http.Hijacker)
	if !ok {
		return fmt.Errorf("%w: connection cannot be hijacked", errNotImplemented)
	}
	conn, buf, err := hj.Hijack()
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	if len(a.ResponseBytes) > 0 {
		_, _ = buf.Write(a.ResponseBytes)
		_ = buf.Flush()
	}
	return nil
}

type forwardError struct{ err error }

func (e *forwardError) Error() string { return "forward failed: " + e.err.Error() }
func (e *forwardError) Unwrap() error { return e.err }

// writeActionError maps action failures to a status code.
func writeActionError(w http.ResponseWriter, err error) {
	var (
		cbErr  *CallbackError
		fwdErr *forwardError
	)
	switch {
	case errors.Is(err, ErrNoChannel):
		httputil.WriteNotFound(w, "no_callback_channel", err.Error())
	case errors.Is(err, ErrInvocationTimeout):
		httputil.WriteError(w, http.StatusGatewayTimeout, "callback_timeout", err.Error())
	case errors.Is(err, errNotImplemented), errors.Is(err, template.ErrUnsupportedType):
		httputil.WriteError(w, http.StatusNotImplemented, "not_implemented", err.Error())
	case errors.As(err, &cbErr), errors.As(err, &fwdErr), errors.Is(err, ErrChannelClosed):
		httputil.WriteError(w, http.StatusBadGateway, "upstream_failed", err.Error())
	default:
		httputil.WriteError(w, http.StatusInternalServerError, "action_failed", err.Error())
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
