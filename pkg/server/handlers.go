package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/getmockd/mockserver-go/internal/id"
	"github.com/getmockd/mockserver-go/pkg/callback"
	"github.com/getmockd/mockserver-go/pkg/expectation"
	"github.com/getmockd/mockserver-go/pkg/httputil"
)

// handleUpsert handles PUT /mockserver/expectation.
func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	body, err := httputil.ReadBody(r)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid_body", err.Error())
		return
	}
	if err := expectation.ValidateSchema(body); err != nil {
		httputil.WriteBadRequest(w, "schema_violation", err.Error())
		return
	}
	exps, err := expectation.ParseJSON(body)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid_expectation", err.Error())
		return
	}
	if err := s.Upsert(exps...); err != nil {
		httputil.WriteBadRequest(w, "invalid_expectation", err.Error())
		return
	}
	s.log.Debug("expectations upserted", "count", len(exps))
	httputil.WriteJSON(w, http.StatusCreated, exps)
}

// handleReset handles PUT /mockserver/reset.
func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.Reset()
	s.log.Info("reset")
	w.WriteHeader(http.StatusOK)
}

// handleRetrieve handles PUT and GET /mockserver/retrieve. An optional body
// is a request filter.
func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	if t := r.URL.Query().Get("type"); t != "" && t != "active_expectations" {
		httputil.WriteBadRequest(w, "unsupported_type", fmt.Sprintf("retrieve type %q is not supported", t))
		return
	}
	body, err := httputil.ReadBody(r)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid_body", err.Error())
		return
	}

	var filter *expectation.HTTPRequest
	if body = bytes.TrimSpace(body); len(body) > 0 && !bytes.Equal(body, []byte("null")) {
		filter = &expectation.HTTPRequest{}
		if err := json.Unmarshal(body, filter); err != nil {
			httputil.WriteBadRequest(w, "invalid_request", err.Error())
			return
		}
	}

	exps := s.store.Retrieve(filter)
	if exps == nil {
		exps = []*expectation.Expectation{}
	}
	httputil.WriteJSON(w, http.StatusOK, exps)
}

// handleCallbackWebSocket accepts a callback channel. Requests that cannot
// be a valid registration are refused before the upgrade; registrations
// that fail after it are answered with an error message.
func (s *Server) handleCallbackWebSocket(w http.ResponseWriter, r *http.Request) {
	clientID := r.Header.Get(callback.HeaderClientRegistrationID)
	if !id.IsCorrelation(clientID) {
		http.Error(w, fmt.Sprintf("invalid %s header %q", callback.HeaderClientRegistrationID, clientID), http.StatusBadRequest)
		return
	}
	if _, err := s.auth.VerifyRequest(r); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("callback upgrade failed", "clientId", clientID, "error", err)
		return
	}
	log := s.log.With("clientId", clientID)

	reject := func(msg string) {
		log.Warn("callback registration rejected", "reason", msg)
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_ = conn.WriteJSON(callback.NewErrorMessage("", msg))
		_ = conn.Close()
	}

	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		log.Warn("callback registration not received", "error", err)
		_ = conn.Close()
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	reg, err := callback.DecodeMessage(data)
	switch {
	case err != nil:
		reject("invalid registration message: " + err.Error())
		return
	case reg.Type != callback.MessageTypeRegistration:
		reject(fmt.Sprintf("expected %s message, got %s", callback.MessageTypeRegistration, reg.Type))
		return
	case reg.ClientID != clientID:
		reject(fmt.Sprintf("client id %q does not match %s header %q", reg.ClientID, callback.HeaderClientRegistrationID, clientID))
		return
	}

	ch := newClientChannel(clientID, reg.ResponseCallback, conn)
	if err := s.channels.add(ch); err != nil {
		reject(err.Error())
		return
	}
	defer s.channels.remove(ch)

	if err := ch.send(callback.NewAckMessage(clientID)); err != nil {
		log.Warn("failed to acknowledge callback registration", "error", err)
		ch.close()
		return
	}
	log.Info("callback channel registered", "responseCallback", reg.ResponseCallback, "remoteAddress", reg.RemoteAddress)

	ch.readLoop(log)
	log.Debug("callback channel closed")
}
