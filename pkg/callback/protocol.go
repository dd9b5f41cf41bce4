package callback

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/getmockd/mockserver-go/pkg/expectation"
)

// WebSocketPath is the callback endpoint, relative to the context path.
const WebSocketPath = "/_mockserver_callback_websocket"

// HeaderClientRegistrationID carries the correlation id on the upgrade request.
const HeaderClientRegistrationID = "X-CLIENT-REGISTRATION-ID"

// Message types for the callback protocol.
const (
	MessageTypeRegistration    = "registration"
	MessageTypeRegistrationAck = "registration_ack"
	MessageTypeError           = "error"

	// Server to client.
	MessageTypeResponseRequest        = "response_request"
	MessageTypeForwardRequest         = "forward_request"
	MessageTypeForwardResponseRequest = "forward_response_request"

	// Client to server.
	MessageTypeResponse = "response"
	MessageTypeRequest  = "request"
)

// Message is every frame exchanged on a callback channel.
type Message struct {
	Type             string                    `json:"type"`
	ID               string                    `json:"id,omitempty"`       // invocation id
	ClientID         string                    `json:"clientId,omitempty"` // correlation id
	ResponseCallback bool                      `json:"responseCallback,omitempty"`
	RemoteAddress    string                    `json:"remoteAddress,omitempty"`
	ContextPath      string                    `json:"contextPath,omitempty"`
	Secure           bool                      `json:"secure,omitempty"`
	Request          *expectation.HTTPRequest  `json:"request,omitempty"`
	Response         *expectation.HTTPResponse `json:"response,omitempty"`
	Error            string                    `json:"error,omitempty"`
}

// Target locates the server a channel registers with.
type Target struct {
	Address     string // host:port
	ContextPath string
	Secure      bool
	// Token, when set, is sent as a bearer token on the upgrade request.
	Token string
}

// URL returns the callback endpoint for t.
func (t Target) URL() string {
	scheme := "ws"
	if t.Secure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s%s%s", scheme, t.Address, NormalizeContextPath(t.ContextPath), WebSocketPath)
}

// NormalizeContextPath returns path with a single leading slash and no
// trailing slash, or "" for the root context.
func NormalizeContextPath(path string) string {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return ""
	}
	return "/" + path
}

// NewRegistrationMessage creates the handshake message.
func NewRegistrationMessage(clientID string, responseCallback bool, t Target) *Message {
	return &Message{
		Type:             MessageTypeRegistration,
		ClientID:         clientID,
		ResponseCallback: responseCallback,
		RemoteAddress:    t.Address,
		ContextPath:      NormalizeContextPath(t.ContextPath),
		Secure:           t.Secure,
	}
}

// NewAckMessage creates the handshake acknowledgement.
func NewAckMessage(clientID string) *Message {
	return &Message{Type: MessageTypeRegistrationAck, ClientID: clientID}
}

// NewErrorMessage creates an error reply. id is empty for handshake errors.
func NewErrorMessage(id, message string) *Message {
	return &Message{Type: MessageTypeError, ID: id, Error: message}
}

// Encode serializes a message to JSON bytes.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage deserializes a JSON message.
func DecodeMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("message has no type")
	}
	return &msg, nil
}
