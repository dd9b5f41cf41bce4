package expectation

import (
	"strings"
	"time"

	"github.com/getmockd/mockserver-go/pkg/negatable"
)

// ActionType identifies the terminal action of an expectation.
type ActionType string

// Action types. Templates, class callbacks and object callbacks exist in a
// responding and a forwarding flavour.
const (
	ActionResponse               ActionType = "RESPONSE"
	ActionResponseTemplate       ActionType = "RESPONSE_TEMPLATE"
	ActionResponseClassCallback  ActionType = "RESPONSE_CLASS_CALLBACK"
	ActionResponseObjectCallback ActionType = "RESPONSE_OBJECT_CALLBACK"
	ActionForward                ActionType = "FORWARD"
	ActionForwardTemplate        ActionType = "FORWARD_TEMPLATE"
	ActionForwardClassCallback   ActionType = "FORWARD_CLASS_CALLBACK"
	ActionForwardObjectCallback  ActionType = "FORWARD_OBJECT_CALLBACK"
	ActionForwardReplace         ActionType = "FORWARD_REPLACE"
	ActionError                  ActionType = "ERROR"
)

// Action is implemented by every action variant.
type Action interface {
	// ActionDelay returns the delay applied before the action, or nil.
	ActionDelay() *Delay
}

// ResponseAction is an action that can be set with ThenRespond.
type ResponseAction interface {
	Action
	responseAction()
}

// ForwardAction is an action that can be set with ThenForward.
type ForwardAction interface {
	Action
	forwardAction()
}

// Delay is a wait applied before an action takes effect.
type Delay struct {
	TimeUnit string `json:"timeUnit" yaml:"timeUnit"`
	Value    int64  `json:"value" yaml:"value"`
}

// Milliseconds returns a delay of n milliseconds.
func Milliseconds(n int64) *Delay {
	return &Delay{TimeUnit: "MILLISECONDS", Value: n}
}

// Seconds returns a delay of n seconds.
func Seconds(n int64) *Delay {
	return &Delay{TimeUnit: "SECONDS", Value: n}
}

// Duration converts the delay. Unknown units are read as milliseconds.
func (d *Delay) Duration() time.Duration {
	if d == nil {
		return 0
	}
	unit := time.Millisecond
	switch strings.ToUpper(d.TimeUnit) {
	case "NANOSECONDS":
		unit = time.Nanosecond
	case "MICROSECONDS":
		unit = time.Microsecond
	case "SECONDS":
		unit = time.Second
	case "MINUTES":
		unit = time.Minute
	case "HOURS":
		unit = time.Hour
	case "DAYS":
		unit = 24 * time.Hour
	}
	return time.Duration(d.Value) * unit
}

// HTTPResponse is a literal response.
type HTTPResponse struct {
	StatusCode   int            `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	ReasonPhrase string         `json:"reasonPhrase,omitempty" yaml:"reasonPhrase,omitempty"`
	Headers      KeyMultiValues `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body         string         `json:"body,omitempty" yaml:"body,omitempty"`
	Delay        *Delay         `json:"delay,omitempty" yaml:"delay,omitempty"`
}

// Response starts a response with the given status code.
func Response(statusCode int) *HTTPResponse {
	return &HTTPResponse{StatusCode: statusCode}
}

// WithBody sets the body.
func (r *HTTPResponse) WithBody(body string) *HTTPResponse {
	r.Body = body
	return r
}

// WithHeader appends a header.
func (r *HTTPResponse) WithHeader(name string, values ...string) *HTTPResponse {
	vs := make([]*negatable.String, 0, len(values))
	for _, v := range values {
		vs = append(vs, negatable.Literal(v))
	}
	if kv, ok := newKeyToMultiValue(negatable.New(name), vs); ok {
		r.Headers = append(r.Headers, kv)
	}
	return r
}

// WithDelay sets the delay.
func (r *HTTPResponse) WithDelay(d *Delay) *HTTPResponse {
	r.Delay = d
	return r
}

func (r *HTTPResponse) ActionDelay() *Delay { return r.Delay }
func (*HTTPResponse) responseAction()       {}

// TemplateType names a template language. Package template evaluates
// MUSTACHE templates.
type TemplateType string

// Template languages.
const (
	TemplateVelocity   TemplateType = "VELOCITY"
	TemplateJavaScript TemplateType = "JAVASCRIPT"
	TemplateMustache   TemplateType = "MUSTACHE"
)

// HTTPTemplate generates a response or a forwarded request from a template.
type HTTPTemplate struct {
	TemplateType TemplateType `json:"templateType" yaml:"templateType"`
	Template     string       `json:"template" yaml:"template"`
	Delay        *Delay       `json:"delay,omitempty" yaml:"delay,omitempty"`
}

func (t *HTTPTemplate) ActionDelay() *Delay { return t.Delay }
func (*HTTPTemplate) responseAction()       {}
func (*HTTPTemplate) forwardAction()        {}

// HTTPClassCallback names a callback registered with the server's class
// resolver.
type HTTPClassCallback struct {
	CallbackClass string `json:"callbackClass" yaml:"callbackClass"`
	Delay         *Delay `json:"delay,omitempty" yaml:"delay,omitempty"`
}

func (c *HTTPClassCallback) ActionDelay() *Delay { return c.Delay }
func (*HTTPClassCallback) responseAction()       {}
func (*HTTPClassCallback) forwardAction()        {}

// HTTPObjectCallback delegates to a callback registered over a callback
// channel. ResponseCallback is only meaningful for forward callbacks and
// signals that a paired after-forward handler was registered.
type HTTPObjectCallback struct {
	ClientID         string `json:"clientId" yaml:"clientId"`
	ResponseCallback bool   `json:"responseCallback,omitempty" yaml:"responseCallback,omitempty"`
	Delay            *Delay `json:"delay,omitempty" yaml:"delay,omitempty"`
}

func (c *HTTPObjectCallback) ActionDelay() *Delay { return c.Delay }
func (*HTTPObjectCallback) responseAction()       {}
func (*HTTPObjectCallback) forwardAction()        {}

// HTTPForward forwards the request to another host.
type HTTPForward struct {
	Host   string `json:"host" yaml:"host"`
	Port   int    `json:"port,omitempty" yaml:"port,omitempty"`
	Scheme string `json:"scheme,omitempty" yaml:"scheme,omitempty"`
	Delay  *Delay `json:"delay,omitempty" yaml:"delay,omitempty"`
}

func (f *HTTPForward) ActionDelay() *Delay { return f.Delay }
func (*HTTPForward) forwardAction()        {}

// HTTPOverrideForwardedRequest forwards the request after overriding parts
// of it, then optionally overrides parts of the response.
type HTTPOverrideForwardedRequest struct {
	RequestOverride  *HTTPRequest  `json:"requestOverride,omitempty" yaml:"requestOverride,omitempty"`
	ResponseOverride *HTTPResponse `json:"responseOverride,omitempty" yaml:"responseOverride,omitempty"`
	Delay            *Delay        `json:"delay,omitempty" yaml:"delay,omitempty"`
}

func (o *HTTPOverrideForwardedRequest) ActionDelay() *Delay { return o.Delay }
func (*HTTPOverrideForwardedRequest) forwardAction()        {}

// HTTPError misbehaves at the connection level.
type HTTPError struct {
	DropConnection bool   `json:"dropConnection,omitempty" yaml:"dropConnection,omitempty"`
	ResponseBytes  []byte `json:"responseBytes,omitempty" yaml:"responseBytes,omitempty"`
	Delay          *Delay `json:"delay,omitempty" yaml:"delay,omitempty"`
}

func (e *HTTPError) ActionDelay() *Delay { return e.Delay }
