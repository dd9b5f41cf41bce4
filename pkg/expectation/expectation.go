package expectation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/getmockd/mockserver-go/internal/id"
)

// Errors returned when decoding or validating expectations.
var (
	ErrMultipleActions = errors.New("expectation has more than one action")
	ErrNoAction        = errors.New("expectation has no action")
	ErrInvalidYAML     = errors.New("invalid YAML syntax")
)

// Times limits how often an expectation may match.
type Times struct {
	RemainingTimes int  `json:"remainingTimes,omitempty" yaml:"remainingTimes,omitempty"`
	Unlimited      bool `json:"unlimited,omitempty" yaml:"unlimited,omitempty"`
}

// Exactly returns a limit of n matches.
func Exactly(n int) *Times {
	return &Times{RemainingTimes: n}
}

// Unlimited returns no limit.
func Unlimited() *Times {
	return &Times{Unlimited: true}
}

// TimeToLive bounds how long an expectation stays active after it is
// stored.
type TimeToLive struct {
	TimeUnit   string `json:"timeUnit,omitempty" yaml:"timeUnit,omitempty"`
	TimeToLive int64  `json:"timeToLive,omitempty" yaml:"timeToLive,omitempty"`
	Unlimited  bool   `json:"unlimited,omitempty" yaml:"unlimited,omitempty"`
}

// ExpiresIn returns a time to live of d, rounded down to milliseconds.
func ExpiresIn(d time.Duration) *TimeToLive {
	return &TimeToLive{TimeUnit: "MILLISECONDS", TimeToLive: d.Milliseconds()}
}

// Duration is zero when the expectation never expires.
func (t *TimeToLive) Duration() time.Duration {
	if t == nil || t.Unlimited {
		return 0
	}
	return (&Delay{TimeUnit: t.TimeUnit, Value: t.TimeToLive}).Duration()
}

// Expectation pairs request match criteria with a single terminal action.
type Expectation struct {
	ID          string
	Priority    int
	HTTPRequest *HTTPRequest
	Times       *Times
	TimeToLive  *TimeToLive

	action     Action
	actionType ActionType
}

// New returns an expectation for request with a fresh id and unlimited
// matches.
func New(request *HTTPRequest) *Expectation {
	return &Expectation{
		ID:          id.Correlation(),
		HTTPRequest: request,
		Times:       Unlimited(),
	}
}

// WithPriority sets the priority; higher priorities match first.
func (e *Expectation) WithPriority(priority int) *Expectation {
	e.Priority = priority
	return e
}

// WithTimeToLive sets how long the expectation stays active once stored.
func (e *Expectation) WithTimeToLive(ttl *TimeToLive) *Expectation {
	e.TimeToLive = ttl
	return e
}

// WithTimes sets the match limit.
func (e *Expectation) WithTimes(times *Times) *Expectation {
	e.Times = times
	return e
}

// ThenRespond replaces the action with a responding action.
func (e *Expectation) ThenRespond(a ResponseAction) *Expectation {
	switch v := a.(type) {
	case *HTTPResponse:
		e.actionType = ActionResponse
	case *HTTPTemplate:
		e.actionType = ActionResponseTemplate
	case *HTTPClassCallback:
		e.actionType = ActionResponseClassCallback
	case *HTTPObjectCallback:
		v.ResponseCallback = false
		e.actionType = ActionResponseObjectCallback
	}
	e.action = a
	return e
}

// ThenForward replaces the action with a forwarding action.
func (e *Expectation) ThenForward(a ForwardAction) *Expectation {
	switch a.(type) {
	case *HTTPForward:
		e.actionType = ActionForward
	case *HTTPTemplate:
		e.actionType = ActionForwardTemplate
	case *HTTPClassCallback:
		e.actionType = ActionForwardClassCallback
	case *HTTPObjectCallback:
		e.actionType = ActionForwardObjectCallback
	case *HTTPOverrideForwardedRequest:
		e.actionType = ActionForwardReplace
	}
	e.action = a
	return e
}

// ThenError replaces the action with an error action.
func (e *Expectation) ThenError(err *HTTPError) *Expectation {
	e.action = err
	e.actionType = ActionError
	return e
}

// Action returns the current action, or nil.
func (e *Expectation) Action() Action {
	return e.action
}

// ActionType returns the kind of the current action, or "".
func (e *Expectation) ActionType() ActionType {
	return e.actionType
}

// Validate checks that the expectation can be stored.
func (e *Expectation) Validate() error {
	if e.action == nil {
		return fmt.Errorf("expectation %q: %w", e.ID, ErrNoAction)
	}
	return nil
}

// wire is the JSON shape of an Expectation.
type wire struct {
	ID                           string                        `json:"id,omitempty"`
	Priority                     int                           `json:"priority,omitempty"`
	HTTPRequest                  *HTTPRequest                  `json:"httpRequest,omitempty"`
	Times                        *Times                        `json:"times,omitempty"`
	TimeToLive                   *TimeToLive                   `json:"timeToLive,omitempty"`
	HTTPResponse                 *HTTPResponse                 `json:"httpResponse,omitempty"`
	HTTPResponseTemplate         *HTTPTemplate                 `json:"httpResponseTemplate,omitempty"`
	HTTPResponseClassCallback    *HTTPClassCallback            `json:"httpResponseClassCallback,omitempty"`
	HTTPResponseObjectCallback   *HTTPObjectCallback           `json:"httpResponseObjectCallback,omitempty"`
	HTTPForward                  *HTTPForward                  `json:"httpForward,omitempty"`
	HTTPForwardTemplate          *HTTPTemplate                 `json:"httpForwardTemplate,omitempty"`
	HTTPForwardClassCallback     *HTTPClassCallback            `json:"httpForwardClassCallback,omitempty"`
	HTTPForwardObjectCallback    *HTTPObjectCallback           `json:"httpForwardObjectCallback,omitempty"`
	HTTPOverrideForwardedRequest *HTTPOverrideForwardedRequest `json:"httpOverrideForwardedRequest,omitempty"`
	HTTPError                    *HTTPError                    `json:"httpError,omitempty"`
}

// MarshalJSON writes the action into the field for its kind.
func (e *Expectation) MarshalJSON() ([]byte, error) {
	w := wire{
		ID:          e.ID,
		Priority:    e.Priority,
		HTTPRequest: e.HTTPRequest,
		Times:       e.Times,
		TimeToLive:  e.TimeToLive,
	}
	switch e.actionType {
	case ActionResponse:
		w.HTTPResponse, _ = e.action.(*HTTPResponse)
	case ActionResponseTemplate:
		w.HTTPResponseTemplate, _ = e.action.(*HTTPTemplate)
	case ActionResponseClassCallback:
		w.HTTPResponseClassCallback, _ = e.action.(*HTTPClassCallback)
	case ActionResponseObjectCallback:
		w.HTTPResponseObjectCallback, _ = e.action.(*HTTPObjectCallback)
	case ActionForward:
		w.HTTPForward, _ = e.action.(*HTTPForward)
	case ActionForwardTemplate:
		w.HTTPForwardTemplate, _ = e.action.(*HTTPTemplate)
	case ActionForwardClassCallback:
		w.HTTPForwardClassCallback, _ = e.action.(*HTTPClassCallback)
	case ActionForwardObjectCallback:
		w.HTTPForwardObjectCallback, _ = e.action.(*HTTPObjectCallback)
	case ActionForwardReplace:
		w.HTTPOverrideForwardedRequest, _ = e.action.(*HTTPOverrideForwardedRequest)
	case ActionError:
		w.HTTPError, _ = e.action.(*HTTPError)
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads at most one action field.
func (e *Expectation) UnmarshalJSON(data []byte) error {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	out := Expectation{
		ID:          w.ID,
		Priority:    w.Priority,
		HTTPRequest: w.HTTPRequest,
		Times:       w.Times,
		TimeToLive:  w.TimeToLive,
	}

	set := 0
	respond := func(a ResponseAction) {
		set++
		out.ThenRespond(a)
	}
	forward := func(a ForwardAction) {
		set++
		out.ThenForward(a)
	}
	if w.HTTPResponse != nil {
		respond(w.HTTPResponse)
	}
	if w.HTTPResponseTemplate != nil {
		respond(w.HTTPResponseTemplate)
	}
	if w.HTTPResponseClassCallback != nil {
		respond(w.HTTPResponseClassCallback)
	}
	if w.HTTPResponseObjectCallback != nil {
		respond(w.HTTPResponseObjectCallback)
	}
	if w.HTTPForward != nil {
		forward(w.HTTPForward)
	}
	if w.HTTPForwardTemplate != nil {
		forward(w.HTTPForwardTemplate)
	}
	if w.HTTPForwardClassCallback != nil {
		forward(w.HTTPForwardClassCallback)
	}
	if w.HTTPForwardObjectCallback != nil {
		forward(w.HTTPForwardObjectCallback)
	}
	if w.HTTPOverrideForwardedRequest != nil {
		forward(w.HTTPOverrideForwardedRequest)
	}
	if w.HTTPError != nil {
		set++
		out.ThenError(w.HTTPError)
	}
	if set > 1 {
		return ErrMultipleActions
	}

	*e = out
	return nil
}

// ParseJSON decodes a single expectation or an array of expectations.
func ParseJSON(data []byte) ([]*Expectation, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var list []*Expectation
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var single Expectation
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, err
	}
	return []*Expectation{&single}, nil
}

// ParseYAML decodes the YAML equivalent of ParseJSON. Documents are converted
// to JSON first so both formats share the negatable decoding rules.
func ParseYAML(data []byte) ([]*Expectation, error) {
	converted, err := yamlToJSON(data)
	if err != nil {
		return nil, err
	}
	return ParseJSON(converted)
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	converted, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return converted, nil
}

// LoadFile reads expectations from a JSON or YAML file, chosen by extension.
// The content is checked against the expectation schema before decoding.
func LoadFile(path string) ([]*Expectation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read expectations: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if data, err = yamlToJSON(data); err != nil {
			return nil, err
		}
	}
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}
	return ParseJSON(data)
}
