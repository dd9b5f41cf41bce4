package expectation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/getmockd/mockserver-go/pkg/negatable"
)

// HTTPRequest is both a request definition used as match criteria and the
// concrete request handed to callbacks.
type HTTPRequest struct {
	Method                *negatable.String `json:"method,omitempty" yaml:"method,omitempty"`
	Path                  *negatable.String `json:"path,omitempty" yaml:"path,omitempty"`
	Headers               KeyMultiValues    `json:"headers,omitempty" yaml:"headers,omitempty"`
	QueryStringParameters KeyMultiValues    `json:"queryStringParameters,omitempty" yaml:"queryStringParameters,omitempty"`
	Body                  string            `json:"body,omitempty" yaml:"body,omitempty"`
	Secure                *bool             `json:"secure,omitempty" yaml:"secure,omitempty"`
	KeepAlive             *bool             `json:"keepAlive,omitempty" yaml:"keepAlive,omitempty"`
}

// Request starts an empty request definition.
func Request() *HTTPRequest {
	return &HTTPRequest{}
}

// WithMethod sets the method constraint.
func (r *HTTPRequest) WithMethod(method *negatable.String) *HTTPRequest {
	r.Method = negatable.Normalize(method)
	return r
}

// WithPath sets the path constraint.
func (r *HTTPRequest) WithPath(path *negatable.String) *HTTPRequest {
	r.Path = negatable.Normalize(path)
	return r
}

// WithHeader appends a header constraint.
func (r *HTTPRequest) WithHeader(name *negatable.String, values ...*negatable.String) *HTTPRequest {
	if kv, ok := newKeyToMultiValue(name, values); ok {
		r.Headers = append(r.Headers, kv)
	}
	return r
}

// WithQueryStringParameter appends a query parameter constraint.
func (r *HTTPRequest) WithQueryStringParameter(name *negatable.String, values ...*negatable.String) *HTTPRequest {
	if kv, ok := newKeyToMultiValue(name, values); ok {
		r.QueryStringParameters = append(r.QueryStringParameters, kv)
	}
	return r
}

// WithBody sets the body.
func (r *HTTPRequest) WithBody(body string) *HTTPRequest {
	r.Body = body
	return r
}

// MethodValue returns the method, or "" when unconstrained.
func (r *HTTPRequest) MethodValue() string {
	if r == nil || r.Method == nil {
		return ""
	}
	return r.Method.Value
}

// PathValue returns the path, or "" when unconstrained.
func (r *HTTPRequest) PathValue() string {
	if r == nil || r.Path == nil {
		return ""
	}
	return r.Path.Value
}

// UnmarshalJSON keeps absent constraints nil.
func (r *HTTPRequest) UnmarshalJSON(data []byte) error {
	type alias HTTPRequest
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	a.Method = negatable.Normalize(a.Method)
	a.Path = negatable.Normalize(a.Path)
	*r = HTTPRequest(a)
	return nil
}

// KeyToMultiValue is a named constraint with zero or more value constraints,
// used for headers and query parameters.
type KeyToMultiValue struct {
	Name   *negatable.String   `json:"name" yaml:"name"`
	Values []*negatable.String `json:"values,omitempty" yaml:"values,omitempty"`
}

func newKeyToMultiValue(name *negatable.String, values []*negatable.String) (KeyToMultiValue, bool) {
	name = negatable.Normalize(name)
	if name == nil {
		return KeyToMultiValue{}, false
	}
	kv := KeyToMultiValue{Name: name}
	for _, v := range values {
		if v != nil {
			kv.Values = append(kv.Values, v)
		}
	}
	return kv, true
}

// Constraints returns the values that constrain a match. Empty non-negated
// values only require presence and are left out.
func (kv KeyToMultiValue) Constraints() []*negatable.String {
	var out []*negatable.String
	for _, v := range kv.Values {
		if v != nil && (v.Value != "" || v.Not) {
			out = append(out, v)
		}
	}
	return out
}

// Matches reports whether any of the actual values satisfies every value
// constraint. A constraint without values only requires presence.
func (kv KeyToMultiValue) Matches(values []string) bool {
	want := kv.Constraints()
	if len(want) == 0 {
		return len(values) > 0
	}
	for _, w := range want {
		found := false
		for _, v := range values {
			if w.Matches(v) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// KeyMultiValues is a list of KeyToMultiValue. It decodes from both the
// array form and the object form:
//
//	[{"name": "Accept", "values": ["text/plain"]}]
//	{"Accept": ["text/plain"], "X-Id": "1"}
type KeyMultiValues []KeyToMultiValue

var errInvalidKeyMultiValues = errors.New("expected array or object")

// UnmarshalJSON decodes either form, dropping entries with empty names.
// Empty string values are kept.
func (k *KeyMultiValues) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*k = nil
		return nil
	}

	var out KeyMultiValues
	switch data[0] {
	case '[':
		var raw []struct {
			Name   json.RawMessage   `json:"name"`
			Values []json.RawMessage `json:"values"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		for _, entry := range raw {
			if kv, ok := newKeyToMultiValue(negatable.Decode(entry.Name), decodeAll(entry.Values)); ok {
				out = append(out, kv)
			}
		}
	case '{':
		dec := json.NewDecoder(bytes.NewReader(data))
		if _, err := dec.Token(); err != nil {
			return err
		}
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			key, _ := tok.(string)
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return err
			}
			if kv, ok := newKeyToMultiValue(negatable.FromKey(key), decodeValues(raw)); ok {
				out = append(out, kv)
			}
		}
	default:
		return fmt.Errorf("key to multi value: %w", errInvalidKeyMultiValues)
	}

	*k = out
	return nil
}

// Get returns the first entry whose name equals name, ignoring case.
func (k KeyMultiValues) Get(name string) (KeyToMultiValue, bool) {
	for _, kv := range k {
		if kv.Name != nil && strings.EqualFold(kv.Name.Value, name) {
			return kv, true
		}
	}
	return KeyToMultiValue{}, false
}

// First returns the first value of the named entry.
func (k KeyMultiValues) First(name string) string {
	kv, ok := k.Get(name)
	if !ok || len(kv.Values) == 0 {
		return ""
	}
	return kv.Values[0].Value
}

// decodeValues accepts a single value or an array of values.
func decodeValues(raw json.RawMessage) []*negatable.String {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		return decodeAll(items)
	}
	return []*negatable.String{negatable.DecodeValue(raw)}
}

func decodeAll(items []json.RawMessage) []*negatable.String {
	out := make([]*negatable.String, 0, len(items))
	for _, item := range items {
		out = append(out, negatable.DecodeValue(item))
	}
	return out
}
