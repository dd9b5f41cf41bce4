package negatable

import (
	"bytes"
	"encoding/json"
)

// String is a possibly negated string constraint. The zero value and nil both
// mean "no constraint"; use the constructors to avoid building an empty one.
type String struct {
	Value string
	Not   bool
}

// New returns a non-negated constraint, or nil for an empty value.
func New(value string) *String {
	if value == "" {
		return nil
	}
	return &String{Value: value}
}

// Not returns a negated constraint, or nil for an empty value.
func Not(value string) *String {
	if value == "" {
		return nil
	}
	return &String{Value: value, Not: true}
}

// Literal returns a non-negated value, keeping it even when empty. It is for
// concrete data such as a received header, where an empty value is still a
// value.
func Literal(value string) *String {
	return &String{Value: value}
}

// Normalize returns nil when s carries no value and s otherwise.
func Normalize(s *String) *String {
	if s == nil || s.Value == "" {
		return nil
	}
	return s
}

// IsNegated reports whether s requires the value to NOT match.
func (s *String) IsNegated() bool {
	return s != nil && s.Not
}

// Equal reports whether s and o are the same constraint. Two nils are equal.
func (s *String) Equal(o *String) bool {
	s, o = Normalize(s), Normalize(o)
	if s == nil || o == nil {
		return s == o
	}
	return s.Value == o.Value && s.Not == o.Not
}

// Matches reports whether actual satisfies the constraint. A nil constraint
// matches anything.
func (s *String) Matches(actual string) bool {
	if s = Normalize(s); s == nil {
		return true
	}
	return (s.Value == actual) != s.Not
}

// String renders the constraint for logs, prefixing negated values with "!".
func (s *String) String() string {
	if s == nil {
		return ""
	}
	if s.Not {
		return "!" + s.Value
	}
	return s.Value
}

// object is the object wire form.
type object struct {
	Not   bool   `json:"not"`
	Value string `json:"value"`
}

// MarshalJSON emits the scalar form unless the constraint is negated.
func (s String) MarshalJSON() ([]byte, error) {
	if s.Not {
		return json.Marshal(object{Not: true, Value: s.Value})
	}
	return json.Marshal(s.Value)
}

// UnmarshalJSON decodes either wire form. Input that Decode resolves to
// absence leaves s as the zero value; struct fields holding a *String should
// be passed through Normalize after decoding.
func (s *String) UnmarshalJSON(data []byte) error {
	if d := Decode(data); d != nil {
		*s = *d
	} else {
		*s = String{}
	}
	return nil
}

// UnmarshalText decodes a map key. Keys are always non-negated.
func (s *String) UnmarshalText(text []byte) error {
	*s = String{Value: string(text)}
	return nil
}

// Encode returns the wire form of s; nil encodes as JSON null.
func Encode(s *String) ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	return s.MarshalJSON()
}

// Decode parses either wire form. It never fails: anything other than a JSON
// string or a JSON object, or an object whose value is missing or empty,
// yields nil.
func Decode(data []byte) *String {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '"':
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return nil
		}
		return New(value)
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil
		}
		var (
			not   bool
			value string
		)
		if raw, ok := fields["not"]; ok {
			_ = json.Unmarshal(raw, &not)
		}
		if raw, ok := fields["value"]; ok {
			_ = json.Unmarshal(raw, &value)
		}
		if value == "" {
			return nil
		}
		return &String{Value: value, Not: not}
	default:
		return nil
	}
}

// DecodeValue is Decode for concrete values: a plain empty string decodes to
// an empty Literal instead of nil.
func DecodeValue(data []byte) *String {
	if bytes.Equal(bytes.TrimSpace(data), []byte(`""`)) {
		return Literal("")
	}
	return Decode(data)
}

// FromKey decodes a string found in field-name position, such as a header
// name used as an object key. Keys are never negated.
func FromKey(key string) *String {
	return New(key)
}
