// Package negatable implements the string constraint used by every
// expectation match criterion: a value that must equal, or must NOT equal,
// the corresponding part of a request.
//
// # Wire forms
//
// A String is encoded in one of two forms:
//
//	"GET"                           // scalar form, Not == false
//	{"not": true, "value": "GET"}   // object form
//
// The scalar form is always used when Not is false, so Decode(Encode(x))
// returns x for every non-empty value.
//
// # Absence
//
// An empty value never becomes a String. Decode, FromKey, New and Not all
// return nil for it, and nil means "no constraint": downstream matchers never
// see a request to negate the empty string. Malformed input is treated the
// same way rather than reported as an error.
package negatable
