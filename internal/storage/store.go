package storage

import (
	"github.com/getmockd/mockserver-go/pkg/expectation"
)

// ExpectationStore defines the interface for storing and selecting
// expectations.
type ExpectationStore interface {
	// Get retrieves an expectation by ID. Returns nil if not found.
	Get(id string) *expectation.Expectation

	// Upsert stores an expectation, replacing one with the same ID.
	Upsert(e *expectation.Expectation) error

	// Delete removes an expectation by ID. Returns true if deleted.
	Delete(id string) bool

	// List returns all stored expectations in evaluation order.
	List() []*expectation.Expectation

	// Retrieve returns the expectations whose definition accepts filter,
	// or all of them when filter is nil.
	Retrieve(filter *expectation.HTTPRequest) []*expectation.Expectation

	// Match selects the expectation handling actual and consumes one use
	// of it. Returns nil when none matches.
	Match(actual *expectation.HTTPRequest) *expectation.Expectation

	// Count returns the number of stored expectations.
	Count() int

	// Clear removes all stored expectations.
	Clear()
}
