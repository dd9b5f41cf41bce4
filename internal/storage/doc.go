// Package storage holds active expectations.
//
// The store keeps expectations ordered by priority (descending) then by
// creation order, and selects the expectation that handles a request:
// the first, in that order, with the best match score among those of the
// highest matching priority. Matching an expectation with limited Times
// consumes one use; an exhausted expectation is removed.
package storage
