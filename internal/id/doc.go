// Package id issues the identifiers used by the callback delegation protocol.
//
// Correlation ids link a registered callback handler to the expectation
// action that later invokes it. They are random (version 4) UUIDs, so two
// registrations never need to coordinate to stay unique.
//
// Invocation ids are short hex tokens that pair one invocation request sent
// over a callback channel with its reply.
package id
