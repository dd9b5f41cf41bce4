// Package auth signs and verifies control-plane tokens.
//
// When a control-plane secret is configured, the client signs a short-lived
// HS256 JWT for every control-plane request (expectation upserts, reset and
// callback channel registration) and the server refuses requests whose
// bearer token does not verify against the same secret.
package auth
