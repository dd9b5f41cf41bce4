// Package server is the server side of callback delegation together with
// the minimal expectation handling needed to exercise it.
//
// Routes, relative to the optional context path:
//
//	PUT  /mockserver/expectation          create or replace expectations
//	PUT  /mockserver/reset                clear expectations, close callback channels
//	PUT  /mockserver/retrieve             list active expectations (GET also accepted)
//	GET  /_mockserver_callback_websocket  callback channel endpoint
//	*    /...                             matched against expectations
//
// Callback channels are accepted with gorilla/websocket. A channel is
// identified by the X-CLIENT-REGISTRATION-ID header, which must be a UUIDv4
// equal to the clientId of the registration message. Object callback
// actions invoke the registered channel and wait, bounded by the configured
// invocation timeout, for its reply.
//
// Request matching covers method, path, headers, query parameters and body
// with negatable values; see internal/matching.
package server
