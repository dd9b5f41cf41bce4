// Package callback implements callback delegation: the client side of the
// protocol that lets an expectation's action be computed by code living in
// the process that created the expectation.
//
// # Pieces
//
//   - Registry maps a correlation (client) id to the registered handlers: a
//     primary ResponseCallback or ForwardCallback, and for forwards an
//     optional ForwardResponseCallback run after the forward completes.
//   - Channel is one persistent WebSocket connection per correlation id. It
//     carries the registration handshake and then any number of invocation
//     round-trips until stopped.
//   - Future is the pending outcome of a handshake, awaited with a bounded
//     wait.
//   - Pool is the bounded worker pool shared by all channels of a client,
//     kept separate from any data-plane concurrency.
//   - ClassResolver maps callback class names to factories registered at
//     startup; it replaces loading classes by name.
//
// # Handshake
//
// The channel dials ws[s]://{address}{contextPath}/_mockserver_callback_websocket
// with the X-CLIENT-REGISTRATION-ID header and sends
//
//	{"type":"registration","clientId":"…","responseCallback":true,
//	 "remoteAddress":"localhost:1080","contextPath":"","secure":false}
//
// The server answers {"type":"registration_ack","clientId":"…"} or
// {"type":"error","error":"…"}. An error reply, or an upgrade refused with a
// 4xx status, resolves the Future with a *RejectionError carrying the server's
// message verbatim; every other failure is a *TransportError.
package callback
