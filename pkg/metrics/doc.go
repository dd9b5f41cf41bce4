// Package metrics exposes Prometheus collectors for callback delegation.
//
// A nil *Metrics is valid and records nothing, so components can take an
// optional *Metrics without guarding every call site.
//
// Collectors (namespace "mockserver"):
//
//	callback_registrations_total{outcome}        ok, timeout, rejected, transport
//	callback_channels_open{side}                 client and server ends between handshake and stop
//	callback_invocations_total{kind, status}     server and client invocation round-trips
//	callback_registration_duration_seconds       time from register call to outcome
package metrics
