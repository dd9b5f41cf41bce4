// Package logging configures the slog loggers shared by the client library,
// the callback channel and the server.
//
//	logger := logging.New(logging.Options{Level: slog.LevelDebug, JSON: true})
//	logger.Info("callback registered", "clientId", clientID)
//
// Attributes named token, secret or authorization are always redacted.
// Components take a *slog.Logger through a WithLogger option and fall back
// to Nop when none is given.
package logging
