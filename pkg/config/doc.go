// Package config holds the settings shared by the mockserver-go client and
// server.
//
// Values are resolved in three layers: DefaultConfig, then an optional JSON
// or YAML file, then MOCKSERVER_* environment variables:
//
//	MOCKSERVER_MAX_FUTURE_TIMEOUT                       registration wait (ms)
//	MOCKSERVER_WEBSOCKET_CLIENT_EVENT_LOOP_THREAD_COUNT callback worker pool size
//	MOCKSERVER_CALLBACK_INVOCATION_TIMEOUT              server-side invocation wait (ms)
//	MOCKSERVER_CONTROL_PLANE_JWT_SECRET                 enables control-plane auth
//	MOCKSERVER_SERVER_PORT                              port for `mockserver serve`
//	MOCKSERVER_INITIALIZATION_FILE                      expectations loaded at start
//	MOCKSERVER_LOG_LEVEL / MOCKSERVER_LOG_FORMAT
package config
