package config

import (
	"errors"
	"fmt"
	"time"
)

// Defaults.
const (
	DefaultMaxFutureTimeout    = 90_000
	DefaultCallbackWorkerCount = 16
	DefaultInvocationTimeout   = 60_000
	DefaultServerPort          = 1080
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds client and server settings. Timeouts are in milliseconds.
type Config struct {
	// MaxFutureTimeout bounds the wait for a callback registration ack.
	MaxFutureTimeout int64 `json:"maxFutureTimeout" yaml:"maxFutureTimeout" envconfig:"MAX_FUTURE_TIMEOUT"`

	// CallbackWorkerCount sizes the worker pool dedicated to callback channels.
	CallbackWorkerCount int `json:"callbackWorkerCount" yaml:"callbackWorkerCount" envconfig:"WEBSOCKET_CLIENT_EVENT_LOOP_THREAD_COUNT"`

	// InvocationTimeout bounds how long the server waits for a callback reply.
	InvocationTimeout int64 `json:"invocationTimeout" yaml:"invocationTimeout" envconfig:"CALLBACK_INVOCATION_TIMEOUT"`

	// ControlPlaneJWTSecret, when set, requires HS256 bearer tokens on the
	// control plane and the callback endpoint.
	ControlPlaneJWTSecret string `json:"controlPlaneJwtSecret,omitempty" yaml:"controlPlaneJwtSecret,omitempty" envconfig:"CONTROL_PLANE_JWT_SECRET"`

	ServerPort         int    `json:"serverPort" yaml:"serverPort" envconfig:"SERVER_PORT"`
	InitializationFile string `json:"initializationFile,omitempty" yaml:"initializationFile,omitempty" envconfig:"INITIALIZATION_FILE"`

	LogLevel  string `json:"logLevel" yaml:"logLevel" envconfig:"LOG_LEVEL"`
	LogFormat string `json:"logFormat" yaml:"logFormat" envconfig:"LOG_FORMAT"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxFutureTimeout:    DefaultMaxFutureTimeout,
		CallbackWorkerCount: DefaultCallbackWorkerCount,
		InvocationTimeout:   DefaultInvocationTimeout,
		ServerPort:          DefaultServerPort,
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

// MaxFutureTimeoutDuration returns MaxFutureTimeout as a duration.
func (c *Config) MaxFutureTimeoutDuration() time.Duration {
	return time.Duration(c.MaxFutureTimeout) * time.Millisecond
}

// InvocationTimeoutDuration returns InvocationTimeout as a duration.
func (c *Config) InvocationTimeoutDuration() time.Duration {
	return time.Duration(c.InvocationTimeout) * time.Millisecond
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.MaxFutureTimeout <= 0 {
		return fmt.Errorf("%w: maxFutureTimeout must be positive, got %d", ErrInvalidConfig, c.MaxFutureTimeout)
	}
	if c.CallbackWorkerCount <= 0 {
		return fmt.Errorf("%w: callbackWorkerCount must be positive, got %d", ErrInvalidConfig, c.CallbackWorkerCount)
	}
	if c.InvocationTimeout <= 0 {
		return fmt.Errorf("%w: invocationTimeout must be positive, got %d", ErrInvalidConfig, c.InvocationTimeout)
	}
	if c.ServerPort < 0 || c.ServerPort > 65535 {
		return fmt.Errorf("%w: serverPort out of range: %d", ErrInvalidConfig, c.ServerPort)
	}
	return nil
}
