package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
	if cfg.MaxFutureTimeoutDuration() != 90*time.Second {
		t.Errorf("MaxFutureTimeoutDuration() = %v, want 90s", cfg.MaxFutureTimeoutDuration())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero timeout", func(c *Config) { c.MaxFutureTimeout = 0 }},
		{"negative workers", func(c *Config) { c.CallbackWorkerCount = -1 }},
		{"zero invocation timeout", func(c *Config) { c.InvocationTimeout = 0 }},
		{"port too large", func(c *Config) { c.ServerPort = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoadFromFile_YAML(t *testing.T) {
	path := writeFile(t, "mockserver.yaml", "maxFutureTimeout: 250\ncallbackWorkerCount: 2\nlogLevel: debug\n")

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.MaxFutureTimeout != 250 || cfg.CallbackWorkerCount != 2 || cfg.LogLevel != "debug" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.InvocationTimeout != DefaultInvocationTimeout {
		t.Errorf("unset field should keep its default, got %d", cfg.InvocationTimeout)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	path := writeFile(t, "mockserver.json", `{"serverPort": 8080, "controlPlaneJwtSecret": "s3cret"}`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.ServerPort != 8080 || cfg.ControlPlaneJWTSecret != "s3cret" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("missing file error = %v, want ErrFileNotFound", err)
	}
	if _, err := LoadFromFile(writeFile(t, "bad.json", "{")); !errors.Is(err, ErrInvalidJSON) {
		t.Errorf("bad JSON error = %v, want ErrInvalidJSON", err)
	}
	if _, err := LoadFromFile(writeFile(t, "bad.yaml", "maxFutureTimeout: [")); !errors.Is(err, ErrInvalidYAML) {
		t.Errorf("bad YAML error = %v, want ErrInvalidYAML", err)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "mockserver.yaml", "maxFutureTimeout: 250\n")
	t.Setenv("MOCKSERVER_MAX_FUTURE_TIMEOUT", "1500")
	t.Setenv("MOCKSERVER_WEBSOCKET_CLIENT_EVENT_LOOP_THREAD_COUNT", "4")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxFutureTimeout != 1500 {
		t.Errorf("MaxFutureTimeout = %d, want 1500", cfg.MaxFutureTimeout)
	}
	if cfg.CallbackWorkerCount != 4 {
		t.Errorf("CallbackWorkerCount = %d, want 4", cfg.CallbackWorkerCount)
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("MOCKSERVER_SERVER_PORT", "not-a-port")
	if _, err := Load(""); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoad_ValidatesResult(t *testing.T) {
	t.Setenv("MOCKSERVER_MAX_FUTURE_TIMEOUT", "0")
	if _, err := Load(""); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
	}
}
