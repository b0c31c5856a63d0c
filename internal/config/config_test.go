package config

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

// unsetEnv removes key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	if old, ok := os.LookupEnv(key); ok {
		t.Cleanup(func() { _ = os.Setenv(key, old) })
	}
	_ = os.Unsetenv(key)
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENVIRONMENT", "LOG_LEVEL", "STORAGE_BACKEND", "LLM_PROVIDER", "LLM_TIMEOUT"} {
		unsetEnv(t, key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.StorageBackend != StorageMemory {
		t.Errorf("StorageBackend = %q, want %q", cfg.StorageBackend, StorageMemory)
	}
	if cfg.LLMProvider != ProviderNone {
		t.Errorf("LLMProvider = %q, want %q", cfg.LLMProvider, ProviderNone)
	}
	if cfg.LLMTimeout != 2*time.Minute {
		t.Errorf("LLMTimeout = %v, want 2m", cfg.LLMTimeout)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORAGE_BACKEND", "SQLite")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("LLM_TIMEOUT", "45s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "9000" || cfg.StorageBackend != StorageSQLite || cfg.LLMProvider != ProviderOpenAI {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.LLMTimeout != 45*time.Second {
		t.Errorf("LLMTimeout = %v, want 45s", cfg.LLMTimeout)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
}

func TestLoad_RejectsUnknownBackends(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"storage", "STORAGE_BACKEND", "postgres"},
		{"provider", "LLM_PROVIDER", "anthropic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unsetEnv(t, "LLM_TIMEOUT")
			t.Setenv("STORAGE_BACKEND", "memory")
			t.Setenv("LLM_PROVIDER", "none")
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%s should fail", tt.key, tt.val)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
