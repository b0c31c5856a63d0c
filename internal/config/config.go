package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Storage backends.
const (
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// LLM providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

type Config struct {
	Port        string     `envconfig:"PORT" default:"8080"`
	Environment string     `envconfig:"ENVIRONMENT" default:"development"`
	LogLevelRaw string     `envconfig:"LOG_LEVEL" default:"info"`
	LogLevel    slog.Level `ignored:"true"`

	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"memory"`
	RedisURL       string `envconfig:"REDIS_URL" default:"redis://localhost:6379"`
	SQLitePath     string `envconfig:"SQLITE_PATH" default:"storyforge.db"`

	LLMProvider  string        `envconfig:"LLM_PROVIDER" default:"none"`
	LLMBaseURL   string        `envconfig:"LLM_BASE_URL" default:"http://localhost:11434"`
	LLMAPIKey    string        `envconfig:"LLM_API_KEY"`
	LLMTimeout   time.Duration `envconfig:"LLM_TIMEOUT" default:"2m"`
	DefaultModel string        `envconfig:"DEFAULT_MODEL"`

	AssetCacheDir string `envconfig:"ASSET_CACHE_DIR"`
	AssetUpstream string `envconfig:"ASSET_UPSTREAM"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.LogLevel = parseLogLevel(cfg.LogLevelRaw)
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))

	switch cfg.StorageBackend {
	case StorageRedis, StorageSQLite, StorageMemory:
	default:
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q (supported: redis, sqlite, memory)", cfg.StorageBackend)
	}

	switch cfg.LLMProvider {
	case ProviderOllama, ProviderOpenAI, ProviderNone:
	default:
		return nil, fmt.Errorf("invalid LLM_PROVIDER %q (supported: ollama, openai, none)", cfg.LLMProvider)
	}

	return &cfg, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
