package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrNoProviderConfigured = errors.New("at least one provider API key is required")

type Config struct {
	Listen ListenConfig

	Providers ProvidersConfig
	HTTP      HTTPConfig
	Redis     RedisConfig
	DB        DBConfig
	Log       LogConfig
}

type ListenConfig struct {
	Addr        string
	HealthPath  string
	MetricsPath string
	ReadTimeout time.Duration
}

// ProviderConfig is one upstream's credential and optional base-URL
// override. An empty APIKey leaves the provider listed but unusable.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
}

func (p ProviderConfig) Configured() bool {
	return p.APIKey != ""
}

type ProvidersConfig struct {
	OpenAI   ProviderConfig
	Claude   ProviderConfig
	Gemini   ProviderConfig
	DeepSeek ProviderConfig
}

type HTTPConfig struct {
	// ClientTimeout bounds each upstream call end to end.
	ClientTimeout time.Duration
}

// RedisConfig enables usage accounting when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DBConfig enables the request log when DSN is set.
type DBConfig struct {
	Driver      string
	DSN         string
	AutoMigrate bool
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Listen: ListenConfig{
			Addr:        mustEnv("LISTEN_ADDR", ":8000"),
			HealthPath:  mustEnv("HEALTH_PATH", "/healthz"),
			MetricsPath: mustEnv("METRICS_PATH", "/metrics"),
			ReadTimeout: mustDuration("READ_TIMEOUT", 10*time.Second),
		},
		Providers: ProvidersConfig{
			OpenAI: ProviderConfig{
				APIKey:  mustEnv("OPENAI_API_KEY", ""),
				BaseURL: mustEnv("OPENAI_BASE_URL", ""),
			},
			Claude: ProviderConfig{
				APIKey:  mustEnv("CLAUDE_API_KEY", ""),
				BaseURL: mustEnv("CLAUDE_BASE_URL", ""),
			},
			Gemini: ProviderConfig{
				APIKey:  mustEnv("GEMINI_API_KEY", ""),
				BaseURL: mustEnv("GEMINI_BASE_URL", ""),
			},
			DeepSeek: ProviderConfig{
				APIKey:  mustEnv("DEEPSEEK_API_KEY", ""),
				BaseURL: mustEnv("DEEPSEEK_BASE_URL", ""),
			},
		},
		HTTP: HTTPConfig{
			ClientTimeout: mustDuration("UPSTREAM_TIMEOUT", 30*time.Second),
		},
		Redis: RedisConfig{
			Addr:     mustEnv("REDIS_ADDR", ""),
			Password: mustEnv("REDIS_PASSWORD", ""),
			DB:       mustInt("REDIS_DB", 0),
		},
		DB: DBConfig{
			Driver:      strings.ToLower(mustEnv("DB_DRIVER", "sqlite")),
			DSN:         mustEnv("DB_DSN", ""),
			AutoMigrate: mustBool("AUTO_MIGRATE", true),
		},
		Log: LogConfig{
			Level: strings.ToLower(mustEnv("LOG_LEVEL", "info")),
		},
	}

	// A process with no credentials can still serve /api/models, but it
	// can never answer a chat; treat it as a deployment mistake.
	if !cfg.Providers.OpenAI.Configured() &&
		!cfg.Providers.Claude.Configured() &&
		!cfg.Providers.Gemini.Configured() &&
		!cfg.Providers.DeepSeek.Configured() {
		return nil, ErrNoProviderConfigured
	}

	return cfg, nil
}

func mustEnv(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func mustInt(key string, def int) int {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func mustBool(key string, def bool) bool {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func mustDuration(key string, def time.Duration) time.Duration {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
