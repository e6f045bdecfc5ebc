package config

import (
	"errors"
	"testing"
	"time"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"OPENAI_API_KEY", "CLAUDE_API_KEY", "GEMINI_API_KEY", "DEEPSEEK_API_KEY"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen.Addr != ":8000" {
		t.Fatalf("unexpected listen addr %q", cfg.Listen.Addr)
	}
	if cfg.HTTP.ClientTimeout != 30*time.Second {
		t.Fatalf("unexpected upstream timeout %v", cfg.HTTP.ClientTimeout)
	}
	if !cfg.Providers.OpenAI.Configured() {
		t.Fatal("openai should be configured")
	}
	if cfg.Providers.Claude.Configured() {
		t.Fatal("claude should not be configured")
	}
	if cfg.Redis.Addr != "" {
		t.Fatalf("redis should be disabled by default, got %q", cfg.Redis.Addr)
	}
	if cfg.DB.DSN != "" {
		t.Fatalf("db should be disabled by default, got %q", cfg.DB.DSN)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("CLAUDE_API_KEY", "sk-ant")
	t.Setenv("CLAUDE_BASE_URL", "http://localhost:9001/v1")
	t.Setenv("UPSTREAM_TIMEOUT", "5s")
	t.Setenv("LISTEN_ADDR", ":9000")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Providers.Claude.BaseURL != "http://localhost:9001/v1" {
		t.Fatalf("base url override missing: %q", cfg.Providers.Claude.BaseURL)
	}
	if cfg.HTTP.ClientTimeout != 5*time.Second {
		t.Fatalf("timeout override missing: %v", cfg.HTTP.ClientTimeout)
	}
	if cfg.Listen.Addr != ":9000" {
		t.Fatalf("listen override missing: %q", cfg.Listen.Addr)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level not lowercased: %q", cfg.Log.Level)
	}
}

func TestLoadRequiresSomeProvider(t *testing.T) {
	clearProviderEnv(t)
	_, err := Load()
	if !errors.Is(err, ErrNoProviderConfigured) {
		t.Fatalf("expected ErrNoProviderConfigured, got %v", err)
	}
}
