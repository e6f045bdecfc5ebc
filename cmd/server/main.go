package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"unichat/internal/config"
	"unichat/internal/gateway"
	"unichat/internal/httpapi"
	"unichat/internal/metrics"
	"unichat/internal/providers/registry"
	"unichat/internal/storage"
	"unichat/internal/usage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setupLogger(cfg.Log.Level)
	log.Info().
		Bool("openai", cfg.Providers.OpenAI.Configured()).
		Bool("claude", cfg.Providers.Claude.Configured()).
		Bool("gemini", cfg.Providers.Gemini.Configured()).
		Bool("deepseek", cfg.Providers.DeepSeek.Configured()).
		Msg("starting unichat")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var store *storage.Store
	if cfg.DB.DSN != "" {
		store, err = storage.Open(ctx, cfg.DB.Driver, cfg.DB.DSN, cfg.DB.AutoMigrate, "migrations")
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize request log storage")
		}
		defer store.Close()
		log.Info().Str("driver", cfg.DB.Driver).Msg("request log enabled")
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect redis")
		}
		defer rdb.Close()
		log.Info().Str("addr", cfg.Redis.Addr).Msg("usage accounting enabled")
	}
	tracker := usage.NewTracker(rdb)

	reg := registry.New(registry.Options{
		OpenAI:     registry.Upstream{APIKey: cfg.Providers.OpenAI.APIKey, BaseURL: cfg.Providers.OpenAI.BaseURL},
		Claude:     registry.Upstream{APIKey: cfg.Providers.Claude.APIKey, BaseURL: cfg.Providers.Claude.BaseURL},
		Gemini:     registry.Upstream{APIKey: cfg.Providers.Gemini.APIKey, BaseURL: cfg.Providers.Gemini.BaseURL},
		DeepSeek:   registry.Upstream{APIKey: cfg.Providers.DeepSeek.APIKey, BaseURL: cfg.Providers.DeepSeek.BaseURL},
		HTTPClient: &http.Client{Timeout: cfg.HTTP.ClientTimeout},
	})

	gw := gateway.New(gateway.Config{
		Registry: reg,
		Logger:   log.Logger,
		Metrics:  metrics.Global(),
		Store:    store,
		Usage:    tracker,
	})

	service := httpapi.NewService(httpapi.Config{
		Chatter: gw,
		Catalog: reg,
		Logger:  log.Logger,
		Store:   store,
		Usage:   tracker,
	})

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Listen.HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle(cfg.Listen.MetricsPath, promhttp.Handler())
	service.Register(mux)

	httpServer := &http.Server{
		Addr:              cfg.Listen.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Listen.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Listen.Addr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("runtime error")
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to stop http server")
	}

	log.Info().Msg("stopped")
}

func setupLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLogLevel(level))
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
