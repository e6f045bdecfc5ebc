// Package gateway is the normalization layer: it accepts a provider-agnostic
// chat request, validates it, dispatches to the right adapter and folds every
// outcome (success, upstream error, transport failure) into one uniform
// response shape. It never returns a Go error across its boundary.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"unichat/internal/metrics"
	"unichat/internal/providers"
	"unichat/internal/providers/registry"
	"unichat/internal/storage"
	"unichat/internal/usage"
)

const (
	defaultTemperature = 0.7

	minTemperature = 0.0
	maxTemperature = 2.0
	minMaxTokens   = 1
	maxMaxTokens   = 4096
)

// Request is the uniform chat request. Temperature and MaxTokens are
// pointers so that an omitted field and an explicit zero are distinguishable;
// omitted fields take defaults.
type Request struct {
	Provider    string              `json:"provider"`
	Model       string              `json:"model"`
	Messages    []providers.Message `json:"messages"`
	Temperature *float64            `json:"temperature,omitempty"`
	MaxTokens   *int                `json:"max_tokens,omitempty"`
}

// Response is the uniform result. Provider and Model echo the request so
// concurrent callers can correlate responses.
type Response struct {
	Success  bool   `json:"success"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type Config struct {
	Registry *registry.Registry
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics

	// Store and Usage are optional; nil disables the request log and
	// usage accounting respectively.
	Store *storage.Store
	Usage *usage.Tracker
}

type Gateway struct {
	registry *registry.Registry
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	store    *storage.Store
	usage    *usage.Tracker
}

func New(cfg Config) *Gateway {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	u := cfg.Usage
	if u == nil {
		u = usage.NewTracker(nil)
	}
	return &Gateway{
		registry: cfg.Registry,
		logger:   cfg.Logger,
		metrics:  m,
		store:    cfg.Store,
		usage:    u,
	}
}

// Chat performs one chat call. Every failure mode is captured into the
// response's error field; the serving process never sees a panic or error
// from here.
func (g *Gateway) Chat(ctx context.Context, req Request) Response {
	start := time.Now()
	resp, dispatched := g.chat(ctx, req)
	latency := time.Since(start)

	label := g.metricLabel(req.Provider)
	g.metrics.ChatRequests.WithLabelValues(label).Inc()
	if !resp.Success {
		g.metrics.ChatFailures.WithLabelValues(label).Inc()
	}
	if dispatched {
		g.metrics.UpstreamLatency.WithLabelValues(label).Observe(latency.Seconds())
	}

	if err := g.usage.Record(ctx, req.Provider, resp.Success, time.Now()); err != nil {
		g.logger.Warn().Err(err).Msg("usage record failed")
	}
	if g.store != nil {
		rec := storage.RequestRecord{
			Provider:  req.Provider,
			Model:     req.Model,
			Success:   resp.Success,
			Error:     resp.Error,
			LatencyMs: latency.Milliseconds(),
		}
		if err := g.store.InsertRequest(ctx, rec); err != nil {
			g.logger.Warn().Err(err).Msg("request log insert failed")
		}
	}

	evt := g.logger.Info()
	if !resp.Success {
		evt = g.logger.Warn().Str("error", resp.Error)
	}
	evt.Str("provider", req.Provider).
		Str("model", req.Model).
		Dur("latency", latency).
		Bool("success", resp.Success).
		Msg("chat request")

	return resp
}

// chat resolves and performs one call; dispatched reports whether the
// request reached an adapter, so latency is only recorded for real
// upstream round trips.
func (g *Gateway) chat(ctx context.Context, req Request) (_ Response, dispatched bool) {
	entry, ok := g.registry.Lookup(providers.ID(req.Provider))
	if !ok {
		return g.fail(req, fmt.Sprintf("unknown provider %q", req.Provider)), false
	}
	if !entry.Available() {
		return g.fail(req, fmt.Sprintf("provider %q unavailable: no API key configured", req.Provider)), false
	}

	if err := validate(req); err != nil {
		return g.fail(req, err.Error()), false
	}

	// Unknown models for a known provider are forwarded anyway: upstream
	// catalogs move faster than the static registry. Logged so operators
	// can spot stale catalogs.
	if req.Model == "" || !inCatalog(entry.Models, req.Model) {
		g.logger.Warn().
			Str("provider", req.Provider).
			Str("model", req.Model).
			Msg("model not in catalog, forwarding anyway")
	}

	upstream := providers.ChatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: defaultTemperature,
		MaxTokens:   entry.DefaultMaxTokens,
	}
	if req.Temperature != nil {
		upstream.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		upstream.MaxTokens = *req.MaxTokens
	}

	result, err := entry.Adapter.Chat(ctx, upstream)
	if err != nil {
		return g.fail(req, err.Error()), true
	}
	return Response{
		Success:  true,
		Response: result.Text,
		Provider: req.Provider,
		Model:    req.Model,
	}, true
}

// metricLabel folds unregistered provider strings into "unknown" so
// client-supplied values cannot mint unbounded label series.
func (g *Gateway) metricLabel(provider string) string {
	if _, ok := g.registry.Lookup(providers.ID(provider)); ok {
		return provider
	}
	return "unknown"
}

func validate(req Request) error {
	if len(req.Messages) == 0 {
		return fmt.Errorf("messages must not be empty")
	}
	for i, m := range req.Messages {
		switch m.Role {
		case providers.RoleUser, providers.RoleAssistant, providers.RoleSystem:
		default:
			return fmt.Errorf("message %d has unsupported role %q", i, m.Role)
		}
	}
	if req.Temperature != nil && (*req.Temperature < minTemperature || *req.Temperature > maxTemperature) {
		return fmt.Errorf("temperature must be between %.1f and %.1f", minTemperature, maxTemperature)
	}
	if req.MaxTokens != nil && (*req.MaxTokens < minMaxTokens || *req.MaxTokens > maxMaxTokens) {
		return fmt.Errorf("max_tokens must be between %d and %d", minMaxTokens, maxMaxTokens)
	}
	return nil
}

func inCatalog(models []string, model string) bool {
	for _, m := range models {
		if m == model {
			return true
		}
	}
	return false
}

func (g *Gateway) fail(req Request, msg string) Response {
	return Response{
		Success:  false,
		Error:    msg,
		Provider: req.Provider,
		Model:    req.Model,
	}
}
