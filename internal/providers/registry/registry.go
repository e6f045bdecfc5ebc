// Package registry holds the static per-provider metadata: base URL,
// credential, model catalog and the adapter that speaks the provider's
// wire format. It is built once at startup and read-only afterwards, so
// concurrent lookups need no locking.
package registry

import (
	"net/http"
	"time"

	"unichat/internal/providers"
	"unichat/internal/providers/anthropic_messages"
	"unichat/internal/providers/gemini"
	"unichat/internal/providers/openai_compat"
)

const (
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultClaudeBaseURL   = "https://api.anthropic.com/v1"
	defaultGeminiBaseURL   = "https://generativelanguage.googleapis.com/v1beta"
	defaultDeepSeekBaseURL = "https://api.deepseek.com/v1"

	defaultMaxTokens = 2048
)

// Catalogs are fixed at build time; there is no dynamic discovery from
// upstream. A model missing here is still forwarded (see gateway).
var (
	openAIModels   = []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-3.5-turbo", "o1-preview", "o1-mini"}
	claudeModels   = []string{"claude-3-5-sonnet-20241022", "claude-3-5-haiku-20241022", "claude-3-opus-20240229", "claude-3-sonnet-20240229", "claude-3-haiku-20240307"}
	geminiModels   = []string{"gemini-1.5-pro", "gemini-1.5-flash", "gemini-1.5-flash-8b", "gemini-1.0-pro", "gemini-pro", "gemini-pro-vision"}
	deepSeekModels = []string{"deepseek-chat", "deepseek-reasoner", "deepseek-coder", "deepseek-v2.5"}
)

// Upstream is the per-provider configuration read from the environment.
// An empty APIKey leaves the provider listed but unusable.
type Upstream struct {
	APIKey  string
	BaseURL string
}

type Options struct {
	OpenAI   Upstream
	Claude   Upstream
	Gemini   Upstream
	DeepSeek Upstream

	// HTTPClient is shared by all adapters; its timeout bounds each
	// upstream call. Defaults to a 30s-timeout client.
	HTTPClient *http.Client
}

// ProviderConfig is one immutable registry entry.
type ProviderConfig struct {
	ID               providers.ID
	BaseURL          string
	Models           []string
	DefaultMaxTokens int
	Adapter          providers.Provider

	hasKey bool
}

// Available reports whether the provider has a configured credential.
func (p *ProviderConfig) Available() bool {
	return p.hasKey
}

type Registry struct {
	entries map[providers.ID]*ProviderConfig
	order   []providers.ID
}

func New(opts Options) *Registry {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	openAIBase := orDefault(opts.OpenAI.BaseURL, defaultOpenAIBaseURL)
	claudeBase := orDefault(opts.Claude.BaseURL, defaultClaudeBaseURL)
	geminiBase := orDefault(opts.Gemini.BaseURL, defaultGeminiBaseURL)
	deepSeekBase := orDefault(opts.DeepSeek.BaseURL, defaultDeepSeekBaseURL)

	entries := map[providers.ID]*ProviderConfig{
		providers.OpenAI: {
			ID:               providers.OpenAI,
			BaseURL:          openAIBase,
			Models:           openAIModels,
			DefaultMaxTokens: defaultMaxTokens,
			hasKey:           opts.OpenAI.APIKey != "",
			Adapter: openai_compat.New(openai_compat.Config{
				Name:       string(providers.OpenAI),
				BaseURL:    openAIBase,
				APIKey:     opts.OpenAI.APIKey,
				HTTPClient: httpClient,
			}),
		},
		providers.Claude: {
			ID:               providers.Claude,
			BaseURL:          claudeBase,
			Models:           claudeModels,
			DefaultMaxTokens: defaultMaxTokens,
			hasKey:           opts.Claude.APIKey != "",
			Adapter: anthropic_messages.New(anthropic_messages.Config{
				BaseURL:    claudeBase,
				APIKey:     opts.Claude.APIKey,
				HTTPClient: httpClient,
			}),
		},
		providers.Gemini: {
			ID:               providers.Gemini,
			BaseURL:          geminiBase,
			Models:           geminiModels,
			DefaultMaxTokens: defaultMaxTokens,
			hasKey:           opts.Gemini.APIKey != "",
			Adapter: gemini.New(gemini.Config{
				BaseURL:    geminiBase,
				APIKey:     opts.Gemini.APIKey,
				HTTPClient: httpClient,
			}),
		},
		providers.DeepSeek: {
			ID:               providers.DeepSeek,
			BaseURL:          deepSeekBase,
			Models:           deepSeekModels,
			DefaultMaxTokens: defaultMaxTokens,
			hasKey:           opts.DeepSeek.APIKey != "",
			Adapter: openai_compat.New(openai_compat.Config{
				Name:       string(providers.DeepSeek),
				BaseURL:    deepSeekBase,
				APIKey:     opts.DeepSeek.APIKey,
				HTTPClient: httpClient,
			}),
		},
	}

	return &Registry{
		entries: entries,
		order:   []providers.ID{providers.OpenAI, providers.Claude, providers.Gemini, providers.DeepSeek},
	}
}

// Lookup returns the entry for id, or ok=false for an unknown provider.
func (r *Registry) Lookup(id providers.ID) (*ProviderConfig, bool) {
	p, ok := r.entries[id]
	return p, ok
}

// ListModels returns the fixed model catalog for id, nil for an unknown
// provider. The returned slice must not be mutated.
func (r *Registry) ListModels(id providers.ID) []string {
	p, ok := r.entries[id]
	if !ok {
		return nil
	}
	return p.Models
}

// Providers returns all provider IDs in a stable order.
func (r *Registry) Providers() []providers.ID {
	return r.order
}

// Catalogs returns every provider's model list keyed by provider ID,
// including providers without a credential.
func (r *Registry) Catalogs() map[string][]string {
	out := make(map[string][]string, len(r.entries))
	for id, p := range r.entries {
		out[string(id)] = p.Models
	}
	return out
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
