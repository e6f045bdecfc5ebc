package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"

	"unichat/internal/metrics"
	"unichat/internal/providers"
	"unichat/internal/providers/registry"
)

func newTestGateway(opts registry.Options) *Gateway {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}
	return New(Config{
		Registry: registry.New(opts),
		Logger:   zerolog.Nop(),
	})
}

func mockUpstream(t *testing.T, body string, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func userMessages() []providers.Message {
	return []providers.Message{{Role: "user", Content: "hello"}}
}

func TestChatSuccessAllProviders(t *testing.T) {
	openAISrv := mockUpstream(t, `{"choices":[{"message":{"content":"from openai"}}]}`, nil)
	claudeSrv := mockUpstream(t, `{"content":[{"text":"from claude"}]}`, nil)
	geminiSrv := mockUpstream(t, `{"candidates":[{"content":{"parts":[{"text":"from gemini"}]}}]}`, nil)
	deepSeekSrv := mockUpstream(t, `{"choices":[{"message":{"content":"from deepseek"}}]}`, nil)

	gw := newTestGateway(registry.Options{
		OpenAI:   registry.Upstream{APIKey: "k", BaseURL: openAISrv.URL},
		Claude:   registry.Upstream{APIKey: "k", BaseURL: claudeSrv.URL},
		Gemini:   registry.Upstream{APIKey: "k", BaseURL: geminiSrv.URL},
		DeepSeek: registry.Upstream{APIKey: "k", BaseURL: deepSeekSrv.URL},
	})

	cases := []struct {
		provider string
		model    string
		want     string
	}{
		{"openai", "gpt-4o", "from openai"},
		{"claude", "claude-3-5-sonnet-20241022", "from claude"},
		{"gemini", "gemini-1.5-pro", "from gemini"},
		{"deepseek", "deepseek-chat", "from deepseek"},
	}
	for _, tc := range cases {
		resp := gw.Chat(context.Background(), Request{
			Provider: tc.provider,
			Model:    tc.model,
			Messages: userMessages(),
		})
		if !resp.Success {
			t.Fatalf("%s: expected success, got error %q", tc.provider, resp.Error)
		}
		if resp.Response != tc.want {
			t.Fatalf("%s: unexpected response %q", tc.provider, resp.Response)
		}
		if resp.Provider != tc.provider || resp.Model != tc.model {
			t.Fatalf("%s: provider/model not echoed: %+v", tc.provider, resp)
		}
	}
}

func TestChatMissingCredentialSkipsUpstream(t *testing.T) {
	var calls atomic.Int64
	srv := mockUpstream(t, `{"choices":[{"message":{"content":"x"}}]}`, &calls)

	gw := newTestGateway(registry.Options{
		OpenAI: registry.Upstream{BaseURL: srv.URL}, // no key
	})

	resp := gw.Chat(context.Background(), Request{
		Provider: "openai",
		Model:    "gpt-4o",
		Messages: userMessages(),
	})
	if resp.Success {
		t.Fatal("expected failure without credential")
	}
	if !strings.Contains(resp.Error, "unavailable") || !strings.Contains(resp.Error, "API key") {
		t.Fatalf("error should identify missing credential: %q", resp.Error)
	}
	if calls.Load() != 0 {
		t.Fatalf("upstream was called %d times, want 0", calls.Load())
	}
	if resp.Provider != "openai" || resp.Model != "gpt-4o" {
		t.Fatalf("provider/model not echoed on failure: %+v", resp)
	}
}

func TestChatUnknownProvider(t *testing.T) {
	gw := newTestGateway(registry.Options{
		OpenAI: registry.Upstream{APIKey: "k"},
	})

	resp := gw.Chat(context.Background(), Request{
		Provider: "grok",
		Model:    "grok-beta",
		Messages: userMessages(),
	})
	if resp.Success {
		t.Fatal("expected failure for unknown provider")
	}
	if !strings.Contains(resp.Error, "unknown provider") {
		t.Fatalf("unexpected error %q", resp.Error)
	}
	if resp.Provider != "grok" || resp.Model != "grok-beta" {
		t.Fatalf("provider/model not echoed: %+v", resp)
	}
}

func TestChatValidation(t *testing.T) {
	srv := mockUpstream(t, `{"choices":[{"message":{"content":"x"}}]}`, nil)
	gw := newTestGateway(registry.Options{
		OpenAI: registry.Upstream{APIKey: "k", BaseURL: srv.URL},
	})

	bad := []struct {
		name string
		req  Request
		want string
	}{
		{
			name: "empty messages",
			req:  Request{Provider: "openai", Model: "gpt-4o"},
			want: "messages must not be empty",
		},
		{
			name: "temperature too high",
			req: Request{
				Provider: "openai", Model: "gpt-4o",
				Messages:    userMessages(),
				Temperature: floatPtr(2.5),
			},
			want: "temperature must be between",
		},
		{
			name: "max_tokens zero",
			req: Request{
				Provider: "openai", Model: "gpt-4o",
				Messages:  userMessages(),
				MaxTokens: intPtr(0),
			},
			want: "max_tokens must be between",
		},
		{
			name: "bad role",
			req: Request{
				Provider: "openai", Model: "gpt-4o",
				Messages: []providers.Message{{Role: "tool", Content: "x"}},
			},
			want: "unsupported role",
		},
	}
	for _, tc := range bad {
		resp := gw.Chat(context.Background(), tc.req)
		if resp.Success {
			t.Fatalf("%s: expected validation failure", tc.name)
		}
		if !strings.Contains(resp.Error, tc.want) {
			t.Fatalf("%s: error %q does not contain %q", tc.name, resp.Error, tc.want)
		}
	}
}

func TestChatDefaultsApplied(t *testing.T) {
	var payload struct {
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	gw := newTestGateway(registry.Options{
		OpenAI: registry.Upstream{APIKey: "k", BaseURL: srv.URL},
	})
	resp := gw.Chat(context.Background(), Request{
		Provider: "openai",
		Model:    "gpt-4o",
		Messages: userMessages(),
	})
	if !resp.Success {
		t.Fatalf("expected success, got %q", resp.Error)
	}
	if payload.Temperature != 0.7 {
		t.Fatalf("expected default temperature 0.7, got %v", payload.Temperature)
	}
	if payload.MaxTokens != 2048 {
		t.Fatalf("expected default max_tokens 2048, got %d", payload.MaxTokens)
	}
}

func TestChatUnknownModelForwarded(t *testing.T) {
	var calls atomic.Int64
	srv := mockUpstream(t, `{"choices":[{"message":{"content":"ok"}}]}`, &calls)

	gw := newTestGateway(registry.Options{
		OpenAI: registry.Upstream{APIKey: "k", BaseURL: srv.URL},
	})
	resp := gw.Chat(context.Background(), Request{
		Provider: "openai",
		Model:    "gpt-5-brand-new",
		Messages: userMessages(),
	})
	if !resp.Success {
		t.Fatalf("unknown model should be forwarded, got error %q", resp.Error)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 upstream call, got %d", calls.Load())
	}
	if resp.Model != "gpt-5-brand-new" {
		t.Fatalf("model not echoed: %+v", resp)
	}
}

func TestChatUpstreamErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer srv.Close()

	gw := newTestGateway(registry.Options{
		OpenAI: registry.Upstream{APIKey: "bad", BaseURL: srv.URL},
	})
	resp := gw.Chat(context.Background(), Request{
		Provider: "openai",
		Model:    "gpt-4o",
		Messages: userMessages(),
	})
	if resp.Success {
		t.Fatal("expected failure on upstream 401")
	}
	if !strings.Contains(resp.Error, "invalid api key") {
		t.Fatalf("upstream message not surfaced: %q", resp.Error)
	}
}

func TestChatTimeoutBounded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	gw := newTestGateway(registry.Options{
		OpenAI:     registry.Upstream{APIKey: "k", BaseURL: srv.URL},
		HTTPClient: &http.Client{Timeout: 200 * time.Millisecond},
	})

	start := time.Now()
	resp := gw.Chat(context.Background(), Request{
		Provider: "openai",
		Model:    "gpt-4o",
		Messages: userMessages(),
	})
	elapsed := time.Since(start)

	if resp.Success {
		t.Fatal("expected timeout failure")
	}
	if !strings.Contains(strings.ToLower(resp.Error), "timeout") &&
		!strings.Contains(strings.ToLower(resp.Error), "deadline") {
		t.Fatalf("error should indicate a timeout: %q", resp.Error)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("timeout not bounded, took %v", elapsed)
	}
}

func TestChatConcurrentProvidersNoCrosstalk(t *testing.T) {
	openAISrv := mockUpstream(t, `{"choices":[{"message":{"content":"from openai"}}]}`, nil)
	claudeSrv := mockUpstream(t, `{"content":[{"text":"from claude"}]}`, nil)
	geminiSrv := mockUpstream(t, `{"candidates":[{"content":{"parts":[{"text":"from gemini"}]}}]}`, nil)
	deepSeekSrv := mockUpstream(t, `{"choices":[{"message":{"content":"from deepseek"}}]}`, nil)

	gw := newTestGateway(registry.Options{
		OpenAI:   registry.Upstream{APIKey: "k", BaseURL: openAISrv.URL},
		Claude:   registry.Upstream{APIKey: "k", BaseURL: claudeSrv.URL},
		Gemini:   registry.Upstream{APIKey: "k", BaseURL: geminiSrv.URL},
		DeepSeek: registry.Upstream{APIKey: "k", BaseURL: deepSeekSrv.URL},
	})

	reqs := []struct {
		provider string
		model    string
		want     string
	}{
		{"openai", "gpt-4o", "from openai"},
		{"claude", "claude-3-5-haiku-20241022", "from claude"},
		{"gemini", "gemini-1.5-flash", "from gemini"},
		{"deepseek", "deepseek-reasoner", "from deepseek"},
	}

	const rounds = 8
	var wg sync.WaitGroup
	errCh := make(chan error, len(reqs)*rounds)
	for i := 0; i < rounds; i++ {
		for _, tc := range reqs {
			tc := tc
			wg.Add(1)
			go func() {
				defer wg.Done()
				resp := gw.Chat(context.Background(), Request{
					Provider: tc.provider,
					Model:    tc.model,
					Messages: userMessages(),
				})
				if !resp.Success {
					errCh <- fmt.Errorf("%s: %s", tc.provider, resp.Error)
					return
				}
				if resp.Response != tc.want || resp.Provider != tc.provider || resp.Model != tc.model {
					errCh <- fmt.Errorf("%s: crosstalk in response %+v", tc.provider, resp)
				}
			}()
		}
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Error(err)
	}
}

func TestMetricsLabelsBounded(t *testing.T) {
	gw := newTestGateway(registry.Options{
		OpenAI: registry.Upstream{APIKey: "k"},
	})
	m := metrics.Global()

	requestSeries := testutil.CollectAndCount(m.ChatRequests)
	latencySeries := testutil.CollectAndCount(m.UpstreamLatency)
	unknownBefore := testutil.ToFloat64(m.ChatRequests.WithLabelValues("unknown"))

	bogus := []string{"grok", "mistral", "made-up-123"}
	for _, provider := range bogus {
		resp := gw.Chat(context.Background(), Request{
			Provider: provider,
			Model:    "some-model",
			Messages: userMessages(),
		})
		if resp.Success {
			t.Fatalf("%s: expected failure", provider)
		}
	}

	// All bogus names share the one "unknown" series instead of minting
	// a series per client-supplied string.
	if got := testutil.CollectAndCount(m.ChatRequests); got > requestSeries+1 {
		t.Fatalf("request series grew from %d to %d for bogus providers", requestSeries, got)
	}
	if got := testutil.ToFloat64(m.ChatRequests.WithLabelValues("unknown")); got != unknownBefore+float64(len(bogus)) {
		t.Fatalf("expected %d unknown-labeled requests, got %v", len(bogus), got-unknownBefore)
	}
	if got := testutil.CollectAndCount(m.UpstreamLatency); got != latencySeries {
		t.Fatalf("latency series grew from %d to %d without any dispatch", latencySeries, got)
	}
}

func TestLatencyObservedOnlyOnDispatch(t *testing.T) {
	srv := mockUpstream(t, `{"choices":[{"message":{"content":"ok"}}]}`, nil)
	gw := newTestGateway(registry.Options{
		OpenAI: registry.Upstream{APIKey: "k", BaseURL: srv.URL},
	})
	m := metrics.Global()

	before := histogramSamples(t, m.UpstreamLatency.WithLabelValues("openai"))

	// Validation failure: rejected before any upstream call.
	resp := gw.Chat(context.Background(), Request{Provider: "openai", Model: "gpt-4o"})
	if resp.Success {
		t.Fatal("expected validation failure")
	}
	if got := histogramSamples(t, m.UpstreamLatency.WithLabelValues("openai")); got != before {
		t.Fatalf("latency observed for rejected request: %d -> %d samples", before, got)
	}

	resp = gw.Chat(context.Background(), Request{
		Provider: "openai",
		Model:    "gpt-4o",
		Messages: userMessages(),
	})
	if !resp.Success {
		t.Fatalf("expected success, got %q", resp.Error)
	}
	if got := histogramSamples(t, m.UpstreamLatency.WithLabelValues("openai")); got != before+1 {
		t.Fatalf("expected one new latency sample, got %d -> %d", before, got)
	}
}

func histogramSamples(t *testing.T, obs prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := obs.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T is not a metric", obs)
	}
	var out dto.Metric
	if err := metric.Write(&out); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return out.GetHistogram().GetSampleCount()
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
