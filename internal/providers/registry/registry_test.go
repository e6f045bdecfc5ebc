package registry

import (
	"reflect"
	"testing"

	"unichat/internal/providers"
)

func TestLookupUnknownProvider(t *testing.T) {
	r := New(Options{})
	if _, ok := r.Lookup(providers.ID("grok")); ok {
		t.Fatal("expected lookup of unknown provider to fail")
	}
}

func TestAvailabilityFollowsCredential(t *testing.T) {
	r := New(Options{
		OpenAI: Upstream{APIKey: "sk-test"},
	})

	entry, ok := r.Lookup(providers.OpenAI)
	if !ok {
		t.Fatal("openai entry missing")
	}
	if !entry.Available() {
		t.Fatal("openai should be available with a key")
	}

	entry, ok = r.Lookup(providers.Claude)
	if !ok {
		t.Fatal("claude should be listed even without a key")
	}
	if entry.Available() {
		t.Fatal("claude should be unavailable without a key")
	}
}

func TestListModelsFixedOrder(t *testing.T) {
	r := New(Options{})

	models := r.ListModels(providers.DeepSeek)
	want := []string{"deepseek-chat", "deepseek-reasoner", "deepseek-coder", "deepseek-v2.5"}
	if !reflect.DeepEqual(models, want) {
		t.Fatalf("unexpected deepseek catalog: %v", models)
	}

	if got := r.ListModels(providers.ID("grok")); got != nil {
		t.Fatalf("expected nil catalog for unknown provider, got %v", got)
	}
}

func TestCatalogsIncludeAllProviders(t *testing.T) {
	r := New(Options{})
	catalogs := r.Catalogs()
	for _, id := range []providers.ID{providers.OpenAI, providers.Claude, providers.Gemini, providers.DeepSeek} {
		if len(catalogs[string(id)]) == 0 {
			t.Fatalf("catalog missing for %s", id)
		}
	}
	if len(catalogs) != 4 {
		t.Fatalf("expected 4 catalogs, got %d", len(catalogs))
	}
}

func TestBaseURLOverride(t *testing.T) {
	r := New(Options{
		Gemini: Upstream{APIKey: "g", BaseURL: "http://127.0.0.1:9999/v1beta"},
	})
	entry, _ := r.Lookup(providers.Gemini)
	if entry.BaseURL != "http://127.0.0.1:9999/v1beta" {
		t.Fatalf("base url override not applied: %q", entry.BaseURL)
	}

	entry, _ = r.Lookup(providers.OpenAI)
	if entry.BaseURL != defaultOpenAIBaseURL {
		t.Fatalf("expected default base url, got %q", entry.BaseURL)
	}
}
