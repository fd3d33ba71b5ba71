package providers

import (
	"sync"
	"testing"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	llm := NewMockClient(`{}`)
	img := NewMockImageProvider()

	r.RegisterLLM("llm", llm)
	r.RegisterImage("img", img)

	if got, err := r.GetLLM("llm"); err != nil || got != llm {
		t.Errorf("GetLLM() = %v, %v", got, err)
	}
	if got, err := r.GetImage("img"); err != nil || got != img {
		t.Errorf("GetImage() = %v, %v", got, err)
	}
	if _, err := r.GetLLM("missing"); err == nil {
		t.Error("expected error for missing LLM")
	}
	if _, err := r.GetImage("missing"); err == nil {
		t.Error("expected error for missing image provider")
	}
}

func TestNewRegistryFromConfig(t *testing.T) {
	r := NewRegistryFromConfig(RegistryConfig{
		LLMProviders: map[string]LLMProviderConfig{
			"openai":   {Type: "openai", APIKey: "k", Enabled: true},
			"disabled": {Type: "openai", APIKey: "k", Enabled: false},
			"nokey":    {Type: "openai", Enabled: true},
			"unknown":  {Type: "nope", APIKey: "k", Enabled: true},
		},
		ImageProviders: map[string]ImageProviderConfig{
			"leonardo": {Type: "leonardo", APIKey: "k", Enabled: true},
		},
	})

	if got := r.ListLLM(); len(got) != 1 || got[0] != "openai" {
		t.Errorf("ListLLM() = %v", got)
	}
	if got := r.ListImage(); len(got) != 1 || got[0] != "leonardo" {
		t.Errorf("ListImage() = %v", got)
	}
}

func TestRegistry_Reload(t *testing.T) {
	cfg := RegistryConfig{
		LLMProviders:   map[string]LLMProviderConfig{"openai": {Type: "openai", APIKey: "k1", Enabled: true}},
		ImageProviders: map[string]ImageProviderConfig{"leonardo": {Type: "leonardo", APIKey: "k1", Enabled: true}},
	}
	r := NewRegistryFromConfig(cfg)
	before, _ := r.GetImage("leonardo")
	beforeLLM, _ := r.GetLLM("openai")

	// Unchanged config keeps the same clients.
	r.Reload(cfg)
	if after, _ := r.GetImage("leonardo"); after != before {
		t.Error("unchanged image provider was recreated")
	}
	if after, _ := r.GetLLM("openai"); after != beforeLLM {
		t.Error("unchanged LLM client was recreated")
	}

	// Changed key recreates.
	cfg.ImageProviders["leonardo"] = ImageProviderConfig{Type: "leonardo", APIKey: "k2", Enabled: true}
	r.Reload(cfg)
	if after, _ := r.GetImage("leonardo"); after == before {
		t.Error("changed image provider was not recreated")
	}

	// Removed provider is dropped.
	delete(cfg.LLMProviders, "openai")
	r.Reload(cfg)
	if _, err := r.GetLLM("openai"); err == nil {
		t.Error("removed LLM still registered")
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.RegisterImage("img", NewMockImageProvider())
		}()
		go func() {
			defer wg.Done()
			r.GetImage("img")
			r.ListImage()
		}()
	}
	wg.Wait()
}
