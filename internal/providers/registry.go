package providers

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry holds the configured LLM clients and image providers.
// It is rebuilt from config on reload and is safe for concurrent use.
type Registry struct {
	mu             sync.RWMutex
	llmClients     map[string]LLMClient
	imageProviders map[string]ImageProvider
	logger         *slog.Logger
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		llmClients:     make(map[string]LLMClient),
		imageProviders: make(map[string]ImageProvider),
		logger:         slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// RegisterLLM registers an LLM client by name.
func (r *Registry) RegisterLLM(name string, client LLMClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llmClients[name] = client
	r.logger.Info("registered LLM client", "name", name)
}

// RegisterImage registers an image provider by name.
func (r *Registry) RegisterImage(name string, provider ImageProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.imageProviders[name] = provider
	r.logger.Info("registered image provider", "name", name)
}

// GetLLM returns an LLM client by name.
func (r *Registry) GetLLM(name string) (LLMClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.llmClients[name]
	if !ok {
		return nil, fmt.Errorf("LLM client not found: %s", name)
	}
	return client, nil
}

// GetImage returns an image provider by name.
func (r *Registry) GetImage(name string) (ImageProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.imageProviders[name]
	if !ok {
		return nil, fmt.Errorf("image provider not found: %s", name)
	}
	return provider, nil
}

// ListLLM returns all registered LLM client names, sorted.
func (r *Registry) ListLLM() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.llmClients)
}

// ListImage returns all registered image provider names, sorted.
func (r *Registry) ListImage() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.imageProviders)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegistryConfig defines the providers to instantiate from config.
type RegistryConfig struct {
	LLMProviders   map[string]LLMProviderConfig
	ImageProviders map[string]ImageProviderConfig
}

// LLMProviderConfig is a configured LLM with its API key already resolved.
type LLMProviderConfig struct {
	Type    string // "openai"
	Model   string
	APIKey  string
	BaseURL string
	Enabled bool
}

// ImageProviderConfig is a configured image provider with its API key already resolved.
type ImageProviderConfig struct {
	Type      string // "leonardo"
	APIKey    string
	BaseURL   string
	RateLimit float64 // Requests per second
	Enabled   bool
}

// NewRegistryFromConfig creates a registry with providers based on configuration.
// Only enabled providers with an API key are registered.
func NewRegistryFromConfig(cfg RegistryConfig) *Registry {
	r := NewRegistry()
	r.Reload(cfg)
	return r
}

// Reload replaces the registry contents from cfg. Providers whose settings
// did not change keep their existing client, and with it their rate limiter.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	llm := make(map[string]LLMClient)
	for name, pc := range cfg.LLMProviders {
		if !pc.Enabled || pc.APIKey == "" {
			continue
		}
		if existing, ok := r.llmClients[name]; ok && !needsLLMUpdate(existing, pc) {
			llm[name] = existing
			continue
		}
		if client := createLLMClient(pc); client != nil {
			llm[name] = client
			r.logger.Info("registered LLM client", "name", name, "type", pc.Type)
		} else {
			r.logger.Warn("unknown LLM provider type", "name", name, "type", pc.Type)
		}
	}

	images := make(map[string]ImageProvider)
	for name, pc := range cfg.ImageProviders {
		if !pc.Enabled || pc.APIKey == "" {
			continue
		}
		if existing, ok := r.imageProviders[name]; ok && !needsImageUpdate(existing, pc) {
			images[name] = existing
			continue
		}
		if provider := createImageProvider(pc); provider != nil {
			images[name] = provider
			r.logger.Info("registered image provider", "name", name, "type", pc.Type)
		} else {
			r.logger.Warn("unknown image provider type", "name", name, "type", pc.Type)
		}
	}

	for name := range r.llmClients {
		if _, ok := llm[name]; !ok {
			r.logger.Info("unregistered LLM client", "name", name)
		}
	}
	for name := range r.imageProviders {
		if _, ok := images[name]; !ok {
			r.logger.Info("unregistered image provider", "name", name)
		}
	}

	r.llmClients = llm
	r.imageProviders = images
}

func createLLMClient(cfg LLMProviderConfig) LLMClient {
	switch cfg.Type {
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:       cfg.APIKey,
			DefaultModel: cfg.Model,
			BaseURL:      cfg.BaseURL,
		})
	default:
		return nil
	}
}

func createImageProvider(cfg ImageProviderConfig) ImageProvider {
	switch cfg.Type {
	case "leonardo":
		return NewLeonardoClient(LeonardoConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			RateLimit: cfg.RateLimit,
		})
	default:
		return nil
	}
}

func needsLLMUpdate(client LLMClient, cfg LLMProviderConfig) bool {
	switch c := client.(type) {
	case *OpenAIClient:
		model := cfg.Model
		if model == "" {
			model = openAIDefaultModel
		}
		return cfg.Type != "openai" || c.apiKey != cfg.APIKey || c.defaultModel != model
	default:
		return true
	}
}

func needsImageUpdate(provider ImageProvider, cfg ImageProviderConfig) bool {
	switch p := provider.(type) {
	case *LeonardoClient:
		rps := cfg.RateLimit
		if rps <= 0 {
			rps = leonardoDefaultRateLimit
		}
		return cfg.Type != "leonardo" || p.apiKey != cfg.APIKey || p.rateLimit != rps
	default:
		return true
	}
}
