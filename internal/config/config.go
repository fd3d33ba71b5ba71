package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/reel/internal/generation"
	"github.com/jackzampolin/reel/internal/providers"
)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v         *viper.Viper
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	v := cm.v
	defaults := DefaultConfig()
	v.SetDefault("llm_providers", defaults.LLMProviders)
	v.SetDefault("image_providers", defaults.ImageProviders)
	v.SetDefault("defaults.llm_provider", defaults.Defaults.LLMProvider)
	v.SetDefault("defaults.llm_model", defaults.Defaults.LLMModel)
	v.SetDefault("defaults.image_provider", defaults.Defaults.ImageProvider)
	v.SetDefault("generation.poll_interval", defaults.Generation.PollInterval)
	v.SetDefault("generation.max_attempts", defaults.Generation.MaxAttempts)
	v.SetDefault("generation.backoff", defaults.Generation.Backoff)
	v.SetDefault("generation.max_backoff", defaults.Generation.MaxBackoff)
	v.SetDefault("generation.throttle_story", defaults.Generation.ThrottleStory)
	v.SetDefault("generation.batch_concurrency", defaults.Generation.BatchConcurrency)
	v.SetDefault("generation.job_ttl", defaults.Generation.JobTTL)
	v.SetDefault("defra.container_name", defaults.Defra.ContainerName)
	v.SetDefault("defra.image", defaults.Defra.Image)
	v.SetDefault("defra.port", defaults.Defra.Port)
	v.SetDefault("defra.url", defaults.Defra.URL)

	// Environment variables with REEL_ prefix, e.g. REEL_GENERATION_MAX_ATTEMPTS
	v.SetEnvPrefix("REEL")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.reel")
	}

	// Try to read config file (not required)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFile returns the file the config was read from, if any.
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. An invalid file is
// ignored and the previous config stays active.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

var envKeyReplacer = strings.NewReplacer(".", "_")

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// Validate checks values that would otherwise fail later at request time.
func (c *Config) Validate() error {
	g := c.Generation
	for name, s := range map[string]string{"poll_interval": g.PollInterval, "max_backoff": g.MaxBackoff, "job_ttl": g.JobTTL} {
		if s == "" {
			continue
		}
		if _, err := time.ParseDuration(s); err != nil {
			return fmt.Errorf("generation.%s: %w", name, err)
		}
	}
	if g.MaxAttempts < 0 {
		return fmt.Errorf("generation.max_attempts must not be negative")
	}
	switch g.Backoff {
	case "", "constant", "exponential":
	default:
		return fmt.Errorf("generation.backoff: unknown backoff %q", g.Backoff)
	}
	return nil
}

// GenerationPolicy returns the polling policy. Unset or invalid values fall
// back to the generation defaults.
func (c *Config) GenerationPolicy() generation.Policy {
	g := c.Generation
	return generation.Policy{
		Interval:    parseDuration(g.PollInterval),
		MaxAttempts: g.MaxAttempts,
		Backoff:     generation.BackoffByName(g.Backoff, parseDuration(g.MaxBackoff)),
	}
}

// JobTTL returns how long finished jobs stay queryable.
func (c *Config) JobTTL() time.Duration {
	return parseDuration(c.Generation.JobTTL)
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// ToProviderRegistryConfig converts the config to a format suitable for providers.Registry.
// It resolves all ${ENV_VAR} references in API keys.
func (c *Config) ToProviderRegistryConfig() providers.RegistryConfig {
	cfg := providers.RegistryConfig{
		LLMProviders:   make(map[string]providers.LLMProviderConfig),
		ImageProviders: make(map[string]providers.ImageProviderConfig),
	}

	for name, llm := range c.LLMProviders {
		cfg.LLMProviders[name] = providers.LLMProviderConfig{
			Type:    llm.Type,
			Model:   llm.Model,
			APIKey:  ResolveEnvVars(llm.APIKey),
			BaseURL: llm.BaseURL,
			Enabled: llm.Enabled,
		}
	}

	for name, img := range c.ImageProviders {
		cfg.ImageProviders[name] = providers.ImageProviderConfig{
			Type:      img.Type,
			APIKey:    ResolveEnvVars(img.APIKey),
			BaseURL:   img.BaseURL,
			RateLimit: img.RateLimit,
			Enabled:   img.Enabled,
		}
	}

	return cfg
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Reel configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell or a .env file: OPENAI_API_KEY=xxx LEONARDO_API_KEY=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
