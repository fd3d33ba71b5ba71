package config

// Config holds reel configuration.
// Read from ./config.yaml or ~/.reel/config.yaml, overridable with REEL_* env vars.
type Config struct {
	LLMProviders   map[string]LLMProviderCfg   `mapstructure:"llm_providers" yaml:"llm_providers"`
	ImageProviders map[string]ImageProviderCfg `mapstructure:"image_providers" yaml:"image_providers"`
	Defaults       DefaultsCfg                 `mapstructure:"defaults" yaml:"defaults"`
	Generation     GenerationCfg               `mapstructure:"generation" yaml:"generation"`
	Defra          DefraConfig                 `mapstructure:"defra" yaml:"defra"`
}

// LLMProviderCfg configures a language model provider.
type LLMProviderCfg struct {
	Type    string `mapstructure:"type" yaml:"type"`         // "openai"
	Model   string `mapstructure:"model" yaml:"model"`       // Model name
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`   // API key (supports ${ENV_VAR} syntax)
	BaseURL string `mapstructure:"base_url" yaml:"base_url"` // Optional, for compatible endpoints
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
}

// ImageProviderCfg configures an image generation provider.
type ImageProviderCfg struct {
	Type      string  `mapstructure:"type" yaml:"type"`             // "leonardo"
	APIKey    string  `mapstructure:"api_key" yaml:"api_key"`       // API key (supports ${ENV_VAR} syntax)
	BaseURL   string  `mapstructure:"base_url" yaml:"base_url"`     // Optional
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per second
	Enabled   bool    `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg selects the providers used by the server.
type DefaultsCfg struct {
	LLMProvider   string `mapstructure:"llm_provider" yaml:"llm_provider"`
	LLMModel      string `mapstructure:"llm_model" yaml:"llm_model"` // Overrides the provider model if set
	ImageProvider string `mapstructure:"image_provider" yaml:"image_provider"`
}

// GenerationCfg tunes image generation.
type GenerationCfg struct {
	// PollInterval is the wait before each status check (Go duration, default 5s).
	PollInterval string `mapstructure:"poll_interval" yaml:"poll_interval"`
	// MaxAttempts is the status check budget per job (default 20).
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
	// Backoff is "constant" or "exponential".
	Backoff string `mapstructure:"backoff" yaml:"backoff"`
	// MaxBackoff caps exponential waits (Go duration).
	MaxBackoff string `mapstructure:"max_backoff" yaml:"max_backoff"`
	// ThrottleStory allows only one generating scene per story at a time.
	ThrottleStory bool `mapstructure:"throttle_story" yaml:"throttle_story"`
	// BatchConcurrency bounds generate-all runs.
	BatchConcurrency int `mapstructure:"batch_concurrency" yaml:"batch_concurrency"`
	// JobTTL is how long finished jobs stay queryable (Go duration, default 30m).
	JobTTL string `mapstructure:"job_ttl" yaml:"job_ttl"`
}

// DefraConfig holds DefraDB container configuration.
type DefraConfig struct {
	// ContainerName is the Docker container name (default: reel-defra)
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	// Image is the Docker image to use (default: sourcenetwork/defradb:latest)
	Image string `mapstructure:"image" yaml:"image"`
	// Port is the host port to bind (default: 9181)
	Port string `mapstructure:"port" yaml:"port"`
	// URL, if set, points at an existing DefraDB and no container is managed.
	URL string `mapstructure:"url" yaml:"url"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLMProviders: map[string]LLMProviderCfg{
			"openai": {
				Type:    "openai",
				Model:   "gpt-4o-mini",
				APIKey:  "${OPENAI_API_KEY}",
				Enabled: true,
			},
		},
		ImageProviders: map[string]ImageProviderCfg{
			"leonardo": {
				Type:      "leonardo",
				APIKey:    "${LEONARDO_API_KEY}",
				RateLimit: 2.0,
				Enabled:   true,
			},
		},
		Defaults: DefaultsCfg{
			LLMProvider:   "openai",
			ImageProvider: "leonardo",
		},
		Generation: GenerationCfg{
			PollInterval:     "5s",
			MaxAttempts:      20,
			Backoff:          "constant",
			MaxBackoff:       "30s",
			ThrottleStory:    false,
			BatchConcurrency: 3,
			JobTTL:           "30m",
		},
		Defra: DefraConfig{
			ContainerName: "reel-defra",
			Image:         "sourcenetwork/defradb:latest",
			Port:          "9181",
		},
	}
}
