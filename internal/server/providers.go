package server

import (
	"log/slog"

	"github.com/jackzampolin/reel/internal/config"
	"github.com/jackzampolin/reel/internal/prompts"
	"github.com/jackzampolin/reel/internal/providers"
)

// registryProviders resolves the default LLM and image provider from the
// registry on every call, so a config reload applies to the next request.
type registryProviders struct {
	registry *providers.Registry
	config   func() *config.Config
	logger   *slog.Logger
}

func (p *registryProviders) Composer() (*prompts.Composer, error) {
	cfg := p.config()
	llm, err := p.registry.GetLLM(cfg.Defaults.LLMProvider)
	if err != nil {
		return nil, err
	}
	return prompts.NewComposer(prompts.ComposerConfig{
		LLM:    llm,
		Model:  cfg.Defaults.LLMModel,
		Logger: p.logger,
	}), nil
}

func (p *registryProviders) ImageProvider() (providers.ImageProvider, error) {
	return p.registry.GetImage(p.config().Defaults.ImageProvider)
}
