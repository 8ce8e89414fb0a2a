package openai

import (
	"context"

	"github.com/tjfontaine/markdown-notes/internal/config"
	"github.com/tjfontaine/markdown-notes/internal/domain"
	"github.com/tjfontaine/markdown-notes/internal/provider"
)

// RegisterProviderFactories registers the OpenAI and Groq factories.
func RegisterProviderFactories() {
	for _, f := range []provider.ProviderFactory{
		{
			ID:             domain.ProviderOpenAI,
			Description:    "OpenAI chat completions API",
			RequiresAPIKey: true,
			Create:         factoryFor(domain.ProviderOpenAI),
		},
		{
			ID:             domain.ProviderGroq,
			Description:    "Groq OpenAI-compatible chat completions API",
			RequiresAPIKey: true,
			Create:         factoryFor(domain.ProviderGroq),
		},
	} {
		if provider.IsRegistered(f.ID) {
			continue
		}
		provider.RegisterFactory(f)
	}
}

func factoryFor(id domain.ProviderID) func(context.Context, config.ProviderConfig, provider.Options) (domain.Provider, error) {
	return func(_ context.Context, cfg config.ProviderConfig, opts provider.Options) (domain.Provider, error) {
		return CreateFromConfig(id, cfg, opts), nil
	}
}

// CreateFromConfig creates the adapter for id from configuration.
func CreateFromConfig(id domain.ProviderID, cfg config.ProviderConfig, opts provider.Options) *Provider {
	popts := []ProviderOption{
		WithTemperature(cfg.Temperature),
		WithMaxTokens(cfg.MaxTokens),
		WithCounter(opts.Counter),
	}
	if cfg.BaseURL != "" {
		popts = append(popts, WithBaseURL(cfg.BaseURL))
	}
	if opts.HTTPClient != nil {
		popts = append(popts, WithHTTPClient(opts.HTTPClient))
	}
	return New(id, cfg.APIKey, cfg.Model, popts...)
}
