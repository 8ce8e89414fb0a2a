package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tjfontaine/markdown-notes/internal/config"
	"github.com/tjfontaine/markdown-notes/internal/domain"
)

// BuildProviders creates an adapter for every configured provider, in the
// configured priority order. Providers that are disabled, lack a required API
// key, or report ErrUnavailable are skipped; that is not an error. Any other
// factory failure aborts startup.
func BuildProviders(ctx context.Context, cfg config.AIConfig, opts Options) ([]domain.Provider, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	var providers []domain.Provider
	for _, id := range cfg.PriorityOrder() {
		pc := cfg.Provider(id)
		logger := opts.Logger.With(slog.String("provider", string(id)))

		if pc.Disabled {
			logger.Info("provider disabled by configuration")
			continue
		}
		factory, ok := GetFactory(id)
		if !ok {
			logger.Debug("no factory registered for provider")
			continue
		}
		if factory.RequiresAPIKey && strings.TrimSpace(pc.APIKey) == "" {
			logger.Info("provider not configured, skipping")
			continue
		}

		p, err := factory.Create(ctx, pc, opts)
		if errors.Is(err, ErrUnavailable) {
			logger.Info("provider unreachable, skipping", slog.String("error", err.Error()))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create provider %s: %w", id, err)
		}

		logger.Info("provider registered", slog.String("model", p.Model()))
		providers = append(providers, p)
	}
	return providers, nil
}
