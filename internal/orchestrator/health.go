package orchestrator

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tjfontaine/markdown-notes/internal/domain"
)

const (
	// probeText is the fixed autocomplete input used by health probes.
	probeText     = "Hello"
	previewLength = 50
)

// ProviderInfo describes one registered provider.
type ProviderInfo struct {
	ID          domain.ProviderID `json:"id"`
	Model       string            `json:"model"`
	PayloadForm string            `json:"payload_form"`
}

// HealthReport summarizes a HealthCheck run.
type HealthReport struct {
	Providers           map[domain.ProviderID]domain.ProviderHealth `json:"providers"`
	HealthyCount        int                                         `json:"healthy_count"`
	TotalCount          int                                         `json:"total_count"`
	AvailableOperations []domain.OperationKind                      `json:"available_operations"`
}

// AvailableProviders lists registered providers in default candidate order.
func (o *Orchestrator) AvailableProviders() []ProviderInfo {
	order := o.CandidateOrder("")
	infos := make([]ProviderInfo, len(order))
	for i, id := range order {
		p := o.providers[id]
		infos[i] = ProviderInfo{ID: id, Model: p.Model(), PayloadForm: p.PayloadForm().String()}
	}
	return infos
}

// HealthCheck probes every registered provider directly with a fixed
// autocomplete request. Probes run concurrently and are isolated: one
// provider failing never affects another's entry. Probes bypass the fallback
// chain, the usage recorder and the token counters. With no providers the
// result is an empty map.
func (o *Orchestrator) HealthCheck(ctx context.Context) map[domain.ProviderID]domain.ProviderHealth {
	results := make(map[domain.ProviderID]domain.ProviderHealth, len(o.registered))
	if len(o.registered) == 0 {
		return results
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, id := range o.registered {
		p := o.providers[id]
		g.Go(func() error {
			h := o.probe(ctx, p)
			mu.Lock()
			results[p.ID()] = h
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Health runs HealthCheck and summarizes it.
func (o *Orchestrator) Health(ctx context.Context) HealthReport {
	results := o.HealthCheck(ctx)
	report := HealthReport{
		Providers:           results,
		TotalCount:          len(results),
		AvailableOperations: append([]domain.OperationKind(nil), domain.Operations...),
	}
	for _, h := range results {
		if h.Healthy {
			report.HealthyCount++
		}
	}
	return report
}

func (o *Orchestrator) probe(ctx context.Context, p domain.Provider) (health domain.ProviderHealth) {
	health.Model = p.Model()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("health probe panicked", slog.String("provider", string(p.ID())), slog.Any("panic", r))
			health = domain.ProviderHealth{Model: p.Model(), Error: "probe panicked"}
		}
	}()

	payload, err := o.renderer.Render(domain.OperationAutocomplete, map[string]string{domain.ArgText: probeText}, p.PayloadForm())
	if err != nil {
		health.Error = err.Error()
		return health
	}

	if o.candidateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.candidateTimeout)
		defer cancel()
	}

	gen, err := p.Generate(ctx, payload)
	if err != nil {
		health.Error = err.Error()
		o.logger.Warn("health probe failed", slog.String("provider", string(p.ID())), slog.String("error", err.Error()))
		return health
	}
	if gen == nil {
		health.Error = "adapter returned no result"
		return health
	}

	health.Healthy = true
	health.ResponsePreview = preview(gen.Text)
	return health
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLength {
		return s
	}
	return string(r[:previewLength]) + "..."
}
