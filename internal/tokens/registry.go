// Package tokens estimates token counts for adapters whose upstream does not
// report usage, and keeps the orchestrator's cumulative usage counters.
package tokens

import (
	"strings"

	"github.com/tjfontaine/markdown-notes/internal/domain"
)

// Counter counts tokens in plain text for a model family.
type Counter interface {
	SupportsModel(model string) bool
	Count(model, text string) (int, error)
}

// Registry picks the first registered Counter that supports a model and
// falls back to the character Estimator otherwise. It implements
// domain.TextCounter.
type Registry struct {
	counters []Counter
	fallback Counter
}

// NewRegistry creates a registry with only the fallback estimator.
func NewRegistry() *Registry {
	return &Registry{fallback: NewEstimator()}
}

// NewDefaultRegistry creates a registry with tiktoken registered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewTiktokenCounter())
	return r
}

// Register adds a counter to the registry.
func (r *Registry) Register(counter Counter) {
	r.counters = append(r.counters, counter)
}

// SetFallback sets the fallback counter for unsupported models.
func (r *Registry) SetFallback(counter Counter) {
	r.fallback = counter
}

// GetCounter returns the appropriate counter for a model.
func (r *Registry) GetCounter(model string) Counter {
	for _, counter := range r.counters {
		if counter.SupportsModel(model) {
			return counter
		}
	}
	return r.fallback
}

// CountText implements domain.TextCounter. A failing counter degrades to the
// fallback rather than reporting zero.
func (r *Registry) CountText(model, text string) int {
	counter := r.GetCounter(model)
	n, err := counter.Count(model, text)
	if err != nil && counter != r.fallback && r.fallback != nil {
		n, _ = r.fallback.Count(model, text)
	}
	return n
}

// CountPayload estimates the prompt tokens of a rendered payload, adding the
// usual per-message framing overhead for chat payloads.
func (r *Registry) CountPayload(model string, payload domain.Payload) int {
	if payload.Form == domain.FormText {
		return r.CountText(model, payload.Text)
	}
	const tokensPerMessage = 4 // framing + role
	total := 0
	for _, m := range payload.Messages {
		total += tokensPerMessage + r.CountText(model, m.Content)
	}
	return total + 3 // assistant priming
}

// Estimator provides token count estimation based on character length.
type Estimator struct {
	// CharsPerToken is the average characters per token (default: 4)
	CharsPerToken float64
}

// NewEstimator creates a new token estimator.
func NewEstimator() *Estimator {
	return &Estimator{
		CharsPerToken: 4.0,
	}
}

// Count estimates the token count; it never fails.
func (e *Estimator) Count(model, text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	n := int(float64(len(text)) / e.CharsPerToken)
	if n == 0 {
		n = 1
	}
	return n, nil
}

// SupportsModel returns true - estimator supports all models as a fallback.
func (e *Estimator) SupportsModel(model string) bool {
	return true
}

// ModelMatcher helps match model names to provider patterns.
type ModelMatcher struct {
	prefixes []string
	exact    []string
}

// NewModelMatcher creates a new model matcher.
func NewModelMatcher(prefixes, exact []string) *ModelMatcher {
	return &ModelMatcher{
		prefixes: prefixes,
		exact:    exact,
	}
}

// Matches returns true if the model matches any pattern.
func (m *ModelMatcher) Matches(model string) bool {
	for _, e := range m.exact {
		if model == e {
			return true
		}
	}

	for _, p := range m.prefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}

	return false
}
