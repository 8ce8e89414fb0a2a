package orchestrator

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/markdown-notes/internal/domain"
)

// Renderer turns an operation and its arguments into a provider payload.
type Renderer interface {
	Render(op domain.OperationKind, args map[string]string, form domain.PayloadForm) (domain.Payload, error)
	Validate(op domain.OperationKind, args map[string]string) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPriority sets the fallback order. Registered providers missing from
// order are tried last, in the order they were passed to New.
func WithPriority(order []domain.ProviderID) Option {
	return func(o *Orchestrator) {
		o.priority = append([]domain.ProviderID(nil), order...)
	}
}

// WithCandidateTimeout bounds each provider attempt. Zero disables the bound.
func WithCandidateTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.candidateTimeout = d
	}
}

// WithRecorder sets the usage recorder.
func WithRecorder(r domain.UsageRecorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithRenderer replaces the default prompt registry.
func WithRenderer(r Renderer) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.renderer = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracerProvider sets the tracer provider used for run and attempt spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithClock overrides time.Now for usage timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}
