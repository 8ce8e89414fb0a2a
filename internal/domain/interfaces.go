package domain

import (
	"context"
)

// Provider defines the interface for text-generation backends.
// Response-shape extraction is the adapter's concern; callers only ever see a
// trimmed Generation.
type Provider interface {
	ID() ProviderID

	// Model returns the upstream model identifier.
	Model() string

	// PayloadForm reports which prompt shape Generate expects.
	PayloadForm() PayloadForm

	// Generate submits a rendered prompt and returns the generated text.
	// Failures are reported as *ProviderError.
	Generate(ctx context.Context, payload Payload) (*Generation, error)
}

// TextCounter counts tokens for a plain string under a given model.
type TextCounter interface {
	CountText(model, text string) int
}

// UsageRecorder accepts one record per provider attempt. Record must not block
// on slow storage and never reports failure to the caller.
type UsageRecorder interface {
	Record(ctx context.Context, rec UsageRecord)
}
