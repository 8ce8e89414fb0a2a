// Package orchestrator implements the fallback chain over registered
// text-generation providers: it orders candidates, renders each candidate's
// prompt in the form it accepts, stops at the first success, and reports
// every attempt to the usage recorder.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/markdown-notes/internal/domain"
	"github.com/tjfontaine/markdown-notes/internal/prompt"
	"github.com/tjfontaine/markdown-notes/internal/telemetry"
	"github.com/tjfontaine/markdown-notes/internal/tokens"
)

// Orchestrator is safe for concurrent use. The provider set is fixed at
// construction; only the token counters change afterwards.
type Orchestrator struct {
	providers  map[domain.ProviderID]domain.Provider
	registered []domain.ProviderID
	priority   []domain.ProviderID

	renderer         Renderer
	recorder         domain.UsageRecorder
	candidateTimeout time.Duration
	logger           *slog.Logger
	tracerProvider   trace.TracerProvider
	tracer           trace.Tracer
	now              func() time.Time

	usage tokens.Accumulator
}

// New creates an orchestrator over providers. A provider id that appears
// twice keeps its first adapter.
func New(providers []domain.Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		providers: make(map[domain.ProviderID]domain.Provider, len(providers)),
		priority:  append([]domain.ProviderID(nil), domain.KnownProviders...),
		renderer:  prompt.NewDefaultRegistry(),
		recorder:  telemetry.NopRecorder{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
	o.tracer = o.tracerProvider.Tracer(telemetry.TracerName)

	for _, p := range providers {
		if p == nil {
			continue
		}
		if _, dup := o.providers[p.ID()]; dup {
			o.logger.Warn("duplicate provider ignored", slog.String("provider", string(p.ID())))
			continue
		}
		o.providers[p.ID()] = p
		o.registered = append(o.registered, p.ID())
	}
	return o
}

// IsRegistered reports whether id has an adapter.
func (o *Orchestrator) IsRegistered(id domain.ProviderID) bool {
	_, ok := o.providers[id]
	return ok
}

// CandidateOrder returns the ordered candidate list for a request: the
// preferred provider first when it is registered, then the remaining
// registered providers in priority order.
func (o *Orchestrator) CandidateOrder(preferred domain.ProviderID) []domain.ProviderID {
	order := make([]domain.ProviderID, 0, len(o.registered))
	placed := make(map[domain.ProviderID]bool, len(o.registered))
	add := func(id domain.ProviderID) {
		if placed[id] || !o.IsRegistered(id) {
			return
		}
		placed[id] = true
		order = append(order, id)
	}

	if preferred != "" {
		add(preferred)
	}
	for _, id := range o.priority {
		add(id)
	}
	for _, id := range o.registered {
		add(id)
	}
	return order
}

// Run executes req through the fallback chain.
//
// It returns *domain.ConfigurationError when no provider is registered,
// *domain.TemplateError or *domain.MissingArgumentError for unrenderable
// requests, the wrapped context error when ctx ends mid-chain, and
// *domain.AllProvidersFailedError when every candidate failed.
func (o *Orchestrator) Run(ctx context.Context, req domain.FallbackRequest) (*domain.FallbackResult, error) {
	if len(o.registered) == 0 {
		return nil, &domain.ConfigurationError{Reason: "no AI providers are configured"}
	}
	if err := o.renderer.Validate(req.Operation, req.Args); err != nil {
		return nil, err
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.Run", trace.WithAttributes(
		attribute.String("ai.operation", string(req.Operation)),
		attribute.String("ai.preferred_provider", string(req.Preferred)),
	))
	defer span.End()

	if req.Preferred != "" && !o.IsRegistered(req.Preferred) {
		o.logger.Debug("preferred provider not registered",
			slog.String("provider", string(req.Preferred)),
			slog.String("operation", string(req.Operation)),
		)
	}

	candidates := o.CandidateOrder(req.Preferred)
	attempts := make([]domain.Attempt, 0, len(candidates))
	var lastErr error

	for i, id := range candidates {
		p := o.providers[id]

		payload, err := o.renderer.Render(req.Operation, req.Args, p.PayloadForm())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "render failed")
			return nil, err
		}

		gen, attempt := o.attempt(ctx, req, p, payload, i)
		attempts = append(attempts, attempt)

		if attempt.Err == nil {
			o.usage.Add(gen.Usage)
			o.logger.Info("ai operation completed",
				slog.String("operation", string(req.Operation)),
				slog.String("provider", string(id)),
				slog.Int("attempt", i+1),
				slog.Duration("duration", attempt.Duration),
			)
			span.SetAttributes(attribute.String("ai.provider_used", string(id)))
			span.SetStatus(codes.Ok, "")
			return &domain.FallbackResult{
				Text:         gen.Text,
				ProviderUsed: id,
				Model:        gen.Model,
				TokenUsage:   o.usage.Snapshot(),
				Attempts:     attempts,
			}, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			span.RecordError(ctxErr)
			span.SetStatus(codes.Error, "cancelled")
			return nil, fmt.Errorf("%s cancelled after %d attempt(s): %w", req.Operation, len(attempts), ctxErr)
		}

		lastErr = attempt.Err
		o.logger.Warn("ai provider failed, trying next candidate",
			slog.String("operation", string(req.Operation)),
			slog.String("provider", string(id)),
			slog.Int("attempt", i+1),
			slog.Int("remaining", len(candidates)-i-1),
			slog.String("error", attempt.Err.Error()),
		)
	}

	err := &domain.AllProvidersFailedError{
		Operation: req.Operation,
		Attempts:  attempts,
		LastCause: lastErr,
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "all providers failed")
	o.logger.Error("all ai providers failed",
		slog.String("operation", string(req.Operation)),
		slog.Int("attempts", len(attempts)),
		slog.String("error", err.Error()),
	)
	return nil, err
}

// attempt invokes one candidate under the per-candidate timeout and records
// the outcome. Non-provider errors are normalized to *domain.ProviderError.
func (o *Orchestrator) attempt(ctx context.Context, req domain.FallbackRequest, p domain.Provider, payload domain.Payload, index int) (*domain.Generation, domain.Attempt) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.attempt", trace.WithAttributes(
		attribute.String("ai.operation", string(req.Operation)),
		attribute.String("ai.provider", string(p.ID())),
		attribute.String("ai.model", p.Model()),
		attribute.String("ai.payload_form", p.PayloadForm().String()),
		attribute.Int("ai.attempt", index+1),
	))
	defer span.End()

	callCtx := ctx
	if o.candidateTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.candidateTimeout)
		defer cancel()
	}

	start := time.Now()
	gen, err := p.Generate(callCtx, payload)
	elapsed := time.Since(start)

	if err == nil && gen == nil {
		err = domain.NewProviderError(p.ID(), domain.ProviderErrorMalformed, errors.New("adapter returned no result"))
	}
	if err != nil {
		err = normalizeError(p.ID(), err, callCtx, ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	rec := domain.UsageRecord{
		UserID:    req.UserID,
		Operation: req.Operation,
		Provider:  p.ID(),
		Model:     p.Model(),
		Elapsed:   elapsed,
		Success:   err == nil,
		Timestamp: o.now(),
	}
	if err != nil {
		rec.ErrorMessage = err.Error()
	} else {
		rec.Model = gen.Model
		rec.PromptTokens = gen.Usage.PromptTokens
		rec.CompletionTokens = gen.Usage.CompletionTokens
		rec.TotalTokens = gen.Usage.TotalTokens
		span.SetAttributes(attribute.Int64("ai.total_tokens", gen.Usage.TotalTokens))
	}
	o.recorder.Record(ctx, rec)

	return gen, domain.Attempt{Provider: p.ID(), Duration: elapsed, Err: err}
}

// normalizeError makes sure a candidate failure is a *domain.ProviderError and
// reports a per-candidate deadline as a timeout.
func normalizeError(id domain.ProviderID, err error, callCtx, parent context.Context) error {
	var perr *domain.ProviderError
	if !errors.As(err, &perr) {
		kind := domain.ProviderErrorUpstream
		if errors.Is(err, context.DeadlineExceeded) {
			kind = domain.ProviderErrorTimeout
		}
		perr = domain.NewProviderError(id, kind, err)
	}
	if perr.Kind != domain.ProviderErrorTimeout &&
		errors.Is(callCtx.Err(), context.DeadlineExceeded) && parent.Err() == nil {
		perr = &domain.ProviderError{
			Provider:   id,
			Kind:       domain.ProviderErrorTimeout,
			StatusCode: perr.StatusCode,
			Cause:      err,
		}
	}
	return perr
}

// TokenUsage returns the cumulative token counters.
func (o *Orchestrator) TokenUsage() domain.Usage {
	return o.usage.Snapshot()
}

// ResetTokenUsage zeroes the cumulative token counters.
func (o *Orchestrator) ResetTokenUsage() {
	o.usage.Reset()
}
