package orchestrator

import (
	"context"

	"github.com/tjfontaine/markdown-notes/internal/domain"
)

// Autocomplete continues text.
func (o *Orchestrator) Autocomplete(ctx context.Context, text string, preferred domain.ProviderID, userID int64) (*domain.FallbackResult, error) {
	return o.run(ctx, domain.OperationAutocomplete, map[string]string{domain.ArgText: text}, preferred, userID)
}

// GrammarCheck fixes grammar and spelling.
func (o *Orchestrator) GrammarCheck(ctx context.Context, text string, preferred domain.ProviderID, userID int64) (*domain.FallbackResult, error) {
	return o.run(ctx, domain.OperationGrammar, map[string]string{domain.ArgText: text}, preferred, userID)
}

// Translate translates text into targetLanguage.
func (o *Orchestrator) Translate(ctx context.Context, text, targetLanguage string, preferred domain.ProviderID, userID int64) (*domain.FallbackResult, error) {
	return o.run(ctx, domain.OperationTranslate, map[string]string{
		domain.ArgText:           text,
		domain.ArgTargetLanguage: targetLanguage,
	}, preferred, userID)
}

// Rephrase rewrites text in style; an empty style uses the template default.
func (o *Orchestrator) Rephrase(ctx context.Context, text, style string, preferred domain.ProviderID, userID int64) (*domain.FallbackResult, error) {
	return o.run(ctx, domain.OperationRephrase, map[string]string{
		domain.ArgText:  text,
		domain.ArgStyle: style,
	}, preferred, userID)
}

// Summarize summarizes text.
func (o *Orchestrator) Summarize(ctx context.Context, text string, preferred domain.ProviderID, userID int64) (*domain.FallbackResult, error) {
	return o.run(ctx, domain.OperationSummarize, map[string]string{domain.ArgText: text}, preferred, userID)
}

// AdjustTone rewrites text in tone.
func (o *Orchestrator) AdjustTone(ctx context.Context, text, tone string, preferred domain.ProviderID, userID int64) (*domain.FallbackResult, error) {
	return o.run(ctx, domain.OperationTone, map[string]string{
		domain.ArgText: text,
		domain.ArgTone: tone,
	}, preferred, userID)
}

// TableOfContents generates a table of contents for text.
func (o *Orchestrator) TableOfContents(ctx context.Context, text string, preferred domain.ProviderID, userID int64) (*domain.FallbackResult, error) {
	return o.run(ctx, domain.OperationTOC, map[string]string{domain.ArgText: text}, preferred, userID)
}

func (o *Orchestrator) run(ctx context.Context, op domain.OperationKind, args map[string]string, preferred domain.ProviderID, userID int64) (*domain.FallbackResult, error) {
	return o.Run(ctx, domain.FallbackRequest{
		Operation: op,
		Args:      args,
		Preferred: preferred,
		UserID:    userID,
	})
}
