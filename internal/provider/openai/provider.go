// Package openai adapts OpenAI-compatible chat completion APIs. The same
// adapter serves OpenAI itself and Groq, which exposes the same wire format.
package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tjfontaine/markdown-notes/internal/domain"
	"github.com/tjfontaine/markdown-notes/internal/provider"
)

const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"
)

// ProviderOption configures the provider.
type ProviderOption func(*Provider)

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		p.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = httpClient
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ProviderOption {
	return func(p *Provider) {
		p.temperature = t
	}
}

// WithMaxTokens caps the completion length. Zero leaves it to the upstream.
func WithMaxTokens(n int) ProviderOption {
	return func(p *Provider) {
		p.maxTokens = n
	}
}

// WithCounter sets the token counter used when the response omits usage.
func WithCounter(c domain.TextCounter) ProviderOption {
	return func(p *Provider) {
		p.counter = c
	}
}

// Provider implements domain.Provider over /chat/completions.
type Provider struct {
	id          domain.ProviderID
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	counter     domain.TextCounter
}

// New creates a chat completion adapter registered under id.
func New(id domain.ProviderID, apiKey, model string, opts ...ProviderOption) *Provider {
	p := &Provider{
		id:         id,
		apiKey:     apiKey,
		model:      model,
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
	}
	if id == domain.ProviderGroq {
		p.baseURL = DefaultGroqBaseURL
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) ID() domain.ProviderID { return p.id }

func (p *Provider) Model() string { return p.model }

func (p *Provider) PayloadForm() domain.PayloadForm { return domain.FormChat }

// Generate sends the chat payload and returns the first choice's content.
// A response without a content field is returned stringified.
func (p *Provider) Generate(ctx context.Context, payload domain.Payload) (*domain.Generation, error) {
	req := chatCompletionRequest{
		Model:     p.model,
		Messages:  toAPIMessages(payload),
		MaxTokens: p.maxTokens,
	}
	if p.temperature > 0 {
		t := p.temperature
		req.Temperature = &t
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+p.apiKey)

	raw, err := provider.DoJSON(ctx, p.httpClient, p.id, http.MethodPost, p.baseURL+"/chat/completions", header, req)
	if err != nil {
		return nil, err
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, provider.Malformed(p.id, "failed to unmarshal response: %v", err)
	}

	var text string
	if len(resp.Choices) > 0 && resp.Choices[0].Message.Content != nil {
		text = *resp.Choices[0].Message.Content
	} else {
		text = provider.Stringify(raw)
	}

	var u domain.Usage
	if resp.Usage != nil {
		u = domain.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	} else {
		u = provider.EstimateUsage(p.counter, p.model, payload, text)
	}

	model := resp.Model
	if model == "" {
		model = p.model
	}
	return provider.Finish(p.id, model, text, u)
}

func toAPIMessages(payload domain.Payload) []chatMessage {
	if payload.Form == domain.FormText {
		return []chatMessage{{Role: domain.RoleUser, Content: payload.Text}}
	}
	messages := make([]chatMessage, len(payload.Messages))
	for i, m := range payload.Messages {
		messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}
	return messages
}
