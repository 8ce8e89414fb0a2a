// Package gemini adapts the Google Gemini generateContent API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tjfontaine/markdown-notes/internal/config"
	"github.com/tjfontaine/markdown-notes/internal/domain"
	"github.com/tjfontaine/markdown-notes/internal/provider"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	Contents          []content         `json:"contents"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	UsageMetadata *struct {
		PromptTokenCount     int64 `json:"promptTokenCount"`
		CandidatesTokenCount int64 `json:"candidatesTokenCount"`
		TotalTokenCount      int64 `json:"totalTokenCount"`
	} `json:"usageMetadata,omitempty"`
	ModelVersion string `json:"modelVersion"`
}

// Provider implements domain.Provider for Gemini.
type Provider struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	counter     domain.TextCounter
}

// New creates a Gemini adapter from configuration.
func New(cfg config.ProviderConfig, opts provider.Options) *Provider {
	p := &Provider{
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		baseURL:     DefaultBaseURL,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  opts.HTTPClient,
		counter:     opts.Counter,
	}
	if cfg.BaseURL != "" {
		p.baseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	if p.httpClient == nil {
		p.httpClient = http.DefaultClient
	}
	return p
}

// RegisterProviderFactory registers the Gemini factory.
func RegisterProviderFactory() {
	if provider.IsRegistered(domain.ProviderGemini) {
		return
	}
	provider.RegisterFactory(provider.ProviderFactory{
		ID:             domain.ProviderGemini,
		Description:    "Google Gemini generateContent API",
		RequiresAPIKey: true,
		Create: func(_ context.Context, cfg config.ProviderConfig, opts provider.Options) (domain.Provider, error) {
			if cfg.Model == "" {
				return nil, errors.New("gemini: model is required")
			}
			return New(cfg, opts), nil
		},
	})
}

func (p *Provider) ID() domain.ProviderID { return domain.ProviderGemini }

func (p *Provider) Model() string { return p.model }

func (p *Provider) PayloadForm() domain.PayloadForm { return domain.FormChat }

// Generate maps the system message to systemInstruction and the remaining
// messages to contents; the candidate's text parts are concatenated.
func (p *Provider) Generate(ctx context.Context, payload domain.Payload) (*domain.Generation, error) {
	req := toAPIRequest(payload)
	if p.temperature > 0 || p.maxTokens > 0 {
		req.GenerationConfig = &generationConfig{MaxOutputTokens: p.maxTokens}
		if p.temperature > 0 {
			t := p.temperature
			req.GenerationConfig.Temperature = &t
		}
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, url.PathEscape(p.model))
	header := http.Header{}
	header.Set("x-goog-api-key", p.apiKey)

	raw, err := provider.DoJSON(ctx, p.httpClient, domain.ProviderGemini, http.MethodPost, endpoint, header, req)
	if err != nil {
		return nil, err
	}

	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, provider.Malformed(domain.ProviderGemini, "failed to unmarshal response: %v", err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" && len(resp.Candidates) == 0 {
		return nil, domain.NewProviderError(domain.ProviderGemini, domain.ProviderErrorUpstream,
			fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason))
	}

	text, ok := candidateText(resp)
	if !ok {
		text = provider.Stringify(raw)
	}

	var u domain.Usage
	if resp.UsageMetadata != nil {
		u = domain.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		}
	} else {
		u = provider.EstimateUsage(p.counter, p.model, payload, text)
	}

	model := resp.ModelVersion
	if model == "" {
		model = p.model
	}
	return provider.Finish(domain.ProviderGemini, model, text, u)
}

func toAPIRequest(payload domain.Payload) generateRequest {
	var req generateRequest
	if payload.Form == domain.FormText {
		req.Contents = []content{{Role: "user", Parts: []part{{Text: payload.Text}}}}
		return req
	}
	for _, m := range payload.Messages {
		switch m.Role {
		case domain.RoleSystem:
			req.SystemInstruction = &content{Parts: []part{{Text: m.Content}}}
		case domain.RoleAssistant:
			req.Contents = append(req.Contents, content{Role: "model", Parts: []part{{Text: m.Content}}})
		default:
			req.Contents = append(req.Contents, content{Role: "user", Parts: []part{{Text: m.Content}}})
		}
	}
	return req
}

func candidateText(resp generateResponse) (string, bool) {
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", false
	}
	var sb strings.Builder
	for _, pt := range resp.Candidates[0].Content.Parts {
		sb.WriteString(pt.Text)
	}
	return sb.String(), true
}
