// Package huggingface adapts the Hugging Face Inference API text-generation
// task. It takes plain-text prompts.
package huggingface

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tjfontaine/markdown-notes/internal/config"
	"github.com/tjfontaine/markdown-notes/internal/domain"
	"github.com/tjfontaine/markdown-notes/internal/provider"
)

const DefaultBaseURL = "https://api-inference.huggingface.co"

type parameters struct {
	Temperature    float64 `json:"temperature,omitempty"`
	MaxNewTokens   int     `json:"max_new_tokens,omitempty"`
	DoSample       bool    `json:"do_sample"`
	ReturnFullText bool    `json:"return_full_text"`
}

type inferenceRequest struct {
	Inputs     string     `json:"inputs"`
	Parameters parameters `json:"parameters"`
}

type generated struct {
	GeneratedText *string `json:"generated_text"`
	Error         string  `json:"error"`
}

// Provider implements domain.Provider for a hosted text-generation model.
type Provider struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	counter     domain.TextCounter
}

// New creates a Hugging Face adapter from configuration.
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

// RegisterProviderFactory registers the Hugging Face factory.
func RegisterProviderFactory() {
	if provider.IsRegistered(domain.ProviderHuggingFace) {
		return
	}
	provider.RegisterFactory(provider.ProviderFactory{
		ID:             domain.ProviderHuggingFace,
		Description:    "Hugging Face Inference API (text-generation)",
		RequiresAPIKey: true,
		Create: func(_ context.Context, cfg config.ProviderConfig, opts provider.Options) (domain.Provider, error) {
			return New(cfg, opts), nil
		},
	})
}

func (p *Provider) ID() domain.ProviderID { return domain.ProviderHuggingFace }

func (p *Provider) Model() string { return p.model }

func (p *Provider) PayloadForm() domain.PayloadForm { return domain.FormText }

// Generate accepts either a list of generations or a single object. An
// {"error": ...} body (e.g. model loading) is an upstream failure; any other
// shape is returned stringified.
func (p *Provider) Generate(ctx context.Context, payload domain.Payload) (*domain.Generation, error) {
	input := payload.Text
	if payload.Form == domain.FormChat {
		input = payload.UserContent()
	}

	req := inferenceRequest{
		Inputs: input,
		Parameters: parameters{
			Temperature:    p.temperature,
			MaxNewTokens:   p.maxTokens,
			DoSample:       true,
			ReturnFullText: false,
		},
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+p.apiKey)

	raw, err := provider.DoJSON(ctx, p.httpClient, domain.ProviderHuggingFace, http.MethodPost,
		fmt.Sprintf("%s/models/%s", p.baseURL, p.model), header, req)
	if err != nil {
		return nil, err
	}

	text, err := extractText(raw)
	if err != nil {
		return nil, err
	}
	u := provider.EstimateUsage(p.counter, p.model, payload, text)
	return provider.Finish(domain.ProviderHuggingFace, p.model, text, u)
}

func extractText(raw []byte) (string, error) {
	var list []generated
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) > 0 && list[0].GeneratedText != nil {
			return *list[0].GeneratedText, nil
		}
		return provider.Stringify(raw), nil
	}

	var single generated
	if err := json.Unmarshal(raw, &single); err == nil {
		if single.Error != "" {
			return "", domain.NewProviderError(domain.ProviderHuggingFace, domain.ProviderErrorUpstream, fmt.Errorf("inference error: %s", single.Error))
		}
		if single.GeneratedText != nil {
			return *single.GeneratedText, nil
		}
	}
	return provider.Stringify(raw), nil
}
