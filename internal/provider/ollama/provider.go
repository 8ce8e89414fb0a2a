// Package ollama adapts a local Ollama server's /api/generate endpoint.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tjfontaine/markdown-notes/internal/config"
	"github.com/tjfontaine/markdown-notes/internal/domain"
	"github.com/tjfontaine/markdown-notes/internal/provider"
)

const (
	DefaultBaseURL = "http://localhost:11434"

	probeTimeout = 2 * time.Second
)

type options struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Stream  bool     `json:"stream"`
	Options *options `json:"options,omitempty"`
}

type generateResponse struct {
	Model           string  `json:"model"`
	Response        *string `json:"response"`
	Done            bool    `json:"done"`
	PromptEvalCount int64   `json:"prompt_eval_count"`
	EvalCount       int64   `json:"eval_count"`
}

// Provider implements domain.Provider for Ollama. It takes plain-text prompts.
type Provider struct {
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	counter     domain.TextCounter
}

// New creates an Ollama adapter from configuration without probing.
func New(cfg config.ProviderConfig, opts provider.Options) *Provider {
	p := &Provider{
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

// RegisterProviderFactory registers the Ollama factory. The local server is
// always attempted; if it does not answer the probe the provider is skipped.
func RegisterProviderFactory() {
	if provider.IsRegistered(domain.ProviderOllama) {
		return
	}
	provider.RegisterFactory(provider.ProviderFactory{
		ID:          domain.ProviderOllama,
		Description: "Local Ollama server",
		Create: func(ctx context.Context, cfg config.ProviderConfig, opts provider.Options) (domain.Provider, error) {
			p := New(cfg, opts)
			if err := p.Probe(ctx); err != nil {
				return nil, fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
			}
			return p, nil
		},
	})
}

// Probe checks that the server answers GET /api/tags.
func (p *Provider) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	_, err := provider.DoJSON(ctx, p.httpClient, domain.ProviderOllama, http.MethodGet, p.baseURL+"/api/tags", nil, nil)
	return err
}

func (p *Provider) ID() domain.ProviderID { return domain.ProviderOllama }

func (p *Provider) Model() string { return p.model }

func (p *Provider) PayloadForm() domain.PayloadForm { return domain.FormText }

// Generate runs a non-streaming completion.
func (p *Provider) Generate(ctx context.Context, payload domain.Payload) (*domain.Generation, error) {
	prompt := payload.Text
	if payload.Form == domain.FormChat {
		parts := make([]string, 0, len(payload.Messages))
		for _, m := range payload.Messages {
			parts = append(parts, m.Content)
		}
		prompt = strings.Join(parts, "\n\n")
	}

	req := generateRequest{Model: p.model, Prompt: prompt}
	if p.temperature > 0 || p.maxTokens > 0 {
		req.Options = &options{Temperature: p.temperature, NumPredict: p.maxTokens}
	}

	raw, err := provider.DoJSON(ctx, p.httpClient, domain.ProviderOllama, http.MethodPost, p.baseURL+"/api/generate", nil, req)
	if err != nil {
		return nil, err
	}

	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, provider.Malformed(domain.ProviderOllama, "failed to unmarshal response: %v", err)
	}

	text := provider.Stringify(raw)
	if resp.Response != nil {
		text = *resp.Response
	}

	u := domain.Usage{PromptTokens: resp.PromptEvalCount, CompletionTokens: resp.EvalCount}
	if u.PromptTokens == 0 && u.CompletionTokens == 0 {
		u = provider.EstimateUsage(p.counter, p.model, payload, text)
	}
	return provider.Finish(domain.ProviderOllama, p.model, text, u)
}
