package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tjfontaine/markdown-notes/internal/domain"
	"github.com/tjfontaine/markdown-notes/internal/testutil"
)

func chatPayload(user string) domain.Payload {
	return domain.Payload{
		Form: domain.FormChat,
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: "You are a Markdown grammar expert."},
			{Role: domain.RoleUser, Content: user},
		},
	}
}

type fixedCounter int

func (c fixedCounter) CountText(model, text string) int {
	if text == "" {
		return 0
	}
	return int(c)
}

func TestProvider_Generate_Cassette(t *testing.T) {
	if testutil.Recording() && testutil.APIKey("OPENAI_API_KEY") == "test-key" {
		t.Skip("Skipping test: OPENAI_API_KEY not set")
	}

	recorder, cleanup := testutil.NewVCRRecorder(t, "openai_grammar")
	defer cleanup()

	p := New(domain.ProviderOpenAI, testutil.APIKey("OPENAI_API_KEY"), "gpt-3.5-turbo",
		WithTemperature(0.7),
		WithHTTPClient(testutil.VCRHTTPClient(recorder)),
	)

	gen, err := p.Generate(context.Background(), chatPayload("Fix grammar and spelling errors in this Markdown text:\n\nteh cat sat"))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if gen.Text != "The cat sat." {
		t.Errorf("Text = %q, want trimmed content", gen.Text)
	}
	if gen.Usage.TotalTokens != 46 || gen.Usage.PromptTokens != 42 {
		t.Errorf("Usage = %+v", gen.Usage)
	}
}

func TestProvider_Generate_Request(t *testing.T) {
	var got chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer gsk-123" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3-8b-8192","choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	p := New(domain.ProviderGroq, "gsk-123", "llama3-8b-8192",
		WithBaseURL(srv.URL+"/"),
		WithTemperature(0.7),
		WithCounter(fixedCounter(3)),
	)
	if p.PayloadForm() != domain.FormChat {
		t.Errorf("PayloadForm() = %s", p.PayloadForm())
	}

	gen, err := p.Generate(context.Background(), chatPayload("hello"))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if got.Model != "llama3-8b-8192" || len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("request = %+v", got)
	}
	if got.Temperature == nil || *got.Temperature != 0.7 {
		t.Errorf("temperature = %v", got.Temperature)
	}
	// usage omitted upstream: 2 messages + completion estimated at 3 each
	if gen.Usage.PromptTokens != 6 || gen.Usage.CompletionTokens != 3 || gen.Usage.TotalTokens != 9 {
		t.Errorf("estimated usage = %+v", gen.Usage)
	}
}

func TestProvider_Generate_Responses(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantText string
		wantKind domain.ProviderErrorKind
	}{
		{
			name:     "content trimmed",
			status:   http.StatusOK,
			body:     `{"choices":[{"message":{"content":"\n  Hola  \n"}}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`,
			wantText: "Hola",
		},
		{
			name:     "missing content stringified",
			status:   http.StatusOK,
			body:     `{"choices": []}`,
			wantText: `{"choices":[]}`,
		},
		{
			name:     "unauthorized",
			status:   http.StatusUnauthorized,
			body:     `{"error":{"message":"bad key"}}`,
			wantKind: domain.ProviderErrorAuth,
		},
		{
			name:     "rate limited",
			status:   http.StatusTooManyRequests,
			body:     `{"error":{"message":"slow down"}}`,
			wantKind: domain.ProviderErrorRateLimit,
		},
		{
			name:     "not json",
			status:   http.StatusOK,
			body:     `<html>oops</html>`,
			wantKind: domain.ProviderErrorMalformed,
		},
		{
			name:     "blank content",
			status:   http.StatusOK,
			body:     `{"choices":[{"message":{"content":"   "}}]}`,
			wantKind: domain.ProviderErrorMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := New(domain.ProviderOpenAI, "sk", "gpt-3.5-turbo", WithBaseURL(srv.URL))
			gen, err := p.Generate(context.Background(), chatPayload("x"))

			if tt.wantKind != "" {
				var perr *domain.ProviderError
				if !errors.As(err, &perr) {
					t.Fatalf("expected ProviderError, got %v", err)
				}
				if perr.Kind != tt.wantKind || perr.Provider != domain.ProviderOpenAI {
					t.Errorf("error = %+v", perr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if gen.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", gen.Text, tt.wantText)
			}
		})
	}
}

func TestProvider_Generate_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := New(domain.ProviderOpenAI, "sk", "gpt-3.5-turbo", WithBaseURL(url))
	_, err := p.Generate(context.Background(), chatPayload("x"))

	var perr *domain.ProviderError
	if !errors.As(err, &perr) || perr.Kind != domain.ProviderErrorNetwork {
		t.Fatalf("expected network ProviderError, got %v", err)
	}
}
