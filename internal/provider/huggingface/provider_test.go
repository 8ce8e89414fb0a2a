package huggingface

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tjfontaine/markdown-notes/internal/config"
	"github.com/tjfontaine/markdown-notes/internal/domain"
	"github.com/tjfontaine/markdown-notes/internal/provider"
)

func newTestProvider(url string) *Provider {
	return New(config.ProviderConfig{
		APIKey:      "hf_token",
		BaseURL:     url,
		Model:       "microsoft/DialoGPT-large",
		Temperature: 0.7,
		MaxTokens:   1000,
	}, provider.Options{})
}

func TestProvider_Generate_Request(t *testing.T) {
	var got inferenceRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/microsoft/DialoGPT-large" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer hf_token" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`[{"generated_text": " continued text "}]`))
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	if p.PayloadForm() != domain.FormText {
		t.Fatalf("PayloadForm() = %s, want text", p.PayloadForm())
	}

	gen, err := p.Generate(context.Background(), domain.Payload{Form: domain.FormText, Text: "system\n\nuser"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.Inputs != "system\n\nuser" {
		t.Errorf("inputs = %q", got.Inputs)
	}
	if got.Parameters.MaxNewTokens != 1000 || got.Parameters.Temperature != 0.7 || !got.Parameters.DoSample || got.Parameters.ReturnFullText {
		t.Errorf("parameters = %+v", got.Parameters)
	}
	if gen.Text != "continued text" {
		t.Errorf("Text = %q", gen.Text)
	}
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		want     string
		wantKind domain.ProviderErrorKind
	}{
		{"list", `[{"generated_text":"a"}]`, "a", ""},
		{"object", `{"generated_text":"b"}`, "b", ""},
		{"empty list stringified", `[]`, "[]", ""},
		{"unknown shape stringified", `{"foo": 1}`, `{"foo":1}`, ""},
		{"loading error", `{"error":"Model is currently loading","estimated_time":20}`, "", domain.ProviderErrorUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractText([]byte(tt.body))
			if tt.wantKind != "" {
				var perr *domain.ProviderError
				if !errors.As(err, &perr) || perr.Kind != tt.wantKind {
					t.Fatalf("error = %v, want kind %s", err, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("extractText() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("extractText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProvider_Generate_ServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"loading"}`))
	}))
	defer srv.Close()

	_, err := newTestProvider(srv.URL).Generate(context.Background(), domain.Payload{Form: domain.FormText, Text: "x"})
	var perr *domain.ProviderError
	if !errors.As(err, &perr) || perr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("error = %v", err)
	}
}
