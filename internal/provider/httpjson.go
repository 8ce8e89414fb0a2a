package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tjfontaine/markdown-notes/internal/domain"
)

// maxResponseBytes bounds how much of an upstream body is read.
const maxResponseBytes = 4 << 20

// DoJSON sends body (if non-nil) as JSON and returns the raw response bytes of
// a 2xx response. Every failure is a *domain.ProviderError.
func DoJSON(ctx context.Context, client *http.Client, id domain.ProviderID, method, url string, header http.Header, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, domain.NewProviderError(id, domain.ProviderErrorUpstream, fmt.Errorf("failed to marshal request: %w", err))
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, domain.NewProviderError(id, domain.ProviderErrorUpstream, fmt.Errorf("failed to create request: %w", err))
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, TransportError(id, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, TransportError(id, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domain.ProviderErrorFromStatus(id, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// TransportError classifies a failed round trip as timeout or network.
func TransportError(id domain.ProviderID, err error) *domain.ProviderError {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewProviderError(id, domain.ProviderErrorTimeout, err)
	}
	return domain.NewProviderError(id, domain.ProviderErrorNetwork, err)
}

// Malformed reports an unusable response body.
func Malformed(id domain.ProviderID, format string, args ...any) *domain.ProviderError {
	return domain.NewProviderError(id, domain.ProviderErrorMalformed, fmt.Errorf(format, args...))
}

// Stringify renders a raw response body for the "no content field" case:
// compact JSON if it parses, otherwise the raw text.
func Stringify(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err == nil {
		return buf.String()
	}
	return string(raw)
}

// Finish trims generated text and rejects results that are empty after
// trimming, so the orchestrator can fall through to the next candidate.
func Finish(id domain.ProviderID, model, text string, usage domain.Usage) (*domain.Generation, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, Malformed(id, "empty completion")
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return &domain.Generation{Text: text, Model: model, Usage: usage}, nil
}

// EstimateUsage fills usage from the counter when the upstream omitted it.
func EstimateUsage(counter domain.TextCounter, model string, payload domain.Payload, completion string) domain.Usage {
	if counter == nil {
		return domain.Usage{}
	}
	var prompt int
	if payload.Form == domain.FormText {
		prompt = counter.CountText(model, payload.Text)
	} else {
		for _, m := range payload.Messages {
			prompt += counter.CountText(model, m.Content)
		}
	}
	completionTokens := counter.CountText(model, completion)
	return domain.Usage{
		PromptTokens:     int64(prompt),
		CompletionTokens: int64(completionTokens),
		TotalTokens:      int64(prompt + completionTokens),
	}
}
