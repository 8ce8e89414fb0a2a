package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/markdown-notes/internal/domain"
)

type aiRequest struct {
	Text              string `json:"text"`
	TargetLanguage    string `json:"target_language,omitempty"`
	Style             string `json:"style,omitempty"`
	Tone              string `json:"tone,omitempty"`
	PreferredProvider string `json:"preferred_provider,omitempty"`
}

func (r aiRequest) args() map[string]string {
	args := map[string]string{domain.ArgText: r.Text}
	if r.TargetLanguage != "" {
		args[domain.ArgTargetLanguage] = r.TargetLanguage
	}
	if r.Style != "" {
		args[domain.ArgStyle] = r.Style
	}
	if r.Tone != "" {
		args[domain.ArgTone] = r.Tone
	}
	return args
}

type aiResponse struct {
	Success      bool              `json:"success"`
	Result       string            `json:"result"`
	ProviderUsed domain.ProviderID `json:"provider_used"`
	Model        string            `json:"model,omitempty"`
	TokenUsage   domain.Usage      `json:"token_usage"`
}

func (s *Server) handleAIOperation(w http.ResponseWriter, r *http.Request) {
	op := domain.OperationKind(strings.ToLower(chi.URLParam(r, "operation")))
	AddLogField(r.Context(), "operation", string(op))

	var req aiRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var preferred domain.ProviderID
	if req.PreferredProvider != "" {
		id, ok := domain.ParseProviderID(req.PreferredProvider)
		if !ok {
			writeError(w, r, domain.ErrInvalidRequest("unknown provider "+req.PreferredProvider).WithParam("preferred_provider"))
			return
		}
		preferred = id
	}

	result, err := s.deps.AI.Run(r.Context(), domain.FallbackRequest{
		Operation: op,
		Args:      req.args(),
		Preferred: preferred,
		UserID:    CurrentUser(r.Context()).ID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	AddLogField(r.Context(), "provider", string(result.ProviderUsed))
	writeJSON(w, http.StatusOK, aiResponse{
		Success:      true,
		Result:       result.Text,
		ProviderUsed: result.ProviderUsed,
		Model:        result.Model,
		TokenUsage:   result.TokenUsage,
	})
}

func (s *Server) handleAIHealth(w http.ResponseWriter, r *http.Request) {
	report := s.deps.AI.Health(r.Context())
	status := "healthy"
	switch {
	case report.TotalCount == 0:
		status = "unconfigured"
	case report.HealthyCount == 0:
		status = "unhealthy"
	case report.HealthyCount < report.TotalCount:
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":               status,
		"providers":            report.Providers,
		"healthy_count":        report.HealthyCount,
		"total_count":          report.TotalCount,
		"available_operations": report.AvailableOperations,
	})
}

func (s *Server) handleAIProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"providers": s.deps.AI.AvailableProviders(),
	})
}

// handleAIUsage reports the process-wide token counters and, when a usage
// store is configured, the caller's logged usage.
func (s *Server) handleAIUsage(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"token_usage": s.deps.AI.TokenUsage()}
	if s.deps.Usage != nil {
		stats, err := s.deps.Usage.UsageStats(r.Context(), CurrentUser(r.Context()).ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		body["stats"] = stats
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleAIUsageReset(w http.ResponseWriter, r *http.Request) {
	s.deps.AI.ResetTokenUsage()
	s.logger.Info("token usage reset", "user_id", CurrentUser(r.Context()).ID)
	writeJSON(w, http.StatusOK, map[string]any{"token_usage": s.deps.AI.TokenUsage()})
}
