package domain

import (
	"strings"
	"time"
)

// ProviderID identifies a text-generation backend.
type ProviderID string

const (
	ProviderOllama      ProviderID = "ollama"
	ProviderOpenAI      ProviderID = "openai"
	ProviderGroq        ProviderID = "groq"
	ProviderGemini      ProviderID = "gemini"
	ProviderHuggingFace ProviderID = "huggingface"
)

// KnownProviders lists every provider id in the default fallback priority:
// hosted APIs first, local inference last.
var KnownProviders = []ProviderID{
	ProviderGroq,
	ProviderGemini,
	ProviderOpenAI,
	ProviderHuggingFace,
	ProviderOllama,
}

// ParseProviderID returns the provider id for s, case-insensitively.
func ParseProviderID(s string) (ProviderID, bool) {
	id := ProviderID(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range KnownProviders {
		if id == known {
			return id, true
		}
	}
	return "", false
}

// OperationKind selects the prompt template for a request.
type OperationKind string

const (
	OperationAutocomplete OperationKind = "autocomplete"
	OperationGrammar      OperationKind = "grammar"
	OperationTranslate    OperationKind = "translate"
	OperationRephrase     OperationKind = "rephrase"
	OperationSummarize    OperationKind = "summarize"
	OperationTone         OperationKind = "tone"
	OperationTOC          OperationKind = "toc"
)

// Operations lists the supported operations in display order.
var Operations = []OperationKind{
	OperationAutocomplete,
	OperationGrammar,
	OperationTranslate,
	OperationRephrase,
	OperationSummarize,
	OperationTone,
	OperationTOC,
}

// Argument names shared by templates and callers.
const (
	ArgText           = "text"
	ArgTargetLanguage = "target_language"
	ArgStyle          = "style"
	ArgTone           = "tone"
)

// PayloadForm is the prompt shape an adapter accepts.
type PayloadForm int

const (
	// FormChat is an ordered list of role-tagged messages.
	FormChat PayloadForm = iota
	// FormText is a single rendered string.
	FormText
)

func (f PayloadForm) String() string {
	if f == FormText {
		return "text"
	}
	return "chat"
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Payload is a rendered prompt. Exactly one of Text or Messages is meaningful,
// depending on Form.
type Payload struct {
	Form     PayloadForm
	Text     string
	Messages []Message
}

// UserContent returns the user-facing portion of the payload.
func (p Payload) UserContent() string {
	if p.Form == FormText {
		return p.Text
	}
	var parts []string
	for _, m := range p.Messages {
		if m.Role == RoleUser {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n")
}

// Usage represents token usage.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Add returns the element-wise sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

// Generation is the normalized output of a single adapter call.
type Generation struct {
	Text  string
	Model string
	Usage Usage
}

// FallbackRequest is one orchestration call. UserID is zero for anonymous callers.
type FallbackRequest struct {
	Operation OperationKind
	Args      map[string]string
	Preferred ProviderID
	UserID    int64
}

// Attempt records one candidate invocation.
type Attempt struct {
	Provider ProviderID    `json:"provider"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// FallbackResult is a successful orchestration outcome. TokenUsage holds the
// cumulative counters of the orchestrator after this call.
type FallbackResult struct {
	Text         string
	ProviderUsed ProviderID
	Model        string
	TokenUsage   Usage
	Attempts     []Attempt
}

// UsageRecord is one telemetry row per candidate attempt.
type UsageRecord struct {
	UserID           int64
	Operation        OperationKind
	Provider         ProviderID
	Model            string
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	Elapsed          time.Duration
	Success          bool
	ErrorMessage     string
	Timestamp        time.Time
}

// ProviderHealth is the outcome of probing one provider.
type ProviderHealth struct {
	Healthy         bool   `json:"healthy"`
	Model           string `json:"model"`
	ResponsePreview string `json:"response_preview,omitempty"`
	Error           string `json:"error,omitempty"`
}
