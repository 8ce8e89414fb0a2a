package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/tjfontaine/markdown-notes/internal/domain"
)

func TestDefaultRegistry_CoversAllOperations(t *testing.T) {
	r := NewDefaultRegistry()
	for _, op := range domain.Operations {
		if _, ok := r.Lookup(op); !ok {
			t.Errorf("missing template for %s", op)
		}
	}
	if got := len(r.Operations()); got != len(domain.Operations) {
		t.Errorf("Operations() returned %d entries, want %d", got, len(domain.Operations))
	}
}

func TestRender_ChatForm(t *testing.T) {
	r := NewDefaultRegistry()

	payload, err := r.Render(domain.OperationGrammar, map[string]string{domain.ArgText: "i has a **dog**"}, domain.FormChat)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if payload.Form != domain.FormChat {
		t.Fatalf("Form = %s, want chat", payload.Form)
	}
	if len(payload.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(payload.Messages))
	}
	if payload.Messages[0].Role != domain.RoleSystem || payload.Messages[1].Role != domain.RoleUser {
		t.Errorf("roles = %s,%s", payload.Messages[0].Role, payload.Messages[1].Role)
	}
	if !strings.Contains(payload.Messages[0].Content, "Return ONLY") {
		t.Error("system message should carry the output-only instruction")
	}
	if !strings.HasSuffix(payload.Messages[1].Content, "i has a **dog**") {
		t.Errorf("user message = %q", payload.Messages[1].Content)
	}
}

func TestRender_TextForm(t *testing.T) {
	r := NewDefaultRegistry()

	payload, err := r.Render(domain.OperationTranslate, map[string]string{
		domain.ArgText:           "# Hello",
		domain.ArgTargetLanguage: "Spanish",
	}, domain.FormText)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if payload.Form != domain.FormText || len(payload.Messages) != 0 {
		t.Fatalf("unexpected payload shape: %+v", payload)
	}
	tmpl, _ := r.Lookup(domain.OperationTranslate)
	if !strings.HasPrefix(payload.Text, tmpl.System+"\n\n") {
		t.Error("text payload should start with the system instruction")
	}
	if !strings.Contains(payload.Text, "to Spanish:\n\n# Hello") {
		t.Errorf("text payload = %q", payload.Text)
	}
}

func TestRender_MissingArguments(t *testing.T) {
	r := NewDefaultRegistry()

	tests := []struct {
		name  string
		op    domain.OperationKind
		args  map[string]string
		field string
	}{
		{"no text", domain.OperationAutocomplete, map[string]string{}, domain.ArgText},
		{"blank text", domain.OperationGrammar, map[string]string{domain.ArgText: "   "}, domain.ArgText},
		{"no language", domain.OperationTranslate, map[string]string{domain.ArgText: "hi"}, domain.ArgTargetLanguage},
		{"no tone", domain.OperationTone, map[string]string{domain.ArgText: "hi"}, domain.ArgTone},
		{"nil args", domain.OperationSummarize, nil, domain.ArgText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Render(tt.op, tt.args, domain.FormChat)
			var missing *domain.MissingArgumentError
			if !errors.As(err, &missing) {
				t.Fatalf("expected MissingArgumentError, got %v", err)
			}
			if missing.Field != tt.field {
				t.Errorf("Field = %q, want %q", missing.Field, tt.field)
			}
		})
	}
}

func TestRender_UnknownOperation(t *testing.T) {
	r := NewDefaultRegistry()
	_, err := r.Render("poem", map[string]string{domain.ArgText: "x"}, domain.FormChat)
	var terr *domain.TemplateError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TemplateError, got %v", err)
	}
}

func TestRender_DefaultStyle(t *testing.T) {
	r := NewDefaultRegistry()

	payload, err := r.Render(domain.OperationRephrase, map[string]string{domain.ArgText: "hello"}, domain.FormChat)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(payload.Messages[1].Content, "clear and engaging") {
		t.Errorf("default style not applied: %q", payload.Messages[1].Content)
	}

	payload, err = r.Render(domain.OperationRephrase, map[string]string{domain.ArgText: "hello", domain.ArgStyle: "formal"}, domain.FormChat)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(payload.Messages[1].Content, "in a formal style") {
		t.Errorf("explicit style not applied: %q", payload.Messages[1].Content)
	}
}

func TestRender_NoRecursiveExpansion(t *testing.T) {
	r := NewDefaultRegistry()

	payload, err := r.Render(domain.OperationTranslate, map[string]string{
		domain.ArgText:           "literal {target_language} and {text}",
		domain.ArgTargetLanguage: "French",
	}, domain.FormChat)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.HasSuffix(payload.Messages[1].Content, "literal {target_language} and {text}") {
		t.Errorf("caller text was re-expanded: %q", payload.Messages[1].Content)
	}
}

func TestRegister_Overrides(t *testing.T) {
	r := NewRegistry()
	r.Register(Template{Operation: domain.OperationSummarize, System: "s", User: "tl;dr {text}"})

	payload, err := r.Render(domain.OperationSummarize, map[string]string{domain.ArgText: "long"}, domain.FormText)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if payload.Text != "s\n\ntl;dr long" {
		t.Errorf("Text = %q", payload.Text)
	}
}
