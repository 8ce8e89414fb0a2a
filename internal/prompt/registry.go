// Package prompt holds the per-operation prompt templates and renders them into
// either chat or plain-text payloads.
package prompt

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/tjfontaine/markdown-notes/internal/domain"
)

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// Template is a system instruction plus a user-message template with named
// {placeholders}. Placeholders listed in Defaults are optional.
type Template struct {
	Operation domain.OperationKind
	System    string
	User      string
	Defaults  map[string]string
}

// Placeholders returns the distinct placeholder names referenced by the user template.
func (t Template) Placeholders() []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(t.User, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Required returns placeholders without a default value.
func (t Template) Required() []string {
	var required []string
	for _, name := range t.Placeholders() {
		if _, ok := t.Defaults[name]; !ok {
			required = append(required, name)
		}
	}
	return required
}

// Registry maps operations to templates. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	templates map[domain.OperationKind]Template
}

// NewRegistry creates a registry preloaded with the given templates.
func NewRegistry(templates ...Template) *Registry {
	r := &Registry{templates: make(map[domain.OperationKind]Template)}
	for _, t := range templates {
		r.Register(t)
	}
	return r
}

// NewDefaultRegistry creates a registry with DefaultTemplates.
func NewDefaultRegistry() *Registry {
	return NewRegistry(DefaultTemplates()...)
}

// Register adds or replaces the template for t.Operation.
func (r *Registry) Register(t Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.Operation] = t
}

// Lookup returns the template for op.
func (r *Registry) Lookup(op domain.OperationKind) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[op]
	return t, ok
}

// Operations returns the registered operations sorted by name.
func (r *Registry) Operations() []domain.OperationKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ops := make([]domain.OperationKind, 0, len(r.templates))
	for op := range r.templates {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// Validate checks that op is registered and every required placeholder has a
// non-empty value in args.
func (r *Registry) Validate(op domain.OperationKind, args map[string]string) error {
	t, ok := r.Lookup(op)
	if !ok {
		return &domain.TemplateError{Operation: op}
	}
	for _, name := range t.Required() {
		if strings.TrimSpace(args[name]) == "" {
			return &domain.MissingArgumentError{Operation: op, Field: name}
		}
	}
	return nil
}

// Render produces the payload for op in the requested form. Chat payloads are
// [system, user]; text payloads join the instruction and user message.
// Caller values are substituted in a single pass and never re-expanded.
func (r *Registry) Render(op domain.OperationKind, args map[string]string, form domain.PayloadForm) (domain.Payload, error) {
	if err := r.Validate(op, args); err != nil {
		return domain.Payload{}, err
	}
	t, _ := r.Lookup(op)

	user := placeholderPattern.ReplaceAllStringFunc(t.User, func(match string) string {
		name := match[1 : len(match)-1]
		if v := args[name]; strings.TrimSpace(v) != "" {
			return v
		}
		return t.Defaults[name]
	})

	switch form {
	case domain.FormText:
		return domain.Payload{
			Form: domain.FormText,
			Text: t.System + "\n\n" + user,
		}, nil
	case domain.FormChat:
		return domain.Payload{
			Form: domain.FormChat,
			Messages: []domain.Message{
				{Role: domain.RoleSystem, Content: t.System},
				{Role: domain.RoleUser, Content: user},
			},
		}, nil
	default:
		return domain.Payload{}, fmt.Errorf("unsupported payload form %d", form)
	}
}
