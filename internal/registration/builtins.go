package registration

import (
	"github.com/tjfontaine/markdown-notes/internal/provider/gemini"
	"github.com/tjfontaine/markdown-notes/internal/provider/huggingface"
	"github.com/tjfontaine/markdown-notes/internal/provider/ollama"
	"github.com/tjfontaine/markdown-notes/internal/provider/openai"
)

// RegisterBuiltins registers every built-in provider factory explicitly.
// This replaces init-based side effects and is intended to be called from
// cmd/notes-server and tests before provider.BuildProviders.
func RegisterBuiltins() {
	openai.RegisterProviderFactories()
	gemini.RegisterProviderFactory()
	huggingface.RegisterProviderFactory()
	ollama.RegisterProviderFactory()
}
