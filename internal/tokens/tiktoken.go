package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// TiktokenCounter counts tokens with tiktoken encodings. OpenAI models resolve
// to their exact codec; the open-weight chat models served by Groq share no
// public tiktoken encoding and are approximated with cl100k_base.
type TiktokenCounter struct {
	matcher *ModelMatcher
	// codecCache caches tokenizer codecs by encoding name
	codecCache map[tokenizer.Encoding]tokenizer.Codec
	cacheMu    sync.RWMutex
}

// NewTiktokenCounter creates a new tiktoken-backed counter.
func NewTiktokenCounter() *TiktokenCounter {
	return &TiktokenCounter{
		matcher: NewModelMatcher(
			[]string{"gpt-", "o1", "o3", "o4", "text-embedding", "llama", "mixtral", "gemma"},
			nil,
		),
		codecCache: make(map[tokenizer.Encoding]tokenizer.Codec),
	}
}

// SupportsModel reports whether the model has a usable tiktoken encoding.
func (c *TiktokenCounter) SupportsModel(model string) bool {
	return c.matcher.Matches(strings.ToLower(model))
}

// Count returns the number of tokens in text under model.
func (c *TiktokenCounter) Count(model, text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	codec, err := c.getCodec(model)
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (c *TiktokenCounter) getCodec(model string) (tokenizer.Codec, error) {
	if tmodel, ok := mapModelName(model); ok {
		if codec, err := tokenizer.ForModel(tmodel); err == nil {
			return codec, nil
		}
	}

	encoding := modelToEncoding(model)

	c.cacheMu.RLock()
	if cached, ok := c.codecCache[encoding]; ok {
		c.cacheMu.RUnlock()
		return cached, nil
	}
	c.cacheMu.RUnlock()

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}

	c.cacheMu.Lock()
	c.codecCache[encoding] = codec
	c.cacheMu.Unlock()

	return codec, nil
}

func mapModelName(model string) (tokenizer.Model, bool) {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-4o"):
		return tokenizer.GPT4o, true
	case strings.HasPrefix(model, "gpt-4"):
		return tokenizer.GPT4, true
	case strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.GPT35Turbo, true
	case strings.HasPrefix(model, "text-embedding"):
		return tokenizer.TextEmbeddingAda002, true
	default:
		return "", false
	}
}

// modelToEncoding maps model names to encodings when no exact codec exists.
//
// Encoding reference:
// - O200kBase: GPT-4o, GPT-4.1, GPT-5 and the o-series reasoning models
// - Cl100kBase: GPT-4, GPT-3.5-turbo and everything else
func modelToEncoding(model string) tokenizer.Encoding {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-5"),
		strings.HasPrefix(model, "gpt-4.1"),
		strings.HasPrefix(model, "gpt-4o"),
		strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	default:
		return tokenizer.Cl100kBase
	}
}
