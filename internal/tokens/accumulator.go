package tokens

import (
	"sync/atomic"

	"github.com/tjfontaine/markdown-notes/internal/domain"
)

// Accumulator holds process-wide token counters. Increments from concurrent
// requests are never lost; Snapshot may observe a partially applied Add.
type Accumulator struct {
	prompt     atomic.Int64
	completion atomic.Int64
	total      atomic.Int64
}

// Add increments the counters. Negative components are ignored so counters
// only grow between resets.
func (a *Accumulator) Add(u domain.Usage) {
	if u.PromptTokens > 0 {
		a.prompt.Add(u.PromptTokens)
	}
	if u.CompletionTokens > 0 {
		a.completion.Add(u.CompletionTokens)
	}
	if u.TotalTokens > 0 {
		a.total.Add(u.TotalTokens)
	}
}

// Snapshot returns the current counters.
func (a *Accumulator) Snapshot() domain.Usage {
	return domain.Usage{
		PromptTokens:     a.prompt.Load(),
		CompletionTokens: a.completion.Load(),
		TotalTokens:      a.total.Load(),
	}
}

// Reset zeroes all counters.
func (a *Accumulator) Reset() {
	a.prompt.Store(0)
	a.completion.Store(0)
	a.total.Store(0)
}
