// Package provider contains the provider factory registry and the builder that
// turns configuration into the set of registered adapters.
//
// # Adding a New Provider
//
// Implement domain.Provider in its own package and expose an explicit
// registration function that calls provider.RegisterFactory. Wire that
// function from internal/registration so we avoid init() side effects.
//
//	func RegisterProviderFactory() {
//	    if provider.IsRegistered(domain.ProviderGemini) {
//	        return
//	    }
//	    provider.RegisterFactory(provider.ProviderFactory{
//	        ID:             domain.ProviderGemini,
//	        Description:    "Google Gemini generateContent API",
//	        RequiresAPIKey: true,
//	        Create:         CreateFromConfig,
//	    })
//	}
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/tjfontaine/markdown-notes/internal/config"
	"github.com/tjfontaine/markdown-notes/internal/domain"
)

// ErrUnavailable is returned (wrapped) by a factory when the backend cannot be
// reached at setup time. The builder skips such providers without failing.
var ErrUnavailable = errors.New("provider unavailable")

// Options carries shared collaborators into factories.
type Options struct {
	HTTPClient *http.Client
	// Counter estimates usage when an upstream omits it.
	Counter domain.TextCounter
	Logger  *slog.Logger
}

// ProviderFactory defines how to create the adapter for one provider id.
type ProviderFactory struct {
	ID domain.ProviderID

	// Description provides a human-readable description of the provider
	Description string

	// RequiresAPIKey marks providers that are skipped when no key is configured.
	RequiresAPIKey bool

	// Create instantiates the adapter. It may perform a reachability probe.
	Create func(ctx context.Context, cfg config.ProviderConfig, opts Options) (domain.Provider, error)
}

var (
	factoryMu   sync.RWMutex
	factoryMap  = make(map[domain.ProviderID]ProviderFactory)
	factoryList []ProviderFactory
)

// RegisterFactory registers a provider factory.
// Panics if a factory with the same id is already registered.
func RegisterFactory(f ProviderFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	if f.ID == "" {
		panic("provider factory id cannot be empty")
	}
	if f.Create == nil {
		panic(fmt.Sprintf("provider factory %q must have a Create function", f.ID))
	}
	if _, exists := factoryMap[f.ID]; exists {
		panic(fmt.Sprintf("provider factory %q already registered", f.ID))
	}

	factoryMap[f.ID] = f
	factoryList = append(factoryList, f)
}

// GetFactory returns the factory for a provider id, if registered.
func GetFactory(id domain.ProviderID) (ProviderFactory, bool) {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factoryMap[id]
	return f, ok
}

// ListFactories returns all registered provider factories sorted by id.
func ListFactories() []ProviderFactory {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	result := make([]ProviderFactory, len(factoryList))
	copy(result, factoryList)
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

// IsRegistered returns true if a factory exists for id.
func IsRegistered(id domain.ProviderID) bool {
	_, ok := GetFactory(id)
	return ok
}

// ClearFactories removes all registered factories (for testing only).
func ClearFactories() {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	factoryMap = make(map[domain.ProviderID]ProviderFactory)
	factoryList = nil
}
