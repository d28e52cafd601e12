package pos

import (
	"fmt"
	"sort"
	"sync"

	"poslink-core/internal/ports"
)

// Registry is a fixed set of provider adapters, populated at startup and
// read-only afterwards.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]ports.PosAdapter
}

var _ ports.AdapterRegistry = (*Registry)(nil)

// NewRegistry creates a registry holding the given adapters.
func NewRegistry(adapters ...ports.PosAdapter) *Registry {
	r := &Registry{adapters: make(map[string]ports.PosAdapter, len(adapters))}
	for _, adapter := range adapters {
		r.adapters[adapter.Provider()] = adapter
	}
	return r
}

// Register adds or replaces an adapter.
func (r *Registry) Register(adapter ports.PosAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Provider()] = adapter
}

// Adapter resolves the adapter for a provider identifier.
func (r *Registry) Adapter(provider string) (ports.PosAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for provider %q", provider)
	}
	return adapter, nil
}

// Providers returns the registered provider identifiers, sorted.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	providers := make([]string, 0, len(r.adapters))
	for provider := range r.adapters {
		providers = append(providers, provider)
	}
	sort.Strings(providers)
	return providers
}
