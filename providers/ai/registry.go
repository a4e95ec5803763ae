package ai

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps provider family tags to their StreamProvider adapters. It
// replaces per-provider branching at the dispatch site: the orchestrator
// looks an adapter up by the engine's Provider tag and speaks the one common
// contract.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]StreamProvider
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]StreamProvider)}
}

// Register binds an adapter to a provider tag, replacing any previous
// binding for the same tag.
func (r *Registry) Register(provider string, adapter StreamProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[provider] = adapter
}

// Lookup returns the adapter for a provider tag.
func (r *Registry) Lookup(provider string) (StreamProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for provider %q", provider)
	}
	return adapter, nil
}

// Providers returns the registered provider tags in sorted order.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
