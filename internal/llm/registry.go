package llm

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds an Adapter for a model of its provider.
type Factory func(model ModelDescriptor, cfg ProviderConfig) (Adapter, error)

// Provider associates a set of models with the factory that can build
// adapters for them.
type Provider struct {
	ID      string
	Name    string
	Models  []ModelDescriptor
	Factory Factory
}

// Registry indexes providers and their models and hands out adapters.
// Adapters are cached per model and provider configuration so repeated
// calls with the same settings reuse HTTP clients and rate limiters.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	models    map[string]ModelDescriptor
	factories map[string]Factory
	cache     map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		models:    make(map[string]ModelDescriptor),
		factories: make(map[string]Factory),
		cache:     make(map[string]Adapter),
	}
}

// RegisterProvider adds a provider and its models. Registering the same
// provider ID again replaces the previous registration, including any
// models the old registration contributed.
func (r *Registry) RegisterProvider(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.providers[p.ID]; ok {
		for _, m := range old.Models {
			delete(r.models, m.ID)
		}
		r.dropCachedLocked(p.ID)
	}

	r.providers[p.ID] = p
	r.factories[p.ID] = p.Factory
	for _, m := range p.Models {
		m.Provider = p.ID
		r.models[m.ID] = m
	}
}

// Model returns the descriptor for a model ID.
func (r *Registry) Model(id string) (ModelDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[id]
	if !ok {
		return ModelDescriptor{}, fmt.Errorf("%w: %s", ErrModelNotFound, id)
	}
	return m, nil
}

// Models lists all registered models sorted by provider then ID.
func (r *Registry) Models() []ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ModelDescriptor, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Providers lists registered providers sorted by ID.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CreateAdapter returns an adapter for the model, building one through
// the provider factory on a cache miss. The cache key covers the model
// and the parts of the configuration that change adapter behavior, so
// a credential or endpoint change produces a fresh adapter.
func (r *Registry) CreateAdapter(modelID string, cfg ProviderConfig) (Adapter, error) {
	r.mu.RLock()
	model, ok := r.models[modelID]
	if !ok {
		r.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelID)
	}
	factory, ok := r.factories[model.Provider]
	if !ok || factory == nil {
		r.mu.RUnlock()
		return nil, fmt.Errorf("%w: provider %s", ErrNoFactory, model.Provider)
	}
	key := cacheKey(modelID, cfg)
	if a, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return a, nil
	}
	r.mu.RUnlock()

	adapter, err := factory(model, cfg)
	if err != nil {
		return nil, fmt.Errorf("create adapter for %s: %w", modelID, err)
	}
	if cfg.RPM > 0 {
		adapter = RateLimited(adapter, cfg.RPM)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another goroutine may have built the same adapter meanwhile;
	// keep the first one cached.
	if a, ok := r.cache[key]; ok {
		return a, nil
	}
	r.cache[key] = adapter
	return adapter, nil
}

// Invalidate drops cached adapters for one provider, or all cached
// adapters when providerID is empty.
func (r *Registry) Invalidate(providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if providerID == "" {
		r.cache = make(map[string]Adapter)
		return
	}
	r.dropCachedLocked(providerID)
}

func (r *Registry) dropCachedLocked(providerID string) {
	for key, a := range r.cache {
		if a.Descriptor().Provider == providerID {
			delete(r.cache, key)
		}
	}
}

func cacheKey(modelID string, cfg ProviderConfig) string {
	return fmt.Sprintf("%s|%s|%s|%s|%d", modelID, cfg.APIKey, cfg.BaseURL, cfg.Timeout, cfg.RPM)
}
