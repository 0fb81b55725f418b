package embedder

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// DefaultProvider is used when no embedding function is configured or the
// configured one is unknown.
const DefaultProvider = ProviderLocal

// Factory builds an embedder from the embedding_params config map.
type Factory func(params map[string]any, cache *Cache) (Embedder, error)

// Registry maps embedding function names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *slog.Logger
}

// NewRegistry returns a registry with the built-in providers registered.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		factories: map[string]Factory{},
		logger:    logger,
	}
	r.Register(ProviderLocal, func(params map[string]any, cache *Cache) (Embedder, error) {
		return NewLocalProvider(params, cache)
	})
	r.Register(ProviderOpenAI, func(params map[string]any, cache *Cache) (Embedder, error) {
		return NewOpenAIProvider(params, cache)
	})
	r.Register(ProviderJina, func(params map[string]any, cache *Cache) (Embedder, error) {
		return NewJinaProvider(params, cache)
	})
	return r
}

// Register adds or replaces a factory. Names are case-insensitive.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(name)] = f
}

// Names lists the registered embedding functions.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New builds the named embedder. An unknown name logs a warning and falls
// back to DefaultProvider.
func (r *Registry) New(name string, params map[string]any) (Embedder, error) {
	r.mu.RLock()
	f, ok := r.factories[strings.ToLower(name)]
	fallback := r.factories[DefaultProvider]
	r.mu.RUnlock()

	if !ok {
		if name != "" {
			r.logger.Warn("unknown embedding function, falling back",
				"embedding_function", name, "fallback", DefaultProvider)
		}
		f = fallback
	}
	if f == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoProviderEnabled, name)
	}

	size, err := paramInt(params, ParamCacheSize)
	if err != nil {
		return nil, err
	}
	emb, err := f(params, NewCache(size))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding function %q: %w", name, err)
	}
	return emb, nil
}
