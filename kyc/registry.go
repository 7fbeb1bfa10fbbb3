package kyc

import (
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Registry maps provider names to constructors and caches the instances it builds.
type Registry struct {
	mu           sync.Mutex
	constructors map[string]Constructor
	instances    map[string]Provider
	group        singleflight.Group
	// generation changes on every Register and ClearCache. A construction
	// that started in an older generation is not cached.
	generation uint64
}

func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]Constructor),
		instances:    make(map[string]Provider),
	}
}

// Register adds or replaces the constructor for name. A replaced constructor
// drops any instance already cached under that name.
func (r *Registry) Register(name string, constructor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name] = constructor
	delete(r.instances, name)
	r.generation++
	r.group.Forget(name)
}

// Get returns the cached instance for name, constructing it on first use.
// Concurrent first calls share a single construction.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.Lock()
	if p, ok := r.instances[name]; ok {
		r.mu.Unlock()
		return p, nil
	}
	_, ok := r.constructors[name]
	r.mu.Unlock()
	if !ok {
		return nil, NewConfigurationError(name, "unknown provider", nil)
	}

	v, err, _ := r.group.Do(name, func() (interface{}, error) {
		r.mu.Lock()
		if p, ok := r.instances[name]; ok {
			r.mu.Unlock()
			return p, nil
		}
		constructor, ok := r.constructors[name]
		generation := r.generation
		r.mu.Unlock()
		if !ok {
			return nil, NewConfigurationError(name, "unknown provider", nil)
		}

		p, err := constructor()
		if err != nil {
			return nil, NewConfigurationError(name, "provider could not be constructed", err)
		}
		if p == nil {
			return nil, NewConfigurationError(name, "constructor returned no provider", nil)
		}

		r.mu.Lock()
		if r.generation == generation {
			r.instances[name] = p
		}
		r.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Provider), nil
}

// IsAvailable reports whether a constructor is registered under name.
func (r *Registry) IsAvailable(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.constructors[name]
	return ok
}

// ListAvailable returns the registered provider names in sorted order.
func (r *Registry) ListAvailable() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	r.mu.Unlock()
	sort.Strings(names)
	return names
}

// ClearCache drops every cached instance. The next Get constructs afresh.
func (r *Registry) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances = make(map[string]Provider)
	r.generation++
	for name := range r.constructors {
		r.group.Forget(name)
	}
}
