package formatter

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is a thread-safe registry mapping formatter names to
// instances. Transports resolve a formatter by name when a stream is
// created; a default formatter serves streams that name none.
type Registry struct {
	formatters map[string]Formatter
	defaultFmt string
	mu         sync.RWMutex
}

// NewRegistry creates a registry preloaded with the built-in
// formatters, with passthrough as the default.
func NewRegistry() *Registry {
	r := &Registry{formatters: make(map[string]Formatter)}
	r.Register(NewPassthrough())
	r.Register(NewJSONStream())
	r.defaultFmt = "passthrough"
	return r
}

// Register adds a formatter under its own name. An existing formatter
// with the same name is replaced.
func (r *Registry) Register(f Formatter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formatters[f.Name()] = f
}

// Get retrieves a formatter by name.
func (r *Registry) Get(name string) (Formatter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.formatters[name]
	return f, ok
}

// Default returns the default formatter.
func (r *Registry) Default() (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.defaultFmt == "" {
		return nil, fmt.Errorf("no default formatter set")
	}
	f, ok := r.formatters[r.defaultFmt]
	if !ok {
		return nil, fmt.Errorf("default formatter %q not found in registry", r.defaultFmt)
	}
	return f, nil
}

// SetDefault designates a registered formatter as the default.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.formatters[name]; !ok {
		return fmt.Errorf("formatter %q not registered", name)
	}
	r.defaultFmt = name
	return nil
}

// List returns the sorted names of all registered formatters.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.formatters))
	for name := range r.formatters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unregister removes a formatter from the registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.formatters, name)
}
