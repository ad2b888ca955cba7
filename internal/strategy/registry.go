package strategy

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/alanyoungcy/digitbot/internal/domain"
)

// Watcher is implemented by signal sources that maintain live per-symbol
// state and must be attached to the tick stream before first use.
type Watcher interface {
	Watch(ctx context.Context, symbol string) error
	Unwatch(symbol string)
}

// Registry manages a named collection of signal sources that can be looked
// up at runtime. It is safe for concurrent use.
type Registry struct {
	sources map[string]domain.SignalSource
	mu      sync.RWMutex
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]domain.SignalSource)}
}

// Register adds a source under its own name. If a source with the same name
// already exists it will be replaced.
func (r *Registry) Register(s domain.SignalSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.Name()] = s
}

// Get retrieves a source by name. It returns an error when the name is not
// registered.
func (r *Registry) Get(name string) (domain.SignalSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("signal source %q: not registered", name)
	}
	return s, nil
}

// List returns the names of all registered sources in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sources))
	for n := range r.sources {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
