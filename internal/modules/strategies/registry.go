package strategies

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps strategy names to implementations. New variants plug in via
// Register without the simulator or screener changing.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// NewDefaultRegistry creates a registry with all built-in strategies.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewMACross())
	r.Register(NewFiveStep())
	r.Register(NewWeeklyMACDFilter())
	r.Register(NewSixRules())
	return r
}

// Register adds a strategy, replacing any previous one with the same name.
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Name()] = s
}

// Get returns a strategy by name.
func (r *Registry) Get(name string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy: %s", name)
	}
	return s, nil
}

// List returns the registered strategy names sorted alphabetically.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
