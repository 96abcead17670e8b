package domain

import (
	"fmt"
	"sync"
)

// Registry enforces the single-instance constraint: at most one live data
// channel per station. Keys are station identifiers ("local:<addr>" or
// "cloud:<station id>").
type Registry struct {
	mu       sync.Mutex
	stations map[string]bool
}

// NewRegistry creates an empty station registry.
func NewRegistry() *Registry {
	return &Registry{stations: make(map[string]bool)}
}

// Register claims a station key. Returns ErrAlreadyConfigured if the key is
// already held.
func (r *Registry) Register(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stations[key] {
		return fmt.Errorf("%w: %s", ErrAlreadyConfigured, key)
	}
	r.stations[key] = true
	return nil
}

// Release frees a station key so it can be registered again.
func (r *Registry) Release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stations, key)
}
