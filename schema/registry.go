package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds registered entities keyed by name. Registration is a
// compute-if-absent: concurrent first-time registrations of the same name
// have a single winner, and every caller observes the winner's entity.
// Entities must not be mutated after registration.
type Registry struct {
	entities sync.Map // string -> *Entity
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register validates and stores the entity. If an entity with the same name
// is already registered, the existing one wins and is returned.
func (r *Registry) Register(e *Entity) (*Entity, error) {
	if e == nil {
		return nil, fmt.Errorf("register nil entity")
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("invalid entity: %w", err)
	}
	actual, _ := r.entities.LoadOrStore(e.Name, e)
	return actual.(*Entity), nil
}

// GetOrCompute returns the registered entity for name, building and
// registering it with build on first use. Concurrent first-time calls may
// each invoke build, but only one result is published.
func (r *Registry) GetOrCompute(name string, build func() (*Entity, error)) (*Entity, error) {
	if existing, ok := r.entities.Load(name); ok {
		return existing.(*Entity), nil
	}
	e, err := build()
	if err != nil {
		return nil, err
	}
	if e.Name != name {
		return nil, fmt.Errorf("built entity is named %q, want %q", e.Name, name)
	}
	return r.Register(e)
}

// Get returns the registered entity for name.
func (r *Registry) Get(name string) (*Entity, bool) {
	v, ok := r.entities.Load(name)
	if !ok {
		return nil, false
	}
	return v.(*Entity), true
}

// Names returns the registered entity names in sorted order.
func (r *Registry) Names() []string {
	var names []string
	r.entities.Range(func(key, _ any) bool {
		names = append(names, key.(string))
		return true
	})
	sort.Strings(names)
	return names
}
