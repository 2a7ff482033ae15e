package schema

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry errors
var (
	ErrDuplicateType = errors.New("type is already registered")
	ErrUnknownType   = errors.New("unregistered type")
)

// Registry maps fully-qualified type names to type descriptors.
// Types are never unregistered.
type Registry struct {
	types     map[string]*Type
	order     []string
	validator *Validator
	mu        sync.RWMutex
}

// NewRegistry creates a registry holding the base types
func NewRegistry() *Registry {
	r := &Registry{
		types:     make(map[string]*Type),
		validator: NewValidator(),
	}
	r.MustRegister(Base)
	r.MustRegister(SingletonBase)
	return r
}

// Register registers a type. Its parent chain must already be registered.
func (r *Registry) Register(t *Type) error {
	if t == nil {
		return fmt.Errorf("register: nil type")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[t.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, t.Name)
	}
	if err := r.validator.Validate(t); err != nil {
		return fmt.Errorf("type validation failed for %s: %w", t.Name, err)
	}
	for p := t.Parent; p != nil; p = p.Parent {
		if registered, ok := r.types[p.Name]; !ok || registered != p {
			return fmt.Errorf("type %s: parent %s is not registered", t.Name, p.Name)
		}
	}

	r.types[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// MustRegister registers a type and panics on failure. Use it from init
// functions, where a collision is a programming error.
func (r *Registry) MustRegister(types ...*Type) {
	for _, t := range types {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Resolve finds a type by name
func (r *Registry) Resolve(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[name]
	return t, ok
}

// Lookup is Resolve returning ErrUnknownType for missing names
func (r *Registry) Lookup(name string) (*Type, error) {
	t, ok := r.Resolve(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return t, nil
}

// Exists reports whether name is registered
func (r *Registry) Exists(name string) bool {
	_, ok := r.Resolve(name)
	return ok
}

// List returns registered type names sorted alphabetically
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Types returns registered types in registration order
func (r *Registry) Types() []*Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]*Type, len(r.order))
	for i, name := range r.order {
		types[i] = r.types[name]
	}
	return types
}

// Count returns the number of registered types
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}
