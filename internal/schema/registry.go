package schema

import (
	"fmt"
	"sync"
)

// UnknownTypeError is returned when no schema is registered under a name.
type UnknownTypeError struct {
	Name string
}

func (e UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown object type: %s", e.Name)
}

// Registry maps type names and endpoints to schemas. It is written during
// startup and read concurrently afterwards.
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]*Schema
	byPlural map[string]*Schema
	order    []*Schema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:   make(map[string]*Schema),
		byPlural: make(map[string]*Schema),
	}
}

// Register adds a schema. Names and plurals must be unique.
func (r *Registry) Register(s *Schema) error {
	if s.Name == "" || s.Plural == "" {
		return fmt.Errorf("schema name and plural are required")
	}
	if s.New == nil {
		return fmt.Errorf("schema %s: constructor is required", s.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[s.Name]; exists {
		return fmt.Errorf("schema %s already registered", s.Name)
	}
	if _, exists := r.byPlural[s.Plural]; exists {
		return fmt.Errorf("endpoint %s already registered", s.Endpoint())
	}

	r.byName[s.Name] = s
	r.byPlural[s.Plural] = s
	r.order = append(r.order, s)
	return nil
}

// MustRegister panics on registration errors.
func (r *Registry) MustRegister(schemas ...*Schema) {
	for _, s := range schemas {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
}

// Get resolves a schema by singular name.
func (r *Registry) Get(name string) (*Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.byName[name]; ok {
		return s, nil
	}
	return nil, UnknownTypeError{Name: name}
}

// ByPlural resolves a schema by the plural used in its endpoint.
func (r *Registry) ByPlural(plural string) (*Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.byPlural[plural]; ok {
		return s, nil
	}
	return nil, UnknownTypeError{Name: plural}
}

// Lookup resolves either a singular or a plural name.
func (r *Registry) Lookup(name string) (*Schema, error) {
	if s, err := r.Get(name); err == nil {
		return s, nil
	}
	return r.ByPlural(name)
}

// SchemaOf returns the schema of an object.
func (r *Registry) SchemaOf(obj Object) (*Schema, error) {
	return r.Get(obj.TypeName())
}

// All returns schemas in registration order.
func (r *Registry) All() []*Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Schema, len(r.order))
	copy(out, r.order)
	return out
}

// Stub returns an empty instance of typeName carrying only uid.
func (r *Registry) Stub(typeName, uid string) (Object, error) {
	s, err := r.Get(typeName)
	if err != nil {
		return nil, err
	}
	obj := s.New()
	obj.Base().UID = uid
	return obj, nil
}
