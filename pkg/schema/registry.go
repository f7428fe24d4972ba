// Package schema describes record types to the codec without runtime
// introspection: every type is registered with an explicit, ordered list of
// field descriptors, a constructor and, for subtypes, a projection onto the
// embedded supertype.
package schema

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

var (
	// ErrUnknownType is returned when a type name is not registered.
	ErrUnknownType = errors.New("unknown type")
	// ErrInvalidType is returned when a type descriptor is malformed.
	ErrInvalidType = errors.New("invalid type descriptor")
	// ErrFieldValue is returned when a value does not fit the field it is
	// stored into.
	ErrFieldValue = errors.New("value does not fit field")
)

// Registry resolves type names and runtime values to type descriptors. It is
// safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Type
	byGo   map[reflect.Type]*Type
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Type),
		byGo:   make(map[reflect.Type]*Type),
	}
}

// Register adds a type. The declared fields get their Owner set to the type's
// name. A type without a constructor is accepted but cannot back a codec and
// cannot be recognized from a runtime value.
func (r *Registry) Register(t Type) error {
	if t.Name == "" {
		return fmt.Errorf("%w: empty type name", ErrInvalidType)
	}
	if t.Super != "" && t.Base == nil {
		return fmt.Errorf("%w: %s extends %s without a base projection", ErrInvalidType, t.Name, t.Super)
	}

	fields := make([]Field, len(t.Fields))
	seen := make(map[string]bool, len(t.Fields))
	for i, f := range t.Fields {
		if f.ID.Name == "" || f.Get == nil || f.Set == nil {
			return fmt.Errorf("%w: %s field %d is incomplete", ErrInvalidType, t.Name, i)
		}
		if seen[f.ID.Name] {
			return fmt.Errorf("%w: %s declares field %q twice", ErrInvalidType, t.Name, f.ID.Name)
		}
		seen[f.ID.Name] = true
		f.ID.Owner = t.Name
		fields[i] = f
	}
	t.Fields = fields

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[t.Name]; ok {
		return fmt.Errorf("%w: %s registered twice", ErrInvalidType, t.Name)
	}
	stored := &t
	if t.New != nil {
		goType := reflect.TypeOf(t.New())
		if prev, ok := r.byGo[goType]; ok {
			return fmt.Errorf("%w: %s and %s share Go type %s", ErrInvalidType, prev.Name, t.Name, goType)
		}
		r.byGo[goType] = stored
	}
	r.byName[t.Name] = stored
	return nil
}

// MustRegister registers every type and panics on the first failure.
func (r *Registry) MustRegister(types ...Type) {
	for _, t := range types {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the named type
func (r *Registry) Lookup(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// TypeOf returns the type registered for the runtime type of v.
func (r *Registry) TypeOf(v any) (*Type, bool) {
	if v == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byGo[reflect.TypeOf(v)]
	return t, ok
}

// Names returns all registered type names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsSubtype reports whether sub is super or extends it, directly or not.
func (r *Registry) IsSubtype(sub, super string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	for name := sub; name != ""; {
		if name == super {
			return true
		}
		if seen[name] {
			return false
		}
		seen[name] = true
		t, ok := r.byName[name]
		if !ok {
			return false
		}
		name = t.Super
	}
	return false
}

// Fields returns every instance field of the named type, inherited ones
// included. Supertype fields come first; within a type, declaration order is
// kept. Accessors of inherited fields operate on a record of the named type.
func (r *Registry) Fields(name string) ([]Field, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fields(name, make(map[string]bool))
}

func (r *Registry) fields(name string, visiting map[string]bool) ([]Field, error) {
	t, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	if visiting[name] {
		return nil, fmt.Errorf("%w: %s inherits from itself", ErrInvalidType, name)
	}
	visiting[name] = true

	var all []Field
	if t.Super != "" {
		inherited, err := r.fields(t.Super, visiting)
		if err != nil {
			return nil, err
		}
		base := t.Base
		for _, f := range inherited {
			all = append(all, project(f, base))
		}
	}
	return append(all, t.Fields...), nil
}

func project(f Field, base func(any) any) Field {
	get, set := f.Get, f.Set
	f.Get = func(rec any) any { return get(base(rec)) }
	f.Set = func(rec any, v any) error { return set(base(rec), v) }
	return f
}
