// Package models defines the core data types of the simulation: persons,
// identities, disease and quarantine states, replay events and infection
// records.
package models

// PersonID is the dense arena index of a person.
type PersonID int32

// ContainerID is the dense arena index of a facility or vehicle.
type ContainerID int32

// ActivityID is the dense index of an activity type such as "work_8h".
type ActivityID int32

// NoContainer marks a person who is outside every container.
const NoContainer ContainerID = -1

// Registry interns external string identifiers into dense indices.
// Indices are assigned in first-seen order and never reused.
// A Registry is not safe for concurrent mutation; it is filled during
// bootstrap and only read afterwards.
type Registry[ID ~int32] struct {
	names []string
	index map[string]ID
}

// NewRegistry creates an empty registry.
func NewRegistry[ID ~int32]() *Registry[ID] {
	return &Registry[ID]{index: make(map[string]ID)}
}

// Intern returns the index for name, assigning the next free one if the
// name has not been seen. The boolean reports whether the name was new.
func (r *Registry[ID]) Intern(name string) (ID, bool) {
	if id, ok := r.index[name]; ok {
		return id, false
	}
	id := ID(len(r.names))
	r.names = append(r.names, name)
	r.index[name] = id
	return id, true
}

// Lookup returns the index for name without interning it.
func (r *Registry[ID]) Lookup(name string) (ID, bool) {
	id, ok := r.index[name]
	return id, ok
}

// Name returns the external identifier for id, or "" when out of range.
func (r *Registry[ID]) Name(id ID) string {
	if id < 0 || int(id) >= len(r.names) {
		return ""
	}
	return r.names[id]
}

// Len returns the number of interned identifiers.
func (r *Registry[ID]) Len() int {
	return len(r.names)
}

// Names returns the identifiers in index order. The slice is shared.
func (r *Registry[ID]) Names() []string {
	return r.names
}
