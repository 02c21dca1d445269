// Package variables holds the per-iteration variables a load scenario shares
// between its steps and hooks.
package variables

import "maps"

// Store defines the interface for iteration variable storage.
type Store interface {
	// Set stores a variable with the given key and value.
	Set(key string, value any)

	// Get retrieves a variable by key. Returns (value, true) if found,
	// or (nil, false) if the key is not present.
	Get(key string) (any, bool)

	// GetAll returns a copy of all stored variables.
	GetAll() map[string]any
}

// MemoryStore is a map-based Store. One iteration owns it, so it carries no
// mutex.
type MemoryStore struct {
	vars map[string]any
}

// NewStore creates an empty MemoryStore.
func NewStore() Store {
	return &MemoryStore{vars: make(map[string]any)}
}

// NewStoreFrom creates a MemoryStore seeded with a copy of initial.
func NewStoreFrom(initial map[string]any) Store {
	s := &MemoryStore{vars: make(map[string]any, len(initial))}
	maps.Copy(s.vars, initial)
	return s
}

func (m *MemoryStore) Set(key string, value any) {
	m.vars[key] = value
}

func (m *MemoryStore) Get(key string) (any, bool) {
	value, ok := m.vars[key]
	return value, ok
}

func (m *MemoryStore) GetAll() map[string]any {
	return maps.Clone(m.vars)
}
