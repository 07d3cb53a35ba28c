package registry

import (
	"errors"
	"fmt"
	"sync"
)

var ErrConflict = errors.New("entity already registered with different metadata")

// EntityInfo is the display metadata for an in-game entity.
type EntityInfo struct {
	ID   uint64 `json:"id" mapstructure:"id"`
	Name string `json:"name" mapstructure:"name"`
	Team int    `json:"team" mapstructure:"team"`
}

// Lookuper resolves entity ids. The frame decoder only needs this much.
type Lookuper interface {
	Lookup(id uint64) (EntityInfo, bool)
}

// Registry maps entity ids to metadata. Entries are immutable once set and
// survive session boundaries.
type Registry struct {
	mu       sync.RWMutex
	entities map[uint64]EntityInfo
}

var _ Lookuper = (*Registry)(nil)

func New() *Registry {
	return &Registry{
		entities: make(map[uint64]EntityInfo),
	}
}

// FromEntries builds a registry from a static roster.
func FromEntries(entries []EntityInfo) (*Registry, error) {
	r := New()
	for _, e := range entries {
		if err := r.Register(e.ID, e.Name, e.Team); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Lookup returns the metadata for id, if known.
func (r *Registry) Lookup(id uint64) (EntityInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.entities[id]
	return info, ok
}

// Register records metadata for id. Re-registering identical metadata is a
// no-op; changing an existing entry returns ErrConflict.
func (r *Registry) Register(id uint64, name string, team int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := EntityInfo{ID: id, Name: name, Team: team}
	if existing, ok := r.entities[id]; ok {
		if existing != info {
			return fmt.Errorf("entity %d: %w", id, ErrConflict)
		}
		return nil
	}
	r.entities[id] = info
	return nil
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}
