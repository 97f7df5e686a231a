package sink

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/dnswlt/apicsync/internal/api"
)

// MemorySink keeps the current entity set in memory.
// It is safe for concurrent use.
type MemorySink struct {
	mu        sync.Mutex
	entities  map[string]DeferredEntity
	mutations []*Mutation
}

func NewMemorySink() *MemorySink {
	return &MemorySink{entities: make(map[string]DeferredEntity)}
}

func (s *MemorySink) ApplyMutation(ctx context.Context, m *Mutation) error {
	if err := m.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.Type == Full {
		maps.DeleteFunc(s.entities, func(_ string, d DeferredEntity) bool {
			return m.LocationKey == "" || d.LocationKey == m.LocationKey
		})
	}
	for _, d := range m.Upserts() {
		s.entities[d.Entity.GetRef()] = d
	}
	for _, r := range m.Removed {
		delete(s.entities, r)
	}
	s.mutations = append(s.mutations, m)
	return nil
}

// Entity returns the entity with the given reference.
func (s *MemorySink) Entity(ref string) (api.Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.entities[ref]
	return d.Entity, ok
}

// Refs returns the sorted references of all entities.
func (s *MemorySink) Refs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.entities))
}

// Entities returns all entities, sorted by reference.
func (s *MemorySink) Entities() []api.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]api.Entity, 0, len(s.entities))
	for _, d := range s.entities {
		result = append(result, d.Entity)
	}
	slices.SortFunc(result, api.CompareEntityByRef)
	return result
}

// Mutations returns all mutations applied so far.
func (s *MemorySink) Mutations() []*Mutation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.mutations)
}
