// Package sink defines how ingested entities are handed to the catalog.
//
// An ingestion run emits one full mutation, which replaces the entity
// set of the provider, followed by delta mutations that add and remove
// individual entities.
package sink

import (
	"context"
	"fmt"

	"github.com/dnswlt/apicsync/internal/api"
)

type MutationType int

const (
	Full MutationType = iota
	Delta
)

func (t MutationType) String() string {
	switch t {
	case Full:
		return "full"
	case Delta:
		return "delta"
	}
	return fmt.Sprintf("MutationType(%d)", int(t))
}

// DeferredEntity is an entity together with the key of the location that provides it.
type DeferredEntity struct {
	Entity      api.Entity
	LocationKey string
}

// Mutation is a batch of changes to the catalog.
type Mutation struct {
	Type MutationType
	// LocationKey scopes a Full mutation: it replaces all entities that were
	// previously provided under the same location key. An empty key
	// replaces all entities of the sink.
	LocationKey string
	// Entities is the complete entity set of a Full mutation.
	Entities []DeferredEntity
	// Added and Removed are only used by Delta mutations.
	Added []DeferredEntity
	// References of entities to remove, e.g. "component:cat1/my-app".
	Removed []string
}

// Sink receives the mutations of ingestion runs.
type Sink interface {
	ApplyMutation(ctx context.Context, m *Mutation) error
}

// Flusher is implemented by sinks that persist the mutations of a run
// as a unit, such as GitSink.
type Flusher interface {
	Flush(ctx context.Context, message string) error
}

// LocationKey returns the location key of entities ingested from the given
// provider: apic:<provider> for organization-level entities and
// apic:<provider>/<catalog> for entities of a catalog.
func LocationKey(providerID string, catalog ...string) string {
	key := api.SourceLocationPrefix + providerID
	if len(catalog) > 0 && catalog[0] != "" {
		key += "/" + catalog[0]
	}
	return key
}

// WithLocation annotates e with the location key and wraps it as a
// DeferredEntity. Existing location annotations are kept.
func WithLocation(key string, e api.Entity) DeferredEntity {
	m := e.GetMetadata()
	for _, a := range []string{api.AnnotManagedByLocation, api.AnnotManagedByOriginLoc} {
		if m.Annotation(a) == "" {
			m.SetAnnotation(a, key)
		}
	}
	return DeferredEntity{Entity: e, LocationKey: key}
}

// WithLocations applies WithLocation to all entities.
func WithLocations[E api.Entity](key string, entities []E) []DeferredEntity {
	result := make([]DeferredEntity, len(entities))
	for i, e := range entities {
		result[i] = WithLocation(key, e)
	}
	return result
}

// Upserts returns the entities that m adds or replaces.
func (m *Mutation) Upserts() []DeferredEntity {
	if m.Type == Full {
		return m.Entities
	}
	return m.Added
}

// Validate checks that all entities of m have valid names and that their
// references are resolved and well-formed.
func (m *Mutation) Validate() error {
	for _, d := range m.Upserts() {
		md := d.Entity.GetMetadata()
		if md == nil || !api.IsValidName(md.Name) {
			return fmt.Errorf("invalid entity name in %s mutation: %q", m.Type, d.Entity.GetRef())
		}
		if md.Namespace != "" && !api.IsValidNamespace(md.Namespace) {
			return fmt.Errorf("invalid namespace of %s", d.Entity.GetRef())
		}
		for _, rel := range d.Entity.Relations() {
			if rel.Ref.IsPending() {
				return fmt.Errorf("%s has an unresolved reference in field %s", d.Entity.GetRef(), rel.Field)
			}
			if !rel.Ref.IsResolved() {
				continue
			}
			if _, err := api.ParseRef(rel.Ref.String()); err != nil {
				return fmt.Errorf("%s has an invalid reference in field %s: %w", d.Entity.GetRef(), rel.Field, err)
			}
		}
	}
	for _, r := range m.Removed {
		if _, err := api.ParseRef(r); err != nil {
			return fmt.Errorf("invalid removed reference %q: %w", r, err)
		}
	}
	return nil
}
