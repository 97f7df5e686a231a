package provider

import (
	"maps"
	"slices"
)

// Resource groups whose emitted references are tracked per catalog.
const (
	groupProducts      = "products"
	groupAPIs          = "apis"
	groupApplications  = "applications"
	groupSubscriptions = "subscriptions"
	groupCredentials   = "credentials"
)

// tombstones remembers the references emitted for each catalog and
// resource group in the previous run.
type tombstones struct {
	emitted map[string]map[string][]string // catalog -> group -> refs
}

func newTombstones() *tombstones {
	return &tombstones{emitted: make(map[string]map[string][]string)}
}

// diff returns the references to remove and the references to track next.
// Nothing is removed if the current fetch was incomplete; in that case the
// previous references stay tracked alongside the current ones.
func (t *tombstones) diff(catalog, group string, current []string, complete bool) (removed, next []string) {
	prev := t.emitted[catalog][group]
	if !complete {
		next = slices.Clone(current)
		for _, r := range prev {
			if !slices.Contains(current, r) {
				next = append(next, r)
			}
		}
		return nil, next
	}
	for _, r := range prev {
		if !slices.Contains(current, r) {
			removed = append(removed, r)
		}
	}
	return removed, slices.Clone(current)
}

// commit records refs as emitted for the catalog and group.
func (t *tombstones) commit(catalog, group string, refs []string) {
	groups, ok := t.emitted[catalog]
	if !ok {
		groups = make(map[string][]string)
		t.emitted[catalog] = groups
	}
	groups[group] = refs
}

// vanished returns the tracked catalogs that are not in current.
func (t *tombstones) vanished(current []string) []string {
	var result []string
	for _, c := range slices.Sorted(maps.Keys(t.emitted)) {
		if !slices.Contains(current, c) {
			result = append(result, c)
		}
	}
	return result
}

// all returns every reference tracked for catalog.
func (t *tombstones) all(catalog string) []string {
	var result []string
	groups := t.emitted[catalog]
	for _, g := range slices.Sorted(maps.Keys(groups)) {
		result = append(result, groups[g]...)
	}
	return result
}

func (t *tombstones) forget(catalog string) {
	delete(t.emitted, catalog)
}
