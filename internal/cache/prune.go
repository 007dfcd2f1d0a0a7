// Package cache reconciles the embedding store with the notes that still exist.
// It does no I/O; callers supply the existing IDs and persist the result.
package cache

import (
	"sort"

	"github.com/hyperjump/kioku/internal/models"
)

// IDSet is a set of note IDs.
type IDSet map[string]struct{}

// NewIDSet builds a set from ids.
func NewIDSet(ids ...string) IDSet {
	set := make(IDSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Has reports whether id is in the set.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Prune returns a copy of store without the entries whose ID is not in existing.
// The input store is not modified.
func Prune(store models.Store, existing IDSet) models.Store {
	out := make(models.Store, len(store))
	for id, rec := range store {
		if existing.Has(id) {
			out[id] = rec
		}
	}
	return out
}

// Stale returns the sorted IDs that Prune would remove.
func Stale(store models.Store, existing IDSet) []string {
	var stale []string
	for id := range store {
		if !existing.Has(id) {
			stale = append(stale, id)
		}
	}
	sort.Strings(stale)
	return stale
}

// Missing returns the sorted IDs in existing that have no entry in store.
func Missing(store models.Store, existing IDSet) []string {
	var missing []string
	for id := range existing {
		if _, ok := store[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return missing
}
