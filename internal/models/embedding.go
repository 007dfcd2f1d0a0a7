// Package models defines core data structures for notes, embeddings, and similarity results.
package models

import (
	"sort"
	"time"
)

// EmbeddingRecord is the cached embedding of one note. The note ID is the key it is stored under.
type EmbeddingRecord struct {
	Vector    []float32 `json:"vector"`
	Timestamp time.Time `json:"timestamp"`
}

// Store maps note IDs (filenames) to their embedding records.
// A missing ID means no embedding has been computed yet; a record with an empty
// vector is a computed but empty embedding.
type Store map[string]EmbeddingRecord

// IDs returns the store keys in ascending order. This is the iteration order used
// wherever ordering matters (ranking ties, output). Note filenames start with their
// creation timestamp, so this is also chronological order.
func (s Store) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a shallow copy of the store. Vectors are shared, records are not.
func (s Store) Clone() Store {
	out := make(Store, len(s))
	for id, rec := range s {
		out[id] = rec
	}
	return out
}

// SimilarityResult is a ranked note with its cosine similarity to a source vector.
type SimilarityResult struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}
