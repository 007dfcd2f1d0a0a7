package vector

import (
	"fmt"
	"math"
	"sort"

	"github.com/hyperjump/kioku/internal/models"
)

// DefaultRankLimit is the number of ranked notes returned when no limit is given.
const DefaultRankLimit = 5

// RankSimilar ranks every other note in store against the embedding of sourceID.
// The source itself and pairs with undefined similarity are excluded. Results are
// sorted by descending score; equal scores keep store.IDs() order. At most limit
// results are returned (DefaultRankLimit when limit <= 0).
func RankSimilar(sourceID string, store models.Store, limit int) ([]models.SimilarityResult, error) {
	source, ok := store[sourceID]
	if !ok {
		return nil, fmt.Errorf("%w: no embedding for %q", models.ErrNotFound, sourceID)
	}
	return RankVector(source.Vector, store, sourceID, limit)
}

// RankVector ranks all notes in store against query, skipping the exclude ID.
// An empty exclude skips nothing since note IDs are never empty.
func RankVector(query []float32, store models.Store, exclude string, limit int) ([]models.SimilarityResult, error) {
	if limit <= 0 {
		limit = DefaultRankLimit
	}
	results := make([]models.SimilarityResult, 0, len(store))
	for _, id := range store.IDs() {
		if id == exclude {
			continue
		}
		score, err := CosineSimilarity(query, store[id].Vector)
		if err != nil {
			return nil, fmt.Errorf("compare with %q: %w", id, err)
		}
		if math.IsNaN(score) {
			continue
		}
		results = append(results, models.SimilarityResult{ID: id, Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
