// Package ranking narrows ranked similarity results with an adaptive threshold.
package ranking

import (
	"math"

	"github.com/hyperjump/kioku/internal/models"
)

// DefaultThresholds are tried from the strictest down; the first one that
// admits at least one result wins.
var DefaultThresholds = []float64{0.8, 0.7, 0.6, 0.5}

// Selection is the outcome of SelectRelevant.
type Selection struct {
	// Threshold is the bar the results cleared. NaN when Found is false.
	Threshold float64
	// Found reports whether any threshold admitted a result.
	Found bool
	// Degraded is true when a threshold below the first one had to be used.
	Degraded bool
	Results  []models.SimilarityResult
}

// SelectRelevant filters ranked (already sorted, typically the top 5) by each threshold
// in turn and returns the first non-empty subset. Input order is preserved.
// A nil or empty thresholds slice means DefaultThresholds.
func SelectRelevant(ranked []models.SimilarityResult, thresholds []float64) Selection {
	if len(thresholds) == 0 {
		thresholds = DefaultThresholds
	}
	for i, threshold := range thresholds {
		selected := filterAtLeast(ranked, threshold)
		if len(selected) > 0 {
			return Selection{
				Threshold: threshold,
				Found:     true,
				Degraded:  i > 0,
				Results:   selected,
			}
		}
	}
	return Selection{Threshold: math.NaN(), Results: []models.SimilarityResult{}}
}

func filterAtLeast(ranked []models.SimilarityResult, threshold float64) []models.SimilarityResult {
	var out []models.SimilarityResult
	for _, r := range ranked {
		if r.Score >= threshold {
			out = append(out, r)
		}
	}
	return out
}

// Related converts a selection into the RelatedNotes shape used by the CLI and the API.
func (s Selection) Related(source string) *models.RelatedNotes {
	rel := &models.RelatedNotes{
		Source:   source,
		Degraded: s.Degraded,
		Results:  s.Results,
	}
	if s.Found {
		t := s.Threshold
		rel.Threshold = &t
	}
	if rel.Results == nil {
		rel.Results = []models.SimilarityResult{}
	}
	return rel
}
