// Package search merges keyword and semantic note rankings into one hybrid ranking.
package search

import (
	"sort"

	"github.com/hyperjump/kioku/internal/models"
)

// Weights balance keyword against semantic scores in Fuse.
type Weights struct {
	Keyword  float64
	Semantic float64
}

// DefaultWeights weigh both sources equally.
var DefaultWeights = Weights{Keyword: 0.5, Semantic: 0.5}

// FusedResult holds a note ID with its fused and per-source scores.
type FusedResult struct {
	ID            string  `json:"id"`
	Score         float64 `json:"score"`
	KeywordScore  float64 `json:"keyword_score"`
	SemanticScore float64 `json:"semantic_score"`
}

// NormalizeKeywordScores scales keyword scores to [0,1] by the best score.
func NormalizeKeywordScores(results []models.SimilarityResult) map[string]float64 {
	normalized := make(map[string]float64, len(results))
	var maxScore float64
	for _, r := range results {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}
	for _, r := range results {
		if maxScore > 0 {
			normalized[r.ID] = r.Score / maxScore
		} else {
			normalized[r.ID] = 0
		}
	}
	return normalized
}

// SemanticScores maps cosine similarities by note ID. Negative similarities count as 0.
func SemanticScores(results []models.SimilarityResult) map[string]float64 {
	scores := make(map[string]float64, len(results))
	for _, r := range results {
		if r.Score > 0 {
			scores[r.ID] = r.Score
		} else {
			scores[r.ID] = 0
		}
	}
	return scores
}

// Fuse merges keyword and semantic score maps with weights. Results are sorted by fused
// score descending, ties by ID ascending.
func Fuse(keywordScores, semanticScores map[string]float64, w Weights) []FusedResult {
	byID := make(map[string]*FusedResult, len(keywordScores)+len(semanticScores))
	for id, score := range keywordScores {
		byID[id] = &FusedResult{ID: id, KeywordScore: score}
	}
	for id, score := range semanticScores {
		if r, ok := byID[id]; ok {
			r.SemanticScore = score
		} else {
			byID[id] = &FusedResult{ID: id, SemanticScore: score}
		}
	}
	results := make([]FusedResult, 0, len(byID))
	for _, r := range byID {
		r.Score = w.Keyword*r.KeywordScore + w.Semantic*r.SemanticScore
		results = append(results, *r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	return results
}
