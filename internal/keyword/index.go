// Package keyword provides full-text search over notes.
package keyword

import (
	"context"

	"github.com/hyperjump/kioku/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// TitleBoost multiplies the score contribution from matches in the title.
	// Values > 1 make title matches rank higher. Use 1.0 for no boost.
	TitleBoost float64
	// Fuzziness is the maximum edit distance for typo-tolerant matching (0 disables, max 2).
	Fuzziness int
}

// KeywordIndex defines keyword search operations.
type KeywordIndex interface {
	Index(ctx context.Context, note models.Note) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]models.SimilarityResult, error)
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}
