package embedding

import (
	"context"
	"fmt"
)

// Unavailable stands in for a configured provider that could not be set up. Every
// embedding call fails with the setup error, so nothing is written to the store.
type Unavailable struct {
	Provider string
	Err      error
}

func (e *Unavailable) failure() error {
	return fmt.Errorf("%s embedder unavailable: %w", e.Provider, e.Err)
}

func (e *Unavailable) Embed(context.Context, string) ([]float32, error) {
	return nil, e.failure()
}

func (e *Unavailable) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, e.failure()
}

func (e *Unavailable) Dimensions() int { return 0 }

func (e *Unavailable) Close() error { return nil }
