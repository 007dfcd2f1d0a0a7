// Package embedding turns note text into vectors. Providers are OpenAI (through
// langchaingo), Ollama, a local ONNX model, and a deterministic mock for tests and
// offline use. CachingEmbedder puts an LRU cache in front of any of them.
package embedding

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// QueryEmbedder is implemented by embedders that encode search queries differently
// from stored documents.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// EmbedQuery embeds query with e's query encoding when it has one, and with Embed otherwise.
func EmbedQuery(ctx context.Context, e Embedder, query string) ([]float32, error) {
	if q, ok := e.(QueryEmbedder); ok {
		return q.EmbedQuery(ctx, query)
	}
	return e.Embed(ctx, query)
}

func embedEach(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
