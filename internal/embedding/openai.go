package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// DefaultOpenAIModel is the embedding model used when none is configured.
const DefaultOpenAIModel = "text-embedding-3-small"

// LangChainEmbedder adapts a langchaingo embedder to Embedder.
type LangChainEmbedder struct {
	embedder   embeddings.Embedder
	dimensions int
}

// NewOpenAIEmbedder returns an embedder backed by the OpenAI embeddings API. The API key
// is read from OPENAI_API_KEY.
func NewOpenAIEmbedder(model string, dimensions int) (*LangChainEmbedder, error) {
	if model == "" {
		model = DefaultOpenAIModel
	}
	llm, err := openai.New(openai.WithEmbeddingModel(model))
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
	}
	emb, err := embeddings.NewEmbedder(llm, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return NewLangChainEmbedder(emb, dimensions), nil
}

// NewLangChainEmbedder wraps e. dimensions is reported by Dimensions and, when non-zero,
// enforced on every returned vector.
func NewLangChainEmbedder(e embeddings.Embedder, dimensions int) *LangChainEmbedder {
	return &LangChainEmbedder{embedder: e, dimensions: dimensions}
}

// Embed embeds note content.
func (e *LangChainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedQuery embeds a search query.
func (e *LangChainEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vec, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := e.check(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// EmbedBatch embeds texts in as few requests as the client allows.
func (e *LangChainEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
	}
	for _, v := range vecs {
		if err := e.check(v); err != nil {
			return nil, err
		}
	}
	return vecs, nil
}

func (e *LangChainEmbedder) check(v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("embedder returned an empty vector")
	}
	if e.dimensions > 0 && len(v) != e.dimensions {
		return fmt.Errorf("embedder returned %d dimensions, expected %d", len(v), e.dimensions)
	}
	return nil
}

// Dimensions returns the configured embedding dimension (0 when unknown).
func (e *LangChainEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *LangChainEmbedder) Close() error {
	return nil
}
