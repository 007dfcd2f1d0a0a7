package embedding

import (
	"fmt"

	"github.com/hyperjump/kioku/internal/config"
	"go.uber.org/zap"
)

// Provider names accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderONNX   = "onnx"
	ProviderMock   = "mock"
)

// defaultLocalDimensions is used by the mock and ONNX providers when none is configured.
const defaultLocalDimensions = 384

// ONNXConfig configures NewONNXEmbedder.
type ONNXConfig struct {
	ModelPath  string
	Dimensions int
	MaxTokens  int
	// OutputName is the model's pooled embedding output. Defaults to "output".
	OutputName string
}

func (c ONNXConfig) withDefaults() ONNXConfig {
	if c.Dimensions <= 0 {
		c.Dimensions = defaultLocalDimensions
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 256
	}
	if c.OutputName == "" {
		c.OutputName = "output"
	}
	return c
}

// New builds the embedder selected by cfg.Provider and wraps it in a CachingEmbedder.
// When the OpenAI or ONNX provider cannot be set up (no API key, no cgo, missing model)
// it logs a warning and returns an Unavailable embedder, so commands that never embed
// still work while every embedding attempt fails. The mock is only used when
// configured explicitly.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case ProviderOpenAI, "":
		e, err = NewOpenAIEmbedder(cfg.Model, cfg.Dimensions)
		if err != nil {
			logger.Warn("OpenAI embedder unavailable", zap.Error(err))
			return &Unavailable{Provider: ProviderOpenAI, Err: err}, nil
		}
	case ProviderOllama:
		e = NewOllamaEmbedder(cfg.OllamaURL, cfg.Model, cfg.Dimensions)
	case ProviderONNX:
		e, err = NewONNXEmbedder(ONNXConfig{
			ModelPath:  cfg.ModelPath,
			Dimensions: cfg.Dimensions,
			MaxTokens:  cfg.MaxTokens,
		})
		if err != nil {
			logger.Warn("ONNX embedder unavailable", zap.Error(err))
			return &Unavailable{Provider: ProviderONNX, Err: err}, nil
		}
	case ProviderMock:
		e = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai, ollama, onnx, mock)", cfg.Provider)
	}
	if cfg.CacheSize > 0 {
		e = NewCachingEmbedder(e, cfg.CacheSize)
	}
	return e, nil
}
