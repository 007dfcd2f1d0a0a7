package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/hyperjump/kioku/internal/config"
)

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestMockEmbedder(t *testing.T) {
	e := NewMockEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "Meeting notes about the garden")
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 64 {
		t.Fatalf("len = %d, want 64", len(a))
	}
	if n := math.Sqrt(dot(a, a)); math.Abs(n-1) > 1e-5 {
		t.Errorf("norm = %v, want 1", n)
	}
	again, _ := e.Embed(ctx, "meeting NOTES about the garden!")
	if math.Abs(dot(a, again)-1) > 1e-5 {
		t.Error("case and punctuation should not change the embedding")
	}
	b, _ := e.Embed(ctx, "the garden needs water")
	c, _ := e.Embed(ctx, "quarterly tax return deadline")
	if dot(a, b) <= dot(a, c) {
		t.Errorf("texts sharing words should be closer: ab=%v ac=%v", dot(a, b), dot(a, c))
	}

	empty, _ := e.Embed(ctx, "   ")
	if dot(empty, empty) != 0 {
		t.Error("text without words should embed to the zero vector")
	}
	if NewMockEmbedder(0).Dimensions() != 384 {
		t.Error("default dimensions should be 384")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.EmbeddingConfig
		wantErr bool
		dims    int
	}{
		{"mock", config.EmbeddingConfig{Provider: ProviderMock, Dimensions: 16}, false, 16},
		{"mock cached", config.EmbeddingConfig{Provider: ProviderMock, CacheSize: 10}, false, 384},
		{"ollama", config.EmbeddingConfig{Provider: ProviderOllama, Dimensions: 768}, false, 768},
		{"onnx without model", config.EmbeddingConfig{Provider: ProviderONNX, ModelPath: "/nonexistent/model.onnx", Dimensions: 8}, false, 0},
		{"unknown", config.EmbeddingConfig{Provider: "cohere"}, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(tt.cfg, nil)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			defer e.Close()
			if e.Dimensions() != tt.dims {
				t.Errorf("Dimensions = %d, want %d", e.Dimensions(), tt.dims)
			}
		})
	}
}

func TestNew_unavailableProviderFailsToEmbed(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	tests := []struct {
		name string
		cfg  config.EmbeddingConfig
	}{
		{"openai without key", config.EmbeddingConfig{Provider: ProviderOpenAI, Dimensions: 32, CacheSize: 10}},
		{"onnx without model", config.EmbeddingConfig{Provider: ProviderONNX, ModelPath: "/nonexistent/model.onnx"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(tt.cfg, nil)
			if err != nil {
				t.Fatal(err)
			}
			if _, ok := e.(*Unavailable); !ok {
				t.Fatalf("expected *Unavailable, got %T", e)
			}
			if v, err := e.Embed(context.Background(), "hello"); err == nil || v != nil {
				t.Errorf("Embed = %v, %v; want an error", v, err)
			}
			if _, err := e.EmbedBatch(context.Background(), []string{"a"}); err == nil {
				t.Error("EmbedBatch should fail")
			}
		})
	}
}
