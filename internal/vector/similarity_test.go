package vector

import (
	"errors"
	"math"
	"testing"

	"github.com/hyperjump/kioku/internal/models"
)

const eps = 1e-6

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 1}, []float32{-1, -1}, -1},
		{"45 degrees", []float32{1, 0}, []float32{1, 1}, 1 / math.Sqrt2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got-tt.want) > eps {
				t.Errorf("CosineSimilarity(%v, %v) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCosineSimilarity_selfIsOne(t *testing.T) {
	vecs := [][]float32{
		{0.1},
		{3, -4},
		{0.001, 0.002, 0.003, 0.004},
		{1e3, -2e3, 5e2},
	}
	for _, v := range vecs {
		got, err := CosineSimilarity(v, v)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(got-1) > eps {
			t.Errorf("CosineSimilarity(%v, self) = %f, want 1", v, got)
		}
	}
}

func TestCosineSimilarity_symmetric(t *testing.T) {
	pairs := [][2][]float32{
		{{1, 2, 3}, {-3, 0.5, 2}},
		{{0.2, 0.9}, {0.7, 0.1}},
		{{5, 5, 5, 5}, {1, 0, 0, 1}},
	}
	for _, p := range pairs {
		ab, _ := CosineSimilarity(p[0], p[1])
		ba, _ := CosineSimilarity(p[1], p[0])
		if ab != ba {
			t.Errorf("not symmetric: %f vs %f", ab, ba)
		}
	}
}

func TestCosineSimilarity_zeroMagnitudeIsNaN(t *testing.T) {
	got, err := CosineSimilarity([]float32{0, 0}, []float32{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(got) {
		t.Errorf("expected NaN for zero vector, got %f", got)
	}
	got, _ = CosineSimilarity([]float32{}, []float32{})
	if !math.IsNaN(got) {
		t.Errorf("expected NaN for empty vectors, got %f", got)
	}
}

func TestCosineSimilarity_dimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2})
	if !errors.Is(err, models.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestL2Norm(t *testing.T) {
	if got := L2Norm([]float32{3, 4}); math.Abs(got-5) > eps {
		t.Errorf("L2Norm = %f, want 5", got)
	}
	if got := L2Norm(nil); got != 0 {
		t.Errorf("L2Norm(nil) = %f", got)
	}
}
