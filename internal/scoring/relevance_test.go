package scoring

import (
	"math"
	"testing"
)

func TestRelevance(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float32
	}{
		{"identical vectors", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite vectors", []float32{1, 0, 0}, []float32{-1, 0, 0}, -1},
		{"orthogonal vectors", []float32{1, 0}, []float32{0, 1}, 0},
		{"mismatched lengths", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"empty vectors", nil, nil, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Relevance(tt.a, tt.b)
			if math.Abs(float64(got-tt.want)) > 1e-5 {
				t.Errorf("Relevance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRelevanceRange(t *testing.T) {
	a := []float32{0.3, -0.7, 0.2, 0.9}
	b := []float32{-0.1, 0.4, 0.8, -0.2}

	got := Relevance(a, b)
	if got < -1 || got > 1 {
		t.Errorf("Relevance() = %v, outside [-1, 1]", got)
	}

	// Symmetry
	if rev := Relevance(b, a); math.Abs(float64(got-rev)) > 1e-6 {
		t.Errorf("Relevance not symmetric: %v != %v", got, rev)
	}
}
