package indexing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func magnitude(v []float32) float64 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	return math.Sqrt(sum)
}

func TestNormalizeVector(t *testing.T) {
	tests := []struct {
		name     string
		input    []float32
		expected []float32
	}{
		{"unit vector unchanged", []float32{1, 0, 0}, []float32{1, 0, 0}},
		{"scales 3-4-5", []float32{3, 4}, []float32{0.6, 0.8}},
		{"negative values", []float32{-1, 1}, []float32{-1 / float32(math.Sqrt2), 1 / float32(math.Sqrt2)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeVector(tt.input)
			assert.Len(t, result, len(tt.expected))
			for i := range result {
				assert.InDelta(t, tt.expected[i], result[i], 1e-6, "element %d", i)
			}
			assert.InDelta(t, 1.0, magnitude(result), 1e-6)
		})
	}
}

func TestNormalizeVector_DoesNotMutateInput(t *testing.T) {
	input := []float32{3, 4}
	NormalizeVector(input)
	assert.Equal(t, []float32{3, 4}, input)
}

func TestNormalizeVector_ZeroAndEmpty(t *testing.T) {
	assert.Equal(t, []float32{0, 0, 0}, NormalizeVector([]float32{0, 0, 0}))
	assert.Empty(t, NormalizeVector([]float32{}))
}
