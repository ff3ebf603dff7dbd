package lsh

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRowsPerBand(t *testing.T) {
	tests := []struct {
		numPerm, bands, want int
	}{
		{128, 32, 4},
		{128, 16, 8},
		{128, 30, 0},
		{128, 0, 0},
		{0, 4, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RowsPerBand(tt.numPerm, tt.bands), "P=%d b=%d", tt.numPerm, tt.bands)
	}
}

func TestThreshold(t *testing.T) {
	assert.InDelta(t, 0.4204, Threshold(128, 32), 1e-3)
	assert.InDelta(t, 0.7071, Threshold(128, 16), 1e-3)
	assert.True(t, math.IsNaN(Threshold(128, 30)))
}

func TestCollisionProbability(t *testing.T) {
	// S-curve is monotone and crosses the middle near the threshold.
	low := CollisionProbability(0.1, 128, 32)
	mid := CollisionProbability(Threshold(128, 32), 128, 32)
	high := CollisionProbability(0.8, 128, 32)
	assert.Less(t, low, 0.01)
	assert.Greater(t, high, 0.99)
	assert.Greater(t, mid, low)
	assert.Less(t, mid, high)
}

func TestChooseBands(t *testing.T) {
	assert.Equal(t, 32, ChooseBands(128, 0.42))
	assert.Equal(t, 16, ChooseBands(128, 0.7))
	b := ChooseBands(128, 0.5)
	assert.Equal(t, 0, 128%b)
}
