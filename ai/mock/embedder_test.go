package mock

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	a, err := m.EmbedText(ctx, "The quick brown fox")
	require.NoError(t, err)
	b, err := m.EmbedText(ctx, "the quick BROWN fox!")
	require.NoError(t, err)

	assert.Len(t, a, DefaultDim)
	assert.Equal(t, a, b, "normalization makes these the same text")
	assert.InDelta(t, 1.0, norm(a), 1e-5)
	assert.Equal(t, 2, m.CallCount())
}

func TestMockEmbedder_EmptyText(t *testing.T) {
	m := &MockEmbedder{Dim: 8}
	v, err := m.EmbedText(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), v)
}

func TestMockEmbedder_Batch(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	vectors, err := m.EmbedTexts(ctx, []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)

	single, err := m.EmbedText(ctx, "two")
	require.NoError(t, err)
	assert.Equal(t, single, vectors[1])
}

func TestMockEmbedder_Injection(t *testing.T) {
	boom := errors.New("boom")
	m := NewMockEmbedder().WithEmbedTextFunc(func(context.Context, string) ([]float32, error) {
		return nil, boom
	})

	_, err := m.EmbedText(context.Background(), "x")
	assert.ErrorIs(t, err, boom)

	m.Reset()
	assert.Equal(t, 0, m.CallCount())
	_, err = m.EmbedText(context.Background(), "x")
	assert.NoError(t, err)
}

func TestMockEmbedder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMockEmbedder().EmbedText(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
