package openai

import (
	"testing"

	"github.com/poiesic/textguard/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbedder_InvalidConfig(t *testing.T) {
	_, err := NewEmbedder(&ai.Config{EmbeddingHost: "http://localhost:11434"})
	assert.ErrorIs(t, err, ai.ErrModelRequired)

	_, err = NewEmbedder(&ai.Config{EmbeddingModel: "m"})
	assert.ErrorIs(t, err, ai.ErrHostRequired)
}

func TestNewEmbedder_DoesNotDial(t *testing.T) {
	// Construction only configures the client; no request is sent.
	emb, err := NewEmbedder(ai.NewConfig(ai.WithEmbeddingHost("http://127.0.0.1:1")))
	require.NoError(t, err)
	assert.NotNil(t, emb)
}
