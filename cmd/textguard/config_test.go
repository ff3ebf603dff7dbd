package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/textguard/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := loadSettings("")
	require.NoError(t, err)
	assert.Equal(t, core.DefaultConfig(), s.engine)
	assert.Equal(t, 5, s.policy.TopK)
	assert.Nil(t, s.embedding)
}

func TestLoadSettings_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "textguard.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
shingle_width = 3
num_perm = 64
bands = 16
ttl = "2h"
jaccard_weight = 0.7
semantic_weight = 0.3
threshold = 0.8
top_k = 0

[embedding]
host = "http://embed.local:8080"
model = "nomic-embed-text"
`), 0644))

	s, err := loadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, 3, s.engine.ShingleWidth)
	assert.Equal(t, 64, s.engine.NumPerm)
	assert.Equal(t, 16, s.engine.Bands)
	assert.Equal(t, 2*time.Hour, s.engine.TTL)
	assert.Equal(t, 0.7, s.engine.JaccardWeight)
	assert.Equal(t, 0.8, s.policy.Threshold)
	assert.Zero(t, s.policy.TopK)
	assert.Equal(t, core.DefaultConfig().Seed, s.engine.Seed, "unset keys keep defaults")
	require.NoError(t, s.engine.Validate())

	require.NotNil(t, s.embedding)
	assert.Equal(t, "nomic-embed-text", s.embedding.EmbeddingModel)
	assert.Equal(t, "http://embed.local:8080", s.embedding.EmbeddingHost)
}

func TestLoadSettings_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad toml", "shingle_width = = 3"},
		{"bad ttl", `ttl = "one day"`},
		{"wrong type", `bands = "many"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			_, err := loadSettings(path)
			assert.Error(t, err)
		})
	}

	_, err := loadSettings(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
