package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/poiesic/textguard"
	"github.com/poiesic/textguard/ai"
	"github.com/poiesic/textguard/core"
)

// fileConfig mirrors the TOML config file. Unset keys keep their defaults.
type fileConfig struct {
	ShingleWidth   *int     `toml:"shingle_width"`
	NumPerm        *int     `toml:"num_perm"`
	Bands          *int     `toml:"bands"`
	Seed           *int64   `toml:"seed"`
	TTL            string   `toml:"ttl"`
	JaccardWeight  *float64 `toml:"jaccard_weight"`
	SemanticWeight *float64 `toml:"semantic_weight"`
	CacheShards    *int     `toml:"cache_shards"`
	IndexShards    *int     `toml:"index_shards"`
	MaxEntries     *int     `toml:"max_entries"`
	MaxBytes       *int64   `toml:"max_bytes"`
	Threshold      *float64 `toml:"threshold"`
	TopK           *int     `toml:"top_k"`

	Embedding struct {
		Host  string `toml:"host"`
		Model string `toml:"model"`
		Token string `toml:"token"`
	} `toml:"embedding"`
}

// settings is the resolved configuration of one command.
type settings struct {
	engine    *core.Config
	policy    textguard.Policy
	embedding *ai.Config // Nil disables semantic scoring
}

func defaultSettings() *settings {
	return &settings{
		engine: core.DefaultConfig(),
		policy: textguard.Policy{Threshold: 0.5, TopK: 5},
	}
}

// loadSettings reads path over the defaults. An empty path returns defaults.
func loadSettings(path string) (*settings, error) {
	s := defaultSettings()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := fc.apply(s); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return s, nil
}

func (fc *fileConfig) apply(s *settings) error {
	cfg := s.engine
	setInt(&cfg.ShingleWidth, fc.ShingleWidth)
	setInt(&cfg.NumPerm, fc.NumPerm)
	setInt(&cfg.Bands, fc.Bands)
	setInt(&cfg.CacheShards, fc.CacheShards)
	setInt(&cfg.IndexShards, fc.IndexShards)
	setInt(&cfg.MaxEntries, fc.MaxEntries)
	setInt(&s.policy.TopK, fc.TopK)
	if fc.Seed != nil {
		cfg.Seed = *fc.Seed
	}
	if fc.MaxBytes != nil {
		cfg.MaxBytes = *fc.MaxBytes
	}
	if fc.JaccardWeight != nil {
		cfg.JaccardWeight = *fc.JaccardWeight
	}
	if fc.SemanticWeight != nil {
		cfg.SemanticWeight = *fc.SemanticWeight
	}
	if fc.Threshold != nil {
		s.policy.Threshold = *fc.Threshold
	}
	if fc.TTL != "" {
		ttl, err := time.ParseDuration(fc.TTL)
		if err != nil {
			return fmt.Errorf("ttl: %w", err)
		}
		cfg.TTL = ttl
	}
	if fc.Embedding.Model != "" {
		s.embedding = ai.NewConfig(ai.WithEmbeddingModel(fc.Embedding.Model))
		if fc.Embedding.Host != "" {
			s.embedding.EmbeddingHost = fc.Embedding.Host
		}
		if fc.Embedding.Token != "" {
			s.embedding.Token = fc.Embedding.Token
		}
	}
	return nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
