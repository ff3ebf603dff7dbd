// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"math"
	"time"
)

const weightTolerance = 1e-9

// Config holds the construction parameters of the engine. Every field is
// validated once, before any input is accepted, and never changes for the
// lifetime of an index.
type Config struct {
	// ShingleWidth is the number of tokens per shingle (k).
	// Default: 5
	ShingleWidth int

	// NumPerm is the signature length (P), one hash permutation per position.
	// Default: 128
	NumPerm int

	// Bands is the number of LSH bands. NumPerm must be divisible by Bands.
	// Default: 32 (4 rows per band)
	Bands int

	// Seed fixes the hash permutations. Changing it requires a full reindex.
	// Default: 1
	Seed int64

	// TTL is how long a cached document stays eligible as a candidate.
	// Default: 24h
	TTL time.Duration

	// JaccardWeight and SemanticWeight combine the two similarity signals.
	// They must sum to 1.0.
	// Default: 0.6 / 0.4
	JaccardWeight  float64
	SemanticWeight float64

	// CacheShards and IndexShards set the lock granularity.
	// Default: 32 / 64
	CacheShards int
	IndexShards int

	// MaxEntries and MaxBytes bound the cache. Zero means unbounded.
	MaxEntries int
	MaxBytes   int64

	// SweepInterval enables a periodic TTL sweep. Zero means lazy eviction only.
	SweepInterval time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithShingleWidth sets the shingle width k.
func WithShingleWidth(k int) ConfigOption {
	return func(c *Config) {
		c.ShingleWidth = k
	}
}

// WithSignature sets the signature length and band count together.
func WithSignature(numPerm, bands int) ConfigOption {
	return func(c *Config) {
		c.NumPerm = numPerm
		c.Bands = bands
	}
}

// WithSeed sets the permutation seed.
func WithSeed(seed int64) ConfigOption {
	return func(c *Config) {
		c.Seed = seed
	}
}

// WithTTL sets the cache time-to-live.
func WithTTL(ttl time.Duration) ConfigOption {
	return func(c *Config) {
		c.TTL = ttl
	}
}

// WithWeights sets the fusion weights.
func WithWeights(jaccard, semantic float64) ConfigOption {
	return func(c *Config) {
		c.JaccardWeight = jaccard
		c.SemanticWeight = semantic
	}
}

// WithShards sets the cache and index shard counts.
func WithShards(cacheShards, indexShards int) ConfigOption {
	return func(c *Config) {
		c.CacheShards = cacheShards
		c.IndexShards = indexShards
	}
}

// WithCapacity bounds the cache by entry count and total bytes.
func WithCapacity(maxEntries int, maxBytes int64) ConfigOption {
	return func(c *Config) {
		c.MaxEntries = maxEntries
		c.MaxBytes = maxBytes
	}
}

// WithSweepInterval enables the periodic TTL sweep.
func WithSweepInterval(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.SweepInterval = d
	}
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		ShingleWidth:   5,
		NumPerm:        128,
		Bands:          32,
		Seed:           1,
		TTL:            24 * time.Hour,
		JaccardWeight:  0.6,
		SemanticWeight: 0.4,
		CacheShards:    32,
		IndexShards:    64,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithShingleWidth(3),
//	    WithSignature(256, 64),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// RowsPerBand returns NumPerm / Bands. Only meaningful on a valid config.
func (c *Config) RowsPerBand() int {
	if c.Bands == 0 {
		return 0
	}
	return c.NumPerm / c.Bands
}

// Validate checks every field and returns a *ConfigError for the first
// invalid one. Values are never adjusted.
func (c *Config) Validate() error {
	if c == nil {
		return configErrorf("config", "is nil")
	}
	if c.ShingleWidth < 1 {
		return configErrorf("ShingleWidth", "must be >= 1, got %d", c.ShingleWidth)
	}
	if c.NumPerm < 1 {
		return configErrorf("NumPerm", "must be >= 1, got %d", c.NumPerm)
	}
	if c.Bands < 1 {
		return configErrorf("Bands", "must be >= 1, got %d", c.Bands)
	}
	if c.NumPerm%c.Bands != 0 {
		return configErrorf("Bands", "must divide NumPerm evenly (%d %% %d = %d)", c.NumPerm, c.Bands, c.NumPerm%c.Bands)
	}
	if c.TTL <= 0 {
		return configErrorf("TTL", "must be > 0, got %s", c.TTL)
	}
	if !isWeight(c.JaccardWeight) {
		return configErrorf("JaccardWeight", "must be within [0, 1], got %v", c.JaccardWeight)
	}
	if !isWeight(c.SemanticWeight) {
		return configErrorf("SemanticWeight", "must be within [0, 1], got %v", c.SemanticWeight)
	}
	if math.Abs(c.JaccardWeight+c.SemanticWeight-1.0) > weightTolerance {
		return configErrorf("weights", "must sum to 1.0, got %v", c.JaccardWeight+c.SemanticWeight)
	}
	if c.CacheShards < 1 {
		return configErrorf("CacheShards", "must be >= 1, got %d", c.CacheShards)
	}
	if c.IndexShards < 1 {
		return configErrorf("IndexShards", "must be >= 1, got %d", c.IndexShards)
	}
	if c.MaxEntries < 0 {
		return configErrorf("MaxEntries", "must be >= 0, got %d", c.MaxEntries)
	}
	if c.MaxBytes < 0 {
		return configErrorf("MaxBytes", "must be >= 0, got %d", c.MaxBytes)
	}
	if c.SweepInterval < 0 {
		return configErrorf("SweepInterval", "must be >= 0, got %s", c.SweepInterval)
	}
	return nil
}

func isWeight(w float64) bool {
	return !math.IsNaN(w) && w >= 0 && w <= 1
}
