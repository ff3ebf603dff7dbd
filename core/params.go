package core

import "fmt"

// IndexParams are the configuration constants a signature depends on. They
// travel with every snapshot so a reload under different settings is
// detected instead of silently mixing incompatible signatures.
type IndexParams struct {
	ShingleWidth int
	NumPerm      int
	Bands        int
	Seed         int64
}

// Params extracts the signature-defining constants from the config.
func (c *Config) Params() IndexParams {
	return IndexParams{
		ShingleWidth: c.ShingleWidth,
		NumPerm:      c.NumPerm,
		Bands:        c.Bands,
		Seed:         c.Seed,
	}
}

// Check returns an error describing the first field that differs from want.
func (p IndexParams) Check(want IndexParams) error {
	switch {
	case p.ShingleWidth != want.ShingleWidth:
		return fmt.Errorf("shingle width %d, expected %d", p.ShingleWidth, want.ShingleWidth)
	case p.NumPerm != want.NumPerm:
		return fmt.Errorf("signature length %d, expected %d", p.NumPerm, want.NumPerm)
	case p.Bands != want.Bands:
		return fmt.Errorf("band count %d, expected %d", p.Bands, want.Bands)
	case p.Seed != want.Seed:
		return fmt.Errorf("seed %d, expected %d", p.Seed, want.Seed)
	}
	return nil
}
