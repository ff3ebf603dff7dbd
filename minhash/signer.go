package minhash

import (
	"errors"
	"fmt"
	"math/bits"
	"math/rand"

	"github.com/cespare/xxhash/v2"
	"github.com/poiesic/textguard/core"
	"github.com/poiesic/textguard/shingle"
)

// mersennePrime is 2^61 - 1, the modulus of every permutation.
const mersennePrime uint64 = (1 << 61) - 1

var (
	// ErrIncomparable is returned when either signature is the sentinel or the
	// lengths differ.
	ErrIncomparable = errors.New("signatures are not comparable")

	// ErrInvalidLength is returned when a Signer is created with length < 1.
	ErrInvalidLength = errors.New("signature length must be at least 1")
)

type permutation struct {
	a uint64 // in [1, p)
	b uint64 // in [0, p)
}

// apply computes (a*x + b) mod p without overflow.
func (pm permutation) apply(x uint64) uint64 {
	hi, lo := bits.Mul64(pm.a, x)
	var carry uint64
	lo, carry = bits.Add64(lo, pm.b, 0)
	hi += carry
	return bits.Rem64(hi, lo, mersennePrime)
}

// Signer computes MinHash signatures of a fixed length.
type Signer struct {
	perms []permutation
	seed  int64
}

// NewSigner creates a Signer with length permutations drawn from seed.
func NewSigner(length int, seed int64) (*Signer, error) {
	if length < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLength, length)
	}
	rng := rand.New(rand.NewSource(seed))
	perms := make([]permutation, length)
	for i := range perms {
		perms[i] = permutation{
			a: uint64(rng.Int63n(int64(mersennePrime-1))) + 1,
			b: uint64(rng.Int63n(int64(mersennePrime))),
		}
	}
	return &Signer{perms: perms, seed: seed}, nil
}

// NewSignerFromConfig creates a Signer matching the config's NumPerm and Seed.
func NewSignerFromConfig(cfg *core.Config) (*Signer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewSigner(cfg.NumPerm, cfg.Seed)
}

// Len returns the signature length.
func (s *Signer) Len() int {
	return len(s.perms)
}

// Seed returns the permutation seed.
func (s *Signer) Seed() int64 {
	return s.seed
}

// Sign returns the signature of set. An empty set yields the sentinel.
func (s *Signer) Sign(set shingle.Set) core.Signature {
	sig := core.EmptySignature(len(s.perms))
	for _, sh := range set {
		base := xxhash.Sum64String(sh) % mersennePrime
		for i, pm := range s.perms {
			if v := pm.apply(base); v < sig[i] {
				sig[i] = v
			}
		}
	}
	return sig
}

// EstimateJaccard returns the fraction of matching positions between a and b.
func EstimateJaccard(a, b core.Signature) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: lengths %d and %d", ErrIncomparable, len(a), len(b))
	}
	if a.IsEmpty() || b.IsEmpty() {
		return 0, fmt.Errorf("%w: %w", ErrIncomparable, core.ErrEmptySignature)
	}
	matches := 0
	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(a)), nil
}
