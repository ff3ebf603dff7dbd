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

package lsh

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/poiesic/textguard/core"
)

// ErrNotIndexed is returned by BandKeysOf for an identity the index does not hold.
var ErrNotIndexed = errors.New("document not indexed")

type bucketKey struct {
	band int
	key  uint64
}

type bucketShard struct {
	mu      sync.RWMutex
	buckets map[bucketKey]map[core.ContentHash]struct{}
}

type memberShard struct {
	mu      sync.Mutex
	members map[core.ContentHash][]uint64 // identity -> band keys
}

// Index is a banded MinHash index. It is safe for concurrent use.
type Index struct {
	numPerm int
	bands   int
	rows    int

	bucketShards []bucketShard
	memberShards []memberShard

	count atomic.Int64
}

// Stats is a point-in-time summary of the index.
type Stats struct {
	Documents     int
	Buckets       int
	LargestBucket int
}

// New creates an empty index sized by cfg. The config is validated first.
func New(cfg *core.Config) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	idx := &Index{
		numPerm:      cfg.NumPerm,
		bands:        cfg.Bands,
		rows:         cfg.RowsPerBand(),
		bucketShards: make([]bucketShard, cfg.IndexShards),
		memberShards: make([]memberShard, cfg.IndexShards),
	}
	for i := range idx.bucketShards {
		idx.bucketShards[i].buckets = make(map[bucketKey]map[core.ContentHash]struct{})
		idx.memberShards[i].members = make(map[core.ContentHash][]uint64)
	}
	return idx, nil
}

// Bands returns the band count.
func (idx *Index) Bands() int { return idx.bands }

// Rows returns the rows per band.
func (idx *Index) Rows() int { return idx.rows }

// Len returns the number of indexed documents.
func (idx *Index) Len() int { return int(idx.count.Load()) }

// BandKeys hashes each band of sig. It does not touch index state.
func (idx *Index) BandKeys(sig core.Signature) ([]uint64, error) {
	if len(sig) != idx.numPerm {
		return nil, fmt.Errorf("%w: got %d, want %d", core.ErrSignatureLength, len(sig), idx.numPerm)
	}
	keys := make([]uint64, idx.bands)
	buf := make([]byte, 8*idx.rows)
	for b := 0; b < idx.bands; b++ {
		for r := 0; r < idx.rows; r++ {
			binary.LittleEndian.PutUint64(buf[r*8:], sig[b*idx.rows+r])
		}
		keys[b] = xxhash.Sum64(buf)
	}
	return keys, nil
}

// Insert files id under one bucket per band. Inserting an identity that is
// already present is a no-op. The sentinel signature is rejected with
// core.ErrEmptySignature.
func (idx *Index) Insert(id core.ContentHash, sig core.Signature) error {
	keys, err := idx.BandKeys(sig)
	if err != nil {
		return err
	}
	if sig.IsEmpty() {
		return core.ErrEmptySignature
	}
	return idx.insertKeys(id, keys)
}

// InsertKeys files id under precomputed band keys, as restored from a snapshot.
func (idx *Index) InsertKeys(id core.ContentHash, keys []uint64) error {
	if len(keys) != idx.bands {
		return fmt.Errorf("%w: got %d band keys, want %d", core.ErrSignatureLength, len(keys), idx.bands)
	}
	return idx.insertKeys(id, append([]uint64(nil), keys...))
}

func (idx *Index) insertKeys(id core.ContentHash, keys []uint64) error {
	ms := idx.memberShard(id)
	// The member lock is held across every bucket update so a concurrent
	// Remove of the same identity sees either all bands or none.
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.members[id]; exists {
		return nil
	}
	for band, key := range keys {
		bk := bucketKey{band: band, key: key}
		bs := idx.bucketShard(bk)
		bs.mu.Lock()
		bucket, ok := bs.buckets[bk]
		if !ok {
			bucket = make(map[core.ContentHash]struct{}, 1)
			bs.buckets[bk] = bucket
		}
		bucket[id] = struct{}{}
		bs.mu.Unlock()
	}
	ms.members[id] = keys
	idx.count.Add(1)
	return nil
}

// Remove deletes id from every bucket it occupies and prunes buckets left
// empty. It reports whether id was present.
func (idx *Index) Remove(id core.ContentHash) bool {
	ms := idx.memberShard(id)
	ms.mu.Lock()
	defer ms.mu.Unlock()

	keys, ok := ms.members[id]
	if !ok {
		return false
	}
	for band, key := range keys {
		bk := bucketKey{band: band, key: key}
		bs := idx.bucketShard(bk)
		bs.mu.Lock()
		if bucket, ok := bs.buckets[bk]; ok {
			delete(bucket, id)
			if len(bucket) == 0 {
				delete(bs.buckets, bk)
			}
		}
		bs.mu.Unlock()
	}
	delete(ms.members, id)
	idx.count.Add(-1)
	return true
}

// Contains reports whether id is indexed.
func (idx *Index) Contains(id core.ContentHash) bool {
	ms := idx.memberShard(id)
	ms.mu.Lock()
	defer ms.mu.Unlock()
	_, ok := ms.members[id]
	return ok
}

// BandKeysOf returns a copy of the band keys id was filed under.
func (idx *Index) BandKeysOf(id core.ContentHash) ([]uint64, error) {
	ms := idx.memberShard(id)
	ms.mu.Lock()
	defer ms.mu.Unlock()
	keys, ok := ms.members[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotIndexed, id)
	}
	return append([]uint64(nil), keys...), nil
}

// Query returns every identity sharing at least one band key with sig,
// excluding exclude, in ascending hash order. The sentinel signature and a
// signature of the wrong length return nil.
func (idx *Index) Query(sig core.Signature, exclude core.ContentHash) []core.ContentHash {
	if sig.IsEmpty() {
		return nil
	}
	keys, err := idx.BandKeys(sig)
	if err != nil {
		return nil
	}

	seen := make(map[core.ContentHash]struct{})
	for band, key := range keys {
		bk := bucketKey{band: band, key: key}
		bs := idx.bucketShard(bk)
		bs.mu.RLock()
		for id := range bs.buckets[bk] {
			if id != exclude {
				seen[id] = struct{}{}
			}
		}
		bs.mu.RUnlock()
	}
	if len(seen) == 0 {
		return nil
	}

	out := make([]core.ContentHash, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Members returns every indexed identity in ascending order.
func (idx *Index) Members() []core.ContentHash {
	var out []core.ContentHash
	for i := range idx.memberShards {
		ms := &idx.memberShards[i]
		ms.mu.Lock()
		for id := range ms.members {
			out = append(out, id)
		}
		ms.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clear drops every bucket and membership.
func (idx *Index) Clear() {
	for i := range idx.memberShards {
		ms := &idx.memberShards[i]
		ms.mu.Lock()
		for id, keys := range ms.members {
			for band, key := range keys {
				bk := bucketKey{band: band, key: key}
				bs := idx.bucketShard(bk)
				bs.mu.Lock()
				if bucket, ok := bs.buckets[bk]; ok {
					delete(bucket, id)
					if len(bucket) == 0 {
						delete(bs.buckets, bk)
					}
				}
				bs.mu.Unlock()
			}
			delete(ms.members, id)
			idx.count.Add(-1)
		}
		ms.mu.Unlock()
	}
}

// Stats walks every shard. It is intended for diagnostics.
func (idx *Index) Stats() Stats {
	st := Stats{Documents: idx.Len()}
	for i := range idx.bucketShards {
		bs := &idx.bucketShards[i]
		bs.mu.RLock()
		st.Buckets += len(bs.buckets)
		for _, bucket := range bs.buckets {
			if len(bucket) > st.LargestBucket {
				st.LargestBucket = len(bucket)
			}
		}
		bs.mu.RUnlock()
	}
	return st
}

func (idx *Index) memberShard(id core.ContentHash) *memberShard {
	return &idx.memberShards[uint64(id)%uint64(len(idx.memberShards))]
}

func (idx *Index) bucketShard(bk bucketKey) *bucketShard {
	h := bk.key ^ (uint64(bk.band)+1)*0x9e3779b97f4a7c15
	return &idx.bucketShards[h%uint64(len(idx.bucketShards))]
}
