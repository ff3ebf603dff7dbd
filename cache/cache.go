package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/textguard/core"
	"github.com/poiesic/textguard/shingle"
	"golang.org/x/sync/singleflight"
)

// Signer produces a signature for a shingle set.
type Signer interface {
	Sign(set shingle.Set) core.Signature
	Len() int
}

// Indexer is the subset of the LSH index the cache keeps in step with its
// entries.
type Indexer interface {
	Insert(id core.ContentHash, sig core.Signature) error
	Remove(id core.ContentHash) bool
}

// Reason says why an entry left the cache.
type Reason int

const (
	ReasonExpired Reason = iota
	ReasonCapacity
	ReasonRemoved
	ReasonPurged
)

func (r Reason) String() string {
	switch r {
	case ReasonExpired:
		return "expired"
	case ReasonCapacity:
		return "capacity"
	case ReasonRemoved:
		return "removed"
	case ReasonPurged:
		return "purged"
	default:
		return "unknown"
	}
}

// EvictionHook is called after an entry has left both the cache and the index.
// It runs without any cache lock held.
type EvictionHook func(rec *core.DocumentRecord, reason Reason)

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries         int
	Bytes           int64
	Hits            uint64
	Misses          uint64
	Inserts         uint64
	Expired         uint64
	CapacityEvicted uint64
	Removed         uint64
}

// Info describes a cache entry without touching its access time.
type Info struct {
	Record     *core.DocumentRecord
	Size       int64
	LastAccess time.Time
	Indexed    bool
}

type entry struct {
	rec        *core.DocumentRecord
	size       int64
	seq        uint64
	lastAccess time.Time
	indexed    bool
}

// olderThan orders entries by insertion time, then admission order.
func (e *entry) olderThan(o *entry) bool {
	if !e.rec.InsertedAt.Equal(o.rec.InsertedAt) {
		return e.rec.InsertedAt.Before(o.rec.InsertedAt)
	}
	return e.seq < o.seq
}

type shard struct {
	mu      sync.Mutex
	entries map[core.ContentHash]*entry
	bytes   int64
}

type eviction struct {
	rec    *core.DocumentRecord
	reason Reason
}

// Cache is a sharded content-addressed store with TTL eviction.
type Cache struct {
	shingleWidth int
	ttl          time.Duration

	signer Signer
	index  Indexer
	shards []shard
	flight singleflight.Group

	// Capacity bounds are cache-wide. evictMu serializes capacity eviction
	// only; inserts never take it.
	maxEntries int
	maxBytes   int64
	evictMu    sync.Mutex
	seq        atomic.Uint64
	count      atomic.Int64
	size       atomic.Int64

	now     func() time.Time
	onEvict EvictionHook
	logger  *slog.Logger

	hits, misses, inserts  atomic.Uint64
	expired, capacity, rem atomic.Uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger. A nil logger falls back to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "cache")
	}
}

// WithClock replaces time.Now, mainly for TTL tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithEvictionHook registers a callback fired for every eviction.
func WithEvictionHook(hook EvictionHook) Option {
	return func(c *Cache) {
		c.onEvict = hook
	}
}

// New creates a cache that signs with signer and mirrors entries into index.
func New(cfg *core.Config, signer Signer, index Indexer, opts ...Option) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if signer == nil {
		return nil, ErrNilSigner
	}
	if index == nil {
		return nil, ErrNilIndex
	}
	if signer.Len() != cfg.NumPerm {
		return nil, fmt.Errorf("%w: signer produces %d, config wants %d", core.ErrSignatureLength, signer.Len(), cfg.NumPerm)
	}

	c := &Cache{
		shingleWidth: cfg.ShingleWidth,
		ttl:          cfg.TTL,
		signer:       signer,
		index:        index,
		shards:       make([]shard, cfg.CacheShards),
		now:          time.Now,
		maxEntries:   cfg.MaxEntries,
		maxBytes:     cfg.MaxBytes,
		logger:       slog.Default().With("component", "cache"),
	}
	for i := range c.shards {
		c.shards[i].entries = make(map[core.ContentHash]*entry)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetOrInsert returns the live record for text, creating, signing and
// indexing it when no live entry with the same content hash exists. inserted
// is true only for the one caller that created the record.
//
// Concurrent callers racing on the same content share a single build. If the
// building caller's context is cancelled after signing, the record is kept
// but left unindexed; the next caller to see it completes the index insert.
func (c *Cache) GetOrInsert(ctx context.Context, sourceRef, text string, fetchedAt time.Time) (*core.DocumentRecord, bool, error) {
	tokens := shingle.Tokenize(text)
	h := core.HashContent(shingle.Normalize(text))

	rec, ok, err := c.lookup(h)
	if err != nil {
		return nil, false, err
	}
	if ok {
		c.hits.Add(1)
		return rec, false, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	c.misses.Add(1)

	leader := false
	v, err, _ := c.flight.Do(h.String(), func() (any, error) {
		leader = true
		return c.build(ctx, h, tokens, sourceRef, text, fetchedAt)
	})
	if err != nil {
		if !leader && ctx.Err() == nil && isContextErr(err) {
			// The building caller gave up; its record is cached unindexed.
			if rec, ok, lerr := c.lookup(h); lerr == nil && ok {
				return rec, false, nil
			}
		}
		return nil, false, err
	}
	res := v.(buildResult)
	return res.rec, res.inserted && leader, nil
}

type buildResult struct {
	rec      *core.DocumentRecord
	inserted bool
}

func (c *Cache) build(ctx context.Context, h core.ContentHash, tokens []string, sourceRef, text string, fetchedAt time.Time) (buildResult, error) {
	// A previous flight may have finished between lookup and Do.
	if rec, ok, err := c.lookup(h); err != nil || ok {
		return buildResult{rec: rec}, err
	}

	set := shingle.Shingles(tokens, c.shingleWidth)
	sig := c.signer.Sign(set)
	now := c.now()
	rec := &core.DocumentRecord{
		Hash:         h,
		SourceRef:    sourceRef,
		Text:         text,
		TokenCount:   len(tokens),
		ShingleCount: len(set),
		Signature:    sig,
		FetchedAt:    fetchedAt,
		InsertedAt:   now,
	}
	cancelled := ctx.Err() != nil
	if err := c.checkFits(rec.Size()); err != nil {
		return buildResult{}, err
	}

	s := c.shard(h)
	var evicted []eviction
	s.mu.Lock()
	if e, ok := s.entries[h]; ok {
		if !c.expiredAt(e, now) {
			s.mu.Unlock()
			return buildResult{rec: e.rec}, nil
		}
		evicted = append(evicted, c.evictLocked(s, h, e, ReasonExpired))
	}
	e := &entry{rec: rec, size: rec.Size(), lastAccess: now}
	if !cancelled {
		if err := c.indexLocked(h, e); err != nil {
			s.mu.Unlock()
			c.notify(evicted)
			return buildResult{}, err
		}
	}
	c.addLocked(s, h, e)
	indexed := e.indexed
	s.mu.Unlock()

	c.inserts.Add(1)
	c.notify(evicted)
	c.enforceCapacity()
	c.logger.Debug("document cached",
		"hash", h,
		"source", sourceRef,
		"shingles", rec.ShingleCount,
		"indexed", indexed)

	if cancelled {
		return buildResult{rec: rec, inserted: true}, ctx.Err()
	}
	return buildResult{rec: rec, inserted: true}, nil
}

// Restore admits a record built elsewhere, such as one loaded from a
// snapshot, keeping its timestamps. It reports false when the record is
// already expired or its hash is already cached.
func (c *Cache) Restore(rec *core.DocumentRecord) (bool, error) {
	if rec == nil {
		return false, nil
	}
	if len(rec.Signature) != c.signer.Len() {
		return false, fmt.Errorf("%w: record %s has %d, want %d", core.ErrSignatureLength, rec.Hash, len(rec.Signature), c.signer.Len())
	}
	now := c.now()
	e := &entry{rec: rec, size: rec.Size(), lastAccess: now}
	if c.expiredAt(e, now) {
		return false, nil
	}
	if err := c.checkFits(e.size); err != nil {
		return false, err
	}

	s := c.shard(rec.Hash)
	var evicted []eviction
	s.mu.Lock()
	if old, ok := s.entries[rec.Hash]; ok {
		if !c.expiredAt(old, now) {
			s.mu.Unlock()
			return false, nil
		}
		evicted = append(evicted, c.evictLocked(s, rec.Hash, old, ReasonExpired))
	}
	err := c.indexLocked(rec.Hash, e)
	if err == nil {
		c.addLocked(s, rec.Hash, e)
	}
	s.mu.Unlock()
	c.notify(evicted)
	if err != nil {
		return false, err
	}
	c.inserts.Add(1)
	c.enforceCapacity()
	return true, nil
}

// Get returns the live record for h. An expired entry is evicted and reported
// as missing.
func (c *Cache) Get(h core.ContentHash) (*core.DocumentRecord, bool) {
	s := c.shard(h)
	now := c.now()
	s.mu.Lock()
	e, ok := s.entries[h]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	if c.expiredAt(e, now) {
		ev := c.evictLocked(s, h, e, ReasonExpired)
		s.mu.Unlock()
		c.notify([]eviction{ev})
		return nil, false
	}
	e.lastAccess = now
	s.mu.Unlock()
	return e.rec, true
}

// Peek returns entry metadata for h, expired or not.
func (c *Cache) Peek(h core.ContentHash) (Info, bool) {
	s := c.shard(h)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[h]
	if !ok {
		return Info{}, false
	}
	return Info{Record: e.rec, Size: e.size, LastAccess: e.lastAccess, Indexed: e.indexed}, true
}

// Remove evicts h explicitly. It reports whether an entry was present.
func (c *Cache) Remove(h core.ContentHash) bool {
	s := c.shard(h)
	s.mu.Lock()
	e, ok := s.entries[h]
	if !ok {
		s.mu.Unlock()
		return false
	}
	ev := c.evictLocked(s, h, e, ReasonRemoved)
	s.mu.Unlock()
	c.notify([]eviction{ev})
	return true
}

// Purge evicts every entry and returns how many were dropped.
func (c *Cache) Purge() int {
	total := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		evicted := make([]eviction, 0, len(s.entries))
		for h, e := range s.entries {
			evicted = append(evicted, c.evictLocked(s, h, e, ReasonPurged))
		}
		s.mu.Unlock()
		c.notify(evicted)
		total += len(evicted)
	}
	return total
}

// Sweep evicts every entry expired at now and returns how many were dropped.
func (c *Cache) Sweep(now time.Time) int {
	total := 0
	for i := range c.shards {
		s := &c.shards[i]
		var evicted []eviction
		s.mu.Lock()
		for h, e := range s.entries {
			if c.expiredAt(e, now) {
				evicted = append(evicted, c.evictLocked(s, h, e, ReasonExpired))
			}
		}
		s.mu.Unlock()
		c.notify(evicted)
		total += len(evicted)
	}
	if total > 0 {
		c.logger.Info("swept expired documents", "count", total)
	}
	return total
}

// StartSweeper runs Sweep every interval until ctx is done. The returned
// channel is closed when the sweeper has stopped.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep(c.now())
			}
		}
	}()
	return done
}

// Len returns the number of cached entries, expired or not.
func (c *Cache) Len() int {
	n := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

// Records returns every live record ordered by insertion time, then hash.
// Expired entries are skipped but not evicted.
func (c *Cache) Records() []*core.DocumentRecord {
	now := c.now()
	var out []*core.DocumentRecord
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		for _, e := range s.entries {
			if !c.expiredAt(e, now) {
				out = append(out, e.rec)
			}
		}
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].InsertedAt.Equal(out[j].InsertedAt) {
			return out[i].InsertedAt.Before(out[j].InsertedAt)
		}
		return out[i].Hash < out[j].Hash
	})
	return out
}

// Stats returns current counters.
func (c *Cache) Stats() Stats {
	st := Stats{
		Hits:            c.hits.Load(),
		Misses:          c.misses.Load(),
		Inserts:         c.inserts.Load(),
		Expired:         c.expired.Load(),
		CapacityEvicted: c.capacity.Load(),
		Removed:         c.rem.Load(),
	}
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		st.Entries += len(s.entries)
		st.Bytes += s.bytes
		s.mu.Unlock()
	}
	return st
}

// lookup returns a live entry, finishing its index insert if a cancelled
// build left it unindexed.
func (c *Cache) lookup(h core.ContentHash) (*core.DocumentRecord, bool, error) {
	s := c.shard(h)
	now := c.now()
	s.mu.Lock()
	e, ok := s.entries[h]
	if !ok {
		s.mu.Unlock()
		return nil, false, nil
	}
	if c.expiredAt(e, now) {
		ev := c.evictLocked(s, h, e, ReasonExpired)
		s.mu.Unlock()
		c.notify([]eviction{ev})
		return nil, false, nil
	}
	if !e.indexed {
		if err := c.indexLocked(h, e); err != nil {
			s.mu.Unlock()
			return nil, false, err
		}
	}
	e.lastAccess = now
	s.mu.Unlock()
	return e.rec, true, nil
}

// indexLocked inserts e into the index. The sentinel signature is never
// indexed. Caller holds the shard lock.
func (c *Cache) indexLocked(h core.ContentHash, e *entry) error {
	if !e.rec.Signature.IsEmpty() {
		if err := c.index.Insert(h, e.rec.Signature); err != nil {
			return fmt.Errorf("index %s: %w", h, err)
		}
	}
	e.indexed = true
	return nil
}

// evictLocked drops e from the shard and the index. Caller holds the shard lock.
func (c *Cache) evictLocked(s *shard, h core.ContentHash, e *entry, reason Reason) eviction {
	delete(s.entries, h)
	s.bytes -= e.size
	c.count.Add(-1)
	c.size.Add(-e.size)
	if e.indexed {
		c.index.Remove(h)
	}
	switch reason {
	case ReasonExpired:
		c.expired.Add(1)
	case ReasonCapacity:
		c.capacity.Add(1)
	default:
		c.rem.Add(1)
	}
	return eviction{rec: e.rec, reason: reason}
}

// addLocked admits e into s. Caller holds the shard lock.
func (c *Cache) addLocked(s *shard, h core.ContentHash, e *entry) {
	e.seq = c.seq.Add(1)
	s.entries[h] = e
	s.bytes += e.size
	c.count.Add(1)
	c.size.Add(e.size)
}

func (c *Cache) checkFits(size int64) error {
	if c.maxBytes > 0 && size > c.maxBytes {
		return fmt.Errorf("%w: document of %d bytes exceeds budget of %d", ErrCapacityExceeded, size, c.maxBytes)
	}
	return nil
}

func (c *Cache) overCapacity() bool {
	if c.maxEntries > 0 && c.count.Load() > int64(c.maxEntries) {
		return true
	}
	return c.maxBytes > 0 && c.size.Load() > c.maxBytes
}

// enforceCapacity evicts the cache-wide oldest entries until both bounds
// hold again.
func (c *Cache) enforceCapacity() {
	if c.maxEntries == 0 && c.maxBytes == 0 {
		return
	}
	c.evictMu.Lock()
	var evicted []eviction
	for c.overCapacity() {
		ev, found, ok := c.evictOldest()
		if !found {
			break
		}
		if ok {
			evicted = append(evicted, ev)
		}
	}
	c.evictMu.Unlock()

	if len(evicted) > 0 {
		c.logger.Debug("evicted for capacity", "count", len(evicted))
	}
	c.notify(evicted)
}

// evictOldest scans every shard for the oldest entry and evicts it. ok is
// false when the victim changed between the scan and the eviction.
func (c *Cache) evictOldest() (ev eviction, found, ok bool) {
	var victim *shard
	var victimHash core.ContentHash
	var oldest *entry
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		for h, e := range s.entries {
			if oldest == nil || e.olderThan(oldest) {
				victim, victimHash, oldest = s, h, e
			}
		}
		s.mu.Unlock()
	}
	if oldest == nil {
		return eviction{}, false, false
	}

	victim.mu.Lock()
	defer victim.mu.Unlock()
	if cur, present := victim.entries[victimHash]; !present || cur != oldest {
		return eviction{}, true, false
	}
	return c.evictLocked(victim, victimHash, oldest, ReasonCapacity), true, true
}

func (c *Cache) expiredAt(e *entry, now time.Time) bool {
	return now.Sub(e.rec.InsertedAt) >= c.ttl
}

func (c *Cache) notify(evicted []eviction) {
	if c.onEvict == nil {
		return
	}
	for _, ev := range evicted {
		c.onEvict(ev.rec, ev.reason)
	}
}

func (c *Cache) shard(h core.ContentHash) *shard {
	return &c.shards[uint64(h)%uint64(len(c.shards))]
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
