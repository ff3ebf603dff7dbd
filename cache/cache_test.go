package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/textguard/core"
	"github.com/poiesic/textguard/lsh"
	"github.com/poiesic/textguard/minhash"
	"github.com/poiesic/textguard/shingle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// countingSigner counts Sign calls and can run a callback before signing.
type countingSigner struct {
	*minhash.Signer
	calls  atomic.Int64
	before func()
}

func (s *countingSigner) Sign(set shingle.Set) core.Signature {
	s.calls.Add(1)
	if s.before != nil {
		s.before()
	}
	return s.Signer.Sign(set)
}

type fixture struct {
	cfg    *core.Config
	cache  *Cache
	index  *lsh.Index
	signer *countingSigner
	clock  *fakeClock

	mu      sync.Mutex
	evicted map[core.ContentHash]Reason
}

func newFixture(t *testing.T, opts ...core.ConfigOption) *fixture {
	t.Helper()
	cfg := core.NewConfig(append([]core.ConfigOption{core.WithShingleWidth(2), core.WithShards(4, 4)}, opts...)...)
	idx, err := lsh.New(cfg)
	require.NoError(t, err)
	base, err := minhash.NewSignerFromConfig(cfg)
	require.NoError(t, err)

	f := &fixture{
		cfg:     cfg,
		index:   idx,
		signer:  &countingSigner{Signer: base},
		clock:   newFakeClock(),
		evicted: make(map[core.ContentHash]Reason),
	}
	f.cache, err = New(cfg, f.signer, idx,
		WithClock(f.clock.Now),
		WithEvictionHook(func(rec *core.DocumentRecord, reason Reason) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.evicted[rec.Hash] = reason
		}))
	require.NoError(t, err)
	return f
}

func (f *fixture) evictionReason(h core.ContentHash) (Reason, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.evicted[h]
	return r, ok
}

func TestNew_Validation(t *testing.T) {
	cfg := core.DefaultConfig()
	idx, err := lsh.New(cfg)
	require.NoError(t, err)
	signer, err := minhash.NewSignerFromConfig(cfg)
	require.NoError(t, err)

	_, err = New(cfg, nil, idx)
	assert.ErrorIs(t, err, ErrNilSigner)

	_, err = New(cfg, signer, nil)
	assert.ErrorIs(t, err, ErrNilIndex)

	short, err := minhash.NewSigner(64, 1)
	require.NoError(t, err)
	_, err = New(cfg, short, idx)
	assert.ErrorIs(t, err, core.ErrSignatureLength)

	_, err = New(core.NewConfig(core.WithTTL(0)), signer, idx)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestGetOrInsert_Dedup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, inserted, err := f.cache.GetOrInsert(ctx, "sub-1", "The quick brown fox!", time.Time{})
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, 4, first.TokenCount)
	assert.Equal(t, 3, first.ShingleCount)
	assert.Equal(t, f.clock.Now(), first.InsertedAt)

	second, inserted, err := f.cache.GetOrInsert(ctx, "sub-2", "the QUICK brown, fox", time.Time{})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first.Hash, second.Hash)
	assert.Same(t, first, second, "existing record is returned unchanged")
	assert.Equal(t, "sub-1", second.SourceRef)

	assert.Equal(t, int64(1), f.signer.calls.Load(), "identical content is signed once")
	assert.Equal(t, 1, f.index.Len())

	st := f.cache.Stats()
	assert.Equal(t, 1, st.Entries)
	assert.Equal(t, uint64(1), st.Inserts)
	assert.Equal(t, uint64(1), st.Hits)
}

func TestGetOrInsert_EmptyText(t *testing.T) {
	f := newFixture(t)

	rec, inserted, err := f.cache.GetOrInsert(context.Background(), "empty", "  ...  ", time.Time{})
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.True(t, rec.Signature.IsEmpty())
	assert.Equal(t, 0, rec.ShingleCount)
	assert.Equal(t, 0, f.index.Len(), "sentinel signatures are never indexed")

	info, ok := f.cache.Peek(rec.Hash)
	require.True(t, ok)
	assert.True(t, info.Indexed)
}

func TestGetOrInsert_ConcurrentSameContent(t *testing.T) {
	f := newFixture(t)
	const callers = 32

	var insertedCount atomic.Int64
	hashes := make([]core.ContentHash, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, inserted, err := f.cache.GetOrInsert(context.Background(), fmt.Sprintf("caller-%d", i), "racing callers submit the very same text", time.Time{})
			assert.NoError(t, err)
			if inserted {
				insertedCount.Add(1)
			}
			hashes[i] = rec.Hash
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), insertedCount.Load())
	assert.Equal(t, int64(1), f.signer.calls.Load())
	assert.Equal(t, 1, f.index.Len())
	for _, h := range hashes {
		assert.Equal(t, hashes[0], h)
	}
}

func TestGetOrInsert_CancelledAfterSigning(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.signer.before = cancel

	_, _, err := f.cache.GetOrInsert(ctx, "sub", "cancelled while signing this text", time.Time{})
	require.ErrorIs(t, err, context.Canceled)

	h := core.HashContent(shingle.Normalize("cancelled while signing this text"))
	info, ok := f.cache.Peek(h)
	require.True(t, ok, "partial cache insert remains")
	assert.False(t, info.Indexed)
	assert.False(t, f.index.Contains(h))

	f.signer.before = nil
	rec, inserted, err := f.cache.GetOrInsert(context.Background(), "sub", "cancelled while signing this text", time.Time{})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, h, rec.Hash)
	assert.True(t, f.index.Contains(h), "next caller completes the index insert")
	assert.Equal(t, int64(1), f.signer.calls.Load())
}

func TestGetOrInsert_CancelledBeforeStart(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := f.cache.GetOrInsert(ctx, "sub", "never started", time.Time{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.cache.Len())
	assert.Equal(t, int64(0), f.signer.calls.Load())
}

func TestTTL_LazyEviction(t *testing.T) {
	f := newFixture(t, core.WithTTL(time.Hour))
	ctx := context.Background()

	rec, _, err := f.cache.GetOrInsert(ctx, "page", "content that will go stale soon", time.Time{})
	require.NoError(t, err)
	require.True(t, f.index.Contains(rec.Hash))

	f.clock.Advance(59 * time.Minute)
	_, ok := f.cache.Get(rec.Hash)
	assert.True(t, ok)

	f.clock.Advance(time.Minute)
	_, ok = f.cache.Get(rec.Hash)
	assert.False(t, ok)
	assert.False(t, f.index.Contains(rec.Hash))
	assert.Empty(t, f.index.Query(rec.Signature, 0), "no ghost candidates after eviction")

	reason, ok := f.evictionReason(rec.Hash)
	require.True(t, ok)
	assert.Equal(t, ReasonExpired, reason)

	again, inserted, err := f.cache.GetOrInsert(ctx, "page", "content that will go stale soon", time.Time{})
	require.NoError(t, err)
	assert.True(t, inserted, "expired content is re-admitted as new")
	assert.Equal(t, f.clock.Now(), again.InsertedAt)
	assert.True(t, f.index.Contains(again.Hash))
}

func TestSweep(t *testing.T) {
	f := newFixture(t, core.WithTTL(time.Hour))
	ctx := context.Background()

	old, _, err := f.cache.GetOrInsert(ctx, "old", "the older of the two documents", time.Time{})
	require.NoError(t, err)
	f.clock.Advance(30 * time.Minute)
	fresh, _, err := f.cache.GetOrInsert(ctx, "fresh", "the newer of the two documents", time.Time{})
	require.NoError(t, err)

	f.clock.Advance(45 * time.Minute)
	assert.Equal(t, 1, f.cache.Sweep(f.clock.Now()))

	assert.False(t, f.index.Contains(old.Hash))
	assert.True(t, f.index.Contains(fresh.Hash))
	assert.Equal(t, 1, f.cache.Len())
	assert.Equal(t, uint64(1), f.cache.Stats().Expired)
}

func TestStartSweeper(t *testing.T) {
	f := newFixture(t, core.WithTTL(time.Minute))
	rec, _, err := f.cache.GetOrInsert(context.Background(), "doc", "swept in the background", time.Time{})
	require.NoError(t, err)
	f.clock.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := f.cache.StartSweeper(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool { return f.cache.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.False(t, f.index.Contains(rec.Hash))

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestCapacity_EvictsOldestFirst(t *testing.T) {
	f := newFixture(t, core.WithShards(1, 4), core.WithCapacity(2, 0))
	ctx := context.Background()

	var recs []*core.DocumentRecord
	for i := 0; i < 3; i++ {
		rec, inserted, err := f.cache.GetOrInsert(ctx, fmt.Sprintf("doc-%d", i), fmt.Sprintf("document number %d has its own words", i), time.Time{})
		require.NoError(t, err)
		require.True(t, inserted)
		recs = append(recs, rec)
		f.clock.Advance(time.Second)
	}

	assert.Equal(t, 2, f.cache.Len())
	_, ok := f.cache.Get(recs[0].Hash)
	assert.False(t, ok)
	assert.False(t, f.index.Contains(recs[0].Hash))
	assert.True(t, f.index.Contains(recs[1].Hash))
	assert.True(t, f.index.Contains(recs[2].Hash))

	reason, ok := f.evictionReason(recs[0].Hash)
	require.True(t, ok)
	assert.Equal(t, ReasonCapacity, reason)
	assert.Equal(t, uint64(1), f.cache.Stats().CapacityEvicted)
}

func TestCapacity_BoundIsCacheWide(t *testing.T) {
	f := newFixture(t, core.WithShards(32, 4), core.WithCapacity(2, 0))
	ctx := context.Background()

	var recs []*core.DocumentRecord
	for i := 0; i < 10; i++ {
		rec, inserted, err := f.cache.GetOrInsert(ctx, fmt.Sprintf("doc-%d", i), fmt.Sprintf("document number %d has its own words", i), time.Time{})
		require.NoError(t, err)
		require.True(t, inserted)
		recs = append(recs, rec)
		f.clock.Advance(time.Second)
	}

	assert.Equal(t, 2, f.cache.Len())
	assert.Equal(t, 2, f.index.Len())
	assert.Equal(t, uint64(8), f.cache.Stats().CapacityEvicted)
	for i, rec := range recs {
		_, live := f.cache.Get(rec.Hash)
		if i < 8 {
			assert.False(t, live, "doc-%d should be evicted", i)
			reason, ok := f.evictionReason(rec.Hash)
			require.True(t, ok)
			assert.Equal(t, ReasonCapacity, reason)
		} else {
			assert.True(t, live, "doc-%d should be live", i)
		}
	}
}

func TestCapacity_ByteBudgetAcrossShards(t *testing.T) {
	text := func(i int) string { return fmt.Sprintf("document number %d has its own words", i) }
	size := int64(len(text(0)) + len("doc-0") + 8*core.DefaultConfig().NumPerm)
	f := newFixture(t, core.WithShards(8, 4), core.WithCapacity(0, 3*size))
	ctx := context.Background()

	var recs []*core.DocumentRecord
	for i := 0; i < 6; i++ {
		rec, _, err := f.cache.GetOrInsert(ctx, fmt.Sprintf("doc-%d", i), text(i), time.Time{})
		require.NoError(t, err)
		require.Equal(t, size, rec.Size())
		recs = append(recs, rec)
		f.clock.Advance(time.Second)
	}

	st := f.cache.Stats()
	assert.Equal(t, 3, st.Entries)
	assert.LessOrEqual(t, st.Bytes, 3*size)
	for _, rec := range recs[:3] {
		assert.False(t, f.index.Contains(rec.Hash))
	}
	for _, rec := range recs[3:] {
		assert.True(t, f.index.Contains(rec.Hash))
	}
}

func TestCapacity_ConcurrentInsertsRespectBound(t *testing.T) {
	f := newFixture(t, core.WithShards(16, 4), core.WithCapacity(5, 0))
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				_, _, err := f.cache.GetOrInsert(ctx, "ref", fmt.Sprintf("writer %d wrote document %d today", g, i), time.Time{})
				assert.NoError(t, err)
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 5, f.cache.Len())
	assert.Equal(t, 5, f.index.Len())
	assert.Equal(t, uint64(155), f.cache.Stats().CapacityEvicted)
}

func TestCapacity_DocumentTooLarge(t *testing.T) {
	f := newFixture(t, core.WithShards(1, 4), core.WithCapacity(0, 256))

	_, _, err := f.cache.GetOrInsert(context.Background(), "big", strings.Repeat("word ", 100), time.Time{})
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 0, f.cache.Len())
	assert.Equal(t, 0, f.index.Len())
}

func TestRemoveAndPurge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, _, err := f.cache.GetOrInsert(ctx, "a", "first document to be removed", time.Time{})
	require.NoError(t, err)
	_, _, err = f.cache.GetOrInsert(ctx, "b", "second document to be purged", time.Time{})
	require.NoError(t, err)

	assert.True(t, f.cache.Remove(a.Hash))
	assert.False(t, f.cache.Remove(a.Hash))
	assert.False(t, f.index.Contains(a.Hash))
	reason, _ := f.evictionReason(a.Hash)
	assert.Equal(t, ReasonRemoved, reason)

	assert.Equal(t, 1, f.cache.Purge())
	assert.Equal(t, 0, f.cache.Len())
	assert.Equal(t, 0, f.index.Len())
}

func TestRestore(t *testing.T) {
	f := newFixture(t, core.WithTTL(time.Hour))
	now := f.clock.Now()

	set := shingle.FromText("restored from a snapshot file", f.cfg.ShingleWidth)
	fresh := &core.DocumentRecord{
		Hash:         core.HashContent("restored from a snapshot file"),
		SourceRef:    "snap",
		Text:         "restored from a snapshot file",
		TokenCount:   5,
		ShingleCount: len(set),
		Signature:    f.signer.Signer.Sign(set),
		InsertedAt:   now.Add(-10 * time.Minute),
	}
	ok, err := f.cache.Restore(fresh)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, f.index.Contains(fresh.Hash))

	ok, err = f.cache.Restore(fresh)
	require.NoError(t, err)
	assert.False(t, ok, "already cached")

	stale := *fresh
	stale.Hash = 99
	stale.InsertedAt = now.Add(-2 * time.Hour)
	ok, err = f.cache.Restore(&stale)
	require.NoError(t, err)
	assert.False(t, ok, "expired records are skipped")

	bad := *fresh
	bad.Hash = 100
	bad.Signature = core.Signature{1, 2, 3}
	_, err = f.cache.Restore(&bad)
	assert.ErrorIs(t, err, core.ErrSignatureLength)
}

func TestRecords_Ordered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _, err := f.cache.GetOrInsert(ctx, fmt.Sprintf("doc-%d", i), fmt.Sprintf("listing order check %d", i), time.Time{})
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}

	recs := f.cache.Records()
	require.Len(t, recs, 5)
	for i, rec := range recs {
		assert.Equal(t, fmt.Sprintf("doc-%d", i), rec.SourceRef)
	}
}

func TestReason_String(t *testing.T) {
	assert.Equal(t, "expired", ReasonExpired.String())
	assert.Equal(t, "capacity", ReasonCapacity.String())
	assert.Equal(t, "removed", ReasonRemoved.String())
	assert.Equal(t, "purged", ReasonPurged.String())
	assert.Equal(t, "unknown", Reason(42).String())
}
