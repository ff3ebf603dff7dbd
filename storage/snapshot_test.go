package storage

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/textguard/core"
	"github.com/poiesic/textguard/lsh"
	"github.com/poiesic/textguard/minhash"
	"github.com/poiesic/textguard/shingle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshotFixture struct {
	cfg     *core.Config
	index   *lsh.Index
	records []*core.DocumentRecord
}

func newSnapshotFixture(t *testing.T) *snapshotFixture {
	t.Helper()
	cfg := core.NewConfig(core.WithShingleWidth(2))
	idx, err := lsh.New(cfg)
	require.NoError(t, err)
	signer, err := minhash.NewSignerFromConfig(cfg)
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Microsecond)
	texts := []string{
		"the first document in the snapshot",
		"a second unrelated piece of writing",
		"", // sentinel
	}
	var records []*core.DocumentRecord
	for i, text := range texts {
		tokens := shingle.Tokenize(text)
		set := shingle.Shingles(tokens, cfg.ShingleWidth)
		records = append(records, &core.DocumentRecord{
			Hash:         core.HashContent(shingle.Normalize(text)),
			SourceRef:    fmt.Sprintf("doc-%d", i),
			Text:         text,
			TokenCount:   len(tokens),
			ShingleCount: len(set),
			Signature:    signer.Sign(set),
			InsertedAt:   now,
		})
	}
	return &snapshotFixture{cfg: cfg, index: idx, records: records}
}

func (f *snapshotFixture) write(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(&buf, f.cfg.Params(), f.records, f.index))
	return buf.Bytes()
}

func TestSnapshot_RoundTrip(t *testing.T) {
	f := newSnapshotFixture(t)
	data := f.write(t)

	got, err := ReadSnapshot(bytes.NewReader(data), f.cfg.Params(), f.index)
	require.NoError(t, err)
	assert.Equal(t, f.records, got)
}

func TestSnapshot_Empty(t *testing.T) {
	f := newSnapshotFixture(t)
	f.records = nil
	got, err := ReadSnapshot(bytes.NewReader(f.write(t)), f.cfg.Params(), f.index)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSnapshot_ParamsMismatch(t *testing.T) {
	f := newSnapshotFixture(t)
	data := f.write(t)

	tests := []struct {
		name   string
		mutate func(p *core.IndexParams)
	}{
		{"shingle width", func(p *core.IndexParams) { p.ShingleWidth = 5 }},
		{"signature length", func(p *core.IndexParams) { p.NumPerm = 256 }},
		{"band count", func(p *core.IndexParams) { p.Bands = 16 }},
		{"seed", func(p *core.IndexParams) { p.Seed = 99 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := f.cfg.Params()
			tt.mutate(&want)
			_, err := ReadSnapshot(bytes.NewReader(data), want, f.index)
			assert.ErrorIs(t, err, ErrSnapshotMismatch)
		})
	}
}

func TestSnapshot_Version(t *testing.T) {
	f := newSnapshotFixture(t)
	data := f.write(t)
	data[len(snapshotMagic)] = SnapshotVersion + 1

	_, err := ReadSnapshot(bytes.NewReader(data), f.cfg.Params(), f.index)
	assert.ErrorIs(t, err, ErrSnapshotVersion)
}

func TestSnapshot_Corruption(t *testing.T) {
	f := newSnapshotFixture(t)
	data := f.write(t)

	t.Run("bad magic", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[0] = 'X'
		_, err := ReadSnapshot(bytes.NewReader(bad), f.cfg.Params(), f.index)
		assert.ErrorIs(t, err, ErrSnapshotCorrupt)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := ReadSnapshot(bytes.NewReader(data[:len(data)/2]), f.cfg.Params(), f.index)
		assert.ErrorIs(t, err, ErrSnapshotCorrupt)
	})

	t.Run("flipped checksum", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[len(bad)-1] ^= 0xff
		_, err := ReadSnapshot(bytes.NewReader(bad), f.cfg.Params(), f.index)
		assert.ErrorIs(t, err, ErrSnapshotCorrupt)
	})

	t.Run("band keys from another index layout", func(t *testing.T) {
		// Same params header but band keys derived under a different split.
		other, err := lsh.New(core.NewConfig(core.WithShingleWidth(2), core.WithSignature(128, 16)))
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, WriteSnapshot(&buf, f.cfg.Params(), f.records, other))

		_, err = ReadSnapshot(&buf, f.cfg.Params(), f.index)
		assert.ErrorIs(t, err, ErrSnapshotCorrupt)
	})
}
