package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/textguard/core"
	"github.com/poiesic/textguard/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testParams = core.IndexParams{ShingleWidth: 5, NumPerm: 4, Bands: 2, Seed: 1}

func newDocRepo(t *testing.T) (*DocumentRepository, *Backend) {
	t.Helper()
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	repo, err := NewDocumentRepository(backend)
	require.NoError(t, err)
	return repo, backend
}

func testDoc(hash core.ContentHash, ref string) *core.DocumentRecord {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &core.DocumentRecord{
		Hash:         hash,
		SourceRef:    ref,
		Text:         "text for " + ref,
		TokenCount:   3,
		ShingleCount: 1,
		Signature:    core.Signature{uint64(hash), 2, 3, 4},
		FetchedAt:    now.Add(-time.Hour),
		InsertedAt:   now,
	}
}

func TestDocumentRepository_SaveAndGet(t *testing.T) {
	repo, _ := newDocRepo(t)
	ctx := context.Background()

	doc := testDoc(42, "https://example.com/a")
	require.NoError(t, repo.SaveDocuments(ctx, testParams, doc))

	got, err := repo.GetDocument(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, doc.SourceRef, got.SourceRef)
	assert.Equal(t, doc.Text, got.Text)
	assert.Equal(t, doc.Signature, got.Signature)
	assert.True(t, doc.FetchedAt.Equal(got.FetchedAt))
	assert.True(t, doc.InsertedAt.Equal(got.InsertedAt))
}

func TestDocumentRepository_GetMissing(t *testing.T) {
	repo, _ := newDocRepo(t)

	_, err := repo.GetDocument(context.Background(), 7)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDocumentRepository_LoadOrderedByHash(t *testing.T) {
	repo, _ := newDocRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveDocuments(ctx, testParams,
		testDoc(0x30, "c"), testDoc(0x10, "a"), testDoc(0x20, "b")))

	docs, err := repo.LoadDocuments(ctx, testParams)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, core.ContentHash(0x10), docs[0].Hash)
	assert.Equal(t, core.ContentHash(0x20), docs[1].Hash)
	assert.Equal(t, core.ContentHash(0x30), docs[2].Hash)

	count, err := repo.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestDocumentRepository_LoadEmpty(t *testing.T) {
	repo, _ := newDocRepo(t)

	docs, err := repo.LoadDocuments(context.Background(), testParams)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestDocumentRepository_ParamsMismatch(t *testing.T) {
	repo, _ := newDocRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.SaveDocuments(ctx, testParams, testDoc(1, "a")))

	other := testParams
	other.Seed = 99

	tests := []struct {
		name string
		op   func() error
	}{
		{"save", func() error { return repo.SaveDocuments(ctx, other, testDoc(2, "b")) }},
		{"load", func() error { _, err := repo.LoadDocuments(ctx, other); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.op(), storage.ErrParamsMismatch)
		})
	}

	count, err := repo.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDocumentRepository_SignatureLengthChecked(t *testing.T) {
	repo, _ := newDocRepo(t)

	doc := testDoc(1, "a")
	doc.Signature = core.Signature{1, 2}
	err := repo.SaveDocuments(context.Background(), testParams, doc)
	assert.ErrorIs(t, err, core.ErrSignatureLength)
}

func TestDocumentRepository_DeleteAndClear(t *testing.T) {
	repo, _ := newDocRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.SaveDocuments(ctx, testParams, testDoc(1, "a"), testDoc(2, "b")))

	require.NoError(t, repo.DeleteDocuments(ctx, 1, 999))
	_, err := repo.GetDocument(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, repo.Clear(ctx))
	count, err := repo.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	// Params are cleared too, so a different configuration may now save.
	other := testParams
	other.Bands = 4
	assert.NoError(t, repo.SaveDocuments(ctx, other, testDoc(3, "c")))
}

func TestDocumentRepository_ClosedBackend(t *testing.T) {
	repo, backend := newDocRepo(t)
	require.NoError(t, backend.Close())

	_, err := repo.GetDocument(context.Background(), 1)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)

	_, err = NewDocumentRepository(backend)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}
