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

package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/textguard/core"
	"github.com/poiesic/textguard/storage"
)

// DocumentRepository implements storage.DocumentRepository using BadgerDB.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	if backend == nil || backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	return &DocumentRepository{backend: backend}, nil
}

// Close is a no-op; the backend is owned by the caller.
func (r *DocumentRepository) Close() error {
	return nil
}

// SaveDocuments stores records, fixing params on the first save.
func (r *DocumentRepository) SaveDocuments(ctx context.Context, params core.IndexParams, docs ...*core.DocumentRecord) error {
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := r.checkParams(tx, params, true); err != nil {
			return err
		}
		for _, doc := range docs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if len(doc.Signature) != params.NumPerm {
				return fmt.Errorf("document %s: %w", doc.Hash, core.ErrSignatureLength)
			}
			if err := tx.Set(makeDocumentKey(doc.Hash), storage.MarshalDocument(doc)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// DeleteDocuments removes records by hash.
func (r *DocumentRepository) DeleteDocuments(ctx context.Context, hashes ...core.ContentHash) error {
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, h := range hashes {
			if err := tx.Delete(makeDocumentKey(h)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetDocument retrieves a single record by hash.
func (r *DocumentRepository) GetDocument(ctx context.Context, hash core.ContentHash) (*core.DocumentRecord, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var doc *core.DocumentRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		doc, err = readDocument(tx, makeDocumentKey(hash))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, storage.ErrNotFound
	}
	return doc, nil
}

// LoadDocuments returns every stored record ordered by hash.
func (r *DocumentRepository) LoadDocuments(ctx context.Context, params core.IndexParams) ([]*core.DocumentRecord, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var docs []*core.DocumentRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if err := r.checkParams(tx, params, false); err != nil {
			return err
		}
		return iterateDocuments(tx, true, func(item *badger.Item) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				doc, err := storage.UnmarshalDocument(val)
				if err != nil {
					return err
				}
				docs = append(docs, doc)
				return nil
			})
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// CountDocuments returns the number of stored records.
func (r *DocumentRepository) CountDocuments(ctx context.Context) (int, error) {
	if r.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return iterateDocuments(tx, false, func(*badger.Item) error {
			count++
			return nil
		})
	}, false)
	return count, err
}

// Clear removes every record and the stored parameters.
func (r *DocumentRepository) Clear(ctx context.Context) error {
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return r.backend.DropPrefixes(documentPrefix+":", paramsKey)
}

// checkParams compares params against the stored ones. With store set and
// nothing stored yet, params are written inside tx.
func (r *DocumentRepository) checkParams(tx *badger.Txn, params core.IndexParams, store bool) error {
	item, err := tx.Get([]byte(paramsKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		if store {
			return tx.Set([]byte(paramsKey), storage.MarshalParams(params))
		}
		return nil
	}
	if err != nil {
		return err
	}
	var stored core.IndexParams
	if err := item.Value(func(val []byte) error {
		var err error
		stored, err = storage.UnmarshalParams(val)
		return err
	}); err != nil {
		return err
	}
	if err := stored.Check(params); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrParamsMismatch, err)
	}
	return nil
}

func iterateDocuments(tx *badger.Txn, prefetch bool, fn func(*badger.Item) error) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = prefetch
	iter := tx.NewIterator(opts)
	defer iter.Close()

	prefix := []byte(documentPrefix + ":")
	for iter.Seek(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Item().Key(), prefix) {
			break
		}
		if err := fn(iter.Item()); err != nil {
			return err
		}
	}
	return nil
}

func readDocument(tx *badger.Txn, key []byte) (*core.DocumentRecord, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}
	var doc *core.DocumentRecord
	err = item.Value(func(val []byte) error {
		var err error
		doc, err = storage.UnmarshalDocument(val)
		return err
	})
	return doc, err
}
