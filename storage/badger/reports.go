package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/textguard/core"
	"github.com/poiesic/textguard/storage"
)

// ReportRepository implements storage.ReportRepository using BadgerDB.
type ReportRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.ReportRepository = (*ReportRepository)(nil)

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(backend *Backend) (*ReportRepository, error) {
	idSeq, err := backend.GetSequence(reportIDSeq)
	if err != nil {
		return nil, err
	}
	return &ReportRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *ReportRepository) Close() error {
	return r.idSeq.Release()
}

// AddReport stores a report and returns its generated ID.
func (r *ReportRepository) AddReport(ctx context.Context, report *core.Report) (uint64, error) {
	if r.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}
	nextID, err := r.idSeq.Next()
	if err != nil {
		return 0, err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if nextID == 0 {
		if nextID, err = r.idSeq.Next(); err != nil {
			return 0, err
		}
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}

	err = r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeReportKey(nextID), storage.MarshalReport(report)); err != nil {
			return err
		}
		if err := tx.Set(makeReportDateKey(report.CreatedAt, nextID), nil); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return nextID, nil
}

// GetReport retrieves a report by ID.
func (r *ReportRepository) GetReport(ctx context.Context, id uint64) (*core.Report, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var report *core.Report
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		report, err = readReport(tx, makeReportKey(id))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, storage.ErrNotFound
	}
	return report, nil
}

// RecentReports returns up to limit reports, most recent first.
func (r *ReportRepository) RecentReports(ctx context.Context, limit int) ([]*core.Report, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var results []*core.Report
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		prefix := []byte(reportDatePrefix + ":")
		// 0xFF sorts after every timestamp byte
		startKey := append(bytes.Clone(prefix), bytes.Repeat([]byte{0xFF}, 16)...)
		for iter.Seek(startKey); iter.Valid() && len(results) < limit; iter.Next() {
			key := iter.Item().Key()
			if !bytes.HasPrefix(key, prefix) {
				break
			}
			report, err := readReport(tx, makeReportKey(idFromDateKey(key)))
			if err != nil {
				return err
			}
			if report != nil {
				results = append(results, report)
			}
		}
		return nil
	}, false)
	return results, err
}

// ReportsByDateRange returns reports created in [start, end), oldest first.
func (r *ReportRepository) ReportsByDateRange(ctx context.Context, start, end time.Time) ([]*core.Report, error) {
	if end.Before(start) {
		return nil, storage.ErrInvalidQuery
	}
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var results []*core.Report
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		iter := tx.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()

		prefix := []byte(reportDatePrefix + ":")
		startKey := makePartialReportDateKey(start)
		endKey := makePartialReportDateKey(end)
		for iter.Seek(startKey); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			if !bytes.HasPrefix(key, prefix) || bytes.Compare(key[:len(endKey)], endKey) >= 0 {
				break
			}
			report, err := readReport(tx, makeReportKey(idFromDateKey(key)))
			if err != nil {
				return err
			}
			if report != nil {
				results = append(results, report)
			}
		}
		return nil
	}, false)
	return results, err
}

// idFromDateKey extracts the trailing report ID of a date index key.
func idFromDateKey(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(key)-8:])
}

func readReport(tx *badger.Txn, key []byte) (*core.Report, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}
	var report *core.Report
	err = item.Value(func(val []byte) error {
		var err error
		report, err = storage.UnmarshalReport(val)
		return err
	})
	return report, err
}
