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

package storage

import (
	"context"
	"time"

	"github.com/poiesic/textguard/core"
)

// Repository is the base interface for all storage operations.
type Repository interface {
	// Close releases resources held by the repository.
	Close() error
}

// DocumentRepository persists document records for restart continuity.
type DocumentRepository interface {
	Repository

	// SaveDocuments stores records under params. The first save fixes the
	// parameters of the store; later saves with different parameters fail
	// with ErrParamsMismatch. Existing records with the same hash are
	// overwritten.
	SaveDocuments(ctx context.Context, params core.IndexParams, docs ...*core.DocumentRecord) error

	// DeleteDocuments removes records by hash. Missing hashes are ignored.
	DeleteDocuments(ctx context.Context, hashes ...core.ContentHash) error

	// GetDocument retrieves a single record.
	// Returns ErrNotFound if the record doesn't exist.
	GetDocument(ctx context.Context, hash core.ContentHash) (*core.DocumentRecord, error)

	// LoadDocuments returns every stored record ordered by hash. It fails
	// with ErrParamsMismatch when the store was written under other params.
	// An empty store returns no records and no error.
	LoadDocuments(ctx context.Context, params core.IndexParams) ([]*core.DocumentRecord, error)

	// CountDocuments returns the number of stored records.
	CountDocuments(ctx context.Context) (int, error)

	// Clear removes every record and the stored parameters.
	Clear(ctx context.Context) error
}

// ReportRepository keeps match reports as submission history.
type ReportRepository interface {
	Repository

	// AddReport stores a report and returns its generated ID.
	// Sets CreatedAt if not already set.
	AddReport(ctx context.Context, report *core.Report) (uint64, error)

	// GetReport retrieves a report by ID.
	// Returns ErrNotFound if the report doesn't exist.
	GetReport(ctx context.Context, id uint64) (*core.Report, error)

	// RecentReports returns up to limit reports, most recent first.
	RecentReports(ctx context.Context, limit int) ([]*core.Report, error)

	// ReportsByDateRange returns reports with start <= CreatedAt < end,
	// oldest first.
	ReportsByDateRange(ctx context.Context, start, end time.Time) ([]*core.Report, error)
}
