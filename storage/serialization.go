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
	"fmt"

	"github.com/poiesic/textguard/core"
)

// MarshalContentHash serializes a ContentHash to bytes.
func MarshalContentHash(h core.ContentHash) []byte {
	buf := make([]byte, core.ContentHashMUS.Size(h))
	core.ContentHashMUS.Marshal(h, buf)
	return buf
}

// UnmarshalContentHash deserializes a ContentHash from bytes.
func UnmarshalContentHash(data []byte) (core.ContentHash, error) {
	h, _, err := core.ContentHashMUS.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: content hash: %w", ErrSerializationFailed, err)
	}
	return h, nil
}

// MarshalDocument serializes a DocumentRecord to bytes.
func MarshalDocument(rec *core.DocumentRecord) []byte {
	buf := make([]byte, core.DocumentRecordMUS.Size(*rec))
	core.DocumentRecordMUS.Marshal(*rec, buf)
	return buf
}

// UnmarshalDocument deserializes a DocumentRecord from bytes.
func UnmarshalDocument(data []byte) (*core.DocumentRecord, error) {
	rec, _, err := core.DocumentRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: document: %w", ErrSerializationFailed, err)
	}
	return &rec, nil
}

// MarshalParams serializes IndexParams to bytes.
func MarshalParams(p core.IndexParams) []byte {
	buf := make([]byte, core.IndexParamsMUS.Size(p))
	core.IndexParamsMUS.Marshal(p, buf)
	return buf
}

// UnmarshalParams deserializes IndexParams from bytes.
func UnmarshalParams(data []byte) (core.IndexParams, error) {
	p, _, err := core.IndexParamsMUS.Unmarshal(data)
	if err != nil {
		return core.IndexParams{}, fmt.Errorf("%w: params: %w", ErrSerializationFailed, err)
	}
	return p, nil
}

// MarshalReport serializes a Report to bytes.
func MarshalReport(report *core.Report) []byte {
	buf := make([]byte, core.ReportMUS.Size(*report))
	core.ReportMUS.Marshal(*report, buf)
	return buf
}

// UnmarshalReport deserializes a Report from bytes.
func UnmarshalReport(data []byte) (*core.Report, error) {
	report, _, err := core.ReportMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: report: %w", ErrSerializationFailed, err)
	}
	return &report, nil
}
