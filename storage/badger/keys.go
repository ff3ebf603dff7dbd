package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/poiesic/textguard/core"
)

// Key prefixes for different data types
const (
	documentPrefix   = "docrec"
	paramsKey        = "docmeta:params"
	reportPrefix     = "rptrec"
	reportDatePrefix = "rptdate"
	reportIDSeq      = "rptseq"
)

// makeDocumentKey generates a key for a document by content hash.
// Format: prefix:hash (fixed-width hex keeps keys ordered by hash)
func makeDocumentKey(h core.ContentHash) []byte {
	return []byte(fmt.Sprintf("%s:%s", documentPrefix, h))
}

// makeReportKey generates a key for a report by ID.
func makeReportKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s:%d", reportPrefix, id))
}

// makeReportDateKey generates a composite key for the report date index.
// Format: prefix:timestamp:id
func makeReportDateKey(timestamp time.Time, id uint64) []byte {
	buf := makePartialReportDateKey(timestamp)
	return binary.BigEndian.AppendUint64(buf, id)
}

// makePartialReportDateKey generates a partial key for date range queries.
// Format: prefix:timestamp
func makePartialReportDateKey(timestamp time.Time) []byte {
	prefix := []byte(reportDatePrefix + ":")
	buf := make([]byte, len(prefix), len(prefix)+16)
	copy(buf, prefix)
	// BigEndian so lexicographic order matches time order
	return binary.BigEndian.AppendUint64(buf, uint64(timestamp.UnixMicro()))
}
