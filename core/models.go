package core

//go:generate go run ../cmd/musgen

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ContentHash is the identity of a document: a BLAKE2b digest of its
// normalized text. Equal hashes mean identical content.
type ContentHash uint64

// HashContent generates a deterministic ContentHash from normalized text.
// Callers are expected to normalize first (see shingle.Normalize) so that
// case and punctuation differences do not produce distinct identities.
func HashContent(normalized string) ContentHash {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(normalized))
	sum := h.Sum(nil)
	return ContentHash(binary.LittleEndian.Uint64(sum))
}

// String renders the hash as fixed-width hex.
func (h ContentHash) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// ParseContentHash parses the hex form produced by String.
func ParseContentHash(s string) (ContentHash, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid content hash %q: %w", s, err)
	}
	return ContentHash(v), nil
}

// EmptySlot is the reserved value filling every position of the sentinel
// signature. Permuted hash values are always below it.
const EmptySlot = math.MaxUint64

// Signature is a fixed-length MinHash signature, one minimum per permutation.
type Signature []uint64

// EmptySignature returns the sentinel signature of length n.
func EmptySignature(n int) Signature {
	sig := make(Signature, n)
	for i := range sig {
		sig[i] = EmptySlot
	}
	return sig
}

// IsEmpty reports whether sig is the sentinel produced for an empty shingle
// set. A zero-length signature is also treated as empty.
func (s Signature) IsEmpty() bool {
	for _, v := range s {
		if v != EmptySlot {
			return false
		}
	}
	return true
}

// DocumentRecord is one unit of indexed text: a submission or a fetched page.
// Records are immutable once created; changed content is a new record.
type DocumentRecord struct {
	Hash         ContentHash
	SourceRef    string    // Submission identifier or page URL, opaque to the engine
	Text         string    // Text as supplied by the caller
	TokenCount   int       // Number of normalized tokens
	ShingleCount int       // Number of distinct shingles
	Signature    Signature // MinHash signature, owned by this record
	FetchedAt    time.Time // When the source was fetched (zero for submissions)
	InsertedAt   time.Time // When the record entered the cache; TTL is measured from here
}

// Size approximates the memory held by the record.
func (r *DocumentRecord) Size() int64 {
	return int64(len(r.Text)+len(r.SourceRef)) + int64(8*len(r.Signature))
}

// Freshness returns the timestamp used to prefer newer evidence in rankings.
func (r *DocumentRecord) Freshness() time.Time {
	if !r.FetchedAt.IsZero() {
		return r.FetchedAt
	}
	return r.InsertedAt
}

// FetchedPage is a tuple handed over by the fetch collaborator.
type FetchedPage struct {
	SourceRef string
	Text      string
	FetchedAt time.Time
}

// Semantic is an optional semantic similarity value. The zero value means
// "unavailable", which is distinct from a similarity of 0.
type Semantic struct {
	value float64
	ok    bool
}

// SemanticOf wraps an available similarity value.
func SemanticOf(v float64) Semantic {
	return Semantic{value: v, ok: true}
}

// NoSemantic is the unavailable state.
var NoSemantic = Semantic{}

// Value returns the similarity and whether it is available.
func (s Semantic) Value() (float64, bool) {
	return s.value, s.ok
}

// Available reports whether a value is present.
func (s Semantic) Available() bool {
	return s.ok
}

// Signal describes whether a query carried enough text to compare.
type Signal int

const (
	// SignalOK means the query produced a comparable signature.
	SignalOK Signal = iota
	// SignalEmpty means the query had too few tokens to form a shingle.
	SignalEmpty
)

func (s Signal) String() string {
	switch s {
	case SignalOK:
		return "ok"
	case SignalEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// MatchEntry is one ranked row of a report.
type MatchEntry struct {
	Hash              ContentHash
	SourceRef         string
	EstimatedJaccard  float64
	Semantic          Semantic
	SemanticAvailable bool
	CombinedScore     float64
	AboveThreshold    bool
	FetchedAt         time.Time
	TokenCount        int
	ShingleCount      int
}

// Percent renders the combined score as a percentage rounded to 2 places.
func (m *MatchEntry) Percent() float64 {
	return math.Round(m.CombinedScore*10000) / 100
}

// Report is the ranked result of checking one document.
type Report struct {
	QueryHash       ContentHash
	QuerySourceRef  string
	Signal          Signal
	Threshold       float64
	CandidatesCount int // Candidates returned by the index before scoring
	Matches         []MatchEntry
	CreatedAt       time.Time
}

// Flagged reports whether any match crossed the caller's threshold.
func (r *Report) Flagged() bool {
	for i := range r.Matches {
		if r.Matches[i].AboveThreshold {
			return true
		}
	}
	return false
}
