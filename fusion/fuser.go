package fusion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/poiesic/textguard/core"
	"github.com/poiesic/textguard/minhash"
)

// Records resolves candidate identities to their cached records.
type Records interface {
	Get(h core.ContentHash) (*core.DocumentRecord, bool)
}

// SemanticScorer supplies a semantic similarity in [0, 1] for a query and a
// candidate. Returning core.NoSemantic or an error marks the value as
// unavailable for that candidate.
type SemanticScorer interface {
	Score(ctx context.Context, query, candidate *core.DocumentRecord) (core.Semantic, error)
}

// Request is one report build.
type Request struct {
	Query      *core.DocumentRecord
	Candidates []core.ContentHash
	Threshold  float64 // Policy threshold on the combined score
	TopK       int     // Zero keeps every match
	Monitor    Monitor // Optional

	// Transient marks a query that is not stored. A cached record with the
	// same hash is then an exact copy and is scored instead of dropped.
	Transient bool
}

// Fuser scores and ranks candidates.
type Fuser struct {
	jaccardWeight  float64
	semanticWeight float64
	records        Records
	scorer         SemanticScorer
	now            func() time.Time
	logger         *slog.Logger
}

// Option configures a Fuser.
type Option func(*Fuser)

// WithScorer enables semantic scoring.
func WithScorer(scorer SemanticScorer) Option {
	return func(f *Fuser) {
		f.scorer = scorer
	}
}

// WithLogger sets the logger. A nil logger falls back to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fuser) {
		if logger == nil {
			logger = slog.Default()
		}
		f.logger = logger.With("component", "fuser")
	}
}

// WithClock replaces time.Now for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(f *Fuser) {
		if now != nil {
			f.now = now
		}
	}
}

// New creates a fuser using the weights from cfg.
func New(cfg *core.Config, records Records, opts ...Option) (*Fuser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if records == nil {
		return nil, ErrRecordsRequired
	}
	f := &Fuser{
		jaccardWeight:  cfg.JaccardWeight,
		semanticWeight: cfg.SemanticWeight,
		records:        records,
		now:            time.Now,
		logger:         slog.Default().With("component", "fuser"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Combine blends the two signals. Without a semantic value the result is
// jaccard unchanged.
func Combine(jaccard float64, semantic core.Semantic, jaccardWeight, semanticWeight float64) float64 {
	s, ok := semantic.Value()
	if !ok {
		return jaccard
	}
	return jaccardWeight*jaccard + semanticWeight*s
}

// Build scores every candidate against the query and returns the ranked
// report. An empty query signature yields an empty report with
// core.SignalEmpty. Candidates that are no longer cached or carry the
// sentinel signature are skipped. The only errors are invalid requests and
// context cancellation.
func (f *Fuser) Build(ctx context.Context, req Request) (*core.Report, error) {
	if req.Query == nil {
		return nil, ErrQueryRequired
	}
	if math.IsNaN(req.Threshold) || req.Threshold < 0 || req.Threshold > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidThreshold, req.Threshold)
	}
	if req.TopK < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, req.TopK)
	}
	monitor := req.Monitor
	if monitor == nil {
		monitor = NoopMonitor{}
	}

	report := &core.Report{
		QueryHash:       req.Query.Hash,
		QuerySourceRef:  req.Query.SourceRef,
		Signal:          core.SignalOK,
		Threshold:       req.Threshold,
		CandidatesCount: len(req.Candidates),
		Matches:         []core.MatchEntry{},
		CreatedAt:       f.now(),
	}
	if req.Query.Signature.IsEmpty() {
		report.Signal = core.SignalEmpty
		report.CandidatesCount = 0
		monitor.Finish(report)
		return report, nil
	}

	for _, h := range req.Candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if h == req.Query.Hash && !req.Transient {
			continue
		}
		rec, ok := f.records.Get(h)
		if !ok {
			monitor.CandidateSkipped(h, "evicted")
			continue
		}
		jaccard, err := minhash.EstimateJaccard(req.Query.Signature, rec.Signature)
		if err != nil {
			monitor.CandidateSkipped(h, "incomparable")
			continue
		}

		semantic, err := f.semantic(ctx, req.Query, rec)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return nil, ctxErr
			}
			f.logger.Warn("semantic scoring failed", "candidate", h, "err", err)
			monitor.SemanticUnavailable(h, err)
		} else if !semantic.Available() && f.scorer != nil {
			monitor.SemanticUnavailable(h, nil)
		}

		combined := Combine(jaccard, semantic, f.jaccardWeight, f.semanticWeight)
		report.Matches = append(report.Matches, core.MatchEntry{
			Hash:              rec.Hash,
			SourceRef:         rec.SourceRef,
			EstimatedJaccard:  jaccard,
			Semantic:          semantic,
			SemanticAvailable: semantic.Available(),
			CombinedScore:     combined,
			AboveThreshold:    combined >= req.Threshold,
			FetchedAt:         rec.Freshness(),
			TokenCount:        rec.TokenCount,
			ShingleCount:      rec.ShingleCount,
		})
	}

	Rank(report.Matches)
	if req.TopK > 0 && len(report.Matches) > req.TopK {
		report.Matches = report.Matches[:req.TopK]
	}
	monitor.Finish(report)
	return report, nil
}

// semantic returns the scorer's value, degraded to unavailable when the
// scorer is absent or returns a value outside [0, 1].
func (f *Fuser) semantic(ctx context.Context, query, candidate *core.DocumentRecord) (core.Semantic, error) {
	if f.scorer == nil {
		return core.NoSemantic, nil
	}
	s, err := f.scorer.Score(ctx, query, candidate)
	if err != nil {
		return core.NoSemantic, err
	}
	v, ok := s.Value()
	if !ok {
		return core.NoSemantic, nil
	}
	if math.IsNaN(v) || v < 0 || v > 1 {
		return core.NoSemantic, fmt.Errorf("semantic score %v out of range", v)
	}
	return s, nil
}

// Rank sorts matches by combined score, then estimated Jaccard, then
// freshness, all descending. Source reference and hash settle exact ties so
// the order is deterministic.
func Rank(matches []core.MatchEntry) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := &matches[i], &matches[j]
		if a.CombinedScore != b.CombinedScore {
			return a.CombinedScore > b.CombinedScore
		}
		if a.EstimatedJaccard != b.EstimatedJaccard {
			return a.EstimatedJaccard > b.EstimatedJaccard
		}
		if !a.FetchedAt.Equal(b.FetchedAt) {
			return a.FetchedAt.After(b.FetchedAt)
		}
		if a.SourceRef != b.SourceRef {
			return a.SourceRef < b.SourceRef
		}
		return a.Hash < b.Hash
	})
}
