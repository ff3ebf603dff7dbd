package semantic

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/poiesic/textguard/ai"
	"github.com/poiesic/textguard/core"
)

const (
	defaultMemoEntries = 10_000
	defaultAttempts    = 3
	defaultBaseDelay   = 200 * time.Millisecond
)

// Scorer implements fusion.SemanticScorer on top of an ai.Embedder.
// It is safe for concurrent use.
type Scorer struct {
	embedder    ai.Embedder
	memo        *ristretto.Cache[uint64, []float32]
	memoEntries int64
	attempts    int
	baseDelay   time.Duration
	logger      *slog.Logger
}

// Option configures a Scorer.
type Option func(*Scorer) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scorer) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "semantic")
		return nil
	}
}

// WithRetry sets the attempt budget and initial backoff per embedding.
func WithRetry(attempts int, baseDelay time.Duration) Option {
	return func(s *Scorer) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		s.attempts = attempts
		s.baseDelay = baseDelay
		return nil
	}
}

// WithMemoEntries bounds how many vectors are memoized.
func WithMemoEntries(n int64) Option {
	return func(s *Scorer) error {
		if n <= 0 {
			return fmt.Errorf("memo entries must be positive, got %d", n)
		}
		s.memoEntries = n
		return nil
	}
}

// NewScorer creates a scorer backed by embedder.
func NewScorer(embedder ai.Embedder, opts ...Option) (*Scorer, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	s := &Scorer{
		embedder:    embedder,
		memoEntries: defaultMemoEntries,
		attempts:    defaultAttempts,
		baseDelay:   defaultBaseDelay,
		logger:      slog.Default().With("component", "semantic"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	memo, err := ristretto.NewCache(&ristretto.Config[uint64, []float32]{
		NumCounters: s.memoEntries * 10,
		MaxCost:     s.memoEntries,
		BufferItems: 64,
		// Cost is one per vector
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create vector memo: %w", err)
	}
	s.memo = memo
	return s, nil
}

// Score returns the cosine similarity of the two documents' embeddings in
// [0, 1]. A zero embedding yields core.NoSemantic.
func (s *Scorer) Score(ctx context.Context, query, candidate *core.DocumentRecord) (core.Semantic, error) {
	qv, err := s.vector(ctx, query)
	if err != nil {
		return core.NoSemantic, err
	}
	cv, err := s.vector(ctx, candidate)
	if err != nil {
		return core.NoSemantic, err
	}
	cos, ok, err := Cosine(qv, cv)
	if err != nil {
		return core.NoSemantic, fmt.Errorf("score %s against %s: %w", query.Hash, candidate.Hash, err)
	}
	if !ok {
		return core.NoSemantic, nil
	}
	return core.SemanticOf(Similarity(cos)), nil
}

// Forget drops the memoized vector for h.
func (s *Scorer) Forget(h core.ContentHash) {
	s.memo.Del(uint64(h))
}

// Close releases the memo.
func (s *Scorer) Close() {
	s.memo.Close()
}

func (s *Scorer) vector(ctx context.Context, rec *core.DocumentRecord) ([]float32, error) {
	key := uint64(rec.Hash)
	if v, ok := s.memo.Get(key); ok {
		return v, nil
	}

	var raw []float32
	err := retryWithBackoff(ctx, s.logger, s.attempts, s.baseDelay, func() error {
		var err error
		raw, err = s.embedder.EmbedText(ctx, rec.Text)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", rec.Hash, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("embed %s: %w", rec.Hash, ErrEmptyEmbedding)
	}

	v := NormalizeVector(raw)
	s.memo.Set(key, v, 1)
	s.memo.Wait()
	return v, nil
}
