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

package textguard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/poiesic/textguard/ai"
	"github.com/poiesic/textguard/cache"
	"github.com/poiesic/textguard/core"
	"github.com/poiesic/textguard/fusion"
	"github.com/poiesic/textguard/ingestion"
	"github.com/poiesic/textguard/lsh"
	"github.com/poiesic/textguard/minhash"
	"github.com/poiesic/textguard/semantic"
	"github.com/poiesic/textguard/shingle"
	"github.com/poiesic/textguard/storage"
)

// ErrEngineClosed is returned by operations on a closed Engine.
var ErrEngineClosed = errors.New("engine closed")

// Policy is the caller's flagging decision applied to every report.
type Policy struct {
	Threshold float64 // Combined score at or above which a match is flagged
	TopK      int     // Matches kept after ranking; zero keeps all
}

// DefaultPolicy flags combined scores of 0.5 and above and keeps every match.
func DefaultPolicy() Policy {
	return Policy{Threshold: 0.5}
}

// Stats is a point-in-time view of the engine's shared structures.
type Stats struct {
	Cache cache.Stats
	Index lsh.Stats
}

// Engine owns the cache, index, signer and fuser and runs the
// tokenize, sign, query, fuse pipeline over them. It is safe for
// concurrent use.
type Engine struct {
	cfg     *core.Config
	signer  *minhash.Signer
	index   *lsh.Index
	cache   *cache.Cache
	fuser   *fusion.Fuser
	scorer  *semantic.Scorer // Owned when built from an embedder
	policy  Policy
	monitor fusion.Monitor
	now     func() time.Time
	logger  *slog.Logger

	stopSweeper context.CancelFunc
	sweeperDone <-chan struct{}
	closeOnce   sync.Once
	mu          sync.RWMutex
	closed      bool
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	cfg          *core.Config
	logger       *slog.Logger
	now          func() time.Time
	scorer       fusion.SemanticScorer
	embedder     ai.Embedder
	semanticOpts []semantic.Option
	policy       Policy
	monitor      fusion.Monitor
	onEvict      cache.EvictionHook
}

// WithConfig sets the engine configuration. Default is core.DefaultConfig().
func WithConfig(cfg *core.Config) EngineOption {
	return func(o *engineOptions) {
		o.cfg = cfg
	}
}

// WithLogger sets a custom logger shared by every component.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// WithClock overrides the time source used for TTL and report timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(o *engineOptions) {
		o.now = now
	}
}

// WithSemanticScorer supplies semantic similarity from an external scorer.
func WithSemanticScorer(scorer fusion.SemanticScorer) EngineOption {
	return func(o *engineOptions) {
		o.scorer = scorer
	}
}

// WithEmbedder builds a semantic.Scorer over embedder. The engine owns the
// scorer and forgets vectors of evicted documents.
func WithEmbedder(embedder ai.Embedder, opts ...semantic.Option) EngineOption {
	return func(o *engineOptions) {
		o.embedder = embedder
		o.semanticOpts = opts
	}
}

// WithPolicy sets the threshold and top-K applied to reports.
func WithPolicy(p Policy) EngineOption {
	return func(o *engineOptions) {
		o.policy = p
	}
}

// WithMonitor observes every submission and check.
func WithMonitor(m fusion.Monitor) EngineOption {
	return func(o *engineOptions) {
		o.monitor = m
	}
}

// WithEvictionHook is called for every record leaving the cache.
func WithEvictionHook(hook cache.EvictionHook) EngineOption {
	return func(o *engineOptions) {
		o.onEvict = hook
	}
}

// NewEngine validates the configuration and wires a fresh set of components.
// A configured sweep interval starts the background sweeper.
func NewEngine(opts ...EngineOption) (*Engine, error) {
	o := &engineOptions{
		cfg:     core.DefaultConfig(),
		logger:  slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
		policy:  DefaultPolicy(),
		monitor: fusion.NoopMonitor{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.cfg == nil {
		o.cfg = core.DefaultConfig()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	if err := checkPolicy(o.policy); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     o.cfg,
		policy:  o.policy,
		monitor: o.monitor,
		now:     o.now,
		logger:  o.logger.With("component", "engine"),
	}
	if e.monitor == nil {
		e.monitor = fusion.NoopMonitor{}
	}

	var err error
	if e.signer, err = minhash.NewSignerFromConfig(o.cfg); err != nil {
		return nil, err
	}
	if e.index, err = lsh.New(o.cfg); err != nil {
		return nil, err
	}

	scorer := o.scorer
	if o.embedder != nil {
		semOpts := append([]semantic.Option{semantic.WithLogger(o.logger)}, o.semanticOpts...)
		if e.scorer, err = semantic.NewScorer(o.embedder, semOpts...); err != nil {
			return nil, err
		}
		scorer = e.scorer
	}

	userHook := o.onEvict
	e.cache, err = cache.New(o.cfg, e.signer, e.index,
		cache.WithLogger(o.logger),
		cache.WithClock(o.now),
		cache.WithEvictionHook(func(rec *core.DocumentRecord, reason cache.Reason) {
			if e.scorer != nil {
				e.scorer.Forget(rec.Hash)
			}
			if userHook != nil {
				userHook(rec, reason)
			}
		}))
	if err != nil {
		e.closeScorer()
		return nil, err
	}

	fuserOpts := []fusion.Option{fusion.WithLogger(o.logger), fusion.WithClock(o.now)}
	if scorer != nil {
		fuserOpts = append(fuserOpts, fusion.WithScorer(scorer))
	}
	if e.fuser, err = fusion.New(o.cfg, e.cache, fuserOpts...); err != nil {
		e.closeScorer()
		return nil, err
	}

	if o.cfg.SweepInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		e.stopSweeper = cancel
		e.sweeperDone = e.cache.StartSweeper(ctx, o.cfg.SweepInterval)
	}

	e.logger.Debug("engine ready",
		"shingleWidth", o.cfg.ShingleWidth,
		"numPerm", o.cfg.NumPerm,
		"bands", o.cfg.Bands,
		"rows", o.cfg.RowsPerBand(),
		"threshold", lsh.Threshold(o.cfg.NumPerm, o.cfg.Bands),
		"ttl", o.cfg.TTL,
		"semantic", scorer != nil)
	return e, nil
}

// Config returns the engine configuration. It must not be modified.
func (e *Engine) Config() *core.Config {
	return e.cfg
}

// Params returns the signature-defining constants.
func (e *Engine) Params() core.IndexParams {
	return e.cfg.Params()
}

// Policy returns the reporting policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Add indexes a submission without producing a report. inserted is false
// when identical content is already cached.
func (e *Engine) Add(ctx context.Context, sourceRef, text string) (*core.DocumentRecord, bool, error) {
	if err := e.checkOpen(); err != nil {
		return nil, false, err
	}
	defer e.mu.RUnlock()
	return e.cache.GetOrInsert(ctx, sourceRef, text, time.Time{})
}

// AddFetched indexes a page from the fetch collaborator as candidate evidence.
func (e *Engine) AddFetched(ctx context.Context, page core.FetchedPage) (*core.DocumentRecord, bool, error) {
	if err := e.checkOpen(); err != nil {
		return nil, false, err
	}
	defer e.mu.RUnlock()
	return e.cache.GetOrInsert(ctx, page.SourceRef, page.Text, page.FetchedAt)
}

// Submit inserts the text, then reports every other indexed document that
// is a near-duplicate of it. The report names sourceRef even when the
// content was first indexed under another reference.
func (e *Engine) Submit(ctx context.Context, sourceRef, text string) (*core.Report, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	defer e.mu.RUnlock()

	e.monitor.Start(sourceRef)
	rec, _, err := e.cache.GetOrInsert(ctx, sourceRef, text, time.Time{})
	if err != nil {
		return nil, err
	}
	query := *rec
	query.SourceRef = sourceRef
	return e.report(ctx, &query, e.index.Query(rec.Signature, rec.Hash), false)
}

// Check reports near-duplicates of text without storing it. A cached record
// with identical content is reported as an exact match.
func (e *Engine) Check(ctx context.Context, sourceRef, text string) (*core.Report, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	defer e.mu.RUnlock()

	e.monitor.Start(sourceRef)
	tokens := shingle.Tokenize(text)
	set := shingle.Shingles(tokens, e.cfg.ShingleWidth)
	query := &core.DocumentRecord{
		Hash:         core.HashContent(shingle.Normalize(text)),
		SourceRef:    sourceRef,
		Text:         text,
		TokenCount:   len(tokens),
		ShingleCount: len(set),
		Signature:    e.signer.Sign(set),
		InsertedAt:   e.now(),
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := e.index.Query(query.Signature, query.Hash)
	if !query.Signature.IsEmpty() && e.index.Contains(query.Hash) {
		candidates = append(candidates, query.Hash)
	}
	return e.report(ctx, query, candidates, true)
}

func (e *Engine) report(ctx context.Context, query *core.DocumentRecord, candidates []core.ContentHash, transient bool) (*core.Report, error) {
	e.monitor.AfterSignature(query)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.monitor.AfterCandidateQuery(candidates)
	return e.fuser.Build(ctx, fusion.Request{
		Query:      query,
		Candidates: candidates,
		Threshold:  e.policy.Threshold,
		TopK:       e.policy.TopK,
		Transient:  transient,
		Monitor:    e.monitor,
	})
}

// Get returns the live record for h.
func (e *Engine) Get(h core.ContentHash) (*core.DocumentRecord, bool) {
	if e.checkOpen() != nil {
		return nil, false
	}
	defer e.mu.RUnlock()
	return e.cache.Get(h)
}

// Remove evicts one document from the cache and the index.
func (e *Engine) Remove(h core.ContentHash) bool {
	if e.checkOpen() != nil {
		return false
	}
	defer e.mu.RUnlock()
	return e.cache.Remove(h)
}

// Purge drops every document and returns how many were removed.
func (e *Engine) Purge() int {
	if e.checkOpen() != nil {
		return 0
	}
	defer e.mu.RUnlock()
	n := e.cache.Purge()
	e.logger.Info("index purged", "documents", n)
	return n
}

// Sweep evicts every expired document now.
func (e *Engine) Sweep() int {
	if e.checkOpen() != nil {
		return 0
	}
	defer e.mu.RUnlock()
	return e.cache.Sweep(e.now())
}

// Documents returns the live records ordered by insertion time.
func (e *Engine) Documents() []*core.DocumentRecord {
	if e.checkOpen() != nil {
		return nil
	}
	defer e.mu.RUnlock()
	return e.cache.Records()
}

// Stats reports cache and index counters.
func (e *Engine) Stats() Stats {
	return Stats{Cache: e.cache.Stats(), Index: e.index.Stats()}
}

// ExportSnapshot writes every live record with its band keys to w.
func (e *Engine) ExportSnapshot(w io.Writer) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	defer e.mu.RUnlock()

	records := e.cache.Records()
	if err := storage.WriteSnapshot(w, e.Params(), records, e.index); err != nil {
		return err
	}
	e.logger.Info("snapshot exported", "documents", len(records))
	return nil
}

// ImportSnapshot restores records from a snapshot written under the same
// parameters. Records already cached or already expired are skipped.
func (e *Engine) ImportSnapshot(r io.Reader) (int, error) {
	if err := e.checkOpen(); err != nil {
		return 0, err
	}
	defer e.mu.RUnlock()

	records, err := storage.ReadSnapshot(r, e.Params(), e.index)
	if err != nil {
		return 0, err
	}
	n, err := e.restore(records)
	if err != nil {
		return n, err
	}
	e.logger.Info("snapshot imported", "documents", n, "skipped", len(records)-n)
	return n, nil
}

// SaveTo persists every live record to repo.
func (e *Engine) SaveTo(ctx context.Context, repo storage.DocumentRepository) (int, error) {
	if err := e.checkOpen(); err != nil {
		return 0, err
	}
	defer e.mu.RUnlock()

	records := e.cache.Records()
	if len(records) == 0 {
		return 0, nil
	}
	if err := repo.SaveDocuments(ctx, e.Params(), records...); err != nil {
		return 0, fmt.Errorf("save documents: %w", err)
	}
	return len(records), nil
}

// LoadFrom restores records persisted by SaveTo.
func (e *Engine) LoadFrom(ctx context.Context, repo storage.DocumentRepository) (int, error) {
	if err := e.checkOpen(); err != nil {
		return 0, err
	}
	defer e.mu.RUnlock()

	records, err := repo.LoadDocuments(ctx, e.Params())
	if err != nil {
		return 0, fmt.Errorf("load documents: %w", err)
	}
	return e.restore(records)
}

func (e *Engine) restore(records []*core.DocumentRecord) (int, error) {
	n := 0
	for _, rec := range records {
		ok, err := e.cache.Restore(rec)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// NewPipeline creates a worker pool that drives this engine.
func (e *Engine) NewPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(e, opts...)
}

// Close stops the sweeper and releases the semantic scorer. In-flight
// operations finish first. Later operations that return an error fail with
// ErrEngineClosed; Get, Remove, Purge, Sweep and Documents find nothing.
// Stats stays available.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()

		if e.stopSweeper != nil {
			e.stopSweeper()
			<-e.sweeperDone
		}
		e.closeScorer()
		e.logger.Debug("engine closed")
	})
	return nil
}

func (e *Engine) closeScorer() {
	if e.scorer != nil {
		e.scorer.Close()
	}
}

// checkOpen takes the read lock and returns nil if the engine is open;
// callers must release it.
func (e *Engine) checkOpen() error {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return ErrEngineClosed
	}
	return nil
}

func checkPolicy(p Policy) error {
	if math.IsNaN(p.Threshold) || p.Threshold < 0 || p.Threshold > 1 {
		return fmt.Errorf("%w: policy threshold %v", core.ErrInvalidConfig, p.Threshold)
	}
	if p.TopK < 0 {
		return fmt.Errorf("%w: policy top-k %d", core.ErrInvalidConfig, p.TopK)
	}
	return nil
}

var _ ingestion.Checker = (*Engine)(nil)
