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

package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/textguard/core"
	"golang.org/x/sync/errgroup"
)

// Checker is the engine surface the pipeline drives.
type Checker interface {
	// Submit inserts the text and reports its near-duplicates.
	Submit(ctx context.Context, sourceRef, text string) (*core.Report, error)
	// AddFetched indexes a page supplied by the fetch collaborator.
	AddFetched(ctx context.Context, page core.FetchedPage) (*core.DocumentRecord, bool, error)
}

// Submission is one document handed to the pipeline.
type Submission struct {
	SourceRef string
	Text      string
}

// Result is the outcome of one submission.
type Result struct {
	Submission Submission
	Report     *core.Report
	Err        error
}

// IngestStats summarizes a drained page stream.
type IngestStats struct {
	Inserted   int // Pages that created a new record
	Duplicates int // Pages whose content was already cached
	Failed     int // Pages rejected by the engine
}

// Pipeline executes submissions and fetched pages on a worker pool.
type Pipeline struct {
	checker  Checker
	pool     *ants.Pool
	poolSize int
	progress *ProgressTracker
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.poolSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "ingestion")
		return nil
	}
}

// WithProgress reports every processed item to tracker. The caller starts
// and finishes the tracker.
func WithProgress(tracker *ProgressTracker) Option {
	return func(p *Pipeline) error {
		p.progress = tracker
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(checker Checker, opts ...Option) (*Pipeline, error) {
	if checker == nil {
		return nil, ErrCheckerRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	p := &Pipeline{
		checker:  checker,
		poolSize: poolSize,
		logger:   slog.Default().With("component", "ingestion"),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(p.poolSize)
	if err != nil {
		return nil, err
	}
	p.pool = pool
	return p, nil
}

// Submit schedules one submission. The returned channel receives exactly
// one Result and is then closed.
func (p *Pipeline) Submit(ctx context.Context, sub Submission) (<-chan Result, error) {
	results := make(chan Result, 1)
	err := p.pool.Submit(func() {
		defer close(results)
		report, err := p.checker.Submit(ctx, sub.SourceRef, sub.Text)
		if err != nil {
			p.logger.Warn("submission failed", "source", sub.SourceRef, "err", err)
		}
		p.tick()
		results <- Result{Submission: sub, Report: report, Err: err}
	})
	if err != nil {
		return nil, poolErr(err)
	}
	return results, nil
}

// SubmitAll runs every submission and returns their results in input order.
// Per-submission failures are carried in Result.Err; the returned error is
// set only when work could not be scheduled or ctx ended first.
func (p *Pipeline) SubmitAll(ctx context.Context, subs []Submission) ([]Result, error) {
	results := make([]Result, len(subs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.poolSize)
	for i, sub := range subs {
		g.Go(func() error {
			ch, err := p.Submit(ctx, sub)
			if err != nil {
				return err
			}
			select {
			case res := <-ch:
				results[i] = res
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// IngestFetched indexes pages until the channel closes or ctx ends.
func (p *Pipeline) IngestFetched(ctx context.Context, pages <-chan core.FetchedPage) (IngestStats, error) {
	var (
		wg                          sync.WaitGroup
		inserted, duplicates, fails atomic.Int64
		submitErr                   error
	)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case page, ok := <-pages:
			if !ok {
				break loop
			}
			wg.Add(1)
			err := p.pool.Submit(func() {
				defer wg.Done()
				defer p.tick()
				_, created, err := p.checker.AddFetched(ctx, page)
				switch {
				case err != nil:
					fails.Add(1)
					p.logger.Warn("fetched page rejected", "source", page.SourceRef, "err", err)
				case created:
					inserted.Add(1)
				default:
					duplicates.Add(1)
				}
			})
			if err != nil {
				wg.Done()
				submitErr = poolErr(err)
				break loop
			}
		}
	}
	wg.Wait()

	stats := IngestStats{
		Inserted:   int(inserted.Load()),
		Duplicates: int(duplicates.Load()),
		Failed:     int(fails.Load()),
	}
	p.logger.Debug("fetched pages ingested",
		"inserted", stats.Inserted, "duplicates", stats.Duplicates, "failed", stats.Failed)
	if submitErr != nil {
		return stats, submitErr
	}
	return stats, ctx.Err()
}

// Running returns the number of busy workers.
func (p *Pipeline) Running() int {
	return p.pool.Running()
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

func (p *Pipeline) tick() {
	if p.progress != nil {
		p.progress.Increment(1)
	}
}

func poolErr(err error) error {
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPipelineReleased
	}
	return err
}
