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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/textguard"
	"github.com/poiesic/textguard/ai"
	"github.com/poiesic/textguard/ai/openai"
	"github.com/poiesic/textguard/core"
	"github.com/poiesic/textguard/ingestion"
	"github.com/poiesic/textguard/semantic"
	"github.com/poiesic/textguard/storage"
	"github.com/poiesic/textguard/storage/badger"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "textguard",
		Usage: "Near-duplicate detection over submitted and fetched text",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML config file",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
				Value:   "./textguard_db",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "index",
				Usage:     "Index files as fetched evidence pages",
				ArgsUsage: "FILE...",
				Action:    indexCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of concurrent indexing workers",
						Value: 4,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N documents",
						Value: 100,
					},
				},
			},
			{
				Name:      "check",
				Usage:     "Report near-duplicates of a file (- reads stdin)",
				ArgsUsage: "FILE",
				Action:    checkCommand,
				Flags: []cli.Flag{
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Combined score at or above which a match is flagged",
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Number of matches to show (0 shows all)",
						Value: 5,
					},
					&cli.BoolFlag{
						Name:  "insert",
						Usage: "Index the checked text and keep the report in history",
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "Source reference recorded for the checked text (defaults to the file name)",
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:  "embedding-model",
						Usage: "Embedding model name; enables semantic scoring",
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts per embedding request",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
			{
				Name:   "list",
				Usage:  "List indexed documents, oldest first",
				Action: listCommand,
			},
			{
				Name:   "history",
				Usage:  "Show recent check reports",
				Action: historyCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of reports to show",
						Value: 10,
					},
				},
			},
			{
				Name:   "purge",
				Usage:  "Remove every indexed document",
				Action: purgeCommand,
			},
			{
				Name:   "sweep",
				Usage:  "Remove documents older than the TTL",
				Action: sweepCommand,
			},
			{
				Name:      "export",
				Usage:     "Write a snapshot of the index (- writes stdout)",
				ArgsUsage: "FILE",
				Action:    exportCommand,
			},
			{
				Name:      "import",
				Usage:     "Load a snapshot into the index",
				ArgsUsage: "FILE",
				Action:    importCommand,
			},
		},
	}
}

// store bundles the database and an engine restored from it.
type store struct {
	backend *badger.Backend
	docs    *badger.DocumentRepository
	reports *badger.ReportRepository
	engine  *textguard.Engine
}

func openStore(c *cli.Context, s *settings, opts ...textguard.EngineOption) (*store, error) {
	ctx := c.Context
	backend, err := badger.OpenBackend(c.String("db"), false, badger.WithLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	st := &store{backend: backend}
	if st.docs, err = badger.NewDocumentRepository(backend); err != nil {
		st.Close()
		return nil, err
	}
	if st.reports, err = badger.NewReportRepository(backend); err != nil {
		st.Close()
		return nil, err
	}

	opts = append([]textguard.EngineOption{
		textguard.WithConfig(s.engine),
		textguard.WithPolicy(s.policy),
		textguard.WithLogger(slog.Default()),
	}, opts...)
	if st.engine, err = textguard.NewEngine(opts...); err != nil {
		st.Close()
		return nil, err
	}
	n, err := st.engine.LoadFrom(ctx, st.docs)
	if err != nil {
		st.Close()
		return nil, err
	}
	slog.Debug("documents restored", "count", n)
	return st, nil
}

// save persists every live document.
func (st *store) save(ctx context.Context) error {
	_, err := st.engine.SaveTo(ctx, st.docs)
	return err
}

func (st *store) Close() {
	if st.engine != nil {
		st.engine.Close()
	}
	if st.reports != nil {
		if err := st.reports.Close(); err != nil {
			slog.Error("error closing report repository", "err", err)
		}
	}
	if err := st.backend.Close(); err != nil {
		slog.Error("error closing backend storage", "err", err)
	}
}

func settingsFor(c *cli.Context) (*settings, error) {
	return loadSettings(c.String("config"))
}

func indexCommand(c *cli.Context) error {
	ctx := c.Context
	if c.NArg() == 0 {
		return fmt.Errorf("at least one file is required")
	}
	s, err := settingsFor(c)
	if err != nil {
		return err
	}
	st, err := openStore(c, s)
	if err != nil {
		return err
	}
	defer st.Close()

	tracker := ingestion.NewProgressTracker(c.App.ErrWriter, c.NArg(), c.Int("report-interval"))
	pipeline, err := st.engine.NewPipeline(
		ingestion.WithPoolSize(c.Int("workers")),
		ingestion.WithLogger(slog.Default()),
		ingestion.WithProgress(tracker))
	if err != nil {
		return err
	}
	defer pipeline.Release()

	pages := make(chan core.FetchedPage)
	readErr := make(chan error, 1)
	go func() {
		defer close(pages)
		readErr <- readPages(ctx, c.Args().Slice(), pages)
	}()

	tracker.Start()
	stats, err := pipeline.IngestFetched(ctx, pages)
	tracker.Finish()
	if err != nil {
		return err
	}
	if err := <-readErr; err != nil {
		return err
	}
	if err := st.save(ctx); err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "indexed %d, duplicates %d, failed %d\n",
		stats.Inserted, stats.Duplicates, stats.Failed)
	return nil
}

// readPages sends each file as a page fetched at its modification time.
func readPages(ctx context.Context, paths []string, pages chan<- core.FetchedPage) error {
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		page := core.FetchedPage{SourceRef: path, Text: string(data), FetchedAt: info.ModTime().UTC()}
		select {
		case pages <- page:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// embeddingFor layers the embedding flags over the config file block. It
// returns nil when neither names a model.
func embeddingFor(c *cli.Context, base *ai.Config) *ai.Config {
	model := c.String("embedding-model")
	if base == nil && model == "" {
		return nil
	}
	cfg := ai.DefaultConfig()
	if base != nil {
		*cfg = *base
	}
	if model != "" {
		cfg.EmbeddingModel = model
	}
	if c.IsSet("embedding-host") {
		cfg.EmbeddingHost = c.String("embedding-host")
	}
	return cfg
}

func checkCommand(c *cli.Context) error {
	ctx := c.Context
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one file is required")
	}
	s, err := settingsFor(c)
	if err != nil {
		return err
	}
	if c.IsSet("threshold") {
		s.policy.Threshold = c.Float64("threshold")
	}
	if c.IsSet("top-k") {
		s.policy.TopK = c.Int("top-k")
	}
	s.embedding = embeddingFor(c, s.embedding)

	var opts []textguard.EngineOption
	if s.embedding != nil {
		embedder, err := openai.NewEmbedder(s.embedding)
		if err != nil {
			return fmt.Errorf("failed to create embedder: %w", err)
		}
		opts = append(opts, textguard.WithEmbedder(embedder,
			semantic.WithRetry(c.Int("max-retries"), c.Duration("retry-delay"))))
	}

	path := c.Args().First()
	text, err := readInput(c.App.Reader, path)
	if err != nil {
		return err
	}
	source := c.String("source")
	if source == "" {
		source = path
	}

	st, err := openStore(c, s, opts...)
	if err != nil {
		return err
	}
	defer st.Close()

	var report *core.Report
	if c.Bool("insert") {
		if report, err = st.engine.Submit(ctx, source, text); err != nil {
			return err
		}
		if err := st.save(ctx); err != nil {
			return err
		}
		if _, err := st.reports.AddReport(ctx, report); err != nil {
			return err
		}
	} else if report, err = st.engine.Check(ctx, source, text); err != nil {
		return err
	}

	printReport(c.App.Writer, report)
	return nil
}

func readInput(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

func printReport(w io.Writer, report *core.Report) {
	fmt.Fprintf(w, "%s  %s  candidates=%d  threshold=%.2f\n",
		report.QuerySourceRef, report.QueryHash, report.CandidatesCount, report.Threshold)
	if report.Signal == core.SignalEmpty {
		fmt.Fprintln(w, "  not enough text to compare")
		return
	}
	if len(report.Matches) == 0 {
		fmt.Fprintln(w, "  no matches")
		return
	}
	for i, m := range report.Matches {
		sem := "n/a"
		if v, ok := m.Semantic.Value(); ok {
			sem = fmt.Sprintf("%.3f", v)
		}
		flag := ""
		if m.AboveThreshold {
			flag = "FLAGGED"
		}
		fmt.Fprintf(w, "  %d. %6.2f%%  jaccard=%.3f  semantic=%s  %-7s  %s\n",
			i+1, m.Percent(), m.EstimatedJaccard, sem, flag, m.SourceRef)
	}
}

func listCommand(c *cli.Context) error {
	s, err := settingsFor(c)
	if err != nil {
		return err
	}
	st, err := openStore(c, s)
	if err != nil {
		return err
	}
	defer st.Close()

	for _, rec := range st.engine.Documents() {
		fmt.Fprintf(c.App.Writer, "%s  %s  tokens=%d  shingles=%d  %s\n",
			rec.Hash, rec.InsertedAt.Format(time.RFC3339), rec.TokenCount, rec.ShingleCount, rec.SourceRef)
	}
	return nil
}

func historyCommand(c *cli.Context) error {
	s, err := settingsFor(c)
	if err != nil {
		return err
	}
	st, err := openStore(c, s)
	if err != nil {
		return err
	}
	defer st.Close()

	reports, err := st.reports.RecentReports(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	for _, r := range reports {
		status := "clean"
		if r.Flagged() {
			status = "flagged"
		}
		fmt.Fprintf(c.App.Writer, "%s  %-7s  matches=%d  %s\n",
			r.CreatedAt.Format(time.RFC3339), status, len(r.Matches), r.QuerySourceRef)
	}
	return nil
}

func purgeCommand(c *cli.Context) error {
	s, err := settingsFor(c)
	if err != nil {
		return err
	}
	st, err := openStore(c, s)
	if err != nil {
		return err
	}
	defer st.Close()

	n := st.engine.Purge()
	if err := st.docs.Clear(c.Context); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "purged %d documents\n", n)
	return nil
}

// sweepCommand deletes persisted documents that are past the TTL. They are
// never restored into the engine, so they are found in the database.
func sweepCommand(c *cli.Context) error {
	s, err := settingsFor(c)
	if err != nil {
		return err
	}
	st, err := openStore(c, s)
	if err != nil {
		return err
	}
	defer st.Close()

	docs, err := st.docs.LoadDocuments(c.Context, st.engine.Params())
	if err != nil {
		return err
	}
	var expired []core.ContentHash
	for _, rec := range docs {
		if _, live := st.engine.Get(rec.Hash); !live {
			expired = append(expired, rec.Hash)
		}
	}
	if err := st.docs.DeleteDocuments(c.Context, expired...); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "swept %d documents\n", len(expired))
	return nil
}

func exportCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one file is required")
	}
	s, err := settingsFor(c)
	if err != nil {
		return err
	}
	st, err := openStore(c, s)
	if err != nil {
		return err
	}
	defer st.Close()

	path := c.Args().First()
	if path == "-" {
		return st.engine.ExportSnapshot(c.App.Writer)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := st.engine.ExportSnapshot(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func importCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one file is required")
	}
	s, err := settingsFor(c)
	if err != nil {
		return err
	}
	st, err := openStore(c, s)
	if err != nil {
		return err
	}
	defer st.Close()

	f, err := os.Open(c.Args().First())
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := st.engine.ImportSnapshot(f)
	if err != nil {
		if errors.Is(err, storage.ErrSnapshotMismatch) {
			return fmt.Errorf("%w (check the shingle width, signature and band settings)", err)
		}
		return err
	}
	if err := st.save(c.Context); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "imported %d documents\n", n)
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
