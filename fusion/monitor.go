package fusion

import (
	"log/slog"

	"github.com/poiesic/textguard/core"
)

// Monitor provides hooks to observe a check as it moves through the pipeline.
type Monitor interface {
	Start(sourceRef string)
	AfterSignature(query *core.DocumentRecord)
	AfterCandidateQuery(candidates []core.ContentHash)
	CandidateSkipped(candidate core.ContentHash, reason string)
	SemanticUnavailable(candidate core.ContentHash, err error)
	Finish(report *core.Report)
}

// NoopMonitor ignores every event.
type NoopMonitor struct{}

var _ Monitor = NoopMonitor{}

func (NoopMonitor) Start(_ string)                                  {}
func (NoopMonitor) AfterSignature(_ *core.DocumentRecord)           {}
func (NoopMonitor) AfterCandidateQuery(_ []core.ContentHash)        {}
func (NoopMonitor) CandidateSkipped(_ core.ContentHash, _ string)   {}
func (NoopMonitor) SemanticUnavailable(_ core.ContentHash, _ error) {}
func (NoopMonitor) Finish(_ *core.Report)                           {}

// LogMonitor writes every event to a logger at debug level.
type LogMonitor struct {
	logger *slog.Logger
}

var _ Monitor = (*LogMonitor)(nil)

// NewLogMonitor creates a LogMonitor. A nil logger falls back to slog.Default().
func NewLogMonitor(logger *slog.Logger) *LogMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMonitor{logger: logger.With("component", "monitor")}
}

func (m *LogMonitor) Start(sourceRef string) {
	m.logger.Debug("check started", "source", sourceRef)
}

func (m *LogMonitor) AfterSignature(query *core.DocumentRecord) {
	m.logger.Debug("query signed",
		"hash", query.Hash,
		"tokens", query.TokenCount,
		"shingles", query.ShingleCount,
		"empty", query.Signature.IsEmpty())
}

func (m *LogMonitor) AfterCandidateQuery(candidates []core.ContentHash) {
	m.logger.Debug("candidates retrieved", "count", len(candidates))
}

func (m *LogMonitor) CandidateSkipped(candidate core.ContentHash, reason string) {
	m.logger.Debug("candidate skipped", "hash", candidate, "reason", reason)
}

func (m *LogMonitor) SemanticUnavailable(candidate core.ContentHash, err error) {
	m.logger.Debug("semantic score unavailable", "hash", candidate, "err", err)
}

func (m *LogMonitor) Finish(report *core.Report) {
	m.logger.Debug("check finished",
		"signal", report.Signal,
		"candidates", report.CandidatesCount,
		"matches", len(report.Matches),
		"flagged", report.Flagged())
}
