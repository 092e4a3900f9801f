package match

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/catalog-etl/internal/model"
)

// AuditEntry is one verdict as emitted to an audit sink.
type AuditEntry struct {
	RunID      string
	CatalogID  int64
	EntityType model.EntityType
	Verdict    Verdict
}

// Auditor receives every verdict, accepted or not. Implementations must not
// fail the resolution: errors are theirs to log.
type Auditor interface {
	Record(ctx context.Context, e AuditEntry)
}

// AuditorFunc adapts a function to Auditor.
type AuditorFunc func(ctx context.Context, e AuditEntry)

// Record implements Auditor.
func (f AuditorFunc) Record(ctx context.Context, e AuditEntry) { f(ctx, e) }

// NopAuditor discards entries.
type NopAuditor struct{}

// Record implements Auditor.
func (NopAuditor) Record(context.Context, AuditEntry) {}

// LogAuditor writes verdicts to a zap logger. Accepted verdicts are logged at
// debug, rejections at info so threshold tuning can work from the logs alone.
type LogAuditor struct {
	log *zap.Logger
}

// NewLogAuditor creates a LogAuditor. A nil logger uses the global one.
func NewLogAuditor(log *zap.Logger) *LogAuditor {
	if log == nil {
		log = zap.L()
	}
	return &LogAuditor{log: log.With(zap.String("component", "match_audit"))}
}

// Record implements Auditor.
func (a *LogAuditor) Record(_ context.Context, e AuditEntry) {
	fields := []zap.Field{
		zap.String("run_id", e.RunID),
		zap.Int64("catalog_id", e.CatalogID),
		zap.String("entity_type", string(e.EntityType)),
		zap.String("source_title", e.Verdict.SourceTitle),
		zap.String("candidate_title", e.Verdict.CandidateTitle),
		zap.Float64("ratio", e.Verdict.Ratio),
		zap.Float64("threshold", e.Verdict.Threshold),
		zap.String("reason", string(e.Verdict.Reason)),
	}
	if e.Verdict.Accepted {
		a.log.Debug("match accepted", fields...)
		return
	}
	a.log.Info("match rejected", fields...)
}

// MultiAuditor fans entries out to several sinks in order.
type MultiAuditor []Auditor

// Record implements Auditor.
func (m MultiAuditor) Record(ctx context.Context, e AuditEntry) {
	for _, a := range m {
		if a != nil {
			a.Record(ctx, e)
		}
	}
}
