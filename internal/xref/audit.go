package xref

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/catalog-etl/internal/match"
	"github.com/sells-group/catalog-etl/internal/model"
)

// VerdictWriter persists verdict rows.
type VerdictWriter interface {
	SaveVerdict(ctx context.Context, v model.VerdictRow) error
}

// StoreAuditor writes every verdict to a store. Write failures are logged and
// do not affect resolution.
type StoreAuditor struct {
	w   VerdictWriter
	now func() time.Time
}

// NewStoreAuditor creates a StoreAuditor writing to w.
func NewStoreAuditor(w VerdictWriter) *StoreAuditor {
	return &StoreAuditor{w: w, now: time.Now}
}

// Record implements match.Auditor.
func (a *StoreAuditor) Record(ctx context.Context, e match.AuditEntry) {
	row := VerdictRow(e, a.now().UTC())
	if err := a.w.SaveVerdict(ctx, row); err != nil {
		zap.L().Warn("xref: save verdict",
			zap.String("run_id", e.RunID),
			zap.Int64("catalog_id", e.CatalogID),
			zap.Error(err),
		)
	}
}

// VerdictRow flattens an audit entry into its stored form.
func VerdictRow(e match.AuditEntry, at time.Time) model.VerdictRow {
	return model.VerdictRow{
		RunID:          e.RunID,
		CatalogID:      e.CatalogID,
		EntityType:     e.EntityType,
		SourceTitle:    e.Verdict.SourceTitle,
		CandidateTitle: e.Verdict.CandidateTitle,
		Ratio:          e.Verdict.Ratio,
		Threshold:      e.Verdict.Threshold,
		Reason:         string(e.Verdict.Reason),
		Accepted:       e.Verdict.Accepted,
		CreatedAt:      at,
	}
}
