package xref

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-etl/internal/match"
	"github.com/sells-group/catalog-etl/internal/model"
)

// DefaultBatchPause is the pause between batches and between subsets.
const DefaultBatchPause = 60 * time.Second

// Resolution is the outcome for one source record.
type Resolution struct {
	Record  model.EnrichedRecord `json:"record"`
	Verdict match.Verdict        `json:"verdict"`
	Err     error                `json:"-"`
}

// CheckpointSink stores resolved records so an interrupted run can resume.
type CheckpointSink interface {
	SaveCheckpoint(ctx context.Context, cp model.Checkpoint) error
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithAuditor sets the sink receiving every verdict.
func WithAuditor(a match.Auditor) Option {
	return func(r *Resolver) {
		if a != nil {
			r.auditor = a
		}
	}
}

// WithGate sets the pacing and quota gate shared by all lookups.
func WithGate(g *Gate) Option {
	return func(r *Resolver) { r.gate = g }
}

// WithBatching splits sequential resolution into batches of size records,
// separated by pause. size <= 0 disables batching.
func WithBatching(size int, pause time.Duration) Option {
	return func(r *Resolver) {
		r.batchSize = size
		r.batchPause = pause
	}
}

// WithSubsetPause sets the pause ResolveBatches waits between subsets.
func WithSubsetPause(d time.Duration) Option {
	return func(r *Resolver) { r.subsetPause = d }
}

// WithCheckpoints stores every resolution that did not fail.
func WithCheckpoints(s CheckpointSink) Option {
	return func(r *Resolver) { r.checkpoints = s }
}

// WithWorkers sets how many lookups ResolveBatches runs concurrently.
// n <= 1 resolves sequentially with batching pauses.
func WithWorkers(n int) Option {
	return func(r *Resolver) { r.workers = n }
}

// WithRunID tags audit entries with the run they belong to.
func WithRunID(id string) Option {
	return func(r *Resolver) { r.runID = id }
}

// Resolver matches source records against the rating catalog.
type Resolver struct {
	lookup      Lookup
	auditor     match.Auditor
	gate        *Gate
	checkpoints CheckpointSink
	batchSize   int
	batchPause  time.Duration
	subsetPause time.Duration
	runID       string
	workers     int
	log         *zap.Logger

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) bool
}

// NewResolver creates a Resolver around lookup. Without options verdicts go
// to the global zap logger and no pacing is applied.
func NewResolver(lookup Lookup, opts ...Option) *Resolver {
	r := &Resolver{
		lookup:      lookup,
		subsetPause: DefaultBatchPause,
		log:         zap.L().With(zap.String("component", "xref")),
		sleep:       sleepCtx,
	}
	r.auditor = match.NewLogAuditor(nil)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve looks up one record, judges the candidate under policy, emits the
// verdict and returns the enrichment. The lookup is called at most once; it
// is skipped only when the gate refuses the call. Failures never escape:
// they resolve with reason lookup_error and empty rating fields.
func (r *Resolver) Resolve(ctx context.Context, rec model.SourceRecord, policy match.Policy) Resolution {
	cand, err := r.lookupOnce(ctx, rec)

	var v match.Verdict
	if err != nil {
		v = match.LookupFailed(rec.Title, policy)
		r.log.Warn("xref: lookup failed",
			zap.Int64("catalog_id", rec.CatalogID),
			zap.String("title", rec.Title),
			zap.Error(err),
		)
	} else {
		v = match.DecideRecord(rec, cand, policy)
	}

	out := model.EnrichedRecord{CatalogID: rec.CatalogID}
	if v.Accepted {
		out.RatingValue = cand.RatingValue
		out.VoteCount = cand.VoteCount
	}

	r.auditor.Record(ctx, match.AuditEntry{
		RunID:      r.runID,
		CatalogID:  rec.CatalogID,
		EntityType: rec.EntityType,
		Verdict:    v,
	})

	if r.checkpoints != nil && err == nil {
		cp := model.Checkpoint{
			EntityType:    rec.EntityType,
			CatalogID:     rec.CatalogID,
			Threshold:     policy.Threshold,
			YearTolerance: policy.YearTolerance,
			Record:        out,
			CreatedAt:     time.Now().UTC(),
		}
		if cerr := r.checkpoints.SaveCheckpoint(ctx, cp); cerr != nil {
			r.log.Warn("xref: save checkpoint", zap.Int64("catalog_id", rec.CatalogID), zap.Error(cerr))
		}
	}

	return Resolution{Record: out, Verdict: v, Err: err}
}

func (r *Resolver) lookupOnce(ctx context.Context, rec model.SourceRecord) (cand *model.CandidateRecord, err error) {
	if err := r.gate.Acquire(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if p := recover(); p != nil {
			cand = nil
			err = eris.Errorf("xref: lookup panicked: %v", p)
		}
	}()
	return r.lookup.Lookup(ctx, QueryFor(rec))
}

// ResolveAll resolves recs one at a time and returns one resolution per
// record in input order. When batching is configured the resolver pauses
// between batches. A cancelled context does not shorten the output: the
// remaining records resolve as lookup errors.
func (r *Resolver) ResolveAll(ctx context.Context, recs []model.SourceRecord, policy match.Policy) []Resolution {
	out := make([]Resolution, len(recs))
	for i, rec := range recs {
		if i > 0 && r.batchSize > 0 && i%r.batchSize == 0 && r.batchPause > 0 {
			r.log.Info("xref: batch pause",
				zap.Int("resolved", i),
				zap.Int("total", len(recs)),
				zap.Duration("pause", r.batchPause),
			)
			r.sleep(ctx, r.batchPause)
		}
		out[i] = r.Resolve(ctx, rec, policy)
	}
	return out
}

// ResolveBatches resolves each subset in order, pausing between subsets.
// Subsets fan out over the configured workers. The result has one slice per
// subset.
func (r *Resolver) ResolveBatches(ctx context.Context, subsets [][]model.SourceRecord, policy match.Policy) [][]Resolution {
	out := make([][]Resolution, len(subsets))
	for i, subset := range subsets {
		if i > 0 && r.subsetPause > 0 && len(subset) > 0 {
			r.log.Info("xref: pausing between subsets", zap.Duration("pause", r.subsetPause))
			r.sleep(ctx, r.subsetPause)
		}
		out[i] = r.ResolveParallel(ctx, subset, policy, r.workers)
	}
	return out
}

// Records extracts the enriched records from resolutions, keeping order.
func Records(res []Resolution) []model.EnrichedRecord {
	out := make([]model.EnrichedRecord, len(res))
	for i, r := range res {
		out[i] = r.Record
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
