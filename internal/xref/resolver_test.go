package xref

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-etl/internal/match"
	"github.com/sells-group/catalog-etl/internal/model"
)

func ptr[T any](v T) *T { return &v }

func found(title, rating, votes string) *model.CandidateRecord {
	r := decimal.RequireFromString(rating)
	return &model.CandidateRecord{ReturnedTitle: title, RatingValue: &r, VoteCount: &votes, Found: true}
}

// fakeCatalog answers by title and counts calls.
type fakeCatalog struct {
	mu      sync.Mutex
	byTitle map[string]*model.CandidateRecord
	errs    map[string]error
	calls   map[string]int
	total   atomic.Int64
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		byTitle: map[string]*model.CandidateRecord{},
		errs:    map[string]error{},
		calls:   map[string]int{},
	}
}

func (f *fakeCatalog) Lookup(_ context.Context, q Query) (*model.CandidateRecord, error) {
	f.total.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[q.Title]++
	if err := f.errs[q.Title]; err != nil {
		return nil, err
	}
	return f.byTitle[q.Title], nil
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []match.AuditEntry
}

func (a *recordingAuditor) Record(_ context.Context, e match.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

func source(id int64, title string) model.SourceRecord {
	return model.SourceRecord{CatalogID: id, Title: title, EntityType: model.EntityMovie}
}

func noSleep(r *Resolver) *[]time.Duration {
	var pauses []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) bool {
		pauses = append(pauses, d)
		return true
	}
	return &pauses
}

func TestResolve_AcceptedCarriesRatingFields(t *testing.T) {
	cat := newFakeCatalog()
	cat.byTitle["Spider-Man: No Way Home"] = found("Spider Man: No Way Home", "8.1", "1,234")

	r := NewResolver(cat)
	res := r.Resolve(context.Background(), source(634649, "Spider-Man: No Way Home"), match.DefaultPolicy())

	require.True(t, res.Verdict.Accepted)
	assert.Equal(t, match.ReasonAccepted, res.Verdict.Reason)
	assert.Equal(t, int64(634649), res.Record.CatalogID)
	require.NotNil(t, res.Record.RatingValue)
	assert.True(t, decimal.RequireFromString("8.1").Equal(*res.Record.RatingValue))
	require.NotNil(t, res.Record.VoteCount)
	assert.Equal(t, "1,234", *res.Record.VoteCount)
	assert.Equal(t, 1, cat.calls["Spider-Man: No Way Home"])
}

func TestResolve_RejectedHasEmptyFields(t *testing.T) {
	cat := newFakeCatalog()
	cat.byTitle["Guardians of the "] = found("Guardians of the Galaxy Vol. 2", "7.6", "800,000")

	r := NewResolver(cat)
	res := r.Resolve(context.Background(), source(1, "Guardians of the "), match.Policy{Threshold: 0.8, YearTolerance: -1})

	assert.False(t, res.Verdict.Accepted)
	assert.Equal(t, match.ReasonLowSimilarity, res.Verdict.Reason)
	assert.Nil(t, res.Record.RatingValue)
	assert.Nil(t, res.Record.VoteCount)
	assert.False(t, res.Record.Matched())
}

func TestResolve_AbsentCandidate(t *testing.T) {
	r := NewResolver(newFakeCatalog())
	res := r.Resolve(context.Background(), source(2, "Nonexistent Film"), match.DefaultPolicy())

	assert.Equal(t, match.ReasonNoCandidateFound, res.Verdict.Reason)
	assert.Zero(t, res.Verdict.Ratio)
	assert.False(t, res.Record.Matched())
	assert.NoError(t, res.Err)
}

func TestResolve_LookupErrorIsIsolated(t *testing.T) {
	cat := newFakeCatalog()
	cat.errs["Broken"] = errors.New("omdb: unexpected status 500")

	r := NewResolver(cat)
	res := r.Resolve(context.Background(), source(3, "Broken"), match.DefaultPolicy())

	assert.Equal(t, match.ReasonLookupError, res.Verdict.Reason)
	assert.False(t, res.Verdict.Accepted)
	assert.False(t, res.Record.Matched())
	assert.Error(t, res.Err)
}

func TestResolve_PanicIsRecovered(t *testing.T) {
	r := NewResolver(LookupFunc(func(context.Context, Query) (*model.CandidateRecord, error) {
		panic("decoder blew up")
	}))
	res := r.Resolve(context.Background(), source(4, "Anything"), match.DefaultPolicy())

	assert.Equal(t, match.ReasonLookupError, res.Verdict.Reason)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "decoder blew up")
}

func TestResolve_PassesYearAndType(t *testing.T) {
	var got Query
	r := NewResolver(LookupFunc(func(_ context.Context, q Query) (*model.CandidateRecord, error) {
		got = q
		return nil, nil
	}))
	rec := model.SourceRecord{CatalogID: 5, Title: "Dark", ReleaseYear: ptr(2017), EntityType: model.EntitySeries}
	r.Resolve(context.Background(), rec, match.DefaultPolicy())

	assert.Equal(t, "Dark", got.Title)
	require.NotNil(t, got.Year)
	assert.Equal(t, 2017, *got.Year)
	assert.Equal(t, model.EntitySeries, got.EntityType)
}

func TestResolve_YearMismatchWhenEnabled(t *testing.T) {
	cand := found("Dune", "8.0", "900,000")
	cand.ReturnedYear = ptr(1984)
	r := NewResolver(LookupFunc(func(context.Context, Query) (*model.CandidateRecord, error) {
		return cand, nil
	}))
	rec := model.SourceRecord{CatalogID: 438631, Title: "Dune", ReleaseYear: ptr(2021), EntityType: model.EntityMovie}

	res := r.Resolve(context.Background(), rec, match.Policy{Threshold: 0.6, YearTolerance: 1})
	assert.Equal(t, match.ReasonYearMismatch, res.Verdict.Reason)
	assert.False(t, res.Record.Matched())

	res = r.Resolve(context.Background(), rec, match.DefaultPolicy())
	assert.True(t, res.Verdict.Accepted)
}

func TestResolveAll_OneOutputPerInputInOrder(t *testing.T) {
	cat := newFakeCatalog()
	cat.byTitle["The Godfather"] = found("The Godfather", "9.2", "2,000,000")
	cat.byTitle["Parasite"] = found("Parasite", "8.5", "900,000")
	cat.errs["Flaky"] = errors.New("timeout")

	recs := []model.SourceRecord{
		source(238, "The Godfather"),
		source(999, "Missing Title"),
		source(500, "Flaky"),
		source(496243, "Parasite"),
	}
	auditor := &recordingAuditor{}
	r := NewResolver(cat, WithAuditor(auditor), WithRunID("run-1"))

	res := r.ResolveAll(context.Background(), recs, match.DefaultPolicy())
	require.Len(t, res, len(recs))
	for i, rec := range recs {
		assert.Equal(t, rec.CatalogID, res[i].Record.CatalogID)
	}
	assert.Equal(t, match.ReasonAccepted, res[0].Verdict.Reason)
	assert.Equal(t, match.ReasonNoCandidateFound, res[1].Verdict.Reason)
	assert.Equal(t, match.ReasonLookupError, res[2].Verdict.Reason)
	assert.Equal(t, match.ReasonAccepted, res[3].Verdict.Reason)

	assert.Equal(t, int64(len(recs)), cat.total.Load())
	require.Len(t, auditor.entries, len(recs))
	for _, e := range auditor.entries {
		assert.Equal(t, "run-1", e.RunID)
	}
}

func TestResolveAll_Empty(t *testing.T) {
	r := NewResolver(newFakeCatalog())
	assert.Empty(t, r.ResolveAll(context.Background(), nil, match.DefaultPolicy()))
}

func TestResolveAll_PausesBetweenBatches(t *testing.T) {
	cat := newFakeCatalog()
	r := NewResolver(cat, WithBatching(2, 5*time.Second))
	pauses := noSleep(r)

	recs := make([]model.SourceRecord, 5)
	for i := range recs {
		recs[i] = source(int64(i+1), fmt.Sprintf("Title %d", i))
	}
	res := r.ResolveAll(context.Background(), recs, match.DefaultPolicy())

	assert.Len(t, res, 5)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, *pauses)
}

func TestResolveAll_QuotaExhaustedContinues(t *testing.T) {
	cat := newFakeCatalog()
	r := NewResolver(cat, WithGate(NewGate(0, 1, 2)))

	recs := []model.SourceRecord{source(1, "A"), source(2, "B"), source(3, "C")}
	res := r.ResolveAll(context.Background(), recs, match.DefaultPolicy())

	require.Len(t, res, 3)
	assert.Equal(t, int64(2), cat.total.Load())
	assert.Equal(t, match.ReasonNoCandidateFound, res[0].Verdict.Reason)
	assert.Equal(t, match.ReasonLookupError, res[2].Verdict.Reason)
	assert.ErrorIs(t, res[2].Err, ErrQuotaExhausted)
}

func TestResolveAll_CancelledContextStillReturnsAll(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cat := newFakeCatalog()
	r := NewResolver(cat, WithGate(NewGate(10, 1, 0)))
	res := r.ResolveAll(ctx, []model.SourceRecord{source(1, "A"), source(2, "B")}, match.DefaultPolicy())

	require.Len(t, res, 2)
	for _, x := range res {
		assert.Equal(t, match.ReasonLookupError, x.Verdict.Reason)
	}
	assert.Zero(t, cat.total.Load())
}

func TestResolveBatches_PausesBetweenSubsets(t *testing.T) {
	cat := newFakeCatalog()
	cat.byTitle["Breaking Bad"] = found("Breaking Bad", "9.5", "2,100,000")
	r := NewResolver(cat, WithSubsetPause(time.Minute))
	pauses := noSleep(r)

	movies := []model.SourceRecord{source(1, "Movie A"), source(2, "Movie B")}
	shows := []model.SourceRecord{{CatalogID: 1396, Title: "Breaking Bad", EntityType: model.EntitySeries}}

	out := r.ResolveBatches(context.Background(), [][]model.SourceRecord{movies, shows}, match.DefaultPolicy())
	require.Len(t, out, 2)
	assert.Len(t, out[0], 2)
	require.Len(t, out[1], 1)
	assert.True(t, out[1][0].Verdict.Accepted)
	assert.Equal(t, []time.Duration{time.Minute}, *pauses)
}

func TestResolveParallel_MatchesSequential(t *testing.T) {
	cat := newFakeCatalog()
	recs := make([]model.SourceRecord, 40)
	for i := range recs {
		title := fmt.Sprintf("Film number %d", i)
		recs[i] = source(int64(1000+i), title)
		if i%3 == 0 {
			cat.byTitle[title] = found(title, "7.0", "10,000")
		}
	}

	r := NewResolver(cat, WithGate(NewGate(0, 1, 0)))
	seq := r.ResolveAll(context.Background(), recs, match.DefaultPolicy())
	par := r.ResolveParallel(context.Background(), recs, match.DefaultPolicy(), 8)

	require.Len(t, par, len(recs))
	for i := range recs {
		assert.Equal(t, seq[i].Record.CatalogID, par[i].Record.CatalogID)
		assert.Equal(t, seq[i].Verdict.Reason, par[i].Verdict.Reason)
		assert.Equal(t, seq[i].Record.Matched(), par[i].Record.Matched())
	}
}

func TestResolveParallel_SharedQuota(t *testing.T) {
	cat := newFakeCatalog()
	recs := make([]model.SourceRecord, 10)
	for i := range recs {
		recs[i] = source(int64(i), fmt.Sprintf("T%d", i))
	}
	gate := NewGate(0, 1, 4)
	r := NewResolver(cat, WithGate(gate))

	res := r.ResolveParallel(context.Background(), recs, match.DefaultPolicy(), 5)
	s := Summarize(res)

	assert.Equal(t, int64(4), cat.total.Load())
	assert.Equal(t, 6, s.Reasons[match.ReasonLookupError])
	assert.Equal(t, 0, gate.Remaining())
}

type memCheckpoints struct {
	mu  sync.Mutex
	cps []model.Checkpoint
}

func (m *memCheckpoints) SaveCheckpoint(_ context.Context, cp model.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cps = append(m.cps, cp)
	return nil
}

func TestResolve_CheckpointsSkipLookupErrors(t *testing.T) {
	cat := newFakeCatalog()
	cat.byTitle["Up"] = found("Up", "8.3", "1,100,000")
	cat.errs["Down"] = errors.New("boom")
	cps := &memCheckpoints{}
	r := NewResolver(cat, WithCheckpoints(cps))

	r.ResolveAll(context.Background(), []model.SourceRecord{source(14160, "Up"), source(2, "Down"), source(3, "Sideways?")}, match.DefaultPolicy())

	require.Len(t, cps.cps, 2)
	assert.Equal(t, int64(14160), cps.cps[0].CatalogID)
	assert.True(t, cps.cps[0].Record.Matched())
	assert.Equal(t, match.DefaultThreshold, cps.cps[0].Threshold)
	assert.Equal(t, int64(3), cps.cps[1].CatalogID)
}

func TestResolve_CheckpointCarriesYearTolerance(t *testing.T) {
	cat := newFakeCatalog()
	cat.byTitle["Up"] = found("Up", "8.3", "1,100,000")
	cps := &memCheckpoints{}
	r := NewResolver(cat, WithCheckpoints(cps))

	r.Resolve(context.Background(), source(14160, "Up"), match.Policy{Threshold: 0.7, YearTolerance: 2})

	require.Len(t, cps.cps, 1)
	assert.Equal(t, 0.7, cps.cps[0].Threshold)
	assert.Equal(t, 2, cps.cps[0].YearTolerance)
}

func TestResolveBatches_Workers(t *testing.T) {
	cat := newFakeCatalog()
	cat.byTitle["Dark"] = found("Dark", "8.7", "450,000")
	r := NewResolver(cat, WithWorkers(4), WithSubsetPause(0))
	pauses := noSleep(r)

	movies := []model.SourceRecord{source(1, "A"), source(2, "B"), source(3, "C")}
	shows := []model.SourceRecord{{CatalogID: 70523, Title: "Dark", EntityType: model.EntitySeries}}

	out := r.ResolveBatches(context.Background(), [][]model.SourceRecord{movies, shows}, match.DefaultPolicy())
	require.Len(t, out, 2)
	for i, res := range out[0] {
		assert.Equal(t, movies[i].CatalogID, res.Record.CatalogID)
	}
	assert.True(t, out[1][0].Record.Matched())
	assert.Empty(t, *pauses)
	assert.Equal(t, int64(4), cat.total.Load())
}
