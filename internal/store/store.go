// Package store persists pipeline runs, match verdicts and resolution
// checkpoints in SQLite or Postgres.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-etl/internal/match"
	"github.com/sells-group/catalog-etl/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Stage  model.Stage     `json:"stage,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// VerdictFilter selects verdicts. Empty fields match everything.
type VerdictFilter struct {
	RunID      string
	EntityType model.EntityType
}

// Store defines the persistence interface for the pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, stage model.Stage, threshold float64) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	// UpdateRunResult stores the result and marks the run complete, or
	// failed when result.Error is set.
	UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Verdicts
	SaveVerdict(ctx context.Context, v model.VerdictRow) error
	ListVerdicts(ctx context.Context, filter VerdictFilter) ([]model.VerdictRow, error)
	// Ratios returns the similarity ratios of verdicts that had a
	// candidate, ascending. Used for threshold tuning.
	Ratios(ctx context.Context, filter VerdictFilter) ([]float64, error)

	// Checkpoints
	SaveCheckpoint(ctx context.Context, cp model.Checkpoint) error
	// SaveCheckpoints upserts many checkpoints at once and returns the
	// number written.
	SaveCheckpoints(ctx context.Context, cps []model.Checkpoint) (int, error)
	// LoadCheckpoints returns the records resolved under exactly policy's
	// threshold and year tolerance, keyed by catalog id.
	LoadCheckpoints(ctx context.Context, entity model.EntityType, policy match.Policy) (map[int64]model.EnrichedRecord, error)
	ClearCheckpoints(ctx context.Context, entity model.EntityType) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the store for driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "", "sqlite":
		s, err := NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgres(ctx, dsn, nil)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

// candidateReasons are the verdict reasons that carry a meaningful ratio.
var candidateReasons = []string{
	string(match.ReasonAccepted),
	string(match.ReasonLowSimilarity),
	string(match.ReasonYearMismatch),
}

func runStatusFor(result *model.RunResult) model.RunStatus {
	if result != nil && result.Error != "" {
		return model.RunStatusFailed
	}
	return model.RunStatusComplete
}
