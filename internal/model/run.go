package model

import "time"

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Stage names a pipeline step.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageXref      Stage = "xref"
	StageTransform Stage = "transform"
	StageExport    Stage = "export"
)

// Run is one execution of a pipeline stage.
type Run struct {
	ID        string     `json:"id"`
	Stage     Stage      `json:"stage"`
	Threshold float64    `json:"threshold"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	Total    int            `json:"total"`
	Matched  int            `json:"matched"`
	Reasons  map[string]int `json:"reasons,omitempty"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
}

// VerdictRow is a persisted match verdict, used for auditing and threshold
// tuning.
type VerdictRow struct {
	RunID          string     `json:"run_id"`
	CatalogID      int64      `json:"catalog_id"`
	EntityType     EntityType `json:"entity_type"`
	SourceTitle    string     `json:"source_title"`
	CandidateTitle string     `json:"candidate_title,omitempty"`
	Ratio          float64    `json:"ratio"`
	Threshold      float64    `json:"threshold"`
	Reason         string     `json:"reason"`
	Accepted       bool       `json:"accepted"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Checkpoint is the stored resolution of one source record, letting a later
// run skip records that were already resolved under the same threshold and
// year tolerance.
type Checkpoint struct {
	EntityType    EntityType     `json:"entity_type"`
	CatalogID     int64          `json:"catalog_id"`
	Threshold     float64        `json:"threshold"`
	YearTolerance int            `json:"year_tolerance"`
	Record        EnrichedRecord `json:"record"`
	CreatedAt     time.Time      `json:"created_at"`
}
