package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-etl/internal/db"
	"github.com/sells-group/catalog-etl/internal/match"
	"github.com/sells-group/catalog-etl/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_run":        `INSERT INTO runs (id, stage, threshold, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"update_run_status": `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"update_run_result": `UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
	"get_run":           `SELECT ` + runColumns + ` FROM runs WHERE id = $1`,
	"insert_verdict":    insertVerdictSQL,
	"upsert_checkpoint": upsertCheckpointSQL,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	stage      TEXT NOT NULL,
	threshold  DOUBLE PRECISION NOT NULL DEFAULT 0,
	status     TEXT NOT NULL DEFAULT 'running',
	result     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS verdicts (
	id              BIGSERIAL PRIMARY KEY,
	run_id          TEXT NOT NULL,
	catalog_id      BIGINT NOT NULL,
	entity_type     TEXT NOT NULL,
	source_title    TEXT NOT NULL,
	candidate_title TEXT NOT NULL DEFAULT '',
	ratio           DOUBLE PRECISION NOT NULL,
	threshold       DOUBLE PRECISION NOT NULL,
	reason          TEXT NOT NULL,
	accepted        BOOLEAN NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS checkpoints (
	entity_type  TEXT NOT NULL,
	catalog_id   BIGINT NOT NULL,
	threshold      DOUBLE PRECISION NOT NULL,
	year_tolerance INTEGER NOT NULL DEFAULT -1,
	rating_value   TEXT,
	vote_count     TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (entity_type, catalog_id, threshold, year_tolerance)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_stage ON runs(stage);
CREATE INDEX IF NOT EXISTS idx_verdicts_run_id ON verdicts(run_id);
CREATE INDEX IF NOT EXISTS idx_verdicts_reason ON verdicts(reason);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, stage model.Stage, threshold float64) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, stage, threshold, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, string(stage), threshold, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Stage:     stage,
		Threshold: threshold,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(runStatusFor(result)), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run result %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, runID)
	r, err := scanPostgresRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Stage != "" {
		query += fmt.Sprintf(` AND stage = $%d`, argIdx)
		args = append(args, string(filter.Stage))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanPostgresRun(row scannable) (*model.Run, error) {
	var r model.Run
	var stage, status string
	var resultJSON []byte

	if err := row.Scan(&r.ID, &stage, &r.Threshold, &status, &resultJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Stage = model.Stage(stage)
	r.Status = model.RunStatus(status)
	if resultJSON != nil {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal(resultJSON, r.Result); err != nil {
			return nil, eris.Wrap(err, "unmarshal result")
		}
	}
	return &r, nil
}

const insertVerdictSQL = `INSERT INTO verdicts (run_id, catalog_id, entity_type, source_title, candidate_title, ratio, threshold, reason, accepted, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

func (s *PostgresStore) SaveVerdict(ctx context.Context, v model.VerdictRow) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, insertVerdictSQL,
		v.RunID, v.CatalogID, string(v.EntityType), v.SourceTitle, v.CandidateTitle,
		v.Ratio, v.Threshold, v.Reason, v.Accepted, v.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: save verdict %d", v.CatalogID)
}

func (s *PostgresStore) ListVerdicts(ctx context.Context, filter VerdictFilter) ([]model.VerdictRow, error) {
	where, args := postgresVerdictWhere(filter)
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, catalog_id, entity_type, source_title, candidate_title, ratio, threshold, reason, accepted, created_at
		 FROM verdicts`+where+` ORDER BY id`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list verdicts")
	}
	defer rows.Close()

	var out []model.VerdictRow
	for rows.Next() {
		var v model.VerdictRow
		var entity string
		if err := rows.Scan(&v.RunID, &v.CatalogID, &entity, &v.SourceTitle, &v.CandidateTitle,
			&v.Ratio, &v.Threshold, &v.Reason, &v.Accepted, &v.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan verdict")
		}
		v.EntityType = model.EntityType(entity)
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list verdicts iterate")
}

func (s *PostgresStore) Ratios(ctx context.Context, filter VerdictFilter) ([]float64, error) {
	where, args := postgresVerdictWhere(filter)
	if where == "" {
		where = " WHERE "
	} else {
		where += " AND "
	}
	where += fmt.Sprintf("reason = ANY($%d)", len(args)+1)
	args = append(args, candidateReasons)

	rows, err := s.pool.Query(ctx, `SELECT ratio FROM verdicts`+where+` ORDER BY ratio`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: ratios")
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var r float64
		if err := rows.Scan(&r); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ratio")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: ratios iterate")
}

func postgresVerdictWhere(f VerdictFilter) (string, []any) {
	var conds []string
	var args []any
	if f.RunID != "" {
		args = append(args, f.RunID)
		conds = append(conds, fmt.Sprintf("run_id = $%d", len(args)))
	}
	if f.EntityType != "" {
		args = append(args, string(f.EntityType))
		conds = append(conds, fmt.Sprintf("entity_type = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

const upsertCheckpointSQL = `INSERT INTO checkpoints (entity_type, catalog_id, threshold, year_tolerance, rating_value, vote_count, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (entity_type, catalog_id, threshold, year_tolerance)
DO UPDATE SET rating_value = EXCLUDED.rating_value, vote_count = EXCLUDED.vote_count, created_at = EXCLUDED.created_at`

func (s *PostgresStore) SaveCheckpoint(ctx context.Context, cp model.Checkpoint) error {
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, upsertCheckpointSQL,
		string(cp.EntityType), cp.CatalogID, cp.Threshold, cp.YearTolerance,
		ratingText(cp.Record.RatingValue), cp.Record.VoteCount, cp.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: save checkpoint %d", cp.CatalogID)
}

var checkpointUpsert = db.UpsertConfig{
	Table:        "checkpoints",
	Columns:      []string{"entity_type", "catalog_id", "threshold", "year_tolerance", "rating_value", "vote_count", "created_at"},
	ConflictKeys: []string{"entity_type", "catalog_id", "threshold", "year_tolerance"},
}

func (s *PostgresStore) SaveCheckpoints(ctx context.Context, cps []model.Checkpoint) (int, error) {
	now := time.Now().UTC()
	rows := make([][]any, len(cps))
	for i, cp := range cps {
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = now
		}
		rows[i] = []any{string(cp.EntityType), cp.CatalogID, cp.Threshold, cp.YearTolerance,
			ratingText(cp.Record.RatingValue), cp.Record.VoteCount, cp.CreatedAt}
	}
	n, err := db.BulkUpsert(ctx, s.pool, checkpointUpsert, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: save checkpoints")
	}
	return int(n), nil
}

func (s *PostgresStore) LoadCheckpoints(ctx context.Context, entity model.EntityType, policy match.Policy) (map[int64]model.EnrichedRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT catalog_id, rating_value, vote_count FROM checkpoints
		WHERE entity_type = $1 AND threshold = $2 AND year_tolerance = $3`,
		string(entity), policy.Threshold, policy.YearTolerance,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load checkpoints")
	}
	defer rows.Close()

	out := make(map[int64]model.EnrichedRecord)
	for rows.Next() {
		var id int64
		var rating, votes *string
		if err := rows.Scan(&id, &rating, &votes); err != nil {
			return nil, eris.Wrap(err, "postgres: scan checkpoint")
		}
		rec, err := checkpointRecord(id, rating, votes)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: load checkpoints")
		}
		out[id] = rec
	}
	return out, eris.Wrap(rows.Err(), "postgres: load checkpoints iterate")
}

func (s *PostgresStore) ClearCheckpoints(ctx context.Context, entity model.EntityType) (int, error) {
	query := `DELETE FROM checkpoints`
	var args []any
	if entity != "" {
		query += ` WHERE entity_type = $1`
		args = append(args, string(entity))
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: clear checkpoints")
	}
	return int(tag.RowsAffected()), nil
}
