package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/sells-group/catalog-etl/internal/match"
	"github.com/sells-group/catalog-etl/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dsn); dsn != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "sqlite: create %s", dir)
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	stage      TEXT NOT NULL,
	threshold  REAL NOT NULL DEFAULT 0,
	status     TEXT NOT NULL DEFAULT 'running',
	result     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS verdicts (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id          TEXT NOT NULL,
	catalog_id      INTEGER NOT NULL,
	entity_type     TEXT NOT NULL,
	source_title    TEXT NOT NULL,
	candidate_title TEXT NOT NULL DEFAULT '',
	ratio           REAL NOT NULL,
	threshold       REAL NOT NULL,
	reason          TEXT NOT NULL,
	accepted        INTEGER NOT NULL,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS checkpoints (
	entity_type  TEXT NOT NULL,
	catalog_id   INTEGER NOT NULL,
	threshold      REAL NOT NULL,
	year_tolerance INTEGER NOT NULL DEFAULT -1,
	rating_value   TEXT,
	vote_count     TEXT,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (entity_type, catalog_id, threshold, year_tolerance)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_stage ON runs(stage);
CREATE INDEX IF NOT EXISTS idx_verdicts_run_id ON verdicts(run_id);
CREATE INDEX IF NOT EXISTS idx_verdicts_reason ON verdicts(reason);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, stage model.Stage, threshold float64) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, stage, threshold, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(stage), threshold, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(runStatusFor(result)), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run result %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

const runColumns = `id, stage, threshold, status, result, created_at, updated_at`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Stage != "" {
		query += ` AND stage = ?`
		args = append(args, string(filter.Stage))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: list runs")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveVerdict(ctx context.Context, v model.VerdictRow) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO verdicts (run_id, catalog_id, entity_type, source_title, candidate_title, ratio, threshold, reason, accepted, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.RunID, v.CatalogID, string(v.EntityType), v.SourceTitle, v.CandidateTitle,
		v.Ratio, v.Threshold, v.Reason, v.Accepted, v.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: save verdict %d", v.CatalogID)
}

func (s *SQLiteStore) ListVerdicts(ctx context.Context, filter VerdictFilter) ([]model.VerdictRow, error) {
	where, args := sqliteVerdictWhere(filter)
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, catalog_id, entity_type, source_title, candidate_title, ratio, threshold, reason, accepted, created_at
		 FROM verdicts`+where+` ORDER BY id`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list verdicts")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.VerdictRow
	for rows.Next() {
		var v model.VerdictRow
		var entity string
		if err := rows.Scan(&v.RunID, &v.CatalogID, &entity, &v.SourceTitle, &v.CandidateTitle,
			&v.Ratio, &v.Threshold, &v.Reason, &v.Accepted, &v.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan verdict")
		}
		v.EntityType = model.EntityType(entity)
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list verdicts iterate")
}

func (s *SQLiteStore) Ratios(ctx context.Context, filter VerdictFilter) ([]float64, error) {
	where, args := sqliteVerdictWhere(filter)
	if where == "" {
		where = " WHERE "
	} else {
		where += " AND "
	}
	where += "reason IN (?" + strings.Repeat(", ?", len(candidateReasons)-1) + ")"
	for _, r := range candidateReasons {
		args = append(args, r)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT ratio FROM verdicts`+where+` ORDER BY ratio`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: ratios")
	}
	defer rows.Close() //nolint:errcheck

	var out []float64
	for rows.Next() {
		var r float64
		if err := rows.Scan(&r); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ratio")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: ratios iterate")
}

func sqliteVerdictWhere(f VerdictFilter) (string, []any) {
	var conds []string
	var args []any
	if f.RunID != "" {
		conds = append(conds, "run_id = ?")
		args = append(args, f.RunID)
	}
	if f.EntityType != "" {
		conds = append(conds, "entity_type = ?")
		args = append(args, string(f.EntityType))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

const sqliteCheckpointUpsert = `INSERT INTO checkpoints (entity_type, catalog_id, threshold, year_tolerance, rating_value, vote_count, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (entity_type, catalog_id, threshold, year_tolerance)
DO UPDATE SET rating_value = excluded.rating_value, vote_count = excluded.vote_count, created_at = excluded.created_at`

func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, cp model.Checkpoint) error {
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, sqliteCheckpointUpsert,
		string(cp.EntityType), cp.CatalogID, cp.Threshold, cp.YearTolerance,
		ratingText(cp.Record.RatingValue), cp.Record.VoteCount, cp.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: save checkpoint %d", cp.CatalogID)
}

func (s *SQLiteStore) SaveCheckpoints(ctx context.Context, cps []model.Checkpoint) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin checkpoints")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteCheckpointUpsert)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare checkpoints")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	for _, cp := range cps {
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = now
		}
		if _, err := stmt.ExecContext(ctx, string(cp.EntityType), cp.CatalogID, cp.Threshold, cp.YearTolerance,
			ratingText(cp.Record.RatingValue), cp.Record.VoteCount, cp.CreatedAt); err != nil {
			return 0, eris.Wrapf(err, "sqlite: save checkpoint %d", cp.CatalogID)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit checkpoints")
	}
	return len(cps), nil
}

func (s *SQLiteStore) LoadCheckpoints(ctx context.Context, entity model.EntityType, policy match.Policy) (map[int64]model.EnrichedRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT catalog_id, rating_value, vote_count FROM checkpoints
		WHERE entity_type = ? AND threshold = ? AND year_tolerance = ?`,
		string(entity), policy.Threshold, policy.YearTolerance,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load checkpoints")
	}
	defer rows.Close() //nolint:errcheck

	out := make(map[int64]model.EnrichedRecord)
	for rows.Next() {
		var id int64
		var rating, votes sql.NullString
		if err := rows.Scan(&id, &rating, &votes); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan checkpoint")
		}
		rec, err := checkpointRecord(id, nullable(rating), nullable(votes))
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: load checkpoints")
		}
		out[id] = rec
	}
	return out, eris.Wrap(rows.Err(), "sqlite: load checkpoints iterate")
}

func (s *SQLiteStore) ClearCheckpoints(ctx context.Context, entity model.EntityType) (int, error) {
	query := `DELETE FROM checkpoints`
	var args []any
	if entity != "" {
		query += ` WHERE entity_type = ?`
		args = append(args, string(entity))
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: clear checkpoints")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var resultJSON sql.NullString

	err := row.Scan(&r.ID, &r.Stage, &r.Threshold, &r.Status, &resultJSON, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan run")
	}
	if resultJSON.Valid {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "unmarshal result")
		}
	}
	return &r, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func ratingText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func checkpointRecord(id int64, rating, votes *string) (model.EnrichedRecord, error) {
	rec := model.EnrichedRecord{CatalogID: id, VoteCount: votes}
	if rating != nil {
		d, err := decimal.NewFromString(*rating)
		if err != nil {
			return rec, eris.Wrapf(err, "parse rating for %d", id)
		}
		rec.RatingValue = &d
	}
	return rec, nil
}
