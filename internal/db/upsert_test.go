package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var checkpointUpsert = UpsertConfig{
	Table:        "checkpoints",
	Columns:      []string{"entity_type", "catalog_id", "threshold", "rating_value", "vote_count"},
	ConflictKeys: []string{"entity_type", "catalog_id", "threshold"},
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, checkpointUpsert, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "checkpoints",
		ConflictKeys: []string{"catalog_id"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:   "checkpoints",
		Columns: []string{"catalog_id", "vote_count"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_checkpoints" \(LIKE "checkpoints"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_checkpoints"}, checkpointUpsert.Columns).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "checkpoints" .* ON CONFLICT \("entity_type", "catalog_id", "threshold"\) DO UPDATE SET "rating_value" = EXCLUDED."rating_value", "vote_count" = EXCLUDED."vote_count"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{
		{"movie", int64(557), 0.6, "7.4", "900,123"},
		{"movie", int64(558), 0.6, nil, nil},
	}
	n, err := BulkUpsert(context.Background(), mock, checkpointUpsert, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CreateTempFails(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, checkpointUpsert, [][]any{{"tv", int64(1), 0.6, nil, nil}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create temp table for checkpoints")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSQL_DoNothing(t *testing.T) {
	cfg := UpsertConfig{Table: "catalog.verdicts", Columns: []string{"id"}, ConflictKeys: []string{"id"}}
	assert.Equal(t,
		`INSERT INTO "catalog"."verdicts" ("id") SELECT "id" FROM "tmp" ON CONFLICT ("id") DO NOTHING`,
		upsertSQL(cfg, "tmp"))
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"catalog.checkpoints", `"catalog"."checkpoints"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"entity_type", "catalog_id"`, quoteAndJoin([]string{"entity_type", "catalog_id"}))
}
