package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgres creates a PostgresArchive backed by pgxmock for unit testing.
func newMockPostgres(t *testing.T) (*PostgresArchive, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

var callColumns = []string{"call_id", "source", "transcript", "metadata", "analysis", "created_at"}

func TestPostgres_Migrate(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS calls`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveUpsert(t *testing.T) {
	s, mock := newMockPostgres(t)
	rec := testRecord("c1", 0)

	mock.ExpectExec(`INSERT INTO calls .* ON CONFLICT \(call_id\) DO UPDATE`).
		WithArgs("c1", "xelion", "agent-1", 95.0, "success", "positive", 7.4,
			rec.Transcript, pgxmock.AnyArg(), pgxmock.AnyArg(), rec.Timestamp).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Save(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveError(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec(`INSERT INTO calls`).WillReturnError(errors.New("connection reset"))

	err := s.Save(context.Background(), testRecord("c1", 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: save call c1")
}

func TestPostgres_Get(t *testing.T) {
	s, mock := newMockPostgres(t)
	rec := testRecord("c1", 0)
	meta, _ := json.Marshal(rec.Metadata)
	analysis, _ := json.Marshal(rec.Analysis)

	mock.ExpectQuery(`SELECT call_id, source, transcript, metadata, analysis, created_at FROM calls WHERE call_id = \$1`).
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows(callColumns).
			AddRow("c1", "xelion", rec.Transcript, meta, analysis, rec.Timestamp))

	got, err := s.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetNotFound(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT .* FROM calls WHERE call_id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_List(t *testing.T) {
	s, mock := newMockPostgres(t)
	a := testRecord("a", 0)
	b := testRecord("b", 0)
	meta, _ := json.Marshal(a.Metadata)
	analysis, _ := json.Marshal(a.Analysis)

	mock.ExpectQuery(`SELECT .* FROM calls\s+ORDER BY created_at DESC, call_id LIMIT \$1`).
		WithArgs(2).
		WillReturnRows(pgxmock.NewRows(callColumns).
			AddRow("a", "xelion", a.Transcript, meta, analysis, a.Timestamp).
			AddRow("b", "xelion", b.Transcript, meta, analysis, b.Timestamp))

	got, err := s.List(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].CallID)
	assert.Equal(t, "b", got[1].CallID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListAll(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT .* FROM calls`).
		WithArgs().
		WillReturnRows(pgxmock.NewRows(callColumns))

	got, err := s.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
