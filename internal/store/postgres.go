package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/callscore/internal/db"
	"github.com/sells-group/callscore/internal/model"
)

// PostgresArchive implements Archive on a pgx pool.
type PostgresArchive struct {
	pool db.Pool
}

var _ Archive = (*PostgresArchive)(nil)

// NewPostgres connects a pool and wraps it in an archive.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig) (*PostgresArchive, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresArchive{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool db.Pool) *PostgresArchive {
	return &PostgresArchive{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS calls (
	call_id          TEXT PRIMARY KEY,
	source           TEXT NOT NULL,
	agent_id         TEXT NOT NULL DEFAULT '',
	duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
	call_outcome     TEXT NOT NULL,
	sentiment        TEXT NOT NULL,
	overall_score    DOUBLE PRECISION NOT NULL,
	transcript       TEXT NOT NULL,
	metadata         JSONB NOT NULL,
	analysis         JSONB NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_calls_created_at ON calls(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_calls_agent_id ON calls(agent_id);
`

func (s *PostgresArchive) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresArchive) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresArchive) Save(ctx context.Context, rec model.CallRecord) error {
	r, err := toRow(rec)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO calls (call_id, source, agent_id, duration_seconds, call_outcome, sentiment,
			overall_score, transcript, metadata, analysis, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (call_id) DO UPDATE SET
			source = EXCLUDED.source,
			agent_id = EXCLUDED.agent_id,
			duration_seconds = EXCLUDED.duration_seconds,
			call_outcome = EXCLUDED.call_outcome,
			sentiment = EXCLUDED.sentiment,
			overall_score = EXCLUDED.overall_score,
			transcript = EXCLUDED.transcript,
			metadata = EXCLUDED.metadata,
			analysis = EXCLUDED.analysis,
			created_at = EXCLUDED.created_at`,
		r.CallID, r.Source, r.AgentID, r.Duration, r.Outcome, r.Sentiment,
		r.OverallScore, r.Transcript, r.Metadata, r.Analysis, rec.Timestamp.UTC(),
	)
	return eris.Wrapf(err, "postgres: save call %s", rec.CallID)
}

func (s *PostgresArchive) Get(ctx context.Context, id string) (model.CallRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT call_id, source, transcript, metadata, analysis, created_at FROM calls WHERE call_id = $1`,
		id,
	)
	rec, err := scanPostgresCall(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.CallRecord{}, eris.Wrapf(ErrNotFound, "call %s", id)
	}
	return rec, err
}

func (s *PostgresArchive) List(ctx context.Context, limit int) ([]model.CallRecord, error) {
	query := `SELECT call_id, source, transcript, metadata, analysis, created_at FROM calls
		ORDER BY created_at DESC, call_id`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list calls")
	}
	defer rows.Close()

	out := []model.CallRecord{}
	for rows.Next() {
		rec, err := scanPostgresCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list calls iterate")
}

func scanPostgresCall(row pgx.Row) (model.CallRecord, error) {
	var (
		rec            model.CallRecord
		source         string
		meta, analysis []byte
	)
	err := row.Scan(&rec.CallID, &source, &rec.Transcript, &meta, &analysis, &rec.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return rec, err
	}
	if err != nil {
		return rec, eris.Wrap(err, "postgres: scan call")
	}
	rec.Source = model.Source(source)
	return rec, decodeRecord(&rec, meta, analysis)
}
