package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/callscore/internal/model"
)

// SQLiteArchive implements Archive using modernc.org/sqlite.
type SQLiteArchive struct {
	db *sql.DB
}

var _ Archive = (*SQLiteArchive)(nil)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteArchive, error) {
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
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteArchive{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS calls (
	call_id          TEXT PRIMARY KEY,
	source           TEXT NOT NULL,
	agent_id         TEXT NOT NULL DEFAULT '',
	duration_seconds REAL NOT NULL DEFAULT 0,
	call_outcome     TEXT NOT NULL,
	sentiment        TEXT NOT NULL,
	overall_score    REAL NOT NULL,
	transcript       TEXT NOT NULL,
	metadata         TEXT NOT NULL,
	analysis         TEXT NOT NULL,
	created_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_calls_created_at ON calls(created_at);
CREATE INDEX IF NOT EXISTS idx_calls_agent_id ON calls(agent_id);
`

func (s *SQLiteArchive) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteArchive) Close() error {
	return s.db.Close()
}

func (s *SQLiteArchive) Save(ctx context.Context, rec model.CallRecord) error {
	r, err := toRow(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO calls (call_id, source, agent_id, duration_seconds, call_outcome, sentiment,
			overall_score, transcript, metadata, analysis, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(call_id) DO UPDATE SET
			source = excluded.source,
			agent_id = excluded.agent_id,
			duration_seconds = excluded.duration_seconds,
			call_outcome = excluded.call_outcome,
			sentiment = excluded.sentiment,
			overall_score = excluded.overall_score,
			transcript = excluded.transcript,
			metadata = excluded.metadata,
			analysis = excluded.analysis,
			created_at = excluded.created_at`,
		r.CallID, r.Source, r.AgentID, r.Duration, r.Outcome, r.Sentiment,
		r.OverallScore, r.Transcript, string(r.Metadata), string(r.Analysis), rec.Timestamp.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save call %s", rec.CallID)
}

func (s *SQLiteArchive) Get(ctx context.Context, id string) (model.CallRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT call_id, source, transcript, metadata, analysis, created_at FROM calls WHERE call_id = ?`,
		id,
	)
	rec, err := scanSQLiteCall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CallRecord{}, eris.Wrapf(ErrNotFound, "call %s", id)
	}
	return rec, err
}

func (s *SQLiteArchive) List(ctx context.Context, limit int) ([]model.CallRecord, error) {
	query := `SELECT call_id, source, transcript, metadata, analysis, created_at FROM calls
		ORDER BY created_at DESC, call_id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list calls")
	}
	defer rows.Close()

	out := []model.CallRecord{}
	for rows.Next() {
		rec, err := scanSQLiteCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list calls iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteCall(row scannable) (model.CallRecord, error) {
	var (
		rec            model.CallRecord
		source         string
		meta, analysis string
	)
	err := row.Scan(&rec.CallID, &source, &rec.Transcript, &meta, &analysis, &rec.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, err
	}
	if err != nil {
		return rec, eris.Wrap(err, "sqlite: scan call")
	}
	rec.Source = model.Source(source)
	return rec, decodeRecord(&rec, []byte(meta), []byte(analysis))
}
