package store

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/callscore/internal/db"
	"github.com/sells-group/callscore/internal/model"
)

// Archive is durable storage that committed records are written through to.
// The in-memory store remains the source of truth for queries.
type Archive interface {
	// Save upserts rec by call id.
	Save(ctx context.Context, rec model.CallRecord) error
	Get(ctx context.Context, id string) (model.CallRecord, error)
	// List returns records newest first. limit <= 0 returns all records.
	List(ctx context.Context, limit int) ([]model.CallRecord, error)
	Migrate(ctx context.Context) error
	Close() error
}

// Archive drivers.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// OpenArchive opens and migrates the archive selected by driver. Driver
// "none" (or empty) returns a nil Archive and no error.
func OpenArchive(ctx context.Context, driver, dsn string, poolCfg db.PoolConfig) (Archive, error) {
	var (
		a   Archive
		err error
	)
	switch strings.ToLower(driver) {
	case "", DriverNone:
		return nil, nil
	case DriverSQLite:
		a, err = NewSQLite(dsn)
	case DriverPostgres:
		a, err = NewPostgres(ctx, dsn, poolCfg)
	default:
		return nil, eris.Errorf("store: unknown archive driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := a.Migrate(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// row is the flattened column set shared by both archive schemas. Metadata
// and analysis are stored as JSON documents; a few fields are lifted into
// their own columns for querying.
type row struct {
	CallID       string
	Source       string
	AgentID      string
	Duration     float64
	Outcome      string
	Sentiment    string
	OverallScore float64
	Transcript   string
	Metadata     []byte
	Analysis     []byte
}

func toRow(rec model.CallRecord) (row, error) {
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return row{}, eris.Wrap(err, "store: marshal metadata")
	}
	analysis, err := json.Marshal(rec.Analysis)
	if err != nil {
		return row{}, eris.Wrap(err, "store: marshal analysis")
	}
	return row{
		CallID:       rec.CallID,
		Source:       string(rec.Source),
		AgentID:      rec.Metadata.AgentID,
		Duration:     rec.Metadata.DurationSeconds,
		Outcome:      string(rec.Analysis.CallOutcome),
		Sentiment:    string(rec.Analysis.InteractionSentiment),
		OverallScore: rec.Analysis.OverallScore,
		Transcript:   rec.Transcript,
		Metadata:     meta,
		Analysis:     analysis,
	}, nil
}

func decodeRecord(rec *model.CallRecord, meta, analysis []byte) error {
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
			return eris.Wrap(err, "store: unmarshal metadata")
		}
	}
	if len(analysis) > 0 {
		if err := json.Unmarshal(analysis, &rec.Analysis); err != nil {
			return eris.Wrap(err, "store: unmarshal analysis")
		}
	}
	return nil
}
