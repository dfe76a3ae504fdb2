package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/callscore/internal/analysis"
	"github.com/sells-group/callscore/internal/model"
)

func exportRecord(id string, outcome model.Outcome, score float64, at time.Time) model.CallRecord {
	a := analysis.Normalize(map[string]any{
		"call_outcome":          string(outcome),
		"interaction_sentiment": "positive",
		"overall_score":         score,
		"call_tags":             []any{"billing", "refund"},
	})
	return model.CallRecord{
		CallID:     id,
		Transcript: "Agent: hi",
		Metadata:   model.CallMetadata{AgentID: "agent-9", DurationSeconds: 120, Source: model.SourceXelion},
		Analysis:   a,
		Timestamp:  at,
		Source:     model.SourceXelion,
	}
}

func TestBuildWorkbook(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	recs := []model.CallRecord{
		exportRecord("newest", model.OutcomeSuccess, 8.5, at.Add(time.Hour)),
		exportRecord("oldest", model.OutcomeFailure, 3, at),
	}

	wb, err := buildWorkbook(recs, time.UTC)
	require.NoError(t, err)

	calls, ok := wb.Sheet["Calls"]
	require.True(t, ok)
	require.Len(t, calls.Rows, 3)

	header := calls.Rows[0].Cells
	assert.Equal(t, "Call ID", header[0].Value)
	assert.Equal(t, "call_success_rate", header[len(callHeaders)].Value)
	assert.Equal(t, "Tags", header[len(header)-1].Value)
	assert.Len(t, header, len(callHeaders)+len(model.KPIKeys)+1)

	first := calls.Rows[1].Cells
	assert.Equal(t, "newest", first[0].Value)
	assert.Equal(t, "2026-03-14T10:00:00Z", first[1].Value)
	assert.Equal(t, "xelion", first[2].Value)
	assert.Equal(t, "agent-9", first[3].Value)
	assert.Equal(t, "success", first[5].Value)
	assert.Equal(t, "5", first[len(callHeaders)].Value)
	assert.Equal(t, "billing, refund", first[len(first)-1].Value)

	summary, ok := wb.Sheet["Summary"]
	require.True(t, ok)
	assert.Equal(t, "Total calls", summary.Rows[0].Cells[0].Value)
	assert.Equal(t, "2", summary.Rows[0].Cells[1].Value)
	assert.Equal(t, "Success rate (%)", summary.Rows[3].Cells[0].Value)
	assert.Equal(t, "50", summary.Rows[3].Cells[1].Value)
}

func TestBuildWorkbook_SaveAndReopen(t *testing.T) {
	wb, err := buildWorkbook(nil, nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "calls.xlsx")
	require.NoError(t, wb.Save(path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 2)
	assert.Equal(t, "Calls", f.Sheets[0].Name)
	assert.Equal(t, "Call ID", f.Sheets[0].Rows[0].Cells[0].Value)
}
