package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKPIKeys_Eighteen(t *testing.T) {
	assert.Len(t, KPIKeys, 18)

	seen := make(map[string]bool)
	for _, k := range KPIKeys {
		assert.False(t, seen[k], "duplicate KPI key %q", k)
		seen[k] = true
	}
}

func TestAnalysisResult_MeanKPI(t *testing.T) {
	a := AnalysisResult{KPIs: map[string]int{}}
	for _, k := range KPIKeys {
		a.KPIs[k] = 8
	}
	assert.InDelta(t, 8.0, a.MeanKPI(), 1e-9)

	// Missing keys count as the neutral default.
	a.KPIs = map[string]int{"call_success_rate": 10}
	assert.InDelta(t, (10.0+17*5.0)/18.0, a.MeanKPI(), 1e-9)
}

func TestAnalysisResult_Clone(t *testing.T) {
	a := AnalysisResult{
		KPIs:      map[string]int{"listening_skills": 7},
		Strengths: []string{"polite"},
		CallTags:  []string{"billing"},
	}
	c := a.Clone()
	c.KPIs["listening_skills"] = 1
	c.Strengths[0] = "rude"

	assert.Equal(t, 7, a.KPIs["listening_skills"])
	assert.Equal(t, "polite", a.Strengths[0])
	assert.Nil(t, c.KeyMoments)
}

func TestRound(t *testing.T) {
	tests := []struct {
		in     float64
		places int
		want   float64
	}{
		{6.444, 1, 6.4},
		{6.25, 1, 6.3},
		{7.125, 2, 7.13},
		{3, 2, 3},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Round(tt.in, tt.places), 1e-9)
	}
}
