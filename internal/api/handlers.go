package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/callscore/internal/ingest"
	"github.com/sells-group/callscore/internal/model"
	"github.com/sells-group/callscore/internal/store"
)

const (
	defaultCallsLimit = 50
	maxCallsLimit     = 1000
	defaultDays       = 7
	maxDays           = 366
)

type handler struct {
	coord *ingest.Coordinator
	state *ingest.State
	now   func() time.Time
}

type errorBody struct {
	Error string `json:"error"`
}

type analysisSummary struct {
	Outcome      model.Outcome   `json:"outcome"`
	Sentiment    model.Sentiment `json:"sentiment"`
	OverallScore float64         `json:"overall_score"`
}

type ingestResponse struct {
	Status          string          `json:"status"`
	CallID          string          `json:"call_id"`
	AnalysisSummary analysisSummary `json:"analysis_summary"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response", zap.Error(err))
	}
}

// writeError maps domain errors to status codes. Unexpected errors are
// logged and reported generically.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case eris.Is(err, ingest.ErrMissingTranscript):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "transcript is required"})
	case eris.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "call not found"})
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return false
	}
	return true
}

func (h *handler) ingest(w http.ResponseWriter, r *http.Request, req ingest.Request) {
	rec, err := h.coord.Ingest(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse{
		Status: "success",
		CallID: rec.CallID,
		AnalysisSummary: analysisSummary{
			Outcome:      rec.Analysis.CallOutcome,
			Sentiment:    rec.Analysis.InteractionSentiment,
			OverallScore: rec.Analysis.OverallScore,
		},
	})
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) elevenLabsWebhook(w http.ResponseWriter, r *http.Request) {
	var p elevenLabsPayload
	if !decode(w, r, &p) {
		return
	}
	h.ingest(w, r, p.request())
}

func (h *handler) xelionWebhook(w http.ResponseWriter, r *http.Request) {
	var p xelionPayload
	if !decode(w, r, &p) {
		return
	}
	h.ingest(w, r, p.request())
}

func (h *handler) submitCall(w http.ResponseWriter, r *http.Request) {
	var p callPayload
	if !decode(w, r, &p) {
		return
	}
	h.ingest(w, r, p.request(model.SourceManual))
}

func (h *handler) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.state.Report())
}

func (h *handler) dailyStats(w http.ResponseWriter, r *http.Request) {
	days, ok := intParam(w, r, "days", defaultDays, maxDays)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.state.Daily(h.now(), days))
}

func (h *handler) listCalls(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit", defaultCallsLimit, maxCallsLimit)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.state.List(limit))
}

func (h *handler) getCall(w http.ResponseWriter, r *http.Request) {
	rec, err := h.state.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// intParam reads a positive integer query parameter, capped at ceiling.
func intParam(w http.ResponseWriter, r *http.Request, name string, def, ceiling int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: name + " must be a positive integer"})
		return 0, false
	}
	if n > ceiling {
		n = ceiling
	}
	return n, true
}
