package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/couchcryptid/heat-stress-etl/internal/domain"
	"github.com/couchcryptid/heat-stress-etl/internal/thermal"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

const (
	maxBodyBytes = 1 << 20
	// maxObservations bounds one batch request.
	maxObservations = 10000
)

// handleIndices computes indices for one observation object or an array of
// them. The response mirrors the request shape.
func (s *Server) handleIndices(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "request body is empty")
		return
	}

	if body[0] != '[' {
		var obs thermal.Observation
		if err := json.Unmarshal(body, &obs); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid observation: %v", err))
			return
		}
		res := s.engine.Compute(obs)
		s.metrics.ObserveIndices("api", res)
		sharedobs.WriteJSON(w, http.StatusOK, res)
		return
	}

	var batch []thermal.Observation
	if err := json.Unmarshal(body, &batch); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid observations: %v", err))
		return
	}
	if len(batch) > maxObservations {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("too many observations: %d (max %d)", len(batch), maxObservations))
		return
	}

	results, err := s.engine.ComputeAll(r.Context(), batch, s.workers)
	if err != nil {
		s.logger.Warn("index batch aborted", "count", len(batch), "error", err)
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
		return
	}
	for _, res := range results {
		s.metrics.ObserveIndices("api", res)
	}
	sharedobs.WriteJSON(w, http.StatusOK, results)
}

type monthlyReport struct {
	Month    string                  `json:"month"`
	Stations []domain.MonthlySummary `json:"stations"`
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "history store is not configured")
		return
	}

	raw := r.URL.Query().Get("month")
	month, err := time.Parse(domain.MonthLayout, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid month %q: expected YYYY-MM", raw))
		return
	}

	summaries, err := s.reports.MonthlySummaries(r.Context(), month)
	if err != nil {
		s.logger.Error("monthly report query failed", "month", raw, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build monthly report")
		return
	}
	if summaries == nil {
		summaries = []domain.MonthlySummary{}
	}

	sharedobs.WriteJSON(w, http.StatusOK, monthlyReport{
		Month:    month.Format(domain.MonthLayout),
		Stations: summaries,
	})
}
