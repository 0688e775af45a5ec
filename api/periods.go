package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stokvela/finance-engine/finance"
	"github.com/stokvela/finance-engine/stokvel"
)

// =============================================================================
// PAYMENT PERIOD ENDPOINTS
// =============================================================================

func (req GeneratePeriodsRequest) toGenerate(stokvelID finance.StokvelID) (stokvel.GenerateRequest, error) {
	w, err := window(req.StartDate, req.EndDate)
	if err != nil {
		return stokvel.GenerateRequest{}, err
	}
	return stokvel.GenerateRequest{
		StokvelID: stokvelID,
		Category:  finance.ContributionCategory(req.Category),
		Frequency: finance.Frequency(req.Frequency),
		Start:     w.From,
		End:       w.To,
		DueDay:    req.DueDay,
	}, nil
}

// PreviewPeriods shows the periods a generate call would create, with the
// rule and amount each would snapshot. Nothing is written.
// POST /api/stokvels/{id}/periods/preview
func (h *Handler) PreviewPeriods(w http.ResponseWriter, r *http.Request) {
	var req GeneratePeriodsRequest
	if !h.decode(w, r, &req) {
		return
	}
	gen, err := req.toGenerate(stokvelParam(r))
	if err != nil {
		h.writeServiceError(w, "Invalid range", err)
		return
	}
	candidates, err := h.Services.Periods.Preview(r.Context(), gen)
	if err != nil {
		h.writeServiceError(w, "Failed to preview periods", err)
		return
	}
	writeJSON(w, http.StatusOK, toCandidateDTOs(candidates))
}

// GeneratePeriods materialises payment periods. Safe to repeat.
// POST /api/stokvels/{id}/periods/generate
func (h *Handler) GeneratePeriods(w http.ResponseWriter, r *http.Request) {
	var req GeneratePeriodsRequest
	if !h.decode(w, r, &req) {
		return
	}
	gen, err := req.toGenerate(stokvelParam(r))
	if err != nil {
		h.writeServiceError(w, "Invalid range", err)
		return
	}
	res, err := h.Services.Periods.Generate(r.Context(), gen)
	if err != nil {
		h.writeServiceError(w, "Failed to generate periods", err)
		return
	}
	writeJSON(w, http.StatusOK, GenerateResultDTO{
		Created:  toPeriodDTOs(res.Created),
		Existing: toPeriodDTOs(res.Existing),
		NoRule:   toCandidateDTOs(res.NoRule),
		Warnings: toWarningDTOs(res.Warnings),
	})
}

// ListPeriods returns periods ordered by due date.
// GET /api/stokvels/{id}/periods?from=2025-01-01&to=2025-12-31&open=true
func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	f := finance.PeriodFilter{StokvelID: stokvelParam(r), OpenOnly: r.URL.Query().Get("open") == "true"}
	if from, ok, err := dateQuery(r, "from"); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from", err)
		return
	} else if ok {
		f.DueFrom = &from
	}
	if to, ok, err := dateQuery(r, "to"); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to", err)
		return
	} else if ok {
		f.DueTo = &to
	}
	periods, err := h.Services.Periods.List(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, "Failed to list periods", err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTOs(periods))
}

// GetPeriod returns one period.
// GET /api/periods/{id}
func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	p, err := h.Services.Periods.Get(r.Context(), finance.PeriodID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, "Failed to get period", err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(p))
}

// PeriodSummary returns expected and received totals for one period.
// GET /api/periods/{id}/summary
func (h *Handler) PeriodSummary(w http.ResponseWriter, r *http.Request) {
	totals, err := h.Services.Periods.Summary(r.Context(), finance.PeriodID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, "Failed to summarise period", err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodTotalsDTO(totals))
}

// ClosePeriod marks a period as no longer current.
// POST /api/periods/{id}/close
func (h *Handler) ClosePeriod(w http.ResponseWriter, r *http.Request) {
	p, err := h.Services.Periods.Close(r.Context(), finance.PeriodID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, "Failed to close period", err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(p))
}

// FinalizePeriod stops a period accepting contributions.
// POST /api/periods/{id}/finalize
func (h *Handler) FinalizePeriod(w http.ResponseWriter, r *http.Request) {
	p, err := h.Services.Periods.Finalize(r.Context(), finance.PeriodID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, "Failed to finalize period", err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(p))
}

// SetAutoPenalties toggles automatic penalties for a period.
// PUT /api/periods/{id}/auto-penalties
func (h *Handler) SetAutoPenalties(w http.ResponseWriter, r *http.Request) {
	var req AutoPenaltiesRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.Services.Periods.SetAutoPenalties(r.Context(), finance.PeriodID(chi.URLParam(r, "id")), *req.Enabled)
	if err != nil {
		h.writeServiceError(w, "Failed to update period", err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(p))
}
