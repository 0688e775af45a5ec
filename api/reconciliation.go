package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stokvela/finance-engine/finance"
	"github.com/stokvela/finance-engine/stokvel"
)

// =============================================================================
// RECONCILIATION ENDPOINTS
// =============================================================================

// reportQuery reads ?from=&to=&as_of= and writes the error itself.
func reportQuery(w http.ResponseWriter, r *http.Request) (finance.Window, finance.Date, bool) {
	q := r.URL.Query()
	if q.Get("from") == "" || q.Get("to") == "" {
		writeError(w, http.StatusBadRequest, "from and to are required", nil)
		return finance.Window{}, finance.Date{}, false
	}
	win, err := window(q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid window", err)
		return finance.Window{}, finance.Date{}, false
	}
	asOf, _, err := dateQuery(r, "as_of")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of", err)
		return finance.Window{}, finance.Date{}, false
	}
	return win, asOf, true
}

// GetReconciliation reconciles periods due in the window. Read-only:
// assessed penalties are reported, not applied.
// GET /api/stokvels/{id}/reconciliation?from=2025-01-01&to=2025-03-31&as_of=2025-04-15
func (h *Handler) GetReconciliation(w http.ResponseWriter, r *http.Request) {
	win, asOf, ok := reportQuery(w, r)
	if !ok {
		return
	}
	rep, err := h.Services.Reports.Reconcile(r.Context(), stokvelParam(r), win, asOf)
	if err != nil {
		h.writeServiceError(w, "Failed to reconcile", err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(rep))
}

// GetMemberCompliance returns one member's compliance for the window.
// GET /api/stokvels/{id}/members/{memberID}/compliance?from=&to=&as_of=
func (h *Handler) GetMemberCompliance(w http.ResponseWriter, r *http.Request) {
	win, asOf, ok := reportQuery(w, r)
	if !ok {
		return
	}
	sum, err := h.Services.Reports.MemberCompliance(r.Context(), stokvelParam(r), finance.MemberID(chi.URLParam(r, "memberID")), win, asOf)
	if err != nil {
		h.writeServiceError(w, "Failed to compute compliance", err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberSummaryDTO(sum))
}

// RunReconciliation reconciles and, on request, applies penalties and
// queues notifications. Every run is recorded, failed ones included.
// POST /api/stokvels/{id}/reconciliation/runs
func (h *Handler) RunReconciliation(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if !h.decode(w, r, &req) {
		return
	}
	win, err := window(req.From, req.To)
	if err != nil {
		h.writeServiceError(w, "Invalid window", err)
		return
	}
	asOf, err := optionalDate(req.AsOf)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of", err)
		return
	}
	run := stokvel.RunRequest{
		StokvelID:      stokvelParam(r),
		Window:         win,
		ApplyPenalties: req.ApplyPenalties,
		PublishEvents:  req.PublishEvents,
	}
	if asOf != nil {
		run.AsOf = *asOf
	}
	res, err := h.Services.Reports.Run(r.Context(), run)
	if err != nil {
		h.writeServiceError(w, "Reconciliation run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, RunResultDTO{
		Run:               toRunDTO(res.Run),
		Report:            toReportDTO(res.Report),
		PenaltiesApplied:  toPenaltyDTOs(res.Applied.Applied),
		PenaltiesExisting: res.Applied.Existing,
		Suppressed:        res.Applied.Suppressed,
	})
}

// ListReconciliationRuns returns recorded runs, newest first.
// GET /api/stokvels/{id}/reconciliation/runs?limit=20
func (h *Handler) ListReconciliationRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit", err)
		return
	}
	runs, err := h.Services.Reports.Runs(r.Context(), stokvelParam(r), limit)
	if err != nil {
		h.writeServiceError(w, "Failed to list runs", err)
		return
	}
	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// BatchReconcile reconciles several stokvels over the same window.
// POST /api/reconciliation/batch
func (h *Handler) BatchReconcile(w http.ResponseWriter, r *http.Request) {
	var req BatchReconcileRequest
	if !h.decode(w, r, &req) {
		return
	}
	win, err := window(req.From, req.To)
	if err != nil {
		h.writeServiceError(w, "Invalid window", err)
		return
	}
	asOf, err := optionalDate(req.AsOf)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of", err)
		return
	}
	var at finance.Date
	if asOf != nil {
		at = *asOf
	}
	ids := make([]finance.StokvelID, len(req.StokvelIDs))
	for i, id := range req.StokvelIDs {
		ids[i] = finance.StokvelID(id)
	}
	reps, err := h.Services.Reports.ReconcileMany(r.Context(), ids, win, at)
	if err != nil {
		h.writeServiceError(w, "Failed to reconcile", err)
		return
	}
	dtos := make([]ReportDTO, len(reps))
	for i, rep := range reps {
		dtos[i] = toReportDTO(rep)
	}
	writeJSON(w, http.StatusOK, dtos)
}
