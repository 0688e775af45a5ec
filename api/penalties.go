package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stokvela/finance-engine/finance"
	"github.com/stokvela/finance-engine/stokvel"
)

// =============================================================================
// PENALTY ENDPOINTS
// =============================================================================

// ApplyPenalty applies a manual penalty. With no amount, the rule computes
// it from base_amount and days_late.
// POST /api/stokvels/{id}/penalties
func (h *Handler) ApplyPenalty(w http.ResponseWriter, r *http.Request) {
	var req ApplyPenaltyRequest
	if !h.decode(w, r, &req) {
		return
	}
	applied, err := optionalDate(req.AppliedDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid applied_date", err)
		return
	}
	mp := stokvel.ManualPenalty{
		StokvelID: stokvelParam(r),
		MemberID:  finance.MemberID(req.MemberID),
		RuleID:    finance.RuleID(req.RuleID),
		Amount:    req.Amount,
		Base:      req.Base,
		DaysLate:  req.DaysLate,
		Reason:    req.Reason,
	}
	if req.PeriodID != "" {
		id := finance.PeriodID(req.PeriodID)
		mp.PeriodID = &id
	}
	if applied != nil {
		mp.AppliedDate = *applied
	}
	p, err := h.Services.Penalties.Apply(r.Context(), mp)
	if err != nil {
		h.writeServiceError(w, "Failed to apply penalty", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPenaltyDTO(p))
}

// ListPenalties returns penalties, filtered by query.
// GET /api/stokvels/{id}/penalties?member_id=&period_id=&status=
func (h *Handler) ListPenalties(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ps, err := h.Services.Penalties.List(r.Context(), finance.PenaltyFilter{
		StokvelID: stokvelParam(r),
		MemberID:  finance.MemberID(q.Get("member_id")),
		PeriodID:  finance.PeriodID(q.Get("period_id")),
		Status:    finance.PenaltyStatus(q.Get("status")),
	})
	if err != nil {
		h.writeServiceError(w, "Failed to list penalties", err)
		return
	}
	writeJSON(w, http.StatusOK, toPenaltyDTOs(ps))
}

// GetPenalty returns one penalty.
// GET /api/penalties/{id}
func (h *Handler) GetPenalty(w http.ResponseWriter, r *http.Request) {
	p, err := h.Services.Penalties.Get(r.Context(), finance.PenaltyID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, "Failed to get penalty", err)
		return
	}
	writeJSON(w, http.StatusOK, toPenaltyDTO(p))
}

// WaivePenalty waives what is outstanding.
// POST /api/penalties/{id}/waive
func (h *Handler) WaivePenalty(w http.ResponseWriter, r *http.Request) {
	var req WaivePenaltyRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.Services.Penalties.Waive(r.Context(), finance.PenaltyID(chi.URLParam(r, "id")), req.By, req.Reason)
	if err != nil {
		h.writeServiceError(w, "Failed to waive penalty", err)
		return
	}
	writeJSON(w, http.StatusOK, toPenaltyDTO(p))
}

// RecordPenaltyPayment records a full or partial payment of a penalty.
// POST /api/penalties/{id}/payments
func (h *Handler) RecordPenaltyPayment(w http.ResponseWriter, r *http.Request) {
	var req PenaltyPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	on, err := optionalDate(req.PaidDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid paid_date", err)
		return
	}
	var paid finance.Date
	if on != nil {
		paid = *on
	}
	p, err := h.Services.Penalties.RecordPayment(r.Context(), finance.PenaltyID(chi.URLParam(r, "id")), req.Amount, paid)
	if err != nil {
		h.writeServiceError(w, "Failed to record penalty payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toPenaltyDTO(p))
}
