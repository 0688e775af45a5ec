package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stokvela/finance-engine/finance"
	"github.com/stokvela/finance-engine/stokvel"
)

// =============================================================================
// CONTRIBUTION ENDPOINTS
// =============================================================================

// RecordContribution records a member's payment as pending.
// POST /api/stokvels/{id}/contributions
func (h *Handler) RecordContribution(w http.ResponseWriter, r *http.Request) {
	var req RecordContributionRequest
	if !h.decode(w, r, &req) {
		return
	}
	paid, err := finance.ParseDate(req.PaymentDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payment_date", err)
		return
	}
	c, err := h.Services.Contributions.Record(r.Context(), stokvel.RecordRequest{
		StokvelID:   stokvelParam(r),
		MemberID:    finance.MemberID(req.MemberID),
		PeriodID:    finance.PeriodID(req.PeriodID),
		Amount:      req.Amount,
		PaymentDate: paid,
		Method:      finance.PaymentMethod(req.Method),
		Reference:   req.Reference,
		Notes:       req.Notes,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to record contribution", err)
		return
	}
	writeJSON(w, http.StatusCreated, toContributionDTO(c))
}

// ListContributions returns contributions, filtered by query.
// GET /api/stokvels/{id}/contributions?member_id=&period_id=&status=
func (h *Handler) ListContributions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := finance.ContributionFilter{
		StokvelID: stokvelParam(r),
		MemberID:  finance.MemberID(q.Get("member_id")),
		Status:    finance.VerificationStatus(q.Get("status")),
	}
	if p := q.Get("period_id"); p != "" {
		f.PeriodIDs = []finance.PeriodID{finance.PeriodID(p)}
	}
	cs, err := h.Services.Contributions.List(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, "Failed to list contributions", err)
		return
	}
	writeJSON(w, http.StatusOK, toContributionDTOs(cs))
}

// GetContribution returns one contribution.
// GET /api/contributions/{id}
func (h *Handler) GetContribution(w http.ResponseWriter, r *http.Request) {
	c, err := h.Services.Contributions.Get(r.Context(), finance.ContributionID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, "Failed to get contribution", err)
		return
	}
	writeJSON(w, http.StatusOK, toContributionDTO(c))
}

// review handles the verify/reject/reverse transitions, which share a body.
func (h *Handler) review(w http.ResponseWriter, r *http.Request, action string, fn func(context.Context, finance.ContributionID, string, string) (finance.Contribution, error)) {
	var req ReviewRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := fn(r.Context(), finance.ContributionID(chi.URLParam(r, "id")), req.By, req.Notes)
	if err != nil {
		h.writeServiceError(w, "Failed to "+action+" contribution", err)
		return
	}
	writeJSON(w, http.StatusOK, toContributionDTO(c))
}

// VerifyContribution confirms a pending payment.
// POST /api/contributions/{id}/verify
func (h *Handler) VerifyContribution(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "verify", h.Services.Contributions.Verify)
}

// RejectContribution rejects a pending payment.
// POST /api/contributions/{id}/reject
func (h *Handler) RejectContribution(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "reject", h.Services.Contributions.Reject)
}

// ReverseContribution reverses a verified payment, e.g. after a bounced
// debit order.
// POST /api/contributions/{id}/reverse
func (h *Handler) ReverseContribution(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "reverse", h.Services.Contributions.Reverse)
}

// ResubmitContribution corrects a rejected or reversed payment.
// POST /api/contributions/{id}/resubmit
func (h *Handler) ResubmitContribution(w http.ResponseWriter, r *http.Request) {
	var req ResubmitRequest
	if !h.decode(w, r, &req) {
		return
	}
	paid, err := finance.ParseDate(req.PaymentDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payment_date", err)
		return
	}
	c, err := h.Services.Contributions.Resubmit(r.Context(), finance.ContributionID(chi.URLParam(r, "id")),
		req.Amount, paid, finance.PaymentMethod(req.Method), req.Reference)
	if err != nil {
		h.writeServiceError(w, "Failed to resubmit contribution", err)
		return
	}
	writeJSON(w, http.StatusOK, toContributionDTO(c))
}

// ImportPayments records bank statement lines already matched to members.
// POST /api/stokvels/{id}/contributions/import
func (h *Handler) ImportPayments(w http.ResponseWriter, r *http.Request) {
	var req ImportPaymentsRequest
	if !h.decode(w, r, &req) {
		return
	}
	payments := make([]stokvel.MatchedPayment, len(req.Payments))
	for i, p := range req.Payments {
		paid, err := finance.ParseDate(p.PaymentDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid payment_date", err)
			return
		}
		payments[i] = stokvel.MatchedPayment{
			MemberID:    finance.MemberID(p.MemberID),
			Amount:      p.Amount,
			PaymentDate: paid,
			Reference:   p.Reference,
			Method:      finance.PaymentMethod(p.Method),
		}
	}
	res, err := h.Services.Contributions.ImportMatched(r.Context(), stokvelParam(r), payments)
	if err != nil {
		h.writeServiceError(w, "Failed to import payments", err)
		return
	}
	writeJSON(w, http.StatusOK, ImportResultDTO{
		Contributions: toContributionDTOs(res.Contributions),
		Duplicates:    toMatchedPaymentRequests(res.Duplicates),
		Unmatched:     toMatchedPaymentRequests(res.Unmatched),
	})
}
