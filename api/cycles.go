package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stokvela/finance-engine/finance"
)

// =============================================================================
// CYCLE ENDPOINTS
// =============================================================================

// CreateCycle plans an operating cycle.
// POST /api/stokvels/{id}/cycles
func (h *Handler) CreateCycle(w http.ResponseWriter, r *http.Request) {
	var req CreateCycleRequest
	if !h.decode(w, r, &req) {
		return
	}
	win, err := window(req.StartDate, req.EndDate)
	if err != nil {
		h.writeServiceError(w, "Invalid cycle dates", err)
		return
	}
	c, err := h.Services.Cycles.Create(r.Context(), finance.Cycle{
		StokvelID: stokvelParam(r),
		Name:      req.Name,
		Start:     win.From,
		End:       win.To,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to create cycle", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCycleDTO(c))
}

// ListCycles returns the stokvel's cycles by start date.
// GET /api/stokvels/{id}/cycles
func (h *Handler) ListCycles(w http.ResponseWriter, r *http.Request) {
	cycles, err := h.Services.Cycles.List(r.Context(), stokvelParam(r))
	if err != nil {
		h.writeServiceError(w, "Failed to list cycles", err)
		return
	}
	dtos := make([]CycleDTO, len(cycles))
	for i, c := range cycles {
		dtos[i] = toCycleDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentCycle returns the current cycle, 404 when there is none.
// GET /api/stokvels/{id}/cycles/current
func (h *Handler) GetCurrentCycle(w http.ResponseWriter, r *http.Request) {
	c, ok, err := h.Services.Cycles.Current(r.Context(), stokvelParam(r))
	if err != nil {
		h.writeServiceError(w, "Failed to get current cycle", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "No current cycle", nil)
		return
	}
	writeJSON(w, http.StatusOK, toCycleDTO(c))
}

// ActivateCycle makes a cycle current.
// POST /api/cycles/{id}/activate
func (h *Handler) ActivateCycle(w http.ResponseWriter, r *http.Request) {
	c, err := h.Services.Cycles.Activate(r.Context(), finance.CycleID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, "Failed to activate cycle", err)
		return
	}
	writeJSON(w, http.StatusOK, toCycleDTO(c))
}

// CompleteCycle ends a cycle normally.
// POST /api/cycles/{id}/complete
func (h *Handler) CompleteCycle(w http.ResponseWriter, r *http.Request) {
	c, err := h.Services.Cycles.Complete(r.Context(), finance.CycleID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, "Failed to complete cycle", err)
		return
	}
	writeJSON(w, http.StatusOK, toCycleDTO(c))
}

// CancelCycle cancels a cycle.
// POST /api/cycles/{id}/cancel
func (h *Handler) CancelCycle(w http.ResponseWriter, r *http.Request) {
	c, err := h.Services.Cycles.Cancel(r.Context(), finance.CycleID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, "Failed to cancel cycle", err)
		return
	}
	writeJSON(w, http.StatusOK, toCycleDTO(c))
}

// =============================================================================
// BANK ACCOUNT ENDPOINTS
// =============================================================================

// AddBankAccount registers an account. The first one becomes primary.
// POST /api/stokvels/{id}/bank-accounts
func (h *Handler) AddBankAccount(w http.ResponseWriter, r *http.Request) {
	var req AddBankAccountRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	b, err := h.Services.BankAccounts.Add(ctx, finance.BankAccount{
		StokvelID:     stokvelParam(r),
		BankName:      req.BankName,
		AccountName:   req.AccountName,
		AccountNumber: req.AccountNumber,
		BranchCode:    req.BranchCode,
	}, req.MakePrimary)
	if err != nil {
		h.writeServiceError(w, "Failed to add bank account", err)
		return
	}
	sv, err := h.Services.Directory.GetStokvel(ctx, b.StokvelID)
	if err != nil {
		h.writeServiceError(w, "Failed to get stokvel", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBankAccountDTO(b, sv.PrimaryBankAccountID))
}

// ListBankAccounts returns the stokvel's accounts with the primary marked.
// GET /api/stokvels/{id}/bank-accounts
func (h *Handler) ListBankAccounts(w http.ResponseWriter, r *http.Request) {
	h.writeBankAccounts(w, r, stokvelParam(r))
}

// SetPrimaryBankAccount moves the primary pointer.
// POST /api/bank-accounts/{id}/primary
func (h *Handler) SetPrimaryBankAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := finance.BankAccountID(chi.URLParam(r, "id"))
	if err := h.Services.BankAccounts.SetPrimary(ctx, id); err != nil {
		h.writeServiceError(w, "Failed to set primary account", err)
		return
	}
	b, err := h.Services.BankAccounts.Get(ctx, id)
	if err != nil {
		h.writeServiceError(w, "Failed to get bank account", err)
		return
	}
	h.writeBankAccounts(w, r, b.StokvelID)
}

// DeactivateBankAccount retires an account. If it was primary, the oldest
// other active account takes over.
// POST /api/bank-accounts/{id}/deactivate
func (h *Handler) DeactivateBankAccount(w http.ResponseWriter, r *http.Request) {
	b, err := h.Services.BankAccounts.Deactivate(r.Context(), finance.BankAccountID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, "Failed to deactivate bank account", err)
		return
	}
	h.writeBankAccounts(w, r, b.StokvelID)
}

func (h *Handler) writeBankAccounts(w http.ResponseWriter, r *http.Request, stokvelID finance.StokvelID) {
	ctx := r.Context()
	sv, err := h.Services.Directory.GetStokvel(ctx, stokvelID)
	if err != nil {
		h.writeServiceError(w, "Failed to get stokvel", err)
		return
	}
	accounts, err := h.Services.BankAccounts.List(ctx, stokvelID)
	if err != nil {
		h.writeServiceError(w, "Failed to list bank accounts", err)
		return
	}
	dtos := make([]BankAccountDTO, len(accounts))
	for i, b := range accounts {
		dtos[i] = toBankAccountDTO(b, sv.PrimaryBankAccountID)
	}
	writeJSON(w, http.StatusOK, dtos)
}
