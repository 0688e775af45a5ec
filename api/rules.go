package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stokvela/finance-engine/factory"
	"github.com/stokvela/finance-engine/finance"
)

// =============================================================================
// CONTRIBUTION RULE ENDPOINTS
// =============================================================================

func (req ContributionRuleRequest) toRule(stokvelID finance.StokvelID) (finance.ContributionRule, error) {
	eff, err := interval(req.EffectiveFrom, req.EffectiveUntil)
	if err != nil {
		return finance.ContributionRule{}, err
	}
	freq := finance.Frequency(req.Frequency)
	if freq == "" {
		freq = finance.FrequencyMonthly
	}
	return finance.ContributionRule{
		StokvelID:   stokvelID,
		Name:        req.Name,
		Category:    finance.ContributionCategory(req.Category),
		Amount:      req.Amount,
		Frequency:   freq,
		Effective:   eff,
		IsActive:    req.IsActive == nil || *req.IsActive,
		IsMandatory: req.IsMandatory,
		Description: req.Description,
	}, nil
}

// CreateContributionRule creates a rule version. Overlapping an active rule
// of the same category is a 409.
// POST /api/stokvels/{id}/contribution-rules
func (h *Handler) CreateContributionRule(w http.ResponseWriter, r *http.Request) {
	var req ContributionRuleRequest
	if !h.decode(w, r, &req) {
		return
	}
	rule, err := req.toRule(stokvelParam(r))
	if err != nil {
		h.writeServiceError(w, "Invalid rule", err)
		return
	}
	created, err := h.Services.Rules.CreateContributionRule(r.Context(), rule)
	if err != nil {
		h.writeServiceError(w, "Failed to create contribution rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, toContributionRuleDTO(created))
}

// ListContributionRules returns every version, optionally of one category.
// GET /api/stokvels/{id}/contribution-rules?category=regular
func (h *Handler) ListContributionRules(w http.ResponseWriter, r *http.Request) {
	category := finance.ContributionCategory(r.URL.Query().Get("category"))
	rules, err := h.Services.Rules.ListContributionRules(r.Context(), stokvelParam(r), category)
	if err != nil {
		h.writeServiceError(w, "Failed to list contribution rules", err)
		return
	}
	dtos := make([]ContributionRuleDTO, len(rules))
	for i, rule := range rules {
		dtos[i] = toContributionRuleDTO(rule)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ResolveContributionRule returns the rule in force on as_of (today when
// omitted).
// GET /api/stokvels/{id}/contribution-rules/resolve?category=regular&as_of=2025-03-01
func (h *Handler) ResolveContributionRule(w http.ResponseWriter, r *http.Request) {
	category := finance.ContributionCategory(r.URL.Query().Get("category"))
	if category == "" {
		category = finance.ContributionRegular
	}
	asOf, ok, err := dateQuery(r, "as_of")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of", err)
		return
	}
	if !ok {
		asOf = finance.Today()
	}
	rule, warning, err := h.Services.Rules.ResolveContributionRule(r.Context(), stokvelParam(r), category, asOf)
	if err != nil {
		h.writeServiceError(w, "Failed to resolve contribution rule", err)
		return
	}
	resp := ResolvedRuleDTO{Rule: toContributionRuleDTO(rule)}
	if warning != nil {
		wd := toWarningDTO(*warning)
		resp.Warning = &wd
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetContributionRule returns one rule version.
// GET /api/contribution-rules/{id}
func (h *Handler) GetContributionRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.Services.Rules.GetContributionRule(r.Context(), finance.RuleID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, "Failed to get contribution rule", err)
		return
	}
	writeJSON(w, http.StatusOK, toContributionRuleDTO(rule))
}

// UpdateContributionRule replaces a rule's editable fields.
// PUT /api/contribution-rules/{id}
func (h *Handler) UpdateContributionRule(w http.ResponseWriter, r *http.Request) {
	var req ContributionRuleRequest
	if !h.decode(w, r, &req) {
		return
	}
	rule, err := req.toRule("")
	if err != nil {
		h.writeServiceError(w, "Invalid rule", err)
		return
	}
	rule.ID = finance.RuleID(chi.URLParam(r, "id"))
	updated, err := h.Services.Rules.UpdateContributionRule(r.Context(), rule)
	if err != nil {
		h.writeServiceError(w, "Failed to update contribution rule", err)
		return
	}
	writeJSON(w, http.StatusOK, toContributionRuleDTO(updated))
}

// SupersedeContributionRule closes the rule where the new version starts.
// POST /api/contribution-rules/{id}/supersede
func (h *Handler) SupersedeContributionRule(w http.ResponseWriter, r *http.Request) {
	var req ContributionRuleRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	oldID := finance.RuleID(chi.URLParam(r, "id"))
	old, err := h.Services.Rules.GetContributionRule(ctx, oldID)
	if err != nil {
		h.writeServiceError(w, "Failed to get contribution rule", err)
		return
	}
	next, err := req.toRule(old.StokvelID)
	if err != nil {
		h.writeServiceError(w, "Invalid rule", err)
		return
	}
	created, err := h.Services.Rules.SupersedeContributionRule(ctx, oldID, next)
	if err != nil {
		h.writeServiceError(w, "Failed to supersede contribution rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, toContributionRuleDTO(created))
}

// DeactivateContributionRule turns a rule off and closes it on
// effective_until, today when the body omits it.
// POST /api/contribution-rules/{id}/deactivate
func (h *Handler) DeactivateContributionRule(w http.ResponseWriter, r *http.Request) {
	var req DeactivateRuleRequest
	if !h.decode(w, r, &req) {
		return
	}
	end, err := optionalDate(req.EffectiveUntil)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_until", err)
		return
	}
	rule, err := h.Services.Rules.DeactivateContributionRule(r.Context(), finance.RuleID(chi.URLParam(r, "id")), end)
	if err != nil {
		h.writeServiceError(w, "Failed to deactivate contribution rule", err)
		return
	}
	writeJSON(w, http.StatusOK, toContributionRuleDTO(rule))
}

// ReactivateContributionRule turns a rule back on.
// POST /api/contribution-rules/{id}/reactivate
func (h *Handler) ReactivateContributionRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.Services.Rules.ReactivateContributionRule(r.Context(), finance.RuleID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, "Failed to reactivate contribution rule", err)
		return
	}
	writeJSON(w, http.StatusOK, toContributionRuleDTO(rule))
}

// =============================================================================
// PENALTY RULE ENDPOINTS
// =============================================================================

func (req PenaltyRuleRequest) toRule(stokvelID finance.StokvelID) (finance.PenaltyRule, error) {
	eff, err := interval(req.EffectiveFrom, req.EffectiveUntil)
	if err != nil {
		return finance.PenaltyRule{}, err
	}
	method := finance.CalculationMethod(req.CalculationMethod)
	if method == "" {
		method = finance.MethodFixed
	}
	return finance.PenaltyRule{
		StokvelID:       stokvelID,
		Name:            req.Name,
		Category:        finance.PenaltyCategory(req.Category),
		Method:          method,
		Amount:          req.Amount,
		GracePeriodDays: req.GracePeriodDays,
		MaximumAmount:   req.MaximumAmount,
		Effective:       eff,
		IsActive:        req.IsActive == nil || *req.IsActive,
		Description:     req.Description,
	}, nil
}

// CreatePenaltyRule creates a penalty rule version.
// POST /api/stokvels/{id}/penalty-rules
func (h *Handler) CreatePenaltyRule(w http.ResponseWriter, r *http.Request) {
	var req PenaltyRuleRequest
	if !h.decode(w, r, &req) {
		return
	}
	rule, err := req.toRule(stokvelParam(r))
	if err != nil {
		h.writeServiceError(w, "Invalid rule", err)
		return
	}
	created, err := h.Services.Rules.CreatePenaltyRule(r.Context(), rule)
	if err != nil {
		h.writeServiceError(w, "Failed to create penalty rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPenaltyRuleDTO(created))
}

// ListPenaltyRules returns every version, optionally of one category.
// GET /api/stokvels/{id}/penalty-rules?category=late_payment
func (h *Handler) ListPenaltyRules(w http.ResponseWriter, r *http.Request) {
	category := finance.PenaltyCategory(r.URL.Query().Get("category"))
	rules, err := h.Services.Rules.ListPenaltyRules(r.Context(), stokvelParam(r), category)
	if err != nil {
		h.writeServiceError(w, "Failed to list penalty rules", err)
		return
	}
	dtos := make([]PenaltyRuleDTO, len(rules))
	for i, rule := range rules {
		dtos[i] = toPenaltyRuleDTO(rule)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ResolvePenaltyRule returns the penalty rule in force on as_of.
// GET /api/stokvels/{id}/penalty-rules/resolve?category=late_payment&as_of=2025-03-01
func (h *Handler) ResolvePenaltyRule(w http.ResponseWriter, r *http.Request) {
	category := finance.PenaltyCategory(r.URL.Query().Get("category"))
	if category == "" {
		writeError(w, http.StatusBadRequest, "category is required", nil)
		return
	}
	asOf, ok, err := dateQuery(r, "as_of")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of", err)
		return
	}
	if !ok {
		asOf = finance.Today()
	}
	rule, warning, err := h.Services.Rules.ResolvePenaltyRule(r.Context(), stokvelParam(r), category, asOf)
	if err != nil {
		h.writeServiceError(w, "Failed to resolve penalty rule", err)
		return
	}
	resp := ResolvedRuleDTO{Rule: toPenaltyRuleDTO(rule)}
	if warning != nil {
		wd := toWarningDTO(*warning)
		resp.Warning = &wd
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetPenaltyRule returns one penalty rule version.
// GET /api/penalty-rules/{id}
func (h *Handler) GetPenaltyRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.Services.Rules.GetPenaltyRule(r.Context(), finance.RuleID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, "Failed to get penalty rule", err)
		return
	}
	writeJSON(w, http.StatusOK, toPenaltyRuleDTO(rule))
}

// UpdatePenaltyRule replaces a penalty rule's editable fields.
// PUT /api/penalty-rules/{id}
func (h *Handler) UpdatePenaltyRule(w http.ResponseWriter, r *http.Request) {
	var req PenaltyRuleRequest
	if !h.decode(w, r, &req) {
		return
	}
	rule, err := req.toRule("")
	if err != nil {
		h.writeServiceError(w, "Invalid rule", err)
		return
	}
	rule.ID = finance.RuleID(chi.URLParam(r, "id"))
	updated, err := h.Services.Rules.UpdatePenaltyRule(r.Context(), rule)
	if err != nil {
		h.writeServiceError(w, "Failed to update penalty rule", err)
		return
	}
	writeJSON(w, http.StatusOK, toPenaltyRuleDTO(updated))
}

// SupersedePenaltyRule closes the rule where the new version starts.
// POST /api/penalty-rules/{id}/supersede
func (h *Handler) SupersedePenaltyRule(w http.ResponseWriter, r *http.Request) {
	var req PenaltyRuleRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	oldID := finance.RuleID(chi.URLParam(r, "id"))
	old, err := h.Services.Rules.GetPenaltyRule(ctx, oldID)
	if err != nil {
		h.writeServiceError(w, "Failed to get penalty rule", err)
		return
	}
	next, err := req.toRule(old.StokvelID)
	if err != nil {
		h.writeServiceError(w, "Invalid rule", err)
		return
	}
	created, err := h.Services.Rules.SupersedePenaltyRule(ctx, oldID, next)
	if err != nil {
		h.writeServiceError(w, "Failed to supersede penalty rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPenaltyRuleDTO(created))
}

// DeactivatePenaltyRule turns a penalty rule off and closes it on
// effective_until, today when the body omits it.
// POST /api/penalty-rules/{id}/deactivate
func (h *Handler) DeactivatePenaltyRule(w http.ResponseWriter, r *http.Request) {
	var req DeactivateRuleRequest
	if !h.decode(w, r, &req) {
		return
	}
	end, err := optionalDate(req.EffectiveUntil)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_until", err)
		return
	}
	rule, err := h.Services.Rules.DeactivatePenaltyRule(r.Context(), finance.RuleID(chi.URLParam(r, "id")), end)
	if err != nil {
		h.writeServiceError(w, "Failed to deactivate penalty rule", err)
		return
	}
	writeJSON(w, http.StatusOK, toPenaltyRuleDTO(rule))
}

// ReactivatePenaltyRule turns a penalty rule back on.
// POST /api/penalty-rules/{id}/reactivate
func (h *Handler) ReactivatePenaltyRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.Services.Rules.ReactivatePenaltyRule(r.Context(), finance.RuleID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, "Failed to reactivate penalty rule", err)
		return
	}
	writeJSON(w, http.StatusOK, toPenaltyRuleDTO(rule))
}

// =============================================================================
// RULE SETS (constitutions)
// =============================================================================

// ImportRuleSet creates every rule of a JSON constitution atomically. The
// path's stokvel wins over the document's stokvel_id.
// POST /api/stokvels/{id}/rule-sets
func (h *Handler) ImportRuleSet(w http.ResponseWriter, r *http.Request) {
	var rj factory.RuleSetJSON
	if !h.decode(w, r, &rj) {
		return
	}
	rj.StokvelID = string(stokvelParam(r))
	if _, err := h.Services.Directory.GetStokvel(r.Context(), stokvelParam(r)); err != nil {
		h.writeServiceError(w, "Failed to get stokvel", err)
		return
	}
	set, err := h.Rules.FromJSON(rj)
	if err != nil {
		h.writeServiceError(w, "Invalid rule set", err)
		return
	}
	cs, ps, err := h.Services.Rules.CreateRuleSet(r.Context(), set.Contributions, set.Penalties)
	if err != nil {
		h.writeServiceError(w, "Failed to create rule set", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRuleSetDTO(cs, ps))
}

// ExportRuleSet returns the stokvel's rules as a constitution document.
// GET /api/stokvels/{id}/rule-sets
func (h *Handler) ExportRuleSet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := stokvelParam(r)
	if _, err := h.Services.Directory.GetStokvel(ctx, id); err != nil {
		h.writeServiceError(w, "Failed to get stokvel", err)
		return
	}
	cs, err := h.Services.Rules.ListContributionRules(ctx, id, "")
	if err != nil {
		h.writeServiceError(w, "Failed to list contribution rules", err)
		return
	}
	ps, err := h.Services.Rules.ListPenaltyRules(ctx, id, "")
	if err != nil {
		h.writeServiceError(w, "Failed to list penalty rules", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Rules.ToJSON(id, cs, ps))
}

// GetRulePreset returns a ready-made constitution to edit and import.
// GET /api/rule-presets/{name}?effective_from=2025-01-01&amount=500&joining_fee=200
func (h *Handler) GetRulePreset(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from := q.Get("effective_from")
	if from == "" {
		from = finance.Today().String()
	}
	amount := q.Get("amount")
	if amount == "" {
		amount = "500"
	}

	var doc string
	switch chi.URLParam(r, "name") {
	case "savings-club":
		doc = factory.SavingsClubJSON(q.Get("stokvel_id"), from, amount)
	case "burial-society":
		fee := q.Get("joining_fee")
		if fee == "" {
			fee = amount
		}
		doc = factory.BurialSocietyJSON(q.Get("stokvel_id"), from, amount, fee)
	case "grocery":
		doc = factory.GroceryStokvelJSON(q.Get("stokvel_id"), from, amount)
	default:
		writeError(w, http.StatusNotFound, "Unknown preset", nil)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc))
}

func toRuleSetDTO(cs []finance.ContributionRule, ps []finance.PenaltyRule) RuleSetDTO {
	dto := RuleSetDTO{
		ContributionRules: make([]ContributionRuleDTO, len(cs)),
		PenaltyRules:      make([]PenaltyRuleDTO, len(ps)),
	}
	for i, c := range cs {
		dto.ContributionRules[i] = toContributionRuleDTO(c)
	}
	for i, p := range ps {
		dto.PenaltyRules[i] = toPenaltyRuleDTO(p)
	}
	return dto
}
