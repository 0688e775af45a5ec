/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's types from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

FORMATS:
  Dates are "YYYY-MM-DD". Money is a decimal string: requests accept
  "500" or 500, responses always carry two places ("500.00").

VALIDATION:
  Request types carry go-playground/validator tags for shape checks
  (required, enums, date layout). Business rules (overlaps, amounts, state
  transitions) are checked by the engine and come back as finance errors.

SEE ALSO:
  - handlers.go: decode/validate helpers and error mapping
  - factory/rules.go: RuleSetJSON, accepted as-is by the rule-set endpoint
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stokvela/finance-engine/finance"
	"github.com/stokvela/finance-engine/stokvel"
)

// =============================================================================
// STOKVELS AND MEMBERS
// =============================================================================

type CreateStokvelRequest struct {
	Name               string `json:"name" validate:"required,max=200"`
	ContributionDueDay int    `json:"contribution_due_day" validate:"omitempty,min=1,max=31"`
}

type StokvelDTO struct {
	ID                   string  `json:"id"`
	Name                 string  `json:"name"`
	ContributionDueDay   int     `json:"contribution_due_day"`
	CurrentCycleID       *string `json:"current_cycle_id,omitempty"`
	PrimaryBankAccountID *string `json:"primary_bank_account_id,omitempty"`
	IsActive             bool    `json:"is_active"`
	CreatedAt            string  `json:"created_at"`
}

type SaveMemberRequest struct {
	Name     string `json:"name" validate:"required"`
	Status   string `json:"status" validate:"omitempty,oneof=pending probation active suspended inactive exited"`
	JoinedAt string `json:"joined_at" validate:"omitempty,datetime=2006-01-02"`
}

type MemberDTO struct {
	ID        string `json:"id"`
	StokvelID string `json:"stokvel_id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	JoinedAt  string `json:"joined_at,omitempty"`
}

// =============================================================================
// RULES
// =============================================================================

type ContributionRuleRequest struct {
	Name           string          `json:"name" validate:"required"`
	Category       string          `json:"category" validate:"required,oneof=regular registration special emergency"`
	Amount         decimal.Decimal `json:"amount"`
	Frequency      string          `json:"frequency" validate:"omitempty,oneof=once_off weekly monthly quarterly annually"`
	IsMandatory    bool            `json:"is_mandatory"`
	Description    string          `json:"description"`
	EffectiveFrom  string          `json:"effective_from" validate:"required,datetime=2006-01-02"`
	EffectiveUntil string          `json:"effective_until" validate:"omitempty,datetime=2006-01-02"`
	IsActive       *bool           `json:"is_active"`
}

type PenaltyRuleRequest struct {
	Name              string           `json:"name" validate:"required"`
	Category          string           `json:"category" validate:"required,oneof=late_payment insufficient_payment no_payment missed_meeting early_exit breach_of_rules"`
	CalculationMethod string           `json:"calculation_method" validate:"omitempty,oneof=fixed percentage daily tiered"`
	Amount            decimal.Decimal  `json:"amount"`
	GracePeriodDays   int              `json:"grace_period_days" validate:"min=0"`
	MaximumAmount     *decimal.Decimal `json:"maximum_amount"`
	Description       string           `json:"description"`
	EffectiveFrom     string           `json:"effective_from" validate:"required,datetime=2006-01-02"`
	EffectiveUntil    string           `json:"effective_until" validate:"omitempty,datetime=2006-01-02"`
	IsActive          *bool            `json:"is_active"`
}

type DeactivateRuleRequest struct {
	EffectiveUntil string `json:"effective_until" validate:"omitempty,datetime=2006-01-02"`
}

type ContributionRuleDTO struct {
	ID             string  `json:"id"`
	StokvelID      string  `json:"stokvel_id"`
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	Amount         string  `json:"amount"`
	Frequency      string  `json:"frequency"`
	EffectiveFrom  string  `json:"effective_from"`
	EffectiveUntil *string `json:"effective_until,omitempty"`
	IsActive       bool    `json:"is_active"`
	IsMandatory    bool    `json:"is_mandatory"`
	Description    string  `json:"description,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

type PenaltyRuleDTO struct {
	ID                string  `json:"id"`
	StokvelID         string  `json:"stokvel_id"`
	Name              string  `json:"name"`
	Category          string  `json:"category"`
	CalculationMethod string  `json:"calculation_method"`
	Amount            string  `json:"amount"`
	GracePeriodDays   int     `json:"grace_period_days"`
	MaximumAmount     *string `json:"maximum_amount,omitempty"`
	EffectiveFrom     string  `json:"effective_from"`
	EffectiveUntil    *string `json:"effective_until,omitempty"`
	IsActive          bool    `json:"is_active"`
	Description       string  `json:"description,omitempty"`
	CreatedAt         string  `json:"created_at"`
}

// ResolvedRuleDTO is a resolution result. Warning is set when several
// rules matched.
type ResolvedRuleDTO struct {
	Rule    any         `json:"rule"`
	Warning *WarningDTO `json:"warning,omitempty"`
}

type RuleSetDTO struct {
	ContributionRules []ContributionRuleDTO `json:"contribution_rules"`
	PenaltyRules      []PenaltyRuleDTO      `json:"penalty_rules"`
}

// =============================================================================
// PERIODS
// =============================================================================

type GeneratePeriodsRequest struct {
	Category  string `json:"category" validate:"omitempty,oneof=regular registration special emergency"`
	Frequency string `json:"frequency" validate:"omitempty,oneof=monthly quarterly"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
	DueDay    int    `json:"due_day" validate:"omitempty,min=1,max=31"`
}

type PeriodDTO struct {
	ID                    string `json:"id"`
	StokvelID             string `json:"stokvel_id"`
	ContributionRuleID    string `json:"contribution_rule_id"`
	Label                 string `json:"period_name"`
	Year                  int    `json:"year"`
	Month                 int    `json:"month,omitempty"`
	Quarter               int    `json:"quarter,omitempty"`
	StartDate             string `json:"period_start_date"`
	EndDate               string `json:"period_end_date"`
	DueDate               string `json:"due_date"`
	ExpectedPerMember     string `json:"expected_amount_per_member"`
	IsOpen                bool   `json:"is_open"`
	IsFinalized           bool   `json:"is_finalized"`
	AutoGeneratePenalties bool   `json:"auto_generate_penalties"`
}

type CandidateDTO struct {
	Label              string      `json:"period_name"`
	Year               int         `json:"year"`
	Month              int         `json:"month,omitempty"`
	Quarter            int         `json:"quarter,omitempty"`
	StartDate          string      `json:"period_start_date"`
	EndDate            string      `json:"period_end_date"`
	DueDate            string      `json:"due_date"`
	ContributionRuleID string      `json:"contribution_rule_id,omitempty"`
	Expected           string      `json:"expected_amount_per_member"`
	NoRuleFound        bool        `json:"no_rule_found"`
	Warning            *WarningDTO `json:"warning,omitempty"`
}

type GenerateResultDTO struct {
	Created  []PeriodDTO    `json:"created"`
	Existing []PeriodDTO    `json:"existing"`
	NoRule   []CandidateDTO `json:"no_rule"`
	Warnings []WarningDTO   `json:"warnings"`
}

type AutoPenaltiesRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type PeriodTotalsDTO struct {
	PeriodID             string `json:"period_id"`
	ActiveMembers        int    `json:"active_members"`
	VerifiedCount        int    `json:"verified_count"`
	TotalExpected        string `json:"total_expected"`
	TotalReceived        string `json:"total_received"`
	CollectionPercentage string `json:"collection_percentage"`
}

// =============================================================================
// CONTRIBUTIONS
// =============================================================================

type RecordContributionRequest struct {
	MemberID    string          `json:"member_id" validate:"required"`
	PeriodID    string          `json:"payment_period_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate string          `json:"payment_date" validate:"required,datetime=2006-01-02"`
	Method      string          `json:"payment_method" validate:"omitempty,oneof=bank_transfer cash eft debit_order mobile_payment other"`
	Reference   string          `json:"reference_number" validate:"max=100"`
	Notes       string          `json:"notes"`
}

type ReviewRequest struct {
	By    string `json:"by" validate:"required"`
	Notes string `json:"notes"`
}

type ResubmitRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate string          `json:"payment_date" validate:"required,datetime=2006-01-02"`
	Method      string          `json:"payment_method" validate:"omitempty,oneof=bank_transfer cash eft debit_order mobile_payment other"`
	Reference   string          `json:"reference_number" validate:"max=100"`
}

type ImportPaymentsRequest struct {
	Payments []MatchedPaymentRequest `json:"payments" validate:"required,min=1,dive"`
}

type MatchedPaymentRequest struct {
	MemberID    string          `json:"member_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate string          `json:"payment_date" validate:"required,datetime=2006-01-02"`
	Reference   string          `json:"reference_number"`
	Method      string          `json:"payment_method" validate:"omitempty,oneof=bank_transfer cash eft debit_order mobile_payment other"`
}

type ContributionDTO struct {
	ID          string  `json:"id"`
	StokvelID   string  `json:"stokvel_id"`
	MemberID    string  `json:"member_id"`
	PeriodID    string  `json:"payment_period_id"`
	Amount      string  `json:"amount"`
	PaymentDate string  `json:"payment_date"`
	Method      string  `json:"payment_method,omitempty"`
	Reference   string  `json:"reference_number,omitempty"`
	Status      string  `json:"verification_status"`
	VerifiedBy  string  `json:"verified_by,omitempty"`
	VerifiedAt  *string `json:"verified_at,omitempty"`
	Notes       string  `json:"notes,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

type ImportResultDTO struct {
	Contributions []ContributionDTO       `json:"contributions"`
	Duplicates    []MatchedPaymentRequest `json:"duplicates"`
	Unmatched     []MatchedPaymentRequest `json:"unmatched"`
}

// =============================================================================
// PENALTIES
// =============================================================================

type ApplyPenaltyRequest struct {
	MemberID    string          `json:"member_id" validate:"required"`
	PeriodID    string          `json:"payment_period_id"`
	RuleID      string          `json:"penalty_rule_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Base        decimal.Decimal `json:"base_amount"`
	DaysLate    int             `json:"days_late" validate:"min=0"`
	Reason      string          `json:"reason"`
	AppliedDate string          `json:"applied_date" validate:"omitempty,datetime=2006-01-02"`
}

type WaivePenaltyRequest struct {
	By     string `json:"waived_by" validate:"required"`
	Reason string `json:"waived_reason" validate:"required"`
}

type PenaltyPaymentRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	PaidDate string          `json:"paid_date" validate:"omitempty,datetime=2006-01-02"`
}

type PenaltyDTO struct {
	ID           string  `json:"id"`
	StokvelID    string  `json:"stokvel_id"`
	MemberID     string  `json:"member_id"`
	PeriodID     *string `json:"payment_period_id,omitempty"`
	RuleID       string  `json:"penalty_rule_id"`
	Category     string  `json:"category"`
	Amount       string  `json:"amount"`
	Outstanding  string  `json:"outstanding"`
	Reason       string  `json:"reason"`
	AppliedDate  string  `json:"applied_date"`
	Status       string  `json:"status"`
	PaidAmount   string  `json:"paid_amount"`
	PaidDate     *string `json:"paid_date,omitempty"`
	WaivedBy     string  `json:"waived_by,omitempty"`
	WaivedReason string  `json:"waived_reason,omitempty"`
	Source       string  `json:"source"`
}

// =============================================================================
// RECONCILIATION
// =============================================================================

type RunRequest struct {
	From           string `json:"from" validate:"required,datetime=2006-01-02"`
	To             string `json:"to" validate:"required,datetime=2006-01-02"`
	AsOf           string `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
	ApplyPenalties bool   `json:"apply_penalties"`
	PublishEvents  bool   `json:"publish_events"`
}

type BatchReconcileRequest struct {
	StokvelIDs []string `json:"stokvel_ids" validate:"required,min=1,dive,required"`
	From       string   `json:"from" validate:"required,datetime=2006-01-02"`
	To         string   `json:"to" validate:"required,datetime=2006-01-02"`
	AsOf       string   `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
}

type WarningDTO struct {
	Kind      string   `json:"kind"`
	Category  string   `json:"category"`
	AsOf      string   `json:"as_of"`
	Chosen    string   `json:"chosen_rule_id"`
	Discarded []string `json:"discarded_rule_ids"`
	Message   string   `json:"message"`
}

type AssessmentDTO struct {
	Category string `json:"category"`
	RuleID   string `json:"penalty_rule_id,omitempty"`
	Base     string `json:"base_amount"`
	DaysLate int    `json:"days_late"`
	AsOf     string `json:"as_of"`
	Amount   string `json:"amount"`
	Outcome  string `json:"outcome"`
}

type LineDTO struct {
	MemberID       string          `json:"member_id"`
	PeriodID       string          `json:"payment_period_id"`
	PeriodLabel    string          `json:"period_name"`
	DueDate        string          `json:"due_date"`
	Classification string          `json:"classification"`
	ContributionID string          `json:"contribution_id,omitempty"`
	Expected       string          `json:"expected"`
	Paid           string          `json:"paid"`
	Shortage       string          `json:"shortage"`
	DaysLate       int             `json:"days_late"`
	Assessments    []AssessmentDTO `json:"assessments"`
}

type MemberSummaryDTO struct {
	MemberID         string `json:"member_id"`
	TotalPeriods     int    `json:"total_periods"`
	PaidPeriods      int    `json:"paid_periods"`
	LatePayments     int    `json:"late_payments"`
	MissingPeriods   int    `json:"missing_periods"`
	ComplianceRate   string `json:"compliance_rate"`
	TotalContributed string `json:"total_contributed"`
	PenaltyTotal     string `json:"penalty_total"`
	NoRulePenalties  int    `json:"no_rule_penalties"`
}

type PeriodSummaryDTO struct {
	PeriodTotalsDTO
	Label   string `json:"period_name"`
	DueDate string `json:"due_date"`
}

type AnomalyDTO struct {
	MemberID string `json:"member_id"`
	PeriodID string `json:"payment_period_id"`
	Message  string `json:"message"`
}

type ReportDTO struct {
	StokvelID         string             `json:"stokvel_id"`
	AsOf              string             `json:"as_of"`
	From              string             `json:"from"`
	To                string             `json:"to"`
	TotalExpected     string             `json:"total_expected"`
	TotalReceived     string             `json:"total_received"`
	CollectionRate    string             `json:"collection_rate"`
	AverageCompliance string             `json:"average_compliance"`
	PenaltyTotal      string             `json:"penalty_total"`
	Lines             []LineDTO          `json:"lines"`
	Members           []MemberSummaryDTO `json:"members"`
	Periods           []PeriodSummaryDTO `json:"periods"`
	Warnings          []WarningDTO       `json:"warnings"`
	Anomalies         []AnomalyDTO       `json:"anomalies"`
}

type RunDTO struct {
	ID               string `json:"id"`
	StokvelID        string `json:"stokvel_id"`
	From             string `json:"from"`
	To               string `json:"to"`
	AsOf             string `json:"as_of"`
	Status           string `json:"status"`
	CollectionRate   string `json:"collection_rate"`
	PenaltiesApplied int    `json:"penalties_applied"`
	Warnings         int    `json:"warnings"`
	Anomalies        int    `json:"anomalies"`
	Error            string `json:"error,omitempty"`
	StartedAt        string `json:"started_at"`
	CompletedAt      string `json:"completed_at"`
}

type RunResultDTO struct {
	Run               RunDTO       `json:"run"`
	Report            ReportDTO    `json:"report"`
	PenaltiesApplied  []PenaltyDTO `json:"penalties_applied"`
	PenaltiesExisting int          `json:"penalties_existing"`
	Suppressed        int          `json:"penalties_suppressed"`
}

// =============================================================================
// CYCLES, BANK ACCOUNTS, EVENTS
// =============================================================================

type CreateCycleRequest struct {
	Name      string `json:"name" validate:"required"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

type CycleDTO struct {
	ID        string `json:"id"`
	StokvelID string `json:"stokvel_id"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Status    string `json:"status"`
}

type AddBankAccountRequest struct {
	BankName      string `json:"bank_name" validate:"required"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number" validate:"required,numeric,min=6,max=20"`
	BranchCode    string `json:"branch_code" validate:"omitempty,numeric"`
	MakePrimary   bool   `json:"is_primary"`
}

type BankAccountDTO struct {
	ID            string `json:"id"`
	StokvelID     string `json:"stokvel_id"`
	BankName      string `json:"bank_name"`
	AccountName   string `json:"account_name,omitempty"`
	AccountNumber string `json:"account_number"`
	BranchCode    string `json:"branch_code,omitempty"`
	IsActive      bool   `json:"is_active"`
	IsPrimary     bool   `json:"is_primary"`
}

type EventDTO struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	MemberID  string          `json:"member_id,omitempty"`
	PeriodID  string          `json:"payment_period_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt string          `json:"created_at"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func optDate(d *finance.Date) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toStokvelDTO(s finance.Stokvel) StokvelDTO {
	dto := StokvelDTO{
		ID:                 string(s.ID),
		Name:               s.Name,
		ContributionDueDay: s.ContributionDueDay,
		IsActive:           s.IsActive,
		CreatedAt:          timestamp(s.CreatedAt),
	}
	if s.CurrentCycleID != nil {
		id := string(*s.CurrentCycleID)
		dto.CurrentCycleID = &id
	}
	if s.PrimaryBankAccountID != nil {
		id := string(*s.PrimaryBankAccountID)
		dto.PrimaryBankAccountID = &id
	}
	return dto
}

func toMemberDTO(m finance.Member) MemberDTO {
	dto := MemberDTO{ID: string(m.ID), StokvelID: string(m.StokvelID), Name: m.Name, Status: string(m.Status)}
	if !m.JoinedAt.IsZero() {
		dto.JoinedAt = m.JoinedAt.String()
	}
	return dto
}

func toContributionRuleDTO(r finance.ContributionRule) ContributionRuleDTO {
	return ContributionRuleDTO{
		ID:             string(r.ID),
		StokvelID:      string(r.StokvelID),
		Name:           r.Name,
		Category:       string(r.Category),
		Amount:         money(r.Amount),
		Frequency:      string(r.Frequency),
		EffectiveFrom:  r.Effective.From.String(),
		EffectiveUntil: optDate(r.Effective.Until),
		IsActive:       r.IsActive,
		IsMandatory:    r.IsMandatory,
		Description:    r.Description,
		CreatedAt:      timestamp(r.CreatedAt),
	}
}

func toPenaltyRuleDTO(r finance.PenaltyRule) PenaltyRuleDTO {
	dto := PenaltyRuleDTO{
		ID:                string(r.ID),
		StokvelID:         string(r.StokvelID),
		Name:              r.Name,
		Category:          string(r.Category),
		CalculationMethod: string(r.Method),
		Amount:            money(r.Amount),
		GracePeriodDays:   r.GracePeriodDays,
		EffectiveFrom:     r.Effective.From.String(),
		EffectiveUntil:    optDate(r.Effective.Until),
		IsActive:          r.IsActive,
		Description:       r.Description,
		CreatedAt:         timestamp(r.CreatedAt),
	}
	if r.MaximumAmount != nil {
		m := money(*r.MaximumAmount)
		dto.MaximumAmount = &m
	}
	return dto
}

func toWarningDTO(w finance.RuleIntegrityWarning) WarningDTO {
	discarded := make([]string, len(w.Discarded))
	for i, id := range w.Discarded {
		discarded[i] = string(id)
	}
	return WarningDTO{
		Kind:      string(w.Kind),
		Category:  w.Category,
		AsOf:      w.AsOf.String(),
		Chosen:    string(w.Chosen),
		Discarded: discarded,
		Message:   w.Error(),
	}
}

func toWarningDTOs(ws []finance.RuleIntegrityWarning) []WarningDTO {
	out := make([]WarningDTO, len(ws))
	for i, w := range ws {
		out[i] = toWarningDTO(w)
	}
	return out
}

func toPeriodDTO(p finance.PaymentPeriod) PeriodDTO {
	return PeriodDTO{
		ID:                    string(p.ID),
		StokvelID:             string(p.StokvelID),
		ContributionRuleID:    string(p.RuleID),
		Label:                 p.Label,
		Year:                  p.Year,
		Month:                 p.Month,
		Quarter:               p.Quarter,
		StartDate:             p.Start.String(),
		EndDate:               p.End.String(),
		DueDate:               p.Due.String(),
		ExpectedPerMember:     money(p.ExpectedPerMember),
		IsOpen:                p.IsOpen,
		IsFinalized:           p.IsFinalized,
		AutoGeneratePenalties: p.AutoGeneratePenalties,
	}
}

func toPeriodDTOs(ps []finance.PaymentPeriod) []PeriodDTO {
	out := make([]PeriodDTO, len(ps))
	for i, p := range ps {
		out[i] = toPeriodDTO(p)
	}
	return out
}

func toCandidateDTO(c finance.PeriodCandidate) CandidateDTO {
	dto := CandidateDTO{
		Label:              c.Label,
		Year:               c.Year,
		Month:              int(c.Month),
		Quarter:            c.Quarter,
		StartDate:          c.Start.String(),
		EndDate:            c.End.String(),
		DueDate:            c.Due.String(),
		ContributionRuleID: string(c.RuleID),
		Expected:           money(c.Expected),
		NoRuleFound:        c.NoRuleFound,
	}
	if c.Warning != nil {
		w := toWarningDTO(*c.Warning)
		dto.Warning = &w
	}
	return dto
}

func toCandidateDTOs(cs []finance.PeriodCandidate) []CandidateDTO {
	out := make([]CandidateDTO, len(cs))
	for i, c := range cs {
		out[i] = toCandidateDTO(c)
	}
	return out
}

func toPeriodTotalsDTO(t finance.PeriodTotals) PeriodTotalsDTO {
	return PeriodTotalsDTO{
		PeriodID:             string(t.PeriodID),
		ActiveMembers:        t.ActiveMembers,
		VerifiedCount:        t.VerifiedCount,
		TotalExpected:        money(t.TotalExpected),
		TotalReceived:        money(t.TotalReceived),
		CollectionPercentage: money(t.CollectionPercentage),
	}
}

func toContributionDTO(c finance.Contribution) ContributionDTO {
	dto := ContributionDTO{
		ID:          string(c.ID),
		StokvelID:   string(c.StokvelID),
		MemberID:    string(c.MemberID),
		PeriodID:    string(c.PeriodID),
		Amount:      money(c.Amount),
		PaymentDate: c.PaymentDate.String(),
		Method:      string(c.Method),
		Reference:   c.Reference,
		Status:      string(c.Status),
		VerifiedBy:  c.VerifiedBy,
		Notes:       c.Notes,
		CreatedAt:   timestamp(c.CreatedAt),
	}
	if c.VerifiedAt != nil {
		at := timestamp(*c.VerifiedAt)
		dto.VerifiedAt = &at
	}
	return dto
}

func toContributionDTOs(cs []finance.Contribution) []ContributionDTO {
	out := make([]ContributionDTO, len(cs))
	for i, c := range cs {
		out[i] = toContributionDTO(c)
	}
	return out
}

func toPenaltyDTO(p finance.Penalty) PenaltyDTO {
	dto := PenaltyDTO{
		ID:           string(p.ID),
		StokvelID:    string(p.StokvelID),
		MemberID:     string(p.MemberID),
		RuleID:       string(p.RuleID),
		Category:     string(p.Category),
		Amount:       money(p.Amount),
		Outstanding:  money(p.Outstanding()),
		Reason:       p.Reason,
		AppliedDate:  p.AppliedDate.String(),
		Status:       string(p.Status),
		PaidAmount:   money(p.PaidAmount),
		PaidDate:     optDate(p.PaidDate),
		WaivedBy:     p.WaivedBy,
		WaivedReason: p.WaivedReason,
		Source:       string(p.Source),
	}
	if p.PeriodID != nil {
		id := string(*p.PeriodID)
		dto.PeriodID = &id
	}
	return dto
}

func toPenaltyDTOs(ps []finance.Penalty) []PenaltyDTO {
	out := make([]PenaltyDTO, len(ps))
	for i, p := range ps {
		out[i] = toPenaltyDTO(p)
	}
	return out
}

func toReportDTO(r finance.Report) ReportDTO {
	dto := ReportDTO{
		StokvelID:         string(r.StokvelID),
		AsOf:              r.AsOf.String(),
		From:              r.Window.From.String(),
		To:                r.Window.To.String(),
		TotalExpected:     money(r.TotalExpected),
		TotalReceived:     money(r.TotalReceived),
		CollectionRate:    money(r.CollectionRate),
		AverageCompliance: money(r.AverageCompliance),
		PenaltyTotal:      money(r.PenaltyTotal),
		Lines:             make([]LineDTO, len(r.Lines)),
		Members:           make([]MemberSummaryDTO, len(r.Members)),
		Periods:           make([]PeriodSummaryDTO, len(r.Periods)),
		Warnings:          toWarningDTOs(r.Warnings),
		Anomalies:         make([]AnomalyDTO, len(r.Anomalies)),
	}
	for i, l := range r.Lines {
		line := LineDTO{
			MemberID:       string(l.MemberID),
			PeriodID:       string(l.PeriodID),
			PeriodLabel:    l.PeriodLabel,
			DueDate:        l.Due.String(),
			Classification: string(l.Classification),
			ContributionID: string(l.ContributionID),
			Expected:       money(l.Expected),
			Paid:           money(l.Paid),
			Shortage:       money(l.Shortage),
			DaysLate:       l.DaysLate,
			Assessments:    make([]AssessmentDTO, len(l.Assessments)),
		}
		for j, a := range l.Assessments {
			line.Assessments[j] = AssessmentDTO{
				Category: string(a.Category),
				RuleID:   string(a.RuleID),
				Base:     money(a.Base),
				DaysLate: a.DaysLate,
				AsOf:     a.AsOf.String(),
				Amount:   money(a.Amount),
				Outcome:  string(a.Outcome),
			}
		}
		dto.Lines[i] = line
	}
	for i, m := range r.Members {
		dto.Members[i] = toMemberSummaryDTO(m)
	}
	for i, p := range r.Periods {
		dto.Periods[i] = PeriodSummaryDTO{PeriodTotalsDTO: toPeriodTotalsDTO(p.PeriodTotals), Label: p.Label, DueDate: p.Due.String()}
	}
	for i, a := range r.Anomalies {
		dto.Anomalies[i] = AnomalyDTO{MemberID: string(a.MemberID), PeriodID: string(a.PeriodID), Message: a.Message}
	}
	return dto
}

func toMemberSummaryDTO(m finance.MemberSummary) MemberSummaryDTO {
	return MemberSummaryDTO{
		MemberID:         string(m.MemberID),
		TotalPeriods:     m.TotalPeriods,
		PaidPeriods:      m.PaidPeriods,
		LatePayments:     m.LatePayments,
		MissingPeriods:   m.MissingPeriods,
		ComplianceRate:   money(m.ComplianceRate),
		TotalContributed: money(m.TotalContributed),
		PenaltyTotal:     money(m.PenaltyTotal),
		NoRulePenalties:  m.NoRulePenalties,
	}
}

func toRunDTO(r finance.ReconciliationRun) RunDTO {
	return RunDTO{
		ID:               r.ID,
		StokvelID:        string(r.StokvelID),
		From:             r.Window.From.String(),
		To:               r.Window.To.String(),
		AsOf:             r.AsOf.String(),
		Status:           string(r.Status),
		CollectionRate:   money(r.CollectionRate),
		PenaltiesApplied: r.PenaltiesApplied,
		Warnings:         r.Warnings,
		Anomalies:        r.Anomalies,
		Error:            r.Error,
		StartedAt:        timestamp(r.StartedAt),
		CompletedAt:      timestamp(r.CompletedAt),
	}
}

func toCycleDTO(c finance.Cycle) CycleDTO {
	return CycleDTO{
		ID:        string(c.ID),
		StokvelID: string(c.StokvelID),
		Name:      c.Name,
		StartDate: c.Start.String(),
		EndDate:   c.End.String(),
		Status:    string(c.Status),
	}
}

func toBankAccountDTO(b finance.BankAccount, primary *finance.BankAccountID) BankAccountDTO {
	return BankAccountDTO{
		ID:            string(b.ID),
		StokvelID:     string(b.StokvelID),
		BankName:      b.BankName,
		AccountName:   b.AccountName,
		AccountNumber: b.AccountNumber,
		BranchCode:    b.BranchCode,
		IsActive:      b.IsActive,
		IsPrimary:     primary != nil && *primary == b.ID,
	}
}

func toMatchedPaymentRequests(ps []stokvel.MatchedPayment) []MatchedPaymentRequest {
	out := make([]MatchedPaymentRequest, len(ps))
	for i, p := range ps {
		out[i] = MatchedPaymentRequest{
			MemberID:    string(p.MemberID),
			Amount:      p.Amount,
			PaymentDate: p.PaymentDate.String(),
			Reference:   p.Reference,
			Method:      string(p.Method),
		}
	}
	return out
}

func toEventDTO(e finance.NotificationEvent) EventDTO {
	dto := EventDTO{ID: string(e.ID), Kind: string(e.Kind), Payload: e.Payload, CreatedAt: timestamp(e.CreatedAt)}
	if e.MemberID != nil {
		dto.MemberID = string(*e.MemberID)
	}
	if e.PeriodID != nil {
		dto.PeriodID = string(*e.PeriodID)
	}
	return dto
}
