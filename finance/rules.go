/*
rules.go - Versioned contribution and penalty rules

PURPOSE:
  A stokvel's financial constitution is a set of rules, each in force for
  an effective interval. Changing a rule never edits it in place: the old
  version is closed (effective_until set, is_active cleared) and a new
  version starts. Historical payment periods keep the amount they were
  created with.

INVARIANT:
  For one (stokvel, category) no two ACTIVE rules may have overlapping
  intervals. The write path enforces this (see resolver.go); the read path
  still copes with rows that violate it, since data can be imported.

KEY TYPES:
  ContributionRule: expected payment per member (regular, registration, ...)
  PenaltyRule:      fee for a violation (late, insufficient, no payment, ...)
  VersionedRule:    what the overlap check and resolver need from either
*/
package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// RuleKind distinguishes the two rule tables.
type RuleKind string

const (
	KindContribution RuleKind = "contribution"
	KindPenalty      RuleKind = "penalty"
)

// =============================================================================
// CONTRIBUTION RULES
// =============================================================================

type ContributionCategory string

const (
	ContributionRegular      ContributionCategory = "regular"
	ContributionRegistration ContributionCategory = "registration"
	ContributionSpecial      ContributionCategory = "special"
	ContributionEmergency    ContributionCategory = "emergency"
)

func (c ContributionCategory) Valid() bool {
	switch c {
	case ContributionRegular, ContributionRegistration, ContributionSpecial, ContributionEmergency:
		return true
	}
	return false
}

type Frequency string

const (
	FrequencyOnceOff   Frequency = "once_off"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyAnnually  Frequency = "annually"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyOnceOff, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyAnnually:
		return true
	}
	return false
}

// ContributionRule defines the amount each member owes per period.
type ContributionRule struct {
	ID          RuleID
	StokvelID   StokvelID
	Name        string
	Category    ContributionCategory
	Amount      decimal.Decimal
	Frequency   Frequency
	Effective   Interval
	IsActive    bool
	IsMandatory bool
	Description string
	CreatedAt   time.Time
}

// Validate checks field-level constraints. Overlap is checked separately
// because it needs the other rules.
func (r ContributionRule) Validate() error {
	if r.StokvelID == "" {
		return &ValidationError{Field: "stokvel_id", Message: "is required"}
	}
	if r.Name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if !r.Category.Valid() {
		return &ValidationError{Field: "category", Message: "must be regular, registration, special or emergency"}
	}
	if r.Amount.LessThan(MinContribution) {
		return &ValidationError{Field: "amount", Message: "must be at least 0.01"}
	}
	if !r.Frequency.Valid() {
		return &ValidationError{Field: "frequency", Message: "must be once_off, weekly, monthly, quarterly or annually"}
	}
	return r.Effective.Validate()
}

// =============================================================================
// PENALTY RULES
// =============================================================================

type PenaltyCategory string

const (
	PenaltyLatePayment         PenaltyCategory = "late_payment"
	PenaltyInsufficientPayment PenaltyCategory = "insufficient_payment"
	PenaltyNoPayment           PenaltyCategory = "no_payment"
	PenaltyMissedMeeting       PenaltyCategory = "missed_meeting"
	PenaltyEarlyExit           PenaltyCategory = "early_exit"
	PenaltyBreachOfRules       PenaltyCategory = "breach_of_rules"
)

func (c PenaltyCategory) Valid() bool {
	switch c {
	case PenaltyLatePayment, PenaltyInsufficientPayment, PenaltyNoPayment,
		PenaltyMissedMeeting, PenaltyEarlyExit, PenaltyBreachOfRules:
		return true
	}
	return false
}

type CalculationMethod string

const (
	MethodFixed      CalculationMethod = "fixed"
	MethodPercentage CalculationMethod = "percentage"
	MethodDaily      CalculationMethod = "daily"
	MethodTiered     CalculationMethod = "tiered"
)

func (m CalculationMethod) Valid() bool {
	switch m {
	case MethodFixed, MethodPercentage, MethodDaily, MethodTiered:
		return true
	}
	return false
}

// PenaltyRule defines how a penalty of one category is computed.
// For MethodPercentage, Amount is a percentage in 0..100.
type PenaltyRule struct {
	ID              RuleID
	StokvelID       StokvelID
	Name            string
	Category        PenaltyCategory
	Method          CalculationMethod
	Amount          decimal.Decimal
	GracePeriodDays int
	MaximumAmount   *decimal.Decimal
	Effective       Interval
	IsActive        bool
	Description     string
	CreatedAt       time.Time
}

func (r PenaltyRule) Validate() error {
	if r.StokvelID == "" {
		return &ValidationError{Field: "stokvel_id", Message: "is required"}
	}
	if r.Name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if !r.Category.Valid() {
		return &ValidationError{Field: "category", Message: "is not a known penalty category"}
	}
	if !r.Method.Valid() {
		return &ValidationError{Field: "calculation_method", Message: "must be fixed, percentage, daily or tiered"}
	}
	if r.Amount.IsNegative() {
		return &ValidationError{Field: "amount", Message: "cannot be negative"}
	}
	if r.Method == MethodPercentage && r.Amount.GreaterThan(hundred) {
		return &ValidationError{Field: "amount", Message: "percentage penalty cannot exceed 100"}
	}
	if r.GracePeriodDays < 0 {
		return &ValidationError{Field: "grace_period_days", Message: "cannot be negative"}
	}
	if r.MaximumAmount != nil && !r.MaximumAmount.IsPositive() {
		return &ValidationError{Field: "maximum_amount", Message: "must be positive when set"}
	}
	return r.Effective.Validate()
}

// =============================================================================
// VERSIONED RULE - Shared view for overlap checks and resolution
// =============================================================================

// VersionedRule is implemented by ContributionRule and PenaltyRule.
type VersionedRule interface {
	ContributionRule | PenaltyRule
	RuleID() RuleID
	Stokvel() StokvelID
	Kind() RuleKind
	CategoryKey() string
	Window() Interval
	Active() bool
}

func (r ContributionRule) RuleID() RuleID      { return r.ID }
func (r ContributionRule) Stokvel() StokvelID  { return r.StokvelID }
func (r ContributionRule) Kind() RuleKind      { return KindContribution }
func (r ContributionRule) CategoryKey() string { return string(r.Category) }
func (r ContributionRule) Window() Interval    { return r.Effective }
func (r ContributionRule) Active() bool        { return r.IsActive }

func (r PenaltyRule) RuleID() RuleID      { return r.ID }
func (r PenaltyRule) Stokvel() StokvelID  { return r.StokvelID }
func (r PenaltyRule) Kind() RuleKind      { return KindPenalty }
func (r PenaltyRule) CategoryKey() string { return string(r.Category) }
func (r PenaltyRule) Window() Interval    { return r.Effective }
func (r PenaltyRule) Active() bool        { return r.IsActive }

// InForce reports whether the rule applies on d.
func (r ContributionRule) InForce(d Date) bool { return r.IsActive && r.Effective.Covers(d) }

// InForce reports whether the rule applies on d.
func (r PenaltyRule) InForce(d Date) bool { return r.IsActive && r.Effective.Covers(d) }
