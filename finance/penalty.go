/*
penalty.go - Penalty calculation and applied penalty records

PURPOSE:
  CalculatePenalty is the single pure function that turns a penalty rule,
  a base amount and a number of days late into money. Everything that
  assesses a penalty (reconciliation, manual application) goes through it.

CALCULATION:
  1. daysLate <= grace           -> 0, whatever the method
  2. fixed                       -> amount
     percentage                  -> base * amount / 100
     daily                       -> amount * (daysLate - grace)
     tiered                      -> amount (treated as fixed)
  3. maximum_amount set          -> min(result, maximum_amount)

  Shortfalls have no lateness dimension. CalculateShortfallPenalty runs
  step 2 and 3 on the shortage without the grace check, counting a daily
  rule as one day.

APPLIED PENALTIES:
  A Penalty stores the amount computed at application time, rounded to
  cents. The amount is never recomputed; only status and payments change.
*/
package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// CalculatePenalty returns the unrounded penalty for the inputs. It never
// returns a negative amount.
func CalculatePenalty(rule PenaltyRule, base decimal.Decimal, daysLate int) decimal.Decimal {
	if daysLate <= rule.GracePeriodDays {
		return decimal.Zero
	}
	return byMethod(rule, base, daysLate-rule.GracePeriodDays)
}

// CalculateShortfallPenalty assesses an insufficient payment against the
// shortage. A shortage of zero or less costs nothing.
//
// The grace period counts days late and has no bearing on a shortage, so it
// is not applied; a daily rule charges a single day. Legacy ledgers priced a
// shortfall as CalculatePenalty with zero days late, which always lands
// inside the grace check and never charged anything. Shortfalls priced here
// are charged, so figures will differ from those ledgers.
func CalculateShortfallPenalty(rule PenaltyRule, shortage decimal.Decimal) decimal.Decimal {
	if !shortage.IsPositive() {
		return decimal.Zero
	}
	return byMethod(rule, shortage, 1)
}

// byMethod applies the calculation method and the cap. chargeableDays is
// the number of days past grace.
func byMethod(rule PenaltyRule, base decimal.Decimal, chargeableDays int) decimal.Decimal {
	var amount decimal.Decimal
	switch rule.Method {
	case MethodPercentage:
		amount = base.Mul(rule.Amount).Div(hundred)
	case MethodDaily:
		amount = rule.Amount.Mul(decimal.NewFromInt(int64(chargeableDays)))
	default:
		// fixed, and tiered until tier bands exist
		amount = rule.Amount
	}

	if rule.MaximumAmount != nil && amount.GreaterThan(*rule.MaximumAmount) {
		amount = *rule.MaximumAmount
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// =============================================================================
// APPLIED PENALTY
// =============================================================================

type PenaltyStatus string

const (
	PenaltyApplied     PenaltyStatus = "applied"
	PenaltyWaived      PenaltyStatus = "waived"
	PenaltyPaid        PenaltyStatus = "paid"
	PenaltyOutstanding PenaltyStatus = "outstanding"
)

// PenaltySource tells engine-generated penalties from manual ones. Only
// engine penalties are unique per (member, period, rule).
type PenaltySource string

const (
	SourceEngine PenaltySource = "engine"
	SourceManual PenaltySource = "manual"
)

// Penalty is a penalty assessed against a member.
type Penalty struct {
	ID           PenaltyID
	StokvelID    StokvelID
	MemberID     MemberID
	PeriodID     *PeriodID
	RuleID       RuleID
	Category     PenaltyCategory
	Amount       decimal.Decimal
	Reason       string
	AppliedDate  Date
	Status       PenaltyStatus
	PaidAmount   decimal.Decimal
	PaidDate     *Date
	WaivedBy     string
	WaivedReason string
	Source       PenaltySource
	CreatedAt    time.Time
}

// NewPenalty builds an applied penalty, rounding the amount to cents.
func NewPenalty(id PenaltyID, rule PenaltyRule, member MemberID, period *PeriodID, amount decimal.Decimal, reason string, applied Date, source PenaltySource) Penalty {
	return Penalty{
		ID:          id,
		StokvelID:   rule.StokvelID,
		MemberID:    member,
		PeriodID:    period,
		RuleID:      rule.ID,
		Category:    rule.Category,
		Amount:      RoundMoney(amount),
		Reason:      reason,
		AppliedDate: applied,
		Status:      PenaltyApplied,
		PaidAmount:  decimal.Zero,
		Source:      source,
	}
}

// Outstanding is amount - paid, or zero once waived.
func (p Penalty) Outstanding() decimal.Decimal {
	if p.Status == PenaltyWaived {
		return decimal.Zero
	}
	return p.Amount.Sub(p.PaidAmount)
}

// IsSettled is true for waived and fully paid penalties.
func (p Penalty) IsSettled() bool {
	return p.Status == PenaltyWaived || p.Status == PenaltyPaid
}

// Waive cancels the remaining balance. Waived is terminal.
func (p *Penalty) Waive(by, reason string) error {
	if p.IsSettled() {
		return &TransitionError{Entity: "penalty", From: string(p.Status), To: string(PenaltyWaived)}
	}
	if reason == "" {
		return &ValidationError{Field: "waived_reason", Message: "is required"}
	}
	p.Status = PenaltyWaived
	p.WaivedBy = by
	p.WaivedReason = reason
	return nil
}

// RecordPayment adds a (possibly partial) payment. The penalty becomes paid
// once nothing is outstanding and outstanding otherwise.
func (p *Penalty) RecordPayment(amount decimal.Decimal, on Date) error {
	if p.IsSettled() {
		return &TransitionError{Entity: "penalty", From: string(p.Status), To: string(PenaltyPaid)}
	}
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "must be greater than zero"}
	}
	if amount.GreaterThan(p.Outstanding()) {
		return &ValidationError{Field: "amount", Message: "exceeds the outstanding penalty"}
	}
	p.PaidAmount = p.PaidAmount.Add(amount)
	p.PaidDate = &on
	if p.Outstanding().IsZero() {
		p.Status = PenaltyPaid
	} else {
		p.Status = PenaltyOutstanding
	}
	return nil
}
