package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PAYMENT PERIOD - A materialised billing window
// =============================================================================

// PaymentPeriod is a month or quarter in which members owe a contribution.
//
// ExpectedPerMember is copied from the contribution rule when the period is
// created and is never recomputed. Later rule versions only affect periods
// created after them.
type PaymentPeriod struct {
	ID                    PeriodID
	StokvelID             StokvelID
	RuleID                RuleID
	Label                 string
	Year                  int
	Month                 int // 1..12, or 0 for a quarterly period
	Quarter               int // 1..4, or 0 for a monthly period
	Start                 Date
	End                   Date
	Due                   Date
	ExpectedPerMember     decimal.Decimal
	IsOpen                bool
	IsFinalized           bool
	AutoGeneratePenalties bool
	CreatedAt             time.Time
}

// PeriodKey is the uniqueness key of a payment period.
type PeriodKey struct {
	StokvelID StokvelID
	RuleID    RuleID
	Year      int
	Month     int
	Quarter   int
}

func (p PaymentPeriod) Key() PeriodKey {
	return PeriodKey{StokvelID: p.StokvelID, RuleID: p.RuleID, Year: p.Year, Month: p.Month, Quarter: p.Quarter}
}

// AcceptsContributions is false once the period is finalized.
func (p PaymentPeriod) AcceptsContributions() bool { return !p.IsFinalized }

// NewPaymentPeriod builds an open period from a candidate that resolved a rule.
func NewPaymentPeriod(id PeriodID, stokvelID StokvelID, c PeriodCandidate, now time.Time) PaymentPeriod {
	return PaymentPeriod{
		ID:                    id,
		StokvelID:             stokvelID,
		RuleID:                c.RuleID,
		Label:                 c.Label,
		Year:                  c.Year,
		Month:                 int(c.Month),
		Quarter:               c.Quarter,
		Start:                 c.Start,
		End:                   c.End,
		Due:                   c.Due,
		ExpectedPerMember:     c.Expected,
		IsOpen:                true,
		AutoGeneratePenalties: true,
		CreatedAt:             now,
	}
}

// Validate checks the month XOR quarter classification and date order.
func (p PaymentPeriod) Validate() error {
	if p.StokvelID == "" {
		return &ValidationError{Field: "stokvel_id", Message: "is required"}
	}
	if p.RuleID == "" {
		return &ValidationError{Field: "contribution_rule_id", Message: "is required"}
	}
	if (p.Month == 0) == (p.Quarter == 0) {
		return &ValidationError{Field: "month", Message: "exactly one of month or quarter must be set"}
	}
	if p.Month < 0 || p.Month > 12 {
		return &ValidationError{Field: "month", Message: "must be between 1 and 12"}
	}
	if p.Quarter < 0 || p.Quarter > 4 {
		return &ValidationError{Field: "quarter", Message: "must be between 1 and 4"}
	}
	if p.End.Before(p.Start) {
		return &ValidationError{Field: "period_end_date", Message: "must not be before period_start_date"}
	}
	if p.ExpectedPerMember.IsNegative() {
		return &ValidationError{Field: "expected_amount_per_member", Message: "cannot be negative"}
	}
	return nil
}

// Close stops the period from being treated as current. Finalize also
// closes it and makes it reject new contributions.
func (p *PaymentPeriod) Close() { p.IsOpen = false }

func (p *PaymentPeriod) Finalize() {
	p.IsOpen = false
	p.IsFinalized = true
}

// =============================================================================
// PERIOD TOTALS - Derived, never stored
// =============================================================================

// PeriodTotals are the collection figures of one period.
type PeriodTotals struct {
	PeriodID             PeriodID
	ActiveMembers        int
	VerifiedCount        int
	TotalExpected        decimal.Decimal
	TotalReceived        decimal.Decimal
	CollectionPercentage decimal.Decimal
}

// ComputePeriodTotals derives expected/received/percentage for a period.
// Only verified contributions count as received.
func ComputePeriodTotals(p PaymentPeriod, activeMembers int, contributions []Contribution) PeriodTotals {
	t := PeriodTotals{
		PeriodID:      p.ID,
		ActiveMembers: activeMembers,
		TotalExpected: p.ExpectedPerMember.Mul(decimal.NewFromInt(int64(activeMembers))),
		TotalReceived: decimal.Zero,
	}
	for _, c := range contributions {
		if c.PeriodID != p.ID || c.Status != StatusVerified {
			continue
		}
		t.TotalReceived = t.TotalReceived.Add(c.Amount)
		t.VerifiedCount++
	}
	t.CollectionPercentage = Percentage(t.TotalReceived, t.TotalExpected)
	return t
}
