package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CONTRIBUTION - A member's payment toward one payment period
// =============================================================================

type VerificationStatus string

const (
	StatusPending  VerificationStatus = "pending"
	StatusVerified VerificationStatus = "verified"
	StatusRejected VerificationStatus = "rejected"
	StatusReversed VerificationStatus = "reversed"
)

func (s VerificationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusRejected, StatusReversed:
		return true
	}
	return false
}

type PaymentMethod string

const (
	MethodBankTransfer  PaymentMethod = "bank_transfer"
	MethodCash          PaymentMethod = "cash"
	MethodEFT           PaymentMethod = "eft"
	MethodDebitOrder    PaymentMethod = "debit_order"
	MethodMobilePayment PaymentMethod = "mobile_payment"
	MethodOther         PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodBankTransfer, MethodCash, MethodEFT, MethodDebitOrder, MethodMobilePayment, MethodOther:
		return true
	}
	return false
}

// Contribution is the single payment record of a member for a period.
// Corrections are status transitions on this record, never a second row.
type Contribution struct {
	ID          ContributionID
	StokvelID   StokvelID
	MemberID    MemberID
	PeriodID    PeriodID
	Amount      decimal.Decimal
	PaymentDate Date
	Method      PaymentMethod
	Reference   string
	Status      VerificationStatus
	VerifiedBy  string
	VerifiedAt  *time.Time
	Notes       string
	CreatedAt   time.Time
}

func (c Contribution) Validate() error {
	if c.MemberID == "" {
		return &ValidationError{Field: "member_id", Message: "is required"}
	}
	if c.PeriodID == "" {
		return &ValidationError{Field: "payment_period_id", Message: "is required"}
	}
	if !c.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "must be greater than zero"}
	}
	if c.PaymentDate.IsZero() {
		return &ValidationError{Field: "payment_date", Message: "is required"}
	}
	if c.Method != "" && !c.Method.Valid() {
		return &ValidationError{Field: "payment_method", Message: "is not a known payment method"}
	}
	return nil
}

// Counts reports whether the record stands as a payment. Rejected and
// reversed records are treated as if nothing was paid.
func (c Contribution) Counts() bool {
	return c.Status == StatusPending || c.Status == StatusVerified
}

// IsLate reports payment after the period's due date.
func (c Contribution) IsLate(p PaymentPeriod) bool {
	return c.PaymentDate.After(p.Due)
}

// DaysLate is max(0, payment_date - due_date).
func (c Contribution) DaysLate(p PaymentPeriod) int {
	if d := DaysBetween(p.Due, c.PaymentDate); d > 0 {
		return d
	}
	return 0
}

// Shortage is max(0, expected - amount).
func (c Contribution) Shortage(p PaymentPeriod) decimal.Decimal {
	s := p.ExpectedPerMember.Sub(c.Amount)
	if s.IsPositive() {
		return s
	}
	return decimal.Zero
}

// =============================================================================
// TRANSITIONS
// =============================================================================
//
//   pending  -> verified | rejected
//   verified -> reversed
//   rejected | reversed -> pending   (resubmission)

var contributionTransitions = map[VerificationStatus][]VerificationStatus{
	StatusPending:  {StatusVerified, StatusRejected},
	StatusVerified: {StatusReversed},
	StatusRejected: {StatusPending},
	StatusReversed: {StatusPending},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to VerificationStatus) bool {
	for _, allowed := range contributionTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (c *Contribution) transition(to VerificationStatus) error {
	if !CanTransition(c.Status, to) {
		return &TransitionError{Entity: "contribution", From: string(c.Status), To: string(to)}
	}
	c.Status = to
	return nil
}

// Verify marks a pending contribution as verified by an administrator.
func (c *Contribution) Verify(by string, at time.Time, notes string) error {
	if err := c.transition(StatusVerified); err != nil {
		return err
	}
	c.VerifiedBy = by
	c.VerifiedAt = &at
	if notes != "" {
		c.Notes = notes
	}
	return nil
}

// Reject marks a pending contribution as rejected.
func (c *Contribution) Reject(by string, at time.Time, notes string) error {
	if err := c.transition(StatusRejected); err != nil {
		return err
	}
	c.VerifiedBy = by
	c.VerifiedAt = &at
	if notes != "" {
		c.Notes = notes
	}
	return nil
}

// Reverse undoes a verified contribution, e.g. after a bank chargeback.
func (c *Contribution) Reverse(by string, at time.Time, notes string) error {
	if err := c.transition(StatusReversed); err != nil {
		return err
	}
	c.VerifiedBy = by
	c.VerifiedAt = &at
	if notes != "" {
		c.Notes = notes
	}
	return nil
}

// Resubmit puts a rejected or reversed record back to pending with the new
// payment details.
func (c *Contribution) Resubmit(amount decimal.Decimal, paid Date, method PaymentMethod, reference string) error {
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "must be greater than zero"}
	}
	if paid.IsZero() {
		return &ValidationError{Field: "payment_date", Message: "is required"}
	}
	if err := c.transition(StatusPending); err != nil {
		return err
	}
	c.Amount = amount
	c.PaymentDate = paid
	if method != "" {
		c.Method = method
	}
	c.Reference = reference
	c.VerifiedBy = ""
	c.VerifiedAt = nil
	return nil
}
