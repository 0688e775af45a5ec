package finance

import (
	"encoding/json"
	"time"
)

// =============================================================================
// STOKVEL - The tenant
// =============================================================================

// Stokvel carries explicit "current" pointers instead of flags on the
// child rows. Moving a pointer is one update inside a transaction, so there
// is never a moment with two current cycles or two primary accounts.
type Stokvel struct {
	ID                   StokvelID
	Name                 string
	ContributionDueDay   int
	CurrentCycleID       *CycleID
	PrimaryBankAccountID *BankAccountID
	IsActive             bool
	CreatedAt            time.Time
}

func (s Stokvel) Validate() error {
	if s.Name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if err := ValidateDueDay(s.ContributionDueDay); err != nil {
		return &ValidationError{Field: "contribution_due_day", Message: "must be between 1 and 31"}
	}
	return nil
}

// =============================================================================
// MEMBER - Roster entry
// =============================================================================

type MemberStatus string

const (
	MemberPending   MemberStatus = "pending"
	MemberProbation MemberStatus = "probation"
	MemberActive    MemberStatus = "active"
	MemberSuspended MemberStatus = "suspended"
	MemberInactive  MemberStatus = "inactive"
	MemberExited    MemberStatus = "exited"
)

func (s MemberStatus) Valid() bool {
	switch s {
	case MemberPending, MemberProbation, MemberActive, MemberSuspended, MemberInactive, MemberExited:
		return true
	}
	return false
}

// Member is the part of a membership this engine needs. Only active members
// are expected to contribute.
type Member struct {
	ID        MemberID
	StokvelID StokvelID
	Name      string
	Status    MemberStatus
	JoinedAt  Date
}

// =============================================================================
// CYCLE - Operating window bounding many payment periods
// =============================================================================

type CycleStatus string

const (
	CyclePlanned   CycleStatus = "planned"
	CycleActive    CycleStatus = "active"
	CycleCompleted CycleStatus = "completed"
	CycleCancelled CycleStatus = "cancelled"
)

type Cycle struct {
	ID        CycleID
	StokvelID StokvelID
	Name      string
	Start     Date
	End       Date
	Status    CycleStatus
	CreatedAt time.Time
}

func (c Cycle) Validate() error {
	if c.Name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if c.Start.IsZero() || c.End.IsZero() {
		return &ValidationError{Field: "start_date", Message: "start and end dates are required"}
	}
	if !c.End.After(c.Start) {
		return &ValidationError{Field: "end_date", Message: "must be after start_date"}
	}
	return nil
}

// Overlaps compares two cycles as closed date ranges. Cancelled cycles
// never overlap anything.
func (c Cycle) Overlaps(o Cycle) bool {
	if c.Status == CycleCancelled || o.Status == CycleCancelled {
		return false
	}
	return !c.Start.After(o.End) && !o.Start.After(c.End)
}

// =============================================================================
// BANK ACCOUNT
// =============================================================================

// BankAccount receives contributions. Which account is primary is recorded
// on the Stokvel, not here.
type BankAccount struct {
	ID            BankAccountID
	StokvelID     StokvelID
	BankName      string
	AccountName   string
	AccountNumber string
	BranchCode    string
	IsActive      bool
	CreatedAt     time.Time
}

func (b BankAccount) Validate() error {
	if b.BankName == "" {
		return &ValidationError{Field: "bank_name", Message: "is required"}
	}
	if b.AccountNumber == "" {
		return &ValidationError{Field: "account_number", Message: "is required"}
	}
	return nil
}

// =============================================================================
// NOTIFICATION EVENTS - Outbox rows for an external sender
// =============================================================================

type EventKind string

const (
	EventPenaltyApplied       EventKind = "penalty_applied"
	EventPeriodCollection     EventKind = "period_collection"
	EventRuleIntegrityWarning EventKind = "rule_integrity_warning"
)

// NotificationEvent is written by this engine and consumed by whatever
// sends mail or SMS. The engine never delivers anything itself.
type NotificationEvent struct {
	ID        EventID
	StokvelID StokvelID
	Kind      EventKind
	MemberID  *MemberID
	PeriodID  *PeriodID
	Payload   json.RawMessage
	CreatedAt time.Time
}
