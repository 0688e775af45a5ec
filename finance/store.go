/*
store.go - Persistence interfaces

PURPOSE:
  Defines the boundary between the engine and the database. The engine and
  services depend only on these interfaces; store/sqlite and
  finance/store implement them.

KEY INTERFACES:
  RuleStore:         versioned contribution and penalty rules
  PeriodStore:       materialised payment periods
  ContributionStore: member payments
  PenaltyStore:      applied penalties
  StokvelStore:      stokvels, cycles, bank accounts
  MemberRoster:      active members (owned by membership management)
  Outbox:            notification events for an external sender
  RunStore:          history of reconciliation runs
  TxStore:           all of the above plus transactions

UNIQUENESS:
  Implementations enforce the invariants that concurrent writers could
  otherwise race on:
  - CreatePeriod fails with ErrDuplicatePeriod on an existing PeriodKey
  - CreateContribution fails with ErrDuplicateContribution per (member, period)
  - CreatePenalty fails with ErrDuplicatePenalty for a second engine
    penalty per (member, period, rule)

TRANSACTIONS:
  WithTx runs fn atomically; an error from fn rolls everything back.
  WithReadTx gives fn a consistent read view. Reconciliation snapshots
  are always read through WithReadTx.

SEE ALSO:
  - store/sqlite/sqlite.go: SQLite implementation
  - finance/store/memory.go: in-memory implementation for tests and dev
*/
package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RULES
// =============================================================================

// RuleStore persists versioned rules. There is no delete.
type RuleStore interface {
	CreateContributionRule(ctx context.Context, r ContributionRule) error
	UpdateContributionRule(ctx context.Context, r ContributionRule) error
	GetContributionRule(ctx context.Context, id RuleID) (ContributionRule, error)
	// ListContributionRules returns all versions, active or not. An empty
	// category lists every category.
	ListContributionRules(ctx context.Context, stokvelID StokvelID, category ContributionCategory) ([]ContributionRule, error)

	CreatePenaltyRule(ctx context.Context, r PenaltyRule) error
	UpdatePenaltyRule(ctx context.Context, r PenaltyRule) error
	GetPenaltyRule(ctx context.Context, id RuleID) (PenaltyRule, error)
	ListPenaltyRules(ctx context.Context, stokvelID StokvelID, category PenaltyCategory) ([]PenaltyRule, error)
}

// =============================================================================
// PERIODS
// =============================================================================

// PeriodFilter narrows ListPeriods. Zero fields do not filter.
type PeriodFilter struct {
	StokvelID StokvelID
	RuleID    RuleID
	DueFrom   *Date
	DueTo     *Date
	OpenOnly  bool
}

func (f PeriodFilter) Match(p PaymentPeriod) bool {
	if f.StokvelID != "" && p.StokvelID != f.StokvelID {
		return false
	}
	if f.RuleID != "" && p.RuleID != f.RuleID {
		return false
	}
	if f.DueFrom != nil && p.Due.Before(*f.DueFrom) {
		return false
	}
	if f.DueTo != nil && p.Due.After(*f.DueTo) {
		return false
	}
	if f.OpenOnly && !p.IsOpen {
		return false
	}
	return true
}

type PeriodStore interface {
	CreatePeriod(ctx context.Context, p PaymentPeriod) error
	UpdatePeriod(ctx context.Context, p PaymentPeriod) error
	GetPeriod(ctx context.Context, id PeriodID) (PaymentPeriod, error)
	FindPeriod(ctx context.Context, key PeriodKey) (PaymentPeriod, bool, error)
	// ListPeriods returns periods ordered by due date.
	ListPeriods(ctx context.Context, f PeriodFilter) ([]PaymentPeriod, error)
}

// =============================================================================
// CONTRIBUTIONS
// =============================================================================

type ContributionFilter struct {
	StokvelID StokvelID
	MemberID  MemberID
	PeriodIDs []PeriodID
	Status    VerificationStatus
}

func (f ContributionFilter) Match(c Contribution) bool {
	if f.StokvelID != "" && c.StokvelID != f.StokvelID {
		return false
	}
	if f.MemberID != "" && c.MemberID != f.MemberID {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if len(f.PeriodIDs) > 0 {
		for _, id := range f.PeriodIDs {
			if c.PeriodID == id {
				return true
			}
		}
		return false
	}
	return true
}

type ContributionStore interface {
	CreateContribution(ctx context.Context, c Contribution) error
	UpdateContribution(ctx context.Context, c Contribution) error
	GetContribution(ctx context.Context, id ContributionID) (Contribution, error)
	FindContribution(ctx context.Context, member MemberID, period PeriodID) (Contribution, bool, error)
	ListContributions(ctx context.Context, f ContributionFilter) ([]Contribution, error)
}

// =============================================================================
// PENALTIES
// =============================================================================

type PenaltyFilter struct {
	StokvelID StokvelID
	MemberID  MemberID
	PeriodID  PeriodID
	Status    PenaltyStatus
}

func (f PenaltyFilter) Match(p Penalty) bool {
	if f.StokvelID != "" && p.StokvelID != f.StokvelID {
		return false
	}
	if f.MemberID != "" && p.MemberID != f.MemberID {
		return false
	}
	if f.PeriodID != "" && (p.PeriodID == nil || *p.PeriodID != f.PeriodID) {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	return true
}

type PenaltyStore interface {
	CreatePenalty(ctx context.Context, p Penalty) error
	UpdatePenalty(ctx context.Context, p Penalty) error
	GetPenalty(ctx context.Context, id PenaltyID) (Penalty, error)
	ListPenalties(ctx context.Context, f PenaltyFilter) ([]Penalty, error)
}

// =============================================================================
// STOKVELS, CYCLES, BANK ACCOUNTS
// =============================================================================

type StokvelStore interface {
	CreateStokvel(ctx context.Context, s Stokvel) error
	UpdateStokvel(ctx context.Context, s Stokvel) error
	GetStokvel(ctx context.Context, id StokvelID) (Stokvel, error)
	ListStokvels(ctx context.Context) ([]Stokvel, error)

	CreateCycle(ctx context.Context, c Cycle) error
	UpdateCycle(ctx context.Context, c Cycle) error
	GetCycle(ctx context.Context, id CycleID) (Cycle, error)
	ListCycles(ctx context.Context, stokvelID StokvelID) ([]Cycle, error)

	CreateBankAccount(ctx context.Context, b BankAccount) error
	UpdateBankAccount(ctx context.Context, b BankAccount) error
	GetBankAccount(ctx context.Context, id BankAccountID) (BankAccount, error)
	ListBankAccounts(ctx context.Context, stokvelID StokvelID) ([]BankAccount, error)
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// MemberRoster is owned by membership management. The engine only reads it;
// SaveMember exists so the roster can be seeded and synced.
type MemberRoster interface {
	SaveMember(ctx context.Context, m Member) error
	GetMember(ctx context.Context, id MemberID) (Member, error)
	ListMembers(ctx context.Context, stokvelID StokvelID) ([]Member, error)
	ActiveMembers(ctx context.Context, stokvelID StokvelID) ([]Member, error)
}

// Outbox stores notification events until an external sender picks them up.
type Outbox interface {
	Publish(ctx context.Context, events ...NotificationEvent) error
	// ListEvents returns the newest events first. limit <= 0 means no limit.
	ListEvents(ctx context.Context, stokvelID StokvelID, limit int) ([]NotificationEvent, error)
}

// =============================================================================
// RECONCILIATION RUNS
// =============================================================================

type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// ReconciliationRun records one ReportService run for audit.
type ReconciliationRun struct {
	ID               string
	StokvelID        StokvelID
	Window           Window
	AsOf             Date
	Status           RunStatus
	CollectionRate   decimal.Decimal
	PenaltiesApplied int
	Warnings         int
	Anomalies        int
	Error            string
	StartedAt        time.Time
	CompletedAt      time.Time
}

type RunStore interface {
	SaveReconciliationRun(ctx context.Context, r ReconciliationRun) error
	// ListReconciliationRuns returns the newest runs first.
	ListReconciliationRuns(ctx context.Context, stokvelID StokvelID, limit int) ([]ReconciliationRun, error)
}

// =============================================================================
// STORE - Everything, with transactions
// =============================================================================

type Store interface {
	RuleStore
	PeriodStore
	ContributionStore
	PenaltyStore
	StokvelStore
	MemberRoster
	Outbox
	RunStore
}

type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error

	// WithReadTx executes fn against a consistent read view.
	WithReadTx(ctx context.Context, fn func(Store) error) error
}

// LoadSnapshot reads everything Reconcile needs. Call it through
// WithReadTx so all reads see the same state.
func LoadSnapshot(ctx context.Context, s Store, stokvelID StokvelID, w Window, asOf Date) (Snapshot, error) {
	if err := w.Validate(); err != nil {
		return Snapshot{}, err
	}
	periods, err := s.ListPeriods(ctx, PeriodFilter{StokvelID: stokvelID, DueFrom: &w.From, DueTo: &w.To})
	if err != nil {
		return Snapshot{}, fmt.Errorf("list periods: %w", err)
	}
	members, err := s.ActiveMembers(ctx, stokvelID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("active members: %w", err)
	}
	var contributions []Contribution
	if len(periods) > 0 {
		ids := make([]PeriodID, len(periods))
		for i, p := range periods {
			ids[i] = p.ID
		}
		contributions, err = s.ListContributions(ctx, ContributionFilter{PeriodIDs: ids})
		if err != nil {
			return Snapshot{}, fmt.Errorf("list contributions: %w", err)
		}
	}
	rules, err := s.ListPenaltyRules(ctx, stokvelID, "")
	if err != nil {
		return Snapshot{}, fmt.Errorf("list penalty rules: %w", err)
	}
	return Snapshot{
		StokvelID:     stokvelID,
		AsOf:          asOf,
		Window:        w,
		Periods:       periods,
		Members:       members,
		Contributions: contributions,
		PenaltyRules:  rules,
	}, nil
}
