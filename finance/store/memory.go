// Package store provides an in-memory finance.TxStore for tests and local
// development.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/stokvela/finance-engine/finance"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements finance.TxStore. Every call holds mu; WithTx and
// WithReadTx hold it for the whole callback, so transactions are fully
// serialized.
type Memory struct {
	mu sync.Mutex
	st *state
}

var _ finance.TxStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{st: newState()}
}

// WithTx executes fn within a transaction.
// For the memory store this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(finance.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(m.st); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// WithReadTx gives fn exclusive access, which is trivially consistent.
func (m *Memory) WithReadTx(_ context.Context, fn func(finance.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.st)
}

func (m *Memory) lock() func() {
	m.mu.Lock()
	return m.mu.Unlock
}

// Rules

func (m *Memory) CreateContributionRule(ctx context.Context, r finance.ContributionRule) error {
	defer m.lock()()
	return m.st.CreateContributionRule(ctx, r)
}

func (m *Memory) UpdateContributionRule(ctx context.Context, r finance.ContributionRule) error {
	defer m.lock()()
	return m.st.UpdateContributionRule(ctx, r)
}

func (m *Memory) GetContributionRule(ctx context.Context, id finance.RuleID) (finance.ContributionRule, error) {
	defer m.lock()()
	return m.st.GetContributionRule(ctx, id)
}

func (m *Memory) ListContributionRules(ctx context.Context, stokvelID finance.StokvelID, category finance.ContributionCategory) ([]finance.ContributionRule, error) {
	defer m.lock()()
	return m.st.ListContributionRules(ctx, stokvelID, category)
}

func (m *Memory) CreatePenaltyRule(ctx context.Context, r finance.PenaltyRule) error {
	defer m.lock()()
	return m.st.CreatePenaltyRule(ctx, r)
}

func (m *Memory) UpdatePenaltyRule(ctx context.Context, r finance.PenaltyRule) error {
	defer m.lock()()
	return m.st.UpdatePenaltyRule(ctx, r)
}

func (m *Memory) GetPenaltyRule(ctx context.Context, id finance.RuleID) (finance.PenaltyRule, error) {
	defer m.lock()()
	return m.st.GetPenaltyRule(ctx, id)
}

func (m *Memory) ListPenaltyRules(ctx context.Context, stokvelID finance.StokvelID, category finance.PenaltyCategory) ([]finance.PenaltyRule, error) {
	defer m.lock()()
	return m.st.ListPenaltyRules(ctx, stokvelID, category)
}

// Periods

func (m *Memory) CreatePeriod(ctx context.Context, p finance.PaymentPeriod) error {
	defer m.lock()()
	return m.st.CreatePeriod(ctx, p)
}

func (m *Memory) UpdatePeriod(ctx context.Context, p finance.PaymentPeriod) error {
	defer m.lock()()
	return m.st.UpdatePeriod(ctx, p)
}

func (m *Memory) GetPeriod(ctx context.Context, id finance.PeriodID) (finance.PaymentPeriod, error) {
	defer m.lock()()
	return m.st.GetPeriod(ctx, id)
}

func (m *Memory) FindPeriod(ctx context.Context, key finance.PeriodKey) (finance.PaymentPeriod, bool, error) {
	defer m.lock()()
	return m.st.FindPeriod(ctx, key)
}

func (m *Memory) ListPeriods(ctx context.Context, f finance.PeriodFilter) ([]finance.PaymentPeriod, error) {
	defer m.lock()()
	return m.st.ListPeriods(ctx, f)
}

// Contributions

func (m *Memory) CreateContribution(ctx context.Context, c finance.Contribution) error {
	defer m.lock()()
	return m.st.CreateContribution(ctx, c)
}

func (m *Memory) UpdateContribution(ctx context.Context, c finance.Contribution) error {
	defer m.lock()()
	return m.st.UpdateContribution(ctx, c)
}

func (m *Memory) GetContribution(ctx context.Context, id finance.ContributionID) (finance.Contribution, error) {
	defer m.lock()()
	return m.st.GetContribution(ctx, id)
}

func (m *Memory) FindContribution(ctx context.Context, member finance.MemberID, period finance.PeriodID) (finance.Contribution, bool, error) {
	defer m.lock()()
	return m.st.FindContribution(ctx, member, period)
}

func (m *Memory) ListContributions(ctx context.Context, f finance.ContributionFilter) ([]finance.Contribution, error) {
	defer m.lock()()
	return m.st.ListContributions(ctx, f)
}

// Penalties

func (m *Memory) CreatePenalty(ctx context.Context, p finance.Penalty) error {
	defer m.lock()()
	return m.st.CreatePenalty(ctx, p)
}

func (m *Memory) UpdatePenalty(ctx context.Context, p finance.Penalty) error {
	defer m.lock()()
	return m.st.UpdatePenalty(ctx, p)
}

func (m *Memory) GetPenalty(ctx context.Context, id finance.PenaltyID) (finance.Penalty, error) {
	defer m.lock()()
	return m.st.GetPenalty(ctx, id)
}

func (m *Memory) ListPenalties(ctx context.Context, f finance.PenaltyFilter) ([]finance.Penalty, error) {
	defer m.lock()()
	return m.st.ListPenalties(ctx, f)
}

// Stokvels, cycles, bank accounts

func (m *Memory) CreateStokvel(ctx context.Context, s finance.Stokvel) error {
	defer m.lock()()
	return m.st.CreateStokvel(ctx, s)
}

func (m *Memory) UpdateStokvel(ctx context.Context, s finance.Stokvel) error {
	defer m.lock()()
	return m.st.UpdateStokvel(ctx, s)
}

func (m *Memory) GetStokvel(ctx context.Context, id finance.StokvelID) (finance.Stokvel, error) {
	defer m.lock()()
	return m.st.GetStokvel(ctx, id)
}

func (m *Memory) ListStokvels(ctx context.Context) ([]finance.Stokvel, error) {
	defer m.lock()()
	return m.st.ListStokvels(ctx)
}

func (m *Memory) CreateCycle(ctx context.Context, c finance.Cycle) error {
	defer m.lock()()
	return m.st.CreateCycle(ctx, c)
}

func (m *Memory) UpdateCycle(ctx context.Context, c finance.Cycle) error {
	defer m.lock()()
	return m.st.UpdateCycle(ctx, c)
}

func (m *Memory) GetCycle(ctx context.Context, id finance.CycleID) (finance.Cycle, error) {
	defer m.lock()()
	return m.st.GetCycle(ctx, id)
}

func (m *Memory) ListCycles(ctx context.Context, stokvelID finance.StokvelID) ([]finance.Cycle, error) {
	defer m.lock()()
	return m.st.ListCycles(ctx, stokvelID)
}

func (m *Memory) CreateBankAccount(ctx context.Context, b finance.BankAccount) error {
	defer m.lock()()
	return m.st.CreateBankAccount(ctx, b)
}

func (m *Memory) UpdateBankAccount(ctx context.Context, b finance.BankAccount) error {
	defer m.lock()()
	return m.st.UpdateBankAccount(ctx, b)
}

func (m *Memory) GetBankAccount(ctx context.Context, id finance.BankAccountID) (finance.BankAccount, error) {
	defer m.lock()()
	return m.st.GetBankAccount(ctx, id)
}

func (m *Memory) ListBankAccounts(ctx context.Context, stokvelID finance.StokvelID) ([]finance.BankAccount, error) {
	defer m.lock()()
	return m.st.ListBankAccounts(ctx, stokvelID)
}

// Roster and outbox

func (m *Memory) SaveMember(ctx context.Context, mem finance.Member) error {
	defer m.lock()()
	return m.st.SaveMember(ctx, mem)
}

func (m *Memory) GetMember(ctx context.Context, id finance.MemberID) (finance.Member, error) {
	defer m.lock()()
	return m.st.GetMember(ctx, id)
}

func (m *Memory) ListMembers(ctx context.Context, stokvelID finance.StokvelID) ([]finance.Member, error) {
	defer m.lock()()
	return m.st.ListMembers(ctx, stokvelID)
}

func (m *Memory) ActiveMembers(ctx context.Context, stokvelID finance.StokvelID) ([]finance.Member, error) {
	defer m.lock()()
	return m.st.ActiveMembers(ctx, stokvelID)
}

func (m *Memory) Publish(ctx context.Context, events ...finance.NotificationEvent) error {
	defer m.lock()()
	return m.st.Publish(ctx, events...)
}

func (m *Memory) ListEvents(ctx context.Context, stokvelID finance.StokvelID, limit int) ([]finance.NotificationEvent, error) {
	defer m.lock()()
	return m.st.ListEvents(ctx, stokvelID, limit)
}

func (m *Memory) SaveReconciliationRun(ctx context.Context, r finance.ReconciliationRun) error {
	defer m.lock()()
	return m.st.SaveReconciliationRun(ctx, r)
}

func (m *Memory) ListReconciliationRuns(ctx context.Context, stokvelID finance.StokvelID, limit int) ([]finance.ReconciliationRun, error) {
	defer m.lock()()
	return m.st.ListReconciliationRuns(ctx, stokvelID, limit)
}

// =============================================================================
// STATE - Unlocked implementation shared by Memory and its transactions
// =============================================================================

type contributionKey struct {
	member finance.MemberID
	period finance.PeriodID
}

type penaltyKey struct {
	member finance.MemberID
	period finance.PeriodID
	rule   finance.RuleID
}

type state struct {
	stokvels      map[finance.StokvelID]finance.Stokvel
	members       map[finance.MemberID]finance.Member
	contribRules  map[finance.RuleID]finance.ContributionRule
	penaltyRules  map[finance.RuleID]finance.PenaltyRule
	periods       map[finance.PeriodID]finance.PaymentPeriod
	periodKeys    map[finance.PeriodKey]finance.PeriodID
	contributions map[finance.ContributionID]finance.Contribution
	contribKeys   map[contributionKey]finance.ContributionID
	penalties     map[finance.PenaltyID]finance.Penalty
	penaltyKeys   map[penaltyKey]finance.PenaltyID
	cycles        map[finance.CycleID]finance.Cycle
	accounts      map[finance.BankAccountID]finance.BankAccount
	events        []finance.NotificationEvent
	runs          []finance.ReconciliationRun
}

func newState() *state {
	return &state{
		stokvels:      make(map[finance.StokvelID]finance.Stokvel),
		members:       make(map[finance.MemberID]finance.Member),
		contribRules:  make(map[finance.RuleID]finance.ContributionRule),
		penaltyRules:  make(map[finance.RuleID]finance.PenaltyRule),
		periods:       make(map[finance.PeriodID]finance.PaymentPeriod),
		periodKeys:    make(map[finance.PeriodKey]finance.PeriodID),
		contributions: make(map[finance.ContributionID]finance.Contribution),
		contribKeys:   make(map[contributionKey]finance.ContributionID),
		penalties:     make(map[finance.PenaltyID]finance.Penalty),
		penaltyKeys:   make(map[penaltyKey]finance.PenaltyID),
		cycles:        make(map[finance.CycleID]finance.Cycle),
		accounts:      make(map[finance.BankAccountID]finance.BankAccount),
	}
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (s *state) clone() *state {
	return &state{
		stokvels:      copyMap(s.stokvels),
		members:       copyMap(s.members),
		contribRules:  copyMap(s.contribRules),
		penaltyRules:  copyMap(s.penaltyRules),
		periods:       copyMap(s.periods),
		periodKeys:    copyMap(s.periodKeys),
		contributions: copyMap(s.contributions),
		contribKeys:   copyMap(s.contribKeys),
		penalties:     copyMap(s.penalties),
		penaltyKeys:   copyMap(s.penaltyKeys),
		cycles:        copyMap(s.cycles),
		accounts:      copyMap(s.accounts),
		events:        append([]finance.NotificationEvent(nil), s.events...),
		runs:          append([]finance.ReconciliationRun(nil), s.runs...),
	}
}

// Rules

func (s *state) CreateContributionRule(_ context.Context, r finance.ContributionRule) error {
	s.contribRules[r.ID] = r
	return nil
}

func (s *state) UpdateContributionRule(_ context.Context, r finance.ContributionRule) error {
	if _, ok := s.contribRules[r.ID]; !ok {
		return finance.NotFound("contribution rule", r.ID)
	}
	s.contribRules[r.ID] = r
	return nil
}

func (s *state) GetContributionRule(_ context.Context, id finance.RuleID) (finance.ContributionRule, error) {
	r, ok := s.contribRules[id]
	if !ok {
		return finance.ContributionRule{}, finance.NotFound("contribution rule", id)
	}
	return r, nil
}

func (s *state) ListContributionRules(_ context.Context, stokvelID finance.StokvelID, category finance.ContributionCategory) ([]finance.ContributionRule, error) {
	var out []finance.ContributionRule
	for _, r := range s.contribRules {
		if r.StokvelID == stokvelID && (category == "" || r.Category == category) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Effective.From.Equal(out[j].Effective.From) {
			return out[i].Effective.From.Before(out[j].Effective.From)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *state) CreatePenaltyRule(_ context.Context, r finance.PenaltyRule) error {
	s.penaltyRules[r.ID] = r
	return nil
}

func (s *state) UpdatePenaltyRule(_ context.Context, r finance.PenaltyRule) error {
	if _, ok := s.penaltyRules[r.ID]; !ok {
		return finance.NotFound("penalty rule", r.ID)
	}
	s.penaltyRules[r.ID] = r
	return nil
}

func (s *state) GetPenaltyRule(_ context.Context, id finance.RuleID) (finance.PenaltyRule, error) {
	r, ok := s.penaltyRules[id]
	if !ok {
		return finance.PenaltyRule{}, finance.NotFound("penalty rule", id)
	}
	return r, nil
}

func (s *state) ListPenaltyRules(_ context.Context, stokvelID finance.StokvelID, category finance.PenaltyCategory) ([]finance.PenaltyRule, error) {
	var out []finance.PenaltyRule
	for _, r := range s.penaltyRules {
		if r.StokvelID == stokvelID && (category == "" || r.Category == category) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Effective.From.Equal(out[j].Effective.From) {
			return out[i].Effective.From.Before(out[j].Effective.From)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Periods

func (s *state) CreatePeriod(_ context.Context, p finance.PaymentPeriod) error {
	if _, exists := s.periodKeys[p.Key()]; exists {
		return finance.ErrDuplicatePeriod
	}
	s.periods[p.ID] = p
	s.periodKeys[p.Key()] = p.ID
	return nil
}

func (s *state) UpdatePeriod(_ context.Context, p finance.PaymentPeriod) error {
	old, ok := s.periods[p.ID]
	if !ok {
		return finance.NotFound("payment period", p.ID)
	}
	delete(s.periodKeys, old.Key())
	s.periods[p.ID] = p
	s.periodKeys[p.Key()] = p.ID
	return nil
}

func (s *state) GetPeriod(_ context.Context, id finance.PeriodID) (finance.PaymentPeriod, error) {
	p, ok := s.periods[id]
	if !ok {
		return finance.PaymentPeriod{}, finance.NotFound("payment period", id)
	}
	return p, nil
}

func (s *state) FindPeriod(_ context.Context, key finance.PeriodKey) (finance.PaymentPeriod, bool, error) {
	id, ok := s.periodKeys[key]
	if !ok {
		return finance.PaymentPeriod{}, false, nil
	}
	return s.periods[id], true, nil
}

func (s *state) ListPeriods(_ context.Context, f finance.PeriodFilter) ([]finance.PaymentPeriod, error) {
	var out []finance.PaymentPeriod
	for _, p := range s.periods {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Due.Equal(out[j].Due) {
			return out[i].Due.Before(out[j].Due)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Contributions

func (s *state) CreateContribution(_ context.Context, c finance.Contribution) error {
	k := contributionKey{member: c.MemberID, period: c.PeriodID}
	if _, exists := s.contribKeys[k]; exists {
		return finance.ErrDuplicateContribution
	}
	s.contributions[c.ID] = c
	s.contribKeys[k] = c.ID
	return nil
}

func (s *state) UpdateContribution(_ context.Context, c finance.Contribution) error {
	if _, ok := s.contributions[c.ID]; !ok {
		return finance.NotFound("contribution", c.ID)
	}
	s.contributions[c.ID] = c
	return nil
}

func (s *state) GetContribution(_ context.Context, id finance.ContributionID) (finance.Contribution, error) {
	c, ok := s.contributions[id]
	if !ok {
		return finance.Contribution{}, finance.NotFound("contribution", id)
	}
	return c, nil
}

func (s *state) FindContribution(_ context.Context, member finance.MemberID, period finance.PeriodID) (finance.Contribution, bool, error) {
	id, ok := s.contribKeys[contributionKey{member: member, period: period}]
	if !ok {
		return finance.Contribution{}, false, nil
	}
	return s.contributions[id], true, nil
}

func (s *state) ListContributions(_ context.Context, f finance.ContributionFilter) ([]finance.Contribution, error) {
	var out []finance.Contribution
	for _, c := range s.contributions {
		if f.Match(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PaymentDate.Equal(out[j].PaymentDate) {
			return out[i].PaymentDate.Before(out[j].PaymentDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Penalties

func (s *state) CreatePenalty(_ context.Context, p finance.Penalty) error {
	if p.Source == finance.SourceEngine && p.PeriodID != nil {
		k := penaltyKey{member: p.MemberID, period: *p.PeriodID, rule: p.RuleID}
		if _, exists := s.penaltyKeys[k]; exists {
			return finance.ErrDuplicatePenalty
		}
		s.penaltyKeys[k] = p.ID
	}
	s.penalties[p.ID] = p
	return nil
}

func (s *state) UpdatePenalty(_ context.Context, p finance.Penalty) error {
	if _, ok := s.penalties[p.ID]; !ok {
		return finance.NotFound("penalty", p.ID)
	}
	s.penalties[p.ID] = p
	return nil
}

func (s *state) GetPenalty(_ context.Context, id finance.PenaltyID) (finance.Penalty, error) {
	p, ok := s.penalties[id]
	if !ok {
		return finance.Penalty{}, finance.NotFound("penalty", id)
	}
	return p, nil
}

func (s *state) ListPenalties(_ context.Context, f finance.PenaltyFilter) ([]finance.Penalty, error) {
	var out []finance.Penalty
	for _, p := range s.penalties {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AppliedDate.Equal(out[j].AppliedDate) {
			return out[i].AppliedDate.Before(out[j].AppliedDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Stokvels

func (s *state) CreateStokvel(_ context.Context, sv finance.Stokvel) error {
	s.stokvels[sv.ID] = sv
	return nil
}

func (s *state) UpdateStokvel(_ context.Context, sv finance.Stokvel) error {
	if _, ok := s.stokvels[sv.ID]; !ok {
		return finance.NotFound("stokvel", sv.ID)
	}
	s.stokvels[sv.ID] = sv
	return nil
}

func (s *state) GetStokvel(_ context.Context, id finance.StokvelID) (finance.Stokvel, error) {
	sv, ok := s.stokvels[id]
	if !ok {
		return finance.Stokvel{}, finance.NotFound("stokvel", id)
	}
	return sv, nil
}

func (s *state) ListStokvels(_ context.Context) ([]finance.Stokvel, error) {
	out := make([]finance.Stokvel, 0, len(s.stokvels))
	for _, sv := range s.stokvels {
		out = append(out, sv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *state) CreateCycle(_ context.Context, c finance.Cycle) error {
	s.cycles[c.ID] = c
	return nil
}

func (s *state) UpdateCycle(_ context.Context, c finance.Cycle) error {
	if _, ok := s.cycles[c.ID]; !ok {
		return finance.NotFound("cycle", c.ID)
	}
	s.cycles[c.ID] = c
	return nil
}

func (s *state) GetCycle(_ context.Context, id finance.CycleID) (finance.Cycle, error) {
	c, ok := s.cycles[id]
	if !ok {
		return finance.Cycle{}, finance.NotFound("cycle", id)
	}
	return c, nil
}

func (s *state) ListCycles(_ context.Context, stokvelID finance.StokvelID) ([]finance.Cycle, error) {
	var out []finance.Cycle
	for _, c := range s.cycles {
		if c.StokvelID == stokvelID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *state) CreateBankAccount(_ context.Context, b finance.BankAccount) error {
	s.accounts[b.ID] = b
	return nil
}

func (s *state) UpdateBankAccount(_ context.Context, b finance.BankAccount) error {
	if _, ok := s.accounts[b.ID]; !ok {
		return finance.NotFound("bank account", b.ID)
	}
	s.accounts[b.ID] = b
	return nil
}

func (s *state) GetBankAccount(_ context.Context, id finance.BankAccountID) (finance.BankAccount, error) {
	b, ok := s.accounts[id]
	if !ok {
		return finance.BankAccount{}, finance.NotFound("bank account", id)
	}
	return b, nil
}

func (s *state) ListBankAccounts(_ context.Context, stokvelID finance.StokvelID) ([]finance.BankAccount, error) {
	var out []finance.BankAccount
	for _, b := range s.accounts {
		if b.StokvelID == stokvelID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Roster

func (s *state) SaveMember(_ context.Context, m finance.Member) error {
	s.members[m.ID] = m
	return nil
}

func (s *state) GetMember(_ context.Context, id finance.MemberID) (finance.Member, error) {
	m, ok := s.members[id]
	if !ok {
		return finance.Member{}, finance.NotFound("member", id)
	}
	return m, nil
}

func (s *state) ListMembers(_ context.Context, stokvelID finance.StokvelID) ([]finance.Member, error) {
	var out []finance.Member
	for _, m := range s.members {
		if m.StokvelID == stokvelID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *state) ActiveMembers(ctx context.Context, stokvelID finance.StokvelID) ([]finance.Member, error) {
	all, _ := s.ListMembers(ctx, stokvelID)
	var out []finance.Member
	for _, m := range all {
		if m.Status == finance.MemberActive {
			out = append(out, m)
		}
	}
	return out, nil
}

// Outbox

func (s *state) Publish(_ context.Context, events ...finance.NotificationEvent) error {
	s.events = append(s.events, events...)
	return nil
}

func (s *state) ListEvents(_ context.Context, stokvelID finance.StokvelID, limit int) ([]finance.NotificationEvent, error) {
	var out []finance.NotificationEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].StokvelID != stokvelID {
			continue
		}
		out = append(out, s.events[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Runs

func (s *state) SaveReconciliationRun(_ context.Context, r finance.ReconciliationRun) error {
	s.runs = append(s.runs, r)
	return nil
}

func (s *state) ListReconciliationRuns(_ context.Context, stokvelID finance.StokvelID, limit int) ([]finance.ReconciliationRun, error) {
	var out []finance.ReconciliationRun
	for i := len(s.runs) - 1; i >= 0; i-- {
		if s.runs[i].StokvelID != stokvelID {
			continue
		}
		out = append(out, s.runs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
