package stokvel

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/stokvela/finance-engine/finance"
)

// =============================================================================
// RULE SERVICE - Versioned rule writes
// =============================================================================

// RuleService owns every rule write. Writes to one (stokvel, kind,
// category) are serialized in-process by a keyed mutex, and the overlap
// check reads inside the same transaction as the write.
type RuleService struct {
	*base
	locks *keyedMutex
}

// ruleOps adapts the store's per-kind methods to the generic write path.
type ruleOps[R finance.VersionedRule] struct {
	list     func(ctx context.Context, s finance.Store, stokvelID finance.StokvelID, category string) ([]R, error)
	get      func(ctx context.Context, s finance.Store, id finance.RuleID) (R, error)
	create   func(ctx context.Context, s finance.Store, r R) error
	update   func(ctx context.Context, s finance.Store, r R) error
	validate func(r R) error
}

var contributionOps = ruleOps[finance.ContributionRule]{
	list: func(ctx context.Context, s finance.Store, stokvelID finance.StokvelID, category string) ([]finance.ContributionRule, error) {
		return s.ListContributionRules(ctx, stokvelID, finance.ContributionCategory(category))
	},
	get: func(ctx context.Context, s finance.Store, id finance.RuleID) (finance.ContributionRule, error) {
		return s.GetContributionRule(ctx, id)
	},
	create: func(ctx context.Context, s finance.Store, r finance.ContributionRule) error {
		return s.CreateContributionRule(ctx, r)
	},
	update: func(ctx context.Context, s finance.Store, r finance.ContributionRule) error {
		return s.UpdateContributionRule(ctx, r)
	},
	validate: finance.ContributionRule.Validate,
}

var penaltyOps = ruleOps[finance.PenaltyRule]{
	list: func(ctx context.Context, s finance.Store, stokvelID finance.StokvelID, category string) ([]finance.PenaltyRule, error) {
		return s.ListPenaltyRules(ctx, stokvelID, finance.PenaltyCategory(category))
	},
	get: func(ctx context.Context, s finance.Store, id finance.RuleID) (finance.PenaltyRule, error) {
		return s.GetPenaltyRule(ctx, id)
	},
	create: func(ctx context.Context, s finance.Store, r finance.PenaltyRule) error {
		return s.CreatePenaltyRule(ctx, r)
	},
	update: func(ctx context.Context, s finance.Store, r finance.PenaltyRule) error {
		return s.UpdatePenaltyRule(ctx, r)
	},
	validate: finance.PenaltyRule.Validate,
}

func lockKey[R finance.VersionedRule](r R) string {
	return string(r.Stokvel()) + "|" + string(r.Kind()) + "|" + r.CategoryKey()
}

// createRule validates r, checks it against its category and inserts it.
func createRule[R finance.VersionedRule](ctx context.Context, s *RuleService, ops ruleOps[R], r R) error {
	if err := ops.validate(r); err != nil {
		return err
	}
	defer s.locks.Lock(lockKey(r))()

	return s.store.WithTx(ctx, func(tx finance.Store) error {
		existing, err := ops.list(ctx, tx, r.Stokvel(), r.CategoryKey())
		if err != nil {
			return err
		}
		if err := finance.CheckOverlap(existing, r); err != nil {
			return err
		}
		return ops.create(ctx, tx, r)
	})
}

// updateRule applies mutate to the stored rule and writes the result. mutate
// must be deterministic: it runs once to learn the target category and again
// on the row read inside the transaction.
func updateRule[R finance.VersionedRule](ctx context.Context, s *RuleService, ops ruleOps[R], id finance.RuleID, mutate func(R) R) (R, error) {
	var zero R
	cur, err := ops.get(ctx, s.store, id)
	if err != nil {
		return zero, err
	}
	defer s.locks.LockAll(lockKey(cur), lockKey(mutate(cur)))()

	var out R
	err = s.store.WithTx(ctx, func(tx finance.Store) error {
		fresh, err := ops.get(ctx, tx, id)
		if err != nil {
			return err
		}
		next := mutate(fresh)
		if next.RuleID() != id || next.Stokvel() != fresh.Stokvel() {
			return &finance.ValidationError{Field: "id", Message: "rule id and stokvel cannot change"}
		}
		if err := ops.validate(next); err != nil {
			return err
		}
		existing, err := ops.list(ctx, tx, next.Stokvel(), next.CategoryKey())
		if err != nil {
			return err
		}
		if err := finance.CheckOverlap(existing, next); err != nil {
			return err
		}
		out = next
		return ops.update(ctx, tx, next)
	})
	return out, err
}

// closingDate is the effective_until a deactivation writes. Without an
// explicit end it is today, kept inside the rule's existing window.
func closingDate(w finance.Interval, end *finance.Date, today finance.Date) finance.Date {
	switch {
	case end != nil:
		return *end
	case today.Before(w.From):
		return w.From
	case w.Until != nil && w.Until.Before(today):
		return *w.Until
	}
	return today
}

// supersedeRule closes old on next's effective_from and creates next, under
// one lock and one transaction. The closing day is a hand-over day: old
// still covers it, and resolution prefers next.
func supersedeRule[R finance.VersionedRule](ctx context.Context, s *RuleService, ops ruleOps[R], oldID finance.RuleID, closeOld func(R, finance.Date) R, next R) error {
	if err := ops.validate(next); err != nil {
		return err
	}
	defer s.locks.Lock(lockKey(next))()

	return s.store.WithTx(ctx, func(tx finance.Store) error {
		old, err := ops.get(ctx, tx, oldID)
		if err != nil {
			return err
		}
		if lockKey(old) != lockKey(next) {
			return &finance.ValidationError{Field: "category", Message: "a new version must keep the stokvel and category"}
		}
		if next.Window().From.BeforeOrEqual(old.Window().From) {
			return &finance.ValidationError{Field: "effective_from", Message: "must be after the superseded rule's effective_from"}
		}
		if until := old.Window().Until; until == nil || until.After(next.Window().From) {
			if err := ops.update(ctx, tx, closeOld(old, next.Window().From)); err != nil {
				return err
			}
		}
		existing, err := ops.list(ctx, tx, next.Stokvel(), next.CategoryKey())
		if err != nil {
			return err
		}
		if err := finance.CheckOverlap(existing, next); err != nil {
			return err
		}
		return ops.create(ctx, tx, next)
	})
}

func (s *RuleService) record(kind finance.RuleKind, action string, id finance.RuleID, err error) {
	outcome := action
	var overlap *finance.OverlappingRuleError
	switch {
	case errors.As(err, &overlap):
		outcome = "overlap"
		s.log.Info("rule write rejected: overlap",
			zap.String("kind", string(kind)),
			zap.String("rule_id", string(id)),
			zap.String("category", overlap.Category),
			zap.Int("conflicts", len(overlap.Conflicts)),
		)
	case finance.IsClientError(err):
		outcome = "invalid"
	case err != nil:
		outcome = "error"
		s.log.Error("rule write failed", zap.String("kind", string(kind)), zap.String("rule_id", string(id)), zap.Error(err))
	default:
		s.log.Info("rule written", zap.String("kind", string(kind)), zap.String("action", action), zap.String("rule_id", string(id)))
	}
	s.metrics.IncrRuleWrite(string(kind), outcome)
}

// CreateRuleSet creates every rule of a constitution in one transaction.
// Each rule is overlap-checked against stored rules and the ones before it
// in the set; any failure creates nothing.
func (s *RuleService) CreateRuleSet(ctx context.Context, cs []finance.ContributionRule, ps []finance.PenaltyRule) ([]finance.ContributionRule, []finance.PenaltyRule, error) {
	cs = append([]finance.ContributionRule(nil), cs...)
	ps = append([]finance.PenaltyRule(nil), ps...)
	var keys []string
	for i := range cs {
		if cs[i].ID == "" {
			cs[i].ID = finance.RuleID(s.newID())
		}
		if cs[i].CreatedAt.IsZero() {
			cs[i].CreatedAt = s.now()
		}
		if err := cs[i].Validate(); err != nil {
			return nil, nil, err
		}
		keys = append(keys, lockKey(cs[i]))
	}
	for i := range ps {
		if ps[i].ID == "" {
			ps[i].ID = finance.RuleID(s.newID())
		}
		if ps[i].CreatedAt.IsZero() {
			ps[i].CreatedAt = s.now()
		}
		if err := ps[i].Validate(); err != nil {
			return nil, nil, err
		}
		keys = append(keys, lockKey(ps[i]))
	}
	defer s.locks.LockAll(keys...)()

	err := s.store.WithTx(ctx, func(tx finance.Store) error {
		for _, r := range cs {
			existing, err := tx.ListContributionRules(ctx, r.StokvelID, r.Category)
			if err != nil {
				return err
			}
			if err := finance.CheckOverlap(existing, r); err != nil {
				return err
			}
			if err := tx.CreateContributionRule(ctx, r); err != nil {
				return err
			}
		}
		for _, r := range ps {
			existing, err := tx.ListPenaltyRules(ctx, r.StokvelID, r.Category)
			if err != nil {
				return err
			}
			if err := finance.CheckOverlap(existing, r); err != nil {
				return err
			}
			if err := tx.CreatePenaltyRule(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
	outcome := "created"
	if err != nil {
		outcome = "rejected"
		if !finance.IsClientError(err) && !finance.IsConflict(err) {
			outcome = "error"
		}
	}
	s.metrics.IncrRuleWrite("rule_set", outcome)
	s.log.Info("rule set processed",
		zap.Int("contribution_rules", len(cs)),
		zap.Int("penalty_rules", len(ps)),
		zap.String("outcome", outcome),
	)
	if err != nil {
		return nil, nil, err
	}
	return cs, ps, nil
}

// =============================================================================
// CONTRIBUTION RULES
// =============================================================================

// CreateContributionRule assigns an id and creation time when missing.
func (s *RuleService) CreateContributionRule(ctx context.Context, r finance.ContributionRule) (finance.ContributionRule, error) {
	ctx, span := s.startSpan(ctx, "RuleService.CreateContributionRule", r.StokvelID)
	if r.ID == "" {
		r.ID = finance.RuleID(s.newID())
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	err := createRule(ctx, s, contributionOps, r)
	s.record(finance.KindContribution, "created", r.ID, err)
	endSpan(span, err)
	if err != nil {
		return finance.ContributionRule{}, err
	}
	return r, nil
}

// UpdateContributionRule replaces the editable fields of an existing rule.
func (s *RuleService) UpdateContributionRule(ctx context.Context, r finance.ContributionRule) (finance.ContributionRule, error) {
	ctx, span := s.startSpan(ctx, "RuleService.UpdateContributionRule", r.StokvelID)
	out, err := updateRule(ctx, s, contributionOps, r.ID, func(cur finance.ContributionRule) finance.ContributionRule {
		next := r
		next.StokvelID = cur.StokvelID
		next.CreatedAt = cur.CreatedAt
		return next
	})
	s.record(finance.KindContribution, "updated", r.ID, err)
	endSpan(span, err)
	return out, err
}

// DeactivateContributionRule turns the rule off and closes its window on end.
// A nil end means today, or effective_from when the rule has not started yet.
func (s *RuleService) DeactivateContributionRule(ctx context.Context, id finance.RuleID, end *finance.Date) (finance.ContributionRule, error) {
	today := s.today()
	out, err := updateRule(ctx, s, contributionOps, id, func(cur finance.ContributionRule) finance.ContributionRule {
		cur.IsActive = false
		cur.Effective = cur.Effective.Close(closingDate(cur.Effective, end, today))
		return cur
	})
	s.record(finance.KindContribution, "deactivated", id, err)
	return out, err
}

// ReactivateContributionRule turns the rule back on, subject to the overlap
// check like any other write.
func (s *RuleService) ReactivateContributionRule(ctx context.Context, id finance.RuleID) (finance.ContributionRule, error) {
	out, err := updateRule(ctx, s, contributionOps, id, func(cur finance.ContributionRule) finance.ContributionRule {
		cur.IsActive = true
		return cur
	})
	s.record(finance.KindContribution, "reactivated", id, err)
	return out, err
}

// SupersedeContributionRule closes oldID where next begins and creates next.
func (s *RuleService) SupersedeContributionRule(ctx context.Context, oldID finance.RuleID, next finance.ContributionRule) (finance.ContributionRule, error) {
	if next.ID == "" {
		next.ID = finance.RuleID(s.newID())
	}
	if next.CreatedAt.IsZero() {
		next.CreatedAt = s.now()
	}
	err := supersedeRule(ctx, s, contributionOps, oldID, func(old finance.ContributionRule, at finance.Date) finance.ContributionRule {
		old.Effective = old.Effective.Close(at)
		return old
	}, next)
	s.record(finance.KindContribution, "superseded", next.ID, err)
	if err != nil {
		return finance.ContributionRule{}, err
	}
	return next, nil
}

func (s *RuleService) GetContributionRule(ctx context.Context, id finance.RuleID) (finance.ContributionRule, error) {
	return s.store.GetContributionRule(ctx, id)
}

func (s *RuleService) ListContributionRules(ctx context.Context, stokvelID finance.StokvelID, category finance.ContributionCategory) ([]finance.ContributionRule, error) {
	return s.store.ListContributionRules(ctx, stokvelID, category)
}

// ResolveContributionRule returns the rule in force on asOf. The warning is
// non-nil when more than one rule matched.
func (s *RuleService) ResolveContributionRule(ctx context.Context, stokvelID finance.StokvelID, category finance.ContributionCategory, asOf finance.Date) (finance.ContributionRule, *finance.RuleIntegrityWarning, error) {
	rules, err := s.store.ListContributionRules(ctx, stokvelID, category)
	if err != nil {
		return finance.ContributionRule{}, nil, err
	}
	res := finance.ResolveContribution(rules, category, asOf)
	if !res.Found {
		return finance.ContributionRule{}, nil, &finance.NoApplicableRuleError{
			StokvelID: stokvelID, Kind: finance.KindContribution, Category: string(category), AsOf: asOf,
		}
	}
	if res.Warning != nil {
		s.warn(*res.Warning)
	}
	return res.Rule, res.Warning, nil
}

// =============================================================================
// PENALTY RULES
// =============================================================================

func (s *RuleService) CreatePenaltyRule(ctx context.Context, r finance.PenaltyRule) (finance.PenaltyRule, error) {
	ctx, span := s.startSpan(ctx, "RuleService.CreatePenaltyRule", r.StokvelID)
	if r.ID == "" {
		r.ID = finance.RuleID(s.newID())
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	err := createRule(ctx, s, penaltyOps, r)
	s.record(finance.KindPenalty, "created", r.ID, err)
	endSpan(span, err)
	if err != nil {
		return finance.PenaltyRule{}, err
	}
	return r, nil
}

func (s *RuleService) UpdatePenaltyRule(ctx context.Context, r finance.PenaltyRule) (finance.PenaltyRule, error) {
	ctx, span := s.startSpan(ctx, "RuleService.UpdatePenaltyRule", r.StokvelID)
	out, err := updateRule(ctx, s, penaltyOps, r.ID, func(cur finance.PenaltyRule) finance.PenaltyRule {
		next := r
		next.StokvelID = cur.StokvelID
		next.CreatedAt = cur.CreatedAt
		return next
	})
	s.record(finance.KindPenalty, "updated", r.ID, err)
	endSpan(span, err)
	return out, err
}

func (s *RuleService) DeactivatePenaltyRule(ctx context.Context, id finance.RuleID, end *finance.Date) (finance.PenaltyRule, error) {
	today := s.today()
	out, err := updateRule(ctx, s, penaltyOps, id, func(cur finance.PenaltyRule) finance.PenaltyRule {
		cur.IsActive = false
		cur.Effective = cur.Effective.Close(closingDate(cur.Effective, end, today))
		return cur
	})
	s.record(finance.KindPenalty, "deactivated", id, err)
	return out, err
}

func (s *RuleService) ReactivatePenaltyRule(ctx context.Context, id finance.RuleID) (finance.PenaltyRule, error) {
	out, err := updateRule(ctx, s, penaltyOps, id, func(cur finance.PenaltyRule) finance.PenaltyRule {
		cur.IsActive = true
		return cur
	})
	s.record(finance.KindPenalty, "reactivated", id, err)
	return out, err
}

func (s *RuleService) SupersedePenaltyRule(ctx context.Context, oldID finance.RuleID, next finance.PenaltyRule) (finance.PenaltyRule, error) {
	if next.ID == "" {
		next.ID = finance.RuleID(s.newID())
	}
	if next.CreatedAt.IsZero() {
		next.CreatedAt = s.now()
	}
	err := supersedeRule(ctx, s, penaltyOps, oldID, func(old finance.PenaltyRule, at finance.Date) finance.PenaltyRule {
		old.Effective = old.Effective.Close(at)
		return old
	}, next)
	s.record(finance.KindPenalty, "superseded", next.ID, err)
	if err != nil {
		return finance.PenaltyRule{}, err
	}
	return next, nil
}

func (s *RuleService) GetPenaltyRule(ctx context.Context, id finance.RuleID) (finance.PenaltyRule, error) {
	return s.store.GetPenaltyRule(ctx, id)
}

func (s *RuleService) ListPenaltyRules(ctx context.Context, stokvelID finance.StokvelID, category finance.PenaltyCategory) ([]finance.PenaltyRule, error) {
	return s.store.ListPenaltyRules(ctx, stokvelID, category)
}

func (s *RuleService) ResolvePenaltyRule(ctx context.Context, stokvelID finance.StokvelID, category finance.PenaltyCategory, asOf finance.Date) (finance.PenaltyRule, *finance.RuleIntegrityWarning, error) {
	rules, err := s.store.ListPenaltyRules(ctx, stokvelID, category)
	if err != nil {
		return finance.PenaltyRule{}, nil, err
	}
	res := finance.ResolvePenalty(rules, category, asOf)
	if !res.Found {
		return finance.PenaltyRule{}, nil, &finance.NoApplicableRuleError{
			StokvelID: stokvelID, Kind: finance.KindPenalty, Category: string(category), AsOf: asOf,
		}
	}
	if res.Warning != nil {
		s.warn(*res.Warning)
	}
	return res.Rule, res.Warning, nil
}
