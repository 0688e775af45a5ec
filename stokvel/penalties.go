package stokvel

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stokvela/finance-engine/finance"
)

// =============================================================================
// PENALTY SERVICE
// =============================================================================

type PenaltyService struct {
	*base
}

// ApplyResult lists what ApplyAssessments wrote and skipped.
type ApplyResult struct {
	Applied []finance.Penalty
	// Existing counts assessments already persisted by an earlier run.
	Existing int
	// Suppressed counts assessments in periods with auto penalties off.
	Suppressed int
}

// ApplyAssessments persists the chargeable assessments of a report as
// engine penalties and queues a notification for each. Engine penalties are
// unique per (member, period, rule), so rerunning a report applies nothing
// twice.
func (s *PenaltyService) ApplyAssessments(ctx context.Context, rep finance.Report) (ApplyResult, error) {
	ctx, span := s.startSpan(ctx, "PenaltyService.ApplyAssessments", rep.StokvelID)
	var res ApplyResult
	err := s.store.WithTx(ctx, func(tx finance.Store) error {
		res = ApplyResult{}
		return s.apply(ctx, tx, rep, &res)
	})
	endSpan(span, err)
	if err != nil {
		return ApplyResult{}, err
	}
	for _, p := range res.Applied {
		s.metrics.IncrPenalty(string(p.Category))
	}
	s.log.Info("penalties applied",
		zap.String("stokvel_id", string(rep.StokvelID)),
		zap.Int("applied", len(res.Applied)),
		zap.Int("existing", res.Existing),
		zap.Int("suppressed", res.Suppressed),
	)
	return res, nil
}

func (s *PenaltyService) apply(ctx context.Context, tx finance.Store, rep finance.Report, res *ApplyResult) error {
	periods := make(map[finance.PeriodID]finance.PaymentPeriod)
	rules := make(map[finance.RuleID]finance.PenaltyRule)

	for _, line := range rep.Lines {
		for _, a := range line.Assessments {
			if !a.Chargeable() {
				continue
			}
			p, ok := periods[a.PeriodID]
			if !ok {
				var err error
				if p, err = tx.GetPeriod(ctx, a.PeriodID); err != nil {
					return err
				}
				periods[a.PeriodID] = p
			}
			if !p.AutoGeneratePenalties {
				res.Suppressed++
				continue
			}
			rule, ok := rules[a.RuleID]
			if !ok {
				var err error
				if rule, err = tx.GetPenaltyRule(ctx, a.RuleID); err != nil {
					return err
				}
				rules[a.RuleID] = rule
			}

			periodID := a.PeriodID
			pen := finance.NewPenalty(finance.PenaltyID(s.newID()), rule, a.MemberID, &periodID,
				a.Amount, a.Reason(line.PeriodLabel), rep.AsOf, finance.SourceEngine)
			pen.CreatedAt = s.now()

			err := tx.CreatePenalty(ctx, pen)
			if errors.Is(err, finance.ErrDuplicatePenalty) {
				res.Existing++
				continue
			}
			if err != nil {
				return err
			}
			if err := s.publishApplied(ctx, tx, pen); err != nil {
				return err
			}
			res.Applied = append(res.Applied, pen)
		}
	}
	return nil
}

type penaltyAppliedPayload struct {
	PenaltyID string `json:"penalty_id"`
	Category  string `json:"category"`
	Amount    string `json:"amount"`
	Reason    string `json:"reason"`
}

func (s *PenaltyService) publishApplied(ctx context.Context, tx finance.Store, p finance.Penalty) error {
	member := p.MemberID
	ev, err := s.event(p.StokvelID, finance.EventPenaltyApplied, &member, p.PeriodID, penaltyAppliedPayload{
		PenaltyID: string(p.ID),
		Category:  string(p.Category),
		Amount:    p.Amount.StringFixed(2),
		Reason:    p.Reason,
	})
	if err != nil {
		return err
	}
	return tx.Publish(ctx, ev)
}

// ManualPenalty is a penalty an administrator applies directly. A zero
// Amount is computed from the rule with Base and DaysLate.
type ManualPenalty struct {
	StokvelID   finance.StokvelID
	MemberID    finance.MemberID
	PeriodID    *finance.PeriodID
	RuleID      finance.RuleID
	Amount      decimal.Decimal
	Base        decimal.Decimal
	DaysLate    int
	Reason      string
	AppliedDate finance.Date
}

// Apply records a manual penalty. Manual penalties are not deduplicated.
func (s *PenaltyService) Apply(ctx context.Context, req ManualPenalty) (finance.Penalty, error) {
	ctx, span := s.startSpan(ctx, "PenaltyService.Apply", req.StokvelID)
	var out finance.Penalty
	err := s.store.WithTx(ctx, func(tx finance.Store) error {
		rule, err := tx.GetPenaltyRule(ctx, req.RuleID)
		if err != nil {
			return err
		}
		if rule.StokvelID != req.StokvelID {
			return &finance.ValidationError{Field: "penalty_rule_id", Message: "belongs to another stokvel"}
		}
		m, err := tx.GetMember(ctx, req.MemberID)
		if err != nil {
			return err
		}
		if m.StokvelID != req.StokvelID {
			return &finance.ValidationError{Field: "member_id", Message: "is not a member of this stokvel"}
		}
		if req.PeriodID != nil {
			p, err := tx.GetPeriod(ctx, *req.PeriodID)
			if err != nil {
				return err
			}
			if p.StokvelID != req.StokvelID {
				return &finance.ValidationError{Field: "payment_period_id", Message: "belongs to another stokvel"}
			}
		}

		amount := req.Amount
		if amount.IsZero() {
			amount = finance.CalculatePenalty(rule, req.Base, req.DaysLate)
		}
		if !amount.IsPositive() {
			return &finance.ValidationError{Field: "amount", Message: "penalty amount must be greater than zero"}
		}
		applied := req.AppliedDate
		if applied.IsZero() {
			applied = s.today()
		}
		reason := req.Reason
		if reason == "" {
			reason = rule.Name
		}

		out = finance.NewPenalty(finance.PenaltyID(s.newID()), rule, req.MemberID, req.PeriodID, amount, reason, applied, finance.SourceManual)
		out.CreatedAt = s.now()
		if err := tx.CreatePenalty(ctx, out); err != nil {
			return err
		}
		return s.publishApplied(ctx, tx, out)
	})
	endSpan(span, err)
	if err != nil {
		return finance.Penalty{}, err
	}
	s.metrics.IncrPenalty(string(out.Category))
	s.log.Info("manual penalty applied",
		zap.String("penalty_id", string(out.ID)),
		zap.String("member_id", string(out.MemberID)),
		zap.String("amount", out.Amount.StringFixed(2)),
	)
	return out, nil
}

func (s *PenaltyService) update(ctx context.Context, id finance.PenaltyID, fn func(*finance.Penalty) error) (finance.Penalty, error) {
	var out finance.Penalty
	err := s.store.WithTx(ctx, func(tx finance.Store) error {
		p, err := tx.GetPenalty(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(&p); err != nil {
			return err
		}
		out = p
		return tx.UpdatePenalty(ctx, p)
	})
	return out, err
}

// Waive cancels whatever is outstanding on the penalty.
func (s *PenaltyService) Waive(ctx context.Context, id finance.PenaltyID, by, reason string) (finance.Penalty, error) {
	p, err := s.update(ctx, id, func(p *finance.Penalty) error { return p.Waive(by, reason) })
	if err == nil {
		s.log.Info("penalty waived", zap.String("penalty_id", string(id)), zap.String("by", by))
	}
	return p, err
}

// RecordPayment adds a full or partial payment. A zero date means today.
func (s *PenaltyService) RecordPayment(ctx context.Context, id finance.PenaltyID, amount decimal.Decimal, on finance.Date) (finance.Penalty, error) {
	if on.IsZero() {
		on = s.today()
	}
	return s.update(ctx, id, func(p *finance.Penalty) error { return p.RecordPayment(amount, on) })
}

func (s *PenaltyService) Get(ctx context.Context, id finance.PenaltyID) (finance.Penalty, error) {
	return s.store.GetPenalty(ctx, id)
}

func (s *PenaltyService) List(ctx context.Context, f finance.PenaltyFilter) ([]finance.Penalty, error) {
	return s.store.ListPenalties(ctx, f)
}
