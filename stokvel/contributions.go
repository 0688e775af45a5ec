package stokvel

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stokvela/finance-engine/finance"
)

// =============================================================================
// CONTRIBUTION SERVICE
// =============================================================================

type ContributionService struct {
	*base
}

// RecordRequest is a member's payment as submitted.
type RecordRequest struct {
	StokvelID   finance.StokvelID
	MemberID    finance.MemberID
	PeriodID    finance.PeriodID
	Amount      decimal.Decimal
	PaymentDate finance.Date
	Method      finance.PaymentMethod
	Reference   string
	Notes       string
}

// Record stores a pending contribution. A member has at most one record per
// period; corrections go through Resubmit.
func (s *ContributionService) Record(ctx context.Context, req RecordRequest) (finance.Contribution, error) {
	ctx, span := s.startSpan(ctx, "ContributionService.Record", req.StokvelID)
	c := finance.Contribution{
		ID:          finance.ContributionID(s.newID()),
		StokvelID:   req.StokvelID,
		MemberID:    req.MemberID,
		PeriodID:    req.PeriodID,
		Amount:      req.Amount,
		PaymentDate: req.PaymentDate,
		Method:      req.Method,
		Reference:   req.Reference,
		Status:      finance.StatusPending,
		Notes:       req.Notes,
		CreatedAt:   s.now(),
	}
	err := s.record(ctx, c)
	endSpan(span, err)
	if err != nil {
		s.metrics.IncrContribution("rejected_input")
		return finance.Contribution{}, err
	}
	s.metrics.IncrContribution("recorded")
	s.log.Info("contribution recorded",
		zap.String("stokvel_id", string(c.StokvelID)),
		zap.String("member_id", string(c.MemberID)),
		zap.String("period_id", string(c.PeriodID)),
		zap.String("amount", c.Amount.StringFixed(2)),
	)
	return c, nil
}

func (s *ContributionService) record(ctx context.Context, c finance.Contribution) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(tx finance.Store) error {
		if err := checkPeriodAndMember(ctx, tx, c.StokvelID, c.PeriodID, c.MemberID); err != nil {
			return err
		}
		return tx.CreateContribution(ctx, c)
	})
}

func checkPeriodAndMember(ctx context.Context, tx finance.Store, stokvelID finance.StokvelID, periodID finance.PeriodID, memberID finance.MemberID) error {
	p, err := tx.GetPeriod(ctx, periodID)
	if err != nil {
		return err
	}
	if p.StokvelID != stokvelID {
		return &finance.ValidationError{Field: "payment_period_id", Message: "belongs to another stokvel"}
	}
	if !p.AcceptsContributions() {
		return finance.ErrPeriodClosed
	}
	m, err := tx.GetMember(ctx, memberID)
	if err != nil {
		return err
	}
	if m.StokvelID != stokvelID {
		return &finance.ValidationError{Field: "member_id", Message: "is not a member of this stokvel"}
	}
	return nil
}

// transition loads a contribution, applies fn and saves it in one
// transaction.
func (s *ContributionService) transition(ctx context.Context, id finance.ContributionID, action string, fn func(*finance.Contribution) error) (finance.Contribution, error) {
	var out finance.Contribution
	err := s.store.WithTx(ctx, func(tx finance.Store) error {
		c, err := tx.GetContribution(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(&c); err != nil {
			return err
		}
		out = c
		return tx.UpdateContribution(ctx, c)
	})
	if err != nil {
		return finance.Contribution{}, err
	}
	s.metrics.IncrContribution(action)
	s.log.Info("contribution "+action,
		zap.String("contribution_id", string(id)),
		zap.String("status", string(out.Status)),
	)
	return out, nil
}

func (s *ContributionService) Verify(ctx context.Context, id finance.ContributionID, by, notes string) (finance.Contribution, error) {
	return s.transition(ctx, id, "verified", func(c *finance.Contribution) error {
		return c.Verify(by, s.now(), notes)
	})
}

func (s *ContributionService) Reject(ctx context.Context, id finance.ContributionID, by, notes string) (finance.Contribution, error) {
	return s.transition(ctx, id, "rejected", func(c *finance.Contribution) error {
		return c.Reject(by, s.now(), notes)
	})
}

func (s *ContributionService) Reverse(ctx context.Context, id finance.ContributionID, by, notes string) (finance.Contribution, error) {
	return s.transition(ctx, id, "reversed", func(c *finance.Contribution) error {
		return c.Reverse(by, s.now(), notes)
	})
}

// Resubmit replaces the payment details of a rejected or reversed record
// and puts it back to pending. The period must still accept payments.
func (s *ContributionService) Resubmit(ctx context.Context, id finance.ContributionID, amount decimal.Decimal, paid finance.Date, method finance.PaymentMethod, reference string) (finance.Contribution, error) {
	var out finance.Contribution
	err := s.store.WithTx(ctx, func(tx finance.Store) error {
		c, err := tx.GetContribution(ctx, id)
		if err != nil {
			return err
		}
		p, err := tx.GetPeriod(ctx, c.PeriodID)
		if err != nil {
			return err
		}
		if !p.AcceptsContributions() {
			return finance.ErrPeriodClosed
		}
		if err := c.Resubmit(amount, paid, method, reference); err != nil {
			return err
		}
		out = c
		return tx.UpdateContribution(ctx, c)
	})
	if err != nil {
		return finance.Contribution{}, err
	}
	s.metrics.IncrContribution("resubmitted")
	return out, nil
}

func (s *ContributionService) Get(ctx context.Context, id finance.ContributionID) (finance.Contribution, error) {
	return s.store.GetContribution(ctx, id)
}

func (s *ContributionService) List(ctx context.Context, f finance.ContributionFilter) ([]finance.Contribution, error) {
	return s.store.ListContributions(ctx, f)
}

// =============================================================================
// BANK STATEMENT IMPORT
// =============================================================================

// MatchedPayment is a bank statement line already matched to a member.
type MatchedPayment struct {
	MemberID    finance.MemberID
	Amount      decimal.Decimal
	PaymentDate finance.Date
	Reference   string
	Method      finance.PaymentMethod
}

// ImportResult sorts the imported lines.
type ImportResult struct {
	Contributions []finance.Contribution
	Duplicates    []MatchedPayment
	Unmatched     []MatchedPayment
}

// ImportMatched records matched bank payments as pending contributions.
// Each payment goes to the member's earliest open period that started on
// or before the payment date and has no record from that member yet. A
// payment whose reference the member already used is a duplicate; one
// with no free period is unmatched. The import is one transaction.
func (s *ContributionService) ImportMatched(ctx context.Context, stokvelID finance.StokvelID, payments []MatchedPayment) (ImportResult, error) {
	ctx, span := s.startSpan(ctx, "ContributionService.ImportMatched", stokvelID)
	var res ImportResult
	err := s.store.WithTx(ctx, func(tx finance.Store) error {
		res = ImportResult{}
		periods, err := tx.ListPeriods(ctx, finance.PeriodFilter{StokvelID: stokvelID, OpenOnly: true})
		if err != nil {
			return err
		}
		sort.SliceStable(periods, func(i, j int) bool { return periods[i].Start.Before(periods[j].Start) })

		existing, err := tx.ListContributions(ctx, finance.ContributionFilter{StokvelID: stokvelID})
		if err != nil {
			return err
		}
		taken := make(map[finance.MemberID]map[finance.PeriodID]bool)
		refs := make(map[finance.MemberID]map[string]bool)
		mark := func(c finance.Contribution) {
			if taken[c.MemberID] == nil {
				taken[c.MemberID] = make(map[finance.PeriodID]bool)
				refs[c.MemberID] = make(map[string]bool)
			}
			taken[c.MemberID][c.PeriodID] = true
			if c.Reference != "" {
				refs[c.MemberID][c.Reference] = true
			}
		}
		for _, c := range existing {
			mark(c)
		}

		for _, pay := range payments {
			if pay.Reference != "" && refs[pay.MemberID][pay.Reference] {
				res.Duplicates = append(res.Duplicates, pay)
				continue
			}
			m, err := tx.GetMember(ctx, pay.MemberID)
			if finance.IsNotFound(err) || (err == nil && m.StokvelID != stokvelID) {
				res.Unmatched = append(res.Unmatched, pay)
				continue
			}
			if err != nil {
				return err
			}
			period, ok := firstFreePeriod(periods, taken[pay.MemberID], pay.PaymentDate)
			if !ok {
				res.Unmatched = append(res.Unmatched, pay)
				continue
			}
			method := pay.Method
			if method == "" {
				method = finance.MethodBankTransfer
			}
			c := finance.Contribution{
				ID:          finance.ContributionID(s.newID()),
				StokvelID:   stokvelID,
				MemberID:    pay.MemberID,
				PeriodID:    period.ID,
				Amount:      pay.Amount,
				PaymentDate: pay.PaymentDate,
				Method:      method,
				Reference:   pay.Reference,
				Status:      finance.StatusPending,
				Notes:       "imported from bank statement",
				CreatedAt:   s.now(),
			}
			if err := c.Validate(); err != nil {
				res.Unmatched = append(res.Unmatched, pay)
				continue
			}
			if err := tx.CreateContribution(ctx, c); err != nil {
				return err
			}
			mark(c)
			res.Contributions = append(res.Contributions, c)
		}
		return nil
	})
	endSpan(span, err)
	if err != nil {
		return ImportResult{}, err
	}
	for range res.Contributions {
		s.metrics.IncrContribution("imported")
	}
	s.log.Info("bank payments imported",
		zap.String("stokvel_id", string(stokvelID)),
		zap.Int("matched", len(res.Contributions)),
		zap.Int("duplicates", len(res.Duplicates)),
		zap.Int("unmatched", len(res.Unmatched)),
	)
	return res, nil
}

func firstFreePeriod(periods []finance.PaymentPeriod, taken map[finance.PeriodID]bool, paid finance.Date) (finance.PaymentPeriod, bool) {
	for _, p := range periods {
		if p.Start.After(paid) {
			break
		}
		if !p.AcceptsContributions() || taken[p.ID] {
			continue
		}
		return p, true
	}
	return finance.PaymentPeriod{}, false
}
