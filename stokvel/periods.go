package stokvel

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/stokvela/finance-engine/finance"
)

// =============================================================================
// PERIOD SERVICE - Materialising payment periods
// =============================================================================

type PeriodService struct {
	*base
}

// GenerateRequest describes a range of periods to materialise.
type GenerateRequest struct {
	StokvelID finance.StokvelID
	Category  finance.ContributionCategory // empty means regular
	Frequency finance.Frequency            // monthly or quarterly
	Start     finance.Date
	End       finance.Date
	DueDay    int // 0 uses the stokvel's contribution_due_day
}

// GenerateResult reports what happened to each candidate.
type GenerateResult struct {
	Created  []finance.PaymentPeriod
	Existing []finance.PaymentPeriod
	NoRule   []finance.PeriodCandidate
	Warnings []finance.RuleIntegrityWarning
}

func (s *PeriodService) cursor(ctx context.Context, req GenerateRequest) (*finance.PeriodCursor, error) {
	switch req.Frequency {
	case finance.FrequencyQuarterly:
		return finance.QuarterlyPeriods(req.Start, req.End)
	case finance.FrequencyMonthly, "":
		dueDay := req.DueDay
		if dueDay == 0 {
			sv, err := s.store.GetStokvel(ctx, req.StokvelID)
			if err != nil {
				return nil, err
			}
			dueDay = sv.ContributionDueDay
		}
		return finance.MonthlyPeriods(req.Start, req.End, dueDay)
	default:
		return nil, &finance.ValidationError{Field: "frequency", Message: "must be monthly or quarterly"}
	}
}

func (req GenerateRequest) category() finance.ContributionCategory {
	if req.Category == "" {
		return finance.ContributionRegular
	}
	return req.Category
}

// Preview returns the candidates Generate would write, with their expected
// amounts. Nothing is persisted.
func (s *PeriodService) Preview(ctx context.Context, req GenerateRequest) ([]finance.PeriodCandidate, error) {
	cur, err := s.cursor(ctx, req)
	if err != nil {
		return nil, err
	}
	rules, err := s.store.ListContributionRules(ctx, req.StokvelID, req.category())
	if err != nil {
		return nil, err
	}
	var out []finance.PeriodCandidate
	for {
		c, ok := cur.Next()
		if !ok {
			return out, nil
		}
		out = append(out, finance.AttachExpected(c, rules, req.category()))
	}
}

// Generate materialises the range in batches, one transaction per batch.
// Rerunning it is safe: periods that already exist are reported, not
// duplicated. A failed batch leaves earlier batches committed.
func (s *PeriodService) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	ctx, span := s.startSpan(ctx, "PeriodService.Generate", req.StokvelID)
	res, err := s.generate(ctx, req)
	endSpan(span, err)
	return res, err
}

func (s *PeriodService) generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	var res GenerateResult
	cur, err := s.cursor(ctx, req)
	if err != nil {
		return res, err
	}
	category := req.category()

	for {
		batch := cur.Take(s.opts.BatchSize)
		if len(batch) == 0 {
			break
		}
		var created, existing []finance.PaymentPeriod
		var noRule []finance.PeriodCandidate
		var warnings []finance.RuleIntegrityWarning

		err := s.store.WithTx(ctx, func(tx finance.Store) error {
			created, existing, noRule, warnings = nil, nil, nil, nil
			rules, err := tx.ListContributionRules(ctx, req.StokvelID, category)
			if err != nil {
				return err
			}
			for _, c := range batch {
				c = finance.AttachExpected(c, rules, category)
				if c.NoRuleFound {
					noRule = append(noRule, c)
					continue
				}
				if c.Warning != nil {
					warnings = append(warnings, *c.Warning)
				}
				p, isNew, err := s.materialise(ctx, tx, req.StokvelID, c)
				if err != nil {
					return fmt.Errorf("period %s: %w", c.Label, err)
				}
				if isNew {
					created = append(created, p)
				} else {
					existing = append(existing, p)
				}
			}
			return nil
		})
		if err != nil {
			s.metrics.IncrPeriod("error")
			s.log.Error("period generation failed",
				zap.String("stokvel_id", string(req.StokvelID)),
				zap.Int("position", cur.Position()),
				zap.Error(err),
			)
			return res, err
		}
		res.Created = append(res.Created, created...)
		res.Existing = append(res.Existing, existing...)
		res.NoRule = append(res.NoRule, noRule...)
		res.Warnings = append(res.Warnings, warnings...)
	}

	for range res.Created {
		s.metrics.IncrPeriod("created")
	}
	for range res.Existing {
		s.metrics.IncrPeriod("existing")
	}
	for range res.NoRule {
		s.metrics.IncrPeriod("no_rule")
	}
	if len(res.Warnings) > 0 {
		s.warn(res.Warnings...)
	}
	s.log.Info("periods generated",
		zap.String("stokvel_id", string(req.StokvelID)),
		zap.Int("created", len(res.Created)),
		zap.Int("existing", len(res.Existing)),
		zap.Int("no_rule", len(res.NoRule)),
	)
	return res, nil
}

// materialise returns the stored period for c, creating it if needed.
func (s *PeriodService) materialise(ctx context.Context, tx finance.Store, stokvelID finance.StokvelID, c finance.PeriodCandidate) (finance.PaymentPeriod, bool, error) {
	key := c.Key(stokvelID, c.RuleID)
	if p, ok, err := tx.FindPeriod(ctx, key); err != nil || ok {
		return p, false, err
	}
	p := finance.NewPaymentPeriod(finance.PeriodID(s.newID()), stokvelID, c, s.now())
	if err := p.Validate(); err != nil {
		return p, false, err
	}
	err := tx.CreatePeriod(ctx, p)
	if errors.Is(err, finance.ErrDuplicatePeriod) {
		found, ok, ferr := tx.FindPeriod(ctx, key)
		if ferr != nil {
			return p, false, ferr
		}
		if ok {
			return found, false, nil
		}
	}
	if err != nil {
		return p, false, err
	}
	return p, true, nil
}

func (s *PeriodService) updatePeriod(ctx context.Context, id finance.PeriodID, fn func(*finance.PaymentPeriod)) (finance.PaymentPeriod, error) {
	var out finance.PaymentPeriod
	err := s.store.WithTx(ctx, func(tx finance.Store) error {
		p, err := tx.GetPeriod(ctx, id)
		if err != nil {
			return err
		}
		fn(&p)
		out = p
		return tx.UpdatePeriod(ctx, p)
	})
	return out, err
}

// Close marks the period as no longer current. Contributions are still
// accepted until it is finalized.
func (s *PeriodService) Close(ctx context.Context, id finance.PeriodID) (finance.PaymentPeriod, error) {
	return s.updatePeriod(ctx, id, (*finance.PaymentPeriod).Close)
}

// Finalize closes the period and stops it accepting contributions.
func (s *PeriodService) Finalize(ctx context.Context, id finance.PeriodID) (finance.PaymentPeriod, error) {
	return s.updatePeriod(ctx, id, (*finance.PaymentPeriod).Finalize)
}

// SetAutoPenalties toggles whether reconciliation may persist penalties
// for the period.
func (s *PeriodService) SetAutoPenalties(ctx context.Context, id finance.PeriodID, on bool) (finance.PaymentPeriod, error) {
	return s.updatePeriod(ctx, id, func(p *finance.PaymentPeriod) { p.AutoGeneratePenalties = on })
}

func (s *PeriodService) Get(ctx context.Context, id finance.PeriodID) (finance.PaymentPeriod, error) {
	return s.store.GetPeriod(ctx, id)
}

func (s *PeriodService) List(ctx context.Context, f finance.PeriodFilter) ([]finance.PaymentPeriod, error) {
	return s.store.ListPeriods(ctx, f)
}

// Summary derives the period's totals from one consistent read.
func (s *PeriodService) Summary(ctx context.Context, id finance.PeriodID) (finance.PeriodTotals, error) {
	var out finance.PeriodTotals
	err := s.store.WithReadTx(ctx, func(tx finance.Store) error {
		p, err := tx.GetPeriod(ctx, id)
		if err != nil {
			return err
		}
		members, err := tx.ActiveMembers(ctx, p.StokvelID)
		if err != nil {
			return err
		}
		contributions, err := tx.ListContributions(ctx, finance.ContributionFilter{PeriodIDs: []finance.PeriodID{id}})
		if err != nil {
			return err
		}
		out = finance.ComputePeriodTotals(p, len(members), contributions)
		return nil
	})
	return out, err
}
