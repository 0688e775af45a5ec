package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/stokvela/finance-engine/finance"
)

// =============================================================================
// CONTRIBUTION RULES
// =============================================================================

const contributionRuleColumns = `id, stokvel_id, name, category, amount, frequency,
	effective_from, effective_until, is_active, is_mandatory, description, created_at`

func (q *queries) CreateContributionRule(ctx context.Context, r finance.ContributionRule) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO contribution_rules (`+contributionRuleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StokvelID, r.Name, r.Category, r.Amount.String(), r.Frequency,
		r.Effective.From.String(), formatOptDate(r.Effective.Until),
		r.IsActive, r.IsMandatory, nullString(r.Description), formatTime(r.CreatedAt),
	)
	return err
}

func (q *queries) UpdateContributionRule(ctx context.Context, r finance.ContributionRule) error {
	return q.execOne(ctx, "contribution rule", r.ID, `
		UPDATE contribution_rules SET
			name = ?, category = ?, amount = ?, frequency = ?,
			effective_from = ?, effective_until = ?,
			is_active = ?, is_mandatory = ?, description = ?
		WHERE id = ?`,
		r.Name, r.Category, r.Amount.String(), r.Frequency,
		r.Effective.From.String(), formatOptDate(r.Effective.Until),
		r.IsActive, r.IsMandatory, nullString(r.Description),
		r.ID,
	)
}

func (q *queries) GetContributionRule(ctx context.Context, id finance.RuleID) (finance.ContributionRule, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+contributionRuleColumns+` FROM contribution_rules WHERE id = ?`, id)
	r, err := scanContributionRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return finance.ContributionRule{}, finance.NotFound("contribution rule", id)
	}
	return r, err
}

func (q *queries) ListContributionRules(ctx context.Context, stokvelID finance.StokvelID, category finance.ContributionCategory) ([]finance.ContributionRule, error) {
	var w where
	w.add("stokvel_id = ?", stokvelID)
	if category != "" {
		w.add("category = ?", category)
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+contributionRuleColumns+` FROM contribution_rules`+w.String()+` ORDER BY effective_from, id`,
		w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []finance.ContributionRule
	for rows.Next() {
		r, err := scanContributionRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanContributionRule(sc scanner) (finance.ContributionRule, error) {
	var r finance.ContributionRule
	var amount, from, createdAt string
	var until, description sql.NullString
	if err := sc.Scan(
		&r.ID, &r.StokvelID, &r.Name, &r.Category, &amount, &r.Frequency,
		&from, &until, &r.IsActive, &r.IsMandatory, &description, &createdAt,
	); err != nil {
		return finance.ContributionRule{}, err
	}

	var d decoder
	r.Amount = d.decimal(amount)
	r.Effective = finance.Interval{From: d.date(from), Until: d.optDate(until)}
	r.Description = description.String
	r.CreatedAt = d.time(createdAt)
	return r, d.err
}

// =============================================================================
// PENALTY RULES
// =============================================================================

const penaltyRuleColumns = `id, stokvel_id, name, category, calculation_method, amount,
	grace_period_days, maximum_amount, effective_from, effective_until, is_active,
	description, created_at`

func (q *queries) CreatePenaltyRule(ctx context.Context, r finance.PenaltyRule) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO penalty_rules (`+penaltyRuleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StokvelID, r.Name, r.Category, r.Method, r.Amount.String(),
		r.GracePeriodDays, formatOptDecimal(r.MaximumAmount),
		r.Effective.From.String(), formatOptDate(r.Effective.Until), r.IsActive,
		nullString(r.Description), formatTime(r.CreatedAt),
	)
	return err
}

func (q *queries) UpdatePenaltyRule(ctx context.Context, r finance.PenaltyRule) error {
	return q.execOne(ctx, "penalty rule", r.ID, `
		UPDATE penalty_rules SET
			name = ?, category = ?, calculation_method = ?, amount = ?,
			grace_period_days = ?, maximum_amount = ?,
			effective_from = ?, effective_until = ?, is_active = ?, description = ?
		WHERE id = ?`,
		r.Name, r.Category, r.Method, r.Amount.String(),
		r.GracePeriodDays, formatOptDecimal(r.MaximumAmount),
		r.Effective.From.String(), formatOptDate(r.Effective.Until), r.IsActive,
		nullString(r.Description),
		r.ID,
	)
}

func (q *queries) GetPenaltyRule(ctx context.Context, id finance.RuleID) (finance.PenaltyRule, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+penaltyRuleColumns+` FROM penalty_rules WHERE id = ?`, id)
	r, err := scanPenaltyRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return finance.PenaltyRule{}, finance.NotFound("penalty rule", id)
	}
	return r, err
}

func (q *queries) ListPenaltyRules(ctx context.Context, stokvelID finance.StokvelID, category finance.PenaltyCategory) ([]finance.PenaltyRule, error) {
	var w where
	w.add("stokvel_id = ?", stokvelID)
	if category != "" {
		w.add("category = ?", category)
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+penaltyRuleColumns+` FROM penalty_rules`+w.String()+` ORDER BY effective_from, id`,
		w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []finance.PenaltyRule
	for rows.Next() {
		r, err := scanPenaltyRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanPenaltyRule(sc scanner) (finance.PenaltyRule, error) {
	var r finance.PenaltyRule
	var amount, from, createdAt string
	var maximum, until, description sql.NullString
	if err := sc.Scan(
		&r.ID, &r.StokvelID, &r.Name, &r.Category, &r.Method, &amount,
		&r.GracePeriodDays, &maximum, &from, &until, &r.IsActive,
		&description, &createdAt,
	); err != nil {
		return finance.PenaltyRule{}, err
	}

	var d decoder
	r.Amount = d.decimal(amount)
	r.MaximumAmount = d.optDecimal(maximum)
	r.Effective = finance.Interval{From: d.date(from), Until: d.optDate(until)}
	r.Description = description.String
	r.CreatedAt = d.time(createdAt)
	return r, d.err
}
