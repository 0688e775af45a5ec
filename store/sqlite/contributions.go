package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/stokvela/finance-engine/finance"
)

// =============================================================================
// CONTRIBUTIONS
// =============================================================================

const contributionColumns = `id, stokvel_id, member_id, period_id, amount, payment_date,
	payment_method, reference, verification_status, verified_by, verified_at, notes, created_at`

// CreateContribution inserts a contribution. A second record for the same
// member and period fails with finance.ErrDuplicateContribution.
func (q *queries) CreateContribution(ctx context.Context, c finance.Contribution) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO contributions (`+contributionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.StokvelID, c.MemberID, c.PeriodID, c.Amount.String(), c.PaymentDate.String(),
		c.Method, nullString(c.Reference), c.Status, nullString(c.VerifiedBy),
		formatOptTime(c.VerifiedAt), nullString(c.Notes), formatTime(c.CreatedAt),
	)
	if isUniqueConstraintError(err) {
		return finance.ErrDuplicateContribution
	}
	return err
}

func (q *queries) UpdateContribution(ctx context.Context, c finance.Contribution) error {
	return q.execOne(ctx, "contribution", c.ID, `
		UPDATE contributions SET
			amount = ?, payment_date = ?, payment_method = ?, reference = ?,
			verification_status = ?, verified_by = ?, verified_at = ?, notes = ?
		WHERE id = ?`,
		c.Amount.String(), c.PaymentDate.String(), c.Method, nullString(c.Reference),
		c.Status, nullString(c.VerifiedBy), formatOptTime(c.VerifiedAt), nullString(c.Notes),
		c.ID,
	)
}

func (q *queries) GetContribution(ctx context.Context, id finance.ContributionID) (finance.Contribution, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+contributionColumns+` FROM contributions WHERE id = ?`, id)
	c, err := scanContribution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return finance.Contribution{}, finance.NotFound("contribution", id)
	}
	return c, err
}

func (q *queries) FindContribution(ctx context.Context, member finance.MemberID, period finance.PeriodID) (finance.Contribution, bool, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+contributionColumns+` FROM contributions WHERE member_id = ? AND period_id = ?`,
		member, period)
	c, err := scanContribution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return finance.Contribution{}, false, nil
	}
	if err != nil {
		return finance.Contribution{}, false, err
	}
	return c, true, nil
}

func (q *queries) ListContributions(ctx context.Context, f finance.ContributionFilter) ([]finance.Contribution, error) {
	var w where
	if f.StokvelID != "" {
		w.add("stokvel_id = ?", f.StokvelID)
	}
	if f.MemberID != "" {
		w.add("member_id = ?", f.MemberID)
	}
	if f.Status != "" {
		w.add("verification_status = ?", f.Status)
	}
	if len(f.PeriodIDs) > 0 {
		ids := make([]string, len(f.PeriodIDs))
		for i, id := range f.PeriodIDs {
			ids[i] = string(id)
		}
		w.in("period_id", ids)
	}

	rows, err := q.db.QueryContext(ctx,
		`SELECT `+contributionColumns+` FROM contributions`+w.String()+` ORDER BY payment_date, id`,
		w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []finance.Contribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanContribution(sc scanner) (finance.Contribution, error) {
	var c finance.Contribution
	var amount, paid, createdAt string
	var reference, verifiedBy, verifiedAt, notes sql.NullString
	if err := sc.Scan(
		&c.ID, &c.StokvelID, &c.MemberID, &c.PeriodID, &amount, &paid,
		&c.Method, &reference, &c.Status, &verifiedBy, &verifiedAt, &notes, &createdAt,
	); err != nil {
		return finance.Contribution{}, err
	}

	var d decoder
	c.Amount = d.decimal(amount)
	c.PaymentDate = d.date(paid)
	c.Reference = reference.String
	c.VerifiedBy = verifiedBy.String
	c.VerifiedAt = d.optTime(verifiedAt)
	c.Notes = notes.String
	c.CreatedAt = d.time(createdAt)
	return c, d.err
}
