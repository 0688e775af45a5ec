package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/stokvela/finance-engine/finance"
)

// =============================================================================
// PENALTIES
// =============================================================================

const penaltyColumns = `id, stokvel_id, member_id, period_id, penalty_rule_id, category,
	amount, reason, applied_date, status, paid_amount, paid_date,
	waived_by, waived_reason, source, created_at`

// CreatePenalty inserts a penalty. A second engine penalty for the same
// member, period and rule fails with finance.ErrDuplicatePenalty; manual
// penalties are not constrained.
func (q *queries) CreatePenalty(ctx context.Context, p finance.Penalty) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO penalties (`+penaltyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.StokvelID, p.MemberID, optPeriodID(p.PeriodID), p.RuleID, p.Category,
		p.Amount.String(), p.Reason, p.AppliedDate.String(), p.Status,
		p.PaidAmount.String(), formatOptDate(p.PaidDate),
		nullString(p.WaivedBy), nullString(p.WaivedReason), p.Source, formatTime(p.CreatedAt),
	)
	if isUniqueConstraintError(err) {
		return finance.ErrDuplicatePenalty
	}
	return err
}

// UpdatePenalty persists payment and waiver state. Amount, rule and
// member never change after creation.
func (q *queries) UpdatePenalty(ctx context.Context, p finance.Penalty) error {
	return q.execOne(ctx, "penalty", p.ID, `
		UPDATE penalties SET
			status = ?, paid_amount = ?, paid_date = ?, waived_by = ?, waived_reason = ?
		WHERE id = ?`,
		p.Status, p.PaidAmount.String(), formatOptDate(p.PaidDate),
		nullString(p.WaivedBy), nullString(p.WaivedReason),
		p.ID,
	)
}

func (q *queries) GetPenalty(ctx context.Context, id finance.PenaltyID) (finance.Penalty, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+penaltyColumns+` FROM penalties WHERE id = ?`, id)
	p, err := scanPenalty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return finance.Penalty{}, finance.NotFound("penalty", id)
	}
	return p, err
}

func (q *queries) ListPenalties(ctx context.Context, f finance.PenaltyFilter) ([]finance.Penalty, error) {
	var w where
	if f.StokvelID != "" {
		w.add("stokvel_id = ?", f.StokvelID)
	}
	if f.MemberID != "" {
		w.add("member_id = ?", f.MemberID)
	}
	if f.PeriodID != "" {
		w.add("period_id = ?", f.PeriodID)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}

	rows, err := q.db.QueryContext(ctx,
		`SELECT `+penaltyColumns+` FROM penalties`+w.String()+` ORDER BY applied_date, id`,
		w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []finance.Penalty
	for rows.Next() {
		p, err := scanPenalty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPenalty(sc scanner) (finance.Penalty, error) {
	var p finance.Penalty
	var amount, applied, paidAmount, createdAt string
	var periodID, paidDate, waivedBy, waivedReason sql.NullString
	if err := sc.Scan(
		&p.ID, &p.StokvelID, &p.MemberID, &periodID, &p.RuleID, &p.Category,
		&amount, &p.Reason, &applied, &p.Status, &paidAmount, &paidDate,
		&waivedBy, &waivedReason, &p.Source, &createdAt,
	); err != nil {
		return finance.Penalty{}, err
	}

	var d decoder
	if periodID.Valid {
		id := finance.PeriodID(periodID.String)
		p.PeriodID = &id
	}
	p.Amount = d.decimal(amount)
	p.AppliedDate = d.date(applied)
	p.PaidAmount = d.decimal(paidAmount)
	p.PaidDate = d.optDate(paidDate)
	p.WaivedBy = waivedBy.String
	p.WaivedReason = waivedReason.String
	p.CreatedAt = d.time(createdAt)
	return p, d.err
}

func optPeriodID(id *finance.PeriodID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return nullString(string(*id))
}
