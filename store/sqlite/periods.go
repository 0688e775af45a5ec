package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/stokvela/finance-engine/finance"
)

// =============================================================================
// PAYMENT PERIODS
// =============================================================================

const periodColumns = `id, stokvel_id, contribution_rule_id, label, year, month, quarter,
	start_date, end_date, due_date, expected_per_member,
	is_open, is_finalized, auto_generate_penalties, created_at`

// CreatePeriod inserts a period. A second period for the same key fails with
// finance.ErrDuplicatePeriod.
func (q *queries) CreatePeriod(ctx context.Context, p finance.PaymentPeriod) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO payment_periods (`+periodColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.StokvelID, p.RuleID, p.Label, p.Year, p.Month, p.Quarter,
		p.Start.String(), p.End.String(), p.Due.String(), p.ExpectedPerMember.String(),
		p.IsOpen, p.IsFinalized, p.AutoGeneratePenalties, formatTime(p.CreatedAt),
	)
	if isUniqueConstraintError(err) {
		return finance.ErrDuplicatePeriod
	}
	return err
}

func (q *queries) UpdatePeriod(ctx context.Context, p finance.PaymentPeriod) error {
	err := q.execOne(ctx, "payment period", p.ID, `
		UPDATE payment_periods SET
			contribution_rule_id = ?, label = ?, year = ?, month = ?, quarter = ?,
			start_date = ?, end_date = ?, due_date = ?, expected_per_member = ?,
			is_open = ?, is_finalized = ?, auto_generate_penalties = ?
		WHERE id = ?`,
		p.RuleID, p.Label, p.Year, p.Month, p.Quarter,
		p.Start.String(), p.End.String(), p.Due.String(), p.ExpectedPerMember.String(),
		p.IsOpen, p.IsFinalized, p.AutoGeneratePenalties,
		p.ID,
	)
	if isUniqueConstraintError(err) {
		return finance.ErrDuplicatePeriod
	}
	return err
}

func (q *queries) GetPeriod(ctx context.Context, id finance.PeriodID) (finance.PaymentPeriod, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+periodColumns+` FROM payment_periods WHERE id = ?`, id)
	p, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return finance.PaymentPeriod{}, finance.NotFound("payment period", id)
	}
	return p, err
}

func (q *queries) FindPeriod(ctx context.Context, key finance.PeriodKey) (finance.PaymentPeriod, bool, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+periodColumns+` FROM payment_periods
		WHERE stokvel_id = ? AND contribution_rule_id = ? AND year = ? AND month = ? AND quarter = ?`,
		key.StokvelID, key.RuleID, key.Year, key.Month, key.Quarter,
	)
	p, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return finance.PaymentPeriod{}, false, nil
	}
	if err != nil {
		return finance.PaymentPeriod{}, false, err
	}
	return p, true, nil
}

func (q *queries) ListPeriods(ctx context.Context, f finance.PeriodFilter) ([]finance.PaymentPeriod, error) {
	var w where
	if f.StokvelID != "" {
		w.add("stokvel_id = ?", f.StokvelID)
	}
	if f.RuleID != "" {
		w.add("contribution_rule_id = ?", f.RuleID)
	}
	if f.DueFrom != nil {
		w.add("due_date >= ?", f.DueFrom.String())
	}
	if f.DueTo != nil {
		w.add("due_date <= ?", f.DueTo.String())
	}
	if f.OpenOnly {
		w.add("is_open = 1")
	}

	rows, err := q.db.QueryContext(ctx,
		`SELECT `+periodColumns+` FROM payment_periods`+w.String()+` ORDER BY due_date, id`,
		w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []finance.PaymentPeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPeriod(sc scanner) (finance.PaymentPeriod, error) {
	var p finance.PaymentPeriod
	var start, end, due, expected, createdAt string
	if err := sc.Scan(
		&p.ID, &p.StokvelID, &p.RuleID, &p.Label, &p.Year, &p.Month, &p.Quarter,
		&start, &end, &due, &expected,
		&p.IsOpen, &p.IsFinalized, &p.AutoGeneratePenalties, &createdAt,
	); err != nil {
		return finance.PaymentPeriod{}, err
	}

	var d decoder
	p.Start = d.date(start)
	p.End = d.date(end)
	p.Due = d.date(due)
	p.ExpectedPerMember = d.decimal(expected)
	p.CreatedAt = d.time(createdAt)
	return p, d.err
}
