package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/stokvela/finance-engine/finance"
)

// =============================================================================
// STOKVELS
// =============================================================================

const stokvelColumns = `id, name, contribution_due_day, current_cycle_id,
	primary_bank_account_id, is_active, created_at`

func (q *queries) CreateStokvel(ctx context.Context, s finance.Stokvel) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO stokvels (`+stokvelColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.ContributionDueDay, optCycleID(s.CurrentCycleID),
		optBankAccountID(s.PrimaryBankAccountID), s.IsActive, formatTime(s.CreatedAt),
	)
	return err
}

func (q *queries) UpdateStokvel(ctx context.Context, s finance.Stokvel) error {
	return q.execOne(ctx, "stokvel", s.ID, `
		UPDATE stokvels SET
			name = ?, contribution_due_day = ?, current_cycle_id = ?,
			primary_bank_account_id = ?, is_active = ?
		WHERE id = ?`,
		s.Name, s.ContributionDueDay, optCycleID(s.CurrentCycleID),
		optBankAccountID(s.PrimaryBankAccountID), s.IsActive,
		s.ID,
	)
}

func (q *queries) GetStokvel(ctx context.Context, id finance.StokvelID) (finance.Stokvel, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+stokvelColumns+` FROM stokvels WHERE id = ?`, id)
	s, err := scanStokvel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return finance.Stokvel{}, finance.NotFound("stokvel", id)
	}
	return s, err
}

func (q *queries) ListStokvels(ctx context.Context) ([]finance.Stokvel, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+stokvelColumns+` FROM stokvels ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []finance.Stokvel
	for rows.Next() {
		s, err := scanStokvel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanStokvel(sc scanner) (finance.Stokvel, error) {
	var s finance.Stokvel
	var cycleID, accountID sql.NullString
	var createdAt string
	if err := sc.Scan(&s.ID, &s.Name, &s.ContributionDueDay, &cycleID, &accountID, &s.IsActive, &createdAt); err != nil {
		return finance.Stokvel{}, err
	}
	if cycleID.Valid {
		id := finance.CycleID(cycleID.String)
		s.CurrentCycleID = &id
	}
	if accountID.Valid {
		id := finance.BankAccountID(accountID.String)
		s.PrimaryBankAccountID = &id
	}
	var d decoder
	s.CreatedAt = d.time(createdAt)
	return s, d.err
}

func optCycleID(id *finance.CycleID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return nullString(string(*id))
}

func optBankAccountID(id *finance.BankAccountID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return nullString(string(*id))
}

// =============================================================================
// CYCLES
// =============================================================================

const cycleColumns = `id, stokvel_id, name, start_date, end_date, status, created_at`

func (q *queries) CreateCycle(ctx context.Context, c finance.Cycle) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO cycles (`+cycleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.StokvelID, c.Name, c.Start.String(), c.End.String(), c.Status, formatTime(c.CreatedAt),
	)
	return err
}

func (q *queries) UpdateCycle(ctx context.Context, c finance.Cycle) error {
	return q.execOne(ctx, "cycle", c.ID, `
		UPDATE cycles SET name = ?, start_date = ?, end_date = ?, status = ? WHERE id = ?`,
		c.Name, c.Start.String(), c.End.String(), c.Status, c.ID,
	)
}

func (q *queries) GetCycle(ctx context.Context, id finance.CycleID) (finance.Cycle, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+cycleColumns+` FROM cycles WHERE id = ?`, id)
	c, err := scanCycle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return finance.Cycle{}, finance.NotFound("cycle", id)
	}
	return c, err
}

func (q *queries) ListCycles(ctx context.Context, stokvelID finance.StokvelID) ([]finance.Cycle, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+cycleColumns+` FROM cycles WHERE stokvel_id = ? ORDER BY start_date, id`, stokvelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []finance.Cycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCycle(sc scanner) (finance.Cycle, error) {
	var c finance.Cycle
	var start, end, createdAt string
	if err := sc.Scan(&c.ID, &c.StokvelID, &c.Name, &start, &end, &c.Status, &createdAt); err != nil {
		return finance.Cycle{}, err
	}
	var d decoder
	c.Start = d.date(start)
	c.End = d.date(end)
	c.CreatedAt = d.time(createdAt)
	return c, d.err
}

// =============================================================================
// BANK ACCOUNTS
// =============================================================================

const bankAccountColumns = `id, stokvel_id, bank_name, account_name, account_number,
	branch_code, is_active, created_at`

func (q *queries) CreateBankAccount(ctx context.Context, b finance.BankAccount) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO bank_accounts (`+bankAccountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.StokvelID, b.BankName, b.AccountName, b.AccountNumber,
		nullString(b.BranchCode), b.IsActive, formatTime(b.CreatedAt),
	)
	return err
}

func (q *queries) UpdateBankAccount(ctx context.Context, b finance.BankAccount) error {
	return q.execOne(ctx, "bank account", b.ID, `
		UPDATE bank_accounts SET
			bank_name = ?, account_name = ?, account_number = ?, branch_code = ?, is_active = ?
		WHERE id = ?`,
		b.BankName, b.AccountName, b.AccountNumber, nullString(b.BranchCode), b.IsActive,
		b.ID,
	)
}

func (q *queries) GetBankAccount(ctx context.Context, id finance.BankAccountID) (finance.BankAccount, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+bankAccountColumns+` FROM bank_accounts WHERE id = ?`, id)
	b, err := scanBankAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return finance.BankAccount{}, finance.NotFound("bank account", id)
	}
	return b, err
}

func (q *queries) ListBankAccounts(ctx context.Context, stokvelID finance.StokvelID) ([]finance.BankAccount, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+bankAccountColumns+` FROM bank_accounts WHERE stokvel_id = ? ORDER BY created_at, id`, stokvelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []finance.BankAccount
	for rows.Next() {
		b, err := scanBankAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBankAccount(sc scanner) (finance.BankAccount, error) {
	var b finance.BankAccount
	var branch sql.NullString
	var createdAt string
	if err := sc.Scan(&b.ID, &b.StokvelID, &b.BankName, &b.AccountName, &b.AccountNumber,
		&branch, &b.IsActive, &createdAt); err != nil {
		return finance.BankAccount{}, err
	}
	b.BranchCode = branch.String
	var d decoder
	b.CreatedAt = d.time(createdAt)
	return b, d.err
}

// =============================================================================
// MEMBER ROSTER
// =============================================================================

const memberColumns = `id, stokvel_id, name, status, joined_at`

// SaveMember upserts a roster entry.
func (q *queries) SaveMember(ctx context.Context, m finance.Member) error {
	var joined sql.NullString
	if !m.JoinedAt.IsZero() {
		joined = nullString(m.JoinedAt.String())
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO members (`+memberColumns+`) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			stokvel_id = excluded.stokvel_id,
			name = excluded.name,
			status = excluded.status,
			joined_at = excluded.joined_at`,
		m.ID, m.StokvelID, m.Name, m.Status, joined,
	)
	return err
}

func (q *queries) GetMember(ctx context.Context, id finance.MemberID) (finance.Member, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = ?`, id)
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return finance.Member{}, finance.NotFound("member", id)
	}
	return m, err
}

func (q *queries) ListMembers(ctx context.Context, stokvelID finance.StokvelID) ([]finance.Member, error) {
	return q.queryMembers(ctx, `SELECT `+memberColumns+` FROM members WHERE stokvel_id = ? ORDER BY id`, stokvelID)
}

func (q *queries) ActiveMembers(ctx context.Context, stokvelID finance.StokvelID) ([]finance.Member, error) {
	return q.queryMembers(ctx,
		`SELECT `+memberColumns+` FROM members WHERE stokvel_id = ? AND status = ? ORDER BY id`,
		stokvelID, finance.MemberActive)
}

func (q *queries) queryMembers(ctx context.Context, query string, args ...any) ([]finance.Member, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []finance.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMember(sc scanner) (finance.Member, error) {
	var m finance.Member
	var joined sql.NullString
	if err := sc.Scan(&m.ID, &m.StokvelID, &m.Name, &m.Status, &joined); err != nil {
		return finance.Member{}, err
	}
	var d decoder
	if j := d.optDate(joined); j != nil {
		m.JoinedAt = *j
	}
	return m, d.err
}
