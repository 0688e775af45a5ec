/*
Package sqlite provides a SQLite-backed implementation of finance.TxStore.

PURPOSE:
  Persists rules, payment periods, contributions, penalties and the
  supporting stokvel records. In production, the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  finance.TxStore: every store interface plus WithTx / WithReadTx

KEY TABLES:
  contribution_rules:  Versioned expected amounts per category
  penalty_rules:       Versioned penalty definitions per category
  payment_periods:     Materialised periods, one per (stokvel, rule, month|quarter)
  contributions:       One payment record per (member, period)
  penalties:           Applied penalties with payment / waiver state
  notification_events: Outbox for the external notification sender
  reconciliation_runs: Audit trail of report runs

UNIQUENESS:
  The engine's idempotency rests on three unique indexes:
  - idx_periods_key:               no duplicate period per rule and month/quarter
  - idx_contributions_member:      one contribution per member and period
  - idx_penalties_engine_once:     one engine penalty per member, period and rule
  Violations surface as finance.ErrDuplicatePeriod, ErrDuplicateContribution
  and ErrDuplicatePenalty so callers can treat them as no-ops.

STORAGE FORMATS:
  Dates:      TEXT "YYYY-MM-DD" (sorts lexically)
  Timestamps: TEXT RFC3339Nano, UTC
  Money:      TEXT decimal strings, never REAL

CONCURRENCY:
  WithTx takes the write side of a sync.RWMutex so SQLite sees a single
  writer; WithReadTx takes the read side. Plain method calls go straight to
  the pool and rely on _busy_timeout.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/stokvel.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - finance/store.go: Interface definitions
  - finance/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/stokvela/finance-engine/finance"
)

// Store implements finance.TxStore using SQLite.
type Store struct {
	*queries
	db *sql.DB
	mu sync.RWMutex
}

var _ finance.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{queries: &queries{db: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection; used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Stokvels and their operating records
	CREATE TABLE IF NOT EXISTS stokvels (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		contribution_due_day INTEGER NOT NULL,
		current_cycle_id TEXT,
		primary_bank_account_id TEXT,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		stokvel_id TEXT NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		joined_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_members_stokvel_status
		ON members(stokvel_id, status);

	CREATE TABLE IF NOT EXISTS cycles (
		id TEXT PRIMARY KEY,
		stokvel_id TEXT NOT NULL,
		name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cycles_stokvel
		ON cycles(stokvel_id, start_date);

	CREATE TABLE IF NOT EXISTS bank_accounts (
		id TEXT PRIMARY KEY,
		stokvel_id TEXT NOT NULL,
		bank_name TEXT NOT NULL,
		account_name TEXT NOT NULL,
		account_number TEXT NOT NULL,
		branch_code TEXT,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	-- Versioned rules (never deleted, only deactivated or closed)
	CREATE TABLE IF NOT EXISTS contribution_rules (
		id TEXT PRIMARY KEY,
		stokvel_id TEXT NOT NULL,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		amount TEXT NOT NULL,
		frequency TEXT NOT NULL,
		effective_from TEXT NOT NULL,
		effective_until TEXT,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		is_mandatory BOOLEAN NOT NULL DEFAULT 1,
		description TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_contribution_rules_lookup
		ON contribution_rules(stokvel_id, category, effective_from);

	CREATE TABLE IF NOT EXISTS penalty_rules (
		id TEXT PRIMARY KEY,
		stokvel_id TEXT NOT NULL,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		calculation_method TEXT NOT NULL,
		amount TEXT NOT NULL,
		grace_period_days INTEGER NOT NULL DEFAULT 0,
		maximum_amount TEXT,
		effective_from TEXT NOT NULL,
		effective_until TEXT,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		description TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_penalty_rules_lookup
		ON penalty_rules(stokvel_id, category, effective_from);

	-- Payment periods (month = 0 for quarterly, quarter = 0 for monthly)
	CREATE TABLE IF NOT EXISTS payment_periods (
		id TEXT PRIMARY KEY,
		stokvel_id TEXT NOT NULL,
		contribution_rule_id TEXT NOT NULL REFERENCES contribution_rules(id),
		label TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL DEFAULT 0,
		quarter INTEGER NOT NULL DEFAULT 0,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		expected_per_member TEXT NOT NULL,
		is_open BOOLEAN NOT NULL DEFAULT 1,
		is_finalized BOOLEAN NOT NULL DEFAULT 0,
		auto_generate_penalties BOOLEAN NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_periods_key
		ON payment_periods(stokvel_id, contribution_rule_id, year, month, quarter);
	CREATE INDEX IF NOT EXISTS idx_periods_stokvel_due
		ON payment_periods(stokvel_id, due_date);

	-- Contributions
	CREATE TABLE IF NOT EXISTS contributions (
		id TEXT PRIMARY KEY,
		stokvel_id TEXT NOT NULL,
		member_id TEXT NOT NULL,
		period_id TEXT NOT NULL REFERENCES payment_periods(id),
		amount TEXT NOT NULL,
		payment_date TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		reference TEXT,
		verification_status TEXT NOT NULL,
		verified_by TEXT,
		verified_at TEXT,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_contributions_member
		ON contributions(member_id, period_id);
	CREATE INDEX IF NOT EXISTS idx_contributions_period
		ON contributions(period_id);

	-- Penalties (manual penalties may repeat; engine penalties may not)
	CREATE TABLE IF NOT EXISTS penalties (
		id TEXT PRIMARY KEY,
		stokvel_id TEXT NOT NULL,
		member_id TEXT NOT NULL,
		period_id TEXT,
		penalty_rule_id TEXT NOT NULL REFERENCES penalty_rules(id),
		category TEXT NOT NULL,
		amount TEXT NOT NULL,
		reason TEXT NOT NULL,
		applied_date TEXT NOT NULL,
		status TEXT NOT NULL,
		paid_amount TEXT NOT NULL DEFAULT '0',
		paid_date TEXT,
		waived_by TEXT,
		waived_reason TEXT,
		source TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_penalties_engine_once
		ON penalties(member_id, period_id, penalty_rule_id) WHERE source = 'engine';
	CREATE INDEX IF NOT EXISTS idx_penalties_stokvel_member
		ON penalties(stokvel_id, member_id);

	-- Outbox
	CREATE TABLE IF NOT EXISTS notification_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		stokvel_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		member_id TEXT,
		period_id TEXT,
		payload TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_stokvel
		ON notification_events(stokvel_id, seq);

	-- Reconciliation audit trail
	CREATE TABLE IF NOT EXISTS reconciliation_runs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		stokvel_id TEXT NOT NULL,
		window_from TEXT NOT NULL,
		window_to TEXT NOT NULL,
		as_of TEXT NOT NULL,
		status TEXT NOT NULL,
		collection_rate TEXT NOT NULL,
		penalties_applied INTEGER NOT NULL DEFAULT 0,
		warnings INTEGER NOT NULL DEFAULT 0,
		anomalies INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_stokvel
		ON reconciliation_runs(stokvel_id, seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (finance.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store finance.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{db: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// WithReadTx runs fn inside a transaction that is always rolled back. The
// driver ignores sql.TxOptions.ReadOnly, so the read lock is what keeps
// writers out.
func (s *Store) WithReadTx(ctx context.Context, fn func(store finance.Store) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer sqlTx.Rollback()

	return fn(&queries{db: sqlTx})
}

// queries implements finance.Store over a pool or a transaction.
type queries struct {
	db querier
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var _ finance.Store = (*queries)(nil)

type scanner interface {
	Scan(dest ...any) error
}

// execOne runs a write and reports finance.NotFound when nothing matched.
func (q *queries) execOne(ctx context.Context, entity string, id any, query string, args ...any) error {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return finance.NotFound(entity, id)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// where accumulates AND-ed filter clauses.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, args ...any) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *where) in(column string, values []string) {
	if len(values) == 0 {
		return
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	w.add(column+" IN ("+marks+")", args...)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// decoder converts stored TEXT columns, keeping the first error.
type decoder struct {
	err error
}

func (d *decoder) date(s string) finance.Date {
	v, err := finance.ParseDate(s)
	if err != nil && d.err == nil {
		d.err = err
	}
	return v
}

func (d *decoder) optDate(ns sql.NullString) *finance.Date {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	v := d.date(ns.String)
	return &v
}

func (d *decoder) decimal(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil && d.err == nil {
		d.err = fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return v
}

func (d *decoder) optDecimal(ns sql.NullString) *decimal.Decimal {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	v := d.decimal(ns.String)
	return &v
}

func (d *decoder) time(s string) time.Time {
	v, err := time.Parse(time.RFC3339Nano, s)
	if err != nil && d.err == nil {
		d.err = fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return v
}

func (d *decoder) optTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	v := d.time(ns.String)
	return &v
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatOptTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return nullString(formatTime(*t))
}

func formatOptDate(d *finance.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return nullString(d.String())
}

func formatOptDecimal(v *decimal.Decimal) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return nullString(v.String())
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
		se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
