package sqlite

import (
	"context"
	"database/sql"

	"github.com/stokvela/finance-engine/finance"
)

// =============================================================================
// OUTBOX
// =============================================================================

// Publish appends events in order. seq preserves insertion order for
// ListEvents.
func (q *queries) Publish(ctx context.Context, events ...finance.NotificationEvent) error {
	for _, e := range events {
		var member, period sql.NullString
		if e.MemberID != nil {
			member = nullString(string(*e.MemberID))
		}
		if e.PeriodID != nil {
			period = nullString(string(*e.PeriodID))
		}
		_, err := q.db.ExecContext(ctx, `
			INSERT INTO notification_events (id, stokvel_id, kind, member_id, period_id, payload, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.StokvelID, e.Kind, member, period, nullString(string(e.Payload)), formatTime(e.CreatedAt),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (q *queries) ListEvents(ctx context.Context, stokvelID finance.StokvelID, limit int) ([]finance.NotificationEvent, error) {
	query := `
		SELECT id, stokvel_id, kind, member_id, period_id, payload, created_at
		FROM notification_events
		WHERE stokvel_id = ?
		ORDER BY seq DESC`
	args := []any{stokvelID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []finance.NotificationEvent
	for rows.Next() {
		var e finance.NotificationEvent
		var member, period, payload sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &e.StokvelID, &e.Kind, &member, &period, &payload, &createdAt); err != nil {
			return nil, err
		}
		if member.Valid {
			id := finance.MemberID(member.String)
			e.MemberID = &id
		}
		if period.Valid {
			id := finance.PeriodID(period.String)
			e.PeriodID = &id
		}
		if payload.Valid {
			e.Payload = []byte(payload.String)
		}
		var d decoder
		e.CreatedAt = d.time(createdAt)
		if d.err != nil {
			return nil, d.err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// RECONCILIATION RUNS
// =============================================================================

// SaveReconciliationRun saves a reconciliation run.
func (q *queries) SaveReconciliationRun(ctx context.Context, r finance.ReconciliationRun) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO reconciliation_runs (id, stokvel_id, window_from, window_to, as_of,
			status, collection_rate, penalties_applied, warnings, anomalies, error,
			started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StokvelID, r.Window.From.String(), r.Window.To.String(), r.AsOf.String(),
		r.Status, r.CollectionRate.String(), r.PenaltiesApplied, r.Warnings, r.Anomalies,
		nullString(r.Error), formatTime(r.StartedAt), formatTime(r.CompletedAt),
	)
	return err
}

// ListReconciliationRuns returns the newest runs first.
func (q *queries) ListReconciliationRuns(ctx context.Context, stokvelID finance.StokvelID, limit int) ([]finance.ReconciliationRun, error) {
	query := `
		SELECT id, stokvel_id, window_from, window_to, as_of, status, collection_rate,
			penalties_applied, warnings, anomalies, error, started_at, completed_at
		FROM reconciliation_runs
		WHERE stokvel_id = ?
		ORDER BY seq DESC`
	args := []any{stokvelID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []finance.ReconciliationRun
	for rows.Next() {
		var r finance.ReconciliationRun
		var from, to, asOf, rate, startedAt, completedAt string
		var runErr sql.NullString
		if err := rows.Scan(
			&r.ID, &r.StokvelID, &from, &to, &asOf, &r.Status, &rate,
			&r.PenaltiesApplied, &r.Warnings, &r.Anomalies, &runErr, &startedAt, &completedAt,
		); err != nil {
			return nil, err
		}

		var d decoder
		r.Window = finance.Window{From: d.date(from), To: d.date(to)}
		r.AsOf = d.date(asOf)
		r.CollectionRate = d.decimal(rate)
		r.Error = runErr.String
		r.StartedAt = d.time(startedAt)
		r.CompletedAt = d.time(completedAt)
		if d.err != nil {
			return nil, d.err
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}
