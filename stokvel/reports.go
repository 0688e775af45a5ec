package stokvel

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stokvela/finance-engine/finance"
)

// =============================================================================
// REPORT SERVICE - Reconciliation over a consistent snapshot
// =============================================================================

type ReportService struct {
	*base
	penalties *PenaltyService
}

// Reconcile builds a report for the window. It writes nothing.
func (s *ReportService) Reconcile(ctx context.Context, stokvelID finance.StokvelID, w finance.Window, asOf finance.Date) (finance.Report, error) {
	ctx, span := s.startSpan(ctx, "ReportService.Reconcile", stokvelID)
	started := time.Now()

	rep, err := s.reconcile(ctx, stokvelID, w, asOf)
	endSpan(span, err)
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.ObserveReconcile(status, time.Since(started))
	return rep, err
}

func (s *ReportService) reconcile(ctx context.Context, stokvelID finance.StokvelID, w finance.Window, asOf finance.Date) (finance.Report, error) {
	if asOf.IsZero() {
		asOf = s.today()
	}
	var snap finance.Snapshot
	err := s.store.WithReadTx(ctx, func(tx finance.Store) error {
		if _, err := tx.GetStokvel(ctx, stokvelID); err != nil {
			return err
		}
		var err error
		snap, err = finance.LoadSnapshot(ctx, tx, stokvelID, w, asOf)
		return err
	})
	if err != nil {
		return finance.Report{}, err
	}
	rep := finance.Reconcile(snap)
	if len(rep.Warnings) > 0 {
		s.warn(rep.Warnings...)
	}
	for _, a := range rep.Anomalies {
		s.log.Warn("reconciliation anomaly",
			zap.String("stokvel_id", string(stokvelID)),
			zap.String("member_id", string(a.MemberID)),
			zap.String("period_id", string(a.PeriodID)),
			zap.String("message", a.Message),
		)
	}
	return rep, nil
}

// MemberCompliance returns one member's summary for the window.
func (s *ReportService) MemberCompliance(ctx context.Context, stokvelID finance.StokvelID, member finance.MemberID, w finance.Window, asOf finance.Date) (finance.MemberSummary, error) {
	rep, err := s.Reconcile(ctx, stokvelID, w, asOf)
	if err != nil {
		return finance.MemberSummary{}, err
	}
	sum, ok := rep.Member(member)
	if !ok {
		return finance.MemberSummary{}, finance.NotFound("active member", member)
	}
	return sum, nil
}

// ReconcileMany reconciles several stokvels in parallel, at most
// Options.Concurrency at a time. The first error cancels the rest.
func (s *ReportService) ReconcileMany(ctx context.Context, ids []finance.StokvelID, w finance.Window, asOf finance.Date) ([]finance.Report, error) {
	out := make([]finance.Report, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			rep, err := s.Reconcile(ctx, id, w, asOf)
			if err != nil {
				return err
			}
			out[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// RUNS - Reconcile, optionally apply, and record for audit
// =============================================================================

type RunRequest struct {
	StokvelID      finance.StokvelID
	Window         finance.Window
	AsOf           finance.Date
	ApplyPenalties bool
	PublishEvents  bool
}

type RunResult struct {
	Run     finance.ReconciliationRun
	Report  finance.Report
	Applied ApplyResult
}

type collectionPayload struct {
	Label                string `json:"label"`
	DueDate              string `json:"due_date"`
	ActiveMembers        int    `json:"active_members"`
	Verified             int    `json:"verified"`
	TotalExpected        string `json:"total_expected"`
	TotalReceived        string `json:"total_received"`
	CollectionPercentage string `json:"collection_percentage"`
}

type warningPayload struct {
	Kind      string   `json:"kind"`
	Category  string   `json:"category"`
	AsOf      string   `json:"as_of"`
	Chosen    string   `json:"chosen"`
	Discarded []string `json:"discarded"`
}

// Run reconciles, applies penalties and queues notifications as requested,
// then stores a ReconciliationRun. A failed run is stored too.
func (s *ReportService) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	if req.AsOf.IsZero() {
		req.AsOf = s.today()
	}
	run := finance.ReconciliationRun{
		ID:        s.newID(),
		StokvelID: req.StokvelID,
		Window:    req.Window,
		AsOf:      req.AsOf,
		StartedAt: s.now(),
	}

	res, err := s.run(ctx, req)
	run.CompletedAt = s.now()
	if err != nil {
		run.Status = finance.RunFailed
		run.Error = err.Error()
	} else {
		run.Status = finance.RunCompleted
		run.CollectionRate = res.Report.CollectionRate
		run.PenaltiesApplied = len(res.Applied.Applied)
		run.Warnings = len(res.Report.Warnings)
		run.Anomalies = len(res.Report.Anomalies)
	}
	if saveErr := s.store.SaveReconciliationRun(ctx, run); saveErr != nil {
		s.log.Error("saving reconciliation run failed", zap.String("run_id", run.ID), zap.Error(saveErr))
		if err == nil {
			err = saveErr
		}
	}
	res.Run = run
	s.log.Info("reconciliation run finished",
		zap.String("run_id", run.ID),
		zap.String("stokvel_id", string(run.StokvelID)),
		zap.String("status", string(run.Status)),
		zap.Int("penalties_applied", run.PenaltiesApplied),
	)
	return res, err
}

func (s *ReportService) run(ctx context.Context, req RunRequest) (RunResult, error) {
	var res RunResult
	rep, err := s.Reconcile(ctx, req.StokvelID, req.Window, req.AsOf)
	if err != nil {
		return res, err
	}
	res.Report = rep

	if req.ApplyPenalties {
		if res.Applied, err = s.penalties.ApplyAssessments(ctx, rep); err != nil {
			return res, err
		}
	}
	if req.PublishEvents {
		if err := s.publish(ctx, rep); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (s *ReportService) publish(ctx context.Context, rep finance.Report) error {
	var events []finance.NotificationEvent
	for _, p := range rep.Periods {
		id := p.PeriodID
		ev, err := s.event(rep.StokvelID, finance.EventPeriodCollection, nil, &id, collectionPayload{
			Label:                p.Label,
			DueDate:              p.Due.String(),
			ActiveMembers:        p.ActiveMembers,
			Verified:             p.VerifiedCount,
			TotalExpected:        p.TotalExpected.StringFixed(2),
			TotalReceived:        p.TotalReceived.StringFixed(2),
			CollectionPercentage: p.CollectionPercentage.StringFixed(2),
		})
		if err != nil {
			return err
		}
		events = append(events, ev)
	}
	for _, w := range rep.Warnings {
		discarded := make([]string, len(w.Discarded))
		for i, id := range w.Discarded {
			discarded[i] = string(id)
		}
		ev, err := s.event(rep.StokvelID, finance.EventRuleIntegrityWarning, nil, nil, warningPayload{
			Kind:      string(w.Kind),
			Category:  w.Category,
			AsOf:      w.AsOf.String(),
			Chosen:    string(w.Chosen),
			Discarded: discarded,
		})
		if err != nil {
			return err
		}
		events = append(events, ev)
	}
	if len(events) == 0 {
		return nil
	}
	return s.store.WithTx(ctx, func(tx finance.Store) error {
		return tx.Publish(ctx, events...)
	})
}

// Runs lists recorded runs, newest first.
func (s *ReportService) Runs(ctx context.Context, stokvelID finance.StokvelID, limit int) ([]finance.ReconciliationRun, error) {
	return s.store.ListReconciliationRuns(ctx, stokvelID, limit)
}
