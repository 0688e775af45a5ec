/*
scheduler.go - Automated reconciliation scheduler

PURPOSE:
  Periodically reconciles every active stokvel and applies the penalties
  that became chargeable since the last pass, so committees do not have to
  trigger runs by hand.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each pass covers periods due from the start of the month
    LookbackMonths ago up to today
  - Penalty application is idempotent, so overlapping windows are safe
  - Collection events are not published; those stay a manual run option
  - Every pass is recorded as a reconciliation run per stokvel

CONFIGURATION:
  - Interval: How often to run (RECONCILE_INTERVAL; 0 disables)
  - LookbackMonths: Window length (RECONCILE_LOOKBACK_MONTHS)

USAGE:
  scheduler := NewReconciliationScheduler(services, interval, 3, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - reconciliation.go: RunReconciliation endpoint (manual runs)
  - stokvel/reports.go: ReportService.Run
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stokvela/finance-engine/finance"
	"github.com/stokvela/finance-engine/stokvel"
)

// ReconciliationScheduler runs scheduled reconciliation.
type ReconciliationScheduler struct {
	Services       *stokvel.Services
	Interval       time.Duration
	LookbackMonths int
	Logger         *zap.Logger
	// Now is the clock; tests pin it.
	Now func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// PassResult counts what one pass did.
type PassResult struct {
	Stokvels         int
	Failed           int
	PenaltiesApplied int
}

// NewReconciliationScheduler creates a new scheduler.
func NewReconciliationScheduler(svc *stokvel.Services, interval time.Duration, lookbackMonths int, logger *zap.Logger) *ReconciliationScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconciliationScheduler{
		Services:       svc,
		Interval:       interval,
		LookbackMonths: lookbackMonths,
		Logger:         logger,
		Now:            time.Now,
	}
}

// Start begins the scheduler. A zero interval leaves it off.
func (rs *ReconciliationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.Interval <= 0 {
		rs.Logger.Info("reconciliation scheduler disabled")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.Interval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run(rs.ticker, rs.stop)

	rs.Logger.Info("reconciliation scheduler started", zap.Duration("interval", rs.Interval))
}

// Stop stops the scheduler and waits for a pass in progress to finish.
func (rs *ReconciliationScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.Logger.Info("reconciliation scheduler stopped")
	}
}

func (rs *ReconciliationScheduler) run(ticker *time.Ticker, stop chan struct{}) {
	defer rs.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	// Run immediately on start
	rs.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			rs.RunOnce(ctx)
		case <-stop:
			return
		}
	}
}

// Window returns the due-date window a pass started at now covers.
func (rs *ReconciliationScheduler) Window(now time.Time) finance.Window {
	today := finance.DateOf(now)
	start := finance.MonthStart(today.Year(), today.Month()).AddMonths(-rs.LookbackMonths)
	return finance.Window{From: start, To: today}
}

// RunOnce reconciles every active stokvel once. One stokvel failing does
// not stop the others; its failed run is recorded by ReportService.
func (rs *ReconciliationScheduler) RunOnce(ctx context.Context) PassResult {
	var res PassResult
	now := rs.Now()
	win := rs.Window(now)

	stokvels, err := rs.Services.Directory.ListStokvels(ctx)
	if err != nil {
		rs.Logger.Error("scheduled reconciliation: listing stokvels failed", zap.Error(err))
		return res
	}

	for _, sv := range stokvels {
		if !sv.IsActive {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		res.Stokvels++
		out, err := rs.Services.Reports.Run(ctx, stokvel.RunRequest{
			StokvelID:      sv.ID,
			Window:         win,
			AsOf:           finance.DateOf(now),
			ApplyPenalties: true,
		})
		if err != nil {
			res.Failed++
			rs.Logger.Warn("scheduled reconciliation failed",
				zap.String("stokvel_id", string(sv.ID)),
				zap.Error(err),
			)
			continue
		}
		res.PenaltiesApplied += len(out.Applied.Applied)
	}

	if res.Stokvels > 0 {
		rs.Logger.Info("scheduled reconciliation pass",
			zap.String("from", win.From.String()),
			zap.String("to", win.To.String()),
			zap.Int("stokvels", res.Stokvels),
			zap.Int("failed", res.Failed),
			zap.Int("penalties_applied", res.PenaltiesApplied),
		)
	}
	return res
}
