/*
Package stokvel is the service layer over the finance engine.

PURPOSE:
  Wraps the pure engine (finance) with everything a running system needs:
  transactions, per-rule-category locking, ids, clocks, logging, metrics,
  tracing and outbox events. The HTTP layer talks only to these services.

SERVICES:
  RuleService:         create/update/close/deactivate versioned rules
  PeriodService:       preview and materialise payment periods
  ContributionService: record payments and move them through verification
  PenaltyService:      persist assessed penalties, manual penalties, waivers
  ReportService:       reconciliation reports and audited runs
  CycleService:        operating cycles and the current-cycle pointer
  BankAccountService:  accounts and the primary-account pointer
  Directory:           stokvels, roster sync, outbox reads

TRANSACTIONS:
  Every write goes through TxStore.WithTx. Checks that read before they
  write (overlap, "current" pointers, duplicate detection) run inside the
  same transaction as the write.

SEE ALSO:
  - finance/: the engine
  - api/: HTTP handlers over these services
*/
package stokvel

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/stokvela/finance-engine/finance"
	"github.com/stokvela/finance-engine/observability"
)

var tracer = otel.Tracer("stokvel")

// Options configure the services. Zero values get defaults.
type Options struct {
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Now is the clock; tests pin it.
	Now func() time.Time
	// NewID generates record ids.
	NewID func() string

	// BatchSize caps how many periods one transaction materialises.
	BatchSize int
	// Concurrency caps parallel stokvels in ReportService.ReconcileMany.
	Concurrency int
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 24
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	return o
}

// Services bundles every service over one store.
type Services struct {
	Rules         *RuleService
	Periods       *PeriodService
	Contributions *ContributionService
	Penalties     *PenaltyService
	Reports       *ReportService
	Cycles        *CycleService
	BankAccounts  *BankAccountService
	Directory     *Directory
}

func New(store finance.TxStore, opts Options) *Services {
	b := newBase(store, opts)
	penalties := &PenaltyService{base: b}
	return &Services{
		Rules:         &RuleService{base: b, locks: newKeyedMutex()},
		Periods:       &PeriodService{base: b},
		Contributions: &ContributionService{base: b},
		Penalties:     penalties,
		Reports:       &ReportService{base: b, penalties: penalties},
		Cycles:        &CycleService{base: b},
		BankAccounts:  &BankAccountService{base: b},
		Directory:     &Directory{base: b},
	}
}

// base is embedded by every service.
type base struct {
	store   finance.TxStore
	log     *zap.Logger
	metrics *observability.Metrics
	opts    Options
}

func newBase(store finance.TxStore, opts Options) *base {
	opts = opts.withDefaults()
	return &base{store: store, log: opts.Logger, metrics: opts.Metrics, opts: opts}
}

func (b *base) now() time.Time { return b.opts.Now().UTC() }

func (b *base) today() finance.Date { return finance.DateOf(b.opts.Now()) }

func (b *base) newID() string { return b.opts.NewID() }

// startSpan opens a span tagged with the stokvel.
func (b *base) startSpan(ctx context.Context, name string, stokvelID finance.StokvelID) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.String("stokvel.id", string(stokvelID))))
}

// endSpan records err on the span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// event builds an outbox row with a JSON payload.
func (b *base) event(stokvelID finance.StokvelID, kind finance.EventKind, member *finance.MemberID, period *finance.PeriodID, payload any) (finance.NotificationEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return finance.NotificationEvent{}, err
	}
	return finance.NotificationEvent{
		ID:        finance.EventID(b.newID()),
		StokvelID: stokvelID,
		Kind:      kind,
		MemberID:  member,
		PeriodID:  period,
		Payload:   raw,
		CreatedAt: b.now(),
	}, nil
}

// warn logs and counts integrity warnings.
func (b *base) warn(ws ...finance.RuleIntegrityWarning) {
	for _, w := range ws {
		b.log.Warn("rule integrity warning",
			zap.String("stokvel_id", string(w.StokvelID)),
			zap.String("kind", string(w.Kind)),
			zap.String("category", w.Category),
			zap.String("as_of", w.AsOf.String()),
			zap.String("chosen", string(w.Chosen)),
			zap.Int("discarded", len(w.Discarded)),
		)
	}
	b.metrics.AddIntegrityWarnings(len(ws))
}
