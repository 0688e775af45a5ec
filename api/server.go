/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, included in request logs
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. Logger:     zap request logging
  4. Tracing:    W3C trace context extraction
  5. CORS:       Cross-origin requests for the committee dashboard

ROUTE GROUPS:
  /api/stokvels/{id}/*     Everything scoped to one stokvel
  /api/contribution-rules  Rule version lifecycle
  /api/penalty-rules       Rule version lifecycle
  /api/periods/*           Period lifecycle and totals
  /api/contributions/*     Verification workflow
  /api/penalties/*         Waivers and payments
  /api/cycles/*            Cycle lifecycle
  /api/bank-accounts/*     Primary account management
  /api/reconciliation/*    Cross-stokvel batch reports
  /api/rule-presets/*      Ready-made constitutions
  /metrics                 Prometheus
  /healthz                 Store health

SECURITY NOTE:
  No authentication middleware. Deploy behind the platform gateway.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stokvela/finance-engine/observability"
)

// NewRouter creates a new router with all routes configured. A nil metrics
// disables /metrics.
func NewRouter(h *Handler, metrics *observability.Metrics, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(observability.ZapLoggerMiddleware(h.Logger))
	r.Use(observability.TracingMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Healthz)
	if metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/stokvels", func(r chi.Router) {
			r.Get("/", h.ListStokvels)
			r.Post("/", h.CreateStokvel)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetStokvel)
				r.Get("/events", h.ListEvents)

				r.Get("/members", h.ListMembers)
				r.Put("/members/{memberID}", h.SaveMember)
				r.Get("/members/{memberID}/compliance", h.GetMemberCompliance)

				r.Get("/contribution-rules", h.ListContributionRules)
				r.Post("/contribution-rules", h.CreateContributionRule)
				r.Get("/contribution-rules/resolve", h.ResolveContributionRule)
				r.Get("/penalty-rules", h.ListPenaltyRules)
				r.Post("/penalty-rules", h.CreatePenaltyRule)
				r.Get("/penalty-rules/resolve", h.ResolvePenaltyRule)
				r.Get("/rule-sets", h.ExportRuleSet)
				r.Post("/rule-sets", h.ImportRuleSet)

				r.Get("/periods", h.ListPeriods)
				r.Post("/periods/preview", h.PreviewPeriods)
				r.Post("/periods/generate", h.GeneratePeriods)

				r.Get("/contributions", h.ListContributions)
				r.Post("/contributions", h.RecordContribution)
				r.Post("/contributions/import", h.ImportPayments)

				r.Get("/penalties", h.ListPenalties)
				r.Post("/penalties", h.ApplyPenalty)

				r.Get("/reconciliation", h.GetReconciliation)
				r.Get("/reconciliation/runs", h.ListReconciliationRuns)
				r.Post("/reconciliation/runs", h.RunReconciliation)

				r.Get("/cycles", h.ListCycles)
				r.Post("/cycles", h.CreateCycle)
				r.Get("/cycles/current", h.GetCurrentCycle)

				r.Get("/bank-accounts", h.ListBankAccounts)
				r.Post("/bank-accounts", h.AddBankAccount)
			})
		})

		r.Route("/contribution-rules/{id}", func(r chi.Router) {
			r.Get("/", h.GetContributionRule)
			r.Put("/", h.UpdateContributionRule)
			r.Post("/supersede", h.SupersedeContributionRule)
			r.Post("/deactivate", h.DeactivateContributionRule)
			r.Post("/reactivate", h.ReactivateContributionRule)
		})

		r.Route("/penalty-rules/{id}", func(r chi.Router) {
			r.Get("/", h.GetPenaltyRule)
			r.Put("/", h.UpdatePenaltyRule)
			r.Post("/supersede", h.SupersedePenaltyRule)
			r.Post("/deactivate", h.DeactivatePenaltyRule)
			r.Post("/reactivate", h.ReactivatePenaltyRule)
		})

		r.Route("/periods/{id}", func(r chi.Router) {
			r.Get("/", h.GetPeriod)
			r.Get("/summary", h.PeriodSummary)
			r.Post("/close", h.ClosePeriod)
			r.Post("/finalize", h.FinalizePeriod)
			r.Put("/auto-penalties", h.SetAutoPenalties)
		})

		r.Route("/contributions/{id}", func(r chi.Router) {
			r.Get("/", h.GetContribution)
			r.Post("/verify", h.VerifyContribution)
			r.Post("/reject", h.RejectContribution)
			r.Post("/reverse", h.ReverseContribution)
			r.Post("/resubmit", h.ResubmitContribution)
		})

		r.Route("/penalties/{id}", func(r chi.Router) {
			r.Get("/", h.GetPenalty)
			r.Post("/waive", h.WaivePenalty)
			r.Post("/payments", h.RecordPenaltyPayment)
		})

		r.Route("/cycles/{id}", func(r chi.Router) {
			r.Post("/activate", h.ActivateCycle)
			r.Post("/complete", h.CompleteCycle)
			r.Post("/cancel", h.CancelCycle)
		})

		r.Route("/bank-accounts/{id}", func(r chi.Router) {
			r.Post("/primary", h.SetPrimaryBankAccount)
			r.Post("/deactivate", h.DeactivateBankAccount)
		})

		r.Post("/reconciliation/batch", h.BatchReconcile)
		r.Get("/rule-presets/{name}", h.GetRulePreset)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found", nil)
	})

	return r
}
