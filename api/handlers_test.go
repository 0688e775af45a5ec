/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Request validation and error status mapping
- Rule versioning over HTTP (overlap, supersede, resolve)
- Rule-set import/export
- The monthly cycle end to end: generate, record, verify, run
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stokvela/finance-engine/factory"
	"github.com/stokvela/finance-engine/finance"
	"github.com/stokvela/finance-engine/finance/store"
	"github.com/stokvela/finance-engine/observability"
	"github.com/stokvela/finance-engine/stokvel"
	"github.com/stokvela/finance-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var pinnedNow = time.Date(2025, 4, 15, 9, 0, 0, 0, time.UTC)

type apiFixture struct {
	t       *testing.T
	svc     *stokvel.Services
	handler *Handler
	router  http.Handler
}

func newAPI(t *testing.T, st finance.TxStore) *apiFixture {
	t.Helper()
	var seq atomic.Int64
	logger := zaptest.NewLogger(t)
	metrics := observability.NewMetrics()
	svc := stokvel.New(st, stokvel.Options{
		Logger:  logger,
		Metrics: metrics,
		Now:     func() time.Time { return pinnedNow },
		NewID:   func() string { return fmt.Sprintf("id-%03d", seq.Add(1)) },
	})
	h := NewHandler(svc, logger, finance.LastDayOfMonth)
	return &apiFixture{t: t, svc: svc, handler: h, router: NewRouter(h, metrics, []string{"http://localhost:5173"})}
}

func newMemoryAPI(t *testing.T) *apiFixture {
	return newAPI(t, store.NewMemory())
}

// do sends body as JSON; a string body is sent as-is.
func (a *apiFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(a.t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (a *apiFixture) createStokvel(name string) StokvelDTO {
	a.t.Helper()
	rec := a.do("POST", "/api/stokvels", map[string]any{"name": name})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[StokvelDTO](a.t, rec)
}

func (a *apiFixture) member(stokvelID, id string) {
	a.t.Helper()
	rec := a.do("PUT", "/api/stokvels/"+stokvelID+"/members/"+id, map[string]any{"name": "Member " + id, "joined_at": "2024-06-01"})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
}

func regularRuleBody(from, amount string) map[string]any {
	return map[string]any{
		"name":           "Monthly contribution",
		"category":       "regular",
		"amount":         amount,
		"effective_from": from,
		"is_mandatory":   true,
	}
}

// =============================================================================
// STOKVELS AND VALIDATION
// =============================================================================

func TestCreateStokvel_DefaultsDueDay(t *testing.T) {
	a := newMemoryAPI(t)

	sv := a.createStokvel("Kasi Savings Club")
	assert.Equal(t, 31, sv.ContributionDueDay)
	assert.True(t, sv.IsActive)

	rec := a.do("GET", "/api/stokvels/"+sv.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Kasi Savings Club", decode[StokvelDTO](t, rec).Name)

	rec = a.do("GET", "/api/stokvels", nil)
	assert.Len(t, decode[[]StokvelDTO](t, rec), 1)
}

func TestCreateStokvel_ValidationErrorsNameFields(t *testing.T) {
	a := newMemoryAPI(t)

	rec := a.do("POST", "/api/stokvels", map[string]any{"contribution_due_day": 40})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "required", resp.Fields["name"])
	assert.Equal(t, "max", resp.Fields["contribution_due_day"])
}

func TestErrorMapping(t *testing.T) {
	a := newMemoryAPI(t)
	sv := a.createStokvel("Club")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"unknown stokvel", "GET", "/api/stokvels/nope", nil, http.StatusNotFound},
		{"malformed body", "POST", "/api/stokvels", "{", http.StatusBadRequest},
		{"bad date layout", "POST", "/api/stokvels/" + sv.ID + "/contribution-rules", regularRuleBody("01/03/2025", "500"), http.StatusBadRequest},
		{"engine validation", "POST", "/api/stokvels/" + sv.ID + "/contribution-rules", regularRuleBody("2025-01-01", "0"), http.StatusBadRequest},
		{"no rule in force", "GET", "/api/stokvels/" + sv.ID + "/contribution-rules/resolve?as_of=2025-01-01", nil, http.StatusNotFound},
		{"report without window", "GET", "/api/stokvels/" + sv.ID + "/reconciliation", nil, http.StatusBadRequest},
		{"unknown preset", "GET", "/api/rule-presets/chama", nil, http.StatusNotFound},
		{"unknown route", "GET", "/api/nothing", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

// =============================================================================
// RULES
// =============================================================================

func TestContributionRules_VersioningOverHTTP(t *testing.T) {
	a := newMemoryAPI(t)
	sv := a.createStokvel("Club")
	base := "/api/stokvels/" + sv.ID

	// GIVEN: R500 from January
	rec := a.do("POST", base+"/contribution-rules", regularRuleBody("2025-01-01", "500"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[ContributionRuleDTO](t, rec)
	assert.Equal(t, "500.00", first.Amount)
	assert.Nil(t, first.EffectiveUntil)

	// WHEN: an overlapping rule is created directly
	rec = a.do("POST", base+"/contribution-rules", regularRuleBody("2025-03-01", "600"))

	// THEN: conflict
	assert.Equal(t, http.StatusConflict, rec.Code)

	// WHEN: the same change goes through supersede
	rec = a.do("POST", "/api/contribution-rules/"+first.ID+"/supersede", regularRuleBody("2025-03-01", "600"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// THEN: the old version ends where the new one starts
	rec = a.do("GET", "/api/contribution-rules/"+first.ID, nil)
	old := decode[ContributionRuleDTO](t, rec)
	require.NotNil(t, old.EffectiveUntil)
	assert.Equal(t, "2025-03-01", *old.EffectiveUntil)

	type resolved struct {
		Rule    ContributionRuleDTO `json:"rule"`
		Warning *WarningDTO         `json:"warning"`
	}
	rec = a.do("GET", base+"/contribution-rules/resolve?category=regular&as_of=2025-02-28", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	feb := decode[resolved](t, rec)
	assert.Equal(t, "500.00", feb.Rule.Amount)
	assert.Nil(t, feb.Warning)

	rec = a.do("GET", base+"/contribution-rules/resolve?category=regular&as_of=2025-03-01", nil)
	assert.Equal(t, "600.00", decode[resolved](t, rec).Rule.Amount)

	rec = a.do("GET", base+"/contribution-rules", nil)
	assert.Len(t, decode[[]ContributionRuleDTO](t, rec), 2)
}

func TestPenaltyRules_DeactivateAndReactivate(t *testing.T) {
	a := newMemoryAPI(t)
	sv := a.createStokvel("Club")

	rec := a.do("POST", "/api/stokvels/"+sv.ID+"/penalty-rules", map[string]any{
		"name":               "Late fee",
		"category":           "late_payment",
		"calculation_method": "daily",
		"amount":             "10",
		"grace_period_days":  3,
		"maximum_amount":     "100",
		"effective_from":     "2025-01-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rule := decode[PenaltyRuleDTO](t, rec)
	require.NotNil(t, rule.MaximumAmount)
	assert.Equal(t, "100.00", *rule.MaximumAmount)

	rec = a.do("POST", "/api/penalty-rules/"+rule.ID+"/deactivate", map[string]any{"effective_until": "2025-06-30"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	off := decode[PenaltyRuleDTO](t, rec)
	assert.False(t, off.IsActive)
	require.NotNil(t, off.EffectiveUntil)
	assert.Equal(t, "2025-06-30", *off.EffectiveUntil)

	rec = a.do("GET", "/api/stokvels/"+sv.ID+"/penalty-rules/resolve?category=late_payment&as_of=2025-02-01", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do("POST", "/api/penalty-rules/"+rule.ID+"/reactivate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[PenaltyRuleDTO](t, rec).IsActive)
}

func TestContributionRules_DeactivateWithoutBodyClosesToday(t *testing.T) {
	a := newMemoryAPI(t)
	sv := a.createStokvel("Club")
	rec := a.do("POST", "/api/stokvels/"+sv.ID+"/rule-sets", factory.SavingsClubJSON(sv.ID, "2025-01-01", "500"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	type resolved struct {
		Rule ContributionRuleDTO `json:"rule"`
	}
	rec = a.do("GET", "/api/stokvels/"+sv.ID+"/contribution-rules/resolve?category=regular&as_of=2025-02-01", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rule := decode[resolved](t, rec).Rule

	rec = a.do("POST", "/api/contribution-rules/"+rule.ID+"/deactivate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	off := decode[ContributionRuleDTO](t, rec)
	assert.False(t, off.IsActive)
	require.NotNil(t, off.EffectiveUntil)
	assert.Equal(t, "2025-04-15", *off.EffectiveUntil)
}

func TestRuleSets_ImportIsAtomic(t *testing.T) {
	a := newMemoryAPI(t)
	sv := a.createStokvel("Club")
	base := "/api/stokvels/" + sv.ID

	rec := a.do("GET", "/api/rule-presets/savings-club?effective_from=2025-01-01&amount=500", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	preset := rec.Body.String()

	// WHEN: the preset is imported
	rec = a.do("POST", base+"/rule-sets", preset)

	// THEN: every rule is created
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	set := decode[RuleSetDTO](t, rec)
	assert.Len(t, set.ContributionRules, 1)
	assert.Len(t, set.PenaltyRules, 3)
	for _, p := range set.PenaltyRules {
		assert.Equal(t, sv.ID, p.StokvelID)
	}

	// WHEN: it is imported a second time
	rec = a.do("POST", base+"/rule-sets", preset)

	// THEN: the first overlap rejects the whole set
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = a.do("GET", base+"/penalty-rules", nil)
	assert.Len(t, decode[[]PenaltyRuleDTO](t, rec), 3)

	// AND: export parses back into the same rules
	rec = a.do("GET", base+"/rule-sets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	exported := decode[factory.RuleSetJSON](t, rec)
	assert.Equal(t, sv.ID, exported.StokvelID)
	parsed, err := factory.NewRuleFactory().FromJSON(exported)
	require.NoError(t, err)
	assert.Len(t, parsed.Penalties, 3)
}

// =============================================================================
// END TO END
// =============================================================================

// marchCycle runs one month with three members against the savings club
// constitution (R500 due on the 31st; late R10/day after 3 days; short 10%
// of the shortage; no payment R100 after 7 days):
//
//	m1 pays 500 on 28 March       on time
//	m2 pays 400 on 6 April        late 6 days (30) and short 100 (10)
//	m3 pays nothing               no payment (100)
func marchCycle(t *testing.T, a *apiFixture) {
	sv := a.createStokvel("Kasi Savings Club")
	base := "/api/stokvels/" + sv.ID
	for _, m := range []string{"m1", "m2", "m3"} {
		a.member(sv.ID, m)
	}
	rec := a.do("POST", base+"/rule-sets", factory.SavingsClubJSON(sv.ID, "2025-01-01", "500"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Periods
	gen := map[string]any{"start_date": "2025-03-01", "end_date": "2025-03-31"}
	rec = a.do("POST", base+"/periods/generate", gen)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[GenerateResultDTO](t, rec)
	require.Len(t, res.Created, 1)
	march := res.Created[0]
	assert.Equal(t, "March 2025", march.Label)
	assert.Equal(t, "2025-03-31", march.DueDate)
	assert.Equal(t, "500.00", march.ExpectedPerMember)

	rec = a.do("POST", base+"/periods/generate", gen)
	assert.Len(t, decode[GenerateResultDTO](t, rec).Existing, 1)

	// Contributions
	pay := func(member, amount, date string) ContributionDTO {
		rec := a.do("POST", base+"/contributions", map[string]any{
			"member_id":         member,
			"payment_period_id": march.ID,
			"amount":            amount,
			"payment_date":      date,
			"payment_method":    "eft",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		c := decode[ContributionDTO](t, rec)
		assert.Equal(t, "pending", c.Status)

		rec = a.do("POST", "/api/contributions/"+c.ID+"/verify", map[string]any{"by": "treasurer"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return decode[ContributionDTO](t, rec)
	}
	c1 := pay("m1", "500", "2025-03-28")
	assert.Equal(t, "verified", c1.Status)
	assert.Equal(t, "treasurer", c1.VerifiedBy)
	pay("m2", "400", "2025-04-06")

	rec = a.do("POST", "/api/contributions/"+c1.ID+"/verify", map[string]any{"by": "treasurer"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Run
	run := map[string]any{"from": "2025-03-01", "to": "2025-03-31", "as_of": "2025-04-15", "apply_penalties": true}
	rec = a.do("POST", base+"/reconciliation/runs", run)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[RunResultDTO](t, rec)
	assert.Equal(t, "completed", out.Run.Status)
	assert.Equal(t, "60.00", out.Report.CollectionRate)
	assert.Equal(t, "140.00", out.Report.PenaltyTotal)
	require.Len(t, out.PenaltiesApplied, 3)

	amounts := map[string]string{}
	for _, p := range out.PenaltiesApplied {
		amounts[p.MemberID+"/"+p.Category] = p.Amount
		assert.Equal(t, "engine", p.Source)
	}
	assert.Equal(t, map[string]string{
		"m2/late_payment":         "30.00",
		"m2/insufficient_payment": "10.00",
		"m3/no_payment":           "100.00",
	}, amounts)

	// A second run applies nothing new
	rec = a.do("POST", base+"/reconciliation/runs", run)
	again := decode[RunResultDTO](t, rec)
	assert.Empty(t, again.PenaltiesApplied)
	assert.Equal(t, 3, again.PenaltiesExisting)

	rec = a.do("GET", base+"/reconciliation/runs", nil)
	assert.Len(t, decode[[]RunDTO](t, rec), 2)

	// Compliance
	rec = a.do("GET", base+"/members/m3/compliance?from=2025-03-01&to=2025-03-31&as_of=2025-04-15", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	m3 := decode[MemberSummaryDTO](t, rec)
	assert.Equal(t, 1, m3.MissingPeriods)
	assert.Equal(t, "0.00", m3.ComplianceRate)

	// Summary
	rec = a.do("GET", "/api/periods/"+march.ID+"/summary", nil)
	totals := decode[PeriodTotalsDTO](t, rec)
	assert.Equal(t, 2, totals.VerifiedCount)
	assert.Equal(t, "900.00", totals.TotalReceived)
	assert.Equal(t, "1500.00", totals.TotalExpected)
}

func TestMonthlyCycle_Memory(t *testing.T) {
	marchCycle(t, newMemoryAPI(t))
}

func TestMonthlyCycle_SQLite(t *testing.T) {
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer st.Close()

	marchCycle(t, newAPI(t, st))
}

// =============================================================================
// PENALTIES, CONTRIBUTIONS, EVENTS
// =============================================================================

func TestPenalties_WaiveAndPay(t *testing.T) {
	a := newMemoryAPI(t)
	marchCycle(t, a)
	sv := decode[[]StokvelDTO](t, a.do("GET", "/api/stokvels", nil))[0]
	base := "/api/stokvels/" + sv.ID

	rec := a.do("GET", base+"/penalties?member_id=m3", nil)
	ps := decode[[]PenaltyDTO](t, rec)
	require.Len(t, ps, 1)
	noPay := ps[0]

	// Partial payment, then waive the rest
	rec = a.do("POST", "/api/penalties/"+noPay.ID+"/payments", map[string]any{"amount": "40", "paid_date": "2025-04-20"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	paid := decode[PenaltyDTO](t, rec)
	assert.Equal(t, "60.00", paid.Outstanding)

	rec = a.do("POST", "/api/penalties/"+noPay.ID+"/waive", map[string]any{"waived_by": "chair", "waived_reason": "hardship"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	waived := decode[PenaltyDTO](t, rec)
	assert.Equal(t, "waived", waived.Status)
	assert.Equal(t, "0.00", waived.Outstanding)

	// Waiving needs a reason
	rec = a.do("POST", "/api/penalties/"+noPay.ID+"/waive", map[string]any{"waived_by": "chair"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "required", decode[ErrorResponse](t, rec).Fields["waived_reason"])
}

func TestEvents_PenaltiesQueueNotifications(t *testing.T) {
	a := newMemoryAPI(t)
	marchCycle(t, a)
	sv := decode[[]StokvelDTO](t, a.do("GET", "/api/stokvels", nil))[0]

	rec := a.do("GET", "/api/stokvels/"+sv.ID+"/events?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[[]EventDTO](t, rec)
	require.Len(t, events, 3)
	for _, e := range events {
		assert.Equal(t, "penalty_applied", e.Kind)
		assert.NotEmpty(t, e.MemberID)
	}
}

func TestImportPayments(t *testing.T) {
	a := newMemoryAPI(t)
	sv := a.createStokvel("Club")
	base := "/api/stokvels/" + sv.ID
	a.member(sv.ID, "m1")
	rec := a.do("POST", base+"/contribution-rules", regularRuleBody("2025-01-01", "500"))
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = a.do("POST", base+"/periods/generate", map[string]any{"start_date": "2025-01-01", "end_date": "2025-02-28"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do("POST", base+"/contributions/import", map[string]any{"payments": []map[string]any{
		{"member_id": "m1", "amount": "500", "payment_date": "2025-01-30", "reference_number": "FNB-1"},
		{"member_id": "m1", "amount": "500", "payment_date": "2025-01-30", "reference_number": "FNB-1"},
		{"member_id": "m1", "amount": "500", "payment_date": "2025-02-27", "reference_number": "FNB-2"},
		{"member_id": "ghost", "amount": "500", "payment_date": "2025-02-27", "reference_number": "FNB-3"},
	}})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[ImportResultDTO](t, rec)
	assert.Len(t, res.Contributions, 2)
	assert.Len(t, res.Duplicates, 1)
	require.Len(t, res.Unmatched, 1)
	assert.Equal(t, "ghost", res.Unmatched[0].MemberID)
}

// =============================================================================
// CYCLES AND BANK ACCOUNTS
// =============================================================================

func TestCyclesAndBankAccounts(t *testing.T) {
	a := newMemoryAPI(t)
	sv := a.createStokvel("Club")
	base := "/api/stokvels/" + sv.ID

	rec := a.do("POST", base+"/cycles", map[string]any{"name": "2025", "start_date": "2025-01-01", "end_date": "2025-12-31"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cycle := decode[CycleDTO](t, rec)
	assert.Equal(t, "planned", cycle.Status)

	rec = a.do("GET", base+"/cycles/current", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do("POST", "/api/cycles/"+cycle.ID+"/activate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = a.do("GET", base+"/cycles/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, cycle.ID, decode[CycleDTO](t, rec).ID)

	// Bank accounts: the first is primary until another is promoted
	add := func(number string, primary bool) BankAccountDTO {
		rec := a.do("POST", base+"/bank-accounts", map[string]any{
			"bank_name": "Capitec", "account_number": number, "branch_code": "470010", "is_primary": primary,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		return decode[BankAccountDTO](t, rec)
	}
	first := add("1234567890", false)
	assert.True(t, first.IsPrimary)
	second := add("9876543210", false)
	assert.False(t, second.IsPrimary)

	rec = a.do("POST", base+"/bank-accounts", map[string]any{"bank_name": "capitec", "account_number": "1234567890"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do("POST", "/api/bank-accounts/"+second.ID+"/primary", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	primary := map[string]bool{}
	for _, b := range decode[[]BankAccountDTO](t, rec) {
		primary[b.ID] = b.IsPrimary
	}
	assert.Equal(t, map[string]bool{first.ID: false, second.ID: true}, primary)

	rec = a.do("POST", "/api/bank-accounts/"+second.ID+"/deactivate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, b := range decode[[]BankAccountDTO](t, rec) {
		assert.Equal(t, b.ID == first.ID, b.IsPrimary, b.ID)
	}
}

// =============================================================================
// OPERATIONS
// =============================================================================

func TestHealthzAndMetrics(t *testing.T) {
	a := newMemoryAPI(t)
	a.handler.Health = func(context.Context) error { return nil }

	rec := a.do("GET", "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	sv := a.createStokvel("Club")
	rec = a.do("POST", "/api/stokvels/"+sv.ID+"/contribution-rules", regularRuleBody("2025-01-01", "500"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do("GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "stokvel_rule_writes_total"))

	a.handler.Health = func(context.Context) error { return fmt.Errorf("disk full") }
	rec = a.do("GET", "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
