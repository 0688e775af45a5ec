/*
reconcile.go - Matching contributions against payment periods

PURPOSE:
  Given a consistent snapshot of one stokvel (periods in a window, the
  active roster, contributions and penalty rules) Reconcile classifies
  every (member, period) pair, assesses the penalties the rules call for,
  and derives compliance and collection figures.

  Reconcile is pure: it reads only the snapshot and writes nothing.
  Persisting assessed penalties and emitting notifications is the
  service layer's job.

CLASSIFICATION (per active member x period):
  missing        no record, or the record was rejected/reversed
  unverified     a pending record exists
  on_time_full   verified, paid on or before due, amount >= expected
  on_time_short  verified, paid on or before due, amount < expected
  late_full      verified, paid after due, amount >= expected
  late_short     verified, paid after due, amount < expected

PENALTIES:
  late_*         late_payment rule as of the payment date,
                 daysLate = payment - due, base = amount paid
  *_short        insufficient_payment rule as of the payment date,
                 base = shortage, no grace (see CalculateShortfallPenalty)
  missing        once the due date is before the snapshot date:
                 no_payment rule as of the snapshot date,
                 daysLate = asOf - due, base = amount expected

  A required rule that does not resolve yields a zero assessment with
  outcome no_applicable_rule, so reports can tell "no rule" apart from
  "complied".

ANOMALIES:
  Data the engine cannot account for (a contribution from someone not on
  the roster, two records for one member and period) is recorded on the
  report and the run carries on.
*/
package finance

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUT
// =============================================================================

// Window selects periods by due date, inclusive at both ends.
type Window struct {
	From Date
	To   Date
}

func (w Window) Contains(d Date) bool {
	return !d.Before(w.From) && !d.After(w.To)
}

func (w Window) Validate() error {
	if w.From.IsZero() || w.To.IsZero() {
		return &ValidationError{Field: "window", Message: "from and to are required"}
	}
	if w.To.Before(w.From) {
		return &ValidationError{Field: "window", Message: "to must not be before from"}
	}
	return nil
}

// Snapshot is everything Reconcile reads. Stores build it inside one read
// transaction so a report never mixes half-committed verifications.
type Snapshot struct {
	StokvelID     StokvelID
	AsOf          Date
	Window        Window
	Periods       []PaymentPeriod
	Members       []Member
	Contributions []Contribution
	PenaltyRules  []PenaltyRule
}

// =============================================================================
// OUTPUT
// =============================================================================

type Classification string

const (
	ClassMissing     Classification = "missing"
	ClassUnverified  Classification = "unverified"
	ClassOnTimeFull  Classification = "on_time_full"
	ClassOnTimeShort Classification = "on_time_short"
	ClassLateFull    Classification = "late_full"
	ClassLateShort   Classification = "late_short"
)

func (c Classification) IsLate() bool  { return c == ClassLateFull || c == ClassLateShort }
func (c Classification) IsShort() bool { return c == ClassOnTimeShort || c == ClassLateShort }

// PenaltyOutcome explains an assessment's amount.
type PenaltyOutcome string

const (
	OutcomeAssessed         PenaltyOutcome = "assessed"
	OutcomeWithinGrace      PenaltyOutcome = "within_grace"
	OutcomeNotDue           PenaltyOutcome = "not_due"
	OutcomeNoApplicableRule PenaltyOutcome = "no_applicable_rule"
)

// Assessment is one penalty the rules call for. Amount is rounded to cents.
type Assessment struct {
	MemberID MemberID
	PeriodID PeriodID
	Category PenaltyCategory
	RuleID   RuleID
	Base     decimal.Decimal
	DaysLate int
	AsOf     Date
	Amount   decimal.Decimal
	Outcome  PenaltyOutcome
	Warning  *RuleIntegrityWarning
}

// Chargeable is true when the assessment should become a Penalty.
func (a Assessment) Chargeable() bool {
	return a.Outcome == OutcomeAssessed && a.Amount.IsPositive()
}

// Reason is a human-readable line for the penalty record.
func (a Assessment) Reason(label string) string {
	switch a.Category {
	case PenaltyLatePayment:
		return fmt.Sprintf("Late payment for %s (%d days late)", label, a.DaysLate)
	case PenaltyInsufficientPayment:
		return fmt.Sprintf("Insufficient payment for %s (short by %s)", label, a.Base.StringFixed(2))
	case PenaltyNoPayment:
		return fmt.Sprintf("No payment for %s (%d days overdue)", label, a.DaysLate)
	}
	return fmt.Sprintf("%s for %s", a.Category, label)
}

// Line is the outcome for one member in one period.
type Line struct {
	MemberID       MemberID
	PeriodID       PeriodID
	PeriodLabel    string
	Due            Date
	Classification Classification
	ContributionID ContributionID
	Expected       decimal.Decimal
	Paid           decimal.Decimal
	Shortage       decimal.Decimal
	DaysLate       int
	Assessments    []Assessment
}

// MemberSummary aggregates a member's lines.
type MemberSummary struct {
	MemberID         MemberID
	TotalPeriods     int
	PaidPeriods      int
	LatePayments     int
	MissingPeriods   int
	ComplianceRate   decimal.Decimal
	TotalContributed decimal.Decimal
	PenaltyTotal     decimal.Decimal
	NoRulePenalties  int
}

// PeriodSummary is PeriodTotals plus its label.
type PeriodSummary struct {
	PeriodTotals
	Label string
	Due   Date
}

// Anomaly is data Reconcile skipped without failing the report.
type Anomaly struct {
	MemberID MemberID
	PeriodID PeriodID
	Message  string
}

// Report is the result of one reconciliation run.
type Report struct {
	StokvelID         StokvelID
	AsOf              Date
	Window            Window
	Lines             []Line
	Members           []MemberSummary
	Periods           []PeriodSummary
	TotalExpected     decimal.Decimal
	TotalReceived     decimal.Decimal
	CollectionRate    decimal.Decimal
	AverageCompliance decimal.Decimal
	PenaltyTotal      decimal.Decimal
	Warnings          []RuleIntegrityWarning
	Anomalies         []Anomaly
}

// Assessments flattens every line's assessments.
func (r *Report) Assessments() []Assessment {
	var out []Assessment
	for _, l := range r.Lines {
		out = append(out, l.Assessments...)
	}
	return out
}

// Member returns the summary for id.
func (r *Report) Member(id MemberID) (MemberSummary, bool) {
	for _, m := range r.Members {
		if m.MemberID == id {
			return m, true
		}
	}
	return MemberSummary{}, false
}

// Line returns the line for (member, period).
func (r *Report) Line(member MemberID, period PeriodID) (Line, bool) {
	for _, l := range r.Lines {
		if l.MemberID == member && l.PeriodID == period {
			return l, true
		}
	}
	return Line{}, false
}

// =============================================================================
// ENGINE
// =============================================================================

type contributionKey struct {
	member MemberID
	period PeriodID
}

// Reconcile runs the classification and aggregation over snap.
func Reconcile(snap Snapshot) Report {
	rep := Report{
		StokvelID:     snap.StokvelID,
		AsOf:          snap.AsOf,
		Window:        snap.Window,
		TotalExpected: decimal.Zero,
		TotalReceived: decimal.Zero,
		PenaltyTotal:  decimal.Zero,
	}

	periods := periodsInWindow(snap.Periods, snap.Window)
	members := activeMembers(snap.Members)

	onRoster := make(map[MemberID]bool, len(members))
	for _, m := range members {
		onRoster[m.ID] = true
	}
	inWindow := make(map[PeriodID]bool, len(periods))
	for _, p := range periods {
		inWindow[p.ID] = true
	}

	byKey := make(map[contributionKey]Contribution, len(snap.Contributions))
	for _, c := range snap.Contributions {
		if !inWindow[c.PeriodID] {
			continue
		}
		if !onRoster[c.MemberID] {
			rep.Anomalies = append(rep.Anomalies, Anomaly{
				MemberID: c.MemberID,
				PeriodID: c.PeriodID,
				Message:  "contribution from a member who is not on the active roster",
			})
			continue
		}
		k := contributionKey{member: c.MemberID, period: c.PeriodID}
		if prev, dup := byKey[k]; dup {
			rep.Anomalies = append(rep.Anomalies, Anomaly{
				MemberID: c.MemberID,
				PeriodID: c.PeriodID,
				Message:  fmt.Sprintf("more than one contribution recorded (%s, %s); using %s", prev.ID, c.ID, prev.ID),
			})
			continue
		}
		byKey[k] = c
	}

	warnings := newWarningSet()
	summaries := make(map[MemberID]*MemberSummary, len(members))
	for _, m := range members {
		summaries[m.ID] = &MemberSummary{
			MemberID:         m.ID,
			TotalContributed: decimal.Zero,
			PenaltyTotal:     decimal.Zero,
		}
	}

	for _, p := range periods {
		var periodContribs []Contribution
		for _, m := range members {
			c, has := byKey[contributionKey{member: m.ID, period: p.ID}]
			if has {
				periodContribs = append(periodContribs, c)
			}
			line := reconcileLine(snap, p, m.ID, c, has)
			for _, a := range line.Assessments {
				if a.Warning != nil {
					warnings.add(*a.Warning)
				}
			}
			summarize(summaries[m.ID], line)
			rep.Lines = append(rep.Lines, line)
		}

		totals := ComputePeriodTotals(p, len(members), periodContribs)
		rep.Periods = append(rep.Periods, PeriodSummary{PeriodTotals: totals, Label: p.Label, Due: p.Due})
		rep.TotalExpected = rep.TotalExpected.Add(totals.TotalExpected)
		rep.TotalReceived = rep.TotalReceived.Add(totals.TotalReceived)
	}

	complianceSum := decimal.Zero
	for _, m := range members {
		s := summaries[m.ID]
		s.ComplianceRate = PercentageOf(s.PaidPeriods, s.TotalPeriods)
		complianceSum = complianceSum.Add(s.ComplianceRate)
		rep.PenaltyTotal = rep.PenaltyTotal.Add(s.PenaltyTotal)
		rep.Members = append(rep.Members, *s)
	}
	if len(members) > 0 {
		rep.AverageCompliance = complianceSum.Div(decimal.NewFromInt(int64(len(members)))).Round(2)
	} else {
		rep.AverageCompliance = decimal.Zero
	}
	rep.CollectionRate = Percentage(rep.TotalReceived, rep.TotalExpected)
	rep.Warnings = warnings.list()
	return rep
}

func reconcileLine(snap Snapshot, p PaymentPeriod, member MemberID, c Contribution, has bool) Line {
	line := Line{
		MemberID:    member,
		PeriodID:    p.ID,
		PeriodLabel: p.Label,
		Due:         p.Due,
		Expected:    p.ExpectedPerMember,
		Paid:        decimal.Zero,
		Shortage:    p.ExpectedPerMember,
	}

	if !has || !c.Counts() {
		line.Classification = ClassMissing
		line.Assessments = append(line.Assessments, assessNoPayment(snap, p, member))
		return line
	}

	line.ContributionID = c.ID
	line.Paid = c.Amount
	line.Shortage = c.Shortage(p)
	line.DaysLate = c.DaysLate(p)

	if c.Status == StatusPending {
		line.Classification = ClassUnverified
		return line
	}

	short := line.Shortage.IsPositive()
	switch {
	case c.IsLate(p) && short:
		line.Classification = ClassLateShort
	case c.IsLate(p):
		line.Classification = ClassLateFull
	case short:
		line.Classification = ClassOnTimeShort
	default:
		line.Classification = ClassOnTimeFull
	}

	if line.Classification.IsLate() {
		line.Assessments = append(line.Assessments,
			assess(snap, member, p.ID, PenaltyLatePayment, c.PaymentDate, c.Amount, line.DaysLate))
	}
	if line.Classification.IsShort() {
		line.Assessments = append(line.Assessments, assessShortfall(snap, member, p.ID, c.PaymentDate, line.Shortage))
	}
	return line
}

func assessNoPayment(snap Snapshot, p PaymentPeriod, member MemberID) Assessment {
	if !p.Due.Before(snap.AsOf) {
		return Assessment{
			MemberID: member,
			PeriodID: p.ID,
			Category: PenaltyNoPayment,
			Base:     p.ExpectedPerMember,
			AsOf:     snap.AsOf,
			Amount:   decimal.Zero,
			Outcome:  OutcomeNotDue,
		}
	}
	return assess(snap, member, p.ID, PenaltyNoPayment, snap.AsOf, p.ExpectedPerMember, DaysBetween(p.Due, snap.AsOf))
}

// assess resolves the rule for category as of asOf and runs the calculator.
func assess(snap Snapshot, member MemberID, period PeriodID, category PenaltyCategory, asOf Date, base decimal.Decimal, daysLate int) Assessment {
	a := Assessment{
		MemberID: member,
		PeriodID: period,
		Category: category,
		Base:     base,
		DaysLate: daysLate,
		AsOf:     asOf,
		Amount:   decimal.Zero,
	}
	res := ResolvePenalty(snap.PenaltyRules, category, asOf)
	if !res.Found {
		a.Outcome = OutcomeNoApplicableRule
		return a
	}
	a.RuleID = res.Rule.ID
	a.Warning = res.Warning
	if daysLate <= res.Rule.GracePeriodDays {
		a.Outcome = OutcomeWithinGrace
		return a
	}
	a.Amount = RoundMoney(CalculatePenalty(res.Rule, base, daysLate))
	a.Outcome = OutcomeAssessed
	return a
}

func assessShortfall(snap Snapshot, member MemberID, period PeriodID, paidOn Date, shortage decimal.Decimal) Assessment {
	a := Assessment{
		MemberID: member,
		PeriodID: period,
		Category: PenaltyInsufficientPayment,
		Base:     shortage,
		AsOf:     paidOn,
		Amount:   decimal.Zero,
	}
	res := ResolvePenalty(snap.PenaltyRules, PenaltyInsufficientPayment, paidOn)
	if !res.Found {
		a.Outcome = OutcomeNoApplicableRule
		return a
	}
	a.RuleID = res.Rule.ID
	a.Warning = res.Warning
	a.Amount = RoundMoney(CalculateShortfallPenalty(res.Rule, shortage))
	a.Outcome = OutcomeAssessed
	return a
}

func summarize(s *MemberSummary, line Line) {
	s.TotalPeriods++
	switch line.Classification {
	case ClassMissing:
		s.MissingPeriods++
	case ClassUnverified:
	default:
		s.PaidPeriods++
		s.TotalContributed = s.TotalContributed.Add(line.Paid)
		if line.Classification.IsLate() {
			s.LatePayments++
		}
	}
	for _, a := range line.Assessments {
		s.PenaltyTotal = s.PenaltyTotal.Add(a.Amount)
		if a.Outcome == OutcomeNoApplicableRule {
			s.NoRulePenalties++
		}
	}
}

func periodsInWindow(all []PaymentPeriod, w Window) []PaymentPeriod {
	var out []PaymentPeriod
	for _, p := range all {
		if w.Contains(p.Due) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Due.Equal(out[j].Due) {
			return out[i].Due.Before(out[j].Due)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func activeMembers(all []Member) []Member {
	var out []Member
	for _, m := range all {
		if m.Status == MemberActive {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// warningSet keeps the first occurrence of each distinct warning.
type warningSet struct {
	seen  map[string]bool
	items []RuleIntegrityWarning
}

func newWarningSet() *warningSet {
	return &warningSet{seen: make(map[string]bool)}
}

func (s *warningSet) add(w RuleIntegrityWarning) {
	k := fmt.Sprintf("%s|%s|%s|%s", w.Kind, w.Category, w.AsOf, w.Chosen)
	if s.seen[k] {
		return
	}
	s.seen[k] = true
	s.items = append(s.items, w)
}

func (s *warningSet) list() []RuleIntegrityWarning { return s.items }
