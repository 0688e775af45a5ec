package finance_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stokvela/finance-engine/finance"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func marchPeriod(expected string) finance.PaymentPeriod {
	return finance.PaymentPeriod{
		ID:                    "march",
		StokvelID:             "stokvel-1",
		RuleID:                "A",
		Label:                 "March 2025",
		Year:                  2025,
		Month:                 3,
		Start:                 date("2025-03-01"),
		End:                   date("2025-03-31"),
		Due:                   date("2025-03-31"),
		ExpectedPerMember:     dec(expected),
		IsOpen:                true,
		AutoGeneratePenalties: true,
	}
}

func roster(n int) []finance.Member {
	out := make([]finance.Member, n)
	for i := range out {
		out[i] = finance.Member{
			ID:        finance.MemberID(fmt.Sprintf("m%02d", i+1)),
			StokvelID: "stokvel-1",
			Status:    finance.MemberActive,
		}
	}
	return out
}

func paid(member finance.MemberID, period finance.PeriodID, amount, on string, status finance.VerificationStatus) finance.Contribution {
	return finance.Contribution{
		ID:          finance.ContributionID(fmt.Sprintf("c-%s-%s", member, period)),
		StokvelID:   "stokvel-1",
		MemberID:    member,
		PeriodID:    period,
		Amount:      dec(amount),
		PaymentDate: date(on),
		Method:      finance.MethodEFT,
		Status:      status,
	}
}

func penaltyRules() []finance.PenaltyRule {
	late := penaltyRule(finance.MethodDaily, "10", 3)
	late.ID = "late"

	short := penaltyRule(finance.MethodPercentage, "10", 0)
	short.ID = "short"
	short.Category = finance.PenaltyInsufficientPayment

	none := penaltyRule(finance.MethodFixed, "75", 7)
	none.ID = "none"
	none.Category = finance.PenaltyNoPayment

	return []finance.PenaltyRule{late, short, none}
}

func marchWindow() finance.Window {
	return finance.Window{From: date("2025-03-01"), To: date("2025-03-31")}
}

// =============================================================================
// COLLECTION FIGURES
// =============================================================================

func TestReconcile_CollectionPercentage(t *testing.T) {
	// GIVEN: R200 expected, 10 active members, 7 verified R200 payments
	members := roster(10)
	var contributions []finance.Contribution
	for _, m := range members[:7] {
		contributions = append(contributions, paid(m.ID, "march", "200", "2025-03-20", finance.StatusVerified))
	}

	// WHEN: reconciling March
	rep := finance.Reconcile(finance.Snapshot{
		StokvelID:     "stokvel-1",
		AsOf:          date("2025-03-31"),
		Window:        marchWindow(),
		Periods:       []finance.PaymentPeriod{marchPeriod("200")},
		Members:       members,
		Contributions: contributions,
	})

	// THEN: R1400 of R2000 received, 70%
	require.Len(t, rep.Periods, 1)
	p := rep.Periods[0]
	assert.True(t, dec("1400").Equal(p.TotalReceived))
	assert.True(t, dec("2000").Equal(p.TotalExpected))
	assert.True(t, dec("70").Equal(p.CollectionPercentage))
	assert.Equal(t, 7, p.VerifiedCount)
	assert.True(t, dec("70").Equal(rep.CollectionRate))
	assert.True(t, dec("70").Equal(rep.AverageCompliance))
}

func TestReconcile_ZeroExpectedMeansZeroPercentage(t *testing.T) {
	for _, members := range [][]finance.Member{nil, roster(3)} {
		p := marchPeriod("0")
		rep := finance.Reconcile(finance.Snapshot{
			StokvelID: "stokvel-1",
			AsOf:      date("2025-03-31"),
			Window:    marchWindow(),
			Periods:   []finance.PaymentPeriod{p},
			Members:   members,
		})
		assert.True(t, rep.CollectionRate.IsZero())
		assert.True(t, rep.Periods[0].CollectionPercentage.IsZero())
		assert.True(t, rep.AverageCompliance.IsZero())
	}
}

func TestComputePeriodTotals_PercentageZeroIffExpectedZero(t *testing.T) {
	for _, expected := range []string{"0", "0.01", "150", "200"} {
		for members := 0; members <= 3; members++ {
			p := marchPeriod(expected)
			var cs []finance.Contribution
			for i := 0; i < members; i++ {
				cs = append(cs, paid(finance.MemberID(fmt.Sprint(i)), "march", "100", "2025-03-10", finance.StatusVerified))
			}
			totals := finance.ComputePeriodTotals(p, members, cs)
			if totals.TotalExpected.IsZero() {
				assert.True(t, totals.CollectionPercentage.IsZero())
			} else {
				assert.False(t, totals.CollectionPercentage.IsZero())
			}
		}
	}
}

// =============================================================================
// CLASSIFICATION AND PENALTIES
// =============================================================================

func TestReconcile_ClassifiesEveryMember(t *testing.T) {
	// GIVEN: six members with different payment histories for March (due 31st)
	members := roster(6)
	contributions := []finance.Contribution{
		paid("m01", "march", "200", "2025-03-25", finance.StatusVerified), // on time, full
		paid("m02", "march", "150", "2025-03-30", finance.StatusVerified), // on time, short by 50
		paid("m03", "march", "200", "2025-04-10", finance.StatusVerified), // 10 days late, full
		paid("m04", "march", "100", "2025-04-02", finance.StatusVerified), // 2 days late, short by 100
		paid("m05", "march", "200", "2025-03-20", finance.StatusPending),  // awaiting verification
		paid("m06", "march", "200", "2025-03-20", finance.StatusRejected), // counts as missing
	}

	// WHEN: reconciling as of April 15th
	rep := finance.Reconcile(finance.Snapshot{
		StokvelID:     "stokvel-1",
		AsOf:          date("2025-04-15"),
		Window:        marchWindow(),
		Periods:       []finance.PaymentPeriod{marchPeriod("200")},
		Members:       members,
		Contributions: contributions,
		PenaltyRules:  penaltyRules(),
	})

	// THEN
	line := func(m finance.MemberID) finance.Line {
		l, ok := rep.Line(m, "march")
		require.True(t, ok, "line for %s", m)
		return l
	}

	assert.Equal(t, finance.ClassOnTimeFull, line("m01").Classification)
	assert.Empty(t, line("m01").Assessments)

	l2 := line("m02")
	assert.Equal(t, finance.ClassOnTimeShort, l2.Classification)
	require.Len(t, l2.Assessments, 1)
	assert.Equal(t, finance.PenaltyInsufficientPayment, l2.Assessments[0].Category)
	assert.True(t, dec("5").Equal(l2.Assessments[0].Amount), "10% of the R50 shortage")

	l3 := line("m03")
	assert.Equal(t, finance.ClassLateFull, l3.Classification)
	assert.Equal(t, 10, l3.DaysLate)
	require.Len(t, l3.Assessments, 1)
	assert.True(t, dec("70").Equal(l3.Assessments[0].Amount), "R10 x (10 - 3 grace)")

	l4 := line("m04")
	assert.Equal(t, finance.ClassLateShort, l4.Classification)
	require.Len(t, l4.Assessments, 2, "late and short penalties both apply")
	assert.Equal(t, finance.OutcomeWithinGrace, l4.Assessments[0].Outcome)
	assert.True(t, l4.Assessments[0].Amount.IsZero())
	assert.True(t, dec("10").Equal(l4.Assessments[1].Amount))

	l5 := line("m05")
	assert.Equal(t, finance.ClassUnverified, l5.Classification)
	assert.Empty(t, l5.Assessments)

	l6 := line("m06")
	assert.Equal(t, finance.ClassMissing, l6.Classification)
	require.Len(t, l6.Assessments, 1)
	assert.Equal(t, finance.PenaltyNoPayment, l6.Assessments[0].Category)
	assert.Equal(t, 15, l6.Assessments[0].DaysLate)
	assert.True(t, dec("75").Equal(l6.Assessments[0].Amount))

	// AND: compliance counts verified payments only
	s3, ok := rep.Member("m03")
	require.True(t, ok)
	assert.Equal(t, 1, s3.PaidPeriods)
	assert.Equal(t, 1, s3.LatePayments)
	assert.True(t, dec("100").Equal(s3.ComplianceRate))

	s5, _ := rep.Member("m05")
	assert.True(t, s5.ComplianceRate.IsZero())

	// 4 of 6 members paid (verified): R200+150+200+100 received of R1200
	assert.True(t, dec("650").Equal(rep.TotalReceived))
	assert.True(t, dec("54.17").Equal(rep.CollectionRate))
	assert.True(t, dec("160").Equal(rep.PenaltyTotal))
}

func TestReconcile_NoApplicableRuleIsDistinctFromCompliance(t *testing.T) {
	// GIVEN: a late payment and no penalty rules at all
	rep := finance.Reconcile(finance.Snapshot{
		StokvelID:     "stokvel-1",
		AsOf:          date("2025-04-15"),
		Window:        marchWindow(),
		Periods:       []finance.PaymentPeriod{marchPeriod("200")},
		Members:       roster(1),
		Contributions: []finance.Contribution{paid("m01", "march", "200", "2025-04-10", finance.StatusVerified)},
	})

	// THEN: the assessment is zero and says why
	l, _ := rep.Line("m01", "march")
	require.Len(t, l.Assessments, 1)
	a := l.Assessments[0]
	assert.Equal(t, finance.OutcomeNoApplicableRule, a.Outcome)
	assert.True(t, a.Amount.IsZero())
	assert.False(t, a.Chargeable())

	s, _ := rep.Member("m01")
	assert.Equal(t, 1, s.NoRulePenalties)
}

func TestReconcile_LateRuleResolvedAsOfPaymentDate(t *testing.T) {
	// GIVEN: the late-payment rule changed on April 5th
	oldRule := penaltyRule(finance.MethodFixed, "20", 0)
	oldRule.ID = "late-v1"
	oldRule.Effective = finance.ClosedInterval(date("2025-01-01"), date("2025-04-04"))
	newRule := penaltyRule(finance.MethodFixed, "50", 0)
	newRule.ID = "late-v2"
	newRule.Effective = finance.OpenInterval(date("2025-04-05"))

	members := roster(2)
	rep := finance.Reconcile(finance.Snapshot{
		StokvelID: "stokvel-1",
		AsOf:      date("2025-04-30"),
		Window:    marchWindow(),
		Periods:   []finance.PaymentPeriod{marchPeriod("200")},
		Members:   members,
		Contributions: []finance.Contribution{
			paid("m01", "march", "200", "2025-04-02", finance.StatusVerified),
			paid("m02", "march", "200", "2025-04-06", finance.StatusVerified),
		},
		PenaltyRules: []finance.PenaltyRule{oldRule, newRule},
	})

	l1, _ := rep.Line("m01", "march")
	l2, _ := rep.Line("m02", "march")
	assert.Equal(t, finance.RuleID("late-v1"), l1.Assessments[0].RuleID)
	assert.True(t, dec("20").Equal(l1.Assessments[0].Amount))
	assert.Equal(t, finance.RuleID("late-v2"), l2.Assessments[0].RuleID)
	assert.True(t, dec("50").Equal(l2.Assessments[0].Amount))
}

func TestReconcile_MissingBeforeDueIsNotDue(t *testing.T) {
	rep := finance.Reconcile(finance.Snapshot{
		StokvelID:    "stokvel-1",
		AsOf:         date("2025-03-31"),
		Window:       marchWindow(),
		Periods:      []finance.PaymentPeriod{marchPeriod("200")},
		Members:      roster(1),
		PenaltyRules: penaltyRules(),
	})
	l, _ := rep.Line("m01", "march")
	assert.Equal(t, finance.ClassMissing, l.Classification)
	assert.Equal(t, finance.OutcomeNotDue, l.Assessments[0].Outcome)
}

// =============================================================================
// ANOMALIES AND WARNINGS
// =============================================================================

func TestReconcile_AnomaliesDoNotAbort(t *testing.T) {
	// GIVEN: a contribution from someone off the roster and a duplicate record
	members := roster(2)
	dup := paid("m01", "march", "200", "2025-03-21", finance.StatusVerified)
	dup.ID = "c-dup"
	rep := finance.Reconcile(finance.Snapshot{
		StokvelID: "stokvel-1",
		AsOf:      date("2025-03-31"),
		Window:    marchWindow(),
		Periods:   []finance.PaymentPeriod{marchPeriod("200")},
		Members:   members,
		Contributions: []finance.Contribution{
			paid("m01", "march", "200", "2025-03-20", finance.StatusVerified),
			dup,
			paid("ghost", "march", "200", "2025-03-20", finance.StatusVerified),
			paid("m02", "march", "200", "2025-03-20", finance.StatusVerified),
		},
	})

	// THEN: both anomalies are reported and the rest is reconciled
	require.Len(t, rep.Anomalies, 2)
	assert.Equal(t, finance.MemberID("m01"), rep.Anomalies[0].MemberID)
	assert.Equal(t, finance.MemberID("ghost"), rep.Anomalies[1].MemberID)
	assert.True(t, dec("400").Equal(rep.TotalReceived))
	assert.Len(t, rep.Lines, 2)
}

func TestReconcile_SurfacesIntegrityWarnings(t *testing.T) {
	a := penaltyRule(finance.MethodFixed, "20", 0)
	a.ID = "late-a"
	b := penaltyRule(finance.MethodFixed, "30", 0)
	b.ID = "late-b"
	b.Effective = finance.OpenInterval(date("2025-02-01"))

	rep := finance.Reconcile(finance.Snapshot{
		StokvelID: "stokvel-1",
		AsOf:      date("2025-04-30"),
		Window:    marchWindow(),
		Periods:   []finance.PaymentPeriod{marchPeriod("200")},
		Members:   roster(2),
		Contributions: []finance.Contribution{
			paid("m01", "march", "200", "2025-04-05", finance.StatusVerified),
			paid("m02", "march", "200", "2025-04-05", finance.StatusVerified),
		},
		PenaltyRules: []finance.PenaltyRule{a, b},
	})

	require.Len(t, rep.Warnings, 1, "identical warnings are reported once")
	assert.Equal(t, finance.RuleID("late-b"), rep.Warnings[0].Chosen)
	l, _ := rep.Line("m01", "march")
	assert.True(t, dec("30").Equal(l.Assessments[0].Amount))
}

func TestReconcile_IgnoresInactiveMembersAndPeriodsOutsideWindow(t *testing.T) {
	members := roster(2)
	members[1].Status = finance.MemberSuspended
	april := marchPeriod("200")
	april.ID = "april"
	april.Due = date("2025-04-30")

	rep := finance.Reconcile(finance.Snapshot{
		StokvelID: "stokvel-1",
		AsOf:      date("2025-03-31"),
		Window:    marchWindow(),
		Periods:   []finance.PaymentPeriod{marchPeriod("200"), april},
		Members:   members,
	})
	assert.Len(t, rep.Lines, 1)
	assert.Len(t, rep.Members, 1)
	assert.True(t, dec("200").Equal(rep.TotalExpected))
}
