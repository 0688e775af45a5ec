package finance_test

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stokvela/finance-engine/finance"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func contribRule(id, from string, until string, amount string) finance.ContributionRule {
	eff := finance.OpenInterval(date(from))
	if until != "" {
		eff = finance.ClosedInterval(date(from), date(until))
	}
	return finance.ContributionRule{
		ID:        finance.RuleID(id),
		StokvelID: "stokvel-1",
		Name:      "Monthly " + id,
		Category:  finance.ContributionRegular,
		Amount:    finance.MustParseDecimal(amount),
		Frequency: finance.FrequencyMonthly,
		Effective: eff,
		IsActive:  true,
	}
}

// =============================================================================
// WRITE PATH - OVERLAP CHECK
// =============================================================================

func TestCheckOverlap_AdjacentRulesAccepted_StraddlingRuleRejected(t *testing.T) {
	// GIVEN: Rule A [2025-01-01, 2025-06-30] exists
	ruleA := contribRule("A", "2025-01-01", "2025-06-30", "500")
	existing := []finance.ContributionRule{ruleA}

	// WHEN: Rule B [2025-07-01, open) is created
	ruleB := contribRule("B", "2025-07-01", "", "600")
	require.NoError(t, finance.CheckOverlap(existing, ruleB))
	existing = append(existing, ruleB)

	// THEN: Rule C [2025-05-01, 2025-08-01] is rejected, naming both
	ruleC := contribRule("C", "2025-05-01", "2025-08-01", "700")
	err := finance.CheckOverlap(existing, ruleC)
	require.Error(t, err)
	assert.ErrorIs(t, err, finance.ErrOverlappingRule)

	var oe *finance.OverlappingRuleError
	require.ErrorAs(t, err, &oe)
	assert.ElementsMatch(t, []finance.RuleID{"A", "B"}, oe.Conflicts)
	assert.Equal(t, "regular", oe.Category)
	assert.True(t, finance.IsConflict(err))
}

func TestCheckOverlap_TouchingBoundaryAccepted(t *testing.T) {
	// [Jan 1, Jul 1) followed by [Jul 1, open) share only the hand-over day
	a := contribRule("A", "2025-01-01", "2025-07-01", "500")
	b := contribRule("B", "2025-07-01", "", "600")
	assert.NoError(t, finance.CheckOverlap([]finance.ContributionRule{a}, b))
}

func TestCheckOverlap_IgnoresInactiveAndOtherCategories(t *testing.T) {
	inactive := contribRule("old", "2025-01-01", "", "500")
	inactive.IsActive = false

	special := contribRule("special", "2025-01-01", "", "100")
	special.Category = finance.ContributionSpecial

	otherStokvel := contribRule("other", "2025-01-01", "", "100")
	otherStokvel.StokvelID = "stokvel-2"

	candidate := contribRule("new", "2025-03-01", "", "550")
	assert.NoError(t, finance.CheckOverlap([]finance.ContributionRule{inactive, special, otherStokvel}, candidate))
}

func TestCheckOverlap_ExcludesOwnID(t *testing.T) {
	// Updating a rule's own interval must not conflict with itself.
	a := contribRule("A", "2025-01-01", "", "500")
	widened := a
	widened.Effective = finance.OpenInterval(date("2024-06-01"))
	assert.NoError(t, finance.CheckOverlap([]finance.ContributionRule{a}, widened))
}

func TestCheckOverlap_InactiveCandidateSkipsCheck(t *testing.T) {
	a := contribRule("A", "2025-01-01", "", "500")
	b := contribRule("B", "2025-01-01", "", "600")
	b.IsActive = false
	assert.NoError(t, finance.CheckOverlap([]finance.ContributionRule{a}, b))
}

func TestCheckOverlap_PenaltyRulesScopedByCategory(t *testing.T) {
	late := finance.PenaltyRule{
		ID: "late", StokvelID: "s", Name: "Late", Category: finance.PenaltyLatePayment,
		Method: finance.MethodFixed, Amount: finance.MustParseDecimal("50"),
		Effective: finance.OpenInterval(date("2025-01-01")), IsActive: true,
	}
	short := late
	short.ID = "short"
	short.Category = finance.PenaltyInsufficientPayment
	require.NoError(t, finance.CheckOverlap([]finance.PenaltyRule{late}, short))

	late2 := late
	late2.ID = "late2"
	err := finance.CheckOverlap([]finance.PenaltyRule{late, short}, late2)
	var oe *finance.OverlappingRuleError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, finance.KindPenalty, oe.Kind)
	assert.Equal(t, []finance.RuleID{"late"}, oe.Conflicts)
}

// daySet is the brute-force oracle: the set of day offsets in [from, until).
func daySet(from, until int) map[int]bool {
	s := make(map[int]bool)
	for d := from; d < until; d++ {
		s[d] = true
	}
	return s
}

func intersects(a, b map[int]bool) bool {
	for d := range a {
		if b[d] {
			return true
		}
	}
	return false
}

func TestCheckOverlap_RandomIntervalsMatchDaySetOracle(t *testing.T) {
	// GIVEN: random intervals inside a 90-day window, a fifth of them open-ended
	// WHEN: each is offered to CheckOverlap against the ones accepted so far
	// THEN: acceptance matches the day-set oracle exactly, and no two accepted
	//       rules ever intersect
	const horizon = 1000
	base := date("2025-01-01")
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		var accepted []finance.ContributionRule
		var acceptedDays []map[int]bool

		for i := 0; i < 12; i++ {
			from := rng.Intn(90)
			until := horizon
			r := contribRule(fmt.Sprintf("r%d-%d", round, i), base.AddDays(from).String(), "", "100")
			if rng.Intn(5) != 0 {
				until = from + 1 + rng.Intn(30)
				r.Effective = r.Effective.Close(base.AddDays(until))
			}
			days := daySet(from, until)

			wantReject := false
			for _, other := range acceptedDays {
				if intersects(days, other) {
					wantReject = true
					break
				}
			}

			err := finance.CheckOverlap(accepted, r)
			if wantReject {
				require.True(t, errors.Is(err, finance.ErrOverlappingRule), "round %d rule %d %s should be rejected", round, i, r.Effective)
				continue
			}
			require.NoError(t, err, "round %d rule %d %s should be accepted", round, i, r.Effective)
			accepted = append(accepted, r)
			acceptedDays = append(acceptedDays, days)
		}

		for i := range accepted {
			for j := i + 1; j < len(accepted); j++ {
				assert.False(t, accepted[i].Effective.Overlaps(accepted[j].Effective))
			}
		}
	}
}

// =============================================================================
// READ PATH - RESOLUTION
// =============================================================================

func TestResolve_PicksRuleInForce(t *testing.T) {
	rules := []finance.ContributionRule{
		contribRule("A", "2025-01-01", "2025-06-30", "500"),
		contribRule("B", "2025-07-01", "", "600"),
	}

	res := finance.ResolveContribution(rules, finance.ContributionRegular, date("2025-06-30"))
	require.True(t, res.Found)
	assert.Equal(t, finance.RuleID("A"), res.Rule.ID, "effective_until is inclusive on the read path")
	assert.Nil(t, res.Warning)

	res = finance.ResolveContribution(rules, finance.ContributionRegular, date("2026-03-01"))
	require.True(t, res.Found)
	assert.Equal(t, finance.RuleID("B"), res.Rule.ID)

	res = finance.ResolveContribution(rules, finance.ContributionRegular, date("2024-12-31"))
	assert.False(t, res.Found)
}

func TestResolve_HandOverDayPicksNewRuleWithoutWarning(t *testing.T) {
	// A ends on Jul 1 and B starts on Jul 1: both cover Jul 1 on the read path.
	rules := []finance.ContributionRule{
		contribRule("A", "2025-01-01", "2025-07-01", "500"),
		contribRule("B", "2025-07-01", "", "600"),
	}
	res := finance.ResolveContribution(rules, finance.ContributionRegular, date("2025-07-01"))
	require.True(t, res.Found)
	assert.Equal(t, finance.RuleID("B"), res.Rule.ID)
	assert.Nil(t, res.Warning)
}

func TestResolve_ImportedOverlapWarnsAndPicksLatestStart(t *testing.T) {
	// GIVEN: two active rules that illegally overlap (e.g. imported data)
	rules := []finance.ContributionRule{
		contribRule("older", "2025-01-01", "", "500"),
		contribRule("newer", "2025-03-01", "", "650"),
	}

	// WHEN: resolving a date both cover
	res := finance.ResolveContribution(rules, finance.ContributionRegular, date("2025-04-15"))

	// THEN: the later effective_from wins and a warning is surfaced
	require.True(t, res.Found)
	assert.Equal(t, finance.RuleID("newer"), res.Rule.ID)
	require.NotNil(t, res.Warning)
	assert.Equal(t, finance.RuleID("newer"), res.Warning.Chosen)
	assert.Equal(t, []finance.RuleID{"older"}, res.Warning.Discarded)
	assert.Contains(t, res.Warning.Error(), "2 active regular contribution rules")
}

func TestResolve_IsDeterministicOnIdenticalStarts(t *testing.T) {
	a := contribRule("a", "2025-01-01", "", "500")
	b := contribRule("b", "2025-01-01", "", "500")
	r1 := finance.ResolveContribution([]finance.ContributionRule{a, b}, finance.ContributionRegular, date("2025-02-01"))
	r2 := finance.ResolveContribution([]finance.ContributionRule{b, a}, finance.ContributionRegular, date("2025-02-01"))
	assert.Equal(t, r1.Rule.ID, r2.Rule.ID)
	assert.NotNil(t, r1.Warning)
}

func TestResolve_OneDayRuleHandsOverOnItsOnlyDay(t *testing.T) {
	// GIVEN: a rule closed on its own start day, and a successor from that day
	rules := []finance.ContributionRule{
		contribRule("once", "2025-03-10", "2025-03-10", "500"),
		contribRule("next", "2025-03-10", "", "600"),
	}
	require.NoError(t, rules[0].Effective.Validate())
	assert.True(t, rules[0].Effective.Covers(date("2025-03-10")))
	require.NoError(t, finance.CheckOverlap(rules[:1], rules[1]))

	// WHEN: resolving that day
	res := finance.ResolveContribution(rules, finance.ContributionRegular, date("2025-03-10"))

	// THEN: the successor wins quietly
	require.True(t, res.Found)
	assert.Equal(t, finance.RuleID("next"), res.Rule.ID)
	assert.Nil(t, res.Warning)

	// AND: on its own the one-day rule is in force on that day only
	res = finance.ResolveContribution(rules[:1], finance.ContributionRegular, date("2025-03-10"))
	assert.True(t, res.Found)
	res = finance.ResolveContribution(rules[:1], finance.ContributionRegular, date("2025-03-11"))
	assert.False(t, res.Found)
}

func TestResolveWindow_WarnsOnlyForRealOverlap(t *testing.T) {
	overlapping := []finance.ContributionRule{
		contribRule("older", "2025-01-01", "", "500"),
		contribRule("newer", "2025-03-20", "", "650"),
	}
	res := finance.ResolveContributionWindow(overlapping, finance.ContributionRegular, date("2025-03-01"), date("2025-03-31"))
	require.True(t, res.Found)
	assert.Equal(t, finance.RuleID("newer"), res.Rule.ID)
	require.NotNil(t, res.Warning)
	assert.Equal(t, []finance.RuleID{"older"}, res.Warning.Discarded)

	sequential := []finance.ContributionRule{
		contribRule("older", "2025-01-01", "2025-03-20", "500"),
		contribRule("newer", "2025-03-20", "", "650"),
	}
	res = finance.ResolveContributionWindow(sequential, finance.ContributionRegular, date("2025-03-01"), date("2025-03-31"))
	require.True(t, res.Found)
	assert.Equal(t, finance.RuleID("newer"), res.Rule.ID)
	assert.Nil(t, res.Warning)

	res = finance.ResolveContributionWindow(sequential, finance.ContributionRegular, date("2024-12-01"), date("2024-12-31"))
	assert.False(t, res.Found)
}

func TestResolve_IgnoresInactive(t *testing.T) {
	a := contribRule("A", "2025-01-01", "", "500")
	a.IsActive = false
	res := finance.ResolveContribution([]finance.ContributionRule{a}, finance.ContributionRegular, date("2025-02-01"))
	assert.False(t, res.Found)
}

// =============================================================================
// RULE VALIDATION
// =============================================================================

func TestContributionRule_Validate(t *testing.T) {
	r := contribRule("A", "2025-01-01", "", "0.01")
	require.NoError(t, r.Validate())

	r.Amount = finance.MustParseDecimal("0")
	assert.ErrorIs(t, r.Validate(), finance.ErrValidation)

	r.Amount = finance.MustParseDecimal("-5")
	assert.ErrorIs(t, r.Validate(), finance.ErrValidation)

	r = contribRule("A", "2025-06-01", "2025-01-01", "100")
	var ve *finance.ValidationError
	require.ErrorAs(t, r.Validate(), &ve)
	assert.Equal(t, "effective_until", ve.Field)
}

func TestPenaltyRule_Validate(t *testing.T) {
	r := finance.PenaltyRule{
		StokvelID: "s", Name: "Late", Category: finance.PenaltyLatePayment,
		Method: finance.MethodPercentage, Amount: finance.MustParseDecimal("100"),
		Effective: finance.OpenInterval(date("2025-01-01")), IsActive: true,
	}
	require.NoError(t, r.Validate())

	r.Amount = finance.MustParseDecimal("100.01")
	assert.ErrorIs(t, r.Validate(), finance.ErrValidation, "percentage above 100")

	r.Method = finance.MethodFixed
	assert.NoError(t, r.Validate(), "fixed amounts may exceed 100")

	r.Amount = finance.MustParseDecimal("-1")
	assert.ErrorIs(t, r.Validate(), finance.ErrValidation)

	r.Amount = finance.MustParseDecimal("10")
	r.GracePeriodDays = -1
	assert.ErrorIs(t, r.Validate(), finance.ErrValidation)

	r.GracePeriodDays = 0
	zero := finance.MustParseDecimal("0")
	r.MaximumAmount = &zero
	assert.ErrorIs(t, r.Validate(), finance.ErrValidation)
}
