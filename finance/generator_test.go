package finance_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stokvela/finance-engine/finance"
)

func TestMonthlyPeriods_ClipsToRange(t *testing.T) {
	// GIVEN: a range from mid January to mid March, due on the 31st
	cur, err := finance.MonthlyPeriods(date("2024-01-15"), date("2024-03-10"), 31)
	require.NoError(t, err)

	// WHEN: draining the cursor
	got := cur.All()

	// THEN: three months, the first and last clipped, February due on the 29th
	require.Len(t, got, 3)

	assert.Equal(t, "January 2024", got[0].Label)
	assert.Equal(t, "2024-01-15", got[0].Start.String())
	assert.Equal(t, "2024-01-31", got[0].End.String())
	assert.Equal(t, "2024-01-31", got[0].Due.String())

	assert.Equal(t, time.February, got[1].Month)
	assert.Equal(t, "2024-02-29", got[1].Due.String())
	assert.Zero(t, got[1].Quarter)

	assert.Equal(t, "2024-03-01", got[2].Start.String())
	assert.Equal(t, "2024-03-10", got[2].End.String())
	assert.Equal(t, "2024-03-31", got[2].Due.String(), "due date may fall outside the clipped period")
}

func TestMonthlyPeriods_CrossesYearBoundary(t *testing.T) {
	cur, err := finance.MonthlyPeriods(date("2024-11-01"), date("2025-02-28"), 15)
	require.NoError(t, err)
	got := cur.All()
	require.Len(t, got, 4)
	assert.Equal(t, 2025, got[2].Year)
	assert.Equal(t, time.January, got[2].Month)
	assert.Equal(t, "2025-02-15", got[3].Due.String())
}

func TestMonthlyPeriods_SingleDay(t *testing.T) {
	cur, err := finance.MonthlyPeriods(date("2025-05-20"), date("2025-05-20"), 31)
	require.NoError(t, err)
	got := cur.All()
	require.Len(t, got, 1)
	assert.True(t, got[0].Start.Equal(got[0].End))
}

func TestMonthlyPeriods_InvalidInput(t *testing.T) {
	_, err := finance.MonthlyPeriods(date("2025-05-01"), date("2025-04-01"), 31)
	assert.ErrorIs(t, err, finance.ErrValidation)

	_, err = finance.MonthlyPeriods(date("2025-01-01"), date("2025-04-01"), 0)
	assert.ErrorIs(t, err, finance.ErrInvalidArgument)
}

func TestQuarterlyPeriods_DueAtQuarterEnd(t *testing.T) {
	cur, err := finance.QuarterlyPeriods(date("2025-02-10"), date("2025-11-30"))
	require.NoError(t, err)
	got := cur.All()
	require.Len(t, got, 4)

	assert.Equal(t, "Q1 2025", got[0].Label)
	assert.Equal(t, "2025-02-10", got[0].Start.String())
	assert.Equal(t, "2025-03-31", got[0].Due.String())
	assert.Zero(t, got[0].Month)
	assert.False(t, got[0].IsMonthly())

	assert.Equal(t, 4, got[3].Quarter)
	assert.Equal(t, "2025-11-30", got[3].End.String())
	assert.Equal(t, "2025-12-31", got[3].Due.String())
}

func TestPeriodCursor_IsRestartableAndResumable(t *testing.T) {
	// GIVEN: a cursor over a multi-year range
	cur, err := finance.MonthlyPeriods(date("2020-01-01"), date("2029-12-31"), 25)
	require.NoError(t, err)

	// WHEN: reading a first batch and saving the position
	first := cur.Take(7)
	require.Len(t, first, 7)
	pos := cur.Position()

	// THEN: a fresh cursor resumed at pos continues where the first stopped
	other, err := finance.MonthlyPeriods(date("2020-01-01"), date("2029-12-31"), 25)
	require.NoError(t, err)
	other.ResumeAt(pos)
	next, ok := other.Next()
	require.True(t, ok)
	assert.Equal(t, "August 2020", next.Label)

	// AND: Reset replays from the beginning
	cur.Reset()
	again := cur.Take(7)
	assert.Equal(t, first, again)

	// AND: the full range has 120 months
	cur.Reset()
	assert.Len(t, cur.All(), 120)
	_, ok = cur.Next()
	assert.False(t, ok)
}

func TestAttachExpected(t *testing.T) {
	rules := []finance.ContributionRule{
		contribRule("A", "2025-01-01", "2025-03-31", "500"),
		contribRule("B", "2025-05-01", "", "600"),
	}
	cur, err := finance.MonthlyPeriods(date("2025-02-01"), date("2025-05-31"), 31)
	require.NoError(t, err)

	var got []finance.PeriodCandidate
	for c, ok := cur.Next(); ok; c, ok = cur.Next() {
		got = append(got, finance.AttachExpected(c, rules, ""))
	}
	require.Len(t, got, 4)

	assert.Equal(t, finance.RuleID("A"), got[0].RuleID)
	assert.True(t, dec("500").Equal(got[0].Expected))

	// April has no rule in force on its start date.
	assert.True(t, got[2].NoRuleFound)
	assert.True(t, got[2].Expected.IsZero())
	assert.Empty(t, got[2].RuleID)

	assert.Equal(t, finance.RuleID("B"), got[3].RuleID)
	assert.True(t, dec("600").Equal(got[3].Expected))
}

func TestAttachExpected_RuleStartingMidMonthPricesThatMonth(t *testing.T) {
	// GIVEN: the only rule starts on 15 January
	rules := []finance.ContributionRule{contribRule("A", "2025-01-15", "", "500")}
	cur, err := finance.MonthlyPeriods(date("2025-01-01"), date("2025-03-31"), 31)
	require.NoError(t, err)

	// WHEN: expected amounts are attached
	var got []finance.PeriodCandidate
	for c, ok := cur.Next(); ok; c, ok = cur.Next() {
		got = append(got, finance.AttachExpected(c, rules, ""))
	}

	// THEN: January is priced too
	require.Len(t, got, 3)
	for _, c := range got {
		assert.False(t, c.NoRuleFound, c.Label)
		assert.Equal(t, finance.RuleID("A"), c.RuleID, c.Label)
		assert.Nil(t, c.Warning, c.Label)
	}
}

func TestAttachExpected_MidMonthHandOverTakesNewVersion(t *testing.T) {
	rules := []finance.ContributionRule{
		contribRule("old", "2025-01-01", "2025-02-15", "500"),
		contribRule("new", "2025-02-15", "", "650"),
	}
	cur, err := finance.MonthlyPeriods(date("2025-01-01"), date("2025-02-28"), 31)
	require.NoError(t, err)

	jan, _ := cur.Next()
	feb, _ := cur.Next()

	assert.Equal(t, finance.RuleID("old"), finance.AttachExpected(jan, rules, "").RuleID)
	got := finance.AttachExpected(feb, rules, "")
	assert.Equal(t, finance.RuleID("new"), got.RuleID)
	assert.True(t, dec("650").Equal(got.Expected))
	assert.Nil(t, got.Warning)
}

func TestAttachExpected_OtherCategory(t *testing.T) {
	special := contribRule("S", "2025-01-01", "", "150")
	special.Category = finance.ContributionSpecial
	rules := []finance.ContributionRule{contribRule("A", "2025-01-01", "", "500"), special}

	cur, err := finance.QuarterlyPeriods(date("2025-01-01"), date("2025-03-31"))
	require.NoError(t, err)
	c, ok := cur.Next()
	require.True(t, ok)

	got := finance.AttachExpected(c, rules, finance.ContributionSpecial)
	assert.Equal(t, finance.RuleID("S"), got.RuleID)
	assert.True(t, dec("150").Equal(got.Expected))
}
