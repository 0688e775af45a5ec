package finance_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stokvela/finance-engine/finance"
)

func date(s string) finance.Date { return finance.MustParseDate(s) }

// =============================================================================
// DUE DATE RESOLUTION
// =============================================================================

func TestResolveDueDate_LeapFebruary(t *testing.T) {
	assert.Equal(t, "2024-02-29", finance.ResolveDueDate(2024, time.February, 31).String())
	assert.Equal(t, "2023-02-28", finance.ResolveDueDate(2023, time.February, 31).String())
}

func TestResolveDueDate_SentinelAlwaysMonthEnd(t *testing.T) {
	// GIVEN: every month from 1900 to 2100
	// WHEN: resolving the sentinel due day 31
	// THEN: the result is always the month end
	for y := 1900; y <= 2100; y++ {
		for m := time.January; m <= time.December; m++ {
			got := finance.ResolveDueDate(y, m, finance.LastDayOfMonth)
			if !got.Equal(finance.MonthEnd(y, m)) {
				t.Fatalf("ResolveDueDate(%d, %d, 31) = %s, want %s", y, m, got, finance.MonthEnd(y, m))
			}
		}
	}
}

func TestResolveDueDate_ClampsShortMonths(t *testing.T) {
	assert.Equal(t, "2025-04-30", finance.ResolveDueDate(2025, time.April, 30).String())
	assert.Equal(t, "2025-02-28", finance.ResolveDueDate(2025, time.February, 30).String())
	assert.Equal(t, "2025-02-15", finance.ResolveDueDate(2025, time.February, 15).String())
	assert.Equal(t, "1900-02-28", finance.ResolveDueDate(1900, time.February, 29).String(), "1900 is not a leap year")
	assert.Equal(t, "2000-02-29", finance.ResolveDueDate(2000, time.February, 31).String(), "2000 is a leap year")
}

func TestValidateDueDay(t *testing.T) {
	require.NoError(t, finance.ValidateDueDay(1))
	require.NoError(t, finance.ValidateDueDay(31))
	assert.ErrorIs(t, finance.ValidateDueDay(0), finance.ErrInvalidArgument)
	assert.ErrorIs(t, finance.ValidateDueDay(32), finance.ErrInvalidArgument)
}

// =============================================================================
// QUARTERS
// =============================================================================

func TestQuarterBounds(t *testing.T) {
	tests := []struct {
		quarter    int
		start, end string
	}{
		{1, "2025-01-01", "2025-03-31"},
		{2, "2025-04-01", "2025-06-30"},
		{3, "2025-07-01", "2025-09-30"},
		{4, "2025-10-01", "2025-12-31"},
	}
	for _, tt := range tests {
		start, end, err := finance.QuarterBounds(2025, tt.quarter)
		require.NoError(t, err)
		assert.Equal(t, tt.start, start.String())
		assert.Equal(t, tt.end, end.String())
	}
}

func TestQuarterBounds_OutOfRange(t *testing.T) {
	for _, q := range []int{0, 5, -1} {
		_, _, err := finance.QuarterBounds(2025, q)
		assert.ErrorIs(t, err, finance.ErrInvalidArgument, "quarter %d", q)
		assert.True(t, finance.IsClientError(err))
	}
}

// =============================================================================
// DATES AND INTERVALS
// =============================================================================

func TestParseDate_Invalid(t *testing.T) {
	_, err := finance.ParseDate("2025-13-01")
	assert.ErrorIs(t, err, finance.ErrInvalidArgument)
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 10, finance.DaysBetween(date("2025-03-31"), date("2025-04-10")))
	assert.Equal(t, -3, finance.DaysBetween(date("2025-03-04"), date("2025-03-01")))
	assert.Equal(t, 366, finance.DaysBetween(date("2024-01-01"), date("2025-01-01")))
}

func TestInterval_OverlapsIsHalfOpen(t *testing.T) {
	a := finance.ClosedInterval(date("2025-01-01"), date("2025-07-01"))
	b := finance.OpenInterval(date("2025-07-01"))
	c := finance.ClosedInterval(date("2025-06-30"), date("2025-08-01"))

	assert.False(t, a.Overlaps(b), "touching boundary is not an overlap")
	assert.True(t, a.Overlaps(c))
	assert.True(t, b.Overlaps(c))
	assert.True(t, finance.OpenInterval(date("2020-01-01")).Overlaps(b))
}

func TestInterval_CoversIsInclusive(t *testing.T) {
	i := finance.ClosedInterval(date("2025-01-01"), date("2025-06-30"))
	assert.True(t, i.Covers(date("2025-01-01")))
	assert.True(t, i.Covers(date("2025-06-30")))
	assert.False(t, i.Covers(date("2025-07-01")))
	assert.False(t, i.Covers(date("2024-12-31")))
}

func TestInterval_Validate(t *testing.T) {
	err := finance.ClosedInterval(date("2025-02-01"), date("2025-01-01")).Validate()
	var ve *finance.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "effective_until", ve.Field)
	assert.NoError(t, finance.ClosedInterval(date("2025-01-01"), date("2025-01-01")).Validate())
}

func TestDate_TextRoundTrip(t *testing.T) {
	var d finance.Date
	require.NoError(t, d.UnmarshalText([]byte("2025-03-15")))
	b, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2025-03-15", string(b))
}

func TestPercentage_ZeroDenominator(t *testing.T) {
	assert.True(t, finance.Percentage(finance.MustParseDecimal("5"), finance.MustParseDecimal("0")).IsZero())
	assert.True(t, finance.PercentageOf(0, 0).IsZero())
	assert.Equal(t, "33.33", finance.PercentageOf(1, 3).String())
}
