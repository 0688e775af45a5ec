package stokvel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stokvela/finance-engine/finance"
	"github.com/stokvela/finance-engine/stokvel"
)

func TestPeriodService_GenerateSnapshotsRuleInForce(t *testing.T) {
	// GIVEN: R500 until April, R600 from April
	f := newFixture(t)
	old := f.contributionRule(t, "2025-01-01", "500")
	_, err := f.svc.Rules.SupersedeContributionRule(f.ctx, old.ID, regularRule(f.stokvel.ID, "2025-04-01", "600"))
	require.NoError(t, err)

	// WHEN: January to June is generated in batches of four
	res, err := f.svc.Periods.Generate(f.ctx, stokvel.GenerateRequest{
		StokvelID: f.stokvel.ID,
		Frequency: finance.FrequencyMonthly,
		Start:     date("2025-01-01"),
		End:       date("2025-06-30"),
	})

	// THEN: six periods exist, each carrying the amount in force on its start
	require.NoError(t, err)
	require.Len(t, res.Created, 6)
	assert.Empty(t, res.Existing)
	assert.Empty(t, res.Warnings)

	want := []string{"500", "500", "500", "600", "600", "600"}
	for i, p := range res.Created {
		assert.True(t, dec(want[i]).Equal(p.ExpectedPerMember), "period %s", p.Label)
		assert.True(t, p.IsOpen)
		assert.True(t, p.AutoGeneratePenalties)
	}
	assert.Equal(t, "2025-02-28", res.Created[1].Due.String())
}

func TestPeriodService_GenerateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.contributionRule(t, "2025-01-01", "500")
	req := stokvel.GenerateRequest{
		StokvelID: f.stokvel.ID,
		Start:     date("2025-01-01"),
		End:       date("2025-03-31"),
	}

	first, err := f.svc.Periods.Generate(f.ctx, req)
	require.NoError(t, err)
	second, err := f.svc.Periods.Generate(f.ctx, req)
	require.NoError(t, err)

	assert.Len(t, first.Created, 3)
	assert.Empty(t, second.Created)
	require.Len(t, second.Existing, 3)
	for i := range first.Created {
		assert.Equal(t, first.Created[i].ID, second.Existing[i].ID)
	}

	all, err := f.svc.Periods.List(f.ctx, finance.PeriodFilter{StokvelID: f.stokvel.ID})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPeriodService_GenerateReportsMonthsWithoutRule(t *testing.T) {
	f := newFixture(t)
	f.contributionRule(t, "2025-01-01", "500")

	res, err := f.svc.Periods.Generate(f.ctx, stokvel.GenerateRequest{
		StokvelID: f.stokvel.ID,
		Start:     date("2024-11-01"),
		End:       date("2025-02-28"),
	})
	require.NoError(t, err)
	assert.Len(t, res.Created, 2)
	require.Len(t, res.NoRule, 2)
	assert.Equal(t, "November 2024", res.NoRule[0].Label)
}

func TestPeriodService_RuleStartingMidMonthPricesItsFirstMonth(t *testing.T) {
	// GIVEN: the rule starts on 15 January
	f := newFixture(t)
	rule := f.contributionRule(t, "2025-01-15", "500")

	// WHEN: January to March is generated
	res, err := f.svc.Periods.Generate(f.ctx, stokvel.GenerateRequest{
		StokvelID: f.stokvel.ID,
		Start:     date("2025-01-01"),
		End:       date("2025-03-31"),
	})

	// THEN: January is a period like the others
	require.NoError(t, err)
	assert.Empty(t, res.NoRule)
	require.Len(t, res.Created, 3)
	assert.Equal(t, "January 2025", res.Created[0].Label)
	assert.Equal(t, rule.ID, res.Created[0].RuleID)
	assert.True(t, dec("500").Equal(res.Created[0].ExpectedPerMember))
}

func TestPeriodService_QuarterlyDueOnQuarterEnd(t *testing.T) {
	f := newFixture(t)
	f.contributionRule(t, "2025-01-01", "1500")

	res, err := f.svc.Periods.Generate(f.ctx, stokvel.GenerateRequest{
		StokvelID: f.stokvel.ID,
		Frequency: finance.FrequencyQuarterly,
		Start:     date("2025-02-15"),
		End:       date("2025-12-31"),
	})
	require.NoError(t, err)
	require.Len(t, res.Created, 4)
	assert.Equal(t, 1, res.Created[0].Quarter)
	assert.Equal(t, 0, res.Created[0].Month)
	assert.Equal(t, "2025-02-15", res.Created[0].Start.String())
	assert.Equal(t, "2025-03-31", res.Created[0].Due.String())
}

func TestPeriodService_PreviewWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.contributionRule(t, "2025-01-01", "500")

	cands, err := f.svc.Periods.Preview(f.ctx, stokvel.GenerateRequest{
		StokvelID: f.stokvel.ID,
		Start:     date("2025-01-01"),
		End:       date("2025-12-31"),
		DueDay:    25,
	})
	require.NoError(t, err)
	require.Len(t, cands, 12)
	assert.Equal(t, "2025-01-25", cands[0].Due.String())

	all, err := f.svc.Periods.List(f.ctx, finance.PeriodFilter{StokvelID: f.stokvel.ID})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPeriodService_RejectsUnknownFrequency(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Periods.Generate(f.ctx, stokvel.GenerateRequest{
		StokvelID: f.stokvel.ID,
		Frequency: finance.FrequencyWeekly,
		Start:     date("2025-01-01"),
		End:       date("2025-01-31"),
	})
	assert.ErrorIs(t, err, finance.ErrValidation)
}

func TestPeriodService_SummaryCountsVerifiedOnly(t *testing.T) {
	// GIVEN: three members, one verified and one pending payment
	f := newFixture(t)
	f.contributionRule(t, "2025-01-01", "500")
	m1, m2 := f.member(t, "m1"), f.member(t, "m2")
	f.member(t, "m3")
	p := f.months(t, "2025-03-01", "2025-03-31")[0]

	c1, err := f.svc.Contributions.Record(f.ctx, stokvel.RecordRequest{
		StokvelID: f.stokvel.ID, MemberID: m1, PeriodID: p.ID,
		Amount: dec("500"), PaymentDate: date("2025-03-20"), Method: finance.MethodEFT,
	})
	require.NoError(t, err)
	_, err = f.svc.Contributions.Verify(f.ctx, c1.ID, "treasurer", "")
	require.NoError(t, err)
	_, err = f.svc.Contributions.Record(f.ctx, stokvel.RecordRequest{
		StokvelID: f.stokvel.ID, MemberID: m2, PeriodID: p.ID,
		Amount: dec("500"), PaymentDate: date("2025-03-21"), Method: finance.MethodCash,
	})
	require.NoError(t, err)

	// WHEN
	sum, err := f.svc.Periods.Summary(f.ctx, p.ID)

	// THEN: 500 of 1500
	require.NoError(t, err)
	assert.Equal(t, 3, sum.ActiveMembers)
	assert.Equal(t, 1, sum.VerifiedCount)
	assert.True(t, dec("1500").Equal(sum.TotalExpected))
	assert.True(t, dec("500").Equal(sum.TotalReceived))
	assert.Equal(t, "33.33", sum.CollectionPercentage.StringFixed(2))
}
