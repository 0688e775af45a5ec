package stokvel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stokvela/finance-engine/finance"
	"github.com/stokvela/finance-engine/stokvel"
)

func record(f *fixture, member finance.MemberID, period finance.PeriodID, amount, on string) (finance.Contribution, error) {
	return f.svc.Contributions.Record(f.ctx, stokvel.RecordRequest{
		StokvelID:   f.stokvel.ID,
		MemberID:    member,
		PeriodID:    period,
		Amount:      dec(amount),
		PaymentDate: date(on),
		Method:      finance.MethodEFT,
		Reference:   "REF-" + string(member),
	})
}

func TestContributionService_OneRecordPerMemberAndPeriod(t *testing.T) {
	f := newFixture(t)
	f.contributionRule(t, "2025-01-01", "500")
	m1 := f.member(t, "m1")
	p := f.months(t, "2025-03-01", "2025-03-31")[0]

	c, err := record(f, m1, p.ID, "500", "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, finance.StatusPending, c.Status)

	_, err = record(f, m1, p.ID, "200", "2025-03-12")
	assert.ErrorIs(t, err, finance.ErrDuplicateContribution)
	assert.True(t, finance.IsConflict(err))
}

func TestContributionService_RecordValidatesReferences(t *testing.T) {
	f := newFixture(t)
	f.contributionRule(t, "2025-01-01", "500")
	p := f.months(t, "2025-03-01", "2025-03-31")[0]

	_, err := record(f, "ghost", p.ID, "500", "2025-03-10")
	assert.True(t, finance.IsNotFound(err))

	m1 := f.member(t, "m1")
	_, err = record(f, m1, "no-such-period", "500", "2025-03-10")
	assert.True(t, finance.IsNotFound(err))

	_, err = record(f, m1, p.ID, "0", "2025-03-10")
	assert.ErrorIs(t, err, finance.ErrValidation)
}

func TestContributionService_FinalizedPeriodRejectsPayments(t *testing.T) {
	f := newFixture(t)
	f.contributionRule(t, "2025-01-01", "500")
	m1 := f.member(t, "m1")
	p := f.months(t, "2025-03-01", "2025-03-31")[0]

	_, err := f.svc.Periods.Close(f.ctx, p.ID)
	require.NoError(t, err)
	_, err = record(f, m1, p.ID, "500", "2025-04-02")
	require.NoError(t, err, "closed but not finalized still accepts")

	m2 := f.member(t, "m2")
	_, err = f.svc.Periods.Finalize(f.ctx, p.ID)
	require.NoError(t, err)
	_, err = record(f, m2, p.ID, "500", "2025-04-03")
	assert.ErrorIs(t, err, finance.ErrPeriodClosed)
}

func TestContributionService_Lifecycle(t *testing.T) {
	// GIVEN: a pending contribution
	f := newFixture(t)
	f.contributionRule(t, "2025-01-01", "500")
	m1 := f.member(t, "m1")
	p := f.months(t, "2025-03-01", "2025-03-31")[0]
	c, err := record(f, m1, p.ID, "500", "2025-03-10")
	require.NoError(t, err)

	// WHEN: it is rejected and resubmitted
	rejected, err := f.svc.Contributions.Reject(f.ctx, c.ID, "treasurer", "reference not on statement")
	require.NoError(t, err)
	assert.Equal(t, finance.StatusRejected, rejected.Status)

	again, err := f.svc.Contributions.Resubmit(f.ctx, c.ID, dec("450"), date("2025-03-14"), finance.MethodCash, "CASH-1")
	require.NoError(t, err)

	// THEN: the same record is pending with the new details
	assert.Equal(t, c.ID, again.ID)
	assert.Equal(t, finance.StatusPending, again.Status)
	assert.True(t, dec("450").Equal(again.Amount))
	assert.Nil(t, again.VerifiedAt)

	// AND: verify then reverse; a second verify is refused
	verified, err := f.svc.Contributions.Verify(f.ctx, c.ID, "treasurer", "")
	require.NoError(t, err)
	require.NotNil(t, verified.VerifiedAt)
	assert.Equal(t, pinnedNow, *verified.VerifiedAt)

	_, err = f.svc.Contributions.Verify(f.ctx, c.ID, "treasurer", "")
	assert.ErrorIs(t, err, finance.ErrInvalidTransition)

	reversed, err := f.svc.Contributions.Reverse(f.ctx, c.ID, "treasurer", "chargeback")
	require.NoError(t, err)
	assert.Equal(t, finance.StatusReversed, reversed.Status)
	assert.Equal(t, "chargeback", reversed.Notes)
}

func TestContributionService_ImportMatched(t *testing.T) {
	// GIVEN: January to March, m1 already paid January
	f := newFixture(t)
	f.contributionRule(t, "2025-01-01", "500")
	m1, m2 := f.member(t, "m1"), f.member(t, "m2")
	periods := f.months(t, "2025-01-01", "2025-03-31")
	require.Len(t, periods, 3)
	_, err := f.svc.Contributions.Record(f.ctx, stokvel.RecordRequest{
		StokvelID: f.stokvel.ID, MemberID: m1, PeriodID: periods[0].ID,
		Amount: dec("500"), PaymentDate: date("2025-01-20"), Reference: "STMT-001",
	})
	require.NoError(t, err)

	// WHEN: a statement is imported
	res, err := f.svc.Contributions.ImportMatched(f.ctx, f.stokvel.ID, []stokvel.MatchedPayment{
		{MemberID: m1, Amount: dec("500"), PaymentDate: date("2025-02-25"), Reference: "STMT-002"},
		{MemberID: m1, Amount: dec("500"), PaymentDate: date("2025-01-20"), Reference: "STMT-001"},
		{MemberID: m2, Amount: dec("500"), PaymentDate: date("2025-03-05"), Reference: "STMT-003"},
		{MemberID: m2, Amount: dec("500"), PaymentDate: date("2025-03-06"), Reference: "STMT-004"},
		{MemberID: "stranger", Amount: dec("500"), PaymentDate: date("2025-03-06"), Reference: "STMT-005"},
		{MemberID: m2, Amount: dec("500"), PaymentDate: date("2024-12-30"), Reference: "STMT-006"},
	})
	require.NoError(t, err)

	// THEN: m1's February payment lands in February, the repeat is a duplicate
	require.Len(t, res.Contributions, 3)
	assert.Equal(t, periods[1].ID, res.Contributions[0].PeriodID)
	assert.Equal(t, finance.StatusPending, res.Contributions[0].Status)
	assert.Equal(t, finance.MethodBankTransfer, res.Contributions[0].Method)
	require.Len(t, res.Duplicates, 1)
	assert.Equal(t, "STMT-001", res.Duplicates[0].Reference)

	// AND: m2's arrears are settled oldest first
	assert.Equal(t, periods[0].ID, res.Contributions[1].PeriodID)
	assert.Equal(t, periods[1].ID, res.Contributions[2].PeriodID)

	// AND: strangers and payments before any period are unmatched
	require.Len(t, res.Unmatched, 2)
	assert.Equal(t, finance.MemberID("stranger"), res.Unmatched[0].MemberID)
	assert.Equal(t, "STMT-006", res.Unmatched[1].Reference)
}
