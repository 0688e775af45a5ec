package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stokvela/finance-engine/finance"
	"github.com/stokvela/finance-engine/finance/store"
)

func marchPeriod(t *testing.T) finance.PaymentPeriod {
	t.Helper()
	cur, err := finance.MonthlyPeriods(finance.MustParseDate("2025-03-01"), finance.MustParseDate("2025-03-31"), 31)
	require.NoError(t, err)
	c, _ := cur.Next()
	c.RuleID = "rule-1"
	c.Expected = decimal.RequireFromString("500")
	return finance.NewPaymentPeriod("per-mar", "stk", c, c.Start.Time())
}

func TestMemory_WithTxRollsBack(t *testing.T) {
	// GIVEN: an empty store
	ctx := context.Background()
	s := store.NewMemory()
	boom := errors.New("boom")

	// WHEN: a transaction creates a period and then fails
	err := s.WithTx(ctx, func(tx finance.Store) error {
		require.NoError(t, tx.CreatePeriod(ctx, marchPeriod(t)))
		return boom
	})

	// THEN: the period and its key are gone
	assert.ErrorIs(t, err, boom)
	_, ok, err := s.FindPeriod(ctx, marchPeriod(t).Key())
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, s.CreatePeriod(ctx, marchPeriod(t)), "key was released by the rollback")
}

func TestMemory_UniquenessGuards(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	p := marchPeriod(t)
	require.NoError(t, s.CreatePeriod(ctx, p))

	dup := p
	dup.ID = "other"
	assert.ErrorIs(t, s.CreatePeriod(ctx, dup), finance.ErrDuplicatePeriod)

	c := finance.Contribution{ID: "c1", MemberID: "m1", PeriodID: p.ID, Status: finance.StatusPending}
	require.NoError(t, s.CreateContribution(ctx, c))
	c.ID = "c2"
	assert.ErrorIs(t, s.CreateContribution(ctx, c), finance.ErrDuplicateContribution)

	rule := finance.PenaltyRule{ID: "late", StokvelID: "stk", Category: finance.PenaltyLatePayment}
	pen := finance.NewPenalty("pen-1", rule, "m1", &p.ID, decimal.NewFromInt(50), "late", p.Due, finance.SourceEngine)
	require.NoError(t, s.CreatePenalty(ctx, pen))
	pen.ID = "pen-2"
	assert.ErrorIs(t, s.CreatePenalty(ctx, pen), finance.ErrDuplicatePenalty)
	pen.Source = finance.SourceManual
	assert.NoError(t, s.CreatePenalty(ctx, pen))
}

func TestMemory_UpdateMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	err := s.UpdatePenalty(ctx, finance.Penalty{ID: "nope"})
	assert.ErrorIs(t, err, finance.ErrNotFound)
	assert.True(t, finance.IsNotFound(err))
}

func TestMemory_ActiveMembersSorted(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	for _, m := range []finance.Member{
		{ID: "m3", StokvelID: "stk", Status: finance.MemberActive},
		{ID: "m1", StokvelID: "stk", Status: finance.MemberActive},
		{ID: "m2", StokvelID: "stk", Status: finance.MemberExited},
		{ID: "x1", StokvelID: "other", Status: finance.MemberActive},
	} {
		require.NoError(t, s.SaveMember(ctx, m))
	}
	got, err := s.ActiveMembers(ctx, "stk")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, finance.MemberID("m1"), got[0].ID)
	assert.Equal(t, finance.MemberID("m3"), got[1].ID)
}
