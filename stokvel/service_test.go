package stokvel_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stokvela/finance-engine/finance"
	"github.com/stokvela/finance-engine/finance/store"
	"github.com/stokvela/finance-engine/observability"
	"github.com/stokvela/finance-engine/stokvel"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var pinnedNow = time.Date(2025, 4, 15, 9, 0, 0, 0, time.UTC)

type fixture struct {
	ctx     context.Context
	store   *store.Memory
	svc     *stokvel.Services
	metrics *observability.Metrics
	stokvel finance.Stokvel
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	var seq atomic.Int64
	f := &fixture{
		ctx:     context.Background(),
		store:   store.NewMemory(),
		metrics: observability.NewMetrics(),
	}
	f.svc = stokvel.New(f.store, stokvel.Options{
		Logger:    zaptest.NewLogger(t),
		Metrics:   f.metrics,
		Now:       func() time.Time { return pinnedNow },
		NewID:     func() string { return fmt.Sprintf("id-%03d", seq.Add(1)) },
		BatchSize: 4,
	})

	sv, err := f.svc.Directory.CreateStokvel(f.ctx, "Kasi Savings Club", 0, finance.LastDayOfMonth)
	require.NoError(t, err)
	f.stokvel = sv
	return f
}

func (f *fixture) member(t *testing.T, id string) finance.MemberID {
	t.Helper()
	_, err := f.svc.Directory.SaveMember(f.ctx, finance.Member{
		ID:        finance.MemberID(id),
		StokvelID: f.stokvel.ID,
		Name:      "Member " + id,
		Status:    finance.MemberActive,
		JoinedAt:  date("2024-01-01"),
	})
	require.NoError(t, err)
	return finance.MemberID(id)
}

func (f *fixture) contributionRule(t *testing.T, from, amount string) finance.ContributionRule {
	t.Helper()
	r, err := f.svc.Rules.CreateContributionRule(f.ctx, regularRule(f.stokvel.ID, from, amount))
	require.NoError(t, err)
	return r
}

func (f *fixture) penaltyRule(t *testing.T, category finance.PenaltyCategory, method finance.CalculationMethod, amount string, grace int) finance.PenaltyRule {
	t.Helper()
	r, err := f.svc.Rules.CreatePenaltyRule(f.ctx, finance.PenaltyRule{
		StokvelID:       f.stokvel.ID,
		Name:            string(category),
		Category:        category,
		Method:          method,
		Amount:          dec(amount),
		GracePeriodDays: grace,
		Effective:       finance.OpenInterval(date("2025-01-01")),
		IsActive:        true,
	})
	require.NoError(t, err)
	return r
}

// months materialises monthly periods over [from, to].
func (f *fixture) months(t *testing.T, from, to string) []finance.PaymentPeriod {
	t.Helper()
	res, err := f.svc.Periods.Generate(f.ctx, stokvel.GenerateRequest{
		StokvelID: f.stokvel.ID,
		Frequency: finance.FrequencyMonthly,
		Start:     date(from),
		End:       date(to),
	})
	require.NoError(t, err)
	return append(res.Existing, res.Created...)
}

func regularRule(stokvelID finance.StokvelID, from, amount string) finance.ContributionRule {
	return finance.ContributionRule{
		StokvelID:   stokvelID,
		Name:        "Monthly contribution",
		Category:    finance.ContributionRegular,
		Amount:      dec(amount),
		Frequency:   finance.FrequencyMonthly,
		Effective:   finance.OpenInterval(date(from)),
		IsActive:    true,
		IsMandatory: true,
	}
}

func date(s string) finance.Date { return finance.MustParseDate(s) }

func dec(s string) decimal.Decimal { return finance.MustParseDecimal(s) }
