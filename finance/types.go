/*
Package finance provides the contribution/penalty rule engine for stokvels.

PURPOSE:
  This package holds the domain types and algorithms behind a stokvel's
  money rules: which contribution is expected in a period, when a payment
  is late or short, and what penalty that costs. Persistence, HTTP and
  notification delivery live elsewhere; this package only defines the
  interfaces it needs from them.

KEY CONCEPTS IN THIS FILE (types.go):
  - Typed identifiers (StokvelID, MemberID, RuleID, ...)
  - Money helpers over decimal.Decimal
  - Percentage: the one division helper used by every report

DESIGN PRINCIPLES:
  1. Precision: all money is decimal.Decimal, never float64
  2. Purity: calculators and the reconciliation engine are pure functions
  3. Snapshots: a PaymentPeriod stores the expected amount it was created with
  4. Auditability: rules are versioned by interval and never deleted

SEE ALSO:
  - time.go, interval.go: date arithmetic and effective intervals
  - rules.go, resolver.go: rule records, overlap checks, resolution
  - generator.go: payment period generation
  - penalty.go: penalty calculation
  - reconcile.go: matching contributions against periods
*/
package finance

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type StokvelID string
type MemberID string
type RuleID string
type PeriodID string
type ContributionID string
type PenaltyID string
type CycleID string
type BankAccountID string
type EventID string

// =============================================================================
// MONEY
// =============================================================================

// MinContribution is the smallest amount a contribution rule may require.
var MinContribution = decimal.New(1, -2)

var hundred = decimal.NewFromInt(100)

// MustParseDecimal parses s or returns zero. Intended for literals in presets
// and tests.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// RoundMoney rounds to cents, half away from zero.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Percentage returns part/whole*100 rounded to 2 places. A zero whole yields
// zero rather than a division fault.
func Percentage(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(hundred).Div(whole).Round(2)
}

// PercentageOf returns a/b*100 for counts.
func PercentageOf(a, b int) decimal.Decimal {
	return Percentage(decimal.NewFromInt(int64(a)), decimal.NewFromInt(int64(b)))
}

// SumDecimals adds values.
func SumDecimals(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
