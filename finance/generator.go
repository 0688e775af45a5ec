/*
generator.go - Expands a date range into monthly or quarterly period candidates

PURPOSE:
  A stokvel collects contributions per period. The generator turns
  [start, end] into the calendar months (or quarters) that intersect it,
  clips each one to the range and works out its due date. Candidates are
  not persisted here; the period service materialises them.

LAZINESS:
  Multi-year ranges are walked through a PeriodCursor, one candidate at a
  time. A cursor holds only its position, so it can be reset, or resumed
  from a saved Position() after an interruption. Two cursors over the same
  range never share state.

DUE DATES:
  Monthly: ResolveDueDate(year, month, dueDay), so 31 means month end.
  Quarterly: the last day of the quarter.

EXPECTED AMOUNTS:
  AttachExpected resolves the contribution rule in force on any day of the
  candidate's clipped [Start, End] and copies its amount, so a rule starting
  on the 15th still prices its first month. When two versions share the
  window the later effective_from wins. No rule means a zero amount and
  NoRuleFound=true; the caller decides what to do with such candidates.
*/
package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// PeriodCandidate is a not-yet-persisted payment period.
type PeriodCandidate struct {
	Year    int
	Month   time.Month // zero for quarterly candidates
	Quarter int        // zero for monthly candidates
	Label   string
	Start   Date
	End     Date
	Due     Date

	// Filled by AttachExpected.
	RuleID      RuleID
	Expected    decimal.Decimal
	NoRuleFound bool
	Warning     *RuleIntegrityWarning
}

// IsMonthly reports whether the candidate is a calendar month.
func (c PeriodCandidate) IsMonthly() bool { return c.Month != 0 }

// Key identifies the candidate within a contribution rule.
func (c PeriodCandidate) Key(stokvelID StokvelID, ruleID RuleID) PeriodKey {
	return PeriodKey{StokvelID: stokvelID, RuleID: ruleID, Year: c.Year, Month: int(c.Month), Quarter: c.Quarter}
}

// =============================================================================
// PERIOD CURSOR
// =============================================================================

type cadence int

const (
	cadenceMonthly cadence = iota
	cadenceQuarterly
)

// PeriodCursor walks candidates in calendar order.
type PeriodCursor struct {
	cadence cadence
	start   Date
	end     Date
	dueDay  int
	pos     int
}

// MonthlyPeriods returns a cursor over the calendar months intersecting
// [start, end]. dueDay must be in 1..31.
func MonthlyPeriods(start, end Date, dueDay int) (*PeriodCursor, error) {
	if err := ValidateDueDay(dueDay); err != nil {
		return nil, err
	}
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	return &PeriodCursor{cadence: cadenceMonthly, start: start, end: end, dueDay: dueDay}, nil
}

// QuarterlyPeriods returns a cursor over the calendar quarters intersecting
// [start, end].
func QuarterlyPeriods(start, end Date) (*PeriodCursor, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	return &PeriodCursor{cadence: cadenceQuarterly, start: start, end: end}, nil
}

func validateRange(start, end Date) error {
	if start.IsZero() {
		return &ValidationError{Field: "start_date", Message: "is required"}
	}
	if end.IsZero() {
		return &ValidationError{Field: "end_date", Message: "is required"}
	}
	if end.Before(start) {
		return &ValidationError{Field: "end_date", Message: "must not be before start_date"}
	}
	return nil
}

// Next returns the next candidate, or false once the range is exhausted.
func (c *PeriodCursor) Next() (PeriodCandidate, bool) {
	cand, ok := c.at(c.pos)
	if ok {
		c.pos++
	}
	return cand, ok
}

// Reset rewinds the cursor to the first candidate.
func (c *PeriodCursor) Reset() { c.pos = 0 }

// Position is the number of candidates already returned.
func (c *PeriodCursor) Position() int { return c.pos }

// ResumeAt moves the cursor so that the next candidate is the pos-th one.
func (c *PeriodCursor) ResumeAt(pos int) {
	if pos < 0 {
		pos = 0
	}
	c.pos = pos
}

// Take returns up to n candidates from the current position.
func (c *PeriodCursor) Take(n int) []PeriodCandidate {
	var out []PeriodCandidate
	for len(out) < n {
		cand, ok := c.Next()
		if !ok {
			break
		}
		out = append(out, cand)
	}
	return out
}

// All drains the cursor from its current position.
func (c *PeriodCursor) All() []PeriodCandidate {
	var out []PeriodCandidate
	for {
		cand, ok := c.Next()
		if !ok {
			return out
		}
		out = append(out, cand)
	}
}

// at computes the i-th candidate without touching cursor state.
func (c *PeriodCursor) at(i int) (PeriodCandidate, bool) {
	switch c.cadence {
	case cadenceQuarterly:
		return c.quarterAt(i)
	default:
		return c.monthAt(i)
	}
}

func (c *PeriodCursor) monthAt(i int) (PeriodCandidate, bool) {
	first := MonthStart(c.start.Year(), c.start.Month()).AddMonths(i)
	if first.After(c.end) {
		return PeriodCandidate{}, false
	}
	y, m := first.Year(), first.Month()
	return PeriodCandidate{
		Year:  y,
		Month: m,
		Label: MonthLabel(y, m),
		Start: MaxDate(first, c.start),
		End:   MinDate(MonthEnd(y, m), c.end),
		Due:   ResolveDueDate(y, m, c.dueDay),
	}, true
}

func (c *PeriodCursor) quarterAt(i int) (PeriodCandidate, bool) {
	firstQ := c.start.Quarter()
	qStart := MonthStart(c.start.Year(), time.Month((firstQ-1)*3+1)).AddMonths(3 * i)
	if qStart.After(c.end) {
		return PeriodCandidate{}, false
	}
	y, q := qStart.Year(), qStart.Quarter()
	_, qEnd, _ := QuarterBounds(y, q)
	return PeriodCandidate{
		Year:    y,
		Quarter: q,
		Label:   QuarterLabel(y, q),
		Start:   MaxDate(qStart, c.start),
		End:     MinDate(qEnd, c.end),
		Due:     qEnd,
	}, true
}

// =============================================================================
// EXPECTED AMOUNTS
// =============================================================================

// AttachExpected resolves the contribution rule of category in force during
// the candidate's window and records its amount on the candidate.
func AttachExpected(c PeriodCandidate, rules []ContributionRule, category ContributionCategory) PeriodCandidate {
	if category == "" {
		category = ContributionRegular
	}
	res := ResolveContributionWindow(rules, category, c.Start, c.End)
	if !res.Found {
		c.RuleID = ""
		c.Expected = decimal.Zero
		c.NoRuleFound = true
		c.Warning = nil
		return c
	}
	c.RuleID = res.Rule.ID
	c.Expected = res.Rule.Amount
	c.NoRuleFound = false
	c.Warning = res.Warning
	return c
}
