package finance

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// DATE - Day-granularity calendar date (UTC midnight)
// =============================================================================

// DateLayout is the wire and storage format for dates.
const DateLayout = "2006-01-02"

// Date is a calendar day. All money rules in a stokvel are day-based: due
// dates, grace periods and effective intervals never carry a time of day.
type Date struct {
	t time.Time
}

// NewDate builds a date. Out-of-range days normalize the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// Today returns the current UTC date.
func Today() Date {
	return DateOf(time.Now().UTC())
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidArgument, s)
	}
	return DateOf(t), nil
}

// MustParseDate panics on malformed input. Tests and presets only.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(o Date) bool        { return d.t.Before(o.t) }
func (d Date) After(o Date) bool         { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool         { return d.t.Equal(o.t) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.t.After(o.t) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.t.Before(o.t) }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{t: d.t.AddDate(0, n, 0)} }

// Properties
func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) IsZero() bool          { return d.t.IsZero() }
func (d Date) Time() time.Time       { return d.t }
func (d Date) String() string        { return d.t.Format(DateLayout) }
func (d Date) Quarter() int          { return (int(d.t.Month())-1)/3 + 1 }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MinDate and MaxDate return the earlier/later of two dates.
func MinDate(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

func MaxDate(a, b Date) Date {
	if a.After(b) {
		return a
	}
	return b
}

// =============================================================================
// CALENDAR UTILITIES
// =============================================================================

// DaysBetween returns to - from in whole days (negative when to is earlier).
func DaysBetween(from, to Date) int {
	return int(to.t.Sub(from.t).Hours() / 24)
}

// DaysInMonth returns the number of days in the month, leap years included.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthStart returns the first day of the month.
func MonthStart(year int, month time.Month) Date {
	return NewDate(year, month, 1)
}

// MonthEnd returns the last calendar day of the month.
func MonthEnd(year int, month time.Month) Date {
	return NewDate(year, month, DaysInMonth(year, month))
}

// LastDayOfMonth is the due-day sentinel meaning "whatever the month's last day is".
const LastDayOfMonth = 31

// ResolveDueDate returns the due date for a month. A dueDay at or beyond the
// month's length clamps to the month end, so 31 always means the last day and
// 30 in February means the 28th or 29th.
func ResolveDueDate(year int, month time.Month, dueDay int) Date {
	last := DaysInMonth(year, month)
	if dueDay >= last {
		return MonthEnd(year, month)
	}
	if dueDay < 1 {
		dueDay = 1
	}
	return NewDate(year, month, dueDay)
}

// ValidateDueDay rejects due days outside 1..31.
func ValidateDueDay(dueDay int) error {
	if dueDay < 1 || dueDay > LastDayOfMonth {
		return fmt.Errorf("%w: due day %d must be between 1 and 31", ErrInvalidArgument, dueDay)
	}
	return nil
}

// QuarterBounds returns the first and last day of a calendar quarter.
func QuarterBounds(year, quarter int) (Date, Date, error) {
	if quarter < 1 || quarter > 4 {
		return Date{}, Date{}, fmt.Errorf("%w: quarter %d must be between 1 and 4", ErrInvalidArgument, quarter)
	}
	firstMonth := time.Month((quarter-1)*3 + 1)
	return MonthStart(year, firstMonth), MonthEnd(year, firstMonth+2), nil
}

// MonthLabel renders "March 2025".
func MonthLabel(year int, month time.Month) string {
	return fmt.Sprintf("%s %d", month, year)
}

// QuarterLabel renders "Q1 2025".
func QuarterLabel(year, quarter int) string {
	return fmt.Sprintf("Q%d %d", quarter, year)
}
