package finance

// =============================================================================
// INTERVAL - Effective window of a versioned rule
// =============================================================================

// Interval is a rule's effective window. Until is nil for an open-ended rule.
//
// Two predicates exist on purpose and they are not interchangeable:
//   - Overlaps treats the window as half-open [From, Until), which is what
//     the write path uses to keep versions of a rule disjoint.
//   - Covers treats Until as inclusive, which is what the read path uses to
//     decide whether a rule is in force on a given day.
type Interval struct {
	From  Date
	Until *Date
}

// OpenInterval returns [from, +inf).
func OpenInterval(from Date) Interval {
	return Interval{From: from}
}

// ClosedInterval returns [from, until].
func ClosedInterval(from, until Date) Interval {
	return Interval{From: from, Until: &until}
}

// IsOpenEnded reports whether the interval extends to +inf.
func (i Interval) IsOpenEnded() bool { return i.Until == nil }

// Validate rejects an Until earlier than From. Until equal to From is a
// one-day rule: Covers is true on that day only, while Overlaps sees an
// empty window, so a successor may start the same day and resolution hands
// over to it without a warning.
func (i Interval) Validate() error {
	if i.From.IsZero() {
		return &ValidationError{Field: "effective_from", Message: "is required"}
	}
	if i.Until != nil && i.Until.Before(i.From) {
		return &ValidationError{Field: "effective_until", Message: "must not be before effective_from"}
	}
	return nil
}

// Overlaps reports whether i and o intersect under half-open semantics:
// i.From < o.until_or_inf AND o.From < i.until_or_inf.
func (i Interval) Overlaps(o Interval) bool {
	return beforeEnd(i.From, o.Until) && beforeEnd(o.From, i.Until)
}

func beforeEnd(d Date, until *Date) bool {
	return until == nil || d.Before(*until)
}

// Covers reports whether the rule is in force on d:
// From <= d AND (Until is nil OR Until >= d).
func (i Interval) Covers(d Date) bool {
	if d.Before(i.From) {
		return false
	}
	return i.Until == nil || i.Until.AfterOrEqual(d)
}

// Close returns a copy ending on until.
func (i Interval) Close(until Date) Interval {
	return Interval{From: i.From, Until: &until}
}

func (i Interval) String() string {
	if i.Until == nil {
		return "[" + i.From.String() + ", open)"
	}
	return "[" + i.From.String() + ", " + i.Until.String() + ")"
}

// DatePtr returns a pointer to a copy of d.
func DatePtr(d Date) *Date { return &d }
