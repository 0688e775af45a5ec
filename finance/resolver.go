/*
resolver.go - Overlap checks (write path) and rule resolution (read path)

WRITE PATH:
  CheckOverlap is called with every stored rule of the candidate's
  (stokvel, category) before an insert, a reactivation or an interval
  change. It compares only ACTIVE rules, skips the candidate's own id, and
  uses half-open intervals, so [Jan 1, Jul 1) and [Jul 1, open) are
  neighbours, not an overlap.

READ PATH:
  Resolve returns the single active rule whose interval covers asOf
  (inclusive of effective_until). When several do, which only happens with
  imported or hand-edited data, the latest effective_from wins and a
  RuleIntegrityWarning travels back with it. A rule that ends on the very
  day the winner starts is a normal hand-over and does not warn.

  ResolveWindow answers the same question for a whole period: a rule
  qualifies when it is in force on any day of [start, end]. A period that
  a supersede splits in two sees both versions; the later one wins and,
  since their half-open windows only touch, no warning is raised.
*/
package finance

import (
	"sort"
)

// CheckOverlap returns *OverlappingRuleError when candidate, if active,
// intersects any other active rule of the same stokvel and category.
func CheckOverlap[R VersionedRule](existing []R, candidate R) error {
	if !candidate.Active() {
		return nil
	}
	conflicts := FindOverlaps(existing, candidate)
	if len(conflicts) == 0 {
		return nil
	}
	ids := make([]RuleID, len(conflicts))
	for i, c := range conflicts {
		ids[i] = c.RuleID()
	}
	return &OverlappingRuleError{
		StokvelID: candidate.Stokvel(),
		Kind:      candidate.Kind(),
		Category:  candidate.CategoryKey(),
		Candidate: candidate.Window(),
		Conflicts: ids,
	}
}

// FindOverlaps lists the active rules in existing that intersect candidate.
func FindOverlaps[R VersionedRule](existing []R, candidate R) []R {
	var out []R
	for _, r := range existing {
		if r.RuleID() == candidate.RuleID() && candidate.RuleID() != "" {
			continue
		}
		if !r.Active() || r.Stokvel() != candidate.Stokvel() || r.CategoryKey() != candidate.CategoryKey() {
			continue
		}
		if r.Window().Overlaps(candidate.Window()) {
			out = append(out, r)
		}
	}
	return out
}

// Resolution is the outcome of a rule lookup.
type Resolution[R VersionedRule] struct {
	Rule    R
	Found   bool
	Warning *RuleIntegrityWarning
}

// Resolve picks the rule of the given category in force on asOf.
func Resolve[R VersionedRule](rules []R, category string, asOf Date) Resolution[R] {
	var matches []R
	for _, r := range rules {
		if !r.Active() || r.CategoryKey() != category {
			continue
		}
		if r.Window().Covers(asOf) {
			matches = append(matches, r)
		}
	}
	if len(matches) == 0 {
		return Resolution[R]{}
	}

	sortLatestFirst(matches)

	winner := matches[0]
	res := Resolution[R]{Rule: winner, Found: true}

	var discarded []RuleID
	for _, loser := range matches[1:] {
		if isHandOver(loser.Window(), winner.Window(), asOf) {
			continue
		}
		discarded = append(discarded, loser.RuleID())
	}
	if len(discarded) > 0 {
		res.Warning = &RuleIntegrityWarning{
			StokvelID: winner.Stokvel(),
			Kind:      winner.Kind(),
			Category:  category,
			AsOf:      asOf,
			Chosen:    winner.RuleID(),
			Discarded: discarded,
		}
	}
	return res
}

// ResolveWindow picks the rule of the given category in force at some point
// in [start, end]. Only losers whose half-open window intersects the
// winner's are reported, so a sequential hand-over inside the window is
// silent.
func ResolveWindow[R VersionedRule](rules []R, category string, start, end Date) Resolution[R] {
	var matches []R
	for _, r := range rules {
		if !r.Active() || r.CategoryKey() != category {
			continue
		}
		w := r.Window()
		if w.From.BeforeOrEqual(end) && (w.Until == nil || w.Until.AfterOrEqual(start)) {
			matches = append(matches, r)
		}
	}
	if len(matches) == 0 {
		return Resolution[R]{}
	}
	sortLatestFirst(matches)

	winner := matches[0]
	res := Resolution[R]{Rule: winner, Found: true}

	var discarded []RuleID
	for _, loser := range matches[1:] {
		if loser.Window().Overlaps(winner.Window()) {
			discarded = append(discarded, loser.RuleID())
		}
	}
	if len(discarded) > 0 {
		res.Warning = &RuleIntegrityWarning{
			StokvelID: winner.Stokvel(),
			Kind:      winner.Kind(),
			Category:  category,
			AsOf:      start,
			Chosen:    winner.RuleID(),
			Discarded: discarded,
		}
	}
	return res
}

// sortLatestFirst orders by effective_from descending; id breaks ties so the
// pick is stable.
func sortLatestFirst[R VersionedRule](rules []R) {
	sort.SliceStable(rules, func(i, j int) bool {
		fi, fj := rules[i].Window().From, rules[j].Window().From
		if !fi.Equal(fj) {
			return fi.After(fj)
		}
		return rules[i].RuleID() > rules[j].RuleID()
	})
}

// isHandOver is true when prev ends exactly where next begins, on asOf.
func isHandOver(prev, next Interval, asOf Date) bool {
	return prev.Until != nil && prev.Until.Equal(next.From) && next.From.Equal(asOf)
}

// ResolveContribution is Resolve for a contribution category.
func ResolveContribution(rules []ContributionRule, category ContributionCategory, asOf Date) Resolution[ContributionRule] {
	return Resolve(rules, string(category), asOf)
}

// ResolveContributionWindow is ResolveWindow for a contribution category.
func ResolveContributionWindow(rules []ContributionRule, category ContributionCategory, start, end Date) Resolution[ContributionRule] {
	return ResolveWindow(rules, string(category), start, end)
}

// ResolvePenalty is Resolve for a penalty category.
func ResolvePenalty(rules []PenaltyRule, category PenaltyCategory, asOf Date) Resolution[PenaltyRule] {
	return Resolve(rules, string(category), asOf)
}
