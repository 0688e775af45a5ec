/*
errors.go - Error taxonomy for the rule engine

PURPOSE:
  All error types in one place. Callers branch with errors.Is on the
  sentinels and errors.As on the structured types for details.

ERROR CATEGORIES:
  1. Validation - malformed input rejected before any state change
  2. Overlap - a rule write would break the one-rule-per-interval invariant
  3. Integrity - non-fatal; resolution found illegally overlapping rows
  4. No applicable rule - policy outcome, not a defect
  5. Store - not found, duplicates, invalid state transitions
*/
package finance

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation            = errors.New("validation failed")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrOverlappingRule       = errors.New("overlapping rule")
	ErrNoApplicableRule      = errors.New("no applicable rule")
	ErrNotFound              = errors.New("not found")
	ErrDuplicatePeriod       = errors.New("payment period already exists")
	ErrDuplicateContribution = errors.New("contribution already recorded for member and period")
	ErrDuplicatePenalty      = errors.New("penalty already applied")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrPeriodClosed          = errors.New("payment period is closed")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// OverlappingRuleError is returned when a rule write would leave two active
// rules of the same category with intersecting intervals.
type OverlappingRuleError struct {
	StokvelID StokvelID
	Kind      RuleKind
	Category  string
	Candidate Interval
	Conflicts []RuleID
}

func (e *OverlappingRuleError) Error() string {
	ids := make([]string, len(e.Conflicts))
	for i, id := range e.Conflicts {
		ids[i] = string(id)
	}
	return fmt.Sprintf("overlapping %s %s rule for %s: %s conflicts with [%s]",
		e.Category, e.Kind, e.StokvelID, e.Candidate, strings.Join(ids, ", "))
}

func (e *OverlappingRuleError) Unwrap() error { return ErrOverlappingRule }

// RuleIntegrityWarning is not fatal. It reports that resolution found more
// than one active rule covering a date and which one it picked.
type RuleIntegrityWarning struct {
	StokvelID StokvelID
	Kind      RuleKind
	Category  string
	AsOf      Date
	Chosen    RuleID
	Discarded []RuleID
}

func (w *RuleIntegrityWarning) Error() string {
	return fmt.Sprintf("rule integrity: %d active %s %s rules cover %s for %s; using %s",
		len(w.Discarded)+1, w.Category, w.Kind, w.AsOf, w.StokvelID, w.Chosen)
}

// NoApplicableRuleError carries the lookup that found nothing.
type NoApplicableRuleError struct {
	StokvelID StokvelID
	Kind      RuleKind
	Category  string
	AsOf      Date
}

func (e *NoApplicableRuleError) Error() string {
	return fmt.Sprintf("no active %s %s rule for %s on %s", e.Category, e.Kind, e.StokvelID, e.AsOf)
}

func (e *NoApplicableRuleError) Unwrap() error { return ErrNoApplicableRule }

// TransitionError describes a rejected status change.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Entity, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// NotFound wraps ErrNotFound with the missing entity.
func NotFound(entity string, id any) error {
	return fmt.Errorf("%s %v: %w", entity, id, ErrNotFound)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrPeriodClosed)
}

// IsConflict returns true for invariant violations against existing state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrOverlappingRule) ||
		errors.Is(err, ErrDuplicatePeriod) ||
		errors.Is(err, ErrDuplicateContribution) ||
		errors.Is(err, ErrDuplicatePenalty) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsNotFound returns true if the error indicates a missing record or rule.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrNoApplicableRule)
}
