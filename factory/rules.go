/*
Package factory provides JSON to Go rule conversion.

PURPOSE:
  Converts a JSON rule set (a stokvel's "constitution") into
  finance.ContributionRule and finance.PenaltyRule values. Committees
  adopt their rules as a document; this lets that document be stored,
  versioned and loaded without code changes.

JSON SCHEMA:
  {
    "stokvel_id": "kasi-club",
    "effective_from": "2025-01-01",
    "contribution_rules": [
      {"name": "Monthly contribution", "category": "regular",
       "amount": "500", "frequency": "monthly", "mandatory": true}
    ],
    "penalty_rules": [
      {"name": "Late fee", "category": "late_payment",
       "calculation_method": "daily", "amount": "10",
       "grace_period_days": 3, "maximum_amount": "100"}
    ]
  }

  Amounts are decimal strings (plain JSON numbers are accepted too).
  A rule's effective_from/effective_until override the set's
  effective_from. is_active defaults to true.

USAGE:
  f := NewRuleFactory()
  set, err := f.ParseRuleSet(jsonStr)
  created, err := services.Rules.CreateRuleSet(ctx, set.Contributions, set.Penalties)

SEE ALSO:
  - presets.go: ready-made constitutions
  - finance/rules.go: rule types and field validation
  - stokvel/rules.go: CreateRuleSet, which enforces overlap rules
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stokvela/finance-engine/finance"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RuleSetJSON is the JSON representation of a rule set.
type RuleSetJSON struct {
	StokvelID     string                 `json:"stokvel_id"`
	EffectiveFrom string                 `json:"effective_from"`
	Contributions []ContributionRuleJSON `json:"contribution_rules,omitempty"`
	Penalties     []PenaltyRuleJSON      `json:"penalty_rules,omitempty"`
}

type ContributionRuleJSON struct {
	Name           string          `json:"name"`
	Category       string          `json:"category"`
	Amount         decimal.Decimal `json:"amount"`
	Frequency      string          `json:"frequency,omitempty"` // default monthly
	Mandatory      bool            `json:"mandatory,omitempty"`
	Description    string          `json:"description,omitempty"`
	EffectiveFrom  string          `json:"effective_from,omitempty"`
	EffectiveUntil string          `json:"effective_until,omitempty"`
	IsActive       *bool           `json:"is_active,omitempty"`
}

type PenaltyRuleJSON struct {
	Name              string           `json:"name"`
	Category          string           `json:"category"`
	CalculationMethod string           `json:"calculation_method,omitempty"` // default fixed
	Amount            decimal.Decimal  `json:"amount"`
	GracePeriodDays   int              `json:"grace_period_days,omitempty"`
	MaximumAmount     *decimal.Decimal `json:"maximum_amount,omitempty"`
	Description       string           `json:"description,omitempty"`
	EffectiveFrom     string           `json:"effective_from,omitempty"`
	EffectiveUntil    string           `json:"effective_until,omitempty"`
	IsActive          *bool            `json:"is_active,omitempty"`
}

// RuleSet is a parsed rule set, ready to be created. Rule ids are left empty
// for the service to assign.
type RuleSet struct {
	StokvelID     finance.StokvelID
	Contributions []finance.ContributionRule
	Penalties     []finance.PenaltyRule
}

// =============================================================================
// RULE FACTORY
// =============================================================================

// RuleFactory converts JSON rule sets to engine rules.
type RuleFactory struct{}

func NewRuleFactory() *RuleFactory {
	return &RuleFactory{}
}

// ParseRuleSet parses and validates a JSON rule set.
func (f *RuleFactory) ParseRuleSet(jsonStr string) (RuleSet, error) {
	var rj RuleSetJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return RuleSet{}, fmt.Errorf("failed to parse rule set JSON: %w", err)
	}
	return f.FromJSON(rj)
}

// FromJSON converts RuleSetJSON to a RuleSet. Every rule is field-validated;
// the first invalid rule fails the whole set.
func (f *RuleFactory) FromJSON(rj RuleSetJSON) (RuleSet, error) {
	set := RuleSet{StokvelID: finance.StokvelID(rj.StokvelID)}
	if set.StokvelID == "" {
		return RuleSet{}, &finance.ValidationError{Field: "stokvel_id", Message: "is required"}
	}

	for i, cj := range rj.Contributions {
		eff, err := parseInterval(rj.EffectiveFrom, cj.EffectiveFrom, cj.EffectiveUntil)
		if err != nil {
			return RuleSet{}, fmt.Errorf("contribution_rules[%d]: %w", i, err)
		}
		r := finance.ContributionRule{
			StokvelID:   set.StokvelID,
			Name:        cj.Name,
			Category:    finance.ContributionCategory(cj.Category),
			Amount:      cj.Amount,
			Frequency:   parseFrequency(cj.Frequency),
			Effective:   eff,
			IsActive:    activeOrDefault(cj.IsActive),
			IsMandatory: cj.Mandatory,
			Description: cj.Description,
		}
		if err := r.Validate(); err != nil {
			return RuleSet{}, fmt.Errorf("contribution_rules[%d]: %w", i, err)
		}
		set.Contributions = append(set.Contributions, r)
	}

	for i, pj := range rj.Penalties {
		eff, err := parseInterval(rj.EffectiveFrom, pj.EffectiveFrom, pj.EffectiveUntil)
		if err != nil {
			return RuleSet{}, fmt.Errorf("penalty_rules[%d]: %w", i, err)
		}
		r := finance.PenaltyRule{
			StokvelID:       set.StokvelID,
			Name:            pj.Name,
			Category:        finance.PenaltyCategory(pj.Category),
			Method:          parseMethod(pj.CalculationMethod),
			Amount:          pj.Amount,
			GracePeriodDays: pj.GracePeriodDays,
			MaximumAmount:   pj.MaximumAmount,
			Effective:       eff,
			IsActive:        activeOrDefault(pj.IsActive),
			Description:     pj.Description,
		}
		if err := r.Validate(); err != nil {
			return RuleSet{}, fmt.Errorf("penalty_rules[%d]: %w", i, err)
		}
		set.Penalties = append(set.Penalties, r)
	}
	return set, nil
}

// ToJSON converts rules back to their JSON form, e.g. to export a stokvel's
// current constitution.
func (f *RuleFactory) ToJSON(stokvelID finance.StokvelID, cs []finance.ContributionRule, ps []finance.PenaltyRule) RuleSetJSON {
	rj := RuleSetJSON{StokvelID: string(stokvelID)}
	for _, r := range cs {
		active := r.IsActive
		from, until := formatInterval(r.Effective)
		rj.Contributions = append(rj.Contributions, ContributionRuleJSON{
			Name:           r.Name,
			Category:       string(r.Category),
			Amount:         r.Amount,
			Frequency:      string(r.Frequency),
			Mandatory:      r.IsMandatory,
			Description:    r.Description,
			EffectiveFrom:  from,
			EffectiveUntil: until,
			IsActive:       &active,
		})
	}
	for _, r := range ps {
		active := r.IsActive
		from, until := formatInterval(r.Effective)
		rj.Penalties = append(rj.Penalties, PenaltyRuleJSON{
			Name:              r.Name,
			Category:          string(r.Category),
			CalculationMethod: string(r.Method),
			Amount:            r.Amount,
			GracePeriodDays:   r.GracePeriodDays,
			MaximumAmount:     r.MaximumAmount,
			Description:       r.Description,
			EffectiveFrom:     from,
			EffectiveUntil:    until,
			IsActive:          &active,
		})
	}
	return rj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseInterval(setFrom, from, until string) (finance.Interval, error) {
	if from == "" {
		from = setFrom
	}
	if from == "" {
		return finance.Interval{}, &finance.ValidationError{Field: "effective_from", Message: "is required"}
	}
	start, err := finance.ParseDate(from)
	if err != nil {
		return finance.Interval{}, &finance.ValidationError{Field: "effective_from", Message: err.Error()}
	}
	if until == "" {
		return finance.OpenInterval(start), nil
	}
	end, err := finance.ParseDate(until)
	if err != nil {
		return finance.Interval{}, &finance.ValidationError{Field: "effective_until", Message: err.Error()}
	}
	return finance.ClosedInterval(start, end), nil
}

func formatInterval(i finance.Interval) (string, string) {
	if i.Until == nil {
		return i.From.String(), ""
	}
	return i.From.String(), i.Until.String()
}

func parseFrequency(s string) finance.Frequency {
	if s == "" {
		return finance.FrequencyMonthly
	}
	return finance.Frequency(s)
}

func parseMethod(s string) finance.CalculationMethod {
	if s == "" {
		return finance.MethodFixed
	}
	return finance.CalculationMethod(s)
}

func activeOrDefault(b *bool) bool {
	if b == nil {
		return true
	}
	return *b
}
