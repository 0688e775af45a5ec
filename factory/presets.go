/*
presets.go - Ready-made stokvel constitutions

PURPOSE:
  JSON rule sets for the common kinds of stokvel. Each returns a document
  ParseRuleSet accepts, so a committee can start from a preset, edit the
  JSON and load it.

AVAILABLE PRESETS:
  SavingsClubJSON:    monthly savings with late, short and no-payment fees
  BurialSocietyJSON:  monthly premium plus a once-off joining fee
  GroceryStokvelJSON: monthly contribution, percentage late fee, capped
*/
package factory

import (
	"encoding/json"
)

// SavingsClubJSON returns a savings club constitution. The late fee is
// charged per day after a three-day grace period and capped at 100.
func SavingsClubJSON(stokvelID, effectiveFrom, monthly string) string {
	rj := map[string]interface{}{
		"stokvel_id":     stokvelID,
		"effective_from": effectiveFrom,
		"contribution_rules": []map[string]interface{}{{
			"name":      "Monthly savings",
			"category":  "regular",
			"amount":    monthly,
			"frequency": "monthly",
			"mandatory": true,
		}},
		"penalty_rules": []map[string]interface{}{
			{
				"name":               "Late payment",
				"category":           "late_payment",
				"calculation_method": "daily",
				"amount":             "10",
				"grace_period_days":  3,
				"maximum_amount":     "100",
			},
			{
				"name":               "Short payment",
				"category":           "insufficient_payment",
				"calculation_method": "percentage",
				"amount":             "10",
			},
			{
				"name":               "No payment",
				"category":           "no_payment",
				"calculation_method": "fixed",
				"amount":             "100",
				"grace_period_days":  7,
			},
		},
	}
	b, _ := json.MarshalIndent(rj, "", "  ")
	return string(b)
}

// BurialSocietyJSON returns a burial society constitution.
func BurialSocietyJSON(stokvelID, effectiveFrom, premium, joiningFee string) string {
	rj := map[string]interface{}{
		"stokvel_id":     stokvelID,
		"effective_from": effectiveFrom,
		"contribution_rules": []map[string]interface{}{
			{
				"name":      "Monthly premium",
				"category":  "regular",
				"amount":    premium,
				"frequency": "monthly",
				"mandatory": true,
			},
			{
				"name":      "Joining fee",
				"category":  "registration",
				"amount":    joiningFee,
				"frequency": "once_off",
				"mandatory": true,
			},
		},
		"penalty_rules": []map[string]interface{}{{
			"name":               "Missed premium",
			"category":           "no_payment",
			"calculation_method": "fixed",
			"amount":             "50",
			"grace_period_days":  14,
		}},
	}
	b, _ := json.MarshalIndent(rj, "", "  ")
	return string(b)
}

// GroceryStokvelJSON returns a grocery stokvel constitution.
func GroceryStokvelJSON(stokvelID, effectiveFrom, monthly string) string {
	rj := map[string]interface{}{
		"stokvel_id":     stokvelID,
		"effective_from": effectiveFrom,
		"contribution_rules": []map[string]interface{}{{
			"name":      "Grocery contribution",
			"category":  "regular",
			"amount":    monthly,
			"frequency": "monthly",
			"mandatory": true,
		}},
		"penalty_rules": []map[string]interface{}{
			{
				"name":               "Late payment",
				"category":           "late_payment",
				"calculation_method": "percentage",
				"amount":             "5",
				"maximum_amount":     "50",
			},
			{
				"name":               "Missed meeting",
				"category":           "missed_meeting",
				"calculation_method": "fixed",
				"amount":             "20",
			},
		},
	}
	b, _ := json.MarshalIndent(rj, "", "  ")
	return string(b)
}
