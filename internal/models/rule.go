// internal/models/rule.go
package models

import "time"

// Rule is a single versioned eligibility criterion for a scheme. Rules are
// immutable once created: an update inserts a new version and soft-closes
// the prior one by setting EffectiveTo.
type Rule struct {
	ID        string       `json:"id"`
	SchemeID  string       `json:"schemeId"`
	Name      string       `json:"name"`
	Category  RuleCategory `json:"category"`
	Attribute string       `json:"attribute,omitempty"`
	Operator  Operator     `json:"operator,omitempty"`

	// Exactly one value group is populated, depending on the category.
	NumericValue *float64 `json:"numericValue,omitempty"`
	NumericHigh  *float64 `json:"numericHigh,omitempty"` // upper bound for "between"
	Values       []string `json:"values,omitempty"`
	BoolValue    *bool    `json:"boolValue,omitempty"`
	Expression   string   `json:"expression,omitempty"`

	Mandatory     bool       `json:"mandatory"`
	Priority      int        `json:"priority"` // evaluation order, descending
	Version       int        `json:"version"`
	EffectiveFrom time.Time  `json:"effectiveFrom"`
	EffectiveTo   *time.Time `json:"effectiveTo,omitempty"`
}

// ActiveAt reports whether the rule is effective at the given instant.
func (r *Rule) ActiveAt(t time.Time) bool {
	if t.Before(r.EffectiveFrom) {
		return false
	}
	return r.EffectiveTo == nil || !t.After(*r.EffectiveTo)
}

// ExclusionRule forces immediate ineligibility when its condition matches.
// Exclusions are evaluated before ordinary rules and short-circuit.
type ExclusionRule struct {
	ID            string     `json:"id"`
	SchemeID      string     `json:"schemeId"`
	Category      string     `json:"category"` // e.g. INCOME_TAX_PAYER, GOVT_EMPLOYEE
	Expression    string     `json:"expression"`
	Version       int        `json:"version"`
	EffectiveFrom time.Time  `json:"effectiveFrom"`
	EffectiveTo   *time.Time `json:"effectiveTo,omitempty"`
}

// ActiveAt reports whether the exclusion is effective at the given instant.
func (r *ExclusionRule) ActiveAt(t time.Time) bool {
	if t.Before(r.EffectiveFrom) {
		return false
	}
	return r.EffectiveTo == nil || !t.After(*r.EffectiveTo)
}

// RuleAuditEntry records one lifecycle mutation of a rule definition.
type RuleAuditEntry struct {
	ID        string    `json:"id"`
	SchemeID  string    `json:"schemeId"`
	RuleID    string    `json:"ruleId"`
	Action    string    `json:"action"` // CREATE, UPDATE, DELETE
	Actor     string    `json:"actor"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
