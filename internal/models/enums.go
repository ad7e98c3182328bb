// internal/models/enums.go
package models

// EligibilityStatus is the three-value outcome of an eligibility decision.
// StatusError is a fourth terminal marker used only for isolated failures
// inside a batch; it is never produced by rule evaluation itself.
type EligibilityStatus string

const (
	StatusRuleEligible     EligibilityStatus = "RULE_ELIGIBLE"
	StatusPossibleEligible EligibilityStatus = "POSSIBLE_ELIGIBLE"
	StatusNotEligible      EligibilityStatus = "NOT_ELIGIBLE"
	StatusError            EligibilityStatus = "ERROR"
)

// Rankable reports whether a decision with this status may enter the
// priority ranking pass.
func (s EligibilityStatus) Rankable() bool {
	return s == StatusRuleEligible || s == StatusPossibleEligible
}

// RuleCategory selects the comparison logic applied to a rule. The set is
// closed; CategoryExpression is the generic fallback arm.
type RuleCategory string

const (
	CategoryAge                RuleCategory = "AGE"
	CategoryIncome             RuleCategory = "INCOME"
	CategoryGender             RuleCategory = "GENDER"
	CategoryGeography          RuleCategory = "GEOGRAPHY"
	CategoryCaste              RuleCategory = "CATEGORY"
	CategoryDisability         RuleCategory = "DISABILITY"
	CategoryHousehold          RuleCategory = "HOUSEHOLD"
	CategoryMaritalStatus      RuleCategory = "MARITAL_STATUS"
	CategoryPriorParticipation RuleCategory = "PRIOR_PARTICIPATION"
	CategoryExpression         RuleCategory = "EXPRESSION"
)

// Valid reports whether the category is a member of the closed set.
func (c RuleCategory) Valid() bool {
	switch c {
	case CategoryAge, CategoryIncome, CategoryGender, CategoryGeography,
		CategoryCaste, CategoryDisability, CategoryHousehold,
		CategoryMaritalStatus, CategoryPriorParticipation, CategoryExpression:
		return true
	}
	return false
}

// Operator is the comparison operator carried by a rule definition.
type Operator string

const (
	OpEq      Operator = "eq"
	OpNe      Operator = "ne"
	OpGt      Operator = "gt"
	OpGte     Operator = "gte"
	OpLt      Operator = "lt"
	OpLte     Operator = "lte"
	OpBetween Operator = "between"
	OpIn      Operator = "in"
	OpNotIn   Operator = "not_in"
)

// VulnerabilityLevel is an externally supplied categorical signal of
// household fragility. It affects ranking only, never eligibility.
type VulnerabilityLevel string

const (
	VulnerabilityVeryHigh VulnerabilityLevel = "VERY_HIGH"
	VulnerabilityHigh     VulnerabilityLevel = "HIGH"
	VulnerabilityMedium   VulnerabilityLevel = "MEDIUM"
	VulnerabilityLow      VulnerabilityLevel = "LOW"
	VulnerabilityVeryLow  VulnerabilityLevel = "VERY_LOW"
)

// Multiplier returns the ranking multiplier for the level. Unknown or
// missing levels default to the MEDIUM multiplier.
func (v VulnerabilityLevel) Multiplier() float64 {
	switch v {
	case VulnerabilityVeryHigh:
		return 1.5
	case VulnerabilityHigh:
		return 1.3
	case VulnerabilityLow:
		return 0.8
	case VulnerabilityVeryLow:
		return 0.6
	default:
		return 1.0
	}
}
