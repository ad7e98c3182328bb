// pkg/ruledef/schema.go
package ruledef

// RulePack is the on-disk definition format for scheme eligibility rules.
// Program teams author one pack per deployment and load it with the
// rule-loader tool; the engine itself only ever reads rules from Postgres.
type RulePack struct {
	Version     string             `json:"version"`
	LastUpdated string             `json:"lastUpdated"`
	Schemes     []SchemeDefinition `json:"schemes"`
}

type SchemeDefinition struct {
	SchemeID    string                `json:"schemeId"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Rules       []RuleDefinition      `json:"rules"`
	Exclusions  []ExclusionDefinition `json:"exclusions"`
}

type RuleDefinition struct {
	Name          string   `json:"name"`
	Category      string   `json:"category"`
	Attribute     string   `json:"attribute,omitempty"`
	Operator      string   `json:"operator,omitempty"`
	NumericValue  *float64 `json:"numericValue,omitempty"`
	NumericHigh   *float64 `json:"numericHigh,omitempty"`
	Values        []string `json:"values,omitempty"`
	BoolValue     *bool    `json:"boolValue,omitempty"`
	Expression    string   `json:"expression,omitempty"`
	Mandatory     bool     `json:"mandatory"`
	Priority      int      `json:"priority"`
	EffectiveFrom string   `json:"effectiveFrom,omitempty"` // RFC3339, defaults to load time
	EffectiveTo   string   `json:"effectiveTo,omitempty"`
}

type ExclusionDefinition struct {
	Category      string `json:"category"`
	Expression    string `json:"expression"`
	EffectiveFrom string `json:"effectiveFrom,omitempty"`
}
