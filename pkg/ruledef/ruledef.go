// pkg/ruledef/ruledef.go
package ruledef

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"eligibility-engine/internal/models"
)

// LoadPack reads a rule pack definition file.
func LoadPack(path string) (*RulePack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pack RulePack
	if err := json.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("failed to parse rule pack: %w", err)
	}
	return &pack, nil
}

// Document renders the definition as the raw form expected by the rule
// document schema.
func (d *RuleDefinition) Document(schemeID string) map[string]interface{} {
	doc := map[string]interface{}{
		"scheme_id": schemeID,
		"name":      d.Name,
		"category":  d.Category,
		"mandatory": d.Mandatory,
		"priority":  d.Priority,
	}
	if d.Attribute != "" {
		doc["attribute"] = d.Attribute
	}
	if d.Operator != "" {
		doc["operator"] = d.Operator
	}
	if d.NumericValue != nil {
		doc["numeric_value"] = *d.NumericValue
	}
	if d.NumericHigh != nil {
		doc["numeric_high"] = *d.NumericHigh
	}
	if len(d.Values) > 0 {
		doc["values"] = toInterfaceSlice(d.Values)
	}
	if d.BoolValue != nil {
		doc["bool_value"] = *d.BoolValue
	}
	if d.Expression != "" {
		doc["expression"] = d.Expression
	}
	if d.EffectiveFrom != "" {
		doc["effective_from"] = d.EffectiveFrom
	}
	if d.EffectiveTo != "" {
		doc["effective_to"] = d.EffectiveTo
	}
	return doc
}

// ToRule converts the definition into a rule ready for the store. Missing
// effective dates default to defaultFrom / open-ended.
func (d *RuleDefinition) ToRule(schemeID string, defaultFrom time.Time) (*models.Rule, error) {
	from, err := parseTime(d.EffectiveFrom, defaultFrom)
	if err != nil {
		return nil, fmt.Errorf("rule %q: invalid effectiveFrom: %w", d.Name, err)
	}

	rule := &models.Rule{
		SchemeID:      schemeID,
		Name:          d.Name,
		Category:      models.RuleCategory(d.Category),
		Attribute:     d.Attribute,
		Operator:      models.Operator(d.Operator),
		NumericValue:  d.NumericValue,
		NumericHigh:   d.NumericHigh,
		Values:        d.Values,
		BoolValue:     d.BoolValue,
		Expression:    d.Expression,
		Mandatory:     d.Mandatory,
		Priority:      d.Priority,
		EffectiveFrom: from,
	}

	if d.EffectiveTo != "" {
		to, err := time.Parse(time.RFC3339, d.EffectiveTo)
		if err != nil {
			return nil, fmt.Errorf("rule %q: invalid effectiveTo: %w", d.Name, err)
		}
		rule.EffectiveTo = &to
	}
	return rule, nil
}

// ToExclusion converts the definition into an exclusion rule.
func (d *ExclusionDefinition) ToExclusion(schemeID string, defaultFrom time.Time) (*models.ExclusionRule, error) {
	from, err := parseTime(d.EffectiveFrom, defaultFrom)
	if err != nil {
		return nil, fmt.Errorf("exclusion %q: invalid effectiveFrom: %w", d.Category, err)
	}
	return &models.ExclusionRule{
		SchemeID:      schemeID,
		Category:      d.Category,
		Expression:    d.Expression,
		EffectiveFrom: from,
	}, nil
}

func parseTime(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	return time.Parse(time.RFC3339, value)
}

func toInterfaceSlice(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
