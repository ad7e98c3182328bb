// internal/rules/schema.go
package rules

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	apperrors "eligibility-engine/internal/common/errors"
	"eligibility-engine/internal/models"
)

// ruleDocumentSchema constrains rule definitions arriving from the admin API
// and the rule-loader tool before they reach semantic validation.
const ruleDocumentSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["scheme_id", "name", "category"],
	"properties": {
		"scheme_id":      {"type": "string", "minLength": 1},
		"name":           {"type": "string", "minLength": 1},
		"category":       {"type": "string", "minLength": 1},
		"attribute":      {"type": "string"},
		"operator":       {"type": "string", "enum": ["eq", "ne", "gt", "gte", "lt", "lte", "between", "in", "not_in"]},
		"numeric_value":  {"type": "number"},
		"numeric_high":   {"type": "number"},
		"values":         {"type": "array", "items": {"type": "string"}},
		"bool_value":     {"type": "boolean"},
		"expression":     {"type": "string"},
		"mandatory":      {"type": "boolean"},
		"priority":       {"type": "integer", "minimum": 0},
		"effective_from": {"type": "string", "format": "date-time"},
		"effective_to":   {"type": ["string", "null"], "format": "date-time"}
	},
	"additionalProperties": false
}`

var compiledRuleSchema *gojsonschema.Schema

func init() {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(ruleDocumentSchema))
	if err != nil {
		panic(fmt.Sprintf("rule document schema does not compile: %v", err))
	}
	compiledRuleSchema = schema
}

// ValidateRuleDocument checks a raw rule document against the JSON schema.
func ValidateRuleDocument(doc map[string]interface{}) error {
	result, err := compiledRuleSchema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return apperrors.NewRuleValidationFailedError(fmt.Sprintf("schema validation error: %v", err))
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return apperrors.NewRuleValidationFailedError(fmt.Sprintf("rule document invalid: %v", errs))
	}
	return nil
}

// ValidateRule enforces the semantic constraints the JSON schema cannot
// express: category membership, operator/value-group pairing, expression
// parseability, and effective-date ordering.
func ValidateRule(r *models.Rule) error {
	if r.SchemeID == "" {
		return apperrors.NewRuleValidationFailedError("scheme_id is required")
	}
	if r.Name == "" {
		return apperrors.NewRuleValidationFailedError("name is required")
	}
	if !r.Category.Valid() {
		return apperrors.NewRuleValidationFailedError(fmt.Sprintf("unknown category %q", r.Category))
	}

	switch r.Category {
	case models.CategoryExpression:
		if r.Expression == "" {
			return apperrors.NewRuleValidationFailedError("expression rules require an expression")
		}
		if _, err := ParseExpression(r.Expression); err != nil {
			return apperrors.NewRuleValidationFailedError(fmt.Sprintf("expression does not parse: %v", err))
		}
	case models.CategoryDisability:
		if r.BoolValue == nil {
			return apperrors.NewRuleValidationFailedError("disability rules require bool_value")
		}
	case models.CategoryGeography, models.CategoryCaste:
		if len(r.Values) == 0 {
			return apperrors.NewRuleValidationFailedError(fmt.Sprintf("%s rules require a non-empty values list", r.Category))
		}
		if r.Operator != models.OpIn && r.Operator != models.OpNotIn {
			return apperrors.NewRuleValidationFailedError(fmt.Sprintf("%s rules support only in/not_in, got %q", r.Category, r.Operator))
		}
	case models.CategoryGender, models.CategoryMaritalStatus:
		if len(r.Values) == 0 {
			return apperrors.NewRuleValidationFailedError(fmt.Sprintf("%s rules require a non-empty values list", r.Category))
		}
		if r.Operator != models.OpEq && r.Operator != models.OpIn && r.Operator != models.OpNotIn {
			return apperrors.NewRuleValidationFailedError(fmt.Sprintf("%s rules support only eq/in/not_in, got %q", r.Category, r.Operator))
		}
	case models.CategoryPriorParticipation:
		// Boolean form takes precedence; without bool_value the rule falls
		// back to the numeric form (participation counts).
		if r.BoolValue == nil {
			if err := validateNumericRule(r); err != nil {
				return err
			}
		}
	default:
		if err := validateNumericRule(r); err != nil {
			return err
		}
	}

	if r.EffectiveTo != nil && !r.EffectiveTo.After(r.EffectiveFrom) {
		return apperrors.NewRuleValidationFailedError("effective_to must be after effective_from")
	}
	return nil
}

func validateNumericRule(r *models.Rule) error {
	if r.Attribute == "" {
		return apperrors.NewRuleValidationFailedError(fmt.Sprintf("%s rules require an attribute", r.Category))
	}
	switch r.Operator {
	case models.OpBetween:
		if r.NumericValue == nil || r.NumericHigh == nil {
			return apperrors.NewRuleValidationFailedError("between rules require numeric_value and numeric_high")
		}
		if *r.NumericHigh < *r.NumericValue {
			return apperrors.NewRuleValidationFailedError("numeric_high must not be below numeric_value")
		}
	case models.OpEq, models.OpNe, models.OpGt, models.OpGte, models.OpLt, models.OpLte:
		if r.NumericValue == nil {
			return apperrors.NewRuleValidationFailedError(fmt.Sprintf("%s rules require numeric_value", r.Operator))
		}
	case models.OpIn, models.OpNotIn:
		if len(r.Values) == 0 {
			return apperrors.NewRuleValidationFailedError("in/not_in rules require a non-empty values list")
		}
	default:
		return apperrors.NewRuleValidationFailedError(fmt.Sprintf("unsupported operator %q for category %s", r.Operator, r.Category))
	}
	return nil
}

// ValidateExclusionRule checks an exclusion before it is stored.
func ValidateExclusionRule(r *models.ExclusionRule) error {
	if r.SchemeID == "" {
		return apperrors.NewRuleValidationFailedError("scheme_id is required")
	}
	if r.Category == "" {
		return apperrors.NewRuleValidationFailedError("category is required")
	}
	if r.Expression == "" {
		return apperrors.NewRuleValidationFailedError("exclusion rules require an expression")
	}
	if _, err := ParseExpression(r.Expression); err != nil {
		return apperrors.NewRuleValidationFailedError(fmt.Sprintf("expression does not parse: %v", err))
	}
	if r.EffectiveTo != nil && !r.EffectiveTo.After(r.EffectiveFrom) {
		return apperrors.NewRuleValidationFailedError("effective_to must be after effective_from")
	}
	return nil
}
