// internal/rules/expression_test.go
package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eligibility-engine/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func exprCandidate(attrs map[string]interface{}) *models.Candidate {
	return &models.Candidate{ID: "cand-1", Attributes: attrs}
}

// ==========================
// Parse and Eval Tests
// ==========================

func TestParseExpression_Eval(t *testing.T) {
	attrs := map[string]interface{}{
		"age":            float64(65),
		"annual_income":  float64(45000),
		"state":          "KA",
		"has_disability": true,
		"household_size": float64(4),
		"marital_status": "WIDOWED",
		"is_tax_payer":   false,
	}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{
			name: "numeric comparison",
			expr: "age >= 60",
			want: true,
		},
		{
			name: "numeric comparison false",
			expr: "annual_income < 40000",
			want: false,
		},
		{
			name: "boolean attribute",
			expr: "has_disability",
			want: true,
		},
		{
			name: "negation symbol",
			expr: "!is_tax_payer",
			want: true,
		},
		{
			name: "negation keyword",
			expr: "not is_tax_payer",
			want: true,
		},
		{
			name: "conjunction",
			expr: "age >= 60 && annual_income < 50000",
			want: true,
		},
		{
			name: "conjunction keyword",
			expr: "age >= 60 and annual_income < 50000",
			want: true,
		},
		{
			name: "disjunction",
			expr: "age < 18 || has_disability",
			want: true,
		},
		{
			name: "string equality single quotes",
			expr: "state == 'KA'",
			want: true,
		},
		{
			name: "string inequality",
			expr: "marital_status != 'MARRIED'",
			want: true,
		},
		{
			name: "membership",
			expr: "state in ['KA', 'TN', 'AP']",
			want: true,
		},
		{
			name: "negated membership",
			expr: "state not in ['MH', 'GJ']",
			want: true,
		},
		{
			name: "numeric membership",
			expr: "household_size in [2, 4, 6]",
			want: true,
		},
		{
			name: "parenthesized precedence",
			expr: "(age >= 60 || has_disability) && annual_income <= 45000",
			want: true,
		},
		{
			name: "boolean literal comparison",
			expr: "has_disability == true",
			want: true,
		},
		{
			name: "negative number",
			expr: "annual_income > -1",
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := ParseExpression(tt.expr)
			require.NoError(t, err)

			got, err := expr.Eval(exprCandidate(attrs))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseExpression_Errors(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{name: "unterminated string", expr: "state == 'KA"},
		{name: "unknown operator", expr: "age => 60"},
		{name: "missing paren", expr: "(age >= 60"},
		{name: "empty list", expr: "state in"},
		{name: "trailing tokens", expr: "age >= 60 70"},
		{name: "empty expression", expr: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExpression(tt.expr)
			assert.Error(t, err)
		})
	}
}

func TestExpr_Eval_UnknownAttribute(t *testing.T) {
	expr, err := ParseExpression("pension_amount > 1000")
	require.NoError(t, err)

	_, err = expr.Eval(exprCandidate(map[string]interface{}{"age": float64(70)}))
	require.Error(t, err)

	var unknown *UnknownAttributeError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "pension_amount", unknown.Name)
}

func TestExpr_Eval_NonBooleanResult(t *testing.T) {
	expr, err := ParseExpression("age")
	require.NoError(t, err)

	_, err = expr.Eval(exprCandidate(map[string]interface{}{"age": float64(70)}))
	assert.Error(t, err)
}

func TestExpr_Eval_StringNumberStaysString(t *testing.T) {
	// An attribute like a district code "04" must compare as a string, not
	// get coerced to the number 4.
	expr, err := ParseExpression("district_code == '04'")
	require.NoError(t, err)

	got, err := expr.Eval(exprCandidate(map[string]interface{}{"district_code": "04"}))
	require.NoError(t, err)
	assert.True(t, got)
}

func TestExpr_Eval_NoShortCircuitOnMissingData(t *testing.T) {
	// Both operands are checked even when the left side already decides the
	// outcome, so missing data surfaces regardless of operand order.
	expr, err := ParseExpression("age >= 60 || pension_amount > 1000")
	require.NoError(t, err)

	_, err = expr.Eval(exprCandidate(map[string]interface{}{"age": float64(70)}))
	require.Error(t, err)

	var unknown *UnknownAttributeError
	assert.True(t, errors.As(err, &unknown))
}
