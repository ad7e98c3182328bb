// internal/rules/evaluator.go
package rules

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"eligibility-engine/internal/common/logger"
	"eligibility-engine/internal/models"
)

// RuleSource is the lookup the evaluator depends on. *Store satisfies it;
// tests inject fixed rule sets.
type RuleSource interface {
	Load(ctx context.Context, schemeID string, forceReload bool) (*RuleSet, error)
}

// Evaluator applies one scheme's rules to one candidate and produces a
// deterministic verdict with a full trace. Evaluation itself has no time- or
// random-dependent branching; the evaluation instant only selects which rule
// versions are in effect.
type Evaluator struct {
	source RuleSource
	logger logger.Logger

	// Parsed expressions cached per rule version. Rules are immutable per
	// version, so entries never need invalidation.
	exprCache sync.Map // "ruleID:version" -> *Expr
}

// NewEvaluator builds an evaluator over the given rule source.
func NewEvaluator(source RuleSource, log logger.Logger) *Evaluator {
	return &Evaluator{
		source: source,
		logger: log.WithFields(map[string]interface{}{"component": "rule-evaluator"}),
	}
}

// Evaluate runs the scheme's currently effective rules against the candidate.
func (e *Evaluator) Evaluate(ctx context.Context, schemeID string, c *models.Candidate) (*models.RuleVerdict, error) {
	return e.EvaluateAt(ctx, schemeID, c, time.Now().UTC(), false)
}

// EvaluateAt runs the rules effective at the given instant. forceReload
// bypasses the rule cache.
func (e *Evaluator) EvaluateAt(ctx context.Context, schemeID string, c *models.Candidate, at time.Time, forceReload bool) (*models.RuleVerdict, error) {
	ruleSet, err := e.source.Load(ctx, schemeID, forceReload)
	if err != nil {
		return nil, err
	}

	verdict := &models.RuleVerdict{
		SchemeID:    schemeID,
		CandidateID: c.ID,
		RulesPassed: []string{},
		RulesFailed: []string{},
		RulePath:    []string{},
		ReasonCodes: []string{},
	}

	// Exclusions run first and short-circuit. A matching exclusion means the
	// candidate is out regardless of every ordinary rule.
	for _, excl := range ruleSet.ActiveExclusions(at) {
		matched, reason := e.evalExclusion(&excl, c)
		if matched {
			verdict.Status = models.StatusNotEligible
			verdict.ReasonCodes = append(verdict.ReasonCodes, "EXCLUDED_"+excl.Category)
			verdict.RulePath = append(verdict.RulePath, fmt.Sprintf("EXCLUSION %s: matched (%s)", excl.Category, reason))
			return verdict, nil
		}
	}

	active := ruleSet.ActiveRules(at)
	if len(active) == 0 {
		// Fail closed. A scheme without rules must never default-admit.
		verdict.Status = models.StatusNotEligible
		verdict.ReasonCodes = append(verdict.ReasonCodes, "NO_RULES_DEFINED")
		verdict.RulePath = append(verdict.RulePath, "no active rules defined for scheme")
		return verdict, nil
	}

	mandatoryFailed := false
	for i := range active {
		rule := &active[i]
		check := e.evalRule(rule, c)
		verdict.Checks = append(verdict.Checks, check)

		outcome := "FAIL"
		if check.Passed {
			outcome = "PASS"
			verdict.RulesPassed = append(verdict.RulesPassed, rule.ID)
		} else {
			verdict.RulesFailed = append(verdict.RulesFailed, rule.ID)
			verdict.ReasonCodes = append(verdict.ReasonCodes, fmt.Sprintf("RULE_FAILED_%s", rule.Category))
			if rule.Mandatory {
				mandatoryFailed = true
			}
		}
		verdict.RulePath = append(verdict.RulePath, fmt.Sprintf("%s [%s]: %s (%s)", rule.Name, rule.Category, outcome, check.Reason))
	}

	switch {
	case mandatoryFailed:
		verdict.Status = models.StatusNotEligible
		verdict.ReasonCodes = append(verdict.ReasonCodes, "MANDATORY_RULE_FAILED")
	case len(verdict.RulesFailed) == 0:
		verdict.Status = models.StatusRuleEligible
	case len(verdict.RulesPassed) > 0:
		verdict.Status = models.StatusPossibleEligible
	default:
		verdict.Status = models.StatusNotEligible
	}
	return verdict, nil
}

func (e *Evaluator) evalExclusion(excl *models.ExclusionRule, c *models.Candidate) (bool, string) {
	expr, err := e.compiled("excl:"+excl.ID, excl.Version, excl.Expression)
	if err != nil {
		// An unparseable exclusion cannot be allowed to silently admit
		// candidates, but it also cannot exclude them; it is skipped and
		// logged for the rule author to fix.
		e.logger.Error("exclusion expression does not parse, skipping", map[string]interface{}{
			"exclusionId": excl.ID,
			"error":       err.Error(),
		})
		return false, ""
	}
	matched, err := expr.Eval(c)
	if err != nil {
		// Missing data on an exclusion means it cannot match.
		return false, ""
	}
	if matched {
		return true, excl.Expression
	}
	return false, ""
}

func (e *Evaluator) evalRule(rule *models.Rule, c *models.Candidate) models.RuleCheck {
	check := models.RuleCheck{RuleID: rule.ID, RuleName: rule.Name}

	var passed bool
	var reason string
	switch rule.Category {
	case models.CategoryAge, models.CategoryIncome, models.CategoryHousehold:
		passed, reason = e.evalNumeric(rule, c)
	case models.CategoryGeography, models.CategoryCaste:
		passed, reason = e.evalMembership(rule, c)
	case models.CategoryDisability:
		passed, reason = e.evalBoolean(rule, c)
	case models.CategoryGender, models.CategoryMaritalStatus:
		passed, reason = e.evalStringMatch(rule, c)
	case models.CategoryPriorParticipation:
		if rule.BoolValue != nil {
			passed, reason = e.evalBoolean(rule, c)
		} else {
			passed, reason = e.evalNumeric(rule, c)
		}
	default:
		passed, reason = e.evalExpression(rule, c)
	}

	check.Passed = passed
	check.Reason = reason
	return check
}

func (e *Evaluator) evalNumeric(rule *models.Rule, c *models.Candidate) (bool, string) {
	val, ok := c.Float(rule.Attribute)
	if !ok {
		return false, fmt.Sprintf("data not available: %s", rule.Attribute)
	}

	switch rule.Operator {
	case models.OpBetween:
		if rule.NumericValue == nil || rule.NumericHigh == nil {
			return false, "rule misconfigured: between bounds missing"
		}
		if val >= *rule.NumericValue && val <= *rule.NumericHigh {
			return true, fmt.Sprintf("%s=%v within [%v, %v]", rule.Attribute, val, *rule.NumericValue, *rule.NumericHigh)
		}
		return false, fmt.Sprintf("%s=%v outside [%v, %v]", rule.Attribute, val, *rule.NumericValue, *rule.NumericHigh)
	case models.OpIn, models.OpNotIn:
		return e.matchSet(rule, fmt.Sprintf("%v", val))
	}

	if rule.NumericValue == nil {
		return false, "rule misconfigured: numeric_value missing"
	}
	want := *rule.NumericValue
	var passed bool
	switch rule.Operator {
	case models.OpEq:
		passed = val == want
	case models.OpNe:
		passed = val != want
	case models.OpGt:
		passed = val > want
	case models.OpGte:
		passed = val >= want
	case models.OpLt:
		passed = val < want
	case models.OpLte:
		passed = val <= want
	default:
		return false, fmt.Sprintf("rule misconfigured: unsupported operator %q", rule.Operator)
	}
	if passed {
		return true, fmt.Sprintf("%s=%v satisfies %s %v", rule.Attribute, val, rule.Operator, want)
	}
	return false, fmt.Sprintf("%s=%v violates %s %v", rule.Attribute, val, rule.Operator, want)
}

func (e *Evaluator) evalMembership(rule *models.Rule, c *models.Candidate) (bool, string) {
	val, ok := c.String(rule.Attribute)
	if !ok {
		return false, fmt.Sprintf("data not available: %s", rule.Attribute)
	}
	return e.matchSet(rule, val)
}

func (e *Evaluator) matchSet(rule *models.Rule, val string) (bool, string) {
	found := false
	for _, allowed := range rule.Values {
		if strings.EqualFold(allowed, val) {
			found = true
			break
		}
	}
	if rule.Operator == models.OpNotIn {
		found = !found
	}
	if found {
		return true, fmt.Sprintf("%s=%q matches %s of %v", rule.Attribute, val, rule.Operator, rule.Values)
	}
	return false, fmt.Sprintf("%s=%q fails %s of %v", rule.Attribute, val, rule.Operator, rule.Values)
}

func (e *Evaluator) evalBoolean(rule *models.Rule, c *models.Candidate) (bool, string) {
	val, ok := c.Bool(rule.Attribute)
	if !ok {
		return false, fmt.Sprintf("data not available: %s", rule.Attribute)
	}
	if rule.BoolValue == nil {
		return false, "rule misconfigured: bool_value missing"
	}
	want := *rule.BoolValue
	passed := val == want
	if rule.Operator == models.OpNe {
		passed = !passed
	}
	if passed {
		return true, fmt.Sprintf("%s=%v matches required %v", rule.Attribute, val, want)
	}
	return false, fmt.Sprintf("%s=%v does not match required %v", rule.Attribute, val, want)
}

func (e *Evaluator) evalStringMatch(rule *models.Rule, c *models.Candidate) (bool, string) {
	val, ok := c.String(rule.Attribute)
	if !ok {
		return false, fmt.Sprintf("data not available: %s", rule.Attribute)
	}
	if len(rule.Values) > 0 {
		return e.matchSet(rule, val)
	}
	return false, "rule misconfigured: values missing"
}

func (e *Evaluator) evalExpression(rule *models.Rule, c *models.Candidate) (bool, string) {
	if rule.Expression == "" {
		return false, "rule misconfigured: expression missing"
	}
	expr, err := e.compiled(rule.ID, rule.Version, rule.Expression)
	if err != nil {
		return false, fmt.Sprintf("rule misconfigured: %v", err)
	}

	result, err := expr.Eval(c)
	if err != nil {
		var unknown *UnknownAttributeError
		if errors.As(err, &unknown) {
			return false, fmt.Sprintf("data not available: %s", unknown.Name)
		}
		return false, fmt.Sprintf("expression evaluation failed: %v", err)
	}
	if result {
		return true, fmt.Sprintf("expression %q holds", rule.Expression)
	}
	return false, fmt.Sprintf("expression %q does not hold", rule.Expression)
}

func (e *Evaluator) compiled(id string, version int, src string) (*Expr, error) {
	key := fmt.Sprintf("%s:%d", id, version)
	if cached, ok := e.exprCache.Load(key); ok {
		return cached.(*Expr), nil
	}
	expr, err := ParseExpression(src)
	if err != nil {
		return nil, err
	}
	actual, _ := e.exprCache.LoadOrStore(key, expr)
	return actual.(*Expr), nil
}
