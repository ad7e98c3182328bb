// internal/models/verdict.go
package models

// RuleCheck is the outcome of evaluating one rule against one candidate.
type RuleCheck struct {
	RuleID   string `json:"ruleId"`
	RuleName string `json:"ruleName"`
	Passed   bool   `json:"passed"`
	Reason   string `json:"reason"`
}

// RuleVerdict is the deterministic aggregate outcome of rule evaluation for
// one (candidate, scheme) pair. Given identical rule versions and identical
// attributes the verdict is byte-identical across calls.
type RuleVerdict struct {
	SchemeID    string            `json:"schemeId"`
	CandidateID string            `json:"candidateId"`
	Status      EligibilityStatus `json:"status"`
	RulesPassed []string          `json:"rulesPassed"`
	RulesFailed []string          `json:"rulesFailed"`
	RulePath    []string          `json:"rulePath"` // ordered human-readable trace
	ReasonCodes []string          `json:"reasonCodes"`
	Checks      []RuleCheck       `json:"checks,omitempty"`
}

// FeatureContribution is one signed attribution from the explainability
// backend, ordered by absolute magnitude.
type FeatureContribution struct {
	Feature      string  `json:"feature"`
	Contribution float64 `json:"contribution"`
}

// ScoreVerdict is the learned-score outcome for one (candidate, scheme)
// pair. A nil Probability means the model was unavailable; callers must
// never read that as probability zero.
type ScoreVerdict struct {
	Probability  *float64              `json:"probability,omitempty"`
	Confidence   float64               `json:"confidence"`
	Attributions []FeatureContribution `json:"attributions,omitempty"`
	ModelID      string                `json:"modelId,omitempty"`
	Error        string                `json:"error,omitempty"`
}

// Available reports whether a usable probability was produced.
func (v *ScoreVerdict) Available() bool {
	return v != nil && v.Probability != nil && v.Error == ""
}
