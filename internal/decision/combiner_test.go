// internal/decision/combiner_test.go
package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eligibility-engine/internal/common/logger"
	"eligibility-engine/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func newTestCombiner(t *testing.T, cfg CombinerConfig) *Combiner {
	return NewCombiner(cfg, logger.NewTestLogger(t))
}

func ruleVerdict(status models.EligibilityStatus) *models.RuleVerdict {
	rv := &models.RuleVerdict{
		SchemeID:    "scheme-pension",
		CandidateID: "cand-1",
		Status:      status,
		RulePath:    []string{"minimum age 60 [AGE]: PASS (age=65 satisfies gte 60)"},
		ReasonCodes: []string{},
	}
	switch status {
	case models.StatusRuleEligible:
		rv.RulesPassed = []string{"rule-age"}
	case models.StatusPossibleEligible:
		rv.RulesPassed = []string{"rule-income"}
		rv.RulesFailed = []string{"rule-geo"}
	default:
		rv.RulesFailed = []string{"rule-age"}
		rv.ReasonCodes = []string{"MANDATORY_RULE_FAILED"}
	}
	return rv
}

func scoreVerdict(probability, confidence float64) *models.ScoreVerdict {
	return &models.ScoreVerdict{
		Probability: &probability,
		Confidence:  confidence,
		ModelID:     "model-pension-v3",
		Attributions: []models.FeatureContribution{
			{Feature: "annual_income", Contribution: -0.42},
			{Feature: "age", Contribution: 0.31},
		},
	}
}

// ==========================
// Rules-Only Path Tests
// ==========================

func TestCombiner_NoScore_MirrorsRules(t *testing.T) {
	tests := []struct {
		name           string
		ruleStatus     models.EligibilityStatus
		score          *models.ScoreVerdict
		wantConfidence float64
	}{
		{name: "nil score, rule eligible", ruleStatus: models.StatusRuleEligible, score: nil, wantConfidence: 1.0},
		{name: "nil score, possible", ruleStatus: models.StatusPossibleEligible, score: nil, wantConfidence: 0.5},
		{name: "nil score, not eligible", ruleStatus: models.StatusNotEligible, score: nil, wantConfidence: 0.5},
		{
			name:           "unavailable score with error",
			ruleStatus:     models.StatusRuleEligible,
			score:          &models.ScoreVerdict{Error: "no production model for scheme"},
			wantConfidence: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := newTestCombiner(t, DefaultCombinerConfig())
			d := cb.Combine(ruleVerdict(tt.ruleStatus), tt.score)

			assert.Equal(t, tt.ruleStatus, d.Status)
			assert.Equal(t, tt.wantConfidence, d.ConfidenceScore)
			assert.False(t, d.ConflictResolved)
			assert.Contains(t, d.ReasonCodes, "ML_UNAVAILABLE")
			assert.Contains(t, d.Explanation, "rules-only")
		})
	}
}

// ==========================
// Hybrid Path Tests
// ==========================

func TestCombiner_Hybrid_Agreement(t *testing.T) {
	cb := newTestCombiner(t, DefaultCombinerConfig())

	// p=0.8 -> ml confidence 0.4; combined = 0.6*1*1 + 0.4*0.8*0.4 = 0.728.
	d := cb.Combine(ruleVerdict(models.StatusRuleEligible), scoreVerdict(0.8, 0.4))

	assert.Equal(t, models.StatusRuleEligible, d.Status)
	assert.InDelta(t, 0.728, d.EligibilityScore, 1e-9)
	assert.InDelta(t, 0.88, d.ConfidenceScore, 1e-9)
	assert.False(t, d.ConflictResolved)
	assert.Equal(t, "model-pension-v3", d.ModelID)
	assert.Contains(t, d.Explanation, "annual_income")
}

func TestCombiner_Hybrid_MidProbabilityDegradesToPossible(t *testing.T) {
	cb := newTestCombiner(t, DefaultCombinerConfig())

	// p=0.5 contributes nothing (confidence 0); combined = 0.6, which sits
	// in the [0.5, 0.7) band even though rules said eligible.
	d := cb.Combine(ruleVerdict(models.StatusRuleEligible), scoreVerdict(0.5, 0.0))

	assert.Equal(t, models.StatusPossibleEligible, d.Status)
	assert.InDelta(t, 0.6, d.EligibilityScore, 1e-9)
	assert.False(t, d.ConflictResolved)
}

func TestCombiner_Hybrid_LowCombinedScoreIsNotEligible(t *testing.T) {
	cb := newTestCombiner(t, DefaultCombinerConfig())

	// Possible by rules, middling model: 0.6*0.5*0.5 + 0.4*0.65*0.3 = 0.228.
	d := cb.Combine(ruleVerdict(models.StatusPossibleEligible), scoreVerdict(0.65, 0.3))

	assert.Equal(t, models.StatusNotEligible, d.Status)
	assert.Less(t, d.EligibilityScore, 0.5)
}

// ==========================
// Conflict Resolution Tests
// ==========================

func TestCombiner_Conflict_ModelNeverUpgradesRuleOutcome(t *testing.T) {
	tests := []struct {
		name       string
		ruleStatus models.EligibilityStatus
		wantStatus models.EligibilityStatus
	}{
		{name: "not eligible stays not eligible", ruleStatus: models.StatusNotEligible, wantStatus: models.StatusNotEligible},
		{name: "possible stays possible", ruleStatus: models.StatusPossibleEligible, wantStatus: models.StatusPossibleEligible},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := newTestCombiner(t, DefaultCombinerConfig())
			d := cb.Combine(ruleVerdict(tt.ruleStatus), scoreVerdict(0.9, 0.8))

			assert.Equal(t, tt.wantStatus, d.Status)
			assert.True(t, d.ConflictResolved)
			assert.Contains(t, d.ReasonCodes, "CONFLICT_MODEL_HIGH")
			assert.NotEqual(t, models.StatusRuleEligible, d.Status)
		})
	}
}

func TestCombiner_Conflict_LowModelUpheldOnHighConfidence(t *testing.T) {
	cb := newTestCombiner(t, DefaultCombinerConfig())

	// p=0.1 -> ml confidence 0.8 -> combined confidence 0.96, above the 0.7
	// threshold, so the rule outcome stands.
	d := cb.Combine(ruleVerdict(models.StatusRuleEligible), scoreVerdict(0.1, 0.8))

	assert.Equal(t, models.StatusRuleEligible, d.Status)
	assert.True(t, d.ConflictResolved)
	assert.Contains(t, d.ReasonCodes, "CONFLICT_MODEL_LOW")
	assert.False(t, d.RequiresReview)
}

func TestCombiner_Conflict_LowModelDowngradesForReview(t *testing.T) {
	// With default weights the combined confidence on this path is at least
	// 0.8, so a stricter deployment threshold is needed to reach the
	// downgrade branch.
	cfg := DefaultCombinerConfig()
	cfg.ConfidenceThreshold = 0.99
	cb := newTestCombiner(t, cfg)

	d := cb.Combine(ruleVerdict(models.StatusRuleEligible), scoreVerdict(0.1, 0.8))

	assert.Equal(t, models.StatusPossibleEligible, d.Status)
	assert.True(t, d.ConflictResolved)
	assert.True(t, d.RequiresReview)
	assert.Contains(t, d.ReasonCodes, "REQUIRES_REVIEW")
}

func TestCombiner_ConservativeResolutionProperty(t *testing.T) {
	// For every rule-ineligible verdict paired with a high model probability
	// the final status is never RULE_ELIGIBLE.
	cb := newTestCombiner(t, DefaultCombinerConfig())

	for _, status := range []models.EligibilityStatus{models.StatusNotEligible, models.StatusPossibleEligible} {
		for p := 0.71; p <= 1.0; p += 0.05 {
			d := cb.Combine(ruleVerdict(status), scoreVerdict(p, 1.0-2.0*abs(p-0.5)))
			require.NotEqual(t, models.StatusRuleEligible, d.Status,
				"rule status %s with probability %.2f must not become RULE_ELIGIBLE", status, p)
		}
	}
}

// ==========================
// Explanation Tests
// ==========================

func TestCombiner_ExplanationAlwaysProduced(t *testing.T) {
	cb := newTestCombiner(t, DefaultCombinerConfig())

	tests := []struct {
		name  string
		score *models.ScoreVerdict
	}{
		{name: "with score", score: scoreVerdict(0.8, 0.4)},
		{name: "without score", score: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := cb.Combine(ruleVerdict(models.StatusRuleEligible), tt.score)
			assert.NotEmpty(t, d.Explanation)
			assert.Contains(t, d.Explanation, "Final status")
			assert.Contains(t, d.Explanation, string(d.Status))
		})
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
