// internal/decision/combiner.go
package decision

import (
	"fmt"
	"strings"

	"eligibility-engine/internal/common/logger"
	"eligibility-engine/internal/common/metrics"
	"eligibility-engine/internal/models"
)

// CombinerConfig carries the deployment-wide thresholds and weights. These
// are global configuration, never hardcoded per scheme.
type CombinerConfig struct {
	RuleWeight           float64
	MLWeight             float64
	ConflictLow          float64 // model probability below this contradicts rule-eligible
	ConflictHigh         float64 // model probability above this contradicts rule-ineligible
	ConfidenceThreshold  float64 // combined confidence needed to survive a downward conflict
	EligibilityThreshold float64 // combined score needed for an eligible outcome
}

// DefaultCombinerConfig returns the stock weights and thresholds.
func DefaultCombinerConfig() CombinerConfig {
	return CombinerConfig{
		RuleWeight:           0.6,
		MLWeight:             0.4,
		ConflictLow:          0.3,
		ConflictHigh:         0.7,
		ConfidenceThreshold:  0.7,
		EligibilityThreshold: 0.7,
	}
}

// Combiner merges a rule verdict and a score verdict into one decision. The
// merge is a state machine over the status enum, terminal in a single call,
// and asymmetric by design: the model can pull an outcome down into review,
// it can never push an outcome up past what the rules concluded.
type Combiner struct {
	cfg    CombinerConfig
	logger logger.Logger
}

// NewCombiner builds a combiner with the given thresholds.
func NewCombiner(cfg CombinerConfig, log logger.Logger) *Combiner {
	return &Combiner{
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"component": "hybrid-combiner"}),
	}
}

// Combine produces the decision for one (candidate, scheme) evaluation.
// score may be nil or unavailable; the decision then mirrors the rules.
func (cb *Combiner) Combine(rv *models.RuleVerdict, score *models.ScoreVerdict) *models.Decision {
	d := &models.Decision{
		SchemeID:    rv.SchemeID,
		CandidateID: rv.CandidateID,
		ReasonCodes: append([]string{}, rv.ReasonCodes...),
		RulesPassed: rv.RulesPassed,
		RulesFailed: rv.RulesFailed,
	}

	if !score.Available() {
		cb.combineRulesOnly(d, rv, score)
		return d
	}
	cb.combineHybrid(d, rv, score)
	return d
}

func (cb *Combiner) combineRulesOnly(d *models.Decision, rv *models.RuleVerdict, score *models.ScoreVerdict) {
	d.Status = rv.Status
	d.EligibilityScore = rulePassIndicator(rv.Status)
	if rv.Status == models.StatusRuleEligible {
		d.ConfidenceScore = 1.0
	} else {
		d.ConfidenceScore = 0.5
	}
	d.ReasonCodes = append(d.ReasonCodes, "ML_UNAVAILABLE")
	d.Explanation = cb.explain(rv, score, d)
}

func (cb *Combiner) combineHybrid(d *models.Decision, rv *models.RuleVerdict, score *models.ScoreVerdict) {
	probability := *score.Probability
	d.ModelID = score.ModelID

	indicator := rulePassIndicator(rv.Status)
	ruleConfidence := 0.5
	if rv.Status == models.StatusRuleEligible {
		ruleConfidence = 1.0
	}

	d.EligibilityScore = clamp01(cb.cfg.RuleWeight*indicator*ruleConfidence + cb.cfg.MLWeight*probability*score.Confidence)

	if rv.Status == models.StatusRuleEligible {
		d.ConfidenceScore = min1(0.8 + 0.2*score.Confidence)
	} else {
		d.ConfidenceScore = ruleConfidence*cb.cfg.RuleWeight + score.Confidence*cb.cfg.MLWeight
	}

	switch {
	case rv.Status != models.StatusRuleEligible && probability > cb.cfg.ConflictHigh:
		// The model disagrees upward. Rule outcomes are never overridden in
		// the eligible direction, whatever the model believes.
		d.Status = rv.Status
		d.ConflictResolved = true
		d.ReasonCodes = append(d.ReasonCodes, "CONFLICT_MODEL_HIGH")
		metrics.ConflictsResolvedTotal.WithLabelValues(d.SchemeID, "upgrade_blocked").Inc()
		cb.logger.Debug("model contradicted rule-ineligible outcome, rule outcome kept", map[string]interface{}{
			"schemeId":    d.SchemeID,
			"candidateId": d.CandidateID,
			"probability": probability,
		})

	case rv.Status == models.StatusRuleEligible && probability < cb.cfg.ConflictLow:
		d.ConflictResolved = true
		d.ReasonCodes = append(d.ReasonCodes, "CONFLICT_MODEL_LOW")
		if d.ConfidenceScore >= cb.cfg.ConfidenceThreshold {
			d.Status = models.StatusRuleEligible
			metrics.ConflictsResolvedTotal.WithLabelValues(d.SchemeID, "rules_upheld").Inc()
		} else {
			d.Status = models.StatusPossibleEligible
			d.RequiresReview = true
			d.ReasonCodes = append(d.ReasonCodes, "REQUIRES_REVIEW")
			metrics.ConflictsResolvedTotal.WithLabelValues(d.SchemeID, "downgraded_for_review").Inc()
		}

	default:
		switch {
		case d.EligibilityScore >= cb.cfg.EligibilityThreshold && rv.Status == models.StatusRuleEligible:
			d.Status = models.StatusRuleEligible
		case d.EligibilityScore >= cb.cfg.EligibilityThreshold:
			d.Status = models.StatusPossibleEligible
		case d.EligibilityScore >= 0.5:
			d.Status = models.StatusPossibleEligible
		default:
			d.Status = models.StatusNotEligible
		}
	}

	d.Explanation = cb.explain(rv, score, d)
}

// explain concatenates the rule trace, the model statement, the strongest
// attribution, and the final outcome. Always produced, never omitted.
func (cb *Combiner) explain(rv *models.RuleVerdict, score *models.ScoreVerdict, d *models.Decision) string {
	var b strings.Builder

	if len(rv.RulePath) > 0 {
		b.WriteString("Rules: ")
		b.WriteString(strings.Join(rv.RulePath, "; "))
		b.WriteString(". ")
	} else {
		b.WriteString("Rules: no trace recorded. ")
	}

	if score.Available() {
		fmt.Fprintf(&b, "Model %s estimated eligibility probability %.2f (confidence %.2f). ", score.ModelID, *score.Probability, score.Confidence)
		if len(score.Attributions) > 0 {
			top := score.Attributions[0]
			fmt.Fprintf(&b, "Strongest factor: %s (%+.3f). ", top.Feature, top.Contribution)
		}
	} else {
		b.WriteString("ML score unavailable; decision is rules-only. ")
	}

	if d.ConflictResolved {
		b.WriteString("Rule and model outcomes conflicted; the rule outcome was kept under the safety-first policy. ")
	}
	fmt.Fprintf(&b, "Final status %s with confidence %.2f.", d.Status, d.ConfidenceScore)
	return b.String()
}

// rulePassIndicator maps the rule status onto the score scale.
func rulePassIndicator(status models.EligibilityStatus) float64 {
	switch status {
	case models.StatusRuleEligible:
		return 1.0
	case models.StatusPossibleEligible:
		return 0.5
	default:
		return 0.0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}
