// internal/scoring/artifact.go
package scoring

import (
	"fmt"
	"math"
)

// ModelType identifies the scoring function encoded in an artifact.
type ModelType string

const (
	ModelLogisticRegression ModelType = "logistic_regression"
	ModelLinearRegression   ModelType = "linear_regression"
)

// Artifact is a trained scorer as persisted in the model registry. The
// artifact owns its ordered feature list; callers map candidate attributes
// onto that order and never assume a feature layout of their own.
type Artifact struct {
	ID       string    `json:"id"`
	SchemeID string    `json:"schemeId"`
	Type     ModelType `json:"type"`
	Version  int       `json:"version"`

	Features     []string  `json:"features"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`

	// FeatureMeans are the training-set means, used as the attribution
	// baseline. Optional; a missing vector means a zero baseline.
	FeatureMeans []float64 `json:"featureMeans,omitempty"`

	// Output range for linear regressors, used to normalize raw output into
	// a probability-like score.
	OutputMin float64 `json:"outputMin,omitempty"`
	OutputMax float64 `json:"outputMax,omitempty"`
}

// Validate checks internal consistency before the artifact is served.
func (a *Artifact) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("artifact has no id")
	}
	if a.Type != ModelLogisticRegression && a.Type != ModelLinearRegression {
		return fmt.Errorf("unsupported model type %q", a.Type)
	}
	if len(a.Features) == 0 {
		return fmt.Errorf("artifact %s declares no features", a.ID)
	}
	if len(a.Coefficients) != len(a.Features) {
		return fmt.Errorf("artifact %s: %d coefficients for %d features", a.ID, len(a.Coefficients), len(a.Features))
	}
	if len(a.FeatureMeans) != 0 && len(a.FeatureMeans) != len(a.Features) {
		return fmt.Errorf("artifact %s: %d feature means for %d features", a.ID, len(a.FeatureMeans), len(a.Features))
	}
	if a.Type == ModelLinearRegression && a.OutputMax <= a.OutputMin {
		return fmt.Errorf("artifact %s: output range [%v, %v] is empty", a.ID, a.OutputMin, a.OutputMax)
	}
	return nil
}

// Score computes the probability for an ordered feature vector. The result
// is always within [0,1]: logistic output is a probability by construction,
// linear output is min-max normalized and clamped.
func (a *Artifact) Score(vector []float64) (float64, error) {
	if len(vector) != len(a.Coefficients) {
		return 0, fmt.Errorf("feature vector length %d does not match %d coefficients", len(vector), len(a.Coefficients))
	}

	z := a.Intercept
	for i, x := range vector {
		z += a.Coefficients[i] * x
	}

	switch a.Type {
	case ModelLogisticRegression:
		return 1.0 / (1.0 + math.Exp(-z)), nil
	case ModelLinearRegression:
		normalized := (z - a.OutputMin) / (a.OutputMax - a.OutputMin)
		return clamp01(normalized), nil
	default:
		return 0, fmt.Errorf("unsupported model type %q", a.Type)
	}
}

// mean returns the attribution baseline for feature i.
func (a *Artifact) mean(i int) float64 {
	if i < len(a.FeatureMeans) {
		return a.FeatureMeans[i]
	}
	return 0
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
