// internal/scoring/provider_test.go
package scoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eligibility-engine/internal/common/logger"
	"eligibility-engine/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type fixedModelSource struct {
	artifact *Artifact
	err      error
}

func (f *fixedModelSource) Production(context.Context, string) (*Artifact, error) {
	return f.artifact, f.err
}

func logisticArtifact() *Artifact {
	return &Artifact{
		ID:           "model-pension-v3",
		SchemeID:     "scheme-pension",
		Type:         ModelLogisticRegression,
		Version:      3,
		Features:     []string{"age", "annual_income", "household_size"},
		Coefficients: []float64{0.08, -0.00005, 0.1},
		Intercept:    -3.0,
		FeatureMeans: []float64{45, 60000, 4},
	}
}

func newTestProvider(t *testing.T, source ModelSource) *Provider {
	return NewProvider(source, 10, 5*time.Second, logger.NewTestLogger(t))
}

func scoringCandidate(attrs map[string]interface{}) *models.Candidate {
	return &models.Candidate{ID: "cand-1", Attributes: attrs}
}

// ==========================
// Predict Tests
// ==========================

func TestProvider_Predict_Logistic(t *testing.T) {
	provider := newTestProvider(t, &fixedModelSource{artifact: logisticArtifact()})

	verdict := provider.Predict(context.Background(), "scheme-pension", scoringCandidate(map[string]interface{}{
		"age":            float64(70),
		"annual_income":  float64(30000),
		"household_size": float64(5),
	}))

	require.True(t, verdict.Available())
	assert.GreaterOrEqual(t, *verdict.Probability, 0.0)
	assert.LessOrEqual(t, *verdict.Probability, 1.0)
	assert.Equal(t, "model-pension-v3", verdict.ModelID)
	assert.Len(t, verdict.Attributions, 3)
}

func TestProvider_Predict_MissingFeaturesDefaultToZero(t *testing.T) {
	provider := newTestProvider(t, &fixedModelSource{artifact: logisticArtifact()})

	// Only age present; the other declared features default to 0 and extras
	// are ignored.
	verdict := provider.Predict(context.Background(), "scheme-pension", scoringCandidate(map[string]interface{}{
		"age":       float64(70),
		"unrelated": "KA",
	}))

	require.True(t, verdict.Available())
	assert.GreaterOrEqual(t, *verdict.Probability, 0.0)
	assert.LessOrEqual(t, *verdict.Probability, 1.0)
}

func TestProvider_Predict_LinearNormalizedAndClamped(t *testing.T) {
	artifact := &Artifact{
		ID:           "model-linear-v1",
		SchemeID:     "scheme-pension",
		Type:         ModelLinearRegression,
		Features:     []string{"need_index"},
		Coefficients: []float64{1.0},
		OutputMin:    0,
		OutputMax:    100,
	}
	provider := newTestProvider(t, &fixedModelSource{artifact: artifact})

	tests := []struct {
		name  string
		input float64
		want  float64
	}{
		{name: "mid range", input: 50, want: 0.5},
		{name: "below range clamps to zero", input: -20, want: 0.0},
		{name: "above range clamps to one", input: 250, want: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := provider.Predict(context.Background(), "scheme-pension",
				scoringCandidate(map[string]interface{}{"need_index": tt.input}))
			require.True(t, verdict.Available())
			assert.InDelta(t, tt.want, *verdict.Probability, 1e-9)
		})
	}
}

func TestProvider_Predict_NoModel(t *testing.T) {
	provider := newTestProvider(t, &fixedModelSource{artifact: nil})

	verdict := provider.Predict(context.Background(), "scheme-housing", scoringCandidate(nil))

	assert.False(t, verdict.Available())
	assert.Nil(t, verdict.Probability)
	assert.NotEmpty(t, verdict.Error)
	assert.Zero(t, verdict.Confidence)
}

func TestProvider_Predict_LookupFailure(t *testing.T) {
	provider := newTestProvider(t, &fixedModelSource{err: errors.New("registry down")})

	verdict := provider.Predict(context.Background(), "scheme-pension", scoringCandidate(nil))

	assert.False(t, verdict.Available())
	assert.Nil(t, verdict.Probability)
	assert.Contains(t, verdict.Error, "model lookup failed")
}

func TestProvider_IsAvailable(t *testing.T) {
	tests := []struct {
		name   string
		source ModelSource
		want   bool
	}{
		{name: "model present", source: &fixedModelSource{artifact: logisticArtifact()}, want: true},
		{name: "no model", source: &fixedModelSource{}, want: false},
		{name: "lookup failure", source: &fixedModelSource{err: errors.New("registry down")}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newTestProvider(t, tt.source)
			assert.Equal(t, tt.want, provider.IsAvailable(context.Background(), "scheme-pension"))
		})
	}
}

// ==========================
// Confidence Tests
// ==========================

func TestConfidence(t *testing.T) {
	tests := []struct {
		name        string
		probability float64
		want        float64
	}{
		{name: "certain negative", probability: 0.0, want: 1.0},
		{name: "certain positive", probability: 1.0, want: 1.0},
		{name: "decision boundary", probability: 0.5, want: 0.0},
		{name: "leaning positive", probability: 0.75, want: 0.5},
		{name: "leaning negative", probability: 0.25, want: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Confidence(tt.probability), 1e-9)
		})
	}
}

// ==========================
// Attribution Tests
// ==========================

func TestProvider_Attributions_OrderedAndTruncated(t *testing.T) {
	artifact := &Artifact{
		ID:           "model-wide-v1",
		SchemeID:     "scheme-pension",
		Type:         ModelLogisticRegression,
		Features:     []string{"f1", "f2", "f3", "f4"},
		Coefficients: []float64{0.1, -2.0, 0.5, 0.0},
	}
	provider := NewProvider(&fixedModelSource{artifact: artifact}, 3, time.Second, logger.NewTestLogger(t))

	verdict := provider.Predict(context.Background(), "scheme-pension", scoringCandidate(map[string]interface{}{
		"f1": float64(1), "f2": float64(1), "f3": float64(1), "f4": float64(1),
	}))
	require.True(t, verdict.Available())

	require.Len(t, verdict.Attributions, 3)
	assert.Equal(t, "f2", verdict.Attributions[0].Feature)
	assert.InDelta(t, -2.0, verdict.Attributions[0].Contribution, 1e-9)
	assert.Equal(t, "f3", verdict.Attributions[1].Feature)
	assert.Equal(t, "f1", verdict.Attributions[2].Feature)
}

// ==========================
// Artifact Tests
// ==========================

func TestArtifact_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(a *Artifact)
		wantErr bool
	}{
		{name: "valid artifact", mutate: func(*Artifact) {}, wantErr: false},
		{name: "missing id", mutate: func(a *Artifact) { a.ID = "" }, wantErr: true},
		{name: "unknown type", mutate: func(a *Artifact) { a.Type = "decision_forest" }, wantErr: true},
		{name: "no features", mutate: func(a *Artifact) { a.Features = nil }, wantErr: true},
		{name: "coefficient mismatch", mutate: func(a *Artifact) { a.Coefficients = []float64{1} }, wantErr: true},
		{name: "mean mismatch", mutate: func(a *Artifact) { a.FeatureMeans = []float64{1} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			artifact := logisticArtifact()
			tt.mutate(artifact)
			err := artifact.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestArtifact_Validate_LinearRange(t *testing.T) {
	artifact := &Artifact{
		ID:           "model-linear-v1",
		Type:         ModelLinearRegression,
		Features:     []string{"x"},
		Coefficients: []float64{1},
		OutputMin:    10,
		OutputMax:    10,
	}
	assert.Error(t, artifact.Validate())
}
