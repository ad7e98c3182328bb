// internal/scoring/provider.go
package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"eligibility-engine/internal/common/logger"
	"eligibility-engine/internal/common/metrics"
	"eligibility-engine/internal/models"
)

// ModelSource resolves production artifacts. *ModelStore satisfies it; tests
// inject fixed artifacts.
type ModelSource interface {
	Production(ctx context.Context, schemeID string) (*Artifact, error)
}

// Provider turns a candidate's attributes into a score verdict. Predict
// never returns an error: every failure mode (no model, bad artifact, slow
// registry) collapses into a verdict with an absent probability and the
// error recorded, so one broken scorer can only ever degrade its own
// evaluations.
type Provider struct {
	source  ModelSource
	topN    int
	timeout time.Duration
	logger  logger.Logger
}

// NewProvider builds a provider. topN bounds the attribution list; timeout
// caps the registry lookup, not the arithmetic.
func NewProvider(source ModelSource, topN int, timeout time.Duration, log logger.Logger) *Provider {
	if topN <= 0 {
		topN = 10
	}
	return &Provider{
		source:  source,
		topN:    topN,
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "score-provider"}),
	}
}

// IsAvailable reports whether the scheme has a usable production model.
func (p *Provider) IsAvailable(ctx context.Context, schemeID string) bool {
	artifact, err := p.loadArtifact(ctx, schemeID)
	return err == nil && artifact != nil
}

// Predict scores one candidate for one scheme.
func (p *Provider) Predict(ctx context.Context, schemeID string, c *models.Candidate) *models.ScoreVerdict {
	start := time.Now()
	defer func() {
		metrics.ModelInferenceDuration.WithLabelValues(schemeID).Observe(time.Since(start).Seconds())
	}()

	artifact, err := p.loadArtifact(ctx, schemeID)
	if err != nil {
		p.logger.Warn("model lookup failed, degrading to rules-only", map[string]interface{}{
			"schemeId":    schemeID,
			"candidateId": c.ID,
			"error":       err.Error(),
		})
		return &models.ScoreVerdict{Error: fmt.Sprintf("model lookup failed: %v", err)}
	}
	if artifact == nil {
		return &models.ScoreVerdict{Error: "no production model for scheme"}
	}

	vector := p.featureVector(artifact, c)
	probability, err := artifact.Score(vector)
	if err != nil {
		p.logger.Error("inference failed", map[string]interface{}{
			"schemeId": schemeID,
			"modelId":  artifact.ID,
			"error":    err.Error(),
		})
		return &models.ScoreVerdict{ModelID: artifact.ID, Error: fmt.Sprintf("inference failed: %v", err)}
	}

	return &models.ScoreVerdict{
		Probability:  &probability,
		Confidence:   Confidence(probability),
		Attributions: p.attributions(artifact, vector),
		ModelID:      artifact.ID,
	}
}

// Confidence maps a probability to certainty: 1.0 at the extremes, 0.0 at
// the decision boundary 0.5.
func Confidence(probability float64) float64 {
	return 2.0 * math.Abs(probability-0.5)
}

func (p *Provider) loadArtifact(ctx context.Context, schemeID string) (*Artifact, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return p.source.Production(ctx, schemeID)
}

// featureVector maps candidate attributes onto the artifact's declared
// feature order. Missing attributes default to 0; attributes outside the
// declared list are ignored.
func (p *Provider) featureVector(artifact *Artifact, c *models.Candidate) []float64 {
	vector := make([]float64, len(artifact.Features))
	for i, feature := range artifact.Features {
		if val, ok := c.Float(feature); ok {
			vector[i] = val
		}
	}
	return vector
}

// attributions ranks per-feature contributions coefficient*(x - mean) by
// absolute magnitude, truncated to topN.
func (p *Provider) attributions(artifact *Artifact, vector []float64) []models.FeatureContribution {
	contribs := make([]models.FeatureContribution, len(artifact.Features))
	for i, feature := range artifact.Features {
		contribs[i] = models.FeatureContribution{
			Feature:      feature,
			Contribution: artifact.Coefficients[i] * (vector[i] - artifact.mean(i)),
		}
	}
	sort.SliceStable(contribs, func(i, j int) bool {
		return math.Abs(contribs[i].Contribution) > math.Abs(contribs[j].Contribution)
	})
	if len(contribs) > p.topN {
		contribs = contribs[:p.topN]
	}
	return contribs
}
