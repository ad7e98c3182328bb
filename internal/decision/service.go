// internal/decision/service.go
package decision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"eligibility-engine/internal/audit"
	apperrors "eligibility-engine/internal/common/errors"
	"eligibility-engine/internal/common/logger"
	"eligibility-engine/internal/common/metrics"
	"eligibility-engine/internal/common/observability"
	"eligibility-engine/internal/models"
)

// RuleEvaluator is the rules side of the pipeline.
type RuleEvaluator interface {
	Evaluate(ctx context.Context, schemeID string, c *models.Candidate) (*models.RuleVerdict, error)
}

// ScoreProvider is the learned side of the pipeline. Predict never fails;
// degraded outcomes arrive as unavailable verdicts.
type ScoreProvider interface {
	Predict(ctx context.Context, schemeID string, c *models.Candidate) *models.ScoreVerdict
}

// CandidateSource resolves candidate attribute bags by id.
type CandidateSource interface {
	Get(ctx context.Context, candidateID string) (*models.Candidate, error)
}

// Service runs the full hybrid pipeline for single candidates and batches.
type Service struct {
	evaluator  RuleEvaluator
	scorer     ScoreProvider
	combiner   *Combiner
	candidates CandidateSource
	sinks      []audit.Sink
	obs        *observability.Observability

	concurrency int
	logger      logger.Logger
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithAuditSinks attaches append-only history sinks.
func WithAuditSinks(sinks ...audit.Sink) ServiceOption {
	return func(s *Service) { s.sinks = append(s.sinks, sinks...) }
}

// WithObservability attaches the OTel recorder.
func WithObservability(obs *observability.Observability) ServiceOption {
	return func(s *Service) { s.obs = obs }
}

// WithCandidateSource attaches a lookup for id-based batch evaluation.
func WithCandidateSource(source CandidateSource) ServiceOption {
	return func(s *Service) { s.candidates = source }
}

// NewService builds the pipeline service. concurrency bounds how many
// candidates of one batch evaluate in parallel.
func NewService(evaluator RuleEvaluator, scorer ScoreProvider, combiner *Combiner, concurrency int, log logger.Logger, opts ...ServiceOption) *Service {
	if concurrency <= 0 {
		concurrency = 8
	}
	s := &Service{
		evaluator:   evaluator,
		scorer:      scorer,
		combiner:    combiner,
		concurrency: concurrency,
		logger:      log.WithFields(map[string]interface{}{"component": "decision-service"}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate runs one candidate through rules, scoring, and combination, and
// appends the decision to every configured history sink.
func (s *Service) Evaluate(ctx context.Context, schemeID string, c *models.Candidate) (*models.Decision, error) {
	start := time.Now()

	verdict, err := s.evaluator.Evaluate(ctx, schemeID, c)
	if err != nil {
		return nil, err
	}

	var score *models.ScoreVerdict
	if s.scorer != nil {
		score = s.scorer.Predict(ctx, schemeID, c)
	}

	d := s.combiner.Combine(verdict, score)
	d.ID = uuid.New().String()
	d.CreatedAt = time.Now().UTC()

	elapsed := time.Since(start)
	metrics.EvaluationsTotal.WithLabelValues(schemeID, string(d.Status)).Inc()
	metrics.EvaluationDuration.WithLabelValues(schemeID).Observe(elapsed.Seconds())
	if s.obs != nil {
		s.obs.RecordDecision(ctx, string(d.Status))
		s.obs.RecordDecisionDuration(ctx, elapsed, string(d.Status))
	}

	s.appendHistory(ctx, d)

	s.logger.Info("decision produced", map[string]interface{}{
		"decisionId":  d.ID,
		"schemeId":    schemeID,
		"candidateId": c.ID,
		"status":      string(d.Status),
		"score":       d.EligibilityScore,
		"confidence":  d.ConfidenceScore,
		"conflict":    d.ConflictResolved,
	})
	return d, nil
}

// EvaluateByID resolves one candidate through the attribute source and
// evaluates them.
func (s *Service) EvaluateByID(ctx context.Context, schemeID, candidateID string) (*models.Decision, error) {
	if s.candidates == nil {
		return nil, fmt.Errorf("no candidate source configured")
	}
	c, err := s.candidates.Get(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	return s.Evaluate(ctx, schemeID, c)
}

// EvaluateBatch evaluates candidates independently and concurrently. One
// candidate's failure produces an isolated ERROR record; only rule-store or
// attribute-source unavailability aborts the batch, because continuing
// without rules would risk fail-open outcomes.
func (s *Service) EvaluateBatch(ctx context.Context, schemeID string, candidates []*models.Candidate) ([]*models.Decision, error) {
	decisions := make([]*models.Decision, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			d, err := s.evaluateIsolated(gctx, schemeID, c)
			if err != nil {
				return err
			}
			decisions[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return decisions, nil
}

// EvaluateBatchByID resolves candidate ids through the attribute source and
// evaluates them as a batch. A single candidate that cannot be resolved gets
// an ERROR record; an unreachable attribute source aborts the batch.
func (s *Service) EvaluateBatchByID(ctx context.Context, schemeID string, candidateIDs []string) ([]*models.Decision, error) {
	if s.candidates == nil {
		return nil, fmt.Errorf("no candidate source configured")
	}

	decisions := make([]*models.Decision, len(candidateIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, id := range candidateIDs {
		i, id := i, id
		g.Go(func() error {
			c, err := s.candidates.Get(gctx, id)
			if err != nil {
				if isBatchFatal(err) {
					return err
				}
				decisions[i] = s.errorDecision(schemeID, id, err)
				return nil
			}
			d, err := s.evaluateIsolated(gctx, schemeID, c)
			if err != nil {
				return err
			}
			decisions[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return decisions, nil
}

// evaluateIsolated wraps Evaluate so that one candidate's panic or
// non-fatal error becomes an ERROR record instead of sinking the batch.
func (s *Service) evaluateIsolated(ctx context.Context, schemeID string, c *models.Candidate) (d *models.Decision, err error) {
	candID := ""
	if c != nil {
		candID = c.ID
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("evaluation panicked, isolating candidate", map[string]interface{}{
				"schemeId":    schemeID,
				"candidateId": candID,
				"panic":       fmt.Sprintf("%v", r),
			})
			d = s.errorDecision(schemeID, candID, fmt.Errorf("panic: %v", r))
			err = nil
		}
	}()

	if c == nil {
		return s.errorDecision(schemeID, candID, fmt.Errorf("nil candidate")), nil
	}

	d, err = s.Evaluate(ctx, schemeID, c)
	if err != nil {
		if isBatchFatal(err) {
			return nil, err
		}
		return s.errorDecision(schemeID, c.ID, err), nil
	}
	return d, nil
}

func (s *Service) errorDecision(schemeID, candidateID string, cause error) *models.Decision {
	d := &models.Decision{
		ID:          uuid.New().String(),
		SchemeID:    schemeID,
		CandidateID: candidateID,
		Status:      models.StatusError,
		ReasonCodes: []string{string(apperrors.ErrCodeEvaluationError)},
		Explanation: fmt.Sprintf("Evaluation failed and was isolated from the batch: %v.", cause),
		CreatedAt:   time.Now().UTC(),
	}
	metrics.EvaluationsTotal.WithLabelValues(schemeID, string(models.StatusError)).Inc()
	return d
}

func (s *Service) appendHistory(ctx context.Context, d *models.Decision) {
	for _, sink := range s.sinks {
		if err := sink.Append(ctx, d); err != nil {
			// History is append-only but best-effort per sink; the decision
			// itself already stands.
			s.logger.Error("failed to append decision to history sink", map[string]interface{}{
				"sink":       sink.Name(),
				"decisionId": d.ID,
				"error":      err.Error(),
			})
		}
	}
}

// isBatchFatal reports whether the error makes the whole batch unsafe to
// continue.
func isBatchFatal(err error) bool {
	var stdErr *apperrors.StandardError
	if !errors.As(err, &stdErr) {
		return false
	}
	switch stdErr.Code {
	case apperrors.ErrCodeRuleStoreUnavailable, apperrors.ErrCodeAttributeStoreUnavailable:
		return true
	}
	return false
}
