// internal/decision/service_test.go
package decision

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "eligibility-engine/internal/common/errors"
	"eligibility-engine/internal/common/logger"
	"eligibility-engine/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeEvaluator struct {
	errFor map[string]error
	status models.EligibilityStatus
}

func (f *fakeEvaluator) Evaluate(_ context.Context, schemeID string, c *models.Candidate) (*models.RuleVerdict, error) {
	if err, ok := f.errFor[c.ID]; ok {
		return nil, err
	}
	status := f.status
	if status == "" {
		status = models.StatusRuleEligible
	}
	return &models.RuleVerdict{
		SchemeID:    schemeID,
		CandidateID: c.ID,
		Status:      status,
		RulesPassed: []string{"rule-age"},
		RulePath:    []string{"minimum age 60 [AGE]: PASS"},
		ReasonCodes: []string{},
	}, nil
}

type fakeScorer struct {
	panicFor map[string]bool
	verdict  *models.ScoreVerdict
}

func (f *fakeScorer) Predict(_ context.Context, _ string, c *models.Candidate) *models.ScoreVerdict {
	if f.panicFor[c.ID] {
		panic("scorer corrupted state for " + c.ID)
	}
	if f.verdict != nil {
		return f.verdict
	}
	return &models.ScoreVerdict{Error: "no production model for scheme"}
}

type recordingSink struct {
	mu       sync.Mutex
	appended []*models.Decision
	err      error
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Append(_ context.Context, d *models.Decision) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.appended = append(r.appended, d)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.appended)
}

type fakeCandidateSource struct {
	candidates map[string]*models.Candidate
	err        error
}

func (f *fakeCandidateSource) Get(_ context.Context, id string) (*models.Candidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.candidates[id]
	if !ok {
		return nil, errors.New("candidate not found")
	}
	return c, nil
}

func newTestService(t *testing.T, evaluator RuleEvaluator, scorer ScoreProvider, opts ...ServiceOption) *Service {
	cb := NewCombiner(DefaultCombinerConfig(), logger.NewTestLogger(t))
	return NewService(evaluator, scorer, cb, 4, logger.NewTestLogger(t), opts...)
}

func batchCandidates(ids ...string) []*models.Candidate {
	out := make([]*models.Candidate, len(ids))
	for i, id := range ids {
		out[i] = &models.Candidate{ID: id, Attributes: map[string]interface{}{"age": float64(65)}}
	}
	return out
}

// ==========================
// Single Evaluation Tests
// ==========================

func TestService_Evaluate(t *testing.T) {
	sink := &recordingSink{}
	svc := newTestService(t, &fakeEvaluator{}, &fakeScorer{}, WithAuditSinks(sink))

	d, err := svc.Evaluate(context.Background(), "scheme-pension", batchCandidates("cand-1")[0])
	require.NoError(t, err)

	assert.NotEmpty(t, d.ID)
	assert.False(t, d.CreatedAt.IsZero())
	assert.Equal(t, models.StatusRuleEligible, d.Status)
	assert.Equal(t, 1, sink.count())
}

func TestService_Evaluate_SinkFailureDoesNotFailDecision(t *testing.T) {
	sink := &recordingSink{err: errors.New("index unavailable")}
	svc := newTestService(t, &fakeEvaluator{}, &fakeScorer{}, WithAuditSinks(sink))

	d, err := svc.Evaluate(context.Background(), "scheme-pension", batchCandidates("cand-1")[0])
	require.NoError(t, err)
	assert.NotNil(t, d)
}

func TestService_Evaluate_RuleStoreFailurePropagates(t *testing.T) {
	evaluator := &fakeEvaluator{errFor: map[string]error{
		"cand-1": apperrors.NewRuleStoreUnavailableError(errors.New("connection refused")),
	}}
	svc := newTestService(t, evaluator, &fakeScorer{})

	_, err := svc.Evaluate(context.Background(), "scheme-pension", batchCandidates("cand-1")[0])
	assert.Error(t, err)
}

// ==========================
// Batch Evaluation Tests
// ==========================

func TestService_EvaluateBatch_IsolatesCandidateFailures(t *testing.T) {
	evaluator := &fakeEvaluator{errFor: map[string]error{
		"cand-2": errors.New("attribute bag corrupt"),
	}}
	svc := newTestService(t, evaluator, &fakeScorer{})

	decisions, err := svc.EvaluateBatch(context.Background(), "scheme-pension", batchCandidates("cand-1", "cand-2", "cand-3"))
	require.NoError(t, err)
	require.Len(t, decisions, 3)

	assert.Equal(t, models.StatusRuleEligible, decisions[0].Status)
	assert.Equal(t, models.StatusError, decisions[1].Status)
	assert.Contains(t, decisions[1].ReasonCodes, string(apperrors.ErrCodeEvaluationError))
	assert.Equal(t, models.StatusRuleEligible, decisions[2].Status)
}

func TestService_EvaluateBatch_IsolatesPanics(t *testing.T) {
	scorer := &fakeScorer{panicFor: map[string]bool{"cand-2": true}}
	svc := newTestService(t, &fakeEvaluator{}, scorer)

	decisions, err := svc.EvaluateBatch(context.Background(), "scheme-pension", batchCandidates("cand-1", "cand-2", "cand-3"))
	require.NoError(t, err)
	require.Len(t, decisions, 3)

	assert.Equal(t, models.StatusError, decisions[1].Status)
	assert.Contains(t, decisions[1].Explanation, "isolated")
	assert.Equal(t, models.StatusRuleEligible, decisions[0].Status)
	assert.Equal(t, models.StatusRuleEligible, decisions[2].Status)
}

func TestService_EvaluateBatch_IsolatesNilCandidates(t *testing.T) {
	svc := newTestService(t, &fakeEvaluator{}, &fakeScorer{})

	batch := batchCandidates("cand-1", "cand-3")
	batch = []*models.Candidate{batch[0], nil, batch[1]}

	decisions, err := svc.EvaluateBatch(context.Background(), "scheme-pension", batch)
	require.NoError(t, err)
	require.Len(t, decisions, 3)

	assert.Equal(t, models.StatusRuleEligible, decisions[0].Status)
	assert.Equal(t, models.StatusError, decisions[1].Status)
	assert.Empty(t, decisions[1].CandidateID)
	assert.Contains(t, decisions[1].Explanation, "nil candidate")
	assert.Equal(t, models.StatusRuleEligible, decisions[2].Status)
}

func TestService_EvaluateBatch_RuleStoreFailureAborts(t *testing.T) {
	evaluator := &fakeEvaluator{errFor: map[string]error{
		"cand-2": apperrors.NewRuleStoreUnavailableError(errors.New("connection refused")),
	}}
	svc := newTestService(t, evaluator, &fakeScorer{})

	_, err := svc.EvaluateBatch(context.Background(), "scheme-pension", batchCandidates("cand-1", "cand-2", "cand-3"))
	assert.Error(t, err)
}

func TestService_EvaluateBatchByID(t *testing.T) {
	source := &fakeCandidateSource{candidates: map[string]*models.Candidate{
		"cand-1": {ID: "cand-1", Attributes: map[string]interface{}{"age": float64(65)}},
	}}
	svc := newTestService(t, &fakeEvaluator{}, &fakeScorer{}, WithCandidateSource(source))

	decisions, err := svc.EvaluateBatchByID(context.Background(), "scheme-pension", []string{"cand-1", "cand-missing"})
	require.NoError(t, err)
	require.Len(t, decisions, 2)

	assert.Equal(t, models.StatusRuleEligible, decisions[0].Status)
	assert.Equal(t, models.StatusError, decisions[1].Status)
}

func TestService_EvaluateByID(t *testing.T) {
	source := &fakeCandidateSource{candidates: map[string]*models.Candidate{
		"cand-1": {ID: "cand-1", Attributes: map[string]interface{}{"age": float64(65)}},
	}}
	svc := newTestService(t, &fakeEvaluator{}, &fakeScorer{}, WithCandidateSource(source))

	d, err := svc.EvaluateByID(context.Background(), "scheme-pension", "cand-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRuleEligible, d.Status)

	_, err = svc.EvaluateByID(context.Background(), "scheme-pension", "cand-missing")
	assert.Error(t, err)
}

func TestService_EvaluateBatchByID_SourceUnavailableAborts(t *testing.T) {
	source := &fakeCandidateSource{err: apperrors.NewAttributeStoreUnavailableError(errors.New("connection refused"))}
	svc := newTestService(t, &fakeEvaluator{}, &fakeScorer{}, WithCandidateSource(source))

	_, err := svc.EvaluateBatchByID(context.Background(), "scheme-pension", []string{"cand-1"})
	assert.Error(t, err)
}

func TestService_EvaluateBatchByID_NoSourceConfigured(t *testing.T) {
	svc := newTestService(t, &fakeEvaluator{}, &fakeScorer{})

	_, err := svc.EvaluateBatchByID(context.Background(), "scheme-pension", []string{"cand-1"})
	assert.Error(t, err)
}
