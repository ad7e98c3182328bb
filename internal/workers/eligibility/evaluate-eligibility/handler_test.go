// internal/workers/eligibility/evaluate-eligibility/handler_test.go
package evaluateeligibility

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "eligibility-engine/internal/common/errors"
	"eligibility-engine/internal/common/logger"
	"eligibility-engine/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeBatchEvaluator struct {
	decisions []*models.Decision
	err       error

	gotSchemeID   string
	gotCandidates []*models.Candidate
	gotIDs        []string
}

func (f *fakeBatchEvaluator) EvaluateBatch(_ context.Context, schemeID string, candidates []*models.Candidate) ([]*models.Decision, error) {
	f.gotSchemeID = schemeID
	f.gotCandidates = candidates
	return f.decisions, f.err
}

func (f *fakeBatchEvaluator) EvaluateBatchByID(_ context.Context, schemeID string, ids []string) ([]*models.Decision, error) {
	f.gotSchemeID = schemeID
	f.gotIDs = ids
	return f.decisions, f.err
}

type fakeReloader struct {
	invalidated []string
}

func (f *fakeReloader) Invalidate(_ context.Context, schemeID string) {
	f.invalidated = append(f.invalidated, schemeID)
}

func createTestConfig() *Config {
	return &Config{Timeout: 10 * time.Second}
}

func createTestHandler(t *testing.T, evaluator BatchEvaluator, reloader RuleReloader) *Handler {
	return NewHandler(createTestConfig(), evaluator, reloader, logger.NewTestLogger(t))
}

func decisionsFixture() []*models.Decision {
	return []*models.Decision{
		{ID: "dec-1", SchemeID: "scheme-pension", CandidateID: "cand-1", Status: models.StatusRuleEligible},
		{ID: "dec-2", SchemeID: "scheme-pension", CandidateID: "cand-2", Status: models.StatusError},
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_InlineCandidates(t *testing.T) {
	evaluator := &fakeBatchEvaluator{decisions: decisionsFixture()}
	handler := createTestHandler(t, evaluator, nil)

	input := &Input{
		SchemeID: "scheme-pension",
		Candidates: []*models.Candidate{
			{ID: "cand-1", Attributes: map[string]interface{}{"age": float64(65)}},
			{ID: "cand-2", Attributes: map[string]interface{}{"age": float64(40)}},
		},
	}

	output, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, "scheme-pension", evaluator.gotSchemeID)
	assert.Len(t, evaluator.gotCandidates, 2)
	assert.Equal(t, 2, output.Evaluated)
	assert.Equal(t, 1, output.Errored)
}

func TestHandler_Execute_CandidateIDs(t *testing.T) {
	evaluator := &fakeBatchEvaluator{decisions: decisionsFixture()}
	handler := createTestHandler(t, evaluator, nil)

	output, err := handler.Execute(context.Background(), &Input{
		SchemeID:     "scheme-pension",
		CandidateIDs: []string{"cand-1", "cand-2"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"cand-1", "cand-2"}, evaluator.gotIDs)
	assert.Equal(t, 2, output.Evaluated)
}

func TestHandler_Execute_ForceReloadInvalidatesCache(t *testing.T) {
	evaluator := &fakeBatchEvaluator{decisions: decisionsFixture()}
	reloader := &fakeReloader{}
	handler := createTestHandler(t, evaluator, reloader)

	_, err := handler.Execute(context.Background(), &Input{
		SchemeID:     "scheme-pension",
		CandidateIDs: []string{"cand-1"},
		ForceReload:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"scheme-pension"}, reloader.invalidated)
}

// ==========================
// Validation Tests
// ==========================

func TestHandler_Execute_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input *Input
	}{
		{name: "missing scheme", input: &Input{CandidateIDs: []string{"cand-1"}}},
		{name: "no candidates", input: &Input{SchemeID: "scheme-pension"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := createTestHandler(t, &fakeBatchEvaluator{}, nil)
			_, err := handler.Execute(context.Background(), tt.input)
			assert.Error(t, err)
		})
	}
}

// ==========================
// Error Propagation Tests
// ==========================

func TestHandler_Execute_BatchFailurePropagates(t *testing.T) {
	evaluator := &fakeBatchEvaluator{
		err: apperrors.NewRuleStoreUnavailableError(errors.New("connection refused")),
	}
	handler := createTestHandler(t, evaluator, nil)

	_, err := handler.Execute(context.Background(), &Input{
		SchemeID:     "scheme-pension",
		CandidateIDs: []string{"cand-1"},
	})
	require.Error(t, err)

	var stdErr *apperrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeRuleStoreUnavailable, stdErr.Code)
}
