// internal/workers/eligibility/rank-candidates/handler_test.go
package rankcandidates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eligibility-engine/internal/common/logger"
	"eligibility-engine/internal/models"
	"eligibility-engine/internal/ranking"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeRanker struct {
	records []models.RankedRecord
	err     error

	gotWorklist bool
	gotFilter   ranking.WorklistFilter
	gotOpts     ranking.Options
}

func (f *fakeRanker) Rank(_ context.Context, _ []*models.Decision, opts ranking.Options) ([]models.RankedRecord, error) {
	f.gotOpts = opts
	return f.records, f.err
}

func (f *fakeRanker) Worklist(_ context.Context, _ []*models.Decision, filter ranking.WorklistFilter, opts ranking.Options) ([]models.RankedRecord, error) {
	f.gotWorklist = true
	f.gotFilter = filter
	f.gotOpts = opts
	return f.records, f.err
}

type fakeLoader struct {
	decisions []*models.Decision
	err       error
	loads     int
}

func (f *fakeLoader) LatestDecisions(_ context.Context, _ string, _ int) ([]*models.Decision, error) {
	f.loads++
	return f.decisions, f.err
}

func createTestHandler(t *testing.T, ranker Ranker, loader DecisionLoader) *Handler {
	return NewHandler(&Config{Timeout: 10 * time.Second, HistoryLimit: 100}, ranker, loader, logger.NewTestLogger(t))
}

func rankedFixture() []models.RankedRecord {
	return []models.RankedRecord{
		{CandidateID: "cand-1", SchemeID: "scheme-pension", Status: models.StatusRuleEligible, PriorityScore: 0.8, Rank: 1},
		{CandidateID: "cand-2", SchemeID: "scheme-pension", Status: models.StatusPossibleEligible, PriorityScore: 0.6, Rank: 2},
	}
}

func inlineDecisions() []*models.Decision {
	return []*models.Decision{
		{ID: "dec-1", SchemeID: "scheme-pension", CandidateID: "cand-1", Status: models.StatusRuleEligible, EligibilityScore: 0.8, ConfidenceScore: 1.0},
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_InlineDecisions(t *testing.T) {
	ranker := &fakeRanker{records: rankedFixture()}
	loader := &fakeLoader{}
	handler := createTestHandler(t, ranker, loader)

	output, err := handler.Execute(context.Background(), &Input{
		SchemeID:  "scheme-pension",
		Decisions: inlineDecisions(),
	})
	require.NoError(t, err)

	assert.Equal(t, 0, loader.loads)
	assert.False(t, ranker.gotWorklist)
	assert.Equal(t, 2, output.Total)
	assert.Len(t, output.CitizenHints, 2)
	assert.Equal(t, 1, output.CitizenHints[0].Rank)
}

func TestHandler_Execute_LoadsHistoryWhenNoInlineDecisions(t *testing.T) {
	ranker := &fakeRanker{records: rankedFixture()}
	loader := &fakeLoader{decisions: inlineDecisions()}
	handler := createTestHandler(t, ranker, loader)

	_, err := handler.Execute(context.Background(), &Input{SchemeID: "scheme-pension"})
	require.NoError(t, err)
	assert.Equal(t, 1, loader.loads)
}

func TestHandler_Execute_WorklistFilters(t *testing.T) {
	ranker := &fakeRanker{records: rankedFixture()}
	handler := createTestHandler(t, ranker, &fakeLoader{decisions: inlineDecisions()})

	_, err := handler.Execute(context.Background(), &Input{
		SchemeID:             "scheme-pension",
		DistrictID:           "d-1",
		MinScore:             0.5,
		Limit:                10,
		SchemePriorityWeight: 0.9,
	})
	require.NoError(t, err)

	assert.True(t, ranker.gotWorklist)
	assert.Equal(t, "d-1", ranker.gotFilter.DistrictID)
	assert.InDelta(t, 0.5, ranker.gotFilter.MinScore, 1e-9)
	assert.Equal(t, 10, ranker.gotFilter.Limit)
	assert.InDelta(t, 0.9, ranker.gotOpts.SchemeWeight, 1e-9)
}

// ==========================
// Error Path Tests
// ==========================

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  *Input
		ranker *fakeRanker
		loader DecisionLoader
	}{
		{
			name:   "missing scheme",
			input:  &Input{},
			ranker: &fakeRanker{},
			loader: &fakeLoader{},
		},
		{
			name:   "history loader failure",
			input:  &Input{SchemeID: "scheme-pension"},
			ranker: &fakeRanker{},
			loader: &fakeLoader{err: errors.New("connection refused")},
		},
		{
			name:   "ranker failure",
			input:  &Input{SchemeID: "scheme-pension", Decisions: inlineDecisions()},
			ranker: &fakeRanker{err: errors.New("signal store down")},
			loader: &fakeLoader{},
		},
		{
			name:   "no loader and no inline decisions",
			input:  &Input{SchemeID: "scheme-pension"},
			ranker: &fakeRanker{},
			loader: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := createTestHandler(t, tt.ranker, tt.loader)
			_, err := handler.Execute(context.Background(), tt.input)
			assert.Error(t, err)
		})
	}
}
