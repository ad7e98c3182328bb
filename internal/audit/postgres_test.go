// internal/audit/postgres_test.go
package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "eligibility-engine/internal/common/errors"
	"eligibility-engine/internal/common/logger"
	"eligibility-engine/internal/models"
)

func sampleDecision() *models.Decision {
	return &models.Decision{
		ID:               "dec-1",
		SchemeID:         "scheme-pension",
		CandidateID:      "cand-1",
		Status:           models.StatusRuleEligible,
		EligibilityScore: 0.82,
		ConfidenceScore:  0.9,
		ReasonCodes:      []string{},
		Explanation:      "Final status RULE_ELIGIBLE with confidence 0.90.",
		RulesPassed:      []string{"rule-age"},
		RulesFailed:      []string{},
		ModelID:          "model-pension-v3",
		CreatedAt:        time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPostgresSink_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO decision_history").
		WillReturnResult(sqlmock.NewResult(0, 1))

	sink := NewPostgresSink(db, logger.NewTestLogger(t))
	require.NoError(t, sink.Append(context.Background(), sampleDecision()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_Append_WrapsFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO decision_history").
		WillReturnError(errors.New("connection refused"))

	sink := NewPostgresSink(db, logger.NewTestLogger(t))
	err = sink.Append(context.Background(), sampleDecision())
	require.Error(t, err)

	var stdErr *apperrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeHistoryWriteFailed, stdErr.Code)
}

func TestPostgresSink_LatestDecisions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	columns := []string{
		"id", "scheme_id", "candidate_id", "status",
		"eligibility_score", "confidence_score",
		"conflict_resolved", "requires_review",
		"reason_codes", "explanation", "model_id", "created_at",
	}
	mock.ExpectQuery("SELECT DISTINCT ON \\(candidate_id\\)").
		WithArgs("scheme-pension", 1000).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("dec-1", "scheme-pension", "cand-1", "RULE_ELIGIBLE",
				0.82, 0.9, false, false,
				[]byte("{ML_UNAVAILABLE}"), "rules-only decision", "model-pension-v3",
				time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)))

	sink := NewPostgresSink(db, logger.NewTestLogger(t))
	decisions, err := sink.LatestDecisions(context.Background(), "scheme-pension", 0)
	require.NoError(t, err)

	require.Len(t, decisions, 1)
	assert.Equal(t, "cand-1", decisions[0].CandidateID)
	assert.Equal(t, models.StatusRuleEligible, decisions[0].Status)
	assert.Equal(t, []string{"ML_UNAVAILABLE"}, decisions[0].ReasonCodes)
	assert.NoError(t, mock.ExpectationsWereMet())
}
