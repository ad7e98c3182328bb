// internal/audit/postgres.go
package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	apperrors "eligibility-engine/internal/common/errors"
	"eligibility-engine/internal/common/logger"
	"eligibility-engine/internal/models"
)

// PostgresSink writes decisions into the append-only decision_history
// table. The table has no UPDATE path anywhere in the codebase: every
// re-evaluation is a new row.
type PostgresSink struct {
	db     *sql.DB
	logger logger.Logger
}

// NewPostgresSink builds the relational history sink.
func NewPostgresSink(db *sql.DB, log logger.Logger) *PostgresSink {
	return &PostgresSink{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "history-postgres"}),
	}
}

func (s *PostgresSink) Name() string { return "postgres" }

// Append inserts one decision row.
func (s *PostgresSink) Append(ctx context.Context, d *models.Decision) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decision_history (
			id, scheme_id, candidate_id, status,
			eligibility_score, confidence_score,
			conflict_resolved, requires_review,
			reason_codes, explanation,
			rules_passed, rules_failed,
			model_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		d.ID, d.SchemeID, d.CandidateID, string(d.Status),
		d.EligibilityScore, d.ConfidenceScore,
		d.ConflictResolved, d.RequiresReview,
		pq.Array(d.ReasonCodes), d.Explanation,
		pq.Array(d.RulesPassed), pq.Array(d.RulesFailed),
		nullableString(d.ModelID), d.CreatedAt,
	)
	if err != nil {
		return apperrors.NewHistoryWriteFailedError("postgres", fmt.Errorf("insert decision %s: %w", d.ID, err))
	}
	return nil
}

// LatestDecisions returns each candidate's most recent decision for a
// scheme. The ranking pass consumes this view: history keeps every row, but
// only the newest decision per candidate is rankable.
func (s *PostgresSink) LatestDecisions(ctx context.Context, schemeID string, limit int) ([]*models.Decision, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ON (candidate_id)
			id, scheme_id, candidate_id, status,
			eligibility_score, confidence_score,
			conflict_resolved, requires_review,
			reason_codes, explanation, model_id, created_at
		FROM decision_history
		WHERE scheme_id = $1
		ORDER BY candidate_id, created_at DESC
		LIMIT $2`, schemeID, limit)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("query latest decisions", err)
	}
	defer rows.Close()

	var decisions []*models.Decision
	for rows.Next() {
		var (
			d       models.Decision
			status  string
			modelID sql.NullString
		)
		err := rows.Scan(
			&d.ID, &d.SchemeID, &d.CandidateID, &status,
			&d.EligibilityScore, &d.ConfidenceScore,
			&d.ConflictResolved, &d.RequiresReview,
			pq.Array(&d.ReasonCodes), &d.Explanation, &modelID, &d.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan decision row", err)
		}
		d.Status = models.EligibilityStatus(status)
		d.ModelID = modelID.String
		decisions = append(decisions, &d)
	}
	return decisions, rows.Err()
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
