// internal/coverage/source.go

// Package coverage reads externally supplied vulnerability and
// under-coverage signals. The signals affect ranking only, never
// eligibility.
package coverage

import (
	"context"
	"database/sql"
	"fmt"

	"eligibility-engine/internal/common/logger"
	"eligibility-engine/internal/models"
)

// Source resolves vulnerability signals by candidate id. A candidate with
// no recorded signal gets the MEDIUM default, which is a neutral ranking
// multiplier.
type Source struct {
	db     *sql.DB
	logger logger.Logger
}

// NewSource builds a vulnerability signal source.
func NewSource(db *sql.DB, log logger.Logger) *Source {
	return &Source{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "coverage-source"}),
	}
}

// Signal returns the candidate's vulnerability signal, defaulting to MEDIUM
// with no under-coverage flag when none is recorded.
func (s *Source) Signal(ctx context.Context, candidateID string) (models.VulnerabilitySignal, error) {
	signal := models.VulnerabilitySignal{
		CandidateID: candidateID,
		Level:       models.VulnerabilityMedium,
	}

	var (
		level         string
		underCoverage bool
	)
	row := s.db.QueryRowContext(ctx, `
		SELECT vulnerability_level, under_coverage
		FROM vulnerability_signals
		WHERE candidate_id = $1`, candidateID)
	if err := row.Scan(&level, &underCoverage); err != nil {
		if err == sql.ErrNoRows {
			return signal, nil
		}
		return signal, fmt.Errorf("query vulnerability signal for %s: %w", candidateID, err)
	}

	signal.Level = models.VulnerabilityLevel(level)
	signal.UnderCoverage = underCoverage
	return signal, nil
}
