// internal/candidates/source.go

// Package candidates resolves candidate attribute bags from the attribute
// store with a short-lived Redis cache in front.
package candidates

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "eligibility-engine/internal/common/errors"
	"eligibility-engine/internal/common/logger"
	"eligibility-engine/internal/models"
)

// Source reads flat attribute bags from Postgres. Attribute bags change when
// upstream registries sync, so cached entries are short-lived compared to
// rule cache entries.
type Source struct {
	db     *sql.DB
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

// NewSource builds an attribute source. redisClient may be nil to disable
// caching.
func NewSource(db *sql.DB, redisClient *redis.Client, ttl time.Duration, log logger.Logger) *Source {
	return &Source{
		db:     db,
		redis:  redisClient,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "candidate-source"}),
	}
}

func cacheKey(candidateID string) string {
	return "cand:" + candidateID
}

// Get resolves one candidate's attribute bag.
func (s *Source) Get(ctx context.Context, candidateID string) (*models.Candidate, error) {
	if cached := s.readCache(ctx, candidateID); cached != nil {
		return cached, nil
	}

	var payload []byte
	row := s.db.QueryRowContext(ctx,
		`SELECT attributes FROM candidate_attributes WHERE candidate_id = $1`, candidateID)
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewDataUnavailableError(fmt.Sprintf("candidate %s", candidateID))
		}
		return nil, apperrors.NewAttributeStoreUnavailableError(fmt.Errorf("query candidate %s: %w", candidateID, err))
	}

	attrs := make(map[string]interface{})
	if err := json.Unmarshal(payload, &attrs); err != nil {
		return nil, apperrors.NewAttributeStoreUnavailableError(fmt.Errorf("decode candidate %s attributes: %w", candidateID, err))
	}

	c := &models.Candidate{ID: candidateID, Attributes: attrs}
	s.writeCache(ctx, c)
	return c, nil
}

// Location derives the geographic grouping keys from the attribute bag.
// Missing attributes leave the corresponding key empty; ranking treats an
// empty cluster as unclustered.
func (s *Source) Location(ctx context.Context, candidateID string) (models.Location, error) {
	c, err := s.Get(ctx, candidateID)
	if err != nil {
		return models.Location{CandidateID: candidateID}, err
	}
	loc := models.Location{CandidateID: candidateID}
	if district, ok := c.String("district_id"); ok {
		loc.DistrictID = district
	}
	if cluster, ok := c.String("cluster_id"); ok {
		loc.ClusterID = cluster
	}
	return loc, nil
}

func (s *Source) readCache(ctx context.Context, candidateID string) *models.Candidate {
	if s.redis == nil {
		return nil
	}
	val, err := s.redis.Get(ctx, cacheKey(candidateID)).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("candidate cache read failed, falling back to database", map[string]interface{}{
				"candidateId": candidateID,
				"error":       err.Error(),
			})
		}
		return nil
	}
	attrs := make(map[string]interface{})
	if err := json.Unmarshal([]byte(val), &attrs); err != nil {
		return nil
	}
	return &models.Candidate{ID: candidateID, Attributes: attrs}
}

func (s *Source) writeCache(ctx context.Context, c *models.Candidate) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(c.Attributes)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, cacheKey(c.ID), data, s.ttl).Err(); err != nil {
		s.logger.Warn("failed to cache candidate attributes", map[string]interface{}{
			"candidateId": c.ID,
			"error":       err.Error(),
		})
	}
}
