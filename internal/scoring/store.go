// internal/scoring/store.go
package scoring

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	apperrors "eligibility-engine/internal/common/errors"
	"eligibility-engine/internal/common/logger"
)

// ModelStore resolves the single active production artifact of a scheme.
// Artifacts are immutable once registered, so a resolved lookup is cached
// for the process lifetime; a miss is cached too, since "no model" is the
// normal state for most schemes and must not hammer the registry.
type ModelStore struct {
	db     *sql.DB
	logger logger.Logger

	mu    sync.RWMutex
	cache map[string]*Artifact // schemeID -> artifact, nil entry = no production model
	group singleflight.Group
}

// NewModelStore builds a model store over the registry database.
func NewModelStore(db *sql.DB, log logger.Logger) *ModelStore {
	return &ModelStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "model-store"}),
		cache:  make(map[string]*Artifact),
	}
}

// Production returns the scheme's active production artifact, or nil when no
// model is registered. Concurrent first lookups for the same scheme collapse
// into one registry query.
func (s *ModelStore) Production(ctx context.Context, schemeID string) (*Artifact, error) {
	s.mu.RLock()
	artifact, ok := s.cache[schemeID]
	s.mu.RUnlock()
	if ok {
		return artifact, nil
	}

	v, err, _ := s.group.Do(schemeID, func() (interface{}, error) {
		artifact, err := s.lookup(ctx, schemeID)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cache[schemeID] = artifact
		s.mu.Unlock()
		return artifact, nil
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.(*Artifact), nil
}

// Forget drops the cached entry for a scheme so the next lookup hits the
// registry again. Used when a new model version is promoted.
func (s *ModelStore) Forget(schemeID string) {
	s.mu.Lock()
	delete(s.cache, schemeID)
	s.mu.Unlock()
}

func (s *ModelStore) lookup(ctx context.Context, schemeID string) (*Artifact, error) {
	var (
		modelID string
		payload []byte
	)
	row := s.db.QueryRowContext(ctx, `
		SELECT model_id, artifact
		FROM model_registry
		WHERE scheme_id = $1 AND status = 'production'
		ORDER BY promoted_at DESC
		LIMIT 1`, schemeID)
	if err := row.Scan(&modelID, &payload); err != nil {
		if err == sql.ErrNoRows {
			s.logger.Debug("no production model registered", map[string]interface{}{
				"schemeId": schemeID,
			})
			return nil, nil
		}
		return nil, apperrors.NewModelUnavailableError(schemeID, fmt.Errorf("registry lookup: %w", err))
	}

	var artifact Artifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return nil, apperrors.NewModelUnavailableError(schemeID, fmt.Errorf("decode artifact %s: %w", modelID, err))
	}
	if artifact.ID == "" {
		artifact.ID = modelID
	}
	if artifact.SchemeID == "" {
		artifact.SchemeID = schemeID
	}
	if err := artifact.Validate(); err != nil {
		return nil, apperrors.NewModelUnavailableError(schemeID, fmt.Errorf("artifact %s invalid: %w", modelID, err))
	}

	s.logger.Info("loaded production model", map[string]interface{}{
		"schemeId": schemeID,
		"modelId":  artifact.ID,
		"type":     string(artifact.Type),
		"features": len(artifact.Features),
	})
	return &artifact, nil
}
