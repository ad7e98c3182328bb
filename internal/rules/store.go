// internal/rules/store.go
package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	apperrors "eligibility-engine/internal/common/errors"
	"eligibility-engine/internal/common/logger"
	"eligibility-engine/internal/common/metrics"
	"eligibility-engine/internal/models"
)

// RuleSet is the full rule inventory of one scheme, every version included.
// Callers filter by effective date through ActiveAt on the individual rules;
// keeping all versions in one cache entry means an as-of query never needs a
// second round trip.
type RuleSet struct {
	SchemeID   string                 `json:"schemeId"`
	Rules      []models.Rule          `json:"rules"`
	Exclusions []models.ExclusionRule `json:"exclusions"`
	LoadedAt   time.Time              `json:"loadedAt"`
}

// ActiveRules returns the rules effective at the given instant, highest
// priority first. Ties break on rule name so repeated loads evaluate in the
// same order.
func (rs *RuleSet) ActiveRules(at time.Time) []models.Rule {
	var active []models.Rule
	for _, r := range rs.Rules {
		if r.ActiveAt(at) {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority > active[j].Priority
		}
		return active[i].Name < active[j].Name
	})
	return active
}

// ActiveExclusions returns the exclusion rules effective at the instant.
func (rs *RuleSet) ActiveExclusions(at time.Time) []models.ExclusionRule {
	var active []models.ExclusionRule
	for _, r := range rs.Exclusions {
		if r.ActiveAt(at) {
			active = append(active, r)
		}
	}
	return active
}

// Store loads scheme rule sets from Postgres with a Redis read-through
// cache. Cache failures degrade to direct database reads; a database failure
// is terminal and surfaces as RULE_STORE_UNAVAILABLE.
type Store struct {
	db     *sql.DB
	redis  *redis.Client
	logger logger.Logger
	ttl    time.Duration
	group  singleflight.Group
}

// NewStore builds a rule store. redisClient may be nil, which disables
// caching entirely (used by the rule-loader tool).
func NewStore(db *sql.DB, redisClient *redis.Client, ttl time.Duration, log logger.Logger) *Store {
	return &Store{
		db:     db,
		redis:  redisClient,
		logger: log.WithFields(map[string]interface{}{"component": "rule-store"}),
		ttl:    ttl,
	}
}

func cacheKey(schemeID string) string {
	return "rules:" + schemeID
}

// Load returns the rule set for a scheme. With forceReload the cache read is
// skipped and the fresh result overwrites the cached entry. Concurrent loads
// of the same scheme collapse into a single database query.
func (s *Store) Load(ctx context.Context, schemeID string, forceReload bool) (*RuleSet, error) {
	if !forceReload {
		if rs := s.readCache(ctx, schemeID); rs != nil {
			return rs, nil
		}
	}

	v, err, _ := s.group.Do(schemeID, func() (interface{}, error) {
		rs, err := s.loadFromDB(ctx, schemeID)
		if err != nil {
			return nil, err
		}
		s.writeCache(ctx, rs)
		return rs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*RuleSet), nil
}

// Invalidate drops the cached entry for a scheme. Called after every rule
// mutation so workers pick up changes before the TTL expires.
func (s *Store) Invalidate(ctx context.Context, schemeID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, cacheKey(schemeID)).Err(); err != nil {
		s.logger.Warn("failed to invalidate rule cache", map[string]interface{}{
			"schemeId": schemeID,
			"error":    err.Error(),
		})
	}
}

func (s *Store) readCache(ctx context.Context, schemeID string) *RuleSet {
	if s.redis == nil {
		return nil
	}
	val, err := s.redis.Get(ctx, cacheKey(schemeID)).Result()
	if err != nil {
		if err == redis.Nil {
			metrics.RuleCacheLookups.WithLabelValues("miss").Inc()
		} else {
			metrics.RuleCacheLookups.WithLabelValues("error").Inc()
			s.logger.Warn("rule cache read failed, falling back to database", map[string]interface{}{
				"schemeId": schemeID,
				"error":    err.Error(),
			})
		}
		return nil
	}

	var rs RuleSet
	if err := json.Unmarshal([]byte(val), &rs); err != nil {
		metrics.RuleCacheLookups.WithLabelValues("error").Inc()
		s.logger.Warn("rule cache entry is corrupt, reloading", map[string]interface{}{
			"schemeId": schemeID,
			"error":    err.Error(),
		})
		return nil
	}
	metrics.RuleCacheLookups.WithLabelValues("hit").Inc()
	return &rs
}

func (s *Store) writeCache(ctx context.Context, rs *RuleSet) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(rs)
	if err != nil {
		s.logger.Warn("failed to marshal rule set for cache", map[string]interface{}{
			"schemeId": rs.SchemeID,
			"error":    err.Error(),
		})
		return
	}
	if err := s.redis.Set(ctx, cacheKey(rs.SchemeID), data, s.ttl).Err(); err != nil {
		s.logger.Warn("failed to cache rule set", map[string]interface{}{
			"schemeId": rs.SchemeID,
			"error":    err.Error(),
		})
	}
}

func (s *Store) loadFromDB(ctx context.Context, schemeID string) (*RuleSet, error) {
	rs := &RuleSet{SchemeID: schemeID, LoadedAt: time.Now().UTC()}

	rulesQuery := `
		SELECT id, scheme_id, name, category, attribute, operator,
		       numeric_value, numeric_high, string_values, bool_value, expression,
		       mandatory, priority, version, effective_from, effective_to
		FROM eligibility_rules
		WHERE scheme_id = $1
		ORDER BY priority DESC, name ASC, version DESC`

	rows, err := s.db.QueryContext(ctx, rulesQuery, schemeID)
	if err != nil {
		return nil, apperrors.NewRuleStoreUnavailableError(fmt.Errorf("query rules for %s: %w", schemeID, err))
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r         models.Rule
			attribute sql.NullString
			operator  sql.NullString
			numVal    sql.NullFloat64
			numHigh   sql.NullFloat64
			boolVal   sql.NullBool
			expr      sql.NullString
			effTo     sql.NullTime
		)
		err := rows.Scan(
			&r.ID, &r.SchemeID, &r.Name, &r.Category, &attribute, &operator,
			&numVal, &numHigh, pq.Array(&r.Values), &boolVal, &expr,
			&r.Mandatory, &r.Priority, &r.Version, &r.EffectiveFrom, &effTo,
		)
		if err != nil {
			return nil, apperrors.NewRuleStoreUnavailableError(fmt.Errorf("scan rule row: %w", err))
		}
		r.Attribute = attribute.String
		r.Operator = models.Operator(operator.String)
		if numVal.Valid {
			r.NumericValue = &numVal.Float64
		}
		if numHigh.Valid {
			r.NumericHigh = &numHigh.Float64
		}
		if boolVal.Valid {
			r.BoolValue = &boolVal.Bool
		}
		r.Expression = expr.String
		if effTo.Valid {
			t := effTo.Time
			r.EffectiveTo = &t
		}
		rs.Rules = append(rs.Rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewRuleStoreUnavailableError(fmt.Errorf("iterate rule rows: %w", err))
	}

	exclQuery := `
		SELECT id, scheme_id, category, expression, version, effective_from, effective_to
		FROM exclusion_rules
		WHERE scheme_id = $1
		ORDER BY category ASC, version DESC`

	exclRows, err := s.db.QueryContext(ctx, exclQuery, schemeID)
	if err != nil {
		return nil, apperrors.NewRuleStoreUnavailableError(fmt.Errorf("query exclusions for %s: %w", schemeID, err))
	}
	defer exclRows.Close()

	for exclRows.Next() {
		var (
			e     models.ExclusionRule
			effTo sql.NullTime
		)
		if err := exclRows.Scan(&e.ID, &e.SchemeID, &e.Category, &e.Expression, &e.Version, &e.EffectiveFrom, &effTo); err != nil {
			return nil, apperrors.NewRuleStoreUnavailableError(fmt.Errorf("scan exclusion row: %w", err))
		}
		if effTo.Valid {
			t := effTo.Time
			e.EffectiveTo = &t
		}
		rs.Exclusions = append(rs.Exclusions, e)
	}
	if err := exclRows.Err(); err != nil {
		return nil, apperrors.NewRuleStoreUnavailableError(fmt.Errorf("iterate exclusion rows: %w", err))
	}

	s.logger.Debug("loaded rule set from database", map[string]interface{}{
		"schemeId":   schemeID,
		"rules":      len(rs.Rules),
		"exclusions": len(rs.Exclusions),
	})
	return rs, nil
}
