// internal/rules/admin.go
package rules

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	apperrors "eligibility-engine/internal/common/errors"
	"eligibility-engine/internal/models"
)

// Rule mutations never update rows in place. A create inserts version 1, an
// update soft-closes the current version and inserts version n+1, a delete
// soft-closes without a successor. Every mutation lands in rule_audit_log
// inside the same transaction and invalidates the scheme's cache entry.

// CreateRule validates and inserts a new rule as version 1.
func (s *Store) CreateRule(ctx context.Context, r *models.Rule, actor string) (*models.Rule, error) {
	if err := ValidateRule(r); err != nil {
		return nil, err
	}

	created := *r
	created.ID = uuid.New().String()
	created.Version = 1
	if created.EffectiveFrom.IsZero() {
		created.EffectiveFrom = time.Now().UTC()
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertRule(ctx, tx, &created); err != nil {
			return err
		}
		return insertAudit(ctx, tx, &models.RuleAuditEntry{
			ID:       uuid.New().String(),
			SchemeID: created.SchemeID,
			RuleID:   created.ID,
			Action:   "CREATE",
			Actor:    actor,
			Detail:   fmt.Sprintf("created rule %q version 1", created.Name),
		})
	})
	if err != nil {
		return nil, err
	}

	s.Invalidate(ctx, created.SchemeID)
	return &created, nil
}

// UpdateRule soft-closes the current version of the rule and inserts the
// updated definition as the next version.
func (s *Store) UpdateRule(ctx context.Context, ruleID string, updated *models.Rule, actor string) (*models.Rule, error) {
	if err := ValidateRule(updated); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	next := *updated
	next.ID = uuid.New().String()
	if next.EffectiveFrom.IsZero() || next.EffectiveFrom.Before(now) {
		next.EffectiveFrom = now
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := lockRule(ctx, tx, ruleID)
		if err != nil {
			return err
		}
		if current.SchemeID != next.SchemeID {
			return apperrors.NewRuleValidationFailedError("a rule cannot move between schemes")
		}
		next.Version = current.Version + 1

		if err := closeRule(ctx, tx, ruleID, next.EffectiveFrom); err != nil {
			return err
		}
		if err := insertRule(ctx, tx, &next); err != nil {
			return err
		}
		return insertAudit(ctx, tx, &models.RuleAuditEntry{
			ID:       uuid.New().String(),
			SchemeID: next.SchemeID,
			RuleID:   next.ID,
			Action:   "UPDATE",
			Actor:    actor,
			Detail:   fmt.Sprintf("superseded %s, now version %d", ruleID, next.Version),
		})
	})
	if err != nil {
		return nil, err
	}

	s.Invalidate(ctx, next.SchemeID)
	return &next, nil
}

// DeleteRule retires a rule by closing its effective window. The row stays
// in place so historic as-of evaluations keep seeing it.
func (s *Store) DeleteRule(ctx context.Context, ruleID string, actor string) error {
	now := time.Now().UTC()
	var schemeID string

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := lockRule(ctx, tx, ruleID)
		if err != nil {
			return err
		}
		schemeID = current.SchemeID

		if err := closeRule(ctx, tx, ruleID, now); err != nil {
			return err
		}
		return insertAudit(ctx, tx, &models.RuleAuditEntry{
			ID:       uuid.New().String(),
			SchemeID: schemeID,
			RuleID:   ruleID,
			Action:   "DELETE",
			Actor:    actor,
			Detail:   fmt.Sprintf("retired version %d", current.Version),
		})
	})
	if err != nil {
		return err
	}

	s.Invalidate(ctx, schemeID)
	return nil
}

// CreateExclusionRule inserts a new exclusion as version 1.
func (s *Store) CreateExclusionRule(ctx context.Context, r *models.ExclusionRule, actor string) (*models.ExclusionRule, error) {
	if err := ValidateExclusionRule(r); err != nil {
		return nil, err
	}

	created := *r
	created.ID = uuid.New().String()
	created.Version = 1
	if created.EffectiveFrom.IsZero() {
		created.EffectiveFrom = time.Now().UTC()
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO exclusion_rules (id, scheme_id, category, expression, version, effective_from, effective_to)
			VALUES ($1, $2, $3, $4, $5, $6, NULL)`,
			created.ID, created.SchemeID, created.Category, created.Expression, created.Version, created.EffectiveFrom,
		)
		if err != nil {
			return apperrors.NewQueryExecutionFailedError("insert exclusion rule", err)
		}
		return insertAudit(ctx, tx, &models.RuleAuditEntry{
			ID:       uuid.New().String(),
			SchemeID: created.SchemeID,
			RuleID:   created.ID,
			Action:   "CREATE",
			Actor:    actor,
			Detail:   fmt.Sprintf("created exclusion %s version 1", created.Category),
		})
	})
	if err != nil {
		return nil, err
	}

	s.Invalidate(ctx, created.SchemeID)
	return &created, nil
}

// DeleteExclusionRule retires an exclusion by closing its window.
func (s *Store) DeleteExclusionRule(ctx context.Context, exclusionID string, actor string) error {
	now := time.Now().UTC()
	var schemeID string

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT scheme_id FROM exclusion_rules
			WHERE id = $1 AND effective_to IS NULL
			FOR UPDATE`, exclusionID)
		if err := row.Scan(&schemeID); err != nil {
			if err == sql.ErrNoRows {
				return apperrors.NewRuleNotFoundError(exclusionID)
			}
			return apperrors.NewQueryExecutionFailedError("lock exclusion rule", err)
		}

		_, err := tx.ExecContext(ctx,
			`UPDATE exclusion_rules SET effective_to = $2 WHERE id = $1`, exclusionID, now)
		if err != nil {
			return apperrors.NewQueryExecutionFailedError("close exclusion rule", err)
		}
		return insertAudit(ctx, tx, &models.RuleAuditEntry{
			ID:       uuid.New().String(),
			SchemeID: schemeID,
			RuleID:   exclusionID,
			Action:   "DELETE",
			Actor:    actor,
			Detail:   "retired exclusion",
		})
	})
	if err != nil {
		return err
	}

	s.Invalidate(ctx, schemeID)
	return nil
}

// AuditTrail returns the mutation history of a scheme, newest first.
func (s *Store) AuditTrail(ctx context.Context, schemeID string, limit int) ([]models.RuleAuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scheme_id, rule_id, action, actor, detail, created_at
		FROM rule_audit_log
		WHERE scheme_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, schemeID, limit)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("query audit trail", err)
	}
	defer rows.Close()

	var entries []models.RuleAuditEntry
	for rows.Next() {
		var e models.RuleAuditEntry
		if err := rows.Scan(&e.ID, &e.SchemeID, &e.RuleID, &e.Action, &e.Actor, &e.Detail, &e.CreatedAt); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan audit row", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ==========================
// Transaction helpers
// ==========================

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewDatabaseConnectionFailedError(err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", map[string]interface{}{"error": rbErr.Error()})
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.NewQueryExecutionFailedError("commit rule mutation", err)
	}
	return nil
}

func insertRule(ctx context.Context, tx *sql.Tx, r *models.Rule) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO eligibility_rules (
			id, scheme_id, name, category, attribute, operator,
			numeric_value, numeric_high, string_values, bool_value, expression,
			mandatory, priority, version, effective_from, effective_to
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		r.ID, r.SchemeID, r.Name, r.Category, nullString(r.Attribute), nullString(string(r.Operator)),
		nullFloat(r.NumericValue), nullFloat(r.NumericHigh), pq.Array(r.Values), nullBool(r.BoolValue), nullString(r.Expression),
		r.Mandatory, r.Priority, r.Version, r.EffectiveFrom, r.EffectiveTo,
	)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("insert rule", err)
	}
	return nil
}

func lockRule(ctx context.Context, tx *sql.Tx, ruleID string) (*models.Rule, error) {
	var r models.Rule
	row := tx.QueryRowContext(ctx, `
		SELECT id, scheme_id, name, version
		FROM eligibility_rules
		WHERE id = $1 AND effective_to IS NULL
		FOR UPDATE`, ruleID)
	if err := row.Scan(&r.ID, &r.SchemeID, &r.Name, &r.Version); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewRuleNotFoundError(ruleID)
		}
		return nil, apperrors.NewQueryExecutionFailedError("lock rule", err)
	}
	return &r, nil
}

func closeRule(ctx context.Context, tx *sql.Tx, ruleID string, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE eligibility_rules SET effective_to = $2 WHERE id = $1`, ruleID, at)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("close rule", err)
	}
	return nil
}

func insertAudit(ctx context.Context, tx *sql.Tx, e *models.RuleAuditEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO rule_audit_log (id, scheme_id, rule_id, action, actor, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		e.ID, e.SchemeID, e.RuleID, e.Action, e.Actor, e.Detail,
	)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("insert audit entry", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}
