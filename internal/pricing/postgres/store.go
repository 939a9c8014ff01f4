package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saha-club/bookingservice/internal/metrics"
	"github.com/saha-club/bookingservice/internal/pricing"
)

// Store persists pricing rules in PostgreSQL. The rule body lives in a
// jsonb column; active and priority are mirrored into real columns for
// listing without unpacking every definition.
type Store struct {
	pool *pgxpool.Pool
}

func NewStoreWithPool(pool *pgxpool.Pool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool cannot be nil")
	}
	return &Store{pool: pool}, nil
}

func observe(operation string, start time.Time) {
	metrics.DatabaseQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// LoadAll returns every stored rule, for hydrating the in-memory rule set.
func (s *Store) LoadAll(ctx context.Context) ([]pricing.Rule, error) {
	defer observe("load_pricing_rules", time.Now())

	rows, err := s.pool.Query(ctx, `SELECT definition FROM pricing_rules ORDER BY priority DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load pricing rules: %w", err)
	}
	defer rows.Close()

	var rules []pricing.Rule
	for rows.Next() {
		var definition []byte
		if err := rows.Scan(&definition); err != nil {
			return nil, err
		}
		var rule pricing.Rule
		if err := json.Unmarshal(definition, &rule); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pricing rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// Upsert stores or replaces a rule.
func (s *Store) Upsert(ctx context.Context, rule pricing.Rule) error {
	defer observe("upsert_pricing_rule", time.Now())

	if rule.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	definition, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("failed to marshal pricing rule: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO pricing_rules (id, active, priority, definition, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE SET
			active = EXCLUDED.active,
			priority = EXCLUDED.priority,
			definition = EXCLUDED.definition,
			updated_at = now()`,
		rule.ID, rule.Active, rule.Priority, definition)
	if err != nil {
		return fmt.Errorf("failed to upsert pricing rule: %w", err)
	}
	return nil
}

// Delete removes a rule.
func (s *Store) Delete(ctx context.Context, id string) error {
	defer observe("delete_pricing_rule", time.Now())

	tag, err := s.pool.Exec(ctx, `DELETE FROM pricing_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete pricing rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rule %s not found", id)
	}
	return nil
}
