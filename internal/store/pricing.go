package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/janekbaraniewski/codextracker/internal/core"
	"github.com/janekbaraniewski/codextracker/internal/pricing"
	"github.com/janekbaraniewski/codextracker/internal/usage"
)

// ListPricingRules returns every rule, newest effective_from first.
func (s *Store) ListPricingRules(ctx context.Context) (pricing.Rules, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, model_pattern, input_per_1m, cached_input_per_1m, output_per_1m, effective_from, effective_to
		FROM pricing_rule
		ORDER BY effective_from DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list pricing rules: %w", err)
	}
	defer rows.Close()

	var rules pricing.Rules
	for rows.Next() {
		var (
			r  core.PricingRule
			id int64
			to sql.NullString
		)
		if err := rows.Scan(&id, &r.ModelPattern, &r.InputPer1M, &r.CachedInputPer1M, &r.OutputPer1M, &r.EffectiveFrom, &to); err != nil {
			return nil, fmt.Errorf("store: scan pricing rule: %w", err)
		}
		r.ID = &id
		r.EffectiveTo = stringPtr(to)
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// CountPricingRules reports how many rules are stored.
func (s *Store) CountPricingRules(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pricing_rule`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count pricing rules: %w", err)
	}
	return n, nil
}

// ReplacePricingRules swaps the whole rule set atomically. Legacy per-1k
// columns are kept in step for older readers of the database.
func (s *Store) ReplacePricingRules(ctx context.Context, inputs []core.PricingRuleInput) (pricing.Rules, error) {
	valid, err := pricing.Validate(inputs)
	if err != nil {
		return nil, err
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM pricing_rule`); err != nil {
			return fmt.Errorf("store: clear pricing rules: %w", err)
		}
		for _, r := range valid {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO pricing_rule (
					model_pattern, input_per_1k, cached_input_per_1k, output_per_1k,
					input_per_1m, cached_input_per_1m, output_per_1m, effective_from, effective_to
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
				r.ModelPattern, r.InputPer1M/1000, r.CachedInputPer1M/1000, r.OutputPer1M/1000,
				r.InputPer1M, r.CachedInputPer1M, r.OutputPer1M, r.EffectiveFrom, nullableString(r.EffectiveTo),
			); err != nil {
				return fmt.Errorf("store: insert pricing rule: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.ListPricingRules(ctx)
}

// UpdateEventCosts reprices every usage row of a home with rules. Rows no
// rule covers get a NULL cost. It returns the number of rows visited.
func (s *Store) UpdateEventCosts(ctx context.Context, homeID int64, rules pricing.Rules) (int, error) {
	rows, err := s.AllUsageRows(ctx, homeID)
	if err != nil {
		return 0, err
	}

	tracker := usage.NewTracker()
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE usage_event SET cost_usd = ? WHERE id = ?`)
		if err != nil {
			return fmt.Errorf("store: prepare cost update: %w", err)
		}
		defer stmt.Close()

		for _, row := range rows {
			delta := tracker.Next(row.Source, row.Usage)
			cost := rules.Cost(row.Model, row.TS, delta)
			if _, err := stmt.ExecContext(ctx, nullableFloat64(cost), row.ID); err != nil {
				return fmt.Errorf("store: update event cost: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}
