package coloring

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"leadcolor/internal/logger"
	"leadcolor/pkg/metrics"
)

// ErrMalformedRule marks a stored rule whose conditions or style no longer decode.
var ErrMalformedRule = errors.New("malformed stored rule")

// RuleColumns is the column list ScanRule expects, in order.
const RuleColumns = "id, subdomain, name, is_active, priority, conditions, style, created_at, updated_at"

type Repository interface {
	ListActive(ctx context.Context, subdomain string) ([]Rule, error)
	// Timezone returns "" when the subdomain has no setting of its own.
	Timezone(ctx context.Context, subdomain string) (string, error)
}

type PostgresRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewRepository(db *sql.DB, log logger.Logger) Repository {
	return &PostgresRepository{db: db, logger: log}
}

type scanner interface {
	Scan(dest ...any) error
}

// ScanRule reads one row selected with RuleColumns.
func ScanRule(row scanner) (Rule, error) {
	var (
		rule       Rule
		conditions []byte
		style      []byte
	)
	if err := row.Scan(
		&rule.ID,
		&rule.Subdomain,
		&rule.Name,
		&rule.IsActive,
		&rule.Priority,
		&conditions,
		&style,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		return Rule{}, err
	}

	if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
		return rule, fmt.Errorf("%w: rule %d conditions: %v", ErrMalformedRule, rule.ID, err)
	}
	if err := json.Unmarshal(style, &rule.Style); err != nil {
		return rule, fmt.Errorf("%w: rule %d style: %v", ErrMalformedRule, rule.ID, err)
	}
	return rule, nil
}

func (r *PostgresRepository) ListActive(ctx context.Context, subdomain string) ([]Rule, error) {
	query := `
		SELECT ` + RuleColumns + `
		FROM coloring_rules
		WHERE subdomain = $1 AND is_active = true
		ORDER BY priority DESC, id ASC
	`

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, subdomain)
	if err != nil {
		metrics.ObserveDatabaseQuery("list_active_rules", "error", time.Since(start))
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	rules := make([]Rule, 0)
	for rows.Next() {
		rule, err := ScanRule(rows)
		if errors.Is(err, ErrMalformedRule) {
			r.logger.ErrorwCtx(ctx, "Skipping stored rule that cannot be decoded",
				"rule_id", rule.ID,
				"error", err,
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	metrics.ObserveDatabaseQuery("list_active_rules", "ok", time.Since(start))
	return rules, nil
}

func (r *PostgresRepository) Timezone(ctx context.Context, subdomain string) (string, error) {
	var tz string
	err := r.db.QueryRowContext(ctx,
		`SELECT timezone FROM subdomain_settings WHERE subdomain = $1`, subdomain,
	).Scan(&tz)

	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query subdomain settings: %w", err)
	}
	return tz, nil
}
