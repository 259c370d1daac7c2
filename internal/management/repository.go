package management

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"leadcolor/internal/coloring"
	"leadcolor/internal/logger"
	pkgerrors "leadcolor/pkg/errors"
	"leadcolor/pkg/metrics"
)

const uniqueViolation = "23505"

type Repository interface {
	Create(ctx context.Context, rule *coloring.Rule) error
	Get(ctx context.Context, subdomain string, id int64) (*coloring.Rule, error)
	List(ctx context.Context, subdomain string) ([]coloring.Rule, error)
	Update(ctx context.Context, rule *coloring.Rule) error
	Delete(ctx context.Context, subdomain string, id int64) error
	UpdatePriorities(ctx context.Context, subdomain string, updates []coloring.PriorityUpdate) (int, error)
}

type PostgresRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewRepository(db *sql.DB, log logger.Logger) Repository {
	return &PostgresRepository{db: db, logger: log}
}

func (r *PostgresRepository) Create(ctx context.Context, rule *coloring.Rule) error {
	conds, style, err := encodeRule(rule)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO coloring_rules (subdomain, name, is_active, priority, conditions, style)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	start := time.Now()
	err = r.db.QueryRowContext(ctx, query,
		rule.Subdomain, rule.Name, rule.IsActive, rule.Priority, conds, style,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		metrics.ObserveDatabaseQuery("create_rule", "error", time.Since(start))
		if isUniqueViolation(err) {
			return conflict(rule.Name, err)
		}
		return fmt.Errorf("failed to create rule: %w", err)
	}

	metrics.ObserveDatabaseQuery("create_rule", "ok", time.Since(start))
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, subdomain string, id int64) (*coloring.Rule, error) {
	query := `
		SELECT ` + coloring.RuleColumns + `
		FROM coloring_rules
		WHERE id = $1 AND subdomain = $2
	`

	rule, err := coloring.ScanRule(r.db.QueryRowContext(ctx, query, id, subdomain))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return &rule, nil
}

// List returns every rule of the subdomain, active or not, in evaluation
// order. Rows whose stored JSON no longer decodes are skipped.
func (r *PostgresRepository) List(ctx context.Context, subdomain string) ([]coloring.Rule, error) {
	query := `
		SELECT ` + coloring.RuleColumns + `
		FROM coloring_rules
		WHERE subdomain = $1
		ORDER BY priority DESC, id ASC
	`

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, subdomain)
	if err != nil {
		metrics.ObserveDatabaseQuery("list_rules", "error", time.Since(start))
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	rules := make([]coloring.Rule, 0)
	for rows.Next() {
		rule, err := coloring.ScanRule(rows)
		if errors.Is(err, coloring.ErrMalformedRule) {
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

	metrics.ObserveDatabaseQuery("list_rules", "ok", time.Since(start))
	return rules, nil
}

func (r *PostgresRepository) Update(ctx context.Context, rule *coloring.Rule) error {
	conds, style, err := encodeRule(rule)
	if err != nil {
		return err
	}

	query := `
		UPDATE coloring_rules
		SET name = $1, is_active = $2, priority = $3, conditions = $4, style = $5, updated_at = NOW()
		WHERE id = $6 AND subdomain = $7
		RETURNING updated_at
	`

	start := time.Now()
	err = r.db.QueryRowContext(ctx, query,
		rule.Name, rule.IsActive, rule.Priority, conds, style, rule.ID, rule.Subdomain,
	).Scan(&rule.UpdatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		metrics.ObserveDatabaseQuery("update_rule", "not_found", time.Since(start))
		return notFound(rule.ID)
	case isUniqueViolation(err):
		metrics.ObserveDatabaseQuery("update_rule", "error", time.Since(start))
		return conflict(rule.Name, err)
	case err != nil:
		metrics.ObserveDatabaseQuery("update_rule", "error", time.Since(start))
		return fmt.Errorf("failed to update rule: %w", err)
	}

	metrics.ObserveDatabaseQuery("update_rule", "ok", time.Since(start))
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, subdomain string, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM coloring_rules WHERE id = $1 AND subdomain = $2`, id, subdomain,
	)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

// UpdatePriorities applies all updates in one transaction and returns how
// many rules changed. Ids that belong to another subdomain are ignored.
func (r *PostgresRepository) UpdatePriorities(ctx context.Context, subdomain string, updates []coloring.PriorityUpdate) (int, error) {
	start := time.Now()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE coloring_rules
		SET priority = $1, updated_at = NOW()
		WHERE id = $2 AND subdomain = $3
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare priority update: %w", err)
	}
	defer stmt.Close()

	updated := 0
	for _, u := range updates {
		res, err := stmt.ExecContext(ctx, u.Priority, u.ID, subdomain)
		if err != nil {
			metrics.ObserveDatabaseQuery("update_priorities", "error", time.Since(start))
			return 0, fmt.Errorf("failed to update priority of rule %d: %w", u.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		updated += int(n)
	}

	if err := tx.Commit(); err != nil {
		metrics.ObserveDatabaseQuery("update_priorities", "error", time.Since(start))
		return 0, fmt.Errorf("failed to commit priorities: %w", err)
	}

	metrics.ObserveDatabaseQuery("update_priorities", "ok", time.Since(start))
	return updated, nil
}

func encodeRule(rule *coloring.Rule) ([]byte, []byte, error) {
	conds, err := json.Marshal(rule.Conditions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode conditions: %w", err)
	}
	style, err := json.Marshal(rule.Style)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode style: %w", err)
	}
	return conds, style, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func conflict(name string, err error) error {
	return pkgerrors.ErrConflict.
		WithMessage(fmt.Sprintf("rule with name '%s' already exists", name)).
		WithCause(err)
}

func notFound(id int64) error {
	return pkgerrors.ErrNotFound.WithMessage("rule not found").WithDetail("id", id)
}
