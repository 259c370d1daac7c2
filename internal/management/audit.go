package management

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

type AuditLog interface {
	Record(ctx context.Context, entry AuditEntry) error
	List(ctx context.Context, subdomain string, ruleID int64, limit int) ([]AuditEntry, error)
}

type PostgresAuditLog struct {
	db *sql.DB
}

func NewAuditLog(db *sql.DB) *PostgresAuditLog {
	return &PostgresAuditLog{db: db}
}

func (a *PostgresAuditLog) Record(ctx context.Context, entry AuditEntry) error {
	query := `
		INSERT INTO coloring_rule_audit (rule_id, subdomain, action, changed_by, old_value, new_value)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	var ruleID *int64
	if entry.RuleID != 0 {
		ruleID = &entry.RuleID
	}

	_, err := a.db.ExecContext(ctx, query,
		ruleID, entry.Subdomain, entry.Action, entry.ChangedBy,
		nullableJSON(entry.OldValue), nullableJSON(entry.NewValue),
	)
	if err != nil {
		return fmt.Errorf("failed to log audit entry: %w", err)
	}
	return nil
}

// List returns the newest entries of a subdomain first. A zero ruleID lists
// changes to every rule.
func (a *PostgresAuditLog) List(ctx context.Context, subdomain string, ruleID int64, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	query := `
		SELECT id, COALESCE(rule_id, 0), subdomain, action, changed_by, old_value, new_value, created_at
		FROM coloring_rule_audit
		WHERE subdomain = $1 AND ($2::BIGINT = 0 OR rule_id = $2::BIGINT)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	rows, err := a.db.QueryContext(ctx, query, subdomain, ruleID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]AuditEntry, 0)
	for rows.Next() {
		var (
			e        AuditEntry
			oldValue []byte
			newValue []byte
		)
		if err := rows.Scan(&e.ID, &e.RuleID, &e.Subdomain, &e.Action, &e.ChangedBy, &oldValue, &newValue, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.OldValue = oldValue
		e.NewValue = newValue
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return entries, nil
}

func nullableJSON(v json.RawMessage) interface{} {
	if len(v) == 0 {
		return nil
	}
	return []byte(v)
}
