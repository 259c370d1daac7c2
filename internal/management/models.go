package management

import (
	"context"
	"encoding/json"
	"time"

	"leadcolor/internal/coloring"
	"leadcolor/internal/conditions"
)

type CreateRuleRequest struct {
	Name       string           `json:"name" validate:"required,notblank,max=255"`
	IsActive   *bool            `json:"is_active"`
	Priority   int              `json:"priority"`
	Conditions *conditions.Tree `json:"conditions" validate:"required"`
	Style      coloring.Style   `json:"style"`
}

// UpdateRuleRequest changes only the fields that are present.
type UpdateRuleRequest struct {
	Name       *string          `json:"name" validate:"omitempty,max=255"`
	IsActive   *bool            `json:"is_active"`
	Priority   *int             `json:"priority"`
	Conditions *conditions.Tree `json:"conditions"`
	Style      *coloring.Style  `json:"style"`
}

func (r UpdateRuleRequest) empty() bool {
	return r.Name == nil && r.IsActive == nil && r.Priority == nil && r.Conditions == nil && r.Style == nil
}

type PrioritiesRequest struct {
	Priorities []coloring.PriorityUpdate `json:"priorities" validate:"required,min=1,dive"`
}

type PrioritiesResult struct {
	Updated int `json:"updated"`
}

type LeadsStylesRequest struct {
	LeadIDs []int64 `json:"lead_ids" validate:"required,min=1,dive,gt=0"`
}

// AuditEntry is one row of the rule change log. Old and new values hold the
// rule as it was before and after the change.
type AuditEntry struct {
	ID        int64           `json:"id"`
	RuleID    int64           `json:"rule_id"`
	Subdomain string          `json:"subdomain"`
	Action    string          `json:"action"`
	ChangedBy string          `json:"changed_by"`
	OldValue  json.RawMessage `json:"old_value,omitempty" swaggertype:"object"`
	NewValue  json.RawMessage `json:"new_value,omitempty" swaggertype:"object"`
	CreatedAt time.Time       `json:"created_at"`
}

type changedByKey struct{}

// WithChangedBy records who is making the change for the audit log.
func WithChangedBy(ctx context.Context, who string) context.Context {
	if who == "" {
		return ctx
	}
	return context.WithValue(ctx, changedByKey{}, who)
}

func changedBy(ctx context.Context) string {
	if who, ok := ctx.Value(changedByKey{}).(string); ok && who != "" {
		return who
	}
	return "system"
}
