package management

import (
	"context"

	"leadcolor/internal/coloring"
	"leadcolor/internal/fields"
)

type Service interface {
	CreateRule(ctx context.Context, subdomain string, req CreateRuleRequest) (*coloring.Rule, error)
	ListRules(ctx context.Context, subdomain string) ([]coloring.Rule, error)
	GetRule(ctx context.Context, subdomain string, id int64) (*coloring.Rule, error)
	UpdateRule(ctx context.Context, subdomain string, id int64, req UpdateRuleRequest) (*coloring.Rule, error)
	DeleteRule(ctx context.Context, subdomain string, id int64) error
	UpdatePriorities(ctx context.Context, subdomain string, req PrioritiesRequest) (PrioritiesResult, error)
	GetAuditLog(ctx context.Context, subdomain string, ruleID int64, limit int) ([]AuditEntry, error)
}

// Colorer resolves lead styles and dry-runs condition trees.
type Colorer interface {
	LeadsStyles(ctx context.Context, subdomain string, leadIDs []int64) (map[string]coloring.LeadStyle, error)
	TestRule(ctx context.Context, subdomain string, req coloring.TestRuleRequest) (coloring.TestRuleResult, error)
}

type FieldLister interface {
	DealFields(ctx context.Context, subdomain string) ([]fields.Field, error)
}

type HistoryReader interface {
	Recent(ctx context.Context, subdomain string, limit int) ([]coloring.PassSummary, error)
}
