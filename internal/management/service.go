package management

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"leadcolor/internal/coloring"
	"leadcolor/internal/logger"
	pkgerrors "leadcolor/pkg/errors"
	"leadcolor/pkg/metrics"
	"leadcolor/pkg/models"
)

type service struct {
	repo   Repository
	audit  AuditLog
	events EventPublisher
	logger logger.Logger
}

type ServiceOption func(*service)

func WithAuditLog(audit AuditLog) ServiceOption {
	return func(s *service) {
		s.audit = audit
	}
}

func WithEvents(events EventPublisher) ServiceOption {
	return func(s *service) {
		s.events = events
	}
}

func NewService(repo Repository, log logger.Logger, opts ...ServiceOption) Service {
	s := &service{
		repo:   repo,
		logger: log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) CreateRule(ctx context.Context, subdomain string, req CreateRuleRequest) (*coloring.Rule, error) {
	subdomain, err := models.NormalizeSubdomain(subdomain)
	if err != nil {
		return nil, err
	}
	if err := ValidateCreateRule(req); err != nil {
		return nil, err
	}

	rule := &coloring.Rule{
		Subdomain:  subdomain,
		Name:       strings.TrimSpace(req.Name),
		IsActive:   req.IsActive == nil || *req.IsActive,
		Priority:   req.Priority,
		Conditions: *req.Conditions,
		Style:      req.Style,
	}

	if err := s.repo.Create(ctx, rule); err != nil {
		metrics.IncRuleMutation(models.ActionCreate, "error")
		return nil, storeError(err)
	}
	metrics.IncRuleMutation(models.ActionCreate, "ok")

	s.logger.InfowCtx(ctx, "Created coloring rule", "subdomain", subdomain, "rule_id", rule.ID, "name", rule.Name)
	s.afterChange(ctx, rule.Subdomain, rule.ID, models.ActionCreate, nil, rule)
	return rule, nil
}

func (s *service) ListRules(ctx context.Context, subdomain string) ([]coloring.Rule, error) {
	subdomain, err := models.NormalizeSubdomain(subdomain)
	if err != nil {
		return nil, err
	}
	rules, err := s.repo.List(ctx, subdomain)
	if err != nil {
		return nil, storeError(err)
	}
	return rules, nil
}

func (s *service) GetRule(ctx context.Context, subdomain string, id int64) (*coloring.Rule, error) {
	subdomain, err := models.NormalizeSubdomain(subdomain)
	if err != nil {
		return nil, err
	}
	rule, err := s.repo.Get(ctx, subdomain, id)
	if err != nil {
		return nil, storeError(err)
	}
	return rule, nil
}

func (s *service) UpdateRule(ctx context.Context, subdomain string, id int64, req UpdateRuleRequest) (*coloring.Rule, error) {
	subdomain, err := models.NormalizeSubdomain(subdomain)
	if err != nil {
		return nil, err
	}
	if err := ValidateUpdateRule(req); err != nil {
		return nil, err
	}

	rule, err := s.repo.Get(ctx, subdomain, id)
	if err != nil {
		return nil, storeError(err)
	}
	before := *rule
	applyUpdate(rule, req)

	if err := s.repo.Update(ctx, rule); err != nil {
		metrics.IncRuleMutation(models.ActionUpdate, "error")
		return nil, storeError(err)
	}
	metrics.IncRuleMutation(models.ActionUpdate, "ok")

	s.logger.InfowCtx(ctx, "Updated coloring rule", "subdomain", subdomain, "rule_id", rule.ID)
	s.afterChange(ctx, subdomain, rule.ID, models.ActionUpdate, &before, rule)
	return rule, nil
}

func (s *service) DeleteRule(ctx context.Context, subdomain string, id int64) error {
	subdomain, err := models.NormalizeSubdomain(subdomain)
	if err != nil {
		return err
	}

	rule, err := s.repo.Get(ctx, subdomain, id)
	if err != nil {
		return storeError(err)
	}
	if err := s.repo.Delete(ctx, subdomain, id); err != nil {
		metrics.IncRuleMutation(models.ActionDelete, "error")
		return storeError(err)
	}
	metrics.IncRuleMutation(models.ActionDelete, "ok")

	s.logger.InfowCtx(ctx, "Deleted coloring rule", "subdomain", subdomain, "rule_id", id)
	s.afterChange(ctx, subdomain, id, models.ActionDelete, rule, nil)
	return nil
}

func (s *service) UpdatePriorities(ctx context.Context, subdomain string, req PrioritiesRequest) (PrioritiesResult, error) {
	subdomain, err := models.NormalizeSubdomain(subdomain)
	if err != nil {
		return PrioritiesResult{}, err
	}
	if err := ValidatePriorities(req); err != nil {
		return PrioritiesResult{}, err
	}

	updated, err := s.repo.UpdatePriorities(ctx, subdomain, req.Priorities)
	if err != nil {
		metrics.IncRuleMutation(models.ActionPriorities, "error")
		return PrioritiesResult{}, storeError(err)
	}
	metrics.IncRuleMutation(models.ActionPriorities, "ok")

	s.logger.InfowCtx(ctx, "Updated rule priorities",
		"subdomain", subdomain,
		"requested", len(req.Priorities),
		"updated", updated,
	)
	if updated > 0 {
		s.recordAudit(ctx, AuditEntry{
			Subdomain: subdomain,
			Action:    models.ActionPriorities,
			NewValue:  marshalValue(req.Priorities),
		})
		s.publish(ctx, subdomain, models.ActionPriorities, 0)
	}
	return PrioritiesResult{Updated: updated}, nil
}

func (s *service) GetAuditLog(ctx context.Context, subdomain string, ruleID int64, limit int) ([]AuditEntry, error) {
	subdomain, err := models.NormalizeSubdomain(subdomain)
	if err != nil {
		return nil, err
	}
	if s.audit == nil {
		return nil, pkgerrors.ErrServiceUnavailable.WithMessage("audit log not enabled")
	}
	entries, err := s.audit.List(ctx, subdomain, ruleID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return entries, nil
}

// afterChange writes the audit record and announces the change. Neither
// failure undoes the mutation.
func (s *service) afterChange(ctx context.Context, subdomain string, ruleID int64, action string, before, after *coloring.Rule) {
	entry := AuditEntry{
		RuleID:    ruleID,
		Subdomain: subdomain,
		Action:    action,
	}
	if before != nil {
		entry.OldValue = marshalValue(before)
	}
	if after != nil {
		entry.NewValue = marshalValue(after)
	}
	s.recordAudit(ctx, entry)
	s.publish(ctx, subdomain, action, ruleID)
}

func (s *service) recordAudit(ctx context.Context, entry AuditEntry) {
	if s.audit == nil {
		return
	}
	entry.ChangedBy = changedBy(ctx)
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to write audit entry",
			"subdomain", entry.Subdomain,
			"rule_id", entry.RuleID,
			"action", entry.Action,
			"error", err,
		)
	}
}

func (s *service) publish(ctx context.Context, subdomain, action string, ruleID int64) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishRulesChanged(ctx, subdomain, action, ruleID); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to publish rules changed event",
			"subdomain", subdomain,
			"rule_id", ruleID,
			"action", action,
			"error", err,
		)
	}
}

func applyUpdate(rule *coloring.Rule, req UpdateRuleRequest) {
	if req.Name != nil {
		rule.Name = strings.TrimSpace(*req.Name)
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.Conditions != nil {
		rule.Conditions = *req.Conditions
	}
	if req.Style != nil {
		rule.Style = *req.Style
	}
}

// storeError keeps coded errors from the repository and wraps the rest.
func storeError(err error) error {
	var appErr *pkgerrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return pkgerrors.ErrInternal.WithCause(err)
}

func marshalValue(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
