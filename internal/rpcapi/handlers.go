// Package rpcapi serves the coloring queues over broker request/reply.
package rpcapi

import (
	"context"
	"strings"

	"leadcolor/internal/broker"
	"leadcolor/internal/coloring"
	"leadcolor/internal/constants"
	"leadcolor/internal/logger"
	"leadcolor/internal/management"
	pkgerrors "leadcolor/pkg/errors"
	"leadcolor/pkg/health"
	"leadcolor/pkg/logging"
	"leadcolor/pkg/models"
)

type HealthChecker interface {
	Check(ctx context.Context) health.Health
}

type Handlers struct {
	rules    management.Service
	colorer  management.Colorer
	fields   management.FieldLister
	health   HealthChecker
	service  string
	maxLeads int
	logger   logger.Logger
}

type Option func(*Handlers)

func WithHealth(checker HealthChecker) Option {
	return func(h *Handlers) {
		h.health = checker
	}
}

func WithMaxLeads(n int) Option {
	return func(h *Handlers) {
		h.maxLeads = n
	}
}

func NewHandlers(rules management.Service, colorer management.Colorer, fields management.FieldLister, service string, log logger.Logger, opts ...Option) *Handlers {
	h := &Handlers{
		rules:    rules,
		colorer:  colorer,
		fields:   fields,
		service:  service,
		maxLeads: constants.MaxLeadsPerRequest,
		logger:   log,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes maps every request queue to its consumer handler.
func (h *Handlers) Routes(server *broker.RPCServer) map[string]broker.HandlerFunc {
	return map[string]broker.HandlerFunc{
		constants.QueueRulesCreate:      server.Handle(constants.QueueRulesCreate, h.CreateRule),
		constants.QueueRulesUpdate:      server.Handle(constants.QueueRulesUpdate, h.UpdateRule),
		constants.QueueRulesList:        server.Handle(constants.QueueRulesList, h.ListRules),
		constants.QueueRulesDelete:      server.Handle(constants.QueueRulesDelete, h.DeleteRule),
		constants.QueueRulesTest:        server.Handle(constants.QueueRulesTest, h.TestRule),
		constants.QueuePrioritiesUpdate: server.Handle(constants.QueuePrioritiesUpdate, h.UpdatePriorities),
		constants.QueueLeadsStyles:      server.Handle(constants.QueueLeadsStyles, h.LeadsStyles),
		constants.QueueFieldsGet:        server.Handle(constants.QueueFieldsGet, h.DealFields),
		constants.QueueHealth:           server.Handle(constants.QueueHealth, h.Health),
	}
}

type subdomainRequest struct {
	Subdomain string `json:"subdomain"`
}

type createRequest struct {
	Subdomain string `json:"subdomain"`
	management.CreateRuleRequest
}

type updateRequest struct {
	Subdomain string `json:"subdomain"`
	RuleID    int64  `json:"rule_id"`
	management.UpdateRuleRequest
}

type deleteRequest struct {
	Subdomain string `json:"subdomain"`
	RuleID    int64  `json:"rule_id"`
}

type prioritiesRequest struct {
	Subdomain string `json:"subdomain"`
	management.PrioritiesRequest
}

type testRequest struct {
	Subdomain string `json:"subdomain"`
	coloring.TestRuleRequest
}

type stylesRequest struct {
	Subdomain string `json:"subdomain"`
	management.LeadsStylesRequest
}

type ruleReply struct {
	ID   int64          `json:"id"`
	Rule *coloring.Rule `json:"rule"`
}

type rulesReply struct {
	Rules []coloring.Rule `json:"rules"`
}

type stylesReply struct {
	Styles map[string]coloring.LeadStyle `json:"styles"`
}

type fieldsReply struct {
	Fields interface{} `json:"fields"`
}

type healthReply struct {
	Status  health.Status                 `json:"status"`
	Service string                        `json:"service"`
	Checks  map[string]health.CheckResult `json:"checks,omitempty"`
}

func (h *Handlers) CreateRule(ctx context.Context, msg models.MessageEnvelope) (interface{}, error) {
	var req createRequest
	ctx, err := decode(ctx, msg, &req, &req.Subdomain)
	if err != nil {
		return nil, err
	}

	rule, err := h.rules.CreateRule(ctx, req.Subdomain, req.CreateRuleRequest)
	if err != nil {
		return nil, err
	}
	return ruleReply{ID: rule.ID, Rule: rule}, nil
}

func (h *Handlers) UpdateRule(ctx context.Context, msg models.MessageEnvelope) (interface{}, error) {
	var req updateRequest
	ctx, err := decode(ctx, msg, &req, &req.Subdomain)
	if err != nil {
		return nil, err
	}
	if req.RuleID <= 0 {
		return nil, pkgerrors.ErrValidation.WithMessage("rule_id is required")
	}

	rule, err := h.rules.UpdateRule(ctx, req.Subdomain, req.RuleID, req.UpdateRuleRequest)
	if err != nil {
		return nil, err
	}
	return ruleReply{ID: rule.ID, Rule: rule}, nil
}

func (h *Handlers) ListRules(ctx context.Context, msg models.MessageEnvelope) (interface{}, error) {
	var req subdomainRequest
	ctx, err := decode(ctx, msg, &req, &req.Subdomain)
	if err != nil {
		return nil, err
	}

	rules, err := h.rules.ListRules(ctx, req.Subdomain)
	if err != nil {
		return nil, err
	}
	return rulesReply{Rules: rules}, nil
}

func (h *Handlers) DeleteRule(ctx context.Context, msg models.MessageEnvelope) (interface{}, error) {
	var req deleteRequest
	ctx, err := decode(ctx, msg, &req, &req.Subdomain)
	if err != nil {
		return nil, err
	}
	if req.RuleID <= 0 {
		return nil, pkgerrors.ErrValidation.WithMessage("rule_id is required")
	}

	if err := h.rules.DeleteRule(ctx, req.Subdomain, req.RuleID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (h *Handlers) UpdatePriorities(ctx context.Context, msg models.MessageEnvelope) (interface{}, error) {
	var req prioritiesRequest
	ctx, err := decode(ctx, msg, &req, &req.Subdomain)
	if err != nil {
		return nil, err
	}
	return h.rules.UpdatePriorities(ctx, req.Subdomain, req.PrioritiesRequest)
}

func (h *Handlers) TestRule(ctx context.Context, msg models.MessageEnvelope) (interface{}, error) {
	var req testRequest
	ctx, err := decode(ctx, msg, &req, &req.Subdomain)
	if err != nil {
		return nil, err
	}
	return h.colorer.TestRule(ctx, req.Subdomain, req.TestRuleRequest)
}

func (h *Handlers) LeadsStyles(ctx context.Context, msg models.MessageEnvelope) (interface{}, error) {
	var req stylesRequest
	ctx, err := decode(ctx, msg, &req, &req.Subdomain)
	if err != nil {
		return nil, err
	}
	if err := management.ValidateLeadsStyles(req.LeadsStylesRequest, h.maxLeads); err != nil {
		return nil, err
	}

	styles, err := h.colorer.LeadsStyles(ctx, req.Subdomain, req.LeadIDs)
	if err != nil {
		return nil, err
	}
	return stylesReply{Styles: styles}, nil
}

func (h *Handlers) DealFields(ctx context.Context, msg models.MessageEnvelope) (interface{}, error) {
	var req subdomainRequest
	ctx, err := decode(ctx, msg, &req, &req.Subdomain)
	if err != nil {
		return nil, err
	}

	list, err := h.fields.DealFields(ctx, req.Subdomain)
	if err != nil {
		return nil, err
	}
	return fieldsReply{Fields: list}, nil
}

// Health answers without looking at the payload.
func (h *Handlers) Health(ctx context.Context, _ models.MessageEnvelope) (interface{}, error) {
	reply := healthReply{Status: health.StatusHealthy, Service: h.service}
	if h.health != nil {
		report := h.health.Check(ctx)
		reply.Status = report.Status
		reply.Checks = report.Checks
	}
	return reply, nil
}

// decode reads the payload into v and fills the subdomain from the envelope
// metadata when the payload has none. The returned context carries the
// subdomain and the sender for logs and the audit trail.
func decode(ctx context.Context, msg models.MessageEnvelope, v interface{}, subdomain *string) (context.Context, error) {
	if err := msg.DecodePayload(v); err != nil {
		return ctx, pkgerrors.ErrValidation.WithMessage("invalid payload").WithCause(err)
	}

	if strings.TrimSpace(*subdomain) == "" {
		*subdomain = msg.Metadata.Subdomain
	}
	normalized, err := models.NormalizeSubdomain(*subdomain)
	if err != nil {
		return ctx, err
	}
	*subdomain = normalized

	ctx = logging.WithSubdomain(ctx, *subdomain)
	ctx = management.WithChangedBy(ctx, msg.Source)
	return ctx, nil
}
