package coloring

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"leadcolor/internal/conditions"
	"leadcolor/internal/constants"
	"leadcolor/internal/logger"
	pkgerrors "leadcolor/pkg/errors"
	"leadcolor/pkg/logging"
	"leadcolor/pkg/metrics"
	"leadcolor/pkg/models"
	"leadcolor/pkg/tracing"
)

// RuleSource yields the active, ordered rules of a subdomain.
type RuleSource interface {
	Get(ctx context.Context, subdomain string) (Snapshot, error)
}

// TokenProvider hands out CRM access tokens per subdomain.
type TokenProvider interface {
	AccessToken(ctx context.Context, subdomain string) (string, error)
	Invalidate(ctx context.Context, subdomain string) error
}

// LeadSource fetches leads from the CRM keyed by lead id.
type LeadSource interface {
	GetLeads(ctx context.Context, subdomain, token string, ids []int64) (map[int64]conditions.Lead, error)
}

// PassSummary describes one leads styles request.
type PassSummary struct {
	Subdomain  string         `json:"subdomain" bson:"subdomain"`
	RequestID  string         `json:"request_id,omitempty" bson:"request_id,omitempty"`
	Requested  int            `json:"requested" bson:"requested"`
	Fetched    int            `json:"fetched" bson:"fetched"`
	Matched    int            `json:"matched" bson:"matched"`
	Rules      int            `json:"rules" bson:"rules"`
	RuleHits   map[string]int `json:"rule_hits,omitempty" bson:"rule_hits,omitempty"`
	DurationMs int64          `json:"duration_ms" bson:"duration_ms"`
	Status     string         `json:"status" bson:"status"`
	CreatedAt  time.Time      `json:"created_at" bson:"created_at"`
}

type PassRecorder interface {
	RecordPass(ctx context.Context, pass PassSummary) error
}

type TestRuleRequest struct {
	Conditions conditions.Tree `json:"conditions"`
	LeadData   conditions.Lead `json:"lead_data,omitempty"`
	LeadID     int64           `json:"lead_id,omitempty"`
}

type TestRuleResult struct {
	Matches bool                    `json:"matches"`
	Details []conditions.LeafResult `json:"details"`
}

type Service struct {
	rules     RuleSource
	tokens    TokenProvider
	leads     LeadSource
	resolver  *Resolver
	evaluator *conditions.Evaluator
	recorder  PassRecorder
	now       func() time.Time
	logger    logger.Logger
}

type ServiceOption func(*Service)

func WithPassRecorder(recorder PassRecorder) ServiceOption {
	return func(s *Service) {
		s.recorder = recorder
	}
}

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(rules RuleSource, tokens TokenProvider, leads LeadSource, resolver *Resolver, evaluator *conditions.Evaluator, log logger.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		rules:     rules,
		tokens:    tokens,
		leads:     leads,
		resolver:  resolver,
		evaluator: evaluator,
		now:       time.Now,
		logger:    log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LeadsStyles returns the style of every requested lead that matched a rule,
// keyed by the decimal lead id. Leads that match nothing are omitted.
func (s *Service) LeadsStyles(ctx context.Context, subdomain string, leadIDs []int64) (map[string]LeadStyle, error) {
	subdomain, err := models.NormalizeSubdomain(subdomain)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.GetTracer("coloring-service").Start(ctx, "coloring.leads_styles")
	defer span.End()
	span.SetAttributes(
		attribute.String("subdomain", subdomain),
		attribute.Int("leads.requested", len(leadIDs)),
	)

	start := s.now()
	pass := PassSummary{
		Subdomain: subdomain,
		RequestID: logging.GetRequestID(ctx),
		Requested: len(leadIDs),
		CreatedAt: start,
	}

	styles, err := s.leadsStyles(ctx, subdomain, leadIDs, &pass)

	pass.DurationMs = s.now().Sub(start).Milliseconds()
	pass.Matched = len(styles)
	pass.Status = "ok"
	if err != nil {
		pass.Status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.Int("leads.matched", len(styles)))
	metrics.ObserveColoringDuration(s.now().Sub(start), pass.Status)
	s.record(ctx, pass)

	if err != nil {
		return nil, err
	}
	return styles, nil
}

func (s *Service) leadsStyles(ctx context.Context, subdomain string, leadIDs []int64, pass *PassSummary) (map[string]LeadStyle, error) {
	if len(leadIDs) == 0 {
		return map[string]LeadStyle{}, nil
	}

	snap, err := s.rules.Get(ctx, subdomain)
	if err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to load coloring rules", "subdomain", subdomain, "error", err)
		return nil, pkgerrors.ErrServiceUnavailable.WithMessage("rules store unavailable").WithCause(err)
	}
	pass.Rules = len(snap.Rules)
	if len(snap.Rules) == 0 {
		s.logger.DebugwCtx(ctx, "No active rules, skipping CRM fetch", "subdomain", subdomain)
		return map[string]LeadStyle{}, nil
	}

	leads, err := s.fetchLeads(ctx, subdomain, leadIDs)
	if err != nil {
		return nil, err
	}
	pass.Fetched = len(leads)

	resolver := s.resolver.WithEvaluator(s.evaluator.At(s.now()).In(snap.Location))
	styles, err := resolver.ResolveLeadStyles(ctx, snap.Rules, leads, leadIDs)
	if err != nil {
		return nil, pkgerrors.ErrTimeout.WithCause(err)
	}

	pass.RuleHits = make(map[string]int)
	for _, style := range styles {
		pass.RuleHits[strconv.FormatInt(style.MatchedRuleID, 10)]++
	}

	s.logger.InfowCtx(ctx, "Resolved lead styles",
		"subdomain", subdomain,
		"requested", len(leadIDs),
		"fetched", len(leads),
		"matched", len(styles),
		"rules", len(snap.Rules),
	)
	return styles, nil
}

// fetchLeads pulls leads with a cached token. A rejected token is dropped and
// the fetch is attempted once more with a fresh one.
func (s *Service) fetchLeads(ctx context.Context, subdomain string, ids []int64) (map[int64]conditions.Lead, error) {
	leads, err := s.fetchWithToken(ctx, subdomain, ids)
	if pkgerrors.IsUnauthorized(err) {
		s.logger.WarnwCtx(ctx, "CRM rejected access token, refreshing", "subdomain", subdomain)
		if invErr := s.tokens.Invalidate(ctx, subdomain); invErr != nil {
			s.logger.WarnwCtx(ctx, "Failed to invalidate access token", "subdomain", subdomain, "error", invErr)
		}
		leads, err = s.fetchWithToken(ctx, subdomain, ids)
	}
	return leads, err
}

func (s *Service) fetchWithToken(ctx context.Context, subdomain string, ids []int64) (map[int64]conditions.Lead, error) {
	token, err := s.tokens.AccessToken(ctx, subdomain)
	if err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to obtain CRM access token", "subdomain", subdomain, "error", err)
		return nil, upstreamError("token service unavailable", err)
	}

	leads, err := s.leads.GetLeads(ctx, subdomain, token, ids)
	if err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to fetch leads from CRM", "subdomain", subdomain, "error", err)
		return nil, upstreamError("CRM unavailable", err)
	}
	return leads, nil
}

// TestRule evaluates a condition tree against one lead and explains every
// leaf. The lead comes from the request or, when only an id is given, from
// the CRM.
func (s *Service) TestRule(ctx context.Context, subdomain string, req TestRuleRequest) (TestRuleResult, error) {
	subdomain, err := models.NormalizeSubdomain(subdomain)
	if err != nil {
		return TestRuleResult{}, err
	}
	if err := req.Conditions.Validate(); err != nil {
		return TestRuleResult{}, pkgerrors.ErrValidation.WithCause(err)
	}

	lead := req.LeadData
	if lead == nil {
		if req.LeadID <= 0 {
			return TestRuleResult{}, pkgerrors.ErrValidation.WithMessage("lead_data or lead_id is required")
		}
		leads, err := s.fetchLeads(ctx, subdomain, []int64{req.LeadID})
		if err != nil {
			return TestRuleResult{}, err
		}
		var ok bool
		if lead, ok = leads[req.LeadID]; !ok {
			return TestRuleResult{}, pkgerrors.ErrNotFound.WithMessage("lead not found").
				WithDetail("lead_id", req.LeadID)
		}
	}

	loc := s.location(ctx, subdomain)
	report := s.evaluator.At(s.now()).In(loc).Explain(req.Conditions, lead)
	return TestRuleResult{Matches: report.Matches, Details: report.Leaves}, nil
}

func (s *Service) location(ctx context.Context, subdomain string) *time.Location {
	snap, err := s.rules.Get(ctx, subdomain)
	if err != nil || snap.Location == nil {
		loc, locErr := time.LoadLocation(constants.DefaultTimezone)
		if locErr != nil {
			return time.UTC
		}
		return loc
	}
	return snap.Location
}

func (s *Service) record(ctx context.Context, pass PassSummary) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordPass(ctx, pass); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to record coloring pass", "subdomain", pass.Subdomain, "error", err)
	}
}

// upstreamError keeps coded errors from collaborators and wraps the rest.
func upstreamError(message string, err error) error {
	var appErr *pkgerrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return pkgerrors.ErrServiceUnavailable.WithMessage(message).WithCause(err)
}
