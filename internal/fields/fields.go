// Package fields lists the lead fields a coloring rule can reference.
package fields

import (
	"context"
	"errors"
	"strconv"

	"leadcolor/internal/amocrm"
	"leadcolor/internal/coloring"
	"leadcolor/internal/conditions"
	"leadcolor/internal/logger"
	pkgerrors "leadcolor/pkg/errors"
	"leadcolor/pkg/models"
)

type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeEnum    Type = "enum"
	TypeDate    Type = "date"
	TypeBoolean Type = "boolean"
)

type Field struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Type      Type                  `json:"type"`
	Code      string                `json:"code,omitempty"`
	Custom    bool                  `json:"custom"`
	Operators []conditions.Operator `json:"operators"`
}

var standardFields = []Field{
	{ID: "name", Name: "Name", Type: TypeString},
	{ID: "price", Name: "Budget", Type: TypeNumber},
	{ID: "status_id", Name: "Status", Type: TypeEnum},
	{ID: "pipeline_id", Name: "Pipeline", Type: TypeEnum},
	{ID: "responsible_user_id", Name: "Responsible user", Type: TypeEnum},
	{ID: "created_at", Name: "Created at", Type: TypeDate},
	{ID: "updated_at", Name: "Updated at", Type: TypeDate},
	{ID: "closed_at", Name: "Closed at", Type: TypeDate},
}

// TypeOf maps a CRM custom field type onto a rule field type.
func TypeOf(crmType string) Type {
	switch crmType {
	case "numeric":
		return TypeNumber
	case "date", "date_time":
		return TypeDate
	case "select", "multiselect", "radiobutton":
		return TypeEnum
	case "checkbox":
		return TypeBoolean
	default:
		return TypeString
	}
}

// OperatorsFor lists the operators that make sense for values of t.
func OperatorsFor(t Type) []conditions.Operator {
	presence := conditions.OperatorsOf(conditions.ClassPresence)
	equality := []conditions.Operator{conditions.OpEquals, conditions.OpNotEquals}

	var ops []conditions.Operator
	switch t {
	case TypeNumber:
		ops = append(ops, equality...)
		ops = append(ops, conditions.OperatorsOf(conditions.ClassNumeric, conditions.ClassList)...)
	case TypeEnum:
		ops = append(ops, equality...)
		ops = append(ops, conditions.OperatorsOf(conditions.ClassList)...)
	case TypeDate:
		ops = conditions.OperatorsOf(conditions.ClassDate)
	case TypeBoolean:
		ops = equality
	default:
		ops = conditions.OperatorsOf(conditions.ClassText, conditions.ClassList)
	}
	return append(presence, ops...)
}

type CustomFieldSource interface {
	GetLeadCustomFields(ctx context.Context, subdomain, token string) ([]amocrm.CustomField, error)
}

type Service struct {
	tokens coloring.TokenProvider
	source CustomFieldSource
	logger logger.Logger
}

func NewService(tokens coloring.TokenProvider, source CustomFieldSource, log logger.Logger) *Service {
	return &Service{tokens: tokens, source: source, logger: log}
}

// DealFields returns the standard lead fields followed by the subdomain's
// custom fields.
func (s *Service) DealFields(ctx context.Context, subdomain string) ([]Field, error) {
	subdomain, err := models.NormalizeSubdomain(subdomain)
	if err != nil {
		return nil, err
	}

	custom, err := s.customFields(ctx, subdomain)
	if pkgerrors.IsUnauthorized(err) {
		s.logger.WarnwCtx(ctx, "CRM rejected access token, refreshing", "subdomain", subdomain)
		if invErr := s.tokens.Invalidate(ctx, subdomain); invErr != nil {
			s.logger.WarnwCtx(ctx, "Failed to invalidate access token", "subdomain", subdomain, "error", invErr)
		}
		custom, err = s.customFields(ctx, subdomain)
	}
	if err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to fetch custom fields", "subdomain", subdomain, "error", err)
		var appErr *pkgerrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, pkgerrors.ErrServiceUnavailable.WithMessage("CRM unavailable").WithCause(err)
	}

	out := make([]Field, 0, len(standardFields)+len(custom))
	for _, f := range standardFields {
		f.Operators = OperatorsFor(f.Type)
		out = append(out, f)
	}
	for _, cf := range custom {
		t := TypeOf(cf.Type)
		out = append(out, Field{
			ID:        strconv.FormatInt(cf.ID, 10),
			Name:      cf.Name,
			Type:      t,
			Code:      cf.Code,
			Custom:    true,
			Operators: OperatorsFor(t),
		})
	}

	s.logger.InfowCtx(ctx, "Listed deal fields", "subdomain", subdomain, "count", len(out))
	return out, nil
}

func (s *Service) customFields(ctx context.Context, subdomain string) ([]amocrm.CustomField, error) {
	token, err := s.tokens.AccessToken(ctx, subdomain)
	if err != nil {
		return nil, err
	}
	return s.source.GetLeadCustomFields(ctx, subdomain, token)
}
