package management

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"leadcolor/internal/conditions"
	pkgerrors "leadcolor/pkg/errors"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

func ValidateCreateRule(req CreateRuleRequest) error {
	if err := validateStruct(req); err != nil {
		return err
	}
	return validateTree(*req.Conditions)
}

func ValidateUpdateRule(req UpdateRuleRequest) error {
	if req.empty() {
		return pkgerrors.ErrValidation.WithMessage("nothing to update")
	}
	if err := validateStruct(req); err != nil {
		return err
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return pkgerrors.ErrValidation.WithMessage("name must not be blank").WithDetail("name", "notblank")
	}
	if req.Conditions != nil {
		return validateTree(*req.Conditions)
	}
	return nil
}

func ValidatePriorities(req PrioritiesRequest) error {
	if err := validateStruct(req); err != nil {
		return err
	}
	seen := make(map[int64]struct{}, len(req.Priorities))
	for _, p := range req.Priorities {
		if _, dup := seen[p.ID]; dup {
			return pkgerrors.ErrValidation.WithMessage("duplicate rule id in priorities").WithDetail("id", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

func ValidateLeadsStyles(req LeadsStylesRequest, limit int) error {
	if err := validateStruct(req); err != nil {
		return err
	}
	if limit > 0 && len(req.LeadIDs) > limit {
		return pkgerrors.ErrValidation.WithMessage(fmt.Sprintf("at most %d lead ids per request", limit))
	}
	return nil
}

// validateStruct runs the struct tags and reports failures by JSON field path.
func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return pkgerrors.ErrValidation.WithCause(err)
	}

	appErr := pkgerrors.ErrValidation
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		path := fieldPath(fe.Namespace())
		appErr = appErr.WithDetail(path, fe.Tag())
		fields = append(fields, path)
	}
	return appErr.WithMessage("invalid fields: " + strings.Join(fields, ", "))
}

func validateTree(tree conditions.Tree) error {
	if err := tree.Validate(); err != nil {
		return pkgerrors.ErrValidation.WithMessage("invalid conditions").WithCause(err)
	}
	return nil
}

// fieldPath drops the struct name validator puts in front of the namespace.
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}
