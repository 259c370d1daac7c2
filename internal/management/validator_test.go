package management

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadcolor/internal/coloring"
	pkgerrors "leadcolor/pkg/errors"
)

func validationDetails(t *testing.T, err error) map[string]interface{} {
	t.Helper()
	var appErr *pkgerrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, pkgerrors.ErrValidation.Code, appErr.Code)
	return appErr.Details
}

func TestValidateCreateRule_FieldPaths(t *testing.T) {
	req := validCreate(strings.Repeat("x", 256))
	req.Style = coloring.Style{TextColor: strings.Repeat("a", 33)}

	details := validationDetails(t, ValidateCreateRule(req))

	assert.Equal(t, "max", details["name"])
	assert.Equal(t, "max", details["style.text_color"])
	assert.Equal(t, "required", details["style.background_color"])
}

func TestValidateCreateRule_BlankName(t *testing.T) {
	details := validationDetails(t, ValidateCreateRule(validCreate("   ")))
	assert.Equal(t, "notblank", details["name"])
}

func TestValidateCreateRule_Tree(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"equals", `{"type":"AND","rules":[{"field":"price","operator":"equals","value":5}]}`, false},
		{"empty tree", `{"type":"OR","rules":[]}`, false},
		{"between pair", `{"type":"AND","rules":[{"field":"price","operator":"between","value":[1,2]}]}`, false},
		{"between scalar", `{"type":"AND","rules":[{"field":"price","operator":"between","value":3}]}`, true},
		{"negative days", `{"type":"AND","rules":[{"field":"created_at","operator":"last_n_days","value":-1}]}`, true},
		{"bad date", `{"type":"AND","rules":[{"field":"created_at","operator":"after","value":"soon"}]}`, true},
		{"empty field", `{"type":"AND","rules":[{"field":"","operator":"is_empty"}]}`, true},
		{"missing value", `{"type":"AND","rules":[{"field":"name","operator":"contains"}]}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreate("rule")
			require.NoError(t, json.Unmarshal([]byte(tt.body), req.Conditions))

			err := ValidateCreateRule(req)
			if tt.wantErr {
				assert.True(t, pkgerrors.IsValidation(err), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateRuleRequest_RejectsUnknownOperator(t *testing.T) {
	body := `{"name":"r","conditions":{"type":"AND","rules":[{"field":"x","operator":"matches"}]},"style":{"text_color":"#000","background_color":"#fff"}}`

	var req CreateRuleRequest
	assert.Error(t, json.Unmarshal([]byte(body), &req))
}

func TestValidateLeadsStyles(t *testing.T) {
	assert.NoError(t, ValidateLeadsStyles(LeadsStylesRequest{LeadIDs: []int64{1, 2}}, 2))
	assert.True(t, pkgerrors.IsValidation(ValidateLeadsStyles(LeadsStylesRequest{LeadIDs: []int64{1, 2, 3}}, 2)))
	assert.True(t, pkgerrors.IsValidation(ValidateLeadsStyles(LeadsStylesRequest{}, 2)))

	details := validationDetails(t, ValidateLeadsStyles(LeadsStylesRequest{LeadIDs: []int64{1, 0}}, 0))
	assert.Equal(t, "gt", details["lead_ids[1]"])
}

func TestValidatePriorities_FieldPath(t *testing.T) {
	details := validationDetails(t, ValidatePriorities(PrioritiesRequest{
		Priorities: []coloring.PriorityUpdate{{ID: 3, Priority: 1}, {Priority: 2}},
	}))
	assert.Equal(t, "required", details["priorities[1].id"])
}
