package management

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadcolor/internal/coloring"
	"leadcolor/internal/logger"
	pkgerrors "leadcolor/pkg/errors"
	"leadcolor/pkg/models"
)

type serviceFixture struct {
	svc    Service
	repo   *memoryRepo
	audit  *memoryAudit
	events *recordingEvents
}

func newFixture() serviceFixture {
	f := serviceFixture{
		repo:   newMemoryRepo(),
		audit:  &memoryAudit{},
		events: &recordingEvents{},
	}
	f.svc = NewService(f.repo, logger.NopLogger(), WithAuditLog(f.audit), WithEvents(f.events))
	return f
}

func TestService_CreateRule(t *testing.T) {
	f := newFixture()
	ctx := WithChangedBy(context.Background(), "alice")

	rule, err := f.svc.CreateRule(ctx, " acme ", validCreate("  Won deals "))
	require.NoError(t, err)

	assert.Equal(t, int64(1), rule.ID)
	assert.Equal(t, "acme", rule.Subdomain)
	assert.Equal(t, "Won deals", rule.Name)
	assert.True(t, rule.IsActive, "is_active defaults to true")
	assert.Equal(t, 5, rule.Priority)

	require.Len(t, f.audit.entries, 1)
	entry := f.audit.entries[0]
	assert.Equal(t, models.ActionCreate, entry.Action)
	assert.Equal(t, "alice", entry.ChangedBy)
	assert.Empty(t, entry.OldValue)

	var stored coloring.Rule
	require.NoError(t, json.Unmarshal(entry.NewValue, &stored))
	assert.Equal(t, rule.Name, stored.Name)

	assert.Equal(t, []publishedEvent{{Subdomain: "acme", Action: models.ActionCreate, RuleID: 1}}, f.events.events)
}

func TestService_CreateRule_Inactive(t *testing.T) {
	f := newFixture()
	req := validCreate("paused")
	req.IsActive = ptr(false)

	rule, err := f.svc.CreateRule(context.Background(), "acme", req)
	require.NoError(t, err)
	assert.False(t, rule.IsActive)
}

func TestService_CreateRule_Validation(t *testing.T) {
	tests := []struct {
		name      string
		subdomain string
		mutate    func(*CreateRuleRequest)
	}{
		{"missing subdomain", "  ", func(*CreateRuleRequest) {}},
		{"empty name", "acme", func(r *CreateRuleRequest) { r.Name = "" }},
		{"missing conditions", "acme", func(r *CreateRuleRequest) { r.Conditions = nil }},
		{"missing colour", "acme", func(r *CreateRuleRequest) { r.Style.BackgroundColor = "" }},
		{"bad between", "acme", func(r *CreateRuleRequest) {
			r.Conditions.Rules[0].Operator = "between"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := validCreate("rule")
			tt.mutate(&req)

			_, err := f.svc.CreateRule(context.Background(), tt.subdomain, req)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err), "got %v", err)
			assert.Empty(t, f.repo.rules)
			assert.Empty(t, f.events.events)
		})
	}
}

func TestService_CreateRule_Conflict(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.CreateRule(ctx, "acme", validCreate("dup"))
	require.NoError(t, err)
	_, err = f.svc.CreateRule(ctx, "acme", validCreate("dup"))
	assert.True(t, pkgerrors.IsConflict(err))

	_, err = f.svc.CreateRule(ctx, "other", validCreate("dup"))
	assert.NoError(t, err, "names are unique per subdomain only")
}

func TestService_CreateRule_StoreError(t *testing.T) {
	f := newFixture()
	f.repo.err = errors.New("connection refused")

	_, err := f.svc.CreateRule(context.Background(), "acme", validCreate("rule"))
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.ErrInternal))
	assert.Empty(t, f.events.events)
}

func TestService_UpdateRule_Partial(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, err := f.svc.CreateRule(ctx, "acme", validCreate("rule"))
	require.NoError(t, err)

	updated, err := f.svc.UpdateRule(ctx, "acme", created.ID, UpdateRuleRequest{
		Priority: ptr(50),
		IsActive: ptr(false),
	})
	require.NoError(t, err)

	assert.Equal(t, 50, updated.Priority)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "rule", updated.Name)
	assert.Equal(t, created.Style, updated.Style)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	require.Len(t, f.audit.entries, 2)
	entry := f.audit.entries[1]
	assert.Equal(t, models.ActionUpdate, entry.Action)

	var before, after coloring.Rule
	require.NoError(t, json.Unmarshal(entry.OldValue, &before))
	require.NoError(t, json.Unmarshal(entry.NewValue, &after))
	assert.Equal(t, 5, before.Priority)
	assert.Equal(t, 50, after.Priority)

	assert.Len(t, f.events.events, 2)
}

func TestService_UpdateRule_Errors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, err := f.svc.CreateRule(ctx, "acme", validCreate("rule"))
	require.NoError(t, err)

	_, err = f.svc.UpdateRule(ctx, "acme", created.ID, UpdateRuleRequest{})
	assert.True(t, pkgerrors.IsValidation(err), "empty update")

	_, err = f.svc.UpdateRule(ctx, "acme", created.ID, UpdateRuleRequest{Name: ptr("   ")})
	assert.True(t, pkgerrors.IsValidation(err), "blank name")

	_, err = f.svc.UpdateRule(ctx, "acme", created.ID, UpdateRuleRequest{
		Style: &coloring.Style{TextColor: "#fff"},
	})
	assert.True(t, pkgerrors.IsValidation(err), "incomplete style")

	_, err = f.svc.UpdateRule(ctx, "other", created.ID, UpdateRuleRequest{Priority: ptr(1)})
	assert.True(t, pkgerrors.IsNotFound(err), "rule of another subdomain")

	_, err = f.svc.UpdateRule(ctx, "acme", 999, UpdateRuleRequest{Priority: ptr(1)})
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestService_DeleteRule(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created, err := f.svc.CreateRule(ctx, "acme", validCreate("rule"))
	require.NoError(t, err)

	err = f.svc.DeleteRule(ctx, "other", created.ID)
	assert.True(t, pkgerrors.IsNotFound(err))

	require.NoError(t, f.svc.DeleteRule(ctx, "acme", created.ID))
	_, err = f.svc.GetRule(ctx, "acme", created.ID)
	assert.True(t, pkgerrors.IsNotFound(err))

	last := f.audit.entries[len(f.audit.entries)-1]
	assert.Equal(t, models.ActionDelete, last.Action)
	assert.NotEmpty(t, last.OldValue)
	assert.Empty(t, last.NewValue)
	assert.Equal(t, publishedEvent{Subdomain: "acme", Action: models.ActionDelete, RuleID: created.ID}, f.events.events[len(f.events.events)-1])
}

func TestService_ListRules_Ordered(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for _, p := range []struct {
		name     string
		priority int
	}{{"low", 1}, {"high", 10}, {"also-low", 1}} {
		req := validCreate(p.name)
		req.Priority = p.priority
		_, err := f.svc.CreateRule(ctx, "acme", req)
		require.NoError(t, err)
	}

	rules, err := f.svc.ListRules(ctx, "acme")
	require.NoError(t, err)

	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"high", "low", "also-low"}, names)
}

func TestService_UpdatePriorities(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a, err := f.svc.CreateRule(ctx, "acme", validCreate("a"))
	require.NoError(t, err)
	b, err := f.svc.CreateRule(ctx, "other", validCreate("b"))
	require.NoError(t, err)
	f.events.events = nil

	result, err := f.svc.UpdatePriorities(ctx, "acme", PrioritiesRequest{
		Priorities: []coloring.PriorityUpdate{
			{ID: a.ID, Priority: 100},
			{ID: b.ID, Priority: 100},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	got, err := f.svc.GetRule(ctx, "other", b.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Priority, "rules of other subdomains are untouched")

	assert.Equal(t, []publishedEvent{{Subdomain: "acme", Action: models.ActionPriorities}}, f.events.events)
}

func TestService_UpdatePriorities_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.UpdatePriorities(ctx, "acme", PrioritiesRequest{})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.svc.UpdatePriorities(ctx, "acme", PrioritiesRequest{
		Priorities: []coloring.PriorityUpdate{{ID: 0, Priority: 1}},
	})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.svc.UpdatePriorities(ctx, "acme", PrioritiesRequest{
		Priorities: []coloring.PriorityUpdate{{ID: 1, Priority: 1}, {ID: 1, Priority: 2}},
	})
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestService_UpdatePriorities_NothingChanged(t *testing.T) {
	f := newFixture()

	result, err := f.svc.UpdatePriorities(context.Background(), "acme", PrioritiesRequest{
		Priorities: []coloring.PriorityUpdate{{ID: 42, Priority: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Updated)
	assert.Empty(t, f.events.events)
	assert.Empty(t, f.audit.entries)
}

func TestService_SideEffectFailuresDoNotFailMutation(t *testing.T) {
	f := newFixture()
	f.audit.err = errors.New("audit down")
	f.events.err = errors.New("broker down")

	rule, err := f.svc.CreateRule(context.Background(), "acme", validCreate("rule"))
	require.NoError(t, err)
	assert.NotZero(t, rule.ID)
}

func TestService_GetAuditLog(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a, err := f.svc.CreateRule(ctx, "acme", validCreate("a"))
	require.NoError(t, err)
	_, err = f.svc.CreateRule(ctx, "acme", validCreate("b"))
	require.NoError(t, err)

	all, err := f.svc.GetAuditLog(ctx, "acme", 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := f.svc.GetAuditLog(ctx, "acme", a.ID, 0)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, a.ID, one[0].RuleID)
	assert.Equal(t, "system", one[0].ChangedBy)
}

func TestService_GetAuditLog_Disabled(t *testing.T) {
	svc := NewService(newMemoryRepo(), logger.NopLogger())

	_, err := svc.GetAuditLog(context.Background(), "acme", 0, 0)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.ErrServiceUnavailable))
}

func TestService_StoreErrorsKeepCode(t *testing.T) {
	f := newFixture()
	f.repo.err = errStoreDown

	_, err := f.svc.ListRules(context.Background(), "acme")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.ErrServiceUnavailable))
}
