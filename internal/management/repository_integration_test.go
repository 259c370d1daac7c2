//go:build integration

package management

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadcolor/internal/coloring"
	"leadcolor/internal/logger"
	"leadcolor/internal/testinfra"
	pkgerrors "leadcolor/pkg/errors"
	"leadcolor/pkg/models"
)

func newRule(subdomain, name string, priority int) *coloring.Rule {
	return &coloring.Rule{
		Subdomain:  subdomain,
		Name:       name,
		IsActive:   true,
		Priority:   priority,
		Conditions: *statusTree("142"),
		Style:      coloring.Style{TextColor: "#000000", BackgroundColor: "#ffcc00"},
	}
}

func TestPostgresRepository_CRUD(t *testing.T) {
	db := testinfra.Postgres(t)
	repo := NewRepository(db, logger.NopLogger())
	ctx := context.Background()

	rule := newRule("acme", "won", 10)
	require.NoError(t, repo.Create(ctx, rule))
	assert.NotZero(t, rule.ID)
	assert.False(t, rule.CreatedAt.IsZero())

	got, err := repo.Get(ctx, "acme", rule.ID)
	require.NoError(t, err)
	assert.Equal(t, rule.Name, got.Name)
	assert.Equal(t, rule.Conditions, got.Conditions)
	assert.Equal(t, rule.Style, got.Style)

	_, err = repo.Get(ctx, "other", rule.ID)
	assert.True(t, pkgerrors.IsNotFound(err))

	got.Priority = 20
	got.IsActive = false
	require.NoError(t, repo.Update(ctx, got))
	assert.False(t, got.UpdatedAt.Before(rule.UpdatedAt))

	again, err := repo.Get(ctx, "acme", rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, again.Priority)
	assert.False(t, again.IsActive)

	require.NoError(t, repo.Delete(ctx, "acme", rule.ID))
	assert.True(t, pkgerrors.IsNotFound(repo.Delete(ctx, "acme", rule.ID)))
}

func TestPostgresRepository_UniqueNamePerSubdomain(t *testing.T) {
	db := testinfra.Postgres(t)
	repo := NewRepository(db, logger.NopLogger())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRule("acme", "dup", 1)))
	assert.True(t, pkgerrors.IsConflict(repo.Create(ctx, newRule("acme", "dup", 2))))
	assert.NoError(t, repo.Create(ctx, newRule("other", "dup", 1)))

	second := newRule("acme", "second", 1)
	require.NoError(t, repo.Create(ctx, second))
	second.Name = "dup"
	assert.True(t, pkgerrors.IsConflict(repo.Update(ctx, second)))
}

func TestPostgresRepository_OrderingAndPriorities(t *testing.T) {
	db := testinfra.Postgres(t)
	repo := NewRepository(db, logger.NopLogger())
	ctx := context.Background()

	low := newRule("acme", "low", 1)
	high := newRule("acme", "high", 5)
	tie := newRule("acme", "tie", 1)
	foreign := newRule("other", "foreign", 1)
	for _, r := range []*coloring.Rule{low, high, tie, foreign} {
		require.NoError(t, repo.Create(ctx, r))
	}

	rules, err := repo.List(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, []int64{high.ID, low.ID, tie.ID}, ids(rules))

	updated, err := repo.UpdatePriorities(ctx, "acme", []coloring.PriorityUpdate{
		{ID: tie.ID, Priority: 50},
		{ID: foreign.ID, Priority: 50},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	rules, err = repo.List(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, []int64{tie.ID, high.ID, low.ID}, ids(rules))

	other, err := repo.Get(ctx, "other", foreign.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, other.Priority)
}

func TestColoringRepository_ListActiveAndTimezone(t *testing.T) {
	db := testinfra.Postgres(t)
	repo := NewRepository(db, logger.NopLogger())
	reader := coloring.NewRepository(db, logger.NopLogger())
	ctx := context.Background()

	active := newRule("acme", "active", 1)
	inactive := newRule("acme", "inactive", 9)
	inactive.IsActive = false
	require.NoError(t, repo.Create(ctx, active))
	require.NoError(t, repo.Create(ctx, inactive))

	_, err := db.ExecContext(ctx,
		`INSERT INTO coloring_rules (subdomain, name, conditions, style) VALUES ('acme', 'broken', '{"type":"NAND","rules":[]}', '{}')`)
	require.NoError(t, err)

	rules, err := reader.ListActive(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, []int64{active.ID}, ids(rules), "inactive and undecodable rules are left out")

	tz, err := reader.Timezone(ctx, "acme")
	require.NoError(t, err)
	assert.Empty(t, tz, "no settings row leaves the choice to the configured default")

	setTimezone(t, db, "acme", "Asia/Yekaterinburg")
	tz, err = reader.Timezone(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Yekaterinburg", tz)
}

func TestPostgresAuditLog(t *testing.T) {
	db := testinfra.Postgres(t)
	audit := NewAuditLog(db)
	ctx := context.Background()

	require.NoError(t, audit.Record(ctx, AuditEntry{
		RuleID: 1, Subdomain: "acme", Action: models.ActionCreate, ChangedBy: "alice",
		NewValue: []byte(`{"name":"won"}`),
	}))
	require.NoError(t, audit.Record(ctx, AuditEntry{
		RuleID: 2, Subdomain: "acme", Action: models.ActionDelete, ChangedBy: "bob",
		OldValue: []byte(`{"name":"lost"}`),
	}))
	require.NoError(t, audit.Record(ctx, AuditEntry{
		Subdomain: "acme", Action: models.ActionPriorities, ChangedBy: "bob",
	}))

	all, err := audit.List(ctx, "acme", 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, models.ActionPriorities, all[0].Action)
	assert.Zero(t, all[0].RuleID)

	one, err := audit.List(ctx, "acme", 1, 10)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.JSONEq(t, `{"name":"won"}`, string(one[0].NewValue))
	assert.Empty(t, one[0].OldValue)

	none, err := audit.List(ctx, "other", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func ids(rules []coloring.Rule) []int64 {
	out := make([]int64, len(rules))
	for i, r := range rules {
		out[i] = r.ID
	}
	return out
}

func setTimezone(t *testing.T, db *sql.DB, subdomain, tz string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO subdomain_settings (subdomain, timezone) VALUES ($1, $2)
		ON CONFLICT (subdomain) DO UPDATE SET timezone = EXCLUDED.timezone`, subdomain, tz)
	require.NoError(t, err)
}
