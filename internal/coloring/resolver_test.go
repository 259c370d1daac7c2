package coloring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadcolor/internal/conditions"
	"leadcolor/internal/logger"
)

func newTestResolver() *Resolver {
	e := conditions.NewEvaluator(
		conditions.WithClock(func() time.Time { return testNow }),
		conditions.WithLocation(time.UTC),
	)
	return NewResolver(e, 4, logger.NopLogger())
}

func TestSortRules(t *testing.T) {
	rules := []Rule{
		{ID: 3, Priority: 10},
		{ID: 2, Priority: 30},
		{ID: 1, Priority: 10},
		{ID: 4, Priority: 20},
	}

	sorted := SortRules(rules)

	ids := make([]int64, len(sorted))
	for i, r := range sorted {
		ids[i] = r.ID
	}
	assert.Equal(t, []int64{2, 4, 1, 3}, ids)
	assert.Equal(t, int64(3), rules[0].ID, "input must not be reordered")
}

func TestResolveLeadStyles_FirstMatchWins(t *testing.T) {
	rules := []Rule{
		statusRule(10, 10, "142", "#lowest"),
		statusRule(30, 30, "142", "#highest"),
		statusRule(20, 20, "142", "#middle"),
	}
	leads := map[int64]conditions.Lead{
		1: {"id": 1, "status_id": 142},
	}

	styles, err := newTestResolver().ResolveLeadStyles(context.Background(), rules, leads, []int64{1})

	require.NoError(t, err)
	require.Contains(t, styles, "1")
	assert.Equal(t, "#highest", styles["1"].BackgroundColor)
	assert.Equal(t, int64(30), styles["1"].MatchedRuleID)
}

func TestResolveLeadStyles_TiesBrokenByID(t *testing.T) {
	rules := []Rule{
		statusRule(8, 5, "142", "#second"),
		statusRule(3, 5, "142", "#first"),
	}
	leads := map[int64]conditions.Lead{7: {"status_id": "142"}}

	styles, err := newTestResolver().ResolveLeadStyles(context.Background(), rules, leads, []int64{7})

	require.NoError(t, err)
	assert.Equal(t, "#first", styles["7"].BackgroundColor)
}

func TestResolveLeadStyles_EndToEnd(t *testing.T) {
	rules := []Rule{
		statusRule(1, 10, "142", "#00ff00"),
		statusRule(2, 5, "143", "#ff0000"),
	}
	leads := map[int64]conditions.Lead{
		100: {"id": 100, "status_id": 142},
		200: {"id": 200, "status_id": 999},
		300: {"id": 300, "status_id": 143},
	}

	styles, err := newTestResolver().ResolveLeadStyles(context.Background(), rules, leads, []int64{100, 200, 300, 400, 100})

	require.NoError(t, err)
	assert.Len(t, styles, 2)
	assert.Equal(t, LeadStyle{
		TextColor:       "#000000",
		BackgroundColor: "#00ff00",
		MatchedRuleID:   1,
		MatchedRuleName: "status 142",
	}, styles["100"])
	assert.Equal(t, "#ff0000", styles["300"].BackgroundColor)
	assert.NotContains(t, styles, "200")
	assert.NotContains(t, styles, "400")
}

func TestResolveLeadStyles_NoRulesOrLeads(t *testing.T) {
	r := newTestResolver()
	leads := map[int64]conditions.Lead{1: {"status_id": 142}}

	styles, err := r.ResolveLeadStyles(context.Background(), nil, leads, []int64{1})
	require.NoError(t, err)
	assert.Empty(t, styles)

	styles, err = r.ResolveLeadStyles(context.Background(), []Rule{statusRule(1, 1, "142", "#fff")}, leads, nil)
	require.NoError(t, err)
	assert.Empty(t, styles)
}

func TestResolveLeadStyles_SkipsMalformedTree(t *testing.T) {
	broken := statusRule(1, 100, "142", "#broken")
	broken.Conditions.Type = "XOR"
	rules := []Rule{broken, statusRule(2, 1, "142", "#ok")}
	leads := map[int64]conditions.Lead{1: {"status_id": 142}}

	styles, err := newTestResolver().ResolveLeadStyles(context.Background(), rules, leads, []int64{1})

	require.NoError(t, err)
	assert.Equal(t, "#ok", styles["1"].BackgroundColor)
}

func TestResolveLeadStyles_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rules := []Rule{statusRule(1, 1, "142", "#fff")}
	leads := map[int64]conditions.Lead{1: {"status_id": 142}, 2: {"status_id": 142}}

	styles, err := newTestResolver().ResolveLeadStyles(ctx, rules, leads, []int64{1, 2})

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotNil(t, styles)
}

func TestResolveLeadStyles_DoesNotFilterInactive(t *testing.T) {
	rule := statusRule(1, 1, "142", "#fff")
	rule.IsActive = false
	leads := map[int64]conditions.Lead{1: {"status_id": 142}}

	styles, err := newTestResolver().ResolveLeadStyles(context.Background(), []Rule{rule}, leads, []int64{1})

	require.NoError(t, err)
	assert.Contains(t, styles, "1")
}

func TestEvaluateRule(t *testing.T) {
	r := newTestResolver()
	rule := statusRule(1, 1, "142", "#fff")

	assert.True(t, r.EvaluateRule(rule.Conditions, conditions.Lead{"status_id": 142}))
	assert.False(t, r.EvaluateRule(rule.Conditions, conditions.Lead{"status_id": 143}))
	assert.False(t, r.EvaluateRule(rule.Conditions, conditions.Lead{}))
}
