//go:build integration

package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadcolor/internal/coloring"
	"leadcolor/internal/logger"
	"leadcolor/internal/testinfra"
	"leadcolor/pkg/migrations"
)

func TestMongoRecorder(t *testing.T) {
	db := testinfra.Mongo(t)
	ctx := context.Background()
	require.NoError(t, migrations.EnsureHistoryCollection(ctx, db, "passes", 24*time.Hour))

	recorder := NewMongoRecorder(db, "passes", logger.NopLogger())
	base := time.Date(2024, 6, 17, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, recorder.RecordPass(ctx, coloring.PassSummary{
			Subdomain: "acme",
			RequestID: "req",
			Requested: 10 + i,
			Matched:   i,
			RuleHits:  map[string]int{"7": i},
			Status:    "ok",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, recorder.RecordPass(ctx, coloring.PassSummary{
		Subdomain: "other",
		Status:    "error",
		CreatedAt: base,
	}))

	got, err := recorder.Recent(ctx, "acme", 2)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, 12, got[0].Requested)
	assert.Equal(t, 11, got[1].Requested)
	assert.Equal(t, map[string]int{"7": 2}, got[0].RuleHits)
	assert.True(t, got[0].CreatedAt.Equal(base.Add(2*time.Minute)))
}

func TestEnsureHistoryCollection_Idempotent(t *testing.T) {
	db := testinfra.Mongo(t)
	ctx := context.Background()

	require.NoError(t, migrations.EnsureHistoryCollection(ctx, db, "passes", time.Hour))
	require.NoError(t, migrations.EnsureHistoryCollection(ctx, db, "passes", time.Hour))
}
