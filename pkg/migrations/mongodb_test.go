package migrations

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryIndexes(t *testing.T) {
	assert.Len(t, HistoryIndexes(0), 2)

	indexes := HistoryIndexes(30 * 24 * time.Hour)
	require.Len(t, indexes, 3)

	ttl := indexes[2].Options
	require.NotNil(t, ttl.ExpireAfterSeconds)
	assert.Equal(t, int32(30*24*3600), *ttl.ExpireAfterSeconds)
	assert.Equal(t, "idx_history_created_at_ttl", *ttl.Name)
}
