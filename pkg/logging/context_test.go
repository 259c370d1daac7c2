package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLogFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetLogFields(ctx))

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithSubdomain(ctx, "acme")

	assert.Equal(t, []interface{}{RequestIDKey, "req-1", SubdomainKey, "acme"}, GetLogFields(ctx))
	assert.Equal(t, "acme", GetSubdomain(ctx))
	assert.Equal(t, "", GetTraceID(ctx))
}
