package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"leadcolor/pkg/logging"
)

func TestNew(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		log, err := New("debug", format)
		require.NoError(t, err)
		assert.NotNil(t, log)
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestCtxVariantsAddContextFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewWithCore(core, "coloring-service")

	ctx := logging.WithRequestID(context.Background(), "req-1")
	ctx = logging.WithSubdomain(ctx, "acme")

	log.InfowCtx(ctx, "resolved", "matched", 3)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields[logging.RequestIDKey])
	assert.Equal(t, "acme", fields[logging.SubdomainKey])
	assert.Equal(t, "coloring-service", fields[logging.ServiceNameKey])
	assert.EqualValues(t, 3, fields["matched"])
}
