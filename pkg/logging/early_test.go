package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEarlyLog(t *testing.T) {
	var out, errOut bytes.Buffer
	code := 0
	l := &EarlyLog{out: &out, errOut: &errOut, exit: func(c int) { code = c }}

	l.Info("starting %s", "coloring-service")
	l.Warn("config %s missing", "x")
	l.Fatal("boom")

	assert.Equal(t, "INFO: starting coloring-service\n", out.String())
	assert.Equal(t, "WARN: config x missing\nFATAL: boom\n", errOut.String())
	assert.Equal(t, 1, code)
}
