package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger(t *testing.T) {
	t.Run("Should emit structured key-value pairs", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&Config{Level: InfoLevel, Output: &buf})
		log.Info("task started", "task_id", "demo")
		assert.Contains(t, buf.String(), "task started")
		assert.Contains(t, buf.String(), "task_id")
	})
	t.Run("Should filter below the configured level", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&Config{Level: WarnLevel, Output: &buf})
		log.Info("hidden")
		log.Warn("visible")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "visible")
	})
	t.Run("Should emit JSON when configured", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&Config{Level: InfoLevel, Output: &buf, JSON: true})
		log.Info("event", "k", "v")
		assert.True(t, strings.HasPrefix(strings.TrimSpace(buf.String()), "{"))
	})
	t.Run("Should carry With fields onto every entry", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&Config{Level: InfoLevel, Output: &buf}).With("exec_id", "abc")
		log.Info("step done")
		assert.Contains(t, buf.String(), "abc")
	})
}

func TestContext(t *testing.T) {
	t.Run("Should round-trip the logger through a context", func(t *testing.T) {
		log := NewNop()
		ctx := ContextWithLogger(context.Background(), log)
		assert.Equal(t, log, FromContext(ctx))
	})
	t.Run("Should fall back to a nop logger", func(t *testing.T) {
		assert.NotNil(t, FromContext(context.Background()))
		assert.NotNil(t, FromContext(nil)) //nolint:staticcheck
	})
}
