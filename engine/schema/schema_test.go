package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaValidate(t *testing.T) {
	ctx := context.Background()
	s := &Schema{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{"type": "string"},
			"size":    map[string]any{"type": "integer", "minimum": 0},
		},
		"required": []any{"content", "size"},
	}

	t.Run("Should accept a conforming value", func(t *testing.T) {
		violations, err := s.Validate(ctx, map[string]any{"content": "hello", "size": 5})
		require.NoError(t, err)
		assert.Empty(t, violations)
	})
	t.Run("Should report a missing required property", func(t *testing.T) {
		violations, err := s.Validate(ctx, map[string]any{"content": "hello"})
		require.NoError(t, err)
		assert.NotEmpty(t, violations)
	})
	t.Run("Should report every violation in one pass", func(t *testing.T) {
		violations, err := s.Validate(ctx, map[string]any{"content": 42, "size": "big"})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(violations), 2)
	})
	t.Run("Should locate violations with an instance path", func(t *testing.T) {
		violations, err := s.Validate(ctx, map[string]any{"content": 42, "size": 1})
		require.NoError(t, err)
		require.NotEmpty(t, violations)
		found := false
		for _, v := range violations {
			if v.Path != "" {
				found = true
			}
		}
		assert.True(t, found)
	})
	t.Run("Should treat a nil schema as pass-through", func(t *testing.T) {
		var empty *Schema
		violations, err := empty.Validate(ctx, map[string]any{"anything": true})
		require.NoError(t, err)
		assert.Empty(t, violations)
	})
	t.Run("Should surface schema compilation failures as errors", func(t *testing.T) {
		broken := &Schema{"type": make(chan int)}
		_, err := broken.Validate(ctx, map[string]any{})
		assert.Error(t, err)
	})
}
