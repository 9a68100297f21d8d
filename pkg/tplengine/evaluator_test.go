package tplengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluator(t *testing.T) {
	evaluator, err := NewEvaluator()
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("Should evaluate boolean expressions against the supplied context", func(t *testing.T) {
		result, err := evaluator.Evaluate(ctx, `status == "ready" && count > 2`, map[string]any{
			"status": "ready",
			"count":  3,
		})
		require.NoError(t, err)
		assert.True(t, result)
	})
	t.Run("Should evaluate to false without error", func(t *testing.T) {
		result, err := evaluator.Evaluate(ctx, `count > 10`, map[string]any{"count": 3})
		require.NoError(t, err)
		assert.False(t, result)
	})
	t.Run("Should traverse nested maps", func(t *testing.T) {
		result, err := evaluator.Evaluate(ctx, `steps.read.output.size >= 5`, map[string]any{
			"steps": map[string]any{
				"read": map[string]any{"output": map[string]any{"size": 5}},
			},
		})
		require.NoError(t, err)
		assert.True(t, result)
	})
	t.Run("Should reject non-boolean results", func(t *testing.T) {
		_, err := evaluator.Evaluate(ctx, `1 + 1`, map[string]any{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boolean")
	})
	t.Run("Should reject empty expressions", func(t *testing.T) {
		_, err := evaluator.Evaluate(ctx, "   ", map[string]any{})
		assert.Error(t, err)
	})
	t.Run("Should fail compilation on undeclared variables", func(t *testing.T) {
		_, err := evaluator.Evaluate(ctx, `unknown_var == 1`, map[string]any{"known": 1})
		assert.Error(t, err)
	})
	t.Run("Should stop when the context is already canceled", func(t *testing.T) {
		canceled, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := evaluator.Evaluate(canceled, `true`, map[string]any{})
		assert.Error(t, err)
	})
	t.Run("Should reuse cached programs for repeated expressions", func(t *testing.T) {
		data := map[string]any{"n": 1}
		for i := 0; i < 3; i++ {
			result, err := evaluator.Evaluate(ctx, `n == 1`, data)
			require.NoError(t, err)
			assert.True(t, result)
		}
	})
}

func TestEvaluatorCostLimit(t *testing.T) {
	t.Run("Should abort expressions exceeding the cost limit", func(t *testing.T) {
		evaluator, err := NewEvaluator(WithCostLimit(1))
		require.NoError(t, err)
		_, err = evaluator.Evaluate(context.Background(), `items.all(i, i > 0)`, map[string]any{
			"items": []any{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		})
		assert.Error(t, err)
	})
}
