package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepflow-ai/stepflow/engine/core"
)

func testConfig() *Config {
	return &Config{
		ID: "demo",
		Steps: []Step{{
			ID:      "s1",
			Actions: []Action{{ID: "file:read", Description: "read"}},
		}},
	}
}

func TestExecutionContext(t *testing.T) {
	t.Run("Should seed a fresh context per invocation", func(t *testing.T) {
		first := NewExecutionContext(testConfig(), core.Input{"k": "v"}, nil)
		second := NewExecutionContext(testConfig(), core.Input{"k": "v"}, nil)
		assert.NotEqual(t, first.ExecID, second.ExecID)
		assert.Equal(t, "demo", first.TaskID)
		assert.Equal(t, "v", first.Input().Prop("k"))
	})
	t.Run("Should refuse reserved keys", func(t *testing.T) {
		ec := NewExecutionContext(testConfig(), nil, nil)
		assert.Error(t, ec.SetBinding(ContextKeyInput, 1))
		assert.Error(t, ec.SetBinding(ContextKeySteps, 1))
	})
	t.Run("Should never silently overwrite an existing key", func(t *testing.T) {
		ec := NewExecutionContext(testConfig(), nil, nil)
		require.NoError(t, ec.SetBinding("result", "first"))
		err := ec.SetBinding("result", "second")
		require.Error(t, err)
		value, ok := ec.Value("result")
		require.True(t, ok)
		assert.Equal(t, "first", value)
	})
	t.Run("Should expose step outputs under the steps namespace", func(t *testing.T) {
		ec := NewExecutionContext(testConfig(), nil, nil)
		ec.RecordStepOutput("s1", core.Output{"content": "hello"})
		assert.True(t, ec.HasStepOutput("s1"))
		data := ec.TemplateData()
		steps, ok := data[ContextKeySteps].(map[string]any)
		require.True(t, ok)
		entry, ok := steps["s1"].(map[string]any)
		require.True(t, ok)
		output, ok := entry["output"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "hello", output["content"])
	})
	t.Run("Should hand resolvers a copy they cannot mutate state through", func(t *testing.T) {
		ec := NewExecutionContext(testConfig(), core.Input{"name": "x"}, nil)
		require.NoError(t, ec.SetBinding("list", map[string]any{"inner": "original"}))
		data := ec.TemplateData()
		bound, ok := data["list"].(map[string]any)
		require.True(t, ok)
		bound["inner"] = "mutated"
		value, _ := ec.Value("list")
		assert.Equal(t, "original", value.(map[string]any)["inner"])
	})
	t.Run("Should default to an empty input", func(t *testing.T) {
		ec := NewExecutionContext(testConfig(), nil, nil)
		assert.NotNil(t, ec.Input())
	})
}
