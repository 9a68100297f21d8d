package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Run("Should provide complete working defaults", func(t *testing.T) {
		cfg := Default()
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, []string{"scripts"}, cfg.Exec.AllowedDirs)
		assert.Equal(t, "60s", cfg.Exec.Timeout)
		assert.Equal(t, int64(1<<20), cfg.Exec.MaxStdout)
		assert.Equal(t, 7, cfg.Planner.Thresholds.TaskCount)
		assert.Equal(t, ".stepflow/decomposition.log", cfg.Planner.AuditPath)
		assert.NoError(t, cfg.Validate())
	})
}

func TestLoad(t *testing.T) {
	t.Run("Should load defaults without environment overrides", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "info", cfg.Log.Level)
	})
	t.Run("Should apply environment overrides per section", func(t *testing.T) {
		t.Setenv("STEPFLOW_LOG_LEVEL", "debug")
		t.Setenv("STEPFLOW_EXEC_TIMEOUT", "90s")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, "90s", cfg.Exec.Timeout)
	})
	t.Run("Should reject invalid overrides", func(t *testing.T) {
		t.Setenv("STEPFLOW_LOG_LEVEL", "loud")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestTransformEnvKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"LOG_LEVEL", "log.level"},
		{"EXEC_MAX_STDOUT", "exec.max_stdout"},
		{"PLANNER_THRESHOLDS_TASK_COUNT", "planner.thresholds.task_count"},
		{"PROJECT_ROOT", "project_root"},
		{"LOG", "log"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, transformEnvKey(tc.in), "input %q", tc.in)
	}
}

func TestTimeoutDuration(t *testing.T) {
	t.Run("Should parse human-readable durations", func(t *testing.T) {
		exec := ExecConfig{Timeout: "1h30m"}
		d, err := exec.TimeoutDuration()
		require.NoError(t, err)
		assert.Equal(t, 90*time.Minute, d)
	})
	t.Run("Should treat empty as no timeout", func(t *testing.T) {
		exec := ExecConfig{}
		d, err := exec.TimeoutDuration()
		require.NoError(t, err)
		assert.Equal(t, time.Duration(0), d)
	})
	t.Run("Should reject malformed durations", func(t *testing.T) {
		exec := ExecConfig{Timeout: "soon"}
		_, err := exec.TimeoutDuration()
		assert.Error(t, err)
	})
}
