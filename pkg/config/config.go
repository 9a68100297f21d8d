package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	str2duration "github.com/xhit/go-str2duration/v2"

	"github.com/stepflow-ai/stepflow/engine/planner"
)

const envPrefix = "STEPFLOW_"

// Config is the engine configuration: defaults from the struct below,
// overridden by STEPFLOW_-prefixed environment variables
// (STEPFLOW_EXEC_TIMEOUT=30s, STEPFLOW_LOG_LEVEL=debug, ...).
type Config struct {
	ProjectRoot string        `koanf:"project_root" mapstructure:"project_root"`
	Log         LogConfig     `koanf:"log"          mapstructure:"log"`
	Exec        ExecConfig    `koanf:"exec"         mapstructure:"exec"`
	Planner     PlannerConfig `koanf:"planner"      mapstructure:"planner"`
}

type LogConfig struct {
	Level string `koanf:"level" mapstructure:"level"`
	JSON  bool   `koanf:"json"  mapstructure:"json"`
}

// ExecConfig bounds process actions. Timeout accepts human-readable
// durations ("30s", "2m", "1h30m").
type ExecConfig struct {
	AllowedDirs []string `koanf:"allowed_dirs" mapstructure:"allowed_dirs"`
	Timeout     string   `koanf:"timeout"      mapstructure:"timeout"`
	MaxStdout   int64    `koanf:"max_stdout"   mapstructure:"max_stdout"`
	MaxStderr   int64    `koanf:"max_stderr"   mapstructure:"max_stderr"`
}

type PlannerConfig struct {
	Thresholds planner.Thresholds `koanf:"thresholds" mapstructure:"thresholds"`
	AuditPath  string             `koanf:"audit_path" mapstructure:"audit_path"`
}

func Default() *Config {
	return &Config{
		ProjectRoot: "",
		Log: LogConfig{
			Level: "info",
		},
		Exec: ExecConfig{
			AllowedDirs: []string{"scripts"},
			Timeout:     "60s",
			MaxStdout:   1 << 20,
			MaxStderr:   1 << 20,
		},
		Planner: PlannerConfig{
			Thresholds: planner.DefaultThresholds(),
			AuditPath:  ".stepflow/decomposition.log",
		},
	}
}

// Load builds the effective configuration from defaults and environment.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load default configuration: %w", err)
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return transformEnvKey(strings.TrimPrefix(key, envPrefix)), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment configuration: %w", err)
	}
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// configSections are the nested groups an environment key may address.
var configSections = map[string]struct{}{
	"log":     {},
	"exec":    {},
	"planner": {},
}

// transformEnvKey converts EXEC_MAX_STDOUT to exec.max_stdout. The first
// segment selects a section when one matches; otherwise the whole key is a
// top-level field (PROJECT_ROOT -> project_root).
func transformEnvKey(key string) string {
	parts := strings.FieldsFunc(strings.ToLower(key), func(r rune) bool { return r == '_' })
	if len(parts) == 0 {
		return ""
	}
	if _, ok := configSections[parts[0]]; ok && len(parts) > 1 {
		if parts[0] == "planner" && parts[1] == "thresholds" && len(parts) > 2 {
			return "planner.thresholds." + strings.Join(parts[2:], "_")
		}
		return parts[0] + "." + strings.Join(parts[1:], "_")
	}
	return strings.Join(parts, "_")
}

func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	if _, err := c.Exec.TimeoutDuration(); err != nil {
		return err
	}
	return nil
}

func (e *ExecConfig) TimeoutDuration() (time.Duration, error) {
	if e.Timeout == "" {
		return 0, nil
	}
	d, err := str2duration.ParseDuration(e.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid exec timeout %q: %w", e.Timeout, err)
	}
	return d, nil
}
