package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/stepflow-ai/stepflow/pkg/config"
	"github.com/stepflow-ai/stepflow/pkg/logger"
)

type rootFlags struct {
	logLevel    string
	logJSON     bool
	projectRoot string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "stepflow",
		Short:         "Structured task execution engine",
		Long:          "Stepflow interprets declarative task definitions and executes them step by step: templated inputs, namespaced actions, validated outputs, checkpointed state, and typed failures.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&flags.logJSON, "log-json", false, "emit logs as JSON")
	cmd.PersistentFlags().StringVar(&flags.projectRoot, "project-root", "", "project root every path action resolves against")
	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newValidateCmd(flags))
	cmd.AddCommand(newAnalyzeCmd(flags))
	return cmd
}

// setup loads configuration, applies flag overrides, and attaches the
// logger to the command context.
func setup(cmd *cobra.Command, flags *rootFlags) (*config.Config, context.Context, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.logJSON {
		cfg.Log.JSON = true
	}
	if flags.projectRoot != "" {
		cfg.ProjectRoot = flags.projectRoot
	}
	log := logger.NewLogger(&logger.Config{
		Level:      logger.LogLevel(cfg.Log.Level),
		JSON:       cfg.Log.JSON,
		TimeFormat: "15:04:05",
	})
	ctx := logger.ContextWithLogger(cmd.Context(), log)
	return cfg, ctx, nil
}
