package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/stepflow-ai/stepflow/engine/core"
	"github.com/stepflow-ai/stepflow/engine/planner"
	"github.com/stepflow-ai/stepflow/engine/task"
)

func newAnalyzeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <task.yaml>",
		Short: "Report complexity metrics and the decomposition decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			cwd, err := core.CWDFromPath(cfg.ProjectRoot)
			if err != nil {
				return err
			}
			taskCfg, err := task.Load(afero.NewOsFs(), cwd, args[0])
			if err != nil {
				return err
			}
			metrics := planner.Analyze(taskCfg)
			decision := planner.Decide(metrics, cfg.Planner.Thresholds, planner.OverrideFromTags(taskCfg))
			report := map[string]any{
				"task_id":    taskCfg.ID,
				"metrics":    metrics,
				"thresholds": cfg.Planner.Thresholds,
				"decision":   decision,
			}
			encoded, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	}
}
