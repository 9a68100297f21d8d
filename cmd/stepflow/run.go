package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/stepflow-ai/stepflow/engine/action"
	"github.com/stepflow-ai/stepflow/engine/core"
	"github.com/stepflow-ai/stepflow/engine/memstate"
	"github.com/stepflow-ai/stepflow/engine/planner"
	"github.com/stepflow-ai/stepflow/engine/registry"
	"github.com/stepflow-ai/stepflow/engine/task"
	"github.com/stepflow-ai/stepflow/engine/task/runner"
	"github.com/stepflow-ai/stepflow/pkg/config"
	"github.com/stepflow-ai/stepflow/pkg/logger"
	"github.com/stepflow-ai/stepflow/pkg/tplengine"
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	var inputPairs []string
	cmd := &cobra.Command{
		Use:   "run <task.yaml>",
		Short: "Execute a task definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, ctx, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			input, err := parseInputPairs(inputPairs)
			if err != nil {
				return err
			}
			return runTask(cmd, ctx, cfg, args[0], input)
		},
	}
	cmd.Flags().StringArrayVar(&inputPairs, "input", nil, "task input as key=value (repeatable)")
	return cmd
}

func runTask(cmd *cobra.Command, ctx context.Context, cfg *config.Config, path string, input core.Input) error {
	log := logger.FromContext(ctx)
	fs := afero.NewOsFs()
	cwd, err := core.CWDFromPath(cfg.ProjectRoot)
	if err != nil {
		return err
	}
	taskCfg, err := task.Load(fs, cwd, path)
	if err != nil {
		return err
	}

	plan := planner.New(cfg.Planner.Thresholds, planner.NewAuditLog(fs, cfg.Planner.AuditPath))
	tasks, decision := plan.Plan(ctx, taskCfg)
	if decision.Apply {
		log.Info("task decomposed before execution", "task_id", taskCfg.ID, "sub_tasks", len(tasks))
	}

	r, _, err := buildRunner(cfg, fs)
	if err != nil {
		return err
	}

	// Sub-tasks run in declared order; bindings produced by one part feed
	// the next part's input alongside the original task input.
	carried := core.Input{}
	for key, value := range input {
		carried[key] = value
	}
	for _, sub := range tasks {
		result := r.Run(ctx, sub, carried)
		printResult(cmd, result)
		if result.Failed() {
			if result.Err != nil {
				return result.Err
			}
			return fmt.Errorf("task %q failed at step %q", sub.ID, result.FailedStepID)
		}
		for key, value := range result.Output {
			carried[key] = value
		}
	}
	return nil
}

func parseInputPairs(pairs []string) (core.Input, error) {
	input := core.Input{}
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --input %q, expected key=value", pair)
		}
		input[key] = value
	}
	return input, nil
}

func buildRunner(cfg *config.Config, fs afero.Fs) (*runner.Runner, *memstate.Manager, error) {
	evaluator, err := tplengine.NewEvaluator()
	if err != nil {
		return nil, nil, err
	}
	timeout, err := cfg.Exec.TimeoutDuration()
	if err != nil {
		return nil, nil, err
	}
	dispatcher := action.NewDispatcher(fs, evaluator, action.ExecConfig{
		AllowedDirs: cfg.Exec.AllowedDirs,
		Timeout:     timeout,
		MaxStdout:   cfg.Exec.MaxStdout,
		MaxStderr:   cfg.Exec.MaxStderr,
	})
	memory := memstate.NewManager(memstate.NewInMemoryBackend())
	r := runner.New(dispatcher, registry.NewWithBuiltins(), tplengine.NewEngine(), memory)
	return r, memory, nil
}

func printResult(cmd *cobra.Command, result *runner.Result) {
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "failed to encode result: %v\n", err)
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
}
