package main

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/stepflow-ai/stepflow/engine/core"
	"github.com/stepflow-ai/stepflow/engine/task"
)

func newValidateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <task.yaml>",
		Short: "Validate a task definition without executing it",
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
				var validationErr *core.ValidationError
				if errors.As(err, &validationErr) {
					fmt.Fprintln(cmd.OutOrStdout(), "invalid:")
					for _, violation := range validationErr.Violations {
						fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", violation.Path, violation.Message)
					}
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "valid: %s (%d steps)\n", taskCfg.ID, len(taskCfg.Steps))
			return nil
		},
	}
}
