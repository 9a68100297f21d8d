package task

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/stepflow-ai/stepflow/engine/core"
)

var structValidate = validator.New()

// Validate checks the normalized config against the task meta-schema and
// reports every violation found, never stopping at the first one.
func (t *Config) Validate() error {
	violations := t.collectStructViolations()
	violations = append(violations, t.collectStepViolations()...)
	if len(violations) == 0 {
		return nil
	}
	return core.NewValidationError(fmt.Sprintf("task %q failed validation", t.ID), violations)
}

func (t *Config) collectStructViolations() []core.Violation {
	err := structValidate.Struct(t)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []core.Violation{{Path: "$", Message: err.Error()}}
	}
	violations := make([]core.Violation, 0, len(fieldErrors))
	for _, fieldErr := range fieldErrors {
		violations = append(violations, core.Violation{
			Path:    fieldPath(fieldErr.Namespace()),
			Message: fieldMessage(fieldErr),
		})
	}
	return violations
}

func (t *Config) collectStepViolations() []core.Violation {
	var violations []core.Violation
	seenSteps := make(map[string]int)
	seenBindings := make(map[string]string)
	for i := range t.Steps {
		step := &t.Steps[i]
		path := fmt.Sprintf("steps[%d]", i)
		if step.ID != "" {
			if firstIdx, dup := seenSteps[step.ID]; dup {
				violations = append(violations, core.Violation{
					Path:    path + ".id",
					Message: fmt.Sprintf("step id %q duplicates steps[%d]", step.ID, firstIdx),
				})
			} else {
				seenSteps[step.ID] = i
			}
		}
		if len(step.Actions) == 0 {
			violations = append(violations, core.Violation{
				Path:    path + ".actions",
				Message: "step must declare at least one action",
			})
		}
		for j := range step.Actions {
			violations = append(violations, validateAction(&step.Actions[j], fmt.Sprintf("%s.actions[%d]", path, j))...)
		}
		for j := range step.Outputs {
			binding := &step.Outputs[j]
			if binding.Name == "" {
				continue
			}
			if binding.Name == ContextKeyInput || binding.Name == ContextKeySteps {
				violations = append(violations, core.Violation{
					Path:    fmt.Sprintf("%s.outputs[%d].name", path, j),
					Message: fmt.Sprintf("output binding %q shadows a reserved context namespace", binding.Name),
				})
				continue
			}
			if owner, dup := seenBindings[binding.Name]; dup {
				violations = append(violations, core.Violation{
					Path:    fmt.Sprintf("%s.outputs[%d].name", path, j),
					Message: fmt.Sprintf("output binding %q already produced by step %q", binding.Name, owner),
				})
			} else {
				seenBindings[binding.Name] = step.ID
			}
		}
	}
	return violations
}

func validateAction(action *Action, path string) []core.Violation {
	var violations []core.Violation
	switch {
	case action.ID == "" && action.Function == "":
		violations = append(violations, core.Violation{
			Path:    path,
			Message: "action must declare a namespaced id or a registry function",
		})
	case action.ID != "" && action.Function != "":
		violations = append(violations, core.Violation{
			Path:    path,
			Message: "action cannot declare both a namespaced id and a registry function",
		})
	case action.ID != "" && !actionIDPattern.MatchString(action.ID):
		violations = append(violations, core.Violation{
			Path:    path + ".id",
			Message: fmt.Sprintf("action id %q is not in namespace:verb form", action.ID),
		})
	}
	return violations
}

func fieldPath(namespace string) string {
	trimmed := strings.TrimPrefix(namespace, "Config.")
	return strings.ToLower(trimmed)
}

func fieldMessage(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "field is required"
	case "min":
		return fmt.Sprintf("must contain at least %s element(s)", fieldErr.Param())
	default:
		return fmt.Sprintf("failed %q constraint", fieldErr.Tag())
	}
}
