package core

import (
	"errors"
	"fmt"
	"strings"
)

// Canonical error codes for the engine's error taxonomy. Every error that
// leaves the engine carries exactly one of these codes; unknown internal
// faults are wrapped as CodeConfiguration so callers never see an untyped
// error.
const (
	CodeValidation      = "ValidationError"
	CodeTaskExecution   = "TaskExecutionError"
	CodeMemoryState     = "MemoryStateError"
	CodeActionExecution = "ActionExecutionError"
	CodeDependency      = "DependencyError"
	CodeConfiguration   = "ConfigurationError"
)

// -----------------------------------------------------------------------------
// Base shape
// -----------------------------------------------------------------------------

// errorBase is the shared shape underneath all taxonomy kinds: a code, a
// message, structured details, and the wrapped cause.
type errorBase struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	cause   error
}

func (e *errorBase) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *errorBase) Unwrap() error {
	return e.cause
}

func (e *errorBase) taxonomyCode() string {
	return e.Code
}

func (e *errorBase) WithDetail(key string, value any) {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
}

// -----------------------------------------------------------------------------
// Validation
// -----------------------------------------------------------------------------

// Violation locates a single validation failure inside a document.
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// ValidationError aggregates every violation found in one pass. It is never
// raised for the first failure only.
type ValidationError struct {
	errorBase
	Violations []Violation `json:"validation_errors"`
}

func NewValidationError(msg string, violations []Violation) *ValidationError {
	lines := make([]string, 0, len(violations))
	for _, v := range violations {
		lines = append(lines, v.String())
	}
	return &ValidationError{
		errorBase: errorBase{
			Code:    CodeValidation,
			Message: msg,
			Details: map[string]any{"violations": lines},
		},
		Violations: violations,
	}
}

// -----------------------------------------------------------------------------
// Task execution
// -----------------------------------------------------------------------------

// TaskExecutionError aborts the remaining steps of a task. HaltMessage is set
// when the abort was requested by a workflow:halt-if action.
type TaskExecutionError struct {
	errorBase
	StepID      string `json:"step_id"`
	HaltMessage string `json:"halt_message,omitempty"`
}

func NewTaskExecutionError(stepID, msg string, cause error) *TaskExecutionError {
	return &TaskExecutionError{
		errorBase: errorBase{
			Code:    CodeTaskExecution,
			Message: msg,
			Details: map[string]any{"step_id": stepID},
			cause:   cause,
		},
		StepID: stepID,
	}
}

func NewHaltError(stepID, haltMessage string) *TaskExecutionError {
	err := NewTaskExecutionError(stepID, haltMessage, nil)
	err.HaltMessage = haltMessage
	return err
}

// -----------------------------------------------------------------------------
// Memory state
// -----------------------------------------------------------------------------

type MemoryStateError struct {
	errorBase
	Operation string `json:"operation"`
}

func NewMemoryStateError(operation string, cause error) *MemoryStateError {
	msg := fmt.Sprintf("memory state operation %q failed", operation)
	if cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, cause.Error())
	}
	return &MemoryStateError{
		errorBase: errorBase{
			Code:    CodeMemoryState,
			Message: msg,
			Details: map[string]any{"operation": operation},
			cause:   cause,
		},
		Operation: operation,
	}
}

// -----------------------------------------------------------------------------
// Action execution
// -----------------------------------------------------------------------------

type ActionExecutionError struct {
	errorBase
	Action string         `json:"action"`
	Inputs map[string]any `json:"inputs,omitempty"`
}

func NewActionExecutionError(action string, inputs map[string]any, cause error) *ActionExecutionError {
	msg := fmt.Sprintf("action %q failed", action)
	if cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, cause.Error())
	}
	return &ActionExecutionError{
		errorBase: errorBase{
			Code:    CodeActionExecution,
			Message: msg,
			Details: map[string]any{"action": action},
			cause:   cause,
		},
		Action: action,
		Inputs: inputs,
	}
}

// -----------------------------------------------------------------------------
// Dependency
// -----------------------------------------------------------------------------

type DependencyError struct {
	errorBase
	Dependency string `json:"dependency"`
}

func NewDependencyError(dependency string, cause error) *DependencyError {
	msg := fmt.Sprintf("dependency %q unavailable", dependency)
	if cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, cause.Error())
	}
	return &DependencyError{
		errorBase: errorBase{
			Code:    CodeDependency,
			Message: msg,
			Details: map[string]any{"dependency": dependency},
			cause:   cause,
		},
		Dependency: dependency,
	}
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

type ConfigurationError struct {
	errorBase
	ConfigPath string `json:"config_path,omitempty"`
}

func NewConfigurationError(configPath, msg string, cause error) *ConfigurationError {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	details := map[string]any{}
	if configPath != "" {
		details["config_path"] = configPath
	}
	return &ConfigurationError{
		errorBase: errorBase{
			Code:    CodeConfiguration,
			Message: msg,
			Details: details,
			cause:   cause,
		},
		ConfigPath: configPath,
	}
}

// -----------------------------------------------------------------------------
// Classification
// -----------------------------------------------------------------------------

type taxonomyMember interface {
	error
	taxonomyCode() string
}

// CodeOf reports the taxonomy code of err. Errors outside the taxonomy
// classify as ConfigurationError so callers never observe an untyped kind.
func CodeOf(err error) string {
	var member taxonomyMember
	if errors.As(err, &member) {
		return member.taxonomyCode()
	}
	return CodeConfiguration
}

// Ensure wraps err into the taxonomy when it is not already part of it.
func Ensure(err error) error {
	if err == nil {
		return nil
	}
	var member taxonomyMember
	if errors.As(err, &member) {
		return err
	}
	return NewConfigurationError("", err.Error(), err)
}

// FormatViolations renders a violation list as a single multi-line message.
func FormatViolations(violations []Violation) string {
	lines := make([]string, 0, len(violations))
	for _, v := range violations {
		lines = append(lines, "- "+v.String())
	}
	return strings.Join(lines, "\n")
}
