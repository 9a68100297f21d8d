package planner

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/mohae/deepcopy"

	"github.com/stepflow-ai/stepflow/engine/task"
)

var tplRefPattern = regexp.MustCompile(`\{\{-?\s*\.([a-zA-Z0-9_]+(?:\.[a-zA-Z0-9_-]+)*)`)

// Decompose splits an overly complex task into smaller ones, preserving
// step order. Each sub-task re-derives its declared inputs as the context
// keys its steps reference that are not produced earlier within the same
// split. Pure function: no hidden state, no I/O.
func Decompose(cfg *task.Config, decision Decision, maxStepsPerTask int) []*task.Config {
	if !decision.Apply || maxStepsPerTask < 1 || len(cfg.Steps) <= maxStepsPerTask {
		return []*task.Config{cfg}
	}
	var parts []*task.Config
	for offset := 0; offset < len(cfg.Steps); offset += maxStepsPerTask {
		end := offset + maxStepsPerTask
		if end > len(cfg.Steps) {
			end = len(cfg.Steps)
		}
		chunk, ok := deepcopy.Copy(cfg.Steps[offset:end]).([]task.Step)
		if !ok {
			chunk = append([]task.Step(nil), cfg.Steps[offset:end]...)
		}
		index := len(parts) + 1
		sub := &task.Config{
			ID:     fmt.Sprintf("%s-part-%d", cfg.ID, index),
			Name:   fmt.Sprintf("%s (part %d)", cfg.Name, index),
			Steps:  chunk,
			Inputs: deriveInputs(chunk),
			// Sub-tasks never re-enter the planner.
			Tags: []string{TagSkipDecompose},
		}
		// Descriptive fields and the output contract carry over from the parent.
		_ = sub.Merge(&task.Config{Purpose: cfg.Purpose, Outputs: cfg.Outputs})
		if cwd := cfg.GetCWD(); cwd != nil {
			_ = sub.SetCWD(cwd.PathStr())
		}
		parts = append(parts, sub)
	}
	return parts
}

// deriveInputs walks the chunk's action inputs for template references and
// keeps every referenced context key the chunk does not produce itself.
func deriveInputs(steps []task.Step) []string {
	produced := make(map[string]struct{})
	for i := range steps {
		produced[steps[i].ID] = struct{}{}
		for _, binding := range steps[i].Outputs {
			produced[binding.Name] = struct{}{}
		}
	}
	needed := make(map[string]struct{})
	for i := range steps {
		for j := range steps[i].Actions {
			collectReferences(map[string]any(steps[i].Actions[j].Inputs), produced, needed)
		}
	}
	inputs := make([]string, 0, len(needed))
	for key := range needed {
		inputs = append(inputs, key)
	}
	sort.Strings(inputs)
	return inputs
}

func collectReferences(value any, produced, needed map[string]struct{}) {
	switch v := value.(type) {
	case string:
		for _, match := range tplRefPattern.FindAllStringSubmatch(v, -1) {
			recordReference(match[1], produced, needed)
		}
	case map[string]any:
		for _, item := range v {
			collectReferences(item, produced, needed)
		}
	case []any:
		for _, item := range v {
			collectReferences(item, produced, needed)
		}
	}
}

func recordReference(path string, produced, needed map[string]struct{}) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return
	}
	key := segments[0]
	switch key {
	case task.ContextKeyInput:
		if len(segments) > 1 {
			key = segments[1]
		} else {
			return
		}
	case task.ContextKeySteps:
		if len(segments) > 1 {
			key = segments[1]
		} else {
			return
		}
	}
	if _, ok := produced[key]; ok {
		return
	}
	needed[key] = struct{}{}
}

func splitPath(path string) []string {
	var segments []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '.' {
			if i > start {
				segments = append(segments, path[start:i])
			}
			start = i + 1
		}
	}
	return segments
}
