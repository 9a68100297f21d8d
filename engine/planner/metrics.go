package planner

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/stepflow-ai/stepflow/engine/task"
)

// Metrics are the measured complexity signals of a task: plain counts plus
// the complexity phrases detected in its prose.
type Metrics struct {
	TaskCount     int      `json:"task_count"`
	FileCount     int      `json:"file_count"`
	EndpointCount int      `json:"endpoint_count"`
	ModelCount    int      `json:"model_count"`
	FieldCount    int      `json:"field_count"`
	CriteriaCount int      `json:"criteria_count"`
	Phrases       []string `json:"phrases,omitempty"`
}

// Thresholds bound each metric. They are externally configured; zero values
// fall back to defaults at config load.
type Thresholds struct {
	TaskCount     int `json:"task_count"     koanf:"task_count"     mapstructure:"task_count"`
	FileCount     int `json:"file_count"     koanf:"file_count"     mapstructure:"file_count"`
	EndpointCount int `json:"endpoint_count" koanf:"endpoint_count" mapstructure:"endpoint_count"`
	ModelCount    int `json:"model_count"    koanf:"model_count"    mapstructure:"model_count"`
	FieldCount    int `json:"field_count"    koanf:"field_count"    mapstructure:"field_count"`
	CriteriaCount int `json:"criteria_count" koanf:"criteria_count" mapstructure:"criteria_count"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		TaskCount:     7,
		FileCount:     5,
		EndpointCount: 4,
		ModelCount:    3,
		FieldCount:    12,
		CriteriaCount: 8,
	}
}

// complexityPhrases fire on prose that historically correlates with tasks
// too large to execute in one pass.
var complexityPhrases = []string{
	"end-to-end",
	"entire system",
	"across all",
	"migration",
	"refactor everything",
	"multiple services",
	"full rewrite",
	"comprehensive",
}

var (
	explicitCountPattern = regexp.MustCompile(`(?i)\b(\d+)\s+(endpoints?|models?|fields?|acceptance criteria)\b`)
	endpointPattern      = regexp.MustCompile(`(?i)\bendpoints?\b|(^|\s)/api/[a-z0-9/_-]+`)
	modelPattern         = regexp.MustCompile(`(?i)\b(data )?models?\b|\bentit(y|ies)\b`)
	fieldPattern         = regexp.MustCompile(`(?i)\bfields?\b|\bcolumns?\b`)
	checklistPattern     = regexp.MustCompile(`(?m)^\s*- \[[ xX]\]`)
)

// Analyze measures a task definition. It is a pure function over the
// canonical model: no I/O, no hidden state.
func Analyze(cfg *task.Config) Metrics {
	text := collectProse(cfg)
	metrics := Metrics{
		TaskCount:     len(cfg.Steps),
		FileCount:     countReferencedFiles(cfg),
		EndpointCount: countSignal(text, "endpoint", endpointPattern),
		ModelCount:    countSignal(text, "model", modelPattern),
		FieldCount:    countSignal(text, "field", fieldPattern),
		CriteriaCount: countCriteria(text),
	}
	lowered := strings.ToLower(text)
	for _, phrase := range complexityPhrases {
		if strings.Contains(lowered, phrase) {
			metrics.Phrases = append(metrics.Phrases, phrase)
		}
	}
	return metrics
}

func collectProse(cfg *task.Config) string {
	var sb strings.Builder
	sb.WriteString(cfg.Name)
	sb.WriteString("\n")
	sb.WriteString(cfg.Purpose)
	for i := range cfg.Steps {
		step := &cfg.Steps[i]
		sb.WriteString("\n")
		sb.WriteString(step.Name)
		sb.WriteString("\n")
		sb.WriteString(step.Description)
		for j := range step.Actions {
			sb.WriteString("\n")
			sb.WriteString(step.Actions[j].Description)
		}
	}
	return sb.String()
}

func countReferencedFiles(cfg *task.Config) int {
	seen := make(map[string]struct{})
	for i := range cfg.Steps {
		for j := range cfg.Steps[i].Actions {
			action := &cfg.Steps[i].Actions[j]
			if !strings.HasPrefix(action.ID, "file:") {
				continue
			}
			if path, ok := action.Inputs["path"].(string); ok && path != "" {
				seen[path] = struct{}{}
			}
		}
	}
	return len(seen)
}

// countSignal prefers an explicit "N <noun>" statement and falls back to
// counting bare mentions.
func countSignal(text, noun string, mentions *regexp.Regexp) int {
	best := 0
	for _, match := range explicitCountPattern.FindAllStringSubmatch(text, -1) {
		if !strings.HasPrefix(strings.ToLower(match[2]), noun) {
			continue
		}
		if n, err := strconv.Atoi(match[1]); err == nil && n > best {
			best = n
		}
	}
	if best > 0 {
		return best
	}
	return len(mentions.FindAllString(text, -1))
}

func countCriteria(text string) int {
	best := 0
	for _, match := range explicitCountPattern.FindAllStringSubmatch(text, -1) {
		if strings.HasPrefix(strings.ToLower(match[2]), "acceptance") {
			if n, err := strconv.Atoi(match[1]); err == nil && n > best {
				best = n
			}
		}
	}
	if checked := len(checklistPattern.FindAllString(text, -1)); checked > best {
		best = checked
	}
	return best
}
