package tplengine

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/stepflow-ai/stepflow/engine/core"
)

// renderRefPattern extracts the dotted context paths a template text
// references, whether bare, piped, or passed as a function argument.
var renderRefPattern = regexp.MustCompile(`(?:\{\{-?|[\s(|])\s*\.([a-zA-Z_][a-zA-Z0-9_]*(?:\.[a-zA-Z0-9_-]+)*)`)

// TemplateEngine resolves {{ .path }} expressions inside action inputs.
// A whole-string single reference substitutes the referenced value with its
// original type; references embedded in larger strings render as text.
// Missing paths resolve to absent (nil or empty text), never to an error:
// the consuming action decides whether absence is fatal.
type TemplateEngine struct {
	globalValues map[string]any
}

func NewEngine() *TemplateEngine {
	return &TemplateEngine{globalValues: make(map[string]any)}
}

// AddGlobalValue registers a value available to every resolution.
func (e *TemplateEngine) AddGlobalValue(name string, value any) {
	e.globalValues[name] = value
}

// HasTemplate returns true if the string contains template markers.
func HasTemplate(s string) bool {
	return strings.Contains(s, "{{")
}

// ParseAny resolves templates in a value of any shape, recursing through
// maps and slices.
func (e *TemplateEngine) ParseAny(value any, data map[string]any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch v := value.(type) {
	case string:
		return e.parseStringValue(v, data)
	case map[string]any:
		result := make(map[string]any, len(v))
		for k, val := range v {
			parsed, err := e.ParseAny(val, data)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve template in map key %s: %w", k, err)
			}
			result[k] = parsed
		}
		return result, nil
	case core.Input:
		return e.ParseAny(map[string]any(v), data)
	case core.Output:
		return e.ParseAny(map[string]any(v), data)
	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			parsed, err := e.ParseAny(val, data)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve template in array index %d: %w", i, err)
			}
			result[i] = parsed
		}
		return result, nil
	default:
		return v, nil
	}
}

// ParseInput resolves every template inside an action input map.
func (e *TemplateEngine) ParseInput(input core.Input, data map[string]any) (core.Input, error) {
	if input == nil {
		return core.Input{}, nil
	}
	parsed, err := e.ParseAny(map[string]any(input), data)
	if err != nil {
		return nil, err
	}
	result, ok := parsed.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("resolved input is not a map")
	}
	return core.Input(result), nil
}

func (e *TemplateEngine) parseStringValue(v string, data map[string]any) (any, error) {
	if !HasTemplate(v) {
		return v, nil
	}
	if path, ok := singleReferencePath(v); ok {
		return e.lookupPath(path, data), nil
	}
	return e.renderString(v, data)
}

// RenderString renders a template string to text. Missing references render
// as empty text rather than failing.
func (e *TemplateEngine) RenderString(templateStr string, data map[string]any) (string, error) {
	if !HasTemplate(templateStr) {
		return templateStr, nil
	}
	return e.renderString(templateStr, data)
}

func (e *TemplateEngine) renderString(templateStr string, data map[string]any) (string, error) {
	tmpl, err := template.New("inline").
		Option("missingkey=zero").
		Funcs(sprig.FuncMap()).
		Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}
	// Absent references must render as empty text. Filling them into the
	// context before execution keeps rendered values that legitimately
	// contain the literal "<no value>" intact.
	renderCtx := e.mergedContext(data)
	for _, match := range renderRefPattern.FindAllStringSubmatch(templateStr, -1) {
		renderCtx, _ = fillAbsent(renderCtx, strings.Split(match[1], "."))
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, renderCtx); err != nil {
		return "", fmt.Errorf("template execution error: %w", err)
	}
	return buf.String(), nil
}

// fillAbsent substitutes empty text for a referenced path the context does
// not carry, copying nodes on write so shared maps stay untouched. The
// second return reports whether anything was filled.
func fillAbsent(node map[string]any, segments []string) (map[string]any, bool) {
	if len(segments) == 0 {
		return node, false
	}
	key := segments[0]
	value, exists := node[key]
	if len(segments) == 1 {
		if exists && value != nil {
			return node, false
		}
		return cloneWith(node, key, ""), true
	}
	child, ok := traversableMap(value)
	if !ok {
		if exists && value != nil {
			// A scalar in the middle of the path is a template problem,
			// not an absence.
			return node, false
		}
		return cloneWith(node, key, emptyBranch(segments[1:])), true
	}
	filled, changed := fillAbsent(child, segments[1:])
	if !changed {
		return node, false
	}
	return cloneWith(node, key, filled), true
}

func cloneWith(node map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(node)+1)
	for k, v := range node {
		out[k] = v
	}
	out[key] = value
	return out
}

func emptyBranch(segments []string) map[string]any {
	if len(segments) == 1 {
		return map[string]any{segments[0]: ""}
	}
	return map[string]any{segments[0]: emptyBranch(segments[1:])}
}

func (e *TemplateEngine) mergedContext(data map[string]any) map[string]any {
	merged := make(map[string]any, len(data)+len(e.globalValues))
	for k, v := range data {
		merged[k] = v
	}
	for k, v := range e.globalValues {
		merged[k] = v
	}
	return merged
}

// lookupPath traverses a dotted path against the context, preserving the
// value's original type. Absent paths yield nil.
func (e *TemplateEngine) lookupPath(path string, data map[string]any) any {
	var current any = e.mergedContext(data)
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			continue
		}
		node, ok := traversableMap(current)
		if !ok {
			return nil
		}
		val, exists := node[part]
		if !exists {
			return nil
		}
		current = val
	}
	return current
}

func traversableMap(value any) (map[string]any, bool) {
	switch c := value.(type) {
	case map[string]any:
		return c, true
	case *map[string]any:
		if c != nil {
			return *c, true
		}
	case core.Input:
		return c, true
	case core.Output:
		return c, true
	case *core.Input:
		if c != nil {
			return *c, true
		}
	case *core.Output:
		if c != nil {
			return *c, true
		}
	}
	return nil, false
}

// singleReferencePath detects whole-string expressions like
// "{{ .steps.read.output.content }}" and extracts the dotted path.
func singleReferencePath(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{{") || !strings.HasSuffix(trimmed, "}}") {
		return "", false
	}
	if strings.Count(trimmed, "{{") != 1 || strings.Count(trimmed, "}}") != 1 {
		return "", false
	}
	content := strings.TrimSpace(trimmed[2 : len(trimmed)-2])
	if strings.Contains(content, "|") || strings.Contains(content, " ") {
		return "", false
	}
	if !strings.HasPrefix(content, ".") || len(content) < 2 {
		return "", false
	}
	return content[1:], true
}
