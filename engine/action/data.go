package action

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/stepflow-ai/stepflow/engine/core"
)

const frontmatterMarker = "---"

// extractFrontmatter implements data:extract-frontmatter: split the
// document at the leading metadata marker, parse the block as YAML, and
// pull out the named key (dotted paths select nested values). Absent marker
// or key is a typed failure.
func (d *Dispatcher) extractFrontmatter(actionID string, inputs core.Input) (core.Output, error) {
	content, err := stringInput(actionID, inputs, "content")
	if err != nil {
		return nil, err
	}
	key, err := stringInput(actionID, inputs, "key")
	if err != nil {
		return nil, err
	}
	block, body, err := splitFrontmatter(content)
	if err != nil {
		return nil, core.NewActionExecutionError(actionID, inputs, err)
	}
	var metadata map[string]any
	if err := yaml.Unmarshal([]byte(block), &metadata); err != nil {
		return nil, core.NewActionExecutionError(actionID, inputs,
			fmt.Errorf("frontmatter block is not valid YAML: %w", err))
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, core.NewActionExecutionError(actionID, inputs, err)
	}
	result := gjson.GetBytes(raw, key)
	if !result.Exists() {
		return nil, core.NewActionExecutionError(actionID, inputs,
			fmt.Errorf("frontmatter key %q is absent", key))
	}
	return core.Output{
		"value":       result.Value(),
		"frontmatter": metadata,
		"body":        body,
	}, nil
}

func splitFrontmatter(content string) (block, body string, err error) {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(normalized, frontmatterMarker+"\n") {
		return "", "", fmt.Errorf("document does not start with a frontmatter marker")
	}
	rest := normalized[len(frontmatterMarker)+1:]
	end := strings.Index(rest, "\n"+frontmatterMarker)
	if end < 0 {
		return "", "", fmt.Errorf("frontmatter block is not terminated")
	}
	block = rest[:end]
	body = rest[end+len(frontmatterMarker)+1:]
	body = strings.TrimPrefix(body, "\n")
	return block, body, nil
}
