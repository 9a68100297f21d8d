package schema

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonschema"

	"github.com/stepflow-ai/stepflow/engine/core"
)

// -----------------------------------------------------------------------------
// Schema
// -----------------------------------------------------------------------------

// Schema is an opaque JSON Schema document. The engine treats it as a
// plug-in at the step validation boundary: anything the compiler accepts
// (required properties, types, enumerations) works here.
type Schema map[string]any

func (s *Schema) String() string {
	raw, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(raw)
}

func (s *Schema) Compile() (*jsonschema.Schema, error) {
	if s == nil {
		return nil, nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiled, err := compiler.Compile(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return compiled, nil
}

// Validate checks value against the schema and returns every violation
// found, not just the first.
func (s *Schema) Validate(_ context.Context, value any) ([]core.Violation, error) {
	compiled, err := s.Compile()
	if err != nil {
		return nil, err
	}
	if compiled == nil {
		return nil, nil
	}
	result := compiled.Validate(value)
	if result.IsValid() {
		return nil, nil
	}
	return collectViolations(result.ToList()), nil
}

func collectViolations(list *jsonschema.List) []core.Violation {
	if list == nil {
		return nil
	}
	var violations []core.Violation
	if !list.Valid {
		path := list.InstanceLocation
		if path == "" {
			path = "/"
		}
		for _, msg := range list.Errors {
			violations = append(violations, core.Violation{Path: path, Message: msg})
		}
	}
	for i := range list.Details {
		violations = append(violations, collectViolations(&list.Details[i])...)
	}
	return violations
}
