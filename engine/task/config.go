package task

import (
	"fmt"
	"regexp"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/stepflow-ai/stepflow/engine/core"
	"github.com/stepflow-ai/stepflow/engine/schema"
)

// actionIDPattern is the namespace:verb form every dispatched action uses.
var actionIDPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*:[a-z][a-z0-9-]*$`)

// -----------------------------------------------------------------------------
// Config
// -----------------------------------------------------------------------------

// Config is the canonical task definition: an ordered list of steps, each
// composed of one or more actions plus an optional output contract.
type Config struct {
	ID      string   `json:"id"                yaml:"id"                mapstructure:"id"                validate:"required"`
	Name    string   `json:"name,omitempty"    yaml:"name,omitempty"    mapstructure:"name,omitempty"`
	Purpose string   `json:"purpose,omitempty" yaml:"purpose,omitempty" mapstructure:"purpose,omitempty"`
	Steps   []Step   `json:"steps"             yaml:"steps"             mapstructure:"steps"             validate:"required,min=1,dive"`
	Inputs  []string `json:"inputs,omitempty"  yaml:"inputs,omitempty"  mapstructure:"inputs,omitempty"`
	Outputs []string `json:"outputs,omitempty" yaml:"outputs,omitempty" mapstructure:"outputs,omitempty"`
	Tags    []string `json:"tags,omitempty"    yaml:"tags,omitempty"    mapstructure:"tags,omitempty"`

	filePath string
	cwd      *core.PathCWD
}

// Step is a unit of work. Action/Output are accepted input sugar for the
// single-element case; Normalize folds them into Actions/Outputs so the
// canonical model always carries lists.
type Step struct {
	ID          string          `json:"id"                    yaml:"id"                    mapstructure:"id"                    validate:"required"`
	Name        string          `json:"name,omitempty"        yaml:"name,omitempty"        mapstructure:"name,omitempty"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description,omitempty"`
	Action      *Action         `json:"action,omitempty"      yaml:"action,omitempty"      mapstructure:"action,omitempty"`
	Actions     []Action        `json:"actions,omitempty"     yaml:"actions,omitempty"     mapstructure:"actions,omitempty"     validate:"dive"`
	Output      *OutputBinding  `json:"output,omitempty"      yaml:"output,omitempty"      mapstructure:"output,omitempty"`
	Outputs     []OutputBinding `json:"outputs,omitempty"     yaml:"outputs,omitempty"     mapstructure:"outputs,omitempty"`
	Schema      *schema.Schema  `json:"schema,omitempty"      yaml:"schema,omitempty"      mapstructure:"schema,omitempty"`
	Required    *bool           `json:"required,omitempty"    yaml:"required,omitempty"    mapstructure:"required,omitempty"`
}

// Action is a single operation. ID holds the namespace:verb identifier for
// dispatched actions; Function names a registry entry instead. Exactly one
// of the two must be set.
type Action struct {
	ID          string     `json:"id,omitempty"       yaml:"id,omitempty"       mapstructure:"id,omitempty"`
	Function    string     `json:"function,omitempty" yaml:"function,omitempty" mapstructure:"function,omitempty"`
	Description string     `json:"description"        yaml:"description"        mapstructure:"description"        validate:"required"`
	Inputs      core.Input `json:"inputs,omitempty"   yaml:"inputs,omitempty"   mapstructure:"inputs,omitempty"`
}

// OutputBinding names the context key under which an action result is
// stored. From selects a field of the action output; empty From binds the
// whole output object.
type OutputBinding struct {
	Name string `json:"name"           yaml:"name"           mapstructure:"name"           validate:"required"`
	From string `json:"from,omitempty" yaml:"from,omitempty" mapstructure:"from,omitempty"`
}

// -----------------------------------------------------------------------------
// Accessors
// -----------------------------------------------------------------------------

func (t *Config) GetFilePath() string {
	return t.filePath
}

func (t *Config) SetFilePath(path string) {
	t.filePath = path
}

func (t *Config) SetCWD(path string) error {
	cwd, err := core.CWDFromPath(path)
	if err != nil {
		return err
	}
	t.cwd = cwd
	return nil
}

func (t *Config) GetCWD() *core.PathCWD {
	return t.cwd
}

func (t *Config) FindStep(stepID string) (*Step, error) {
	for i := range t.Steps {
		if t.Steps[i].ID == stepID {
			return &t.Steps[i], nil
		}
	}
	return nil, fmt.Errorf("step %q not found in task %q", stepID, t.ID)
}

// HasTag reports whether the task carries the given source override tag.
func (t *Config) HasTag(tag string) bool {
	for _, candidate := range t.Tags {
		if strings.EqualFold(candidate, tag) {
			return true
		}
	}
	return false
}

func (t *Config) Merge(other *Config) error {
	if other == nil {
		return nil
	}
	return mergo.Merge(t, other, mergo.WithOverride)
}

// AsYAML serializes the canonical model. Normalized configs round-trip:
// loading the serialized form yields an identical model.
func (t *Config) AsYAML() ([]byte, error) {
	return yaml.Marshal(t)
}

// IsRequired defaults to true; a step is optional only when declared so.
func (s *Step) IsRequired() bool {
	return s.Required == nil || *s.Required
}

// IsFunction reports whether the action targets the function registry
// instead of the namespaced dispatcher.
func (a *Action) IsFunction() bool {
	return a.Function != ""
}

// Identifier returns the dispatch key of the action for diagnostics.
func (a *Action) Identifier() string {
	if a.IsFunction() {
		return a.Function
	}
	return a.ID
}
