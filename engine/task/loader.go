package task

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/stepflow-ai/stepflow/engine/core"
)

// Load reads a task document from the filesystem, resolves it against the
// project root, and returns the validated canonical model. Loading is pure
// beyond the read itself: a returned ValidationError enumerates every
// violation found in one pass.
func Load(fs afero.Fs, cwd *core.PathCWD, path string) (*Config, error) {
	filePath, err := cwd.JoinAndCheck(path)
	if err != nil {
		return nil, core.NewConfigurationError(path, "task file path is invalid", err)
	}
	data, err := afero.ReadFile(fs, filePath)
	if err != nil {
		return nil, core.NewConfigurationError(filePath, "failed to read task file", err)
	}
	config, err := LoadFromBytes(data)
	if err != nil {
		return nil, err
	}
	config.SetFilePath(filePath)
	if err := config.SetCWD(filepath.Dir(filePath)); err != nil {
		return nil, core.NewConfigurationError(filePath, "failed to resolve task directory", err)
	}
	return config, nil
}

// LoadFromBytes parses a YAML task document, normalizes the equivalent
// step/action shapes into the canonical form, and validates the result.
func LoadFromBytes(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, core.NewValidationError("task document is not valid YAML", []core.Violation{
			{Path: "$", Message: fmt.Sprintf("failed to decode YAML: %s", err.Error())},
		})
	}
	config.Normalize()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
