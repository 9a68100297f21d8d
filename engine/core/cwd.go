package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathCWD is the project root every path-based action resolves against.
// Joined paths may never escape it.
type PathCWD struct {
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

func CWDFromPath(path string) (*PathCWD, error) {
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		return &PathCWD{Path: cwd}, nil
	}
	absPath := path
	if !filepath.IsAbs(path) {
		var err error
		absPath, err = filepath.Abs(path)
		if err != nil {
			return nil, err
		}
	}
	fileInfo, err := os.Stat(absPath)
	if err == nil && !fileInfo.IsDir() {
		absPath = filepath.Dir(absPath)
	}
	return &PathCWD{Path: absPath}, nil
}

func (c *PathCWD) PathStr() string {
	if c == nil {
		return ""
	}
	return c.Path
}

func (c *PathCWD) Validate() error {
	if c == nil || c.Path == "" {
		return errors.New("current working directory not set")
	}
	return nil
}

// JoinAndCheck joins path onto the root and verifies the result stays inside
// it. Absolute paths and traversal sequences that escape the root are
// rejected before any filesystem access happens.
func (c *PathCWD) JoinAndCheck(path string) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	if path == "" {
		return "", errors.New("path cannot be empty")
	}
	joined := path
	if !filepath.IsAbs(joined) {
		joined = filepath.Join(c.Path, joined)
	}
	resolved, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	rel, err := filepath.Rel(c.Path, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes project root %q", path, c.Path)
	}
	return resolved, nil
}
