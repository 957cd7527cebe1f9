package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/viztrtr/viztrtr-core/internal/config"
)

// resolveWorkspace returns the absolute project directory, defaulting to
// the current working directory when --workspace is unset.
func resolveWorkspace() (string, error) {
	if workspace == "" {
		return os.Getwd()
	}
	return filepath.Abs(workspace)
}

// resolveConfigPath joins --config against the resolved workspace unless
// it is already absolute.
func resolveConfigPath(ws string) string {
	if filepath.IsAbs(configPath) {
		return configPath
	}
	return filepath.Join(ws, configPath)
}

// loadConfig loads the viztrtr config for the resolved workspace, filling
// ProjectPath with the workspace itself when the file leaves it blank. It
// does not call Validate; callers that need validation run it themselves.
func loadConfig() (*config.Config, error) {
	ws, err := resolveWorkspace()
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	path := resolveConfigPath(ws)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if cfg.ProjectPath == "" {
		cfg.ProjectPath = ws
	}
	return cfg, nil
}
