package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConfigPathJoinsRelativeToWorkspace(t *testing.T) {
	orig := configPath
	defer func() { configPath = orig }()

	configPath = "viztrtr.yaml"
	assert.Equal(t, filepath.Join("/project", "viztrtr.yaml"), resolveConfigPath("/project"))

	configPath = "/abs/custom.yaml"
	assert.Equal(t, "/abs/custom.yaml", resolveConfigPath("/project"))
}

func TestLoadConfigDefaultsProjectPathToWorkspace(t *testing.T) {
	origWS, origCfg := workspace, configPath
	defer func() { workspace, configPath = origWS, origCfg }()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "viztrtr.yaml"), []byte("frontend_url: http://localhost:3000\n"), 0o644))

	workspace = dir
	configPath = "viztrtr.yaml"

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.ProjectPath)
	assert.Equal(t, "http://localhost:3000", cfg.FrontendURL)
}
