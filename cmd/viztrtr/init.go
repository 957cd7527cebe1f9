package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/viztrtr/viztrtr-core/internal/config"
)

var (
	initFrontendURL string
	initForce       bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold a default viztrtr.yaml in the workspace",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().StringVar(&initFrontendURL, "frontend-url", "http://localhost:3000", "URL of the running frontend to capture")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return fmt.Errorf("resolve workspace: %w", err)
	}
	path := resolveConfigPath(ws)

	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists, pass --force to overwrite", path)
		}
	}

	cfg := config.DefaultConfig()
	cfg.ProjectPath = ws
	cfg.FrontendURL = initFrontendURL

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	fmt.Printf("Wrote %s\n", path)
	fmt.Println("Set your vision/implementation model API key via GEMINI_API_KEY before running 'viztrtr run'.")
	return nil
}
