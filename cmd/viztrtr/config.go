package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate the viztrtr config",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load the config and report any problems",
	RunE:  runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		fmt.Println("Config is invalid:")
		fmt.Printf("  %v\n", err)
		return err
	}

	fmt.Printf("Config is valid.\n")
	fmt.Printf("  project_path:   %s\n", cfg.ProjectPath)
	fmt.Printf("  frontend_url:   %s\n", cfg.FrontendURL)
	fmt.Printf("  target_score:   %.2f\n", cfg.TargetScore)
	fmt.Printf("  max_iterations: %d\n", cfg.MaxIterations)
	fmt.Printf("  output_dir:     %s\n", cfg.AbsOutputDir())
	fmt.Printf("  approval:       %s\n", cfg.Approval.Policy)
	if cfg.APIKey() == "" {
		fmt.Printf("  warning: %s is not set in the environment\n", cfg.LLM.APIKeyEnv)
	}
	return nil
}
