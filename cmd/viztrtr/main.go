// Package main implements the viztrtr CLI: a thin cobra command tree over
// internal/iteration's Controller, plus a few read-only and scaffolding
// commands that never spin up the full iteration loop.
//
// Command files:
//   - main.go   - entry point, rootCmd, global flags, init()
//   - run.go    - runCmd: drives IterationController.Run to a terminal state
//   - init.go   - initCmd: scaffolds a default viztrtr.yaml
//   - config.go - configCmd/configValidateCmd
//   - memory.go - memoryCmd/memoryShowCmd/memoryAvoidListCmd
//   - grep.go   - newProjectGrep, the Validator's caller-impact search
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose      bool
	workspace    string
	configPath   string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "viztrtr",
	Short: "VIZTRTR - autonomous UI improvement pipeline",
	Long: `viztrtr drives a screenshot-capture, vision-critique, and
micro-edit loop against a running frontend until a target design score is
reached, a plateau is detected, or the iteration budget runs out.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.TimeKey = ""
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug-level console logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Project directory (default: current directory)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "viztrtr.yaml", "Path to the viztrtr config file, relative to --workspace")

	configCmd.AddCommand(configValidateCmd)
	memoryCmd.AddCommand(memoryShowCmd, memoryAvoidListCmd)

	rootCmd.AddCommand(
		runCmd,
		initCmd,
		configCmd,
		memoryCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
