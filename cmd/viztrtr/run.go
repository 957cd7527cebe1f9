package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/viztrtr/viztrtr-core/internal/adapters/approval"
	"github.com/viztrtr/viztrtr-core/internal/adapters/build"
	"github.com/viztrtr/viztrtr-core/internal/adapters/capture"
	"github.com/viztrtr/viztrtr-core/internal/adapters/implementation"
	"github.com/viztrtr/viztrtr-core/internal/adapters/metrics"
	"github.com/viztrtr/viztrtr-core/internal/adapters/vision"
	"github.com/viztrtr/viztrtr-core/internal/config"
	"github.com/viztrtr/viztrtr-core/internal/iteration"
	"github.com/viztrtr/viztrtr-core/internal/logging"
	"github.com/viztrtr/viztrtr-core/internal/memory"
	"github.com/viztrtr/viztrtr-core/internal/validator"
)

var (
	runTimeout  time.Duration
	runHeadless bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the capture/critique/edit loop until a terminal state is reached",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 60*time.Minute, "Overall run timeout")
	runCmd.Flags().BoolVar(&runHeadless, "headless", true, "Run the capture/metrics browser headless")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(iteration.ExitConfigError)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(iteration.ExitConfigError)
	}

	logging.Configure(cfg.AbsOutputDir(), logging.Config{
		DebugMode:  cfg.Logging.DebugMode,
		Categories: cfg.Logging.Categories,
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.JSONFormat,
	})

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if _, ok := <-sigCh; ok {
			fmt.Fprintln(os.Stderr, "\nviztrtr: received interrupt, finishing the current iteration then stopping")
			cancel()
		}
	}()
	defer signal.Stop(sigCh)

	apiKey := cfg.APIKey()
	if apiKey == "" {
		fmt.Fprintf(os.Stderr, "config error: %s is not set\n", cfg.LLM.APIKeyEnv)
		os.Exit(iteration.ExitConfigError)
	}

	captureAdapter := capture.New(runHeadless, cfg.Capture, filepath.Join(cfg.AbsOutputDir(), "screenshots"))
	defer captureAdapter.Close()

	visionAdapter, err := vision.New(ctx, apiKey, cfg.LLM.VisionModel, cfg.DesignSystem.Allow)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(iteration.ExitConfigError)
	}

	implAdapter, err := implementation.New(ctx, apiKey, cfg.LLM.ImplementationModel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(iteration.ExitConfigError)
	}

	buildAdapter := build.New(cfg.Build)
	metricsAdapter := metrics.New(runHeadless, 0)
	defer metricsAdapter.Close()

	approvalSource := approval.NewTerminalSource()
	mem := memory.New(cfg.AbsOutputDir(), cfg.Memory)
	val := validator.New(cfg.Constraints, cfg.DesignSystem, newProjectGrep(cfg.ProjectPath, cfg.FileDiscovery))

	ctrl := iteration.New(cfg, captureAdapter, visionAdapter, implAdapter, buildAdapter, metricsAdapter, metricsAdapter, approvalSource, mem, val)

	fmt.Printf("viztrtr: targeting score %.2f over up to %d iteration(s) against %s\n", cfg.TargetScore, cfg.MaxIterations, cfg.FrontendURL)

	result, runErr := ctrl.Run(ctx)

	fmt.Println()
	fmt.Printf("Result: %s\n", exitCodeLabel(result.ExitCode))
	fmt.Printf("Final score: %.2f (target %.2f)\n", result.FinalScore, cfg.TargetScore)
	fmt.Printf("Iterations run: %d\n", len(result.Iterations))
	fmt.Printf("Report written to %s\n", cfg.AbsOutputDir())

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "viztrtr: %v\n", runErr)
	}
	os.Exit(result.ExitCode)
	return nil
}

func exitCodeLabel(code int) string {
	switch code {
	case iteration.ExitTargetReached:
		return "target score reached"
	case iteration.ExitIterationsExhausted:
		return "iteration budget exhausted"
	case iteration.ExitPlateau:
		return "plateaued"
	case iteration.ExitConfigError:
		return "configuration error"
	default:
		return "unrecoverable error"
	}
}
