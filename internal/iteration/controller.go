// Package iteration implements IterationController (spec.md component
// C12): the outer state machine tying every other component together,
// one full pass per iteration from Capture through PersistMemory.
// Grounded on the teacher's internal/campaign orchestrator_phases.go /
// orchestrator_failure.go pair — a sequential phase runner that records
// per-attempt outcomes and applies exponential backoff to transient
// provider errors — generalized from campaign phases/tasks to VIZTRTR's
// fixed Capture->...->PersistMemory pipeline.
package iteration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/viztrtr/viztrtr-core/internal/approval"
	"github.com/viztrtr/viztrtr-core/internal/config"
	"github.com/viztrtr/viztrtr-core/internal/discovery"
	"github.com/viztrtr/viztrtr-core/internal/execution"
	"github.com/viztrtr/viztrtr-core/internal/filter"
	"github.com/viztrtr/viztrtr-core/internal/logging"
	"github.com/viztrtr/viztrtr-core/internal/memory"
	"github.com/viztrtr/viztrtr-core/internal/orchestrator"
	"github.com/viztrtr/viztrtr-core/internal/reflection"
	"github.com/viztrtr/viztrtr-core/internal/report"
	"github.com/viztrtr/viztrtr-core/internal/scoring"
	"github.com/viztrtr/viztrtr-core/internal/toolkit"
	"github.com/viztrtr/viztrtr-core/internal/types"
	"github.com/viztrtr/viztrtr-core/internal/validator"
	"github.com/viztrtr/viztrtr-core/internal/verification"
)

// Capturer is CaptureAdapter (spec.md section 6).
type Capturer interface {
	Capture(ctx context.Context, url string, opts config.ScreenshotConfig) (types.Screenshot, error)
}

// VisionAdapter is VisionAdapter (spec.md section 6): analyze(screenshot,
// memoryContext, projectContext, avoidedComponents) -> DesignSpec, plus
// the per-dimension Score HybridScorer needs from the same vision model
// (scoring.VisionScorer's exact method, so the one adapter instance
// satisfies both roles with no glue code).
type VisionAdapter interface {
	Analyze(ctx context.Context, screenshot types.Screenshot, memoryContext string, projectContext map[string]string, avoidedComponents []string) (types.DesignSpec, error)
	Score(ctx context.Context, screenshot types.Screenshot) (dimensionScores map[types.Dimension]float64, dimensionWeights map[types.Dimension]float64, insights []string, err error)
}

// CompletionModel is ImplementationAdapter's schema-constrained
// completion call, shared identically by discovery.PlanGenerator and
// reflection.Reasoner.
type CompletionModel interface {
	CompleteWithSchema(ctx context.Context, systemPrompt, userPrompt, jsonSchema string) (string, error)
}

// Exit codes match spec.md section 6's CLI contract.
const (
	ExitTargetReached    = 0
	ExitIterationsExhausted = 1
	ExitPlateau          = 2
	ExitConfigError      = 3
	ExitUnrecoverable    = 4
)

// Result is the outcome of a full controller Run.
type Result struct {
	ExitCode   int
	Iterations []types.IterationResult
	FinalScore float64
}

// Controller is IterationController.
type Controller struct {
	cfg *config.Config

	capture Capturer
	vision  VisionAdapter
	model   CompletionModel
	build   verification.BuildAdapter
	runtime verification.RuntimeChecker
	metrics scoring.MetricsAdapter
	val     *validator.Validator

	mem       *memory.Store
	filterer  *filter.Filter
	gate      *approval.Gate
	scorer    *scoring.Scorer
	reflector *reflection.Agent
	discover  *discovery.Agent

	consoleErrorThreshold int
}

// defaultConsoleErrorThreshold is the default number of new console errors
// VerificationAgent tolerates before treating a runtime smoke check as
// failed; spec.md leaves the exact number as a config detail it never
// pins down, so this is a deliberately conservative default.
const defaultConsoleErrorThreshold = 0

const defaultReflectionTimeout = 60 * time.Second
const defaultMetricsTimeout = 60 * time.Second

// New wires one IterationController. approvalSource, mem, and val are
// owned by the caller (cmd/viztrtr) since their construction needs
// details (TTY detection, disk paths, project grep) the controller has
// no business knowing.
func New(cfg *config.Config, capture Capturer, vision VisionAdapter, model CompletionModel, build verification.BuildAdapter, runtime verification.RuntimeChecker, metrics scoring.MetricsAdapter, approvalSource approval.Source, mem *memory.Store, val *validator.Validator) *Controller {
	return &Controller{
		cfg:     cfg,
		capture: capture,
		vision:  vision,
		model:   model,
		build:   build,
		runtime: runtime,
		metrics: metrics,
		val:     val,

		mem:       mem,
		filterer:  filter.NewFromConfig(mem, cfg.Memory),
		gate:      approval.New(approvalSource, cfg.Approval),
		scorer:    scoring.New(vision, metrics, cfg.ScoringWeights, cfg.MetricsWeights),
		reflector: reflection.New(model, mem, 0),
		discover:  discovery.New(cfg.ProjectPath, model, cfg.FileDiscovery),

		consoleErrorThreshold: defaultConsoleErrorThreshold,
	}
}

// Run drives the full Init->...->Terminate state machine, persisting
// memory after every iteration and returning once a terminal state is
// reached.
func (c *Controller) Run(ctx context.Context) (*Result, error) {
	log := logging.Get(logging.CategoryIteration)

	if err := c.mem.Load(); err != nil {
		return &Result{ExitCode: ExitConfigError}, fmt.Errorf("iteration: load memory: %w", err)
	}
	defer c.mem.Close()

	result := &Result{}
	var deltas []float64

	for n := 1; n <= c.cfg.MaxIterations; n++ {
		if err := ctx.Err(); err != nil {
			log.Warn("iteration %d: cancelled before start", n)
			result.ExitCode = ExitUnrecoverable
			return c.finishRun(result, err)
		}

		ir, err := c.runOne(ctx, n)
		result.Iterations = append(result.Iterations, ir)
		c.writeIterationArtifacts(n, ir)
		if err != nil {
			log.Error("iteration %d: unrecoverable: %v", n, err)
			result.ExitCode = ExitUnrecoverable
			return c.finishRun(result, err)
		}

		if ir.Score != nil {
			result.FinalScore = ir.Score.CompositeScore
			delta := ir.Score.CompositeScore - ir.DesignSpec.CurrentScore
			deltas = append(deltas, delta)

			if ir.Score.CompositeScore >= c.cfg.TargetScore {
				log.Info("iteration %d: target score %.2f reached (%.2f)", n, c.cfg.TargetScore, ir.Score.CompositeScore)
				result.ExitCode = ExitTargetReached
				return c.finishRun(result, nil)
			}
			if plateaued(deltas, c.cfg.Plateau) {
				log.Info("iteration %d: plateaued over last %d iteration(s) (epsilon %.3f)", n, c.cfg.Plateau.WindowIterations, c.cfg.Plateau.Epsilon)
				result.ExitCode = ExitPlateau
				return c.finishRun(result, nil)
			}
		}
	}

	log.Info("iteration budget of %d exhausted without reaching target score %.2f", c.cfg.MaxIterations, c.cfg.TargetScore)
	result.ExitCode = ExitIterationsExhausted
	return c.finishRun(result, nil)
}

// writeIterationArtifacts persists one iteration_<n> directory per
// spec.md section 6's on-disk layout. A write failure is logged, not
// propagated: artifact persistence is diagnostic, never a reason to
// abort a run that otherwise completed the iteration.
func (c *Controller) writeIterationArtifacts(n int, ir types.IterationResult) {
	if err := report.WriteIteration(c.cfg.AbsOutputDir(), n, ir); err != nil {
		logging.Get(logging.CategoryReport).Warn("iteration %d: %v", n, err)
	}
}

// finishRun writes the final report.json/REPORT.md roll-up before
// returning, regardless of which terminal state was reached, per
// spec.md section 7's "on any terminal state" requirement. The
// original error (if any) is returned unchanged.
func (c *Controller) finishRun(result *Result, runErr error) (*Result, error) {
	doc := report.BuildDocument(result.ExitCode, c.cfg.TargetScore, result.Iterations, c.mem.Snapshot())
	if err := report.WriteFinal(c.cfg.AbsOutputDir(), doc); err != nil {
		logging.Get(logging.CategoryReport).Warn("final report: %v", err)
	}
	return result, runErr
}

// plateaued reports whether the last cfg.WindowIterations deltas are all
// within epsilon of zero (spec.md section 4.13's plateau terminal state).
func plateaued(deltas []float64, cfg config.PlateauConfig) bool {
	window := cfg.WindowIterations
	if window <= 0 {
		window = 3
	}
	epsilon := cfg.Epsilon
	if epsilon <= 0 {
		epsilon = 0.1
	}
	if len(deltas) < window {
		return false
	}
	for _, d := range deltas[len(deltas)-window:] {
		if d < 0 {
			d = -d
		}
		if d >= epsilon {
			return false
		}
	}
	return true
}

// runOne executes one full Capture->PersistMemory pass. A non-nil error
// return signals a genuinely unrecoverable condition (e.g. the project
// tree became unreadable); every other failure mode is represented by
// the returned IterationResult's Outcome field and the loop in Run
// continues to the next iteration as normal.
func (c *Controller) runOne(ctx context.Context, n int) (types.IterationResult, error) {
	log := logging.Get(logging.CategoryIteration)
	result := types.IterationResult{
		Iteration:   n,
		StartedAt:   timeNow(),
		Validations: map[string]types.ValidationResult{},
	}
	// finish ends the iteration at outcome and flushes memory to disk
	// before returning, matching spec.md section 3's "flushed to disk
	// after each iteration" lifecycle and section 8's invariant that the
	// on-disk document is always a superset of the in-memory snapshot at
	// iteration end — every PersistMemory transition in section 4.13,
	// including the early ones (capture_failed, vision_failed,
	// no_candidates, rejected_by_human), goes through here rather than
	// only the success/broke_build paths.
	finish := func(outcome string) (types.IterationResult, error) {
		result.Outcome = outcome
		result.EndedAt = timeNow()
		if err := c.mem.Save(); err != nil {
			return result, fmt.Errorf("persist memory: %w", err)
		}
		return result, nil
	}

	// Capture
	captureCtx, cancel := context.WithTimeout(ctx, c.captureTimeout())
	before, err := c.capture.Capture(captureCtx, c.cfg.FrontendURL, c.cfg.Screenshot)
	cancel()
	if err != nil {
		log.Error("iteration %d: capture failed: %v", n, err)
		return finish("capture_failed")
	}
	result.BeforeScreenshot = before

	// Analyze
	avoided := c.mem.GetAvoidedComponents()
	memoryContext := c.mem.ContextSummary()
	projectContext := c.projectContext()

	var spec types.DesignSpec
	err = withBackoff(ctx, "vision.analyze", func() error {
		visCtx, cancel := context.WithTimeout(ctx, c.visionTimeout())
		defer cancel()
		var aerr error
		spec, aerr = c.vision.Analyze(visCtx, before, memoryContext, projectContext, avoided)
		return aerr
	})
	if err != nil {
		log.Error("iteration %d: vision analyze failed after retries: %v", n, err)
		return finish("vision_failed")
	}
	result.DesignSpec = spec

	// Filter
	filtered := c.filterer.Apply(spec.Recommendations)
	c.recordRejections(n, filtered.Rejected)
	if len(filtered.Approved) == 0 {
		log.Info("iteration %d: no recommendations survived filtering", n)
		c.reflectNoOp(ctx, n, &result)
		return finish("no_candidates")
	}

	// Approve
	decision := c.gate.Decide(ctx, n, filtered.Approved)
	if decision.SkipIteration || len(decision.Approved) == 0 {
		for _, rec := range filtered.Approved {
			c.mem.RecordAttempt(rec, n, types.OutcomeRejectedByHuman, nil, "rejected or skipped by approval gate")
		}
		log.Info("iteration %d: approval gate rejected or skipped the iteration", n)
		return finish("rejected_by_human")
	}

	// Route: fresh toolkit/execution/router per iteration since
	// toolkit.New scopes backups to this iteration number.
	candidates, err := scanCandidates(c.cfg.ProjectPath, c.cfg.FileDiscovery)
	if err != nil {
		return result, fmt.Errorf("scan candidate files: %w", err)
	}

	tk := toolkit.New(c.cfg.ProjectPath, c.cfg.AbsOutputDir(), n, c.cfg.Memory.LineFallbackRadius)
	execAgent := execution.New(tk)
	router := orchestrator.New(
		[]orchestrator.Specialist{{
			Name:      "default",
			Domain:    "general",
			Predicate: func(types.Recommendation) float64 { return 1 },
			Discovery: c.discover,
			Execution: execAgent,
		}},
		"default", c.val, projectFileReader{root: c.cfg.ProjectPath}, candidates, c.cfg.Concurrency.SpecialistCap,
	)

	// Execute
	execReport := router.Route(ctx, decision.Approved)
	result.Changes = execReport.Changes
	result.Outcomes = execReport.Outcomes
	c.recordExecutionAttempts(n, decision.Approved, execReport)

	// Verify
	verifyAgent := verification.New(c.build, c.runtime, tk, c.consoleErrorThreshold)
	verifyCtx, cancel := context.WithTimeout(ctx, c.buildTimeout())
	report := verifyAgent.Verify(verifyCtx, c.cfg.ProjectPath, c.cfg.FrontendURL)
	cancel()

	if !report.Success {
		log.Warn("iteration %d: verification failed (%s), rolled back=%v", n, report.Reason, report.RolledBack)
		for _, rec := range decision.Approved {
			c.mem.RecordAttempt(rec, n, types.OutcomeBrokeBuild, changedFilesFor(rec.ID, execReport), report.Reason)
		}
		c.mem.RecordLessons(n, []string{"verification failed: " + report.Reason})
		return finish("broke_build")
	}
	tk.CommitIteration()

	// Evaluate
	afterCtx, cancel := context.WithTimeout(ctx, c.captureTimeout())
	after, err := c.capture.Capture(afterCtx, c.cfg.FrontendURL, c.cfg.Screenshot)
	cancel()
	if err != nil {
		log.Error("iteration %d: post-change capture failed: %v", n, err)
		return finish("capture_failed")
	}
	result.AfterScreenshot = &after

	scoreCtx, cancel := context.WithTimeout(ctx, defaultMetricsTimeout)
	score, err := c.scorer.Score(scoreCtx, after, c.cfg.FrontendURL)
	cancel()
	if err != nil {
		log.Error("iteration %d: scoring failed: %v", n, err)
		return finish("scoring_failed")
	}
	result.Score = &score

	delta := score.CompositeScore - spec.CurrentScore
	targetReached := score.CompositeScore >= c.cfg.TargetScore
	c.mem.RecordScore(types.ScoreHistoryEntry{
		Iteration: n, BeforeScore: spec.CurrentScore, AfterScore: score.CompositeScore, Delta: delta, TargetReached: targetReached,
	})

	// Reflect
	var reflectOutcome reflection.Outcome
	err = withBackoff(ctx, "reflection", func() error {
		rCtx, cancel := context.WithTimeout(ctx, defaultReflectionTimeout)
		defer cancel()
		var rerr error
		reflectOutcome, rerr = c.reflector.Reflect(rCtx, result, delta, false, c.mem.Snapshot())
		return rerr
	})
	if err != nil {
		log.Warn("iteration %d: reflection failed after retries: %v", n, err)
	} else {
		result.Reflection = strings.Join(reflectOutcome.Lessons, "; ")
		result.NextActionHint = strings.Join(reflectOutcome.NextSteps, "; ")
		c.mem.RecordLessons(n, reflectOutcome.Lessons)
		if reflectOutcome.ShouldRollback {
			if rbErr := tk.RollbackIteration(); rbErr != nil {
				log.Error("iteration %d: rollback after reflection failed: %v", n, rbErr)
			}
			for _, rec := range decision.Approved {
				c.mem.RecordAttempt(rec, n, types.OutcomeFailed, changedFilesFor(rec.ID, execReport), "rolled back after reflection")
			}
		}
	}

	outcome := "success"
	if targetReached {
		outcome = "target_reached"
	}
	return finish(outcome)
}

// reflectNoOp runs ReflectionAgent for an iteration that never reached
// Execute (no surviving recommendations), matching spec.md section
// 4.13's "Filter: if none approved, jump to Reflect with outcome
// 'no_candidates'" transition — there is no score delta or rollback to
// consider, so this is the main Reflect block stripped of both.
func (c *Controller) reflectNoOp(ctx context.Context, n int, result *types.IterationResult) {
	log := logging.Get(logging.CategoryIteration)
	var reflectOutcome reflection.Outcome
	err := withBackoff(ctx, "reflection", func() error {
		rCtx, cancel := context.WithTimeout(ctx, defaultReflectionTimeout)
		defer cancel()
		var rerr error
		reflectOutcome, rerr = c.reflector.Reflect(rCtx, *result, 0, false, c.mem.Snapshot())
		return rerr
	})
	if err != nil {
		log.Warn("iteration %d: reflection failed after retries: %v", n, err)
		return
	}
	result.Reflection = strings.Join(reflectOutcome.Lessons, "; ")
	result.NextActionHint = strings.Join(reflectOutcome.NextSteps, "; ")
	c.mem.RecordLessons(n, reflectOutcome.Lessons)
}

func (c *Controller) recordRejections(n int, rejections []filter.Rejection) {
	for _, rej := range rejections {
		c.mem.RecordAttempt(rej.Recommendation, n, types.OutcomeRejectedByFilter, nil, rej.Reason)
	}
}

// recordExecutionAttempts records one MemoryStore attempt per approved
// recommendation, deriving its outcome from the ExecutionOutcomes the
// router attributed to it (types.ExecutionOutcome.RecommendationID).
func (c *Controller) recordExecutionAttempts(n int, recs []types.Recommendation, report types.ExecutionReport) {
	byRec := map[string][]types.ExecutionOutcome{}
	for _, o := range report.Outcomes {
		byRec[o.RecommendationID] = append(byRec[o.RecommendationID], o)
	}

	for _, rec := range recs {
		outcomes := byRec[rec.ID]
		outcome, reason := summarizeOutcomes(outcomes)
		c.mem.RecordAttempt(rec, n, outcome, changedFilesFor(rec.ID, report), reason)
	}
}

func summarizeOutcomes(outcomes []types.ExecutionOutcome) (types.Outcome, string) {
	if len(outcomes) == 0 {
		return types.OutcomeNoEffect, "no planned changes were produced"
	}
	applied, skipped, failed := 0, 0, 0
	var lastReason string
	for _, o := range outcomes {
		switch o.Status {
		case types.StatusApplied:
			applied++
		case types.StatusSkipped:
			skipped++
			lastReason = o.Reason
		case types.StatusFailed:
			failed++
			lastReason = o.Reason
		}
	}
	switch {
	case applied > 0:
		return types.OutcomeSuccess, ""
	case failed > 0:
		return types.OutcomeFailed, lastReason
	case skipped > 0:
		return types.OutcomeRejectedByValidator, lastReason
	default:
		return types.OutcomeNoEffect, ""
	}
}

func changedFilesFor(recID string, report types.ExecutionReport) []string {
	seen := map[string]bool{}
	var out []string
	for _, fc := range report.Changes {
		if fc.RecommendationID == recID && !seen[fc.FilePath] {
			seen[fc.FilePath] = true
			out = append(out, fc.FilePath)
		}
	}
	return out
}

func (c *Controller) projectContext() map[string]string {
	ctx := map[string]string{
		"frontend_url": c.cfg.FrontendURL,
	}
	if len(c.cfg.DesignSystem.Allow) > 0 {
		ctx["design_system_allow"] = strings.Join(c.cfg.DesignSystem.Allow, ", ")
	}
	return ctx
}

func (c *Controller) captureTimeout() time.Duration {
	if c.cfg.Capture.Timeout > 0 {
		return c.cfg.Capture.Timeout
	}
	return 30 * time.Second
}

func (c *Controller) visionTimeout() time.Duration {
	if c.cfg.LLM.VisionTimeout > 0 {
		return c.cfg.LLM.VisionTimeout
	}
	return 120 * time.Second
}

func (c *Controller) buildTimeout() time.Duration {
	if c.cfg.Build.Timeout > 0 {
		return c.cfg.Build.Timeout
	}
	return 300 * time.Second
}

// scanCandidates flattens discovery.ScanCandidates' directory grouping
// into the flat slice discovery.Agent.Discover and orchestrator.Router
// both consume.
func scanCandidates(root string, cfg config.FileDiscoveryConfig) ([]discovery.CandidateFile, error) {
	groups, err := discovery.ScanCandidates(root, cfg)
	if err != nil {
		return nil, err
	}
	var out []discovery.CandidateFile
	for _, g := range groups {
		out = append(out, g.Files...)
	}
	return out, nil
}

// projectFileReader satisfies orchestrator.FileReader by reading files
// relative to the project root.
type projectFileReader struct {
	root string
}

func (p projectFileReader) ReadFile(relPath string) (string, error) {
	data, err := os.ReadFile(filepath.Join(p.root, relPath))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// timeNow is a thin indirection so tests can exercise IterationResult's
// timestamp fields deterministically without faking the clock globally.
var timeNow = time.Now
