package iteration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viztrtr/viztrtr-core/internal/config"
	"github.com/viztrtr/viztrtr-core/internal/memory"
	"github.com/viztrtr/viztrtr-core/internal/types"
	"github.com/viztrtr/viztrtr-core/internal/validator"
)

func TestPlateauedRequiresFullWindowOfSmallDeltas(t *testing.T) {
	cfg := config.PlateauConfig{WindowIterations: 3, Epsilon: 0.1}

	assert.False(t, plateaued([]float64{0.05, 0.02}, cfg), "fewer deltas than the window can't plateau")
	assert.False(t, plateaued([]float64{0.05, 0.02, 0.5}, cfg), "a recent large delta breaks the plateau")
	assert.True(t, plateaued([]float64{5.0, 0.05, -0.02, 0.01}, cfg), "only the last window entries matter")
}

func TestPlateauedDefaultsWindowAndEpsilonWhenUnset(t *testing.T) {
	cfg := config.PlateauConfig{}
	assert.True(t, plateaued([]float64{0.01, 0.01, 0.01}, cfg))
	assert.False(t, plateaued([]float64{0.01, 0.01, 0.2}, cfg))
}

func TestSummarizeOutcomesNoOutcomesIsNoEffect(t *testing.T) {
	outcome, reason := summarizeOutcomes(nil)
	assert.Equal(t, types.OutcomeNoEffect, outcome)
	assert.NotEmpty(t, reason)
}

func TestSummarizeOutcomesAnyAppliedIsSuccess(t *testing.T) {
	outcome, _ := summarizeOutcomes([]types.ExecutionOutcome{
		{Status: types.StatusFailed, Reason: "boom"},
		{Status: types.StatusApplied},
	})
	assert.Equal(t, types.OutcomeSuccess, outcome)
}

func TestSummarizeOutcomesAllFailedIsFailed(t *testing.T) {
	outcome, reason := summarizeOutcomes([]types.ExecutionOutcome{
		{Status: types.StatusFailed, Reason: "first"},
		{Status: types.StatusFailed, Reason: "last"},
	})
	assert.Equal(t, types.OutcomeFailed, outcome)
	assert.Equal(t, "last", reason)
}

func TestSummarizeOutcomesAllSkippedIsRejectedByValidator(t *testing.T) {
	outcome, reason := summarizeOutcomes([]types.ExecutionOutcome{
		{Status: types.StatusSkipped, Reason: "stale plan"},
	})
	assert.Equal(t, types.OutcomeRejectedByValidator, outcome)
	assert.Equal(t, "stale plan", reason)
}

func TestChangedFilesForDedupesAndFiltersByRecommendationID(t *testing.T) {
	report := types.ExecutionReport{Changes: []types.FileChange{
		{RecommendationID: "r1", FilePath: "a.tsx"},
		{RecommendationID: "r1", FilePath: "a.tsx"},
		{RecommendationID: "r1", FilePath: "b.tsx"},
		{RecommendationID: "r2", FilePath: "c.tsx"},
	}}
	assert.Equal(t, []string{"a.tsx", "b.tsx"}, changedFilesFor("r1", report))
	assert.Equal(t, []string{"c.tsx"}, changedFilesFor("r2", report))
	assert.Nil(t, changedFilesFor("r3", report))
}

func TestProjectFileReaderReadsRelativeToRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "component.tsx"), []byte("hello"), 0o644))

	r := projectFileReader{root: dir}
	content, err := r.ReadFile("component.tsx")
	require.NoError(t, err)
	assert.Equal(t, "hello", content)

	_, err = r.ReadFile("missing.tsx")
	assert.Error(t, err)
}

// --- Run() integration scenarios, against stub adapters and a real
// memory.Store/validator.Validator, exercising the full wiring without
// needing a real toolkit-editable fixture (no recommendations ever reach
// Route in any scenario below).

type fakeCapture struct {
	shot types.Screenshot
	err  error
	n    int
}

func (f *fakeCapture) Capture(ctx context.Context, url string, opts config.ScreenshotConfig) (types.Screenshot, error) {
	f.n++
	return f.shot, f.err
}

type fakeVision struct {
	spec types.DesignSpec
	err  error
}

func (f *fakeVision) Analyze(ctx context.Context, screenshot types.Screenshot, memoryContext string, projectContext map[string]string, avoidedComponents []string) (types.DesignSpec, error) {
	return f.spec, f.err
}

func (f *fakeVision) Score(ctx context.Context, screenshot types.Screenshot) (map[types.Dimension]float64, map[types.Dimension]float64, []string, error) {
	return map[types.Dimension]float64{}, map[types.Dimension]float64{}, nil, nil
}

// fakeModel answers every completion with an empty-but-valid JSON object,
// so ReflectionAgent's schema-constrained call succeeds on the first
// attempt instead of exhausting withBackoff's real sleeps; none of the
// controller tests below reach discovery.Agent, the other consumer of
// this interface.
type fakeModel struct{}

func (fakeModel) CompleteWithSchema(ctx context.Context, systemPrompt, userPrompt, jsonSchema string) (string, error) {
	return "{}", nil
}

type fakeBuild struct{}

func (fakeBuild) Build(ctx context.Context, projectRoot string) (bool, string, int64, error) {
	return true, "", 0, nil
}

type fakeApprovalSource struct{}

func (fakeApprovalSource) Request(ctx context.Context, recs []types.Recommendation, risk float64, costCents int) ([]types.Recommendation, bool, error) {
	return recs, false, nil
}

type fakeMetrics struct{}

func (fakeMetrics) Measure(ctx context.Context, url string) (types.MetricsSnapshot, error) {
	return types.MetricsSnapshot{}, nil
}

func newTestController(t *testing.T, capture Capturer, vision VisionAdapter) (*Controller, *config.Config) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.ProjectPath = t.TempDir()
	cfg.OutputDir = t.TempDir()
	cfg.FrontendURL = "http://example.invalid"
	cfg.MaxIterations = 2
	cfg.Approval.Policy = config.ApprovalNever

	mem := memory.New(cfg.AbsOutputDir(), cfg.Memory)
	val := validator.New(cfg.Constraints, cfg.DesignSystem, nil)

	ctrl := New(cfg, capture, vision, fakeModel{}, fakeBuild{}, nil, fakeMetrics{}, fakeApprovalSource{}, mem, val)
	return ctrl, cfg
}

func TestRunExhaustsIterationsWhenCaptureAlwaysFails(t *testing.T) {
	capture := &fakeCapture{err: errors.New("screenshot service unavailable")}
	ctrl, cfg := newTestController(t, capture, &fakeVision{})

	result, err := ctrl.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExitIterationsExhausted, result.ExitCode)
	assert.Equal(t, cfg.MaxIterations, capture.n)
	require.Len(t, result.Iterations, cfg.MaxIterations)
	for _, ir := range result.Iterations {
		assert.Equal(t, "capture_failed", ir.Outcome)
		assert.Nil(t, ir.Score)
	}
}

func TestRunExhaustsIterationsWhenNoRecommendationsSurviveFiltering(t *testing.T) {
	capture := &fakeCapture{shot: types.Screenshot{Path: "before.png"}}
	vision := &fakeVision{spec: types.DesignSpec{CurrentScore: 5}}
	ctrl, cfg := newTestController(t, capture, vision)

	result, err := ctrl.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExitIterationsExhausted, result.ExitCode)
	require.Len(t, result.Iterations, cfg.MaxIterations)
	for _, ir := range result.Iterations {
		assert.Equal(t, "no_candidates", ir.Outcome)
	}
	assert.Equal(t, float64(0), result.FinalScore)
}

func TestRunWritesIterationArtifactsAndFinalReport(t *testing.T) {
	capture := &fakeCapture{shot: types.Screenshot{Path: "before.png"}}
	vision := &fakeVision{spec: types.DesignSpec{CurrentScore: 5}}
	ctrl, cfg := newTestController(t, capture, vision)

	_, err := ctrl.Run(context.Background())
	require.NoError(t, err)

	for n := 1; n <= cfg.MaxIterations; n++ {
		iterDir := filepath.Join(cfg.AbsOutputDir(), fmt.Sprintf("iteration_%d", n))
		_, statErr := os.Stat(filepath.Join(iterDir, "design_spec.json"))
		assert.NoError(t, statErr, "iteration %d should have written design_spec.json", n)
	}

	_, err = os.Stat(filepath.Join(cfg.AbsOutputDir(), "report.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(cfg.AbsOutputDir(), "REPORT.md"))
	assert.NoError(t, err)
}
