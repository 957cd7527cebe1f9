// Package scoring implements HybridScorer (spec.md component C10):
// fuses an independent vision-adapter score with a measured MetricsAdapter
// snapshot into one composite HybridScore. Grounded on the teacher's
// internal/embedding concurrent dual-call pattern (errgroup joining two
// independent external calls) generalized from "embed text + fetch
// metadata" to "score vision + measure metrics."
package scoring

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/viztrtr/viztrtr-core/internal/config"
	"github.com/viztrtr/viztrtr-core/internal/logging"
	"github.com/viztrtr/viztrtr-core/internal/types"
)

// VisionScorer returns a per-dimension 0-10 score and weights; the
// composite is the caller's weighted average of those dimensions.
type VisionScorer interface {
	Score(ctx context.Context, screenshot types.Screenshot) (dimensionScores map[types.Dimension]float64, dimensionWeights map[types.Dimension]float64, insights []string, err error)
}

// MetricsAdapter returns a raw metrics snapshot for the target URL.
type MetricsAdapter interface {
	Measure(ctx context.Context, url string) (types.MetricsSnapshot, error)
}

// Scorer is HybridScorer.
type Scorer struct {
	vision  VisionScorer
	metrics MetricsAdapter
	weights config.ScoringWeights
	mweights config.MetricsWeights
}

// New returns a HybridScorer.
func New(vision VisionScorer, metrics MetricsAdapter, weights config.ScoringWeights, mweights config.MetricsWeights) *Scorer {
	return &Scorer{vision: vision, metrics: metrics, weights: weights, mweights: mweights}
}

// Score issues the vision and metrics calls concurrently, joins them,
// and composes a HybridScore.
func (s *Scorer) Score(ctx context.Context, screenshot types.Screenshot, url string) (types.HybridScore, error) {
	var (
		dimScores   map[types.Dimension]float64
		dimWeights  map[types.Dimension]float64
		visionInsights []string
		metricsSnap types.MetricsSnapshot
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dimScores, dimWeights, visionInsights, err = s.vision.Score(gctx, screenshot)
		return err
	})
	g.Go(func() error {
		var err error
		metricsSnap, err = s.metrics.Measure(gctx, url)
		return err
	})
	if err := g.Wait(); err != nil {
		return types.HybridScore{}, err
	}

	visionScore := weightedAverage(dimScores, dimWeights)
	breakdown := metricsBreakdown(metricsSnap)
	metricsScore := breakdown.Performance*s.mweights.Performance +
		breakdown.Accessibility*s.mweights.Accessibility +
		breakdown.BestPractices*s.mweights.BestPractices

	composite := visionScore*s.weights.Vision + metricsScore*s.weights.Metrics
	confidence := 1 - abs(visionScore-metricsScore)/10

	insights := dedupeInsights(append(append([]string{}, visionInsights...), metricsInsights(metricsSnap)...))

	logging.Get(logging.CategoryScoring).Info("composite=%.2f vision=%.2f metrics=%.2f confidence=%.2f", composite, visionScore, metricsScore, confidence)

	return types.HybridScore{
		CompositeScore: composite,
		VisionScore:    visionScore,
		MetricsScore:   metricsScore,
		Confidence:     confidence,
		Breakdown:      breakdown,
		Insights:       insights,
	}, nil
}

func weightedAverage(scores, weights map[types.Dimension]float64) float64 {
	var total, weightSum float64
	for dim, score := range scores {
		w := weights[dim]
		if w == 0 {
			w = 1
		}
		total += score * w
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return total / weightSum
}

// metricsBreakdown maps raw measurements to 0-10 sub-scores via
// documented piecewise formulas (spec.md section 4.10's worked example
// for LCP, generalized to the other Core Web Vitals and to
// accessibility/console-error counts).
func metricsBreakdown(m types.MetricsSnapshot) types.ScoreBreakdown {
	lcp := piecewise(m.CoreWebVitals.LCPMs, 2500, 4000)
	cls := piecewiseInverted(m.CoreWebVitals.CLS, 0.1, 0.25)
	ttfb := piecewise(m.CoreWebVitals.TTFBMs, 800, 1800)
	performance := (lcp + cls + ttfb) / 3

	violations := len(m.Accessibility.Violations)
	contrastIssues := len(m.Accessibility.ContrastIssues)
	accessibility := countPenalty(violations*2+contrastIssues, 10)

	consoleErrors := len(m.Console.Errors)
	bestPractices := countPenalty(consoleErrors, 5)

	return types.ScoreBreakdown{Performance: performance, Accessibility: accessibility, BestPractices: bestPractices}
}

// piecewise maps a "lower is better" measurement to 0-10: full marks at
// or under good, linear down to zero at or over bad.
func piecewise(value, good, bad float64) float64 {
	if value <= good {
		return 10
	}
	if value >= bad {
		return 0
	}
	return 10 * (bad - value) / (bad - good)
}

func piecewiseInverted(value, good, bad float64) float64 {
	return piecewise(value, good, bad)
}

// countPenalty maps a defect count to 0-10: zero defects is full marks,
// capAt or more defects is zero, linear in between.
func countPenalty(count, capAt int) float64 {
	if count <= 0 {
		return 10
	}
	if count >= capAt {
		return 0
	}
	return 10 * float64(capAt-count) / float64(capAt)
}

func metricsInsights(m types.MetricsSnapshot) []string {
	var out []string
	if m.CoreWebVitals.LCPMs > 2500 {
		out = append(out, "largest contentful paint exceeds 2500ms")
	}
	if len(m.Accessibility.Violations) > 0 {
		out = append(out, "accessibility violations detected by metrics adapter")
	}
	if len(m.Console.Errors) > 0 {
		out = append(out, "console errors present at measurement time")
	}
	return out
}

func dedupeInsights(insights []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, i := range insights {
		if !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	return out
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
