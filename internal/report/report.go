// Package report implements the on-disk layout of spec.md section 6: a
// per-iteration artifact writer plus a final report.json/REPORT.md
// roll-up written on every terminal state. Grounded on the teacher's
// internal/transparency/safety_reporter.go idiom of building a
// human-readable Markdown summary with a strings.Builder over a
// structured record, applied here to score progression instead of
// safety violations.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/viztrtr/viztrtr-core/internal/logging"
	"github.com/viztrtr/viztrtr-core/internal/types"
)

// WriteIteration writes one iteration_<n> directory under outputDir,
// splitting ir into the files named by spec.md section 6's on-disk
// layout. Screenshot bytes are only written when present (a capture
// failure leaves BeforeScreenshot/AfterScreenshot empty).
func WriteIteration(outputDir string, n int, ir types.IterationResult) error {
	dir := filepath.Join(outputDir, fmt.Sprintf("iteration_%d", n))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("report: create %s: %w", dir, err)
	}

	if len(ir.BeforeScreenshot.Data) > 0 {
		if err := os.WriteFile(filepath.Join(dir, "before.png"), ir.BeforeScreenshot.Data, 0o644); err != nil {
			return fmt.Errorf("report: write before.png: %w", err)
		}
	}
	if ir.AfterScreenshot != nil && len(ir.AfterScreenshot.Data) > 0 {
		if err := os.WriteFile(filepath.Join(dir, "after.png"), ir.AfterScreenshot.Data, 0o644); err != nil {
			return fmt.Errorf("report: write after.png: %w", err)
		}
	}

	writes := []struct {
		name string
		v    any
	}{
		{"design_spec.json", ir.DesignSpec},
		{"changes.json", ir.Changes},
		{"execution_report.json", ir.Outcomes},
		{"validation.json", ir.Validations},
		{"evaluation.json", ir.Score},
		{"reflection.json", reflectionDoc{Reflection: ir.Reflection, NextActionHint: ir.NextActionHint}},
	}
	for _, w := range writes {
		if err := writeJSON(filepath.Join(dir, w.name), w.v); err != nil {
			return err
		}
	}

	logging.Get(logging.CategoryReport).Info("wrote iteration %d artifacts to %s", n, dir)
	return nil
}

type reflectionDoc struct {
	Reflection     string `json:"reflection,omitempty"`
	NextActionHint string `json:"next_action_hint,omitempty"`
}

// Document is the machine-readable final roll-up written as report.json.
type Document struct {
	ExitCode          int                       `json:"exit_code"`
	ExitReason        string                    `json:"exit_reason"`
	FinalScore        float64                   `json:"final_score"`
	TargetScore       float64                   `json:"target_score"`
	IterationCount    int                       `json:"iteration_count"`
	ScoreHistory      []types.ScoreHistoryEntry `json:"score_history"`
	IterationOutcomes []IterationSummary        `json:"iteration_outcomes"`
	AvoidedComponents []AvoidedComponent        `json:"avoided_components"`
}

// IterationSummary is one row of the per-iteration roll-up.
type IterationSummary struct {
	Iteration int     `json:"iteration"`
	Outcome   string  `json:"outcome"`
	Score     float64 `json:"score,omitempty"`
}

// AvoidedComponent pairs a MemoryStore-avoided file with why it qualified.
type AvoidedComponent struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ExitReason renders exit codes the way cmd/viztrtr reports them to the
// user, matching spec.md section 6's exit code table.
func ExitReason(code int) string {
	switch code {
	case 0:
		return "target score reached"
	case 1:
		return "iteration budget exhausted without reaching target score"
	case 2:
		return "plateaued: score movement stayed within epsilon over the configured window"
	case 3:
		return "configuration error"
	case 4:
		return "unrecoverable runtime error"
	default:
		return "unknown"
	}
}

// BuildDocument assembles the final report.json document from the
// controller's per-run results and the memory snapshot it persisted.
func BuildDocument(exitCode int, targetScore float64, iterations []types.IterationResult, snapshot types.MemorySnapshot) Document {
	doc := Document{
		ExitCode:       exitCode,
		ExitReason:     ExitReason(exitCode),
		TargetScore:    targetScore,
		IterationCount: len(iterations),
		ScoreHistory:   snapshot.ScoreHistory,
	}
	for _, ir := range iterations {
		summary := IterationSummary{Iteration: ir.Iteration, Outcome: ir.Outcome}
		if ir.Score != nil {
			summary.Score = ir.Score.CompositeScore
			doc.FinalScore = ir.Score.CompositeScore
		}
		doc.IterationOutcomes = append(doc.IterationOutcomes, summary)
	}
	for _, path := range snapshot.AvoidedComponents {
		doc.AvoidedComponents = append(doc.AvoidedComponents, AvoidedComponent{
			Path:   path,
			Reason: avoidReason(snapshot.ComponentStats[path]),
		})
	}
	sort.Slice(doc.AvoidedComponents, func(i, j int) bool {
		return doc.AvoidedComponents[i].Path < doc.AvoidedComponents[j].Path
	})
	return doc
}

func avoidReason(stats types.ComponentStats) string {
	return fmt.Sprintf("modified %d time(s), failed %d time(s)", stats.ModificationCount, stats.FailureCount)
}

// WriteFinal writes report.json and REPORT.md under outputDir.
func WriteFinal(outputDir string, doc Document) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("report: create %s: %w", outputDir, err)
	}
	if err := writeJSON(filepath.Join(outputDir, "report.json"), doc); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outputDir, "REPORT.md"), []byte(renderMarkdown(doc)), 0o644); err != nil {
		return fmt.Errorf("report: write REPORT.md: %w", err)
	}
	logging.Get(logging.CategoryReport).Info("wrote final report to %s", outputDir)
	return nil
}

func renderMarkdown(doc Document) string {
	var sb strings.Builder

	sb.WriteString("# VIZTRTR Run Report\n\n")
	sb.WriteString(fmt.Sprintf("**Result**: %s (exit code %d)\n\n", doc.ExitReason, doc.ExitCode))
	sb.WriteString(fmt.Sprintf("**Final score**: %.2f / target %.2f\n\n", doc.FinalScore, doc.TargetScore))
	sb.WriteString(fmt.Sprintf("**Iterations run**: %d\n\n", doc.IterationCount))

	sb.WriteString("## Score progression\n\n")
	if len(doc.ScoreHistory) == 0 {
		sb.WriteString("No iteration produced a score.\n\n")
	} else {
		sb.WriteString("| Iteration | Before | After | Delta | Target reached |\n")
		sb.WriteString("|---|---|---|---|---|\n")
		for _, e := range doc.ScoreHistory {
			sb.WriteString(fmt.Sprintf("| %d | %.2f | %.2f | %+.2f | %v |\n", e.Iteration, e.BeforeScore, e.AfterScore, e.Delta, e.TargetReached))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Per-iteration outcomes\n\n")
	for _, s := range doc.IterationOutcomes {
		if s.Score > 0 {
			sb.WriteString(fmt.Sprintf("- iteration %d: %s (score %.2f)\n", s.Iteration, s.Outcome, s.Score))
		} else {
			sb.WriteString(fmt.Sprintf("- iteration %d: %s\n", s.Iteration, s.Outcome))
		}
	}
	sb.WriteString("\n")

	sb.WriteString("## Avoided components\n\n")
	if len(doc.AvoidedComponents) == 0 {
		sb.WriteString("None.\n")
	} else {
		for _, a := range doc.AvoidedComponents {
			sb.WriteString(fmt.Sprintf("- `%s` — %s\n", a.Path, a.Reason))
		}
	}

	return sb.String()
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}
