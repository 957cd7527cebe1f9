package memory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/viztrtr/viztrtr-core/internal/types"
)

// ContextSummary is the bounded prose block fed to the vision adapter,
// per spec.md component C1 (MemoryStore.getContextSummary).
type ContextSummary struct {
	ScoreTrend        string // IMPROVING, FLAT, REGRESSING
	LastDelta         float64
	Text              string
	AvoidedComponents []string
}

// GetContextSummary builds the bounded summary described in spec.md
// section 4.12: score trend + last delta, past-attempt bullets, a
// FAILED ATTEMPTS section, frequently-modified components, and a
// COMPONENTS TO AVOID section with rationale. It additionally surfaces
// dimension-level failure rates (SPEC_FULL.md supplement), grounded on the
// teacher's internal/core/self_healing.go pattern of aggregating failure
// classes rather than only per-file counts.
func (s *Store) GetContextSummary() ContextSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	trend, lastDelta := scoreTrend(s.snapshot.ScoreHistory)

	var b strings.Builder
	fmt.Fprintf(&b, "SCORE TREND: %s (last delta %.2f)\n\n", trend, lastDelta)

	if len(s.snapshot.Attempts) > 0 {
		b.WriteString("PAST ATTEMPTS:\n")
		for _, a := range lastN(s.snapshot.Attempts, 20) {
			fmt.Fprintf(&b, "- iteration %d: %s -> %s\n", a.Iteration, truncate(a.Content, 80), a.Outcome)
		}
		b.WriteString("\n")
	}

	var failed []types.AttemptRecord
	for _, a := range s.snapshot.Attempts {
		if a.Outcome == types.OutcomeBrokeBuild || a.Outcome == types.OutcomeFailed {
			failed = append(failed, a)
		}
	}
	if len(failed) > 0 {
		b.WriteString("FAILED ATTEMPTS - DO NOT RETRY:\n")
		for _, a := range failed {
			fmt.Fprintf(&b, "- %s (%s): %s\n", truncate(a.Content, 80), a.Outcome, a.Reason)
		}
		b.WriteString("\n")
	}

	type fileCount struct {
		file  string
		stats types.ComponentStats
	}
	var files []fileCount
	for f, st := range s.snapshot.ComponentStats {
		files = append(files, fileCount{f, st})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].stats.ModificationCount > files[j].stats.ModificationCount })
	if len(files) > 0 {
		b.WriteString("FREQUENTLY MODIFIED COMPONENTS:\n")
		for _, fc := range files[:min(len(files), 10)] {
			fmt.Fprintf(&b, "- %s: %d modifications, %d failures\n", fc.file, fc.stats.ModificationCount, fc.stats.FailureCount)
		}
		b.WriteString("\n")
	}

	if len(s.snapshot.AvoidedComponents) > 0 {
		b.WriteString("COMPONENTS TO AVOID:\n")
		for _, f := range s.snapshot.AvoidedComponents {
			st := s.snapshot.ComponentStats[f]
			fmt.Fprintf(&b, "- %s (modified %d times, failed %d times)\n", f, st.ModificationCount, st.FailureCount)
		}
		b.WriteString("\n")
	}

	if rates := dimensionFailureRates(s.snapshot.Attempts); len(rates) > 0 {
		b.WriteString("DIMENSION FAILURE RATES:\n")
		for _, r := range rates {
			fmt.Fprintf(&b, "- %s: fails %.0f%% of attempts (%d/%d)\n", r.label, r.rate*100, r.failures, r.total)
		}
	}

	return ContextSummary{
		ScoreTrend:        trend,
		LastDelta:         lastDelta,
		Text:              b.String(),
		AvoidedComponents: append([]string(nil), s.snapshot.AvoidedComponents...),
	}
}

func scoreTrend(history []types.ScoreHistoryEntry) (string, float64) {
	if len(history) == 0 {
		return "FLAT", 0
	}
	last := history[len(history)-1]
	switch {
	case last.Delta > 0.1:
		return "IMPROVING", last.Delta
	case last.Delta < -0.1:
		return "REGRESSING", last.Delta
	default:
		return "FLAT", last.Delta
	}
}

type dimensionRate struct {
	label    string
	failures int
	total    int
	rate     float64
}

// dimensionFailureRates aggregates failures by the "dimension=<name>" hint
// RecordAttempt stashes at the front of AttemptRecord.Reason. Since
// AttemptRecord does not carry a Dimension field directly (spec.md pins its
// fields), we key on that token when present and otherwise skip
// aggregation for that attempt.
func dimensionFailureRates(attempts []types.AttemptRecord) []dimensionRate {
	counts := map[string]*dimensionRate{}
	for _, a := range attempts {
		dim := extractDimensionHint(a.Reason)
		if dim == "" {
			continue
		}
		r, ok := counts[dim]
		if !ok {
			r = &dimensionRate{label: dim}
			counts[dim] = r
		}
		r.total++
		if a.Outcome == types.OutcomeFailed || a.Outcome == types.OutcomeBrokeBuild {
			r.failures++
		}
	}
	var out []dimensionRate
	for _, r := range counts {
		if r.total == 0 {
			continue
		}
		r.rate = float64(r.failures) / float64(r.total)
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].rate > out[j].rate })
	return out
}

func extractDimensionHint(reason string) string {
	const prefix = "dimension="
	idx := strings.Index(reason, prefix)
	if idx < 0 {
		return ""
	}
	rest := reason[idx+len(prefix):]
	if sp := strings.IndexAny(rest, " ;\n"); sp >= 0 {
		rest = rest[:sp]
	}
	return rest
}

func lastN[T any](s []T, n int) []T {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
