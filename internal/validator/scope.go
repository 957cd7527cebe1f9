// Package validator implements ChangeValidator (spec.md component C3): the
// pre-write gate every proposed (original, modified) file pair passes
// through before ExecutionAgent is allowed to commit it. Grounded on the
// teacher's internal/world/typescript_parser.go for AST-based symbol
// extraction, generalized from CodeElement cataloguing to pairwise
// structural comparison.
package validator

import (
	"regexp"
	"strings"

	"github.com/viztrtr/viztrtr-core/internal/config"
	"github.com/viztrtr/viztrtr-core/internal/types"
)

var lineCommentPrefixes = []string{"//", "*", "/*"}

func effectiveLines(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		isComment := false
		for _, p := range lineCommentPrefixes {
			if strings.HasPrefix(trimmed, p) {
				isComment = true
				break
			}
		}
		if isComment {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

// growthCap returns the maximum allowed growth ratio for a file of
// originalLines effective lines, per spec.md's size-scaled cap.
func growthCap(originalLines int) float64 {
	switch {
	case originalLines <= 30:
		return 1.0
	case originalLines < 50:
		return 0.75
	case originalLines < 100:
		return 0.5
	default:
		return 0.3
	}
}

// effortCap returns the absolute line-delta cap for a Recommendation's effort band.
func effortCap(effort int, limits config.EffortLimits) int {
	switch {
	case effort <= 2:
		return limits.Low
	case effort <= 4:
		return limits.Medium
	default:
		return limits.High
	}
}

var importPattern = regexp.MustCompile(`^\s*import\s`)

func importLines(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if importPattern.MatchString(line) {
			out = append(out, strings.TrimSpace(line))
		}
	}
	return out
}

// CheckScope enforces the line-delta, growth, effort, imports and exports
// invariants of spec.md section 4.2(a). It never returns an error for
// content reasons; it only ever returns a populated ValidationResult.
func CheckScope(original, modified string, effort int, constraints config.Constraints) types.ValidationResult {
	result := types.ValidationResult{Valid: true}

	origEff := effectiveLines(original)
	modEff := effectiveLines(modified)
	delta := len(modEff) - len(origEff)
	absDelta := delta
	if absDelta < 0 {
		absDelta = -absDelta
	}

	growth := 0.0
	if len(origEff) > 0 {
		growth = float64(delta) / float64(len(origEff))
	} else if len(modEff) > 0 {
		growth = 1.0
	}

	result.Delta = types.StructuralDelta{
		LineDelta:     delta,
		GrowthPercent: growth * 100,
	}

	if absDelta > constraints.MaxLineDelta {
		result.AddViolation(types.Violation{
			Kind:    types.ViolationLineDelta,
			Message: "line delta exceeds configured maximum",
		})
	}

	growthLimit := growthCap(len(origEff))
	if constraints.MaxGrowthPercent > 0 && constraints.MaxGrowthPercent/100 < growthLimit {
		growthLimit = constraints.MaxGrowthPercent / 100
	}
	if growth > growthLimit {
		result.AddViolation(types.Violation{
			Kind:    types.ViolationGrowth,
			Message: "growth ratio exceeds size-scaled cap",
		})
	}

	if ec := effortCap(effort, constraints.EffortLimits); absDelta > ec {
		result.AddViolation(types.Violation{
			Kind:    types.ViolationEffortLimit,
			Message: "line delta exceeds effort-based cap",
		})
	}

	origImports := importLines(original)
	modImports := importLines(modified)
	if constraints.PreserveImports {
		origSet := map[string]bool{}
		for _, i := range origImports {
			origSet[i] = true
		}
		shrunk := false
		for i := range origSet {
			found := false
			for _, m := range modImports {
				if m == i {
					found = true
					break
				}
			}
			if !found {
				shrunk = true
				break
			}
		}
		if shrunk {
			result.Delta.ImportsChanged = true
			result.AddViolation(types.Violation{
				Kind:    types.ViolationImportsShrink,
				Message: "modified content removes an import present in the original",
			})
		} else if len(modImports) != len(origImports) {
			result.Delta.ImportsChanged = true
		}
	}

	if constraints.PreserveExports {
		origExports := ExtractExportedNames(original)
		modExports := ExtractExportedNames(modified)
		if !sameSet(origExports, modExports) {
			result.Delta.ExportsChanged = true
			result.AddViolation(types.Violation{
				Kind:    types.ViolationExportsChanged,
				Message: "exported symbol set differs between original and modified content",
			})
		}
	}

	return result
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := map[string]bool{}
	for _, x := range a {
		set[x] = true
	}
	for _, x := range b {
		if !set[x] {
			return false
		}
	}
	return true
}

var exportPattern = regexp.MustCompile(`export\s+(?:default\s+)?(?:const|function|class|interface|type)\s+([A-Za-z0-9_$]+)`)

// ExtractExportedNames is a lightweight line-scan fallback used by the scope
// check; the interface-compatibility check (interface.go) uses the tree-sitter
// AST for the same extraction where shape detail matters.
func ExtractExportedNames(content string) []string {
	var names []string
	for _, m := range exportPattern.FindAllStringSubmatch(content, -1) {
		names = append(names, m[1])
	}
	return names
}
