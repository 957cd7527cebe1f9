package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/viztrtr/viztrtr-core/internal/config"
)

func testConstraints() config.Constraints {
	return config.Constraints{
		MaxLineDelta:     100,
		MaxGrowthPercent: 0,
		PreserveExports:  true,
		PreserveImports:  true,
		EffortLimits:     config.EffortLimits{Low: 10, Medium: 25, High: 50},
	}
}

func nLines(n int, prefix string) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = prefix + string(rune('a'+i%26))
	}
	return strings.Join(lines, "\n")
}

func TestScopeRejectsGrowthAt100To151Lines(t *testing.T) {
	original := nLines(100, "line")
	modified := original + "\n" + nLines(51, "new")

	result := CheckScope(original, modified, 5, testConstraints())
	assert.False(t, result.Valid)
	foundGrowth := false
	for _, v := range result.Violations {
		if string(v.Kind) == "growth" {
			foundGrowth = true
		}
	}
	assert.True(t, foundGrowth, "expected a growth violation, got %+v", result.Violations)
}

func TestScopeRejectsEffortLimitAt25LineDeltaForEffortTwo(t *testing.T) {
	original := nLines(200, "line")
	modified := original + "\n" + nLines(25, "new")

	result := CheckScope(original, modified, 2, testConstraints())
	assert.False(t, result.Valid)
	foundEffort := false
	for _, v := range result.Violations {
		if string(v.Kind) == "effort-limit" {
			foundEffort = true
		}
	}
	assert.True(t, foundEffort, "expected an effort-limit violation, got %+v", result.Violations)
}

func TestScopeAcceptsSmallEffortOneClassChange(t *testing.T) {
	original := "<button className=\"px-2 py-1 bg-blue-500\">Go</button>"
	modified := "<button className=\"px-2 py-1 bg-blue-600\">Go</button>"

	result := CheckScope(original, modified, 1, testConstraints())
	assert.True(t, result.Valid, "expected no violations, got %+v", result.Violations)
}

func TestScopeRejectsShrunkImports(t *testing.T) {
	original := "import { useState } from 'react'\nimport { Button } from './Button'\n"
	modified := "import { useState } from 'react'\n"

	result := CheckScope(original, modified, 5, testConstraints())
	assert.False(t, result.Valid)
}

func TestScopeRejectsExportRemoval(t *testing.T) {
	original := "export function Header() { return null }\nexport function Footer() { return null }\n"
	modified := "export function Header() { return null }\n"

	result := CheckScope(original, modified, 5, testConstraints())
	assert.False(t, result.Valid)
}
