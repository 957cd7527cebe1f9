package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterfaceCompatibilityDetectsRequiredPropRemoved(t *testing.T) {
	original := `
export interface ButtonProps {
  label: string;
  onClick: () => void;
}
export function Button(props: ButtonProps) { return null }
`
	modified := `
export interface ButtonProps {
  label: string;
}
export function Button(props: ButtonProps) { return null }
`
	result, err := CheckInterfaceCompatibility("Button.tsx", original, modified, false, nil)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "prop-removed-required", string(result.Violations[0].Kind))
}

func TestInterfaceCompatibilityAllowsOptionalPropRemoval(t *testing.T) {
	original := `
export interface ButtonProps {
  label: string;
  hint?: string;
}
`
	modified := `
export interface ButtonProps {
  label: string;
}
`
	result, err := CheckInterfaceCompatibility("Button.tsx", original, modified, false, nil)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestInterfaceCompatibilityHighImpactWithCallersRejects(t *testing.T) {
	original := `
export interface ButtonProps {
  label: string;
  onClick: () => void;
}
`
	modified := `
export interface ButtonProps {
  label: string;
}
`
	grep := func(name string) []string { return []string{"App.tsx", "Form.tsx"} }
	result, err := CheckInterfaceCompatibility("Button.tsx", original, modified, true, grep)
	require.NoError(t, err)
	assert.False(t, result.Valid)

	found := false
	for _, v := range result.Violations {
		if string(v.Kind) == "caller-impact" {
			found = true
		}
	}
	assert.True(t, found, "expected a caller-impact violation, got %+v", result.Violations)
}

func TestInterfaceCompatibilityNoChangeIsValid(t *testing.T) {
	content := `
export interface ButtonProps {
  label: string;
}
export function Button(props: ButtonProps) { return null }
`
	result, err := CheckInterfaceCompatibility("Button.tsx", content, content, false, nil)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}
