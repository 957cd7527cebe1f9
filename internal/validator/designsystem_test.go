package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/viztrtr/viztrtr-core/internal/config"
)

func TestDesignSystemRejectsNewDeniedToken(t *testing.T) {
	ds := config.DesignSystem{Deny: []string{"bg-red-500"}}
	original := `<div className="p-4">`
	modified := `<div className="p-4 bg-red-500">`

	result := CheckDesignSystem(original, modified, ds)
	assert.False(t, result.Valid)
	assert.Equal(t, "bg-red-500", result.Violations[0].Token)
}

func TestDesignSystemAllowsPreexistingDeniedToken(t *testing.T) {
	ds := config.DesignSystem{Deny: []string{"bg-red-500"}}
	original := `<div className="p-4 bg-red-500">`
	modified := `<div className="p-6 bg-red-500">`

	result := CheckDesignSystem(original, modified, ds)
	assert.True(t, result.Valid)
}

func TestDesignSystemNoOpWithoutDenyList(t *testing.T) {
	ds := config.DesignSystem{}
	result := CheckDesignSystem(`<div className="a">`, `<div className="z">`, ds)
	assert.True(t, result.Valid)
}
