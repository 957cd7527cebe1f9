package validator

import (
	"github.com/viztrtr/viztrtr-core/internal/config"
	"github.com/viztrtr/viztrtr-core/internal/logging"
	"github.com/viztrtr/viztrtr-core/internal/types"
)

// Validator runs the three independently-fatal checks of spec.md section
// 4.2 against one proposed (original, modified) file pair.
type Validator struct {
	constraints  config.Constraints
	designSystem config.DesignSystem
	grep         func(componentName string) []string
}

// New returns a Validator. grep performs the textual caller search used by
// the interface-compatibility check's high-impact widening step; pass nil
// to disable it (no Recommendation will then be treated as having
// referencing callers).
func New(constraints config.Constraints, ds config.DesignSystem, grep func(string) []string) *Validator {
	return &Validator{constraints: constraints, designSystem: ds, grep: grep}
}

// Validate runs scope, design-system and (for component files) interface
// compatibility checks, merging their violations into one ValidationResult.
// It never fails for content reasons; only parser I/O failures return an error.
func (v *Validator) Validate(path, original, modified string, effort int, impactHigh bool) (types.ValidationResult, error) {
	result := types.ValidationResult{Valid: true}

	scope := CheckScope(original, modified, effort, v.constraints)
	merge(&result, scope)

	ds := CheckDesignSystem(original, modified, v.designSystem)
	merge(&result, ds)

	if isComponentFile(path) {
		iface, err := CheckInterfaceCompatibility(path, original, modified, impactHigh, v.grep)
		if err != nil {
			return result, err
		}
		merge(&result, iface)
	}

	logging.Get(logging.CategoryValidation).Info("validated %s: valid=%v violations=%d", path, result.Valid, len(result.Violations))
	return result, nil
}

func merge(dst *types.ValidationResult, src types.ValidationResult) {
	if src.Delta.LineDelta != 0 {
		dst.Delta = src.Delta
	}
	if src.Delta.ExportsChanged {
		dst.Delta.ExportsChanged = true
	}
	if src.Delta.ImportsChanged {
		dst.Delta.ImportsChanged = true
	}
	for _, viol := range src.Violations {
		dst.AddViolation(viol)
	}
}

func isComponentFile(path string) bool {
	for _, ext := range []string{".tsx", ".jsx"} {
		if len(path) >= len(ext) && path[len(path)-len(ext):] == ext {
			return true
		}
	}
	return false
}
