package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/viztrtr/viztrtr-core/internal/config"
	"github.com/viztrtr/viztrtr-core/internal/types"
)

var classValuePattern = regexp.MustCompile(`class(Name)?\s*=\s*["'` + "`" + `]([^"'` + "`" + `]*)["'` + "`" + `]`)

func classTokens(content string) map[string]bool {
	tokens := map[string]bool{}
	for _, m := range classValuePattern.FindAllStringSubmatch(content, -1) {
		for _, tok := range strings.Fields(m[2]) {
			tokens[tok] = true
		}
	}
	return tokens
}

// CheckDesignSystem enforces spec.md section 4.2(b): modified content must
// introduce no deny-listed class token that wasn't already present in the
// original.
func CheckDesignSystem(original, modified string, ds config.DesignSystem) types.ValidationResult {
	result := types.ValidationResult{Valid: true}
	if len(ds.Deny) == 0 {
		return result
	}

	origTokens := classTokens(original)
	modTokens := classTokens(modified)
	deny := map[string]bool{}
	for _, d := range ds.Deny {
		deny[d] = true
	}

	lines := strings.Split(modified, "\n")
	for tok := range modTokens {
		if !deny[tok] || origTokens[tok] {
			continue
		}
		line := 0
		for i, l := range lines {
			if strings.Contains(l, tok) {
				line = i + 1
				break
			}
		}
		result.AddViolation(types.Violation{
			Kind:    types.ViolationDesignSystem,
			Message: fmt.Sprintf("class token %q is denied by the design system", tok),
			Token:   tok,
			Line:    line,
		})
	}
	return result
}
