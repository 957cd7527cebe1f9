package orchestrator

import (
	"strings"

	"github.com/viztrtr/viztrtr-core/internal/types"
)

// previewChange renders what original would look like after c is applied,
// for ChangeValidator's benefit only; it never touches disk. This is a
// simplified, independent re-implementation of the toolkit's four
// single-line transforms (string substitution rather than the toolkit's
// attribute-aware regex matching) — good enough to measure line-count
// delta, import/export shape and class tokens, which is all the
// validator needs ahead of the toolkit's own authoritative write.
func previewChange(original string, c types.PlannedChange) string {
	lines := strings.Split(original, "\n")
	idx := c.Line - 1
	if idx < 0 || idx >= len(lines) {
		return original
	}

	switch c.Tool {
	case types.ToolUpdateClassName:
		oldVal, _ := c.Params["old"].(string)
		newVal, _ := c.Params["new"].(string)
		if oldVal != "" {
			lines[idx] = strings.Replace(lines[idx], oldVal, newVal, 1)
		}
	case types.ToolAppendToClassName:
		classes, _ := c.Params["classes"].(string)
		lines[idx] = appendBeforeClosingQuote(lines[idx], classes)
	case types.ToolUpdateStyleValue:
		// approximated: property/value rewrites are cosmetic for
		// scope/design-system purposes, so no structural line change.
	case types.ToolUpdateTextContent:
		oldVal, _ := c.Params["old"].(string)
		newVal, _ := c.Params["new"].(string)
		if oldVal != "" {
			lines[idx] = strings.Replace(lines[idx], oldVal, newVal, 1)
		}
	}

	return strings.Join(lines, "\n")
}

func appendBeforeClosingQuote(line, classes string) string {
	for _, q := range []string{`"`, `'`, "`"} {
		if i := strings.LastIndex(line, q); i > 0 {
			j := strings.LastIndex(line[:i], q)
			if j >= 0 {
				return line[:i] + " " + classes + line[i:]
			}
		}
	}
	return line
}
