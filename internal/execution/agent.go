// Package execution implements ExecutionAgent (spec.md component C5):
// the sole consumer of MicroEditToolkit that turns a ChangePlan into
// file mutations. Grounded on the teacher's internal/tactile/executor.go
// sequential step-runner (read one step, dispatch, record outcome,
// continue past failures) generalized from shell-command steps to
// toolkit tool calls.
package execution

import (
	"fmt"

	"github.com/viztrtr/viztrtr-core/internal/errs"
	"github.com/viztrtr/viztrtr-core/internal/logging"
	"github.com/viztrtr/viztrtr-core/internal/toolkit"
	"github.com/viztrtr/viztrtr-core/internal/types"
)

// Toolkit is the subset of toolkit.Toolkit ExecutionAgent depends on.
type Toolkit interface {
	VerifyExpectedLine(relPath string, line int, expected string) (int, error)
	UpdateClassName(relPath string, line int, oldClassAttrValue, newClassAttrValue string) (types.FileChange, error)
	AppendToClassName(relPath string, line int, additionalClasses string) (types.FileChange, error)
	UpdateStyleValue(relPath string, line int, property, newValue string) (types.FileChange, error)
	UpdateTextContent(relPath string, line int, oldText, newText string) (types.FileChange, error)
}

var _ Toolkit = (*toolkit.Toolkit)(nil)

// Agent realizes ChangePlans via a Toolkit, one PlannedChange at a time,
// in order, never retrying a change with different parameters and never
// falling back to a raw write when the toolkit rejects it.
type Agent struct {
	toolkit Toolkit
}

// New returns an ExecutionAgent wrapping the given Toolkit.
func New(tk Toolkit) *Agent {
	return &Agent{toolkit: tk}
}

// Execute realizes every PlannedChange in plan, in order. A change whose
// current line no longer matches ExpectedLineContent (even with the
// toolkit's own fallback search) is marked skipped rather than failed,
// since a stale plan is not itself an error condition; any other toolkit
// error marks the change failed but does not abort the remaining
// changes in the plan.
func (a *Agent) Execute(plan types.ChangePlan) types.ExecutionReport {
	report := types.ExecutionReport{RecommendationID: plan.RecommendationID}

	for _, change := range plan.Changes {
		if _, err := a.toolkit.VerifyExpectedLine(change.FilePath, change.Line, change.ExpectedLineContent); err != nil {
			if kind, ok := errs.KindOf(err); ok && kind == errs.LineMismatch {
				report.Outcomes = append(report.Outcomes, types.ExecutionOutcome{
					RecommendationID: plan.RecommendationID, Change: change, Status: types.StatusSkipped, Reason: "plan is stale: " + err.Error(),
				})
				continue
			}
			report.Outcomes = append(report.Outcomes, types.ExecutionOutcome{
				RecommendationID: plan.RecommendationID, Change: change, Status: types.StatusFailed, Reason: err.Error(),
			})
			continue
		}

		fc, err := a.dispatch(change)
		if err != nil {
			report.Outcomes = append(report.Outcomes, types.ExecutionOutcome{
				RecommendationID: plan.RecommendationID, Change: change, Status: types.StatusFailed, Reason: err.Error(),
			})
			logging.Get(logging.CategoryExecution).Warn("change failed for %s: %v", change.FilePath, err)
			continue
		}

		fc.RecommendationID = plan.RecommendationID
		report.Changes = append(report.Changes, fc)
		report.Outcomes = append(report.Outcomes, types.ExecutionOutcome{RecommendationID: plan.RecommendationID, Change: change, Status: types.StatusApplied})
	}

	return report
}

func (a *Agent) dispatch(c types.PlannedChange) (types.FileChange, error) {
	switch c.Tool {
	case types.ToolUpdateClassName:
		oldVal, newVal, err := stringParams(c.Params, "old", "new")
		if err != nil {
			return types.FileChange{}, err
		}
		return a.toolkit.UpdateClassName(c.FilePath, c.Line, oldVal, newVal)

	case types.ToolAppendToClassName:
		classes, err := stringParam(c.Params, "classes")
		if err != nil {
			return types.FileChange{}, err
		}
		return a.toolkit.AppendToClassName(c.FilePath, c.Line, classes)

	case types.ToolUpdateStyleValue:
		prop, val, err := stringParams(c.Params, "property", "value")
		if err != nil {
			return types.FileChange{}, err
		}
		return a.toolkit.UpdateStyleValue(c.FilePath, c.Line, prop, val)

	case types.ToolUpdateTextContent:
		oldVal, newVal, err := stringParams(c.Params, "old", "new")
		if err != nil {
			return types.FileChange{}, err
		}
		return a.toolkit.UpdateTextContent(c.FilePath, c.Line, oldVal, newVal)

	default:
		return types.FileChange{}, errs.New(errs.ToolMismatch, "unknown tool "+string(c.Tool))
	}
}

func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", errs.New(errs.ToolMismatch, fmt.Sprintf("missing param %q", key))
	}
	s, ok := v.(string)
	if !ok {
		return "", errs.New(errs.ToolMismatch, fmt.Sprintf("param %q is not a string", key))
	}
	return s, nil
}

func stringParams(params map[string]any, a, b string) (string, string, error) {
	va, err := stringParam(params, a)
	if err != nil {
		return "", "", err
	}
	vb, err := stringParam(params, b)
	if err != nil {
		return "", "", err
	}
	return va, vb, nil
}
