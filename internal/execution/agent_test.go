package execution

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viztrtr/viztrtr-core/internal/toolkit"
	"github.com/viztrtr/viztrtr-core/internal/types"
)

func newToolkit(t *testing.T, content string) (*toolkit.Toolkit, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "Button.tsx"), []byte(content), 0o644))
	return toolkit.New(root, t.TempDir(), 1, 5), root
}

func TestExecuteAppliesAllChangesInOrder(t *testing.T) {
	tk, _ := newToolkit(t, "line one\nclassName=\"a b\"\nline three\n")
	agent := New(tk)

	plan := types.ChangePlan{
		RecommendationID: "rec-1",
		Changes: []types.PlannedChange{
			{
				FilePath: "Button.tsx", Line: 2, Tool: types.ToolAppendToClassName,
				ExpectedLineContent: `className="a b"`,
				Params:              map[string]any{"classes": "c"},
			},
		},
	}

	report := agent.Execute(plan)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, types.StatusApplied, report.Outcomes[0].Status)
	assert.Equal(t, 1, report.AppliedCount())
	require.Len(t, report.Changes, 1)
	assert.Contains(t, report.Changes[0].NewContent, `className="a b c"`)
}

func TestExecuteSkipsStalePlan(t *testing.T) {
	tk, _ := newToolkit(t, "line one\nclassName=\"a b\"\nline three\n")
	agent := New(tk)

	plan := types.ChangePlan{Changes: []types.PlannedChange{
		{FilePath: "Button.tsx", Line: 2, Tool: types.ToolAppendToClassName, ExpectedLineContent: `className="completely different"`, Params: map[string]any{"classes": "c"}},
	}}

	report := agent.Execute(plan)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, types.StatusSkipped, report.Outcomes[0].Status)
	assert.Empty(t, report.Changes)
}

func TestExecuteFailsOnMissingParam(t *testing.T) {
	tk, _ := newToolkit(t, "line one\nclassName=\"a b\"\nline three\n")
	agent := New(tk)

	plan := types.ChangePlan{Changes: []types.PlannedChange{
		{FilePath: "Button.tsx", Line: 2, Tool: types.ToolAppendToClassName, ExpectedLineContent: `className="a b"`, Params: map[string]any{}},
	}}

	report := agent.Execute(plan)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, types.StatusFailed, report.Outcomes[0].Status)
}

func TestExecuteContinuesAfterOneFailure(t *testing.T) {
	tk, _ := newToolkit(t, "line one\nclassName=\"a b\"\nline three\n")
	agent := New(tk)

	plan := types.ChangePlan{Changes: []types.PlannedChange{
		{FilePath: "Button.tsx", Line: 2, Tool: types.ToolAppendToClassName, ExpectedLineContent: `className="a b"`, Params: map[string]any{}},
		{FilePath: "Button.tsx", Line: 2, Tool: types.ToolAppendToClassName, ExpectedLineContent: `className="a b"`, Params: map[string]any{"classes": "c"}},
	}}

	report := agent.Execute(plan)
	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, types.StatusFailed, report.Outcomes[0].Status)
	assert.Equal(t, types.StatusApplied, report.Outcomes[1].Status)
}
