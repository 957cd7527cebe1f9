package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viztrtr/viztrtr-core/internal/config"
	"github.com/viztrtr/viztrtr-core/internal/errs"
	"github.com/viztrtr/viztrtr-core/internal/types"
)

type stubGenerator struct {
	response string
	err      error
}

func (s stubGenerator) CompleteWithSchema(ctx context.Context, systemPrompt, userPrompt, schema string) (string, error) {
	return s.response, s.err
}

func rec() types.Recommendation {
	return types.Recommendation{ID: "rec-1", Title: "Increase button contrast", Dimension: types.DimensionColorContrast, Impact: 6, Effort: 2}
}

func writeProjectFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func TestDiscoverEmitsValidPlan(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "src/Button.tsx", "export function Button() {\n  return <button className=\"bg-blue-500\">Go</button>\n}\n")

	resp := `{"changes":[{"filePath":"src/Button.tsx","line":2,"tool":"updateClassName","expectedLineContent":"  return <button className=\"bg-blue-500\">Go</button>","params":{"newValue":"bg-blue-700"}}]}`
	agent := New(root, stubGenerator{response: resp}, defaultDiscoveryConfig())

	plan, err := agent.Discover(context.Background(), rec(), []CandidateFile{{Path: "src/Button.tsx", Dir: "src", Size: 80}})
	require.NoError(t, err)
	assert.Equal(t, "rec-1", plan.RecommendationID)
	require.Len(t, plan.Changes, 1)
	assert.Equal(t, types.ToolUpdateClassName, plan.Changes[0].Tool)
}

func TestDiscoverRejectsNoCandidates(t *testing.T) {
	agent := New(t.TempDir(), stubGenerator{}, defaultDiscoveryConfig())
	_, err := agent.Discover(context.Background(), rec(), nil)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.NoCandidateFiles, kind)
}

func TestDiscoverRejectsFileOutsideCandidateSet(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "src/Button.tsx", "content\n")
	resp := `{"changes":[{"filePath":"src/Other.tsx","line":1,"tool":"updateClassName","expectedLineContent":"content","params":{}}]}`
	agent := New(root, stubGenerator{response: resp}, defaultDiscoveryConfig())

	_, err := agent.Discover(context.Background(), rec(), []CandidateFile{{Path: "src/Button.tsx", Dir: "src", Size: 10}})
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.PlanMalformed, kind)
}

func TestDiscoverRejectsUnexposedTool(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "src/Button.tsx", "content\n")
	resp := `{"changes":[{"filePath":"src/Button.tsx","line":1,"tool":"deleteFile","expectedLineContent":"content","params":{}}]}`
	agent := New(root, stubGenerator{response: resp}, defaultDiscoveryConfig())

	_, err := agent.Discover(context.Background(), rec(), []CandidateFile{{Path: "src/Button.tsx", Dir: "src", Size: 10}})
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.PlanMalformed, kind)
}

func TestDiscoverWrapsModelError(t *testing.T) {
	agent := New(t.TempDir(), stubGenerator{err: assertError{}}, defaultDiscoveryConfig())
	_, err := agent.Discover(context.Background(), rec(), []CandidateFile{{Path: "a.tsx", Dir: ".", Size: 1}})
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.ModelError, kind)
}

type assertError struct{}

func (assertError) Error() string { return "boom" }

func defaultDiscoveryConfig() config.FileDiscoveryConfig {
	return config.FileDiscoveryConfig{
		Extensions:  []string{".tsx", ".jsx", ".ts", ".js"},
		MaxFileSize: 50 * 1024,
		ExcludeDirs: []string{"node_modules"},
	}
}
