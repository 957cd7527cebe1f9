package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viztrtr/viztrtr-core/internal/discovery"
	"github.com/viztrtr/viztrtr-core/internal/types"
)

type stubDiscovery struct {
	plan types.ChangePlan
	err  error
}

func (s stubDiscovery) Discover(ctx context.Context, rec types.Recommendation, candidates []discovery.CandidateFile) (types.ChangePlan, error) {
	return s.plan, s.err
}

type stubExecution struct{}

func (stubExecution) Execute(plan types.ChangePlan) types.ExecutionReport {
	report := types.ExecutionReport{RecommendationID: plan.RecommendationID}
	for _, c := range plan.Changes {
		report.Outcomes = append(report.Outcomes, types.ExecutionOutcome{Change: c, Status: types.StatusApplied})
		report.Changes = append(report.Changes, types.FileChange{FilePath: c.FilePath, Tool: c.Tool})
	}
	return report
}

type stubValidator struct{ valid bool }

func (s stubValidator) Validate(path, original, modified string, effort int, impactHigh bool) (types.ValidationResult, error) {
	return types.ValidationResult{Valid: s.valid}, nil
}

type stubFiles struct{ content string }

func (s stubFiles) ReadFile(relPath string) (string, error) { return s.content, nil }

func plannedPlan(rec, path string) types.ChangePlan {
	return types.ChangePlan{RecommendationID: rec, Changes: []types.PlannedChange{
		{FilePath: path, Line: 1, Tool: types.ToolUpdateTextContent, ExpectedLineContent: "hi", Params: map[string]any{"old": "hi", "new": "bye"}},
	}}
}

func TestRouteDispatchesToMatchingSpecialist(t *testing.T) {
	specialists := []Specialist{
		{Name: "forms", Domain: "forms", Predicate: func(r types.Recommendation) float64 {
			if r.Dimension == types.DimensionAccessibility {
				return 1
			}
			return 0
		}, Discovery: stubDiscovery{plan: plannedPlan("rec-1", "Form.tsx")}, Execution: stubExecution{}},
		{Name: "default", Domain: "general", Predicate: func(types.Recommendation) float64 { return 0 }, Discovery: stubDiscovery{plan: plannedPlan("rec-1", "Other.tsx")}, Execution: stubExecution{}},
	}
	router := New(specialists, "default", stubValidator{valid: true}, stubFiles{content: "hi\n"}, nil, 2)

	report := router.Route(context.Background(), []types.Recommendation{{ID: "rec-1", Dimension: types.DimensionAccessibility}})
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, types.StatusApplied, report.Outcomes[0].Status)
	assert.Equal(t, "Form.tsx", report.Outcomes[0].Change.FilePath)
}

func TestRouteFallsBackToDefaultSpecialist(t *testing.T) {
	specialists := []Specialist{
		{Name: "default", Predicate: func(types.Recommendation) float64 { return 0 }, Discovery: stubDiscovery{plan: plannedPlan("rec-1", "Other.tsx")}, Execution: stubExecution{}},
	}
	router := New(specialists, "default", stubValidator{valid: true}, stubFiles{content: "hi\n"}, nil, 1)
	report := router.Route(context.Background(), []types.Recommendation{{ID: "rec-1"}})
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, "Other.tsx", report.Outcomes[0].Change.FilePath)
}

func TestRouteRejectsInvalidChangeBeforeExecution(t *testing.T) {
	specialists := []Specialist{
		{Name: "default", Predicate: func(types.Recommendation) float64 { return 0 }, Discovery: stubDiscovery{plan: plannedPlan("rec-1", "Other.tsx")}, Execution: stubExecution{}},
	}
	router := New(specialists, "default", stubValidator{valid: false}, stubFiles{content: "hi\n"}, nil, 1)
	report := router.Route(context.Background(), []types.Recommendation{{ID: "rec-1"}})
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, types.StatusSkipped, report.Outcomes[0].Status)
}

func TestRouteNoMatchAndNoDefaultFails(t *testing.T) {
	specialists := []Specialist{
		{Name: "forms", Predicate: func(types.Recommendation) float64 { return 0 }, Discovery: stubDiscovery{}, Execution: stubExecution{}},
	}
	router := New(specialists, "missing", stubValidator{valid: true}, stubFiles{content: "hi\n"}, nil, 1)
	report := router.Route(context.Background(), []types.Recommendation{{ID: "rec-1"}})
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, types.StatusFailed, report.Outcomes[0].Status)
}
