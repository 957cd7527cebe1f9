package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viztrtr/viztrtr-core/internal/types"
)

type stubMemory struct {
	attempted map[string]types.AttemptRecord
	avoided   []string
}

func (s stubMemory) WasAttempted(rec types.Recommendation, failingOutcomes ...types.Outcome) (types.AttemptRecord, bool) {
	a, ok := s.attempted[rec.ID]
	return a, ok
}

func (s stubMemory) GetAvoidedComponents() []string { return s.avoided }

func TestApplyRejectsPastFailure(t *testing.T) {
	mem := stubMemory{attempted: map[string]types.AttemptRecord{
		"rec-1": {Outcome: types.OutcomeBrokeBuild},
	}}
	f := New(mem, 1.0)
	result := f.Apply([]types.Recommendation{{ID: "rec-1", Impact: 8, Effort: 2}})
	require.Len(t, result.Rejected, 1)
	assert.Empty(t, result.Approved)
	assert.Contains(t, result.Rejected[0].Reason, "broke_build")
}

func TestApplyRejectsAvoidedComponent(t *testing.T) {
	mem := stubMemory{avoided: []string{"Header.tsx"}}
	f := New(mem, 1.0)
	result := f.Apply([]types.Recommendation{{ID: "rec-1", Target: "Header.tsx", Impact: 8, Effort: 2}})
	require.Len(t, result.Rejected, 1)
	assert.Contains(t, result.Rejected[0].Reason, "avoided-components")
}

func TestApplyRejectsLowROI(t *testing.T) {
	mem := stubMemory{}
	f := New(mem, 2.0)
	result := f.Apply([]types.Recommendation{{ID: "rec-1", Impact: 2, Effort: 4}})
	require.Len(t, result.Rejected, 1)
	assert.Contains(t, result.Rejected[0].Reason, "ROI")
}

func TestApplyApprovesRemaining(t *testing.T) {
	mem := stubMemory{}
	f := New(mem, 1.0)
	result := f.Apply([]types.Recommendation{{ID: "rec-1", Impact: 8, Effort: 2}})
	require.Len(t, result.Approved, 1)
	assert.Empty(t, result.Rejected)
}

func TestSortByROIDescendingTiesBrokenDeterministically(t *testing.T) {
	recs := []types.Recommendation{
		{ID: "b", Impact: 4, Effort: 2},
		{ID: "a", Impact: 4, Effort: 2},
		{ID: "c", Impact: 8, Effort: 2},
	}
	SortByROIDescending(recs)
	assert.Equal(t, []string{"c", "a", "b"}, []string{recs[0].ID, recs[1].ID, recs[2].ID})
}
