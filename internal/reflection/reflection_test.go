package reflection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viztrtr/viztrtr-core/internal/types"
)

type stubReasoner struct{ response string }

func (s stubReasoner) CompleteWithSchema(ctx context.Context, systemPrompt, userPrompt, schema string) (string, error) {
	return s.response, nil
}

type stubMemory struct {
	iteration int
	lessons   []string
}

func (s *stubMemory) RecordLessons(iteration int, lessons []string) {
	s.iteration = iteration
	s.lessons = lessons
}

func TestReflectParsesModelResponse(t *testing.T) {
	mem := &stubMemory{}
	agent := New(stubReasoner{response: `{"lessons":["avoid touching Header.tsx"],"shouldRollback":false,"shouldContinue":true,"nextSteps":["target spacing next"]}`}, mem, 0)

	outcome, err := agent.Reflect(context.Background(), types.IterationResult{Iteration: 3}, 0.8, false, types.MemorySnapshot{})
	require.NoError(t, err)
	assert.False(t, outcome.ShouldRollback)
	assert.True(t, outcome.ShouldContinue)
	assert.Equal(t, []string{"avoid touching Header.tsx"}, mem.lessons)
	assert.Equal(t, 3, mem.iteration)
}

func TestReflectForcesRollbackOnRegressionDelta(t *testing.T) {
	agent := New(stubReasoner{response: `{"lessons":[],"shouldRollback":false,"shouldContinue":true,"nextSteps":[]}`}, nil, 0)
	outcome, err := agent.Reflect(context.Background(), types.IterationResult{Iteration: 1}, -0.6, false, types.MemorySnapshot{})
	require.NoError(t, err)
	assert.True(t, outcome.ShouldRollback)
}

func TestReflectForcesRollbackOnVerificationFailure(t *testing.T) {
	agent := New(stubReasoner{response: `{"lessons":[],"shouldRollback":false,"shouldContinue":true,"nextSteps":[]}`}, nil, 0)
	outcome, err := agent.Reflect(context.Background(), types.IterationResult{Iteration: 1}, 0.2, true, types.MemorySnapshot{})
	require.NoError(t, err)
	assert.True(t, outcome.ShouldRollback)
}

func TestReflectWrapsModelErrorOnMalformedJSON(t *testing.T) {
	agent := New(stubReasoner{response: "not json"}, nil, 0)
	_, err := agent.Reflect(context.Background(), types.IterationResult{Iteration: 1}, 0, false, types.MemorySnapshot{})
	require.Error(t, err)
}
