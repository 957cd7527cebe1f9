// Package reflection implements ReflectionAgent (spec.md component C11):
// a post-iteration reasoning call over the IterationResult and
// MemorySnapshot, producing lessons and a rollback/continue decision.
// Grounded on the teacher's internal/perception reasoning-call shape
// (schema-constrained completion over a structured prompt) reused
// directly via the same PlanGenerator-shaped interface discovery.Agent
// consumes, since both are "ask the model for one structured JSON
// object back."
package reflection

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/viztrtr/viztrtr-core/internal/errs"
	"github.com/viztrtr/viztrtr-core/internal/logging"
	"github.com/viztrtr/viztrtr-core/internal/types"
)

// Reasoner is the minimal contract ReflectionAgent needs from an
// implementation adapter.
type Reasoner interface {
	CompleteWithSchema(ctx context.Context, systemPrompt, userPrompt, jsonSchema string) (string, error)
}

// MemoryWriter is the subset of memory.Store ReflectionAgent needs.
type MemoryWriter interface {
	RecordLessons(iteration int, lessons []string)
}

// Outcome is ReflectionAgent's structured result.
type Outcome struct {
	Lessons        []string `json:"lessons"`
	ShouldRollback bool     `json:"shouldRollback"`
	ShouldContinue bool     `json:"shouldContinue"`
	NextSteps      []string `json:"nextSteps"`
}

const reflectionSchema = `{
  "type": "object",
  "properties": {
    "lessons": {"type": "array", "items": {"type": "string"}},
    "shouldRollback": {"type": "boolean"},
    "shouldContinue": {"type": "boolean"},
    "nextSteps": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["lessons", "shouldRollback", "shouldContinue", "nextSteps"]
}`

// defaultRegressionThreshold is spec.md section 4.11's default: a
// composite score delta at or below -0.5 forces a rollback regardless
// of what the model decides.
const defaultRegressionThreshold = -0.5

// Agent is ReflectionAgent.
type Agent struct {
	model               Reasoner
	memory              MemoryWriter
	regressionThreshold float64
}

// New returns a ReflectionAgent. regressionThreshold == 0 is treated as
// unset and defaults to -0.5.
func New(model Reasoner, memory MemoryWriter, regressionThreshold float64) *Agent {
	if regressionThreshold == 0 {
		regressionThreshold = defaultRegressionThreshold
	}
	return &Agent{model: model, memory: memory, regressionThreshold: regressionThreshold}
}

// Reflect analyzes one iteration's result, scoreDelta (after - before
// composite), and whether VerificationAgent already rolled back this
// iteration (verificationFailed). The rule in spec.md section 4.11 —
// "shouldRollback=true when score delta is below threshold or
// VerificationReport indicates suspect behavior" — is enforced as a
// floor over the model's own answer: a below-threshold delta or a
// failed verification forces shouldRollback=true even if the model
// says otherwise.
func (a *Agent) Reflect(ctx context.Context, result types.IterationResult, scoreDelta float64, verificationFailed bool, memorySnapshot types.MemorySnapshot) (Outcome, error) {
	systemPrompt := "You are the reflection phase of a UI-improvement pipeline. Given one iteration's outcome and accumulated memory, draw concise lessons and decide whether to roll back and whether to continue iterating."
	userPrompt := fmt.Sprintf(
		"Iteration %d outcome: %s\nScore delta: %.2f\nVerification failed: %v\nPast attempts: %d\nAvoided components: %v\n",
		result.Iteration, result.Outcome, scoreDelta, verificationFailed, len(memorySnapshot.Attempts), memorySnapshot.AvoidedComponents,
	)

	raw, err := a.model.CompleteWithSchema(ctx, systemPrompt, userPrompt, reflectionSchema)
	if err != nil {
		return Outcome{}, errs.Wrap(errs.ModelError, "reflection request failed", err)
	}

	var outcome Outcome
	if err := json.Unmarshal([]byte(raw), &outcome); err != nil {
		return Outcome{}, errs.Wrap(errs.ModelError, "reflection response was not valid JSON", err)
	}

	if scoreDelta <= a.regressionThreshold || verificationFailed {
		outcome.ShouldRollback = true
	}

	if a.memory != nil && len(outcome.Lessons) > 0 {
		a.memory.RecordLessons(result.Iteration, outcome.Lessons)
	}

	logging.Get(logging.CategoryReflection).Info("iteration %d: shouldRollback=%v shouldContinue=%v lessons=%d", result.Iteration, outcome.ShouldRollback, outcome.ShouldContinue, len(outcome.Lessons))
	return outcome, nil
}
