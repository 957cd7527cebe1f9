package types

import "time"

// Outcome is the terminal state of one Recommendation execution attempt.
type Outcome string

const (
	OutcomeSuccess            Outcome = "success"
	OutcomeFailed              Outcome = "failed"
	OutcomeNoEffect            Outcome = "no_effect"
	OutcomeBrokeBuild          Outcome = "broke_build"
	OutcomeRejectedByFilter    Outcome = "rejected_by_filter"
	OutcomeRejectedByHuman     Outcome = "rejected_by_human"
	OutcomeRejectedByValidator Outcome = "rejected_by_validator"
	OutcomeCancelled           Outcome = "cancelled"
)

// AttemptRecord is one past Recommendation execution.
type AttemptRecord struct {
	Iteration       int       `json:"iteration"`
	RecommendationID string   `json:"recommendation_id"`
	Content         string    `json:"content"` // title+description, for fuzzy matching
	Outcome         Outcome   `json:"outcome"`
	FilePaths       []string  `json:"file_paths,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// ComponentStats is the per-file aggregate used to derive avoidance.
type ComponentStats struct {
	ModificationCount int     `json:"modification_count"`
	FailureCount      int     `json:"failure_count"`
	SuccessCount      int     `json:"success_count"`
	LastOutcome       Outcome `json:"last_outcome"`
}

// ShouldAvoid implements the derived invariant from spec.md section 3:
// modificationCount >= 5 AND failureCount >= 4.
func (c ComponentStats) ShouldAvoid() bool {
	return c.ModificationCount >= 5 && c.FailureCount >= 4
}

// ScoreHistoryEntry records one iteration's score movement.
type ScoreHistoryEntry struct {
	Iteration     int     `json:"iteration"`
	BeforeScore   float64 `json:"before_score"`
	AfterScore    float64 `json:"after_score"`
	Delta         float64 `json:"delta"`
	TargetReached bool    `json:"target_reached"`
}

// LessonEntry is one ReflectionAgent finding attached to an iteration.
type LessonEntry struct {
	Iteration int    `json:"iteration"`
	Lesson    string `json:"lesson"`
}

// MemorySnapshot is the single JSON document persisted by MemoryStore.
type MemorySnapshot struct {
	Attempts          []AttemptRecord           `json:"attempts"`
	ScoreHistory      []ScoreHistoryEntry       `json:"score_history"`
	ComponentStats    map[string]ComponentStats `json:"component_stats"`
	AvoidedComponents []string                  `json:"avoided_components"`
	Lessons           []LessonEntry             `json:"lessons"`
}

// NewMemorySnapshot returns an empty snapshot, matching the "created empty
// on first iteration" lifecycle rule in spec.md section 3.
func NewMemorySnapshot() *MemorySnapshot {
	return &MemorySnapshot{
		Attempts:          []AttemptRecord{},
		ScoreHistory:      []ScoreHistoryEntry{},
		ComponentStats:    map[string]ComponentStats{},
		AvoidedComponents: []string{},
		Lessons:           []LessonEntry{},
	}
}
