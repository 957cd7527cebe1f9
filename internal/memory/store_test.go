package memory

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viztrtr/viztrtr-core/internal/config"
	"github.com/viztrtr/viztrtr-core/internal/types"
)

func testMemoryConfig() config.MemoryConfig {
	return config.MemoryConfig{
		MatchStrategy:      config.MatchByFuzzyContent,
		LineFallbackRadius: 5,
		ROIThreshold:       1.5,
	}
}

func TestPersistRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, testMemoryConfig())
	require.NoError(t, s.Load())

	rec := types.Recommendation{ID: "rec-1", Title: "Improve contrast", Dimension: types.DimensionColorContrast}
	s.RecordAttempt(rec, 1, types.OutcomeSuccess, []string{"Header.tsx"}, "")
	s.RecordScore(types.ScoreHistoryEntry{Iteration: 1, BeforeScore: 6, AfterScore: 7, Delta: 1})
	require.NoError(t, s.Save())

	s2 := New(dir, testMemoryConfig())
	require.NoError(t, s2.Load())

	assert.Equal(t, s.Snapshot(), s2.Snapshot())
}

func TestShouldAvoidAfterFiveModsFourFailures(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, testMemoryConfig())
	require.NoError(t, s.Load())

	rec := types.Recommendation{ID: "rec-x", Title: "risky edit"}
	outcomes := []types.Outcome{
		types.OutcomeBrokeBuild, types.OutcomeBrokeBuild, types.OutcomeBrokeBuild, types.OutcomeBrokeBuild, types.OutcomeSuccess,
	}
	for i, o := range outcomes {
		s.RecordAttempt(rec, i+1, o, []string{"PromptInput.tsx"}, "")
	}

	avoided := s.GetAvoidedComponents()
	assert.Contains(t, avoided, "PromptInput.tsx")
}

func TestWasAttemptedFuzzyMatch(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, testMemoryConfig())
	require.NoError(t, s.Load())

	original := types.Recommendation{ID: "rec-a", Title: "Improve button contrast", Description: "raise contrast ratio on primary button"}
	s.RecordAttempt(original, 1, types.OutcomeBrokeBuild, []string{"Button.tsx"}, "")

	similar := types.Recommendation{ID: "rec-b", Title: "Improve button contrast ratio", Description: "raise the contrast ratio on the primary button"}
	_, found := s.WasAttempted(similar, types.OutcomeBrokeBuild, types.OutcomeFailed)
	assert.True(t, found)

	unrelated := types.Recommendation{ID: "rec-c", Title: "Add skip-to-content link", Description: "accessibility navigation aid"}
	_, found = s.WasAttempted(unrelated, types.OutcomeBrokeBuild, types.OutcomeFailed)
	assert.False(t, found)
}

func TestLoadMissingDocumentStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, testMemoryConfig())
	require.NoError(t, s.Load())
	assert.Empty(t, s.Snapshot().Attempts)
	assert.DirExists(t, filepath.Join(dir)) // dir itself exists; document not yet written
}

func TestContextSummaryIncludesTrendFailuresAndAvoidList(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, testMemoryConfig())
	require.NoError(t, s.Load())

	rec := types.Recommendation{ID: "rec-1", Title: "Improve contrast", Description: "raise ratio"}
	for i := 0; i < 5; i++ {
		outcome := types.OutcomeFailed
		if i == 4 {
			outcome = types.OutcomeSuccess
		}
		s.RecordAttempt(rec, i+1, outcome, []string{"Header.tsx"}, "")
	}
	s.RecordScore(types.ScoreHistoryEntry{Iteration: 5, BeforeScore: 5, AfterScore: 4.5, Delta: -0.5})

	summary := s.ContextSummary()
	assert.Contains(t, summary, "REGRESSING")
	assert.Contains(t, summary, "DO NOT RETRY")
	assert.Contains(t, summary, "Header.tsx")
}

func TestContextSummaryEmptyMemoryIsStillReadable(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, testMemoryConfig())
	require.NoError(t, s.Load())
	assert.Contains(t, s.ContextSummary(), "no history yet")
}
