package vision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viztrtr/viztrtr-core/internal/types"
)

// Analyze/Score talk to the live Gemini API and have no tests in this
// repository; here we cover the adapter's own input validation and the
// avoid-list second line of defense.

func TestNewRejectsEmptyAPIKey(t *testing.T) {
	_, err := New(context.Background(), "", "", nil)
	require.Error(t, err)
}

func TestDropAvoidedFiltersByTarget(t *testing.T) {
	recs := []types.Recommendation{
		{ID: "1", Target: "Navbar"},
		{ID: "2", Target: "Footer"},
	}
	out := dropAvoided(recs, []string{"Navbar"})
	require.Len(t, out, 1)
	assert.Equal(t, "2", out[0].ID)
}

func TestDropAvoidedNoopWhenListEmpty(t *testing.T) {
	recs := []types.Recommendation{{ID: "1", Target: "Navbar"}}
	assert.Equal(t, recs, dropAvoided(recs, nil))
}
