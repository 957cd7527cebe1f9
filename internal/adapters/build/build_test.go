package build

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viztrtr/viztrtr-core/internal/config"
)

func TestBuildSucceedsOnExitZero(t *testing.T) {
	a := New(config.BuildConfig{Command: []string{"true"}})
	success, _, _, err := a.Build(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.True(t, success)
}

func TestBuildReportsFailureOnNonZeroExit(t *testing.T) {
	a := New(config.BuildConfig{Command: []string{"false"}})
	success, _, _, err := a.Build(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.False(t, success)
}

func TestBuildCapturesStderr(t *testing.T) {
	a := New(config.BuildConfig{Command: []string{"sh", "-c", "echo boom 1>&2; exit 1"}})
	success, stderr, _, err := a.Build(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.False(t, success)
	assert.Contains(t, stderr, "boom")
}
