package approval

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viztrtr/viztrtr-core/internal/types"
)

func newTestSource(input string, tty bool) (*TerminalSource, *bytes.Buffer) {
	out := &bytes.Buffer{}
	src := &TerminalSource{in: strings.NewReader(input), out: out, isatty: func() bool { return tty }}
	return src, out
}

func TestRequestRejectsWhenNotATTY(t *testing.T) {
	src, _ := newTestSource("y\n", false)
	approved, skip, err := src.Request(context.Background(), []types.Recommendation{{ID: "rec-1"}}, 5, 10)
	require.NoError(t, err)
	assert.True(t, skip)
	assert.Empty(t, approved)
}

func TestRequestApprovesOnYes(t *testing.T) {
	src, _ := newTestSource("y\n", true)
	recs := []types.Recommendation{{ID: "rec-1"}}
	approved, skip, err := src.Request(context.Background(), recs, 5, 10)
	require.NoError(t, err)
	assert.False(t, skip)
	assert.Equal(t, recs, approved)
}

func TestRequestRejectsOnNo(t *testing.T) {
	src, _ := newTestSource("n\n", true)
	approved, skip, err := src.Request(context.Background(), []types.Recommendation{{ID: "rec-1"}}, 5, 10)
	require.NoError(t, err)
	assert.True(t, skip)
	assert.Empty(t, approved)
}

func TestRequestRejectsOnSkip(t *testing.T) {
	src, _ := newTestSource("skip\n", true)
	approved, skip, err := src.Request(context.Background(), []types.Recommendation{{ID: "rec-1"}}, 5, 10)
	require.NoError(t, err)
	assert.True(t, skip)
	assert.Empty(t, approved)
}
