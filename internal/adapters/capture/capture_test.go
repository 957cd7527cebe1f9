package capture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viztrtr/viztrtr-core/internal/config"
)

// The browser-driving paths (captureOnce) need a real Chrome binary and
// have no tests in this repository; here we cover
// the deterministic, browser-independent parts: artifact naming and the
// no-op behavior when no output directory is configured.

func TestWriteFilePersistsUnderOutDir(t *testing.T) {
	dir := t.TempDir()
	a := New(true, config.CaptureConfig{}, dir)
	path, err := a.writeFile([]byte("fake-png"))
	require.NoError(t, err)
	assert.True(t, filepath.Dir(path) == dir)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("fake-png"), data)
}

func TestWriteFileNoOutDirReturnsEmptyPath(t *testing.T) {
	a := New(true, config.CaptureConfig{}, "")
	path, err := a.writeFile([]byte("fake-png"))
	require.NoError(t, err)
	assert.Empty(t, path)
}
