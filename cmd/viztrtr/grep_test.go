package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viztrtr/viztrtr-core/internal/config"
)

func TestNewProjectGrepFindsReferencersAndExcludesSelf(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Button.tsx"), []byte("export function Button() {}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Page.tsx"), []byte("import { Button } from './Button'"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Unrelated.tsx"), []byte("export function Unrelated() {}"), 0o644))

	grep := newProjectGrep(dir, config.FileDiscoveryConfig{Extensions: []string{".tsx"}})
	referencers := grep("Button")

	assert.Equal(t, []string{"Page.tsx"}, referencers)
}

func TestNewProjectGrepReturnsNilWhenNoReferencers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Lonely.tsx"), []byte("export function Lonely() {}"), 0o644))

	grep := newProjectGrep(dir, config.FileDiscoveryConfig{Extensions: []string{".tsx"}})
	assert.Nil(t, grep("Lonely"))
}
