// SPDX-License-Identifier: LGPL-3.0-or-later

package ignore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeIgnoreFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ".swarmignore")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestMatchSimpleGlob(t *testing.T) {
	dir := t.TempDir()
	path := writeIgnoreFile(t, dir, "*.log\n")
	m := NewMatcher(path, nil)

	ignored, err := m.Match("build.log", false)
	require.NoError(t, err)
	require.True(t, ignored)

	ignored, err = m.Match("src/build.log", false)
	require.NoError(t, err)
	require.True(t, ignored)

	ignored, err = m.Match("build.txt", false)
	require.NoError(t, err)
	require.False(t, ignored)
}

func TestMatchNegationOverridesEarlierMatch(t *testing.T) {
	dir := t.TempDir()
	path := writeIgnoreFile(t, dir, "*.log\n!keep.log\n")
	m := NewMatcher(path, nil)

	ignored, err := m.Match("keep.log", false)
	require.NoError(t, err)
	require.False(t, ignored)

	ignored, err = m.Match("other.log", false)
	require.NoError(t, err)
	require.True(t, ignored)
}

func TestMatchLastMatchWins(t *testing.T) {
	dir := t.TempDir()
	path := writeIgnoreFile(t, dir, "!important.log\n*.log\n")
	m := NewMatcher(path, nil)

	ignored, err := m.Match("important.log", false)
	require.NoError(t, err)
	require.True(t, ignored) // later *.log re-ignores it
}

func TestMatchDirOnlyPattern(t *testing.T) {
	dir := t.TempDir()
	path := writeIgnoreFile(t, dir, "build/\n")
	m := NewMatcher(path, nil)

	ignored, err := m.Match("build", true)
	require.NoError(t, err)
	require.True(t, ignored)

	ignored, err = m.Match("build", false)
	require.NoError(t, err)
	require.False(t, ignored)
}

func TestMatchAnchoredVsUnanchored(t *testing.T) {
	dir := t.TempDir()
	path := writeIgnoreFile(t, dir, "/root-only.txt\nanywhere.txt\n")
	m := NewMatcher(path, nil)

	ignored, err := m.Match("root-only.txt", false)
	require.NoError(t, err)
	require.True(t, ignored)

	ignored, err = m.Match("nested/root-only.txt", false)
	require.NoError(t, err)
	require.False(t, ignored)

	ignored, err = m.Match("nested/anywhere.txt", false)
	require.NoError(t, err)
	require.True(t, ignored)
}

func TestMatchDoubleStarMatchesAnyDepth(t *testing.T) {
	dir := t.TempDir()
	path := writeIgnoreFile(t, dir, "**/node_modules/**\n")
	m := NewMatcher(path, nil)

	ignored, err := m.Match("a/b/node_modules/pkg/index.js", false)
	require.NoError(t, err)
	require.True(t, ignored)
}

func TestMatchCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	path := writeIgnoreFile(t, dir, "*.LOG\n")
	m := NewMatcher(path, nil)

	ignored, err := m.Match("Debug.log", false)
	require.NoError(t, err)
	require.True(t, ignored)
}

func TestExplicitExcludedFoldersShortCircuits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".swarmignore") // no file written
	m := NewMatcher(path, []string{"secret-folder"})

	ignored, err := m.Match("secret-folder/file.txt", false)
	require.NoError(t, err)
	require.True(t, ignored)

	ignored, err = m.Match("other/file.txt", false)
	require.NoError(t, err)
	require.False(t, ignored)
}

func TestMatcherReloadsOnMtimeChange(t *testing.T) {
	dir := t.TempDir()
	path := writeIgnoreFile(t, dir, "*.tmp\n")
	m := NewMatcher(path, nil)

	ignored, err := m.Match("scratch.log", false)
	require.NoError(t, err)
	require.False(t, ignored)

	time.Sleep(10 * time.Millisecond)
	writeIgnoreFile(t, dir, "*.tmp\n*.log\n")

	ignored, err = m.Match("scratch.log", false)
	require.NoError(t, err)
	require.True(t, ignored)
}

func TestMatcherWithoutIgnoreFileIgnoresNothing(t *testing.T) {
	dir := t.TempDir()
	m := NewMatcher(filepath.Join(dir, ".swarmignore"), nil)

	ignored, err := m.Match("anything.txt", false)
	require.NoError(t, err)
	require.False(t, ignored)
}
