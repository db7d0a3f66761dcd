package syncengine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordicnode/swarm/ignore"
)

func newTestWatcher(t *testing.T, root string) *Watcher {
	t.Helper()
	matcher := ignore.NewMatcher(filepath.Join(root, ".swarmignore"), nil)
	w, err := NewWatcher(root, matcher)
	require.NoError(t, err)
	go w.Run()
	t.Cleanup(func() { w.Close() })
	return w
}

func waitForChange(t *testing.T, w *Watcher, timeout time.Duration) (LocalChange, bool) {
	t.Helper()
	select {
	case c := <-w.Events():
		return c, true
	case <-time.After(timeout):
		return LocalChange{}, false
	}
}

func TestWatcherEmitsDebouncedCreateForNewFile(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "new.txt"), []byte("hello"), 0644))

	change, ok := waitForChange(t, w, 2*time.Second)
	require.True(t, ok, "expected a debounced change event")
	assert.Equal(t, "new.txt", change.RelativePath)
	assert.False(t, change.IsDirectory)
}

func TestWatcherCoalescesRepeatedWritesIntoOneEvent(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "hot.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0644))

	w := newTestWatcher(t, root)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("v2"), 0644))
		time.Sleep(20 * time.Millisecond)
	}

	_, ok := waitForChange(t, w, 2*time.Second)
	require.True(t, ok, "expected at least one coalesced change event")

	select {
	case extra := <-w.Events():
		t.Fatalf("expected writes within the debounce window to coalesce into one event, got extra: %+v", extra)
	case <-time.After(DebounceWindow + 200*time.Millisecond):
	}
}

func TestWatcherSkipsIgnoredDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".swarmignore"), []byte("ignored/\n"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "ignored"), 0755))

	w := newTestWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "ignored", "skip.txt"), []byte("x"), 0644))

	_, ok := waitForChange(t, w, DebounceWindow+500*time.Millisecond)
	assert.False(t, ok, "expected no change event for a file under an ignored directory")
}
