// SPDX-License-Identifier: LGPL-3.0-or-later

package syncengine

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nordicnode/swarm/ignore"
	"github.com/nordicnode/swarm/internal/logger"
)

// Watcher recursively watches a sync folder and emits debounced,
// ignore-filtered LocalChange events (§4.5 event source 1).
//
// fsnotify only watches the directories it is told about, so newly created
// subdirectories are added on the fly and removed ones are dropped.
type Watcher struct {
	root    string
	matcher *ignore.Matcher
	fsw     *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]LocalChange
	timers  map[string]*time.Timer

	out  chan LocalChange
	stop chan struct{}
	done chan struct{}
}

// NewWatcher builds a Watcher rooted at root, filtering with matcher. Call
// Run to start watching; events arrive on Events().
func NewWatcher(root string, matcher *ignore.Matcher) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:    root,
		matcher: matcher,
		fsw:     fsw,
		pending: make(map[string]LocalChange),
		timers:  make(map[string]*time.Timer),
		out:     make(chan LocalChange, 256),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Events returns the channel of debounced, filtered local changes.
func (w *Watcher) Events() <-chan LocalChange { return w.out }

// Run processes fsnotify events until Close is called.
func (w *Watcher) Run() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("syncengine: watcher error", logger.Error(err))
		}
	}
}

// Close stops the watcher and releases its fsnotify handle.
func (w *Watcher) Close() error {
	close(w.stop)
	err := w.fsw.Close()
	<-w.done
	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()
	return err
}

func (w *Watcher) addTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.root, path)
		if relErr == nil && rel != "." {
			if ignored, _ := w.matcher.Match(rel, true); ignored {
				return filepath.SkipDir
			}
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return
	}
	info, statErr := os.Stat(ev.Name)
	isDir := statErr == nil && info.IsDir()

	if ignored, _ := w.matcher.Match(rel, isDir); ignored {
		return
	}

	if ev.Op&fsnotify.Create != 0 && isDir {
		if err := w.addTree(ev.Name); err != nil {
			logger.Warn("syncengine: failed to watch new directory", logger.String("path", ev.Name), logger.Error(err))
		}
	}

	kind := classify(ev.Op)
	if kind == "" {
		return
	}

	w.debounce(rel, LocalChange{RelativePath: rel, Kind: kind, IsDirectory: isDir, DetectedAt: time.Now()})
}

func classify(op fsnotify.Op) ChangeKind {
	switch {
	case op&fsnotify.Remove != 0:
		return ChangeDelete
	case op&fsnotify.Rename != 0:
		return ChangeDelete // fsnotify reports the source side of a rename as Rename; treated as delete-then-create
	case op&fsnotify.Create != 0:
		return ChangeCreate
	case op&fsnotify.Write != 0:
		return ChangeUpdate
	default:
		return ""
	}
}

// debounce coalesces repeated events for the same relative path: only the
// last event within DebounceWindow is forwarded.
func (w *Watcher) debounce(rel string, change LocalChange) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[rel] = change
	if t, ok := w.timers[rel]; ok {
		t.Stop()
	}
	w.timers[rel] = time.AfterFunc(DebounceWindow, func() {
		w.mu.Lock()
		final, ok := w.pending[rel]
		delete(w.pending, rel)
		delete(w.timers, rel)
		w.mu.Unlock()
		if ok {
			select {
			case w.out <- final:
			case <-w.stop:
			}
		}
	})
}
