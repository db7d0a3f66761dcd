// SPDX-License-Identifier: LGPL-3.0-or-later

package ignore

import (
	"fmt"
	"os"
	"strings"
)

// NewMatcher builds a Matcher reading patterns from path (typically
// "<syncRoot>/.swarmignore") plus an explicit excluded-folders list. path
// need not exist yet; Match then behaves as if no patterns are defined
// until the file is created.
func NewMatcher(path string, excludedDirs []string) *Matcher {
	lower := make([]string, len(excludedDirs))
	for i, d := range excludedDirs {
		lower[i] = strings.ToLower(strings.Trim(filepathToSlash(d), "/"))
	}
	return &Matcher{path: path, excludedDirs: lower}
}

// Match reports whether relPath (forward-slash, relative to the sync root)
// is ignored. isDir indicates whether relPath names a directory, since
// directory-only patterns only apply there.
func (m *Matcher) Match(relPath string, isDir bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.reloadIfChanged(); err != nil {
		return false, err
	}

	normalized := strings.ToLower(strings.Trim(filepathToSlash(relPath), "/"))
	segments := strings.Split(normalized, "/")

	for _, dir := range m.excludedDirs {
		if dir == "" {
			continue
		}
		dirSegments := strings.Split(dir, "/")
		if len(segments) >= len(dirSegments) && pathHasPrefix(segments, dirSegments) {
			return true, nil
		}
	}

	ignored := false
	for _, rl := range m.rules {
		if rl.dirOnly && !isDir {
			continue
		}
		if rl.matches(segments) {
			ignored = !rl.negate
		}
	}
	return ignored, nil
}

func pathHasPrefix(segments, prefix []string) bool {
	for i, p := range prefix {
		if segments[i] != p {
			return false
		}
	}
	return true
}

func (m *Matcher) reloadIfChanged() error {
	info, err := os.Stat(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			m.rules = nil
			return nil
		}
		return fmt.Errorf("ignore: stat %s: %w", m.path, err)
	}
	if info.ModTime().Equal(m.loadedModTime) {
		return nil
	}

	f, err := os.Open(m.path)
	if err != nil {
		return fmt.Errorf("ignore: open %s: %w", m.path, err)
	}
	defer f.Close()

	rules, err := parseRules(f)
	if err != nil {
		return fmt.Errorf("ignore: parse %s: %w", m.path, err)
	}
	m.rules = rules
	m.loadedModTime = info.ModTime()
	return nil
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
