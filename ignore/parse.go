// SPDX-License-Identifier: LGPL-3.0-or-later

package ignore

import (
	"bufio"
	"io"
	"strings"
)

// parseRules reads .swarmignore lines into rules, in file order.
func parseRules(r io.Reader) ([]rule, error) {
	var rules []rule
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		rl := rule{raw: trimmed}
		pattern := trimmed
		if strings.HasPrefix(pattern, "!") {
			rl.negate = true
			pattern = pattern[1:]
		}
		if strings.HasSuffix(pattern, "/") {
			rl.dirOnly = true
			pattern = strings.TrimSuffix(pattern, "/")
		}
		// A '/' anywhere but the trailing position (already stripped above)
		// anchors the pattern to the sync root rather than matching at any depth.
		if strings.Contains(pattern, "/") {
			rl.anchored = true
		}
		pattern = strings.TrimPrefix(pattern, "/")

		rl.segments = splitLower(pattern)
		rules = append(rules, rl)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

func splitLower(pattern string) []string {
	parts := strings.Split(pattern, "/")
	for i, p := range parts {
		parts[i] = strings.ToLower(p)
	}
	return parts
}

// matches reports whether relSegments (lowercased, forward-slash path
// segments) satisfies the rule's pattern.
func (rl rule) matches(relSegments []string) bool {
	if rl.anchored {
		return matchSegments(rl.segments, relSegments)
	}
	// Unanchored: the pattern may match starting at any depth.
	for start := 0; start <= len(relSegments); start++ {
		if matchSegments(rl.segments, relSegments[start:]) {
			return true
		}
	}
	return false
}

// matchSegments matches pattern segments (possibly containing "**") against
// path segments, segment by segment.
func matchSegments(pattern, path []string) bool {
	if len(pattern) == 0 {
		return len(path) == 0
	}
	head := pattern[0]

	if head == "**" {
		if len(pattern) == 1 {
			return true // "**" alone matches everything beneath
		}
		for i := 0; i <= len(path); i++ {
			if matchSegments(pattern[1:], path[i:]) {
				return true
			}
		}
		return false
	}

	if len(path) == 0 {
		return false
	}
	if !segmentGlobMatch(head, path[0]) {
		return false
	}
	return matchSegments(pattern[1:], path[1:])
}

// segmentGlobMatch implements '*' (any run within the segment) and '?' (one
// character) glob matching for a single path segment.
func segmentGlobMatch(pattern, name string) bool {
	return globMatch([]rune(pattern), []rune(name))
}

func globMatch(pattern, name []rune) bool {
	if len(pattern) == 0 {
		return len(name) == 0
	}
	switch pattern[0] {
	case '*':
		for i := 0; i <= len(name); i++ {
			if globMatch(pattern[1:], name[i:]) {
				return true
			}
		}
		return false
	case '?':
		if len(name) == 0 {
			return false
		}
		return globMatch(pattern[1:], name[1:])
	default:
		if len(name) == 0 || pattern[0] != name[0] {
			return false
		}
		return globMatch(pattern[1:], name[1:])
	}
}
