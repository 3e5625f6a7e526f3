// Package globmatch implements the path-to-pattern matching rules of spec
// §4.7/§9: "**" matches any number of path segments, "*" matches within a
// single segment, "?" matches one character, always against POSIX-style
// forward-slash paths regardless of host OS. Grounded on the teacher's use
// of glob-style matching nowhere in-tree (the pack carries no glob
// dependency), so doublestar/v4 is adopted as a named, out-of-pack
// ecosystem dependency — stdlib path/filepath.Match has no "**" segment
// wildcard and is OS-path-separator sensitive, so it cannot express this
// rule (see SPEC_FULL.md's DOMAIN STACK section).
package globmatch

import (
	"path"

	"github.com/bmatcuk/doublestar/v4"
)

// Match reports whether candidatePath matches pattern under the glob
// semantics above.
func Match(pattern, candidatePath string) bool {
	ok, err := doublestar.Match(path.Clean(pattern), path.Clean(candidatePath))
	if err != nil {
		return false
	}
	return ok
}

// MatchAny reports whether candidatePath matches at least one pattern in
// patterns.
func MatchAny(patterns []string, candidatePath string) bool {
	for _, p := range patterns {
		if Match(p, candidatePath) {
			return true
		}
	}
	return false
}
