package globmatch

import "testing"

func TestMatch(t *testing.T) {
	cases := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"src/**/*.go", "src/internal/repo/task.go", true},
		{"src/**/*.go", "src/task.go", true},
		{"src/*.go", "src/internal/task.go", false},
		{"internal/?epo/*.go", "internal/repo/task.go", true},
		{"internal/repo/task.go", "internal/repo/task.go", true},
		{"internal/repo/task.go", "internal/repo/other.go", false},
	}
	for _, c := range cases {
		if got := Match(c.pattern, c.path); got != c.want {
			t.Errorf("Match(%q, %q) = %v, want %v", c.pattern, c.path, got, c.want)
		}
	}
}

func TestMatchAny(t *testing.T) {
	patterns := []string{"docs/**", "internal/repo/*.go"}
	if !MatchAny(patterns, "internal/repo/task.go") {
		t.Error("expected a match against the second pattern")
	}
	if MatchAny(patterns, "cmd/main.go") {
		t.Error("expected no match for an unrelated path")
	}
}
