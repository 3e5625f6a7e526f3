package validation

import (
	"strings"
	"testing"

	"github.com/alioshr/task-orchestrator-sub000/internal/orcherr"
)

func TestNonEmptyTrimmed(t *testing.T) {
	cases := []struct {
		value   string
		wantErr bool
	}{
		{"hello", false},
		{"  hello  ", false},
		{"", true},
		{"   ", true},
	}
	for _, c := range cases {
		err := NonEmptyTrimmed("field", c.value)
		if (err != nil) != c.wantErr {
			t.Errorf("NonEmptyTrimmed(%q) error = %v, wantErr %v", c.value, err, c.wantErr)
		}
		if err != nil && !orcherr.Is(err, orcherr.Validation) {
			t.Errorf("expected a VALIDATION_ERROR code, got %v", err)
		}
	}
}

func TestMaxLen(t *testing.T) {
	if err := MaxLen("field", "abc", 3); err != nil {
		t.Errorf("MaxLen at the limit should pass: %v", err)
	}
	if err := MaxLen("field", "abcd", 3); err == nil {
		t.Error("MaxLen over the limit should fail")
	}
}

func TestIntRange(t *testing.T) {
	if err := IntRange("complexity", 1, 1, 10); err != nil {
		t.Errorf("lower bound should pass: %v", err)
	}
	if err := IntRange("complexity", 10, 1, 10); err != nil {
		t.Errorf("upper bound should pass: %v", err)
	}
	if err := IntRange("complexity", 0, 1, 10); err == nil {
		t.Error("below lower bound should fail")
	}
	if err := IntRange("complexity", 11, 1, 10); err == nil {
		t.Error("above upper bound should fail")
	}
}

func TestChain_ShortCircuitsOnFirstFailure(t *testing.T) {
	calls := 0
	track := func(v string) error {
		calls++
		return nil
	}
	fail := func(v string) error {
		calls++
		return orcherr.New(orcherr.Validation, "nope")
	}

	chain := Chain(track, fail, track)
	if err := chain("x"); err == nil {
		t.Fatal("expected chain to fail")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (short-circuit after the failing validator)", calls)
	}
}

func TestAtomPaths(t *testing.T) {
	if err := AtomPaths([]string{"src/main.go"}); err != nil {
		t.Errorf("valid relative path should pass: %v", err)
	}
	if err := AtomPaths(nil); err == nil {
		t.Error("empty path list should fail")
	}
	if err := AtomPaths([]string{"/abs/path"}); err == nil {
		t.Error("absolute path should fail")
	}
	if err := AtomPaths([]string{"src/../etc/passwd"}); err == nil {
		t.Error("path with .. segment should fail")
	}
	many := make([]string, 21)
	for i := range many {
		many[i] = "a"
	}
	if err := AtomPaths(many); err == nil {
		t.Error("more than 20 paths should fail")
	}
}

func TestNormalizeTags_DedupesPreservingOrder(t *testing.T) {
	out := NormalizeTags([]string{"Backend", " backend ", "API", "backend"})
	if len(out) != 2 || out[0] != "backend" || out[1] != "api" {
		t.Errorf("NormalizeTags = %v, want [backend api]", out)
	}
}

func TestKnowledge_RejectsOversizedBlob(t *testing.T) {
	oversized := strings.Repeat("a", 32*1024+1)
	if err := Knowledge(oversized); err == nil {
		t.Error("knowledge over 32KiB should fail")
	}
	if err := Knowledge("fine"); err != nil {
		t.Errorf("small knowledge should pass: %v", err)
	}
}
