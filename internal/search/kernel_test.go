package search

import (
	"strings"
	"testing"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

func TestBuild_QueryProducesEscapedLikeFragment(t *testing.T) {
	fragments, args := Build(types.SearchOptions{Query: "100%_done"}, types.EntityFeature, false)
	if len(fragments) != 1 {
		t.Fatalf("fragments = %v, want 1", fragments)
	}
	if !strings.Contains(fragments[0], "LIKE") {
		t.Errorf("fragment = %q, want a LIKE clause", fragments[0])
	}
	want := "%100\\%\\_done%"
	if args[0] != want {
		t.Errorf("arg = %q, want %q", args[0], want)
	}
}

func TestBuild_StatusIncludeExclude(t *testing.T) {
	opts := types.SearchOptions{
		Status: types.EnumFilter{Include: []string{"NEW", "ACTIVE"}, Exclude: []string{"CLOSED"}},
	}
	fragments, args := Build(opts, types.EntityFeature, false)
	if len(fragments) != 1 {
		t.Fatalf("fragments = %v, want 1", fragments)
	}
	if !strings.Contains(fragments[0], "IN (") || !strings.Contains(fragments[0], "NOT IN (") {
		t.Errorf("fragment = %q, want both IN and NOT IN", fragments[0])
	}
	if len(args) != 3 {
		t.Errorf("args = %v, want 3 bind values", args)
	}
}

func TestBuild_TagSemantics(t *testing.T) {
	opts := types.SearchOptions{Tags: []string{"a", "b"}}

	_, anyArgs := Build(opts, types.EntityFeature, false)
	_, allArgs := Build(opts, types.EntityProject, true)

	// ANY semantics needs no trailing count arg; ALL semantics appends len(tags).
	if len(allArgs) != len(anyArgs)+1 {
		t.Errorf("ALL args = %v, ANY args = %v; expected ALL to carry one extra arg (the match count)", allArgs, anyArgs)
	}
	if allArgs[len(allArgs)-1] != 2 {
		t.Errorf("ALL trailing arg = %v, want 2", allArgs[len(allArgs)-1])
	}
}

func TestBuild_HierarchyScopes(t *testing.T) {
	opts := types.SearchOptions{ProjectID: "p1", FeatureID: "f1"}
	fragments, args := Build(opts, types.EntityTask, false)
	if len(fragments) != 2 {
		t.Fatalf("fragments = %v, want 2", fragments)
	}
	if args[0] != "p1" || args[1] != "f1" {
		t.Errorf("args = %v, want [p1 f1]", args)
	}
}

func TestPaginate(t *testing.T) {
	clause, args := Paginate(10, 20)
	if clause != "LIMIT ? OFFSET ?" || args[0] != 10 || args[1] != 20 {
		t.Errorf("Paginate(10, 20) = %q %v", clause, args)
	}

	clause, args = Paginate(0, -5)
	if clause != "LIMIT -1 OFFSET ?" || args[0] != 0 {
		t.Errorf("Paginate(0, -5) = %q %v, want no cap and clamped offset", clause, args)
	}
}
