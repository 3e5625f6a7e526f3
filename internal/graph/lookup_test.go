package graph

import (
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/alioshr/task-orchestrator-sub000/internal/repo"
	"github.com/alioshr/task-orchestrator-sub000/internal/storage/sqlite"
)

func TestFindAtomsByPaths(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "orchestrator.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	projects := repo.NewProjectRepo(store)
	atoms := repo.NewAtomRepo(store)

	p, err := projects.Create(ctx, "Proj", "", "", nil)
	if err != nil {
		t.Fatalf("Create project: %v", err)
	}

	repoAtom, err := atoms.Create(ctx, repo.AtomCreate{ProjectID: p.ID, Paths: []string{"internal/repo/**/*.go"}})
	if err != nil {
		t.Fatalf("Create repo atom: %v", err)
	}
	cmdAtom, err := atoms.Create(ctx, repo.AtomCreate{ProjectID: p.ID, Paths: []string{"cmd/**"}})
	if err != nil {
		t.Fatalf("Create cmd atom: %v", err)
	}

	lookup := NewLookup(atoms)
	result, err := lookup.FindAtomsByPaths(ctx, p.ID, []string{
		"internal/repo/task.go",
		"cmd/orchestrator/main.go",
		"docs/readme.md",
	})
	if err != nil {
		t.Fatalf("FindAtomsByPaths: %v", err)
	}

	if len(result.Atoms) != 2 {
		t.Fatalf("Atoms = %v, want 2 matches", result.Atoms)
	}
	if len(result.UnmatchedPaths) != 1 || result.UnmatchedPaths[0] != "docs/readme.md" {
		t.Errorf("UnmatchedPaths = %v, want [docs/readme.md]", result.UnmatchedPaths)
	}

	var matchedIDs []string
	for _, m := range result.Atoms {
		matchedIDs = append(matchedIDs, m.Atom.ID)
	}
	sort.Strings(matchedIDs)
	want := []string{cmdAtom.ID, repoAtom.ID}
	sort.Strings(want)
	for i := range want {
		if matchedIDs[i] != want[i] {
			t.Errorf("matched atom ids = %v, want %v", matchedIDs, want)
		}
	}
}

func TestFindAtomsByPaths_NoAtoms(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "orchestrator.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	projects := repo.NewProjectRepo(store)
	atoms := repo.NewAtomRepo(store)

	p, err := projects.Create(ctx, "Proj", "", "", nil)
	if err != nil {
		t.Fatalf("Create project: %v", err)
	}

	lookup := NewLookup(atoms)
	result, err := lookup.FindAtomsByPaths(ctx, p.ID, []string{"a.go"})
	if err != nil {
		t.Fatalf("FindAtomsByPaths: %v", err)
	}
	if len(result.Atoms) != 0 || len(result.UnmatchedPaths) != 1 {
		t.Errorf("result = %+v, want no matches and one unmatched path", result)
	}
}
