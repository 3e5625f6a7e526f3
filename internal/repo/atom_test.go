package repo

import (
	"context"
	"testing"

	"github.com/alioshr/task-orchestrator-sub000/internal/orcherr"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

func TestAtomRepo_CreateGet(t *testing.T) {
	store := newTestStore(t)
	projects := NewProjectRepo(store)
	atoms := NewAtomRepo(store)
	ctx := context.Background()

	p, err := projects.Create(ctx, "Proj", "", "", nil)
	if err != nil {
		t.Fatalf("Create project: %v", err)
	}

	a, err := atoms.Create(ctx, AtomCreate{ProjectID: p.ID, Paths: []string{"internal/**/*.go"}, Knowledge: "notes"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	fetched, err := atoms.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(fetched.Paths) != 1 || fetched.Paths[0] != "internal/**/*.go" {
		t.Errorf("Paths = %v", fetched.Paths)
	}
}

func TestAtomRepo_CreateRefusesMoleculeFromDifferentProject(t *testing.T) {
	store := newTestStore(t)
	projects := NewProjectRepo(store)
	molecules := NewMoleculeRepo(store)
	atoms := NewAtomRepo(store)
	ctx := context.Background()

	p1, err := projects.Create(ctx, "P1", "", "", nil)
	if err != nil {
		t.Fatalf("Create p1: %v", err)
	}
	p2, err := projects.Create(ctx, "P2", "", "", nil)
	if err != nil {
		t.Fatalf("Create p2: %v", err)
	}
	m, err := molecules.Create(ctx, p1.ID, "Mol", "", nil)
	if err != nil {
		t.Fatalf("Create molecule: %v", err)
	}

	if _, err := atoms.Create(ctx, AtomCreate{ProjectID: p2.ID, Paths: []string{"a.go"}, MoleculeID: m.ID}); !orcherr.Is(err, orcherr.InvariantViolation) {
		t.Errorf("cross-project molecule should INVARIANT_VIOLATION, got %v", err)
	}
}

func TestAtomRepo_ListByProject(t *testing.T) {
	store := newTestStore(t)
	projects := NewProjectRepo(store)
	atoms := NewAtomRepo(store)
	ctx := context.Background()

	p, err := projects.Create(ctx, "Proj", "", "", nil)
	if err != nil {
		t.Fatalf("Create project: %v", err)
	}
	if _, err := atoms.Create(ctx, AtomCreate{ProjectID: p.ID, Paths: []string{"a.go"}}); err != nil {
		t.Fatalf("Create a1: %v", err)
	}
	if _, err := atoms.Create(ctx, AtomCreate{ProjectID: p.ID, Paths: []string{"b.go"}}); err != nil {
		t.Fatalf("Create a2: %v", err)
	}

	list, err := atoms.ListByProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListByProject: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("ListByProject = %d atoms, want 2", len(list))
	}
}

func TestAtomRepo_UpdateKnowledgeOverwrite(t *testing.T) {
	store := newTestStore(t)
	projects := NewProjectRepo(store)
	atoms := NewAtomRepo(store)
	ctx := context.Background()

	p, err := projects.Create(ctx, "Proj", "", "", nil)
	if err != nil {
		t.Fatalf("Create project: %v", err)
	}
	a, err := atoms.Create(ctx, AtomCreate{ProjectID: p.ID, Paths: []string{"a.go"}, Knowledge: "old"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := atoms.UpdateKnowledge(ctx, a.ID, a.Version, types.KnowledgeOverwrite, "new", "")
	if err != nil {
		t.Fatalf("UpdateKnowledge: %v", err)
	}
	if updated.Knowledge != "new" {
		t.Errorf("Knowledge = %q, want new", updated.Knowledge)
	}
}

func TestAtomRepo_UpdateKnowledgeResubmitSameAppendStillBumpsVersion(t *testing.T) {
	store := newTestStore(t)
	projects := NewProjectRepo(store)
	features := NewFeatureRepo(store)
	tasks := NewTaskRepo(store)
	atoms := NewAtomRepo(store)
	ctx := context.Background()

	p, err := projects.Create(ctx, "Proj", "", "", nil)
	if err != nil {
		t.Fatalf("Create project: %v", err)
	}
	f, err := features.Create(ctx, FeatureCreate{ProjectID: p.ID, Name: "Feat"})
	if err != nil {
		t.Fatalf("Create feature: %v", err)
	}
	task, err := tasks.Create(ctx, TaskCreate{FeatureID: f.ID, Name: "Task"})
	if err != nil {
		t.Fatalf("Create task: %v", err)
	}
	a, err := atoms.Create(ctx, AtomCreate{ProjectID: p.ID, Paths: []string{"a.go"}, Knowledge: "first"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, err := atoms.UpdateKnowledge(ctx, a.ID, a.Version, types.KnowledgeAppend, "chunk", task.ID)
	if err != nil {
		t.Fatalf("UpdateKnowledge append: %v", err)
	}

	second, err := atoms.UpdateKnowledge(ctx, a.ID, first.Version, types.KnowledgeAppend, "chunk", task.ID)
	if err != nil {
		t.Fatalf("UpdateKnowledge resubmit same chunk: %v", err)
	}
	if second.Version != first.Version+1 {
		t.Errorf("Version = %d, want %d (resubmitting an identical chunk must still bump version)", second.Version, first.Version+1)
	}
}

func TestAtomRepo_DeleteRemovesChangelog(t *testing.T) {
	store := newTestStore(t)
	projects := NewProjectRepo(store)
	features := NewFeatureRepo(store)
	tasks := NewTaskRepo(store)
	atoms := NewAtomRepo(store)
	changelog := NewChangelogRepo(store)
	ctx := context.Background()

	p, err := projects.Create(ctx, "Proj", "", "", nil)
	if err != nil {
		t.Fatalf("Create project: %v", err)
	}
	f, err := features.Create(ctx, FeatureCreate{ProjectID: p.ID, Name: "Feat"})
	if err != nil {
		t.Fatalf("Create feature: %v", err)
	}
	task, err := tasks.Create(ctx, TaskCreate{FeatureID: f.ID, Name: "Task"})
	if err != nil {
		t.Fatalf("Create task: %v", err)
	}
	a, err := atoms.Create(ctx, AtomCreate{ProjectID: p.ID, Paths: []string{"a.go"}})
	if err != nil {
		t.Fatalf("Create atom: %v", err)
	}
	if _, err := changelog.Append(ctx, types.ChangelogParentAtom, a.ID, task.ID, "did a thing"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := atoms.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	entries, err := changelog.ListForParent(ctx, types.ChangelogParentAtom, a.ID)
	if err != nil {
		t.Fatalf("ListForParent: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("changelog entries = %v, want empty after atom delete", entries)
	}
}
