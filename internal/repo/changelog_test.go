package repo

import (
	"context"
	"testing"

	"github.com/alioshr/task-orchestrator-sub000/internal/orcherr"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

func TestChangelogRepo_AppendAndList(t *testing.T) {
	store := newTestStore(t)
	projects := NewProjectRepo(store)
	features := NewFeatureRepo(store)
	tasks := NewTaskRepo(store)
	molecules := NewMoleculeRepo(store)
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
	m, err := molecules.Create(ctx, p.ID, "Mol", "", nil)
	if err != nil {
		t.Fatalf("Create molecule: %v", err)
	}

	if _, err := changelog.Append(ctx, types.ChangelogParentMolecule, m.ID, task.ID, "first change"); err != nil {
		t.Fatalf("Append 1: %v", err)
	}
	if _, err := changelog.Append(ctx, types.ChangelogParentMolecule, m.ID, task.ID, "second change"); err != nil {
		t.Fatalf("Append 2: %v", err)
	}

	entries, err := changelog.ListForParent(ctx, types.ChangelogParentMolecule, m.ID)
	if err != nil {
		t.Fatalf("ListForParent: %v", err)
	}
	if len(entries) != 2 || entries[0].Summary != "first change" || entries[1].Summary != "second change" {
		t.Errorf("entries = %+v, want oldest-first order", entries)
	}
}

func TestChangelogRepo_AppendRefusesUnknownParent(t *testing.T) {
	store := newTestStore(t)
	features := NewFeatureRepo(store)
	tasks := NewTaskRepo(store)
	changelog := NewChangelogRepo(store)
	ctx := context.Background()

	f, err := features.Create(ctx, FeatureCreate{Name: "Feat"})
	if err != nil {
		t.Fatalf("Create feature: %v", err)
	}
	task, err := tasks.Create(ctx, TaskCreate{FeatureID: f.ID, Name: "Task"})
	if err != nil {
		t.Fatalf("Create task: %v", err)
	}

	if _, err := changelog.Append(ctx, types.ChangelogParentAtom, "missing-atom", task.ID, "summary"); !orcherr.Is(err, orcherr.NotFound) {
		t.Errorf("unknown parent should NOT_FOUND, got %v", err)
	}
}

func TestChangelogRepo_AppendRefusesUnknownTask(t *testing.T) {
	store := newTestStore(t)
	projects := NewProjectRepo(store)
	molecules := NewMoleculeRepo(store)
	changelog := NewChangelogRepo(store)
	ctx := context.Background()

	p, err := projects.Create(ctx, "Proj", "", "", nil)
	if err != nil {
		t.Fatalf("Create project: %v", err)
	}
	m, err := molecules.Create(ctx, p.ID, "Mol", "", nil)
	if err != nil {
		t.Fatalf("Create molecule: %v", err)
	}

	if _, err := changelog.Append(ctx, types.ChangelogParentMolecule, m.ID, "missing-task", "summary"); !orcherr.Is(err, orcherr.NotFound) {
		t.Errorf("unknown task should NOT_FOUND, got %v", err)
	}
}
