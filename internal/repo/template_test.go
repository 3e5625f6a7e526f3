package repo

import (
	"context"
	"testing"

	"github.com/alioshr/task-orchestrator-sub000/internal/orcherr"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

func TestTemplateRepo_CreateAddSectionApply(t *testing.T) {
	store := newTestStore(t)
	templates := NewTemplateRepo(store)
	features := NewFeatureRepo(store)
	ctx := context.Background()

	tmpl, err := templates.Create(ctx, "Bug report", "standard bug sections")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tmpl.IsBuiltIn || tmpl.IsProtected || !tmpl.IsEnabled {
		t.Errorf("new template flags = %+v, want enabled, not built-in, not protected", tmpl)
	}

	if _, err := templates.AddSection(ctx, tmpl.ID, "Repro steps", "", "1. ...", types.FormatPlainText); err != nil {
		t.Fatalf("AddSection 1: %v", err)
	}
	if _, err := templates.AddSection(ctx, tmpl.ID, "Expected", "", "", types.FormatPlainText); err != nil {
		t.Fatalf("AddSection 2: %v", err)
	}

	sections, err := templates.ListSections(ctx, tmpl.ID)
	if err != nil {
		t.Fatalf("ListSections: %v", err)
	}
	if len(sections) != 2 || sections[0].Ordinal != 0 || sections[1].Ordinal != 1 {
		t.Errorf("sections = %+v, want two ordered 0,1", sections)
	}

	f, err := features.Create(ctx, FeatureCreate{Name: "Feat"})
	if err != nil {
		t.Fatalf("Create feature: %v", err)
	}
	applied, err := templates.Apply(ctx, tmpl.ID, types.EntityFeature, f.ID)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(applied) != 2 || applied[0].Title != "Repro steps" || applied[1].Title != "Expected" {
		t.Errorf("applied sections = %+v", applied)
	}
}

func TestTemplateRepo_AddSectionRefusesProtected(t *testing.T) {
	store := newTestStore(t)
	templates := NewTemplateRepo(store)
	ctx := context.Background()

	tmpl, err := templates.Create(ctx, "Builtin", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.ExecContext(ctx, `UPDATE templates SET is_protected = 1 WHERE id = ?`, tmpl.ID); err != nil {
		t.Fatalf("seed protected flag: %v", err)
	}

	if _, err := templates.AddSection(ctx, tmpl.ID, "New section", "", "", types.FormatPlainText); !orcherr.Is(err, orcherr.Validation) {
		t.Errorf("AddSection on protected template should VALIDATION, got %v", err)
	}
}

func TestTemplateRepo_ApplyRefusesDisabled(t *testing.T) {
	store := newTestStore(t)
	templates := NewTemplateRepo(store)
	features := NewFeatureRepo(store)
	ctx := context.Background()

	tmpl, err := templates.Create(ctx, "Disabled", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.ExecContext(ctx, `UPDATE templates SET is_enabled = 0 WHERE id = ?`, tmpl.ID); err != nil {
		t.Fatalf("seed disabled flag: %v", err)
	}
	f, err := features.Create(ctx, FeatureCreate{Name: "Feat"})
	if err != nil {
		t.Fatalf("Create feature: %v", err)
	}

	if _, err := templates.Apply(ctx, tmpl.ID, types.EntityFeature, f.ID); !orcherr.Is(err, orcherr.Validation) {
		t.Errorf("Apply on disabled template should VALIDATION, got %v", err)
	}
}
