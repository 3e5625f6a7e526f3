package pipeline

import (
	"testing"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

func TestValidate_AcceptsDefaultConfig(t *testing.T) {
	if err := Validate(DefaultFileConfig()); err != nil {
		t.Fatalf("Validate(default) = %v, want nil", err)
	}
}

func TestValidate_RejectsUnsupportedVersion(t *testing.T) {
	fc := DefaultFileConfig()
	fc.Version = "2.0"
	if err := Validate(fc); err == nil {
		t.Fatal("expected unsupported version to be rejected")
	}
}

func TestValidate_RejectsMissingNewStart(t *testing.T) {
	fc := FileConfig{Version: "3.0", Pipelines: PipelinesSpec{
		Feature: []string{"ACTIVE", "CLOSED"},
		Task:    []string{"NEW", "ACTIVE", "CLOSED"},
	}}
	if err := Validate(fc); err == nil {
		t.Fatal("expected pipeline not starting with NEW to be rejected")
	}
}

func TestValidate_RejectsMissingClosedEnd(t *testing.T) {
	fc := FileConfig{Version: "3.0", Pipelines: PipelinesSpec{
		Feature: []string{"NEW", "ACTIVE"},
		Task:    []string{"NEW", "ACTIVE", "CLOSED"},
	}}
	if err := Validate(fc); err == nil {
		t.Fatal("expected pipeline not ending with CLOSED to be rejected")
	}
}

func TestValidate_RejectsOutOfOrderCatalogStates(t *testing.T) {
	fc := FileConfig{Version: "3.0", Pipelines: PipelinesSpec{
		Feature: []string{"NEW", "ACTIVE", "CLOSED"},
		Task:    []string{"NEW", "TO_BE_TESTED", "ACTIVE", "CLOSED"},
	}}
	if err := Validate(fc); err == nil {
		t.Fatal("expected out-of-catalog-order states to be rejected")
	}
}

func TestValidate_RequiresActive(t *testing.T) {
	fc := FileConfig{Version: "3.0", Pipelines: PipelinesSpec{
		Feature: []string{"NEW", "CLOSED"},
		Task:    []string{"NEW", "ACTIVE", "CLOSED"},
	}}
	if err := Validate(fc); err == nil {
		t.Fatal("expected pipeline missing ACTIVE to be rejected")
	}
}

func TestPipeline_NextAndPrev(t *testing.T) {
	cfg := FromFileConfig(FileConfig{Version: "3.0", Pipelines: PipelinesSpec{
		Feature: []string{"NEW", "ACTIVE", "CLOSED"},
		Task:    []string{"NEW", "ACTIVE", "CLOSED"},
	}})
	p := cfg.For(types.ContainerFeature)

	if got := p.Next(types.StatusNew); got != types.StatusActive {
		t.Errorf("Next(NEW) = %s, want ACTIVE", got)
	}
	if got := p.Next(types.StatusClosed); got != "" {
		t.Errorf("Next(CLOSED) = %s, want empty", got)
	}
	if got := p.Prev(types.StatusActive); got != types.StatusNew {
		t.Errorf("Prev(ACTIVE) = %s, want NEW", got)
	}
	if got := p.Prev(types.StatusNew); got != "" {
		t.Errorf("Prev(NEW) = %s, want empty", got)
	}
}

func TestPipeline_IsTerminal(t *testing.T) {
	cfg := FromFileConfig(DefaultFileConfig())
	p := cfg.For(types.ContainerTask)

	if !p.IsTerminal(types.StatusClosed) {
		t.Error("CLOSED should be terminal")
	}
	if !p.IsTerminal(ExitState) {
		t.Error("WILL_NOT_IMPLEMENT should be terminal")
	}
	if p.IsTerminal(types.StatusNew) {
		t.Error("NEW should not be terminal")
	}
}

func TestValidator_AllowedTransitions(t *testing.T) {
	cfg := FromFileConfig(FileConfig{Version: "3.0", Pipelines: PipelinesSpec{
		Feature: []string{"NEW", "ACTIVE", "CLOSED"},
		Task:    []string{"NEW", "ACTIVE", "CLOSED"},
	}})
	v := ValidatorFor(cfg, types.ContainerFeature)

	transitions := v.AllowedTransitions(types.StatusActive)
	want := map[types.Status]bool{types.StatusClosed: true, types.StatusNew: true, ExitState: true}
	if len(transitions) != len(want) {
		t.Fatalf("AllowedTransitions(ACTIVE) = %v, want 3 entries", transitions)
	}
	for _, s := range transitions {
		if !want[s] {
			t.Errorf("unexpected transition target %s", s)
		}
	}
}

func TestValidator_ProjectIsStateless(t *testing.T) {
	cfg := FromFileConfig(DefaultFileConfig())
	v := ValidatorFor(cfg, types.ContainerProject)

	if v.IsTerminal(types.StatusClosed) {
		t.Error("Project should never be considered terminal")
	}
	if v.AllowedTransitions(types.StatusNew) != nil {
		t.Error("Project should have no allowed transitions")
	}
}
