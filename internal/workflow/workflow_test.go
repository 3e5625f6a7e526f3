package workflow

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alioshr/task-orchestrator-sub000/internal/pipeline"
	"github.com/alioshr/task-orchestrator-sub000/internal/repo"
	"github.com/alioshr/task-orchestrator-sub000/internal/storage/sqlite"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

func newTestEngine(t *testing.T) (*Engine, *repo.FeatureRepo, *repo.TaskRepo) {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "orchestrator.db")

	store, err := sqlite.Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := pipeline.FromFileConfig(pipeline.FileConfig{
		Version: "3.0",
		Pipelines: pipeline.PipelinesSpec{
			Feature: []string{"NEW", "ACTIVE", "TO_BE_TESTED", "CLOSED"},
			Task:    []string{"NEW", "ACTIVE", "TO_BE_TESTED", "CLOSED"},
		},
	})

	return NewEngine(store, cfg), repo.NewFeatureRepo(store), repo.NewTaskRepo(store)
}

func mustCreateFeature(t *testing.T, features *repo.FeatureRepo) *types.Feature {
	t.Helper()
	f, err := features.Create(context.Background(), repo.FeatureCreate{Name: "f1"})
	if err != nil {
		t.Fatalf("create feature: %v", err)
	}
	return f
}

func mustCreateTask(t *testing.T, tasks *repo.TaskRepo, featureID string) *types.Task {
	t.Helper()
	task, err := tasks.Create(context.Background(), repo.TaskCreate{FeatureID: featureID, Name: "t1"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func TestAdvance_MovesToNextState(t *testing.T) {
	engine, features, _ := newTestEngine(t)
	f := mustCreateFeature(t, features)

	result, err := engine.Advance(context.Background(), types.ContainerFeature, f.ID, f.Version)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if result.From != types.StatusNew || result.To != types.StatusActive {
		t.Errorf("got %s->%s, want NEW->ACTIVE", result.From, result.To)
	}
}

func TestAdvance_RefusesWhenBlocked(t *testing.T) {
	engine, features, _ := newTestEngine(t)
	a := mustCreateFeature(t, features)
	b := mustCreateFeature(t, features)

	if _, err := engine.Block(context.Background(), types.ContainerFeature, b.ID, b.Version, []string{a.ID}, ""); err != nil {
		t.Fatalf("Block: %v", err)
	}

	if _, err := engine.Advance(context.Background(), types.ContainerFeature, b.ID, b.Version+1); err == nil {
		t.Fatal("expected Advance to fail while blocked")
	}
}

func TestAdvance_CompletionAutoUnblocksDependents(t *testing.T) {
	engine, features, _ := newTestEngine(t)
	blocker := mustCreateFeature(t, features)
	dependent := mustCreateFeature(t, features)

	if _, err := engine.Block(context.Background(), types.ContainerFeature, dependent.ID, dependent.Version, []string{blocker.ID}, ""); err != nil {
		t.Fatalf("Block: %v", err)
	}

	// Drive blocker to CLOSED (terminal via advance chain: NEW->ACTIVE->TO_BE_TESTED->CLOSED).
	cur := blocker
	for cur.Status != types.StatusClosed {
		result, err := engine.Advance(context.Background(), types.ContainerFeature, cur.ID, cur.Version)
		if err != nil {
			t.Fatalf("Advance blocker: %v", err)
		}
		refreshed, err := features.Get(context.Background(), cur.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		cur = refreshed
		if result.To == types.StatusClosed {
			if len(result.UnblockedEntities) != 1 || result.UnblockedEntities[0] != dependent.ID {
				t.Errorf("UnblockedEntities = %v, want [%s]", result.UnblockedEntities, dependent.ID)
			}
		}
	}

	refreshedDependent, err := features.Get(context.Background(), dependent.ID)
	if err != nil {
		t.Fatalf("Get dependent: %v", err)
	}
	if len(refreshedDependent.BlockedBy) != 0 {
		t.Errorf("dependent still blocked: %v", refreshedDependent.BlockedBy)
	}
}

func TestRevert_MovesToPreviousState(t *testing.T) {
	engine, features, _ := newTestEngine(t)
	f := mustCreateFeature(t, features)

	advanced, err := engine.Advance(context.Background(), types.ContainerFeature, f.ID, f.Version)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}

	reverted, err := engine.Revert(context.Background(), types.ContainerFeature, f.ID, f.Version+1)
	if err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if reverted.From != advanced.To || reverted.To != types.StatusNew {
		t.Errorf("got %s->%s, want %s->NEW", reverted.From, reverted.To, advanced.To)
	}
}

func TestRevert_RefusesFromFirstState(t *testing.T) {
	engine, features, _ := newTestEngine(t)
	f := mustCreateFeature(t, features)

	if _, err := engine.Revert(context.Background(), types.ContainerFeature, f.ID, f.Version); err == nil {
		t.Fatal("expected Revert to fail from the first pipeline state")
	}
}

func TestTerminate_BypassesBlockerGate(t *testing.T) {
	engine, features, _ := newTestEngine(t)
	a := mustCreateFeature(t, features)
	b := mustCreateFeature(t, features)

	if _, err := engine.Block(context.Background(), types.ContainerFeature, b.ID, b.Version, []string{a.ID}, ""); err != nil {
		t.Fatalf("Block: %v", err)
	}

	result, err := engine.Terminate(context.Background(), types.ContainerFeature, b.ID, b.Version+1)
	if err != nil {
		t.Fatalf("Terminate while blocked should succeed: %v", err)
	}
	if result.To != types.StatusWillNotImplement {
		t.Errorf("To = %s, want WILL_NOT_IMPLEMENT", result.To)
	}
}

func TestTerminate_ReportsDependentsWithoutUnblocking(t *testing.T) {
	engine, features, _ := newTestEngine(t)
	blocker := mustCreateFeature(t, features)
	dependent := mustCreateFeature(t, features)

	if _, err := engine.Block(context.Background(), types.ContainerFeature, dependent.ID, dependent.Version, []string{blocker.ID}, ""); err != nil {
		t.Fatalf("Block: %v", err)
	}

	result, err := engine.Terminate(context.Background(), types.ContainerFeature, blocker.ID, blocker.Version)
	if err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if len(result.AffectedDependents) != 1 || result.AffectedDependents[0] != dependent.ID {
		t.Errorf("AffectedDependents = %v, want [%s]", result.AffectedDependents, dependent.ID)
	}

	refreshed, err := features.Get(context.Background(), dependent.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(refreshed.BlockedBy) != 1 {
		t.Errorf("dependent was unblocked, want it to remain blocked: %v", refreshed.BlockedBy)
	}
}

func TestTaskAdvance_CascadesParentFeatureFromNewToActive(t *testing.T) {
	engine, features, tasks := newTestEngine(t)
	f := mustCreateFeature(t, features)
	task := mustCreateTask(t, tasks, f.ID)

	result, err := engine.Advance(context.Background(), types.ContainerTask, task.ID, task.Version)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if result.FeatureTransition == "" {
		t.Error("expected a FeatureTransition cascade message")
	}

	refreshedFeature, err := features.Get(context.Background(), f.ID)
	if err != nil {
		t.Fatalf("Get feature: %v", err)
	}
	if refreshedFeature.Status != types.StatusActive {
		t.Errorf("feature status = %s, want ACTIVE", refreshedFeature.Status)
	}
}

func TestBlockUnblock_Idempotent(t *testing.T) {
	engine, features, _ := newTestEngine(t)
	a := mustCreateFeature(t, features)
	b := mustCreateFeature(t, features)

	if _, err := engine.Block(context.Background(), types.ContainerFeature, b.ID, b.Version, []string{a.ID}, ""); err != nil {
		t.Fatalf("Block: %v", err)
	}
	if _, err := engine.Block(context.Background(), types.ContainerFeature, b.ID, b.Version+1, []string{a.ID}, ""); err != nil {
		t.Fatalf("second Block: %v", err)
	}

	refreshed, err := features.Get(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(refreshed.BlockedBy) != 1 {
		t.Errorf("BlockedBy = %v, want exactly one entry (idempotent block)", refreshed.BlockedBy)
	}

	if _, err := engine.Unblock(context.Background(), types.ContainerFeature, b.ID, refreshed.Version, []string{a.ID}); err != nil {
		t.Fatalf("Unblock: %v", err)
	}
	if _, err := engine.Unblock(context.Background(), types.ContainerFeature, b.ID, refreshed.Version+1, []string{a.ID}); err != nil {
		t.Fatalf("second Unblock: %v", err)
	}

	refreshed, err = features.Get(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(refreshed.BlockedBy) != 0 {
		t.Errorf("BlockedBy = %v, want empty after unblock", refreshed.BlockedBy)
	}
}

func TestBlock_NoOpRequiresReason(t *testing.T) {
	engine, features, _ := newTestEngine(t)
	f := mustCreateFeature(t, features)

	if _, err := engine.Block(context.Background(), types.ContainerFeature, f.ID, f.Version, []string{types.NoOpBlocker}, ""); err == nil {
		t.Fatal("expected NO_OP block without a reason to fail")
	}

	if _, err := engine.Block(context.Background(), types.ContainerFeature, f.ID, f.Version, []string{types.NoOpBlocker}, "waiting on external vendor"); err != nil {
		t.Fatalf("Block with reason: %v", err)
	}

	refreshed, err := features.Get(context.Background(), f.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if refreshed.BlockedReason != "waiting on external vendor" {
		t.Errorf("BlockedReason = %q", refreshed.BlockedReason)
	}
}
