// Package bootstrap implements the Startup Orchestrator (spec §4.8): resolve
// the storage home, ensure the default config and schema exist, resolve the
// locked pipeline config, and run the non-fatal orphan-state check.
//
// Grounded on the teacher's internal/config.Initialize candidate-location
// resolution style and its debug.Logf env-gated diagnostic printing
// (cmd/bd/... startup path), generalized from the teacher's multi-location
// config search down to this engine's single resolved home directory.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/alioshr/task-orchestrator-sub000/internal/obslog"
	"github.com/alioshr/task-orchestrator-sub000/internal/pipeline"
	"github.com/alioshr/task-orchestrator-sub000/internal/storage"
	"github.com/alioshr/task-orchestrator-sub000/internal/storage/sqlite"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

// HomeEnvVar is the environment variable that overrides the storage home.
const HomeEnvVar = "TASK_ORCHESTRATOR_HOME"

// DebugPathsEnvVar, when set to "1", makes Run print the resolved
// home/db/config paths to standard error.
const DebugPathsEnvVar = "TASK_ORCHESTRATOR_DEBUG_PATHS"

// dbFileName is the sqlite database's fixed name under the storage home.
const dbFileName = "tasks.db"

// OrphanWarning is one non-fatal finding from the orphan-state check: a
// status value present in entity rows that is neither part of the active
// pipeline nor the universal WILL_NOT_IMPLEMENT exit state.
type OrphanWarning struct {
	Entity types.ContainerType
	Status types.Status
	Count  int
}

// Result is everything a caller needs after a successful bootstrap: the
// open store, the resolved pipeline config, and any orphan-state warnings.
type Result struct {
	Store    *sqlite.Store
	Config   pipeline.Config
	Warnings []OrphanWarning
}

// ResolveHome implements spec §4.8 step 1: TASK_ORCHESTRATOR_HOME if set
// (absolute, ~/-expanded, or CWD-relative), else $HOME/.task-orchestrator.
func ResolveHome() (string, error) {
	if raw := os.Getenv(HomeEnvVar); raw != "" {
		return expandHome(raw)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve default storage home: %w", err)
	}
	return filepath.Join(home, ".task-orchestrator"), nil
}

func expandHome(raw string) (string, error) {
	if raw == "~" || strings.HasPrefix(raw, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand ~ in %s: %w", HomeEnvVar, err)
		}
		if raw == "~" {
			return home, nil
		}
		return filepath.Join(home, raw[2:]), nil
	}
	if filepath.IsAbs(raw) {
		return raw, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve cwd for relative %s: %w", HomeEnvVar, err)
	}
	return filepath.Join(cwd, raw), nil
}

// Run performs the full startup sequence of spec §4.8 and returns the open
// store plus the resolved pipeline config. Migration failures abort (spec
// §7: "Migration failures abort the process"); orphan-state findings are
// returned as warnings and never fail the call.
func Run(ctx context.Context) (*Result, error) {
	home, err := ResolveHome()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(home, 0o755); err != nil {
		return nil, fmt.Errorf("ensure storage home %s: %w", home, err)
	}

	obslog.Init(home)

	configPath := filepath.Join(home, pipeline.FileName)
	dbPath := filepath.Join(home, dbFileName)
	debugPaths(home, dbPath, configPath)

	if err := pipeline.WriteDefault(configPath); err != nil {
		return nil, fmt.Errorf("write default config: %w", err)
	}

	store, err := sqlite.Open(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	fileCfg, err := pipeline.Load(configPath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load config: %w", err)
	}

	cfg, err := pipeline.Resolve(ctx, store, fileCfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("resolve pipeline config: %w", err)
	}

	warnings, err := checkOrphanStates(ctx, store, cfg)
	if err != nil {
		// Spec §4.8 step 6: "Never throw from this step" — a failure to
		// even run the check is itself logged as a warning, not an abort.
		obslog.Warnf("orphan-state check failed: %v", err)
	}
	for _, w := range warnings {
		obslog.Warnf("orphan state: %d %s row(s) carry status %s, outside the active pipeline", w.Count, w.Entity, w.Status)
	}

	return &Result{Store: store, Config: cfg, Warnings: warnings}, nil
}

func debugPaths(home, dbPath, configPath string) {
	if os.Getenv(DebugPathsEnvVar) != "1" {
		return
	}
	fmt.Fprintf(os.Stderr, "task-orchestrator home: %s\n", home)
	fmt.Fprintf(os.Stderr, "task-orchestrator db: %s\n", dbPath)
	fmt.Fprintf(os.Stderr, "task-orchestrator config: %s\n", configPath)
}

// checkOrphanStates implements spec §4.8 step 6: list, per status-bearing
// table, any status value present that is neither a member of the active
// pipeline nor the universal WILL_NOT_IMPLEMENT exit state.
func checkOrphanStates(ctx context.Context, store storage.Store, cfg pipeline.Config) ([]OrphanWarning, error) {
	var warnings []OrphanWarning
	for _, entity := range []types.ContainerType{types.ContainerFeature, types.ContainerTask} {
		table := "features"
		if entity == types.ContainerTask {
			table = "tasks"
		}

		rows, err := store.QueryContext(ctx, fmt.Sprintf(`SELECT status, COUNT(*) FROM %s GROUP BY status`, table))
		if err != nil {
			return warnings, fmt.Errorf("scan %s statuses: %w", table, err)
		}

		pl := cfg.For(entity)
		for rows.Next() {
			var status types.Status
			var count int
			if err := rows.Scan(&status, &count); err != nil {
				rows.Close()
				return warnings, fmt.Errorf("scan %s status row: %w", table, err)
			}
			if pl.IsValidState(status) {
				continue
			}
			warnings = append(warnings, OrphanWarning{Entity: entity, Status: status, Count: count})
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return warnings, fmt.Errorf("iterate %s statuses: %w", table, err)
		}
		rows.Close()
	}
	return warnings, nil
}

// WatchConfig starts an fsnotify watcher on the config file under home and
// logs (never acts on) external edits after bootstrap, since the pipeline
// is locked into the database the moment any workflow data exists (spec
// §4.3). The returned watcher must be Closed by the caller; a watch-setup
// failure is logged and returns a nil watcher rather than failing startup.
func WatchConfig(home string) *fsnotify.Watcher {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		obslog.Warnf("config file watch disabled: %v", err)
		return nil
	}

	configPath := filepath.Join(home, pipeline.FileName)
	if err := watcher.Add(configPath); err != nil {
		obslog.Warnf("config file watch disabled: %v", err)
		watcher.Close()
		return nil
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					obslog.Warnf("pipeline is locked, ignoring external edit to %s", event.Name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				obslog.Warnf("config file watch error: %v", err)
			}
		}
	}()

	return watcher
}
