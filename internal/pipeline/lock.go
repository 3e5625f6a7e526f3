package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alioshr/task-orchestrator-sub000/internal/storage"
)

// Resolve implements the lock semantics of spec §4.3: given a file config
// already read and validated by Load, either seed, overwrite, or defer to the existing
// _pipeline_config singleton row depending on whether workflow data and a
// lock row already exist.
func Resolve(ctx context.Context, store storage.Store, fileCfg FileConfig) (Config, error) {
	hasData, err := hasWorkflowData(ctx, store)
	if err != nil {
		return Config{}, fmt.Errorf("check for existing workflow data: %w", err)
	}

	lockCfg, lockExists, err := readLockRow(ctx, store)
	if err != nil {
		return Config{}, fmt.Errorf("read pipeline lock row: %w", err)
	}

	switch {
	case !hasData:
		// No workflow data yet: the file governs, overwrite the lock row.
		if err := writeLockRow(ctx, store, fileCfg); err != nil {
			return Config{}, fmt.Errorf("seed pipeline lock row: %w", err)
		}
		return FromFileConfig(fileCfg), nil

	case lockExists:
		// Data exists and a lock row exists: the lock row wins, file is
		// ignored (this is the frozen-pipeline case).
		return FromFileConfig(lockCfg), nil

	default:
		// Data exists but no lock row (legacy database): seed the lock row
		// from the file so it becomes the frozen pipeline going forward.
		if err := writeLockRow(ctx, store, fileCfg); err != nil {
			return Config{}, fmt.Errorf("seed legacy pipeline lock row: %w", err)
		}
		return FromFileConfig(fileCfg), nil
	}
}

func hasWorkflowData(ctx context.Context, store storage.Store) (bool, error) {
	for _, table := range []string{"projects", "features", "tasks"} {
		var count int
		row := store.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table))
		if err := row.Scan(&count); err != nil {
			return false, err
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}

func readLockRow(ctx context.Context, store storage.Store) (FileConfig, bool, error) {
	var raw string
	row := store.QueryRowContext(ctx, `SELECT config_json FROM _pipeline_config WHERE id = 1`)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}

	var fc FileConfig
	if err := json.Unmarshal([]byte(raw), &fc); err != nil {
		return FileConfig{}, false, fmt.Errorf("decode locked pipeline config: %w", err)
	}
	return fc, true, nil
}

func writeLockRow(ctx context.Context, store storage.Store, fc FileConfig) error {
	raw, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("encode pipeline config: %w", err)
	}
	_, err = store.ExecContext(ctx, `
		INSERT INTO _pipeline_config (id, config_json, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET config_json = excluded.config_json, updated_at = excluded.updated_at
	`, string(raw), store.Now())
	return err
}
