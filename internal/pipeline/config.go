package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

// FileName is the config file's fixed name under the storage home.
const FileName = "config.yaml"

// SupportedVersions are the config "version" values accepted at load time.
var SupportedVersions = map[string]bool{"3.0": true, "3": true}

// FileConfig is the on-disk shape of config.yaml (spec §4.3, §6).
type FileConfig struct {
	Version   string        `yaml:"version"`
	Pipelines PipelinesSpec `yaml:"pipelines"`
}

// PipelinesSpec holds the user-chosen pipeline subset per entity kind.
type PipelinesSpec struct {
	Feature []string `yaml:"feature"`
	Task    []string `yaml:"task"`
}

// DefaultFileConfig is written to disk when no config.yaml exists yet. It
// uses the minimum required subset for both pipelines.
func DefaultFileConfig() FileConfig {
	return FileConfig{
		Version: "3.0",
		Pipelines: PipelinesSpec{
			Feature: []string{"NEW", "ACTIVE", "CLOSED"},
			Task:    []string{"NEW", "ACTIVE", "CLOSED"},
		},
	}
}

const defaultConfigHeader = `# task-orchestrator pipeline configuration
#
# version must be "3.0" (or the bare "3").
# pipelines.feature and pipelines.task must each:
#   - start with NEW
#   - contain ACTIVE
#   - end with CLOSED
#   - list states in catalog order: NEW, ACTIVE, TO_BE_TESTED (task only),
#     READY_TO_PROD, CLOSED
#
# Once any project, feature or task exists, this file is still read and
# validated at startup, but its pipelines are ignored — the pipeline that
# was active at that point is locked into the database.
`

// WriteDefault writes an annotated default config.yaml at path if absent.
// No-op if a file already exists there.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	body, err := yaml.Marshal(DefaultFileConfig())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	return os.WriteFile(path, append([]byte(defaultConfigHeader), body...), 0o644)
}

// Load reads and validates config.yaml at path. A missing file is an error
// here; bootstrap runs WriteDefault first so the file exists.
func Load(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read config file: %w", err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return FileConfig{}, fmt.Errorf("parse config file: %w", err)
	}

	if err := Validate(fc); err != nil {
		return FileConfig{}, err
	}
	return fc, nil
}

// Validate checks a FileConfig against the catalog-subset rules in spec
// §4.3: version recognized, and each pipeline starts with NEW, contains
// ACTIVE, ends with CLOSED, preserves catalog order, and contains only
// catalog values.
func Validate(fc FileConfig) error {
	if !SupportedVersions[fc.Version] {
		return fmt.Errorf("unsupported config version %q", fc.Version)
	}
	if err := validatePipeline(types.ContainerFeature, fc.Pipelines.Feature); err != nil {
		return fmt.Errorf("pipelines.feature: %w", err)
	}
	if err := validatePipeline(types.ContainerTask, fc.Pipelines.Task); err != nil {
		return fmt.Errorf("pipelines.task: %w", err)
	}
	return nil
}

func validatePipeline(entity types.ContainerType, raw []string) error {
	if len(raw) == 0 {
		return fmt.Errorf("must not be empty")
	}
	if raw[0] != string(types.StatusNew) {
		return fmt.Errorf("must start with NEW")
	}
	if raw[len(raw)-1] != string(types.StatusClosed) {
		return fmt.Errorf("must end with CLOSED")
	}

	catalog := catalogFor(entity)
	hasActive := false
	lastIdx := -1
	for _, s := range raw {
		status := types.Status(s)
		idx := catalogIndex(catalog, status)
		if idx < 0 {
			return fmt.Errorf("state %q is not a member of the catalog", s)
		}
		if idx <= lastIdx {
			return fmt.Errorf("state %q is out of catalog order", s)
		}
		lastIdx = idx
		if status == types.StatusActive {
			hasActive = true
		}
	}
	if !hasActive {
		return fmt.Errorf("must contain ACTIVE")
	}
	return nil
}
