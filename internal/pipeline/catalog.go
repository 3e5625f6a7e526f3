// Package pipeline defines the closed state catalog, the user-configurable
// pipeline subset, and the lock row that freezes an active pipeline once
// workflow data exists. Grounded on the teacher's internal/config package for
// the load/validate/persist shape, generalized from viper-backed CLI flags
// (no CLI layer exists in this scope) to a single fixed-path YAML file parsed
// with gopkg.in/yaml.v3 — see SPEC_FULL.md's AMBIENT STACK section for the
// full justification of dropping viper here.
package pipeline

import "github.com/alioshr/task-orchestrator-sub000/internal/types"

// Catalog is the fixed, code-level universe of pipeline states. No user
// configuration can add or remove from this set; a pipeline is always a
// catalog subset.
var Catalog = struct {
	Feature []types.Status
	Task    []types.Status
}{
	Feature: []types.Status{types.StatusNew, types.StatusActive, types.StatusReadyToProd, types.StatusClosed},
	Task:    []types.Status{types.StatusNew, types.StatusActive, types.StatusToBeTested, types.StatusReadyToProd, types.StatusClosed},
}

// ExitState is the universal exit sink, reachable from any non-terminal
// state via terminate. Never listed inside a pipeline itself.
const ExitState = types.StatusWillNotImplement

func catalogFor(entity types.ContainerType) []types.Status {
	switch entity {
	case types.ContainerTask:
		return Catalog.Task
	default:
		return Catalog.Feature
	}
}

func catalogIndex(catalog []types.Status, s types.Status) int {
	for i, c := range catalog {
		if c == s {
			return i
		}
	}
	return -1
}
