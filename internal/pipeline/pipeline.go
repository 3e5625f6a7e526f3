package pipeline

import (
	"fmt"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

// Pipeline is the resolved, immutable ordered state list for one entity
// kind, plus the catalog it was validated against. Built once at bootstrap
// and held for the life of the process (spec §5: "cached in process memory
// after bootstrap and are immutable for the life of the process").
type Pipeline struct {
	entity types.ContainerType
	states []types.Status
	index  map[types.Status]int
}

func newPipeline(entity types.ContainerType, raw []string) Pipeline {
	states := make([]types.Status, len(raw))
	index := make(map[types.Status]int, len(raw))
	for i, s := range raw {
		status := types.Status(s)
		states[i] = status
		index[status] = i
	}
	return Pipeline{entity: entity, states: states, index: index}
}

// States returns the ordered pipeline states.
func (p Pipeline) States() []types.Status { return p.states }

// Next returns the state following cur, or "" if cur is the last state or
// unknown.
func (p Pipeline) Next(cur types.Status) types.Status {
	i, ok := p.index[cur]
	if !ok || i+1 >= len(p.states) {
		return ""
	}
	return p.states[i+1]
}

// Prev returns the state preceding cur, or "" if cur is the first state or
// unknown.
func (p Pipeline) Prev(cur types.Status) types.Status {
	i, ok := p.index[cur]
	if !ok || i == 0 {
		return ""
	}
	return p.states[i-1]
}

// IsTerminal reports whether s is CLOSED or WILL_NOT_IMPLEMENT.
func (p Pipeline) IsTerminal(s types.Status) bool {
	return s == types.StatusClosed || s == ExitState
}

// IsValidState reports whether s is a member of this pipeline or the
// universal exit state.
func (p Pipeline) IsValidState(s types.Status) bool {
	if s == ExitState {
		return true
	}
	_, ok := p.index[s]
	return ok
}

// Position returns a human "k of N" position string, or "" if s is not a
// pipeline member.
func (p Pipeline) Position(s types.Status) string {
	i, ok := p.index[s]
	if !ok {
		return ""
	}
	return fmt.Sprintf("%d of %d", i+1, len(p.states))
}

// Config is the resolved pair of pipelines active for the process.
type Config struct {
	Feature Pipeline
	Task    Pipeline
}

// For returns the active Pipeline for the given entity kind. Projects are
// stateless (spec §4.4) and have no pipeline; callers must not call this
// with ContainerProject.
func (c Config) For(entity types.ContainerType) Pipeline {
	if entity == types.ContainerTask {
		return c.Task
	}
	return c.Feature
}

// FromFileConfig builds a Config from an already-validated FileConfig.
func FromFileConfig(fc FileConfig) Config {
	return Config{
		Feature: newPipeline(types.ContainerFeature, fc.Pipelines.Feature),
		Task:    newPipeline(types.ContainerTask, fc.Pipelines.Task),
	}
}

// ToFileConfig renders a Config back to its YAML-serializable shape, with
// version "3.0".
func (c Config) ToFileConfig() FileConfig {
	feature := make([]string, len(c.Feature.states))
	for i, s := range c.Feature.states {
		feature[i] = string(s)
	}
	task := make([]string, len(c.Task.states))
	for i, s := range c.Task.states {
		task[i] = string(s)
	}
	return FileConfig{
		Version:   "3.0",
		Pipelines: PipelinesSpec{Feature: feature, Task: task},
	}
}
