package pipeline

import "github.com/alioshr/task-orchestrator-sub000/internal/types"

// Validator answers pure questions about legal states/transitions for one
// container type, backed by the active (locked) Config (spec §4.4).
// Projects are stateless: every question about them answers the "no state
// machine" case.
type Validator struct {
	cfg    Config
	entity types.ContainerType
}

// ValidatorFor builds a Validator scoped to one container type.
func ValidatorFor(cfg Config, entity types.ContainerType) Validator {
	return Validator{cfg: cfg, entity: entity}
}

// IsValidState reports whether s is legal for this container type.
func (v Validator) IsValidState(s types.Status) bool {
	if v.entity == types.ContainerProject {
		return true
	}
	return v.cfg.For(v.entity).IsValidState(s)
}

// IsTerminal reports whether s is a terminal state for this container type.
func (v Validator) IsTerminal(s types.Status) bool {
	if v.entity == types.ContainerProject {
		return false
	}
	return v.cfg.For(v.entity).IsTerminal(s)
}

// AllowedTransitions returns [next, prev, WILL_NOT_IMPLEMENT] (dropping
// undefined entries) when cur is non-terminal and valid; empty otherwise.
// Always empty for Project.
func (v Validator) AllowedTransitions(cur types.Status) []types.Status {
	if v.entity == types.ContainerProject {
		return nil
	}
	p := v.cfg.For(v.entity)
	if !p.IsValidState(cur) || p.IsTerminal(cur) {
		return nil
	}

	var out []types.Status
	if next := p.Next(cur); next != "" {
		out = append(out, next)
	}
	if prev := p.Prev(cur); prev != "" {
		out = append(out, prev)
	}
	out = append(out, ExitState)
	return out
}

// IsValidTransition reports whether to is reachable from from in one step.
// Always false for Project.
func (v Validator) IsValidTransition(from, to types.Status) bool {
	if v.entity == types.ContainerProject {
		return false
	}
	for _, s := range v.AllowedTransitions(from) {
		if s == to {
			return true
		}
	}
	return false
}
