// Package graph implements the Graph Lookup component of spec §4.7:
// resolving file-path lists to matching Atoms via glob patterns.
package graph

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/alioshr/task-orchestrator-sub000/internal/globmatch"
	"github.com/alioshr/task-orchestrator-sub000/internal/repo"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

// AtomMatch is one Atom that matched at least one requested input path,
// together with the subset of input paths it matched.
type AtomMatch struct {
	Atom         types.Atom
	MatchedPaths []string
}

// Result is the outcome of FindAtomsByPaths: matched atoms plus any input
// paths that matched nothing.
type Result struct {
	Atoms          []AtomMatch
	UnmatchedPaths []string
}

// Lookup resolves atom-by-path queries for one project's atom set.
type Lookup struct {
	atoms *repo.AtomRepo
}

// NewLookup builds a Lookup over atoms.
func NewLookup(atoms *repo.AtomRepo) *Lookup { return &Lookup{atoms: atoms} }

// FindAtomsByPaths loads every Atom for projectID and tests each input
// path against every atom's pattern list. Matching runs one goroutine per
// atom via errgroup, since atom counts are expected to be small (spec
// §4.7) but pattern lists can still be tested independently and in
// parallel without any shared mutable state beyond the result collection,
// which is guarded by a mutex.
func (l *Lookup) FindAtomsByPaths(ctx context.Context, projectID string, paths []string) (*Result, error) {
	atoms, err := l.atoms.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	matchedPathSet := make(map[string]bool, len(paths))
	var matches []AtomMatch

	g, _ := errgroup.WithContext(ctx)
	for _, atom := range atoms {
		atom := atom
		g.Go(func() error {
			var matchedForAtom []string
			for _, p := range paths {
				if globmatch.MatchAny(atom.Paths, p) {
					matchedForAtom = append(matchedForAtom, p)
				}
			}
			if len(matchedForAtom) == 0 {
				return nil
			}

			mu.Lock()
			matches = append(matches, AtomMatch{Atom: atom, MatchedPaths: matchedForAtom})
			for _, p := range matchedForAtom {
				matchedPathSet[p] = true
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var unmatched []string
	for _, p := range paths {
		if !matchedPathSet[p] {
			unmatched = append(unmatched, p)
		}
	}

	return &Result{Atoms: matches, UnmatchedPaths: unmatched}, nil
}
