// Package repo implements the higher-level branch queries composed from
// store primitives: current version of a path, version at a timepoint, all
// current branches, and the descendants of a path (all transitive
// descendants via FindChildren, direct children only via
// FindDirectChildren).
package repo

import (
	"context"
	"fmt"

	"github.com/orian/branchvc/internal/branch"
	"github.com/orian/branchvc/internal/branchpath"
	"github.com/orian/branchvc/internal/branchstate"
	"github.com/orian/branchvc/internal/brancherr"
	"github.com/orian/branchvc/internal/store"
)

// DefaultFindAllPageSize is the reference paging bound for FindAll.
const DefaultFindAllPageSize = 10000

// Repo answers read queries against a BranchStore.
type Repo struct {
	store       store.BranchStore
	findAllPage int
}

// New returns a Repo over s, using DefaultFindAllPageSize for FindAll.
func New(s store.BranchStore) *Repo {
	return &Repo{store: s, findAllPage: DefaultFindAllPageSize}
}

// WithFindAllPageSize overrides the FindAll paging bound.
func (r *Repo) WithFindAllPageSize(n int) *Repo {
	r.findAllPage = n
	return r
}

// FindLatest returns the current timespan for path with its state
// computed, or (Timespan{}, false, nil) if path has no current timespan.
//
// It issues a single query matching either path or parent(path) with End
// absent, then partitions the results: the one matching path exactly is
// the branch (a duplicate is an invariant violation); the one matching the
// parent is used to compute state. For MAIN, state is fixed UP_TO_DATE.
func (r *Repo) FindLatest(ctx context.Context, path string) (branch.Timespan, bool, error) {
	isRoot := branchpath.IsRoot(path)

	var pathsQuery store.Query
	if isRoot {
		pathsQuery = store.Eq("path", path)
	} else {
		parent, _ := branchpath.Parent(path)
		pathsQuery = store.Should(store.Eq("path", path), store.Eq("path", parent))
	}

	results, err := r.store.QueryForList(ctx, store.Must(pathsQuery, store.Exists("end", false)))
	if err != nil {
		return branch.Timespan{}, false, fmt.Errorf("failed to query latest timespans for %q: %w", path, err)
	}

	var branchTS *branch.Timespan
	var parentTS *branch.Timespan
	var parentHead int64

	for i := range results {
		r2 := results[i]
		if r2.Path == path {
			if branchTS != nil {
				return branch.Timespan{}, false, brancherr.New(brancherr.InvariantViolation, "more than one current timespan for %q", path)
			}
			cp := r2
			branchTS = &cp
		} else {
			if parentTS != nil {
				return branch.Timespan{}, false, brancherr.New(brancherr.InvariantViolation, "more than one current timespan for parent of %q", path)
			}
			cp := r2
			parentTS = &cp
		}
	}

	if branchTS == nil {
		return branch.Timespan{}, false, nil
	}

	if !isRoot {
		if parentTS == nil {
			return branch.Timespan{}, false, brancherr.New(brancherr.InvariantViolation, "missing current timespan for parent of %q", path)
		}
		parentHead = parentTS.Head
	}

	out := *branchTS
	out.State = branchstate.Derive(out.Base, out.Head, parentHead, isRoot)
	return out, true, nil
}

// CurrentTimespan returns the raw current timespan for path (End absent),
// with no state computed and no parent-existence check. The commit
// coordinator uses this for open, where state is irrelevant and a missing
// parent is not yet an error.
func (r *Repo) CurrentTimespan(ctx context.Context, path string) (branch.Timespan, bool, error) {
	results, err := r.store.QueryForList(ctx, store.Must(store.Eq("path", path), store.Exists("end", false)))
	if err != nil {
		return branch.Timespan{}, false, fmt.Errorf("failed to query current timespan for %q: %w", path, err)
	}
	switch len(results) {
	case 0:
		return branch.Timespan{}, false, nil
	case 1:
		return results[0], true, nil
	default:
		return branch.Timespan{}, false, brancherr.New(brancherr.InvariantViolation, "more than one current timespan for %q", path)
	}
}

// FindAtTimepoint returns the unique timespan for path active at T: the
// one with Start <= T and (End absent or End > T).
func (r *Repo) FindAtTimepoint(ctx context.Context, path string, t int64) (branch.Timespan, error) {
	q := store.Must(
		store.Eq("path", path),
		store.RangeLE("start", t),
		store.Should(store.Exists("end", false), store.RangeGT("end", t)),
	)

	results, err := r.store.QueryForList(ctx, q)
	if err != nil {
		return branch.Timespan{}, fmt.Errorf("failed to query timespan for %q at %d: %w", path, t, err)
	}

	switch len(results) {
	case 0:
		return branch.Timespan{}, brancherr.New(brancherr.NotFound, "no timespan for %q at %d", path, t)
	case 1:
		return results[0], nil
	default:
		return branch.Timespan{}, brancherr.New(brancherr.InvariantViolation, "more than one timespan for %q at %d", path, t)
	}
}

// FindAll returns all current timespans, ordered by path, capped at the
// configured page size.
func (r *Repo) FindAll(ctx context.Context) ([]branch.Timespan, error) {
	q := store.Exists("end", false).Sort("path", false).Page(0, r.findAllPage)
	results, err := r.store.QueryForList(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query all current timespans: %w", err)
	}
	return results, nil
}

// FindChildren returns current timespans whose path has the literal prefix
// path + "/", ordered by path. This is prefix matching, not ancestor
// closure at a single depth: transitive descendants are included. Callers
// wanting only direct children should filter by segment count, e.g. with
// branchpath.Depth.
func (r *Repo) FindChildren(ctx context.Context, path string) ([]branch.Timespan, error) {
	q := store.Must(store.Prefix("path", path+"/"), store.Exists("end", false)).Sort("path", false)
	results, err := r.store.QueryForList(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query children of %q: %w", path, err)
	}
	return results, nil
}

// FindDirectChildren filters FindChildren's transitive-descendant result to
// only those one segment deeper than path — the additive, depth-filtered
// variant of findChildren.
func (r *Repo) FindDirectChildren(ctx context.Context, path string) ([]branch.Timespan, error) {
	all, err := r.FindChildren(ctx, path)
	if err != nil {
		return nil, err
	}

	wantDepth := branchpath.Depth(path) + 1
	var direct []branch.Timespan
	for _, t := range all {
		if branchpath.Depth(t.Path) == wantDepth {
			direct = append(direct, t)
		}
	}
	return direct, nil
}
