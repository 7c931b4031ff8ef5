// Package service implements the branch lifecycle façade: the single type
// a transport layer depends on. It lives apart from internal/branch (the
// Timespan data type) because it wires internal/commit, which itself
// depends on internal/branch — keeping Timespan in a lower package than
// the façade avoids an import cycle.
package service

import (
	"context"
	"fmt"

	"github.com/orian/branchvc/internal/branch"
	"github.com/orian/branchvc/internal/branchpath"
	"github.com/orian/branchvc/internal/brancherr"
	"github.com/orian/branchvc/internal/commit"
	"github.com/orian/branchvc/internal/repo"
	"github.com/orian/branchvc/internal/store"
)

// Service is the branch lifecycle façade. It wires together the
// read-only Repo and the lock-sensitive commit Coordinator.
type Service struct {
	store store.BranchStore
	repo  *repo.Repo
	co    *commit.Coordinator
	clock commit.Clock
}

// New wires a Service over s, using co for commit lifecycle operations
// and sharing co's Clock for the anchor-less case in Create and
// RecursiveCreate.
func New(s store.BranchStore, co *commit.Coordinator) *Service {
	return &Service{store: s, repo: repo.New(s), co: co, clock: co.Clock()}
}

// Create opens a new branch at path, rooted at the current head of
// path's parent. path must not already have a current timespan, and
// (for non-root paths) its parent must. The root branch MAIN is created
// with Base == Head == Start == the wall-clock moment of the call.
func (s *Service) Create(ctx context.Context, path string) (branch.Timespan, error) {
	if err := branchpath.Validate(path); err != nil {
		return branch.Timespan{}, brancherr.Wrap(brancherr.InvalidArgument, err, "invalid path %q", path)
	}

	exists, err := s.Exists(ctx, path)
	if err != nil {
		return branch.Timespan{}, err
	}
	if exists {
		return branch.Timespan{}, brancherr.New(brancherr.AlreadyExists, "branch %q already exists", path)
	}

	var at int64
	if branchpath.IsRoot(path) {
		at = s.clock.Now()
	} else {
		parentPath, _ := branchpath.Parent(path)
		parent, ok, err := s.repo.CurrentTimespan(ctx, parentPath)
		if err != nil {
			return branch.Timespan{}, err
		}
		if !ok {
			return branch.Timespan{}, brancherr.New(brancherr.InvariantViolation, "parent %q does not exist", parentPath)
		}
		at = parent.Head
	}

	ts := branch.Timespan{Path: path, Base: at, Head: at, Start: at}
	if err := s.store.Save(ctx, ts); err != nil {
		return branch.Timespan{}, fmt.Errorf("failed to create branch %q: %w", path, err)
	}
	return ts, nil
}

// RecursiveCreate creates path and every missing ancestor between it and
// the nearest existing one, all rooted at the same timepoint — the
// existing ancestor's current head, or (if even the root is missing) the
// wall-clock moment of this call — so the whole new chain is created
// atomically from the caller's point of view.
func (s *Service) RecursiveCreate(ctx context.Context, path string) (branch.Timespan, error) {
	if err := branchpath.Validate(path); err != nil {
		return branch.Timespan{}, brancherr.Wrap(brancherr.InvalidArgument, err, "invalid path %q", path)
	}

	var missing []string
	cursor := path
	for {
		exists, err := s.Exists(ctx, cursor)
		if err != nil {
			return branch.Timespan{}, err
		}
		if exists {
			break
		}
		missing = append(missing, cursor)

		if branchpath.IsRoot(cursor) {
			break
		}
		parent, ok := branchpath.Parent(cursor)
		if !ok {
			break
		}
		cursor = parent
	}

	if len(missing) == 0 {
		return s.FindBranchOrThrow(ctx, path)
	}

	nearestAncestor := cursor
	var at int64
	if exists, err := s.Exists(ctx, nearestAncestor); err != nil {
		return branch.Timespan{}, err
	} else if exists {
		anchor, ok, err := s.repo.CurrentTimespan(ctx, nearestAncestor)
		if err != nil {
			return branch.Timespan{}, err
		}
		if !ok {
			return branch.Timespan{}, brancherr.New(brancherr.InvariantViolation, "ancestor %q reported as existing but has no current timespan", nearestAncestor)
		}
		at = anchor.Head
	} else {
		at = s.clock.Now()
	}

	records := make([]branch.Timespan, 0, len(missing))
	for i := len(missing) - 1; i >= 0; i-- {
		records = append(records, branch.Timespan{Path: missing[i], Base: at, Head: at, Start: at})
	}
	if err := s.store.Save(ctx, records...); err != nil {
		return branch.Timespan{}, fmt.Errorf("failed to recursively create %q: %w", path, err)
	}

	return s.FindBranchOrThrow(ctx, path)
}

// Exists reports whether path currently has a live (End-absent) timespan.
func (s *Service) Exists(ctx context.Context, path string) (bool, error) {
	_, ok, err := s.repo.CurrentTimespan(ctx, path)
	return ok, err
}

// FindLatest returns the current timespan for path with its state
// computed, or (Timespan{}, false, nil) if path has no current timespan.
func (s *Service) FindLatest(ctx context.Context, path string) (branch.Timespan, bool, error) {
	return s.repo.FindLatest(ctx, path)
}

// FindBranchOrThrow is FindLatest, converting a missing branch into a
// NotFound error instead of a false ok.
func (s *Service) FindBranchOrThrow(ctx context.Context, path string) (branch.Timespan, error) {
	ts, ok, err := s.repo.FindLatest(ctx, path)
	if err != nil {
		return branch.Timespan{}, err
	}
	if !ok {
		return branch.Timespan{}, brancherr.New(brancherr.NotFound, "branch %q does not exist", path)
	}
	return ts, nil
}

// FindAtTimepointOrThrow returns the timespan for path active at t,
// erroring NotFound if none covers it.
func (s *Service) FindAtTimepointOrThrow(ctx context.Context, path string, t int64) (branch.Timespan, error) {
	return s.repo.FindAtTimepoint(ctx, path, t)
}

// FindAll returns every branch's current timespan.
func (s *Service) FindAll(ctx context.Context) ([]branch.Timespan, error) {
	return s.repo.FindAll(ctx)
}

// FindChildren returns the current timespans of path's direct children.
func (s *Service) FindChildren(ctx context.Context, path string) ([]branch.Timespan, error) {
	return s.repo.FindDirectChildren(ctx, path)
}

// Unlock force-clears path's lock without completing or rolling back any
// commit.
func (s *Service) Unlock(ctx context.Context, path string) error {
	return s.co.Unlock(ctx, path)
}

// AddCommitListener registers l to be notified before every commit
// completes.
func (s *Service) AddCommitListener(l commit.CommitListener) {
	s.co.AddCommitListener(l)
}

// OpenCommit opens an ordinary content commit on path.
func (s *Service) OpenCommit(ctx context.Context, path string) (*commit.Commit, error) {
	return s.co.OpenCommit(ctx, path)
}

// OpenRebaseCommit opens a rebase commit on path.
func (s *Service) OpenRebaseCommit(ctx context.Context, path string) (*commit.Commit, error) {
	return s.co.OpenRebaseCommit(ctx, path)
}

// OpenPromotionCommit opens a promotion commit on path, folding in
// sourcePath.
func (s *Service) OpenPromotionCommit(ctx context.Context, path, sourcePath string) (*commit.Commit, error) {
	return s.co.OpenPromotionCommit(ctx, path, sourcePath)
}

// Complete completes c, persisting its successor timespan.
func (s *Service) Complete(ctx context.Context, c *commit.Commit) (branch.Timespan, error) {
	return s.co.Complete(ctx, c)
}

// Rollback discards c without advancing path's head.
func (s *Service) Rollback(ctx context.Context, c *commit.Commit) error {
	return s.co.Rollback(ctx, c)
}

// DeleteAll removes every branch. Destructive; intended for test and
// admin use only.
func (s *Service) DeleteAll(ctx context.Context) error {
	return s.store.DeleteAll(ctx)
}
