package commit

import (
	"context"
	"fmt"
	"sync"

	"github.com/orian/branchvc/internal/branch"
	"github.com/orian/branchvc/internal/branchpath"
	"github.com/orian/branchvc/internal/brancherr"
	"github.com/orian/branchvc/internal/entitystore"
	"github.com/orian/branchvc/internal/repo"
	"github.com/orian/branchvc/internal/store"
)

// Coordinator serializes lock-sensitive operations on branches: opening a
// commit, completing one, rolling one back, and administrative unlock, all
// go through the same process-wide mutex. Plain reads (FindLatest and
// friends) bypass it entirely.
type Coordinator struct {
	mu sync.Mutex

	store    store.BranchStore
	repo     *repo.Repo
	entities entitystore.Store
	clock    Clock

	listeners []CommitListener
}

// NewCoordinator wires a Coordinator over s, using entities for
// rollback's entity-version cleanup and clock for timepoint assignment.
func NewCoordinator(s store.BranchStore, entities entitystore.Store, clock Clock) *Coordinator {
	return &Coordinator{
		store:    s,
		repo:     repo.New(s),
		entities: entities,
		clock:    clock,
	}
}

// Clock returns the Clock this Coordinator assigns commit timepoints
// from, so callers outside the commit lifecycle (branch creation) can
// share the same timepoint source instead of reaching for wall-clock
// time directly.
func (co *Coordinator) Clock() Clock {
	return co.clock
}

// AddCommitListener registers l to be notified before every commit
// completes, unless an equal (by ==) listener is already registered.
// Listener implementations must be comparable — concretely, pointer
// receivers on a named type — so registration is idempotent.
func (co *Coordinator) AddCommitListener(l CommitListener) {
	co.mu.Lock()
	defer co.mu.Unlock()
	for _, existing := range co.listeners {
		if existing == l {
			return
		}
	}
	co.listeners = append(co.listeners, l)
}

// nextTimepoint returns a value strictly greater than head, using the
// clock's current reading if that already clears head, and head+1
// otherwise — so two commits opened back to back never collide even when
// the clock's resolution is coarser than the time between them.
func (co *Coordinator) nextTimepoint(head int64) int64 {
	now := co.clock.Now()
	if now > head {
		return now
	}
	return head + 1
}

// openLocked performs the shared half of every open call: look up the
// current timespan, reject if absent or already locked, assign a
// timepoint, flip the lock, and persist it. Callers must hold co.mu.
func (co *Coordinator) openLocked(ctx context.Context, path string, typ Type) (*Commit, error) {
	current, ok, err := co.repo.CurrentTimespan(ctx, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, brancherr.New(brancherr.NotFound, "no current timespan for %q", path)
	}
	if current.Locked {
		return nil, brancherr.New(brancherr.ConflictLocked, "branch %q is already locked", path)
	}

	timepoint := co.nextTimepoint(current.Head)

	locked := current.Clone()
	locked.Locked = true
	if err := co.store.Save(ctx, locked); err != nil {
		return nil, fmt.Errorf("failed to lock branch %q: %w", path, err)
	}

	return &Commit{
		branch:    locked,
		typ:       typ,
		timepoint: timepoint,
	}, nil
}

// OpenCommit opens an ordinary content commit on path.
func (co *Coordinator) OpenCommit(ctx context.Context, path string) (*Commit, error) {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.openLocked(ctx, path, Content)
}

// OpenRebaseCommit opens a rebase commit on path: the branch's Base is
// reassigned to its parent's head as of this commit's timepoint. Invalid
// on the root branch, which has no parent to rebase onto.
func (co *Coordinator) OpenRebaseCommit(ctx context.Context, path string) (*Commit, error) {
	co.mu.Lock()
	defer co.mu.Unlock()

	if branchpath.IsRoot(path) {
		return nil, brancherr.New(brancherr.InvalidArgument, "cannot rebase the root branch")
	}

	c, err := co.openLocked(ctx, path, Rebase)
	if err != nil {
		return nil, err
	}

	parentPath, _ := branchpath.Parent(path)
	parentTS, err := co.repo.FindAtTimepoint(ctx, parentPath, c.timepoint)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve parent %q for rebase of %q: %w", parentPath, path, err)
	}

	previousBase := c.branch.Base
	c.rebasePreviousBase = &previousBase
	c.branch.Base = parentTS.Head

	return c, nil
}

// OpenPromotionCommit opens a promotion commit on path, folding the
// content of sourcePath — which must be a strict descendant of path —
// into it.
func (co *Coordinator) OpenPromotionCommit(ctx context.Context, path, sourcePath string) (*Commit, error) {
	co.mu.Lock()
	defer co.mu.Unlock()

	if !branchpath.IsDescendant(sourcePath, path) {
		return nil, brancherr.New(brancherr.InvalidArgument, "%q is not a descendant of %q", sourcePath, path)
	}

	c, err := co.openLocked(ctx, path, Promotion)
	if err != nil {
		return nil, err
	}
	c.sourcePath = sourcePath
	return c, nil
}

// Complete fires every registered listener, then persists the commit:
// the locked timespan is closed and a new current timespan is saved. For
// a Promotion commit, the source branch is also closed and reset to an
// empty branch rooted at the commit's timepoint. Complete consumes c; a
// second call, or a call after Rollback, returns an error without doing
// anything.
//
// If a listener returns an error, completion is aborted and c remains
// open: the caller is responsible for calling Rollback.
func (co *Coordinator) Complete(ctx context.Context, c *Commit) (branch.Timespan, error) {
	c.mu.Lock()
	consumed := c.done
	c.mu.Unlock()
	if consumed {
		return branch.Timespan{}, brancherr.New(brancherr.InvalidArgument, "commit on %q was already completed or rolled back", c.Path())
	}

	for _, l := range co.listenersSnapshot() {
		if err := l.PreCommitCompletion(ctx, c); err != nil {
			return branch.Timespan{}, brancherr.Wrap(brancherr.ListenerAborted, err, "pre-completion listener rejected commit on %q", c.Path())
		}
	}

	co.mu.Lock()
	defer co.mu.Unlock()

	if !c.markDone() {
		return branch.Timespan{}, brancherr.New(brancherr.InvalidArgument, "commit on %q was already completed or rolled back", c.Path())
	}

	closedOld := c.branch.Clone()
	endAt := c.timepoint
	closedOld.End = &endAt
	closedOld.Locked = false

	versionsReplaced := append([]string(nil), closedOld.VersionsReplaced...)
	versionsReplaced = append(versionsReplaced, c.entityVersionsReplaced...)

	successor := branch.Timespan{
		Path:             c.branch.Path,
		Base:             c.branch.Base,
		Head:             c.timepoint,
		Start:            c.timepoint,
		Locked:           false,
		ContainsContent:  c.typ != Rebase || closedOld.ContainsContent,
		VersionsReplaced: versionsReplaced,
	}

	records := []branch.Timespan{closedOld, successor}

	if c.typ == Promotion {
		sourcePath, _ := c.SourcePath()
		sourceCurrent, err := co.repo.FindAtTimepoint(ctx, sourcePath, c.timepoint)
		if err != nil {
			return branch.Timespan{}, fmt.Errorf("failed to resolve source %q for promotion completion: %w", sourcePath, err)
		}

		closedSource := sourceCurrent.Clone()
		closedSource.End = &endAt
		closedSource.Locked = false
		successor.VersionsReplaced = append(successor.VersionsReplaced, closedSource.VersionsReplaced...)

		freshSource := branch.Timespan{
			Path:            sourcePath,
			Base:            c.timepoint,
			Head:            c.timepoint,
			Start:           c.timepoint,
			Locked:          false,
			ContainsContent: false,
			LastPromotion:   &endAt,
		}

		records = []branch.Timespan{closedOld, successor, closedSource, freshSource}
	}

	if err := co.store.Save(ctx, records...); err != nil {
		return branch.Timespan{}, fmt.Errorf("failed to persist completion of commit on %q: %w", c.Path(), err)
	}

	return successor, nil
}

// Rollback discards c: any entity-version documents its client recorded
// are deleted, and the branch's lock is cleared without advancing its
// head. Rollback consumes c; a second call, or a call after Complete,
// returns an error without doing anything.
func (co *Coordinator) Rollback(ctx context.Context, c *Commit) error {
	co.mu.Lock()
	defer co.mu.Unlock()

	if !c.markDone() {
		return brancherr.New(brancherr.InvalidArgument, "commit on %q was already completed or rolled back", c.Path())
	}

	for _, class := range c.entityClassList() {
		if err := co.entities.DeleteVersions(ctx, class, c.branch.Path, c.timepoint); err != nil {
			return fmt.Errorf("failed to delete entity versions for %q/%s: %w", c.branch.Path, class, err)
		}
	}

	unlocked := c.branch.Clone()
	unlocked.Locked = false
	if err := co.store.Save(ctx, unlocked); err != nil {
		return fmt.Errorf("failed to unlock branch %q on rollback: %w", c.Path(), err)
	}
	return nil
}

// Unlock force-clears a branch's lock without completing or rolling back
// any commit. It is an administrative escape hatch for a commit whose
// client crashed before calling Complete or Rollback.
func (co *Coordinator) Unlock(ctx context.Context, path string) error {
	co.mu.Lock()
	defer co.mu.Unlock()

	current, ok, err := co.repo.CurrentTimespan(ctx, path)
	if err != nil {
		return err
	}
	if !ok {
		return brancherr.New(brancherr.NotFound, "no current timespan for %q", path)
	}
	if !current.Locked {
		return nil
	}

	unlocked := current.Clone()
	unlocked.Locked = false
	if err := co.store.Save(ctx, unlocked); err != nil {
		return fmt.Errorf("failed to unlock branch %q: %w", path, err)
	}
	return nil
}

func (co *Coordinator) listenersSnapshot() []CommitListener {
	co.mu.Lock()
	defer co.mu.Unlock()
	return append([]CommitListener(nil), co.listeners...)
}
