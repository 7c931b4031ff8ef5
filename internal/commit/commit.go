// Package commit implements the commit lifecycle: open, complete, rollback,
// and the pre-completion listener hook. A Commit is held entirely in
// memory between open and its terminal call; only complete persists a new
// timespan.
package commit

import (
	"context"
	"sync"

	"github.com/orian/branchvc/internal/branch"
	"github.com/orian/branchvc/internal/entitystore"
)

// Type classifies why a commit was opened, which governs how complete
// builds the successor timespan.
type Type int

const (
	// Content is an ordinary commit: new content on an existing branch.
	Content Type = iota
	// Rebase re-bases a branch onto its parent's current head.
	Rebase
	// Promotion folds a descendant branch's content into path and resets
	// the descendant.
	Promotion
)

func (t Type) String() string {
	switch t {
	case Content:
		return "content"
	case Rebase:
		return "rebase"
	case Promotion:
		return "promotion"
	default:
		return "unknown"
	}
}

// CommitListener is notified immediately before a commit completes. A
// listener returning an error aborts completion; the commit is left open
// for the caller to roll back.
type CommitListener interface {
	PreCommitCompletion(ctx context.Context, c *Commit) error
}

// Commit is the in-memory handle returned by an open call. It is
// consumed exactly once, by either Complete or Rollback.
type Commit struct {
	mu sync.Mutex

	// branch is the locked snapshot of the current timespan this commit is
	// building on top of. For Rebase, Base is already reassigned to the
	// parent's head by the time open returns.
	branch branch.Timespan

	typ       Type
	timepoint int64

	// sourcePath is set for Promotion only: the descendant branch whose
	// content is being folded in.
	sourcePath string

	// rebasePreviousBase records branch.Base before a Rebase commit
	// reassigned it, so listeners can see what changed.
	rebasePreviousBase *int64

	entityVersionsReplaced []string
	entityClasses          map[entitystore.EntityClass]struct{}

	done bool
}

// Path returns the path this commit is open against.
func (c *Commit) Path() string {
	return c.branch.Path
}

// Type returns the kind of commit this is.
func (c *Commit) Type() Type {
	return c.typ
}

// Timepoint returns the logical timepoint assigned to this commit at open.
func (c *Commit) Timepoint() int64 {
	return c.timepoint
}

// SourcePath returns the descendant path being promoted and true, or
// ("", false) if this is not a Promotion commit.
func (c *Commit) SourcePath() (string, bool) {
	if c.typ != Promotion {
		return "", false
	}
	return c.sourcePath, true
}

// RebasePreviousBase returns the branch's Base before a Rebase commit
// reassigned it, and true, or (0, false) for non-Rebase commits.
func (c *Commit) RebasePreviousBase() (int64, bool) {
	if c.rebasePreviousBase == nil {
		return 0, false
	}
	return *c.rebasePreviousBase, true
}

// AddVersionsReplaced records external entity-version identifiers this
// commit supersedes, to be merged into the successor timespan's
// VersionsReplaced at completion.
func (c *Commit) AddVersionsReplaced(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entityVersionsReplaced = append(c.entityVersionsReplaced, ids...)
}

// AddEntityClass records that this commit wrote documents of class, so
// Rollback knows to delete them.
func (c *Commit) AddEntityClass(class entitystore.EntityClass) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entityClasses == nil {
		c.entityClasses = make(map[entitystore.EntityClass]struct{})
	}
	c.entityClasses[class] = struct{}{}
}

func (c *Commit) entityClassList() []entitystore.EntityClass {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]entitystore.EntityClass, 0, len(c.entityClasses))
	for class := range c.entityClasses {
		out = append(out, class)
	}
	return out
}

// markDone consumes the one-shot token, returning false if it was already
// consumed.
func (c *Commit) markDone() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return false
	}
	c.done = true
	return true
}
