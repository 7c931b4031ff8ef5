package commit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orian/branchvc/internal/branch"
	"github.com/orian/branchvc/internal/brancherr"
	"github.com/orian/branchvc/internal/entitystore"
	"github.com/orian/branchvc/internal/repo"
	"github.com/orian/branchvc/internal/store"
)

func seedMain(t *testing.T, s *store.MemoryBranchStore) {
	t.Helper()
	require.NoError(t, s.Save(context.Background(), branch.Timespan{
		Path: "MAIN", Base: 100, Head: 100, Start: 100,
	}))
}

func seedChild(t *testing.T, s *store.MemoryBranchStore, path string, base, head, start int64) {
	t.Helper()
	require.NoError(t, s.Save(context.Background(), branch.Timespan{
		Path: path, Base: base, Head: head, Start: start,
	}))
}

func TestOpenCompleteContentCommit(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryBranchStore()
	seedMain(t, s)

	co := NewCoordinator(s, entitystore.NewMemoryStore(), newFixedClock(200))

	c, err := co.OpenCommit(ctx, "MAIN")
	require.NoError(t, err)
	assert.Equal(t, Content, c.Type())
	assert.Equal(t, int64(200), c.Timepoint())

	// While locked, a second open is rejected.
	_, err = co.OpenCommit(ctx, "MAIN")
	require.Error(t, err)
	assert.True(t, brancherr.Is(err, brancherr.ConflictLocked))

	successor, err := co.Complete(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, int64(200), successor.Head)
	assert.Equal(t, int64(200), successor.Start)
	assert.Equal(t, int64(100), successor.Base)
	assert.False(t, successor.Locked)
	assert.True(t, successor.ContainsContent)

	r := repo.New(s)
	current, ok, err := r.CurrentTimespan(ctx, "MAIN")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(200), current.Head)
	assert.False(t, current.Locked)

	closedOld, err := r.FindAtTimepoint(ctx, "MAIN", 150)
	require.NoError(t, err)
	assert.Equal(t, int64(100), closedOld.Start)
	require.NotNil(t, closedOld.End)
	assert.Equal(t, int64(200), *closedOld.End)
}

func TestCompleteTwiceFails(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryBranchStore()
	seedMain(t, s)
	co := NewCoordinator(s, entitystore.NewMemoryStore(), newFixedClock(200))

	c, err := co.OpenCommit(ctx, "MAIN")
	require.NoError(t, err)

	_, err = co.Complete(ctx, c)
	require.NoError(t, err)

	_, err = co.Complete(ctx, c)
	require.Error(t, err)
	assert.True(t, brancherr.Is(err, brancherr.InvalidArgument))
}

func TestOpenMissingBranchIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryBranchStore()
	co := NewCoordinator(s, entitystore.NewMemoryStore(), newFixedClock(200))

	_, err := co.OpenCommit(ctx, "MAIN/A")
	require.Error(t, err)
	assert.True(t, brancherr.Is(err, brancherr.NotFound))
}

func TestRollbackDeletesEntityVersionsAndUnlocks(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryBranchStore()
	seedMain(t, s)

	entities := entitystore.NewMemoryStore()
	co := NewCoordinator(s, entities, newFixedClock(200))

	c, err := co.OpenCommit(ctx, "MAIN")
	require.NoError(t, err)

	entities.Seed("document", "MAIN", c.Timepoint(), 3)
	c.AddEntityClass("document")

	require.NoError(t, co.Rollback(ctx, c))

	n, err := entities.CountVersions(ctx, "document", "MAIN", c.Timepoint())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	r := repo.New(s)
	current, ok, err := r.CurrentTimespan(ctx, "MAIN")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, current.Locked)
	assert.Equal(t, int64(100), current.Head, "rollback does not advance head")

	err = co.Rollback(ctx, c)
	require.Error(t, err)
	assert.True(t, brancherr.Is(err, brancherr.InvalidArgument))
}

func TestOpenRebaseCommitReassignsBase(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryBranchStore()
	seedMain(t, s)
	seedChild(t, s, "MAIN/A", 100, 100, 100)

	co := NewCoordinator(s, entitystore.NewMemoryStore(), newFixedClock(300))

	c, err := co.OpenRebaseCommit(ctx, "MAIN/A")
	require.NoError(t, err)
	assert.Equal(t, Rebase, c.Type())

	prevBase, ok := c.RebasePreviousBase()
	require.True(t, ok)
	assert.Equal(t, int64(100), prevBase)

	successor, err := co.Complete(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, int64(100), successor.Base, "parent head unchanged at rebase time")
	assert.Equal(t, int64(300), successor.Head)
}

func TestOpenRebaseCommitRootRejected(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryBranchStore()
	seedMain(t, s)
	co := NewCoordinator(s, entitystore.NewMemoryStore(), newFixedClock(300))

	_, err := co.OpenRebaseCommit(ctx, "MAIN")
	require.Error(t, err)
	assert.True(t, brancherr.Is(err, brancherr.InvalidArgument))
}

func TestOpenPromotionCommitRequiresDescendant(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryBranchStore()
	seedMain(t, s)
	seedChild(t, s, "MAIN/A", 100, 150, 100)

	co := NewCoordinator(s, entitystore.NewMemoryStore(), newFixedClock(300))

	_, err := co.OpenPromotionCommit(ctx, "MAIN/A", "MAIN")
	require.Error(t, err)
	assert.True(t, brancherr.Is(err, brancherr.InvalidArgument))

	c, err := co.OpenPromotionCommit(ctx, "MAIN", "MAIN/A")
	require.NoError(t, err)
	assert.Equal(t, Promotion, c.Type())
	sp, ok := c.SourcePath()
	require.True(t, ok)
	assert.Equal(t, "MAIN/A", sp)
}

func TestPromotionCompletionResetsSourceBranch(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryBranchStore()
	seedMain(t, s)
	seedChild(t, s, "MAIN/A", 100, 150, 100)

	co := NewCoordinator(s, entitystore.NewMemoryStore(), newFixedClock(300))

	c, err := co.OpenPromotionCommit(ctx, "MAIN", "MAIN/A")
	require.NoError(t, err)

	successor, err := co.Complete(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, int64(300), successor.Head)
	assert.True(t, successor.ContainsContent)

	r := repo.New(s)
	source, ok, err := r.CurrentTimespan(ctx, "MAIN/A")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(300), source.Base)
	assert.Equal(t, int64(300), source.Head)
	assert.False(t, source.ContainsContent, "promotion resets the source branch to empty")
	require.NotNil(t, source.LastPromotion)
	assert.Equal(t, int64(300), *source.LastPromotion)

	closedSource, err := r.FindAtTimepoint(ctx, "MAIN/A", 200)
	require.NoError(t, err)
	require.NotNil(t, closedSource.End)
	assert.Equal(t, int64(300), *closedSource.End)
}

type recordingListener struct {
	calls int
	fail  bool
}

func (l *recordingListener) PreCommitCompletion(_ context.Context, _ *Commit) error {
	l.calls++
	if l.fail {
		return assert.AnError
	}
	return nil
}

func TestListenerFailureAbortsCompletionAllowingRollback(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryBranchStore()
	seedMain(t, s)
	co := NewCoordinator(s, entitystore.NewMemoryStore(), newFixedClock(200))

	l := &recordingListener{fail: true}
	co.AddCommitListener(l)

	c, err := co.OpenCommit(ctx, "MAIN")
	require.NoError(t, err)

	_, err = co.Complete(ctx, c)
	require.Error(t, err)
	assert.True(t, brancherr.Is(err, brancherr.ListenerAborted))
	assert.Equal(t, 1, l.calls)

	require.NoError(t, co.Rollback(ctx, c))
}

func TestAddCommitListenerDedupesByIdentity(t *testing.T) {
	s := store.NewMemoryBranchStore()
	co := NewCoordinator(s, entitystore.NewMemoryStore(), newFixedClock(200))

	l := &recordingListener{}
	co.AddCommitListener(l)
	co.AddCommitListener(l)
	assert.Len(t, co.listeners, 1)
}

func TestUnlockClearsLockWithoutCommit(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryBranchStore()
	seedMain(t, s)
	co := NewCoordinator(s, entitystore.NewMemoryStore(), newFixedClock(200))

	_, err := co.OpenCommit(ctx, "MAIN")
	require.NoError(t, err)

	require.NoError(t, co.Unlock(ctx, "MAIN"))

	r := repo.New(s)
	current, ok, err := r.CurrentTimespan(ctx, "MAIN")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, current.Locked)
	assert.Equal(t, int64(100), current.Head)
}

func TestUnlockMissingBranchIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryBranchStore()
	co := NewCoordinator(s, entitystore.NewMemoryStore(), newFixedClock(200))

	err := co.Unlock(ctx, "MAIN/NOPE")
	require.Error(t, err)
	assert.True(t, brancherr.Is(err, brancherr.NotFound))
}
