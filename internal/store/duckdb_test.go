package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orian/branchvc/internal/branch"
)

// newTestDuckDBStore opens an in-memory DuckDB database so these tests
// exercise the real SQL compiler and schema without touching disk, the
// way the teacher's storage tests run against a throwaway DuckDBStorage.
func newTestDuckDBStore(t *testing.T) *DuckDBBranchStore {
	t.Helper()
	s, err := NewDuckDBBranchStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDuckDBSaveAndQueryForList(t *testing.T) {
	s := newTestDuckDBStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx,
		branch.Timespan{Path: "MAIN", Base: 100, Head: 100, Start: 100},
		branch.Timespan{Path: "MAIN/A", Base: 200, Head: 200, Start: 200, End: ptr(300)},
		branch.Timespan{Path: "MAIN/A", Base: 300, Head: 300, Start: 300, VersionsReplaced: []string{"v1", "v2"}},
	))

	current, err := s.QueryForList(ctx, Must(Eq("path", "MAIN/A"), Exists("end", false)))
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, int64(300), current[0].Start)
	assert.Equal(t, []string{"v1", "v2"}, current[0].VersionsReplaced)
	assert.Nil(t, current[0].End)

	closed, err := s.QueryForList(ctx, Must(Eq("path", "MAIN/A"), MustNot(Exists("end", false))))
	require.NoError(t, err)
	require.Len(t, closed, 1)
	require.NotNil(t, closed[0].End)
	assert.Equal(t, int64(300), *closed[0].End)
}

// TestDuckDBUpsertByPathAndStart exercises invariant 1 (uniqueness of
// current) end to end: re-saving a timespan identified by (path, start)
// must update it in place rather than create a duplicate row, the way a
// lock-flip followed by a completion overwrites the same (path, start)
// twice.
func TestDuckDBUpsertByPathAndStart(t *testing.T) {
	s := newTestDuckDBStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, branch.Timespan{Path: "MAIN/A", Base: 100, Head: 100, Start: 100}))
	require.NoError(t, s.Save(ctx, branch.Timespan{Path: "MAIN/A", Base: 100, Head: 100, Start: 100, Locked: true}))

	count, err := s.Count(ctx, Eq("path", "MAIN/A"))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	all, err := s.QueryForList(ctx, Eq("path", "MAIN/A"))
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Locked)
}

// TestDuckDBTimespanContiguity exercises invariant 2: a closed timespan's
// end must equal its successor's start, and only the successor has an
// absent end.
func TestDuckDBTimespanContiguity(t *testing.T) {
	s := newTestDuckDBStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx,
		branch.Timespan{Path: "MAIN/A", Base: 100, Head: 200, Start: 100, End: ptr(300)},
		branch.Timespan{Path: "MAIN/A", Base: 100, Head: 300, Start: 300},
	))

	all, err := s.QueryForList(ctx, Eq("path", "MAIN/A"))
	require.NoError(t, err)
	require.Len(t, all, 2)

	var closed, current *branch.Timespan
	for i := range all {
		if all[i].End != nil {
			closed = &all[i]
		} else {
			current = &all[i]
		}
	}
	require.NotNil(t, closed)
	require.NotNil(t, current)
	assert.Equal(t, *closed.End, current.Start)
}

func TestDuckDBSortAndPage(t *testing.T) {
	s := newTestDuckDBStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx,
		branch.Timespan{Path: "MAIN/B", Base: 100, Head: 100, Start: 100},
		branch.Timespan{Path: "MAIN", Base: 100, Head: 100, Start: 100},
		branch.Timespan{Path: "MAIN/A", Base: 100, Head: 100, Start: 100},
	))

	page, err := s.QueryForList(ctx, MatchAll().Sort("path", false).Page(1, 2))
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, []string{"MAIN/A", "MAIN/B"}, []string{page[0].Path, page[1].Path})
}

func TestDuckDBPrefixMatchesTransitiveDescendants(t *testing.T) {
	s := newTestDuckDBStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx,
		branch.Timespan{Path: "MAIN/A", Base: 100, Head: 100, Start: 100},
		branch.Timespan{Path: "MAIN/A/B", Base: 100, Head: 100, Start: 100},
		branch.Timespan{Path: "MAIN/AB", Base: 100, Head: 100, Start: 100},
	))

	children, err := s.QueryForList(ctx, Prefix("path", "MAIN/A/"))
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "MAIN/A/B", children[0].Path)
}

func TestDuckDBDeleteAll(t *testing.T) {
	s := newTestDuckDBStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, branch.Timespan{Path: "MAIN", Base: 100, Head: 100, Start: 100}))
	require.NoError(t, s.DeleteAll(ctx))

	count, err := s.Count(ctx, MatchAll())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
