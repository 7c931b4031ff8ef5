package store

import (
	"context"

	"github.com/orian/branchvc/internal/branch"
)

// BranchStore is the thin boundary over the document store. It requires
// count, ordered/paged query, batch save, and delete-all; individual
// domain-entity deletes for rollback are the entitystore package's concern,
// not this one's.
type BranchStore interface {
	// Count returns the number of timespans matching q.
	Count(ctx context.Context, q Query) (int, error)

	// QueryForList returns timespans matching q, respecting its sort and
	// paging directives.
	QueryForList(ctx context.Context, q Query) ([]branch.Timespan, error)

	// Save persists one or more timespans. Implementations should make a
	// best effort at atomicity across the batch.
	Save(ctx context.Context, records ...branch.Timespan) error

	// DeleteAll removes every timespan. Destructive; intended for test and
	// admin use only.
	DeleteAll(ctx context.Context) error
}
