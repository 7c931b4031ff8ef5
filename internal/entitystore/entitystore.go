// Package entitystore defines the boundary to the domain entity layer the
// branch service treats as an external collaborator: the representation
// and persistence of the entities a commit actually changes. The branch
// service never reads or writes entity content; it only needs one
// primitive from this layer, used by commit rollback: delete the entity
// documents a commit wrote speculatively under its (path, start)
// coordinates.
package entitystore

import "context"

// EntityClass names a domain entity kind a commit touched, e.g. "document"
// or "record". The branch service treats this as an opaque string handed
// back by the caller that opened the commit.
type EntityClass string

// Store is the minimal contract the commit coordinator's rollback path
// needs from the domain entity layer.
type Store interface {
	// DeleteVersions removes every document of the given class written
	// under (path, start) — the coordinates a commit's client-side writes
	// used. Safe to call when nothing matches.
	DeleteVersions(ctx context.Context, class EntityClass, path string, start int64) error

	// CountVersions reports how many documents of the given class are
	// currently stored under (path, start). Used for diagnostics and
	// tests; not required for correctness.
	CountVersions(ctx context.Context, class EntityClass, path string, start int64) (int, error)
}
