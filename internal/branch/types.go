// Package branch defines Timespan, the one persistent record type the
// rest of the module operates on. The lifecycle façade a transport layer
// actually calls lives in internal/branch/service; it is a separate
// package because it wires internal/commit, which itself depends on
// Timespan here, and a façade in this same package would make that an
// import cycle.
package branch

import (
	"github.com/orian/branchvc/internal/branchstate"
)

// Timespan is one immutable record in a branch's history. A branch on disk
// is a sequence of Timespans sharing a Path; at most one per Path has a nil
// End (the current version).
type Timespan struct {
	Path  string `json:"path"`
	Base  int64  `json:"base"`
	Head  int64  `json:"head"`
	Start int64  `json:"start"`

	// End is the timepoint this timespan was superseded. Nil means this is
	// the current timespan for Path.
	End *int64 `json:"end,omitempty"`

	Locked          bool  `json:"locked"`
	ContainsContent bool  `json:"containsContent"`
	LastPromotion   *int64 `json:"lastPromotion,omitempty"`

	// VersionsReplaced is the set of external entity-version identifiers
	// this timespan supersedes relative to its parent.
	VersionsReplaced []string `json:"versionsReplaced,omitempty"`

	// State is computed, never persisted.
	State branchstate.State `json:"state"`
}

// IsCurrent reports whether this timespan has no End, i.e. it is the live
// version of its Path.
func (t Timespan) IsCurrent() bool {
	return t.End == nil
}

// Clone returns a deep copy of t, so callers holding an in-memory snapshot
// (a Commit's branch reference) never alias the persisted record.
func (t Timespan) Clone() Timespan {
	c := t
	if t.End != nil {
		end := *t.End
		c.End = &end
	}
	if t.LastPromotion != nil {
		lp := *t.LastPromotion
		c.LastPromotion = &lp
	}
	c.VersionsReplaced = append([]string(nil), t.VersionsReplaced...)
	return c
}
