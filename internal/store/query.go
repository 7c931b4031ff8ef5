// Package store defines the document-store contract the branch adapter
// needs: equality, range, existence, and prefix predicates composed with
// boolean must/should/mustNot, plus sort and paging directives. It is the
// thin boundary over the backing store; the store itself (the underlying
// document/search engine) is treated as an external collaborator.
package store

// opKind identifies which predicate a leaf Query node applies.
type opKind int

const (
	opEq opKind = iota
	opRangeLE
	opRangeGT
	opExists
	opPrefix
	opMust
	opShould
	opMustNot
	opMatchAll
)

// Query is an immutable, composable predicate over branch timespan
// records. Build leaves with Eq/RangeLE/RangeGT/Exists/Prefix, combine them
// with Must/Should/MustNot, and attach Sort/Page directives.
type Query struct {
	op    opKind
	field string
	value any
	subs  []Query

	sortField string
	sortDesc  bool
	hasSort   bool

	offset int
	size   int
	hasPage bool
}

// MatchAll returns the query that matches every record.
func MatchAll() Query {
	return Query{op: opMatchAll}
}

// Eq matches records where field equals val exactly.
func Eq(field string, val any) Query {
	return Query{op: opEq, field: field, value: val}
}

// RangeLE matches records where field <= val.
func RangeLE(field string, val any) Query {
	return Query{op: opRangeLE, field: field, value: val}
}

// RangeGT matches records where field > val.
func RangeGT(field string, val any) Query {
	return Query{op: opRangeGT, field: field, value: val}
}

// Exists matches records where field is present (present=true) or absent
// (present=false). Branch timespans use this for End: absent End marks the
// current timespan.
func Exists(field string, present bool) Query {
	return Query{op: opExists, field: field, value: present}
}

// Prefix matches records where field starts with the literal prefix.
// findChildren uses this against Path; it is literal-prefix matching, not
// ancestor-closure at a single depth — transitive descendants match too.
func Prefix(field, prefix string) Query {
	return Query{op: opPrefix, field: field, value: prefix}
}

// Must combines queries with logical AND.
func Must(qs ...Query) Query {
	return Query{op: opMust, subs: qs}
}

// Should combines queries with logical OR.
func Should(qs ...Query) Query {
	return Query{op: opShould, subs: qs}
}

// MustNot excludes records that match any of qs (a record survives only if
// it matches none of them).
func MustNot(qs ...Query) Query {
	return Query{op: opMustNot, subs: qs}
}

// Sort attaches an ascending (or, if desc, descending) sort directive on
// field. Later calls replace the prior directive.
func (q Query) Sort(field string, desc bool) Query {
	q.sortField = field
	q.sortDesc = desc
	q.hasSort = true
	return q
}

// Page attaches an (offset, size) paging directive. Later calls replace
// the prior directive.
func (q Query) Page(offset, size int) Query {
	q.offset = offset
	q.size = size
	q.hasPage = true
	return q
}
