package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/orian/branchvc/internal/branch"
)

// MemoryBranchStore is an in-process BranchStore fake used by tests that
// exercise the repository and commit coordinator without a real database,
// the same way the teacher tests service-layer functions directly against
// an in-memory models.Storage.
type MemoryBranchStore struct {
	mu      sync.Mutex
	records []branch.Timespan
}

// NewMemoryBranchStore returns an empty MemoryBranchStore.
func NewMemoryBranchStore() *MemoryBranchStore {
	return &MemoryBranchStore{}
}

func (m *MemoryBranchStore) Count(_ context.Context, q Query) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, r := range m.records {
		ok, err := matches(q, r)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (m *MemoryBranchStore) QueryForList(_ context.Context, q Query) ([]branch.Timespan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []branch.Timespan
	for _, r := range m.records {
		ok, err := matches(q, r)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r.Clone())
		}
	}

	if q.hasSort {
		sort.SliceStable(out, func(i, j int) bool {
			less := fieldValue(out[i], q.sortField) < fieldValue(out[j], q.sortField)
			if q.sortDesc {
				return !less
			}
			return less
		})
	}

	if q.hasPage {
		start := q.offset
		if start > len(out) {
			start = len(out)
		}
		end := start + q.size
		if end > len(out) {
			end = len(out)
		}
		out = out[start:end]
	}

	return out, nil
}

// Save upserts each record by its (Path, Start) identity, mirroring the
// DuckDB store's ON CONFLICT (path, start_at) DO UPDATE behavior.
func (m *MemoryBranchStore) Save(_ context.Context, records ...branch.Timespan) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range records {
		cp := r.Clone()
		replaced := false
		for i := range m.records {
			if m.records[i].Path == cp.Path && m.records[i].Start == cp.Start {
				m.records[i] = cp
				replaced = true
				break
			}
		}
		if !replaced {
			m.records = append(m.records, cp)
		}
	}
	return nil
}

func (m *MemoryBranchStore) DeleteAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = nil
	return nil
}

func fieldValue(t branch.Timespan, field string) string {
	switch field {
	case "path":
		return t.Path
	default:
		return ""
	}
}

// matches evaluates q against a single record without going through SQL,
// so the memory store exercises the exact same Query semantics the DuckDB
// compiler does.
func matches(q Query, r branch.Timespan) (bool, error) {
	switch q.op {
	case opMatchAll:
		return true, nil
	case opEq:
		v, err := fieldOf(r, q.field)
		if err != nil {
			return false, err
		}
		return v == q.value, nil
	case opRangeLE:
		v, err := fieldOf(r, q.field)
		if err != nil {
			return false, err
		}
		lhs, lok := v.(int64)
		rhs, rok := q.value.(int64)
		if !lok || !rok {
			return false, nil
		}
		return lhs <= rhs, nil
	case opRangeGT:
		v, err := fieldOf(r, q.field)
		if err != nil {
			return false, err
		}
		lhs, lok := v.(int64)
		rhs, rok := q.value.(int64)
		if !lok || !rok {
			return false, nil
		}
		return lhs > rhs, nil
	case opExists:
		present, _ := q.value.(bool)
		switch q.field {
		case "end":
			return (r.End != nil) == present, nil
		case "lastPromotion":
			return (r.LastPromotion != nil) == present, nil
		default:
			return false, nil
		}
	case opPrefix:
		prefix, _ := q.value.(string)
		return strings.HasPrefix(r.Path, prefix), nil
	case opMust:
		for _, sub := range q.subs {
			ok, err := matches(sub, r)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case opShould:
		if len(q.subs) == 0 {
			return false, nil
		}
		for _, sub := range q.subs {
			ok, err := matches(sub, r)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case opMustNot:
		for _, sub := range q.subs {
			ok, err := matches(sub, r)
			if err != nil {
				return false, err
			}
			if ok {
				return false, nil
			}
		}
		return true, nil
	default:
		return false, nil
	}
}

func fieldOf(t branch.Timespan, field string) (any, error) {
	switch field {
	case "path":
		return t.Path, nil
	case "base":
		return t.Base, nil
	case "head":
		return t.Head, nil
	case "start":
		return t.Start, nil
	case "end":
		if t.End == nil {
			return nil, nil
		}
		return *t.End, nil
	case "lastPromotion":
		if t.LastPromotion == nil {
			return nil, nil
		}
		return *t.LastPromotion, nil
	case "locked":
		return t.Locked, nil
	case "containsContent":
		return t.ContainsContent, nil
	default:
		return nil, nil
	}
}
