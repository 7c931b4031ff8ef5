package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/orian/branchvc/internal/branch"
)

// DuckDBBranchStore is the reference BranchStore implementation: a
// database/sql-backed adapter over DuckDB, compiling Query values into
// parameterized WHERE clauses against a single branch_timespans table.
// It mirrors the teacher's DuckDBStorage: database/sql, explicit schema
// DDL run at construction, one *sql.DB shared across calls.
type DuckDBBranchStore struct {
	db *sql.DB
}

// fieldColumn maps the domain field names Query predicates are built
// against to their SQL column names. Columns carry an "_at" suffix to
// sidestep SQL keyword collisions ("start", "end") without leaking that
// detail into the Query API.
var fieldColumn = map[string]string{
	"path":            "path",
	"base":            "base_at",
	"head":            "head_at",
	"start":           "start_at",
	"end":             "end_at",
	"locked":          "locked",
	"containsContent": "contains_content",
	"lastPromotion":   "last_promotion_at",
}

// NewDuckDBBranchStore opens (creating if absent) a DuckDB database at
// dbPath and ensures the branch_timespans schema exists.
func NewDuckDBBranchStore(dbPath string) (*DuckDBBranchStore, error) {
	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	s := &DuckDBBranchStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Timespans are keyed by (path, start_at): the timepoint chain invariant
// ("successive timespans on the same path satisfy prev.end == next.start")
// makes that pair a natural, stable identity, so Save can upsert by it
// instead of requiring callers to track a surrogate id across the
// lock-flip at open and the close-and-replace at completion.
func (s *DuckDBBranchStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS branch_timespans (
			path VARCHAR NOT NULL,
			base_at BIGINT NOT NULL,
			head_at BIGINT NOT NULL,
			start_at BIGINT NOT NULL,
			end_at BIGINT,
			locked BOOLEAN NOT NULL,
			contains_content BOOLEAN NOT NULL,
			last_promotion_at BIGINT,
			versions_replaced VARCHAR NOT NULL,
			PRIMARY KEY (path, start_at)
		);

		CREATE INDEX IF NOT EXISTS idx_branch_timespans_current ON branch_timespans(path) WHERE end_at IS NULL;
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (s *DuckDBBranchStore) Close() error {
	return s.db.Close()
}

func (s *DuckDBBranchStore) Count(ctx context.Context, q Query) (int, error) {
	where, args, err := compile(q)
	if err != nil {
		return 0, fmt.Errorf("failed to compile query: %w", err)
	}

	var count int
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM branch_timespans WHERE "+where, args...)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count timespans: %w", err)
	}
	return count, nil
}

func (s *DuckDBBranchStore) QueryForList(ctx context.Context, q Query) ([]branch.Timespan, error) {
	where, args, err := compile(q)
	if err != nil {
		return nil, fmt.Errorf("failed to compile query: %w", err)
	}

	sqlStr := "SELECT path, base_at, head_at, start_at, end_at, locked, contains_content, last_promotion_at, versions_replaced FROM branch_timespans WHERE " + where

	if q.hasSort {
		col, ok := fieldColumn[q.sortField]
		if !ok {
			return nil, fmt.Errorf("unknown sort field %q", q.sortField)
		}
		dir := "ASC"
		if q.sortDesc {
			dir = "DESC"
		}
		sqlStr += fmt.Sprintf(" ORDER BY %s %s", col, dir)
	}
	if q.hasPage {
		sqlStr += fmt.Sprintf(" LIMIT %d OFFSET %d", q.size, q.offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query timespans: %w", err)
	}
	defer rows.Close()

	var out []branch.Timespan
	for rows.Next() {
		var t branch.Timespan
		var end sql.NullInt64
		var lastPromotion sql.NullInt64
		var versionsReplacedJSON string
		if err := rows.Scan(&t.Path, &t.Base, &t.Head, &t.Start, &end, &t.Locked, &t.ContainsContent, &lastPromotion, &versionsReplacedJSON); err != nil {
			return nil, fmt.Errorf("failed to scan timespan: %w", err)
		}
		if end.Valid {
			v := end.Int64
			t.End = &v
		}
		if lastPromotion.Valid {
			v := lastPromotion.Int64
			t.LastPromotion = &v
		}
		if versionsReplacedJSON != "" && versionsReplacedJSON != "[]" {
			if err := json.Unmarshal([]byte(versionsReplacedJSON), &t.VersionsReplaced); err != nil {
				return nil, fmt.Errorf("failed to unmarshal versionsReplaced: %w", err)
			}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *DuckDBBranchStore) Save(ctx context.Context, records ...branch.Timespan) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range records {
		versionsReplacedJSON, err := json.Marshal(t.VersionsReplaced)
		if err != nil {
			return fmt.Errorf("failed to marshal versionsReplaced: %w", err)
		}

		var endArg, lastPromotionArg any
		if t.End != nil {
			endArg = *t.End
		}
		if t.LastPromotion != nil {
			lastPromotionArg = *t.LastPromotion
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO branch_timespans
				(path, base_at, head_at, start_at, end_at, locked, contains_content, last_promotion_at, versions_replaced)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (path, start_at) DO UPDATE SET
				base_at = EXCLUDED.base_at,
				head_at = EXCLUDED.head_at,
				end_at = EXCLUDED.end_at,
				locked = EXCLUDED.locked,
				contains_content = EXCLUDED.contains_content,
				last_promotion_at = EXCLUDED.last_promotion_at,
				versions_replaced = EXCLUDED.versions_replaced
		`, t.Path, t.Base, t.Head, t.Start, endArg, t.Locked, t.ContainsContent, lastPromotionArg, string(versionsReplacedJSON))
		if err != nil {
			return fmt.Errorf("failed to upsert timespan for %q: %w", t.Path, err)
		}
	}

	return tx.Commit()
}

func (s *DuckDBBranchStore) DeleteAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM branch_timespans")
	if err != nil {
		return fmt.Errorf("failed to delete all timespans: %w", err)
	}
	return nil
}

// compile translates q into a parameterized SQL boolean expression.
func compile(q Query) (string, []any, error) {
	switch q.op {
	case opMatchAll:
		return "1=1", nil, nil
	case opEq:
		col, ok := fieldColumn[q.field]
		if !ok {
			return "", nil, fmt.Errorf("unknown field %q", q.field)
		}
		return col + " = ?", []any{q.value}, nil
	case opRangeLE:
		col, ok := fieldColumn[q.field]
		if !ok {
			return "", nil, fmt.Errorf("unknown field %q", q.field)
		}
		return col + " <= ?", []any{q.value}, nil
	case opRangeGT:
		col, ok := fieldColumn[q.field]
		if !ok {
			return "", nil, fmt.Errorf("unknown field %q", q.field)
		}
		return col + " > ?", []any{q.value}, nil
	case opExists:
		col, ok := fieldColumn[q.field]
		if !ok {
			return "", nil, fmt.Errorf("unknown field %q", q.field)
		}
		present, _ := q.value.(bool)
		if present {
			return col + " IS NOT NULL", nil, nil
		}
		return col + " IS NULL", nil, nil
	case opPrefix:
		col, ok := fieldColumn[q.field]
		if !ok {
			return "", nil, fmt.Errorf("unknown field %q", q.field)
		}
		prefix, _ := q.value.(string)
		return col + " LIKE ? ESCAPE '\\'", []any{escapeLike(prefix) + "%"}, nil
	case opMust:
		return compileBool(q.subs, " AND ", false)
	case opShould:
		return compileBool(q.subs, " OR ", false)
	case opMustNot:
		return compileBool(q.subs, " OR ", true)
	default:
		return "", nil, fmt.Errorf("unknown query op %v", q.op)
	}
}

func compileBool(subs []Query, joiner string, negate bool) (string, []any, error) {
	if len(subs) == 0 {
		// AND of nothing is true, OR of nothing is false; negate applies on
		// top of that base case exactly as it would for a non-empty list.
		base := joiner == " AND "
		if negate {
			base = !base
		}
		if base {
			return "1=1", nil, nil
		}
		return "1=0", nil, nil
	}

	var parts []string
	var args []any
	for _, sub := range subs {
		clause, subArgs, err := compile(sub)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+clause+")")
		args = append(args, subArgs...)
	}

	combined := strings.Join(parts, joiner)
	if negate {
		combined = "NOT (" + combined + ")"
	}
	return combined, args, nil
}

// escapeLike escapes the backslash, percent, and underscore characters in s
// so it can be embedded verbatim as a LIKE prefix pattern.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
