package entitystore

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseEntityStore is the reference Store implementation: a thin
// wrapper around a ClickHouse driver.Conn, modeled on the teacher's
// ExplainExecutor (itself a thin driver.Conn wrapper). It assumes entity
// documents live in a ClickHouse table with at least the columns
// (class, path, start_at); the exact table name and the rest of its
// columns are the domain entity layer's concern, out of scope here.
type ClickHouseEntityStore struct {
	conn  driver.Conn
	table string
}

// NewClickHouseEntityStore returns a ClickHouseEntityStore issuing
// mutations against table.
func NewClickHouseEntityStore(conn driver.Conn, table string) *ClickHouseEntityStore {
	return &ClickHouseEntityStore{conn: conn, table: table}
}

func (c *ClickHouseEntityStore) DeleteVersions(ctx context.Context, class EntityClass, path string, start int64) error {
	// ClickHouse deletes are asynchronous mutations; ON CLUSTER/lightweight
	// delete syntax varies by deployment, so this issues the portable
	// ALTER TABLE ... DELETE form.
	stmt := fmt.Sprintf("ALTER TABLE %s DELETE WHERE class = ? AND path = ? AND start_at = ?", c.table)
	if err := c.conn.Exec(ctx, stmt, string(class), path, start); err != nil {
		return fmt.Errorf("failed to delete %s versions for %q at %d: %w", class, path, start, err)
	}
	return nil
}

func (c *ClickHouseEntityStore) CountVersions(ctx context.Context, class EntityClass, path string, start int64) (int, error) {
	stmt := fmt.Sprintf("SELECT count() FROM %s WHERE class = ? AND path = ? AND start_at = ?", c.table)
	row := c.conn.QueryRow(ctx, stmt, string(class), path, start)

	var count uint64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s versions for %q at %d: %w", class, path, start, err)
	}
	return int(count), nil
}
