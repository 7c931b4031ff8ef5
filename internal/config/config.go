// Package config reads the branch service's deployment configuration from
// environment variables, following the teacher's os.Getenv-plus-fallback
// pattern in main() rather than a flags or file-based config library —
// none appears anywhere in the example corpus.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds everything cmd/branchvc needs to wire up the service.
type Config struct {
	DuckDBPath string

	ClickHouseHost     string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseDatabase string
	ClickHouseSecure   bool
	ClickHouseTable    string

	HTTPAddr string

	FindAllPageSize int

	// AllowDestructiveOps gates the DELETE /api/branches admin endpoint.
	AllowDestructiveOps bool
}

// Load reads Config from the environment, applying the same fallbacks the
// teacher's main() applies for its ClickHouse connection settings.
func Load() Config {
	c := Config{
		DuckDBPath: getenv("DUCKDB_PATH", "./branchvc.db"),

		ClickHouseHost:     getenv("CLICKHOUSE_HOST", "localhost:9000"),
		ClickHouseUser:     getenv("CLICKHOUSE_USER", "default"),
		ClickHousePassword: os.Getenv("CLICKHOUSE_PASSWORD"),
		ClickHouseDatabase: getenv("CLICKHOUSE_DATABASE", "default"),
		ClickHouseTable:    getenv("CLICKHOUSE_ENTITY_TABLE", "entity_versions"),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		FindAllPageSize: getenvInt("FINDALL_PAGE_SIZE", 10000),

		AllowDestructiveOps: os.Getenv("ALLOW_DESTRUCTIVE_OPS") == "true",
	}
	c.ClickHouseSecure = strings.Contains(c.ClickHouseHost, ":9440") || os.Getenv("CLICKHOUSE_SECURE") == "true"
	return c
}

// MaskedPassword returns the password with all but its first and last
// character replaced by '*', for safe logging, mirroring the teacher's
// maskPassword helper in main.go.
func (c Config) MaskedPassword() string {
	p := c.ClickHousePassword
	switch len(p) {
	case 0:
		return "<empty>"
	case 1, 2:
		return p
	default:
		return string(p[0]) + strings.Repeat("*", len(p)-2) + string(p[len(p)-1])
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
