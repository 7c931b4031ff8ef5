// Command branchvc runs the versioned branch service: a DuckDB-backed
// branch store, an optional ClickHouse-backed entity store for commit
// rollback, and the HTTP API in front of them.
package main

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/orian/branchvc/internal/branch/service"
	"github.com/orian/branchvc/internal/branchpath"
	"github.com/orian/branchvc/internal/commit"
	"github.com/orian/branchvc/internal/config"
	"github.com/orian/branchvc/internal/entitystore"
	"github.com/orian/branchvc/internal/store"
	"github.com/orian/branchvc/internal/transport/httpapi"
)

func main() {
	cfg := config.Load()

	log.Println("=== ClickHouse Connection Details ===")
	log.Printf("Host: %s", cfg.ClickHouseHost)
	log.Printf("Database: %s", cfg.ClickHouseDatabase)
	log.Printf("User: %s", cfg.ClickHouseUser)
	log.Printf("Password: %s", cfg.MaskedPassword())
	log.Printf("Secure: %v", cfg.ClickHouseSecure)
	log.Println("=====================================")

	options := &clickhouse.Options{
		Addr: []string{cfg.ClickHouseHost},
		Auth: clickhouse.Auth{
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{
				{Name: "branchvc", Version: "1.0"},
			},
		},
		Debug: false,
		Settings: clickhouse.Settings{
			"send_logs_level": "none",
		},
	}
	if cfg.ClickHouseSecure {
		options.TLS = &tls.Config{InsecureSkipVerify: true}
		log.Printf("Using secure connection to ClickHouse (TLS enabled, accepting invalid certificates)")
	}

	chConn, err := clickhouse.Open(options)
	if err != nil {
		log.Fatalf("Failed to connect to ClickHouse: %v", err)
	}
	if err := chConn.Ping(context.Background()); err != nil {
		log.Printf("Warning: ClickHouse ping failed: %v", err)
	} else {
		log.Println("Successfully connected to ClickHouse")
	}
	entities := entitystore.NewClickHouseEntityStore(chConn, cfg.ClickHouseTable)

	branchStore, err := store.NewDuckDBBranchStore(cfg.DuckDBPath)
	if err != nil {
		log.Fatalf("Failed to initialize branch store: %v", err)
	}
	defer branchStore.Close()
	log.Printf("DuckDB branch store initialized at: %s", cfg.DuckDBPath)

	co := commit.NewCoordinator(branchStore, entities, commit.SystemClock{})
	svc := service.New(branchStore, co)

	if err := ensureRoot(svc); err != nil {
		log.Fatalf("Failed to ensure root branch: %v", err)
	}

	server := httpapi.New(svc, cfg.AllowDestructiveOps)

	log.Printf("Starting server on http://localhost%s", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, server.Router()); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// ensureRoot creates the MAIN branch on first startup against an empty
// store; it is a no-op once MAIN already exists.
func ensureRoot(svc *service.Service) error {
	ctx := context.Background()
	exists, err := svc.Exists(ctx, branchpath.Root)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = svc.Create(ctx, branchpath.Root)
	return err
}
