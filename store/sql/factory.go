package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/goliatone/go-spladmin/core"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type persistenceConfig struct {
	driver string
	server string
}

func (c persistenceConfig) GetDebug() bool {
	return false
}

func (c persistenceConfig) GetDriver() string {
	return c.driver
}

func (c persistenceConfig) GetServer() string {
	return c.server
}

func (c persistenceConfig) GetPingTimeout() time.Duration {
	return 5 * time.Second
}

func (c persistenceConfig) GetOtelIdentifier() string {
	return "spladmin"
}

// Open connects the configured audit backend, applies the ledger schema,
// and returns the ready store. Callers own Close on the client.
func Open(ctx context.Context, cfg core.AuditConfig) (*AuditStore, *persistence.Client, error) {
	if !cfg.Enabled() {
		return nil, nil, fmt.Errorf("sqlstore: audit persistence is not configured")
	}

	driver, dialect, err := resolveDriver(cfg.Driver)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlstore: open %s database: %w", cfg.Driver, err)
	}
	if driver == "sqlite3" {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(persistenceConfig{driver: driver, server: cfg.DSN}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}
	client.RegisterSQLMigrations(migrationsFS)
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("sqlstore: apply ledger schema: %w", err)
	}

	store, err := NewAuditStore(client.DB())
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return store, client, nil
}

// NewAuditStoreFromPersistence builds the store on an already-migrated
// persistence client or bare bun handle.
func NewAuditStoreFromPersistence(client any) (*AuditStore, error) {
	db, err := resolveBunDB(client)
	if err != nil {
		return nil, err
	}
	return NewAuditStore(db)
}

func resolveDriver(name string) (string, schema.Dialect, error) {
	switch strings.TrimSpace(name) {
	case "sqlite":
		return "sqlite3", sqlitedialect.New(), nil
	case "postgres":
		return "postgres", pgdialect.New(), nil
	default:
		return "", nil, fmt.Errorf("sqlstore: unsupported audit driver %q", name)
	}
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
