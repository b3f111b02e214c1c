package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	ingestmigrations "github.com/goliatone/go-hr-ingest/migrations"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// ConnectionConfig satisfies the go-persistence-bun config contract.
type ConnectionConfig struct {
	Driver         string
	DSN            string
	Debug          bool
	PingTimeout    time.Duration
	OtelIdentifier string
	// Migrations overrides the embedded schema for the connection's dialect.
	Migrations fs.FS
	// AutoMigrate applies the embedded schema when Migrations is nil.
	AutoMigrate bool
}

func (c ConnectionConfig) GetDebug() bool {
	return c.Debug
}

func (c ConnectionConfig) GetDriver() string {
	return normalizeDriver(c.Driver)
}

func (c ConnectionConfig) GetServer() string {
	return c.DSN
}

func (c ConnectionConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.PingTimeout
}

func (c ConnectionConfig) GetOtelIdentifier() string {
	if strings.TrimSpace(c.OtelIdentifier) == "" {
		return "hr-ingest"
	}
	return c.OtelIdentifier
}

// Connect opens a persistence client for postgres or sqlite and, when
// migrations are configured, migrates the schema.
func Connect(ctx context.Context, cfg ConnectionConfig) (*persistence.Client, error) {
	driver := normalizeDriver(cfg.Driver)
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlstore: dsn is required")
	}
	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}
	if cfg.Migrations != nil || cfg.AutoMigrate {
		if err := migrate(ctx, client, driver, cfg.Migrations); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	return client, nil
}

// migrate registers the migrations for driver's dialect and applies them.
func migrate(ctx context.Context, client *persistence.Client, driver string, override fs.FS) error {
	opts := []ingestmigrations.Option{ingestmigrations.WithValidationTargets(driver)}
	if override != nil {
		opts = append(opts, ingestmigrations.WithFilesystems(ingestmigrations.FilesystemSpec{
			Dialect: driver,
			Path:    "custom",
			FS:      override,
		}))
	}
	registered := 0
	_, err := ingestmigrations.Register(ctx, func(_ context.Context, _ string, _ string, fsys fs.FS) error {
		client.RegisterSQLMigrations(fsys)
		registered++
		return nil
	}, opts...)
	if err != nil {
		return fmt.Errorf("sqlstore: register migrations: %w", err)
	}
	if registered == 0 {
		return fmt.Errorf("sqlstore: no migrations for driver %q", driver)
	}
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return nil
}

func normalizeDriver(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "sqlite3":
		return DriverSQLite
	case "", "postgres", "postgresql", "pq":
		return DriverPostgres
	default:
		return strings.ToLower(strings.TrimSpace(driver))
	}
}

func dialectFor(driver string) (schema.Dialect, error) {
	switch driver {
	case DriverPostgres:
		return pgdialect.New(), nil
	case DriverSQLite:
		return sqlitedialect.New(), nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}
