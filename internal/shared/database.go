package shared

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// NewDatabase opens a traced connection pool for the configured driver.
// For sqlite the DSN can be ":memory:" for an in-memory database.
func NewDatabase(cfg DatabaseConfig) (*sql.DB, error) {
	attr := semconv.DBSystemSqlite
	switch cfg.Driver {
	case DriverSQLite:
		if strings.HasPrefix(cfg.DSN, ":memory:") {
			// every pooled connection would otherwise get its own empty database
			cfg.MaxOpenConns = 1
		}
		cfg.DSN = withForeignKeys(cfg.DSN)
	case DriverPostgres:
		attr = semconv.DBSystemPostgreSQL
	default:
		return nil, fmt.Errorf("%w: unsupported database driver %q", ErrInvalidConfig, cfg.Driver)
	}

	db, err := otelsql.Open(cfg.Driver, cfg.DSN, otelsql.WithAttributes(attr))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// ConfigureDatabase sets connection pool settings for the database. Zero values are ignored.
func ConfigureDatabase(db *sql.DB, maxOpenConns, maxIdleConns int) {
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
}

// withForeignKeys enables sqlite foreign key enforcement on every pooled connection.
func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on"
}
