package database

import (
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"storefront-api/internal/config"
)

// Pool sizing for a single API instance. The order pipeline's
// background tasks share this pool with request handlers.
const (
	maxOpenConns = 25
	maxIdleConns = 5
)

// Connect opens the Postgres connection, verifies it is reachable and
// wraps it in a Bun DB with the pg dialect.
func Connect(cfg config.DatabaseConfig) (*bun.DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)

	return bun.NewDB(sqlDB, pgdialect.New()), nil
}
