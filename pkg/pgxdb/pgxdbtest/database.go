package pgxdbtest

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewTestPool creates a connection pool optimized for integration tests:
// a minimal pool, short lifecycles and quick failure detection.
func NewTestPool(ctx context.Context, connectionString string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connectionString)
	if err != nil {
		return nil, err
	}

	// Minimal pool size for tests
	config.MinConns = 1
	config.MaxConns = 2

	config.MaxConnLifetime = 10 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute
	config.HealthCheckPeriod = 30 * time.Second

	// Fail fast in test scenarios
	config.ConnConfig.ConnectTimeout = 5 * time.Second

	return pgxpool.NewWithConfig(ctx, config)
}
