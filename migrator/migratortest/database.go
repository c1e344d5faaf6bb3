package migratortest

import (
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for pgtestdb
	"github.com/peterldowns/pgtestdb"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/ballotaudit/migrator"
	"github.com/screwyprof/ballotaudit/pkg/pgxdb/pgxdbtest"
)

// CreateTestDatabase creates a test database with the archive schema applied.
// Returns the connection pool ready for use.
func CreateTestDatabase(t *testing.T, migrationsDir string) *pgxpool.Pool {
	t.Helper()

	dbConfig := pgtestdb.Custom(t, createTestDatabaseConfig(), migrator.NewSchemaMigrator(migrationsDir))

	// Log the database URL for debugging
	t.Logf("testdbconf: %s", dbConfig.URL())

	pool, err := pgxdbtest.NewTestPool(t.Context(), dbConfig.URL())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

// createTestDatabaseConfig creates the standard pgtestdb configuration for auditor tests
func createTestDatabaseConfig() pgtestdb.Config {
	return pgtestdb.Config{
		DriverName: "pgx",
		User:       "auditor",
		Password:   "auditor",
		Host:       "localhost",
		Port:       "5432",
		Options:    "sslmode=disable",
	}
}
