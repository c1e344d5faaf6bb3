package migrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/peterldowns/pgtestdb"
	"github.com/peterldowns/pgtestdb/migrators/sqlmigrator"
	migrate "github.com/rubenv/sql-migrate"
)

// Migration constants
const (
	migrationsTableName = "schema_migrations"
	schemaHashPrefix    = "schema_only_"
)

// Migration-related errors
var (
	ErrMigrationExecution = errors.New("migration execution failed")
	ErrMigrationHash      = errors.New("migration hash calculation failed")
)

// SchemaMigrator applies the report archive schema.
// It implements pgtestdb.Migrator so acceptance tests get the same schema as production.
type SchemaMigrator struct {
	migrationsDir string
}

// NewSchemaMigrator creates a migrator that applies schema migrations only
func NewSchemaMigrator(migrationsDir string) *SchemaMigrator {
	return &SchemaMigrator{
		migrationsDir: migrationsDir,
	}
}

func (m *SchemaMigrator) Hash() (string, error) {
	sqlMigrator := sqlmigrator.New(migrationSource(m.migrationsDir), migrationSet())

	baseHash, err := sqlMigrator.Hash()
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrMigrationHash, m.migrationsDir, err)
	}

	return schemaHashPrefix + baseHash, nil
}

func (m *SchemaMigrator) Migrate(_ context.Context, db *sql.DB, _ pgtestdb.Config) error {
	_, err := applyMigrations(db, m.migrationsDir)
	return err
}

// ApplyMigrations applies database migrations using sql-migrate with the provided pgx pool
// and returns how many were applied
func ApplyMigrations(pool *pgxpool.Pool, migrationsDir string) (int, error) {
	// Create sql.DB from the pgx pool for sql-migrate
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	return applyMigrations(db, migrationsDir)
}

// applyMigrations applies database migrations using sql-migrate
func applyMigrations(db *sql.DB, migrationsDir string) (int, error) {
	n, err := migrationSet().Exec(db, "postgres", migrationSource(migrationsDir), migrate.Up)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMigrationExecution, err)
	}
	return n, nil
}

func migrationSource(dir string) *migrate.FileMigrationSource {
	return &migrate.FileMigrationSource{Dir: dir}
}

func migrationSet() *migrate.MigrationSet {
	return &migrate.MigrationSet{TableName: migrationsTableName}
}
