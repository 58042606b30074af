package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	goosedb "github.com/pressly/goose/v3/database"
	"github.com/sirupsen/logrus"
)

// VersionTable is the goose bookkeeping table of the main schema. Other
// schemas sharing the database must record their versions elsewhere.
const VersionTable = goose.DefaultTablename

//go:embed migrations/*.sql
var migrations embed.FS

// Schema returns the main service migrations.
func Schema() (fs.FS, error) {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrations fs: %w", err)
	}
	return fsys, nil
}

// Up applies the pending migrations in fsys, keeping their versions in table.
func Up(ctx context.Context, db *sql.DB, dialect goosedb.Dialect, fsys fs.FS, table string) ([]*goose.MigrationResult, error) {
	store, err := goosedb.NewStore(dialect, table)
	if err != nil {
		return nil, fmt.Errorf("goose store %s: %w", table, err)
	}
	provider, err := goose.NewProvider("", db, fsys, goose.WithStore(store))
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose up: %w", err)
	}
	return results, nil
}

// Migrate applies every pending schema migration through pool.
func Migrate(ctx context.Context, pool *pgxpool.Pool, log logrus.FieldLogger) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	fsys, err := Schema()
	if err != nil {
		return err
	}
	results, err := Up(ctx, db, goosedb.DialectPostgres, fsys, VersionTable)
	if err != nil {
		return err
	}
	for _, r := range results {
		log.WithFields(logrus.Fields{
			"version":  r.Source.Version,
			"duration": r.Duration,
		}).Info("migration applied")
	}
	return nil
}
