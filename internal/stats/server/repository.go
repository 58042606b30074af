package server

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/Shivanand-hulikatti/event-participation/internal/database"
	"github.com/Shivanand-hulikatti/event-participation/internal/model"
	"github.com/cenkalti/backoff/v5"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	goosedb "github.com/pressly/goose/v3/database"
	"github.com/sirupsen/logrus"
)

// VersionTable keeps the hits schema versions apart from the main service's
// goose table, so both can migrate one database.
const VersionTable = "stats_goose_db_version"

//go:embed migrations/*.sql
var migrations embed.FS

func migrate(ctx context.Context, db *sql.DB, dialect goosedb.Dialect) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	_, err = database.Up(ctx, db, dialect, fsys, VersionTable)
	return err
}

// Open connects to the stats database, retrying while it starts up, and
// applies pending migrations.
func Open(ctx context.Context, cfg database.Config, log logrus.FieldLogger) (*sqlx.DB, error) {
	connect := func() (*sqlx.DB, error) {
		return sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	}
	attempts := cfg.ConnectAttempts
	if attempts == 0 {
		attempts = 1
	}
	db, err := backoff.Retry(ctx, connect,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(attempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.WithError(err).WithField("retry_in", next).Warn("stats db connect attempt failed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to stats db: %w", err)
	}
	db.SetMaxOpenConns(int(cfg.MaxConns))
	db.SetMaxIdleConns(int(cfg.MinConns))
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)

	if err := migrate(ctx, db.DB, goosedb.DialectPostgres); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// HitRepository stores hits and aggregates them into view counts.
type HitRepository struct {
	db *sqlx.DB
}

// NewHitRepository constructs a HitRepository.
func NewHitRepository(db *sqlx.DB) *HitRepository {
	return &HitRepository{db: db}
}

// Save inserts one hit.
func (r *HitRepository) Save(ctx context.Context, hit model.Hit) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO hits (app, uri, ip, timestamp) VALUES ($1, $2, $3, $4)`,
		hit.App, hit.URI, hit.IP, hit.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert hit: %w", err)
	}
	return nil
}

const viewsQuery = `SELECT app, uri, %s AS hits
	FROM hits
	WHERE timestamp BETWEEN $1 AND $2
	  AND ($3::text[] IS NULL OR cardinality($3::text[]) = 0 OR uri = ANY($3::text[]))
	GROUP BY app, uri
	ORDER BY hits DESC, uri`

// Views counts hits per (app, uri) between start and end inclusive. An empty
// uris matches every uri. With unique set each ip is counted once per uri.
func (r *HitRepository) Views(ctx context.Context, start, end time.Time, uris []string, unique bool) ([]model.ViewStats, error) {
	count := "COUNT(ip)"
	if unique {
		count = "COUNT(DISTINCT ip)"
	}

	out := []model.ViewStats{}
	err := r.db.SelectContext(ctx, &out, fmt.Sprintf(viewsQuery, count),
		start.UTC(), end.UTC(), pq.Array(uris),
	)
	if err != nil {
		return nil, fmt.Errorf("select views: %w", err)
	}
	return out, nil
}
