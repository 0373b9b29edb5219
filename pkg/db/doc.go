// Package db connects to PostgreSQL for the failed-job store.
//
// It wraps [github.com/jackc/pgx/v5/pgxpool] with startup retries, a
// readiness check, a transaction helper and goose migrations.
//
// # Configuration
//
//	DATABASE_URL                - connection URL, Postgres is disabled when empty
//	DATABASE_MAX_OPEN_CONNS     - maximum open connections (default: 4)
//	DATABASE_MIN_CONNS          - minimum idle connections (default: 1)
//	DATABASE_HEALTHCHECK_PERIOD - pool health check interval (default: 1m)
//	DATABASE_MAX_CONN_IDLE_TIME - maximum connection idle time (default: 10m)
//	DATABASE_MAX_CONN_LIFETIME  - maximum connection lifetime (default: 30m)
//	DATABASE_RETRY_ATTEMPTS     - connection attempts on startup (default: 3)
//	DATABASE_RETRY_INTERVAL     - base retry interval (default: 5s)
//
// # Usage
//
//	pool, err := db.Connect(ctx, cfg.Database)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	//go:embed migrations/*.sql
//	var migrations embed.FS
//
//	err = db.Migrate(ctx, pool, migrations, "migrations", "delayq_migrations", log)
//
//	err = db.WithTx(ctx, pool, func(tx pgx.Tx) error {
//		_, err := tx.Exec(ctx, "DELETE FROM failed_jobs WHERE failed_at < $1", cutoff)
//		return err
//	})
//
// # Error Handling
//
//   - [ErrInvalidConfig] - invalid connection string
//   - [ErrUnreachable] - connection failed after all retries
//   - [ErrPingFailed] - ping failed
//   - [ErrMigratorSetup] - goose provider could not be created
//   - [ErrMigrationFailed] - a migration failed
package db
