package db

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/lock"
)

// Migrate applies the goose SQL migrations found in dir of fsys and records
// them in table. A Postgres advisory lock serialises concurrent runs, so every
// worker process can call Migrate on startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, dir, table string, log *slog.Logger) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return errors.Join(ErrMigratorSetup, err)
	}
	locker, err := lock.NewPostgresSessionLocker()
	if err != nil {
		return errors.Join(ErrMigratorSetup, err)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	// The sql.DB shares the pool's connections; closing it would close the pool.
	sqlDB := stdlib.OpenDBFromPool(pool)

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, sub,
		goose.WithTableName(table),
		goose.WithSessionLocker(locker),
		goose.WithDisableGlobalRegistry(true),
		goose.WithSlog(log),
	)
	if err != nil {
		return errors.Join(ErrMigratorSetup, err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	for _, r := range results {
		log.InfoContext(ctx, "migration applied",
			slog.String("path", r.Source.Path),
			slog.Int64("version", r.Source.Version),
			slog.Duration("duration", r.Duration),
		)
	}
	return nil
}
