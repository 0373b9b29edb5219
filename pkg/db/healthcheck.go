package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Healthcheck returns a readiness check that pings the pool.
func Healthcheck(pool *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		if pool == nil {
			return ErrPingFailed
		}
		if err := pool.Ping(ctx); err != nil {
			return errors.Join(ErrPingFailed, err)
		}
		return nil
	}
}
