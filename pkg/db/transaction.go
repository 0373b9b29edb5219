package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WithTx runs fn inside a transaction. It commits when fn returns nil and
// rolls back otherwise. A panic in fn rolls back and is re-raised.
//
// The failed-job sink uses it to insert a record and prune expired ones in
// one step:
//
//	err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
//	    if _, err := tx.Exec(ctx, insertSQL, args...); err != nil {
//	        return err
//	    }
//	    _, err := tx.Exec(ctx, pruneSQL, cutoff)
//	    return err
//	})
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) (err error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return errors.Join(ErrUnreachable, err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		// rollback after Commit or a closed tx reports ErrTxClosed
		rbErr := tx.Rollback(context.WithoutCancel(ctx))
		if p := recover(); p != nil {
			panic(p)
		}
		if rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			err = errors.Join(err, rbErr)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return err
	}
	committed = true
	return nil
}
