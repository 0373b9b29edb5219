package failed

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/delayq/pkg/db"
)

//go:embed migrations/*.sql
var migrations embed.FS

// MigrationsTable is the goose version table used by Migrate.
const MigrationsTable = "delayq_migrations"

// Migrate creates the failed_jobs table.
func Migrate(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger) error {
	return db.Migrate(ctx, pool, migrations, "migrations", MigrationsTable, log)
}

// PostgresSink keeps failure records in the failed_jobs table.
// Run Migrate before using it.
type PostgresSink struct {
	pool      *pgxpool.Pool
	retention time.Duration
}

// PostgresOption configures a PostgresSink.
type PostgresOption func(*PostgresSink)

// WithRetention removes records older than d whenever a new one is written.
// Zero keeps everything.
func WithRetention(d time.Duration) PostgresOption {
	return func(s *PostgresSink) {
		if d >= 0 {
			s.retention = d
		}
	}
}

// NewPostgresSink creates a Postgres-backed store.
func NewPostgresSink(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresSink, error) {
	if pool == nil {
		return nil, fmt.Errorf("%w: postgres pool is required", ErrInvalidConfig)
	}
	s := &PostgresSink{pool: pool}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

const (
	insertRecord = `INSERT INTO failed_jobs (id, queue, job_id, payload, error, failed_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	pruneRecords  = `DELETE FROM failed_jobs WHERE failed_at < $1`
	selectRecords = `SELECT id::text, queue, job_id, payload, error, failed_at
FROM failed_jobs ORDER BY failed_at DESC, id`
	takeRecord = `DELETE FROM failed_jobs WHERE id = $1
RETURNING id::text, queue, job_id, payload, error, failed_at`
	clearRecords = `DELETE FROM failed_jobs`
)

// Log implements queue.FailureSink.
func (s *PostgresSink) Log(ctx context.Context, queue string, payload []byte, cause error) error {
	rec := NewRecord(queue, payload, cause, timeNow())

	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertRecord,
			rec.ID, rec.Queue, rec.JobID, rec.Payload, rec.Error, rec.FailedAt,
		); err != nil {
			return err
		}
		if s.retention > 0 {
			if _, err := tx.Exec(ctx, pruneRecords, rec.FailedAt.Add(-s.retention)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	return nil
}

// List returns up to limit records, newest first. limit <= 0 returns all.
func (s *PostgresSink) List(ctx context.Context, limit int) ([]Record, error) {
	query := selectRecords
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	return records, nil
}

// Take removes the record with id and returns it.
func (s *PostgresSink) Take(ctx context.Context, id string) (Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	rows, err := s.pool.Query(ctx, takeRecord, id)
	if err != nil {
		return Record{}, errors.Join(ErrStoreFailed, err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, scanRecord)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return Record{}, errors.Join(ErrStoreFailed, err)
	}
	return rec, nil
}

// Clear deletes every record and returns how many there were.
func (s *PostgresSink) Clear(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, clearRecords)
	if err != nil {
		return 0, errors.Join(ErrStoreFailed, err)
	}
	return tag.RowsAffected(), nil
}

func scanRecord(row pgx.CollectableRow) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.Queue, &rec.JobID, &rec.Payload, &rec.Error, &rec.FailedAt)
	return rec, err
}
