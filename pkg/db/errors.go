package db

import "errors"

var (
	ErrInvalidConfig   = errors.New("db: invalid pool configuration")
	ErrUnreachable     = errors.New("db: database unreachable")
	ErrPingFailed      = errors.New("db: ping failed")
	ErrMigratorSetup   = errors.New("db: failed to set up migrator")
	ErrMigrationFailed = errors.New("db: migration failed")
)
