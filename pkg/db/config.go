package db

import "time"

// Config holds the Postgres pool settings used by the failed-job store.
type Config struct {
	ConnectionString string `env:"DATABASE_URL" yaml:"url"`

	HealthCheckPeriod time.Duration `env:"DATABASE_HEALTHCHECK_PERIOD" envDefault:"1m" yaml:"healthcheck_period"`
	MaxConnIdleTime   time.Duration `env:"DATABASE_MAX_CONN_IDLE_TIME" envDefault:"10m" yaml:"max_conn_idle_time"`
	MaxConnLifetime   time.Duration `env:"DATABASE_MAX_CONN_LIFETIME" envDefault:"30m" yaml:"max_conn_lifetime"`

	// Startup retries wait RetryInterval, then 2x, then 3x and so on.
	RetryAttempts int           `env:"DATABASE_RETRY_ATTEMPTS" envDefault:"3" yaml:"retry_attempts"`
	RetryInterval time.Duration `env:"DATABASE_RETRY_INTERVAL" envDefault:"5s" yaml:"retry_interval"`

	// A failure sink writes one row per failed job, so a small pool is plenty.
	MaxOpenConns int32 `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"4" yaml:"max_open_conns"`
	MinConns     int32 `env:"DATABASE_MIN_CONNS" envDefault:"1" yaml:"min_conns"`
}

// Enabled reports whether a connection string is configured.
func (c Config) Enabled() bool {
	return c.ConnectionString != ""
}
