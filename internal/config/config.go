// Package config loads the delayq process configuration.
//
// Values are resolved in three layers: envDefault tags, then the YAML file
// given with --config, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/delayq/pkg/db"
	"github.com/dmitrymomot/delayq/pkg/failed"
	"github.com/dmitrymomot/delayq/pkg/logger"
	"github.com/dmitrymomot/delayq/pkg/queue"
	"github.com/dmitrymomot/delayq/pkg/redis"
)

// Failure store backends.
const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreNone     = "none"
)

// Config is the whole process configuration.
type Config struct {
	Log      logger.Config `yaml:"log"`
	Redis    redis.Config  `yaml:"redis"`
	Database db.Config     `yaml:"database"`
	Queue    QueueConfig   `yaml:"queue"`
	Ops      OpsConfig     `yaml:"ops"`
	Failed   FailedConfig  `yaml:"failed"`

	// Worker is used when Workers is empty.
	Worker WorkerConfig `yaml:"worker"`

	Workers   []WorkerConfig   `env:"-" yaml:"workers"`
	Schedules []ScheduleConfig `env:"-" yaml:"schedules"`
}

// QueueConfig configures the queue driver.
type QueueConfig struct {
	Prefix            string        `env:"QUEUE_PREFIX" envDefault:"queues:" yaml:"prefix"`
	VisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT" envDefault:"60s" yaml:"visibility_timeout"`
	MigrationRetries  int           `env:"QUEUE_MIGRATION_RETRIES" envDefault:"10" yaml:"migration_retries"`
	LogFailures       bool          `env:"QUEUE_LOG_FAILURES" envDefault:"true" yaml:"log_failures"`
}

// Options converts the configuration into queue options.
func (c QueueConfig) Options() []queue.Option {
	return []queue.Option{
		queue.WithPrefix(c.Prefix),
		queue.WithVisibilityTimeout(c.VisibilityTimeout),
		queue.WithMigrationRetries(c.MigrationRetries),
		queue.WithLogFailures(c.LogFailures),
	}
}

// WorkerConfig describes a group of worker loops on one queue.
type WorkerConfig struct {
	Queue        string        `env:"WORKER_QUEUE" envDefault:"default" yaml:"queue"`
	Concurrency  int           `env:"WORKER_CONCURRENCY" envDefault:"1" yaml:"concurrency"`
	MaxAttempts  uint          `env:"WORKER_MAX_ATTEMPTS" envDefault:"10" yaml:"max_attempts"`
	MemoryLimit  uint64        `env:"WORKER_MEMORY_LIMIT_MB" envDefault:"512" yaml:"memory_limit_mb"`
	Sleep        time.Duration `env:"WORKER_SLEEP" envDefault:"3s" yaml:"sleep"`
	ReleaseDelay time.Duration `env:"WORKER_RELEASE_DELAY" envDefault:"0s" yaml:"release_delay"`
	MaxBackoff   time.Duration `env:"WORKER_MAX_BACKOFF" envDefault:"30s" yaml:"max_backoff"`
}

// UnmarshalYAML starts every worker entry from the envDefault values, so a
// workers list only needs the fields it changes.
func (c *WorkerConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain WorkerConfig
	def, err := env.ParseAsWithOptions[plain](env.Options{Environment: map[string]string{}})
	if err != nil {
		return err
	}
	if err := node.Decode(&def); err != nil {
		return err
	}
	*c = WorkerConfig(def)
	return nil
}

// Options converts the configuration into worker options.
// The queue name is applied by the caller.
func (c WorkerConfig) Options() []queue.WorkerOption {
	return []queue.WorkerOption{
		queue.WithMaxAttempts(c.MaxAttempts),
		queue.WithMemoryLimit(c.MemoryLimit),
		queue.WithSleep(c.Sleep),
		queue.WithReleaseDelay(c.ReleaseDelay),
		queue.WithMaxBackoff(c.MaxBackoff),
	}
}

// OpsConfig configures the ops HTTP server.
type OpsConfig struct {
	// Address is the listen address. Empty disables the server.
	Address         string        `env:"OPS_ADDRESS" envDefault:":9090" yaml:"address"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s" yaml:"shutdown_timeout"`
	Metrics         bool          `env:"OPS_METRICS" envDefault:"true" yaml:"metrics"`
}

// FailedConfig selects where failed jobs go.
type FailedConfig struct {
	// Store is the queryable store: redis, postgres or none.
	Store       string        `env:"FAILED_STORE" envDefault:"redis" yaml:"store"`
	RedisKey    string        `env:"FAILED_REDIS_KEY" envDefault:"queues:failed" yaml:"redis_key"`
	RedisMaxLen int64         `env:"FAILED_REDIS_MAX_LEN" envDefault:"10000" yaml:"redis_max_len"`
	Retention   time.Duration `env:"FAILED_RETENTION" envDefault:"720h" yaml:"retention"`

	// S3 archives every failed payload when a bucket is set.
	S3 failed.S3Config `yaml:"s3"`

	// Sentry reports every failure as an issue. Needs log.sentry.dsn.
	Sentry bool `env:"FAILED_SENTRY" yaml:"sentry"`
}

// ScheduleConfig pushes a named job on a cron schedule.
type ScheduleConfig struct {
	Spec    string         `yaml:"spec"`
	Handler string         `yaml:"handler"`
	Queue   string         `yaml:"queue"`
	Data    map[string]any `yaml:"data"`
}

// Load reads the configuration. path may be empty.
func Load(path string) (Config, error) {
	return load(path, env.ToMap(os.Environ()))
}

// noDefaults is a tag name no field carries, so envDefault is skipped.
const noDefaults = "-"

func load(path string, environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}}); err != nil {
		return Config{}, errors.Join(ErrParse, err)
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Join(ErrReadFile, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, errors.Join(ErrParse, err)
		}
	}

	// file values must survive this pass, so only set variables apply
	if err := env.ParseWithOptions(&cfg, env.Options{
		Environment:         environ,
		DefaultValueTagName: noDefaults,
	}); err != nil {
		return Config{}, errors.Join(ErrParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WorkerGroups returns Workers, or Worker alone when Workers is empty.
func (c Config) WorkerGroups() []WorkerConfig {
	if len(c.Workers) > 0 {
		return c.Workers
	}
	return []WorkerConfig{c.Worker}
}

// Validate reports the first problem found.
func (c Config) Validate() error {
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return errors.Join(ErrInvalid, err)
	}

	switch c.Failed.Store {
	case StoreRedis, StoreNone:
	case StorePostgres:
		if !c.Database.Enabled() {
			return fmt.Errorf("%w: failed.store is postgres but database.url is empty", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown failed.store %q", ErrInvalid, c.Failed.Store)
	}

	if c.Failed.Sentry && c.Log.Sentry.DSN == "" {
		return fmt.Errorf("%w: failed.sentry needs log.sentry.dsn", ErrInvalid)
	}

	for i, w := range c.WorkerGroups() {
		if w.Queue == "" {
			return fmt.Errorf("%w: worker %d has no queue", ErrInvalid, i)
		}
		if w.Concurrency < 1 {
			return fmt.Errorf("%w: worker %s needs a concurrency of at least 1", ErrInvalid, w.Queue)
		}
	}

	for i, s := range c.Schedules {
		if s.Spec == "" || s.Handler == "" {
			return fmt.Errorf("%w: schedule %d needs a spec and a handler", ErrInvalid, i)
		}
	}
	return nil
}
