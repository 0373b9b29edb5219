// Package redis connects to the Redis server that stores the queues.
//
// It wraps [github.com/redis/go-redis/v9] with a configuration struct,
// startup retries, a readiness check and a shutdown hook.
//
// # Configuration
//
//	REDIS_URL            - redis:// or rediss:// URL (default: redis://localhost:6379/0)
//	REDIS_POOL_SIZE      - maximum connections (default: 10)
//	REDIS_MIN_IDLE_CONNS - idle connections kept open (default: 2)
//	REDIS_MAX_IDLE_TIME  - maximum connection idle time (default: 10m)
//	REDIS_MAX_LIFETIME   - maximum connection lifetime (default: 30m)
//	REDIS_DIAL_TIMEOUT   - dial timeout (default: 5s)
//	REDIS_READ_TIMEOUT   - read timeout (default: 3s)
//	REDIS_WRITE_TIMEOUT  - write timeout (default: 3s)
//	REDIS_RETRY_ATTEMPTS - connection attempts on startup (default: 3)
//	REDIS_RETRY_INTERVAL - base retry interval (default: 2s)
//
// # Usage
//
//	client, err := redis.Connect(ctx, cfg.Redis)
//	if err != nil {
//		return err
//	}
//
//	q, err := queue.New(client)
//
//	checks := health.Checks{"redis": redis.Healthcheck(client)}
package redis
