package failed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKey = "queues:failed"

// RedisSink keeps failure records in a capped Redis list, newest first.
type RedisSink struct {
	client redis.UniversalClient
	key    string
	maxLen int64
}

// RedisOption configures a RedisSink.
type RedisOption func(*RedisSink)

// WithKey sets the list key. Default: "queues:failed".
func WithKey(key string) RedisOption {
	return func(s *RedisSink) {
		if key != "" {
			s.key = key
		}
	}
}

// WithMaxLen caps the number of kept records. Zero keeps everything.
// Default: 10000.
func WithMaxLen(n int64) RedisOption {
	return func(s *RedisSink) {
		if n >= 0 {
			s.maxLen = n
		}
	}
}

// NewRedisSink creates a Redis-backed store.
func NewRedisSink(client redis.UniversalClient, opts ...RedisOption) (*RedisSink, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: redis client is required", ErrInvalidConfig)
	}
	s := &RedisSink{client: client, key: defaultRedisKey, maxLen: 10000}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Log implements queue.FailureSink.
func (s *RedisSink) Log(ctx context.Context, queue string, payload []byte, cause error) error {
	rec := NewRecord(queue, payload, cause, timeNow())
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Join(ErrStoreFailed, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, s.key, data)
		if s.maxLen > 0 {
			pipe.LTrim(ctx, s.key, 0, s.maxLen-1)
		}
		return nil
	})
	if err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	return nil
}

// List returns up to limit records, newest first. limit <= 0 returns all.
func (s *RedisSink) List(ctx context.Context, limit int) ([]Record, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	items, err := s.client.LRange(ctx, s.key, 0, stop).Result()
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}

	records := make([]Record, 0, len(items))
	for _, item := range items {
		var rec Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Take removes the record with id and returns it.
func (s *RedisSink) Take(ctx context.Context, id string) (Record, error) {
	items, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return Record{}, errors.Join(ErrStoreFailed, err)
	}

	for _, item := range items {
		var rec Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil || rec.ID != id {
			continue
		}
		removed, err := s.client.LRem(ctx, s.key, 1, item).Result()
		if err != nil {
			return Record{}, errors.Join(ErrStoreFailed, err)
		}
		if removed == 0 {
			// taken by someone else in the meantime
			break
		}
		return rec, nil
	}
	return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
}

// Clear deletes every record and returns how many there were.
func (s *RedisSink) Clear(ctx context.Context) (int64, error) {
	var n *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		n = pipe.LLen(ctx, s.key)
		pipe.Del(ctx, s.key)
		return nil
	})
	if err != nil {
		return 0, errors.Join(ErrStoreFailed, err)
	}
	return n.Val(), nil
}
