package redis

import "errors"

var (
	ErrEmptyURL    = errors.New("redis: url is empty")
	ErrInvalidURL  = errors.New("redis: invalid url")
	ErrUnreachable = errors.New("redis: server unreachable")
	ErrPingFailed  = errors.New("redis: ping failed")
)
