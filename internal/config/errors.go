package config

import "errors"

var (
	ErrMissingDatabaseURL   = errors.New("DATABASE_URL is required")
	ErrUnknownQueueBackend  = errors.New("queue backend must be dir or redis")
	ErrRedisQueueWithoutURL = errors.New("redis queue backend requires REDIS_URL")
)
