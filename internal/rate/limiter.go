package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter tuning parameters.
type Config struct {
	MaxFailures int
	Window      time.Duration
}

// Limiter enforces a per-client budget of failed bearer authentications using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Check returns ErrRateLimited when the client has exhausted its failure budget.
// An empty client key is never limited.
func (l *Limiter) Check(ctx context.Context, client string) error {
	if l == nil || client == "" {
		return nil
	}

	count, err := l.redis.Get(ctx, failureKey(client)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(l.config.MaxFailures) {
		return ErrRateLimited
	}

	return nil
}

// RecordFailure counts one failed authentication for the client.
func (l *Limiter) RecordFailure(ctx context.Context, client string) error {
	if l == nil || client == "" {
		return nil
	}

	count, err := l.redis.Incr(ctx, failureKey(client)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, failureKey(client), l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return nil
}

// Failures returns the current counter for a client. Missing keys return zero.
func (l *Limiter) Failures(ctx context.Context, client string) (int, error) {
	count, err := l.redis.Get(ctx, failureKey(client)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func failureKey(client string) string {
	return "aaf:" + client
}
