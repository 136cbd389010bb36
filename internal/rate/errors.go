package rate

import "errors"

var (
	// ErrRateLimited is returned once a client exceeds its failed-authentication budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis transport failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
