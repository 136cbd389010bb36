package revocation

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zeebo/blake3"
)

// ErrStoreUnavailable wraps backend failures.
var ErrStoreUnavailable = errors.New("revocation store unavailable")

// Entry is one denylisted token.
type Entry struct {
	Fingerprint string
	ExpiresAt   time.Time
}

// Store is the denylist consulted on every verification.
type Store interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
	Revoke(ctx context.Context, token string, ttl time.Duration) (Entry, error)
	Count(ctx context.Context) (int64, error)
	Cleanup(ctx context.Context) (int64, error)
}

// Fingerprint returns the hex BLAKE3-256 digest of token.
func Fingerprint(token string) string {
	sum := blake3.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Option configures a [RedisStore].
type Option func(*RedisStore)

// WithClock overrides the time source used for expiry scores.
func WithClock(now func() time.Time) Option {
	return func(s *RedisStore) {
		if now != nil {
			s.now = now
		}
	}
}

// RedisStore keeps one key per fingerprint plus an expiry index.
type RedisStore struct {
	redis      redis.UniversalClient
	prefix     string
	defaultTTL time.Duration
	now        func() time.Time
}

// NewRedisStore creates a store under prefix. defaultTTL applies when a
// caller passes a non-positive ttl.
func NewRedisStore(client redis.UniversalClient, prefix string, defaultTTL time.Duration, opts ...Option) *RedisStore {
	s := &RedisStore{
		redis:      client,
		prefix:     prefix,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) entryKey(fp string) string {
	return s.prefix + ":" + fp
}

func (s *RedisStore) indexKey() string {
	return s.prefix + ":index"
}

// Revoke denylists token for ttl.
func (s *RedisStore) Revoke(ctx context.Context, token string, ttl time.Duration) (Entry, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	entry := Entry{
		Fingerprint: Fingerprint(token),
		ExpiresAt:   s.now().Add(ttl),
	}
	if err := s.RevokeFingerprint(ctx, entry.Fingerprint, entry.ExpiresAt); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// RevokeFingerprint denylists an already-computed fingerprint until expiresAt.
func (s *RedisStore) RevokeFingerprint(ctx context.Context, fp string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl < time.Millisecond {
		return nil
	}
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.entryKey(fp), expiresAt.UnixMilli(), ttl)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(expiresAt.UnixMilli()), Member: fp})
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

const claimScript = `
if not redis.call("SET", KEYS[1], ARGV[1], "NX", "PX", ARGV[2]) then
  return 0
end
redis.call("ZADD", KEYS[2], ARGV[1], ARGV[3])
return 1
`

var claimLua = redis.NewScript(claimScript)

// Claim denylists fp until expiresAt only if it is not already present, and
// reports whether this call inserted it. Of concurrent callers for the same
// fingerprint exactly one wins. Entries are held for at least minClaimTTL.
func (s *RedisStore) Claim(ctx context.Context, fp string, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(s.now())
	if ttl < minClaimTTL {
		ttl = minClaimTTL
	}
	n, err := claimLua.Run(ctx, s.redis,
		[]string{s.entryKey(fp), s.indexKey()},
		expiresAt.UnixMilli(), ttl.Milliseconds(), fp,
	).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n == 1, nil
}

const minClaimTTL = time.Minute

// IsRevoked reports whether token is on the denylist.
func (s *RedisStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.entryKey(Fingerprint(token))).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

// Count returns the number of unexpired entries.
func (s *RedisStore) Count(ctx context.Context) (int64, error) {
	lower := "(" + strconv.FormatInt(s.now().UnixMilli(), 10)
	n, err := s.redis.ZCount(ctx, s.indexKey(), lower, "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

// Cleanup removes expired entries from the index and returns how many were pruned.
func (s *RedisStore) Cleanup(ctx context.Context) (int64, error) {
	upper := strconv.FormatInt(s.now().UnixMilli(), 10)
	n, err := s.redis.ZRemRangeByScore(ctx, s.indexKey(), "-inf", upper).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}
