package secret

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned by [Store.Load] when no state has been persisted yet.
	ErrNotFound = errors.New("secret state not found")
	// ErrStoreUnavailable wraps backend failures.
	ErrStoreUnavailable = errors.New("secret store unavailable")
	// ErrVersionConflict is returned when the stored state is already at or past the written version.
	ErrVersionConflict = errors.New("secret state version conflict")
	// ErrCorruptState is returned when the persisted record cannot be decoded.
	ErrCorruptState = errors.New("secret state corrupt")
)

// Store persists the signing-secret state.
type Store interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, s *State) error
}

const saveStateScript = `
local function read_be64(s, i)
  local b1 = string.byte(s, i)
  local b2 = string.byte(s, i + 1)
  local b3 = string.byte(s, i + 2)
  local b4 = string.byte(s, i + 3)
  local b5 = string.byte(s, i + 4)
  local b6 = string.byte(s, i + 5)
  local b7 = string.byte(s, i + 6)
  local b8 = string.byte(s, i + 7)
  if not b8 then
    return nil
  end
  return ((((((((b1 * 256) + b2) * 256 + b3) * 256 + b4) * 256 + b5) * 256 + b6) * 256 + b7) * 256 + b8)
end

local existing = redis.call("GET", KEYS[1])
if existing then
  local stored = read_be64(existing, 1)
  if stored and stored >= tonumber(ARGV[1]) then
    return 0
  end
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`

var saveStateLua = redis.NewScript(saveStateScript)

// RedisStore keeps the state under a single key.
type RedisStore struct {
	redis redis.UniversalClient
	key   string
}

// NewRedisStore creates a [RedisStore] using key.
func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	return &RedisStore{redis: client, key: key}
}

// Key returns the Redis key holding the record.
func (s *RedisStore) Key() string {
	return s.key
}

// Load fetches and decodes the persisted state.
func (s *RedisStore) Load(ctx context.Context) (*State, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	st, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	return st, nil
}

// Save writes s only when the stored version is older. The record expires
// after twice the rotation interval.
func (s *RedisStore) Save(ctx context.Context, st *State) error {
	data, err := Encode(st)
	if err != nil {
		return err
	}

	ttl := 2 * st.RotationInterval
	if ttl < time.Second {
		ttl = time.Second
	}

	res, err := saveStateLua.Run(
		ctx,
		s.redis,
		[]string{s.key},
		strconv.FormatUint(st.Version, 10),
		data,
		strconv.FormatInt(ttl.Milliseconds(), 10),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if res == 0 {
		return ErrVersionConflict
	}
	return nil
}

// MemoryStore is a process-local [Store] for single-instance deployments and tests.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
	err  error
}

// NewMemoryStore returns an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// FailWith makes every subsequent call return err until cleared with nil.
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Load implements [Store].
func (m *MemoryStore) Load(context.Context) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, m.err)
	}
	if m.data == nil {
		return nil, ErrNotFound
	}
	return Decode(m.data)
}

// Save implements [Store] with the same version rule as [RedisStore].
func (m *MemoryStore) Save(_ context.Context, st *State) error {
	data, err := Encode(st)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, m.err)
	}
	if m.data != nil {
		if cur, err := Decode(m.data); err == nil && cur.Version >= st.Version {
			return ErrVersionConflict
		}
	}
	m.data = data
	return nil
}
