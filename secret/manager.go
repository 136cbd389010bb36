package secret

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/adminauth/internal"
	"golang.org/x/crypto/hkdf"
)

const seedInfo = "adminauth signing secret v1"

// ErrNotInitialized is returned by operations that need a loaded state.
var ErrNotInitialized = errors.New("secret manager not initialized")

// Config controls rotation timing.
type Config struct {
	// Seed derives the first secret when no state is persisted. Empty means random.
	Seed             []byte
	RotationInterval time.Duration
	// GracePeriod is how long the previous secret keeps verifying after a rotation.
	// Zero means RotationInterval. Capped at 2 x RotationInterval.
	GracePeriod     time.Duration
	StoreTimeout    time.Duration
	RotationTimeout time.Duration
	CheckInterval   time.Duration
}

func (c Config) normalized() (Config, error) {
	if c.RotationInterval <= 0 {
		return c, errors.New("secret: rotation interval must be > 0")
	}
	if c.GracePeriod < 0 {
		return c, errors.New("secret: grace period must be >= 0")
	}
	if c.GracePeriod == 0 {
		c.GracePeriod = c.RotationInterval
	}
	if c.GracePeriod > 2*c.RotationInterval {
		c.GracePeriod = 2 * c.RotationInterval
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 2 * time.Second
	}
	if c.RotationTimeout <= 0 {
		c.RotationTimeout = 10 * time.Second
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = time.Minute
	}
	return c, nil
}

// Record describes one completed rotation.
type Record struct {
	ID           string
	Version      uint64
	Forced       bool
	Actor        string
	RotatedAt    time.Time
	NextRotation time.Time
}

// Observer receives lifecycle notifications. Calls happen with the manager's
// writer lock held and must not call back into the manager.
type Observer interface {
	Rotated(rec Record)
	RotationFailed(forced bool, actor string, err error)
	Retired(version uint64)
}

// Option configures a [Manager].
type Option func(*Manager)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithObserver registers o for rotation events.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager owns the signing-secret state. Readers use [Manager.Snapshot] or
// [Manager.SigningKeys] without locking; writers are serialized.
type Manager struct {
	store    Store
	cfg      Config
	state    atomic.Pointer[State]
	mu       sync.Mutex
	now      func() time.Time
	logger   *slog.Logger
	observer Observer
	pending  []func(Observer)
}

// NewManager validates cfg and returns an uninitialized manager.
func NewManager(store Store, cfg Config, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("secret: store is nil")
	}
	norm, err := cfg.normalized()
	if err != nil {
		return nil, err
	}
	m := &Manager{
		store:  store,
		cfg:    norm,
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// GracePeriod returns the effective grace window.
func (m *Manager) GracePeriod() time.Duration {
	return m.cfg.GracePeriod
}

// Snapshot returns the live state or nil before [Manager.Initialize]. The
// returned value must not be modified.
func (m *Manager) Snapshot() *State {
	return m.state.Load()
}

// SigningKeys returns current and previous from a single snapshot.
func (m *Manager) SigningKeys() (current, previous []byte) {
	st := m.state.Load()
	if st == nil {
		return nil, nil
	}
	return st.Current, st.Previous
}

// notify queues an observer callback. Callbacks run after mu is released.
func (m *Manager) notify(fn func(Observer)) {
	if m.observer != nil {
		m.pending = append(m.pending, fn)
	}
}

func (m *Manager) unlock() {
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, fn := range pending {
		fn(m.observer)
	}
}

// Initialize loads the persisted state or seeds a new one, then rotates at
// once when the loaded state is overdue.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.unlock()

	st, err := m.load(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		st, err = m.seed(ctx)
		if err != nil {
			return err
		}
	case err != nil:
		return err
	}

	if st.RotationInterval != m.cfg.RotationInterval {
		m.logger.Info("secret rotation interval changed",
			"persisted", st.RotationInterval, "configured", m.cfg.RotationInterval)
		st = st.withInterval(m.cfg.RotationInterval)
	}
	m.state.Store(st)
	m.logger.Info("secret state loaded", "version", st.Version, "next_rotation", st.NextRotation)

	now := m.now()
	if st.Due(now) {
		if _, err := m.rotateLocked(ctx, false, "initialize"); err != nil {
			m.logger.Warn("overdue rotation failed, keeping persisted secret", "error", err)
		}
		return nil
	}
	if _, err := m.retireLocked(ctx); err != nil {
		m.logger.Warn("secret retirement failed", "error", err)
	}
	return nil
}

func (m *Manager) load(ctx context.Context) (*State, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.StoreTimeout)
	defer cancel()
	return m.store.Load(ctx)
}

func (m *Manager) seed(ctx context.Context) (*State, error) {
	current, err := m.initialSecret()
	if err != nil {
		return nil, err
	}
	now := m.now().UTC()
	st := &State{
		Current:          current,
		LastRotation:     now,
		RotationInterval: m.cfg.RotationInterval,
		NextRotation:     now.Add(m.cfg.RotationInterval),
		Version:          1,
	}

	saveCtx, cancel := context.WithTimeout(ctx, m.cfg.StoreTimeout)
	defer cancel()
	err = m.store.Save(saveCtx, st)
	if errors.Is(err, ErrVersionConflict) {
		// another replica seeded first
		return m.load(ctx)
	}
	if err != nil {
		return nil, err
	}
	m.logger.Info("secret state seeded", "derived", len(m.cfg.Seed) > 0)
	return st, nil
}

func (m *Manager) initialSecret() ([]byte, error) {
	if len(m.cfg.Seed) == 0 {
		return internal.NewSecret(internal.MinSecretSize)
	}
	out := make([]byte, internal.MinSecretSize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, m.cfg.Seed, nil, []byte(seedInfo)), out); err != nil {
		return nil, err
	}
	return out, nil
}

// Rotate runs a scheduled rotation.
func (m *Manager) Rotate(ctx context.Context) (Record, error) {
	m.mu.Lock()
	defer m.unlock()
	return m.rotateLocked(ctx, false, "scheduler")
}

// ForceRotate rotates immediately on behalf of actor.
func (m *Manager) ForceRotate(ctx context.Context, actor string) (Record, error) {
	m.mu.Lock()
	defer m.unlock()
	return m.rotateLocked(ctx, true, actor)
}

// rotateLocked persists the rotated state before publishing it. On any
// failure the live snapshot is left untouched.
func (m *Manager) rotateLocked(ctx context.Context, forced bool, actor string) (Record, error) {
	cur := m.state.Load()
	if cur == nil {
		return Record{}, ErrNotInitialized
	}

	fail := func(err error) (Record, error) {
		m.logger.Error("secret rotation failed", "forced", forced, "actor", actor, "version", cur.Version, "error", err)
		m.notify(func(o Observer) { o.RotationFailed(forced, actor, err) })
		return Record{}, err
	}

	secret, err := internal.NewSecret(internal.MinSecretSize)
	if err != nil {
		return fail(err)
	}
	next := cur.rotated(secret, m.now().UTC())

	saveCtx, cancel := context.WithTimeout(ctx, m.cfg.RotationTimeout)
	defer cancel()
	if err := m.store.Save(saveCtx, next); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			if adopted, syncErr := m.syncLocked(ctx); syncErr == nil && adopted {
				err = fmt.Errorf("%w: adopted version %d", err, m.state.Load().Version)
			}
		}
		return fail(err)
	}

	m.state.Store(next)
	rec := Record{
		ID:           internal.NewID(),
		Version:      next.Version,
		Forced:       forced,
		Actor:        actor,
		RotatedAt:    next.LastRotation,
		NextRotation: next.NextRotation,
	}
	m.logger.Info("secret rotated", "rotation_id", rec.ID, "version", rec.Version, "forced", forced, "actor", actor)
	m.notify(func(o Observer) { o.Rotated(rec) })
	return rec, nil
}

// RetireExpired drops the previous secret once the grace period has elapsed.
func (m *Manager) RetireExpired(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.unlock()
	return m.retireLocked(ctx)
}

func (m *Manager) retireLocked(ctx context.Context) (bool, error) {
	cur := m.state.Load()
	if cur == nil {
		return false, ErrNotInitialized
	}
	if !cur.HasPrevious() || m.now().Before(cur.LastRotation.Add(m.cfg.GracePeriod)) {
		return false, nil
	}

	next := cur.retired()
	saveCtx, cancel := context.WithTimeout(ctx, m.cfg.StoreTimeout)
	defer cancel()
	if err := m.store.Save(saveCtx, next); err != nil {
		return false, err
	}
	m.state.Store(next)
	m.logger.Info("previous secret retired", "version", next.Version)
	m.notify(func(o Observer) { o.Retired(next.Version) })
	return true, nil
}

// Sync adopts a newer persisted state written by another instance.
func (m *Manager) Sync(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.unlock()
	return m.syncLocked(ctx)
}

func (m *Manager) syncLocked(ctx context.Context) (bool, error) {
	st, err := m.load(ctx)
	if err != nil {
		return false, err
	}
	cur := m.state.Load()
	if cur != nil && st.Version <= cur.Version {
		return false, nil
	}
	if st.RotationInterval != m.cfg.RotationInterval {
		st = st.withInterval(m.cfg.RotationInterval)
	}
	m.state.Store(st)
	m.logger.Info("adopted persisted secret state", "version", st.Version)
	return true, nil
}

// Tick runs one scheduler step: adopt, then rotate if due, else retire.
func (m *Manager) Tick(ctx context.Context) {
	m.mu.Lock()
	defer m.unlock()

	if _, err := m.syncLocked(ctx); err != nil && !errors.Is(err, ErrNotFound) {
		m.logger.Warn("secret state sync failed", "error", err)
	}
	cur := m.state.Load()
	if cur == nil {
		return
	}
	if cur.Due(m.now()) {
		_, _ = m.rotateLocked(ctx, false, "scheduler")
		return
	}
	if _, err := m.retireLocked(ctx); err != nil {
		m.logger.Warn("secret retirement failed", "error", err)
	}
}

// Run calls [Manager.Tick] every CheckInterval until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}
