package adminauth

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type lastSeenUpdate struct {
	adminID string
	at      time.Time
}

// lastSeenUpdater writes last-seen timestamps off the request path. Updates fail
// open: a full buffer or a store error never affects authentication.
type lastSeenUpdater struct {
	store   LastSeenStore
	timeout time.Duration
	now     func() time.Time
	metrics *Metrics
	logger  *slog.Logger

	ch        chan lastSeenUpdate
	done      chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func newLastSeenUpdater(store LastSeenStore, cfg LastSeenConfig, now func() time.Time, metrics *Metrics, logger *slog.Logger) *lastSeenUpdater {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	u := &lastSeenUpdater{
		store:   store,
		timeout: cfg.Timeout,
		now:     now,
		metrics: metrics,
		logger:  logger,
		ch:      make(chan lastSeenUpdate, cfg.BufferSize),
		done:    make(chan struct{}),
	}
	u.wg.Add(1)
	go u.run()
	return u
}

// RecordLastSeen queues an update. It never blocks.
func (u *lastSeenUpdater) RecordLastSeen(adminID string) {
	if u == nil || adminID == "" {
		return
	}
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.closed {
		return
	}
	select {
	case u.ch <- lastSeenUpdate{adminID: adminID, at: u.now()}:
	default:
		u.metrics.Inc(MetricLastSeenDropped)
	}
}

func (u *lastSeenUpdater) run() {
	defer u.wg.Done()
	for {
		select {
		case up := <-u.ch:
			u.write(up)
		case <-u.done:
			for {
				select {
				case up := <-u.ch:
					u.write(up)
				default:
					return
				}
			}
		}
	}
}

func (u *lastSeenUpdater) write(up lastSeenUpdate) {
	ctx, cancel := context.WithTimeout(context.Background(), u.timeout)
	defer cancel()
	if err := u.store.TouchLastSeen(ctx, up.adminID, up.at); err != nil {
		u.logger.Warn("last seen update failed", "admin_id", up.adminID, "error", err)
	}
}

// Close drains queued updates and stops the worker.
func (u *lastSeenUpdater) Close() {
	if u == nil {
		return
	}
	u.closeOnce.Do(func() {
		u.mu.Lock()
		u.closed = true
		u.mu.Unlock()
		close(u.done)
		u.wg.Wait()
	})
}
