package permission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 500 * time.Millisecond

// ErrSuperAdminChanged rejects a reloaded role file that names a different super admin.
var ErrSuperAdminChanged = errors.New("permission: role file changes the super admin role")

// WatchRoleFile starts watching path and returns once the watch is in place.
// Until ctx is done, every change reloads the file into r. The parent directory
// is watched so editors that replace the file by rename are picked up. A file
// that fails to parse or names a different super admin leaves the current table
// in place. onReload, if non-nil, is called after each attempt.
func WatchRoleFile(ctx context.Context, path string, r *Resolver, logger *slog.Logger, onReload func(error)) error {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return err
	}

	reload := make(chan struct{}, 1)
	go scheduleReload(ctx, reload, func() {
		t, err := ReloadRoleFile(path, r)
		if err != nil {
			logger.Warn("role file reload failed, keeping current table", "path", path, "error", err)
		} else {
			logger.Info("role table reloaded", "path", path, "roles", len(t.Roles()))
		}
		if onReload != nil {
			onReload(err)
		}
	})
	go handleWatcher(ctx, watcher, filepath.Clean(path), reload, logger)
	return nil
}

// ReloadRoleFile loads path and swaps it into r. The super admin role is fixed
// for the life of r.
func ReloadRoleFile(path string, r *Resolver) (*Table, error) {
	t, err := LoadRoleFile(path)
	if err != nil {
		return nil, err
	}
	if got, want := t.SuperAdminRole(), r.Table().SuperAdminRole(); got != want {
		return nil, fmt.Errorf("%w: %q, want %q", ErrSuperAdminChanged, got, want)
	}
	r.Swap(t)
	return t, nil
}

func handleWatcher(ctx context.Context, watcher *fsnotify.Watcher, path string, reload chan<- struct{}, logger *slog.Logger) {
	defer watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Has(fsnotify.Write | fsnotify.Create | fsnotify.Rename) {
				select {
				case reload <- struct{}{}:
				default:
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("role file watcher error", "error", err)
		}
	}
}

func scheduleReload(ctx context.Context, reload <-chan struct{}, callback func()) {
	var timer *time.Timer
	var c <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-reload:
			if timer != nil {
				timer.Reset(reloadDebounce)
			} else {
				timer = time.NewTimer(reloadDebounce)
				c = timer.C
			}
		case <-c:
			c = nil
			timer = nil
			callback()
		}
	}
}
