package index

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event kinds passed to EventCallback.
const (
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// debounce collapses the bursts of events editors produce when saving.
const debounce = 150 * time.Millisecond

// Invalidator drops cached state for a path. *bibcache.Cache implements it.
type Invalidator interface {
	Invalidate(path string)
}

// EventCallback is called after a watched bibliography file changed.
// kind is EventUpdated or EventDeleted.
type EventCallback func(kind string, path string)

// Watch watches the parent directories of paths with fsnotify until ctx is
// cancelled. Changes to a tracked file invalidate it in cache and are
// reported through cb (if non-nil) once the burst of events settles.
//
// Directories rather than files are watched so that editors replacing a file
// by rename keep being tracked.
func Watch(ctx context.Context, cache Invalidator, paths []string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	tracked := make(map[string]struct{}, len(paths))
	dirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		tracked[abs] = struct{}{}
		dir := filepath.Dir(abs)
		if _, ok := dirs[dir]; ok {
			continue
		}
		if err := w.Add(dir); err != nil {
			return err
		}
		dirs[dir] = struct{}{}
	}

	logger.Info("watcher: started", slog.Int("files", len(tracked)), slog.Int("dirs", len(dirs)))

	// pending maps a path to the kind of its latest event.
	pending := make(map[string]string)
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	schedule := func() {
		if flushTimer == nil {
			flushTimer = time.NewTimer(debounce)
			flushCh = flushTimer.C
		} else {
			flushTimer.Reset(debounce)
		}
	}

	flush := func() {
		names := make([]string, 0, len(pending))
		for p := range pending {
			names = append(names, p)
		}
		sort.Strings(names)
		for _, p := range names {
			kind := pending[p]
			cache.Invalidate(p)
			logger.Debug("watcher: changed", slog.String("path", p), slog.String("op", kind))
			if cb != nil {
				cb(kind, p)
			}
		}
		clear(pending)
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-flushCh:
			flush()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			abs := filepath.Clean(ev.Name)
			if _, ok := tracked[abs]; !ok {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				pending[abs] = EventUpdated
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// A rename is usually followed by a Create of the same path,
				// which turns this back into an update before the flush.
				pending[abs] = EventDeleted
			default:
				continue
			}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
