package jobs

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// Watch reloads job files as they change until ctx is done. Bursts of events
// for the same file are collapsed into one reload after debounce.
func (c *Catalog) Watch(ctx context.Context, debounce time.Duration) error {
	if c.dir == "" {
		return fmt.Errorf("no jobs directory to watch")
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			c.logger.LogError(err, "Failed to close job file watcher")
		}
	}()

	if err := watcher.Add(c.dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", c.dir, err)
	}
	c.logger.Info("Job file watcher started", "dir", c.dir, "debounce_delay", debounce)

	var mu sync.Mutex
	timers := make(map[string]*time.Timer)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
	}()

	schedule := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := timers[path]; ok {
			t.Stop()
		}
		timers[path] = time.AfterFunc(debounce, func() {
			mu.Lock()
			delete(timers, path)
			mu.Unlock()
			if ctx.Err() == nil {
				c.reloadFile(path)
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Job file watcher stopped")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if shouldProcessEvent(event) {
				schedule(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.LogError(err, "Job file watcher error")
		}
	}
}

func shouldProcessEvent(event fsnotify.Event) bool {
	if !isJobFile(filepath.Base(event.Name)) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0
}
