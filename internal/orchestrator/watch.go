package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watch reloads the servers whenever the servers file changes on disk.
// The parent directory is watched so that editors that replace the file by rename are noticed.
// Writes made by the orchestrator itself leave the file matching the store's digest and are ignored.
func (o *Orchestrator) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	path, err := filepath.Abs(o.store.Path())
	if err != nil {
		return fmt.Errorf("failed to resolve servers file path: %w", err)
	}

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	o.logger.Info("Watching servers file for changes", "path", path)

	timer := time.NewTimer(o.opts.WatchDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(o.opts.WatchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			o.logger.Error("File watcher error", "error", err)

		case <-timer.C:
			o.reloadIfChanged(ctx)
		}
	}
}

func (o *Orchestrator) reloadIfChanged(ctx context.Context) {
	changed, err := o.store.Changed()
	if err != nil {
		o.logger.Warn("Unable to read servers file", "path", o.store.Path(), "error", err)
		return
	}
	if !changed {
		return
	}

	if err := o.Reload(ctx); err != nil {
		o.logger.Error("Failed to reload servers", "error", err)
	}
}
