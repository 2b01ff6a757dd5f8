package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay is how long Watch waits after the last filesystem event
// before reloading. Editors and atomic-save tools emit several events per
// save; the delay collapses each burst into a single reload.
const debounceDelay = 200 * time.Millisecond

// Watch monitors path and calls onChange with the newly loaded Config after
// the file settles following a write. It runs until ctx is cancelled.
//
// If a reload fails (e.g., invalid YAML), the error is logged and the
// previous config stays active — Watch does not call onChange.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", path)

	reload := time.NewTimer(debounceDelay)
	if !reload.Stop() {
		<-reload.C
	}
	defer reload.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Writes and creates arm the reload timer; creates matter because
			// editors often save via rename, which surfaces as a create of a
			// fresh inode. Anything else (chmod, remove) is ignored.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			reload.Reset(debounceDelay)

		case <-reload.C:
			// Re-add before loading: an atomic save may have replaced the
			// inode the watch was attached to.
			_ = watcher.Add(path)

			cfg, err := Load(path)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config",
					"path", path, "err", err)
				continue
			}
			slog.Info("config: reloaded", "path", path)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
