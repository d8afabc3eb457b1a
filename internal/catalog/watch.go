package catalog

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors the catalog file at path and calls onChange with the newly
// loaded Snapshot each time the file is written. It runs until ctx is
// cancelled.
//
// If a reload fails (invalid YAML, invalid alert definition), the error is
// logged and the previous catalog remains active — Watch does not call
// onChange.
func Watch(ctx context.Context, path string, onChange func(*Snapshot)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	slog.Info("catalog: watching for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Only reload on write or create events. Editors often write via
			// rename (atomic save), so also catch fsnotify.Create.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			snap, err := LoadFile(path)
			if err != nil {
				slog.Error("catalog: reload failed — keeping previous catalog",
					"path", path, "err", err)
				continue
			}

			slog.Info("catalog: reloaded",
				"path", path,
				"stations", len(snap.Stations),
				"alerts", len(snap.Alerts),
			)
			onChange(snap)

			// Re-add the file in case an atomic save replaced the inode.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("catalog: watcher error", "err", err)
		}
	}
}
