package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/skittixch/GeminiTrader-sub000/internal/logger"
)

// Watch reloads the config file whenever it changes on disk and hands the
// fresh config to onChange. Invalid edits are logged and skipped, keeping
// the previous config active. Blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors replace files on save and
	// the inode-level watch would die with the old file.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	var lastReload time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || abs != target {
				continue
			}
			// Editors fire bursts of events per save.
			if time.Since(lastReload) < 500*time.Millisecond {
				continue
			}
			lastReload = time.Now()
			cfg, err := Load(path)
			if err != nil {
				logger.Warnf("config: reload of %s failed, keeping previous: %v", path, err)
				continue
			}
			logger.Infof("config: reloaded %s", path)
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("config: watcher error: %v", err)
		}
	}
}
