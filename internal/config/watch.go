package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/tempscope/tempscope/internal/log"
)

// Watch reloads the store when the config file changes on disk, so
// edits made while the monitor runs take effect without a restart.
// onChange receives the new config after each successful reload.
// The watcher stops when ctx is cancelled.
//
// The store's own saves also land here (the atomic rename shows up as
// a create event); reloading our own bytes is harmless.
func (s *Store) Watch(ctx context.Context, onChange func(Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}

	// Watch the directory, not the file: editors and atomic renames
	// replace the inode, which breaks a direct file watch.
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	base := filepath.Base(s.path)

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != base {
					continue
				}
				if event.Op&fsnotify.Write != fsnotify.Write && event.Op&fsnotify.Create != fsnotify.Create {
					continue
				}
				if err := s.Reload(); err != nil {
					log.Warn("config reload failed", "path", s.path, "error", err)
					continue
				}
				log.Debug("config reloaded", "path", s.path)
				if onChange != nil {
					onChange(s.Get())
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("config watcher error", "error", err)
			}
		}
	}()

	return nil
}
