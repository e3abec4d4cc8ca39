package config

import (
	"context"

	"github.com/fsnotify/fsnotify"
)

// Watch re-parses the config file on write/create events and swaps the active
// snapshot atomically. A file that fails to parse leaves the previous
// snapshot in place; readers are never exposed to a half-applied config.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(s.path); err != nil {
		_ = watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				snap, perr := parse(s.path)
				if perr != nil {
					s.log.Warn("config reload failed, keeping previous snapshot", "error", perr)
					continue
				}
				s.ptr.Store(&snap)
				s.log.Info("config reloaded", "path", s.path)
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.Warn("config watcher error", "error", werr)
			}
		}
	}()
	return nil
}
