package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch observes the config file and signals reloadChan whenever it is
// written or replaced. Editors and the web handler both rewrite the file,
// so events are debounced to avoid reloading on every partial write.
// The goroutine exits when stop is closed.
func Watch(cfile string, reloadChan chan<- struct{}, stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("can't create config watcher: %w", err)
	}

	// Watch the directory, not the file: many editors replace the file via
	// rename, which removes the original watch.
	dir := filepath.Dir(cfile)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("can't watch config directory %s: %w", dir, err)
	}

	base := filepath.Base(cfile)

	go func() {
		defer watcher.Close()
		var debounce *time.Timer
		var debounceC <-chan time.Time

		for {
			select {
			case <-stop:
				slog.Info("Ending config watcher go-routine...")
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != base {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if debounce == nil {
					debounce = time.NewTimer(250 * time.Millisecond)
				} else {
					debounce.Reset(250 * time.Millisecond)
				}
				debounceC = debounce.C
			case <-debounceC:
				debounceC = nil
				slog.Info("Config file changed on disk, requesting reload", "file", cfile)
				select {
				case reloadChan <- struct{}{}:
				default:
					// A reload is already pending.
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("Config watcher error", "error", err)
			}
		}
	}()

	return nil
}
