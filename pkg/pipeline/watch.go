package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Watch processes images as they show up in dir, until ctx is cancelled.
// A file is only picked up once it has gone Config.Watch.SettleMillis
// without being written to, so half-copied files are left alone. Each
// outcome is passed to done, if it's not nil.
func (p *Processor) Watch(ctx context.Context, dir string, done func(Result, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	log.Infof("Watching directory: %s", dir)

	settle := time.Duration(p.Config.Watch.SettleMillis) * time.Millisecond
	if settle <= 0 {
		settle = 500 * time.Millisecond
	}
	ticker := time.NewTicker(max(settle/4, 10*time.Millisecond))
	defer ticker.Stop()

	pending := map[string]time.Time{} // filename -> last time it changed

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isSupportedExt(filepath.Ext(event.Name)) {
				continue
			}
			pending[event.Name] = time.Now()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnf("Filesystem watcher error: %v", err)

		case now := <-ticker.C:
			for fn, changed := range pending {
				if now.Sub(changed) < settle {
					continue
				}
				delete(pending, fn)

				res, err := p.ProcessFile(ctx, fn)
				if err != nil {
					log.WithField("file", fn).Errorf("failed: %v", err)
				}
				if done != nil {
					done(res, err)
				}
			}
		}
	}
}
