package resource

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// watcher wraps fsnotify to debounce repeated write events on the same
// path, grounded on milk9111-sidescroller's prefabs.Watcher.
type watcher struct {
	fsw     *fsnotify.Watcher
	closeCh chan struct{}
	once    sync.Once
}

// WatchDir enables hot-reload: any write/create/rename of a file directly
// in root whose path is already loaded triggers a reload through that
// path's Loader. Subdirectories of root are not watched.
// Returns an error if the directory cannot be watched; calling WatchDir
// twice replaces the previous watcher.
func (m *Manager) WatchDir(root string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(root); err != nil {
		_ = fsw.Close()
		return err
	}
	if m.watcher != nil {
		m.watcher.Close()
	}
	w := &watcher{fsw: fsw, closeCh: make(chan struct{})}
	m.watcher = w
	go w.run(m)
	return nil
}

func (w *watcher) run(m *Manager) {
	last := make(map[string]time.Time)
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			now := time.Now()
			if t, ok := last[event.Name]; ok && now.Sub(t) < 100*time.Millisecond {
				continue
			}
			last[event.Name] = now
			m.reload(event.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			m.logger.Warn("resource watcher error", zap.Error(err))
		case <-w.closeCh:
			return
		}
	}
}

func (w *watcher) Close() {
	w.once.Do(func() {
		close(w.closeCh)
		_ = w.fsw.Close()
	})
}
