package resource

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Handle is the opaque integer a component stores to reference a loaded
// resource (spec.md §6). Components that carry a Handle have zero
// dependency on this package — only systems that actually touch
// render/audio/physics backends import resource.Manager.
type Handle uint32

// Destructor releases whatever a Loader allocated for one load.
type Destructor func()

// Loader decodes raw file bytes into a backend-specific resource and
// returns the Handle identifying it plus a Destructor to release it. What
// the Handle actually indexes into is entirely up to the loader/backend —
// Manager only tracks it for lifecycle purposes.
type Loader func(path string, data []byte) (Handle, Destructor, error)

type entry struct {
	path    string
	loader  Loader
	handle  Handle
	destroy Destructor
}

// Manager dispatches file loads to a registered Loader by extension, deduplicates
// repeat loads of the same path, and optionally hot-reloads on filesystem
// writes. It is the single collaborator boundary stub for §6's "resource
// manager" — intentionally thin, giving fsnotify-based hot-reload and the
// Loader abstraction a concrete home rather than implementing any real
// backend.
type Manager struct {
	mu      sync.RWMutex
	loaders map[string]Loader
	byPath  map[string]*entry
	logger  *zap.Logger
	watcher *watcher
}

// NewManager constructs an empty Manager. logger may be nil, in which case
// diagnostics are discarded.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		loaders: make(map[string]Loader),
		byPath:  make(map[string]*entry),
		logger:  logger,
	}
}

// RegisterLoader binds loader to every file with the given extension
// (case-insensitive, with or without a leading dot).
func (m *Manager) RegisterLoader(ext string, loader Loader) {
	ext = normalizeExt(ext)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaders[ext] = loader
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Load reads path and runs the registered loader for its extension,
// returning the resulting Handle. Loading the same path twice without an
// intervening Unload or hot-reload returns the cached Handle without
// re-reading the file or invoking the loader again — Load is idempotent
// per path for the lifetime of the load.
func (m *Manager) Load(path string) (Handle, error) {
	m.mu.RLock()
	if e, ok := m.byPath[path]; ok {
		m.mu.RUnlock()
		return e.handle, nil
	}
	m.mu.RUnlock()

	loader, ok := m.loaderFor(path)
	if !ok {
		return 0, eris.Errorf("resource: no loader registered for extension %s", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, eris.Wrapf(err, "resource: read %s", path)
	}
	handle, destroy, err := loader(path, data)
	if err != nil {
		return 0, eris.Wrapf(err, "resource: load %s", path)
	}

	m.mu.Lock()
	m.byPath[path] = &entry{path: path, loader: loader, handle: handle, destroy: destroy}
	m.mu.Unlock()
	m.logger.Info("resource loaded", zap.String("path", path), zap.Uint32("handle", uint32(handle)))
	return handle, nil
}

func (m *Manager) loaderFor(path string) (Loader, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loader, ok := m.loaders[normalizeExt(filepath.Ext(path))]
	return loader, ok
}

// Unload releases path's resource via its Destructor and forgets it.
// Unloading a path that was never loaded is a no-op.
func (m *Manager) Unload(path string) {
	m.mu.Lock()
	e, ok := m.byPath[path]
	if ok {
		delete(m.byPath, path)
	}
	m.mu.Unlock()
	if ok && e.destroy != nil {
		e.destroy()
	}
}

// reload re-reads path and runs its loader again, replacing the entry's
// internal state without disturbing the Handle a caller may already be
// holding: the previously-returned Handle stays valid and its destructor is
// not invoked. Only Unload/Close ever calls a destructor, and only the most
// recent one the loader produced — a hot-reload drops whatever destructor it
// is replacing rather than running it, per the "resource handle stability"
// contract. Called internally in response to a filesystem write event when
// hot-reload is enabled.
func (m *Manager) reload(path string) {
	m.mu.RLock()
	e, ok := m.byPath[path]
	m.mu.RUnlock()
	if !ok {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		m.logger.Warn("resource hot-reload: read failed", zap.String("path", path), zap.Error(err))
		return
	}
	_, destroy, err := e.loader(path, data)
	if err != nil {
		m.logger.Warn("resource hot-reload: load failed", zap.String("path", path), zap.Error(err))
		return
	}
	m.mu.Lock()
	e.destroy = destroy
	m.mu.Unlock()
	m.logger.Info("resource hot-reloaded", zap.String("path", path), zap.Uint32("handle", uint32(e.handle)))
}

// Close unloads every resource and stops hot-reload watching, if enabled.
func (m *Manager) Close() {
	if m.watcher != nil {
		m.watcher.Close()
		m.watcher = nil
	}
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.byPath))
	for _, e := range m.byPath {
		entries = append(entries, e)
	}
	m.byPath = make(map[string]*entry)
	m.mu.Unlock()
	for _, e := range entries {
		if e.destroy != nil {
			e.destroy()
		}
	}
}
