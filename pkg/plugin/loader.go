// Package plugin implements the Plugin Loader (spec §4.7): discovery,
// ABI-version validation, registration, and hot-reload of collector shared
// objects, via Go's stdlib plugin package and fsnotify for the directory
// watch.
//
// Grounded file-for-file on original_source/src/daemon/plugin_loader.c:
// plugin_loader_load/_unload/_reload/_load_all map onto Load/Unload/reload/
// LoadAll below; plugin_loader_start_watcher's inotify mask
// (IN_CLOSE_WRITE|IN_MOVED_TO|IN_DELETE) maps onto fsnotify's Write/Create/
// Rename/Remove ops. The stdlib plugin package is used deliberately with no
// third-party alternative -- dynamic shared-object loading has no other
// path in Go (see DESIGN.md).
package plugin

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"plugin"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/qscuio/qmemd/pkg/collector"
	"github.com/qscuio/qmemd/pkg/manager"
	"github.com/qscuio/qmemd/pkg/metrics"
	"github.com/qscuio/qmemd/pkg/pluginapi"
	"github.com/qscuio/qmemd/pkg/qmemerrors"
)

type loadedPlugin struct {
	path   string
	name   string
	handle *plugin.Plugin
	loaded bool
}

// Loader discovers, loads, and hot-reloads collector plugins from a
// directory.
type Loader struct {
	dir     string
	manager *manager.Manager
	cfg     collector.Config

	mu      sync.Mutex
	byPath  map[string]*loadedPlugin
	byName  map[string]*loadedPlugin

	watcher *fsnotify.Watcher

	pendingMu sync.Mutex
	pending   []func()
}

// NewLoader returns a Loader that will register plugins with mgr, passing
// cfg to each plugin collector's Init.
func NewLoader(dir string, mgr *manager.Manager, cfg collector.Config) *Loader {
	return &Loader{
		dir:     dir,
		manager: mgr,
		cfg:     cfg,
		byPath:  make(map[string]*loadedPlugin),
		byName:  make(map[string]*loadedPlugin),
	}
}

// LoadAll scans dir for *.so files and loads each, creating dir if it does
// not yet exist (mirrors plugin_loader_load_all's mkdir-then-opendir
// fallback). Returns the count successfully loaded.
func (l *Loader) LoadAll() (int, error) {
	if _, err := os.Stat(l.dir); os.IsNotExist(err) {
		if mkErr := os.MkdirAll(l.dir, 0o755); mkErr != nil {
			slog.Debug("cannot create plugin directory", slog.String("dir", l.dir), slog.String("error", mkErr.Error()))
			return 0, nil
		}
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	loaded := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".so") {
			continue
		}
		path := filepath.Join(l.dir, e.Name())
		if err := l.Load(path); err != nil {
			slog.Error("failed to load plugin", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		loaded++
	}
	if loaded > 0 {
		slog.Info("loaded plugins", slog.Int("count", loaded), slog.String("dir", l.dir))
	}
	return loaded, nil
}

// Load opens the shared object at path, validates its ABI version and name
// uniqueness, and registers its collector with the Service Manager. On any
// failure nothing is registered or recorded (spec §4.7); a shared object
// that was already opened stays mapped, since Go cannot close one (see
// Unload).
func (l *Loader) Load(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.byPath[path]; ok && existing.loaded {
		return nil
	}

	handle, err := plugin.Open(path)
	if err != nil {
		metrics.PluginEventsTotal.WithLabelValues("load", "error").Inc()
		return fmt.Errorf("open plugin %s: %w", path, err)
	}

	sym, err := handle.Lookup(pluginapi.Symbol)
	if err != nil {
		metrics.PluginEventsTotal.WithLabelValues("load", "error").Inc()
		return fmt.Errorf("plugin %s missing symbol %q: %w", path, pluginapi.Symbol, err)
	}
	info, ok := sym.(*pluginapi.Info)
	if !ok {
		metrics.PluginEventsTotal.WithLabelValues("load", "error").Inc()
		return fmt.Errorf("plugin %s exported symbol has wrong type", path)
	}

	if info.APIVersion != pluginapi.APIVersion {
		metrics.PluginEventsTotal.WithLabelValues("load", "error").Inc()
		return qmemerrors.WithContext(qmemerrors.CodePluginABI, fmt.Sprintf("plugin %s API version mismatch", path), map[string]any{
			"got":  info.APIVersion,
			"want": pluginapi.APIVersion,
		})
	}

	if dup, ok := l.byName[info.Name]; ok && dup.loaded {
		metrics.PluginEventsTotal.WithLabelValues("load", "error").Inc()
		return fmt.Errorf("plugin name %q already loaded, skipping %s", info.Name, path)
	}

	rec := &collector.Record{
		Name:        info.Name,
		Description: info.Description,
		Collector:   info.New(),
		Enabled:     true,
	}
	cfg := l.cfg
	cfg.Name = info.Name
	if err := l.manager.Register(rec, cfg); err != nil {
		metrics.PluginEventsTotal.WithLabelValues("load", "error").Inc()
		return fmt.Errorf("register plugin %s: %w", path, err)
	}

	lp := &loadedPlugin{path: path, name: info.Name, handle: handle, loaded: true}
	l.byPath[path] = lp
	l.byName[info.Name] = lp

	metrics.PluginEventsTotal.WithLabelValues("load", "ok").Inc()
	slog.Info("loaded plugin", slog.String("name", info.Name), slog.String("version", info.Version), slog.String("description", info.Description))
	return nil
}

// Unload unregisters the named plugin's collector. Go's plugin package
// cannot actually release a loaded shared object's memory (dlclose has no
// stdlib equivalent); Unload marks the record unloaded and frees the name
// for reuse, matching the spec's externally-observable contract even
// though the underlying .so stays mapped until process exit.
func (l *Loader) Unload(name string) error {
	l.mu.Lock()
	lp, ok := l.byName[name]
	l.mu.Unlock()
	if !ok || !lp.loaded {
		return nil
	}

	if err := l.manager.Unregister(name); err != nil {
		metrics.PluginEventsTotal.WithLabelValues("unload", "error").Inc()
		return err
	}

	l.mu.Lock()
	lp.loaded = false
	l.mu.Unlock()

	metrics.PluginEventsTotal.WithLabelValues("unload", "ok").Inc()
	slog.Info("unloaded plugin", slog.String("name", name))
	return nil
}

func (l *Loader) unloadByPath(path string) {
	l.mu.Lock()
	lp, ok := l.byPath[path]
	l.mu.Unlock()
	if !ok || !lp.loaded {
		return
	}
	_ = l.Unload(lp.name)
}

// reload unloads whatever was previously loaded from path, then loads the
// new file. If the fresh load's Init fails, the previous version stays
// unloaded -- no silent rollback (spec §4.7 failure model).
func (l *Loader) reload(path string) {
	l.mu.Lock()
	lp, existed := l.byPath[path]
	l.mu.Unlock()
	if existed && lp.loaded {
		slog.Info("reloading plugin", slog.String("name", lp.name))
		_ = l.Unload(lp.name)
	}
	if err := l.Load(path); err != nil {
		slog.Error("plugin reload failed, continuing without it", slog.String("path", path), slog.String("error", err.Error()))
	}
}

// StartWatcher begins watching the plugin directory for close-after-write,
// move-into-directory, and delete events. Matching events are queued, not
// applied immediately: Drain() is called by the Scheduler between ticks
// (spec §4.7/§9: "Events are processed only at tick boundaries... do not do
// this inside the file-watcher handler").
func (l *Loader) StartWatcher() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("init plugin directory watcher: %w", err)
	}
	if err := w.Add(l.dir); err != nil {
		w.Close()
		return fmt.Errorf("watch plugin directory %s: %w", l.dir, err)
	}
	l.watcher = w

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				l.handleEvent(ev)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("plugin directory watcher error", slog.String("error", err.Error()))
			}
		}
	}()

	slog.Info("watching plugin directory for changes", slog.String("dir", l.dir))
	return nil
}

func (l *Loader) handleEvent(ev fsnotify.Event) {
	if !strings.HasSuffix(ev.Name, ".so") {
		return
	}
	switch {
	case ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename):
		l.enqueue(func() { l.reload(ev.Name) })
	case ev.Has(fsnotify.Remove):
		l.enqueue(func() { l.unloadByPath(ev.Name) })
	}
}

func (l *Loader) enqueue(fn func()) {
	l.pendingMu.Lock()
	l.pending = append(l.pending, fn)
	l.pendingMu.Unlock()
}

// Drain returns and clears the queued tick-boundary actions. Implements
// scheduler.PluginEvents.
func (l *Loader) Drain() []func() {
	l.pendingMu.Lock()
	defer l.pendingMu.Unlock()
	out := l.pending
	l.pending = nil
	return out
}

// Close stops the directory watcher and unloads every loaded plugin
// (plugin_loader_shutdown).
func (l *Loader) Close() error {
	if l.watcher != nil {
		l.watcher.Close()
	}
	l.mu.Lock()
	names := make([]string, 0, len(l.byName))
	for name, lp := range l.byName {
		if lp.loaded {
			names = append(names, name)
		}
	}
	l.mu.Unlock()

	for _, name := range names {
		_ = l.Unload(name)
	}
	slog.Info("plugin loader shutdown")
	return nil
}

// Count returns the number of currently loaded plugins.
func (l *Loader) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, lp := range l.byName {
		if lp.loaded {
			n++
		}
	}
	return n
}
