package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads the configuration file when it changes and hands every
// valid result to the registered callbacks.
//
// The parent directory is watched rather than the file so that editors and
// orchestrators replacing the file by rename or symlink swap are still seen.
// Reloads run on the Watch goroutine, one at a time.
type Watcher struct {
	loader   *Loader
	path     string
	dir      string
	debounce time.Duration
	onError  func(error)

	fs *fsnotify.Watcher

	mu        sync.RWMutex
	callbacks []func(*Config)
	current   *Config
	running   bool

	stopOnce sync.Once
	stopCh   chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long the file must be quiet before a reload.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithErrorHandler receives watch and reload errors.
func WithErrorHandler(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		if fn != nil {
			w.onError = fn
		}
	}
}

// NewWatcher creates a watcher for configPath. Nothing is watched until
// Watch is called.
func NewWatcher(configPath string, loader *Loader, opts ...WatcherOption) (*Watcher, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path is required for watching")
	}
	if loader == nil {
		loader = NewLoader()
	}

	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		loader:   loader,
		path:     configPath,
		dir:      filepath.Dir(abs),
		debounce: defaultDebounce,
		onError:  func(error) {},
		fs:       fsw,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch blocks until ctx is done or Stop is called. It returns ctx.Err() on
// cancellation and nil after Stop.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher is already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	if err := w.fs.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", w.dir, err)
	}

	target := filepath.Base(w.path)
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-w.stopCh:
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != target && !isSymlinkSwap(ev, w.dir) {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				timer.Reset(w.debounce)
			}

		case <-timer.C:
			w.reload()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.onError(fmt.Errorf("config watcher: %w", err))
		}
	}
}

// isSymlinkSwap matches the "..data" link Kubernetes flips when a mounted
// ConfigMap changes.
func isSymlinkSwap(ev fsnotify.Event, dir string) bool {
	return ev.Name == filepath.Join(dir, "..data") && ev.Has(fsnotify.Create)
}

func (w *Watcher) reload() {
	cfg, err := w.loader.Load(w.path, nil)
	if err != nil {
		w.onError(fmt.Errorf("reload config: %w", err))
		return
	}

	w.mu.Lock()
	w.current = cfg
	callbacks := append(([]func(*Config))(nil), w.callbacks...)
	w.mu.Unlock()

	for _, cb := range callbacks {
		w.notify(cb, cfg)
	}
}

func (w *Watcher) notify(cb func(*Config), cfg *Config) {
	defer func() {
		if r := recover(); r != nil {
			w.onError(fmt.Errorf("config callback panic: %v", r))
		}
	}()
	cb(cfg)
}

// OnChange registers a callback invoked with every successfully reloaded Config.
func (w *Watcher) OnChange(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Current returns the last successfully reloaded Config, or nil before the
// first reload.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Stop ends Watch and releases the fsnotify handle. Safe to call twice.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		err = w.fs.Close()
	})
	return err
}

// IsRunning reports whether Watch is active.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// ConfigPath returns the path being watched.
func (w *Watcher) ConfigPath() string {
	return w.path
}

// HotReloadableConfig contains the values applied without a restart.
type HotReloadableConfig struct {
	LogLevel string
}

// ExtractHotReloadable extracts hot-reloadable values from Config.
func ExtractHotReloadable(cfg *Config) HotReloadableConfig {
	return HotReloadableConfig{
		LogLevel: cfg.Log.Level,
	}
}

// Changed checks if hot-reloadable configuration has changed.
func (h HotReloadableConfig) Changed(other HotReloadableConfig) bool {
	return h.LogLevel != other.LogLevel
}
