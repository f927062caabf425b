package config

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"linkforge/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches .forge/forge.yaml for changes and reloads configuration
// at runtime. Reloads re-apply logging settings immediately; callers can
// hook OnChange for everything else.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	workspace   string
	configPath  string
	debounceDur time.Duration
	pending     time.Time
	running     bool
	stopCh      chan struct{}
	doneCh      chan struct{}

	// OnChange is invoked with the freshly loaded config after a reload.
	OnChange func(*Config)
}

// NewWatcher creates a config watcher for the given workspace.
func NewWatcher(workspace string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     fw,
		workspace:   workspace,
		configPath:  DefaultPath(workspace),
		debounceDur: 500 * time.Millisecond, // Debounce rapid saves
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching the .forge directory. Non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil // Already running
	}
	w.running = true
	w.mu.Unlock()

	dir := filepath.Dir(w.configPath)
	if err := w.watcher.Add(dir); err != nil {
		// Directory may not exist yet; watcher is then a no-op
		logging.Get(logging.CategoryConfig).Warn("config watcher: initial watch failed: %v", err)
	} else {
		logging.Get(logging.CategoryConfig).Info("config watcher: watching %s", dir)
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for cleanup.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryConfig).Error("config watcher: close: %v", err)
	}
}

// run is the main event loop for the watcher.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	debounceTicker := time.NewTicker(100 * time.Millisecond)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryConfig).Error("config watcher: %v", err)

		case <-debounceTicker.C:
			w.reloadIfDue()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, filepath.Base(w.configPath)) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return // Ignore chmod, remove
	}

	logging.Get(logging.CategoryConfig).Debug("config watcher: change detected: %s", event.Name)
	w.mu.Lock()
	w.pending = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) reloadIfDue() {
	w.mu.Lock()
	due := !w.pending.IsZero() && time.Since(w.pending) >= w.debounceDur
	if due {
		w.pending = time.Time{}
	}
	w.mu.Unlock()
	if !due {
		return
	}

	cfg, err := Load(w.configPath)
	if err != nil {
		logging.Get(logging.CategoryConfig).Error("config watcher: reload failed: %v", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		logging.Get(logging.CategoryConfig).Error("config watcher: invalid config ignored: %v", err)
		return
	}

	logging.Get(logging.CategoryConfig).Info("config reloaded from %s", w.configPath)
	if err := logging.ReloadConfig(); err != nil {
		logging.Get(logging.CategoryConfig).Warn("config watcher: logging reload: %v", err)
	}

	if w.OnChange != nil {
		w.OnChange(cfg)
	}
}
