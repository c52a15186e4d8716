package config

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads the config file when it changes on disk and publishes the
// latest valid snapshot. Its main job is flipping pipeline.verify.enabled in
// a degraded environment without restarting the bot. An edit that fails to
// parse or validate never replaces the last good snapshot.
type Watcher struct {
	path     string
	log      *zap.Logger
	watcher  *fsnotify.Watcher
	current  atomic.Pointer[Config]
	debounce time.Duration
	pending  atomic.Int64 // unix nanos of the last relevant event, 0 when settled

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWatcher starts watching path. When initial is nil the file is loaded
// first; a load failure is returned rather than watched around.
func NewWatcher(path string, initial *Config, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if initial == nil {
		cfg, err := Load(path)
		if err != nil {
			return nil, err
		}
		initial = cfg
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	// Watch the directory, not the file: editors replace files via rename,
	// which silently drops a watch placed on the file itself.
	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &Watcher{
		path:     filepath.Clean(path),
		log:      log,
		watcher:  fw,
		debounce: 300 * time.Millisecond,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	w.current.Store(initial)
	go w.run()
	return w, nil
}

// Current returns the latest valid snapshot. Never nil. Callers must read it
// per decision, not hold it across decisions, or reloads will not take.
func (w *Watcher) Current() *Config {
	return w.current.Load()
}

// Close stops the watch loop and waits for it to exit.
func (w *Watcher) Close() error {
	close(w.stopCh)
	<-w.doneCh
	return w.watcher.Close()
}

func (w *Watcher) run() {
	defer close(w.doneCh)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.pending.Store(time.Now().UnixNano())
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watch error", zap.Error(err))
		case <-tick.C:
			at := w.pending.Load()
			if at == 0 || time.Since(time.Unix(0, at)) < w.debounce {
				continue
			}
			w.pending.Store(0)
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.log.Warn("config reload rejected, keeping previous",
			zap.String("path", w.path), zap.Error(err))
		return
	}
	w.current.Store(cfg)
	w.log.Info("config reloaded",
		zap.String("path", w.path),
		zap.Bool("verify_enabled", cfg.Pipeline.Verify.Enabled))
}
