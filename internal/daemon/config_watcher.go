package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/gsb/internal/config"
	gsberrors "git.home.luguber.info/inful/gsb/internal/errors"
	"git.home.luguber.info/inful/gsb/internal/logfields"
)

// defaultDebounce coalesces the burst of events editors emit on save.
const defaultDebounce = 2 * time.Second

// reloader receives configurations accepted by the watcher.
type reloader interface {
	Config() *config.Config
	ReloadConfig(cfg *config.Config)
}

// ConfigWatcher reloads the config file when it changes on disk. Invalid
// files are rejected and the running configuration stays in place.
type ConfigWatcher struct {
	configPath   string
	target       reloader
	watcher      *fsnotify.Watcher
	mu           sync.Mutex
	stopChan     chan struct{}
	stopOnce     sync.Once
	reloadChan   chan struct{}
	debounceTime time.Duration
	wg           sync.WaitGroup
	logger       *slog.Logger
}

// NewConfigWatcher creates a watcher for configPath feeding target.
func NewConfigWatcher(configPath string, target reloader) (*ConfigWatcher, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, gsberrors.DaemonError("resolve config path", err)
	}
	return &ConfigWatcher{
		configPath:   absPath,
		target:       target,
		stopChan:     make(chan struct{}),
		reloadChan:   make(chan struct{}, 1),
		debounceTime: defaultDebounce,
		logger:       slog.Default(),
	}, nil
}

// Start watches the directory holding the config file. Watching the
// directory survives editors that replace the file by rename.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return gsberrors.DaemonError("create file watcher", err)
	}
	configDir := filepath.Dir(cw.configPath)
	if err := watcher.Add(configDir); err != nil {
		_ = watcher.Close()
		return gsberrors.DaemonError(fmt.Sprintf("watch %s", configDir), err)
	}
	cw.watcher = watcher

	cw.wg.Add(2)
	go func() {
		defer cw.wg.Done()
		cw.watchLoop(ctx, watcher.Events, watcher.Errors)
	}()
	go func() {
		defer cw.wg.Done()
		cw.reloadLoop(ctx)
	}()

	cw.logger.Info("Watching configuration", logfields.Path(cw.configPath))
	return nil
}

// Stop terminates the watcher and waits for its goroutines, bounded by ctx.
func (cw *ConfigWatcher) Stop(ctx context.Context) error {
	cw.stopOnce.Do(func() { close(cw.stopChan) })

	cw.mu.Lock()
	if cw.watcher != nil {
		if err := cw.watcher.Close(); err != nil {
			cw.logger.Error("Error closing file watcher", logfields.Error(err))
		}
		cw.watcher = nil
	}
	cw.mu.Unlock()

	done := make(chan struct{})
	go func() {
		cw.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (cw *ConfigWatcher) watchLoop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) {
	configFile := filepath.Base(cw.configPath)

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopChan:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFile {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create), event.Has(fsnotify.Rename):
				cw.logger.Debug("Config file change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
				cw.triggerReload()
			case event.Has(fsnotify.Remove):
				cw.logger.Warn("Config file removed, keeping current configuration", logfields.Path(event.Name))
			}
		case err, ok := <-errs:
			if !ok {
				return
			}
			cw.logger.Error("Config watcher error", logfields.Error(err))
		}
	}
}

func (cw *ConfigWatcher) reloadLoop(ctx context.Context) {
	var reloadTimer *time.Timer
	stopTimer := func() {
		if reloadTimer != nil {
			reloadTimer.Stop()
		}
	}

	for {
		select {
		case <-ctx.Done():
			stopTimer()
			return
		case <-cw.stopChan:
			stopTimer()
			return
		case <-cw.reloadChan:
			stopTimer()
			reloadTimer = time.AfterFunc(cw.debounceTime, func() {
				if err := cw.performReload(); err != nil {
					cw.logger.Error("Rejected configuration change", logfields.Error(err))
				}
			})
		}
	}
}

func (cw *ConfigWatcher) triggerReload() {
	select {
	case cw.reloadChan <- struct{}{}:
	default:
		// reload already pending
	}
}

// performReload loads and validates the file, then hands it to the target.
// Load runs the full validation gate, so an invalid file never reaches it.
func (cw *ConfigWatcher) performReload() error {
	cw.logger.Info("Reloading configuration", logfields.Path(cw.configPath))

	newConfig, err := config.Load(cw.configPath)
	if err != nil {
		return err
	}
	cw.warnRestartOnly(newConfig)
	cw.target.ReloadConfig(newConfig)
	return nil
}

// warnRestartOnly logs settings that only take effect after a restart.
func (cw *ConfigWatcher) warnRestartOnly(newConfig *config.Config) {
	current := cw.target.Config()
	if current == nil {
		return
	}
	if current.Daemon.MetricsAddr != newConfig.Daemon.MetricsAddr {
		cw.logger.Warn("daemon.metrics_addr changes require a restart",
			slog.String("current", current.Daemon.MetricsAddr),
			slog.String("new", newConfig.Daemon.MetricsAddr))
	}
	if current.Daemon.WatchEnabled() != newConfig.Daemon.WatchEnabled() {
		cw.logger.Warn("daemon.watch_config changes require a restart")
	}
}
