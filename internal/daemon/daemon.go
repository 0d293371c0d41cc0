// Package daemon runs continuous sync: it periodically fetches the remote,
// fast-forwards the local branch and restores the tracked items whenever the
// remote moved. Optional companions watch the config file, run a periodic
// collect and serve Prometheus metrics.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/gsb/internal/config"
	gsberrors "git.home.luguber.info/inful/gsb/internal/errors"
	"git.home.luguber.info/inful/gsb/internal/logfields"
	"git.home.luguber.info/inful/gsb/internal/metrics"
	"git.home.luguber.info/inful/gsb/internal/ops"
)

// State is the phase the sync loop is in.
type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
	StateApplying State = "applying"
	StateSleeping State = "sleeping"
	StateStopped  State = "stopped"
)

// Status is a point-in-time view of the daemon.
type Status struct {
	State         State
	Cycles        int64
	FetchFailures int64
	LastCycle     time.Time
	LastError     string
}

// Daemon owns the sync loop and its companions.
type Daemon struct {
	runner   *ops.Runner
	recorder metrics.Recorder
	logger   *slog.Logger
	after    func(time.Duration) <-chan time.Time
	now      func() time.Time

	mu     sync.RWMutex
	config *config.Config

	state         atomic.Value // State
	cycles        atomic.Int64
	fetchFailures atomic.Int64
	lastCycle     atomic.Value // time.Time
	lastError     atomic.Value // string

	stopChan chan struct{}
	stopOnce sync.Once
	workers  WorkerGroup

	watchConfig   bool
	configWatcher *ConfigWatcher
	scheduler     *Scheduler
	httpServer    *http.Server
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithAfter replaces time.After as the sleep between cycles.
func WithAfter(after func(time.Duration) <-chan time.Time) Option {
	return func(d *Daemon) { d.after = after }
}

// WithRecorder sets the metrics recorder. A *metrics.PrometheusRecorder also
// enables the /metrics endpoint when daemon.metrics_addr is set.
func WithRecorder(r metrics.Recorder) Option {
	return func(d *Daemon) {
		if r != nil {
			d.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Daemon) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithConfigWatch toggles reloading the config file on local edits.
func WithConfigWatch(enabled bool) Option {
	return func(d *Daemon) { d.watchConfig = enabled }
}

// New creates a daemon driving runner with the initial configuration cfg.
func New(runner *ops.Runner, cfg *config.Config, opts ...Option) (*Daemon, error) {
	if runner == nil {
		return nil, gsberrors.DaemonError("runner is required", nil)
	}
	if cfg == nil {
		return nil, gsberrors.DaemonError("configuration is required", nil)
	}
	if runner.Repository() == nil {
		return nil, gsberrors.DaemonError("git repository is required", nil)
	}
	d := &Daemon{
		runner:      runner,
		recorder:    metrics.NoopRecorder{},
		logger:      slog.Default(),
		after:       time.After,
		now:         time.Now,
		config:      cfg,
		stopChan:    make(chan struct{}),
		watchConfig: cfg.Daemon.WatchEnabled(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.state.Store(StateIdle)
	d.lastCycle.Store(time.Time{})
	d.lastError.Store("")
	return d, nil
}

// Config returns the configuration the next cycle will use.
func (d *Daemon) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}

// ReloadConfig replaces the active configuration. The sync interval takes
// effect after the current sleep; the collect interval immediately.
func (d *Daemon) ReloadConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	d.mu.Lock()
	old := d.config
	d.config = cfg
	d.mu.Unlock()

	if d.scheduler != nil && old.Daemon.CollectIntervalDuration() != cfg.Daemon.CollectIntervalDuration() {
		if err := d.scheduler.SchedulePeriodicCollect(cfg.Daemon.CollectIntervalDuration()); err != nil {
			d.logger.Warn("Failed to reschedule periodic collect", logfields.Error(err))
		}
	}
	d.logger.Info("Configuration reloaded",
		logfields.Path(cfg.Path()),
		slog.Int("items", len(cfg.Items)),
		slog.Duration("sync_interval", cfg.SyncIntervalDuration()))
}

// Status returns a snapshot of the daemon.
func (d *Daemon) Status() Status {
	return Status{
		State:         d.State(),
		Cycles:        d.cycles.Load(),
		FetchFailures: d.fetchFailures.Load(),
		LastCycle:     d.lastCycle.Load().(time.Time),
		LastError:     d.lastError.Load().(string),
	}
}

// State returns the current loop state.
func (d *Daemon) State() State {
	return d.state.Load().(State)
}

func (d *Daemon) setState(s State) {
	prev := d.state.Swap(s)
	if prev != s {
		d.logger.Debug("Daemon state", slog.String("from", string(prev.(State))), slog.String("to", string(s)))
	}
}

// Run executes the sync loop until ctx is canceled or Stop is called.
// Companions (config watcher, scheduler, metrics server) run for the same
// lifetime. Cancellation is observed between cycles only.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := d.stopAwareContext(ctx)
	defer cancel()

	if err := d.startCompanions(ctx); err != nil {
		d.stopCompanions()
		return err
	}
	defer d.stopCompanions()

	cfg := d.Config()
	d.logger.Info("Sync daemon started",
		logfields.Remote(cfg.Git.Remote),
		logfields.Branch(cfg.Git.Branch),
		slog.Duration("interval", cfg.SyncIntervalDuration()),
		logfields.Device(d.runner.DeviceID()))

	d.mainLoop(ctx)

	d.setState(StateStopped)
	d.logger.Info("Sync daemon stopped", slog.Int64("cycles", d.cycles.Load()))
	return nil
}

// Stop ends the loop at the next cycle boundary. It is safe to call more
// than once.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() { close(d.stopChan) })
}

func (d *Daemon) startCompanions(ctx context.Context) error {
	cfg := d.Config()

	s, err := NewScheduler(d.runner, d)
	if err != nil {
		return err
	}
	s.logger = d.logger
	if err := s.SchedulePeriodicCollect(cfg.Daemon.CollectIntervalDuration()); err != nil {
		return err
	}
	s.Start(ctx)
	d.scheduler = s

	if d.watchConfig && cfg.Path() != "" {
		w, err := NewConfigWatcher(cfg.Path(), d)
		if err != nil {
			return err
		}
		w.logger = d.logger
		if err := w.Start(ctx); err != nil {
			return err
		}
		d.configWatcher = w
	}

	if addr := cfg.Daemon.MetricsAddr; addr != "" {
		if err := d.startMetricsServer(addr); err != nil {
			return err
		}
	}
	return nil
}

func (d *Daemon) startMetricsServer(addr string) error {
	pr, ok := d.recorder.(*metrics.PrometheusRecorder)
	if !ok {
		d.logger.Warn("metrics_addr set but no Prometheus recorder configured", slog.String("addr", addr))
		return nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return gsberrors.DaemonError(fmt.Sprintf("listen on %s", addr), err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(pr.Registry()))
	d.httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	srv := d.httpServer
	d.workers.Go(func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("Metrics server failed", logfields.Error(err))
		}
	})
	d.logger.Info("Serving metrics", slog.String("addr", ln.Addr().String()))
	return nil
}

func (d *Daemon) stopCompanions() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if d.configWatcher != nil {
		if err := d.configWatcher.Stop(shutdownCtx); err != nil {
			d.logger.Warn("Failed to stop config watcher", logfields.Error(err))
		}
	}
	if d.scheduler != nil {
		if err := d.scheduler.Stop(shutdownCtx); err != nil {
			d.logger.Warn("Failed to stop scheduler", logfields.Error(err))
		}
	}
	if d.httpServer != nil {
		if err := d.httpServer.Shutdown(shutdownCtx); err != nil {
			d.logger.Warn("Failed to stop metrics server", logfields.Error(err))
		}
	}
	if err := d.workers.StopAndWait(shutdownCtx); err != nil {
		d.logger.Warn("Timed out waiting for daemon workers", logfields.Error(err))
	}
}
