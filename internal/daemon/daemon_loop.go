package daemon

import (
	"context"

	"git.home.luguber.info/inful/gsb/internal/config"
	"git.home.luguber.info/inful/gsb/internal/logfields"
	"git.home.luguber.info/inful/gsb/internal/metrics"
	"git.home.luguber.info/inful/gsb/internal/ops"
)

// mainLoop runs cycles separated by the sync interval. The sleep is the only
// point where cancellation is observed.
func (d *Daemon) mainLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		d.runCycle(context.WithoutCancel(ctx))

		interval := d.Config().SyncIntervalDuration()
		d.setState(StateSleeping)
		select {
		case <-ctx.Done():
			d.logger.Debug("Sync loop stopped by context cancellation")
			return
		case <-d.stopChan:
			d.logger.Debug("Sync loop stopped by stop signal")
			return
		case <-d.after(interval):
		}
	}
}

// runCycle performs fetch, fast-forward, config reload and restore while
// holding the workspace lock. History and observers are notified after the
// lock is released.
func (d *Daemon) runCycle(ctx context.Context) {
	d.setState(StateFetching)
	ws := d.runner.Workspace()
	repo := d.runner.Repository()

	var (
		summary *ops.Summary
		result  = metrics.CycleUnchanged
	)
	lockErr := ws.WithLock(func() error {
		cfg := d.Config()
		sc := cfg.Sync()

		changed, err := repo.Fetch(ctx, sc.Remote, sc.Branch)
		if err != nil {
			d.fetchFailures.Add(1)
			d.recorder.IncFetchFailure()
			d.lastError.Store(err.Error())
			result = metrics.CycleFetchFailed
			d.logger.Warn("Fetch failed, retrying next cycle",
				logfields.Remote(sc.Remote), logfields.Branch(sc.Branch), logfields.Error(err))
			return nil
		}
		if !changed {
			d.logger.Debug("No changes on remote", logfields.Remote(sc.Remote), logfields.Branch(sc.Branch))
			return nil
		}

		if err := repo.FastForwardOrMerge(ctx, sc.Remote, sc.Branch); err != nil {
			d.lastError.Store(err.Error())
			result = metrics.CycleFailed
			d.logger.Error("Fast-forward failed", logfields.Branch(sc.Branch), logfields.Error(err))
			return nil
		}

		d.setState(StateApplying)
		cfg = d.reloadFromTree(cfg)
		summary = d.runner.RestoreLocked(ctx, cfg, ops.CommandSync)
		result = metrics.CycleChanged
		return nil
	})

	if lockErr != nil {
		d.lastError.Store(lockErr.Error())
		result = metrics.CycleFailed
		d.logger.Error("Failed to lock repository", logfields.Error(lockErr))
	}

	if summary != nil {
		d.runner.Finish(ctx, summary)
		if err := summary.Err(); err != nil {
			d.lastError.Store(err.Error())
			result = metrics.CycleFailed
		} else {
			d.lastError.Store("")
		}
	} else if result == metrics.CycleUnchanged {
		d.lastError.Store("")
	}

	now := d.now()
	d.cycles.Add(1)
	d.lastCycle.Store(now)
	d.recorder.IncCycle(result)
	d.recorder.SetLastCycle(now)
	d.setState(StateIdle)
}

// reloadFromTree loads the config the fast-forward may have changed. An
// invalid file keeps the previous configuration.
func (d *Daemon) reloadFromTree(current *config.Config) *config.Config {
	cfg, err := d.runner.Workspace().LoadConfig()
	if err != nil {
		d.logger.Warn("Config from remote is invalid, keeping previous configuration", logfields.Error(err))
		return current
	}
	d.ReloadConfig(cfg)
	return cfg
}
