package commands

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/gsb/internal/daemon"
	"git.home.luguber.info/inful/gsb/internal/metrics"
	"git.home.luguber.info/inful/gsb/internal/ops"
)

// SyncCmd implements the 'sync' command.
type SyncCmd struct {
	NoWatch bool `name:"no-watch" help:"Do not reload the configuration when the file changes"`
}

func (s *SyncCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	ws, cfg, err := root.load()
	if err != nil {
		return err
	}
	repo, err := openRepository(g, ws, cfg)
	if err != nil {
		return err
	}
	store := root.openHistory()
	defer closeHistory(store)

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Daemon.MetricsAddr != "" {
		recorder = metrics.NewPrometheusRecorder(nil)
	}
	runner := root.newRunner(g, ws, repo, store, ops.WithObserver(daemon.NewRunObserver(recorder)))

	opts := []daemon.Option{daemon.WithRecorder(recorder), daemon.WithLogger(g.Logger)}
	if s.NoWatch {
		opts = append(opts, daemon.WithConfigWatch(false))
	}
	d, err := daemon.New(runner, cfg, opts...)
	if err != nil {
		return err
	}

	slog.Info("Starting sync, press Ctrl+C to stop")
	return d.Run(ctx)
}
