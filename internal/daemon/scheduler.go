package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/gsb/internal/config"
	gsberrors "git.home.luguber.info/inful/gsb/internal/errors"
	"git.home.luguber.info/inful/gsb/internal/logfields"
	"git.home.luguber.info/inful/gsb/internal/ops"
)

const collectJobName = "periodic-collect"

// collector is the part of ops.Runner the scheduler needs.
type collector interface {
	Collect(ctx context.Context, cfg *config.Config, opts ops.CollectOptions) (*ops.Summary, error)
}

// configSource yields the configuration for each scheduled run.
type configSource interface {
	Config() *config.Config
}

// Scheduler wraps a gocron scheduler that runs collect and commit on a fixed
// interval. The job runs in singleton mode and takes the workspace lock
// through Collect, so it never overlaps a sync cycle or itself.
type Scheduler struct {
	scheduler gocron.Scheduler
	collector collector
	configs   configSource
	logger    *slog.Logger

	mu    sync.Mutex
	jobID uuid.UUID
	ctx   context.Context
}

// NewScheduler creates a scheduler instance.
func NewScheduler(c collector, configs configSource) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, gsberrors.DaemonError("create gocron scheduler", err)
	}
	return &Scheduler{
		scheduler: s,
		collector: c,
		configs:   configs,
		logger:    slog.Default(),
		ctx:       context.Background(),
	}, nil
}

// Start begins the scheduler. Scheduled runs use a context detached from
// ctx's cancellation so an in-flight collect finishes its commit.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = context.WithoutCancel(ctx)
	s.mu.Unlock()
	s.logger.Debug("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler, waiting for a running job.
func (s *Scheduler) Stop(_ context.Context) error {
	s.logger.Debug("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// SchedulePeriodicCollect replaces the collect job. A zero interval only
// removes it.
func (s *Scheduler) SchedulePeriodicCollect(interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.jobID != uuid.Nil {
		if err := s.scheduler.RemoveJob(s.jobID); err != nil {
			s.logger.Warn("Failed to remove collect job", logfields.Error(err))
		}
		s.jobID = uuid.Nil
	}
	if interval <= 0 {
		return nil
	}

	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.executeCollect),
		gocron.WithName(collectJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return gsberrors.DaemonError("create periodic collect job", err)
	}
	s.jobID = job.ID()
	s.logger.Info("Scheduled periodic collect", slog.Duration("interval", interval))
	s.logger.Warn("Periodic collect commits are not pushed; sync stops fast-forwarding once the remote also moves",
		slog.Duration("interval", interval))
	return nil
}

// Scheduled reports whether a collect job is registered.
func (s *Scheduler) Scheduled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobID != uuid.Nil
}

// executeCollect is called by gocron.
func (s *Scheduler) executeCollect() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	cfg := s.configs.Config()
	summary, err := s.collector.Collect(ctx, cfg, ops.CollectOptions{Commit: true, Command: ops.CommandScheduledCollect})
	if err != nil {
		s.logger.Error("Scheduled collect finished with errors", logfields.Error(err))
		return
	}
	s.logger.Debug("Scheduled collect finished",
		logfields.RunID(summary.RunID),
		slog.Int("applied", len(summary.Report.Applied)),
		slog.Bool("committed", summary.Committed))
}
