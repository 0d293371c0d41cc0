// Package ops implements the user-facing operations: collect, restore, plan
// and device. The sync daemon builds on the same Runner.
package ops

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/gsb/internal/config"
	"git.home.luguber.info/inful/gsb/internal/device"
	"git.home.luguber.info/inful/gsb/internal/history"
	"git.home.luguber.info/inful/gsb/internal/plan"
	"git.home.luguber.info/inful/gsb/internal/transfer"
	"git.home.luguber.info/inful/gsb/internal/workspace"
)

// Repository is the git capability the operations depend on.
type Repository interface {
	Fetch(ctx context.Context, remote, branch string) (bool, error)
	FastForwardOrMerge(ctx context.Context, remote, branch string) error
	CommitAll(ctx context.Context, message string) (bool, error)
	Head() (string, error)
}

// Engine executes planned actions.
type Engine interface {
	plan.Inspector
	Run(ctx context.Context, actions []plan.Action) transfer.Report
}

// Observer is notified after every run, successful or not.
type Observer interface {
	ObserveRun(s *Summary)
}

// Runner executes operations against one workspace.
type Runner struct {
	ws        *workspace.Workspace
	repo      Repository
	identity  *device.Identity
	history   history.Store
	observers []Observer
	newEngine func(cfg *config.Config) Engine
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithIdentity overrides the device identity.
func WithIdentity(id *device.Identity) Option {
	return func(r *Runner) { r.identity = id }
}

// WithHistory records every run in store.
func WithHistory(store history.Store) Option {
	return func(r *Runner) {
		if store != nil {
			r.history = store
		}
	}
}

// WithObserver adds a run observer.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observers = append(r.observers, o) }
}

// WithEngine replaces the transfer engine factory.
func WithEngine(fn func(cfg *config.Config) Engine) Option {
	return func(r *Runner) { r.newEngine = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New creates a Runner for ws. repo may be nil when no commit is requested.
func New(ws *workspace.Workspace, repo Repository, opts ...Option) *Runner {
	r := &Runner{
		ws:       ws,
		repo:     repo,
		identity: device.Current(),
		history:  history.NopStore{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.newEngine == nil {
		r.newEngine = func(cfg *config.Config) Engine {
			return transfer.New(transfer.WithWorkers(cfg.Workers), transfer.WithLogger(r.logger))
		}
	}
	return r
}

// Workspace returns the workspace the runner operates on.
func (r *Runner) Workspace() *workspace.Workspace { return r.ws }

// Repository returns the git collaborator.
func (r *Runner) Repository() Repository { return r.repo }

// DeviceID returns the current device id, degrading to device.Unknown.
func (r *Runner) DeviceID() string {
	return r.identity.IDOrUnknown(r.logger)
}
