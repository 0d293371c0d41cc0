// Package transfer executes planned actions: copying between the repository
// and local paths, and maintaining hardlinks.
package transfer

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	gsberrors "git.home.luguber.info/inful/gsb/internal/errors"
	"git.home.luguber.info/inful/gsb/internal/logfields"
	"git.home.luguber.info/inful/gsb/internal/plan"
)

// DefaultWorkers bounds concurrent item transfers when no option is given.
const DefaultWorkers = 4

// Engine executes planned actions. Hardlink actions require the OS filesystem.
type Engine struct {
	fs      afero.Fs
	workers int
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithFs replaces the filesystem used for copying.
func WithFs(fs afero.Fs) Option {
	return func(e *Engine) { e.fs = fs }
}

// WithWorkers sets the worker pool size.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine backed by the OS filesystem.
func New(opts ...Option) *Engine {
	e := &Engine{
		fs:      afero.NewOsFs(),
		workers: DefaultWorkers,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsDir reports whether path is an existing directory. A missing path is not
// an error. Engine satisfies plan.Inspector.
func (e *Engine) IsDir(path string) (bool, error) {
	info, err := e.fs.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// Execute performs one action and reports whether anything on disk changed.
func (e *Engine) Execute(ctx context.Context, a plan.Action) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, gsberrors.TransferFailed(a.Item, err)
	}

	var (
		changed bool
		err     error
	)
	switch a.Direction {
	case plan.Collect:
		changed, err = e.collect(a)
	case plan.Restore:
		changed, err = e.restore(a)
	default:
		err = gsberrors.InternalError("unknown transfer direction "+string(a.Direction), nil)
	}
	if err != nil {
		if _, ok := gsberrors.AsClassified(err); !ok {
			err = gsberrors.TransferFailed(a.Item, err)
		}
		return false, err
	}
	return changed, nil
}

// Run executes actions on a bounded worker pool. Failures never stop the
// batch; they are collected in the returned Report.
func (e *Engine) Run(ctx context.Context, actions []plan.Action) Report {
	start := time.Now()
	var (
		mu     sync.Mutex
		report Report
	)
	record := func(a plan.Action, changed bool, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err != nil:
			report.Failed = append(report.Failed, Failure{Item: a.Item, Err: err})
		case changed:
			report.Applied = append(report.Applied, a.Item)
		default:
			report.Unchanged = append(report.Unchanged, a.Item)
		}
	}

	var g errgroup.Group
	g.SetLimit(e.workers)
	for _, a := range actions {
		g.Go(func() error {
			changed, err := e.Execute(ctx, a)
			e.logAction(a, changed, err)
			record(a, changed, err)
			return nil
		})
	}
	_ = g.Wait()

	report.sort()
	if len(actions) > 0 {
		report.Direction = actions[0].Direction
	}
	report.Duration = time.Since(start)
	return report
}

func (e *Engine) logAction(a plan.Action, changed bool, err error) {
	attrs := []slog.Attr{
		logfields.Item(a.Item),
		logfields.Direction(string(a.Direction)),
		logfields.RepoPath(a.RepoPath),
		logfields.LocalPath(a.LocalPath),
	}
	switch {
	case err != nil:
		e.logger.LogAttrs(context.Background(), slog.LevelWarn, "Transfer failed", append(attrs, logfields.Error(err))...)
	case changed:
		e.logger.LogAttrs(context.Background(), slog.LevelInfo, "Transfer applied", attrs...)
	default:
		e.logger.LogAttrs(context.Background(), slog.LevelDebug, "Transfer unchanged", attrs...)
	}
}

// Failure is one failed item.
type Failure struct {
	Item string
	Err  error
}

// Report aggregates the outcome of a batch. Item lists are sorted.
type Report struct {
	Direction plan.Direction
	Applied   []string
	Unchanged []string
	Failed    []Failure
	Duration  time.Duration
}

func (r *Report) sort() {
	sort.Strings(r.Applied)
	sort.Strings(r.Unchanged)
	sort.Slice(r.Failed, func(i, j int) bool { return r.Failed[i].Item < r.Failed[j].Item })
}

// Err returns a *BatchError when any item failed.
func (r Report) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return &BatchError{Direction: r.Direction, Failures: r.Failed}
}
