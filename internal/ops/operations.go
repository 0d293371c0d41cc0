package ops

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/gsb/internal/config"
	"git.home.luguber.info/inful/gsb/internal/device"
	gsberrors "git.home.luguber.info/inful/gsb/internal/errors"
	"git.home.luguber.info/inful/gsb/internal/git"
	"git.home.luguber.info/inful/gsb/internal/logfields"
	"git.home.luguber.info/inful/gsb/internal/plan"
)

// Command names recorded in history and metrics.
const (
	CommandCollect          = "collect"
	CommandRestore          = "restore"
	CommandSync             = "sync"
	CommandScheduledCollect = "scheduled-collect"
)

// CollectOptions tunes Collect.
type CollectOptions struct {
	// Commit the collected tree after transferring.
	Commit bool
	// Command overrides the name recorded for the run.
	Command string
}

// Collect copies local state into the repository and optionally commits it.
// Plan, transfer and commit run under the workspace lock.
func (r *Runner) Collect(ctx context.Context, cfg *config.Config, opts CollectOptions) (*Summary, error) {
	command := opts.Command
	if command == "" {
		command = CommandCollect
	}
	var summary *Summary
	if err := r.ws.WithLock(func() error {
		summary = r.apply(ctx, cfg, command, plan.Collect)
		if opts.Commit {
			r.commit(ctx, summary)
		}
		return nil
	}); err != nil {
		summary = r.lockFailed(cfg, command, plan.Collect, err)
	}
	r.finish(ctx, summary)
	return summary, summary.Err()
}

// Restore copies repository state into local locations under the workspace lock.
func (r *Runner) Restore(ctx context.Context, cfg *config.Config) (*Summary, error) {
	var summary *Summary
	if err := r.ws.WithLock(func() error {
		summary = r.RestoreLocked(ctx, cfg, CommandRestore)
		return nil
	}); err != nil {
		summary = r.lockFailed(cfg, CommandRestore, plan.Restore, err)
	}
	r.finish(ctx, summary)
	return summary, summary.Err()
}

// RestoreLocked runs a restore pass while the caller already holds the
// workspace lock. The caller is responsible for calling Finish.
func (r *Runner) RestoreLocked(ctx context.Context, cfg *config.Config, command string) *Summary {
	return r.apply(ctx, cfg, command, plan.Restore)
}

// Finish records a summary produced by RestoreLocked.
func (r *Runner) Finish(ctx context.Context, s *Summary) {
	r.finish(ctx, s)
}

// Plan returns what collect or restore would do on this device, without
// transferring anything.
func (r *Runner) Plan(cfg *config.Config, direction plan.Direction) (plan.Result, string) {
	dev := r.DeviceID()
	aliases := device.NewAliases(cfg.Aliases)
	res := plan.Plan(cfg.Items, dev, aliases, r.ws.Root(), direction)
	return plan.CheckHardlinks(res, r.newEngine(cfg)), aliases.Display(dev)
}

// DeviceInfo describes the current machine.
type DeviceInfo struct {
	ID    string
	Alias string
}

// Device returns the current device id. Unlike the transfer operations it
// fails when the id cannot be read. cfg may be nil.
func (r *Runner) Device(cfg *config.Config) (DeviceInfo, error) {
	return DeviceOf(r.identity, cfg)
}

// DeviceOf resolves the id and alias of identity without a workspace.
func DeviceOf(identity *device.Identity, cfg *config.Config) (DeviceInfo, error) {
	id, err := identity.ID()
	if err != nil {
		return DeviceInfo{}, err
	}
	info := DeviceInfo{ID: id}
	if cfg != nil {
		if name, ok := device.NewAliases(cfg.Aliases).NameOf(id); ok {
			info.Alias = name
		}
	}
	return info, nil
}

// newSummary starts the summary of one run.
func (r *Runner) newSummary(cfg *config.Config, command string, direction plan.Direction) *Summary {
	dev := r.DeviceID()
	return &Summary{
		RunID:         uuid.NewString(),
		Command:       command,
		Direction:     direction,
		Device:        dev,
		DeviceDisplay: device.NewAliases(cfg.Aliases).Display(dev),
		StartedAt:     r.now(),
	}
}

// lockFailed is the summary of a run that never acquired the workspace lock.
func (r *Runner) lockFailed(cfg *config.Config, command string, direction plan.Direction, err error) *Summary {
	s := r.newSummary(cfg, command, direction)
	s.Error = err
	s.FinishedAt = s.StartedAt
	return s
}

// apply plans and transfers one direction. The workspace lock must be held.
func (r *Runner) apply(ctx context.Context, cfg *config.Config, command string, direction plan.Direction) *Summary {
	s := r.newSummary(cfg, command, direction)
	dev := s.Device
	aliases := device.NewAliases(cfg.Aliases)
	log := r.logger.With(logfields.RunID(s.RunID), logfields.Direction(string(direction)))
	log.Info("Starting "+command, logfields.Device(s.DeviceDisplay), slog.Int("items", len(cfg.Items)))

	engine := r.newEngine(cfg)
	res := plan.CheckHardlinks(plan.Plan(cfg.Items, dev, aliases, r.ws.Root(), direction), engine)
	for _, skip := range res.Skipped {
		if skip.Err != nil {
			log.Warn("Item skipped", logfields.Item(skip.Item), logfields.Reason(string(skip.Reason)), logfields.Error(skip.Err))
			continue
		}
		log.Debug("Item skipped", logfields.Item(skip.Item), logfields.Reason(string(skip.Reason)))
	}
	s.Skipped = res.Skipped
	s.Report = engine.Run(ctx, res.Actions)
	s.FinishedAt = r.now()
	return s
}

// commit records the collected tree. Commit failures are fatal to the command.
func (r *Runner) commit(ctx context.Context, s *Summary) {
	if r.repo == nil {
		s.Error = gsberrors.InternalError("commit requested without a repository", nil)
		return
	}
	msg := CommitMessage(s.DeviceDisplay, s.StartedAt.Unix())
	committed, err := r.repo.CommitAll(ctx, msg)
	if err != nil {
		s.Error = git.ClassifyGitError(err, "commit", r.ws.Root())
		return
	}
	s.Committed = committed
	if committed {
		if hash, herr := r.repo.Head(); herr == nil {
			s.Commit = hash
		}
	}
	s.FinishedAt = r.now()
}

// CommitMessage formats the message used for collect commits.
func CommitMessage(deviceDisplay string, unix int64) string {
	return fmt.Sprintf("gsb collect on %s at %d", deviceDisplay, unix)
}

func (r *Runner) finish(ctx context.Context, s *Summary) {
	if s == nil {
		return
	}
	attrs := []any{
		logfields.RunID(s.RunID),
		slog.Int("applied", len(s.Report.Applied)),
		slog.Int("unchanged", len(s.Report.Unchanged)),
		slog.Int("skipped", len(s.Skipped)),
		slog.Int("failed", len(s.Report.Failed)),
		logfields.DurationMS(float64(s.FinishedAt.Sub(s.StartedAt).Microseconds()) / 1000),
	}
	if err := s.Err(); err != nil {
		r.logger.Warn("Finished "+s.Command+" with errors", append(attrs, logfields.Error(err))...)
	} else {
		r.logger.Info("Finished "+s.Command, attrs...)
	}

	run, items := s.historyRecord()
	if err := r.history.Record(ctx, run, items); err != nil {
		r.logger.Warn("Failed to record history", logfields.RunID(s.RunID), logfields.Error(err))
	}
	for _, o := range r.observers {
		o.ObserveRun(s)
	}
}
