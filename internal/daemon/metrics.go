package daemon

import (
	"git.home.luguber.info/inful/gsb/internal/metrics"
	"git.home.luguber.info/inful/gsb/internal/ops"
)

// RunObserver forwards finished runs to a metrics recorder. Register it on
// the ops.Runner shared with the daemon so sync cycles and scheduled
// collects are both counted.
type RunObserver struct {
	Recorder metrics.Recorder
}

// NewRunObserver returns an observer for r, or for a no-op recorder when r is nil.
func NewRunObserver(r metrics.Recorder) RunObserver {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	return RunObserver{Recorder: r}
}

// ObserveRun implements ops.Observer.
func (o RunObserver) ObserveRun(s *ops.Summary) {
	if s == nil || o.Recorder == nil {
		return
	}
	dir := string(s.Direction)
	o.Recorder.ObserveRunDuration(s.Command, s.FinishedAt.Sub(s.StartedAt))
	o.Recorder.IncRunOutcome(s.Command, s.Err() == nil)
	o.Recorder.AddItemOutcomes(dir, metrics.ItemApplied, len(s.Report.Applied))
	o.Recorder.AddItemOutcomes(dir, metrics.ItemUnchanged, len(s.Report.Unchanged))
	o.Recorder.AddItemOutcomes(dir, metrics.ItemSkipped, len(s.Skipped))
	o.Recorder.AddItemOutcomes(dir, metrics.ItemFailed, len(s.Report.Failed))
}

var _ ops.Observer = RunObserver{}
