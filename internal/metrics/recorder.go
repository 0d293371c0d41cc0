package metrics

import "time"

// ItemOutcome labels the per-item result of a run.
type ItemOutcome string

const (
	ItemApplied   ItemOutcome = "applied"
	ItemUnchanged ItemOutcome = "unchanged"
	ItemSkipped   ItemOutcome = "skipped"
	ItemFailed    ItemOutcome = "failed"
)

// CycleResult labels how a daemon cycle ended.
type CycleResult string

const (
	CycleChanged     CycleResult = "changed"
	CycleUnchanged   CycleResult = "unchanged"
	CycleFetchFailed CycleResult = "fetch_failed"
	CycleFailed      CycleResult = "failed"
)

// Recorder defines observability hooks for runs and daemon cycles.
// Implementations may forward to Prometheus or any other backend.
type Recorder interface {
	ObserveRunDuration(command string, d time.Duration)
	IncRunOutcome(command string, success bool)
	AddItemOutcomes(direction string, outcome ItemOutcome, n int)
	IncCycle(result CycleResult)
	IncFetchFailure()
	SetLastCycle(t time.Time)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveRunDuration(string, time.Duration) {}
func (NoopRecorder) IncRunOutcome(string, bool)               {}
func (NoopRecorder) AddItemOutcomes(string, ItemOutcome, int) {}
func (NoopRecorder) IncCycle(CycleResult)                     {}
func (NoopRecorder) IncFetchFailure()                         {}
func (NoopRecorder) SetLastCycle(time.Time)                   {}
