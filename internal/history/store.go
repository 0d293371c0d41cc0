// Package history keeps a local journal of gsb runs and per-item outcomes.
package history

import (
	"context"
	"time"
)

// Outcome of one item within a run.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Run is one collect, restore or sync cycle.
type Run struct {
	ID         string
	Command    string
	Device     string
	StartedAt  time.Time
	FinishedAt time.Time
	Applied    int
	Unchanged  int
	Skipped    int
	Failed     int
	Committed  bool
	Commit     string
	Error      string
	Metadata   map[string]string
}

// ItemOutcome is the result for one item of a run.
type ItemOutcome struct {
	RunID   string
	Item    string
	Outcome Outcome
	Detail  string
}

// Store persists runs.
type Store interface {
	Record(ctx context.Context, run Run, items []ItemOutcome) error
	Recent(ctx context.Context, limit int) ([]Run, error)
	Items(ctx context.Context, runID string) ([]ItemOutcome, error)
	Close() error
}

// NopStore discards everything. Used with --no-history.
type NopStore struct{}

func (NopStore) Record(context.Context, Run, []ItemOutcome) error     { return nil }
func (NopStore) Recent(context.Context, int) ([]Run, error)           { return nil, nil }
func (NopStore) Items(context.Context, string) ([]ItemOutcome, error) { return nil, nil }
func (NopStore) Close() error                                         { return nil }
