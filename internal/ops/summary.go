package ops

import (
	"fmt"
	"io"
	"time"

	gsberrors "git.home.luguber.info/inful/gsb/internal/errors"
	"git.home.luguber.info/inful/gsb/internal/history"
	"git.home.luguber.info/inful/gsb/internal/plan"
	"git.home.luguber.info/inful/gsb/internal/transfer"
)

// Summary describes one finished run.
type Summary struct {
	RunID         string
	Command       string
	Direction     plan.Direction
	Device        string
	DeviceDisplay string
	Report        transfer.Report
	Skipped       []plan.Skip
	Committed     bool
	Commit        string
	StartedAt     time.Time
	FinishedAt    time.Time
	// Error is set when the run failed before or after transfers.
	Error error
}

// Err aggregates item failures, invalid skips and any run-level error.
func (s *Summary) Err() error {
	var errs []error
	if s.Error != nil {
		errs = append(errs, s.Error)
	}
	if err := s.Report.Err(); err != nil {
		errs = append(errs, err)
	}
	for _, skip := range s.Skipped {
		if skip.Err != nil {
			errs = append(errs, skip.Err)
		}
	}
	return gsberrors.Join(errs...)
}

// Print writes the human-readable summary. It is printed even when every
// item was skipped.
func (s *Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "%s on %s: %d applied, %d unchanged, %d skipped, %d failed\n",
		s.Command, s.DeviceDisplay,
		len(s.Report.Applied), len(s.Report.Unchanged), len(s.Skipped), len(s.Report.Failed))
	for _, item := range s.Report.Applied {
		fmt.Fprintf(w, "  applied    %s\n", item)
	}
	for _, skip := range s.Skipped {
		if skip.Err != nil {
			fmt.Fprintf(w, "  skipped    %s (%s: %v)\n", skip.Item, skip.Reason, skip.Err)
			continue
		}
		fmt.Fprintf(w, "  skipped    %s (%s)\n", skip.Item, skip.Reason)
	}
	for _, f := range s.Report.Failed {
		fmt.Fprintf(w, "  failed     %s: %v\n", f.Item, f.Err)
	}
	if s.Committed {
		short := s.Commit
		if len(short) > 8 {
			short = short[:8]
		}
		fmt.Fprintf(w, "committed %s\n", short)
	}
}

func (s *Summary) historyRecord() (history.Run, []history.ItemOutcome) {
	run := history.Run{
		ID:         s.RunID,
		Command:    s.Command,
		Device:     s.Device,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Applied:    len(s.Report.Applied),
		Unchanged:  len(s.Report.Unchanged),
		Skipped:    len(s.Skipped),
		Failed:     len(s.Report.Failed),
		Committed:  s.Committed,
		Commit:     s.Commit,
	}
	if err := s.Err(); err != nil {
		run.Error = err.Error()
	}

	var items []history.ItemOutcome
	add := func(item string, o history.Outcome, detail string) {
		items = append(items, history.ItemOutcome{RunID: s.RunID, Item: item, Outcome: o, Detail: detail})
	}
	for _, it := range s.Report.Applied {
		add(it, history.OutcomeApplied, "")
	}
	for _, it := range s.Report.Unchanged {
		add(it, history.OutcomeUnchanged, "")
	}
	for _, skip := range s.Skipped {
		add(skip.Item, history.OutcomeSkipped, string(skip.Reason))
	}
	for _, f := range s.Report.Failed {
		add(f.Item, history.OutcomeFailed, f.Err.Error())
	}
	return run, items
}
