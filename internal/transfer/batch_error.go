package transfer

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/gsb/internal/plan"
)

// BatchError aggregates the per-item failures of one run.
type BatchError struct {
	Direction plan.Direction
	Failures  []Failure
}

func (e *BatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d item(s) failed", e.Direction, len(e.Failures))
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "; %s: %v", f.Item, f.Err)
	}
	return b.String()
}

// Unwrap exposes each item error to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
