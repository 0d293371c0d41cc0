package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	gsberrors "git.home.luguber.info/inful/gsb/internal/errors"
	"git.home.luguber.info/inful/gsb/internal/history"
)

var titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int    `short:"n" default:"20" help:"Number of runs to show"`
	RunID string `arg:"" optional:"" name:"run" help:"Show per-item outcomes of this run"`
}

func (h *HistoryCmd) Run(ctx context.Context, root *CLI) error {
	if root.NoHistory {
		return gsberrors.ValidationFailed("no-history", "history is disabled")
	}
	store := root.openHistory()
	defer closeHistory(store)

	if h.RunID != "" {
		return h.printItems(ctx, root, store)
	}
	return h.printRuns(ctx, root, store)
}

func (h *HistoryCmd) printRuns(ctx context.Context, root *CLI, store history.Store) error {
	runs, err := store.Recent(ctx, h.Limit)
	if err != nil {
		return err
	}
	out := root.stdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Last %d run(s)", len(runs))))
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tCOMMAND\tDEVICE\tAPPLIED\tUNCHANGED\tSKIPPED\tFAILED\tCOMMIT")
	for _, r := range runs {
		commit := "-"
		if r.Committed {
			commit = shortHash(r.Commit)
		}
		device := r.Device
		if device == "" {
			device = "<unknown>"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			r.ID, humanize.Time(r.StartedAt), r.Command, device,
			r.Applied, r.Unchanged, r.Skipped, r.Failed, commit)
	}
	return w.Flush()
}

func (h *HistoryCmd) printItems(ctx context.Context, root *CLI, store history.Store) error {
	items, err := store.Items(ctx, h.RunID)
	if err != nil {
		return err
	}
	out := root.stdout()
	if len(items) == 0 {
		fmt.Fprintf(out, "No items recorded for run %s.\n", h.RunID)
		return nil
	}
	fmt.Fprintln(out, titleStyle.Render("Run "+h.RunID))
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ITEM\tOUTCOME\tDETAIL")
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\n", it.Item, it.Outcome, it.Detail)
	}
	return w.Flush()
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
