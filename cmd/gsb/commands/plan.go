package commands

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"git.home.luguber.info/inful/gsb/internal/history"
	"git.home.luguber.info/inful/gsb/internal/plan"
)

// PlanCmd implements the 'plan' command.
type PlanCmd struct {
	Direction string `short:"d" enum:"collect,restore" default:"restore" help:"Direction to plan (collect, restore)"`
}

func (p *PlanCmd) Run(g *Global, root *CLI) error {
	ws, cfg, err := root.load()
	if err != nil {
		return err
	}
	dir, err := plan.ParseDirection(p.Direction)
	if err != nil {
		return err
	}
	runner := root.newRunner(g, ws, nil, history.NopStore{})
	res, display := runner.Plan(cfg, dir)

	headerStyle := lipgloss.NewStyle().Bold(true)
	skipStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	out := root.stdout()

	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%s plan on %s: %d action(s), %d skipped",
		res.Direction, display, len(res.Actions), len(res.Skipped))))
	for _, a := range res.Actions {
		from, to := a.LocalPath, a.RepoPath
		if a.Direction == plan.Restore {
			from, to = a.RepoPath, a.LocalPath
		}
		kind := "copy"
		if a.IsHardlink {
			kind = "link"
		}
		fmt.Fprintf(out, "  %-4s %s: %s -> %s\n", kind, a.Item, from, to)
	}
	for _, s := range res.Skipped {
		line := fmt.Sprintf("  skip %s (%s)", s.Item, s.Reason)
		if s.Err != nil {
			line += ": " + s.Err.Error()
		}
		fmt.Fprintln(out, skipStyle.Render(line))
	}
	return nil
}
