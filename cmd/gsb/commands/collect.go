package commands

import (
	"context"

	"git.home.luguber.info/inful/gsb/internal/ops"
)

// CollectCmd implements the 'collect' command.
type CollectCmd struct {
	NoCommit bool `name:"no-commit" help:"Copy into the repository without committing"`
}

func (c *CollectCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	ws, cfg, err := root.load()
	if err != nil {
		return err
	}
	var repo ops.Repository
	if !c.NoCommit {
		r, err := openRepository(g, ws, cfg)
		if err != nil {
			return err
		}
		repo = r
	}
	store := root.openHistory()
	defer closeHistory(store)

	runner := root.newRunner(g, ws, repo, store)
	summary, err := runner.Collect(ctx, cfg, ops.CollectOptions{Commit: !c.NoCommit})
	summary.Print(root.stdout())
	return err
}
