package commands

import "context"

// RestoreCmd implements the 'restore' command.
type RestoreCmd struct{}

func (r *RestoreCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	ws, cfg, err := root.load()
	if err != nil {
		return err
	}
	store := root.openHistory()
	defer closeHistory(store)

	runner := root.newRunner(g, ws, nil, store)
	summary, err := runner.Restore(ctx, cfg)
	summary.Print(root.stdout())
	return err
}
