package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/gsb/internal/config"
	"git.home.luguber.info/inful/gsb/internal/git"
	"git.home.luguber.info/inful/gsb/internal/logfields"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force  bool   `help:"Overwrite an existing configuration file"`
	Format string `enum:"toml,yaml" default:"toml" help:"Configuration format (toml, yaml)"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	dir := root.Repo
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		dir = wd
	}
	dir, err := config.ExpandPath(dir)
	if err != nil {
		return err
	}

	name := config.FileName
	if i.Format == "yaml" {
		name = config.AlternateFileNames[0]
	}
	cfgPath := filepath.Join(dir, name)

	id, err := root.identity().ID()
	if err != nil {
		slog.Warn("Device id unavailable, example config has no alias", logfields.Error(err))
		id = ""
	}

	out := root.stdout()
	fmt.Fprintf(out, "Writing configuration to %s\n", cfgPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	if err := config.Init(cfgPath, i.Force, id); err != nil {
		return err
	}
	if _, err := git.InitOrOpen(dir,
		git.WithInitialBranch(config.DefaultBranch),
		git.WithLogger(g.Logger),
	); err != nil {
		return err
	}
	fmt.Fprintln(out, "initialized successfully")
	return nil
}
