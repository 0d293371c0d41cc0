package commands

import (
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/gsb/internal/config"
	"git.home.luguber.info/inful/gsb/internal/logfields"
	"git.home.luguber.info/inful/gsb/internal/ops"
	"git.home.luguber.info/inful/gsb/internal/workspace"
)

// DeviceCmd implements the 'device' command.
type DeviceCmd struct{}

// Run prints the device id, and its alias when a configuration names it.
// A missing or invalid configuration only drops the alias.
func (d *DeviceCmd) Run(_ *Global, root *CLI) error {
	var cfg *config.Config
	if ws, err := workspace.Discover(root.Repo); err == nil {
		if c, err := ws.LoadConfig(); err == nil {
			cfg = c
		} else {
			slog.Debug("Ignoring configuration for alias lookup", logfields.Error(err))
		}
	}

	info, err := ops.DeviceOf(root.identity(), cfg)
	if err != nil {
		return err
	}
	out := root.stdout()
	fmt.Fprintln(out, info.ID)
	if info.Alias != "" {
		fmt.Fprintf(out, "alias: %s\n", info.Alias)
	}
	return nil
}
