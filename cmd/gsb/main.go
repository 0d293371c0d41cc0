package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/gsb/cmd/gsb/commands"
	gsberrors "git.home.luguber.info/inful/gsb/internal/errors"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cli := &commands.CLI{}
	err := commands.Execute(ctx, cli, os.Args[1:])
	cancel()
	if err != nil {
		gsberrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
