package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/gsb/internal/config"
	"git.home.luguber.info/inful/gsb/internal/device"
	gsberrors "git.home.luguber.info/inful/gsb/internal/errors"
	"git.home.luguber.info/inful/gsb/internal/git"
	"git.home.luguber.info/inful/gsb/internal/history"
	"git.home.luguber.info/inful/gsb/internal/logfields"
	"git.home.luguber.info/inful/gsb/internal/ops"
	"git.home.luguber.info/inful/gsb/internal/version"
	"git.home.luguber.info/inful/gsb/internal/workspace"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Repo      string           `short:"r" env:"GSB_REPO" help:"Repository root (default: nearest ancestor holding a gsb config)"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	LogFormat string           `name:"log-format" enum:"text,json" default:"text" env:"GSB_LOG_FORMAT" help:"Log output format (text, json)"`
	NoHistory bool             `name:"no-history" help:"Do not record runs in the history database"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Collect CollectCmd `cmd:"" help:"Copy local files into the repository and commit"`
	Restore RestoreCmd `cmd:"" help:"Copy repository files to their local locations"`
	Sync    SyncCmd    `cmd:"" help:"Continuously fetch, fast-forward and restore"`
	Device  DeviceCmd  `cmd:"" help:"Print this machine's device id"`
	Plan    PlanCmd    `cmd:"" help:"Show what collect or restore would do, without doing it"`
	Init    InitCmd    `cmd:"" help:"Write an example configuration and initialize the repository"`
	History HistoryCmd `cmd:"" help:"Show recorded runs"`

	// Out receives command output; os.Stdout when nil.
	Out io.Writer `kong:"-"`
	// Identity overrides the machine identity.
	Identity *device.Identity `kong:"-"`
	// HistoryPath overrides the history database location.
	HistoryPath string `kong:"-"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := config.LogLevelInfo
	if c.Verbose {
		level = config.LogLevelDebug
	}
	opts := &slog.HandlerOptions{Level: level.SlogLevel()}
	var handler slog.Handler
	switch config.NormalizeLogFormat(c.LogFormat) {
	case config.LogFormatJSON:
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// Execute parses args into cli and runs the selected command.
func Execute(ctx context.Context, cli *CLI, args []string) error {
	opts := []kong.Option{
		kong.Name("gsb"),
		kong.Description("Git-backed sync and backup of local files across machines."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	}
	if cli.Out != nil {
		opts = append(opts, kong.Writers(cli.Out, os.Stderr))
	}
	parser, err := kong.New(cli, opts...)
	if err != nil {
		return gsberrors.InternalError("build command line parser", err)
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return gsberrors.Wrap(err, gsberrors.CategoryValidation, gsberrors.SeverityError, "invalid command line")
	}
	kctx.BindTo(ctx, (*context.Context)(nil))
	return kctx.Run(&Global{Logger: slog.Default()})
}

func (c *CLI) stdout() io.Writer {
	if c.Out != nil {
		return c.Out
	}
	return os.Stdout
}

func (c *CLI) identity() *device.Identity {
	if c.Identity != nil {
		return c.Identity
	}
	return device.Current()
}

// load discovers the workspace and loads its configuration.
func (c *CLI) load() (*workspace.Workspace, *config.Config, error) {
	ws, err := workspace.Discover(c.Repo)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := ws.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	return ws, cfg, nil
}

// openHistory returns the history store. Failures degrade to no history.
func (c *CLI) openHistory() history.Store {
	if c.NoHistory {
		return history.NopStore{}
	}
	path := c.HistoryPath
	if path == "" {
		p, err := history.DefaultPath()
		if err != nil {
			slog.Warn("History disabled: cannot resolve state directory", logfields.Error(err))
			return history.NopStore{}
		}
		path = p
	}
	store, err := history.NewSQLiteStore(path)
	if err != nil {
		slog.Warn("History disabled: cannot open database", logfields.Path(path), logfields.Error(err))
		return history.NopStore{}
	}
	return store
}

func closeHistory(store history.Store) {
	if err := store.Close(); err != nil {
		slog.Warn("Failed to close history", logfields.Error(err))
	}
}

func (c *CLI) newRunner(g *Global, ws *workspace.Workspace, repo ops.Repository, store history.Store, opts ...ops.Option) *ops.Runner {
	base := []ops.Option{
		ops.WithIdentity(c.identity()),
		ops.WithHistory(store),
		ops.WithLogger(g.Logger),
	}
	return ops.New(ws, repo, append(base, opts...)...)
}

func openRepository(g *Global, ws *workspace.Workspace, cfg *config.Config) (*git.Repository, error) {
	return git.InitOrOpen(ws.Root(),
		git.WithAuthor(cfg.Git.AuthorName, cfg.Git.AuthorEmail),
		git.WithInitialBranch(cfg.Git.Branch),
		git.WithLogger(g.Logger),
	)
}
