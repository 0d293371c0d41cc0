package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"git.home.luguber.info/inful/gsb/internal/config"
	gsberrors "git.home.luguber.info/inful/gsb/internal/errors"
	"git.home.luguber.info/inful/gsb/internal/logfields"
)

// ErrNoRepository is returned when no ancestor directory holds a config file.
var ErrNoRepository = errors.New("no gsb repository found in this directory or any parent")

// LockFileName is the cross-process lock file created inside .git.
const LockFileName = "gsb.lock"

// Workspace is one gsb repository on disk.
type Workspace struct {
	root       string
	configPath string
	mu         sync.Mutex
}

// New returns the workspace rooted at root. The config path defaults to the
// primary file name when no config file exists yet.
func New(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, gsberrors.WorkspaceError("resolve root", err)
	}
	cfgPath := ConfigIn(abs)
	if cfgPath == "" {
		cfgPath = filepath.Join(abs, config.FileName)
	}
	return &Workspace{root: abs, configPath: cfgPath}, nil
}

// Discover returns the workspace at explicit when set, otherwise the nearest
// ancestor of the working directory that contains a config file.
func Discover(explicit string) (*Workspace, error) {
	if explicit != "" {
		p, err := config.ExpandPath(explicit)
		if err != nil {
			return nil, gsberrors.WorkspaceError("expand root", err)
		}
		return New(p)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, gsberrors.WorkspaceError("getwd", err)
	}
	root, err := FindRoot(cwd)
	if err != nil {
		return nil, err
	}
	slog.Debug("Discovered repository", logfields.Path(root))
	return New(root)
}

// FindRoot walks up from start to the first directory holding a config file.
func FindRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", gsberrors.WorkspaceError("resolve start", err)
	}
	for {
		if ConfigIn(dir) != "" {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", gsberrors.Wrap(ErrNoRepository, gsberrors.CategoryConfig, gsberrors.SeverityFatal,
				"repository not found").WithContext("start", start)
		}
		dir = parent
	}
}

// ConfigIn returns the config file present in dir, or "".
func ConfigIn(dir string) string {
	for _, name := range append([]string{config.FileName}, config.AlternateFileNames...) {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// Root returns the repository root.
func (w *Workspace) Root() string { return w.root }

// ConfigPath returns the config file of this workspace.
func (w *Workspace) ConfigPath() string { return w.configPath }

// LoadConfig loads and validates the workspace config.
func (w *Workspace) LoadConfig() (*config.Config, error) {
	return config.Load(w.configPath)
}

// WithLock runs fn while holding the repository lock. The in-process mutex
// serializes companions of one process; once .git exists a file lock in it
// also serializes separate gsb processes working on the same root.
func (w *Workspace) WithLock(fn func() error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	unlock, err := w.lockRepository()
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// LockPath returns the file lock location. It is "" while the root has no
// .git directory: nothing can fetch or reset a tree without one.
func (w *Workspace) LockPath() string {
	gitDir := filepath.Join(w.root, ".git")
	if info, err := os.Stat(gitDir); err != nil || !info.IsDir() {
		return ""
	}
	return filepath.Join(gitDir, LockFileName)
}

func (w *Workspace) lockRepository() (func(), error) {
	path := w.LockPath()
	if path == "" {
		return func() {}, nil
	}
	fl := flock.New(path)
	if err := fl.Lock(); err != nil {
		return nil, gsberrors.WorkspaceError("acquire repository lock", fmt.Errorf("%s: %w", path, err))
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			slog.Warn("Failed to release repository lock", logfields.Path(path), logfields.Error(err))
		}
	}, nil
}

// Ensure creates the root directory when missing.
func (w *Workspace) Ensure() error {
	if err := os.MkdirAll(w.root, 0o750); err != nil {
		return gsberrors.WorkspaceError("create root", fmt.Errorf("%s: %w", w.root, err))
	}
	return nil
}
