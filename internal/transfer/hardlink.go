package transfer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	gsberrors "git.home.luguber.info/inful/gsb/internal/errors"
	"git.home.luguber.info/inful/gsb/internal/logfields"
	"git.home.luguber.info/inful/gsb/internal/plan"
)

var errNeedsOsFs = errors.New("hardlinks require the OS filesystem")

// checkHardlinkRepo validates a hardlink item during collect. Collect never
// creates or breaks links, so a missing repository file is only logged.
func (e *Engine) checkHardlinkRepo(a plan.Action) error {
	info, err := e.fs.Stat(a.RepoPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			e.logger.Debug("Hardlink item has no repository file yet",
				logfields.Item(a.Item), logfields.RepoPath(a.RepoPath))
			return nil
		}
		return err
	}
	if info.IsDir() {
		return gsberrors.InvalidHardlinkTarget(a.Item, a.RepoPath)
	}
	return nil
}

// link makes LocalPath a hardlink of RepoPath unless it already is one. The
// link is created under a temporary name and renamed over LocalPath, so a
// failed link (EXDEV across filesystems) leaves the local file untouched.
func (e *Engine) link(a plan.Action, repoInfo os.FileInfo) (bool, error) {
	if _, ok := e.fs.(*afero.OsFs); !ok {
		return false, errNeedsOsFs
	}

	localInfo, err := os.Lstat(a.LocalPath)
	switch {
	case err == nil && localInfo.IsDir():
		return false, fmt.Errorf("refusing to replace directory %s with a hardlink", a.LocalPath)
	case err == nil:
		if os.SameFile(repoInfo, localInfo) {
			return false, nil
		}
	case !errors.Is(err, os.ErrNotExist):
		return false, err
	}

	dir := filepath.Dir(a.LocalPath)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return false, err
	}
	tmp := filepath.Join(dir, "."+filepath.Base(a.LocalPath)+".gsb-link")
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	if err := os.Link(a.RepoPath, tmp); err != nil {
		return false, err
	}
	if err := os.Rename(tmp, a.LocalPath); err != nil {
		_ = os.Remove(tmp)
		return false, err
	}
	return true, nil
}
