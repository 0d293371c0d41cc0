package transfer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	gsberrors "git.home.luguber.info/inful/gsb/internal/errors"
	"git.home.luguber.info/inful/gsb/internal/logfields"
	"git.home.luguber.info/inful/gsb/internal/plan"
)

const dirPerm os.FileMode = 0o750

// collect mirrors the local path into the repository. Entries that no longer
// exist locally are pruned from the repository copy.
func (e *Engine) collect(a plan.Action) (bool, error) {
	if a.IsHardlink {
		return false, e.checkHardlinkRepo(a)
	}

	info, err := e.fs.Stat(a.LocalPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, gsberrors.SourceMissing(a.Item, a.LocalPath)
		}
		return false, err
	}
	if err := e.fs.MkdirAll(filepath.Dir(a.RepoPath), dirPerm); err != nil {
		return false, err
	}
	if info.IsDir() {
		return e.mirrorDir(a.LocalPath, a.RepoPath, info.Mode().Perm())
	}
	return e.syncFile(a.LocalPath, a.RepoPath, info, true)
}

// restore overlays the repository copy onto the local path. Nothing is
// deleted locally.
func (e *Engine) restore(a plan.Action) (bool, error) {
	info, err := e.fs.Stat(a.RepoPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, gsberrors.SourceMissing(a.Item, a.RepoPath)
		}
		return false, err
	}
	if a.IsHardlink {
		if info.IsDir() {
			return false, gsberrors.InvalidHardlinkTarget(a.Item, a.RepoPath)
		}
		return e.link(a, info)
	}
	if err := e.fs.MkdirAll(filepath.Dir(a.LocalPath), dirPerm); err != nil {
		return false, err
	}
	if info.IsDir() {
		return e.overlayDir(a.RepoPath, a.LocalPath, info.Mode().Perm())
	}
	return e.syncFile(a.RepoPath, a.LocalPath, info, false)
}

// mirrorDir makes dst an exact copy of src.
func (e *Engine) mirrorDir(src, dst string, perm os.FileMode) (bool, error) {
	changed, err := e.ensureDir(dst, perm, true)
	if err != nil {
		return false, err
	}

	entries, err := afero.ReadDir(e.fs, src)
	if err != nil {
		return changed, err
	}
	keep := make(map[string]bool, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		s, d := filepath.Join(src, name), filepath.Join(dst, name)
		info, ok, err := e.entryInfo(s)
		if err != nil {
			return changed, err
		}
		if !ok {
			continue
		}
		var c bool
		switch {
		case info.IsDir():
			c, err = e.mirrorDir(s, d, info.Mode().Perm())
		case info.Mode().IsRegular():
			c, err = e.syncFile(s, d, info, true)
		default:
			continue
		}
		if err != nil {
			return changed, err
		}
		keep[name] = true
		changed = changed || c
	}

	existing, err := afero.ReadDir(e.fs, dst)
	if err != nil {
		return changed, err
	}
	for _, entry := range existing {
		if keep[entry.Name()] {
			continue
		}
		if err := e.fs.RemoveAll(filepath.Join(dst, entry.Name())); err != nil {
			return changed, err
		}
		changed = true
	}
	return changed, nil
}

// overlayDir copies src into dst without removing anything from dst.
func (e *Engine) overlayDir(src, dst string, perm os.FileMode) (bool, error) {
	changed, err := e.ensureDir(dst, perm, false)
	if err != nil {
		return false, err
	}

	entries, err := afero.ReadDir(e.fs, src)
	if err != nil {
		return changed, err
	}
	for _, entry := range entries {
		s, d := filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())
		info, ok, err := e.entryInfo(s)
		if err != nil {
			return changed, err
		}
		if !ok {
			continue
		}
		var c bool
		switch {
		case info.IsDir():
			c, err = e.overlayDir(s, d, info.Mode().Perm())
		case info.Mode().IsRegular():
			c, err = e.syncFile(s, d, info, false)
		default:
			continue
		}
		if err != nil {
			return changed, err
		}
		changed = changed || c
	}
	return changed, nil
}

// entryInfo describes a directory entry for copying. Symlinks to regular
// files are followed. Dangling links and links to anything else are skipped
// (ok is false) so a stale link never fails the whole item and linked
// directories cannot loop.
func (e *Engine) entryInfo(path string) (os.FileInfo, bool, error) {
	info, err := lstat(e.fs, path)
	if err != nil {
		return nil, false, err
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return info, true, nil
	}
	target, err := e.fs.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		e.logger.Debug("Skipping dangling symlink", logfields.Path(path))
		return nil, false, nil
	case err != nil:
		return nil, false, err
	case !target.Mode().IsRegular():
		e.logger.Debug("Skipping symlink to non-regular file", logfields.Path(path))
		return nil, false, nil
	}
	return target, true, nil
}

func lstat(fs afero.Fs, path string) (os.FileInfo, error) {
	if l, ok := fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err
	}
	return fs.Stat(path)
}

// ensureDir creates dst as a directory. A file in the way is replaced only
// when replace is set.
func (e *Engine) ensureDir(dst string, perm os.FileMode, replace bool) (bool, error) {
	info, err := e.fs.Stat(dst)
	switch {
	case err == nil && info.IsDir():
		return false, nil
	case err == nil && !replace:
		return false, fmt.Errorf("%s exists and is not a directory", dst)
	case err == nil:
		if err := e.fs.Remove(dst); err != nil {
			return false, err
		}
	case !errors.Is(err, os.ErrNotExist):
		return false, err
	}
	if perm == 0 {
		perm = dirPerm
	}
	return true, e.fs.MkdirAll(dst, perm)
}

// syncFile writes src over dst when their content or permissions differ.
// A directory in the way is replaced only when replace is set.
func (e *Engine) syncFile(src, dst string, srcInfo os.FileInfo, replace bool) (bool, error) {
	dstInfo, err := e.fs.Stat(dst)
	switch {
	case err == nil && dstInfo.IsDir():
		if !replace {
			return false, fmt.Errorf("%s is a directory", dst)
		}
		if err := e.fs.RemoveAll(dst); err != nil {
			return false, err
		}
	case err == nil:
		same, err := e.sameContent(src, dst, srcInfo, dstInfo)
		if err != nil {
			return false, err
		}
		if same {
			if dstInfo.Mode().Perm() == srcInfo.Mode().Perm() {
				return false, nil
			}
			return true, e.fs.Chmod(dst, srcInfo.Mode().Perm())
		}
	case !errors.Is(err, os.ErrNotExist):
		return false, err
	}

	if err := e.copyFile(src, dst, srcInfo.Mode().Perm()); err != nil {
		return false, err
	}
	return true, nil
}

// copyFile writes in place so that other links to dst keep seeing the content.
func (e *Engine) copyFile(src, dst string, perm os.FileMode) error {
	in, err := e.fs.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := e.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return e.fs.Chmod(dst, perm)
}

const compareChunk = 32 * 1024

func (e *Engine) sameContent(a, b string, ai, bi os.FileInfo) (bool, error) {
	if ai.Size() != bi.Size() {
		return false, nil
	}
	fa, err := e.fs.Open(a)
	if err != nil {
		return false, err
	}
	defer func() { _ = fa.Close() }()
	fb, err := e.fs.Open(b)
	if err != nil {
		return false, err
	}
	defer func() { _ = fb.Close() }()

	bufA := make([]byte, compareChunk)
	bufB := make([]byte, compareChunk)
	for {
		na, errA := io.ReadFull(fa, bufA)
		nb, errB := io.ReadFull(fb, bufB)
		if na != nb || !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}
		doneA := errA == io.EOF || errA == io.ErrUnexpectedEOF
		doneB := errB == io.EOF || errB == io.ErrUnexpectedEOF
		if errA != nil && !doneA {
			return false, errA
		}
		if errB != nil && !doneB {
			return false, errB
		}
		if doneA || doneB {
			return doneA && doneB, nil
		}
	}
}
