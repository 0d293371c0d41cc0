package transfer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	gsberrors "git.home.luguber.info/inful/gsb/internal/errors"
	"git.home.luguber.info/inful/gsb/internal/plan"
)

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o600))
}

func readFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return string(data)
}

func TestCollectFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	e := New(WithFs(fs))
	writeFile(t, fs, "/home/me/.zshrc", "export A=1\n")

	a := plan.Action{Item: "shell/zshrc", RepoPath: "/repo/shell/zshrc", LocalPath: "/home/me/.zshrc", Direction: plan.Collect}
	changed, err := e.Execute(t.Context(), a)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, "export A=1\n", readFile(t, fs, "/repo/shell/zshrc"))

	changed, err = e.Execute(t.Context(), a)
	require.NoError(t, err)
	require.False(t, changed, "identical content is not rewritten")

	writeFile(t, fs, "/home/me/.zshrc", "export A=2\n")
	changed, err = e.Execute(t.Context(), a)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, "export A=2\n", readFile(t, fs, "/repo/shell/zshrc"))
}

func TestCollectDirMirrorsAndPrunes(t *testing.T) {
	fs := afero.NewMemMapFs()
	e := New(WithFs(fs))
	writeFile(t, fs, "/local/nvim/init.lua", "init")
	writeFile(t, fs, "/local/nvim/lua/plugins.lua", "plugins")
	writeFile(t, fs, "/repo/nvim/stale.lua", "old")
	writeFile(t, fs, "/repo/nvim/gone/x.lua", "old")

	a := plan.Action{Item: "nvim", RepoPath: "/repo/nvim", LocalPath: "/local/nvim", Direction: plan.Collect}
	changed, err := e.Execute(t.Context(), a)
	require.NoError(t, err)
	require.True(t, changed)

	require.Equal(t, "init", readFile(t, fs, "/repo/nvim/init.lua"))
	require.Equal(t, "plugins", readFile(t, fs, "/repo/nvim/lua/plugins.lua"))
	exists, err := afero.Exists(fs, "/repo/nvim/stale.lua")
	require.NoError(t, err)
	require.False(t, exists)
	exists, err = afero.Exists(fs, "/repo/nvim/gone")
	require.NoError(t, err)
	require.False(t, exists)

	changed, err = e.Execute(t.Context(), a)
	require.NoError(t, err)
	require.False(t, changed)
}

func TestRestoreOverlayKeepsLocalExtras(t *testing.T) {
	fs := afero.NewMemMapFs()
	e := New(WithFs(fs))
	writeFile(t, fs, "/repo/nvim/init.lua", "from repo")
	writeFile(t, fs, "/local/nvim/init.lua", "local edit")
	writeFile(t, fs, "/local/nvim/local-only.lua", "mine")

	a := plan.Action{Item: "nvim", RepoPath: "/repo/nvim", LocalPath: "/local/nvim", Direction: plan.Restore}
	changed, err := e.Execute(t.Context(), a)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, "from repo", readFile(t, fs, "/local/nvim/init.lua"))
	require.Equal(t, "mine", readFile(t, fs, "/local/nvim/local-only.lua"))
}

func TestSourceMissing(t *testing.T) {
	fs := afero.NewMemMapFs()
	e := New(WithFs(fs))

	_, err := e.Execute(t.Context(), plan.Action{Item: "x", RepoPath: "/repo/x", LocalPath: "/nope", Direction: plan.Collect})
	require.Error(t, err)
	require.True(t, gsberrors.IsCategory(err, gsberrors.CategoryTransfer))

	_, err = e.Execute(t.Context(), plan.Action{Item: "x", RepoPath: "/repo/x", LocalPath: "/nope", Direction: plan.Restore})
	require.Error(t, err)
	require.True(t, gsberrors.IsCategory(err, gsberrors.CategoryTransfer))
}

func TestRunAggregatesFailures(t *testing.T) {
	fs := afero.NewMemMapFs()
	e := New(WithFs(fs), WithWorkers(2))
	writeFile(t, fs, "/local/a", "a")
	writeFile(t, fs, "/local/c", "c")

	actions := []plan.Action{
		{Item: "a", RepoPath: "/repo/a", LocalPath: "/local/a", Direction: plan.Collect},
		{Item: "b", RepoPath: "/repo/b", LocalPath: "/local/missing", Direction: plan.Collect},
		{Item: "c", RepoPath: "/repo/c", LocalPath: "/local/c", Direction: plan.Collect},
	}
	report := e.Run(t.Context(), actions)

	require.Equal(t, []string{"a", "c"}, report.Applied)
	require.Len(t, report.Failed, 1)
	require.Equal(t, "b", report.Failed[0].Item)
	require.Equal(t, plan.Collect, report.Direction)

	err := report.Err()
	require.Error(t, err)
	var batch *BatchError
	require.True(t, errors.As(err, &batch))
	require.Len(t, batch.Unwrap(), 1)
	require.True(t, gsberrors.IsCategory(err, gsberrors.CategoryTransfer))
	require.Contains(t, err.Error(), "collect: 1 item(s) failed")

	require.Equal(t, "c", readFile(t, fs, "/repo/c"))
}

func TestRunCancelledContext(t *testing.T) {
	fs := afero.NewMemMapFs()
	e := New(WithFs(fs))
	writeFile(t, fs, "/local/a", "a")

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	report := e.Run(ctx, []plan.Action{{Item: "a", RepoPath: "/repo/a", LocalPath: "/local/a", Direction: plan.Collect}})
	require.Len(t, report.Failed, 1)
	require.Empty(t, report.Applied)
}

func TestHardlinkOnDirectoryIsInvalid(t *testing.T) {
	fs := afero.NewMemMapFs()
	e := New(WithFs(fs))
	require.NoError(t, fs.MkdirAll("/repo/dir", 0o750))

	for _, dir := range []plan.Direction{plan.Collect, plan.Restore} {
		_, err := e.Execute(t.Context(), plan.Action{Item: "dir", RepoPath: "/repo/dir", LocalPath: "/local/dir", IsHardlink: true, Direction: dir})
		require.Error(t, err)
		ce, ok := gsberrors.AsClassified(err)
		require.True(t, ok)
		require.Equal(t, gsberrors.CategoryValidation, ce.Category)
	}

	isDir, err := e.IsDir("/repo/dir")
	require.NoError(t, err)
	require.True(t, isDir)
	isDir, err = e.IsDir("/repo/none")
	require.NoError(t, err)
	require.False(t, isDir)
}

func TestHardlinkCollectIsNoop(t *testing.T) {
	fs := afero.NewMemMapFs()
	e := New(WithFs(fs))
	writeFile(t, fs, "/repo/gitconfig", "repo")
	writeFile(t, fs, "/local/gitconfig", "local")

	changed, err := e.Execute(t.Context(), plan.Action{Item: "gitconfig", RepoPath: "/repo/gitconfig", LocalPath: "/local/gitconfig", IsHardlink: true, Direction: plan.Collect})
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, "repo", readFile(t, fs, "/repo/gitconfig"))
}

func TestHardlinkRequiresOsFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	e := New(WithFs(fs))
	writeFile(t, fs, "/repo/f", "x")

	_, err := e.Execute(t.Context(), plan.Action{Item: "f", RepoPath: "/repo/f", LocalPath: "/local/f", IsHardlink: true, Direction: plan.Restore})
	require.ErrorIs(t, err, errNeedsOsFs)
}

func TestHardlinkRestoreReplacesLocalCopy(t *testing.T) {
	dir := t.TempDir()
	repoFile := filepath.Join(dir, "repo", "gitconfig")
	localFile := filepath.Join(dir, "home", ".gitconfig")
	require.NoError(t, os.MkdirAll(filepath.Dir(repoFile), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Dir(localFile), 0o750))
	require.NoError(t, os.WriteFile(repoFile, []byte("[user]\n"), 0o600))
	require.NoError(t, os.WriteFile(localFile, []byte("stale"), 0o600))

	e := New()
	a := plan.Action{Item: "gitconfig", RepoPath: repoFile, LocalPath: localFile, IsHardlink: true, Direction: plan.Restore}
	changed, err := e.Execute(t.Context(), a)
	require.NoError(t, err)
	require.True(t, changed)

	ri, err := os.Stat(repoFile)
	require.NoError(t, err)
	li, err := os.Stat(localFile)
	require.NoError(t, err)
	require.True(t, os.SameFile(ri, li))
}

func TestHardlinkFailureKeepsLocalFile(t *testing.T) {
	dir := t.TempDir()
	other := filepath.Join(dir, "repo", "other")
	localFile := filepath.Join(dir, "home", ".gitconfig")
	require.NoError(t, os.MkdirAll(filepath.Dir(other), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Dir(localFile), 0o750))
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(localFile, []byte("keep me"), 0o600))
	info, err := os.Stat(other)
	require.NoError(t, err)

	e := New()
	a := plan.Action{
		Item:       "gitconfig",
		RepoPath:   filepath.Join(dir, "repo", "vanished"),
		LocalPath:  localFile,
		IsHardlink: true,
		Direction:  plan.Restore,
	}
	_, err = e.link(a, info)
	require.Error(t, err)

	data, err := os.ReadFile(localFile)
	require.NoError(t, err)
	require.Equal(t, "keep me", string(data))
	entries, err := os.ReadDir(filepath.Dir(localFile))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temporary link left behind")
}

func TestDirSymlinksSkippedOrFollowed(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "home", "cfg")
	repo := filepath.Join(dir, "repo", "cfg")
	require.NoError(t, os.MkdirAll(local, 0o750))
	require.NoError(t, os.MkdirAll(repo, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(local, "a.conf"), []byte("a"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shared.conf"), []byte("shared"), 0o600))
	require.NoError(t, os.Symlink(filepath.Join(dir, "missing"), filepath.Join(local, "stale")))
	require.NoError(t, os.Symlink(filepath.Join(dir, "shared.conf"), filepath.Join(local, "shared.conf")))
	require.NoError(t, os.Symlink(dir, filepath.Join(local, "loop")))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "old.conf"), []byte("old"), 0o600))

	e := New()
	a := plan.Action{Item: "cfg", RepoPath: repo, LocalPath: local, Direction: plan.Collect}
	changed, err := e.Execute(t.Context(), a)
	require.NoError(t, err)
	require.True(t, changed)

	data, err := os.ReadFile(filepath.Join(repo, "a.conf"))
	require.NoError(t, err)
	require.Equal(t, "a", string(data))
	data, err = os.ReadFile(filepath.Join(repo, "shared.conf"))
	require.NoError(t, err)
	require.Equal(t, "shared", string(data))
	for _, name := range []string{"stale", "loop", "old.conf"} {
		_, err := os.Lstat(filepath.Join(repo, name))
		require.True(t, os.IsNotExist(err), name)
	}

	require.NoError(t, os.Symlink(filepath.Join(dir, "missing"), filepath.Join(repo, "dangling")))
	restore := plan.Action{Item: "cfg", RepoPath: repo, LocalPath: filepath.Join(dir, "restored"), Direction: plan.Restore}
	_, err = e.Execute(t.Context(), restore)
	require.NoError(t, err)
	_, err = os.Lstat(filepath.Join(dir, "restored", "dangling"))
	require.True(t, os.IsNotExist(err))
}

// TestRestoreIsIdempotent runs restore twice over a plain file and a
// hardlinked file; the second run must not touch the filesystem.
func TestRestoreIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	repo := filepath.Join(dir, "repo")
	home := filepath.Join(dir, "home")
	require.NoError(t, os.MkdirAll(filepath.Join(repo, "shell"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "shell", "zshrc"), []byte("export A=1\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "gitconfig"), []byte("[user]\n"), 0o600))

	actions := []plan.Action{
		{Item: "shell/zshrc", RepoPath: filepath.Join(repo, "shell", "zshrc"), LocalPath: filepath.Join(home, ".zshrc"), Direction: plan.Restore},
		{Item: "gitconfig", RepoPath: filepath.Join(repo, "gitconfig"), LocalPath: filepath.Join(home, ".gitconfig"), IsHardlink: true, Direction: plan.Restore},
	}

	e := New()
	first := e.Run(t.Context(), actions)
	require.NoError(t, first.Err())
	require.Equal(t, []string{"gitconfig", "shell/zshrc"}, first.Applied)

	before := statAll(t, home)
	second := e.Run(t.Context(), actions)
	require.NoError(t, second.Err())
	require.Empty(t, second.Applied)
	require.Equal(t, []string{"gitconfig", "shell/zshrc"}, second.Unchanged)

	after := statAll(t, home)
	require.Len(t, after, len(before))
	for name, b := range before {
		a := after[name]
		require.True(t, os.SameFile(b, a), name)
		require.Equal(t, b.ModTime(), a.ModTime(), name)
		require.Equal(t, b.Mode(), a.Mode(), name)
	}
}

func statAll(t *testing.T, root string) map[string]os.FileInfo {
	t.Helper()
	out := map[string]os.FileInfo{}
	require.NoError(t, filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		out[p] = info
		return nil
	}))
	return out
}

func TestCollectRestoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	repo := filepath.Join(dir, "repo")
	local := filepath.Join(dir, "local", "nvim")
	files := map[string]string{
		"init.lua":              "require('plugins')\n",
		"lua/plugins.lua":       "return {}\n",
		"after/ftplugin/go.lua": "vim.opt.tabstop = 4\n",
	}
	for rel, content := range files {
		p := filepath.Join(local, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}

	e := New()
	collect := plan.Action{Item: "nvim", RepoPath: filepath.Join(repo, "nvim"), LocalPath: local, Direction: plan.Collect}
	report := e.Run(t.Context(), []plan.Action{collect})
	require.NoError(t, report.Err())

	require.NoError(t, os.RemoveAll(local))

	restore := collect
	restore.Direction = plan.Restore
	report = e.Run(t.Context(), []plan.Action{restore})
	require.NoError(t, report.Err())

	for rel, content := range files {
		data, err := os.ReadFile(filepath.Join(local, filepath.FromSlash(rel)))
		require.NoError(t, err)
		require.Equal(t, content, string(data), rel)
	}
}
