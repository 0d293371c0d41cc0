package git

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	gsberrors "git.home.luguber.info/inful/gsb/internal/errors"
)

const testBranch = "master"

// remoteFixture is a bare remote plus a seed clone used to push commits to it.
type remoteFixture struct {
	bare     string
	seed     *git.Repository
	seedPath string
}

func newRemoteFixture(t *testing.T) *remoteFixture {
	t.Helper()
	tmp := t.TempDir()
	bare := filepath.Join(tmp, "remote.git")
	_, err := git.PlainInit(bare, true)
	require.NoError(t, err)

	seedPath := filepath.Join(tmp, "seed")
	seed, err := git.PlainInit(seedPath, false)
	require.NoError(t, err)
	_, err = seed.CreateRemote(&ggitcfg.RemoteConfig{Name: "origin", URLs: []string{bare}})
	require.NoError(t, err)

	f := &remoteFixture{bare: bare, seed: seed, seedPath: seedPath}
	f.commit(t, "shell/zshrc", "export A=1\n", "initial")
	return f
}

func (f *remoteFixture) commit(t *testing.T, rel, content, msg string) plumbing.Hash {
	t.Helper()
	h := addCommit(t, f.seed, f.seedPath, rel, content, msg)
	require.NoError(t, f.seed.Push(&git.PushOptions{RemoteName: "origin"}))
	return h
}

func addCommit(t *testing.T, repo *git.Repository, repoPath, rel, content, msg string) plumbing.Hash {
	t.Helper()
	wt, err := repo.Worktree()
	require.NoError(t, err)
	full := filepath.Join(repoPath, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o750))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o600))
	_, err = wt.Add(rel)
	require.NoError(t, err)
	h, err := wt.Commit(msg, &git.CommitOptions{Author: &object.Signature{Name: "tester", Email: "t@example.com", When: time.Now()}})
	require.NoError(t, err)
	return h
}

func newLocal(t *testing.T, remoteURL string) *Repository {
	t.Helper()
	r, err := InitOrOpen(filepath.Join(t.TempDir(), "dots"), WithInitialBranch(testBranch), WithAuthor("tester", "t@example.com"))
	require.NoError(t, err)
	if remoteURL != "" {
		_, err = r.repo.CreateRemote(&ggitcfg.RemoteConfig{Name: "origin", URLs: []string{remoteURL}})
		require.NoError(t, err)
	}
	return r
}

func TestInitOrOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dots")
	r, err := InitOrOpen(path)
	require.NoError(t, err)
	require.Equal(t, path, r.Path())

	head, err := r.Head()
	require.NoError(t, err)
	require.Empty(t, head, "fresh repository has an unborn branch")

	ref, err := r.repo.Reference(plumbing.HEAD, false)
	require.NoError(t, err)
	require.Equal(t, plumbing.NewBranchReferenceName("main"), ref.Target())

	again, err := InitOrOpen(path)
	require.NoError(t, err)
	require.Equal(t, path, again.Path())
}

func TestCommitAll(t *testing.T) {
	r := newLocal(t, "")
	ctx := t.Context()

	committed, err := r.CommitAll(ctx, "empty")
	require.NoError(t, err)
	require.False(t, committed)

	file := filepath.Join(r.Path(), "shell", "zshrc")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o750))
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	committed, err = r.CommitAll(ctx, "gsb collect on dev at 1")
	require.NoError(t, err)
	require.True(t, committed)
	head, err := r.Head()
	require.NoError(t, err)
	require.NotEmpty(t, head)

	committed, err = r.CommitAll(ctx, "again")
	require.NoError(t, err)
	require.False(t, committed, "unchanged tree is not committed")

	require.NoError(t, os.Remove(file))
	committed, err = r.CommitAll(ctx, "delete")
	require.NoError(t, err)
	require.True(t, committed, "deletions are staged")

	c, err := r.repo.CommitObject(plumbing.NewHash(mustHead(t, r)))
	require.NoError(t, err)
	require.Equal(t, "tester", c.Author.Name)
}

func mustHead(t *testing.T, r *Repository) string {
	t.Helper()
	h, err := r.Head()
	require.NoError(t, err)
	return h
}

func TestFetchAndFastForward(t *testing.T) {
	remote := newRemoteFixture(t)
	r := newLocal(t, remote.bare)
	ctx := t.Context()

	changed, err := r.Fetch(ctx, "origin", testBranch)
	require.NoError(t, err)
	require.True(t, changed)
	require.NoError(t, r.FastForwardOrMerge(ctx, "origin", testBranch))

	data, err := os.ReadFile(filepath.Join(r.Path(), "shell", "zshrc"))
	require.NoError(t, err)
	require.Equal(t, "export A=1\n", string(data))

	changed, err = r.Fetch(ctx, "origin", testBranch)
	require.NoError(t, err)
	require.False(t, changed, "nothing new upstream")

	next := remote.commit(t, "shell/zshrc", "export A=2\n", "update")
	changed, err = r.Fetch(ctx, "origin", testBranch)
	require.NoError(t, err)
	require.True(t, changed)
	require.NoError(t, r.FastForwardOrMerge(ctx, "origin", testBranch))
	require.Equal(t, next.String(), mustHead(t, r))

	data, err = os.ReadFile(filepath.Join(r.Path(), "shell", "zshrc"))
	require.NoError(t, err)
	require.Equal(t, "export A=2\n", string(data))
}

func TestFetchIgnoresLocalCommitsAhead(t *testing.T) {
	remote := newRemoteFixture(t)
	r := newLocal(t, remote.bare)
	ctx := t.Context()

	_, err := r.Fetch(ctx, "origin", testBranch)
	require.NoError(t, err)
	require.NoError(t, r.FastForwardOrMerge(ctx, "origin", testBranch))

	addCommit(t, r.repo, r.Path(), "local.txt", "mine", "local")
	changed, err := r.Fetch(ctx, "origin", testBranch)
	require.NoError(t, err)
	require.False(t, changed)
	require.NoError(t, r.FastForwardOrMerge(ctx, "origin", testBranch), "local ahead is already up to date")
}

func TestFastForwardRejectsDivergence(t *testing.T) {
	remote := newRemoteFixture(t)
	r := newLocal(t, remote.bare)
	ctx := t.Context()

	_, err := r.Fetch(ctx, "origin", testBranch)
	require.NoError(t, err)
	require.NoError(t, r.FastForwardOrMerge(ctx, "origin", testBranch))

	addCommit(t, r.repo, r.Path(), "local.txt", "mine", "local")
	remote.commit(t, "remote.txt", "theirs", "remote")

	changed, err := r.Fetch(ctx, "origin", testBranch)
	require.NoError(t, err)
	require.True(t, changed)

	err = r.FastForwardOrMerge(ctx, "origin", testBranch)
	require.Error(t, err)
	var diverged *RemoteDivergedError
	require.True(t, errors.As(err, &diverged))
	require.Equal(t, testBranch, diverged.Branch)
	require.True(t, gsberrors.IsCategory(err, gsberrors.CategoryGit))
}

func TestFastForwardRefusesDirtyTree(t *testing.T) {
	remote := newRemoteFixture(t)
	r := newLocal(t, remote.bare)
	ctx := t.Context()

	_, err := r.Fetch(ctx, "origin", testBranch)
	require.NoError(t, err)
	require.NoError(t, r.FastForwardOrMerge(ctx, "origin", testBranch))

	remote.commit(t, "shell/zshrc", "export A=3\n", "update")
	require.NoError(t, os.WriteFile(filepath.Join(r.Path(), "shell", "zshrc"), []byte("uncommitted"), 0o600))

	_, err = r.Fetch(ctx, "origin", testBranch)
	require.NoError(t, err)
	err = r.FastForwardOrMerge(ctx, "origin", testBranch)
	var dirty *DirtyWorktreeError
	require.True(t, errors.As(err, &dirty))

	data, rerr := os.ReadFile(filepath.Join(r.Path(), "shell", "zshrc"))
	require.NoError(t, rerr)
	require.Equal(t, "uncommitted", string(data))
}

func TestFetchUnknownRemote(t *testing.T) {
	r := newLocal(t, "")
	_, err := r.Fetch(t.Context(), "origin", testBranch)
	require.Error(t, err)
	require.True(t, gsberrors.IsCategory(err, gsberrors.CategoryGit))
}

func TestClassifyGitError(t *testing.T) {
	tests := []struct {
		msg       string
		reason    any
		retryable bool
	}{
		{"authentication required", ReasonAuth, false},
		{"repository not found", ReasonNotFound, false},
		{"dial tcp: i/o timeout", ReasonNetwork, true},
		{"connection reset by peer", ReasonNetwork, true},
		{"non-fast-forward update", ReasonDiverged, false},
		{"something else", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := ClassifyGitError(errors.New(tt.msg), "fetch", "origin")
			ce, ok := gsberrors.AsClassified(err)
			require.True(t, ok)
			require.Equal(t, gsberrors.CategoryGit, ce.Category)
			require.Equal(t, tt.reason, ce.Context["reason"])
			require.Equal(t, tt.retryable, gsberrors.IsRetryable(err))
		})
	}

	require.NoError(t, ClassifyGitError(nil, "fetch", "origin"))

	already := gsberrors.NewError(gsberrors.CategoryTransfer, "x")
	require.Same(t, already, ClassifyGitError(already, "fetch", "origin"))
}
