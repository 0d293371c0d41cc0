package git

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/gsb/internal/logfields"
)

// Fetch updates the remote-tracking ref of branch and reports whether the
// remote now holds commits that are not reachable from HEAD.
func (r *Repository) Fetch(ctx context.Context, remote, branch string) (bool, error) {
	refSpec := ggitcfg.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/%s/%s", branch, remote, branch))
	err := r.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remote,
		RefSpecs:   []ggitcfg.RefSpec{refSpec},
		Tags:       git.NoTags,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return false, ClassifyGitError(err, "fetch", remote)
	}

	remoteRef, err := r.repo.Reference(plumbing.NewRemoteReferenceName(remote, branch), true)
	if err != nil {
		return false, ClassifyGitError(fmt.Errorf("remote ref %s/%s: %w", remote, branch, err), "fetch", remote)
	}

	head, err := r.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return true, nil
		}
		return false, ClassifyGitError(err, "fetch", remote)
	}

	// Local commits are never pushed, so HEAD may be ahead of the remote.
	contained, err := isAncestor(r.repo, remoteRef.Hash(), head.Hash())
	if err != nil {
		return false, ClassifyGitError(err, "fetch", remote)
	}
	r.logger.Debug("Fetched remote",
		logfields.Remote(remote), logfields.Branch(branch),
		logfields.Commit(remoteRef.Hash().String()))
	return !contained, nil
}

// FastForwardOrMerge moves the local branch to the fetched remote state.
// Only fast-forwards are performed; a diverged history returns a
// *RemoteDivergedError and a dirty working tree refuses the update.
func (r *Repository) FastForwardOrMerge(ctx context.Context, remote, branch string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wt, err := r.repo.Worktree()
	if err != nil {
		return ClassifyGitError(err, "worktree", r.path)
	}

	remoteRef, err := r.repo.Reference(plumbing.NewRemoteReferenceName(remote, branch), true)
	if err != nil {
		return ClassifyGitError(fmt.Errorf("remote ref %s/%s: %w", remote, branch, err), "merge", remote)
	}

	localRef, err := checkoutBranch(r.repo, wt, branch, remoteRef.Hash())
	if err != nil {
		return ClassifyGitError(err, "checkout", r.path)
	}
	if localRef == nil {
		r.logger.Info("Checked out remote branch", logfields.Branch(branch), logfields.Commit(remoteRef.Hash().String()))
		return nil
	}

	if ahead, err := isAncestor(r.repo, remoteRef.Hash(), localRef.Hash()); err != nil {
		return ClassifyGitError(err, "merge", remote)
	} else if ahead {
		r.logger.Debug("Repository already up-to-date", logfields.Branch(branch), logfields.Commit(localRef.Hash().String()))
		return nil
	}

	ff, err := isAncestor(r.repo, localRef.Hash(), remoteRef.Hash())
	if err != nil {
		return ClassifyGitError(err, "merge", remote)
	}
	if !ff {
		return ClassifyGitError(&RemoteDivergedError{Op: "merge", Remote: remote, Branch: branch, Err: errors.New("local branch diverged from remote")}, "merge", remote)
	}

	dirty, err := hasTrackedChanges(wt)
	if err != nil {
		return ClassifyGitError(err, "status", r.path)
	}
	if dirty {
		return ClassifyGitError(&DirtyWorktreeError{Path: r.path}, "merge", r.path)
	}

	if err := wt.Reset(&git.ResetOptions{Commit: remoteRef.Hash(), Mode: git.HardReset}); err != nil {
		return ClassifyGitError(fmt.Errorf("fast-forward reset: %w", err), "merge", remote)
	}
	r.logger.Info("Fast-forwarded repository",
		logfields.Branch(branch),
		logfields.Commit(remoteRef.Hash().String()),
		logfields.Reason("remote ahead"))
	return nil
}

// checkoutBranch makes branch the current branch. When the local branch has
// no commits yet it is created at target and nil is returned.
func checkoutBranch(repo *git.Repository, wt *git.Worktree, branch string, target plumbing.Hash) (*plumbing.Reference, error) {
	localName := plumbing.NewBranchReferenceName(branch)

	localRef, err := repo.Reference(localName, true)
	if err != nil {
		if !errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, fmt.Errorf("local ref: %w", err)
		}
		if err := repo.Storer.SetReference(plumbing.NewHashReference(localName, target)); err != nil {
			return nil, fmt.Errorf("create branch: %w", err)
		}
		if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, localName)); err != nil {
			return nil, fmt.Errorf("point HEAD: %w", err)
		}
		if err := wt.Reset(&git.ResetOptions{Commit: target, Mode: git.HardReset}); err != nil {
			return nil, fmt.Errorf("checkout: %w", err)
		}
		return nil, nil
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("head: %w", err)
	}
	if head.Name() != localName {
		if err := wt.Checkout(&git.CheckoutOptions{Branch: localName}); err != nil {
			return nil, fmt.Errorf("checkout existing branch: %w", err)
		}
	}
	return localRef, nil
}

// isAncestor reports whether a is reachable from b.
func isAncestor(repo *git.Repository, a, b plumbing.Hash) (bool, error) {
	if a == b {
		return true, nil
	}
	seen := map[plumbing.Hash]struct{}{}
	queue := []plumbing.Hash{b}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if h == a {
			return true, nil
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		commit, err := repo.CommitObject(h)
		if err != nil {
			return false, err
		}
		queue = append(queue, commit.ParentHashes...)
	}
	return false, nil
}

// hasTrackedChanges ignores untracked files; a hard reset leaves them alone
// unless the target tree contains the same path.
func hasTrackedChanges(wt *git.Worktree) (bool, error) {
	status, err := wt.Status()
	if err != nil {
		return false, err
	}
	for _, st := range status {
		if st.Worktree == git.Untracked && st.Staging == git.Untracked {
			continue
		}
		if st.Worktree != git.Unmodified || st.Staging != git.Unmodified {
			return true, nil
		}
	}
	return false, nil
}
