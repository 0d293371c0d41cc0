package git

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"git.home.luguber.info/inful/gsb/internal/logfields"
)

// CommitAll stages every change in the working tree, deletions included, and
// commits it. It reports false without committing when nothing changed.
func (r *Repository) CommitAll(ctx context.Context, message string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	wt, err := r.repo.Worktree()
	if err != nil {
		return false, ClassifyGitError(err, "worktree", r.path)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return false, ClassifyGitError(err, "add", r.path)
	}
	status, err := wt.Status()
	if err != nil {
		return false, ClassifyGitError(err, "status", r.path)
	}
	if status.IsClean() {
		r.logger.Debug("Nothing to commit", logfields.Path(r.path))
		return false, nil
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: r.authorName, Email: r.authorEmail, When: time.Now()},
	})
	if err != nil {
		return false, ClassifyGitError(err, "commit", r.path)
	}
	r.logger.Info("Committed changes", logfields.Commit(hash.String()), slog.Int("files", len(status)))
	return true, nil
}
