package git

import (
	"errors"
	"fmt"
	"strings"

	gsberrors "git.home.luguber.info/inful/gsb/internal/errors"
)

// Failure reasons attached to classified git errors under the "reason" key.
const (
	ReasonAuth     = "auth"
	ReasonNotFound = "not_found"
	ReasonNetwork  = "network"
	ReasonDiverged = "diverged"
	ReasonDirty    = "dirty_worktree"
)

// RemoteDivergedError is returned when local and remote histories have both
// advanced. gsb never merges diverged histories.
type RemoteDivergedError struct {
	Op, Remote, Branch string
	Err                error
}

func (e *RemoteDivergedError) Error() string {
	return fmt.Sprintf("%s remote diverged %s/%s: %v", e.Op, e.Remote, e.Branch, e.Err)
}
func (e *RemoteDivergedError) Unwrap() error { return e.Err }

// DirtyWorktreeError is returned when a fast-forward would overwrite
// uncommitted changes to tracked files.
type DirtyWorktreeError struct {
	Path string
}

func (e *DirtyWorktreeError) Error() string {
	return fmt.Sprintf("working tree %s has uncommitted changes", e.Path)
}

// ClassifyGitError translates go-git errors into classified git errors.
// Network failures are marked retryable; the daemon retries them on its next
// cycle.
func ClassifyGitError(err error, op, target string) error {
	if err == nil {
		return nil
	}
	if _, ok := gsberrors.AsClassified(err); ok {
		return err
	}

	ce := gsberrors.Wrap(err, gsberrors.CategoryGit, gsberrors.SeverityError, "git operation failed").
		WithContext("op", op).
		WithContext("target", target)

	var dirty *DirtyWorktreeError
	l := strings.ToLower(err.Error())
	switch {
	case errors.As(err, &dirty):
		ce.WithContext("reason", ReasonDirty)
	case strings.Contains(l, "authentication") || strings.Contains(l, "not authorized") ||
		strings.Contains(l, "could not read username") || strings.Contains(l, "invalid credentials"):
		ce.WithContext("reason", ReasonAuth)
	case strings.Contains(l, "repository not found") || strings.Contains(l, "not found") || strings.Contains(l, "does not exist"):
		ce.WithContext("reason", ReasonNotFound)
	case strings.Contains(l, "remote hung up") || strings.Contains(l, "connection reset") || strings.Contains(l, "connection refused") ||
		strings.Contains(l, "timeout") || strings.Contains(l, "no route to host") || strings.Contains(l, "no such host"):
		ce.WithContext("reason", ReasonNetwork).AsRetryable()
	case strings.Contains(l, "diverged") || strings.Contains(l, "non-fast-forward"):
		ce.WithContext("reason", ReasonDiverged)
	}
	return ce.Build()
}
