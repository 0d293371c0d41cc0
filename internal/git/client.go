package git

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/gsb/internal/logfields"
)

// Repository is an opened working-tree repository.
type Repository struct {
	path        string
	repo        *git.Repository
	authorName  string
	authorEmail string
	branch      string
	logger      *slog.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithAuthor sets the signature used by CommitAll.
func WithAuthor(name, email string) Option {
	return func(r *Repository) {
		if name != "" {
			r.authorName = name
		}
		if email != "" {
			r.authorEmail = email
		}
	}
}

// WithInitialBranch sets the branch HEAD points to in a freshly initialized repository.
func WithInitialBranch(branch string) Option {
	return func(r *Repository) {
		if branch != "" {
			r.branch = branch
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

// InitOrOpen opens the repository at path, initializing one when none exists.
func InitOrOpen(path string, opts ...Option) (*Repository, error) {
	r := &Repository{
		path:        path,
		authorName:  "gsb",
		authorEmail: "gsb@localhost",
		branch:      "main",
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	repo, err := git.PlainOpen(path)
	switch {
	case err == nil:
		r.repo = repo
		return r, nil
	case !errors.Is(err, git.ErrRepositoryNotExists):
		return nil, ClassifyGitError(err, "open", path)
	}

	if mkErr := os.MkdirAll(path, 0o750); mkErr != nil {
		return nil, ClassifyGitError(mkErr, "init", path)
	}
	repo, err = git.PlainInitWithOptions(path, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName(r.branch)},
	})
	if err != nil {
		return nil, ClassifyGitError(err, "init", path)
	}
	r.logger.Info("Initialized repository", logfields.Path(path), logfields.Branch(r.branch))
	r.repo = repo
	return r, nil
}

// Path returns the working tree root.
func (r *Repository) Path() string { return r.path }

// Head returns the current HEAD commit hash, or "" for an unborn branch.
func (r *Repository) Head() (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("head: %w", err)
	}
	return ref.Hash().String(), nil
}
