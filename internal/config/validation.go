package config

import (
	"path"
	"path/filepath"
	"slices"
	"strings"

	gsberrors "git.home.luguber.info/inful/gsb/internal/errors"
)

// Validate runs the load-time validation gate. The first violation is
// returned and the configuration must not be used.
func (c *Config) Validate() error {
	validator := newConfigurationValidator(c)
	return validator.validate()
}

type configurationValidator struct {
	config *Config
}

func newConfigurationValidator(config *Config) *configurationValidator {
	return &configurationValidator{config: config}
}

func (cv *configurationValidator) validate() error {
	if err := cv.validateSettings(); err != nil {
		return err
	}
	if err := cv.validateAliases(); err != nil {
		return err
	}
	if err := cv.validateItems(); err != nil {
		return err
	}
	return cv.validateItemOverlap()
}

func (cv *configurationValidator) validateSettings() error {
	if cv.config.SyncInterval <= 0 {
		return gsberrors.ValidationFailed("sync_interval", "must be positive")
	}
	if cv.config.Workers <= 0 {
		return gsberrors.ValidationFailed("workers", "must be positive")
	}
	if cv.config.Daemon.CollectInterval < 0 {
		return gsberrors.ValidationFailed("daemon.collect_interval", "must not be negative")
	}
	if strings.TrimSpace(cv.config.Git.Remote) == "" {
		return gsberrors.ValidationFailed("git.remote", "must not be empty")
	}
	if strings.TrimSpace(cv.config.Git.Branch) == "" {
		return gsberrors.ValidationFailed("git.branch", "must not be empty")
	}
	return nil
}

func (cv *configurationValidator) validateAliases() error {
	for name, id := range cv.config.Aliases {
		if strings.TrimSpace(name) == "" {
			return gsberrors.ValidationFailed("aliases", "alias name must not be empty")
		}
		if strings.TrimSpace(id) == "" {
			return gsberrors.ValidationFailed("aliases."+name, "device id must not be empty")
		}
	}
	return nil
}

func (cv *configurationValidator) validateItems() error {
	for i := range cv.config.Items {
		it := &cv.config.Items[i]
		clean, err := CleanRepoPath(it.PathInRepo)
		if err != nil {
			return err
		}
		it.PathInRepo = clean

		if it.DefaultSource != "" && !filepath.IsAbs(it.DefaultSource) {
			return gsberrors.InvalidItem(clean, "default_source must be an absolute path")
		}
		for token, src := range it.Sources {
			if strings.TrimSpace(token) == "" {
				return gsberrors.InvalidItem(clean, "sources key must not be empty")
			}
			if !filepath.IsAbs(src) {
				return gsberrors.InvalidItem(clean, "source for "+token+" must be an absolute path")
			}
		}
	}
	return nil
}

// validateItemOverlap rejects items whose repository paths are equal or nested.
func (cv *configurationValidator) validateItemOverlap() error {
	items := cv.config.Items
	for i := range items {
		for j := i + 1; j < len(items); j++ {
			if PathsOverlap(items[i].PathInRepo, items[j].PathInRepo) {
				return gsberrors.DuplicateItemPath(items[i].PathInRepo, items[j].PathInRepo)
			}
		}
	}
	return nil
}

// CleanRepoPath normalizes a path_in_repo and rejects absolute or escaping paths.
func CleanRepoPath(raw string) (string, error) {
	p := strings.TrimSpace(filepath.ToSlash(raw))
	if p == "" {
		return "", gsberrors.InvalidItem(raw, "path_in_repo is required")
	}
	if path.IsAbs(p) || filepath.IsAbs(raw) || filepath.VolumeName(raw) != "" {
		return "", gsberrors.InvalidItem(raw, "path_in_repo must be relative")
	}
	p = path.Clean(p)
	if p == "." {
		return "", gsberrors.InvalidItem(raw, "path_in_repo must not be the repository root")
	}
	if p == ".." || strings.HasPrefix(p, "../") {
		return "", gsberrors.InvalidItem(raw, "path_in_repo must stay inside the repository")
	}
	if p == ".git" || strings.HasPrefix(p, ".git/") {
		return "", gsberrors.InvalidItem(raw, "path_in_repo must not point into .git")
	}
	if isReservedRootFile(p) {
		return "", gsberrors.InvalidItem(raw, "path_in_repo must not replace "+p)
	}
	return p, nil
}

// isReservedRootFile reports whether p names a file gsb reads from the
// repository root while loading its configuration.
func isReservedRootFile(p string) bool {
	return p == FileName || slices.Contains(AlternateFileNames, p) || slices.Contains(envFileNames, p)
}

// PathsOverlap reports whether two cleaned repository paths are equal or one
// contains the other.
func PathsOverlap(a, b string) bool {
	if a == b {
		return true
	}
	return strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}
